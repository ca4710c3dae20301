package logger

import (
	"bytes"
	"encoding/json"
	"strings"
	"testing"
)

func TestJSONOutputCarriesFields(t *testing.T) {
	log := New(LoggingConfig{Level: "info", Format: "json"})
	var buf bytes.Buffer
	log.SetOutput(&buf)

	log.WithField("component", "ledger").WithField("amount", 5).Info("transaction submitted")

	var entry map[string]interface{}
	if err := json.Unmarshal(buf.Bytes(), &entry); err != nil {
		t.Fatalf("output is not json: %v (%q)", err, buf.String())
	}
	if entry["component"] != "ledger" {
		t.Errorf("component = %v, want ledger", entry["component"])
	}
	if entry["msg"] != "transaction submitted" {
		t.Errorf("msg = %v", entry["msg"])
	}
}

func TestLevelFiltersDebug(t *testing.T) {
	log := New(LoggingConfig{Level: "warn"})
	var buf bytes.Buffer
	log.SetOutput(&buf)

	log.Debug("hidden")
	log.Info("also hidden")
	log.Warn("visible")

	out := buf.String()
	if strings.Contains(out, "hidden") {
		t.Errorf("below-level entries were written: %q", out)
	}
	if !strings.Contains(out, "visible") {
		t.Errorf("warn entry missing: %q", out)
	}
}

func TestUnknownLevelFallsBackToInfo(t *testing.T) {
	log := New(LoggingConfig{Level: "nonsense"})
	var buf bytes.Buffer
	log.SetOutput(&buf)

	log.Info("kept")
	if !strings.Contains(buf.String(), "kept") {
		t.Errorf("info entry missing after fallback: %q", buf.String())
	}
}
