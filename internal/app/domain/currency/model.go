package currency

import "time"

// Currency describes an asset the wallet supports. ExchangeRate is quoted as
// USD per one unit of the asset.
type Currency struct {
	ID           string    `json:"id"`
	Name         string    `json:"name"`
	Symbol       string    `json:"symbol"`
	Decimals     int       `json:"decimals"`
	Color        string    `json:"color,omitempty"`
	ExchangeRate float64   `json:"exchange_rate"`
	LogoURL      string    `json:"logo_url,omitempty"`
	CreatedAt    time.Time `json:"created_at"`
	UpdatedAt    time.Time `json:"updated_at"`
}
