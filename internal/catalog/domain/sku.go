package domain

import "errors"

// SKU is the catalog's view of one orderable fabric/clothing variant. This
// service does not own pricing; it only consults it to validate checkouts.
type SKU struct {
	ID         string `json:"id"`
	Name       string `json:"name"`
	PriceCents int64  `json:"price_cents"`
	Currency   string `json:"currency"`
	Active     bool   `json:"active"`
}

var ErrSKUNotFound = errors.New("sku not in catalog")
