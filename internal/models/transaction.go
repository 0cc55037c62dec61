package models

// TransactionRecord is one historical sale from a yearly DVF file.
// Records are validated at ingestion: price and surface are only set from
// rows where both fields were present and numerically parseable.
type TransactionRecord struct {
	PostalCode   string  `json:"postal_code"`
	PropertyType string  `json:"property_type"`
	Street       string  `json:"street"`
	Municipality string  `json:"municipality"`
	SaleDate     string  `json:"sale_date"`
	Price        float64 `json:"price"`
	Surface      float64 `json:"surface"`
}
