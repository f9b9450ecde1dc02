package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// Invoice is the issued document for a paid order. The unique index on
// order_id is the guard against double issuance; rows are immutable apart
// from artifact paths written by re-render.
type Invoice struct {
	ID              uuid.UUID       `gorm:"column:id;type:uuid;primaryKey"`
	OrderID         uuid.UUID       `gorm:"column:order_id;type:uuid;not null;uniqueIndex"`
	Number          string          `gorm:"column:number;type:text;not null;uniqueIndex"`
	ProviderCode    string          `gorm:"column:provider_code;not null"`
	LookupCode      string          `gorm:"column:lookup_code;not null"`
	CustomerName    string          `gorm:"column:customer_name;not null"`
	CustomerTaxCode *string         `gorm:"column:customer_tax_code"`
	CustomerAddress *string         `gorm:"column:customer_address"`
	Amount          decimal.Decimal `gorm:"column:amount;type:numeric(14,2);not null"`
	TaxAmount       decimal.Decimal `gorm:"column:tax_amount;type:numeric(14,2);not null"`
	TotalAmount     decimal.Decimal `gorm:"column:total_amount;type:numeric(14,2);not null"`
	PDFPath         *string         `gorm:"column:pdf_path"`
	XMLPath         *string         `gorm:"column:xml_path"`
	IssuedAt        time.Time       `gorm:"column:issued_at;not null"`
	CreatedAt       time.Time       `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt       time.Time       `gorm:"column:updated_at;autoUpdateTime"`
}
