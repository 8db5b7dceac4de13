package domain

import (
	"database/sql/driver"
	"encoding/json"
	"fmt"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

type LineItemType string

const (
	LineItemProduct  LineItemType = "PRODUCT"
	LineItemService  LineItemType = "SERVICE"
	LineItemCustom   LineItemType = "CUSTOM"
	LineItemSetupFee LineItemType = "SETUP_FEE"
	LineItemShipping LineItemType = "SHIPPING"
	LineItemDiscount LineItemType = "DISCOUNT"
)

func (t LineItemType) Valid() bool {
	switch t {
	case LineItemProduct, LineItemService, LineItemCustom, LineItemSetupFee, LineItemShipping, LineItemDiscount:
		return true
	}
	return false
}

// ServiceOptions is the free-form bag attached to SERVICE items (stored as jsonb).
type ServiceOptions struct {
	Colors    []string `json:"colors,omitempty"`
	Locations []string `json:"locations,omitempty"`
	Size      string   `json:"size,omitempty"`
	Material  string   `json:"material,omitempty"`
	Notes     string   `json:"notes,omitempty"`
}

func (o ServiceOptions) IsZero() bool {
	return len(o.Colors) == 0 && len(o.Locations) == 0 && o.Size == "" && o.Material == "" && o.Notes == ""
}

func (o *ServiceOptions) Scan(src interface{}) error {
	if src == nil {
		*o = ServiceOptions{}
		return nil
	}
	var raw []byte
	switch v := src.(type) {
	case []byte:
		raw = v
	case string:
		raw = []byte(v)
	default:
		return fmt.Errorf("unsupported service options type %T", src)
	}
	if len(raw) == 0 {
		*o = ServiceOptions{}
		return nil
	}
	return json.Unmarshal(raw, o)
}

func (o ServiceOptions) Value() (driver.Value, error) {
	if o.IsZero() {
		return nil, nil
	}
	return json.Marshal(o)
}

// LineItem is one priced row, owned exclusively by a quote.
type LineItem struct {
	ID             uuid.UUID       `json:"id" db:"id"`
	QuoteID        uuid.UUID       `json:"quote_id" db:"quote_id"`
	Position       int             `json:"position" db:"position"`
	ItemType       LineItemType    `json:"item_type" db:"item_type"`
	Description    string          `json:"description" db:"description"`
	Quantity       int             `json:"quantity" db:"quantity"`
	UnitPrice      decimal.Decimal `json:"unit_price" db:"unit_price"`
	Discount       decimal.Decimal `json:"discount" db:"discount"`
	Total          decimal.Decimal `json:"total" db:"total"`
	ProductID      *string         `json:"product_id,omitempty" db:"product_id"`
	SupplierID     *string         `json:"supplier_id,omitempty" db:"supplier_id"`
	ServiceOptions ServiceOptions  `json:"service_options" db:"service_options"`
}

func (li LineItem) Clone() LineItem {
	c := li
	c.ProductID = cloneString(li.ProductID)
	c.SupplierID = cloneString(li.SupplierID)
	c.ServiceOptions.Colors = append([]string(nil), li.ServiceOptions.Colors...)
	c.ServiceOptions.Locations = append([]string(nil), li.ServiceOptions.Locations...)
	return c
}

// SameContent reports whether two items are priced and described identically,
// ignoring identity and position.
func (li LineItem) SameContent(other LineItem) bool {
	if li.ItemType != other.ItemType || li.Description != other.Description || li.Quantity != other.Quantity {
		return false
	}
	if !li.UnitPrice.Equal(other.UnitPrice) || !li.Discount.Equal(other.Discount) {
		return false
	}
	if derefString(li.ProductID) != derefString(other.ProductID) || derefString(li.SupplierID) != derefString(other.SupplierID) {
		return false
	}
	a, _ := json.Marshal(li.ServiceOptions)
	b, _ := json.Marshal(other.ServiceOptions)
	return string(a) == string(b)
}

// LineItemInput is the client-submitted shape of a line item. Totals are never taken from it.
type LineItemInput struct {
	ID             *uuid.UUID      `json:"id,omitempty"`
	ItemType       LineItemType    `json:"item_type"`
	Description    string          `json:"description"`
	Quantity       int             `json:"quantity"`
	UnitPrice      decimal.Decimal `json:"unit_price"`
	Discount       decimal.Decimal `json:"discount"`
	ProductID      *string         `json:"product_id,omitempty"`
	SupplierID     *string         `json:"supplier_id,omitempty"`
	ServiceOptions ServiceOptions  `json:"service_options"`
}

func derefString(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}
