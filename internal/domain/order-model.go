package domain

import (
	"strings"
	"time"
)

// OrderItem is a single country line of an order.
type OrderItem struct {
	Country  string `json:"country"`
	Quantity int    `json:"qty"`
	Operator string `json:"operator,omitempty"`
}

// Delivery is either a Nova Poshta branch (City + Branch) or a free-form
// courier address.
type Delivery struct {
	City    string `json:"city,omitempty"`
	Branch  string `json:"np,omitempty"`
	Address string `json:"address,omitempty"`
}

func (d Delivery) HasBranch() bool {
	return strings.TrimSpace(d.City) != "" && strings.TrimSpace(d.Branch) != ""
}

func (d Delivery) HasAddress() bool {
	return strings.TrimSpace(d.Address) != ""
}

func (d Delivery) Complete() bool {
	return d.HasBranch() || d.HasAddress()
}

func (d Delivery) Empty() bool {
	return d.City == "" && d.Branch == "" && d.Address == ""
}

// OrderDraft is the partially collected order of a conversation.
type OrderDraft struct {
	FullName string      `json:"full_name,omitempty"`
	Phone    string      `json:"phone,omitempty"`
	Delivery Delivery    `json:"delivery"`
	Items    []OrderItem `json:"items,omitempty"`
}

func (d OrderDraft) Empty() bool {
	return d.FullName == "" && d.Phone == "" && d.Delivery.Empty() && len(d.Items) == 0
}

// Clone returns a draft that does not share the items slice.
func (d OrderDraft) Clone() OrderDraft {
	out := d
	if d.Items != nil {
		out.Items = append([]OrderItem(nil), d.Items...)
	}
	return out
}

// Field identifies one of the four required order fields.
type Field string

const (
	FieldName     Field = "name"
	FieldPhone    Field = "phone"
	FieldDelivery Field = "delivery"
	FieldItems    Field = "items"
)

// RequiredFields is the canonical order in which missing fields are reported.
var RequiredFields = []Field{FieldName, FieldPhone, FieldDelivery, FieldItems}

// Point is the number the customer-facing prompt uses for the field.
func (f Field) Point() int {
	for i, rf := range RequiredFields {
		if rf == f {
			return i + 1
		}
	}
	return 0
}

// OrderRecord is an accepted order as stored in the archive.
type OrderRecord struct {
	ID        string      `json:"id" db:"id"`
	ChatID    int64       `json:"chat_id" db:"chat_id"`
	UserName  string      `json:"user_name" db:"user_name"`
	FullName  string      `json:"full_name" db:"full_name"`
	Phone     string      `json:"phone" db:"phone"`
	Delivery  Delivery    `json:"delivery"`
	Items     []OrderItem `json:"items"`
	Total     int         `json:"total" db:"total"`
	Signature string      `json:"signature" db:"signature"`
	Paid      bool        `json:"paid" db:"paid"`
	CreatedAt time.Time   `json:"created_at" db:"created_at"`
}

// OrderStats is served by the archive API.
type OrderStats struct {
	TotalOrders int `json:"total_orders"`
	PaidOrders  int `json:"paid_orders"`
	TotalSims   int `json:"total_sims"`
	TotalAmount int `json:"total_amount"`
	TodayOrders int `json:"today_orders"`
}
