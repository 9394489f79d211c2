package model

import (
	"time"

	"gorm.io/datatypes"
)

type OrderStatus string

const (
	OrderStatusPending    OrderStatus = "pending"
	OrderStatusConfirmed  OrderStatus = "confirmed"
	OrderStatusProcessing OrderStatus = "processing"
	OrderStatusShipped    OrderStatus = "shipped"
	OrderStatusDelivered  OrderStatus = "delivered"
	OrderStatusCancelled  OrderStatus = "cancelled"
)

// OrderStatuses lists every status in lifecycle order
var OrderStatuses = []OrderStatus{
	OrderStatusPending,
	OrderStatusConfirmed,
	OrderStatusProcessing,
	OrderStatusShipped,
	OrderStatusDelivered,
	OrderStatusCancelled,
}

var orderTransitions = map[OrderStatus][]OrderStatus{
	OrderStatusPending:    {OrderStatusConfirmed, OrderStatusCancelled},
	OrderStatusConfirmed:  {OrderStatusProcessing, OrderStatusCancelled},
	OrderStatusProcessing: {OrderStatusShipped, OrderStatusCancelled},
	OrderStatusShipped:    {OrderStatusDelivered},
}

// ParseOrderStatus returns the status named s
func ParseOrderStatus(s string) (OrderStatus, bool) {
	for _, status := range OrderStatuses {
		if string(status) == s {
			return status, true
		}
	}
	return "", false
}

// CanTransition reports whether an order may move from one status to another
func CanTransition(from, to OrderStatus) bool {
	for _, next := range orderTransitions[from] {
		if next == to {
			return true
		}
	}
	return false
}

// Address is a shipping address stored as jsonb
type Address struct {
	Line1      string `json:"line1"`
	Line2      string `json:"line2,omitempty"`
	City       string `json:"city"`
	Region     string `json:"region"`
	PostalCode string `json:"postal_code"`
	Country    string `json:"country"`
}

// Order is a placed checkout. SubtotalCents equals the sum of item line totals and
// TotalCents = SubtotalCents + TaxCents + ShippingCents.
type Order struct {
	ID              uint                        `json:"id" gorm:"primaryKey"`
	TenantID        uint                        `json:"tenant_id" gorm:"not null;index"`
	OrderNumber     string                      `json:"order_number" gorm:"type:varchar(32);uniqueIndex;not null"`
	UserID          *uint                       `json:"user_id,omitempty" gorm:"index"`
	CustomerName    string                      `json:"customer_name" gorm:"type:varchar(100);not null"`
	CustomerEmail   string                      `json:"customer_email" gorm:"type:varchar(255);not null;index"`
	CustomerPhone   string                      `json:"customer_phone" gorm:"type:varchar(50)"`
	ShippingAddress datatypes.JSONType[Address] `json:"shipping_address" gorm:"type:jsonb"`
	Notes           string                      `json:"notes" gorm:"type:text"`
	Status          OrderStatus                 `json:"status" gorm:"type:varchar(20);not null;index"`
	SubtotalCents   int64                       `json:"subtotal_cents" gorm:"not null"`
	TaxCents        int64                       `json:"tax_cents" gorm:"not null"`
	ShippingCents   int64                       `json:"shipping_cents" gorm:"not null"`
	TotalCents      int64                       `json:"total_cents" gorm:"not null"`
	Items           []OrderItem                 `json:"items" gorm:"foreignKey:OrderID"`
	CreatedAt       time.Time                   `json:"created_at" gorm:"index"`
	UpdatedAt       time.Time                   `json:"updated_at"`
}

// OrderItem is one priced line of an order
type OrderItem struct {
	ID             uint   `json:"id" gorm:"primaryKey"`
	OrderID        uint   `json:"order_id" gorm:"not null;index"`
	ProductID      uint   `json:"product_id" gorm:"not null;index"`
	ProductName    string `json:"product_name" gorm:"type:varchar(255);not null"`
	Quantity       int    `json:"quantity" gorm:"not null"`
	UnitPriceCents int64  `json:"unit_price_cents" gorm:"not null"`
	LineTotalCents int64  `json:"line_total_cents" gorm:"not null"`
}

// OrderFilter narrows order listings
type OrderFilter struct {
	Status   OrderStatus
	UserID   *uint
	From     *time.Time
	To       *time.Time
	Page     int
	PageSize int
}

// TenantRevenue is one row of the platform revenue ranking
type TenantRevenue struct {
	TenantID     uint   `json:"tenant_id"`
	BusinessName string `json:"business_name"`
	OrderCount   int64  `json:"order_count"`
	RevenueCents int64  `json:"revenue_cents"`
}
