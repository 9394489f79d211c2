package model

import "time"

type CartStatus string

const (
	CartStatusActive    CartStatus = "active"
	CartStatusConverted CartStatus = "converted"
	CartStatusAbandoned CartStatus = "abandoned"
)

// MaxItemQuantity bounds a single cart line
const MaxItemQuantity = 99

// Cart holds a storefront session's selections. A session has at most one active cart per tenant.
type Cart struct {
	ID        uint       `json:"id" gorm:"primaryKey"`
	TenantID  uint       `json:"tenant_id" gorm:"not null;index:idx_carts_active_session,unique,where:status = 'active'"`
	SessionID string     `json:"session_id" gorm:"type:varchar(64);not null;index:idx_carts_active_session,unique,where:status = 'active'"`
	UserID    *uint      `json:"user_id,omitempty" gorm:"index"`
	Status    CartStatus `json:"status" gorm:"type:varchar(20);not null;index"`
	Items     []CartItem `json:"items" gorm:"foreignKey:CartID"`
	CreatedAt time.Time  `json:"created_at"`
	UpdatedAt time.Time  `json:"updated_at"`
}

// CartItem is one product line of a cart
type CartItem struct {
	ID             uint      `json:"id" gorm:"primaryKey"`
	CartID         uint      `json:"cart_id" gorm:"not null;uniqueIndex:idx_cart_items_cart_product"`
	ProductID      uint      `json:"product_id" gorm:"not null;uniqueIndex:idx_cart_items_cart_product"`
	Quantity       int       `json:"quantity" gorm:"not null"`
	UnitPriceCents int64     `json:"unit_price_cents" gorm:"not null"`
	Product        *Product  `json:"product,omitempty" gorm:"foreignKey:ProductID"`
	CreatedAt      time.Time `json:"created_at"`
	UpdatedAt      time.Time `json:"updated_at"`
}

// LineTotal is quantity times the snapshotted unit price
func (i CartItem) LineTotal() int64 {
	return int64(i.Quantity) * i.UnitPriceCents
}

// CartView is the response shape of a cart with computed totals
type CartView struct {
	ID            uint       `json:"id"`
	SessionID     string     `json:"session_id"`
	Items         []CartItem `json:"items"`
	ItemCount     int        `json:"item_count"`
	SubtotalCents int64      `json:"subtotal_cents"`
}

// View computes totals over the cart items
func (c *Cart) View() CartView {
	view := CartView{ID: c.ID, SessionID: c.SessionID, Items: c.Items}
	if view.Items == nil {
		view.Items = []CartItem{}
	}
	for _, item := range c.Items {
		view.ItemCount += item.Quantity
		view.SubtotalCents += item.LineTotal()
	}
	return view
}
