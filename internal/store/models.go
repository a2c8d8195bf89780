package store

import (
	"time"

	"github.com/google/uuid"
)

// Direction of a persisted message.
const (
	DirectionInbound  = "inbound"
	DirectionOutbound = "outbound"
)

// ConversationStatus tracks how far the sizing dialogue has progressed.
type ConversationStatus string

const (
	StatusAwaitingSizeConfirmation           ConversationStatus = "awaiting_size_confirmation"
	StatusAwaitingSizingInfo                 ConversationStatus = "awaiting_sizing_info"
	StatusAwaitingRecommendationConfirmation ConversationStatus = "awaiting_recommendation_confirmation"
	StatusCompleted                          ConversationStatus = "completed"
)

// Customer is a shopper known to the commerce platform.
type Customer struct {
	ID                uuid.UUID `json:"id"`
	ShopifyCustomerID string    `json:"shopify_customer_id"`
	Phone             string    `json:"phone"`
	Email             string    `json:"email"`
	FirstName         string    `json:"first_name"`
	LastName          string    `json:"last_name"`
	UsualSize         string    `json:"usual_size"`
	Height            string    `json:"height"`
	Weight            string    `json:"weight"`
	CreatedAt         time.Time `json:"created_at"`
	UpdatedAt         time.Time `json:"updated_at"`
}

// CustomerCreate carries the fields required to insert a customer.
type CustomerCreate struct {
	ShopifyCustomerID string
	Phone             string
	Email             string
	FirstName         string
	LastName          string
}

// CustomerUpdate applies a partial update. Nil fields are left untouched;
// set fields are last-write-wins.
type CustomerUpdate struct {
	UsualSize *string
	Height    *string
	Weight    *string
}

// Empty reports whether the update would change nothing.
func (u CustomerUpdate) Empty() bool {
	return u.UsualSize == nil && u.Height == nil && u.Weight == nil
}

// Order is a single Shopify order awaiting size confirmation.
type Order struct {
	ID             uuid.UUID `json:"id"`
	ShopifyOrderID string    `json:"shopify_order_id"`
	CustomerID     uuid.UUID `json:"customer_id"`
	OrderNumber    int64     `json:"order_number"`
	OriginalSize   string    `json:"original_size"`
	ConfirmedSize  *string   `json:"confirmed_size"`
	ProductID      string    `json:"product_id"`
	VariantID      string    `json:"variant_id"`
	LineItemID     string    `json:"line_item_id"`
	ProductTitle   string    `json:"product_title"`
	Status         string    `json:"status"`
	SizeConfirmed  bool      `json:"size_confirmed"`
	Fulfilled      bool      `json:"fulfilled"`
	CreatedAt      time.Time `json:"created_at"`
	UpdatedAt      time.Time `json:"updated_at"`
}

// OrderCreate carries the fields required to insert an order.
type OrderCreate struct {
	ShopifyOrderID string
	CustomerID     uuid.UUID
	OrderNumber    int64
	OriginalSize   string
	ProductID      string
	VariantID      string
	LineItemID     string
	ProductTitle   string
}

// OrderUpdate applies a partial update to an order. size_confirmed and
// fulfilled only ever move false -> true through this type.
type OrderUpdate struct {
	ConfirmedSize *string
	Status        *string
	SizeConfirmed *bool
	Fulfilled     *bool
}

// Conversation ties a phone number to the dialogue opened for one order.
type Conversation struct {
	ID          uuid.UUID          `json:"id"`
	OrderID     uuid.UUID          `json:"order_id"`
	PhoneNumber string             `json:"phone_number"`
	Status      ConversationStatus `json:"status"`
	CreatedAt   time.Time          `json:"created_at"`
	UpdatedAt   time.Time          `json:"updated_at"`
}

// ConversationCreate carries the fields required to open a conversation.
type ConversationCreate struct {
	OrderID     uuid.UUID
	PhoneNumber string
	Status      ConversationStatus
}

// Entities holds the structured facts the classifier extracted from a
// customer message.
type Entities struct {
	UsualSize     string `json:"usual_size,omitempty"`
	Height        string `json:"height,omitempty"`
	Weight        string `json:"weight,omitempty"`
	PreferredSize string `json:"preferred_size,omitempty"`
}

// Empty reports whether no entity was extracted.
func (e Entities) Empty() bool {
	return e == Entities{}
}

// Message is one immutable transcript entry for an order.
type Message struct {
	ID                uuid.UUID `json:"id"`
	OrderID           uuid.UUID `json:"order_id"`
	CustomerID        uuid.UUID `json:"customer_id"`
	Direction         string    `json:"direction"`
	Content           string    `json:"content"`
	MediaURL          *string   `json:"media_url,omitempty"`
	ConversationPhase string    `json:"conversation_phase"`
	Intent            *string   `json:"intent,omitempty"`
	Entities          *Entities `json:"entities,omitempty"`
	CreatedAt         time.Time `json:"created_at"`
}

// MessageCreate carries the fields required to append a transcript entry.
type MessageCreate struct {
	OrderID           uuid.UUID
	CustomerID        uuid.UUID
	Direction         string
	Content           string
	MediaURL          *string
	ConversationPhase string
	Intent            *string
	Entities          *Entities
}
