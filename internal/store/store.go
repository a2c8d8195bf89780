package store

import (
	"context"
	"errors"

	"github.com/google/uuid"
)

// ErrNotFound is returned when a requested entity does not exist.
var ErrNotFound = errors.New("store: not found")

// ErrConflict is returned when an insert collides with a uniqueness rule:
// one order per Shopify order ID, one conversation per order.
var ErrConflict = errors.New("store: already exists")

// Store is the persistence gateway the conversation engine depends on.
type Store interface {
	CustomerByShopifyID(ctx context.Context, shopifyCustomerID string) (*Customer, error)
	CustomerByPhone(ctx context.Context, phone string) (*Customer, error)
	CreateCustomer(ctx context.Context, req *CustomerCreate) (*Customer, error)
	UpdateCustomer(ctx context.Context, id uuid.UUID, upd CustomerUpdate) (*Customer, error)

	CreateOrder(ctx context.Context, req *OrderCreate) (*Order, error)
	UpdateOrder(ctx context.Context, id uuid.UUID, upd OrderUpdate) (*Order, error)
	// PendingOrderByCustomer returns the most recently created order for the
	// customer whose size is still unconfirmed.
	PendingOrderByCustomer(ctx context.Context, customerID uuid.UUID) (*Order, error)

	CreateConversation(ctx context.Context, req *ConversationCreate) (*Conversation, error)
	// ConversationByPhone returns the most recently opened conversation for
	// the phone number.
	ConversationByPhone(ctx context.Context, phone string) (*Conversation, error)
	UpdateConversationStatus(ctx context.Context, id uuid.UUID, status ConversationStatus) (*Conversation, error)

	CreateMessage(ctx context.Context, req *MessageCreate) (*Message, error)
	// MessagesByOrder returns the order's transcript in creation order.
	MessagesByOrder(ctx context.Context, orderID uuid.UUID) ([]Message, error)
}
