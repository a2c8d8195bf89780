package store

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
)

// MemoryStore is an in-memory Store used for development and tests.
type MemoryStore struct {
	mu            sync.RWMutex
	customers     map[uuid.UUID]*Customer
	orders        []*Order
	conversations []*Conversation
	messages      []*Message
}

var _ Store = (*MemoryStore)(nil)

// NewMemoryStore creates an empty in-memory store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		customers: make(map[uuid.UUID]*Customer),
	}
}

func (s *MemoryStore) CustomerByShopifyID(ctx context.Context, shopifyCustomerID string) (*Customer, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, c := range s.customers {
		if c.ShopifyCustomerID == shopifyCustomerID {
			cp := *c
			return &cp, nil
		}
	}
	return nil, ErrNotFound
}

func (s *MemoryStore) CustomerByPhone(ctx context.Context, phone string) (*Customer, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, c := range s.customers {
		if c.Phone == phone {
			cp := *c
			return &cp, nil
		}
	}
	return nil, ErrNotFound
}

func (s *MemoryStore) CreateCustomer(ctx context.Context, req *CustomerCreate) (*Customer, error) {
	now := time.Now().UTC()
	customer := &Customer{
		ID:                uuid.New(),
		ShopifyCustomerID: req.ShopifyCustomerID,
		Phone:             req.Phone,
		Email:             req.Email,
		FirstName:         req.FirstName,
		LastName:          req.LastName,
		CreatedAt:         now,
		UpdatedAt:         now,
	}

	s.mu.Lock()
	s.customers[customer.ID] = customer
	s.mu.Unlock()

	cp := *customer
	return &cp, nil
}

func (s *MemoryStore) UpdateCustomer(ctx context.Context, id uuid.UUID, upd CustomerUpdate) (*Customer, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	customer, ok := s.customers[id]
	if !ok {
		return nil, ErrNotFound
	}
	if upd.UsualSize != nil {
		customer.UsualSize = *upd.UsualSize
	}
	if upd.Height != nil {
		customer.Height = *upd.Height
	}
	if upd.Weight != nil {
		customer.Weight = *upd.Weight
	}
	customer.UpdatedAt = time.Now().UTC()

	cp := *customer
	return &cp, nil
}

func (s *MemoryStore) CreateOrder(ctx context.Context, req *OrderCreate) (*Order, error) {
	now := time.Now().UTC()
	order := &Order{
		ID:             uuid.New(),
		ShopifyOrderID: req.ShopifyOrderID,
		CustomerID:     req.CustomerID,
		OrderNumber:    req.OrderNumber,
		OriginalSize:   req.OriginalSize,
		ProductID:      req.ProductID,
		VariantID:      req.VariantID,
		LineItemID:     req.LineItemID,
		ProductTitle:   req.ProductTitle,
		Status:         "pending",
		CreatedAt:      now,
		UpdatedAt:      now,
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	for _, existing := range s.orders {
		if existing.ShopifyOrderID == req.ShopifyOrderID {
			return nil, ErrConflict
		}
	}
	s.orders = append(s.orders, order)

	cp := *order
	return &cp, nil
}

func (s *MemoryStore) UpdateOrder(ctx context.Context, id uuid.UUID, upd OrderUpdate) (*Order, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, order := range s.orders {
		if order.ID != id {
			continue
		}
		if upd.ConfirmedSize != nil {
			size := *upd.ConfirmedSize
			order.ConfirmedSize = &size
		}
		if upd.Status != nil {
			order.Status = *upd.Status
		}
		if upd.SizeConfirmed != nil {
			order.SizeConfirmed = *upd.SizeConfirmed
		}
		if upd.Fulfilled != nil {
			order.Fulfilled = *upd.Fulfilled
		}
		order.UpdatedAt = time.Now().UTC()

		cp := *order
		return &cp, nil
	}
	return nil, ErrNotFound
}

func (s *MemoryStore) PendingOrderByCustomer(ctx context.Context, customerID uuid.UUID) (*Order, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	// Most recent first; orders are appended in creation order.
	for i := len(s.orders) - 1; i >= 0; i-- {
		order := s.orders[i]
		if order.CustomerID == customerID && !order.SizeConfirmed {
			cp := *order
			return &cp, nil
		}
	}
	return nil, ErrNotFound
}

func (s *MemoryStore) CreateConversation(ctx context.Context, req *ConversationCreate) (*Conversation, error) {
	now := time.Now().UTC()
	status := req.Status
	if status == "" {
		status = StatusAwaitingSizeConfirmation
	}
	conv := &Conversation{
		ID:          uuid.New(),
		OrderID:     req.OrderID,
		PhoneNumber: req.PhoneNumber,
		Status:      status,
		CreatedAt:   now,
		UpdatedAt:   now,
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	for _, existing := range s.conversations {
		if existing.OrderID == req.OrderID {
			return nil, ErrConflict
		}
	}
	s.conversations = append(s.conversations, conv)

	cp := *conv
	return &cp, nil
}

func (s *MemoryStore) ConversationByPhone(ctx context.Context, phone string) (*Conversation, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	for i := len(s.conversations) - 1; i >= 0; i-- {
		if s.conversations[i].PhoneNumber == phone {
			cp := *s.conversations[i]
			return &cp, nil
		}
	}
	return nil, ErrNotFound
}

func (s *MemoryStore) UpdateConversationStatus(ctx context.Context, id uuid.UUID, status ConversationStatus) (*Conversation, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, conv := range s.conversations {
		if conv.ID == id {
			conv.Status = status
			conv.UpdatedAt = time.Now().UTC()
			cp := *conv
			return &cp, nil
		}
	}
	return nil, ErrNotFound
}

func (s *MemoryStore) CreateMessage(ctx context.Context, req *MessageCreate) (*Message, error) {
	msg := &Message{
		ID:                uuid.New(),
		OrderID:           req.OrderID,
		CustomerID:        req.CustomerID,
		Direction:         req.Direction,
		Content:           req.Content,
		MediaURL:          req.MediaURL,
		ConversationPhase: req.ConversationPhase,
		Intent:            req.Intent,
		Entities:          req.Entities,
		CreatedAt:         time.Now().UTC(),
	}

	s.mu.Lock()
	s.messages = append(s.messages, msg)
	s.mu.Unlock()

	cp := *msg
	return &cp, nil
}

func (s *MemoryStore) MessagesByOrder(ctx context.Context, orderID uuid.UUID) ([]Message, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []Message
	for _, msg := range s.messages {
		if msg.OrderID == orderID {
			out = append(out, *msg)
		}
	}
	return out, nil
}
