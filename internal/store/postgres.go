package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
)

// PgxPool is the subset of pgxpool.Pool the store needs. Satisfied by
// pgxmock in tests.
type PgxPool interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// PostgresStore persists conversation state in Postgres.
type PostgresStore struct {
	pool PgxPool
}

var _ Store = (*PostgresStore)(nil)

// NewPostgresStore initializes a store backed by pgx.
func NewPostgresStore(pool PgxPool) *PostgresStore {
	if pool == nil {
		panic("store: pgx pool required")
	}
	return &PostgresStore{pool: pool}
}

// isUniqueViolation reports whether err carries Postgres error 23505.
func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == "23505"
}

const customerColumns = `id, shopify_customer_id, phone, COALESCE(email, ''), COALESCE(first_name, ''), COALESCE(last_name, ''), COALESCE(usual_size, ''), COALESCE(height, ''), COALESCE(weight, ''), created_at, updated_at`

func scanCustomer(row pgx.Row) (*Customer, error) {
	var c Customer
	err := row.Scan(
		&c.ID,
		&c.ShopifyCustomerID,
		&c.Phone,
		&c.Email,
		&c.FirstName,
		&c.LastName,
		&c.UsualSize,
		&c.Height,
		&c.Weight,
		&c.CreatedAt,
		&c.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("store: scan customer: %w", err)
	}
	return &c, nil
}

func (s *PostgresStore) CustomerByShopifyID(ctx context.Context, shopifyCustomerID string) (*Customer, error) {
	query := `SELECT ` + customerColumns + ` FROM customers WHERE shopify_customer_id = $1`
	return scanCustomer(s.pool.QueryRow(ctx, query, shopifyCustomerID))
}

func (s *PostgresStore) CustomerByPhone(ctx context.Context, phone string) (*Customer, error) {
	query := `SELECT ` + customerColumns + ` FROM customers WHERE phone = $1`
	return scanCustomer(s.pool.QueryRow(ctx, query, phone))
}

func (s *PostgresStore) CreateCustomer(ctx context.Context, req *CustomerCreate) (*Customer, error) {
	id := uuid.New()
	query := `
		INSERT INTO customers (id, shopify_customer_id, phone, email, first_name, last_name)
		VALUES ($1, $2, $3, NULLIF($4, ''), NULLIF($5, ''), NULLIF($6, ''))
		RETURNING ` + customerColumns
	row := s.pool.QueryRow(ctx, query, id, req.ShopifyCustomerID, req.Phone, req.Email, req.FirstName, req.LastName)
	customer, err := scanCustomer(row)
	if err != nil {
		return nil, fmt.Errorf("store: insert customer: %w", err)
	}
	return customer, nil
}

func (s *PostgresStore) UpdateCustomer(ctx context.Context, id uuid.UUID, upd CustomerUpdate) (*Customer, error) {
	query := `
		UPDATE customers
		SET usual_size = COALESCE($2, usual_size),
			height = COALESCE($3, height),
			weight = COALESCE($4, weight),
			updated_at = now()
		WHERE id = $1
		RETURNING ` + customerColumns
	row := s.pool.QueryRow(ctx, query, id, upd.UsualSize, upd.Height, upd.Weight)
	customer, err := scanCustomer(row)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("store: update customer: %w", err)
	}
	return customer, nil
}

const orderColumns = `id, shopify_order_id, customer_id, order_number, original_size, confirmed_size, product_id, variant_id, line_item_id, product_title, status, size_confirmed, fulfilled, created_at, updated_at`

func scanOrder(row pgx.Row) (*Order, error) {
	var o Order
	err := row.Scan(
		&o.ID,
		&o.ShopifyOrderID,
		&o.CustomerID,
		&o.OrderNumber,
		&o.OriginalSize,
		&o.ConfirmedSize,
		&o.ProductID,
		&o.VariantID,
		&o.LineItemID,
		&o.ProductTitle,
		&o.Status,
		&o.SizeConfirmed,
		&o.Fulfilled,
		&o.CreatedAt,
		&o.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("store: scan order: %w", err)
	}
	return &o, nil
}

func (s *PostgresStore) CreateOrder(ctx context.Context, req *OrderCreate) (*Order, error) {
	id := uuid.New()
	query := `
		INSERT INTO orders (id, shopify_order_id, customer_id, order_number, original_size, product_id, variant_id, line_item_id, product_title, status)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, 'pending')
		RETURNING ` + orderColumns
	row := s.pool.QueryRow(ctx, query,
		id,
		req.ShopifyOrderID,
		req.CustomerID,
		req.OrderNumber,
		req.OriginalSize,
		req.ProductID,
		req.VariantID,
		req.LineItemID,
		req.ProductTitle,
	)
	order, err := scanOrder(row)
	if err != nil {
		if isUniqueViolation(err) {
			return nil, ErrConflict
		}
		return nil, fmt.Errorf("store: insert order: %w", err)
	}
	return order, nil
}

func (s *PostgresStore) UpdateOrder(ctx context.Context, id uuid.UUID, upd OrderUpdate) (*Order, error) {
	query := `
		UPDATE orders
		SET confirmed_size = COALESCE($2, confirmed_size),
			status = COALESCE($3, status),
			size_confirmed = COALESCE($4, size_confirmed),
			fulfilled = COALESCE($5, fulfilled),
			updated_at = now()
		WHERE id = $1
		RETURNING ` + orderColumns
	row := s.pool.QueryRow(ctx, query, id, upd.ConfirmedSize, upd.Status, upd.SizeConfirmed, upd.Fulfilled)
	order, err := scanOrder(row)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("store: update order: %w", err)
	}
	return order, nil
}

func (s *PostgresStore) PendingOrderByCustomer(ctx context.Context, customerID uuid.UUID) (*Order, error) {
	query := `
		SELECT ` + orderColumns + `
		FROM orders
		WHERE customer_id = $1 AND size_confirmed = FALSE
		ORDER BY created_at DESC
		LIMIT 1`
	return scanOrder(s.pool.QueryRow(ctx, query, customerID))
}

const conversationColumns = `id, order_id, phone_number, status, created_at, updated_at`

func scanConversation(row pgx.Row) (*Conversation, error) {
	var c Conversation
	err := row.Scan(&c.ID, &c.OrderID, &c.PhoneNumber, &c.Status, &c.CreatedAt, &c.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("store: scan conversation: %w", err)
	}
	return &c, nil
}

func (s *PostgresStore) CreateConversation(ctx context.Context, req *ConversationCreate) (*Conversation, error) {
	id := uuid.New()
	status := req.Status
	if status == "" {
		status = StatusAwaitingSizeConfirmation
	}
	query := `
		INSERT INTO conversations (id, order_id, phone_number, status)
		VALUES ($1, $2, $3, $4)
		RETURNING ` + conversationColumns
	conv, err := scanConversation(s.pool.QueryRow(ctx, query, id, req.OrderID, req.PhoneNumber, status))
	if err != nil {
		if isUniqueViolation(err) {
			return nil, ErrConflict
		}
		return nil, fmt.Errorf("store: insert conversation: %w", err)
	}
	return conv, nil
}

func (s *PostgresStore) ConversationByPhone(ctx context.Context, phone string) (*Conversation, error) {
	query := `
		SELECT ` + conversationColumns + `
		FROM conversations
		WHERE phone_number = $1
		ORDER BY created_at DESC
		LIMIT 1`
	return scanConversation(s.pool.QueryRow(ctx, query, phone))
}

func (s *PostgresStore) UpdateConversationStatus(ctx context.Context, id uuid.UUID, status ConversationStatus) (*Conversation, error) {
	query := `
		UPDATE conversations
		SET status = $2, updated_at = now()
		WHERE id = $1
		RETURNING ` + conversationColumns
	conv, err := scanConversation(s.pool.QueryRow(ctx, query, id, status))
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("store: update conversation: %w", err)
	}
	return conv, nil
}

const messageColumns = `id, order_id, customer_id, direction, content, media_url, conversation_phase, intent, entities, created_at`

func scanMessage(row pgx.Row) (*Message, error) {
	var (
		m        Message
		entities []byte
	)
	err := row.Scan(
		&m.ID,
		&m.OrderID,
		&m.CustomerID,
		&m.Direction,
		&m.Content,
		&m.MediaURL,
		&m.ConversationPhase,
		&m.Intent,
		&entities,
		&m.CreatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("store: scan message: %w", err)
	}
	if len(entities) > 0 {
		var e Entities
		if err := json.Unmarshal(entities, &e); err != nil {
			return nil, fmt.Errorf("store: decode entities: %w", err)
		}
		m.Entities = &e
	}
	return &m, nil
}

func (s *PostgresStore) CreateMessage(ctx context.Context, req *MessageCreate) (*Message, error) {
	id := uuid.New()

	var entities []byte
	if req.Entities != nil {
		data, err := json.Marshal(req.Entities)
		if err != nil {
			return nil, fmt.Errorf("store: encode entities: %w", err)
		}
		entities = data
	}

	query := `
		INSERT INTO messages (id, order_id, customer_id, direction, content, media_url, conversation_phase, intent, entities)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		RETURNING ` + messageColumns
	row := s.pool.QueryRow(ctx, query,
		id,
		req.OrderID,
		req.CustomerID,
		req.Direction,
		req.Content,
		req.MediaURL,
		req.ConversationPhase,
		req.Intent,
		entities,
	)
	msg, err := scanMessage(row)
	if err != nil {
		return nil, fmt.Errorf("store: insert message: %w", err)
	}
	return msg, nil
}

func (s *PostgresStore) MessagesByOrder(ctx context.Context, orderID uuid.UUID) ([]Message, error) {
	query := `
		SELECT ` + messageColumns + `
		FROM messages
		WHERE order_id = $1
		ORDER BY created_at ASC`
	rows, err := s.pool.Query(ctx, query, orderID)
	if err != nil {
		return nil, fmt.Errorf("store: select messages: %w", err)
	}
	defer rows.Close()

	var out []Message
	for rows.Next() {
		msg, err := scanMessage(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *msg)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("store: iterate messages: %w", err)
	}
	return out, nil
}
