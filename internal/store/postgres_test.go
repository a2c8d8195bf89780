package store

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	pgxmock "github.com/pashagolub/pgxmock/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var customerColumnNames = []string{
	"id", "shopify_customer_id", "phone", "email", "first_name", "last_name",
	"usual_size", "height", "weight", "created_at", "updated_at",
}

var orderColumnNames = []string{
	"id", "shopify_order_id", "customer_id", "order_number", "original_size",
	"confirmed_size", "product_id", "variant_id", "line_item_id", "product_title",
	"status", "size_confirmed", "fulfilled", "created_at", "updated_at",
}

var messageColumnNames = []string{
	"id", "order_id", "customer_id", "direction", "content", "media_url",
	"conversation_phase", "intent", "entities", "created_at",
}

func newMockStore(t *testing.T) (*PostgresStore, pgxmock.PgxPoolIface) {
	t.Helper()
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	t.Cleanup(mock.Close)
	return NewPostgresStore(mock), mock
}

func TestPostgresCustomerByPhone(t *testing.T) {
	s, mock := newMockStore(t)
	id := uuid.New()
	now := time.Now()

	mock.ExpectQuery("SELECT .+ FROM customers WHERE phone").
		WithArgs("+15551234567").
		WillReturnRows(pgxmock.NewRows(customerColumnNames).
			AddRow(id, "shopify-1", "+15551234567", "jane@example.com", "Jane", "Doe", "M", "", "", now, now))

	c, err := s.CustomerByPhone(context.Background(), "+15551234567")
	require.NoError(t, err)
	assert.Equal(t, id, c.ID)
	assert.Equal(t, "M", c.UsualSize)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresCustomerNotFound(t *testing.T) {
	s, mock := newMockStore(t)

	mock.ExpectQuery("SELECT .+ FROM customers WHERE shopify_customer_id").
		WithArgs("missing").
		WillReturnError(pgx.ErrNoRows)

	_, err := s.CustomerByShopifyID(context.Background(), "missing")
	assert.ErrorIs(t, err, ErrNotFound)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresCreateCustomer(t *testing.T) {
	s, mock := newMockStore(t)
	now := time.Now()

	mock.ExpectQuery("INSERT INTO customers").
		WithArgs(pgxmock.AnyArg(), "shopify-1", "+15551234567", "jane@example.com", "Jane", "Doe").
		WillReturnRows(pgxmock.NewRows(customerColumnNames).
			AddRow(uuid.New(), "shopify-1", "+15551234567", "jane@example.com", "Jane", "Doe", "", "", "", now, now))

	c, err := s.CreateCustomer(context.Background(), &CustomerCreate{
		ShopifyCustomerID: "shopify-1",
		Phone:             "+15551234567",
		Email:             "jane@example.com",
		FirstName:         "Jane",
		LastName:          "Doe",
	})
	require.NoError(t, err)
	assert.Equal(t, "shopify-1", c.ShopifyCustomerID)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresUpdateCustomerPassesNilForUnsetFields(t *testing.T) {
	s, mock := newMockStore(t)
	id := uuid.New()
	now := time.Now()
	height := "180cm"

	mock.ExpectQuery("UPDATE customers").
		WithArgs(id, (*string)(nil), &height, (*string)(nil)).
		WillReturnRows(pgxmock.NewRows(customerColumnNames).
			AddRow(id, "shopify-1", "+15551234567", "", "", "", "", "180cm", "", now, now))

	c, err := s.UpdateCustomer(context.Background(), id, CustomerUpdate{Height: &height})
	require.NoError(t, err)
	assert.Equal(t, "180cm", c.Height)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresCreateOrder(t *testing.T) {
	s, mock := newMockStore(t)
	customerID := uuid.New()
	now := time.Now()

	mock.ExpectQuery("INSERT INTO orders").
		WithArgs(pgxmock.AnyArg(), "o-1", customerID, int64(1001), "M", "p-1", "v-1", "li-1", "Linen Shirt").
		WillReturnRows(pgxmock.NewRows(orderColumnNames).
			AddRow(uuid.New(), "o-1", customerID, int64(1001), "M", nil, "p-1", "v-1", "li-1", "Linen Shirt",
				"pending", false, false, now, now))

	o, err := s.CreateOrder(context.Background(), &OrderCreate{
		ShopifyOrderID: "o-1",
		CustomerID:     customerID,
		OrderNumber:    1001,
		OriginalSize:   "M",
		ProductID:      "p-1",
		VariantID:      "v-1",
		LineItemID:     "li-1",
		ProductTitle:   "Linen Shirt",
	})
	require.NoError(t, err)
	assert.Equal(t, "pending", o.Status)
	assert.Nil(t, o.ConfirmedSize)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresPendingOrderByCustomer(t *testing.T) {
	s, mock := newMockStore(t)
	customerID := uuid.New()
	orderID := uuid.New()
	now := time.Now()

	mock.ExpectQuery("SELECT .+ FROM orders").
		WithArgs(customerID).
		WillReturnRows(pgxmock.NewRows(orderColumnNames).
			AddRow(orderID, "o-1", customerID, int64(1001), "M", nil, "p-1", "v-1", "li-1", "Linen Shirt",
				"pending", false, false, now, now))

	o, err := s.PendingOrderByCustomer(context.Background(), customerID)
	require.NoError(t, err)
	assert.Equal(t, orderID, o.ID)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresPendingOrderNotFound(t *testing.T) {
	s, mock := newMockStore(t)
	customerID := uuid.New()

	mock.ExpectQuery("SELECT .+ FROM orders").
		WithArgs(customerID).
		WillReturnError(pgx.ErrNoRows)

	_, err := s.PendingOrderByCustomer(context.Background(), customerID)
	assert.ErrorIs(t, err, ErrNotFound)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresUpdateOrder(t *testing.T) {
	s, mock := newMockStore(t)
	orderID := uuid.New()
	now := time.Now()
	size := "L"
	status := "confirmed"
	confirmed := true

	mock.ExpectQuery("UPDATE orders").
		WithArgs(orderID, &size, &status, &confirmed, (*bool)(nil)).
		WillReturnRows(pgxmock.NewRows(orderColumnNames).
			AddRow(orderID, "o-1", uuid.New(), int64(1001), "M", &size, "p-1", "v-1", "li-1", "Linen Shirt",
				"confirmed", true, false, now, now))

	o, err := s.UpdateOrder(context.Background(), orderID, OrderUpdate{
		ConfirmedSize: &size,
		Status:        &status,
		SizeConfirmed: &confirmed,
	})
	require.NoError(t, err)
	assert.True(t, o.SizeConfirmed)
	require.NotNil(t, o.ConfirmedSize)
	assert.Equal(t, "L", *o.ConfirmedSize)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresCreateConversationDefaultsStatus(t *testing.T) {
	s, mock := newMockStore(t)
	orderID := uuid.New()
	now := time.Now()

	mock.ExpectQuery("INSERT INTO conversations").
		WithArgs(pgxmock.AnyArg(), orderID, "+15551234567", StatusAwaitingSizeConfirmation).
		WillReturnRows(pgxmock.NewRows([]string{"id", "order_id", "phone_number", "status", "created_at", "updated_at"}).
			AddRow(uuid.New(), orderID, "+15551234567", StatusAwaitingSizeConfirmation, now, now))

	conv, err := s.CreateConversation(context.Background(), &ConversationCreate{
		OrderID:     orderID,
		PhoneNumber: "+15551234567",
	})
	require.NoError(t, err)
	assert.Equal(t, StatusAwaitingSizeConfirmation, conv.Status)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresCreateConversationMapsUniqueViolation(t *testing.T) {
	s, mock := newMockStore(t)
	orderID := uuid.New()

	mock.ExpectQuery("INSERT INTO conversations").
		WithArgs(pgxmock.AnyArg(), orderID, "+15551234567", StatusAwaitingSizeConfirmation).
		WillReturnError(&pgconn.PgError{Code: "23505", ConstraintName: "conversations_order_id_key"})

	_, err := s.CreateConversation(context.Background(), &ConversationCreate{
		OrderID:     orderID,
		PhoneNumber: "+15551234567",
	})
	assert.ErrorIs(t, err, ErrConflict)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresCreateMessageEncodesEntities(t *testing.T) {
	s, mock := newMockStore(t)
	orderID := uuid.New()
	customerID := uuid.New()
	now := time.Now()
	intent := "PROVIDE_INFO"
	entities := &Entities{Height: "180cm", Weight: "75kg"}
	entitiesJSON := []byte(`{"height":"180cm","weight":"75kg"}`)

	mock.ExpectQuery("INSERT INTO messages").
		WithArgs(pgxmock.AnyArg(), orderID, customerID, DirectionInbound, "I'm 180cm and 75kg",
			(*string)(nil), "SIZING_QUESTIONS", &intent, pgxmock.AnyArg()).
		WillReturnRows(pgxmock.NewRows(messageColumnNames).
			AddRow(uuid.New(), orderID, customerID, DirectionInbound, "I'm 180cm and 75kg",
				nil, "SIZING_QUESTIONS", &intent, entitiesJSON, now))

	msg, err := s.CreateMessage(context.Background(), &MessageCreate{
		OrderID:           orderID,
		CustomerID:        customerID,
		Direction:         DirectionInbound,
		Content:           "I'm 180cm and 75kg",
		ConversationPhase: "SIZING_QUESTIONS",
		Intent:            &intent,
		Entities:          entities,
	})
	require.NoError(t, err)
	require.NotNil(t, msg.Entities)
	assert.Equal(t, "180cm", msg.Entities.Height)
	assert.Equal(t, "75kg", msg.Entities.Weight)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresMessagesByOrder(t *testing.T) {
	s, mock := newMockStore(t)
	orderID := uuid.New()
	customerID := uuid.New()
	now := time.Now()

	mock.ExpectQuery("SELECT .+ FROM messages").
		WithArgs(orderID).
		WillReturnRows(pgxmock.NewRows(messageColumnNames).
			AddRow(uuid.New(), orderID, customerID, DirectionOutbound, "Is M right?", nil, "CONFIRMATION", nil, nil, now).
			AddRow(uuid.New(), orderID, customerID, DirectionInbound, "yes", nil, "CONFIRMATION", nil, nil, now))

	msgs, err := s.MessagesByOrder(context.Background(), orderID)
	require.NoError(t, err)
	require.Len(t, msgs, 2)
	assert.Equal(t, "Is M right?", msgs[0].Content)
	assert.Nil(t, msgs[0].Entities)
	require.NoError(t, mock.ExpectationsWereMet())
}
