package database

import (
	"context"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"
)

const orderColumns = `id, order_number, order_type, status, buyer_id, anonymous_email, event_id,
	total_price, contact_name, contact_phone, delivery_address, delivery_city,
	delivery_postal_code, notes, payment_method, is_paid, is_delivered, created_at, updated_at`

func scanOrder(row pgx.Row) (Order, error) {
	var i Order
	err := row.Scan(
		&i.ID,
		&i.OrderNumber,
		&i.OrderType,
		&i.Status,
		&i.BuyerID,
		&i.AnonymousEmail,
		&i.EventID,
		&i.TotalPrice,
		&i.ContactName,
		&i.ContactPhone,
		&i.DeliveryAddress,
		&i.DeliveryCity,
		&i.DeliveryPostalCode,
		&i.Notes,
		&i.PaymentMethod,
		&i.IsPaid,
		&i.IsDelivered,
		&i.CreatedAt,
		&i.UpdatedAt,
	)
	return i, err
}

const createOrder = `-- name: CreateOrder :one
INSERT INTO orders (
    order_number, order_type, buyer_id, anonymous_email, event_id, total_price,
    contact_name, contact_phone, delivery_address, delivery_city,
    delivery_postal_code, notes, payment_method
) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13)
RETURNING ` + orderColumns

type CreateOrderParams struct {
	OrderNumber        string         `json:"order_number"`
	OrderType          string         `json:"order_type"`
	BuyerID            pgtype.Int8    `json:"buyer_id"`
	AnonymousEmail     pgtype.Text    `json:"anonymous_email"`
	EventID            pgtype.Int8    `json:"event_id"`
	TotalPrice         pgtype.Numeric `json:"total_price"`
	ContactName        string         `json:"contact_name"`
	ContactPhone       pgtype.Text    `json:"contact_phone"`
	DeliveryAddress    string         `json:"delivery_address"`
	DeliveryCity       string         `json:"delivery_city"`
	DeliveryPostalCode pgtype.Text    `json:"delivery_postal_code"`
	Notes              pgtype.Text    `json:"notes"`
	PaymentMethod      string         `json:"payment_method"`
}

func (q *Queries) CreateOrder(ctx context.Context, arg CreateOrderParams) (Order, error) {
	row := q.db.QueryRow(ctx, createOrder,
		arg.OrderNumber,
		arg.OrderType,
		arg.BuyerID,
		arg.AnonymousEmail,
		arg.EventID,
		arg.TotalPrice,
		arg.ContactName,
		arg.ContactPhone,
		arg.DeliveryAddress,
		arg.DeliveryCity,
		arg.DeliveryPostalCode,
		arg.Notes,
		arg.PaymentMethod,
	)
	return scanOrder(row)
}

const getOrderForUpdate = `-- name: GetOrderForUpdate :one
SELECT ` + orderColumns + ` FROM orders WHERE id = $1 FOR UPDATE`

// GetOrderForUpdate locks the order row until the surrounding transaction ends.
func (q *Queries) GetOrderForUpdate(ctx context.Context, id int64) (Order, error) {
	return scanOrder(q.db.QueryRow(ctx, getOrderForUpdate, id))
}

const getOrderByNumber = `-- name: GetOrderByNumber :one
SELECT o.id, o.order_number, o.order_type, o.status, o.buyer_id, o.anonymous_email, o.event_id,
       o.total_price, o.contact_name, o.contact_phone, o.delivery_address, o.delivery_city,
       o.delivery_postal_code, o.notes, o.payment_method, o.is_paid, o.is_delivered,
       o.created_at, o.updated_at,
       COALESCE(u.email, o.anonymous_email) AS buyer_email
FROM orders o
LEFT JOIN users u ON u.id = o.buyer_id
WHERE o.order_number = $1`

type GetOrderByNumberRow struct {
	Order      Order       `json:"order"`
	BuyerEmail pgtype.Text `json:"buyer_email"`
}

func (q *Queries) GetOrderByNumber(ctx context.Context, orderNumber string) (GetOrderByNumberRow, error) {
	row := q.db.QueryRow(ctx, getOrderByNumber, orderNumber)
	var i GetOrderByNumberRow
	err := row.Scan(
		&i.Order.ID,
		&i.Order.OrderNumber,
		&i.Order.OrderType,
		&i.Order.Status,
		&i.Order.BuyerID,
		&i.Order.AnonymousEmail,
		&i.Order.EventID,
		&i.Order.TotalPrice,
		&i.Order.ContactName,
		&i.Order.ContactPhone,
		&i.Order.DeliveryAddress,
		&i.Order.DeliveryCity,
		&i.Order.DeliveryPostalCode,
		&i.Order.Notes,
		&i.Order.PaymentMethod,
		&i.Order.IsPaid,
		&i.Order.IsDelivered,
		&i.Order.CreatedAt,
		&i.Order.UpdatedAt,
		&i.BuyerEmail,
	)
	return i, err
}

const listOrdersByBuyer = `-- name: ListOrdersByBuyer :many
SELECT ` + orderColumns + ` FROM orders
WHERE buyer_id = $1
ORDER BY created_at DESC, id DESC
LIMIT $2 OFFSET $3`

type ListOrdersByBuyerParams struct {
	BuyerID int64 `json:"buyer_id"`
	Limit   int32 `json:"limit"`
	Offset  int32 `json:"offset"`
}

func (q *Queries) ListOrdersByBuyer(ctx context.Context, arg ListOrdersByBuyerParams) ([]Order, error) {
	rows, err := q.db.Query(ctx, listOrdersByBuyer, arg.BuyerID, arg.Limit, arg.Offset)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	items := []Order{}
	for rows.Next() {
		i, err := scanOrder(rows)
		if err != nil {
			return nil, err
		}
		items = append(items, i)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return items, nil
}

const updateOrderStatus = `-- name: UpdateOrderStatus :one
UPDATE orders SET status = $2, updated_at = now()
WHERE id = $1
RETURNING ` + orderColumns

type UpdateOrderStatusParams struct {
	ID     int64  `json:"id"`
	Status string `json:"status"`
}

func (q *Queries) UpdateOrderStatus(ctx context.Context, arg UpdateOrderStatusParams) (Order, error) {
	return scanOrder(q.db.QueryRow(ctx, updateOrderStatus, arg.ID, arg.Status))
}

const recomputeOrderTotal = `-- name: RecomputeOrderTotal :one
UPDATE orders SET
    total_price = COALESCE((
        SELECT SUM(oi.unit_price * oi.quantity)
        FROM order_items oi
        WHERE oi.order_id = orders.id AND oi.status = 'ACTIVE'
    ), 0),
    updated_at = now()
WHERE id = $1
RETURNING ` + orderColumns

// RecomputeOrderTotal derives total_price from the order's ACTIVE items.
func (q *Queries) RecomputeOrderTotal(ctx context.Context, id int64) (Order, error) {
	return scanOrder(q.db.QueryRow(ctx, recomputeOrderTotal, id))
}

const orderItemColumns = `id, order_id, listing_id, product_id, farmer_id, quantity, unit_price,
	product_name, seller_name, status, created_at, updated_at`

func scanOrderItem(row pgx.Row) (OrderItem, error) {
	var i OrderItem
	err := row.Scan(
		&i.ID,
		&i.OrderID,
		&i.ListingID,
		&i.ProductID,
		&i.FarmerID,
		&i.Quantity,
		&i.UnitPrice,
		&i.ProductName,
		&i.SellerName,
		&i.Status,
		&i.CreatedAt,
		&i.UpdatedAt,
	)
	return i, err
}

const createOrderItem = `-- name: CreateOrderItem :one
INSERT INTO order_items (
    order_id, listing_id, product_id, farmer_id, quantity, unit_price, product_name, seller_name
) VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
RETURNING ` + orderItemColumns

type CreateOrderItemParams struct {
	OrderID     int64          `json:"order_id"`
	ListingID   int64          `json:"listing_id"`
	ProductID   int64          `json:"product_id"`
	FarmerID    pgtype.Int8    `json:"farmer_id"`
	Quantity    int32          `json:"quantity"`
	UnitPrice   pgtype.Numeric `json:"unit_price"`
	ProductName string         `json:"product_name"`
	SellerName  string         `json:"seller_name"`
}

func (q *Queries) CreateOrderItem(ctx context.Context, arg CreateOrderItemParams) (OrderItem, error) {
	row := q.db.QueryRow(ctx, createOrderItem,
		arg.OrderID,
		arg.ListingID,
		arg.ProductID,
		arg.FarmerID,
		arg.Quantity,
		arg.UnitPrice,
		arg.ProductName,
		arg.SellerName,
	)
	return scanOrderItem(row)
}

const getOrderItem = `-- name: GetOrderItem :one
SELECT ` + orderItemColumns + ` FROM order_items WHERE id = $1`

func (q *Queries) GetOrderItem(ctx context.Context, id int64) (OrderItem, error) {
	return scanOrderItem(q.db.QueryRow(ctx, getOrderItem, id))
}

const getOrderItemForUpdate = `-- name: GetOrderItemForUpdate :one
SELECT ` + orderItemColumns + ` FROM order_items WHERE id = $1 FOR UPDATE`

func (q *Queries) GetOrderItemForUpdate(ctx context.Context, id int64) (OrderItem, error) {
	return scanOrderItem(q.db.QueryRow(ctx, getOrderItemForUpdate, id))
}

const listOrderItemsByOrder = `-- name: ListOrderItemsByOrder :many
SELECT ` + orderItemColumns + ` FROM order_items WHERE order_id = $1 ORDER BY id`

func (q *Queries) ListOrderItemsByOrder(ctx context.Context, orderID int64) ([]OrderItem, error) {
	rows, err := q.db.Query(ctx, listOrderItemsByOrder, orderID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	items := []OrderItem{}
	for rows.Next() {
		i, err := scanOrderItem(rows)
		if err != nil {
			return nil, err
		}
		items = append(items, i)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return items, nil
}

const cancelOrderItem = `-- name: CancelOrderItem :one
UPDATE order_items SET status = 'CANCELED', updated_at = now()
WHERE id = $1 AND status = 'ACTIVE'
RETURNING ` + orderItemColumns

// CancelOrderItem returns pgx.ErrNoRows when the item is not ACTIVE.
func (q *Queries) CancelOrderItem(ctx context.Context, id int64) (OrderItem, error) {
	return scanOrderItem(q.db.QueryRow(ctx, cancelOrderItem, id))
}

const cancelOrderItemsByOrder = `-- name: CancelOrderItemsByOrder :execrows
UPDATE order_items SET status = 'CANCELED', updated_at = now()
WHERE order_id = $1 AND status <> 'CANCELED'`

func (q *Queries) CancelOrderItemsByOrder(ctx context.Context, orderID int64) (int64, error) {
	result, err := q.db.Exec(ctx, cancelOrderItemsByOrder, orderID)
	if err != nil {
		return 0, err
	}
	return result.RowsAffected(), nil
}

const countActiveOrderItems = `-- name: CountActiveOrderItems :one
SELECT COUNT(*) FROM order_items WHERE order_id = $1 AND status = 'ACTIVE'`

func (q *Queries) CountActiveOrderItems(ctx context.Context, orderID int64) (int64, error) {
	var count int64
	err := q.db.QueryRow(ctx, countActiveOrderItems, orderID).Scan(&count)
	return count, err
}

const createOrderHistory = `-- name: CreateOrderHistory :one
INSERT INTO order_history (order_id, user_id, action, message)
VALUES ($1, $2, $3, $4)
RETURNING id, order_id, user_id, action, message, created_at`

type CreateOrderHistoryParams struct {
	OrderID int64       `json:"order_id"`
	UserID  pgtype.Int8 `json:"user_id"`
	Action  string      `json:"action"`
	Message string      `json:"message"`
}

func (q *Queries) CreateOrderHistory(ctx context.Context, arg CreateOrderHistoryParams) (OrderHistory, error) {
	row := q.db.QueryRow(ctx, createOrderHistory, arg.OrderID, arg.UserID, arg.Action, arg.Message)
	var i OrderHistory
	err := row.Scan(&i.ID, &i.OrderID, &i.UserID, &i.Action, &i.Message, &i.CreatedAt)
	return i, err
}

const listOrderHistory = `-- name: ListOrderHistory :many
SELECT id, order_id, user_id, action, message, created_at
FROM order_history WHERE order_id = $1 ORDER BY created_at, id`

func (q *Queries) ListOrderHistory(ctx context.Context, orderID int64) ([]OrderHistory, error) {
	rows, err := q.db.Query(ctx, listOrderHistory, orderID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	items := []OrderHistory{}
	for rows.Next() {
		var i OrderHistory
		if err := rows.Scan(&i.ID, &i.OrderID, &i.UserID, &i.Action, &i.Message, &i.CreatedAt); err != nil {
			return nil, err
		}
		items = append(items, i)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return items, nil
}

const listFarmerOrderItems = `-- name: ListFarmerOrderItems :many
SELECT oi.id, oi.order_id, o.order_number, o.order_type, o.status, oi.product_name,
       oi.quantity, oi.unit_price, oi.status, o.contact_name,
       COALESCE(u.email, o.anonymous_email) AS buyer_email, oi.created_at
FROM order_items oi
JOIN orders o ON o.id = oi.order_id
LEFT JOIN users u ON u.id = o.buyer_id
WHERE oi.farmer_id = $1
  AND ($2::text IS NULL OR oi.status = $2)
ORDER BY oi.created_at DESC, oi.id DESC
LIMIT $3 OFFSET $4`

type ListFarmerOrderItemsParams struct {
	FarmerID int64       `json:"farmer_id"`
	Status   pgtype.Text `json:"status"`
	Limit    int32       `json:"limit"`
	Offset   int32       `json:"offset"`
}

type ListFarmerOrderItemsRow struct {
	ID          int64          `json:"id"`
	OrderID     int64          `json:"order_id"`
	OrderNumber string         `json:"order_number"`
	OrderType   string         `json:"order_type"`
	OrderStatus string         `json:"order_status"`
	ProductName string         `json:"product_name"`
	Quantity    int32          `json:"quantity"`
	UnitPrice   pgtype.Numeric `json:"unit_price"`
	Status      string         `json:"status"`
	ContactName string         `json:"contact_name"`
	BuyerEmail  pgtype.Text    `json:"buyer_email"`
	CreatedAt   time.Time      `json:"created_at"`
}

func (q *Queries) ListFarmerOrderItems(ctx context.Context, arg ListFarmerOrderItemsParams) ([]ListFarmerOrderItemsRow, error) {
	rows, err := q.db.Query(ctx, listFarmerOrderItems, arg.FarmerID, arg.Status, arg.Limit, arg.Offset)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	items := []ListFarmerOrderItemsRow{}
	for rows.Next() {
		var i ListFarmerOrderItemsRow
		if err := rows.Scan(
			&i.ID,
			&i.OrderID,
			&i.OrderNumber,
			&i.OrderType,
			&i.OrderStatus,
			&i.ProductName,
			&i.Quantity,
			&i.UnitPrice,
			&i.Status,
			&i.ContactName,
			&i.BuyerEmail,
			&i.CreatedAt,
		); err != nil {
			return nil, err
		}
		items = append(items, i)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return items, nil
}
