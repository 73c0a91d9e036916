package database

import (
	"context"
	"time"

	"github.com/jackc/pgx/v5/pgtype"
)

const getFarmProductListing = `-- name: GetFarmProductListing :one
SELECT fp.id, fp.farm_id, fp.product_id, fp.price, fp.stock, p.name, f.name, f.owner_id
FROM farm_products fp
JOIN farms f ON f.id = fp.farm_id
JOIN products p ON p.id = fp.product_id
WHERE fp.id = $1`

type FarmProductListing struct {
	ID          int64          `json:"id"`
	FarmID      int64          `json:"farm_id"`
	ProductID   int64          `json:"product_id"`
	Price       pgtype.Numeric `json:"price"`
	Stock       int32          `json:"stock"`
	ProductName string         `json:"product_name"`
	FarmName    string         `json:"farm_name"`
	OwnerID     int64          `json:"owner_id"`
}

func (q *Queries) GetFarmProductListing(ctx context.Context, id int64) (FarmProductListing, error) {
	return q.scanFarmProductListing(ctx, getFarmProductListing, id)
}

// GetFarmProductListingForUpdate locks the farm_products row (not the joined
// farm or product) for the rest of the transaction.
func (q *Queries) GetFarmProductListingForUpdate(ctx context.Context, id int64) (FarmProductListing, error) {
	return q.scanFarmProductListing(ctx, getFarmProductListing+" FOR UPDATE OF fp", id)
}

func (q *Queries) scanFarmProductListing(ctx context.Context, query string, id int64) (FarmProductListing, error) {
	row := q.db.QueryRow(ctx, query, id)
	var i FarmProductListing
	err := row.Scan(
		&i.ID,
		&i.FarmID,
		&i.ProductID,
		&i.Price,
		&i.Stock,
		&i.ProductName,
		&i.FarmName,
		&i.OwnerID,
	)
	return i, err
}

const getEventProductListing = `-- name: GetEventProductListing :one
SELECT ep.id, ep.event_id, ep.product_id, ep.price, ep.stock, p.name, e.name, e.farmer_id, e.end_date
FROM event_products ep
JOIN events e ON e.id = ep.event_id
JOIN products p ON p.id = ep.product_id
WHERE ep.id = $1`

type EventProductListing struct {
	ID           int64          `json:"id"`
	EventID      int64          `json:"event_id"`
	ProductID    int64          `json:"product_id"`
	Price        pgtype.Numeric `json:"price"`
	Stock        int32          `json:"stock"`
	ProductName  string         `json:"product_name"`
	EventName    string         `json:"event_name"`
	FarmerID     int64          `json:"farmer_id"`
	EventEndDate time.Time      `json:"event_end_date"`
}

func (q *Queries) GetEventProductListing(ctx context.Context, id int64) (EventProductListing, error) {
	return q.scanEventProductListing(ctx, getEventProductListing, id)
}

func (q *Queries) GetEventProductListingForUpdate(ctx context.Context, id int64) (EventProductListing, error) {
	return q.scanEventProductListing(ctx, getEventProductListing+" FOR UPDATE OF ep", id)
}

func (q *Queries) scanEventProductListing(ctx context.Context, query string, id int64) (EventProductListing, error) {
	row := q.db.QueryRow(ctx, query, id)
	var i EventProductListing
	err := row.Scan(
		&i.ID,
		&i.EventID,
		&i.ProductID,
		&i.Price,
		&i.Stock,
		&i.ProductName,
		&i.EventName,
		&i.FarmerID,
		&i.EventEndDate,
	)
	return i, err
}

type AdjustStockParams struct {
	ID       int64 `json:"id"`
	Quantity int32 `json:"quantity"`
}

const decrementFarmProductStock = `-- name: DecrementFarmProductStock :one
UPDATE farm_products SET stock = stock - $2, updated_at = now()
WHERE id = $1 AND stock >= $2
RETURNING stock`

// DecrementFarmProductStock returns pgx.ErrNoRows when the listing is missing
// or holds fewer than Quantity units.
func (q *Queries) DecrementFarmProductStock(ctx context.Context, arg AdjustStockParams) (int32, error) {
	var stock int32
	err := q.db.QueryRow(ctx, decrementFarmProductStock, arg.ID, arg.Quantity).Scan(&stock)
	return stock, err
}

const incrementFarmProductStock = `-- name: IncrementFarmProductStock :one
UPDATE farm_products SET stock = stock + $2, updated_at = now()
WHERE id = $1
RETURNING stock`

func (q *Queries) IncrementFarmProductStock(ctx context.Context, arg AdjustStockParams) (int32, error) {
	var stock int32
	err := q.db.QueryRow(ctx, incrementFarmProductStock, arg.ID, arg.Quantity).Scan(&stock)
	return stock, err
}

const decrementEventProductStock = `-- name: DecrementEventProductStock :one
UPDATE event_products SET stock = stock - $2, updated_at = now()
WHERE id = $1 AND stock >= $2
RETURNING stock`

func (q *Queries) DecrementEventProductStock(ctx context.Context, arg AdjustStockParams) (int32, error) {
	var stock int32
	err := q.db.QueryRow(ctx, decrementEventProductStock, arg.ID, arg.Quantity).Scan(&stock)
	return stock, err
}

const incrementEventProductStock = `-- name: IncrementEventProductStock :one
UPDATE event_products SET stock = stock + $2, updated_at = now()
WHERE id = $1
RETURNING stock`

func (q *Queries) IncrementEventProductStock(ctx context.Context, arg AdjustStockParams) (int32, error) {
	var stock int32
	err := q.db.QueryRow(ctx, incrementEventProductStock, arg.ID, arg.Quantity).Scan(&stock)
	return stock, err
}

type UpdateListingParams struct {
	ID    int64          `json:"id"`
	Price pgtype.Numeric `json:"price"`
	Stock pgtype.Int4    `json:"stock"`
}

const updateFarmProduct = `-- name: UpdateFarmProduct :one
UPDATE farm_products SET
    price = COALESCE($2, price),
    stock = COALESCE($3, stock),
    updated_at = now()
WHERE id = $1
RETURNING id, farm_id, product_id, price, stock, created_at, updated_at`

func (q *Queries) UpdateFarmProduct(ctx context.Context, arg UpdateListingParams) (FarmProduct, error) {
	row := q.db.QueryRow(ctx, updateFarmProduct, arg.ID, arg.Price, arg.Stock)
	var i FarmProduct
	err := row.Scan(&i.ID, &i.FarmID, &i.ProductID, &i.Price, &i.Stock, &i.CreatedAt, &i.UpdatedAt)
	return i, err
}

const updateEventProduct = `-- name: UpdateEventProduct :one
UPDATE event_products SET
    price = COALESCE($2, price),
    stock = COALESCE($3, stock),
    updated_at = now()
WHERE id = $1
RETURNING id, event_id, product_id, price, stock, created_at, updated_at`

func (q *Queries) UpdateEventProduct(ctx context.Context, arg UpdateListingParams) (EventProduct, error) {
	row := q.db.QueryRow(ctx, updateEventProduct, arg.ID, arg.Price, arg.Stock)
	var i EventProduct
	err := row.Scan(&i.ID, &i.EventID, &i.ProductID, &i.Price, &i.Stock, &i.CreatedAt, &i.UpdatedAt)
	return i, err
}
