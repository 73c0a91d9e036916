package database

import (
	"context"
	"time"

	"github.com/jackc/pgx/v5/pgtype"
)

const farmColumns = `id, owner_id, name, description, address, city, image_url, created_at, updated_at`

const listFarms = `-- name: ListFarms :many
SELECT ` + farmColumns + ` FROM farms ORDER BY name, id`

func (q *Queries) ListFarms(ctx context.Context) ([]Farm, error) {
	rows, err := q.db.Query(ctx, listFarms)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	items := []Farm{}
	for rows.Next() {
		var i Farm
		if err := rows.Scan(
			&i.ID,
			&i.OwnerID,
			&i.Name,
			&i.Description,
			&i.Address,
			&i.City,
			&i.ImageUrl,
			&i.CreatedAt,
			&i.UpdatedAt,
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

const getFarm = `-- name: GetFarm :one
SELECT ` + farmColumns + ` FROM farms WHERE id = $1`

func (q *Queries) GetFarm(ctx context.Context, id int64) (Farm, error) {
	row := q.db.QueryRow(ctx, getFarm, id)
	var i Farm
	err := row.Scan(
		&i.ID,
		&i.OwnerID,
		&i.Name,
		&i.Description,
		&i.Address,
		&i.City,
		&i.ImageUrl,
		&i.CreatedAt,
		&i.UpdatedAt,
	)
	return i, err
}

const eventColumns = `id, farmer_id, name, description, address, city, postal_code,
	start_date, end_date, created_at, updated_at`

const getEvent = `-- name: GetEvent :one
SELECT ` + eventColumns + ` FROM events WHERE id = $1`

func (q *Queries) GetEvent(ctx context.Context, id int64) (Event, error) {
	row := q.db.QueryRow(ctx, getEvent, id)
	var i Event
	err := row.Scan(
		&i.ID,
		&i.FarmerID,
		&i.Name,
		&i.Description,
		&i.Address,
		&i.City,
		&i.PostalCode,
		&i.StartDate,
		&i.EndDate,
		&i.CreatedAt,
		&i.UpdatedAt,
	)
	return i, err
}

const listOpenEvents = `-- name: ListOpenEvents :many
SELECT ` + eventColumns + ` FROM events
WHERE end_date > $1
ORDER BY start_date, id`

// ListOpenEvents returns events that have not ended at the given instant.
func (q *Queries) ListOpenEvents(ctx context.Context, now time.Time) ([]Event, error) {
	rows, err := q.db.Query(ctx, listOpenEvents, now)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	items := []Event{}
	for rows.Next() {
		var i Event
		if err := rows.Scan(
			&i.ID,
			&i.FarmerID,
			&i.Name,
			&i.Description,
			&i.Address,
			&i.City,
			&i.PostalCode,
			&i.StartDate,
			&i.EndDate,
			&i.CreatedAt,
			&i.UpdatedAt,
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

type ListingRow struct {
	ID          int64          `json:"id"`
	ProductID   int64          `json:"product_id"`
	ProductName string         `json:"product_name"`
	Category    string         `json:"category"`
	Unit        string         `json:"unit"`
	ImageUrl    pgtype.Text    `json:"image_url"`
	Price       pgtype.Numeric `json:"price"`
	Stock       int32          `json:"stock"`
}

const listFarmListings = `-- name: ListFarmListings :many
SELECT fp.id, p.id, p.name, p.category, p.unit, p.image_url, fp.price, fp.stock
FROM farm_products fp
JOIN products p ON p.id = fp.product_id
WHERE fp.farm_id = $1
ORDER BY p.name, fp.id`

func (q *Queries) ListFarmListings(ctx context.Context, farmID int64) ([]ListingRow, error) {
	return q.listListings(ctx, listFarmListings, farmID)
}

const listEventListings = `-- name: ListEventListings :many
SELECT ep.id, p.id, p.name, p.category, p.unit, p.image_url, ep.price, ep.stock
FROM event_products ep
JOIN products p ON p.id = ep.product_id
WHERE ep.event_id = $1
ORDER BY p.name, ep.id`

func (q *Queries) ListEventListings(ctx context.Context, eventID int64) ([]ListingRow, error) {
	return q.listListings(ctx, listEventListings, eventID)
}

func (q *Queries) listListings(ctx context.Context, query string, parentID int64) ([]ListingRow, error) {
	rows, err := q.db.Query(ctx, query, parentID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	items := []ListingRow{}
	for rows.Next() {
		var i ListingRow
		if err := rows.Scan(
			&i.ID,
			&i.ProductID,
			&i.ProductName,
			&i.Category,
			&i.Unit,
			&i.ImageUrl,
			&i.Price,
			&i.Stock,
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
