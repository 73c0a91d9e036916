package database

import (
	"context"

	"github.com/jackc/pgx/v5/pgtype"
)

const getPublicStats = `-- name: GetPublicStats :one
SELECT
    (SELECT COUNT(*) FROM users WHERE role = 'FARMER') AS farmer_count,
    (SELECT COUNT(*) FROM farms) AS farm_count,
    (SELECT COUNT(*) FROM products) AS product_count,
    (SELECT COUNT(*) FROM orders WHERE status <> 'CANCELED') AS order_count,
    (SELECT ROUND(AVG(rating)::numeric, 2) FROM reviews) AS average_rating`

type GetPublicStatsRow struct {
	FarmerCount   int64          `json:"farmer_count"`
	FarmCount     int64          `json:"farm_count"`
	ProductCount  int64          `json:"product_count"`
	OrderCount    int64          `json:"order_count"`
	AverageRating pgtype.Numeric `json:"average_rating"`
}

func (q *Queries) GetPublicStats(ctx context.Context) (GetPublicStatsRow, error) {
	row := q.db.QueryRow(ctx, getPublicStats)
	var i GetPublicStatsRow
	err := row.Scan(
		&i.FarmerCount,
		&i.FarmCount,
		&i.ProductCount,
		&i.OrderCount,
		&i.AverageRating,
	)
	return i, err
}

const getFarmerStats = `-- name: GetFarmerStats :one
SELECT
    COALESCE(SUM(oi.unit_price * oi.quantity) FILTER (WHERE oi.status = 'ACTIVE'), 0)::numeric(12,2) AS revenue,
    COALESCE(SUM(oi.quantity) FILTER (WHERE oi.status = 'ACTIVE'), 0)::bigint AS units_sold,
    COUNT(*) FILTER (WHERE oi.status = 'CANCELED') AS canceled_items,
    COUNT(DISTINCT oi.order_id) FILTER (WHERE oi.status = 'ACTIVE') AS order_count
FROM order_items oi
WHERE oi.farmer_id = $1`

type GetFarmerStatsRow struct {
	Revenue       pgtype.Numeric `json:"revenue"`
	UnitsSold     int64          `json:"units_sold"`
	CanceledItems int64          `json:"canceled_items"`
	OrderCount    int64          `json:"order_count"`
}

func (q *Queries) GetFarmerStats(ctx context.Context, farmerID int64) (GetFarmerStatsRow, error) {
	row := q.db.QueryRow(ctx, getFarmerStats, farmerID)
	var i GetFarmerStatsRow
	err := row.Scan(
		&i.Revenue,
		&i.UnitsSold,
		&i.CanceledItems,
		&i.OrderCount,
	)
	return i, err
}

const getFarmerTopProducts = `-- name: GetFarmerTopProducts :many
SELECT oi.product_id, MAX(oi.product_name) AS product_name,
       SUM(oi.quantity)::bigint AS units_sold,
       SUM(oi.unit_price * oi.quantity)::numeric(12,2) AS revenue
FROM order_items oi
WHERE oi.farmer_id = $1 AND oi.status = 'ACTIVE'
GROUP BY oi.product_id
ORDER BY revenue DESC, oi.product_id
LIMIT $2`

type GetFarmerTopProductsParams struct {
	FarmerID int64 `json:"farmer_id"`
	Limit    int32 `json:"limit"`
}

type GetFarmerTopProductsRow struct {
	ProductID   int64          `json:"product_id"`
	ProductName string         `json:"product_name"`
	UnitsSold   int64          `json:"units_sold"`
	Revenue     pgtype.Numeric `json:"revenue"`
}

func (q *Queries) GetFarmerTopProducts(ctx context.Context, arg GetFarmerTopProductsParams) ([]GetFarmerTopProductsRow, error) {
	rows, err := q.db.Query(ctx, getFarmerTopProducts, arg.FarmerID, arg.Limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	items := []GetFarmerTopProductsRow{}
	for rows.Next() {
		var i GetFarmerTopProductsRow
		if err := rows.Scan(&i.ProductID, &i.ProductName, &i.UnitsSold, &i.Revenue); err != nil {
			return nil, err
		}
		items = append(items, i)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return items, nil
}
