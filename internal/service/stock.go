package service

import (
	"context"
	"errors"
	"fmt"
	"sort"

	"github.com/farmlink/api/internal/database"
	"github.com/farmlink/api/internal/enum"
	"github.com/jackc/pgx/v5"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

// reservation is a cart line whose listing has been locked and whose stock
// has been taken.
type reservation struct {
	listingID   int64
	productID   int64
	farmerID    int64
	quantity    int32
	unitPrice   decimal.Decimal
	productName string
	sellerName  string
}

func (r reservation) lineTotal() decimal.Decimal {
	return r.unitPrice.Mul(decimal.NewFromInt32(r.quantity))
}

// reserveStock locks every listing named by lines, checks price and stock,
// and decrements stock. Listings are locked in id order so concurrent
// checkouts over the same listings cannot deadlock. The result keeps the
// order of lines. eventID is only consulted for preorders.
func reserveStock(ctx context.Context, store OrderStore, orderType string, eventID int64, lines []CartLine) ([]reservation, error) {
	idx := make([]int, len(lines))
	for i := range idx {
		idx[i] = i
	}
	sort.SliceStable(idx, func(a, b int) bool {
		return lines[idx[a]].ListingID < lines[idx[b]].ListingID
	})

	out := make([]reservation, len(lines))
	for _, i := range idx {
		line := lines[i]
		res, err := lockListing(ctx, store, orderType, eventID, line.ListingID)
		if err != nil {
			return nil, fmt.Errorf("items[%d]: %w", i, err)
		}
		if !res.unitPrice.Equal(line.UnitPrice) {
			return nil, fmt.Errorf("items[%d]: %w", i, ErrPriceChanged)
		}
		res.quantity = line.Quantity
		if err := takeStock(ctx, store, orderType, res.listingID, line.Quantity); err != nil {
			return nil, fmt.Errorf("items[%d]: %w", i, err)
		}
		out[i] = res
	}
	return out, nil
}

func lockListing(ctx context.Context, store OrderStore, orderType string, eventID, listingID int64) (reservation, error) {
	if orderType == enum.OrderTypePreorder {
		l, err := store.GetEventProductListingForUpdate(ctx, listingID)
		if err != nil {
			if errors.Is(err, pgx.ErrNoRows) {
				return reservation{}, ErrListingNotFound
			}
			return reservation{}, fmt.Errorf("lock event product: %w", err)
		}
		if l.EventID != eventID {
			return reservation{}, ErrEventMismatch
		}
		return reservation{
			listingID:   l.ID,
			productID:   l.ProductID,
			farmerID:    l.FarmerID,
			unitPrice:   numericToDecimal(l.Price),
			productName: l.ProductName,
			sellerName:  l.EventName,
		}, nil
	}

	l, err := store.GetFarmProductListingForUpdate(ctx, listingID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return reservation{}, ErrListingNotFound
		}
		return reservation{}, fmt.Errorf("lock farm product: %w", err)
	}
	return reservation{
		listingID:   l.ID,
		productID:   l.ProductID,
		farmerID:    l.OwnerID,
		unitPrice:   numericToDecimal(l.Price),
		productName: l.ProductName,
		sellerName:  l.FarmName,
	}, nil
}

// takeStock is a conditional decrement; no row means not enough stock.
func takeStock(ctx context.Context, store OrderStore, orderType string, listingID int64, qty int32) error {
	arg := database.AdjustStockParams{ID: listingID, Quantity: qty}
	var err error
	if orderType == enum.OrderTypePreorder {
		_, err = store.DecrementEventProductStock(ctx, arg)
	} else {
		_, err = store.DecrementFarmProductStock(ctx, arg)
	}
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return ErrInsufficientStock
		}
		return fmt.Errorf("decrement stock: %w", err)
	}
	return nil
}

// releaseStock returns qty to the listing an item was bought from. A listing
// removed since purchase has nothing to return to.
func releaseStock(ctx context.Context, store OrderStore, orderType string, listingID int64, qty int32) error {
	arg := database.AdjustStockParams{ID: listingID, Quantity: qty}
	var err error
	if orderType == enum.OrderTypePreorder {
		_, err = store.IncrementEventProductStock(ctx, arg)
	} else {
		_, err = store.IncrementFarmProductStock(ctx, arg)
	}
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			zap.L().Warn("release stock: listing gone",
				zap.String("order_type", orderType),
				zap.Int64("listing_id", listingID),
			)
			return nil
		}
		return fmt.Errorf("increment stock: %w", err)
	}
	return nil
}
