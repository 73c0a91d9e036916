package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"time"

	"github.com/farmlink/api/internal/auth"
	"github.com/farmlink/api/internal/config"
	"github.com/farmlink/api/internal/enum"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"
)

type seedProduct struct {
	name     string
	category string
	unit     string
	price    string
	stock    int32
}

var products = []seedProduct{
	{"Heirloom Tomatoes", "Vegetables", "kg", "4.50", 120},
	{"Free-Range Eggs", "Dairy & Eggs", "dozen", "5.20", 60},
	{"Raw Honey", "Pantry", "jar", "9.00", 40},
	{"Baby Spinach", "Vegetables", "bag", "3.10", 80},
}

func main() {
	// CLI flags
	password := flag.String("password", "", "Password for the seeded farmer and buyer")
	farmerEmail := flag.String("farmer-email", "", "Farmer email address")
	buyerEmail := flag.String("buyer-email", "", "Buyer email address")
	printTokens := flag.Bool("print-tokens", false, "Print development access tokens for the seeded users")
	flag.Parse()

	logger := zap.Must(zap.NewDevelopment())
	defer logger.Sync() //nolint:errcheck
	zap.ReplaceGlobals(logger)

	// Fall back to environment variables, then defaults
	*password = firstNonEmpty(*password, os.Getenv("SEED_PASSWORD"))
	if *password == "" {
		*password = "password123"
		logger.Warn("using default password 'password123', change it outside local development")
	}
	*farmerEmail = firstNonEmpty(*farmerEmail, os.Getenv("SEED_FARMER_EMAIL"), "farmer@farmlink.local")
	*buyerEmail = firstNonEmpty(*buyerEmail, os.Getenv("SEED_BUYER_EMAIL"), "buyer@farmlink.local")

	cfg := config.Load()

	ctx := context.Background()
	pool, err := pgxpool.New(ctx, cfg.DatabaseURL)
	if err != nil {
		logger.Fatal("connect database", zap.Error(err))
	}
	defer pool.Close()
	if err := pool.Ping(ctx); err != nil {
		logger.Fatal("ping database", zap.Error(err))
	}

	// Seed everything or nothing
	tx, err := pool.Begin(ctx)
	if err != nil {
		logger.Fatal("begin transaction", zap.Error(err))
	}
	defer tx.Rollback(ctx) //nolint:errcheck

	farmerID, err := seedUser(ctx, tx, *farmerEmail, *password, "Greenfield Farmer", enum.UserRoleFarmer)
	if err != nil {
		logger.Fatal("seed farmer", zap.Error(err))
	}
	buyerID, err := seedUser(ctx, tx, *buyerEmail, *password, "Demo Buyer", enum.UserRoleBuyer)
	if err != nil {
		logger.Fatal("seed buyer", zap.Error(err))
	}
	farmID, err := seedFarm(ctx, tx, farmerID)
	if err != nil {
		logger.Fatal("seed farm", zap.Error(err))
	}
	eventID, err := seedEvent(ctx, tx, farmerID, time.Now())
	if err != nil {
		logger.Fatal("seed event", zap.Error(err))
	}
	if err := seedListings(ctx, tx, farmID, eventID); err != nil {
		logger.Fatal("seed listings", zap.Error(err))
	}

	if err := tx.Commit(ctx); err != nil {
		logger.Fatal("commit", zap.Error(err))
	}

	logger.Info("seed completed",
		zap.Int64("farmer_id", farmerID),
		zap.Int64("buyer_id", buyerID),
		zap.Int64("farm_id", farmID),
		zap.Int64("event_id", eventID),
	)

	if *printTokens {
		for _, u := range []struct {
			id   int64
			role string
		}{{farmerID, enum.UserRoleFarmer}, {buyerID, enum.UserRoleBuyer}} {
			token, err := auth.GenerateToken(cfg.JWTSecret, u.id, u.role)
			if err != nil {
				logger.Fatal("generate token", zap.Error(err))
			}
			fmt.Printf("%s\t%d\t%s\n", u.role, u.id, token)
		}
	}
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}

// seedUser creates the user if no account with that email exists.
func seedUser(ctx context.Context, tx pgx.Tx, email, password, fullName, role string) (int64, error) {
	var id int64
	err := tx.QueryRow(ctx, `SELECT id FROM users WHERE email = $1`, email).Scan(&id)
	if err == nil {
		zap.L().Info("user exists, skipping", zap.String("email", email), zap.Int64("id", id))
		return id, nil
	}
	if !errors.Is(err, pgx.ErrNoRows) {
		return 0, fmt.Errorf("check user: %w", err)
	}

	hashed, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return 0, fmt.Errorf("hash password: %w", err)
	}

	err = tx.QueryRow(ctx, `
		INSERT INTO users (email, full_name, password_hash, role)
		VALUES ($1, $2, $3, $4)
		RETURNING id
	`, email, fullName, string(hashed), role).Scan(&id)
	if err != nil {
		return 0, fmt.Errorf("insert user: %w", err)
	}
	zap.L().Info("created user", zap.String("email", email), zap.String("role", role), zap.Int64("id", id))
	return id, nil
}

func seedFarm(ctx context.Context, tx pgx.Tx, ownerID int64) (int64, error) {
	const farmName = "Greenfield Farm"

	var id int64
	err := tx.QueryRow(ctx, `SELECT id FROM farms WHERE owner_id = $1 AND name = $2`, ownerID, farmName).Scan(&id)
	if err == nil {
		return id, nil
	}
	if !errors.Is(err, pgx.ErrNoRows) {
		return 0, fmt.Errorf("check farm: %w", err)
	}

	err = tx.QueryRow(ctx, `
		INSERT INTO farms (owner_id, name, description, address, city)
		VALUES ($1, $2, 'Family-run mixed vegetable farm', '12 Orchard Lane', 'Springfield')
		RETURNING id
	`, ownerID, farmName).Scan(&id)
	if err != nil {
		return 0, fmt.Errorf("insert farm: %w", err)
	}
	zap.L().Info("created farm", zap.Int64("id", id))
	return id, nil
}

// seedEvent creates a market day starting a week from now.
func seedEvent(ctx context.Context, tx pgx.Tx, farmerID int64, now time.Time) (int64, error) {
	const eventName = "Saturday Market"

	var id int64
	err := tx.QueryRow(ctx, `SELECT id FROM events WHERE farmer_id = $1 AND name = $2 AND end_date > $3`,
		farmerID, eventName, now).Scan(&id)
	if err == nil {
		return id, nil
	}
	if !errors.Is(err, pgx.ErrNoRows) {
		return 0, fmt.Errorf("check event: %w", err)
	}

	start := now.Add(7 * 24 * time.Hour).Truncate(time.Hour)
	err = tx.QueryRow(ctx, `
		INSERT INTO events (farmer_id, name, address, city, postal_code, start_date, end_date)
		VALUES ($1, $2, 'Town Square', 'Springfield', '12345', $3, $4)
		RETURNING id
	`, farmerID, eventName, start, start.Add(6*time.Hour)).Scan(&id)
	if err != nil {
		return 0, fmt.Errorf("insert event: %w", err)
	}
	zap.L().Info("created event", zap.Int64("id", id), zap.Time("start", start))
	return id, nil
}

// seedListings offers every product at the farm and at the event. Existing
// listings are left as they are.
func seedListings(ctx context.Context, tx pgx.Tx, farmID, eventID int64) error {
	for _, p := range products {
		var productID int64
		err := tx.QueryRow(ctx, `SELECT id FROM products WHERE name = $1`, p.name).Scan(&productID)
		if errors.Is(err, pgx.ErrNoRows) {
			err = tx.QueryRow(ctx, `
				INSERT INTO products (name, category, unit) VALUES ($1, $2, $3) RETURNING id
			`, p.name, p.category, p.unit).Scan(&productID)
		}
		if err != nil {
			return fmt.Errorf("product %q: %w", p.name, err)
		}

		if _, err := tx.Exec(ctx, `
			INSERT INTO farm_products (farm_id, product_id, price, stock)
			VALUES ($1, $2, $3::numeric, $4)
			ON CONFLICT (farm_id, product_id) DO NOTHING
		`, farmID, productID, p.price, p.stock); err != nil {
			return fmt.Errorf("farm listing %q: %w", p.name, err)
		}
		if _, err := tx.Exec(ctx, `
			INSERT INTO event_products (event_id, product_id, price, stock)
			VALUES ($1, $2, $3::numeric, $4)
			ON CONFLICT (event_id, product_id) DO NOTHING
		`, eventID, productID, p.price, p.stock/2); err != nil {
			return fmt.Errorf("event listing %q: %w", p.name, err)
		}
	}
	zap.L().Info("seeded listings", zap.Int("products", len(products)))
	return nil
}
