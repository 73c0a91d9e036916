package database

import (
	"time"

	"github.com/jackc/pgx/v5/pgtype"
)

type User struct {
	ID           int64     `json:"id"`
	Email        string    `json:"email"`
	FullName     string    `json:"full_name"`
	PasswordHash string    `json:"password_hash"`
	Role         string    `json:"role"`
	CreatedAt    time.Time `json:"created_at"`
	UpdatedAt    time.Time `json:"updated_at"`
}

type Farm struct {
	ID          int64       `json:"id"`
	OwnerID     int64       `json:"owner_id"`
	Name        string      `json:"name"`
	Description pgtype.Text `json:"description"`
	Address     string      `json:"address"`
	City        string      `json:"city"`
	ImageUrl    pgtype.Text `json:"image_url"`
	CreatedAt   time.Time   `json:"created_at"`
	UpdatedAt   time.Time   `json:"updated_at"`
}

type Product struct {
	ID          int64       `json:"id"`
	Name        string      `json:"name"`
	Description pgtype.Text `json:"description"`
	Category    string      `json:"category"`
	Unit        string      `json:"unit"`
	ImageUrl    pgtype.Text `json:"image_url"`
	CreatedAt   time.Time   `json:"created_at"`
}

type FarmProduct struct {
	ID        int64          `json:"id"`
	FarmID    int64          `json:"farm_id"`
	ProductID int64          `json:"product_id"`
	Price     pgtype.Numeric `json:"price"`
	Stock     int32          `json:"stock"`
	CreatedAt time.Time      `json:"created_at"`
	UpdatedAt time.Time      `json:"updated_at"`
}

type Event struct {
	ID          int64       `json:"id"`
	FarmerID    int64       `json:"farmer_id"`
	Name        string      `json:"name"`
	Description pgtype.Text `json:"description"`
	Address     string      `json:"address"`
	City        string      `json:"city"`
	PostalCode  pgtype.Text `json:"postal_code"`
	StartDate   time.Time   `json:"start_date"`
	EndDate     time.Time   `json:"end_date"`
	CreatedAt   time.Time   `json:"created_at"`
	UpdatedAt   time.Time   `json:"updated_at"`
}

type EventProduct struct {
	ID        int64          `json:"id"`
	EventID   int64          `json:"event_id"`
	ProductID int64          `json:"product_id"`
	Price     pgtype.Numeric `json:"price"`
	Stock     int32          `json:"stock"`
	CreatedAt time.Time      `json:"created_at"`
	UpdatedAt time.Time      `json:"updated_at"`
}

type Order struct {
	ID                 int64          `json:"id"`
	OrderNumber        string         `json:"order_number"`
	OrderType          string         `json:"order_type"`
	Status             string         `json:"status"`
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
	IsPaid             bool           `json:"is_paid"`
	IsDelivered        bool           `json:"is_delivered"`
	CreatedAt          time.Time      `json:"created_at"`
	UpdatedAt          time.Time      `json:"updated_at"`
}

type OrderItem struct {
	ID          int64          `json:"id"`
	OrderID     int64          `json:"order_id"`
	ListingID   int64          `json:"listing_id"`
	ProductID   int64          `json:"product_id"`
	FarmerID    pgtype.Int8    `json:"farmer_id"`
	Quantity    int32          `json:"quantity"`
	UnitPrice   pgtype.Numeric `json:"unit_price"`
	ProductName string         `json:"product_name"`
	SellerName  string         `json:"seller_name"`
	Status      string         `json:"status"`
	CreatedAt   time.Time      `json:"created_at"`
	UpdatedAt   time.Time      `json:"updated_at"`
}

type OrderHistory struct {
	ID        int64       `json:"id"`
	OrderID   int64       `json:"order_id"`
	UserID    pgtype.Int8 `json:"user_id"`
	Action    string      `json:"action"`
	Message   string      `json:"message"`
	CreatedAt time.Time   `json:"created_at"`
}
