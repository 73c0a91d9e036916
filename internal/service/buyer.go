package service

import (
	"strings"

	"github.com/jackc/pgx/v5/pgtype"
)

// Buyer identifies who placed an order: exactly one of a registered user or
// a guest email. The unexported method keeps the set closed.
type Buyer interface {
	columns() (buyerID pgtype.Int8, anonymousEmail pgtype.Text)
}

// RegisteredBuyer is a logged-in user.
type RegisteredBuyer struct {
	UserID int64
}

func (b RegisteredBuyer) columns() (pgtype.Int8, pgtype.Text) {
	return pgInt8(b.UserID), pgtype.Text{}
}

// GuestBuyer checks out without an account and is reached by email.
type GuestBuyer struct {
	Email string
}

func (b GuestBuyer) columns() (pgtype.Int8, pgtype.Text) {
	return pgtype.Int8{}, pgtype.Text{String: b.Email, Valid: true}
}

// NewBuyer picks the registered identity when userID is set and falls back to
// the guest email otherwise.
func NewBuyer(userID int64, email string) (Buyer, error) {
	if userID > 0 {
		return RegisteredBuyer{UserID: userID}, nil
	}
	email = strings.ToLower(strings.TrimSpace(email))
	if email == "" {
		return nil, ErrMissingBuyer
	}
	return GuestBuyer{Email: email}, nil
}

// actorID is the history actor for a buyer; guests have none.
func actorID(b Buyer) pgtype.Int8 {
	if rb, ok := b.(RegisteredBuyer); ok {
		return pgInt8(rb.UserID)
	}
	return pgtype.Int8{}
}
