package domain

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/uptrace/bun"
)

const (
	CentralAccountCode = "central"
	CentralAccountName = "Central cash register"

	PaymentStatusApproved = "approved"
)

type Direction string

const (
	DirectionIn  Direction = "IN"
	DirectionOut Direction = "OUT"
)

func (d Direction) Valid() bool { return d == DirectionIn || d == DirectionOut }

type Category string

const (
	CategoryBookingSettlement Category = "booking-settlement"
	CategoryWebDeposit        Category = "web-deposit"
	CategoryWebFullPayment    Category = "web-full-payment"
	CategoryFixedExpense      Category = "fixed-expense"
	CategoryWithdrawal        Category = "withdrawal"
	CategoryAdjustment        Category = "adjustment"
	CategorySupplies          Category = "supplies"
	CategoryOther             Category = "other"
)

func (c Category) Valid() bool {
	switch c {
	case CategoryBookingSettlement, CategoryWebDeposit, CategoryWebFullPayment,
		CategoryFixedExpense, CategoryWithdrawal, CategoryAdjustment,
		CategorySupplies, CategoryOther:
		return true
	}
	return false
}

// Payment is one confirmed external payment. ExternalPaymentID is unique.
type Payment struct {
	bun.BaseModel `bun:"table:payments"`

	ID                uuid.UUID       `bun:"id,pk,type:uuid" json:"id"`
	ExternalPaymentID string          `bun:"external_payment_id,notnull" json:"external_payment_id"`
	AppointmentID     uuid.UUID       `bun:"appointment_id,notnull,type:uuid" json:"appointment_id"`
	GrossAmount       decimal.Decimal `bun:"gross_amount,type:numeric(12,2),notnull" json:"gross_amount"`
	NetAmount         decimal.Decimal `bun:"net_amount,type:numeric(12,2),notnull" json:"net_amount"`
	Status            string          `bun:"status,notnull" json:"status"`
	Method            string          `bun:"method" json:"method"`
	CreatedAt         time.Time       `bun:"created_at,notnull" json:"created_at"`
}

func (p Payment) Approved() bool { return p.Status == PaymentStatusApproved }

func (p *Payment) BeforeAppendModel(ctx context.Context, query bun.Query) error {
	if _, ok := query.(*bun.InsertQuery); !ok {
		return nil
	}
	if p.ID == uuid.Nil {
		id, err := uuid.NewV7()
		if err != nil {
			return err
		}
		p.ID = id
	}
	if p.CreatedAt.IsZero() {
		p.CreatedAt = time.Now().UTC()
	}
	return nil
}

type LedgerAccount struct {
	bun.BaseModel `bun:"table:ledger_accounts"`

	ID        uuid.UUID       `bun:"id,pk,type:uuid" json:"id"`
	Code      string          `bun:"code,notnull,unique" json:"code"`
	Name      string          `bun:"name,notnull" json:"name"`
	Balance   decimal.Decimal `bun:"balance,type:numeric(14,2),notnull" json:"balance"`
	CreatedAt time.Time       `bun:"created_at,notnull" json:"created_at"`
	UpdatedAt time.Time       `bun:"updated_at,notnull" json:"updated_at"`
}

func (a *LedgerAccount) BeforeAppendModel(ctx context.Context, query bun.Query) error {
	now := time.Now().UTC()
	switch query.(type) {
	case *bun.InsertQuery:
		if a.ID == uuid.Nil {
			id, err := uuid.NewV7()
			if err != nil {
				return err
			}
			a.ID = id
		}
		if a.CreatedAt.IsZero() {
			a.CreatedAt = now
		}
		if a.UpdatedAt.IsZero() {
			a.UpdatedAt = now
		}
	case *bun.UpdateQuery:
		a.UpdatedAt = now
	}
	return nil
}

// LedgerMovement is one append-only entry in the cash log. Amount is always
// positive; Direction gives the sign.
type LedgerMovement struct {
	bun.BaseModel `bun:"table:ledger_movements"`

	ID            uuid.UUID       `bun:"id,pk,type:uuid" json:"id"`
	AccountID     uuid.UUID       `bun:"account_id,notnull,type:uuid" json:"account_id"`
	Direction     Direction       `bun:"direction,notnull" json:"direction"`
	Category      Category        `bun:"category,notnull" json:"category"`
	Amount        decimal.Decimal `bun:"amount,type:numeric(12,2),notnull" json:"amount"`
	Method        string          `bun:"method" json:"method,omitempty"`
	Description   string          `bun:"description" json:"description,omitempty"`
	AppointmentID *uuid.UUID      `bun:"appointment_id,type:uuid" json:"appointment_id,omitempty"`
	TaggedUserID  *string         `bun:"tagged_user_id" json:"tagged_user_id,omitempty"`
	CreatedAt     time.Time       `bun:"created_at,notnull" json:"created_at"`
}

// Signed returns the movement amount with the direction applied.
func (m LedgerMovement) Signed() decimal.Decimal {
	if m.Direction == DirectionOut {
		return m.Amount.Neg()
	}
	return m.Amount
}

func (m LedgerMovement) TaggedTo(userID string) bool {
	return m.TaggedUserID != nil && *m.TaggedUserID == userID
}

func (m *LedgerMovement) BeforeAppendModel(ctx context.Context, query bun.Query) error {
	if _, ok := query.(*bun.InsertQuery); !ok {
		return nil
	}
	if m.ID == uuid.Nil {
		id, err := uuid.NewV7()
		if err != nil {
			return err
		}
		m.ID = id
	}
	if m.CreatedAt.IsZero() {
		m.CreatedAt = time.Now().UTC()
	}
	return nil
}

// FoldWallet derives a user's virtual wallet balance from the movement log:
// booking settlements earned by the user, plus other IN movements tagged to
// them, minus OUT movements tagged to them. Untagged movements and movements
// tagged to someone else are ignored.
func FoldWallet(userID string, movements []LedgerMovement) decimal.Decimal {
	balance := decimal.Zero
	for _, m := range movements {
		if !m.TaggedTo(userID) {
			continue
		}
		balance = balance.Add(m.Signed())
	}
	return balance
}
