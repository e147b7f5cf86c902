package domain

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/uptrace/bun"
)

// Client, Barber and Service are owned by the profile collaborator; this
// module only reads them.

type Client struct {
	bun.BaseModel `bun:"table:clients"`

	UserID   string `bun:"user_id,pk"`
	FullName string `bun:"full_name,notnull"`
}

type Barber struct {
	bun.BaseModel `bun:"table:barbers"`

	UserID        string              `bun:"user_id,pk"`
	FullName      string              `bun:"full_name,notnull"`
	Active        bool                `bun:"active,notnull"`
	DepositAmount decimal.NullDecimal `bun:"deposit_amount,type:numeric(12,2)"`
}

type Service struct {
	bun.BaseModel `bun:"table:services"`

	ID              uuid.UUID       `bun:"id,pk,type:uuid"`
	Name            string          `bun:"name,notnull"`
	Price           decimal.Decimal `bun:"price,type:numeric(12,2),notnull"`
	DurationMinutes int             `bun:"duration_minutes,notnull"`
	Active          bool            `bun:"active,notnull"`
}

func (s Service) Duration() time.Duration {
	return time.Duration(s.DurationMinutes) * time.Minute
}
