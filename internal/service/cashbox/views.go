package cashbox

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"barbershop/backend/internal/domain"
	"barbershop/backend/internal/store"
)

// Cursor names the last movement of a page. Movements are ordered by
// (CreatedAt, ID) so rows sharing a timestamp page deterministically.
type Cursor struct {
	CreatedAt time.Time
	ID        uuid.UUID
}

func (c Cursor) IsZero() bool { return c.CreatedAt.IsZero() }

type CentralLedger struct {
	Account   domain.LedgerAccount
	Movements []domain.LedgerMovement
	// Next is the cursor for the following page; zero when there is none.
	Next Cursor
}

// CentralView returns the central account and its newest movements, paging
// backwards past after when it is set.
func (s *Service) CentralView(ctx context.Context, p domain.Principal, after Cursor) (CentralLedger, error) {
	if !p.IsAdmin() {
		return CentralLedger{}, domain.Forbidden("only administrators can view the central ledger")
	}
	account, err := s.store.CentralAccount(ctx)
	if errors.Is(err, store.ErrNotFound) {
		// Nothing has been posted yet.
		return CentralLedger{Account: domain.LedgerAccount{
			Code:    domain.CentralAccountCode,
			Name:    domain.CentralAccountName,
			Balance: decimal.Zero,
		}}, nil
	}
	if err != nil {
		return CentralLedger{}, err
	}

	movements, err := s.store.ListMovements(ctx, store.MovementFilter{
		AccountID: account.ID,
		Before:    after.CreatedAt,
		BeforeID:  after.ID,
		Limit:     s.cfg.AdminPageSize,
	})
	if err != nil {
		return CentralLedger{}, err
	}
	out := CentralLedger{Account: account, Movements: movements}
	if len(movements) == s.cfg.AdminPageSize {
		last := movements[len(movements)-1]
		out.Next = Cursor{CreatedAt: last.CreatedAt, ID: last.ID}
	}
	return out, nil
}

type Wallet struct {
	UserID  string
	Balance decimal.Decimal
	// Movements holds the newest tagged movements only; Balance covers all of them.
	Movements []domain.LedgerMovement
}

// WalletView folds userID's tagged movements into a live balance. An empty
// userID means the caller; only administrators may read someone else's wallet.
func (s *Service) WalletView(ctx context.Context, p domain.Principal, userID string) (Wallet, error) {
	if userID == "" {
		userID = p.ID
	}
	if userID != p.ID && !p.IsAdmin() {
		return Wallet{}, domain.Forbidden("you can only view your own wallet")
	}

	all, err := s.store.ListMovements(ctx, store.MovementFilter{TaggedUserID: userID})
	if err != nil {
		return Wallet{}, err
	}
	page := all
	if len(page) > s.cfg.WalletPageSize {
		page = page[:s.cfg.WalletPageSize]
	}
	return Wallet{
		UserID:    userID,
		Balance:   domain.FoldWallet(userID, all),
		Movements: page,
	}, nil
}
