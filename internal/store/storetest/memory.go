// Package storetest provides an in-memory store.Store for service tests.
// Transactions are serialised by a single mutex and roll back on error.
package storetest

import (
	"bytes"
	"context"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"barbershop/backend/internal/domain"
	"barbershop/backend/internal/store"
)

type state struct {
	appointments map[uuid.UUID]domain.Appointment
	blocks       map[uuid.UUID]domain.AgendaBlock
	payments     map[uuid.UUID]domain.Payment
	movements    []domain.LedgerMovement
	central      *domain.LedgerAccount
}

func (s state) clone() state {
	out := state{
		appointments: make(map[uuid.UUID]domain.Appointment, len(s.appointments)),
		blocks:       make(map[uuid.UUID]domain.AgendaBlock, len(s.blocks)),
		payments:     make(map[uuid.UUID]domain.Payment, len(s.payments)),
		movements:    append([]domain.LedgerMovement(nil), s.movements...),
	}
	for k, v := range s.appointments {
		out.appointments[k] = v
	}
	for k, v := range s.blocks {
		out.blocks[k] = v
	}
	for k, v := range s.payments {
		out.payments[k] = v
	}
	if s.central != nil {
		c := *s.central
		out.central = &c
	}
	return out
}

type Memory struct {
	mu sync.Mutex

	clients  map[string]domain.Client
	barbers  map[string]domain.Barber
	services map[uuid.UUID]domain.Service
	data     state
	clock    time.Time

	// DeleteErr, when set, is consulted before DeletePending removes a row.
	DeleteErr func(id uuid.UUID) error
}

var _ store.Store = (*Memory)(nil)

func NewMemory() *Memory {
	return &Memory{
		clients:  map[string]domain.Client{},
		barbers:  map[string]domain.Barber{},
		services: map[uuid.UUID]domain.Service{},
		data: state{
			appointments: map[uuid.UUID]domain.Appointment{},
			blocks:       map[uuid.UUID]domain.AgendaBlock{},
			payments:     map[uuid.UUID]domain.Payment{},
		},
	}
}

func (m *Memory) AddClient(c domain.Client) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.clients[c.UserID] = c
}

func (m *Memory) AddBarber(b domain.Barber) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.barbers[b.UserID] = b
}

func (m *Memory) AddService(s domain.Service) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.services[s.ID] = s
}

// PutAppointment stores a row as-is, bypassing slot checks. Useful for fixtures.
func (m *Memory) PutAppointment(a domain.Appointment) domain.Appointment {
	m.mu.Lock()
	defer m.mu.Unlock()
	if a.ID == uuid.Nil {
		a.ID = uuid.New()
	}
	if a.CreatedAt.IsZero() {
		a.CreatedAt = m.now()
	}
	a.UpdatedAt = a.CreatedAt
	m.data.appointments[a.ID] = a
	return a
}

func (m *Memory) PutBlock(b domain.AgendaBlock) domain.AgendaBlock {
	m.mu.Lock()
	defer m.mu.Unlock()
	if b.ID == uuid.Nil {
		b.ID = uuid.New()
	}
	m.data.blocks[b.ID] = b
	return b
}

func (m *Memory) PutPayment(p domain.Payment) domain.Payment {
	m.mu.Lock()
	defer m.mu.Unlock()
	if p.ID == uuid.Nil {
		p.ID = uuid.New()
	}
	m.data.payments[p.ID] = p
	return p
}

// SetClock pins the timestamp stamped on inserted rows. A zero value uses time.Now.
func (m *Memory) SetClock(t time.Time) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.clock = t
}

func (m *Memory) now() time.Time {
	if m.clock.IsZero() {
		return time.Now().UTC()
	}
	return m.clock
}

func (m *Memory) Appointments() []domain.Appointment {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]domain.Appointment, 0, len(m.data.appointments))
	for _, a := range m.data.appointments {
		out = append(out, a)
	}
	sortAppointments(out)
	return out
}

func (m *Memory) Payments() []domain.Payment {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]domain.Payment, 0, len(m.data.payments))
	for _, p := range m.data.payments {
		out = append(out, p)
	}
	return out
}

func (m *Memory) Movements() []domain.LedgerMovement {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]domain.LedgerMovement(nil), m.data.movements...)
}

func (m *Memory) InStaffTransaction(ctx context.Context, staffID string, fn func(ctx context.Context, tx store.Tx) error) error {
	return m.InTransaction(ctx, fn)
}

func (m *Memory) InShopTransaction(ctx context.Context, fn func(ctx context.Context, tx store.Tx) error) error {
	return m.InTransaction(ctx, fn)
}

func (m *Memory) InTransaction(ctx context.Context, fn func(ctx context.Context, tx store.Tx) error) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if err := ctx.Err(); err != nil {
		return err
	}
	snapshot := m.data.clone()
	if err := fn(ctx, memTx{m: m}); err != nil {
		m.data = snapshot
		return err
	}
	if err := ctx.Err(); err != nil {
		m.data = snapshot
		return err
	}
	return nil
}

func (m *Memory) GetClient(ctx context.Context, userID string) (domain.Client, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	c, ok := m.clients[userID]
	if !ok {
		return domain.Client{}, store.ErrNotFound
	}
	return c, nil
}

func (m *Memory) GetBarber(ctx context.Context, userID string) (domain.Barber, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	b, ok := m.barbers[userID]
	if !ok {
		return domain.Barber{}, store.ErrNotFound
	}
	return b, nil
}

func (m *Memory) GetService(ctx context.Context, id uuid.UUID) (domain.Service, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	s, ok := m.services[id]
	if !ok {
		return domain.Service{}, store.ErrNotFound
	}
	return s, nil
}

func (m *Memory) GetAppointment(ctx context.Context, id uuid.UUID) (domain.Appointment, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	a, ok := m.data.appointments[id]
	if !ok {
		return domain.Appointment{}, store.ErrNotFound
	}
	return a, nil
}

func (m *Memory) ListAppointments(ctx context.Context, f store.AppointmentFilter) ([]domain.Appointment, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []domain.Appointment
	for _, a := range m.data.appointments {
		if f.ClientID != "" && a.ClientID != f.ClientID {
			continue
		}
		if f.StaffID != "" && a.StaffID != f.StaffID {
			continue
		}
		if !f.From.IsZero() && a.StartTime.Before(f.From) {
			continue
		}
		if !f.To.IsZero() && !a.StartTime.Before(f.To) {
			continue
		}
		if len(f.States) > 0 && !hasState(f.States, a.State) {
			continue
		}
		out = append(out, a)
	}
	sortAppointments(out)
	return out, nil
}

func (m *Memory) ExpiredPending(ctx context.Context, cutoff time.Time, limit int) ([]domain.Appointment, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []domain.Appointment
	for _, a := range m.data.appointments {
		if expired(a, cutoff) {
			out = append(out, a)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (m *Memory) DeletePending(ctx context.Context, id uuid.UUID, cutoff time.Time) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.DeleteErr != nil {
		if err := m.DeleteErr(id); err != nil {
			return false, err
		}
	}
	a, ok := m.data.appointments[id]
	if !ok || !expired(a, cutoff) {
		return false, nil
	}
	delete(m.data.appointments, id)
	return true, nil
}

func expired(a domain.Appointment, cutoff time.Time) bool {
	if a.State != domain.StatePending || !a.CreatedAt.Before(cutoff) {
		return false
	}
	return a.PaymentDeadline == nil || a.PaymentDeadline.Before(cutoff)
}

func (m *Memory) GetBlock(ctx context.Context, id uuid.UUID) (domain.AgendaBlock, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	b, ok := m.data.blocks[id]
	if !ok {
		return domain.AgendaBlock{}, store.ErrNotFound
	}
	return b, nil
}

func (m *Memory) ListBlocks(ctx context.Context, f store.BlockFilter) ([]domain.AgendaBlock, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []domain.AgendaBlock
	for _, b := range m.data.blocks {
		if !f.Overlapping.Start.IsZero() && !b.EndTime.After(f.Overlapping.Start) {
			continue
		}
		if !f.Overlapping.End.IsZero() && !b.StartTime.Before(f.Overlapping.End) {
			continue
		}
		out = append(out, b)
	}
	sortBlocks(out)
	return out, nil
}

func (m *Memory) FindPaymentByExternalID(ctx context.Context, externalID string) (domain.Payment, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.data.paymentBy(func(p domain.Payment) bool { return p.ExternalPaymentID == externalID })
}

func (m *Memory) CentralAccount(ctx context.Context) (domain.LedgerAccount, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.data.central == nil {
		return domain.LedgerAccount{}, store.ErrNotFound
	}
	return *m.data.central, nil
}

func (m *Memory) ListMovements(ctx context.Context, f store.MovementFilter) ([]domain.LedgerMovement, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	sorted := append([]domain.LedgerMovement(nil), m.data.movements...)
	sort.SliceStable(sorted, func(i, j int) bool { return movementAfter(sorted[i], sorted[j].CreatedAt, sorted[j].ID) })

	var out []domain.LedgerMovement
	for _, mv := range sorted {
		if f.AccountID != uuid.Nil && mv.AccountID != f.AccountID {
			continue
		}
		if f.TaggedUserID != "" && !mv.TaggedTo(f.TaggedUserID) {
			continue
		}
		if !f.Before.IsZero() {
			if f.BeforeID == uuid.Nil && !mv.CreatedAt.Before(f.Before) {
				continue
			}
			if f.BeforeID != uuid.Nil && !movementAfter(domain.LedgerMovement{CreatedAt: f.Before, ID: f.BeforeID}, mv.CreatedAt, mv.ID) {
				continue
			}
		}
		out = append(out, mv)
		if f.Limit > 0 && len(out) == f.Limit {
			break
		}
	}
	return out, nil
}

func (s state) paymentBy(match func(domain.Payment) bool) (domain.Payment, error) {
	for _, p := range s.payments {
		if match(p) {
			return p, nil
		}
	}
	return domain.Payment{}, store.ErrNotFound
}

// memTx runs with Memory.mu held by InTransaction.
type memTx struct {
	m *Memory
}

func (t memTx) LockAppointment(ctx context.Context, id uuid.UUID) (domain.Appointment, error) {
	a, ok := t.m.data.appointments[id]
	if !ok {
		return domain.Appointment{}, store.ErrNotFound
	}
	return a, nil
}

func (t memTx) OverlappingAppointments(ctx context.Context, staffID string, span domain.Span, exclude uuid.UUID) ([]domain.Appointment, error) {
	var out []domain.Appointment
	for _, a := range t.m.data.appointments {
		if a.StaffID != staffID || a.ID == exclude || !a.State.Active() {
			continue
		}
		if a.Span().Overlaps(span) {
			out = append(out, a)
		}
	}
	sortAppointments(out)
	return out, nil
}

func (t memTx) OverlappingBlocks(ctx context.Context, span domain.Span, staffID string, includeGeneral bool) ([]domain.AgendaBlock, error) {
	var out []domain.AgendaBlock
	for _, b := range t.m.data.blocks {
		inScope := (b.General() && includeGeneral) || (!b.General() && staffID != "" && *b.StaffID == staffID)
		if inScope && b.Span().Overlaps(span) {
			out = append(out, b)
		}
	}
	sortBlocks(out)
	return out, nil
}

// checkSlot mirrors the appointments_no_overlap exclusion constraint.
func (t memTx) checkSlot(a domain.Appointment) error {
	if !a.State.Active() {
		return nil
	}
	for _, other := range t.m.data.appointments {
		if other.ID == a.ID || other.StaffID != a.StaffID || !other.State.Active() {
			continue
		}
		if other.Span().Overlaps(a.Span()) {
			return store.ErrConflict
		}
	}
	return nil
}

func (t memTx) InsertAppointment(ctx context.Context, appt *domain.Appointment) error {
	if appt.ID == uuid.Nil {
		appt.ID = uuid.New()
	}
	if err := t.checkSlot(*appt); err != nil {
		return err
	}
	now := t.m.now()
	if appt.CreatedAt.IsZero() {
		appt.CreatedAt = now
	}
	appt.UpdatedAt = now
	t.m.data.appointments[appt.ID] = *appt
	return nil
}

func (t memTx) UpdateAppointment(ctx context.Context, appt *domain.Appointment) error {
	if _, ok := t.m.data.appointments[appt.ID]; !ok {
		return store.ErrNotFound
	}
	if err := t.checkSlot(*appt); err != nil {
		return err
	}
	appt.UpdatedAt = t.m.now()
	t.m.data.appointments[appt.ID] = *appt
	return nil
}

func (t memTx) InsertBlock(ctx context.Context, block *domain.AgendaBlock) error {
	if block.ID == uuid.Nil {
		block.ID = uuid.New()
	}
	if block.CreatedAt.IsZero() {
		block.CreatedAt = t.m.now()
	}
	t.m.data.blocks[block.ID] = *block
	return nil
}

func (t memTx) DeleteBlock(ctx context.Context, id uuid.UUID) error {
	if _, ok := t.m.data.blocks[id]; !ok {
		return store.ErrNotFound
	}
	delete(t.m.data.blocks, id)
	return nil
}

func (t memTx) PaymentByExternalID(ctx context.Context, externalID string) (domain.Payment, error) {
	return t.m.data.paymentBy(func(p domain.Payment) bool { return p.ExternalPaymentID == externalID })
}

func (t memTx) PaymentForAppointment(ctx context.Context, appointmentID uuid.UUID) (domain.Payment, error) {
	return t.m.data.paymentBy(func(p domain.Payment) bool { return p.AppointmentID == appointmentID })
}

func (t memTx) InsertPayment(ctx context.Context, p *domain.Payment) error {
	for _, existing := range t.m.data.payments {
		if existing.ExternalPaymentID == p.ExternalPaymentID || existing.AppointmentID == p.AppointmentID {
			return store.ErrDuplicate
		}
	}
	if p.ID == uuid.Nil {
		p.ID = uuid.New()
	}
	if p.CreatedAt.IsZero() {
		p.CreatedAt = t.m.now()
	}
	t.m.data.payments[p.ID] = *p
	return nil
}

func (t memTx) LockCentralAccount(ctx context.Context) (domain.LedgerAccount, error) {
	if t.m.data.central == nil {
		now := t.m.now()
		t.m.data.central = &domain.LedgerAccount{
			ID:        uuid.New(),
			Code:      domain.CentralAccountCode,
			Name:      domain.CentralAccountName,
			Balance:   decimal.Zero,
			CreatedAt: now,
			UpdatedAt: now,
		}
	}
	return *t.m.data.central, nil
}

func (t memTx) SetAccountBalance(ctx context.Context, accountID uuid.UUID, balance decimal.Decimal) error {
	if t.m.data.central == nil || t.m.data.central.ID != accountID {
		return store.ErrNotFound
	}
	t.m.data.central.Balance = balance
	t.m.data.central.UpdatedAt = t.m.now()
	return nil
}

func (t memTx) InsertMovement(ctx context.Context, mv *domain.LedgerMovement) error {
	if mv.ID == uuid.Nil {
		mv.ID = uuid.New()
	}
	if mv.CreatedAt.IsZero() {
		mv.CreatedAt = t.m.now()
	}
	t.m.data.movements = append(t.m.data.movements, *mv)
	return nil
}

// movementAfter orders movements by (created_at, id) the way Postgres compares
// the row tuple.
func movementAfter(mv domain.LedgerMovement, at time.Time, id uuid.UUID) bool {
	if !mv.CreatedAt.Equal(at) {
		return mv.CreatedAt.After(at)
	}
	return bytes.Compare(mv.ID[:], id[:]) > 0
}

func hasState(states []domain.AppointmentState, s domain.AppointmentState) bool {
	for _, want := range states {
		if want == s {
			return true
		}
	}
	return false
}

func sortAppointments(a []domain.Appointment) {
	sort.Slice(a, func(i, j int) bool {
		if a[i].StartTime.Equal(a[j].StartTime) {
			return a[i].ID.String() < a[j].ID.String()
		}
		return a[i].StartTime.Before(a[j].StartTime)
	})
}

func sortBlocks(b []domain.AgendaBlock) {
	sort.Slice(b, func(i, j int) bool { return b[i].StartTime.Before(b[j].StartTime) })
}
