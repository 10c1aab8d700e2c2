package billing

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	ledgerapp "github.com/immoflow/backend/internal/application/ledger"
	"github.com/immoflow/backend/internal/domain/billing"
	"github.com/immoflow/backend/internal/domain/dunning"
	"github.com/immoflow/backend/internal/domain/ledger"
	"github.com/immoflow/backend/internal/domain/shared"
	"github.com/immoflow/backend/internal/domain/shared/valueobject"
)

// --- in-memory fakes ---

type fakeInvoiceRepo struct {
	mu       sync.Mutex
	invoices map[uuid.UUID]*billing.Invoice
}

func newFakeInvoiceRepo() *fakeInvoiceRepo {
	return &fakeInvoiceRepo{invoices: make(map[uuid.UUID]*billing.Invoice)}
}

func (r *fakeInvoiceRepo) put(inv *billing.Invoice) {
	r.mu.Lock()
	defer r.mu.Unlock()
	cp := *inv
	r.invoices[inv.ID] = &cp
}

func (r *fakeInvoiceRepo) FindByID(_ context.Context, id uuid.UUID) (*billing.Invoice, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	inv, ok := r.invoices[id]
	if !ok {
		return nil, shared.ErrNotFound
	}
	cp := *inv
	return &cp, nil
}

func (r *fakeInvoiceRepo) FindOpenByTenant(_ context.Context, orgID, tenantID uuid.UUID) ([]billing.Invoice, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []billing.Invoice
	for _, inv := range r.invoices {
		if inv.OrgID == orgID && inv.TenantID == tenantID && inv.Status.CanReceiveAllocation() {
			out = append(out, *inv)
		}
	}
	return out, nil
}

func (r *fakeInvoiceRepo) FindOverdue(_ context.Context, orgID uuid.UUID, asOf time.Time) ([]billing.Invoice, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []billing.Invoice
	for _, inv := range r.invoices {
		if inv.OrgID == orgID && inv.Status.CanReceiveAllocation() && inv.DueDate.Before(asOf) {
			out = append(out, *inv)
		}
	}
	return out, nil
}

func (r *fakeInvoiceRepo) FindByPeriod(_ context.Context, orgID uuid.UUID, period billing.Period) ([]billing.Invoice, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []billing.Invoice
	for _, inv := range r.invoices {
		if inv.OrgID == orgID && inv.Period.Equal(period) {
			out = append(out, *inv)
		}
	}
	return out, nil
}

func (r *fakeInvoiceRepo) Save(_ context.Context, inv *billing.Invoice) error {
	r.put(inv)
	return nil
}

func (r *fakeInvoiceRepo) Update(_ context.Context, inv *billing.Invoice) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	stored, ok := r.invoices[inv.ID]
	if !ok {
		return shared.ErrNotFound
	}
	if stored.Version != inv.Version-1 {
		return shared.ErrConcurrencyConflict
	}
	cp := *inv
	r.invoices[inv.ID] = &cp
	return nil
}

type fakePaymentRepo struct {
	mu       sync.Mutex
	payments map[uuid.UUID]*billing.Payment
}

func newFakePaymentRepo() *fakePaymentRepo {
	return &fakePaymentRepo{payments: make(map[uuid.UUID]*billing.Payment)}
}

func (r *fakePaymentRepo) FindByID(_ context.Context, id uuid.UUID) (*billing.Payment, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	p, ok := r.payments[id]
	if !ok {
		return nil, shared.ErrNotFound
	}
	cp := *p
	return &cp, nil
}

func (r *fakePaymentRepo) FindByTenant(_ context.Context, orgID, tenantID uuid.UUID) ([]billing.Payment, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []billing.Payment
	for _, p := range r.payments {
		if p.OrgID == orgID && p.TenantID == tenantID {
			out = append(out, *p)
		}
	}
	return out, nil
}

func (r *fakePaymentRepo) FindUnappliedForOrg(_ context.Context, orgID uuid.UUID, limit int) ([]billing.Payment, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []billing.Payment
	for _, p := range r.payments {
		if p.OrgID == orgID && p.UnappliedAmount.IsPositive() && !p.IsReversed() {
			out = append(out, *p)
		}
		if limit > 0 && len(out) >= limit {
			break
		}
	}
	return out, nil
}

func (r *fakePaymentRepo) Save(_ context.Context, p *billing.Payment) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	cp := *p
	r.payments[p.ID] = &cp
	return nil
}

func (r *fakePaymentRepo) Update(_ context.Context, p *billing.Payment) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	stored, ok := r.payments[p.ID]
	if !ok {
		return shared.ErrNotFound
	}
	if stored.Version != p.Version-1 {
		return shared.ErrConcurrencyConflict
	}
	cp := *p
	r.payments[p.ID] = &cp
	return nil
}

type fakeAllocationRepo struct {
	mu          sync.Mutex
	allocations []billing.Allocation
}

func (r *fakeAllocationRepo) FindByPayment(_ context.Context, paymentID uuid.UUID) ([]billing.Allocation, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []billing.Allocation
	for _, a := range r.allocations {
		if a.PaymentID == paymentID {
			out = append(out, a)
		}
	}
	return out, nil
}

func (r *fakeAllocationRepo) FindByInvoice(_ context.Context, invoiceID uuid.UUID) ([]billing.Allocation, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []billing.Allocation
	for _, a := range r.allocations {
		if a.InvoiceID == invoiceID {
			out = append(out, a)
		}
	}
	return out, nil
}

func (r *fakeAllocationRepo) SaveAll(_ context.Context, allocations []billing.Allocation) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.allocations = append(r.allocations, allocations...)
	return nil
}

func (r *fakeAllocationRepo) DeleteByPayment(_ context.Context, paymentID uuid.UUID) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	kept := r.allocations[:0]
	var deleted int64
	for _, a := range r.allocations {
		if a.PaymentID == paymentID {
			deleted++
			continue
		}
		kept = append(kept, a)
	}
	r.allocations = kept
	return deleted, nil
}

type fakeLockRepo struct {
	mu     sync.Mutex
	locked map[string]bool
}

func newFakeLockRepo() *fakeLockRepo {
	return &fakeLockRepo{locked: make(map[string]bool)}
}

func (r *fakeLockRepo) IsLocked(_ context.Context, orgID uuid.UUID, period billing.Period) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.locked[orgID.String()+period.String()], nil
}

func (r *fakeLockRepo) Save(_ context.Context, lock *billing.PeriodLock) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	key := lock.OrgID.String() + lock.Period.String()
	if r.locked[key] {
		return shared.ErrAlreadyExists
	}
	r.locked[key] = true
	return nil
}

func (r *fakeLockRepo) FindByOrg(_ context.Context, _ uuid.UUID) ([]billing.PeriodLock, error) {
	return nil, nil
}

type fakeCaseRepo struct {
	mu    sync.Mutex
	cases map[uuid.UUID]*dunning.Case
}

func newFakeCaseRepo() *fakeCaseRepo {
	return &fakeCaseRepo{cases: make(map[uuid.UUID]*dunning.Case)}
}

func (r *fakeCaseRepo) FindByInvoice(_ context.Context, invoiceID uuid.UUID) (*dunning.Case, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	c, ok := r.cases[invoiceID]
	if !ok {
		return nil, shared.ErrNotFound
	}
	cp := *c
	return &cp, nil
}

func (r *fakeCaseRepo) FindOpenByOrg(_ context.Context, orgID uuid.UUID) ([]dunning.Case, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []dunning.Case
	for _, c := range r.cases {
		if c.OrgID == orgID && !c.IsCleared() {
			out = append(out, *c)
		}
	}
	return out, nil
}

func (r *fakeCaseRepo) Save(_ context.Context, c *dunning.Case) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	cp := *c
	r.cases[c.InvoiceID] = &cp
	return nil
}

func (r *fakeCaseRepo) Update(_ context.Context, c *dunning.Case) error {
	return r.Save(context.Background(), c)
}

type fakeEntryRepo struct {
	mu      sync.Mutex
	entries []ledger.Entry
}

func (r *fakeEntryRepo) FindByTenant(_ context.Context, orgID, tenantID uuid.UUID) ([]ledger.Entry, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []ledger.Entry
	for _, e := range r.entries {
		if e.OrgID == orgID && e.TenantID == tenantID {
			out = append(out, e)
		}
	}
	return out, nil
}

func (r *fakeEntryRepo) FindIstByPayment(_ context.Context, paymentID uuid.UUID) (*ledger.Entry, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for i := range r.entries {
		e := r.entries[i]
		if e.Type == ledger.EntryTypeIst && e.PaymentID != nil && *e.PaymentID == paymentID {
			return &e, nil
		}
	}
	return nil, shared.ErrNotFound
}

func (r *fakeEntryRepo) HasStornoForPayment(_ context.Context, paymentID uuid.UUID) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, e := range r.entries {
		if e.Type == ledger.EntryTypeStorno && e.PaymentID != nil && *e.PaymentID == paymentID {
			return true, nil
		}
	}
	return false, nil
}

func (r *fakeEntryRepo) Append(_ context.Context, entries ...*ledger.Entry) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, e := range entries {
		r.entries = append(r.entries, *e)
	}
	return nil
}

type fakeAuditRepo struct {
	mu      sync.Mutex
	records []ledger.AuditRecord
}

func (r *fakeAuditRepo) FindChain(_ context.Context, orgID uuid.UUID) ([]ledger.AuditRecord, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []ledger.AuditRecord
	for _, rec := range r.records {
		if rec.OrgID == orgID {
			out = append(out, rec)
		}
	}
	return out, nil
}

func (r *fakeAuditRepo) LastHash(_ context.Context, orgID uuid.UUID) (string, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for i := len(r.records) - 1; i >= 0; i-- {
		if r.records[i].OrgID == orgID {
			return r.records[i].Hash, nil
		}
	}
	return "", nil
}

func (r *fakeAuditRepo) Append(_ context.Context, records ...*ledger.AuditRecord) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, rec := range records {
		r.records = append(r.records, *rec)
	}
	return nil
}

// --- test fixture ---

type allocationFixture struct {
	svc         *AllocationService
	invoiceRepo *fakeInvoiceRepo
	paymentRepo *fakePaymentRepo
	allocRepo   *fakeAllocationRepo
	lockRepo    *fakeLockRepo
	caseRepo    *fakeCaseRepo
	entryRepo   *fakeEntryRepo
	auditRepo   *fakeAuditRepo
	orgID       uuid.UUID
	tenantID    uuid.UUID
}

func newAllocationFixture(t *testing.T) *allocationFixture {
	t.Helper()
	f := &allocationFixture{
		invoiceRepo: newFakeInvoiceRepo(),
		paymentRepo: newFakePaymentRepo(),
		allocRepo:   &fakeAllocationRepo{},
		lockRepo:    newFakeLockRepo(),
		caseRepo:    newFakeCaseRepo(),
		entryRepo:   &fakeEntryRepo{},
		auditRepo:   &fakeAuditRepo{},
		orgID:       uuid.New(),
		tenantID:    uuid.New(),
	}
	ledgerSvc := ledgerapp.NewLedgerService(f.entryRepo, f.auditRepo, nil, nil)
	f.svc = NewAllocationService(f.invoiceRepo, f.paymentRepo, f.allocRepo, f.lockRepo, f.caseRepo, ledgerSvc, nil, nil)
	return f
}

func (f *allocationFixture) addInvoice(t *testing.T, number string, year, month int, net string) *billing.Invoice {
	t.Helper()
	period, err := billing.NewPeriod(year, month)
	require.NoError(t, err)
	lines := []billing.InvoiceLine{
		{Type: billing.LineTypeRent, NetAmount: decimal.RequireFromString(net), VATRate: decimal.RequireFromString("0.10")},
	}
	inv, err := billing.NewInvoice(f.orgID, number, f.tenantID, uuid.New(), period, lines, time.Date(year, time.Month(month), 5, 0, 0, 0, 0, time.UTC))
	require.NoError(t, err)
	f.invoiceRepo.put(inv)
	return inv
}

func (f *allocationFixture) recordPayment(t *testing.T, amount string) *AllocationResult {
	t.Helper()
	result, err := f.svc.RecordPayment(context.Background(), RecordPaymentRequest{
		OrgID:       f.orgID,
		TenantID:    f.tenantID,
		Amount:      decimal.RequireFromString(amount),
		BookingDate: time.Date(2024, 3, 10, 0, 0, 0, 0, time.UTC),
		Source:      billing.PaymentSourceBankImport,
		Reference:   "STMT-001",
		Actor:       "tester",
	})
	require.NoError(t, err)
	return result
}

// --- tests ---

func TestAllocationService_RecordPayment_FIFO(t *testing.T) {
	f := newAllocationFixture(t)
	// 100 net at 10% VAT = 110 gross each
	older := f.addInvoice(t, "2024-01-001", 2024, 1, "100.00")
	newer := f.addInvoice(t, "2024-02-001", 2024, 2, "100.00")

	result := f.recordPayment(t, "150.00")

	assert.Equal(t, "150", result.TotalApplied.String())
	assert.True(t, result.Unapplied.IsZero())
	require.Len(t, result.Allocations, 2)
	assert.Equal(t, older.ID, result.Allocations[0].InvoiceID)
	assert.Equal(t, "110", result.Allocations[0].AppliedAmount.String())
	assert.Equal(t, newer.ID, result.Allocations[1].InvoiceID)
	assert.Equal(t, "40", result.Allocations[1].AppliedAmount.String())

	stored, err := f.invoiceRepo.FindByID(context.Background(), older.ID)
	require.NoError(t, err)
	assert.Equal(t, billing.InvoiceStatusPaid, stored.Status)

	stored, err = f.invoiceRepo.FindByID(context.Background(), newer.ID)
	require.NoError(t, err)
	assert.Equal(t, billing.InvoiceStatusPartiallyPaid, stored.Status)
	assert.Equal(t, "40", stored.PaidAmount.String())
}

func TestAllocationService_RecordPayment_OverpaymentStaysUnapplied(t *testing.T) {
	f := newAllocationFixture(t)
	f.addInvoice(t, "2024-01-001", 2024, 1, "100.00")

	result := f.recordPayment(t, "200.00")

	assert.Equal(t, "110", result.TotalApplied.String())
	assert.Equal(t, "90", result.Unapplied.String())

	stored, err := f.paymentRepo.FindByID(context.Background(), result.PaymentID)
	require.NoError(t, err)
	assert.Equal(t, "90", stored.UnappliedAmount.String())
}

func TestAllocationService_RecordPayment_PostsIstEntry(t *testing.T) {
	f := newAllocationFixture(t)
	f.addInvoice(t, "2024-01-001", 2024, 1, "100.00")

	result := f.recordPayment(t, "110.00")

	entry, err := f.entryRepo.FindIstByPayment(context.Background(), result.PaymentID)
	require.NoError(t, err)
	assert.Equal(t, ledger.EntryTypeIst, entry.Type)
	assert.Equal(t, "110", entry.Amount.String())
}

func TestAllocationService_Allocate_RejectsLockedPeriod(t *testing.T) {
	f := newAllocationFixture(t)
	inv := f.addInvoice(t, "2024-01-001", 2024, 1, "100.00")
	f.lockRepo.locked[f.orgID.String()+inv.Period.String()] = true

	_, err := f.svc.RecordPayment(context.Background(), RecordPaymentRequest{
		OrgID:       f.orgID,
		TenantID:    f.tenantID,
		Amount:      decimal.RequireFromString("110.00"),
		BookingDate: time.Date(2024, 3, 10, 0, 0, 0, 0, time.UTC),
		Source:      billing.PaymentSourceManual,
		Reference:   "STMT-002",
		Actor:       "tester",
	})
	require.Error(t, err)
	var domainErr *shared.DomainError
	require.ErrorAs(t, err, &domainErr)
	assert.Equal(t, "PERIOD_LOCKED", domainErr.Code)
}

func TestAllocationService_Allocate_RejectsDoubleAllocation(t *testing.T) {
	f := newAllocationFixture(t)
	f.addInvoice(t, "2024-01-001", 2024, 1, "100.00")
	result := f.recordPayment(t, "110.00")

	_, err := f.svc.Allocate(context.Background(), result.PaymentID, billing.AllocationModeFIFO, nil, "tester")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "use reassign")
}

func TestAllocationService_Allocate_WaterfallRequiresInvoice(t *testing.T) {
	f := newAllocationFixture(t)
	payment, err := billing.NewPayment(f.orgID, f.tenantID, mustMoney(t, "50.00"), time.Now(), billing.PaymentSourceManual, "ref")
	require.NoError(t, err)
	require.NoError(t, f.paymentRepo.Save(context.Background(), payment))

	_, err = f.svc.Allocate(context.Background(), payment.ID, billing.AllocationModeWaterfall, nil, "tester")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "target invoice")
}

func TestAllocationService_Reverse(t *testing.T) {
	f := newAllocationFixture(t)
	inv := f.addInvoice(t, "2024-01-001", 2024, 1, "100.00")
	result := f.recordPayment(t, "110.00")

	err := f.svc.Reverse(context.Background(), result.PaymentID, "bank recall", "tester")
	require.NoError(t, err)

	// invoice reopened
	stored, err := f.invoiceRepo.FindByID(context.Background(), inv.ID)
	require.NoError(t, err)
	assert.Equal(t, billing.InvoiceStatusOpen, stored.Status)
	assert.True(t, stored.PaidAmount.IsZero())

	// payment flagged, allocations gone
	payment, err := f.paymentRepo.FindByID(context.Background(), result.PaymentID)
	require.NoError(t, err)
	assert.True(t, payment.IsReversed())
	remaining, err := f.allocRepo.FindByPayment(context.Background(), result.PaymentID)
	require.NoError(t, err)
	assert.Empty(t, remaining)

	// storno entry posted
	has, err := f.entryRepo.HasStornoForPayment(context.Background(), result.PaymentID)
	require.NoError(t, err)
	assert.True(t, has)
}

func TestAllocationService_Reverse_Twice(t *testing.T) {
	f := newAllocationFixture(t)
	f.addInvoice(t, "2024-01-001", 2024, 1, "100.00")
	result := f.recordPayment(t, "110.00")

	require.NoError(t, f.svc.Reverse(context.Background(), result.PaymentID, "recall", "tester"))
	err := f.svc.Reverse(context.Background(), result.PaymentID, "recall again", "tester")
	assert.ErrorIs(t, err, shared.ErrAlreadyReversed)
}

func TestAllocationService_Reassign_Converges(t *testing.T) {
	f := newAllocationFixture(t)
	older := f.addInvoice(t, "2024-01-001", 2024, 1, "100.00")
	result := f.recordPayment(t, "110.00")

	// a newly appeared older invoice should absorb the payment on reassign
	// (simulates the repair of a wrong historical allocation)
	evenOlder := f.addInvoice(t, "2023-12-001", 2023, 12, "100.00")

	first, err := f.svc.Reassign(context.Background(), result.PaymentID, billing.AllocationModeFIFO, nil, "repair", "run-01")
	require.NoError(t, err)
	second, err := f.svc.Reassign(context.Background(), result.PaymentID, billing.AllocationModeFIFO, nil, "repair", "run-01")
	require.NoError(t, err)

	// both runs land on the same allocation
	require.Len(t, first.Allocations, 1)
	require.Len(t, second.Allocations, 1)
	assert.Equal(t, evenOlder.ID, first.Allocations[0].InvoiceID)
	assert.Equal(t, evenOlder.ID, second.Allocations[0].InvoiceID)

	stored, err := f.invoiceRepo.FindByID(context.Background(), evenOlder.ID)
	require.NoError(t, err)
	assert.Equal(t, billing.InvoiceStatusPaid, stored.Status)
	stored, err = f.invoiceRepo.FindByID(context.Background(), older.ID)
	require.NoError(t, err)
	assert.Equal(t, billing.InvoiceStatusOpen, stored.Status)

	allocs, err := f.allocRepo.FindByPayment(context.Background(), result.PaymentID)
	require.NoError(t, err)
	assert.Len(t, allocs, 1)
}

func TestAllocationService_FullPaymentClearsDunningCase(t *testing.T) {
	f := newAllocationFixture(t)
	inv := f.addInvoice(t, "2024-01-001", 2024, 1, "100.00")

	c, err := dunning.NewCase(f.orgID, inv.ID, f.tenantID, inv.GrossAmount)
	require.NoError(t, err)
	require.NoError(t, f.caseRepo.Save(context.Background(), c))

	f.recordPayment(t, "110.00")

	stored, err := f.caseRepo.FindByInvoice(context.Background(), inv.ID)
	require.NoError(t, err)
	assert.True(t, stored.IsCleared())
}

func mustMoney(t *testing.T, s string) valueobject.Money {
	t.Helper()
	return valueobject.NewMoneyEUR(decimal.RequireFromString(s))
}
