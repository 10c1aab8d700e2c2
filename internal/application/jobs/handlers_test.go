package jobs

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	dunningapp "github.com/immoflow/backend/internal/application/dunning"
	ledgerapp "github.com/immoflow/backend/internal/application/ledger"
	settlementapp "github.com/immoflow/backend/internal/application/settlement"
	"github.com/immoflow/backend/internal/domain/billing"
	"github.com/immoflow/backend/internal/domain/dunning"
	"github.com/immoflow/backend/internal/domain/job"
	"github.com/immoflow/backend/internal/domain/ledger"
	"github.com/immoflow/backend/internal/domain/settlement"
	"github.com/immoflow/backend/internal/domain/shared"
)

type stubInvoiceRepo struct{}

func (stubInvoiceRepo) FindByID(_ context.Context, _ uuid.UUID) (*billing.Invoice, error) {
	return nil, shared.ErrNotFound
}
func (stubInvoiceRepo) FindOpenByTenant(_ context.Context, _, _ uuid.UUID) ([]billing.Invoice, error) {
	return nil, nil
}
func (stubInvoiceRepo) FindOverdue(_ context.Context, _ uuid.UUID, _ time.Time) ([]billing.Invoice, error) {
	return nil, nil
}
func (stubInvoiceRepo) FindByPeriod(_ context.Context, _ uuid.UUID, _ billing.Period) ([]billing.Invoice, error) {
	return nil, nil
}
func (stubInvoiceRepo) Save(_ context.Context, _ *billing.Invoice) error   { return nil }
func (stubInvoiceRepo) Update(_ context.Context, _ *billing.Invoice) error { return nil }

type stubCaseRepo struct{}

func (stubCaseRepo) FindByInvoice(_ context.Context, _ uuid.UUID) (*dunning.Case, error) {
	return nil, shared.ErrNotFound
}
func (stubCaseRepo) FindOpenByOrg(_ context.Context, _ uuid.UUID) ([]dunning.Case, error) {
	return nil, nil
}
func (stubCaseRepo) Save(_ context.Context, _ *dunning.Case) error   { return nil }
func (stubCaseRepo) Update(_ context.Context, _ *dunning.Case) error { return nil }

type stubEntryRepo struct{}

func (stubEntryRepo) FindByTenant(_ context.Context, _, _ uuid.UUID) ([]ledger.Entry, error) {
	return nil, nil
}
func (stubEntryRepo) FindIstByPayment(_ context.Context, _ uuid.UUID) (*ledger.Entry, error) {
	return nil, shared.ErrNotFound
}
func (stubEntryRepo) HasStornoForPayment(_ context.Context, _ uuid.UUID) (bool, error) {
	return false, nil
}
func (stubEntryRepo) Append(_ context.Context, _ ...*ledger.Entry) error { return nil }

type stubAuditRepo struct{}

func (stubAuditRepo) FindChain(_ context.Context, _ uuid.UUID) ([]ledger.AuditRecord, error) {
	return nil, nil
}
func (stubAuditRepo) LastHash(_ context.Context, _ uuid.UUID) (string, error) { return "", nil }
func (stubAuditRepo) Append(_ context.Context, _ ...*ledger.AuditRecord) error {
	return nil
}

type fakeJobRepo struct {
	jobs map[uuid.UUID]*job.Job
}

func newFakeJobRepo() *fakeJobRepo {
	return &fakeJobRepo{jobs: make(map[uuid.UUID]*job.Job)}
}

func (r *fakeJobRepo) FindByID(_ context.Context, id uuid.UUID) (*job.Job, error) {
	j, ok := r.jobs[id]
	if !ok {
		return nil, shared.ErrNotFound
	}
	cp := *j
	return &cp, nil
}

func (r *fakeJobRepo) ClaimNext(_ context.Context, _ int) ([]*job.Job, error) {
	return nil, nil
}

func (r *fakeJobRepo) Save(_ context.Context, j *job.Job) error {
	cp := *j
	r.jobs[j.ID] = &cp
	return nil
}

func (r *fakeJobRepo) Update(_ context.Context, j *job.Job) error {
	cp := *j
	r.jobs[j.ID] = &cp
	return nil
}

func newDunningHandler() *DunningRunHandler {
	ledgerSvc := ledgerapp.NewLedgerService(stubEntryRepo{}, stubAuditRepo{}, nil, nil)
	svc := dunningapp.NewDunningService(stubInvoiceRepo{}, stubCaseRepo{}, ledgerSvc, nil)
	return NewDunningRunHandler(svc, nil)
}

func TestDunningRunHandler(t *testing.T) {
	h := newDunningHandler()
	assert.Equal(t, job.TypeDunningRun, h.Type())

	t.Run("runs and returns a summary", func(t *testing.T) {
		orgID := uuid.New()
		payload, err := json.Marshal(DunningRunPayload{OrgID: orgID})
		require.NoError(t, err)
		j, err := job.New(orgID, job.TypeDunningRun, payload, time.Now(), job.DefaultMaxRetries)
		require.NoError(t, err)

		result, err := h.Handle(context.Background(), j)
		require.NoError(t, err)

		var summary dunningapp.RunSummary
		require.NoError(t, json.Unmarshal(result, &summary))
		assert.Equal(t, orgID, summary.OrgID)
	})

	t.Run("rejects malformed payload", func(t *testing.T) {
		j, err := job.New(uuid.New(), job.TypeDunningRun, json.RawMessage(`{broken`), time.Now(), job.DefaultMaxRetries)
		require.NoError(t, err)
		_, err = h.Handle(context.Background(), j)
		assert.Error(t, err)
	})

	t.Run("rejects missing org", func(t *testing.T) {
		j, err := job.New(uuid.New(), job.TypeDunningRun, json.RawMessage(`{}`), time.Now(), job.DefaultMaxRetries)
		require.NoError(t, err)
		_, err = h.Handle(context.Background(), j)
		assert.Error(t, err)
	})
}

type stubSettlementRunRepo struct {
	runs map[uuid.UUID]*settlement.Run
}

func (r *stubSettlementRunRepo) FindByID(_ context.Context, id uuid.UUID) (*settlement.Run, error) {
	run, ok := r.runs[id]
	if !ok {
		return nil, shared.ErrNotFound
	}
	cp := *run
	return &cp, nil
}
func (r *stubSettlementRunRepo) FindByProperty(_ context.Context, _, _ uuid.UUID) ([]settlement.Run, error) {
	return nil, nil
}
func (r *stubSettlementRunRepo) Save(_ context.Context, run *settlement.Run) error {
	cp := *run
	r.runs[run.ID] = &cp
	return nil
}
func (r *stubSettlementRunRepo) Update(_ context.Context, run *settlement.Run) error {
	cp := *run
	r.runs[run.ID] = &cp
	return nil
}

type stubDistEntryRepo struct {
	entries []settlement.DistributionEntry
}

func (r *stubDistEntryRepo) FindByRun(_ context.Context, runID uuid.UUID) ([]settlement.DistributionEntry, error) {
	var out []settlement.DistributionEntry
	for _, e := range r.entries {
		if e.RunID == runID {
			out = append(out, e)
		}
	}
	return out, nil
}
func (r *stubDistEntryRepo) SaveAll(_ context.Context, entries []settlement.DistributionEntry) error {
	r.entries = append(r.entries, entries...)
	return nil
}
func (r *stubDistEntryRepo) DeleteByRun(_ context.Context, _ uuid.UUID) (int64, error) {
	return 0, nil
}

func TestSettlementRunHandler(t *testing.T) {
	runRepo := &stubSettlementRunRepo{runs: make(map[uuid.UUID]*settlement.Run)}
	ledgerSvc := ledgerapp.NewLedgerService(stubEntryRepo{}, stubAuditRepo{}, nil, nil)
	svc := settlementapp.NewSettlementService(runRepo, &stubDistEntryRepo{}, nil, ledgerSvc, nil)
	h := NewSettlementRunHandler(svc, nil)
	assert.Equal(t, job.TypeSettlementRun, h.Type())

	t.Run("distributes and finalizes the run", func(t *testing.T) {
		orgID := uuid.New()
		run, err := settlement.NewRun(orgID, uuid.New(), time.Now().Year(), settlement.KeyArea, decimal.NewFromInt(900))
		require.NoError(t, err)
		require.NoError(t, runRepo.Save(context.Background(), run))

		tenantID := uuid.New()
		payload, err := json.Marshal(SettlementRunPayload{
			RunID: run.ID,
			Units: []settlement.Unit{
				{ID: uuid.New(), Name: "Top 1", Area: decimal.NewFromInt(60), TenantID: &tenantID},
				{ID: uuid.New(), Name: "Top 2", Area: decimal.NewFromInt(30), Vacant: true},
			},
			Finalize: true,
		})
		require.NoError(t, err)
		j, err := job.New(orgID, job.TypeSettlementRun, payload, time.Now(), job.DefaultMaxRetries)
		require.NoError(t, err)

		raw, err := h.Handle(context.Background(), j)
		require.NoError(t, err)

		var result SettlementRunResult
		require.NoError(t, json.Unmarshal(raw, &result))
		assert.Equal(t, 2, result.Shares)
		assert.Equal(t, "600.00", result.TenantTotal.StringFixed(2))
		assert.Equal(t, "300.00", result.OwnerTotal.StringFixed(2))
		assert.True(t, result.Finalized)

		stored, err := runRepo.FindByID(context.Background(), run.ID)
		require.NoError(t, err)
		assert.Equal(t, settlement.RunStatusFinalized, stored.Status)
	})

	t.Run("rejects a payload without a run ID", func(t *testing.T) {
		j, err := job.New(uuid.New(), job.TypeSettlementRun, json.RawMessage(`{}`), time.Now(), job.DefaultMaxRetries)
		require.NoError(t, err)
		_, err = h.Handle(context.Background(), j)
		assert.Error(t, err)
	})
}

func TestJobService_Enqueue(t *testing.T) {
	repo := newFakeJobRepo()
	svc := NewJobService(repo, nil)

	j, err := svc.EnqueueDunningRun(context.Background(), uuid.New(), time.Now(), "scheduler")
	require.NoError(t, err)
	assert.Equal(t, job.StatusPending, j.Status)
	assert.Equal(t, job.DefaultMaxRetries, j.MaxRetries)

	stored, err := svc.Find(context.Background(), j.ID)
	require.NoError(t, err)
	assert.Equal(t, job.TypeDunningRun, stored.Type)

	var payload DunningRunPayload
	require.NoError(t, json.Unmarshal(stored.Payload, &payload))
	assert.Equal(t, "scheduler", payload.Actor)
}
