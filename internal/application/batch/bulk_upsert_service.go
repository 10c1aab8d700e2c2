package batch

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/gocarina/gocsv"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	ledgerapp "github.com/immoflow/backend/internal/application/ledger"
	"github.com/immoflow/backend/internal/domain/billing"
	"github.com/immoflow/backend/internal/domain/bulk"
	"github.com/immoflow/backend/internal/domain/ledger"
	"github.com/immoflow/backend/internal/domain/shared"
	"github.com/immoflow/backend/internal/infrastructure/cache"
)

// idempotencyTTL bounds how long a run ID blocks replays. Long enough to
// survive any realistic retry storm, short enough not to pin Redis forever.
const idempotencyTTL = 7 * 24 * time.Hour

// lineRow is one CSV row of a bulk invoice-line upsert
type lineRow struct {
	InvoiceID   string `csv:"invoice_id"`
	UnitID      string `csv:"unit_id"`
	LineType    string `csv:"line_type"`
	Description string `csv:"description"`
	Amount      string `csv:"amount"`
	TaxRate     string `csv:"tax_rate"`
	Meta        string `csv:"meta"`
}

// BulkUpsertService applies CSV invoice-line batches. Each batch carries
// a caller-chosen run ID; replaying the same run ID returns the recorded
// outcome instead of applying the rows again.
type BulkUpsertService struct {
	invoiceRepo billing.InvoiceRepository
	runRepo     bulk.ImportRunRepository
	idempotency cache.IdempotencyStore
	ledgerSvc   *ledgerapp.LedgerService
	transactor  shared.Transactor
	logger      *zap.Logger
}

// NewBulkUpsertService creates a new BulkUpsertService. A nil transactor
// runs batches without transactional boundaries.
func NewBulkUpsertService(
	invoiceRepo billing.InvoiceRepository,
	runRepo bulk.ImportRunRepository,
	idempotency cache.IdempotencyStore,
	ledgerSvc *ledgerapp.LedgerService,
	transactor shared.Transactor,
	logger *zap.Logger,
) *BulkUpsertService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &BulkUpsertService{
		invoiceRepo: invoiceRepo,
		runRepo:     runRepo,
		idempotency: idempotency,
		ledgerSvc:   ledgerSvc,
		transactor:  transactor,
		logger:      logger,
	}
}

// UpsertRequest carries one CSV batch
type UpsertRequest struct {
	OrgID    uuid.UUID
	RunID    string
	FileName string
	FileSize int64
	Data     io.Reader
	Actor    string
}

// Upsert parses and applies the batch. Rows are independent: a bad row is
// recorded and skipped, the rest of the file still lands. The returned
// run carries the per-row error detail.
func (s *BulkUpsertService) Upsert(ctx context.Context, req UpsertRequest) (*bulk.ImportRun, error) {
	if req.RunID == "" {
		return nil, shared.NewDomainError("VALIDATION", "run ID cannot be empty")
	}

	key := req.OrgID.String() + ":" + req.RunID
	fresh, err := s.idempotency.MarkProcessed(ctx, key, idempotencyTTL)
	if err != nil {
		return nil, err
	}
	if !fresh {
		// Replay: hand back what the original run did.
		existing, err := s.runRepo.FindByRunID(ctx, req.OrgID, req.RunID)
		if err != nil {
			return nil, err
		}
		s.logger.Info("bulk upsert replayed, returning recorded outcome",
			zap.String("run_id", req.RunID))
		return existing, nil
	}

	run, err := bulk.NewImportRun(req.OrgID, req.RunID, req.FileName, req.FileSize, req.Actor)
	if err != nil {
		return nil, err
	}
	if err := s.runRepo.Save(ctx, run); err != nil {
		return nil, err
	}

	var rows []lineRow
	if err := gocsv.Unmarshal(req.Data, &rows); err != nil {
		failErr := run.Fail([]bulk.RowError{{Row: 0, Code: "PARSE", Message: err.Error()}})
		if failErr == nil {
			failErr = s.runRepo.Update(ctx, run)
		}
		if failErr != nil {
			return nil, failErr
		}
		return run, shared.NewDomainErrorf("VALIDATION", "cannot parse CSV: %v", err)
	}

	if err := run.StartProcessing(len(rows)); err != nil {
		return nil, err
	}
	if err := s.runRepo.Update(ctx, run); err != nil {
		return nil, err
	}

	var (
		upserted  int
		skipped   int
		rowErrors []bulk.RowError
	)
	// One transaction for the whole batch: bad rows are recorded and
	// skipped, but an infrastructure failure mid-file rolls every
	// applied row back — partial application is never observable.
	err = shared.RunInTx(ctx, s.transactor, func(ctx context.Context) error {
		for i, row := range rows {
			// header is row 1
			rowNum := i + 2
			changed, err := s.applyRow(ctx, req.OrgID, row, req.Actor, req.RunID)
			if err != nil {
				var fieldErr *rowFieldError
				if !errors.As(err, &fieldErr) {
					return err
				}
				rowErrors = append(rowErrors, rowErrorFrom(rowNum, err))
				continue
			}
			if changed {
				upserted++
			} else {
				skipped++
			}
		}

		if err := run.Complete(upserted, skipped, rowErrors); err != nil {
			return err
		}
		return s.runRepo.Update(ctx, run)
	})
	if err != nil {
		return nil, err
	}

	s.logger.Info("bulk upsert finished",
		zap.String("run_id", req.RunID),
		zap.Int("total", len(rows)),
		zap.Int("upserted", upserted),
		zap.Int("skipped", skipped),
		zap.Int("errors", len(rowErrors)),
	)
	return run, nil
}

// applyRow validates one CSV row and upserts the line onto its invoice
func (s *BulkUpsertService) applyRow(ctx context.Context, orgID uuid.UUID, row lineRow, actor, runID string) (bool, error) {
	invoiceID, err := uuid.Parse(row.InvoiceID)
	if err != nil {
		return false, &rowFieldError{column: "invoice_id", code: "PARSE", value: row.InvoiceID, err: err}
	}
	amount, err := decimal.NewFromString(row.Amount)
	if err != nil {
		return false, &rowFieldError{column: "amount", code: "PARSE", value: row.Amount, err: err}
	}
	taxRate, err := decimal.NewFromString(row.TaxRate)
	if err != nil {
		return false, &rowFieldError{column: "tax_rate", code: "PARSE", value: row.TaxRate, err: err}
	}
	lineType := billing.LineType(row.LineType)
	if !lineType.IsValid() {
		return false, &rowFieldError{column: "line_type", code: "VALIDATION", value: row.LineType,
			err: fmt.Errorf("unknown line type %q", row.LineType)}
	}

	invoice, err := s.invoiceRepo.FindByID(ctx, invoiceID)
	if err != nil {
		return false, &rowFieldError{column: "invoice_id", code: "NOT_FOUND", value: row.InvoiceID, err: err}
	}
	if invoice.OrgID != orgID {
		return false, &rowFieldError{column: "invoice_id", code: "VALIDATION", value: row.InvoiceID,
			err: fmt.Errorf("invoice belongs to a different organization")}
	}
	if row.UnitID != "" && invoice.UnitID.String() != row.UnitID {
		return false, &rowFieldError{column: "unit_id", code: "VALIDATION", value: row.UnitID,
			err: fmt.Errorf("unit does not match invoice")}
	}

	oldSnapshot, _ := json.Marshal(invoice)
	changed, err := invoice.UpsertLine(billing.InvoiceLine{
		Type:        lineType,
		Description: row.Description,
		NetAmount:   amount,
		VATRate:     taxRate,
		Meta:        row.Meta,
	})
	if err != nil {
		return false, &rowFieldError{column: "line_type", code: "VALIDATION", value: row.LineType, err: err}
	}
	if !changed {
		return false, nil
	}

	if err := s.invoiceRepo.Update(ctx, invoice); err != nil {
		return false, err
	}
	newSnapshot, _ := json.Marshal(invoice)
	if _, err := s.ledgerSvc.RecordAudit(ctx, orgID, ledger.AuditOperationUpdate, "invoice", invoice.ID, oldSnapshot, newSnapshot, actor, runID); err != nil {
		return false, err
	}
	return true, nil
}

// Run returns a recorded import run by its idempotency key
func (s *BulkUpsertService) Run(ctx context.Context, orgID uuid.UUID, runID string) (*bulk.ImportRun, error) {
	return s.runRepo.FindByRunID(ctx, orgID, runID)
}

// Runs lists the organization's import runs
func (s *BulkUpsertService) Runs(ctx context.Context, orgID uuid.UUID) ([]bulk.ImportRun, error) {
	return s.runRepo.FindByOrg(ctx, orgID)
}

// rowFieldError carries the column context of a row failure
type rowFieldError struct {
	column string
	code   string
	value  string
	err    error
}

func (e *rowFieldError) Error() string {
	return fmt.Sprintf("%s: %v", e.column, e.err)
}

func (e *rowFieldError) Unwrap() error {
	return e.err
}

func rowErrorFrom(rowNum int, err error) bulk.RowError {
	if fieldErr, ok := err.(*rowFieldError); ok {
		return bulk.RowError{
			Row:     rowNum,
			Column:  fieldErr.column,
			Code:    fieldErr.code,
			Message: fieldErr.err.Error(),
			Value:   fieldErr.value,
		}
	}
	return bulk.RowError{Row: rowNum, Code: "INTERNAL", Message: err.Error()}
}
