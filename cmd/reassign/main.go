// Command reassign is the operational repair tooling for payment
// allocations. It reports variances between invoice paid amounts and
// their allocation sums, and re-plans allocations for payments whose
// money is sitting unapplied.
package main

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/google/uuid"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	batchapp "github.com/immoflow/backend/internal/application/batch"
	billingapp "github.com/immoflow/backend/internal/application/billing"
	ledgerapp "github.com/immoflow/backend/internal/application/ledger"
	"github.com/immoflow/backend/internal/domain/billing"
	"github.com/immoflow/backend/internal/infrastructure/config"
	"github.com/immoflow/backend/internal/infrastructure/logger"
	"github.com/immoflow/backend/internal/infrastructure/persistence"
)

type services struct {
	repairs   *billingapp.RepairService
	variances *batchapp.VarianceService
	close     func()
}

func buildServices(logLevel string) (*services, *zap.Logger, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, nil, fmt.Errorf("load configuration: %w", err)
	}

	log, err := logger.New(&logger.Config{Level: logLevel, Format: "console", Output: "stdout"})
	if err != nil {
		return nil, nil, fmt.Errorf("initialize logger: %w", err)
	}

	db, err := persistence.NewDatabase(&cfg.Database)
	if err != nil {
		return nil, nil, fmt.Errorf("connect to database: %w", err)
	}

	invoiceRepo := persistence.NewGormInvoiceRepository(db.DB)
	paymentRepo := persistence.NewGormPaymentRepository(db.DB)
	allocationRepo := persistence.NewGormAllocationRepository(db.DB)
	lockRepo := persistence.NewGormPeriodLockRepository(db.DB)
	caseRepo := persistence.NewGormDunningCaseRepository(db.DB)
	entryRepo := persistence.NewGormLedgerEntryRepository(db.DB)
	auditRepo := persistence.NewGormAuditRepository(db.DB)

	ledgerSvc := ledgerapp.NewLedgerService(entryRepo, auditRepo, nil, log)
	transactor := persistence.NewGormTransactor(db.DB)
	allocationSvc := billingapp.NewAllocationService(invoiceRepo, paymentRepo, allocationRepo, lockRepo, caseRepo, ledgerSvc, transactor, log)

	return &services{
		repairs:   billingapp.NewRepairService(allocationSvc, paymentRepo, ledgerSvc, log),
		variances: batchapp.NewVarianceService(invoiceRepo, allocationRepo, log),
		close: func() {
			_ = db.Close()
			_ = log.Sync()
		},
	}, log, nil
}

func main() {
	var logLevel string

	root := &cobra.Command{
		Use:           "reassign",
		Short:         "Inspect and repair payment allocations",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.PersistentFlags().StringVar(&logLevel, "log-level", "warn", "log level (debug, info, warn, error)")

	root.AddCommand(variancesCmd(&logLevel))
	root.AddCommand(repairCmd(&logLevel))

	if err := root.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}

func variancesCmd(logLevel *string) *cobra.Command {
	var (
		orgIDStr    string
		year        int
		month       int
		excludeSeed bool
	)

	cmd := &cobra.Command{
		Use:   "variances",
		Short: "Report invoices whose paid amount drifts from their allocation sum",
		RunE: func(cmd *cobra.Command, args []string) error {
			orgID, err := uuid.Parse(orgIDStr)
			if err != nil {
				return fmt.Errorf("invalid --org: %w", err)
			}
			period, err := billing.NewPeriod(year, month)
			if err != nil {
				return err
			}

			svcs, _, err := buildServices(*logLevel)
			if err != nil {
				return err
			}
			defer svcs.close()

			ctx, cancel := context.WithTimeout(cmd.Context(), 5*time.Minute)
			defer cancel()

			report, err := svcs.variances.Reconcile(ctx, orgID, period, excludeSeed)
			if err != nil {
				return err
			}

			fmt.Printf("Period %s: %d invoices checked, %d variances\n", report.Period, report.Checked, len(report.Variances))
			for _, v := range report.Variances {
				fmt.Printf("  %s (%s): paid %s, allocated %s, delta %s\n",
					v.InvoiceNumber, v.InvoiceID, v.PaidAmount.StringFixed(2), v.AllocatedSum.StringFixed(2), v.Delta.StringFixed(2))
			}
			if report.Clean() {
				fmt.Println("No variances above tolerance.")
			}
			return nil
		},
	}

	cmd.Flags().StringVar(&orgIDStr, "org", "", "organization ID (required)")
	cmd.Flags().IntVar(&year, "year", 0, "accounting period year (required)")
	cmd.Flags().IntVar(&month, "month", 0, "accounting period month (required)")
	cmd.Flags().BoolVar(&excludeSeed, "exclude-seed", false, "leave migration-seeded allocations out of the comparison")
	_ = cmd.MarkFlagRequired("org")
	_ = cmd.MarkFlagRequired("year")
	_ = cmd.MarkFlagRequired("month")
	return cmd
}

func repairCmd(logLevel *string) *cobra.Command {
	var (
		orgIDStr    string
		tenantIDStr string
		batchSize   int
		runID       string
		apply       bool
	)

	cmd := &cobra.Command{
		Use:   "repair",
		Short: "Re-plan allocations for payments with unapplied money",
		Long: `Re-plan allocations for payments that still carry an unapplied
remainder. Without --apply the affected payments are only listed.
Repair runs are convergent: repeating one with the same payments
produces the same allocations.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			orgID, err := uuid.Parse(orgIDStr)
			if err != nil {
				return fmt.Errorf("invalid --org: %w", err)
			}
			req := billingapp.RepairRequest{
				OrgID:     orgID,
				BatchSize: batchSize,
				RunID:     runID,
				Apply:     apply,
				Actor:     "reassign-cli",
			}
			if tenantIDStr != "" {
				tenantID, err := uuid.Parse(tenantIDStr)
				if err != nil {
					return fmt.Errorf("invalid --tenant: %w", err)
				}
				req.TenantID = &tenantID
			}

			svcs, _, err := buildServices(*logLevel)
			if err != nil {
				return err
			}
			defer svcs.close()

			ctx, cancel := context.WithTimeout(cmd.Context(), 30*time.Minute)
			defer cancel()

			report, err := svcs.repairs.Run(ctx, req)
			if err != nil {
				return err
			}

			for _, item := range report.Planned {
				fmt.Printf("would repair payment %s: amount %s, unapplied %s\n",
					item.PaymentID, item.Amount.StringFixed(2), item.Unapplied.StringFixed(2))
			}
			for _, item := range report.Repaired {
				fmt.Printf("repaired payment %s: applied %s, unapplied %s\n",
					item.PaymentID, item.Applied.StringFixed(2), item.Unapplied.StringFixed(2))
			}
			for _, item := range report.Failed {
				fmt.Printf("failed payment %s: %s\n", item.PaymentID, item.Error)
			}

			if apply {
				fmt.Printf("Run %s: %d payments repaired, %d failed\n",
					report.RunID, len(report.Repaired), len(report.Failed))
				if len(report.Failed) > 0 {
					return fmt.Errorf("%d payments could not be repaired", len(report.Failed))
				}
			} else {
				fmt.Println("Dry run; pass --apply to write changes.")
			}
			return nil
		},
	}

	cmd.Flags().StringVar(&orgIDStr, "org", "", "organization ID (required)")
	cmd.Flags().StringVar(&tenantIDStr, "tenant", "", "limit the repair to one tenant")
	cmd.Flags().IntVar(&batchSize, "batch-size", 100, "maximum payments per run when repairing org-wide")
	cmd.Flags().StringVar(&runID, "run-id", "", "run ID stamped into audit records (default: repair-<timestamp>)")
	cmd.Flags().BoolVar(&apply, "apply", false, "write changes instead of listing affected payments")
	_ = cmd.MarkFlagRequired("org")
	return cmd
}
