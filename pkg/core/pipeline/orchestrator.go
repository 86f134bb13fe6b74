// Package pipeline wires the analysis stages end to end:
// discretize -> build statistics -> fit BG/BB -> fit Gamma-Gamma -> compose
// LTV. Each stage's output is an immutable value owned solely by the next
// stage's input; there is no shared cache between stages.
package pipeline

import (
	"context"
	"fmt"
	"time"

	"clv_analytics/pkg/core/bgbb"
	"clv_analytics/pkg/core/cbs"
	"clv_analytics/pkg/core/ltv"
	"clv_analytics/pkg/core/spend"
	"clv_analytics/pkg/core/store"
	"clv_analytics/pkg/core/timeline"

	"github.com/google/uuid"
)

// AnalysisReport is the full output of one run.
type AnalysisReport struct {
	RunID       string    `json:"run_id"`
	GeneratedAt time.Time `json:"generated_at"`

	Origin       time.Time     `json:"origin"`
	Horizon      int           `json:"horizon"`
	PeriodLength time.Duration `json:"period_length"`
	DiscountRate float64       `json:"discount_rate"`

	BGBB             bgbb.Params          `json:"bgbb_params"`
	BGBBDiagnostics  bgbb.FitDiagnostics  `json:"bgbb_diagnostics"`
	Spend            spend.Params         `json:"spend_params"`
	SpendDiagnostics spend.FitDiagnostics `json:"spend_diagnostics"`

	Customers        []ltv.CustomerValue      `json:"customers"`
	NewCustomerValue float64                  `json:"new_customer_value"`
	StageDurations   map[string]time.Duration `json:"stage_durations"`
}

// Orchestrator runs the analysis pipeline. A repository is optional and
// injected for persistence.
type Orchestrator struct {
	cfg  Config
	repo store.ReportRepository
}

// NewOrchestrator creates an orchestrator for the given configuration.
func NewOrchestrator(cfg Config) *Orchestrator {
	return &Orchestrator{cfg: cfg}
}

// SetRepository injects a report repository (e.g. Postgres, or a stub in
// tests). Without one the report is only returned, never persisted.
func (o *Orchestrator) SetRepository(repo store.ReportRepository) {
	o.repo = repo
}

// Run executes the full pipeline over a raw transaction log.
func (o *Orchestrator) Run(ctx context.Context, txns []timeline.Transaction) (*AnalysisReport, error) {
	report := &AnalysisReport{
		RunID:          uuid.New().String(),
		GeneratedAt:    time.Now().UTC(),
		PeriodLength:   o.cfg.PeriodLength,
		DiscountRate:   o.cfg.DiscountRate,
		StageDurations: make(map[string]time.Duration),
	}
	fmt.Printf("[PIPELINE] Run %s: %d transactions\n", report.RunID, len(txns))

	// 1. Discretize
	stage := time.Now()
	disc, err := timeline.Discretize(txns, timeline.Options{
		PeriodLength:   o.cfg.PeriodLength,
		CalibrationEnd: o.cfg.CalibrationEnd,
	})
	if err != nil {
		return nil, fmt.Errorf("discretize: %w", err)
	}
	report.Origin = disc.Origin
	report.Horizon = disc.Horizon
	report.StageDurations["discretize"] = time.Since(stage)
	fmt.Printf("[PIPELINE] Discretized %d customers over %d periods (origin %s)\n",
		len(disc.Customers), disc.Horizon+1, disc.Origin.Format(time.RFC3339))

	// 2. Sufficient statistics
	stage = time.Now()
	rows, spendRows, err := cbs.Build(disc)
	if err != nil {
		return nil, fmt.Errorf("build statistics: %w", err)
	}
	report.StageDurations["statistics"] = time.Since(stage)

	// 3. Frequency model
	stage = time.Now()
	bp, bdiag, err := bgbb.Fit(rows, o.cfg.Fit)
	if err != nil {
		return nil, fmt.Errorf("fit bgbb: %w", err)
	}
	report.BGBB = bp
	report.BGBBDiagnostics = bdiag
	report.StageDurations["fit_bgbb"] = time.Since(stage)
	fmt.Printf("[FIT] BG/BB alpha=%.4f beta=%.4f gamma=%.4f delta=%.4f (LL=%.2f, %d iters)\n",
		bp.Alpha, bp.Beta, bp.Gamma, bp.Delta, bdiag.LogLikelihood, bdiag.Iterations)
	if bdiag.AllZeroX || bdiag.AllMaximalX {
		fmt.Printf("[FIT] Warning: population has zero variance in x; parameters sit on a boundary\n")
	}

	// 4. Monetary model
	stage = time.Now()
	sp, sdiag, err := spend.Fit(spendRows, o.cfg.Fit)
	if err != nil {
		return nil, fmt.Errorf("fit spend: %w", err)
	}
	report.Spend = sp
	report.SpendDiagnostics = sdiag
	report.StageDurations["fit_spend"] = time.Since(stage)
	fmt.Printf("[FIT] Gamma-Gamma p=%.4f q=%.4f gamma=%.4f (LL=%.2f)\n",
		sp.P, sp.Q, sp.Gamma, sdiag.LogLikelihood)

	// 5. Compose
	stage = time.Now()
	values, err := ltv.Compose(ctx, rows, bp, spendRows, sp, ltv.Config{
		DiscountRate: o.cfg.DiscountRate,
		Workers:      o.cfg.Workers,
	})
	if err != nil {
		return nil, fmt.Errorf("compose ltv: %w", err)
	}
	report.Customers = values

	newCustomer, err := ltv.NewCustomerValue(bp, sp, o.cfg.DiscountRate)
	if err != nil {
		return nil, fmt.Errorf("acquisition benchmark: %w", err)
	}
	report.NewCustomerValue = newCustomer
	report.StageDurations["compose"] = time.Since(stage)

	if o.repo != nil {
		if err := o.repo.SaveReport(ctx, report.RunID, report); err != nil {
			return nil, fmt.Errorf("persist report: %w", err)
		}
		fmt.Printf("[PIPELINE] Report %s persisted\n", report.RunID)
	}
	fmt.Printf("[PIPELINE] Run %s complete: %d customers, new-customer value %.4f\n",
		report.RunID, len(report.Customers), report.NewCustomerValue)
	return report, nil
}
