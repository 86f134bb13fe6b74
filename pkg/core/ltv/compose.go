// Package ltv composes the fitted frequency and monetary models into
// per-customer residual lifetime values: LTV = DERT * expected spend.
package ltv

import (
	"context"
	"fmt"
	"runtime"

	"clv_analytics/pkg/core/bgbb"
	"clv_analytics/pkg/core/cbs"
	"clv_analytics/pkg/core/spend"

	"golang.org/x/sync/errgroup"
)

// CustomerValue is the per-customer output of the analysis.
type CustomerValue struct {
	CustomerID    string  `json:"customer_id"`
	PAlive        float64 `json:"p_alive"`
	DERT          float64 `json:"dert"`
	ExpectedSpend float64 `json:"expected_spend"`
	LTV           float64 `json:"ltv"`
}

// Config controls the composition pass.
type Config struct {
	DiscountRate float64

	// Workers bounds the evaluation pool; 0 means GOMAXPROCS. The
	// per-customer evaluations are pure functions with no shared state, so
	// the result is identical for any worker count.
	Workers int
}

// Compose evaluates P(alive), DERT and expected spend for every CBS row and
// multiplies the latter two into the residual lifetime value. Customers
// without a spend row (or with zero recorded transactions) fall back to the
// population mean spend. Output order matches the input rows.
func Compose(ctx context.Context, rows []cbs.Row, bp bgbb.Params, spendRows []cbs.SpendRow, sp spend.Params, cfg Config) ([]CustomerValue, error) {
	if len(rows) == 0 {
		return nil, fmt.Errorf("no CBS rows to evaluate")
	}

	spendByID := make(map[string]cbs.SpendRow, len(spendRows))
	for _, s := range spendRows {
		spendByID[s.CustomerID] = s
	}

	workers := cfg.Workers
	if workers <= 0 {
		workers = runtime.GOMAXPROCS(0)
	}

	out := make([]CustomerValue, len(rows))
	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(workers)
	for i, row := range rows {
		i, row := i, row
		g.Go(func() error {
			if err := ctx.Err(); err != nil {
				return err
			}
			cv, err := evaluate(row, bp, spendByID, sp, cfg.DiscountRate)
			if err != nil {
				return err
			}
			out[i] = cv
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return out, nil
}

func evaluate(row cbs.Row, bp bgbb.Params, spendByID map[string]cbs.SpendRow, sp spend.Params, discount float64) (CustomerValue, error) {
	pa, err := bgbb.PAlive(bp, row.X, row.TX, row.T)
	if err != nil {
		return CustomerValue{}, fmt.Errorf("customer %q: %w", row.CustomerID, err)
	}
	dert, err := bgbb.DERT(bp, row.X, row.TX, row.T, discount)
	if err != nil {
		return CustomerValue{}, fmt.Errorf("customer %q: %w", row.CustomerID, err)
	}

	var es float64
	if s, ok := spendByID[row.CustomerID]; ok {
		es, err = spend.ExpectedSpend(sp, s.MeanValue, s.Count)
	} else {
		es, err = spend.PopulationMean(sp)
	}
	if err != nil {
		return CustomerValue{}, fmt.Errorf("customer %q: %w", row.CustomerID, err)
	}

	return CustomerValue{
		CustomerID:    row.CustomerID,
		PAlive:        pa,
		DERT:          dert,
		ExpectedSpend: es,
		LTV:           dert * es,
	}, nil
}

// NewCustomerValue is the expected residual LTV of a hypothetical customer
// acquired today (x=t_x=T=0) valued at the population mean spend, used as an
// acquisition benchmark.
func NewCustomerValue(bp bgbb.Params, sp spend.Params, discount float64) (float64, error) {
	dert, err := bgbb.DERT(bp, 0, 0, 0, discount)
	if err != nil {
		return 0, err
	}
	mean, err := spend.PopulationMean(sp)
	if err != nil {
		return 0, err
	}
	return dert * mean, nil
}
