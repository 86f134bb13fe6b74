// Package cbs builds the customer-by-sufficient-statistic (CBS) table the
// BG/BB and Gamma-Gamma estimators consume: one (x, t_x, T) triple plus one
// (mean value, count) spend row per customer.
package cbs

import (
	"fmt"

	"clv_analytics/pkg/core/timeline"
)

// Row is one customer's sufficient statistics for the frequency model.
// All three fields are counted in periods relative to the customer's first
// active period.
type Row struct {
	CustomerID string `json:"customer_id"`
	X          int    `json:"x"`   // repeat-transaction periods: distinct active periods - 1
	TX         int    `json:"t_x"` // period of last transaction, relative to first
	T          int    `json:"t"`   // transaction opportunities observed
}

// SpendRow is one customer's sufficient statistics for the monetary model.
// Only the mean and the count are needed; per-transaction values are not.
type SpendRow struct {
	CustomerID string  `json:"customer_id"`
	MeanValue  float64 `json:"mean_value"`
	Count      int     `json:"count"`
}

// ValidationError reports a sufficient-statistics triple that violates the
// invariant 0 <= x <= t_x <= T. This always indicates a discretization bug
// upstream and is never silently corrected.
type ValidationError struct {
	CustomerID string
	X, TX, T   int
	Reason     string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid sufficient statistics for customer %q (x=%d, t_x=%d, T=%d): %s",
		e.CustomerID, e.X, e.TX, e.T, e.Reason)
}

// Validate checks the CBS invariant 0 <= x <= t_x <= T.
func Validate(r Row) error {
	switch {
	case r.X < 0:
		return &ValidationError{r.CustomerID, r.X, r.TX, r.T, "x is negative"}
	case r.X > r.TX:
		return &ValidationError{r.CustomerID, r.X, r.TX, r.T, "x exceeds t_x"}
	case r.TX > r.T:
		return &ValidationError{r.CustomerID, r.X, r.TX, r.T, "t_x exceeds observation horizon T"}
	}
	return nil
}

// Build derives the CBS table from a discretized transaction log.
// For a customer first active in period f with active period set P and a
// global horizon H:
//
//	x   = |P| - 1
//	t_x = max(P) - f
//	T   = H - f
//
// The first active period defines the customer's first transaction
// opportunity, so all three statistics are relative counts and comparable
// across cohorts that entered at different times.
func Build(d *timeline.Discretization) ([]Row, []SpendRow, error) {
	if d == nil || len(d.Customers) == 0 {
		return nil, nil, fmt.Errorf("empty discretization")
	}

	rows := make([]Row, 0, len(d.Customers))
	spend := make([]SpendRow, 0, len(d.Customers))
	for _, c := range d.Customers {
		if len(c.Periods) == 0 {
			return nil, nil, fmt.Errorf("customer %q has no active periods", c.CustomerID)
		}
		first := c.Periods[0]
		last := c.Periods[len(c.Periods)-1]
		r := Row{
			CustomerID: c.CustomerID,
			X:          len(c.Periods) - 1,
			TX:         last - first,
			T:          d.Horizon - first,
		}
		if err := Validate(r); err != nil {
			return nil, nil, err
		}
		rows = append(rows, r)
		spend = append(spend, SpendRow{
			CustomerID: c.CustomerID,
			MeanValue:  c.MeanAmount,
			Count:      c.TxnCount,
		})
	}
	return rows, spend, nil
}
