// Package timeline converts a raw transaction log into globally aligned
// discrete observation periods. This is the first stage of the CLV pipeline:
// every downstream quantity (recency, frequency, opportunity count) is
// defined in terms of these period indices.
package timeline

import (
	"fmt"
	"sort"
	"time"
)

// Transaction is a single immutable event from the transaction log.
type Transaction struct {
	CustomerID string    `json:"customer_id"`
	Timestamp  time.Time `json:"timestamp"`
	Amount     float64   `json:"amount"`
}

// CustomerTimeline holds one customer's activity expressed in period indices.
type CustomerTimeline struct {
	CustomerID string `json:"customer_id"`

	// Periods are the distinct period indices with at least one transaction,
	// ascending. Multiple transactions in the same period collapse into one
	// active period with their amounts summed in PeriodAmounts.
	Periods       []int           `json:"periods"`
	PeriodAmounts map[int]float64 `json:"period_amounts"`

	// Raw spend statistics over the calibration window, kept at transaction
	// (not period) granularity for the monetary-value model.
	TxnCount   int     `json:"txn_count"`
	MeanAmount float64 `json:"mean_amount"`
}

// Discretization is the immutable output of Discretize, consumed by the
// sufficient-statistics builder.
type Discretization struct {
	PeriodLength time.Duration     `json:"period_length"`
	Origin       time.Time         `json:"origin"`
	Horizon      int               `json:"horizon"` // last observable period index
	Customers    []CustomerTimeline `json:"customers"`
}

// Options control the discretization grid.
type Options struct {
	PeriodLength time.Duration

	// Origin overrides the grid origin. When nil the minimum timestamp across
	// the whole population is used, so periods are globally aligned rather
	// than per-customer.
	Origin *time.Time

	// CalibrationEnd drops transactions after the cutoff and pins the
	// observation horizon to it. When nil the horizon is the last observed
	// transaction period.
	CalibrationEnd *time.Time
}

// Discretize maps every transaction to its period index
// floor((timestamp - origin) / periodLength) and aggregates per customer.
// Customers with a single transaction are retained: the spend model needs
// them even though they contribute x=0 to the frequency model.
func Discretize(txns []Transaction, opts Options) (*Discretization, error) {
	if opts.PeriodLength <= 0 {
		return nil, fmt.Errorf("period length must be positive, got %v", opts.PeriodLength)
	}
	if len(txns) == 0 {
		return nil, fmt.Errorf("no transactions to discretize")
	}

	kept := txns
	if opts.CalibrationEnd != nil {
		kept = make([]Transaction, 0, len(txns))
		for _, t := range txns {
			if !t.Timestamp.After(*opts.CalibrationEnd) {
				kept = append(kept, t)
			}
		}
		if len(kept) == 0 {
			return nil, fmt.Errorf("no transactions on or before calibration end %s", opts.CalibrationEnd.Format(time.RFC3339))
		}
	}

	origin := kept[0].Timestamp
	if opts.Origin != nil {
		origin = *opts.Origin
	} else {
		for _, t := range kept[1:] {
			if t.Timestamp.Before(origin) {
				origin = t.Timestamp
			}
		}
	}

	type acc struct {
		amounts map[int]float64
		count   int
		total   float64
	}
	byCustomer := make(map[string]*acc)
	maxPeriod := 0
	for _, t := range kept {
		if t.Timestamp.Before(origin) {
			return nil, fmt.Errorf("transaction for %s at %s predates origin %s",
				t.CustomerID, t.Timestamp.Format(time.RFC3339), origin.Format(time.RFC3339))
		}
		p := int(t.Timestamp.Sub(origin) / opts.PeriodLength)
		a := byCustomer[t.CustomerID]
		if a == nil {
			a = &acc{amounts: make(map[int]float64)}
			byCustomer[t.CustomerID] = a
		}
		a.amounts[p] += t.Amount
		a.count++
		a.total += t.Amount
		if p > maxPeriod {
			maxPeriod = p
		}
	}

	horizon := maxPeriod
	if opts.CalibrationEnd != nil {
		horizon = int(opts.CalibrationEnd.Sub(origin) / opts.PeriodLength)
	}

	ids := make([]string, 0, len(byCustomer))
	for id := range byCustomer {
		ids = append(ids, id)
	}
	sort.Strings(ids)

	customers := make([]CustomerTimeline, 0, len(ids))
	for _, id := range ids {
		a := byCustomer[id]
		periods := make([]int, 0, len(a.amounts))
		for p := range a.amounts {
			periods = append(periods, p)
		}
		sort.Ints(periods)
		customers = append(customers, CustomerTimeline{
			CustomerID:    id,
			Periods:       periods,
			PeriodAmounts: a.amounts,
			TxnCount:      a.count,
			MeanAmount:    a.total / float64(a.count),
		})
	}

	return &Discretization{
		PeriodLength: opts.PeriodLength,
		Origin:       origin,
		Horizon:      horizon,
		Customers:    customers,
	}, nil
}
