package cbs

import (
	"errors"
	"testing"
	"time"

	"clv_analytics/pkg/core/timeline"
)

func TestBuildSufficientStatistics(t *testing.T) {
	// One customer active in periods {0, 2, 5} observed through horizon 6:
	// x = 3 distinct periods - 1 = 2, t_x = 5 - 0 = 5, T = 6 - 0 = 6.
	d := &timeline.Discretization{
		PeriodLength: 7 * 24 * time.Hour,
		Horizon:      6,
		Customers: []timeline.CustomerTimeline{
			{
				CustomerID:    "A",
				Periods:       []int{0, 2, 5},
				PeriodAmounts: map[int]float64{0: 10, 2: 25, 5: 40},
				TxnCount:      4,
				MeanAmount:    18.75,
			},
		},
	}

	rows, spendRows, err := Build(d)
	if err != nil {
		t.Fatalf("Build failed: %v", err)
	}
	r := rows[0]
	if r.X != 2 || r.TX != 5 || r.T != 6 {
		t.Errorf("Expected (x=2, t_x=5, T=6), got (x=%d, t_x=%d, T=%d)", r.X, r.TX, r.T)
	}
	s := spendRows[0]
	if s.Count != 4 || s.MeanValue != 18.75 {
		t.Errorf("Expected spend row (18.75, 4), got (%f, %d)", s.MeanValue, s.Count)
	}
}

func TestBuildRelativeToFirstPeriod(t *testing.T) {
	// A late entrant first active in period 3 with horizon 6:
	// T = 6 - 3 = 3, t_x = 5 - 3 = 2, x = 1.
	d := &timeline.Discretization{
		Horizon: 6,
		Customers: []timeline.CustomerTimeline{
			{
				CustomerID:    "B",
				Periods:       []int{3, 5},
				PeriodAmounts: map[int]float64{3: 1, 5: 1},
				TxnCount:      2,
				MeanAmount:    1,
			},
		},
	}
	rows, _, err := Build(d)
	if err != nil {
		t.Fatalf("Build failed: %v", err)
	}
	r := rows[0]
	if r.X != 1 || r.TX != 2 || r.T != 3 {
		t.Errorf("Expected (x=1, t_x=2, T=3), got (x=%d, t_x=%d, T=%d)", r.X, r.TX, r.T)
	}
}

func TestValidateRejectsCorruptTriples(t *testing.T) {
	cases := []Row{
		{CustomerID: "bad-x", X: 4, TX: 2, T: 6},  // x > t_x
		{CustomerID: "bad-t", X: 1, TX: 7, T: 6},  // t_x > T
		{CustomerID: "neg-x", X: -1, TX: 0, T: 6}, // negative
	}
	for _, c := range cases {
		err := Validate(c)
		if err == nil {
			t.Errorf("Expected validation error for %+v", c)
			continue
		}
		var vErr *ValidationError
		if !errors.As(err, &vErr) {
			t.Errorf("Expected *ValidationError for %+v, got %T", c, err)
		}
	}

	if err := Validate(Row{CustomerID: "ok", X: 2, TX: 5, T: 6}); err != nil {
		t.Errorf("Expected valid triple to pass, got %v", err)
	}
}

func TestBuildRejectsHorizonBeforeLastPeriod(t *testing.T) {
	// Horizon 4 but activity in period 5: t_x > T must surface as a
	// ValidationError, never be silently corrected.
	d := &timeline.Discretization{
		Horizon: 4,
		Customers: []timeline.CustomerTimeline{
			{CustomerID: "C", Periods: []int{0, 5}, PeriodAmounts: map[int]float64{0: 1, 5: 1}, TxnCount: 2, MeanAmount: 1},
		},
	}
	_, _, err := Build(d)
	var vErr *ValidationError
	if !errors.As(err, &vErr) {
		t.Fatalf("Expected *ValidationError, got %v", err)
	}
}
