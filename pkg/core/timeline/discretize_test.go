package timeline

import (
	"math"
	"testing"
	"time"
)

var base = time.Date(2025, 1, 6, 0, 0, 0, 0, time.UTC)

func day(n int) time.Time { return base.AddDate(0, 0, n) }

const week = 7 * 24 * time.Hour

func TestDiscretizeMergesSamePeriod(t *testing.T) {
	// Customer A transacts on days 0, 15, 16, 36 with a 7-day period:
	// periods 0, 2, 2, 5. The two day-15/16 transactions share period 2 and
	// must merge into one active period with amounts summed.
	txns := []Transaction{
		{CustomerID: "A", Timestamp: day(0), Amount: 10},
		{CustomerID: "A", Timestamp: day(15), Amount: 20},
		{CustomerID: "A", Timestamp: day(16), Amount: 5},
		{CustomerID: "A", Timestamp: day(36), Amount: 40},
	}

	d, err := Discretize(txns, Options{PeriodLength: week})
	if err != nil {
		t.Fatalf("Discretize failed: %v", err)
	}

	if len(d.Customers) != 1 {
		t.Fatalf("Expected 1 customer, got %d", len(d.Customers))
	}
	c := d.Customers[0]
	want := []int{0, 2, 5}
	if len(c.Periods) != len(want) {
		t.Fatalf("Expected periods %v, got %v", want, c.Periods)
	}
	for i, p := range want {
		if c.Periods[i] != p {
			t.Errorf("Period %d: expected %d, got %d", i, p, c.Periods[i])
		}
	}
	if c.PeriodAmounts[2] != 25 {
		t.Errorf("Expected period 2 amount 25 (20+5), got %f", c.PeriodAmounts[2])
	}

	// Spend stats stay at transaction granularity: 4 txns, mean 75/4.
	if c.TxnCount != 4 {
		t.Errorf("Expected 4 transactions, got %d", c.TxnCount)
	}
	if math.Abs(c.MeanAmount-18.75) > 1e-12 {
		t.Errorf("Expected mean amount 18.75, got %f", c.MeanAmount)
	}
}

func TestDiscretizeGlobalOrigin(t *testing.T) {
	// Origin is the population minimum, not per-customer: B starts on day 21
	// and lands in period 3 of the shared grid.
	txns := []Transaction{
		{CustomerID: "A", Timestamp: day(0), Amount: 1},
		{CustomerID: "B", Timestamp: day(21), Amount: 1},
		{CustomerID: "B", Timestamp: day(35), Amount: 1},
	}
	d, err := Discretize(txns, Options{PeriodLength: week})
	if err != nil {
		t.Fatalf("Discretize failed: %v", err)
	}
	if !d.Origin.Equal(day(0)) {
		t.Errorf("Expected origin %v, got %v", day(0), d.Origin)
	}
	// Customers are sorted by ID; B is second.
	b := d.Customers[1]
	if b.CustomerID != "B" || len(b.Periods) != 2 || b.Periods[0] != 3 || b.Periods[1] != 5 {
		t.Errorf("Expected B active in periods [3 5], got %v for %s", b.Periods, b.CustomerID)
	}
	if d.Horizon != 5 {
		t.Errorf("Expected horizon 5 (last observed period), got %d", d.Horizon)
	}
}

func TestDiscretizeCalibrationCutoff(t *testing.T) {
	cutoff := day(42)
	txns := []Transaction{
		{CustomerID: "A", Timestamp: day(0), Amount: 1},
		{CustomerID: "A", Timestamp: day(50), Amount: 1}, // beyond cutoff, dropped
	}
	d, err := Discretize(txns, Options{PeriodLength: week, CalibrationEnd: &cutoff})
	if err != nil {
		t.Fatalf("Discretize failed: %v", err)
	}
	if d.Horizon != 6 {
		t.Errorf("Expected horizon 6 (= 42/7), got %d", d.Horizon)
	}
	if len(d.Customers[0].Periods) != 1 {
		t.Errorf("Expected holdout transaction to be dropped, got periods %v", d.Customers[0].Periods)
	}
	if d.Customers[0].TxnCount != 1 {
		t.Errorf("Expected 1 calibration transaction, got %d", d.Customers[0].TxnCount)
	}
}

func TestDiscretizeRejectsBadInput(t *testing.T) {
	if _, err := Discretize(nil, Options{PeriodLength: week}); err == nil {
		t.Error("Expected error for empty transaction log")
	}
	if _, err := Discretize([]Transaction{{CustomerID: "A", Timestamp: day(0)}}, Options{}); err == nil {
		t.Error("Expected error for zero period length")
	}
}
