package bgbb

import (
	"math"
	"testing"
)

// Shape parameters in the neighborhood of published BG/BB fits on donation
// data; the death mixture Gamma < 1 makes the undiscounted DERT unbounded.
var donationParams = Params{Alpha: 1.204, Beta: 0.750, Gamma: 0.657, Delta: 2.783}

// A death mixture with Gamma > 1, where the undiscounted series converges.
var lightTailParams = Params{Alpha: 1.2, Beta: 0.8, Gamma: 2.5, Delta: 3.0}

func TestPAliveRange(t *testing.T) {
	for _, p := range []Params{donationParams, lightTailParams} {
		for n := 1; n <= 12; n++ {
			for tx := 0; tx <= n; tx++ {
				for x := 0; x <= tx; x++ {
					pa, err := PAlive(p, x, tx, n)
					if err != nil {
						t.Fatalf("PAlive(%d,%d,%d) failed: %v", x, tx, n, err)
					}
					if pa < 0 || pa > 1 || math.IsNaN(pa) {
						t.Errorf("PAlive(%d,%d,%d) = %f out of [0,1]", x, tx, n, pa)
					}
				}
			}
		}
	}
}

func TestPAliveExactWhenActiveInFinalPeriod(t *testing.T) {
	// t_x = T means the death sum is empty: the customer was observably
	// alive through the whole window, so P(alive) is exactly 1.
	pa, err := PAlive(donationParams, 4, 10, 10)
	if err != nil {
		t.Fatalf("PAlive failed: %v", err)
	}
	if pa != 1 {
		t.Errorf("Expected exact 1.0 for t_x = T, got %.17g", pa)
	}
}

func TestPAliveMonotoneInSilence(t *testing.T) {
	// A customer with no repeat activity (x = t_x = 0): the longer the
	// silence T, the lower the probability of still being alive.
	prev := 1.1
	for n := 1; n <= 20; n++ {
		pa, err := PAlive(donationParams, 0, 0, n)
		if err != nil {
			t.Fatalf("PAlive(0,0,%d) failed: %v", n, err)
		}
		if pa > prev+1e-12 {
			t.Errorf("PAlive(0,0,%d) = %f increased from %f", n, pa, prev)
		}
		prev = pa
	}
}

func TestDERTNonNegativeAndMonotoneInDiscount(t *testing.T) {
	rates := []float64{0, 0.001, 0.01, 0.1}
	histories := [][3]int{{0, 0, 0}, {0, 0, 10}, {2, 5, 10}, {4, 10, 10}}

	for _, h := range histories {
		prev := math.Inf(1)
		for _, d := range rates {
			v, err := DERT(lightTailParams, h[0], h[1], h[2], d)
			if err != nil {
				t.Fatalf("DERT(%v, d=%g) failed: %v", h, d, err)
			}
			if v < 0 || math.IsNaN(v) {
				t.Errorf("DERT(%v, d=%g) = %f, expected >= 0", h, d, v)
			}
			if v > prev+1e-9 {
				t.Errorf("DERT(%v) increased from %f to %f as discount rose to %g", h, prev, v, d)
			}
			prev = v
		}
	}
}

func TestDERTNewCustomer(t *testing.T) {
	// x = t_x = T = 0 is the newly acquired customer: likelihood 1, so
	// DERT = E[theta | no data] * discounted survival mass
	//      = alpha/(alpha+beta) * sum_{i>=1} e^{-d i} B(g, d+i)/B(g, d).
	v, err := DERT(lightTailParams, 0, 0, 0, 0.01)
	if err != nil {
		t.Fatalf("DERT(0,0,0) failed: %v", err)
	}
	if v <= 0 {
		t.Errorf("Expected positive new-customer DERT, got %f", v)
	}

	// It must dominate the DERT of a long-silent customer with the same
	// (zero) transaction history.
	silent, err := DERT(lightTailParams, 0, 0, 10, 0.01)
	if err != nil {
		t.Fatalf("DERT(0,0,10) failed: %v", err)
	}
	if silent >= v {
		t.Errorf("Silent customer DERT %f should be below new-customer DERT %f", silent, v)
	}
}

func TestDERTUnboundedAtZeroDiscountHeavyTail(t *testing.T) {
	// With Gamma <= 1 the survival probabilities decay too slowly for the
	// undiscounted series to converge; the expectation is genuinely infinite.
	v, err := DERT(donationParams, 1, 1, 2, 0)
	if err != nil {
		t.Fatalf("DERT failed: %v", err)
	}
	if !math.IsInf(v, 1) {
		t.Errorf("Expected +Inf for zero discount with Gamma <= 1, got %f", v)
	}
}

func TestEvalInputContract(t *testing.T) {
	if _, err := PAlive(donationParams, 4, 2, 6); err == nil {
		t.Error("Expected error for x > t_x")
	}
	if _, err := PAlive(donationParams, -1, 0, 6); err == nil {
		t.Error("Expected error for negative x")
	}
	if _, err := DERT(donationParams, 0, 0, 5, -0.1); err == nil {
		t.Error("Expected error for negative discount rate")
	}
	if _, err := DERT(Params{Alpha: -1, Beta: 1, Gamma: 1, Delta: 1}, 0, 0, 5, 0.1); err == nil {
		t.Error("Expected error for invalid parameters")
	}
}
