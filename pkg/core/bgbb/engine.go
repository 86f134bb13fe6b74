package bgbb

import (
	"fmt"
	"math"

	"gonum.org/v1/gonum/mathext"
)

const (
	// dertRelTol truncates the DERT series once a term falls below this
	// fraction of the running sum.
	dertRelTol = 1e-12

	// dertMaxTerms caps the series regardless of tolerance. Each term is one
	// multiply via the Beta-ratio recurrence, so a large cap is cheap and
	// only matters for near-zero discount rates where convergence is slow.
	dertMaxTerms = 1 << 21
)

// PAlive is the posterior probability that a customer with history
// (x, t_x, n) has not permanently stopped transacting. Both numerator and
// denominator are evaluated in log space; for t_x = n the death sum is empty
// and the result is exactly 1 with no cancellation.
func PAlive(p Params, x, tx, n int) (float64, error) {
	if err := checkEvalInputs(p, x, tx, n); err != nil {
		return 0, err
	}
	if tx == n {
		return 1, nil
	}
	fx, fn := float64(x), float64(n)
	lbAB := mathext.Lbeta(p.Alpha, p.Beta)
	lbGD := mathext.Lbeta(p.Gamma, p.Delta)

	logA := logAliveTerm(p, fx, fn, lbAB, lbGD)
	pa := math.Exp(logA - logLik(p, x, tx, n))
	if pa > 1 {
		pa = 1
	}
	return pa, nil
}

// DERT is the discounted expected number of residual transactions for a
// customer with history (x, t_x, n) under a continuous per-period discount
// factor exp(-discount * i):
//
//	DERT = (1/L) * B(a+x+1, b+n-x)/B(a,b) * sum_{i>=1} e^{-d*i} * B(g, d+n+i)/B(g,d)
//
// The survival series is evaluated with the term recurrence
// B(g, m+1)/B(g, m) = m/(g+m), truncated at dertRelTol. The degenerate
// history x=t_x=n=0 is valid and yields the newly-acquired-customer
// expectation. With zero discount and Gamma <= 1 the series diverges; the
// expectation is genuinely unbounded and +Inf is returned.
func DERT(p Params, x, tx, n int, discount float64) (float64, error) {
	if err := checkEvalInputs(p, x, tx, n); err != nil {
		return 0, err
	}
	if math.IsNaN(discount) || discount < 0 {
		return 0, fmt.Errorf("discount rate must be non-negative, got %g", discount)
	}
	if discount == 0 && p.Gamma <= 1 {
		return math.Inf(1), nil
	}

	fx, fn := float64(x), float64(n)
	logL := logLik(p, x, tx, n)
	logTxn := mathext.Lbeta(p.Alpha+fx+1, p.Beta+fn-fx) - mathext.Lbeta(p.Alpha, p.Beta)

	// First survival term, then the cheap ratio recurrence.
	lbGD := mathext.Lbeta(p.Gamma, p.Delta)
	decay := math.Exp(-discount)
	term := decay * math.Exp(mathext.Lbeta(p.Gamma, p.Delta+fn+1)-lbGD)
	sum := 0.0
	for i := 1; i <= dertMaxTerms; i++ {
		sum += term
		if term < dertRelTol*sum {
			break
		}
		m := p.Delta + fn + float64(i)
		term *= decay * m / (p.Gamma + m)
	}

	return math.Exp(logTxn - logL) * sum, nil
}

// checkEvalInputs enforces the caller contract of the evaluation functions:
// valid positive parameters and a well-formed (x, t_x, n) triple. Valid
// triples never produce an error downstream.
func checkEvalInputs(p Params, x, tx, n int) error {
	if err := p.Validate(); err != nil {
		return err
	}
	if x < 0 || tx < 0 || n < 0 {
		return fmt.Errorf("negative sufficient statistic (x=%d, t_x=%d, T=%d)", x, tx, n)
	}
	if x > tx || tx > n {
		return fmt.Errorf("malformed sufficient statistics (x=%d, t_x=%d, T=%d): require x <= t_x <= T", x, tx, n)
	}
	return nil
}
