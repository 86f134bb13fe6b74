// Package spend implements the Gamma-Gamma model of per-transaction monetary
// value: a customer's transaction values are Gamma(p, nu) with the rate nu
// itself Gamma(q, gamma) across customers. Only each customer's mean value
// and transaction count are needed, a sufficient-statistic simplification
// the estimator preserves.
package spend

import (
	"fmt"
	"math"

	"clv_analytics/pkg/core/cbs"
	"clv_analytics/pkg/core/numopt"
)

// Params are the fitted Gamma-Gamma shape parameters. Immutable once fit.
type Params struct {
	P     float64 `json:"p"`
	Q     float64 `json:"q"`
	Gamma float64 `json:"gamma"`
}

// Validate rejects non-positive or non-finite parameters.
func (p Params) Validate() error {
	for _, v := range []struct {
		name string
		val  float64
	}{
		{"p", p.P}, {"q", p.Q}, {"gamma", p.Gamma},
	} {
		if math.IsNaN(v.val) || math.IsInf(v.val, 0) || v.val <= 0 {
			return fmt.Errorf("spend parameter %s must be positive and finite, got %g", v.name, v.val)
		}
	}
	return nil
}

// DomainError reports fitted parameters outside the range where a derived
// quantity is defined, e.g. q <= 1 leaving the population mean undefined.
type DomainError struct {
	Param  string
	Value  float64
	Detail string
}

func (e *DomainError) Error() string {
	return fmt.Sprintf("spend model domain error: %s=%g: %s", e.Param, e.Value, e.Detail)
}

// FitDiagnostics accompanies every spend fit.
type FitDiagnostics struct {
	LogLikelihood   float64 `json:"log_likelihood"`
	Iterations      int     `json:"iterations"`
	FuncEvaluations int     `json:"func_evaluations"`
	Customers       int     `json:"customers"`

	// Degenerate is set when the population carries zero variance in mean
	// value, collapsing the model to the common mean in closed form.
	Degenerate bool `json:"degenerate"`
}

// logLik is the Gamma-Gamma log-likelihood of one customer observed with
// mean value m over c transactions.
func logLik(p Params, m float64, c int) float64 {
	fc := float64(c)
	lg1, _ := math.Lgamma(p.P*fc + p.Q)
	lg2, _ := math.Lgamma(p.P * fc)
	lg3, _ := math.Lgamma(p.Q)
	return lg1 - lg2 - lg3 +
		p.Q*math.Log(p.Gamma) +
		(p.P*fc-1)*math.Log(m) +
		p.P*fc*math.Log(fc) -
		(p.P*fc+p.Q)*math.Log(p.Gamma+m*fc)
}

// Fit estimates (p, q, gamma) by maximum likelihood over per-customer
// (mean value, count) rows. Rows need count >= 1 and a positive mean.
//
// A population with zero variance in mean value is a degenerate closed form:
// the across-customer mixture collapses and any heterogeneity parameters
// would be unidentified, so the fit short-circuits to (p=1, q=2, gamma=m)
// whose population mean p*gamma/(q-1) equals the common mean exactly, with
// the degeneracy flagged in the diagnostics.
func Fit(rows []cbs.SpendRow, cfg numopt.Config) (Params, FitDiagnostics, error) {
	var diag FitDiagnostics
	if len(rows) == 0 {
		return Params{}, diag, fmt.Errorf("no spend rows to fit")
	}
	for _, r := range rows {
		if r.Count < 1 {
			return Params{}, diag, fmt.Errorf("customer %q has transaction count %d, need >= 1", r.CustomerID, r.Count)
		}
		if r.MeanValue <= 0 || math.IsNaN(r.MeanValue) || math.IsInf(r.MeanValue, 0) {
			return Params{}, diag, fmt.Errorf("customer %q has invalid mean transaction value %g", r.CustomerID, r.MeanValue)
		}
	}
	diag.Customers = len(rows)

	if m, ok := commonMean(rows); ok {
		diag.Degenerate = true
		return Params{P: 1, Q: 2, Gamma: m}, diag, nil
	}

	res, err := numopt.MaximizeLogLik("gamma-gamma", 3, cfg, func(z []float64) float64 {
		p := Params{P: math.Exp(z[0]), Q: math.Exp(z[1]), Gamma: math.Exp(z[2])}
		total := 0.0
		for _, r := range rows {
			total += logLik(p, r.MeanValue, r.Count)
		}
		return total
	})
	if err != nil {
		return Params{}, diag, err
	}

	params := Params{P: math.Exp(res.X[0]), Q: math.Exp(res.X[1]), Gamma: math.Exp(res.X[2])}
	diag.LogLikelihood = res.LogLikelihood
	diag.Iterations = res.Iterations
	diag.FuncEvaluations = res.FuncEvaluations

	if err := params.Validate(); err != nil {
		return Params{}, diag, &numopt.ConvergenceError{
			Stage:      "gamma-gamma",
			LastLogLik: res.LogLikelihood,
			Iterations: res.Iterations,
			Detail:     err.Error(),
		}
	}
	return params, diag, nil
}

// PopulationMean is the model's expected per-transaction value for a
// customer with no observed history, p*gamma/(q-1). Defined only for q > 1.
func PopulationMean(p Params) (float64, error) {
	if err := p.Validate(); err != nil {
		return 0, err
	}
	if p.Q <= 1 {
		return 0, &DomainError{Param: "q", Value: p.Q, Detail: "population mean p*gamma/(q-1) requires q > 1"}
	}
	return p.P * p.Gamma / (p.Q - 1), nil
}

// ExpectedSpend is the posterior expected per-transaction value for a
// customer observed with mean value m over c transactions:
//
//	E[M | m, c] = (gamma + m*c) * p / (p*c + q - 1)
//
// an average of the observed mean and the population mean with the weight on
// the observed mean rising in c (shrinkage toward the population for
// low-count customers). c = 0 falls back to the population mean, which
// requires q > 1.
func ExpectedSpend(p Params, m float64, c int) (float64, error) {
	if err := p.Validate(); err != nil {
		return 0, err
	}
	if c < 0 {
		return 0, fmt.Errorf("transaction count must be non-negative, got %d", c)
	}
	if c == 0 {
		return PopulationMean(p)
	}
	if m <= 0 || math.IsNaN(m) || math.IsInf(m, 0) {
		return 0, fmt.Errorf("mean transaction value must be positive and finite, got %g", m)
	}
	fc := float64(c)
	denom := p.P*fc + p.Q - 1
	if denom <= 0 {
		return 0, &DomainError{Param: "q", Value: p.Q, Detail: fmt.Sprintf("conditional mean requires p*c+q > 1, got %g", p.P*fc+p.Q)}
	}
	return (p.Gamma + m*fc) * p.P / denom, nil
}

// commonMean reports whether every row shares one mean value.
func commonMean(rows []cbs.SpendRow) (float64, bool) {
	m := rows[0].MeanValue
	for _, r := range rows[1:] {
		if r.MeanValue != m {
			return 0, false
		}
	}
	return m, true
}
