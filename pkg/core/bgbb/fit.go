package bgbb

import (
	"fmt"
	"math"

	"clv_analytics/pkg/core/cbs"
	"clv_analytics/pkg/core/numopt"
)

// FitDiagnostics accompanies every fit, successful or not, so a caller can
// compare discretization choices and spot populations that destabilize the
// estimator.
type FitDiagnostics struct {
	LogLikelihood   float64 `json:"log_likelihood"`
	Iterations      int     `json:"iterations"`
	FuncEvaluations int     `json:"func_evaluations"`
	Customers       int     `json:"customers"`
	UniqueTriples   int     `json:"unique_triples"`

	// Degeneracy flags: a population with no variance in x gives the
	// optimizer no information about the transaction-probability mixture and
	// tends to drift toward a boundary.
	AllZeroX    bool `json:"all_zero_x"`
	AllMaximalX bool `json:"all_maximal_x"`
}

// Fit estimates (alpha, beta, gamma, delta) by maximizing the population
// log-likelihood over the CBS rows. The search runs over log-transformed
// parameters starting from all-ones. On failure the returned error is a
// *numopt.ConvergenceError carrying the last likelihood and iteration count;
// the diagnostics are still populated so degenerate inputs can be identified.
func Fit(rows []cbs.Row, cfg numopt.Config) (Params, FitDiagnostics, error) {
	var diag FitDiagnostics
	if len(rows) == 0 {
		return Params{}, diag, fmt.Errorf("no CBS rows to fit")
	}
	for _, r := range rows {
		if err := cbs.Validate(r); err != nil {
			return Params{}, diag, err
		}
	}

	grouped := groupTriples(rows)
	diag.Customers = len(rows)
	diag.UniqueTriples = len(grouped)
	diag.AllZeroX, diag.AllMaximalX = degeneracy(rows)

	res, err := numopt.MaximizeLogLik("bgbb", 4, cfg, func(z []float64) float64 {
		p := Params{
			Alpha: math.Exp(z[0]),
			Beta:  math.Exp(z[1]),
			Gamma: math.Exp(z[2]),
			Delta: math.Exp(z[3]),
		}
		return aggregateLogLik(p, grouped)
	})
	if err != nil {
		return Params{}, diag, err
	}

	params := Params{
		Alpha: math.Exp(res.X[0]),
		Beta:  math.Exp(res.X[1]),
		Gamma: math.Exp(res.X[2]),
		Delta: math.Exp(res.X[3]),
	}
	diag.LogLikelihood = res.LogLikelihood
	diag.Iterations = res.Iterations
	diag.FuncEvaluations = res.FuncEvaluations

	if err := params.Validate(); err != nil {
		return Params{}, diag, &numopt.ConvergenceError{
			Stage:      "bgbb",
			LastLogLik: res.LogLikelihood,
			Iterations: res.Iterations,
			Detail:     err.Error(),
		}
	}
	return params, diag, nil
}

// degeneracy reports whether the population carries zero variance in x:
// either nobody ever repeats (all x=0) or everybody transacts in every
// observed period (all x = t_x = T).
func degeneracy(rows []cbs.Row) (allZero, allMax bool) {
	allZero, allMax = true, true
	for _, r := range rows {
		if r.X != 0 {
			allZero = false
		}
		if r.X != r.T || r.TX != r.T {
			allMax = false
		}
		if !allZero && !allMax {
			return
		}
	}
	return
}
