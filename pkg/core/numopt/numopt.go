// Package numopt wraps the numerical maximization both model estimators
// share: an unconstrained Nelder-Mead search over log-transformed parameters
// (positivity by construction) with a convergence contract that surfaces
// failures instead of returning partial parameter sets.
package numopt

import (
	"fmt"
	"math"

	"gonum.org/v1/gonum/optimize"
)

// Config bounds a single maximization run.
type Config struct {
	MaxIterations int     // major iteration budget, 0 means DefaultMaxIterations
	Tolerance     float64 // absolute log-likelihood convergence threshold, 0 means DefaultTolerance
}

const (
	DefaultMaxIterations = 2000
	DefaultTolerance     = 1e-10
)

// Result is a successful maximization outcome.
type Result struct {
	X               []float64 // maximizer in the log-parameter space
	LogLikelihood   float64   // achieved maximum
	Iterations      int
	FuncEvaluations int
}

// ConvergenceError reports a failed fit together with the diagnostic context
// a caller needs to retry with different initial values or a coarser
// discretization. It is never downgraded to a default parameter set.
type ConvergenceError struct {
	Stage      string
	LastLogLik float64
	Iterations int
	Detail     string
}

func (e *ConvergenceError) Error() string {
	return fmt.Sprintf("%s fit did not converge after %d iterations (last log-likelihood %g): %s",
		e.Stage, e.Iterations, e.LastLogLik, e.Detail)
}

// MaximizeLogLik maximizes logLik over dim unconstrained variables starting
// from the zero vector (all model parameters = 1.0 after exponentiation).
// A non-finite likelihood at the optimum or an exhausted iteration budget is
// a *ConvergenceError.
func MaximizeLogLik(stage string, dim int, cfg Config, logLik func(z []float64) float64) (*Result, error) {
	maxIter := cfg.MaxIterations
	if maxIter <= 0 {
		maxIter = DefaultMaxIterations
	}
	tol := cfg.Tolerance
	if tol <= 0 {
		tol = DefaultTolerance
	}

	problem := optimize.Problem{
		Func: func(z []float64) float64 {
			ll := logLik(z)
			if math.IsNaN(ll) || math.IsInf(ll, 0) {
				// Push the simplex away from regions where the likelihood
				// degenerates rather than letting NaN poison the search.
				return math.Inf(1)
			}
			return -ll
		},
	}
	settings := &optimize.Settings{
		MajorIterations: maxIter,
		Converger: &optimize.FunctionConverge{
			Absolute:   tol,
			Iterations: 100,
		},
	}

	init := make([]float64, dim)
	result, err := optimize.Minimize(problem, init, settings, &optimize.NelderMead{})
	if err != nil {
		last := math.Inf(-1)
		iters := 0
		if result != nil {
			last = -result.F
			iters = result.Stats.MajorIterations
		}
		return nil, &ConvergenceError{Stage: stage, LastLogLik: last, Iterations: iters, Detail: err.Error()}
	}
	if result.Status == optimize.IterationLimit {
		return nil, &ConvergenceError{
			Stage:      stage,
			LastLogLik: -result.F,
			Iterations: result.Stats.MajorIterations,
			Detail:     fmt.Sprintf("iteration budget of %d exhausted", maxIter),
		}
	}
	if math.IsNaN(result.F) || math.IsInf(result.F, 0) {
		return nil, &ConvergenceError{
			Stage:      stage,
			LastLogLik: -result.F,
			Iterations: result.Stats.MajorIterations,
			Detail:     "optimizer terminated at a non-finite likelihood",
		}
	}

	return &Result{
		X:               result.X,
		LogLikelihood:   -result.F,
		Iterations:      result.Stats.MajorIterations,
		FuncEvaluations: result.Stats.FuncEvaluations,
	}, nil
}
