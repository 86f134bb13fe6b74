// Package bgbb implements the Beta-Geometric/Beta-Binomial model of repeat
// transactions in discrete time: each period an alive customer transacts
// with probability theta ~ Beta(alpha, beta), and after each period dies
// with probability ~ Beta(gamma, delta), independent of the transaction
// outcome. The package fits the four shape parameters by maximum likelihood
// and evaluates the per-customer P(alive) and discounted-expected-residual-
// transaction quantities in closed form.
package bgbb

import (
	"fmt"
	"math"

	"clv_analytics/pkg/core/cbs"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/mathext"
)

// Params are the fitted BG/BB shape parameters. Alpha/Beta govern the
// transaction probability mixture, Gamma/Delta the per-period death
// probability mixture. Immutable once fit.
type Params struct {
	Alpha float64 `json:"alpha"`
	Beta  float64 `json:"beta"`
	Gamma float64 `json:"gamma"`
	Delta float64 `json:"delta"`
}

// Validate rejects non-positive or non-finite shape parameters.
func (p Params) Validate() error {
	for _, v := range []struct {
		name string
		val  float64
	}{
		{"alpha", p.Alpha}, {"beta", p.Beta}, {"gamma", p.Gamma}, {"delta", p.Delta},
	} {
		if math.IsNaN(v.val) || math.IsInf(v.val, 0) || v.val <= 0 {
			return fmt.Errorf("bgbb parameter %s must be positive and finite, got %g", v.name, v.val)
		}
	}
	return nil
}

// logLik is the log of the BG/BB likelihood of one (x, t_x, n) history:
// the customer is either still alive at n, or died in one of the periods
// t_x..n-1 after producing the observed transaction pattern. The terms can
// differ by many orders of magnitude across a population, so they are
// combined in log space.
func logLik(p Params, x, tx, n int) float64 {
	fx, ftx, fn := float64(x), float64(tx), float64(n)
	lbAB := mathext.Lbeta(p.Alpha, p.Beta)
	lbGD := mathext.Lbeta(p.Gamma, p.Delta)

	terms := make([]float64, 0, n-tx+1)
	terms = append(terms, logAliveTerm(p, fx, fn, lbAB, lbGD))
	for i := 0; i < n-tx; i++ {
		fi := float64(i)
		death := mathext.Lbeta(p.Alpha+fx, p.Beta+ftx+fi-fx) - lbAB +
			mathext.Lbeta(p.Gamma+1, p.Delta+ftx+fi) - lbGD
		terms = append(terms, death)
	}
	return floats.LogSumExp(terms)
}

// logAliveTerm is the log-probability of the history AND the customer still
// being alive at the end of period n.
func logAliveTerm(p Params, fx, fn, lbAB, lbGD float64) float64 {
	return mathext.Lbeta(p.Alpha+fx, p.Beta+fn-fx) - lbAB +
		mathext.Lbeta(p.Gamma, p.Delta+fn) - lbGD
}

// triple aggregation: customers sharing an (x, t_x, T) contribute identical
// likelihood terms, so the population log-likelihood sums over unique
// triples weighted by their multiplicity.
type triple struct{ x, tx, n int }

func groupTriples(rows []cbs.Row) map[triple]int {
	g := make(map[triple]int, len(rows))
	for _, r := range rows {
		g[triple{r.X, r.TX, r.T}]++
	}
	return g
}

func aggregateLogLik(p Params, grouped map[triple]int) float64 {
	total := 0.0
	for t, count := range grouped {
		total += float64(count) * logLik(p, t.x, t.tx, t.n)
	}
	return total
}
