// Package clv exposes the analysis engine over HTTP. Request bodies are
// accepted as strict JSON or hand-written Hjson scenarios.
package clv

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"clv_analytics/pkg/core/bgbb"
	"clv_analytics/pkg/core/cbs"
	"clv_analytics/pkg/core/numopt"
	"clv_analytics/pkg/core/pipeline"
	"clv_analytics/pkg/core/spend"
	"clv_analytics/pkg/core/timeline"
	"clv_analytics/pkg/core/utils"
)

var pipelineCfg pipeline.Config

// InitHandler stores the default analysis configuration used by the
// report endpoint when a request does not override it.
func InitHandler(cfg pipeline.Config) {
	pipelineCfg = cfg
}

// ReportRequest is the body of POST /api/clv/report.
type ReportRequest struct {
	Transactions []timeline.Transaction `json:"transactions"`

	// Optional overrides; zero values fall back to the server config.
	PeriodDays   int     `json:"period_days"`
	DiscountRate float64 `json:"discount_rate"`
}

// HandleReport runs the full pipeline over a posted transaction log and
// returns the per-customer LTV table with fitted parameters and diagnostics.
func HandleReport(w http.ResponseWriter, r *http.Request) {
	setCORS(w)
	if r.Method == "OPTIONS" {
		w.WriteHeader(http.StatusOK)
		return
	}
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	body, err := io.ReadAll(r.Body)
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	var req ReportRequest
	if err := utils.ParseScenario(body, &req); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	if len(req.Transactions) == 0 {
		http.Error(w, "no transactions in request", http.StatusBadRequest)
		return
	}

	cfg := pipelineCfg
	if req.PeriodDays > 0 {
		cfg.PeriodLength = daysToDuration(req.PeriodDays)
	}
	if req.DiscountRate > 0 {
		cfg.DiscountRate = req.DiscountRate
	}

	fmt.Printf("[API] Report request: %d transactions\n", len(req.Transactions))
	report, err := pipeline.NewOrchestrator(cfg).Run(r.Context(), req.Transactions)
	if err != nil {
		writeModelError(w, err)
		return
	}
	writeJSON(w, report)
}

// ScoreRequest is the body of POST /api/clv/score: one customer's
// sufficient statistics scored under already-fitted parameters.
type ScoreRequest struct {
	BGBB         bgbb.Params  `json:"bgbb_params"`
	Spend        spend.Params `json:"spend_params"`
	X            int          `json:"x"`
	TX           int          `json:"t_x"`
	T            int          `json:"t"`
	MeanValue    float64      `json:"mean_value"`
	Count        int          `json:"count"`
	DiscountRate float64      `json:"discount_rate"`
}

// ScoreResponse mirrors the per-customer output columns.
type ScoreResponse struct {
	PAlive        float64 `json:"p_alive"`
	DERT          float64 `json:"dert"`
	ExpectedSpend float64 `json:"expected_spend"`
	LTV           float64 `json:"ltv"`
}

// HandleScore evaluates P(alive), DERT and expected spend for a single
// customer without refitting.
func HandleScore(w http.ResponseWriter, r *http.Request) {
	setCORS(w)
	if r.Method == "OPTIONS" {
		w.WriteHeader(http.StatusOK)
		return
	}
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	body, err := io.ReadAll(r.Body)
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	var req ScoreRequest
	if err := utils.ParseScenario(body, &req); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	pa, err := bgbb.PAlive(req.BGBB, req.X, req.TX, req.T)
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	dert, err := bgbb.DERT(req.BGBB, req.X, req.TX, req.T, req.DiscountRate)
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	es, err := spend.ExpectedSpend(req.Spend, req.MeanValue, req.Count)
	if err != nil {
		writeModelError(w, err)
		return
	}

	writeJSON(w, ScoreResponse{PAlive: pa, DERT: dert, ExpectedSpend: es, LTV: dert * es})
}

func daysToDuration(days int) time.Duration {
	return time.Duration(days) * 24 * time.Hour
}

func setCORS(w http.ResponseWriter) {
	w.Header().Set("Access-Control-Allow-Origin", "*")
	w.Header().Set("Access-Control-Allow-Methods", "POST, OPTIONS")
	w.Header().Set("Access-Control-Allow-Headers", "Content-Type")
}

func writeJSON(w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(v); err != nil {
		fmt.Printf("[API] Failed to encode response: %v\n", err)
	}
}

// writeModelError maps the engine's error taxonomy onto HTTP statuses:
// malformed statistics are the caller's fault (400), an undefined derived
// quantity is unprocessable (422), and a failed fit is an upstream model
// failure (502).
func writeModelError(w http.ResponseWriter, err error) {
	var vErr *cbs.ValidationError
	var dErr *spend.DomainError
	var cErr *numopt.ConvergenceError
	switch {
	case errors.As(err, &vErr):
		http.Error(w, err.Error(), http.StatusBadRequest)
	case errors.As(err, &dErr):
		http.Error(w, err.Error(), http.StatusUnprocessableEntity)
	case errors.As(err, &cErr):
		http.Error(w, err.Error(), http.StatusBadGateway)
	default:
		http.Error(w, err.Error(), http.StatusInternalServerError)
	}
}
