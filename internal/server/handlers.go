package server

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"time"

	"github.com/gorilla/mux"
	ctrl "sigs.k8s.io/controller-runtime"

	"github.com/green-hash/fleet-optimizer/api/v1alpha1"
	"github.com/green-hash/fleet-optimizer/internal/metrics"
	"github.com/green-hash/fleet-optimizer/pkg/builder"
	"github.com/green-hash/fleet-optimizer/pkg/core"
	"github.com/green-hash/fleet-optimizer/pkg/projector"
	"github.com/green-hash/fleet-optimizer/pkg/solver"
)

const maxPeriods = 8760

func (s *Server) handleOptimizationData(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	logger := ctrl.LoggerFrom(ctx)

	fail := func(status int, msg string) {
		writeJSON(w, status, v1alpha1.OptimizationDataResponse{
			Success:   false,
			Error:     msg,
			Timestamp: s.timestamp(),
		})
	}

	periods := s.periods
	if v := r.URL.Query().Get("periods"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n <= 0 || n > maxPeriods {
			fail(http.StatusBadRequest, fmt.Sprintf("periods must be an integer in [1, %d]", maxPeriods))
			return
		}
		periods = n
	}
	var budget float64
	if v := r.URL.Query().Get("budget"); v != "" {
		b, err := strconv.ParseFloat(v, 64)
		if err != nil || b <= 0 {
			fail(http.StatusBadRequest, "budget must be a positive number")
			return
		}
		budget = b
	}
	if s.prices == nil {
		fail(http.StatusServiceUnavailable, "no price source configured")
		return
	}

	sites := s.store.List()
	snap, err := s.prices.Snapshot(ctx, sites, periods)
	if err != nil {
		logger.Error(err, "Failed to fetch price snapshot")
		fail(http.StatusServiceUnavailable, "price data unavailable: "+err.Error())
		return
	}
	data, err := builder.FromCatalog(ctx, sites, snap.Prices(), budget)
	if err != nil {
		logger.Error(err, "Failed to assemble optimization data")
		fail(http.StatusInternalServerError, err.Error())
		return
	}
	if len(data.Sites) == 0 {
		fail(http.StatusServiceUnavailable, "no optimizable sites in the catalog")
		return
	}

	writeJSON(w, http.StatusOK, v1alpha1.OptimizationDataResponse{
		Success:   true,
		Data:      data,
		Message:   fmt.Sprintf("Optimization data for %d sites over %d periods", len(data.Sites), data.T),
		Timestamp: s.timestamp(),
	})
}

func (s *Server) handleOptimize(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	logger := ctrl.LoggerFrom(ctx)

	var data v1alpha1.OptimizationData
	if err := decodeBody(r, &data); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	p, err := builder.Build(ctx, &data)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	start := s.now()
	sol, err := s.optimizer.Optimize(ctx, p)
	elapsed := s.now().Sub(start)

	switch {
	case err == nil:
	case errors.Is(err, core.ErrTimeout) && sol != nil:
	case errors.Is(err, core.ErrInfeasibleProblem):
		metrics.ObserveOptimization("none", string(v1alpha1.StatusInfeasible), elapsed, 0)
		resp := s.response(projector.ZeroReport(p), &solver.Solution{Status: v1alpha1.StatusInfeasible, Solver: "none"}, elapsed)
		resp.Message = "Problem is infeasible"
		resp.Error = err.Error()
		writeJSON(w, http.StatusUnprocessableEntity, resp)
		return
	case errors.Is(err, core.ErrInvalidProblem):
		writeError(w, http.StatusBadRequest, err.Error())
		return
	default:
		logger.Error(err, "Optimization failed")
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}

	report := projector.Project(sol.Allocation, p)
	metrics.ObserveOptimization(sol.Solver, string(sol.Status), elapsed, sol.Nodes)
	metrics.SetAllocation(report.TotalProfit, report.Allocation)

	resp := s.response(report, sol, elapsed)
	switch {
	case err != nil:
		resp.Message = "Optimization stopped at the time limit; returning the best allocation found"
	case sol.Status == v1alpha1.StatusHeuristic:
		resp.Message = "Optimization completed with the greedy heuristic"
	default:
		resp.Message = "Optimization completed successfully"
	}
	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) response(report *projector.Report, sol *solver.Solution, elapsed time.Duration) v1alpha1.OptimizeResponse {
	return v1alpha1.OptimizeResponse{
		OptimalAllocation:   report.Allocation,
		Results:             report.Results,
		TotalProfit:         report.TotalProfit,
		TotalRevenue:        report.TotalRevenue,
		TotalEnergyCost:     report.TotalEnergyCost,
		ActiveDeviceCount:   report.ActiveDeviceCount,
		SitesOptimizedCount: report.SitesOptimizedCount,
		PeriodProfit:        report.PeriodProfit,
		PowerUsed:           report.PowerUsed,
		Status:              sol.Status,
		Optimal:             sol.Optimal,
		Solver:              sol.Solver,
		ElapsedMS:           elapsed.Milliseconds(),
		Timestamp:           s.timestamp(),
	}
}

func (s *Server) handleListSites(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, v1alpha1.SiteConfigList{Items: s.store.List()})
}

func (s *Server) handleGetSite(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]
	site, ok := s.store.Get(id)
	if !ok {
		writeError(w, http.StatusNotFound, fmt.Sprintf("site %q not found", id))
		return
	}
	writeJSON(w, http.StatusOK, site)
}

func (s *Server) handleConfig(w http.ResponseWriter, r *http.Request) {
	logger := ctrl.LoggerFrom(r.Context())

	var site v1alpha1.SiteConfig
	if err := decodeBody(r, &site); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	stored, err := s.store.Upsert(site)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	if inv, ok := s.prices.(invalidator); ok {
		inv.Invalidate()
	}
	logger.Info("Site configuration updated", "site", stored.SiteID)
	writeJSON(w, http.StatusOK, stored)
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, v1alpha1.HealthResponse{Status: "healthy", Timestamp: s.timestamp()})
}

func (s *Server) timestamp() string {
	return s.now().UTC().Format(time.RFC3339)
}

func decodeBody(r *http.Request, v any) error {
	if r.Body == nil {
		return errors.New("request body is required")
	}
	dec := json.NewDecoder(io.LimitReader(r.Body, maxBodyBytes))
	if err := dec.Decode(v); err != nil {
		if errors.Is(err, io.EOF) {
			return errors.New("request body is required")
		}
		return fmt.Errorf("invalid JSON body: %w", err)
	}
	return nil
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, v1alpha1.ErrorResponse{Error: msg})
}
