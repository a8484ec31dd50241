package server

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"time"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
	"github.com/prometheus/common/expfmt"
	"github.com/prometheus/common/model"
	"k8s.io/utils/ptr"

	"github.com/green-hash/fleet-optimizer/api/v1alpha1"
	"github.com/green-hash/fleet-optimizer/internal/catalog"
	"github.com/green-hash/fleet-optimizer/internal/prices"
	"github.com/green-hash/fleet-optimizer/internal/testutil"
	"github.com/green-hash/fleet-optimizer/pkg/core"
	"github.com/green-hash/fleet-optimizer/pkg/solver"
)

type stubOptimizer struct {
	sol *solver.Solution
	err error
}

func (s *stubOptimizer) Optimize(_ context.Context, p *core.Problem) (*solver.Solution, error) {
	if s.sol != nil && s.sol.Allocation == nil {
		s.sol.Allocation = core.NewAllocation(p)
	}
	return s.sol, s.err
}

func makeSite(id string, power float64, hydro int) v1alpha1.SiteConfig {
	return v1alpha1.SiteConfig{
		SiteID:      id,
		State:       id,
		Power:       ptr.To(power),
		EnergyPrice: []float64{0.05, 0.06, 0.05, 0.04},
		Miners:      v1alpha1.MinerConfig{Hydro: &v1alpha1.DeviceConfig{MaxMachines: ptr.To(hydro)}},
	}
}

func do(h http.Handler, method, path string, body any) *httptest.ResponseRecorder {
	var r io.Reader
	switch b := body.(type) {
	case nil:
	case string:
		r = strings.NewReader(b)
	default:
		raw, err := json.Marshal(b)
		Expect(err).NotTo(HaveOccurred())
		r = bytes.NewReader(raw)
	}
	req := httptest.NewRequest(method, path, r)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func decode[T any](rec *httptest.ResponseRecorder) T {
	var out T
	Expect(json.Unmarshal(rec.Body.Bytes(), &out)).To(Succeed(), rec.Body.String())
	return out
}

var _ = Describe("Server", func() {
	var (
		store   *catalog.Store
		source  *prices.CachedSource
		opt     Optimizer
		handler http.Handler
		srv     *Server
	)

	build := func(opts Options) {
		var err error
		srv, err = New(opts)
		Expect(err).NotTo(HaveOccurred())
		srv.now = func() time.Time { return time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC) }
		handler = srv.Handler()
	}

	BeforeEach(func() {
		store = catalog.NewStore(makeSite("TX", 70000, 4), makeSite("CA", 80000, 5))
		static, err := prices.NewStaticSource(prices.DefaultStaticConfig())
		Expect(err).NotTo(HaveOccurred())
		source = prices.NewCachedSource(static, time.Minute)
		opt, err = solver.NewOptimizer(nil)
		Expect(err).NotTo(HaveOccurred())
		build(Options{Optimizer: opt, Store: store, Prices: source, Periods: 4})
	})

	Context("When constructing a server", func() {
		It("should require an optimizer and a positive horizon", func() {
			_, err := New(Options{Periods: 4})
			Expect(err).To(HaveOccurred())
			_, err = New(Options{Optimizer: opt})
			Expect(err).To(HaveOccurred())
		})
	})

	Context("GET /health", func() {
		It("should report healthy with a timestamp", func() {
			rec := do(handler, http.MethodGet, "/health", nil)
			Expect(rec.Code).To(Equal(http.StatusOK))
			resp := decode[v1alpha1.HealthResponse](rec)
			Expect(resp.Status).To(Equal("healthy"))
			Expect(resp.Timestamp).To(Equal("2025-03-01T12:00:00Z"))
		})
	})

	Context("GET /optimization-data", func() {
		It("should assemble data from the catalog and price source", func() {
			rec := do(handler, http.MethodGet, "/optimization-data", nil)
			Expect(rec.Code).To(Equal(http.StatusOK))
			resp := decode[v1alpha1.OptimizationDataResponse](rec)
			Expect(resp.Success).To(BeTrue())
			Expect(resp.Data).NotTo(BeNil())
			Expect(resp.Data.Sites).To(Equal([]string{"CA", "TX"}))
			Expect(resp.Data.T).To(Equal(4))
			Expect(resp.Data.H).To(HaveLen(4))
			Expect(resp.Data.E["TX"]).To(Equal([]float64{0.05, 0.06, 0.05, 0.04}))
			Expect(resp.Data.N["CA"]["hydro"]).To(Equal(5))
			Expect(resp.Data.EBudget).To(BeNumerically(">", 0))
		})

		It("should honor the periods and budget query parameters", func() {
			rec := do(handler, http.MethodGet, "/optimization-data?periods=2&budget=1500", nil)
			Expect(rec.Code).To(Equal(http.StatusOK))
			resp := decode[v1alpha1.OptimizationDataResponse](rec)
			Expect(resp.Data.T).To(Equal(2))
			Expect(resp.Data.EBudget).To(Equal(1500.0))
		})

		It("should reject malformed query parameters", func() {
			for _, q := range []string{"periods=abc", "periods=0", "budget=-1", "budget=x"} {
				rec := do(handler, http.MethodGet, "/optimization-data?"+q, nil)
				Expect(rec.Code).To(Equal(http.StatusBadRequest), q)
				resp := decode[v1alpha1.OptimizationDataResponse](rec)
				Expect(resp.Success).To(BeFalse())
				Expect(resp.Error).NotTo(BeEmpty())
			}
		})

		It("should answer 503 without a price source", func() {
			build(Options{Optimizer: opt, Store: store, Periods: 4})
			rec := do(handler, http.MethodGet, "/optimization-data", nil)
			Expect(rec.Code).To(Equal(http.StatusServiceUnavailable))
			Expect(decode[v1alpha1.OptimizationDataResponse](rec).Success).To(BeFalse())
		})

		It("should answer 503 when no site can be optimized", func() {
			build(Options{Optimizer: opt, Store: catalog.NewStore(), Prices: source, Periods: 4})
			rec := do(handler, http.MethodGet, "/optimization-data", nil)
			Expect(rec.Code).To(Equal(http.StatusServiceUnavailable))
			resp := decode[v1alpha1.OptimizationDataResponse](rec)
			Expect(resp.Success).To(BeFalse())
			Expect(resp.Data).To(BeNil())
			Expect(resp.Error).To(ContainSubstring("no optimizable sites"))

			unpowered := makeSite("NV", 1000, 2)
			unpowered.Power = nil
			build(Options{Optimizer: opt, Store: catalog.NewStore(unpowered), Prices: source, Periods: 4})
			rec = do(handler, http.MethodGet, "/optimization-data", nil)
			Expect(rec.Code).To(Equal(http.StatusServiceUnavailable))
			Expect(decode[v1alpha1.OptimizationDataResponse](rec).Success).To(BeFalse())
		})
	})

	Context("POST /optimize", func() {
		It("should optimize the three-site sample", func() {
			data := testutil.ThreeSiteData()
			rec := do(handler, http.MethodPost, "/optimize", data)
			Expect(rec.Code).To(Equal(http.StatusOK), rec.Body.String())

			resp := decode[v1alpha1.OptimizeResponse](rec)
			Expect(resp.TotalProfit).To(BeNumerically(">", 0))
			Expect(resp.Results).NotTo(BeEmpty())
			Expect(resp.OptimalAllocation).To(HaveLen(3))
			Expect(resp.OptimalAllocation["CA"]).To(HaveLen(5))
			Expect(resp.PeriodProfit).To(HaveLen(12))
			Expect(resp.Timestamp).To(Equal("2025-03-01T12:00:00Z"))
			for _, r := range resp.Results {
				Expect(r.Count).To(BeNumerically(">", 0))
				Expect(r.Count).To(BeNumerically("<=", data.N[r.Site][r.Device]))
			}
			for site, used := range resp.PowerUsed {
				Expect(used).To(BeNumerically("<=", data.PMax[site]+1e-6))
			}
			Expect(resp.TotalEnergyCost).To(BeNumerically("<=", data.EBudget+0.01))
		})

		It("should round-trip the data served by /optimization-data", func() {
			rec := do(handler, http.MethodGet, "/optimization-data", nil)
			data := decode[v1alpha1.OptimizationDataResponse](rec).Data

			rec = do(handler, http.MethodPost, "/optimize", data)
			Expect(rec.Code).To(Equal(http.StatusOK), rec.Body.String())
			resp := decode[v1alpha1.OptimizeResponse](rec)
			Expect(resp.Optimal).To(BeTrue())
			Expect(resp.Status).To(Equal(v1alpha1.StatusOptimal))
		})

		It("should reject bodies that are not valid problems", func() {
			missing := testutil.ThreeSiteData()
			missing.Sites = nil
			for _, body := range []any{"", "{", "[1,2]", missing} {
				rec := do(handler, http.MethodPost, "/optimize", body)
				Expect(rec.Code).To(Equal(http.StatusBadRequest), fmt.Sprint(body))
				Expect(decode[v1alpha1.ErrorResponse](rec).Error).NotTo(BeEmpty())
			}
		})

		It("should answer 422 with a zero allocation for infeasible problems", func() {
			build(Options{
				Optimizer: &stubOptimizer{err: core.NewInfeasibleProblem("energy budget %v is negative", -1)},
				Store:     store,
				Prices:    source,
				Periods:   4,
			})
			rec := do(handler, http.MethodPost, "/optimize", testutil.SingleSiteData())
			Expect(rec.Code).To(Equal(http.StatusUnprocessableEntity))
			resp := decode[v1alpha1.OptimizeResponse](rec)
			Expect(resp.Status).To(Equal(v1alpha1.StatusInfeasible))
			Expect(resp.Error).To(ContainSubstring("infeasible"))
			Expect(resp.OptimalAllocation["TX"]["hydro"]).To(Equal(0))
			Expect(resp.Results).To(BeEmpty())
			Expect(resp.TotalProfit).To(Equal(0.0))
		})

		It("should return the incumbent on timeout", func() {
			sol := &solver.Solution{Status: v1alpha1.StatusTimeout, Solver: "exact"}
			build(Options{
				Optimizer: &stubOptimizer{sol: sol, err: fmt.Errorf("%w: stopped", core.ErrTimeout)},
				Store:     store,
				Prices:    source,
				Periods:   4,
			})
			rec := do(handler, http.MethodPost, "/optimize", testutil.SingleSiteData())
			Expect(rec.Code).To(Equal(http.StatusOK))
			resp := decode[v1alpha1.OptimizeResponse](rec)
			Expect(resp.Optimal).To(BeFalse())
			Expect(resp.Status).To(Equal(v1alpha1.StatusTimeout))
			Expect(resp.Message).To(ContainSubstring("time limit"))
		})

		It("should answer 500 on internal solver errors", func() {
			build(Options{
				Optimizer: &stubOptimizer{err: core.NewInternalSolverError("solver panicked")},
				Store:     store,
				Prices:    source,
				Periods:   4,
			})
			rec := do(handler, http.MethodPost, "/optimize", testutil.SingleSiteData())
			Expect(rec.Code).To(Equal(http.StatusInternalServerError))
			Expect(decode[v1alpha1.ErrorResponse](rec).Error).To(ContainSubstring("internal solver error"))
		})

		It("should rate limit bursts", func() {
			build(Options{Optimizer: opt, Store: store, Prices: source, Periods: 4, RateLimit: 0.001, Burst: 1})
			Expect(do(handler, http.MethodPost, "/optimize", testutil.SingleSiteData()).Code).To(Equal(http.StatusOK))
			rec := do(handler, http.MethodPost, "/optimize", testutil.SingleSiteData())
			Expect(rec.Code).To(Equal(http.StatusTooManyRequests))
		})
	})

	Context("Site catalog endpoints", func() {
		It("should list and get sites", func() {
			rec := do(handler, http.MethodGet, "/sites", nil)
			Expect(rec.Code).To(Equal(http.StatusOK))
			list := decode[v1alpha1.SiteConfigList](rec)
			Expect(list.Items).To(HaveLen(2))
			Expect(list.Items[0].SiteID).To(Equal("CA"))

			rec = do(handler, http.MethodGet, "/sites/TX", nil)
			Expect(rec.Code).To(Equal(http.StatusOK))
			Expect(*decode[v1alpha1.SiteConfig](rec).Power).To(Equal(70000.0))

			rec = do(handler, http.MethodGet, "/sites/WA", nil)
			Expect(rec.Code).To(Equal(http.StatusNotFound))
		})

		It("should store site configuration and invalidate cached prices", func() {
			_, err := source.Snapshot(context.Background(), store.List(), 4)
			Expect(err).NotTo(HaveOccurred())
			Expect(source.Len()).To(Equal(1))

			site := makeSite("OH", 75000, 6)
			rec := do(handler, http.MethodPost, "/config", site)
			Expect(rec.Code).To(Equal(http.StatusOK), rec.Body.String())
			stored := decode[v1alpha1.SiteConfig](rec)
			Expect(stored.SiteID).To(Equal("OH"))
			Expect(stored.UpdatedAt).NotTo(BeEmpty())
			Expect(store.Len()).To(Equal(3))
			Expect(source.Len()).To(Equal(0))
		})

		It("should reject invalid site configuration", func() {
			Expect(do(handler, http.MethodPost, "/config", "{").Code).To(Equal(http.StatusBadRequest))
			bad := makeSite("OH", -5, 1)
			Expect(do(handler, http.MethodPost, "/config", bad).Code).To(Equal(http.StatusBadRequest))
			Expect(store.Len()).To(Equal(2))
		})
	})

	Context("Routing", func() {
		It("should answer unknown endpoints with a JSON 404", func() {
			rec := do(handler, http.MethodGet, "/nope", nil)
			Expect(rec.Code).To(Equal(http.StatusNotFound))
			Expect(decode[v1alpha1.ErrorResponse](rec).Error).To(Equal("Endpoint not found"))
		})

		It("should answer wrong methods with 405", func() {
			rec := do(handler, http.MethodDelete, "/optimize", nil)
			Expect(rec.Code).To(Equal(http.StatusMethodNotAllowed))
		})

		It("should answer CORS preflight requests", func() {
			rec := do(handler, http.MethodOptions, "/optimize", nil)
			Expect(rec.Code).To(Equal(http.StatusNoContent))
			Expect(rec.Header().Get("Access-Control-Allow-Origin")).To(Equal("*"))
			Expect(rec.Header().Get("Access-Control-Allow-Methods")).To(ContainSubstring("POST"))

			rec = do(handler, http.MethodGet, "/health", nil)
			Expect(rec.Header().Get("Access-Control-Allow-Origin")).To(Equal("*"))
		})

		It("should serve liveness and readiness checks", func() {
			Expect(do(handler, http.MethodGet, "/healthz", nil).Code).To(Equal(http.StatusOK))
			Expect(do(handler, http.MethodGet, "/readyz", nil).Code).To(Equal(http.StatusOK))

			build(Options{Optimizer: opt, Store: catalog.NewStore(), Prices: source, Periods: 4})
			Expect(do(handler, http.MethodGet, "/readyz", nil).Code).NotTo(Equal(http.StatusOK))
			Expect(do(handler, http.MethodGet, "/healthz", nil).Code).To(Equal(http.StatusOK))
		})

		It("should expose optimizer metrics", func() {
			Expect(do(handler, http.MethodPost, "/optimize", testutil.SingleSiteData()).Code).To(Equal(http.StatusOK))
			rec := do(handler, http.MethodGet, "/metrics", nil)
			Expect(rec.Code).To(Equal(http.StatusOK))

			parser := expfmt.NewTextParser(model.UTF8Validation)
			families, err := parser.TextToMetricFamilies(rec.Body)
			Expect(err).NotTo(HaveOccurred())
			Expect(families).To(HaveKey("greenhash_optimizations_total"))
			Expect(families).To(HaveKey("greenhash_optimization_duration_seconds"))

			allocated := families["greenhash_allocated_devices"]
			Expect(allocated).NotTo(BeNil())
			Expect(allocated.GetMetric()).To(HaveLen(1))
			m := allocated.GetMetric()[0]
			labels := map[string]string{}
			for _, l := range m.GetLabel() {
				labels[l.GetName()] = l.GetValue()
			}
			Expect(labels).To(Equal(map[string]string{"site": "TX", "device": "hydro"}))
			Expect(m.GetGauge().GetValue()).To(Equal(10.0))
			Expect(families["greenhash_optimization_profit_dollars"].GetMetric()[0].GetGauge().GetValue()).To(Equal(5.0))
		})
	})

	Context("Run", func() {
		It("should stop when the context is cancelled", func() {
			ctx, cancel := context.WithCancel(context.Background())
			done := make(chan error, 1)
			go func() { done <- srv.Run(ctx, "127.0.0.1:0") }()
			time.Sleep(50 * time.Millisecond)
			cancel()
			Eventually(done, 5*time.Second).Should(Receive(BeNil()))
		})
	})
})
