package e2e

import (
	"context"
	"errors"
	"net/http"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
	"k8s.io/utils/ptr"

	"github.com/green-hash/fleet-optimizer/api/v1alpha1"
	"github.com/green-hash/fleet-optimizer/pkg/client"
)

var _ = Describe("Optimizer end to end", Ordered, func() {
	ctx := context.Background()

	It("should serve the catalog", func() {
		sites, err := api.Sites(ctx)
		Expect(err).NotTo(HaveOccurred())
		Expect(sites).NotTo(BeEmpty())
	})

	It("should assemble optimization data from the price feed", func() {
		data, err := api.OptimizationData(ctx)
		Expect(err).NotTo(HaveOccurred())
		Expect(data.Sites).NotTo(BeEmpty())
		Expect(data.H).To(HaveLen(data.T))
		for _, s := range data.Sites {
			Expect(data.E[s]).To(HaveLen(data.T))
		}
		if externalURL == "" {
			Expect(data.T).To(Equal(6))
			Expect(data.Sites).To(Equal([]string{"CA", "TX"}))
			Expect(feedHits.Load()).To(BeNumerically(">=", 1))
		}
	})

	It("should reuse cached prices", func() {
		if externalURL != "" {
			Skip("feed assertions need the in-process server")
		}
		before := feedHits.Load()
		_, err := api.OptimizationData(ctx)
		Expect(err).NotTo(HaveOccurred())
		Expect(feedHits.Load()).To(Equal(before))
	})

	It("should optimize the fetched data within every constraint", func() {
		data, err := api.OptimizationData(ctx)
		Expect(err).NotTo(HaveOccurred())

		resp, err := api.Optimize(ctx, data)
		Expect(err).NotTo(HaveOccurred())
		Expect(resp.TotalProfit).To(BeNumerically(">", 0))
		Expect(resp.TotalEnergyCost).To(BeNumerically("<=", data.EBudget+0.01))
		for _, r := range resp.Results {
			Expect(r.Count).To(BeNumerically("<=", data.N[r.Site][r.Device]))
		}
		for site, used := range resp.PowerUsed {
			Expect(used).To(BeNumerically("<=", data.PMax[site]+1e-6))
		}
	})

	It("should pick up catalog edits on the next run", func() {
		stored, err := api.UpdateSite(ctx, v1alpha1.SiteConfig{
			SiteID:      "OH",
			State:       "OH",
			Power:       ptr.To(75000.0),
			EnergyPrice: []float64{0.55, 0.57, 0.56, 0.54},
			Miners:      v1alpha1.MinerConfig{Immersion: &v1alpha1.DeviceConfig{MaxMachines: ptr.To(3)}},
		})
		Expect(err).NotTo(HaveOccurred())
		Expect(stored.UpdatedAt).NotTo(BeEmpty())

		resp, err := api.Run(ctx)
		Expect(err).NotTo(HaveOccurred())
		Expect(resp.OptimalAllocation).To(HaveKey("OH"))
	})

	It("should report invalid problems as API errors", func() {
		_, err := api.Optimize(ctx, &v1alpha1.OptimizationData{})
		var apiErr *client.APIError
		Expect(errors.As(err, &apiErr)).To(BeTrue())
		Expect(apiErr.StatusCode).To(Equal(http.StatusBadRequest))
	})
})
