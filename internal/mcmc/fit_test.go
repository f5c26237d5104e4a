package mcmc_test

import (
	"bytes"
	"context"
	"math"
	"sync"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/san-kum/dynfit/internal/mcmc"
	"github.com/san-kum/dynfit/internal/sim"
)

var (
	days   = []float64{0, 2, 4, 6, 8, 10, 12}
	noise  = []float64{0.02, -0.03, 0.01, 0.04, -0.02, 0, -0.01}
	height = func() []float64 {
		h := make([]float64, len(days))
		for i, t := range days {
			h[i] = 1 + 0.5*t + noise[i]
		}
		return h
	}()
)

func linearGrowth(out *bytes.Buffer) *sim.Simulation {
	s := sim.New()
	s.SetOutput(out)
	Expect(s.Add("h' = a", []float64{1})).To(Succeed())
	Expect(s.AddData(days, map[string][]float64{"h": height})).To(Succeed())
	Expect(s.SetParam("a", 1)).To(Succeed())
	return s
}

var _ = Describe("Model", func() {
	var (
		ctx context.Context
		out *bytes.Buffer
		s   *sim.Simulation
	)

	BeforeEach(func() {
		ctx = context.Background()
		out = &bytes.Buffer{}
		s = linearGrowth(out)
	})

	Describe("New", func() {
		It("adds a noise scale for each data variable", func() {
			m, err := mcmc.New(s, map[string]mcmc.Prior{"a": {Low: -10, High: 10}})
			Expect(err).NotTo(HaveOccurred())
			Expect(m.Names()).To(Equal([]string{"a", "h_sigma"}))

			p, ok := m.Prior("h_sigma")
			Expect(ok).To(BeTrue())
			Expect(p.Low).To(Equal(0.0))
			Expect(p.High).To(BeNumerically("~", 10*(height[6]-height[0]), 1e-9))
		})

		It("keeps an explicit noise prior", func() {
			m, err := mcmc.New(s, map[string]mcmc.Prior{
				"a":       {Low: -10, High: 10},
				"h_sigma": {Low: 0.01, High: 1},
			})
			Expect(err).NotTo(HaveOccurred())
			p, _ := m.Prior("h_sigma")
			Expect(p).To(Equal(mcmc.Prior{Low: 0.01, High: 1}))
		})

		It("treats a bound parameter ending in _sigma as a parameter", func() {
			Expect(s.SetParam("noise_sigma", 0.5)).To(Succeed())
			m, err := mcmc.New(s, map[string]mcmc.Prior{
				"a":           {Low: -10, High: 10},
				"noise_sigma": {Low: 0, High: 1},
			})
			Expect(err).NotTo(HaveOccurred())
			Expect(m.Names()).To(Equal([]string{"a", "noise_sigma", "h_sigma"}))
		})

		DescribeTable("rejects bad input",
			func(priors map[string]mcmc.Prior, want error) {
				_, err := mcmc.New(s, priors)
				Expect(err).To(MatchError(want))
			},
			Entry("unknown parameter", map[string]mcmc.Prior{"b": {Low: 0, High: 1}}, mcmc.ErrUnknownParameter),
			Entry("unknown initial value", map[string]mcmc.Prior{"initial_q": {Low: 0, High: 1}}, mcmc.ErrUnknownParameter),
			Entry("noise for missing data", map[string]mcmc.Prior{"q_sigma": {Low: 0, High: 1}}, mcmc.ErrUnknownParameter),
			Entry("reversed bounds", map[string]mcmc.Prior{"a": {Low: 1, High: 0}}, mcmc.ErrInvalidPrior),
			Entry("infinite bounds", map[string]mcmc.Prior{"a": {Low: 0, High: math.Inf(1)}}, mcmc.ErrInvalidPrior),
		)

		It("requires data", func() {
			bare := sim.New()
			Expect(bare.Add("x' = a", []float64{1})).To(Succeed())
			Expect(bare.SetParam("a", 1)).To(Succeed())
			_, err := mcmc.New(bare, map[string]mcmc.Prior{"a": {Low: 0, High: 1}})
			Expect(err).To(MatchError(mcmc.ErrNoData))
		})
	})

	Context("before fitting", func() {
		It("reports ErrNotFitted", func() {
			m, err := mcmc.New(s, map[string]mcmc.Prior{"a": {Low: -10, High: 10}})
			Expect(err).NotTo(HaveOccurred())

			_, err = m.Value("a")
			Expect(err).To(MatchError(mcmc.ErrNotFitted))
			_, err = m.Draw()
			Expect(err).To(MatchError(mcmc.ErrNotFitted))
			Expect(m.PlotDistributions(false)).To(MatchError(mcmc.ErrNotFitted))
		})
	})

	Describe("Fit", func() {
		It("recovers the growth rate of linear data", func() {
			m, err := mcmc.New(s, map[string]mcmc.Prior{"a": {Low: -10, High: 10}})
			Expect(err).NotTo(HaveOccurred())
			Expect(m.Fit(ctx, 5000, mcmc.WithSeed(1))).To(Succeed())

			a, err := m.Value("a")
			Expect(err).NotTo(HaveOccurred())
			Expect(a).To(BeNumerically("~", 0.5, 0.15))

			applied, _ := s.Param("a")
			Expect(applied).To(Equal(a))

			sigma, err := m.Value("h_sigma")
			Expect(err).NotTo(HaveOccurred())
			Expect(sigma).To(BeNumerically(">", 0))
			Expect(sigma).To(BeNumerically("<", 1))
		})

		It("fits initial values alongside parameters", func() {
			m, err := mcmc.New(s, map[string]mcmc.Prior{
				"a":         {Low: -10, High: 10},
				"initial_h": {Low: 0, High: 4},
			})
			Expect(err).NotTo(HaveOccurred())
			Expect(m.Fit(ctx, 8000, mcmc.WithSeed(7))).To(Succeed())

			h0, _ := m.Value("initial_h")
			Expect(h0).To(BeNumerically("~", 1, 0.3))
			applied, _ := s.Initial("h")
			Expect(applied).To(Equal(h0))

			mapValues, err := m.MAP()
			Expect(err).NotTo(HaveOccurred())
			Expect(mapValues).To(HaveKey("initial_h"))
		})

		It("is reproducible for a fixed seed", func() {
			priors := map[string]mcmc.Prior{"a": {Low: -10, High: 10}}
			m1, _ := mcmc.New(linearGrowth(&bytes.Buffer{}), priors)
			m2, _ := mcmc.New(linearGrowth(&bytes.Buffer{}), priors)
			Expect(m1.Fit(ctx, 1000, mcmc.WithSeed(42), mcmc.WithChains(2))).To(Succeed())
			Expect(m2.Fit(ctx, 1000, mcmc.WithSeed(42), mcmc.WithChains(2))).To(Succeed())

			b1, _ := m1.Best()
			b2, _ := m2.Best()
			Expect(b1).To(Equal(b2))
		})

		It("honours burn and thin", func() {
			m, _ := mcmc.New(s, map[string]mcmc.Prior{"a": {Low: -10, High: 10}})
			Expect(m.Fit(ctx, 1000, mcmc.WithSeed(3), mcmc.WithBurn(200), mcmc.WithThin(4))).To(Succeed())

			rows, logPost, err := m.Trace()
			Expect(err).NotTo(HaveOccurred())
			Expect(rows).To(HaveLen(200))
			Expect(logPost).To(HaveLen(200))
			Expect(rows[0]).To(HaveLen(2))
		})

		It("reports progress for every chain", func() {
			var (
				mu   sync.Mutex
				last = map[int]mcmc.Progress{}
			)
			m, _ := mcmc.New(s, map[string]mcmc.Prior{"a": {Low: -10, High: 10}})
			err := m.Fit(ctx, 500, mcmc.WithSeed(5), mcmc.WithChains(3), mcmc.WithProgress(func(p mcmc.Progress) {
				mu.Lock()
				defer mu.Unlock()
				last[p.Chain] = p
			}))
			Expect(err).NotTo(HaveOccurred())
			Expect(last).To(HaveLen(3))
			for _, p := range last {
				Expect(p.Iter).To(Equal(500))
				Expect(p.Total).To(Equal(500))
			}

			chains, _ := m.Chains()
			Expect(chains).To(HaveLen(3))
		})

		It("stops when the context is cancelled", func() {
			m, _ := mcmc.New(s, map[string]mcmc.Prior{"a": {Low: -10, High: 10}})
			cctx, cancel := context.WithCancel(ctx)
			cancel()
			Expect(m.Fit(cctx, 1000, mcmc.WithSeed(1))).To(MatchError(context.Canceled))
		})

		DescribeTable("rejects bad settings",
			func(iter int, opts ...mcmc.FitOption) {
				m, _ := mcmc.New(s, map[string]mcmc.Prior{"a": {Low: -10, High: 10}})
				Expect(m.Fit(ctx, iter, opts...)).NotTo(Succeed())
			},
			Entry("no iterations", 0),
			Entry("burn past end", 100, mcmc.WithBurn(100)),
			Entry("zero thin", 100, mcmc.WithThin(0)),
			Entry("zero chains", 100, mcmc.WithChains(0)),
		)
	})

	Context("after fitting", func() {
		var m *mcmc.Model

		BeforeEach(func() {
			var err error
			m, err = mcmc.New(s, map[string]mcmc.Prior{"a": {Low: -10, High: 10}})
			Expect(err).NotTo(HaveOccurred())
			Expect(m.Fit(ctx, 3000, mcmc.WithSeed(11), mcmc.WithChains(2))).To(Succeed())
		})

		It("draws posterior samples into the simulation", func() {
			drawn, err := m.Draw()
			Expect(err).NotTo(HaveOccurred())
			a, _ := s.Param("a")
			Expect(a).To(Equal(drawn["a"]))
			Expect(a).To(BeNumerically(">=", -10))
			Expect(a).To(BeNumerically("<=", 10))

			s.NoPlots = true
			Expect(s.Run(ctx, 0, 12)).To(Succeed())
		})

		It("exposes parameters, predictions and data as variables", func() {
			av, err := m.Variable("a")
			Expect(err).NotTo(HaveOccurred())
			Expect(av.Kind).To(Equal(mcmc.Stochastic))
			st := av.Stats()
			Expect(st.Mean[0]).To(BeNumerically("~", av.Scalar(), 1e-12))
			Expect(st.HPD95[0][0]).To(BeNumerically("<=", st.Mean[0]))
			Expect(st.HPD95[0][1]).To(BeNumerically(">=", st.Mean[0]))
			Expect(st.Quantiles[0.5][0]).To(BeNumerically("~", 0.5, 0.15))

			hv, err := m.Variable("h")
			Expect(err).NotTo(HaveOccurred())
			Expect(hv.Kind).To(Equal(mcmc.Deterministic))
			Expect(hv.Len()).To(Equal(len(days)))
			Expect(hv.T).To(Equal(days))
			Expect(hv.Value()[6]).To(BeNumerically("~", 7, 1.5))

			dv, err := m.Variable("h_data")
			Expect(err).NotTo(HaveOccurred())
			Expect(dv.Kind).To(Equal(mcmc.Observed))
			Expect(dv.Value()).To(Equal(height))

			_, err = m.Variable("nope")
			Expect(err).To(MatchError(mcmc.ErrUnknownVariable))
		})

		It("summarises the posterior", func() {
			summary, err := m.Summary()
			Expect(err).NotTo(HaveOccurred())
			Expect(summary).To(ContainSubstring("h_sigma"))
			Expect(summary).To(ContainSubstring("r-hat"))
			Expect(summary).To(ContainSubstring("chain 1:"))

			rows, err := m.Summaries()
			Expect(err).NotTo(HaveOccurred())
			Expect(rows[0].Name).To(Equal("a"))
			Expect(rows[0].ESS).To(BeNumerically(">", 0))
			Expect(math.IsNaN(rows[0].RHat)).To(BeFalse())
		})

		It("plots to the simulation output", func() {
			Expect(m.PlotDistributions(true)).To(Succeed())
			Expect(out.String()).To(ContainSubstring("a  mean="))

			out.Reset()
			Expect(m.PlotJointDistribution("a", "h_sigma", true)).To(Succeed())
			Expect(out.String()).To(ContainSubstring("prior"))

			Expect(m.PlotJointDistribution("a", "zz", false)).To(MatchError(mcmc.ErrUnknownParameter))

			out.Reset()
			Expect(m.PlotPredictive("h")).To(Succeed())
			Expect(out.String()).To(ContainSubstring("posterior predictive"))
		})
	})
})
