package metrics

import (
	"math"
	"math/big"
	"sync"

	"github.com/prometheus/client_golang/prometheus"
)

type DexMetrics struct {
	swaps          *prometheus.CounterVec
	liquidity      *prometheus.CounterVec
	feeReinjected  *prometheus.CounterVec
	reserves       *prometheus.GaugeVec
	rewardPerShare *prometheus.GaugeVec
	penalties      *prometheus.CounterVec
	unbonds        *prometheus.CounterVec
}

var (
	dexOnce     sync.Once
	dexRegistry *DexMetrics
)

func Dex() *DexMetrics {
	dexOnce.Do(func() {
		dexRegistry = &DexMetrics{
			swaps: prometheus.NewCounterVec(prometheus.CounterOpts{
				Name: "dex_swaps_total",
				Help: "Count of settled swaps by pair and kind.",
			}, []string{"pair", "kind"}),
			liquidity: prometheus.NewCounterVec(prometheus.CounterOpts{
				Name: "dex_liquidity_operations_total",
				Help: "Count of liquidity additions and removals by pair.",
			}, []string{"pair", "operation"}),
			feeReinjected: prometheus.NewCounterVec(prometheus.CounterOpts{
				Name: "dex_fee_reinjections_total",
				Help: "Count of fee slices returned to the pool reserve by reason.",
			}, []string{"pair", "reason"}),
			reserves: prometheus.NewGaugeVec(prometheus.GaugeOpts{
				Name: "dex_pair_reserve",
				Help: "Latest pool reserve per pair and token.",
			}, []string{"pair", "token"}),
			rewardPerShare: prometheus.NewGaugeVec(prometheus.GaugeOpts{
				Name: "dex_farm_reward_per_share",
				Help: "Latest reward per share checkpoint per farm.",
			}, []string{"farm"}),
			penalties: prometheus.NewCounterVec(prometheus.CounterOpts{
				Name: "dex_farm_penalties_total",
				Help: "Count of early exit penalties applied per farm.",
			}, []string{"farm"}),
			unbonds: prometheus.NewCounterVec(prometheus.CounterOpts{
				Name: "dex_farm_unbonds_total",
				Help: "Count of redeemed unbond tokens per farm.",
			}, []string{"farm"}),
		}
		prometheus.MustRegister(
			dexRegistry.swaps,
			dexRegistry.liquidity,
			dexRegistry.feeReinjected,
			dexRegistry.reserves,
			dexRegistry.rewardPerShare,
			dexRegistry.penalties,
			dexRegistry.unbonds,
		)
	})
	return dexRegistry
}

func label(v string) string {
	if v == "" {
		return "unknown"
	}
	return v
}

func (m *DexMetrics) ObserveSwap(pair, kind string) {
	if m == nil {
		return
	}
	m.swaps.WithLabelValues(label(pair), label(kind)).Inc()
}

func (m *DexMetrics) ObserveLiquidity(pair, operation string) {
	if m == nil {
		return
	}
	m.liquidity.WithLabelValues(label(pair), label(operation)).Inc()
}

func (m *DexMetrics) ObserveFeeReinjected(pair, reason string) {
	if m == nil {
		return
	}
	m.feeReinjected.WithLabelValues(label(pair), label(reason)).Inc()
}

// SetReserves publishes both reserves of a pair.
func (m *DexMetrics) SetReserves(pair, firstToken string, first *big.Int, secondToken string, second *big.Int) {
	if m == nil {
		return
	}
	m.reserves.WithLabelValues(label(pair), label(firstToken)).Set(bigToFloat(first))
	m.reserves.WithLabelValues(label(pair), label(secondToken)).Set(bigToFloat(second))
}

func (m *DexMetrics) SetRewardPerShare(farm string, rps *big.Int) {
	if m == nil {
		return
	}
	m.rewardPerShare.WithLabelValues(label(farm)).Set(bigToFloat(rps))
}

func (m *DexMetrics) ObservePenalty(farm string) {
	if m == nil {
		return
	}
	m.penalties.WithLabelValues(label(farm)).Inc()
}

func (m *DexMetrics) ObserveUnbond(farm string) {
	if m == nil {
		return
	}
	m.unbonds.WithLabelValues(label(farm)).Inc()
}

func bigToFloat(value *big.Int) float64 {
	if value == nil {
		return 0
	}
	f, _ := new(big.Float).SetInt(value).Float64()
	if math.IsInf(f, 0) {
		return math.MaxFloat64
	}
	return f
}
