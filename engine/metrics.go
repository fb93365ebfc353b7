package engine

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

const (
	metricsNamespace = "devberry"
	metricsSubsystem = "engine"
)

// Block check results
const (
	checkPassed  = "passed"
	checkFailed  = "failed"
	checkGenesis = "genesis"
)

// Metrics holds the engine's Prometheus collectors
type Metrics struct {
	BlocksPublished prometheus.Counter
	BlockChecks     *prometheus.CounterVec
	ForkChoice      *prometheus.CounterVec
	PeerMessages    *prometheus.CounterVec
	WaitTime        prometheus.Gauge
	ChainHeadHeight prometheus.Gauge
	PeersConnected  prometheus.Gauge
}

// NewMetrics creates the engine collectors and registers them with reg.
// A nil reg leaves them unregistered.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		BlocksPublished: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: metricsNamespace,
			Subsystem: metricsSubsystem,
			Name:      "blocks_published_total",
			Help:      "Blocks finalized by this engine.",
		}),
		BlockChecks: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: metricsNamespace,
			Subsystem: metricsSubsystem,
			Name:      "block_checks_total",
			Help:      "Consensus checks of new blocks by result.",
		}, []string{"result"}),
		ForkChoice: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: metricsNamespace,
			Subsystem: metricsSubsystem,
			Name:      "fork_choice_total",
			Help:      "Fork choice decisions for valid blocks.",
		}, []string{"decision"}),
		PeerMessages: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: metricsNamespace,
			Subsystem: metricsSubsystem,
			Name:      "peer_messages_total",
			Help:      "Gossip messages received from peers by kind.",
		}, []string{"kind"}),
		WaitTime: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: metricsNamespace,
			Subsystem: metricsSubsystem,
			Name:      "wait_time_seconds",
			Help:      "Publish wait chosen for the current chain head.",
		}),
		ChainHeadHeight: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: metricsNamespace,
			Subsystem: metricsSubsystem,
			Name:      "chain_head_height",
			Help:      "Block number of the last chain head seen by the engine.",
		}),
		PeersConnected: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: metricsNamespace,
			Subsystem: metricsSubsystem,
			Name:      "peers_connected",
			Help:      "Peers currently connected to the validator.",
		}),
	}

	if reg != nil {
		reg.MustRegister(
			m.BlocksPublished,
			m.BlockChecks,
			m.ForkChoice,
			m.PeerMessages,
			m.WaitTime,
			m.ChainHeadHeight,
			m.PeersConnected,
		)
	}
	return m
}

func (m *Metrics) observeWait(wait time.Duration) {
	m.WaitTime.Set(wait.Seconds())
}

func (m *Metrics) observeHead(blockNum uint64) {
	m.ChainHeadHeight.Set(float64(blockNum))
}
