package engine

import (
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewMetricsRegisters(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := NewMetrics(reg)

	m.BlocksPublished.Inc()
	m.BlockChecks.WithLabelValues(checkPassed).Inc()
	m.ForkChoice.WithLabelValues(DecisionCommit.String()).Inc()
	m.PeerMessages.WithLabelValues(GossipAck.String()).Inc()
	m.observeWait(3 * time.Second)
	m.observeHead(7)
	m.PeersConnected.Set(2)

	families, err := reg.Gather()
	require.NoError(t, err)

	names := make([]string, 0, len(families))
	for _, f := range families {
		names = append(names, f.GetName())
	}
	assert.ElementsMatch(t, []string{
		"devberry_engine_blocks_published_total",
		"devberry_engine_block_checks_total",
		"devberry_engine_fork_choice_total",
		"devberry_engine_peer_messages_total",
		"devberry_engine_wait_time_seconds",
		"devberry_engine_chain_head_height",
		"devberry_engine_peers_connected",
	}, names)

	assert.Equal(t, 3.0, testutil.ToFloat64(m.WaitTime))
	assert.Equal(t, 7.0, testutil.ToFloat64(m.ChainHeadHeight))
}

func TestNewMetricsDuplicateRegistrationPanics(t *testing.T) {
	reg := prometheus.NewRegistry()
	NewMetrics(reg)
	assert.Panics(t, func() { NewMetrics(reg) })
}

func TestNewMetricsUnregistered(t *testing.T) {
	m := NewMetrics(nil)
	m.BlocksPublished.Inc()
	assert.Equal(t, 1.0, testutil.ToFloat64(m.BlocksPublished))
}
