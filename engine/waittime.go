package engine

import (
	"math/rand/v2"
	"strconv"
	"time"

	"go.uber.org/zap"

	"github.com/blockberries/devberry/types"
)

// On-chain settings that bound the publish wait, in whole seconds
const (
	SettingMinWaitTime = "sawtooth.consensus.min_wait_time"
	SettingMaxWaitTime = "sawtooth.consensus.max_wait_time"
)

// DefaultWaitTime is used when the settings are missing, malformed or
// do not describe a non-empty range
const DefaultWaitTime = 0 * time.Second

// SettingsReader reads on-chain settings as of a block
type SettingsReader interface {
	GetSettings(blockID types.BlockID, keys []string) (map[string]string, error)
}

// WaitTimePolicy decides how long to wait before publishing on top of a chain head
type WaitTimePolicy struct {
	settings SettingsReader
	// randN returns a uniform value in [0, n); n is always positive
	randN func(n uint64) uint64
	log   *zap.SugaredLogger
}

// NewWaitTimePolicy creates a policy reading from settings
func NewWaitTimePolicy(settings SettingsReader, logger *zap.Logger) *WaitTimePolicy {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &WaitTimePolicy{
		settings: settings,
		randN:    rand.Uint64N,
		log:      logger.Sugar(),
	}
}

// Compute returns a uniformly random whole number of seconds in
// [min_wait_time, max_wait_time) read as of chainHeadID. Any read or parse
// failure, or min >= max, yields DefaultWaitTime.
func (p *WaitTimePolicy) Compute(chainHeadID types.BlockID) time.Duration {
	wait := p.compute(chainHeadID)
	p.log.Infow("wait time", "wait", wait, "chain_head", chainHeadID)
	return wait
}

func (p *WaitTimePolicy) compute(chainHeadID types.BlockID) time.Duration {
	settings, err := p.settings.GetSettings(chainHeadID, []string{SettingMinWaitTime, SettingMaxWaitTime})
	if err != nil {
		p.log.Debugw("wait time settings unavailable", "err", err)
		return DefaultWaitTime
	}

	minWait, ok := parseSeconds(settings, SettingMinWaitTime)
	if !ok {
		return DefaultWaitTime
	}
	maxWait, ok := parseSeconds(settings, SettingMaxWaitTime)
	if !ok {
		return DefaultWaitTime
	}
	p.log.Debugw("wait time settings", "min", minWait, "max", maxWait)

	if minWait >= maxWait {
		return DefaultWaitTime
	}

	// Guard the conversion to Duration against absurd settings
	const maxSeconds = uint64(1<<63-1) / uint64(time.Second)
	if maxWait > maxSeconds {
		return DefaultWaitTime
	}

	return time.Duration(minWait+p.randN(maxWait-minWait)) * time.Second
}

func parseSeconds(settings map[string]string, key string) (uint64, bool) {
	raw, ok := settings[key]
	if !ok {
		return 0, false
	}
	v, err := strconv.ParseUint(raw, 10, 64)
	if err != nil {
		return 0, false
	}
	return v, true
}
