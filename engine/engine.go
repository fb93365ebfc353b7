package engine

import (
	"context"
	"errors"
	"sync"

	"go.uber.org/zap"

	"github.com/blockberries/devberry/service"
	"github.com/blockberries/devberry/types"
)

const (
	// EngineName is the consensus algorithm name registered with the validator
	EngineName = "Devmode"
	// EngineVersion is the consensus algorithm version registered with the validator
	EngineVersion = "0.1"
)

// ProtocolInfo names an additional wire protocol the engine speaks
type ProtocolInfo struct {
	Name    string
	Version string
}

// Engine is the devmode consensus engine
type Engine struct {
	mu sync.Mutex

	// Configuration
	config *Config

	log     *zap.Logger
	metrics *Metrics

	// State
	started  bool
	stopping bool
	cancel   context.CancelFunc
}

// NewEngine creates a new consensus engine. A nil logger disables logging and
// nil metrics are replaced by unregistered collectors.
func NewEngine(config *Config, logger *zap.Logger, metrics *Metrics) *Engine {
	if config == nil {
		config = DefaultConfig()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	if metrics == nil {
		metrics = NewMetrics(nil)
	}
	return &Engine{
		config:  config,
		log:     logger.Named("engine"),
		metrics: metrics,
	}
}

// Name returns the consensus algorithm name
func (e *Engine) Name() string {
	return EngineName
}

// Version returns the consensus algorithm version
func (e *Engine) Version() string {
	return EngineVersion
}

// AdditionalProtocols returns the extra protocols the engine supports. Devmode has none.
func (e *Engine) AdditionalProtocols() []ProtocolInfo {
	return nil
}

// Start runs the engine until a Shutdown update arrives, Stop is called, ctx is
// cancelled, or a service call fails. It blocks for the lifetime of the engine.
//
// A Shutdown update or Stop returns nil. A closed update channel returns
// ErrDisconnected. Any service failure is returned as is; the engine keeps no
// state worth recovering, so the caller should restart it.
func (e *Engine) Start(
	ctx context.Context,
	updates <-chan types.Update,
	svc service.Service,
	startup types.StartupState,
) error {
	if err := e.config.ValidateBasic(); err != nil {
		return err
	}

	e.mu.Lock()
	if e.started {
		e.mu.Unlock()
		return ErrAlreadyStarted
	}
	ctx, cancel := context.WithCancel(ctx)
	e.started = true
	e.stopping = false
	e.cancel = cancel
	e.mu.Unlock()

	defer func() {
		e.mu.Lock()
		e.started = false
		e.cancel = nil
		e.mu.Unlock()
		cancel()
	}()

	adapter := service.NewAdapter(svc, e.config.RetryInterval, e.log)
	cs := newConsensusState(e.config, adapter, e.log, e.metrics)

	err := cs.run(ctx, updates, startup)

	e.mu.Lock()
	stopped := e.stopping
	e.mu.Unlock()
	if stopped && errors.Is(err, context.Canceled) {
		return nil
	}
	return err
}

// Stop asks a running Start to return
func (e *Engine) Stop() error {
	e.mu.Lock()
	defer e.mu.Unlock()

	if !e.started {
		return ErrNotStarted
	}
	e.stopping = true
	e.cancel()
	return nil
}

// IsRunning returns true while Start is executing
func (e *Engine) IsRunning() bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.started
}
