// Package runtime hosts the pair, farm and locked token contracts on a
// key/value database. Every invocation runs on its own storage overlay: it
// commits as a whole when the invocation succeeds and leaves no trace when
// it fails. Events are published only after the commit.
package runtime

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"dexcore/config"
	"dexcore/core/clock"
	dexerrors "dexcore/core/errors"
	"dexcore/core/events"
	"dexcore/core/proxy"
	"dexcore/core/state"
	"dexcore/native/bank"
	nativecommon "dexcore/native/common"
	"dexcore/native/farm"
	"dexcore/native/locked"
	"dexcore/native/pair"
	"dexcore/native/router"
	"dexcore/observability"
	"dexcore/observability/logging"
	"dexcore/observability/metrics"
	"dexcore/storage"
)

// Receipt describes a committed invocation.
type Receipt struct {
	ID        string
	Operation string
	Block     clock.BlockInfo
	Events    []events.Event
}

// Subscriber receives receipts of committed invocations.
type Subscriber func(Receipt)

// Option customises a Runtime.
type Option func(*Runtime)

// WithLogger sets the logger shared by the runtime and its engines.
func WithLogger(logger *slog.Logger) Option {
	return func(r *Runtime) {
		if logger != nil {
			r.logger = logger
		}
	}
}

// WithClock sets the source of block context.
func WithClock(c clock.Clock) Option {
	return func(r *Runtime) {
		if c != nil {
			r.clock = c
		}
	}
}

// WithMetrics registers and records Prometheus metrics.
func WithMetrics() Option {
	return func(r *Runtime) {
		r.observer = metrics.Dex()
		r.invocations = observability.Invocations()
		r.eventMetrics = observability.Events()
	}
}

// WithObserver sends engine observations to o instead of the Prometheus
// collectors.
func WithObserver(o metrics.Observer) Option {
	return func(r *Runtime) {
		if o != nil {
			r.observer = o
		}
	}
}

// WithSubscriber adds a receipt subscriber.
func WithSubscriber(sub Subscriber) Option {
	return func(r *Runtime) {
		if sub != nil {
			r.subscribers = append(r.subscribers, sub)
		}
	}
}

// Runtime owns the contract engines of one configuration.
type Runtime struct {
	mu sync.Mutex

	cfg    *config.Config
	db     storage.Database
	clock  clock.Clock
	logger *slog.Logger
	tracer trace.Tracer
	pauses nativecommon.PauseSet

	observer     metrics.Observer
	invocations  *observability.InvocationMetrics
	eventMetrics *observability.EventMetrics
	subscribers  []Subscriber

	router       *router.Router
	pairs        map[string]*pair.Engine
	farms        map[string]*farm.Engine
	factories    map[string]*locked.Factory
	farmOrder    []string
	factoryOrder []string
}

// New validates cfg, builds its contracts on db and initialises them.
func New(ctx context.Context, cfg *config.Config, db storage.Database, opts ...Option) (*Runtime, error) {
	if err := config.ValidateConfig(cfg); err != nil {
		return nil, err
	}
	if db == nil {
		return nil, fmt.Errorf("runtime: database required")
	}
	r := &Runtime{
		cfg:       cfg,
		db:        db,
		clock:     clock.Static{},
		logger:    logging.Discard(),
		tracer:    otel.Tracer("dexcore/runtime"),
		observer:  metrics.Discard(),
		pauses:    nativecommon.NewPauseSet(cfg.PausedModules...),
		router:    router.New(),
		pairs:     make(map[string]*pair.Engine),
		farms:     make(map[string]*farm.Engine),
		factories: make(map[string]*locked.Factory),
	}
	for _, opt := range opts {
		opt(r)
	}
	r.router.SetLogger(r.logger)

	for _, c := range cfg.Locked {
		params, err := lockedParams(c)
		if err != nil {
			return nil, err
		}
		r.factories[params.Name] = locked.NewFactory(params)
		r.factoryOrder = append(r.factoryOrder, params.Name)
	}
	for _, c := range cfg.Pairs {
		params, err := pairParams(c)
		if err != nil {
			return nil, err
		}
		r.pairs[params.Name] = pair.NewEngine(params)
	}
	for _, c := range cfg.Farms {
		params, err := farmParams(c, r.factories)
		if err != nil {
			return nil, err
		}
		r.farms[params.Name] = farm.NewEngine(params)
		r.farmOrder = append(r.farmOrder, params.Name)
	}

	if _, err := r.Execute(ctx, "runtime.bootstrap", func(_ context.Context, s *Session) error {
		return r.bootstrap(s)
	}); err != nil {
		return nil, fmt.Errorf("runtime: bootstrap: %w", err)
	}
	r.logger.Info("runtime ready",
		"pairs", len(r.pairs),
		"farms", len(r.farms),
		"locked_factories", len(r.factories),
		"backend", cfg.StorageBackend)
	return r, nil
}

// Pairs lists the configured pair names.
func (r *Runtime) Pairs() []string { return sortedKeys(r.pairs) }

// Farms lists the configured farm names.
func (r *Runtime) Farms() []string { return sortedKeys(r.farms) }

func sortedKeys[T any](m map[string]T) []string {
	out := make([]string, 0, len(m))
	for k := range m {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}

// bind points every engine at the invocation's overlay.
func (r *Runtime) bind(layer *storage.Overlay, mgr *state.Manager, block clock.BlockInfo, recorder *events.Recorder, observer *metrics.Deferred) {
	r.router.Bind(layer)
	r.router.Track(recorder, observer)
	for _, f := range r.factories {
		f.SetState(mgr)
		f.SetBlock(block)
		f.SetEmitter(recorder)
		f.SetLogger(r.logger)
		r.router.Register(f.Address(), f, mgr)
	}
	for _, p := range r.pairs {
		p.SetState(mgr)
		p.SetBlock(block)
		p.SetEmitter(recorder)
		p.SetCaller(r.router)
		p.SetLogger(r.logger)
		p.SetMetrics(observer)
		p.SetPauses(r.pauses)
		r.router.Register(p.Address(), p, mgr)
	}
	for _, f := range r.farms {
		f.SetState(mgr)
		f.SetBlock(block)
		f.SetEmitter(recorder)
		f.SetCaller(r.router)
		f.SetLogger(r.logger)
		f.SetMetrics(observer)
		f.SetPauses(r.pauses)
	}
}

// Execute runs fn as one invocation. Its writes are committed only when fn
// returns nil; the returned receipt lists the events it emitted. Engine
// metrics are recorded after the commit.
func (r *Runtime) Execute(ctx context.Context, operation string, fn func(context.Context, *Session) error) (*Receipt, error) {
	return r.invoke(ctx, operation, true, fn)
}

// View runs fn like Execute but always discards its writes.
func (r *Runtime) View(ctx context.Context, operation string, fn func(context.Context, *Session) error) error {
	_, err := r.invoke(ctx, operation, false, fn)
	return err
}

func (r *Runtime) invoke(ctx context.Context, operation string, commit bool, fn func(context.Context, *Session) error) (*Receipt, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	start := time.Now()
	id := uuid.NewString()
	block := r.clock.Current()
	ctx, span := r.tracer.Start(ctx, "dex."+operation, trace.WithAttributes(
		attribute.String("invocation.id", id),
		attribute.Int64("block.round", int64(block.Round)),
		attribute.Int64("block.epoch", int64(block.Epoch)),
		attribute.Int64("block.nonce", int64(block.Nonce)),
	))
	defer span.End()

	layer := storage.NewOverlay(r.db)
	mgr := state.NewManager(layer)
	recorder := &events.Recorder{}
	observer := metrics.NewDeferred(r.observer)
	r.bind(layer, mgr, block, recorder, observer)
	session := &Session{rt: r, block: block, bank: bank.NewLedger(mgr)}

	err := fn(ctx, session)
	if err == nil && commit {
		err = layer.Commit()
	} else {
		layer.Discard()
	}
	module, _, _ := strings.Cut(operation, ".")
	r.invocations.Observe(module, operation, time.Since(start), dexerrors.Class(err))
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		r.logger.Debug("invocation failed", "id", id, "operation", operation, "error", err)
		return nil, err
	}

	receipt := Receipt{ID: id, Operation: operation, Block: block}
	if commit {
		observer.Flush()
		receipt.Events = recorder.Events()
		r.publish(receipt)
	}
	span.SetAttributes(attribute.Int("events", len(receipt.Events)))
	span.SetStatus(codes.Ok, "committed")
	return &receipt, nil
}

func (r *Runtime) publish(receipt Receipt) {
	for _, evt := range receipt.Events {
		r.eventMetrics.RecordEvent(evt.EventType())
	}
	for _, sub := range r.subscribers {
		sub(receipt)
	}
}

// Session is the view of the contracts inside one invocation.
type Session struct {
	rt    *Runtime
	block clock.BlockInfo
	bank  *bank.Ledger
}

// Block returns the block context of the invocation.
func (s *Session) Block() clock.BlockInfo { return s.block }

// Bank returns the token ledger of the invocation.
func (s *Session) Bank() *bank.Ledger { return s.bank }

// Caller returns the cross-contract router.
func (s *Session) Caller() proxy.Caller { return s.rt.router }

// Pair returns the engine of the named pair.
func (s *Session) Pair(name string) (*pair.Engine, error) {
	engine, ok := s.rt.pairs[strings.TrimSpace(name)]
	if !ok {
		return nil, fmt.Errorf("runtime: %w: unknown pair %q", dexerrors.ErrNotConfigured, name)
	}
	return engine, nil
}

// Farm returns the engine of the named farm.
func (s *Session) Farm(name string) (*farm.Engine, error) {
	engine, ok := s.rt.farms[strings.TrimSpace(name)]
	if !ok {
		return nil, fmt.Errorf("runtime: %w: unknown farm %q", dexerrors.ErrNotConfigured, name)
	}
	return engine, nil
}

// Locked returns the named locked token factory.
func (s *Session) Locked(name string) (*locked.Factory, error) {
	factory, ok := s.rt.factories[strings.TrimSpace(name)]
	if !ok {
		return nil, fmt.Errorf("runtime: %w: unknown locked factory %q", dexerrors.ErrNotConfigured, name)
	}
	return factory, nil
}
