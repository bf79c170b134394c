// Package router dispatches synchronous cross-contract calls between the
// contracts of one invocation. Each call runs on its own write overlay: a
// failed call, including its attached payments and the events and metrics it
// produced into tracked journals, leaves no trace.
package router

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	dexerrors "dexcore/core/errors"
	"dexcore/core/proxy"
	"dexcore/core/state"
	"dexcore/crypto"
	"dexcore/native/bank"
	"dexcore/observability/logging"
	"dexcore/storage"
)

var errNotBound = errors.New("router: no database bound")

// Contract is a call target. The router rebinds its state to the overlay of
// each call it serves.
type Contract interface {
	proxy.Handler
	SetState(kv state.KVStore)
}

// Journal buffers output of an invocation that a failed call must drop,
// such as recorded events and queued metrics.
type Journal interface {
	Mark() int
	Rewind(mark int)
}

type registration struct {
	contract Contract
	home     state.KVStore
}

// Router implements proxy.Caller.
type Router struct {
	mu        sync.Mutex
	contracts map[crypto.Address]registration
	base      storage.Database
	layers    []storage.Database
	stack     []crypto.Address
	journals  []Journal
	logger    *slog.Logger
}

// New returns an empty router.
func New() *Router {
	return &Router{
		contracts: make(map[crypto.Address]registration),
		logger:    logging.Discard(),
	}
}

func (r *Router) SetLogger(logger *slog.Logger) {
	if r == nil || logger == nil {
		return
	}
	r.logger = logger
}

// Bind sets the database calls are layered on, normally the invocation
// overlay.
func (r *Router) Bind(db storage.Database) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.base = db
	r.layers = nil
	r.stack = nil
	r.journals = nil
}

// Track registers journals rewound when a call fails. Bind clears them.
func (r *Router) Track(journals ...Journal) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, j := range journals {
		if j != nil {
			r.journals = append(r.journals, j)
		}
	}
}

// Register makes contract reachable at addr. home is the store the contract
// is bound to outside of routed calls.
func (r *Router) Register(addr crypto.Address, contract Contract, home state.KVStore) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.contracts[addr] = registration{contract: contract, home: home}
}

// Call implements proxy.Caller. Payments move from call.From to call.To
// inside the call's overlay before the target runs. Calling a contract that
// is already on the call stack fails with ErrReentrantCall.
func (r *Router) Call(ctx context.Context, call proxy.Call) ([]byte, error) {
	r.mu.Lock()
	reg, ok := r.contracts[call.To]
	if !ok {
		r.mu.Unlock()
		return nil, fmt.Errorf("router: %w: no contract at %s", dexerrors.ErrNotConfigured, call.To)
	}
	if r.base == nil {
		r.mu.Unlock()
		return nil, errNotBound
	}
	for _, active := range r.stack {
		if active == call.To {
			r.mu.Unlock()
			return nil, fmt.Errorf("router: %w: %s", dexerrors.ErrReentrantCall, call.To)
		}
	}
	parent := r.base
	if n := len(r.layers); n > 0 {
		parent = r.layers[n-1]
	}
	layer := storage.NewOverlay(parent)
	r.layers = append(r.layers, layer)
	r.stack = append(r.stack, call.From, call.To)
	journals := append([]Journal(nil), r.journals...)
	r.mu.Unlock()

	marks := make([]int, len(journals))
	for i, j := range journals {
		marks[i] = j.Mark()
	}

	out, err := r.run(ctx, reg, layer, call)

	r.mu.Lock()
	r.layers = r.layers[:len(r.layers)-1]
	r.stack = r.stack[:len(r.stack)-2]
	r.mu.Unlock()

	if err != nil {
		layer.Discard()
		for i, j := range journals {
			j.Rewind(marks[i])
		}
		r.logger.Debug("routed call failed", "to", call.To.String(), "function", call.Function, "error", err)
		return nil, err
	}
	if err := layer.Commit(); err != nil {
		return nil, err
	}
	return out, nil
}

func (r *Router) run(ctx context.Context, reg registration, layer *storage.Overlay, call proxy.Call) ([]byte, error) {
	mgr := state.NewManager(layer)
	ledger := bank.NewLedger(mgr)
	for _, p := range call.Payments {
		if err := ledger.Transfer(call.From, call.To, p.Token, p.Nonce, p.Amount); err != nil {
			return nil, fmt.Errorf("router: payment to %s: %w", call.To, err)
		}
	}
	reg.contract.SetState(mgr)
	defer reg.contract.SetState(reg.home)
	return reg.contract.Dispatch(ctx, call)
}

var _ proxy.Caller = (*Router)(nil)
