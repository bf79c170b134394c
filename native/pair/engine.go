package pair

import (
	"errors"
	"fmt"
	"log/slog"
	"math/big"

	"dexcore/core/clock"
	dexerrors "dexcore/core/errors"
	"dexcore/core/events"
	"dexcore/core/fixedpoint"
	"dexcore/core/proxy"
	"dexcore/core/state"
	"dexcore/crypto"
	"dexcore/native/bank"
	nativecommon "dexcore/native/common"
	"dexcore/observability/logging"
	"dexcore/observability/metrics"
)

const moduleName = "pair"

var (
	errNilState       = errors.New("pair engine: state not configured")
	errNotInitialised = errors.New("pair engine: pair not initialised")
)

// Engine executes pair operations against freshly loaded state. Every
// mutating call loads the pair state first and persists it last; callers
// supply an isolated store per invocation for all-or-nothing semantics.
type Engine struct {
	params  Params
	address crypto.Address
	store   *Store
	bank    *bank.Ledger
	block   clock.BlockInfo
	emitter events.Emitter
	caller  proxy.Caller
	logger  *slog.Logger
	metrics metrics.Observer
	pauses  nativecommon.PauseView
}

// NewEngine constructs an engine for the pair described by params.
func NewEngine(params Params) *Engine {
	params.FirstToken = normalizeToken(params.FirstToken)
	params.SecondToken = normalizeToken(params.SecondToken)
	params.LPToken = normalizeToken(params.LPToken)
	if params.Bootstrap == "" {
		params.Bootstrap = BootstrapSqrt
	}
	if params.MaxObservations == 0 {
		params.MaxObservations = DefaultMaxObservations
	}
	if params.SafePriceOffset == 0 {
		params.SafePriceOffset = DefaultSafePriceOffset
	}
	return &Engine{
		params:  params,
		address: params.Address(),
		emitter: events.NoopEmitter{},
		caller:  proxy.NoopCaller{},
		logger:  logging.Discard(),
		metrics: metrics.Discard(),
	}
}

// SetState wires the engine to the invocation's persistence layer.
func (e *Engine) SetState(kv state.KVStore) {
	if e == nil {
		return
	}
	e.store = NewStore(kv, e.params.Name)
	e.bank = bank.NewLedger(kv)
}

// SetBlock records the block context used for oracle rounds.
func (e *Engine) SetBlock(info clock.BlockInfo) {
	if e == nil {
		return
	}
	e.block = info
}

func (e *Engine) SetEmitter(emitter events.Emitter) {
	if e == nil || emitter == nil {
		return
	}
	e.emitter = emitter
}

// SetCaller wires the proxy used to reach sibling pairs.
func (e *Engine) SetCaller(caller proxy.Caller) {
	if e == nil || caller == nil {
		return
	}
	e.caller = caller
}

func (e *Engine) SetLogger(logger *slog.Logger) {
	if e == nil || logger == nil {
		return
	}
	e.logger = logger
}

func (e *Engine) SetMetrics(m metrics.Observer) {
	if e == nil || m == nil {
		return
	}
	e.metrics = m
}

func (e *Engine) SetPauses(p nativecommon.PauseView) {
	if e == nil {
		return
	}
	e.pauses = p
}

// Address returns the pair contract address.
func (e *Engine) Address() crypto.Address { return e.address }

// Params returns the static pair configuration.
func (e *Engine) Params() Params { return e.params }

// Initialize creates the pair state from its params when missing. It is a
// no-op for an initialised pair.
func (e *Engine) Initialize() error {
	if e == nil || e.store == nil {
		return errNilState
	}
	if err := e.params.Validate(); err != nil {
		return err
	}
	if _, ok, err := e.store.LoadState(); err != nil || ok {
		return err
	}
	st := &State{
		Reserves: ReserveState{
			FirstToken:    e.params.FirstToken,
			SecondToken:   e.params.SecondToken,
			LPToken:       e.params.LPToken,
			FirstReserve:  fixedpoint.Zero(),
			SecondReserve: fixedpoint.Zero(),
			LPSupply:      fixedpoint.Zero(),
		},
		Fees: FeeConfig{
			TotalFeePercent:   e.params.TotalFeePercent,
			SpecialFeePercent: e.params.SpecialFeePercent,
			Enabled:           e.params.SpecialFeePercent > 0,
		},
		Status: e.params.InitialState,
		Owner:  e.params.Owner,
		Router: e.params.Router,
	}
	return e.store.SaveState(st)
}

func (e *Engine) load() (*State, error) {
	if e == nil || e.store == nil || e.bank == nil {
		return nil, errNilState
	}
	st, ok, err := e.store.LoadState()
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, fmt.Errorf("%w: %s", errNotInitialised, e.params.Name)
	}
	return st, nil
}

func (e *Engine) save(st *State) error {
	if err := e.store.SaveState(st); err != nil {
		return err
	}
	e.metrics.SetReserves(e.params.Name, st.Reserves.FirstToken, st.Reserves.FirstReserve, st.Reserves.SecondToken, st.Reserves.SecondReserve)
	return nil
}

func (e *Engine) emit(evt events.Event) {
	if e.emitter != nil {
		e.emitter.Emit(evt)
	}
}

func (e *Engine) guard() error {
	if err := nativecommon.Guard(e.pauses, moduleName); err != nil {
		return fmt.Errorf("pair %s: %w", e.params.Name, err)
	}
	return nil
}

func (e *Engine) recordObservation(st *State) error {
	sp := newSafePrice(e.store, e.params.MaxObservations)
	return sp.Record(&st.Oracle, e.block.Round, e.block.Timestamp, &st.Reserves)
}

func (e *Engine) feeEngine(st *State) *FeeEngine {
	return &FeeEngine{
		config:  st.Fees.Clone(),
		name:    e.params.Name,
		pair:    e.address,
		bank:    e.bank,
		caller:  e.caller,
		emitter: e.emitter,
		logger:  e.logger,
		metrics: e.metrics,
		trusted: st.trustedPair,
	}
}

// AcceptPayment stages one side of a deposit, moving amount of token from
// caller into the pair.
func (e *Engine) AcceptPayment(caller crypto.Address, token string, amount *big.Int) error {
	if err := e.guard(); err != nil {
		return err
	}
	st, err := e.load()
	if err != nil {
		return err
	}
	token = normalizeToken(token)
	if token != st.Reserves.FirstToken && token != st.Reserves.SecondToken {
		return fmt.Errorf("pair: %w: %s", dexerrors.ErrInvalidToken, token)
	}
	if !fixedpoint.IsPositive(amount) {
		return fmt.Errorf("pair: %w: payment must be positive", dexerrors.ErrInvalidAmount)
	}
	if err := e.bank.Transfer(caller, e.address, token, 0, amount); err != nil {
		return err
	}
	pending, err := e.store.Pending(caller, token)
	if err != nil {
		return err
	}
	return e.store.PutPending(caller, token, fixedpoint.Add(pending, amount))
}

// ReclaimPending returns every staged deposit of caller.
func (e *Engine) ReclaimPending(caller crypto.Address) (*big.Int, *big.Int, error) {
	if err := e.guard(); err != nil {
		return nil, nil, err
	}
	st, err := e.load()
	if err != nil {
		return nil, nil, err
	}
	return e.refundPending(caller, st, fixedpoint.Zero(), fixedpoint.Zero())
}

// refundPending returns the staged deposits minus the consumed amounts and
// clears them.
func (e *Engine) refundPending(caller crypto.Address, st *State, usedFirst, usedSecond *big.Int) (*big.Int, *big.Int, error) {
	refunds := make([]*big.Int, 2)
	for i, side := range []struct {
		token string
		used  *big.Int
	}{{st.Reserves.FirstToken, usedFirst}, {st.Reserves.SecondToken, usedSecond}} {
		pending, err := e.store.Pending(caller, side.token)
		if err != nil {
			return nil, nil, err
		}
		refund, err := fixedpoint.Sub(pending, side.used)
		if err != nil {
			return nil, nil, err
		}
		if refund.Sign() > 0 {
			if err := e.bank.Transfer(e.address, caller, side.token, 0, refund); err != nil {
				return nil, nil, err
			}
		}
		if err := e.store.PutPending(caller, side.token, nil); err != nil {
			return nil, nil, err
		}
		refunds[i] = refund
	}
	return refunds[0], refunds[1], nil
}

// AddLiquidity mints shares against caller's staged deposits. Unused
// deposit amounts are refunded.
func (e *Engine) AddLiquidity(caller crypto.Address, minFirst, minSecond *big.Int) (*LiquidityResult, error) {
	if err := e.guard(); err != nil {
		return nil, err
	}
	st, err := e.load()
	if err != nil {
		return nil, err
	}
	switch st.Status {
	case nativecommon.StateActive:
	case nativecommon.StatePartialActive:
		if caller != st.Owner || fixedpoint.IsPositive(st.Reserves.LPSupply) {
			return nil, fmt.Errorf("pair %s: %w: only initial owner liquidity is accepted", e.params.Name, dexerrors.ErrInactive)
		}
	default:
		return nil, fmt.Errorf("pair %s: %w", e.params.Name, dexerrors.ErrInactive)
	}

	desiredFirst, err := e.store.Pending(caller, st.Reserves.FirstToken)
	if err != nil {
		return nil, err
	}
	desiredSecond, err := e.store.Pending(caller, st.Reserves.SecondToken)
	if err != nil {
		return nil, err
	}
	if err := e.recordObservation(st); err != nil {
		return nil, err
	}
	first, second, err := st.Reserves.OptimalAmounts(desiredFirst, desiredSecond, minFirst, minSecond)
	if err != nil {
		return nil, err
	}
	liquidity, locked, err := st.Reserves.AddLiquidity(first, second, e.params.Bootstrap)
	if err != nil {
		return nil, err
	}
	if err := e.bank.Mint(caller, st.Reserves.LPToken, liquidity); err != nil {
		return nil, err
	}
	if locked.Sign() > 0 {
		if err := e.bank.Mint(e.address, st.Reserves.LPToken, locked); err != nil {
			return nil, err
		}
	}
	refundFirst, refundSecond, err := e.refundPending(caller, st, first, second)
	if err != nil {
		return nil, err
	}
	if err := e.save(st); err != nil {
		return nil, err
	}
	e.metrics.ObserveLiquidity(e.params.Name, "add")
	e.emit(events.LiquidityAdded{
		Pair:         e.address,
		Caller:       caller,
		FirstAmount:  fixedpoint.Copy(first),
		SecondAmount: fixedpoint.Copy(second),
		Liquidity:    fixedpoint.Copy(liquidity),
		TotalSupply:  fixedpoint.Copy(st.Reserves.LPSupply),
	})
	return &LiquidityResult{
		FirstAmount:  first,
		SecondAmount: second,
		Liquidity:    liquidity,
		Locked:       locked,
		FirstRefund:  refundFirst,
		SecondRefund: refundSecond,
	}, nil
}

// AddLiquidityWithPayments stages both payments and adds liquidity in one
// call.
func (e *Engine) AddLiquidityWithPayments(caller crypto.Address, firstAmount, secondAmount, minFirst, minSecond *big.Int) (*LiquidityResult, error) {
	if err := e.AcceptPayment(caller, e.params.FirstToken, firstAmount); err != nil {
		return nil, err
	}
	if err := e.AcceptPayment(caller, e.params.SecondToken, secondAmount); err != nil {
		return nil, err
	}
	return e.AddLiquidity(caller, minFirst, minSecond)
}

// RemoveLiquidity burns caller's shares for the proportional reserves.
// Withdrawals are accepted in every contract state but not while the module
// is paused.
func (e *Engine) RemoveLiquidity(caller crypto.Address, liquidity, minFirst, minSecond *big.Int) (*LiquidityResult, error) {
	if err := e.guard(); err != nil {
		return nil, err
	}
	st, err := e.load()
	if err != nil {
		return nil, err
	}
	if err := e.recordObservation(st); err != nil {
		return nil, err
	}
	first, second, err := st.Reserves.RemoveLiquidity(liquidity, minFirst, minSecond)
	if err != nil {
		return nil, err
	}
	if err := e.bank.Burn(caller, st.Reserves.LPToken, liquidity); err != nil {
		return nil, err
	}
	if err := e.bank.Transfer(e.address, caller, st.Reserves.FirstToken, 0, first); err != nil {
		return nil, err
	}
	if err := e.bank.Transfer(e.address, caller, st.Reserves.SecondToken, 0, second); err != nil {
		return nil, err
	}
	if err := e.save(st); err != nil {
		return nil, err
	}
	e.metrics.ObserveLiquidity(e.params.Name, "remove")
	e.emit(events.LiquidityRemoved{
		Pair:         e.address,
		Caller:       caller,
		FirstAmount:  fixedpoint.Copy(first),
		SecondAmount: fixedpoint.Copy(second),
		Liquidity:    fixedpoint.Copy(liquidity),
		TotalSupply:  fixedpoint.Copy(st.Reserves.LPSupply),
	})
	return &LiquidityResult{
		FirstAmount:  first,
		SecondAmount: second,
		Liquidity:    fixedpoint.Copy(liquidity),
		Locked:       fixedpoint.Zero(),
		FirstRefund:  fixedpoint.Zero(),
		SecondRefund: fixedpoint.Zero(),
	}, nil
}
