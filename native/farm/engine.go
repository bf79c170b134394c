package farm

import (
	"context"
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
	"dexcore/native/locked"
	"dexcore/observability/logging"
	"dexcore/observability/metrics"
)

const moduleName = "farm"

var (
	errNilState       = errors.New("farm engine: state not configured")
	errNotInitialised = errors.New("farm engine: farm not initialised")
)

// Engine executes farm and staking operations. Like the pair engine it loads
// state at the start of every call and persists it at the end.
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

// NewEngine constructs an engine for the farm described by params.
func NewEngine(params Params) *Engine {
	params.FarmingToken = normalizeToken(params.FarmingToken)
	params.FarmToken = normalizeToken(params.FarmToken)
	params.RewardToken = normalizeToken(params.RewardToken)
	params.UnbondToken = normalizeToken(params.UnbondToken)
	if params.Variant == "" {
		params.Variant = VariantFarm
	}
	if params.DivisionSafetyConstant == nil {
		params.DivisionSafetyConstant = new(big.Int).Set(DefaultDivisionSafetyConstant)
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

// SetBlock records the block context; the block nonce drives emission and
// the epoch drives penalties and unbonding.
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

// SetCaller wires the proxy used to reach the locked token factory.
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

// Address returns the farm contract address.
func (e *Engine) Address() crypto.Address { return e.address }

// Params returns the static farm configuration.
func (e *Engine) Params() Params { return e.params }

// Initialize creates the farm state when missing. The reward checkpoint
// starts at the current block.
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
		Rewards: RewardState{
			RewardPerShare:         fixedpoint.Zero(),
			RewardReserve:          fixedpoint.Zero(),
			FarmTokenSupply:        fixedpoint.Zero(),
			LastRewardBlock:        e.block.Nonce,
			PerBlockRewardAmount:   fixedpoint.Copy(e.params.PerBlockRewardAmount),
			DivisionSafetyConstant: fixedpoint.Copy(e.params.DivisionSafetyConstant),
			Produced:               fixedpoint.Zero(),
			RewardCapacity:         fixedpoint.Zero(),
			ProduceRewards:         e.params.ProduceRewards,
			MaxAPRBps:              e.params.MaxAPRBps,
		},
		Status: e.params.InitialState,
		Owner:  e.params.Owner,
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
	e.metrics.SetRewardPerShare(e.params.Name, st.Rewards.RewardPerShare)
	return nil
}

func (e *Engine) emit(evt events.Event) {
	if e.emitter != nil {
		e.emitter.Emit(evt)
	}
}

func (e *Engine) guard() error {
	if err := nativecommon.Guard(e.pauses, moduleName); err != nil {
		return fmt.Errorf("farm %s: %w", e.params.Name, err)
	}
	return nil
}

func (e *Engine) requireActive(st *State) error {
	if st.Status != nativecommon.StateActive {
		return fmt.Errorf("farm %s: %w", e.params.Name, dexerrors.ErrInactive)
	}
	return nil
}

// accrue brings the reward ledger up to the current block. Minted rewards
// are issued to the farm, funded rewards are already held by it.
func (e *Engine) accrue(st *State) error {
	accrued := st.Rewards.GenerateAggregatedRewards(e.block.Nonce, e.params.FundedRewards)
	if accrued.Sign() == 0 || e.params.FundedRewards {
		return nil
	}
	return e.bank.Mint(e.address, e.params.RewardToken, accrued)
}

// loadPosition reads amount units of caller's position nonce. Attributes are
// decoded strictly and checked against the live ledger.
func (e *Engine) loadPosition(st *State, caller crypto.Address, nonce uint64, amount *big.Int) (FarmAttributes, error) {
	if !fixedpoint.IsPositive(amount) {
		return FarmAttributes{}, fmt.Errorf("farm: %w: position amount must be positive", dexerrors.ErrInvalidAmount)
	}
	inst, err := e.bank.IssuedInstance(e.params.FarmToken, nonce, e.address)
	if err != nil {
		return FarmAttributes{}, err
	}
	held, err := e.bank.Balance(caller, e.params.FarmToken, nonce)
	if err != nil {
		return FarmAttributes{}, err
	}
	if held.Cmp(amount) < 0 {
		return FarmAttributes{}, fmt.Errorf("farm: %s/%d: %w", e.params.FarmToken, nonce, dexerrors.ErrInsufficientBalance)
	}
	attrs, err := DecodeFarmAttributes(inst.Attributes)
	if err != nil {
		return FarmAttributes{}, err
	}
	if attrs.RewardPerShare.Cmp(st.Rewards.RewardPerShare) > 0 {
		return FarmAttributes{}, fmt.Errorf("%w: position checkpoint ahead of ledger", dexerrors.ErrDecoding)
	}
	if amount.Cmp(attrs.CurrentFarmAmount) > 0 {
		return FarmAttributes{}, fmt.Errorf("farm: %w: %s exceeds position size %s", dexerrors.ErrInvalidAmount, amount, attrs.CurrentFarmAmount)
	}
	return attrs.scaled(amount)
}

// mintPosition issues a fresh position token to caller.
func (e *Engine) mintPosition(caller crypto.Address, attrs FarmAttributes) (uint64, error) {
	encoded, err := attrs.Encode()
	if err != nil {
		return 0, err
	}
	return e.bank.CreateInstance(e.address, caller, e.params.FarmToken, attrs.CurrentFarmAmount, encoded)
}

// payReward sends reward to caller, through the locked token factory when
// rewards are locked. It returns the locked token nonce, if any.
func (e *Engine) payReward(ctx context.Context, caller crypto.Address, reward *big.Int) (uint64, error) {
	if !fixedpoint.IsPositive(reward) {
		return 0, nil
	}
	if !e.params.LockedRewards {
		return 0, e.bank.Transfer(e.address, caller, e.params.RewardToken, 0, reward)
	}
	args, err := proxy.EncodeArgs(caller)
	if err != nil {
		return 0, err
	}
	raw, err := e.caller.Call(ctx, proxy.Call{
		From:     e.address,
		To:       e.params.LockedFactory,
		Function: locked.FunctionCreateAndForward,
		Args:     args,
		Payments: []proxy.Payment{{Token: e.params.RewardToken, Amount: fixedpoint.Copy(reward)}},
	})
	if err != nil {
		return 0, fmt.Errorf("farm %s: lock rewards: %w", e.params.Name, err)
	}
	var nonce uint64
	if err := proxy.DecodeResult(raw, &nonce); err != nil {
		return 0, err
	}
	return nonce, nil
}
