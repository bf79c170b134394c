// Package locked implements the locked token factory: reward tokens sent to
// it are wrapped into instances that can only be unlocked after a number of
// epochs.
package locked

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math/big"
	"strings"

	"github.com/ethereum/go-ethereum/rlp"

	"dexcore/core/clock"
	dexerrors "dexcore/core/errors"
	"dexcore/core/events"
	"dexcore/core/fixedpoint"
	"dexcore/core/proxy"
	"dexcore/core/state"
	"dexcore/crypto"
	"dexcore/native/bank"
	"dexcore/observability/logging"
)

// FunctionCreateAndForward wraps the attached payment and sends the locked
// instance to the recipient given as first argument.
const FunctionCreateAndForward = "createAndForward"

const attributesTag = 0x4c

var (
	errNilState = errors.New("locked factory: state not configured")
	statePrefix = []byte("locked/state/")
)

// Params configure a factory.
type Params struct {
	Name        string
	LockedToken string
	LockEpochs  uint64
	Owner       crypto.Address
}

// Address returns the factory contract address.
func (p Params) Address() crypto.Address {
	return crypto.ContractAddress("locked", strings.TrimSpace(p.Name))
}

// Attributes describe what a locked instance unwraps into.
type Attributes struct {
	Token       string
	UnlockEpoch uint64
}

// Encode serialises the attributes behind a one byte tag.
func (a Attributes) Encode() ([]byte, error) {
	body, err := rlp.EncodeToBytes(&a)
	if err != nil {
		return nil, err
	}
	return append([]byte{attributesTag}, body...), nil
}

// DecodeAttributes parses locked instance attributes, rejecting anything not
// produced by Encode.
func DecodeAttributes(raw []byte) (Attributes, error) {
	if len(raw) < 2 || raw[0] != attributesTag {
		return Attributes{}, fmt.Errorf("%w: not a locked token", dexerrors.ErrDecoding)
	}
	var attrs Attributes
	if err := rlp.DecodeBytes(raw[1:], &attrs); err != nil {
		return Attributes{}, fmt.Errorf("%w: %v", dexerrors.ErrDecoding, err)
	}
	if attrs.Token == "" {
		return Attributes{}, fmt.Errorf("%w: locked token without underlying", dexerrors.ErrDecoding)
	}
	return attrs, nil
}

type factoryState struct {
	Owner    crypto.Address
	Creators []crypto.Address
}

// Factory is the locked token contract.
type Factory struct {
	params  Params
	address crypto.Address
	kv      state.KVStore
	bank    *bank.Ledger
	block   clock.BlockInfo
	emitter events.Emitter
	logger  *slog.Logger
}

// NewFactory constructs a factory.
func NewFactory(params Params) *Factory {
	params.LockedToken = strings.ToUpper(strings.TrimSpace(params.LockedToken))
	return &Factory{
		params:  params,
		address: params.Address(),
		emitter: events.NoopEmitter{},
		logger:  logging.Discard(),
	}
}

func (f *Factory) SetState(kv state.KVStore) {
	if f == nil {
		return
	}
	f.kv = kv
	f.bank = bank.NewLedger(kv)
}

func (f *Factory) SetBlock(info clock.BlockInfo) {
	if f == nil {
		return
	}
	f.block = info
}

func (f *Factory) SetEmitter(emitter events.Emitter) {
	if f == nil || emitter == nil {
		return
	}
	f.emitter = emitter
}

func (f *Factory) SetLogger(logger *slog.Logger) {
	if f == nil || logger == nil {
		return
	}
	f.logger = logger
}

// Address returns the factory address.
func (f *Factory) Address() crypto.Address { return f.address }

// Params returns the static factory configuration.
func (f *Factory) Params() Params { return f.params }

func (f *Factory) stateKey() []byte {
	return append(append([]byte(nil), statePrefix...), strings.TrimSpace(f.params.Name)...)
}

func (f *Factory) load() (*factoryState, error) {
	if f == nil || f.kv == nil {
		return nil, errNilState
	}
	var st factoryState
	ok, err := f.kv.KVGet(f.stateKey(), &st)
	if err != nil {
		return nil, err
	}
	if !ok {
		st.Owner = f.params.Owner
	}
	return &st, nil
}

// AddCreator allows addr, typically a farm, to create locked tokens.
func (f *Factory) AddCreator(caller, addr crypto.Address) error {
	st, err := f.load()
	if err != nil {
		return err
	}
	if caller != st.Owner {
		return fmt.Errorf("locked %s: %w", f.params.Name, dexerrors.ErrUnauthorized)
	}
	for _, existing := range st.Creators {
		if existing == addr {
			return nil
		}
	}
	st.Creators = append(st.Creators, addr)
	return f.kv.KVPut(f.stateKey(), st)
}

// CreateAndForward locks amount of token, already held by the factory, for
// recipient. Only registered creators may call it.
func (f *Factory) CreateAndForward(creator, recipient crypto.Address, token string, amount *big.Int) (uint64, error) {
	st, err := f.load()
	if err != nil {
		return 0, err
	}
	allowed := false
	for _, c := range st.Creators {
		if c == creator {
			allowed = true
			break
		}
	}
	if !allowed {
		return 0, fmt.Errorf("locked %s: %w: %s is not a creator", f.params.Name, dexerrors.ErrUnauthorized, creator)
	}
	if !fixedpoint.IsPositive(amount) {
		return 0, fmt.Errorf("locked: %w: amount must be positive", dexerrors.ErrInvalidAmount)
	}
	attrs := Attributes{Token: strings.ToUpper(strings.TrimSpace(token)), UnlockEpoch: f.block.Epoch + f.params.LockEpochs}
	encoded, err := attrs.Encode()
	if err != nil {
		return 0, err
	}
	nonce, err := f.bank.CreateInstance(f.address, recipient, f.params.LockedToken, amount, encoded)
	if err != nil {
		return 0, err
	}
	f.emitter.Emit(events.LockedRewardCreated{
		Factory:     f.address,
		Recipient:   recipient,
		Token:       attrs.Token,
		Amount:      fixedpoint.Copy(amount),
		Nonce:       nonce,
		UnlockEpoch: attrs.UnlockEpoch,
	})
	return nonce, nil
}

// Unlock burns amount units of caller's locked nonce and releases the
// underlying tokens once the unlock epoch is reached.
func (f *Factory) Unlock(caller crypto.Address, nonce uint64, amount *big.Int) (string, error) {
	if f == nil || f.bank == nil {
		return "", errNilState
	}
	inst, err := f.bank.IssuedInstance(f.params.LockedToken, nonce, f.address)
	if err != nil {
		return "", err
	}
	attrs, err := DecodeAttributes(inst.Attributes)
	if err != nil {
		return "", err
	}
	if f.block.Epoch < attrs.UnlockEpoch {
		return "", fmt.Errorf("locked %s: %w: unlocks at epoch %d", f.params.Name, dexerrors.ErrUnbondTooEarly, attrs.UnlockEpoch)
	}
	if err := f.bank.BurnInstance(caller, f.params.LockedToken, nonce, amount); err != nil {
		return "", err
	}
	if err := f.bank.Transfer(f.address, caller, attrs.Token, 0, amount); err != nil {
		return "", err
	}
	f.logger.Debug("locked tokens released", "factory", f.params.Name, "token", attrs.Token, "amount", amount.String())
	return attrs.Token, nil
}

// Dispatch serves cross-contract calls.
func (f *Factory) Dispatch(_ context.Context, call proxy.Call) ([]byte, error) {
	switch call.Function {
	case FunctionCreateAndForward:
		if len(call.Payments) != 1 || call.Payments[0].Nonce != 0 {
			return nil, fmt.Errorf("locked: %w: exactly one fungible payment required", dexerrors.ErrInvalidToken)
		}
		var recipient crypto.Address
		if err := proxy.DecodeArg(call.Args, 0, &recipient); err != nil {
			return nil, err
		}
		payment := call.Payments[0]
		nonce, err := f.CreateAndForward(call.From, recipient, payment.Token, payment.Amount)
		if err != nil {
			return nil, err
		}
		return proxy.EncodeResult(nonce)
	default:
		return nil, fmt.Errorf("locked %s: %w: %q", f.params.Name, dexerrors.ErrUnknownFunction, call.Function)
	}
}

var _ proxy.Handler = (*Factory)(nil)
