// Package bank is the token ledger every contract settles through: fungible
// balances (nonce zero) and non-fungible instances carrying attributes.
package bank

import (
	"errors"
	"fmt"
	"math/big"
	"strings"

	"github.com/holiman/uint256"

	dexerrors "dexcore/core/errors"
	"dexcore/core/state"
	"dexcore/crypto"
)

var (
	errNilState = errors.New("bank: state not configured")
	errNoToken  = errors.New("bank: token identifier required")
)

// Instance is a stored non-fungible (or semi-fungible) token nonce.
type Instance struct {
	Token      string
	Nonce      uint64
	Attributes []byte
	Supply     *big.Int
	Creator    crypto.Address
}

// Clone returns a deep copy of the instance.
func (i *Instance) Clone() *Instance {
	if i == nil {
		return nil
	}
	clone := *i
	clone.Attributes = append([]byte(nil), i.Attributes...)
	if i.Supply != nil {
		clone.Supply = new(big.Int).Set(i.Supply)
	} else {
		clone.Supply = new(big.Int)
	}
	return &clone
}

// Ledger reads and writes balances through a KV store. It carries no cache:
// every call observes the latest stored value.
type Ledger struct {
	state state.KVStore
}

// NewLedger binds a ledger to store.
func NewLedger(store state.KVStore) *Ledger {
	return &Ledger{state: store}
}

func normalizeToken(token string) (string, error) {
	trimmed := strings.ToUpper(strings.TrimSpace(token))
	if trimmed == "" {
		return "", errNoToken
	}
	return trimmed, nil
}

func balanceKey(token string, nonce uint64, owner crypto.Address) []byte {
	return []byte(fmt.Sprintf("bank/balance/%s/%d/%x", token, nonce, owner[:]))
}

func supplyKey(token string) []byte {
	return []byte("bank/supply/" + token)
}

func nonceKey(token string) []byte {
	return []byte("bank/nonce/" + token)
}

func instanceKey(token string, nonce uint64) []byte {
	return []byte(fmt.Sprintf("bank/instance/%s/%d", token, nonce))
}

func (l *Ledger) ready() error {
	if l == nil || l.state == nil {
		return errNilState
	}
	return nil
}

func (l *Ledger) loadWord(key []byte) (*uint256.Int, error) {
	var stored big.Int
	ok, err := l.state.KVGet(key, &stored)
	if err != nil {
		return nil, err
	}
	if !ok {
		return new(uint256.Int), nil
	}
	word, overflow := uint256.FromBig(&stored)
	if overflow {
		return nil, fmt.Errorf("%w: stored balance exceeds 256 bits", dexerrors.ErrArithmetic)
	}
	return word, nil
}

func (l *Ledger) storeWord(key []byte, word *uint256.Int) error {
	if word.IsZero() {
		return l.state.KVDelete(key)
	}
	return l.state.KVPut(key, word.ToBig())
}

func toWord(amount *big.Int) (*uint256.Int, error) {
	if amount == nil || amount.Sign() < 0 {
		return nil, fmt.Errorf("%w: amount must be non-negative", dexerrors.ErrInvalidAmount)
	}
	word, overflow := uint256.FromBig(amount)
	if overflow {
		return nil, fmt.Errorf("%w: amount exceeds 256 bits", dexerrors.ErrArithmetic)
	}
	return word, nil
}

func (l *Ledger) credit(key []byte, amount *uint256.Int) error {
	current, err := l.loadWord(key)
	if err != nil {
		return err
	}
	next, overflow := new(uint256.Int).AddOverflow(current, amount)
	if overflow {
		return fmt.Errorf("%w: balance overflow", dexerrors.ErrArithmetic)
	}
	return l.storeWord(key, next)
}

func (l *Ledger) debit(key []byte, amount *uint256.Int, insufficient error) error {
	current, err := l.loadWord(key)
	if err != nil {
		return err
	}
	if current.Lt(amount) {
		return insufficient
	}
	return l.storeWord(key, new(uint256.Int).Sub(current, amount))
}

// Balance returns owner's holding of token at nonce.
func (l *Ledger) Balance(owner crypto.Address, token string, nonce uint64) (*big.Int, error) {
	if err := l.ready(); err != nil {
		return nil, err
	}
	token, err := normalizeToken(token)
	if err != nil {
		return nil, err
	}
	word, err := l.loadWord(balanceKey(token, nonce, owner))
	if err != nil {
		return nil, err
	}
	return word.ToBig(), nil
}

// Supply returns the circulating fungible supply of token.
func (l *Ledger) Supply(token string) (*big.Int, error) {
	if err := l.ready(); err != nil {
		return nil, err
	}
	token, err := normalizeToken(token)
	if err != nil {
		return nil, err
	}
	word, err := l.loadWord(supplyKey(token))
	if err != nil {
		return nil, err
	}
	return word.ToBig(), nil
}

// Mint issues fungible token to recipient.
func (l *Ledger) Mint(recipient crypto.Address, token string, amount *big.Int) error {
	if err := l.ready(); err != nil {
		return err
	}
	token, err := normalizeToken(token)
	if err != nil {
		return err
	}
	word, err := toWord(amount)
	if err != nil {
		return err
	}
	if word.IsZero() {
		return nil
	}
	if err := l.credit(supplyKey(token), word); err != nil {
		return err
	}
	return l.credit(balanceKey(token, 0, recipient), word)
}

// Burn destroys amount of owner's fungible token.
func (l *Ledger) Burn(owner crypto.Address, token string, amount *big.Int) error {
	if err := l.ready(); err != nil {
		return err
	}
	token, err := normalizeToken(token)
	if err != nil {
		return err
	}
	word, err := toWord(amount)
	if err != nil {
		return err
	}
	if word.IsZero() {
		return nil
	}
	insufficient := fmt.Errorf("bank: burn %s %s: %w", amount, token, dexerrors.ErrInsufficientBalance)
	if err := l.debit(balanceKey(token, 0, owner), word, insufficient); err != nil {
		return err
	}
	return l.debit(supplyKey(token), word, fmt.Errorf("bank: %s supply: %w", token, dexerrors.ErrInsufficientSupply))
}

// Transfer moves amount of token (fungible when nonce is zero) from one owner
// to another. Transfers to the zero address are rejected; use Burn instead.
func (l *Ledger) Transfer(from, to crypto.Address, token string, nonce uint64, amount *big.Int) error {
	if err := l.ready(); err != nil {
		return err
	}
	if to.IsZero() {
		return fmt.Errorf("bank: transfer to zero address: %w", dexerrors.ErrInvalidToken)
	}
	token, err := normalizeToken(token)
	if err != nil {
		return err
	}
	word, err := toWord(amount)
	if err != nil {
		return err
	}
	if word.IsZero() || from == to {
		return nil
	}
	insufficient := fmt.Errorf("bank: transfer %s %s/%d: %w", amount, token, nonce, dexerrors.ErrInsufficientBalance)
	if err := l.debit(balanceKey(token, nonce, from), word, insufficient); err != nil {
		return err
	}
	return l.credit(balanceKey(token, nonce, to), word)
}

// CreateInstance mints a fresh nonce of token carrying attributes and credits
// amount units of it to recipient. Nonces start at one.
func (l *Ledger) CreateInstance(creator, recipient crypto.Address, token string, amount *big.Int, attributes []byte) (uint64, error) {
	if err := l.ready(); err != nil {
		return 0, err
	}
	token, err := normalizeToken(token)
	if err != nil {
		return 0, err
	}
	word, err := toWord(amount)
	if err != nil {
		return 0, err
	}
	if word.IsZero() {
		return 0, fmt.Errorf("bank: create %s: %w", token, dexerrors.ErrInvalidAmount)
	}
	var last uint64
	if _, err := l.state.KVGet(nonceKey(token), &last); err != nil {
		return 0, err
	}
	nonce := last + 1
	if err := l.state.KVPut(nonceKey(token), nonce); err != nil {
		return 0, err
	}
	inst := &Instance{
		Token:      token,
		Nonce:      nonce,
		Attributes: append([]byte(nil), attributes...),
		Supply:     word.ToBig(),
		Creator:    creator,
	}
	if err := l.state.KVPut(instanceKey(token, nonce), inst); err != nil {
		return 0, err
	}
	if err := l.credit(balanceKey(token, nonce, recipient), word); err != nil {
		return 0, err
	}
	return nonce, nil
}

// Instance loads a stored nonce. Missing or fully burned instances report
// ErrPositionNotFound.
func (l *Ledger) Instance(token string, nonce uint64) (*Instance, error) {
	if err := l.ready(); err != nil {
		return nil, err
	}
	token, err := normalizeToken(token)
	if err != nil {
		return nil, err
	}
	var inst Instance
	ok, err := l.state.KVGet(instanceKey(token, nonce), &inst)
	if err != nil {
		return nil, err
	}
	if !ok || inst.Supply == nil || inst.Supply.Sign() == 0 {
		return nil, fmt.Errorf("bank: %s/%d: %w", token, nonce, dexerrors.ErrPositionNotFound)
	}
	return &inst, nil
}

// IssuedInstance loads a stored nonce and requires it to have been created by
// issuer. Instances of the same token name minted by another contract report
// ErrPositionNotFound.
func (l *Ledger) IssuedInstance(token string, nonce uint64, issuer crypto.Address) (*Instance, error) {
	inst, err := l.Instance(token, nonce)
	if err != nil {
		return nil, err
	}
	if inst.Creator != issuer {
		return nil, fmt.Errorf("bank: %s/%d not issued by %s: %w", inst.Token, nonce, issuer, dexerrors.ErrPositionNotFound)
	}
	return inst, nil
}

// BurnInstance destroys amount units of owner's token nonce. The instance
// record is removed once its supply reaches zero.
func (l *Ledger) BurnInstance(owner crypto.Address, token string, nonce uint64, amount *big.Int) error {
	inst, err := l.Instance(token, nonce)
	if err != nil {
		return err
	}
	word, err := toWord(amount)
	if err != nil {
		return err
	}
	insufficient := fmt.Errorf("bank: burn %s/%d: %w", inst.Token, nonce, dexerrors.ErrInsufficientBalance)
	if err := l.debit(balanceKey(inst.Token, nonce, owner), word, insufficient); err != nil {
		return err
	}
	if inst.Supply.Cmp(amount) < 0 {
		return fmt.Errorf("bank: %s/%d supply: %w", inst.Token, nonce, dexerrors.ErrInsufficientSupply)
	}
	inst.Supply = new(big.Int).Sub(inst.Supply, amount)
	if inst.Supply.Sign() == 0 {
		return l.state.KVDelete(instanceKey(inst.Token, nonce))
	}
	return l.state.KVPut(instanceKey(inst.Token, nonce), inst)
}
