// Package errors defines the failure taxonomy shared by the pair, farm and
// oracle engines. Every engine wraps one of these sentinels with context so
// callers can classify failures with errors.Is.
package errors

import stderrors "errors"

var (
	// ErrArithmetic covers subtraction underflow, division by zero and
	// integer overflow. It always aborts the enclosing operation.
	ErrArithmetic = stderrors.New("arithmetic error")
	// ErrInvariantViolation signals that the constant product moved in a
	// direction the operation does not allow.
	ErrInvariantViolation = stderrors.New("invariant violation")
	// ErrSlippage reports that a caller supplied minimum was not met.
	ErrSlippage = stderrors.New("slippage limit exceeded")
	// ErrInsufficientReserve reports that a pool or reward reserve cannot
	// cover the requested amount.
	ErrInsufficientReserve = stderrors.New("insufficient reserve")
	// ErrInsufficientSupply reports that a share supply cannot cover the
	// requested burn.
	ErrInsufficientSupply = stderrors.New("insufficient supply")
	// ErrZeroLiquidity is returned when a deposit would mint no shares.
	ErrZeroLiquidity = stderrors.New("zero liquidity minted")
	// ErrObservationNotFound is returned when an oracle query reaches
	// before the oldest retained observation.
	ErrObservationNotFound = stderrors.New("observation not found")
	// ErrSameRound is returned when a price window has zero width.
	ErrSameRound = stderrors.New("price window has zero width")
	// ErrUnbondTooEarly is returned when an unbond token is redeemed before
	// its unlock epoch.
	ErrUnbondTooEarly = stderrors.New("unbond too early")
	// ErrDecoding is returned when caller supplied attribute bytes do not
	// match the expected schema.
	ErrDecoding = stderrors.New("attribute decoding failed")

	ErrInvalidAmount       = stderrors.New("invalid amount")
	ErrInvalidToken        = stderrors.New("invalid token")
	ErrUnauthorized        = stderrors.New("unauthorized caller")
	ErrInactive            = stderrors.New("contract not active")
	ErrReentrantCall       = stderrors.New("reentrant call")
	ErrCompoundNotAllowed  = stderrors.New("compounding not allowed")
	ErrPositionNotFound    = stderrors.New("position not found")
	ErrUnknownFunction     = stderrors.New("unknown function")
	ErrNotConfigured       = stderrors.New("engine not configured")
	ErrInsufficientBalance = stderrors.New("insufficient balance")
)

// Is reports whether any error in err's chain matches target. It re-exports
// the standard library helper so callers importing this package under the
// errors name keep access to it.
func Is(err, target error) bool { return stderrors.Is(err, target) }

// As re-exports the standard library helper.
func As(err error, target any) bool { return stderrors.As(err, target) }

// New re-exports the standard library constructor.
func New(text string) error { return stderrors.New(text) }

var classes = []struct {
	err   error
	class string
}{
	{ErrArithmetic, "arithmetic"},
	{ErrInvariantViolation, "invariant"},
	{ErrSlippage, "slippage"},
	{ErrInsufficientReserve, "insufficient_reserve"},
	{ErrInsufficientSupply, "insufficient_supply"},
	{ErrZeroLiquidity, "zero_liquidity"},
	{ErrObservationNotFound, "observation_not_found"},
	{ErrSameRound, "same_round"},
	{ErrUnbondTooEarly, "unbond_too_early"},
	{ErrDecoding, "decoding"},
	{ErrInvalidAmount, "invalid_amount"},
	{ErrInvalidToken, "invalid_token"},
	{ErrUnauthorized, "unauthorized"},
	{ErrInactive, "inactive"},
	{ErrReentrantCall, "reentrant"},
	{ErrCompoundNotAllowed, "compound_not_allowed"},
	{ErrPositionNotFound, "position_not_found"},
	{ErrUnknownFunction, "unknown_function"},
	{ErrNotConfigured, "not_configured"},
	{ErrInsufficientBalance, "insufficient_balance"},
}

// Class names the first taxonomy sentinel in err's chain, "" for nil and
// "other" for errors outside the taxonomy. It is used as a metrics label.
func Class(err error) string {
	if err == nil {
		return ""
	}
	for _, c := range classes {
		if stderrors.Is(err, c.err) {
			return c.class
		}
	}
	return "other"
}
