package pair

import (
	"context"
	"fmt"
	"log/slog"
	"math/big"

	"dexcore/core/events"
	"dexcore/core/fixedpoint"
	"dexcore/core/proxy"
	"dexcore/crypto"
	"dexcore/native/bank"
	"dexcore/observability/metrics"
)

// Reinjection reasons reported in events and metrics.
const (
	ReasonNoDestinations = "no_destinations"
	ReasonSliceTooSmall  = "slice_too_small"
	ReasonRounding       = "rounding"
	ReasonNoConversion   = "no_conversion"
	ReasonUntrustedToken = "untrusted_token"
	ReasonSiblingFailed  = "sibling_failed"
)

const (
	// FunctionSwapNoFeeAndForward is the proxy entry point sibling pairs
	// expose for fee conversion.
	FunctionSwapNoFeeAndForward = "swapNoFeeAndForward"

	feeSliceLogMsg = "pair fee slice reinjected"
)

// RoutingReport accounts for every unit of a routed fee, denominated in the
// fee token: Delivered + Reinjected always equals the routed amount.
type RoutingReport struct {
	Delivered  *big.Int
	Reinjected *big.Int
}

func newRoutingReport() RoutingReport {
	return RoutingReport{Delivered: fixedpoint.Zero(), Reinjected: fixedpoint.Zero()}
}

// FeeEngine computes the special fee of a swap and routes it to the
// configured destinations.
type FeeEngine struct {
	config  FeeConfig
	name    string
	pair    crypto.Address
	bank    *bank.Ledger
	caller  proxy.Caller
	emitter events.Emitter
	logger  *slog.Logger
	metrics metrics.Observer
	trusted func(a, b string) (crypto.Address, bool)
}

// FeeFromInput returns the special fee charged on amountIn. The rest of the
// total fee stays in the pool as liquidity provider yield.
func (f *FeeEngine) FeeFromInput(amountIn *big.Int) *big.Int {
	if !f.config.Enabled {
		return fixedpoint.Zero()
	}
	return fixedpoint.Percent(amountIn, f.config.SpecialFeePercent)
}

// Route splits amount of token evenly across the destinations. Slices that
// cannot be delivered in the requested token are reinjected into reserves,
// so conversion trouble never fails the enclosing swap. Only ledger faults
// are returned as errors.
func (f *FeeEngine) Route(ctx context.Context, reserves *ReserveState, token string, amount *big.Int) (RoutingReport, error) {
	report := newRoutingReport()
	if !fixedpoint.IsPositive(amount) {
		return report, nil
	}
	slices := int64(len(f.config.Destinations))
	if slices == 0 {
		return report, f.reinject(reserves, token, amount, ReasonNoDestinations, &report)
	}
	slice := new(big.Int).Quo(amount, big.NewInt(slices))
	if slice.Sign() == 0 {
		return report, f.reinject(reserves, token, amount, ReasonSliceTooSmall, &report)
	}
	for _, dest := range f.config.Destinations {
		if err := f.routeSlice(ctx, reserves, dest, token, slice, &report); err != nil {
			return report, err
		}
	}
	remainder := new(big.Int).Sub(amount, new(big.Int).Mul(slice, big.NewInt(slices)))
	if remainder.Sign() > 0 {
		if err := f.reinject(reserves, token, remainder, ReasonRounding, &report); err != nil {
			return report, err
		}
	}
	return report, nil
}

func (f *FeeEngine) routeSlice(ctx context.Context, reserves *ReserveState, dest FeeDestination, token string, slice *big.Int, report *RoutingReport) error {
	requested := normalizeToken(dest.Token)
	if requested == "" || requested == token {
		if err := f.deliver(dest.Address, token, slice); err != nil {
			return err
		}
		report.Delivered.Add(report.Delivered, slice)
		return nil
	}

	if other, _ := reserves.otherToken(token); other == requested {
		converted, err := swapSafeNoFee(reserves, token, slice)
		if err != nil {
			return err
		}
		if converted.Sign() == 0 {
			return f.reinject(reserves, token, slice, ReasonNoConversion, report)
		}
		if err := f.deliver(dest.Address, requested, converted); err != nil {
			return err
		}
		report.Delivered.Add(report.Delivered, slice)
		return nil
	}

	sibling, ok := f.trusted(token, requested)
	if !ok || f.caller == nil {
		return f.reinject(reserves, token, slice, ReasonUntrustedToken, report)
	}
	args, err := proxy.EncodeArgs(requested, dest.Address)
	if err != nil {
		return err
	}
	_, err = f.caller.Call(ctx, proxy.Call{
		From:     f.pair,
		To:       sibling,
		Function: FunctionSwapNoFeeAndForward,
		Args:     args,
		Payments: []proxy.Payment{{Token: token, Amount: new(big.Int).Set(slice)}},
	})
	if err != nil {
		f.logger.Debug(feeSliceLogMsg, "pair", f.name, "sibling", sibling.String(), "error", err)
		return f.reinject(reserves, token, slice, ReasonSiblingFailed, report)
	}
	report.Delivered.Add(report.Delivered, slice)
	return nil
}

// deliver sends amount from the pair to dest, burning when dest is the zero
// address.
func (f *FeeEngine) deliver(dest crypto.Address, token string, amount *big.Int) error {
	if dest.IsZero() {
		if err := f.bank.Burn(f.pair, token, amount); err != nil {
			return fmt.Errorf("pair: burn fee: %w", err)
		}
	} else if err := f.bank.Transfer(f.pair, dest, token, 0, amount); err != nil {
		return fmt.Errorf("pair: send fee: %w", err)
	}
	f.emit(events.FeeRouted{
		Pair:        f.pair,
		Destination: dest,
		Token:       token,
		Amount:      new(big.Int).Set(amount),
		Burned:      dest.IsZero(),
	})
	return nil
}

// reinject credits amount back to the reserve of token. Reserves only grow,
// so the constant product cannot decrease here.
func (f *FeeEngine) reinject(reserves *ReserveState, token string, amount *big.Int, reason string, report *RoutingReport) error {
	if err := reserves.addReserve(token, amount); err != nil {
		return err
	}
	report.Reinjected.Add(report.Reinjected, amount)
	f.metrics.ObserveFeeReinjected(f.name, reason)
	f.logger.Debug(feeSliceLogMsg, "pair", f.name, "token", token, "amount", amount.String(), "reason", reason)
	f.emit(events.FeeReinjected{Pair: f.pair, Token: token, Amount: new(big.Int).Set(amount), Reason: reason})
	return nil
}

func (f *FeeEngine) emit(evt events.Event) {
	if f.emitter != nil {
		f.emitter.Emit(evt)
	}
}

// swapSafeNoFee converts amountIn through the pool without fees. It returns
// zero, leaving reserves untouched, when the output would be zero or would
// drain the opposite reserve.
func swapSafeNoFee(reserves *ReserveState, tokenIn string, amountIn *big.Int) (*big.Int, error) {
	reserveIn, reserveOut, err := reserves.reserves(tokenIn)
	if err != nil {
		return nil, err
	}
	if !fixedpoint.IsPositive(reserveIn) || !fixedpoint.IsPositive(reserveOut) {
		return fixedpoint.Zero(), nil
	}
	out, err := GetAmountOutNoFee(amountIn, reserveIn, reserveOut)
	if err != nil {
		return nil, err
	}
	if out.Sign() == 0 || out.Cmp(reserveOut) >= 0 {
		return fixedpoint.Zero(), nil
	}
	tokenOut, _ := reserves.otherToken(tokenIn)
	if err := reserves.addReserve(tokenIn, amountIn); err != nil {
		return nil, err
	}
	if err := reserves.subReserve(tokenOut, out); err != nil {
		return nil, err
	}
	return out, nil
}
