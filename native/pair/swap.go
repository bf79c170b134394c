package pair

import (
	"context"
	"fmt"
	"math/big"

	dexerrors "dexcore/core/errors"
	"dexcore/core/events"
	"dexcore/core/fixedpoint"
	"dexcore/crypto"
	nativecommon "dexcore/native/common"
)

// swapPlan is a fully validated swap awaiting settlement.
type swapPlan struct {
	tokenIn   string
	tokenOut  string
	amountIn  *big.Int
	amountOut *big.Int
	fee       *big.Int
	refund    *big.Int
}

func (e *Engine) swapPreamble(st *State, tokenIn, tokenOut string) (string, string, error) {
	if st.Status != nativecommon.StateActive {
		return "", "", fmt.Errorf("pair %s: %w", e.params.Name, dexerrors.ErrInactive)
	}
	tokenIn = normalizeToken(tokenIn)
	tokenOut = normalizeToken(tokenOut)
	other, err := st.Reserves.otherToken(tokenIn)
	if err != nil {
		return "", "", err
	}
	if other != tokenOut {
		return "", "", fmt.Errorf("pair: %w: cannot swap %s for %s", dexerrors.ErrInvalidToken, tokenIn, tokenOut)
	}
	return tokenIn, tokenOut, nil
}

// SwapFixedInput sells exactly amountIn of tokenIn for at least minOut of
// tokenOut.
func (e *Engine) SwapFixedInput(ctx context.Context, caller crypto.Address, tokenIn string, amountIn *big.Int, tokenOut string, minOut *big.Int) (*SwapResult, error) {
	if err := e.guard(); err != nil {
		return nil, err
	}
	st, err := e.load()
	if err != nil {
		return nil, err
	}
	tokenIn, tokenOut, err = e.swapPreamble(st, tokenIn, tokenOut)
	if err != nil {
		return nil, err
	}
	if !fixedpoint.IsPositive(amountIn) || !fixedpoint.IsPositive(minOut) {
		return nil, fmt.Errorf("pair: %w: swap amounts must be positive", dexerrors.ErrInvalidAmount)
	}
	reserveIn, reserveOut, err := st.Reserves.reserves(tokenIn)
	if err != nil {
		return nil, err
	}
	amountOut, err := GetAmountOut(amountIn, reserveIn, reserveOut, st.Fees.TotalFeePercent)
	if err != nil {
		return nil, err
	}
	if amountOut.Cmp(minOut) < 0 {
		return nil, fmt.Errorf("pair: %w: output %s below minimum %s", dexerrors.ErrSlippage, amountOut, minOut)
	}
	plan := swapPlan{
		tokenIn:   tokenIn,
		tokenOut:  tokenOut,
		amountIn:  fixedpoint.Copy(amountIn),
		amountOut: amountOut,
		fee:       e.feeEngine(st).FeeFromInput(amountIn),
		refund:    fixedpoint.Zero(),
	}
	if err := e.bank.Transfer(caller, e.address, tokenIn, 0, amountIn); err != nil {
		return nil, err
	}
	return e.settle(ctx, st, caller, plan, "fixed_input")
}

// SwapFixedOutput buys exactly amountOut of tokenOut paying at most
// amountInMax of tokenIn. The unused input is refunded.
func (e *Engine) SwapFixedOutput(ctx context.Context, caller crypto.Address, tokenIn string, amountInMax *big.Int, tokenOut string, amountOut *big.Int) (*SwapResult, error) {
	if err := e.guard(); err != nil {
		return nil, err
	}
	st, err := e.load()
	if err != nil {
		return nil, err
	}
	tokenIn, tokenOut, err = e.swapPreamble(st, tokenIn, tokenOut)
	if err != nil {
		return nil, err
	}
	if !fixedpoint.IsPositive(amountInMax) || !fixedpoint.IsPositive(amountOut) {
		return nil, fmt.Errorf("pair: %w: swap amounts must be positive", dexerrors.ErrInvalidAmount)
	}
	reserveIn, reserveOut, err := st.Reserves.reserves(tokenIn)
	if err != nil {
		return nil, err
	}
	amountIn, err := GetAmountIn(amountOut, reserveIn, reserveOut, st.Fees.TotalFeePercent)
	if err != nil {
		return nil, err
	}
	if amountIn.Cmp(amountInMax) > 0 {
		return nil, fmt.Errorf("pair: %w: input %s above maximum %s", dexerrors.ErrSlippage, amountIn, amountInMax)
	}
	plan := swapPlan{
		tokenIn:   tokenIn,
		tokenOut:  tokenOut,
		amountIn:  amountIn,
		amountOut: fixedpoint.Copy(amountOut),
		fee:       e.feeEngine(st).FeeFromInput(amountIn),
		refund:    new(big.Int).Sub(amountInMax, amountIn),
	}
	if err := e.bank.Transfer(caller, e.address, tokenIn, 0, amountInMax); err != nil {
		return nil, err
	}
	return e.settle(ctx, st, caller, plan, "fixed_output")
}

// settle applies a validated plan: reserves move, the constant product is
// re-checked, the fee is routed and the output is paid.
func (e *Engine) settle(ctx context.Context, st *State, caller crypto.Address, plan swapPlan, kind string) (*SwapResult, error) {
	if err := e.recordObservation(st); err != nil {
		return nil, err
	}
	_, reserveOut, err := st.Reserves.reserves(plan.tokenIn)
	if err != nil {
		return nil, err
	}
	if plan.amountOut.Cmp(reserveOut) >= 0 {
		return nil, fmt.Errorf("pair: %w: output %s drains reserve %s", dexerrors.ErrInsufficientReserve, plan.amountOut, reserveOut)
	}
	oldK := st.Reserves.K()
	afterFee, err := fixedpoint.Sub(plan.amountIn, plan.fee)
	if err != nil {
		return nil, err
	}
	if err := st.Reserves.addReserve(plan.tokenIn, afterFee); err != nil {
		return nil, err
	}
	if err := st.Reserves.subReserve(plan.tokenOut, plan.amountOut); err != nil {
		return nil, err
	}
	swapK := st.Reserves.K()
	if err := ValidateK(oldK, swapK, KNonDecreasing); err != nil {
		return nil, err
	}

	report, err := e.feeEngine(st).Route(ctx, &st.Reserves, plan.tokenIn, plan.fee)
	if err != nil {
		return nil, err
	}
	if err := ValidateK(swapK, st.Reserves.K(), KNonDecreasing); err != nil {
		return nil, err
	}

	if err := e.bank.Transfer(e.address, caller, plan.tokenOut, 0, plan.amountOut); err != nil {
		return nil, err
	}
	if plan.refund.Sign() > 0 {
		if err := e.bank.Transfer(e.address, caller, plan.tokenIn, 0, plan.refund); err != nil {
			return nil, err
		}
	}
	if err := e.save(st); err != nil {
		return nil, err
	}
	e.metrics.ObserveSwap(e.params.Name, kind)
	e.emit(events.SwapExecuted{
		Pair:      e.address,
		Caller:    caller,
		TokenIn:   plan.tokenIn,
		AmountIn:  fixedpoint.Copy(plan.amountIn),
		TokenOut:  plan.tokenOut,
		AmountOut: fixedpoint.Copy(plan.amountOut),
		FeeAmount: fixedpoint.Copy(plan.fee),
		Round:     e.block.Round,
	})
	return &SwapResult{
		TokenIn:   plan.tokenIn,
		AmountIn:  plan.amountIn,
		TokenOut:  plan.tokenOut,
		AmountOut: plan.amountOut,
		Refund:    plan.refund,
		FeeAmount: plan.fee,
		Routing:   report,
	}, nil
}

// swapNoFeeAndForward converts amountIn, already held by the pair, without
// fees and forwards the output to destination (burning it for the zero
// address). Only whitelisted callers may use it.
func (e *Engine) swapNoFeeAndForward(caller crypto.Address, tokenIn string, amountIn *big.Int, tokenOut string, destination crypto.Address) (*big.Int, error) {
	if err := e.guard(); err != nil {
		return nil, err
	}
	st, err := e.load()
	if err != nil {
		return nil, err
	}
	if !st.isWhitelisted(caller) {
		return nil, fmt.Errorf("pair %s: %w: %s not whitelisted", e.params.Name, dexerrors.ErrUnauthorized, caller)
	}
	if st.Status == nativecommon.StateInactive {
		return nil, fmt.Errorf("pair %s: %w", e.params.Name, dexerrors.ErrInactive)
	}
	tokenIn = normalizeToken(tokenIn)
	if other, err := st.Reserves.otherToken(tokenIn); err != nil || other != normalizeToken(tokenOut) {
		return nil, fmt.Errorf("pair: %w: cannot swap %s for %s", dexerrors.ErrInvalidToken, tokenIn, tokenOut)
	}
	if err := e.recordObservation(st); err != nil {
		return nil, err
	}
	oldK := st.Reserves.K()
	out, err := swapSafeNoFee(&st.Reserves, tokenIn, amountIn)
	if err != nil {
		return nil, err
	}
	if out.Sign() == 0 {
		return nil, fmt.Errorf("pair %s: %w: conversion of %s %s yields nothing", e.params.Name, dexerrors.ErrInsufficientReserve, amountIn, tokenIn)
	}
	if err := ValidateK(oldK, st.Reserves.K(), KNonDecreasing); err != nil {
		return nil, err
	}
	tokenOut = normalizeToken(tokenOut)
	if destination.IsZero() {
		err = e.bank.Burn(e.address, tokenOut, out)
	} else {
		err = e.bank.Transfer(e.address, destination, tokenOut, 0, out)
	}
	if err != nil {
		return nil, err
	}
	if err := e.save(st); err != nil {
		return nil, err
	}
	e.metrics.ObserveSwap(e.params.Name, "no_fee")
	e.emit(events.SwapExecuted{
		Pair:      e.address,
		Caller:    caller,
		TokenIn:   tokenIn,
		AmountIn:  fixedpoint.Copy(amountIn),
		TokenOut:  tokenOut,
		AmountOut: fixedpoint.Copy(out),
		FeeAmount: fixedpoint.Zero(),
		Round:     e.block.Round,
	})
	return out, nil
}

// SwapNoFee moves amountIn from a whitelisted caller into the pair and
// forwards the fee-less output to destination.
func (e *Engine) SwapNoFee(caller crypto.Address, tokenIn string, amountIn *big.Int, tokenOut string, destination crypto.Address) (*big.Int, error) {
	if !fixedpoint.IsPositive(amountIn) {
		return nil, fmt.Errorf("pair: %w: swap amount must be positive", dexerrors.ErrInvalidAmount)
	}
	if err := e.bank.Transfer(caller, e.address, normalizeToken(tokenIn), 0, amountIn); err != nil {
		return nil, err
	}
	return e.swapNoFeeAndForward(caller, tokenIn, amountIn, tokenOut, destination)
}
