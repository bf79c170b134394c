package pair

import (
	"math/big"
	"testing"

	"github.com/stretchr/testify/require"

	dexerrors "dexcore/core/errors"
)

func emptyReserves() *ReserveState {
	return &ReserveState{
		FirstToken:    "WEGLD",
		SecondToken:   "USDC",
		LPToken:       "EGLDUSDC",
		FirstReserve:  big.NewInt(0),
		SecondReserve: big.NewInt(0),
		LPSupply:      big.NewInt(0),
	}
}

func TestFirstDepositLocksMinimumLiquidity(t *testing.T) {
	testCases := []struct {
		name      string
		policy    BootstrapPolicy
		liquidity int64
		supply    int64
	}{
		{name: "sqrt", policy: BootstrapSqrt, liquidity: 999_499, supply: 1_000_499},
		{name: "min", policy: BootstrapMin, liquidity: 999_000, supply: 1_000_000},
	}
	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			r := emptyReserves()
			a, b, err := r.OptimalAmounts(big.NewInt(1_001_000), big.NewInt(1_000_000), big.NewInt(0), big.NewInt(0))
			require.NoError(t, err)
			liquidity, locked, err := r.AddLiquidity(a, b, tc.policy)
			require.NoError(t, err)
			require.Equal(t, tc.liquidity, liquidity.Int64())
			require.Equal(t, int64(MinimumLiquidity), locked.Int64())
			require.Equal(t, tc.supply, r.LPSupply.Int64())
			require.Equal(t, int64(1_001_000), r.FirstReserve.Int64())
			require.Equal(t, int64(1_000_000), r.SecondReserve.Int64())
		})
	}
}

func TestFirstDepositTooSmall(t *testing.T) {
	r := emptyReserves()
	_, _, err := r.AddLiquidity(big.NewInt(1_000), big.NewInt(1_000), BootstrapSqrt)
	require.ErrorIs(t, err, dexerrors.ErrZeroLiquidity)
	require.Zero(t, r.LPSupply.Sign(), "failed deposit must not touch reserves")
}

func TestOptimalAmounts(t *testing.T) {
	r := emptyReserves()
	r.FirstReserve = big.NewInt(1_000)
	r.SecondReserve = big.NewInt(2_000)
	r.LPSupply = big.NewInt(1_414)

	a, b, err := r.OptimalAmounts(big.NewInt(100), big.NewInt(500), big.NewInt(0), big.NewInt(150))
	require.NoError(t, err)
	require.Equal(t, int64(100), a.Int64())
	require.Equal(t, int64(200), b.Int64())

	a, b, err = r.OptimalAmounts(big.NewInt(500), big.NewInt(100), big.NewInt(40), big.NewInt(0))
	require.NoError(t, err)
	require.Equal(t, int64(50), a.Int64())
	require.Equal(t, int64(100), b.Int64())

	_, _, err = r.OptimalAmounts(big.NewInt(100), big.NewInt(500), big.NewInt(0), big.NewInt(250))
	require.ErrorIs(t, err, dexerrors.ErrSlippage)
	_, _, err = r.OptimalAmounts(big.NewInt(500), big.NewInt(100), big.NewInt(60), big.NewInt(0))
	require.ErrorIs(t, err, dexerrors.ErrSlippage)
}

func TestRoundTripNeverFavoursUser(t *testing.T) {
	r := emptyReserves()
	_, _, err := r.AddLiquidity(big.NewInt(1_234_567), big.NewInt(7_654_321), BootstrapSqrt)
	require.NoError(t, err)

	deposits := [][2]int64{{1_000, 6_200}, {333, 2_064}, {98_765, 612_345}, {7, 44}}
	for _, d := range deposits {
		a, b, err := r.OptimalAmounts(big.NewInt(d[0]), big.NewInt(d[1]), big.NewInt(0), big.NewInt(0))
		require.NoError(t, err)
		oldK := r.K()
		liquidity, _, err := r.AddLiquidity(a, b, BootstrapSqrt)
		require.NoError(t, err)
		require.Positive(t, r.K().Cmp(oldK), "deposit must strictly grow k")

		oldK = r.K()
		outA, outB, err := r.RemoveLiquidity(liquidity, big.NewInt(0), big.NewInt(0))
		require.NoError(t, err)
		require.Negative(t, r.K().Cmp(oldK), "withdrawal must strictly shrink k")
		require.LessOrEqual(t, outA.Cmp(a), 0)
		require.LessOrEqual(t, outB.Cmp(b), 0)
	}
}

func TestRemoveLiquidityGuards(t *testing.T) {
	r := emptyReserves()
	_, _, err := r.AddLiquidity(big.NewInt(10_000), big.NewInt(10_000), BootstrapSqrt)
	require.NoError(t, err)

	_, _, err = r.RemoveLiquidity(big.NewInt(20_000), big.NewInt(0), big.NewInt(0))
	require.ErrorIs(t, err, dexerrors.ErrInsufficientSupply)

	_, _, err = r.RemoveLiquidity(big.NewInt(1_000), big.NewInt(1_001), big.NewInt(0))
	require.ErrorIs(t, err, dexerrors.ErrSlippage)

	_, _, err = r.RemoveLiquidity(big.NewInt(0), big.NewInt(0), big.NewInt(0))
	require.ErrorIs(t, err, dexerrors.ErrInvalidAmount)
}

func TestValidateK(t *testing.T) {
	small, large := big.NewInt(10), big.NewInt(11)
	require.NoError(t, ValidateK(small, small, KNonDecreasing))
	require.ErrorIs(t, ValidateK(large, small, KNonDecreasing), dexerrors.ErrInvariantViolation)
	require.ErrorIs(t, ValidateK(small, small, KIncreasing), dexerrors.ErrInvariantViolation)
	require.ErrorIs(t, ValidateK(small, small, KDecreasing), dexerrors.ErrInvariantViolation)
	require.NoError(t, ValidateK(large, small, KDecreasing))
}
