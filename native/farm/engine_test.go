package farm

import (
	"context"
	"math/big"
	"math/rand"
	"testing"

	"github.com/stretchr/testify/require"

	"dexcore/core/clock"
	dexerrors "dexcore/core/errors"
	"dexcore/core/events"
	"dexcore/core/proxy"
	"dexcore/core/state"
	"dexcore/crypto"
	"dexcore/native/bank"
	nativecommon "dexcore/native/common"
	"dexcore/native/locked"
	"dexcore/native/router"
	"dexcore/storage"
)

var (
	owner = crypto.ContractAddress("user", "owner")
	alice = crypto.ContractAddress("user", "alice")
	bob   = crypto.ContractAddress("user", "bob")
)

type testFarm struct {
	engine   *Engine
	ledger   *bank.Ledger
	mgr      *state.Manager
	db       storage.Database
	recorder *events.Recorder
}

func lpFarmParams() Params {
	return Params{
		Name:                 "EGLDUSDC-farm",
		FarmingToken:         "EGLDUSDC",
		FarmToken:            "EGLDUSDCFL",
		RewardToken:          "MEX",
		Owner:                owner,
		InitialState:         nativecommon.StateActive,
		PerBlockRewardAmount: big.NewInt(1_000),
		MinimumFarmingEpochs: 3,
		PenaltyBps:           DefaultPenaltyBps,
		ProduceRewards:       true,
	}
}

func stakingParams() Params {
	return Params{
		Name:                 "MEX-staking",
		Variant:              VariantStaking,
		FarmingToken:         "MEX",
		FarmToken:            "MEXSTAKE",
		RewardToken:          "MEX",
		UnbondToken:          "MEXUNBOND",
		Owner:                owner,
		InitialState:         nativecommon.StateActive,
		PerBlockRewardAmount: big.NewInt(1_000),
		MinUnbondEpochs:      10,
		ProduceRewards:       true,
	}
}

func newTestFarm(t *testing.T, params Params) *testFarm {
	t.Helper()
	db := storage.NewMemDB()
	mgr := state.NewManager(db)
	e := NewEngine(params)
	e.SetState(mgr)
	e.SetBlock(clock.BlockInfo{})
	recorder := &events.Recorder{}
	e.SetEmitter(recorder)
	require.NoError(t, e.Initialize())

	ledger := bank.NewLedger(mgr)
	for _, user := range []crypto.Address{owner, alice, bob} {
		require.NoError(t, ledger.Mint(user, params.FarmingToken, big.NewInt(1_000_000_000)))
	}
	return &testFarm{engine: e, ledger: ledger, mgr: mgr, db: db, recorder: recorder}
}

func (f *testFarm) at(block, epoch uint64) *testFarm {
	f.engine.SetBlock(clock.BlockInfo{Nonce: block, Round: block, Epoch: epoch})
	return f
}

func (f *testFarm) balance(t *testing.T, who crypto.Address, token string, nonce uint64) int64 {
	t.Helper()
	bal, err := f.ledger.Balance(who, token, nonce)
	require.NoError(t, err)
	return bal.Int64()
}

func TestScenarioProportionalRewards(t *testing.T) {
	f := newTestFarm(t, lpFarmParams())
	ctx := context.Background()
	first, err := f.at(0, 0).engine.Enter(ctx, alice, big.NewInt(100_000_000), nil)
	require.NoError(t, err)
	second, err := f.engine.Enter(ctx, bob, big.NewInt(50_000_000), nil)
	require.NoError(t, err)

	f.at(10, 0)
	aliceClaim, err := f.engine.Claim(ctx, alice, first.Nonce, big.NewInt(100_000_000))
	require.NoError(t, err)
	bobClaim, err := f.engine.Claim(ctx, bob, second.Nonce, big.NewInt(50_000_000))
	require.NoError(t, err)

	require.InDelta(t, 6_667, aliceClaim.Reward.Int64(), 1)
	require.InDelta(t, 3_333, bobClaim.Reward.Int64(), 1)
	require.LessOrEqual(t, aliceClaim.Reward.Int64()+bobClaim.Reward.Int64(), int64(10_000))
	require.Equal(t, aliceClaim.Reward.Int64(), f.balance(t, alice, "MEX", 0))
	require.Equal(t, bobClaim.Reward.Int64(), f.balance(t, bob, "MEX", 0))

	// Claims reissue the position at the current checkpoint.
	require.Zero(t, f.balance(t, alice, "EGLDUSDCFL", first.Nonce))
	require.Equal(t, int64(100_000_000), f.balance(t, alice, "EGLDUSDCFL", aliceClaim.Nonce))
	rewards, err := f.engine.Rewards()
	require.NoError(t, err)
	require.Zero(t, aliceClaim.Attributes.RewardPerShare.Cmp(rewards.RewardPerShare))
	require.Equal(t, uint64(0), aliceClaim.Attributes.EnteringEpoch)

	again, err := f.engine.Claim(ctx, alice, aliceClaim.Nonce, big.NewInt(100_000_000))
	require.NoError(t, err)
	require.Zero(t, again.Reward.Sign(), "no blocks elapsed since the last claim")
}

func TestScenarioEarlyExitPenalty(t *testing.T) {
	ctx := context.Background()

	early := newTestFarm(t, lpFarmParams())
	pos, err := early.at(0, 0).engine.Enter(ctx, alice, big.NewInt(1_000_000), nil)
	require.NoError(t, err)
	supplyBefore, err := early.ledger.Supply("EGLDUSDC")
	require.NoError(t, err)

	res, err := early.at(10, 2).engine.Exit(ctx, alice, pos.Nonce, big.NewInt(1_000_000))
	require.NoError(t, err)
	require.NotNil(t, res.Penalty)
	require.Equal(t, int64(100_000), res.Penalty.Principal.Int64())
	require.Equal(t, int64(1_000), res.Penalty.Reward.Int64())
	require.Equal(t, int64(900_000), res.FarmingAmount.Int64())
	require.Equal(t, int64(9_000), res.Reward.Int64())
	require.Equal(t, int64(9_000), early.balance(t, alice, "MEX", 0))
	supplyAfter, err := early.ledger.Supply("EGLDUSDC")
	require.NoError(t, err)
	require.Equal(t, int64(100_000), new(big.Int).Sub(supplyBefore, supplyAfter).Int64(), "penalised principal is burned")
	require.Contains(t, early.recorder.Types(), events.TypePenaltyApplied)

	late := newTestFarm(t, lpFarmParams())
	pos, err = late.at(0, 0).engine.Enter(ctx, alice, big.NewInt(1_000_000), nil)
	require.NoError(t, err)
	res, err = late.at(10, 5).engine.Exit(ctx, alice, pos.Nonce, big.NewInt(1_000_000))
	require.NoError(t, err)
	require.Nil(t, res.Penalty)
	require.Equal(t, int64(1_000_000), res.FarmingAmount.Int64())
	require.Equal(t, int64(10_000), res.Reward.Int64())
	require.Equal(t, int64(1_000_000_000), late.balance(t, alice, "EGLDUSDC", 0))

	rewards, err := late.engine.Rewards()
	require.NoError(t, err)
	require.Zero(t, rewards.FarmTokenSupply.Sign())
	require.Zero(t, rewards.RewardReserve.Sign())
}

func TestPartialExitKeepsRemainder(t *testing.T) {
	ctx := context.Background()
	f := newTestFarm(t, lpFarmParams())
	pos, err := f.at(0, 0).engine.Enter(ctx, alice, big.NewInt(1_000_000), nil)
	require.NoError(t, err)

	first, err := f.at(10, 5).engine.Exit(ctx, alice, pos.Nonce, big.NewInt(400_000))
	require.NoError(t, err)
	require.Equal(t, int64(4_000), first.Reward.Int64())
	require.Equal(t, int64(600_000), f.balance(t, alice, "EGLDUSDCFL", pos.Nonce))

	rest, err := f.at(20, 6).engine.Exit(ctx, alice, pos.Nonce, big.NewInt(600_000))
	require.NoError(t, err)
	total := first.Reward.Int64() + rest.Reward.Int64()
	require.LessOrEqual(t, total, int64(20_000))
	require.GreaterOrEqual(t, total, int64(19_998))

	_, err = f.engine.Position(pos.Nonce)
	require.ErrorIs(t, err, dexerrors.ErrPositionNotFound)
	_, err = f.engine.Exit(ctx, alice, pos.Nonce, big.NewInt(1))
	require.ErrorIs(t, err, dexerrors.ErrPositionNotFound)
}

func TestMergeCarriesPendingRewards(t *testing.T) {
	ctx := context.Background()
	f := newTestFarm(t, lpFarmParams())
	old, err := f.at(0, 0).engine.Enter(ctx, alice, big.NewInt(1_000_000), nil)
	require.NoError(t, err)

	merged, err := f.at(10, 1).engine.Enter(ctx, alice, big.NewInt(1_000_000), []proxy.Payment{
		{Token: "EGLDUSDCFL", Nonce: old.Nonce, Amount: big.NewInt(1_000_000)},
	})
	require.NoError(t, err)
	require.Equal(t, int64(2_000_000), merged.Amount.Int64())
	require.Equal(t, uint64(1), merged.Attributes.EnteringEpoch)
	require.Equal(t, "5000000000", merged.Attributes.RewardPerShare.String())
	require.Zero(t, f.balance(t, alice, "EGLDUSDCFL", old.Nonce))

	raw, err := merged.Attributes.Encode()
	require.NoError(t, err)
	pending, err := f.engine.CalculateRewardsForGivenPosition(big.NewInt(2_000_000), raw, 10)
	require.NoError(t, err)
	require.Equal(t, int64(10_000), pending.Int64())
	projected, err := f.engine.CalculateRewardsForGivenPosition(big.NewInt(2_000_000), raw, 20)
	require.NoError(t, err)
	require.Equal(t, int64(20_000), projected.Int64())

	rewards, err := f.engine.Rewards()
	require.NoError(t, err)
	require.Equal(t, uint64(10), rewards.LastRewardBlock, "simulation must not persist")

	_, err = f.engine.Enter(ctx, bob, big.NewInt(10), []proxy.Payment{{Token: "EGLDUSDCFL", Nonce: merged.Nonce, Amount: big.NewInt(1)}})
	require.ErrorIs(t, err, dexerrors.ErrInsufficientBalance)
	_, err = f.engine.CalculateRewardsForGivenPosition(big.NewInt(1), []byte{0x01, 0xc0}, 20)
	require.ErrorIs(t, err, dexerrors.ErrDecoding)
}

func TestStakingCompoundAndUnbond(t *testing.T) {
	ctx := context.Background()
	f := newTestFarm(t, stakingParams())
	pos, err := f.at(0, 0).engine.Enter(ctx, alice, big.NewInt(1_000_000), nil)
	require.NoError(t, err)

	compounded, err := f.at(10, 1).engine.Compound(ctx, alice, pos.Nonce, big.NewInt(1_000_000))
	require.NoError(t, err)
	require.Equal(t, int64(10_000), compounded.Reward.Int64())
	require.Equal(t, int64(1_010_000), compounded.Amount.Int64())
	require.Equal(t, int64(10_000), compounded.Attributes.CompoundedReward.Int64())
	require.Equal(t, int64(1_000_000), compounded.Attributes.InitialFarmingAmount.Int64())
	rewards, err := f.engine.Rewards()
	require.NoError(t, err)
	require.Equal(t, int64(1_010_000), rewards.FarmTokenSupply.Int64())

	exit, err := f.engine.Exit(ctx, alice, compounded.Nonce, big.NewInt(1_010_000))
	require.NoError(t, err)
	require.Nil(t, exit.Penalty)
	require.Equal(t, uint64(11), exit.UnlockEpoch)
	require.Equal(t, int64(1_010_000), f.balance(t, alice, "MEXUNBOND", exit.UnbondNonce))

	_, err = f.at(10, 5).engine.Unbond(alice, exit.UnbondNonce)
	require.ErrorIs(t, err, dexerrors.ErrUnbondTooEarly)

	before := f.balance(t, alice, "MEX", 0)
	released, err := f.at(11, 11).engine.Unbond(alice, exit.UnbondNonce)
	require.NoError(t, err)
	require.Equal(t, int64(1_010_000), released.Int64())
	require.Equal(t, before+1_010_000, f.balance(t, alice, "MEX", 0))
	require.Zero(t, f.balance(t, alice, "MEXUNBOND", exit.UnbondNonce))

	_, err = f.engine.Unbond(alice, exit.UnbondNonce)
	require.ErrorIs(t, err, dexerrors.ErrPositionNotFound)
}

func TestCompoundRequiresFarmingReward(t *testing.T) {
	ctx := context.Background()
	f := newTestFarm(t, lpFarmParams())
	pos, err := f.at(0, 0).engine.Enter(ctx, alice, big.NewInt(1_000), nil)
	require.NoError(t, err)
	_, err = f.at(5, 0).engine.Compound(ctx, alice, pos.Nonce, big.NewInt(1_000))
	require.ErrorIs(t, err, dexerrors.ErrCompoundNotAllowed)
	_, err = f.engine.Unbond(alice, 1)
	require.ErrorIs(t, err, dexerrors.ErrInvalidToken)
}

func TestInactiveFarmStillAllowsExit(t *testing.T) {
	ctx := context.Background()
	f := newTestFarm(t, lpFarmParams())
	pos, err := f.at(0, 0).engine.Enter(ctx, alice, big.NewInt(1_000), nil)
	require.NoError(t, err)

	require.ErrorIs(t, f.engine.SetStatus(alice, nativecommon.StateInactive), dexerrors.ErrUnauthorized)
	require.NoError(t, f.engine.SetStatus(owner, nativecommon.StateInactive))
	_, err = f.engine.Enter(ctx, bob, big.NewInt(1_000), nil)
	require.ErrorIs(t, err, dexerrors.ErrInactive)
	_, err = f.engine.Claim(ctx, alice, pos.Nonce, big.NewInt(1_000))
	require.ErrorIs(t, err, dexerrors.ErrInactive)
	_, err = f.at(3, 4).engine.Exit(ctx, alice, pos.Nonce, big.NewInt(1_000))
	require.NoError(t, err)
}

func TestEmissionControls(t *testing.T) {
	ctx := context.Background()
	f := newTestFarm(t, lpFarmParams())
	pos, err := f.at(0, 0).engine.Enter(ctx, alice, big.NewInt(1_000_000), nil)
	require.NoError(t, err)

	require.NoError(t, f.at(10, 0).engine.SetPerBlockRewardAmount(owner, big.NewInt(500)))
	require.NoError(t, f.at(20, 0).engine.EndProduceRewards(owner))
	require.NoError(t, f.at(30, 0).engine.StartProduceRewards(owner))

	res, err := f.at(40, 9).engine.Exit(ctx, alice, pos.Nonce, big.NewInt(1_000_000))
	require.NoError(t, err)
	// 10 blocks at 1000, 10 at 500, 10 paused, 10 at 500.
	require.Equal(t, int64(20_000), res.Reward.Int64())

	require.ErrorIs(t, f.engine.TopUpRewards(owner, big.NewInt(1)), dexerrors.ErrNotConfigured)
}

func TestFundedFarmPaysFromDeposits(t *testing.T) {
	ctx := context.Background()
	params := lpFarmParams()
	params.FundedRewards = true
	f := newTestFarm(t, params)
	require.NoError(t, f.ledger.Mint(owner, "MEX", big.NewInt(5_000)))
	require.NoError(t, f.engine.TopUpRewards(owner, big.NewInt(5_000)))

	pos, err := f.at(0, 0).engine.Enter(ctx, alice, big.NewInt(1_000_000), nil)
	require.NoError(t, err)
	res, err := f.at(10, 9).engine.Exit(ctx, alice, pos.Nonce, big.NewInt(1_000_000))
	require.NoError(t, err)
	require.Equal(t, int64(5_000), res.Reward.Int64())
	supply, err := f.ledger.Supply("MEX")
	require.NoError(t, err)
	require.Equal(t, int64(5_000), supply.Int64(), "funded rewards are never minted")
}

func TestRewardPerShareNeverDecreases(t *testing.T) {
	ctx := context.Background()
	f := newTestFarm(t, lpFarmParams())
	rng := rand.New(rand.NewSource(7))
	users := []crypto.Address{alice, bob}
	type held struct {
		user   crypto.Address
		nonce  uint64
		amount int64
	}
	var positions []held
	last := big.NewInt(0)
	for block := uint64(1); block <= 150; block++ {
		f.at(block, block/10)
		switch op := rng.Intn(3); {
		case op == 0 || len(positions) == 0:
			user := users[rng.Intn(len(users))]
			amount := int64(rng.Intn(1_000_000) + 1)
			res, err := f.engine.Enter(ctx, user, big.NewInt(amount), nil)
			require.NoError(t, err)
			positions = append(positions, held{user: user, nonce: res.Nonce, amount: amount})
		case op == 1:
			i := rng.Intn(len(positions))
			p := positions[i]
			res, err := f.engine.Claim(ctx, p.user, p.nonce, big.NewInt(p.amount))
			require.NoError(t, err)
			require.GreaterOrEqual(t, res.Reward.Sign(), 0)
			positions[i].nonce = res.Nonce
		default:
			i := rng.Intn(len(positions))
			p := positions[i]
			_, err := f.engine.Exit(ctx, p.user, p.nonce, big.NewInt(p.amount))
			require.NoError(t, err)
			positions = append(positions[:i], positions[i+1:]...)
		}
		rewards, err := f.engine.Rewards()
		require.NoError(t, err)
		require.GreaterOrEqual(t, rewards.RewardPerShare.Cmp(last), 0, "block %d", block)
		last = rewards.RewardPerShare
	}
}

func TestLockedRewardsThroughFactory(t *testing.T) {
	ctx := context.Background()
	params := lpFarmParams()
	factoryParams := locked.Params{Name: "mex", LockedToken: "LKMEX", LockEpochs: 30, Owner: owner}
	params.LockedRewards = true
	params.LockedFactory = factoryParams.Address()
	f := newTestFarm(t, params)

	r := router.New()
	r.Bind(f.db)
	factory := locked.NewFactory(factoryParams)
	factory.SetState(f.mgr)
	factory.SetBlock(clock.BlockInfo{Epoch: 2})
	r.Register(factory.Address(), factory, f.mgr)
	f.engine.SetCaller(r)
	require.NoError(t, factory.AddCreator(owner, f.engine.Address()))

	pos, err := f.at(0, 0).engine.Enter(ctx, alice, big.NewInt(1_000_000), nil)
	require.NoError(t, err)
	claim, err := f.at(10, 2).engine.Claim(ctx, alice, pos.Nonce, big.NewInt(1_000_000))
	require.NoError(t, err)
	require.Equal(t, int64(10_000), claim.Reward.Int64())
	require.NotZero(t, claim.LockedNonce)
	require.Zero(t, f.balance(t, alice, "MEX", 0))
	require.Equal(t, int64(10_000), f.balance(t, alice, "LKMEX", claim.LockedNonce))
	require.Equal(t, int64(10_000), f.balance(t, factory.Address(), "MEX", 0))

	_, err = factory.Unlock(alice, claim.LockedNonce, big.NewInt(10_000))
	require.ErrorIs(t, err, dexerrors.ErrUnbondTooEarly)
	factory.SetBlock(clock.BlockInfo{Epoch: 32})
	token, err := factory.Unlock(alice, claim.LockedNonce, big.NewInt(10_000))
	require.NoError(t, err)
	require.Equal(t, "MEX", token)
	require.Equal(t, int64(10_000), f.balance(t, alice, "MEX", 0))
}

func TestPositionsIssuedByAnotherFarmRejected(t *testing.T) {
	ctx := context.Background()
	f := newTestFarm(t, lpFarmParams())
	_, err := f.at(0, 0).engine.Enter(ctx, alice, big.NewInt(1_000_000), nil)
	require.NoError(t, err)

	cheapParams := lpFarmParams()
	cheapParams.Name = "cheap-farm"
	cheapParams.FarmingToken = "CHEAP"
	cheap := NewEngine(cheapParams)
	cheap.SetState(f.mgr)
	cheap.SetBlock(clock.BlockInfo{})
	require.NoError(t, cheap.Initialize())
	require.NoError(t, f.ledger.Mint(bob, "CHEAP", big.NewInt(1_000_000)))
	foreign, err := cheap.Enter(ctx, bob, big.NewInt(1_000_000), nil)
	require.NoError(t, err)

	before := f.balance(t, bob, "EGLDUSDC", 0)
	_, err = f.at(10, 5).engine.Exit(ctx, bob, foreign.Nonce, big.NewInt(1_000_000))
	require.ErrorIs(t, err, dexerrors.ErrPositionNotFound)
	_, err = f.engine.Claim(ctx, bob, foreign.Nonce, big.NewInt(1_000_000))
	require.ErrorIs(t, err, dexerrors.ErrPositionNotFound)
	_, err = f.engine.Enter(ctx, bob, big.NewInt(1), []proxy.Payment{{Token: "EGLDUSDCFL", Nonce: foreign.Nonce, Amount: big.NewInt(1_000_000)}})
	require.ErrorIs(t, err, dexerrors.ErrPositionNotFound)
	_, err = f.engine.Position(foreign.Nonce)
	require.ErrorIs(t, err, dexerrors.ErrPositionNotFound)
	require.Equal(t, before, f.balance(t, bob, "EGLDUSDC", 0))
	require.Equal(t, int64(1_000_000), f.balance(t, bob, "EGLDUSDCFL", foreign.Nonce))
}

func TestUnbondRejectsForeignUnbondTokens(t *testing.T) {
	f := newTestFarm(t, stakingParams())
	_, err := f.at(0, 0).engine.Enter(context.Background(), alice, big.NewInt(1_000_000), nil)
	require.NoError(t, err)

	attrs, err := UnbondAttributes{UnlockEpoch: 0}.Encode()
	require.NoError(t, err)
	forged, err := f.ledger.CreateInstance(bob, bob, "MEXUNBOND", big.NewInt(1_000_000), attrs)
	require.NoError(t, err)
	_, err = f.at(1, 20).engine.Unbond(bob, forged)
	require.ErrorIs(t, err, dexerrors.ErrPositionNotFound)
	require.Equal(t, int64(1_000_000), f.balance(t, f.engine.Address(), "MEX", 0))
}
