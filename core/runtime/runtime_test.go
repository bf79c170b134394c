package runtime

import (
	"context"
	"errors"
	"math/big"
	"testing"

	"dexcore/config"
	"dexcore/core/clock"
	dexerrors "dexcore/core/errors"
	"dexcore/core/events"
	"dexcore/crypto"
	nativecommon "dexcore/native/common"
	"dexcore/observability/metrics"
	"dexcore/storage"
)

var alice = crypto.ContractAddress("user", "alice")

func testConfig() *config.Config {
	cfg := config.Default()
	cfg.StorageBackend = config.BackendMemory
	cfg.Locked = []config.Locked{{Name: "mex", LockedToken: "LKMEX", LockEpochs: 5, Owner: "owner"}}
	cfg.Farms[0].LockedFactory = "mex"
	return cfg
}

func newTestRuntime(t *testing.T, cfg *config.Config, db storage.Database, c clock.Clock, opts ...Option) *Runtime {
	t.Helper()
	opts = append(opts, WithClock(c))
	rt, err := New(context.Background(), cfg, db, opts...)
	if err != nil {
		t.Fatalf("new runtime: %v", err)
	}
	return rt
}

func fund(t *testing.T, rt *Runtime) {
	t.Helper()
	_, err := rt.Execute(context.Background(), "bank.mint", func(_ context.Context, s *Session) error {
		for _, token := range []string{"WEGLD", "USDC"} {
			if err := s.Bank().Mint(alice, token, big.NewInt(1_000_000_000)); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		t.Fatalf("fund: %v", err)
	}
}

func balanceOf(t *testing.T, rt *Runtime, token string, nonce uint64) int64 {
	t.Helper()
	var out int64
	err := rt.View(context.Background(), "bank.balance", func(_ context.Context, s *Session) error {
		bal, err := s.Bank().Balance(alice, token, nonce)
		if err != nil {
			return err
		}
		out = bal.Int64()
		return nil
	})
	if err != nil {
		t.Fatalf("balance: %v", err)
	}
	return out
}

func TestInvocationCommitsAndPublishes(t *testing.T) {
	var receipts []Receipt
	rt := newTestRuntime(t, testConfig(), storage.NewMemDB(), clock.Static{Round: 5},
		WithSubscriber(func(r Receipt) { receipts = append(receipts, r) }))
	fund(t, rt)

	receipt, err := rt.Execute(context.Background(), "pair.addLiquidity", func(_ context.Context, s *Session) error {
		p, err := s.Pair("WEGLD-USDC")
		if err != nil {
			return err
		}
		_, err = p.AddLiquidityWithPayments(alice, big.NewInt(1_000_000), big.NewInt(1_000_000), big.NewInt(1), big.NewInt(1))
		return err
	})
	if err != nil {
		t.Fatalf("add liquidity: %v", err)
	}
	if receipt.ID == "" || receipt.Block.Round != 5 {
		t.Fatalf("unexpected receipt %+v", receipt)
	}
	if len(receipt.Events) != 1 || receipt.Events[0].EventType() != events.TypeLiquidityAdded {
		t.Fatalf("unexpected events %v", receipt.Events)
	}
	if last := receipts[len(receipts)-1]; last.ID != receipt.ID {
		t.Fatalf("subscriber did not receive the committed receipt")
	}
	if got := balanceOf(t, rt, "EGLDUSDC", 0); got != 999_000 {
		t.Fatalf("expected 999000 LP tokens, got %d", got)
	}
}

func TestFailedInvocationLeavesNoTrace(t *testing.T) {
	var published int
	rt := newTestRuntime(t, testConfig(), storage.NewMemDB(), clock.Static{Round: 5},
		WithSubscriber(func(Receipt) { published++ }))
	fund(t, rt)
	before := published

	_, err := rt.Execute(context.Background(), "pair.addLiquidity", func(_ context.Context, s *Session) error {
		p, err := s.Pair("WEGLD-USDC")
		if err != nil {
			return err
		}
		if _, err := p.AddLiquidityWithPayments(alice, big.NewInt(1_000_000), big.NewInt(1_000_000), big.NewInt(1), big.NewInt(1)); err != nil {
			return err
		}
		_, err = p.SwapFixedInput(context.Background(), alice, "WEGLD", big.NewInt(1_000), "USDC", big.NewInt(1_000))
		return err
	})
	if !errors.Is(err, dexerrors.ErrSlippage) {
		t.Fatalf("expected slippage, got %v", err)
	}
	if published != before {
		t.Fatalf("failed invocations must not publish events")
	}
	if got := balanceOf(t, rt, "EGLDUSDC", 0); got != 0 {
		t.Fatalf("liquidity of a failed invocation leaked: %d", got)
	}
	if got := balanceOf(t, rt, "WEGLD", 0); got != 1_000_000_000 {
		t.Fatalf("payments of a failed invocation leaked: %d", got)
	}
}

type countingObserver struct {
	metrics.Observer
	liquidity []string
	reserves  []int64
}

func (c *countingObserver) ObserveLiquidity(_, operation string) {
	c.liquidity = append(c.liquidity, operation)
}

func (c *countingObserver) SetReserves(_, _ string, first *big.Int, _ string, _ *big.Int) {
	c.reserves = append(c.reserves, first.Int64())
}

func TestEngineMetricsRecordedAfterCommit(t *testing.T) {
	obs := &countingObserver{Observer: metrics.Discard()}
	rt := newTestRuntime(t, testConfig(), storage.NewMemDB(), clock.Static{Round: 5}, WithObserver(obs))
	fund(t, rt)
	baseline := len(obs.reserves)

	addLiquidity := func(fail error) func(context.Context, *Session) error {
		return func(_ context.Context, s *Session) error {
			p, err := s.Pair("WEGLD-USDC")
			if err != nil {
				return err
			}
			if _, err := p.AddLiquidityWithPayments(alice, big.NewInt(1_000_000), big.NewInt(1_000_000), big.NewInt(1), big.NewInt(1)); err != nil {
				return err
			}
			return fail
		}
	}

	abort := errors.New("abort")
	if _, err := rt.Execute(context.Background(), "pair.addLiquidity", addLiquidity(abort)); !errors.Is(err, abort) {
		t.Fatalf("expected abort, got %v", err)
	}
	if err := rt.View(context.Background(), "pair.addLiquidity", addLiquidity(nil)); err != nil {
		t.Fatalf("view: %v", err)
	}
	if len(obs.liquidity) != 0 || len(obs.reserves) != baseline {
		t.Fatalf("uncommitted invocations recorded metrics: liquidity %v reserves %v", obs.liquidity, obs.reserves[baseline:])
	}

	if _, err := rt.Execute(context.Background(), "pair.addLiquidity", addLiquidity(nil)); err != nil {
		t.Fatalf("add liquidity: %v", err)
	}
	if len(obs.liquidity) != 1 || obs.liquidity[0] != "add" {
		t.Fatalf("expected one committed add, got %v", obs.liquidity)
	}
	if n := len(obs.reserves); n == baseline || obs.reserves[n-1] != 1_000_000 {
		t.Fatalf("committed reserves not recorded: %v", obs.reserves[baseline:])
	}
}

func TestViewDiscardsWrites(t *testing.T) {
	rt := newTestRuntime(t, testConfig(), storage.NewMemDB(), clock.Static{})
	err := rt.View(context.Background(), "bank.mint", func(_ context.Context, s *Session) error {
		return s.Bank().Mint(alice, "MEX", big.NewInt(5))
	})
	if err != nil {
		t.Fatalf("view: %v", err)
	}
	if got := balanceOf(t, rt, "MEX", 0); got != 0 {
		t.Fatalf("view writes must be discarded, got %d", got)
	}
	err = rt.View(context.Background(), "pair.lookup", func(_ context.Context, s *Session) error {
		_, err := s.Pair("nope")
		return err
	})
	if !errors.Is(err, dexerrors.ErrNotConfigured) {
		t.Fatalf("expected unknown pair error, got %v", err)
	}
}

func TestPausedModuleRejected(t *testing.T) {
	cfg := testConfig()
	cfg.PausedModules = []string{"pair"}
	rt := newTestRuntime(t, cfg, storage.NewMemDB(), clock.Static{})
	fund(t, rt)
	_, err := rt.Execute(context.Background(), "pair.addLiquidity", func(_ context.Context, s *Session) error {
		p, err := s.Pair("WEGLD-USDC")
		if err != nil {
			return err
		}
		_, err = p.AddLiquidityWithPayments(alice, big.NewInt(10_000), big.NewInt(10_000), big.NewInt(1), big.NewInt(1))
		return err
	})
	if !errors.Is(err, nativecommon.ErrModulePaused) {
		t.Fatalf("expected paused module, got %v", err)
	}
}

func TestLockedFarmRewardsEndToEnd(t *testing.T) {
	db := storage.NewMemDB()
	manual := clock.NewManual(clock.BlockInfo{Round: 1})
	rt := newTestRuntime(t, testConfig(), db, manual)
	fund(t, rt)
	ctx := context.Background()

	var position uint64
	_, err := rt.Execute(ctx, "farm.enter", func(ctx context.Context, s *Session) error {
		p, err := s.Pair("WEGLD-USDC")
		if err != nil {
			return err
		}
		res, err := p.AddLiquidityWithPayments(alice, big.NewInt(1_000_000), big.NewInt(1_000_000), big.NewInt(1), big.NewInt(1))
		if err != nil {
			return err
		}
		f, err := s.Farm("EGLDUSDC-farm")
		if err != nil {
			return err
		}
		entered, err := f.Enter(ctx, alice, res.Liquidity, nil)
		if err != nil {
			return err
		}
		position = entered.Nonce
		return nil
	})
	if err != nil {
		t.Fatalf("enter: %v", err)
	}

	manual.Set(clock.BlockInfo{Round: 2, Epoch: 4, Nonce: 10})
	var lockedNonce uint64
	receipt, err := rt.Execute(ctx, "farm.claim", func(ctx context.Context, s *Session) error {
		f, err := s.Farm("EGLDUSDC-farm")
		if err != nil {
			return err
		}
		res, err := f.Claim(ctx, alice, position, big.NewInt(999_000))
		if err != nil {
			return err
		}
		lockedNonce = res.LockedNonce
		return nil
	})
	if err != nil {
		t.Fatalf("claim: %v", err)
	}
	types := make([]string, 0, len(receipt.Events))
	for _, evt := range receipt.Events {
		types = append(types, evt.EventType())
	}
	if len(types) != 2 || types[0] != events.TypeLockedRewardCreated || types[1] != events.TypeRewardsClaimed {
		t.Fatalf("unexpected claim events %v", types)
	}
	if got := balanceOf(t, rt, "LKMEX", lockedNonce); got != 9_999 {
		t.Fatalf("expected 9999 locked reward units, got %d", got)
	}

	// Restarting on the same database keeps state and re-applies wiring.
	again := newTestRuntime(t, testConfig(), db, manual)
	if got := balanceOf(t, again, "LKMEX", lockedNonce); got != 9_999 {
		t.Fatalf("state lost across restart: %d", got)
	}
}
