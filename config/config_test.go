package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"dexcore/crypto"
)

func TestLoadCreatesDefaultFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "config.toml")
	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if _, err := os.Stat(path); err != nil {
		t.Fatalf("expected default config persisted: %v", err)
	}
	if cfg.StorageBackend != BackendLevelDB || cfg.Environment != "local" {
		t.Fatalf("unexpected defaults %+v", cfg)
	}
	if len(cfg.Pairs) != 1 || len(cfg.Farms) != 2 {
		t.Fatalf("expected default pair and farms, got %d pairs %d farms", len(cfg.Pairs), len(cfg.Farms))
	}
	if err := ValidateConfig(cfg); err != nil {
		t.Fatalf("default config must validate: %v", err)
	}

	again, err := Load(path)
	if err != nil {
		t.Fatalf("reload: %v", err)
	}
	if again.Farms[1].Variant != "staking" || again.Farms[0].PerBlockRewardAmount != "1000" {
		t.Fatalf("reloaded config lost farm settings: %+v", again.Farms)
	}
}

func TestLoadParsesPairsAndFarms(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.toml")
	contents := `DataDir = "./data"
StorageBackend = "Bolt"
PausedModules = ["farm"]

[Telemetry]
Endpoint = "localhost:4318"
Traces = true
SampleRatio = 0.5

[[Pairs]]
Name = "WEGLD-USDC"
FirstToken = "WEGLD"
SecondToken = "USDC"
LPToken = "EGLDUSDC"
TotalFeePercent = 300
SpecialFeePercent = 50
Owner = "owner"
Bootstrap = "min"

[[Pairs.FeeDestinations]]
Address = "treasury"
Token = "MEX"

[[Pairs.TrustedPairs]]
FirstToken = "WEGLD"
SecondToken = "MEX"
Pair = "WEGLD-MEX"

[[Pairs]]
Name = "WEGLD-MEX"
FirstToken = "WEGLD"
SecondToken = "MEX"
LPToken = "EGLDMEX"
TotalFeePercent = 300
Owner = "owner"
Whitelist = ["WEGLD-USDC"]

[[Locked]]
Name = "mex"
LockedToken = "LKMEX"
LockEpochs = 30
Owner = "owner"

[[Farms]]
Name = "EGLDUSDC-farm"
FarmingToken = "EGLDUSDC"
FarmToken = "EGLDUSDCFL"
RewardToken = "MEX"
Owner = "owner"
PerBlockRewardAmount = "1_000"
PenaltyBps = 1000
LockedFactory = "mex"
`
	if err := os.WriteFile(path, []byte(contents), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}
	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.StorageBackend != BackendBolt {
		t.Fatalf("expected backend normalised to bolt, got %q", cfg.StorageBackend)
	}
	if len(cfg.PausedModules) != 1 || cfg.PausedModules[0] != "farm" {
		t.Fatalf("unexpected paused modules %v", cfg.PausedModules)
	}
	if cfg.Telemetry.ServiceName != "dexcore" || cfg.Telemetry.SampleRatio != 0.5 {
		t.Fatalf("unexpected telemetry %+v", cfg.Telemetry)
	}
	if len(cfg.Pairs) != 2 || len(cfg.Pairs[0].FeeDestinations) != 1 || cfg.Pairs[0].TrustedPairs[0].Pair != "WEGLD-MEX" {
		t.Fatalf("unexpected pairs %+v", cfg.Pairs)
	}
	if cfg.Farms[0].LockedFactory != "mex" || cfg.Locked[0].LockEpochs != 30 {
		t.Fatalf("unexpected farm wiring %+v %+v", cfg.Farms, cfg.Locked)
	}
	if err := ValidateConfig(cfg); err != nil {
		t.Fatalf("validate: %v", err)
	}
	amount, err := ParseAmount(cfg.Farms[0].PerBlockRewardAmount)
	if err != nil || amount.Int64() != 1000 {
		t.Fatalf("parse per block reward: %v %v", amount, err)
	}
}

func TestValidateConfigRejects(t *testing.T) {
	cases := []struct {
		name   string
		mutate func(*Config)
		want   string
	}{
		{"backend", func(c *Config) { c.StorageBackend = "postgres" }, "storage backend"},
		{"total fee", func(c *Config) { c.Pairs[0].TotalFeePercent = 100_000 }, "total fee"},
		{"special fee", func(c *Config) { c.Pairs[0].SpecialFeePercent = 301 }, "special fee"},
		{"duplicate pair", func(c *Config) { c.Pairs = append(c.Pairs, c.Pairs[0]) }, "duplicate pair"},
		{"unknown trusted pair", func(c *Config) {
			c.Pairs[0].TrustedPairs = []TrustedPair{{FirstToken: "WEGLD", SecondToken: "MEX", Pair: "nope"}}
		}, "trusted pair"},
		{"fee destination token", func(c *Config) {
			c.Pairs[0].FeeDestinations = []FeeDestination{{Address: "treasury"}}
		}, "needs a token"},
		{"penalty", func(c *Config) { c.Farms[0].PenaltyBps = 10_001 }, "penalty"},
		{"dsc", func(c *Config) { c.Farms[0].DivisionSafetyConstant = "0" }, "division safety constant"},
		{"reward amount", func(c *Config) { c.Farms[0].PerBlockRewardAmount = "-5" }, "per block reward"},
		{"missing factory", func(c *Config) { c.Farms[0].LockedFactory = "lk" }, "locked factory"},
		{"owner", func(c *Config) { c.Farms[1].Owner = "" }, "owner"},
		{"sample ratio", func(c *Config) { c.Telemetry.SampleRatio = 2 }, "sample ratio"},
		{"shared farm token", func(c *Config) { c.Farms[1].FarmToken = "egldusdcfl" }, "already issued by farm EGLDUSDC-farm"},
		{"farm token is lp token", func(c *Config) { c.Farms[0].FarmToken = "EGLDUSDC" }, "already issued by pair WEGLD-USDC"},
		{"unbond token reused", func(c *Config) { c.Farms[1].UnbondToken = "MEXSTAKE" }, "already issued"},
		{"locked token reused", func(c *Config) {
			c.Locked = []Locked{{Name: "mex", LockedToken: "EGLDUSDC", Owner: "owner"}}
		}, "already issued by pair WEGLD-USDC"},
		{"missing farm token", func(c *Config) { c.Farms[0].FarmToken = " " }, "issued token required"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			cfg := Default()
			tc.mutate(cfg)
			err := ValidateConfig(cfg)
			if err == nil || !strings.Contains(err.Error(), tc.want) {
				t.Fatalf("expected error containing %q, got %v", tc.want, err)
			}
		})
	}
}

func TestResolveAccount(t *testing.T) {
	named, err := ResolveAccount(" alice ")
	if err != nil {
		t.Fatalf("resolve name: %v", err)
	}
	if named != crypto.ContractAddress("user", "alice") {
		t.Fatalf("named accounts must map onto user addresses")
	}
	decoded, err := ResolveAccount(named.String())
	if err != nil || decoded != named {
		t.Fatalf("bech32 round trip failed: %v", err)
	}
	if _, err := ResolveAccount(""); err == nil {
		t.Fatalf("expected empty account to fail")
	}
	if _, err := ParseAmount("12x"); err == nil {
		t.Fatalf("expected malformed amount to fail")
	}
}
