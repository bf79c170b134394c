package config

import (
	"os"
	"path/filepath"
	"strings"

	"github.com/BurntSushi/toml"
)

// Storage backends accepted by StorageBackend.
const (
	BackendLevelDB = "leveldb"
	BackendBolt    = "bolt"
	BackendMemory  = "memory"
)

type Config struct {
	DataDir        string `toml:"DataDir"`
	StorageBackend string `toml:"StorageBackend"`
	Environment    string `toml:"Environment"`
	LogLevel       string `toml:"LogLevel"`
	LogFile        string `toml:"LogFile"`
	LogMaxSizeMB   int    `toml:"LogMaxSizeMB"`
	LogMaxBackups  int    `toml:"LogMaxBackups"`

	// PausedModules lists modules ("pair", "farm") whose operations are
	// rejected.
	PausedModules []string `toml:"PausedModules"`

	Telemetry Telemetry `toml:"Telemetry"`
	Pairs     []Pair    `toml:"Pairs"`
	Farms     []Farm    `toml:"Farms"`
	Locked    []Locked  `toml:"Locked"`
}

// Load loads the configuration from the given path, writing a default file
// when none exists.
func Load(path string) (*Config, error) {
	cfg := &Config{}
	if _, err := os.Stat(path); os.IsNotExist(err) {
		return createDefault(path)
	}

	if _, err := toml.DecodeFile(path, cfg); err != nil {
		return nil, err
	}
	cfg.applyDefaults()
	return cfg, nil
}

func (cfg *Config) applyDefaults() {
	if strings.TrimSpace(cfg.DataDir) == "" {
		cfg.DataDir = "./dex-data"
	}
	if strings.TrimSpace(cfg.StorageBackend) == "" {
		cfg.StorageBackend = BackendLevelDB
	}
	cfg.StorageBackend = strings.ToLower(strings.TrimSpace(cfg.StorageBackend))
	if strings.TrimSpace(cfg.Environment) == "" {
		cfg.Environment = "local"
	}
	if strings.TrimSpace(cfg.LogLevel) == "" {
		cfg.LogLevel = "info"
	}
	if cfg.Telemetry.ServiceName == "" {
		cfg.Telemetry.ServiceName = "dexcore"
	}
	if cfg.PausedModules == nil {
		cfg.PausedModules = []string{}
	}
}

// Default returns the configuration written by Load for a missing file: a
// WEGLD-USDC pair, an LP farm on it and a MEX staking farm.
func Default() *Config {
	cfg := &Config{
		Pairs: []Pair{{
			Name:              "WEGLD-USDC",
			FirstToken:        "WEGLD",
			SecondToken:       "USDC",
			LPToken:           "EGLDUSDC",
			TotalFeePercent:   300,
			SpecialFeePercent: 50,
			Owner:             "owner",
			InitialState:      "active",
		}},
		Farms: []Farm{
			{
				Name:                 "EGLDUSDC-farm",
				FarmingToken:         "EGLDUSDC",
				FarmToken:            "EGLDUSDCFL",
				RewardToken:          "MEX",
				Owner:                "owner",
				InitialState:         "active",
				PerBlockRewardAmount: "1000",
				MinimumFarmingEpochs: 3,
				PenaltyBps:           1000,
				ProduceRewards:       true,
			},
			{
				Name:                 "MEX-staking",
				Variant:              "staking",
				FarmingToken:         "MEX",
				FarmToken:            "MEXSTAKE",
				RewardToken:          "MEX",
				UnbondToken:          "MEXUNBOND",
				Owner:                "owner",
				InitialState:         "active",
				PerBlockRewardAmount: "100",
				MinUnbondEpochs:      10,
				ProduceRewards:       true,
			},
		},
	}
	cfg.applyDefaults()
	return cfg
}

// createDefault creates and saves a default configuration file.
func createDefault(path string) (*Config, error) {
	cfg := Default()
	if err := persist(path, cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

func persist(path string, cfg *Config) error {
	dir := filepath.Dir(path)
	if dir != "." && dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return err
		}
	}
	f, err := os.OpenFile(path, os.O_WRONLY|os.O_TRUNC|os.O_CREATE, 0o644)
	if err != nil {
		return err
	}
	defer f.Close()

	return toml.NewEncoder(f).Encode(cfg)
}
