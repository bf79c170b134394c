package main

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"

	"gopkg.in/yaml.v3"

	"dexcore/core/clock"
	dexerrors "dexcore/core/errors"
	"dexcore/core/runtime"
)

// script is a YAML scenario: a list of commands run in order against one
// runtime, each optionally advancing the block first.
type script struct {
	Name  string `yaml:"name"`
	Steps []step `yaml:"steps"`
}

type step struct {
	Command string    `yaml:"command"`
	Args    []string  `yaml:"args"`
	Block   *blockRef `yaml:"block,omitempty"`
	Advance *advance  `yaml:"advance,omitempty"`
	// ExpectError names the error class the step must fail with, e.g.
	// "slippage" or "unbond_too_early".
	ExpectError string `yaml:"expectError,omitempty"`
}

// advance moves the clock relative to the previous step.
type advance struct {
	Blocks          uint64 `yaml:"blocks"`
	SecondsPerBlock uint64 `yaml:"secondsPerBlock"`
	Epochs          uint64 `yaml:"epochs"`
}

type blockRef struct {
	Round     uint64 `yaml:"round"`
	Epoch     uint64 `yaml:"epoch"`
	Nonce     uint64 `yaml:"nonce"`
	Timestamp uint64 `yaml:"timestamp"`
}

func loadScript(path string) (*script, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var s script
	if err := yaml.Unmarshal(data, &s); err != nil {
		return nil, fmt.Errorf("parse %s: %w", path, err)
	}
	if len(s.Steps) == 0 {
		return nil, fmt.Errorf("script %s has no steps", path)
	}
	return &s, nil
}

func runScript(ctx context.Context, rt *runtime.Runtime, manual *clock.Manual, path string, stdout io.Writer, logger *slog.Logger) error {
	s, err := loadScript(path)
	if err != nil {
		return err
	}
	for i, st := range s.Steps {
		if st.Block != nil {
			manual.Set(clock.BlockInfo{Round: st.Block.Round, Epoch: st.Block.Epoch, Nonce: st.Block.Nonce, Timestamp: st.Block.Timestamp})
		}
		if st.Advance != nil {
			manual.AdvanceBlocks(st.Advance.Blocks, st.Advance.SecondsPerBlock)
			manual.AdvanceEpochs(st.Advance.Epochs)
		}
		name := strings.ToLower(strings.TrimSpace(st.Command))
		result, err := dispatch(ctx, rt, name, st.Args)
		if want := strings.TrimSpace(st.ExpectError); want != "" {
			if err == nil {
				return fmt.Errorf("step %d (%s): expected %s error, got success", i+1, name, want)
			}
			if got := dexerrors.Class(err); got != want {
				return fmt.Errorf("step %d (%s): expected %s error, got %s: %w", i+1, name, want, got, err)
			}
			logger.Debug("step failed as expected", "script", s.Name, "step", i+1, "error", err)
			continue
		}
		if err != nil {
			return fmt.Errorf("step %d (%s): %w", i+1, name, err)
		}
		if err := printResult(stdout, result); err != nil {
			return err
		}
	}
	logger.Info("script complete", "script", s.Name, "steps", len(s.Steps))
	return nil
}
