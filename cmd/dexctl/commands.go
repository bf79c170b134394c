package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"math/big"
	"sort"
	"strconv"
	"strings"

	"dexcore/config"
	"dexcore/core/events"
	"dexcore/core/proxy"
	"dexcore/core/runtime"
	"dexcore/crypto"
	nativecommon "dexcore/native/common"
	"dexcore/native/farm"
	"dexcore/native/pair"
)

type command struct {
	usage   string
	help    string
	minArgs int
	run     func(ctx context.Context, rt *runtime.Runtime, args []string) (interface{}, error)
}

// outcome is printed for state-changing commands.
type outcome struct {
	Invocation string        `json:"invocation"`
	Result     interface{}   `json:"result"`
	Events     []eventOutput `json:"events,omitempty"`
}

type eventOutput struct {
	Type       string            `json:"type"`
	Attributes map[string]string `json:"attributes"`
}

var commands = map[string]command{
	"init": {
		help: "Initialise contracts and list them",
		run: func(_ context.Context, rt *runtime.Runtime, _ []string) (interface{}, error) {
			return map[string][]string{"pairs": rt.Pairs(), "farms": rt.Farms()}, nil
		},
	},
	"mint": {
		usage: "<account> <token> <amount>", help: "Mint fungible tokens", minArgs: 3,
		run: func(ctx context.Context, rt *runtime.Runtime, args []string) (interface{}, error) {
			who, amount, err := accountAndAmount(args[0], args[2])
			if err != nil {
				return nil, err
			}
			return execute(ctx, rt, "bank.mint", func(_ context.Context, s *runtime.Session) (interface{}, error) {
				return amount, s.Bank().Mint(who, args[1], amount)
			})
		},
	},
	"balance": {
		usage: "<account> <token> [nonce]", help: "Show a token balance", minArgs: 2,
		run: func(ctx context.Context, rt *runtime.Runtime, args []string) (interface{}, error) {
			who, err := config.ResolveAccount(args[0])
			if err != nil {
				return nil, err
			}
			var nonce uint64
			if len(args) > 2 {
				if nonce, err = parseNonce(args[2]); err != nil {
					return nil, err
				}
			}
			return view(ctx, rt, "bank.balance", func(_ context.Context, s *runtime.Session) (interface{}, error) {
				return s.Bank().Balance(who, args[1], nonce)
			})
		},
	},
	"add-liquidity": {
		usage: "<pair> <account> <first> <second> [minFirst] [minSecond]", help: "Deposit both tokens", minArgs: 4,
		run: func(ctx context.Context, rt *runtime.Runtime, args []string) (interface{}, error) {
			who, err := config.ResolveAccount(args[1])
			if err != nil {
				return nil, err
			}
			amounts, err := amountsFrom(args[2:], 4)
			if err != nil {
				return nil, err
			}
			return withPair(ctx, rt, args[0], "pair.addLiquidity", func(_ context.Context, p *pair.Engine) (interface{}, error) {
				return p.AddLiquidityWithPayments(who, amounts[0], amounts[1], amounts[2], amounts[3])
			})
		},
	},
	"remove-liquidity": {
		usage: "<pair> <account> <liquidity> [minFirst] [minSecond]", help: "Burn LP tokens", minArgs: 3,
		run: func(ctx context.Context, rt *runtime.Runtime, args []string) (interface{}, error) {
			who, err := config.ResolveAccount(args[1])
			if err != nil {
				return nil, err
			}
			amounts, err := amountsFrom(args[2:], 3)
			if err != nil {
				return nil, err
			}
			return withPair(ctx, rt, args[0], "pair.removeLiquidity", func(_ context.Context, p *pair.Engine) (interface{}, error) {
				return p.RemoveLiquidity(who, amounts[0], amounts[1], amounts[2])
			})
		},
	},
	"swap-in": {
		usage: "<pair> <account> <tokenIn> <amountIn> <tokenOut> [minOut]", help: "Swap a fixed input", minArgs: 5,
		run: func(ctx context.Context, rt *runtime.Runtime, args []string) (interface{}, error) {
			who, err := config.ResolveAccount(args[1])
			if err != nil {
				return nil, err
			}
			amounts, err := amountsFrom([]string{args[3], optional(args, 5)}, 2)
			if err != nil {
				return nil, err
			}
			return withPair(ctx, rt, args[0], "pair.swapFixedInput", func(ctx context.Context, p *pair.Engine) (interface{}, error) {
				return p.SwapFixedInput(ctx, who, args[2], amounts[0], args[4], amounts[1])
			})
		},
	},
	"swap-out": {
		usage: "<pair> <account> <tokenIn> <maxIn> <tokenOut> <amountOut>", help: "Swap for a fixed output", minArgs: 6,
		run: func(ctx context.Context, rt *runtime.Runtime, args []string) (interface{}, error) {
			who, err := config.ResolveAccount(args[1])
			if err != nil {
				return nil, err
			}
			amounts, err := amountsFrom([]string{args[3], args[5]}, 2)
			if err != nil {
				return nil, err
			}
			return withPair(ctx, rt, args[0], "pair.swapFixedOutput", func(ctx context.Context, p *pair.Engine) (interface{}, error) {
				return p.SwapFixedOutput(ctx, who, args[2], amounts[0], args[4], amounts[1])
			})
		},
	},
	"quote": {
		usage: "<pair> <tokenIn> <amountIn>", help: "Amount out for a fixed input", minArgs: 3,
		run: func(ctx context.Context, rt *runtime.Runtime, args []string) (interface{}, error) {
			amount, err := config.ParseAmount(args[2])
			if err != nil {
				return nil, err
			}
			return pairView(ctx, rt, args[0], func(p *pair.Engine) (interface{}, error) {
				return p.GetAmountOut(args[1], amount)
			})
		},
	},
	"reserves": {
		usage: "<pair>", help: "Show pair reserves", minArgs: 1,
		run: func(ctx context.Context, rt *runtime.Runtime, args []string) (interface{}, error) {
			return pairView(ctx, rt, args[0], func(p *pair.Engine) (interface{}, error) {
				return p.GetReserves()
			})
		},
	},
	"safe-price": {
		usage: "<pair> <startRound> <endRound> <tokenIn> <amount>", help: "Time weighted price over a round window", minArgs: 5,
		run: func(ctx context.Context, rt *runtime.Runtime, args []string) (interface{}, error) {
			start, err := parseNonce(args[1])
			if err != nil {
				return nil, err
			}
			end, err := parseNonce(args[2])
			if err != nil {
				return nil, err
			}
			amount, err := config.ParseAmount(args[4])
			if err != nil {
				return nil, err
			}
			return pairView(ctx, rt, args[0], func(p *pair.Engine) (interface{}, error) {
				return p.GetSafePrice(start, end, args[3], amount)
			})
		},
	},
	"pair-status": {
		usage: "<pair> <owner> <inactive|active|partial_active>", help: "Switch the pair state", minArgs: 3,
		run: func(ctx context.Context, rt *runtime.Runtime, args []string) (interface{}, error) {
			who, err := config.ResolveAccount(args[1])
			if err != nil {
				return nil, err
			}
			status, err := nativecommon.ParseContractState(args[2])
			if err != nil {
				return nil, err
			}
			return withPair(ctx, rt, args[0], "pair.setStatus", func(_ context.Context, p *pair.Engine) (interface{}, error) {
				return status.String(), p.SetStatus(who, status)
			})
		},
	},
	"farm-enter": {
		usage: "<farm> <account> <amount> [nonce:amount...]", help: "Enter a farm, merging positions", minArgs: 3,
		run: func(ctx context.Context, rt *runtime.Runtime, args []string) (interface{}, error) {
			who, amount, err := accountAndAmount(args[1], args[2])
			if err != nil {
				return nil, err
			}
			var merge []proxy.Payment
			for _, raw := range args[3:] {
				nonceStr, amountStr, ok := strings.Cut(raw, ":")
				if !ok {
					return nil, fmt.Errorf("merge position %q must be nonce:amount", raw)
				}
				nonce, err := parseNonce(nonceStr)
				if err != nil {
					return nil, err
				}
				units, err := config.ParseAmount(amountStr)
				if err != nil {
					return nil, err
				}
				merge = append(merge, proxy.Payment{Nonce: nonce, Amount: units})
			}
			return withFarm(ctx, rt, args[0], "farm.enter", func(ctx context.Context, f *farm.Engine) (interface{}, error) {
				for i := range merge {
					merge[i].Token = f.Params().FarmToken
				}
				return f.Enter(ctx, who, amount, merge)
			})
		},
	},
	"farm-claim":    positionCommand("farm.claim", "Claim rewards of a position", (*farm.Engine).Claim),
	"farm-compound": positionCommand("farm.compound", "Compound rewards into a position", (*farm.Engine).Compound),
	"farm-exit": {
		usage: "<farm> <account> <nonce> <amount>", help: "Exit a position", minArgs: 4,
		run: func(ctx context.Context, rt *runtime.Runtime, args []string) (interface{}, error) {
			who, nonce, amount, err := positionArgs(args)
			if err != nil {
				return nil, err
			}
			return withFarm(ctx, rt, args[0], "farm.exit", func(ctx context.Context, f *farm.Engine) (interface{}, error) {
				return f.Exit(ctx, who, nonce, amount)
			})
		},
	},
	"unbond": {
		usage: "<farm> <account> <nonce>", help: "Redeem an unbond token", minArgs: 3,
		run: func(ctx context.Context, rt *runtime.Runtime, args []string) (interface{}, error) {
			who, err := config.ResolveAccount(args[1])
			if err != nil {
				return nil, err
			}
			nonce, err := parseNonce(args[2])
			if err != nil {
				return nil, err
			}
			return withFarm(ctx, rt, args[0], "farm.unbond", func(_ context.Context, f *farm.Engine) (interface{}, error) {
				return f.Unbond(who, nonce)
			})
		},
	},
	"farm-rewards": {
		usage: "<farm>", help: "Show the reward ledger", minArgs: 1,
		run: func(ctx context.Context, rt *runtime.Runtime, args []string) (interface{}, error) {
			return view(ctx, rt, "farm.rewards", func(_ context.Context, s *runtime.Session) (interface{}, error) {
				f, err := s.Farm(args[0])
				if err != nil {
					return nil, err
				}
				return f.Rewards()
			})
		},
	},
	"unlock": {
		usage: "<factory> <account> <nonce> <amount>", help: "Unlock locked reward tokens", minArgs: 4,
		run: func(ctx context.Context, rt *runtime.Runtime, args []string) (interface{}, error) {
			who, nonce, amount, err := positionArgs(args)
			if err != nil {
				return nil, err
			}
			return execute(ctx, rt, "locked.unlock", func(_ context.Context, s *runtime.Session) (interface{}, error) {
				factory, err := s.Locked(args[0])
				if err != nil {
					return nil, err
				}
				return factory.Unlock(who, nonce, amount)
			})
		},
	},
}

func commandNames() []string {
	names := make([]string, 0, len(commands))
	for name := range commands {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

func dispatch(ctx context.Context, rt *runtime.Runtime, name string, args []string) (interface{}, error) {
	cmd, ok := commands[name]
	if !ok {
		return nil, fmt.Errorf("unknown command %q", name)
	}
	if len(args) < cmd.minArgs {
		return nil, fmt.Errorf("usage: dexctl %s %s", name, cmd.usage)
	}
	return cmd.run(ctx, rt, args)
}

func positionCommand(operation, help string, op func(*farm.Engine, context.Context, crypto.Address, uint64, *big.Int) (*farm.ClaimResult, error)) command {
	return command{
		usage: "<farm> <account> <nonce> <amount>", help: help, minArgs: 4,
		run: func(ctx context.Context, rt *runtime.Runtime, args []string) (interface{}, error) {
			who, nonce, amount, err := positionArgs(args)
			if err != nil {
				return nil, err
			}
			return withFarm(ctx, rt, args[0], operation, func(ctx context.Context, f *farm.Engine) (interface{}, error) {
				return op(f, ctx, who, nonce, amount)
			})
		},
	}
}

func execute(ctx context.Context, rt *runtime.Runtime, operation string, fn func(context.Context, *runtime.Session) (interface{}, error)) (interface{}, error) {
	var result interface{}
	receipt, err := rt.Execute(ctx, operation, func(ctx context.Context, s *runtime.Session) error {
		var err error
		result, err = fn(ctx, s)
		return err
	})
	if err != nil {
		return nil, err
	}
	out := outcome{Invocation: receipt.ID, Result: result}
	for _, evt := range receipt.Events {
		out.Events = append(out.Events, renderEvent(evt))
	}
	return out, nil
}

func view(ctx context.Context, rt *runtime.Runtime, operation string, fn func(context.Context, *runtime.Session) (interface{}, error)) (interface{}, error) {
	var result interface{}
	err := rt.View(ctx, operation, func(ctx context.Context, s *runtime.Session) error {
		var err error
		result, err = fn(ctx, s)
		return err
	})
	return result, err
}

func withPair(ctx context.Context, rt *runtime.Runtime, name, operation string, fn func(context.Context, *pair.Engine) (interface{}, error)) (interface{}, error) {
	return execute(ctx, rt, operation, func(ctx context.Context, s *runtime.Session) (interface{}, error) {
		p, err := s.Pair(name)
		if err != nil {
			return nil, err
		}
		return fn(ctx, p)
	})
}

func pairView(ctx context.Context, rt *runtime.Runtime, name string, fn func(*pair.Engine) (interface{}, error)) (interface{}, error) {
	return view(ctx, rt, "pair.view", func(_ context.Context, s *runtime.Session) (interface{}, error) {
		p, err := s.Pair(name)
		if err != nil {
			return nil, err
		}
		return fn(p)
	})
}

func withFarm(ctx context.Context, rt *runtime.Runtime, name, operation string, fn func(context.Context, *farm.Engine) (interface{}, error)) (interface{}, error) {
	return execute(ctx, rt, operation, func(ctx context.Context, s *runtime.Session) (interface{}, error) {
		f, err := s.Farm(name)
		if err != nil {
			return nil, err
		}
		return fn(ctx, f)
	})
}

func renderEvent(evt events.Event) eventOutput {
	rendered := evt.Event()
	if rendered == nil {
		return eventOutput{Type: evt.EventType()}
	}
	return eventOutput{Type: rendered.Type, Attributes: rendered.Attributes}
}

func printResult(w io.Writer, result interface{}) error {
	pretty, err := json.MarshalIndent(result, "", "  ")
	if err != nil {
		return err
	}
	_, err = fmt.Fprintln(w, string(pretty))
	return err
}

func accountAndAmount(account, amount string) (crypto.Address, *big.Int, error) {
	who, err := config.ResolveAccount(account)
	if err != nil {
		return crypto.Address{}, nil, err
	}
	parsed, err := config.ParseAmount(amount)
	if err != nil {
		return crypto.Address{}, nil, err
	}
	return who, parsed, nil
}

func positionArgs(args []string) (crypto.Address, uint64, *big.Int, error) {
	nonce, err := parseNonce(args[2])
	if err != nil {
		return crypto.Address{}, 0, nil, err
	}
	who, amount, err := accountAndAmount(args[1], args[3])
	return who, nonce, amount, err
}

// amountsFrom parses args into exactly n amounts, missing ones being zero.
func amountsFrom(args []string, n int) ([]*big.Int, error) {
	out := make([]*big.Int, n)
	for i := range out {
		amount, err := config.ParseAmount(optional(args, i))
		if err != nil {
			return nil, err
		}
		out[i] = amount
	}
	return out, nil
}

func optional(args []string, i int) string {
	if i < len(args) {
		return args[i]
	}
	return ""
}

func parseNonce(v string) (uint64, error) {
	n, err := strconv.ParseUint(strings.TrimSpace(v), 10, 64)
	if err != nil {
		return 0, fmt.Errorf("invalid number %q", v)
	}
	return n, nil
}
