package metrics

import (
	"math/big"
	"sync"
)

// Observer receives the observations of the pair and farm engines.
// *DexMetrics records them in Prometheus; Deferred holds them back until the
// invocation that produced them commits.
type Observer interface {
	ObserveSwap(pair, kind string)
	ObserveLiquidity(pair, operation string)
	ObserveFeeReinjected(pair, reason string)
	SetReserves(pair, firstToken string, first *big.Int, secondToken string, second *big.Int)
	SetRewardPerShare(farm string, rps *big.Int)
	ObservePenalty(farm string)
	ObserveUnbond(farm string)
}

var (
	_ Observer = (*DexMetrics)(nil)
	_ Observer = (*Deferred)(nil)
)

type discard struct{}

func (discard) ObserveSwap(string, string)                             {}
func (discard) ObserveLiquidity(string, string)                        {}
func (discard) ObserveFeeReinjected(string, string)                    {}
func (discard) SetReserves(string, string, *big.Int, string, *big.Int) {}
func (discard) SetRewardPerShare(string, *big.Int)                     {}
func (discard) ObservePenalty(string)                                  {}
func (discard) ObserveUnbond(string)                                   {}

// Discard returns an Observer that drops everything.
func Discard() Observer { return discard{} }

// Deferred queues observations in order and forwards them to its target on
// Flush. Mark and Rewind drop the observations of a nested call that failed.
type Deferred struct {
	mu     sync.Mutex
	target Observer
	ops    []func(Observer)
}

// NewDeferred queues observations for target. A nil target discards them.
func NewDeferred(target Observer) *Deferred {
	if target == nil {
		target = Discard()
	}
	return &Deferred{target: target}
}

func (d *Deferred) queue(op func(Observer)) {
	d.mu.Lock()
	d.ops = append(d.ops, op)
	d.mu.Unlock()
}

func (d *Deferred) ObserveSwap(pair, kind string) {
	d.queue(func(o Observer) { o.ObserveSwap(pair, kind) })
}

func (d *Deferred) ObserveLiquidity(pair, operation string) {
	d.queue(func(o Observer) { o.ObserveLiquidity(pair, operation) })
}

func (d *Deferred) ObserveFeeReinjected(pair, reason string) {
	d.queue(func(o Observer) { o.ObserveFeeReinjected(pair, reason) })
}

func (d *Deferred) SetReserves(pair, firstToken string, first *big.Int, secondToken string, second *big.Int) {
	first, second = copyBig(first), copyBig(second)
	d.queue(func(o Observer) { o.SetReserves(pair, firstToken, first, secondToken, second) })
}

func (d *Deferred) SetRewardPerShare(farm string, rps *big.Int) {
	rps = copyBig(rps)
	d.queue(func(o Observer) { o.SetRewardPerShare(farm, rps) })
}

func (d *Deferred) ObservePenalty(farm string) {
	d.queue(func(o Observer) { o.ObservePenalty(farm) })
}

func (d *Deferred) ObserveUnbond(farm string) {
	d.queue(func(o Observer) { o.ObserveUnbond(farm) })
}

// Len reports the number of queued observations.
func (d *Deferred) Len() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return len(d.ops)
}

// Mark returns a position Rewind can return to.
func (d *Deferred) Mark() int { return d.Len() }

// Rewind drops every observation queued after mark.
func (d *Deferred) Rewind(mark int) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if mark >= 0 && mark < len(d.ops) {
		d.ops = d.ops[:mark]
	}
}

// Flush forwards the queued observations and empties the queue.
func (d *Deferred) Flush() {
	d.mu.Lock()
	ops := d.ops
	d.ops = nil
	d.mu.Unlock()
	for _, op := range ops {
		op(d.target)
	}
}

func copyBig(v *big.Int) *big.Int {
	if v == nil {
		return nil
	}
	return new(big.Int).Set(v)
}
