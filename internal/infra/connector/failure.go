package connector

import (
	"fmt"
	"math/rand/v2"
	"sync"

	"omnisearch/internal/domain"
)

// NeverFail is the failure model for real connectors.
type NeverFail struct{}

func (NeverFail) Fail(domain.Operation) error { return nil }

// RandomFailure fails the listed operations with probability Rate.
type RandomFailure struct {
	rate float64
	ops  map[domain.Operation]struct{}

	mu  sync.Mutex
	rng *rand.Rand
}

// NewRandomFailure builds a seeded failure model. With no ops it only affects connect.
func NewRandomFailure(rate float64, seed uint64, ops ...domain.Operation) *RandomFailure {
	if len(ops) == 0 {
		ops = []domain.Operation{domain.OpConnect}
	}
	set := make(map[domain.Operation]struct{}, len(ops))
	for _, op := range ops {
		set[op] = struct{}{}
	}
	return &RandomFailure{
		rate: clampRate(rate),
		ops:  set,
		rng:  rand.New(rand.NewPCG(seed, seed^0x9e3779b97f4a7c15)),
	}
}

func (f *RandomFailure) Fail(op domain.Operation) error {
	if f == nil || f.rate <= 0 {
		return nil
	}
	if _, ok := f.ops[op]; !ok {
		return nil
	}
	f.mu.Lock()
	roll := f.rng.Float64()
	f.mu.Unlock()
	if roll >= f.rate {
		return nil
	}
	return fmt.Errorf("simulated %s failure: %w", op, domain.ErrTransient)
}

// FailureFunc adapts a function to domain.FailureModel.
type FailureFunc func(op domain.Operation) error

func (f FailureFunc) Fail(op domain.Operation) error { return f(op) }

// FailWith always returns err for the listed operations. Useful for wiring a
// known-broken tool into a demo catalog.
type FailWith struct {
	Err error
	Ops []domain.Operation
}

func (f FailWith) Fail(op domain.Operation) error {
	if len(f.Ops) == 0 {
		return f.Err
	}
	for _, candidate := range f.Ops {
		if candidate == op {
			return f.Err
		}
	}
	return nil
}

func clampRate(rate float64) float64 {
	switch {
	case rate < 0:
		return 0
	case rate > 1:
		return 1
	default:
		return rate
	}
}
