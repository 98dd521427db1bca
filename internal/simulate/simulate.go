// Package simulate generates synthetic coincidence measurements on two
// channels. It exists to exercise the writer; the events carry no physical
// meaning beyond plausible timing.
package simulate

import (
	"context"
	"math/rand/v2"
	"slices"

	"github.com/martian17/parquet-generator/pkg/types"
)

const (
	PicosPerSecond = 1_000_000_000_000
	PicosPerMinute = 60 * PicosPerSecond

	// picosPerFiberCentimeter is the approximate propagation delay of light in fiber.
	picosPerFiberCentimeter = 50
)

// Config describes one simulated measurement.
type Config struct {
	// Seed makes the generated sequence reproducible
	Seed uint64 `yaml:"seed" json:"seed"`

	// Pairs is the number of emission attempts
	Pairs int `yaml:"pairs" json:"pairs" validate:"gte=0"`

	// RangePS is the span emission times are drawn from
	RangePS uint64 `yaml:"range_ps" json:"range_ps" validate:"gt=0"`

	// OffsetPS shifts every emission time away from zero
	OffsetPS uint64 `yaml:"offset_ps" json:"offset_ps"`

	// WindowStartPS and WindowEndPS bound the recorded sample, exclusive
	WindowStartPS uint64 `yaml:"window_start_ps" json:"window_start_ps"`
	WindowEndPS   uint64 `yaml:"window_end_ps" json:"window_end_ps" validate:"gtfield=WindowStartPS"`

	// FiberCM is the fiber length between the two detectors
	FiberCM uint64 `yaml:"fiber_cm" json:"fiber_cm"`

	// JitterPS is the symmetric timing jitter of the second detector
	JitterPS int64 `yaml:"jitter_ps" json:"jitter_ps" validate:"gte=0"`

	// CorrelatedPercent is the share of pairs whose second event follows the first
	CorrelatedPercent int `yaml:"correlated_percent" json:"correlated_percent" validate:"gte=0,lte=100"`
}

// DefaultConfig returns a 7 minute measurement sampled between minute 1 and 6.
func DefaultConfig() Config {
	return Config{
		Seed:              42,
		Pairs:             1_000_000,
		RangePS:           7 * PicosPerMinute,
		OffsetPS:          PicosPerSecond,
		WindowStartPS:     1 * PicosPerMinute,
		WindowEndPS:       6 * PicosPerMinute,
		FiberCM:           10,
		JitterPS:          15,
		CorrelatedPercent: 50,
	}
}

// Generate returns the events of a measurement sorted by time tag.
func Generate(cfg Config) []types.Event {
	r := rand.New(rand.NewPCG(cfg.Seed, cfg.Seed))
	delay := int64(cfg.FiberCM * picosPerFiberCentimeter)

	events := make([]types.Event, 0, cfg.Pairs)
	for i := 0; i < cfg.Pairs; i++ {
		t0 := r.Uint64N(cfg.RangePS) + cfg.OffsetPS

		var t1 uint64
		if r.IntN(100) < cfg.CorrelatedPercent {
			jitter := int64(0)
			if cfg.JitterPS > 0 {
				jitter = r.Int64N(2*cfg.JitterPS) - cfg.JitterPS
			}
			t1 = uint64(int64(t0) + delay + jitter)
		} else {
			t1 = r.Uint64N(cfg.RangePS) + cfg.OffsetPS
		}

		if cfg.inWindow(t0) {
			events = append(events, types.Event{ChannelID: 0, TimeTagPS: t0})
		}
		if cfg.inWindow(t1) {
			events = append(events, types.Event{ChannelID: 1, TimeTagPS: t1})
		}
	}

	slices.SortStableFunc(events, func(a, b types.Event) int {
		switch {
		case a.TimeTagPS < b.TimeTagPS:
			return -1
		case a.TimeTagPS > b.TimeTagPS:
			return 1
		default:
			return 0
		}
	})
	return events
}

// Produce generates a measurement and pushes it into out, for use with
// source.NewPipe.
func Produce(cfg Config) func(ctx context.Context, out chan<- types.Event) error {
	return func(ctx context.Context, out chan<- types.Event) error {
		for _, e := range Generate(cfg) {
			select {
			case out <- e:
			case <-ctx.Done():
				return ctx.Err()
			}
		}
		return nil
	}
}

func (c Config) inWindow(t uint64) bool {
	return c.WindowStartPS < t && t < c.WindowEndPS
}
