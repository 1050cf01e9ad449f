package windows

import (
	"iter"

	"overfitguard/domain/stats"
)

// Expanding anchors every training region at index 0.
//
// Window i: train = [0, M + i*T), test = [trainEnd + G, min(trainEnd + G + T, N)).
type Expanding struct {
	cfg Config
}

func NewExpanding(cfg Config) (*Expanding, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &Expanding{cfg: cfg}, nil
}

func (e *Expanding) Policy() Policy { return PolicyExpanding }

func (e *Expanding) Generate(n int) (iter.Seq[stats.Window], error) {
	if err := e.cfg.checkLength(PolicyExpanding, n); err != nil {
		return nil, err
	}
	cfg := e.cfg

	return func(yield func(stats.Window) bool) {
		for i := 0; i < cfg.Splits; i++ {
			// i*T must fit in the room left after the minimum train length
			if i > (n-cfg.TrainSize)/cfg.TestSize {
				return
			}
			trainEnd := cfg.TrainSize + i*cfg.TestSize
			if cfg.PurgeGap >= n-trainEnd {
				return
			}
			testStart := trainEnd + cfg.PurgeGap

			w := stats.Window{
				Index: i,
				Train: stats.Range{Start: 0, End: trainEnd},
				Test:  stats.Range{Start: testStart, End: testEnd(testStart, cfg.TestSize, n)},
			}
			if !yield(w) {
				return
			}
		}
	}, nil
}
