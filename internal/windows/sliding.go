package windows

import (
	"iter"

	"overfitguard/domain/stats"
)

// Sliding keeps a constant training length W and test length T. After a
// window at position p the next starts at p + W + G + T.
type Sliding struct {
	cfg Config
}

func NewSliding(cfg Config) (*Sliding, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &Sliding{cfg: cfg}, nil
}

func (s *Sliding) Policy() Policy { return PolicySliding }

// Span is the number of periods one window consumes, capped at math.MaxInt.
func (s *Sliding) Span() int {
	return addCapped(addCapped(s.cfg.TrainSize, s.cfg.PurgeGap), s.cfg.TestSize)
}

func (s *Sliding) Generate(n int) (iter.Seq[stats.Window], error) {
	if err := s.cfg.checkLength(PolicySliding, n); err != nil {
		return nil, err
	}
	cfg := s.cfg

	return func(yield func(stats.Window) bool) {
		p := 0
		for i := 0; i < cfg.Splits; i++ {
			// every bound is checked against n before it is computed
			if cfg.TrainSize > n-p {
				return
			}
			trainEnd := p + cfg.TrainSize
			if cfg.PurgeGap >= n-trainEnd {
				return
			}
			testStart := trainEnd + cfg.PurgeGap

			w := stats.Window{
				Index: i,
				Train: stats.Range{Start: p, End: trainEnd},
				Test:  stats.Range{Start: testStart, End: testEnd(testStart, cfg.TestSize, n)},
			}
			if !yield(w) {
				return
			}
			if cfg.TestSize >= n-testStart {
				return
			}
			p = testStart + cfg.TestSize
		}
	}, nil
}
