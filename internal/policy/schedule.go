package policy

import (
	"time"

	"github.com/cenkalti/backoff/v4"
)

// Schedule is an exponential cooldown: Base after the first failure,
// doubling per consecutive failure, capped at Max. It is deterministic.
type Schedule struct {
	Base time.Duration
	Max  time.Duration
}

// Next returns the cooldown to apply after the given number of consecutive
// failures. Zero or negative failures are treated as one.
func (s Schedule) Next(failures int) time.Duration {
	if s.Base <= 0 {
		return 0
	}
	maxInterval := s.Max
	if maxInterval < s.Base {
		maxInterval = s.Base
	}

	bo := backoff.NewExponentialBackOff()
	bo.InitialInterval = s.Base
	bo.MaxInterval = maxInterval
	bo.Multiplier = 2
	bo.RandomizationFactor = 0
	bo.MaxElapsedTime = 0
	bo.Reset()

	d := bo.NextBackOff()
	for i := 1; i < failures; i++ {
		d = bo.NextBackOff()
	}
	return d
}
