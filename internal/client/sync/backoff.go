package sync

import (
	"time"

	"github.com/sethvargo/go-retry"
)

// BackoffConfig описывает политику повторов: экспоненциальный рост от Base,
// удвоение до потолка Max и jitter +/- JitterPercent.
type BackoffConfig struct {
	Base          time.Duration `yaml:"base"`
	Max           time.Duration `yaml:"max"`
	JitterPercent uint64        `yaml:"jitter_percent"`
}

// DefaultBackoffConfig returns the retry policy used when none is configured.
func DefaultBackoffConfig() BackoffConfig {
	return BackoffConfig{
		Base:          time.Second,
		Max:           5 * time.Minute,
		JitterPercent: 10,
	}
}

// newBackoff строит новую последовательность задержек; счётчик попыток начинается с нуля.
func newBackoff(cfg BackoffConfig) retry.Backoff {
	base := cfg.Base
	if base <= 0 {
		base = time.Second
	}

	b := retry.NewExponential(base)
	if cfg.Max > 0 {
		b = retry.WithCappedDuration(cfg.Max, b)
	}
	// go-retry паникует на нулевом jitter
	if cfg.JitterPercent > 0 {
		jitter := cfg.JitterPercent
		if jitter > 100 {
			jitter = 100
		}
		b = retry.WithJitterPercent(jitter, b)
	}
	return b
}
