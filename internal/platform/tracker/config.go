package tracker

import (
	"time"

	"github.com/sethvargo/go-retry"
)

// Config holds configuration for the transaction tracker
type Config struct {
	// RetryBaseDelay is the first backoff delay after a transient error
	RetryBaseDelay time.Duration

	// RetryMaxDelay caps the exponential backoff
	RetryMaxDelay time.Duration

	// RetryJitterPercent spreads retries of concurrent waits
	RetryJitterPercent uint64

	// MaxRetries bounds consecutive transient failures per wait.
	// 0 retries forever; every retry is logged either way.
	MaxRetries int

	// StaleHorizon marks records submitted longer ago than this as stale
	StaleHorizon time.Duration

	// ResyncInterval is how often Run re-lists pending records
	ResyncInterval time.Duration
}

// DefaultConfig returns the default tracker configuration
func DefaultConfig() *Config {
	return &Config{
		RetryBaseDelay:     2 * time.Second,
		RetryMaxDelay:      2 * time.Minute,
		RetryJitterPercent: 10,
		MaxRetries:         0,
		StaleHorizon:       24 * time.Hour,
		ResyncInterval:     time.Minute,
	}
}

// Validate validates the configuration
func (c *Config) Validate() error {
	if c.RetryBaseDelay <= 0 {
		c.RetryBaseDelay = 2 * time.Second
	}
	if c.RetryMaxDelay < c.RetryBaseDelay {
		c.RetryMaxDelay = c.RetryBaseDelay
	}
	if c.RetryJitterPercent > 100 {
		c.RetryJitterPercent = 100
	}
	if c.MaxRetries < 0 {
		c.MaxRetries = 0
	}
	if c.StaleHorizon <= 0 {
		c.StaleHorizon = 24 * time.Hour
	}
	if c.ResyncInterval <= 0 {
		c.ResyncInterval = time.Minute
	}
	return nil
}

// newBackoff builds the retry schedule for one confirmation wait
func (c *Config) newBackoff() retry.Backoff {
	backoff := retry.NewExponential(c.RetryBaseDelay)
	backoff = retry.WithCappedDuration(c.RetryMaxDelay, backoff)
	if c.RetryJitterPercent > 0 {
		backoff = retry.WithJitterPercent(c.RetryJitterPercent, backoff)
	}
	if c.MaxRetries > 0 {
		backoff = retry.WithMaxRetries(uint64(c.MaxRetries), backoff)
	}
	return backoff
}
