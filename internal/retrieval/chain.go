package retrieval

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"os"
	"strings"
	"time"

	"scribe/internal/config"
	"scribe/internal/logging"
	"scribe/internal/services"
)

// Chain runs retrieval strategies in order over multiple rounds with
// exponential backoff between rounds. A validated download from any
// strategy wins; a fatal failure (such as an unresolvable host) aborts all
// remaining attempts.
type Chain struct {
	strategies  []Strategy
	object      *ObjectStoreFetcher
	validator   *Validator
	rounds      int
	backoffBase time.Duration
	backoffCap  time.Duration
	logger      *slog.Logger
	sleep       func(ctx context.Context, d time.Duration) error
}

// NewChain assembles the retrieval chain from configuration. The object
// store fetcher may be nil when no host suffix is configured.
func NewChain(cfg config.Download, strategies []Strategy, object *ObjectStoreFetcher, validator *Validator, logger *slog.Logger) *Chain {
	if logger == nil {
		logger = logging.NewNop()
	}
	rounds := cfg.ChainRounds
	if rounds <= 0 {
		rounds = 1
	}
	backoffBase := time.Duration(cfg.BackoffBaseSeconds) * time.Second
	if backoffBase <= 0 {
		backoffBase = time.Second
	}
	backoffCap := time.Duration(cfg.BackoffCapSeconds) * time.Second
	if backoffCap <= 0 {
		backoffCap = 30 * time.Second
	}
	return &Chain{
		strategies:  strategies,
		object:      object,
		validator:   validator,
		rounds:      rounds,
		backoffBase: backoffBase,
		backoffCap:  backoffCap,
		logger:      logging.NewComponentLogger(logger, "retrieval"),
		sleep:       sleepContext,
	}
}

// WithSleep sets a custom backoff sleeper (for testing).
func (c *Chain) WithSleep(sleep func(ctx context.Context, d time.Duration) error) {
	c.sleep = sleep
}

// Retrieve downloads mediaURL into destDir, trying each strategy in order
// until one produces a file that passes validation.
func (c *Chain) Retrieve(ctx context.Context, mediaURL, destDir string) (Outcome, error) {
	if c.object.Matches(mediaURL) {
		return c.retrieveFromObjectStore(ctx, mediaURL, destDir)
	}
	if len(c.strategies) == 0 {
		return Outcome{}, services.Wrap(services.ErrFatal, "downloading", "", "no strategies configured", nil)
	}

	failures := make(map[string]error, len(c.strategies))
	var lastErr error

	for round := 1; round <= c.rounds; round++ {
		for _, strategy := range c.strategies {
			if !strategy.CanHandle(mediaURL) {
				continue
			}
			path, err := c.attempt(ctx, strategy, mediaURL, destDir)
			if err == nil {
				c.logger.Info("media retrieved",
					logging.String("strategy", strategy.Name()),
					logging.Int("round", round),
					logging.String(logging.FieldURL, mediaURL))
				return Outcome{Path: path, Strategy: strategy.Name(), Rounds: round}, nil
			}

			failures[strategy.Name()] = err
			lastErr = err
			c.logger.Warn("strategy failed",
				logging.String("strategy", strategy.Name()),
				logging.Int("round", round),
				logging.Error(err))

			if isFatalRetrievalError(err) {
				return Outcome{}, services.Wrap(services.ErrFatal, "downloading", strategy.Name(),
					"unrecoverable failure, aborting remaining attempts", err)
			}
			if ctx.Err() != nil {
				return Outcome{}, services.Wrap(services.ErrTimeout, "downloading", strategy.Name(), "", ctx.Err())
			}
		}

		if round < c.rounds {
			if err := c.sleep(ctx, c.backoffFor(round)); err != nil {
				return Outcome{}, services.Wrap(services.ErrTimeout, "downloading", "", "backoff interrupted", err)
			}
		}
	}

	return Outcome{}, services.Wrap(services.ErrRetryable, "downloading", "",
		fmt.Sprintf("all strategies exhausted after %d rounds (%s)", c.rounds, c.summarizeFailures(failures)), lastErr)
}

func (c *Chain) retrieveFromObjectStore(ctx context.Context, mediaURL, destDir string) (Outcome, error) {
	path, err := c.object.Fetch(ctx, mediaURL, destDir)
	if err != nil {
		return Outcome{}, err
	}
	if err := c.validator.Validate(ctx, path); err != nil {
		_ = os.Remove(path)
		return Outcome{}, err
	}
	c.logger.Info("media retrieved",
		logging.String("strategy", c.object.Name()),
		logging.String(logging.FieldURL, mediaURL))
	return Outcome{Path: path, Strategy: c.object.Name(), Rounds: 1}, nil
}

func (c *Chain) attempt(ctx context.Context, strategy Strategy, mediaURL, destDir string) (string, error) {
	path, err := strategy.Fetch(ctx, mediaURL, destDir)
	if err != nil {
		return "", err
	}
	if err := c.validator.Validate(ctx, path); err != nil {
		_ = os.Remove(path)
		return "", err
	}
	return path, nil
}

func (c *Chain) backoffFor(round int) time.Duration {
	backoff := c.backoffBase
	for i := 1; i < round; i++ {
		backoff *= 2
		if backoff >= c.backoffCap {
			return c.backoffCap
		}
	}
	if backoff > c.backoffCap {
		return c.backoffCap
	}
	return backoff
}

func isFatalRetrievalError(err error) bool {
	if services.IsFatal(err) {
		return true
	}
	var dnsErr *net.DNSError
	return errors.As(err, &dnsErr)
}

// summarizeFailures lists the last failure per strategy in chain priority
// order, so repeated runs produce the same terminal message.
func (c *Chain) summarizeFailures(failures map[string]error) string {
	if len(failures) == 0 {
		return "no attempts made"
	}
	parts := make([]string, 0, len(failures))
	for _, strategy := range c.strategies {
		if err, ok := failures[strategy.Name()]; ok {
			parts = append(parts, fmt.Sprintf("%s: %s", strategy.Name(), services.Details(err).Message))
		}
	}
	return strings.Join(parts, "; ")
}

func sleepContext(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
