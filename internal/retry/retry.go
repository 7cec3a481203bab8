// Package retry runs short operations against flaky remote services,
// backing off between attempts. Only errors that look transient are
// retried; everything else fails fast.
package retry

import (
	"context"
	"crypto/rand"
	"fmt"
	"math/big"
	"strings"
	"time"

	"github.com/sirupsen/logrus"
)

type Config struct {
	MaxRetries     int
	InitialBackoff time.Duration
	MaxBackoff     time.Duration
	Timeout        time.Duration
}

var DefaultConfig = Config{
	MaxRetries:     3,
	InitialBackoff: 1 * time.Second,
	MaxBackoff:     30 * time.Second,
	Timeout:        2 * time.Minute,
}

// Do invokes op until it succeeds, a permanent error appears, or the
// attempts run out. The whole call is bounded by cfg.Timeout on top of
// whatever deadline ctx already carries.
func Do(ctx context.Context, log *logrus.Entry, cfg Config, name string, op func(context.Context) error) error {
	if cfg.MaxRetries < 0 {
		cfg.MaxRetries = 0
	}
	if log == nil {
		log = logrus.NewEntry(logrus.StandardLogger())
	}

	opCtx, cancel := context.WithTimeout(ctx, cfg.Timeout)
	defer cancel()

	var lastErr error
	backoff := cfg.InitialBackoff

	for attempt := 0; attempt <= cfg.MaxRetries; attempt++ {
		select {
		case <-opCtx.Done():
			return fmt.Errorf("%s timed out after %v: %w", name, cfg.Timeout, opCtx.Err())
		default:
		}

		err := op(opCtx)
		if err == nil {
			if attempt > 0 {
				log.Infof("%s succeeded on attempt %d", name, attempt+1)
			}
			return nil
		}

		lastErr = err
		log.Warnf("%s attempt %d/%d failed: %v", name, attempt+1, cfg.MaxRetries+1, err)

		if isTransientError(err) && attempt < cfg.MaxRetries {
			log.Debugf("Transient error detected, retrying in %v", backoff)
			select {
			case <-time.After(backoff):
				backoff = nextBackoff(backoff, cfg.MaxBackoff)
			case <-opCtx.Done():
				return fmt.Errorf("%s timed out during backoff: %w", name, opCtx.Err())
			}
		} else {
			break
		}
	}

	return fmt.Errorf("%s failed after %d attempts: %w", name, cfg.MaxRetries+1, lastErr)
}

func nextBackoff(currentBackoff, maxBackoff time.Duration) time.Duration {
	backoff := time.Duration(float64(currentBackoff) * 1.5)
	if backoff > maxBackoff {
		backoff = maxBackoff
	}

	maxJitter := int64(backoff / 4)
	if maxJitter > 0 {
		jitterVal, err := rand.Int(rand.Reader, big.NewInt(maxJitter))
		if err == nil {
			backoff += time.Duration(jitterVal.Int64())
		}
	}

	return backoff
}

func isTransientError(err error) bool {
	if err == nil {
		return false
	}

	errStr := strings.ToLower(err.Error())

	transientPatterns := []string{
		"timeout",
		"connection refused",
		"connection reset",
		"temporary failure",
		"server error",
		"rate limit",
		"too many requests",
		"429", // HTTP 429 Too Many Requests
		"502", // HTTP 502 Bad Gateway
		"503", // HTTP 503 Service Unavailable
		"504", // HTTP 504 Gateway Timeout
		"network",
		"dns",
		"tcp",
	}

	for _, pattern := range transientPatterns {
		if strings.Contains(errStr, pattern) {
			return true
		}
	}

	return false
}
