package ps

import (
	"context"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/sirupsen/logrus"
)

// WaitUntilReady pings the store until it answers, ctx is done or maxWait
// elapses. Servers call it at startup so a database still booting next to
// them does not fail the first request.
func (s *Store) WaitUntilReady(ctx context.Context, logger *logrus.Logger, maxWait time.Duration) error {
	if err := s.ensureInitialized(); err != nil {
		return err
	}
	if logger == nil {
		logger = logrus.StandardLogger()
	}

	b := backoff.NewExponentialBackOff()
	b.InitialInterval = 100 * time.Millisecond
	b.MaxInterval = 2 * time.Second
	b.MaxElapsedTime = maxWait

	return backoff.RetryNotify(func() error {
		return s.Ping(ctx)
	}, backoff.WithContext(b, ctx), func(err error, next time.Duration) {
		logger.WithFields(logrus.Fields{
			"driver": s.dialect,
			"retry":  next,
		}).WithError(err).Warn("store not ready")
	})
}
