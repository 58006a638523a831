package commands

import (
	"context"
	"fmt"
	"time"

	"github.com/redhat-et/patu/src/internal/log"
)

// Task is a long-running part of the daemon that is restarted when it fails.
type Task struct {
	Name string
	Run  func(ctx context.Context) error

	MaxRestarts    int           // 0 = unlimited restarts
	RestartBackoff time.Duration // Initial backoff (default: 1s)
	MaxBackoff     time.Duration // Max backoff (default: 30s)
}

// Supervise runs t until ctx is done or t exits cleanly. Failures and panics
// restart it with exponential backoff; once MaxRestarts is reached the last
// error is returned.
func Supervise(ctx context.Context, t Task) error {
	backoff := t.RestartBackoff
	if backoff == 0 {
		backoff = time.Second
	}
	maxBackoff := t.MaxBackoff
	if maxBackoff == 0 {
		maxBackoff = 30 * time.Second
	}

	restarts := 0
	for {
		err := runRecovered(ctx, t.Run)
		if ctx.Err() != nil {
			log.Debugf("%s: context cancelled, stopping", t.Name)
			return nil
		}
		if err == nil {
			log.Infof("%s: exited cleanly", t.Name)
			return nil
		}

		restarts++
		if t.MaxRestarts > 0 && restarts >= t.MaxRestarts {
			log.Errorf("%s: max restarts (%d) reached, giving up", t.Name, t.MaxRestarts)
			return fmt.Errorf("%s: %w", t.Name, err)
		}

		log.Errorf("%s: crashed with error: %v. Restarting in %v (restart #%d)", t.Name, err, backoff, restarts)

		select {
		case <-ctx.Done():
			return nil
		case <-time.After(backoff):
		}

		backoff *= 2
		if backoff > maxBackoff {
			backoff = maxBackoff
		}
	}
}

func runRecovered(ctx context.Context, run func(ctx context.Context) error) (err error) {
	defer func() {
		if recovered := recover(); recovered != nil {
			err = fmt.Errorf("panic: %v", recovered)
		}
	}()
	return run(ctx)
}
