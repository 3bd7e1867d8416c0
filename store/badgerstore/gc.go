package badgerstore

import (
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/dgraph-io/badger/v4"
)

// gcRunner periodically rewrites value log files that are mostly garbage.
// Badger never reclaims value log space on its own.
type gcRunner struct {
	db       *badger.DB
	interval time.Duration
	ratio    float64
	logger   *slog.Logger
	stopCh   chan struct{}
	doneCh   chan struct{}
}

func startGC(db *badger.DB, interval time.Duration, ratio float64, logger *slog.Logger) *gcRunner {
	r := &gcRunner{
		db:       db,
		interval: interval,
		ratio:    ratio,
		logger:   logger,
		stopCh:   make(chan struct{}),
		doneCh:   make(chan struct{}),
	}

	go r.run()

	return r
}

func (r *gcRunner) run() {
	defer close(r.doneCh)

	ticker := time.NewTicker(r.interval)
	defer ticker.Stop()

	for {
		select {
		case <-r.stopCh:
			return
		case <-ticker.C:
			r.collect()
		}
	}
}

func (r *gcRunner) collect() {
	// A nil return means a file was rewritten; keep going until nothing
	// qualifies. ErrNoRewrite is the normal idle outcome.
	for {
		err := r.db.RunValueLogGC(r.ratio)
		if err == nil {
			if r.logger != nil {
				r.logger.Debug("badger value log gc rewrote a file")
			}

			continue
		}

		if !errors.Is(err, badger.ErrNoRewrite) && !errors.Is(err, badger.ErrRejected) {
			if r.logger != nil {
				r.logger.Warn("badger value log gc failed", slog.String("error", err.Error()))
			}
		}

		return
	}
}

// stop halts garbage collection and waits for the runner to exit. Must be
// called at most once.
func (r *gcRunner) stop() {
	close(r.stopCh)
	<-r.doneCh
}

// badgerLogger adapts slog to Badger's internal logger interface.
type badgerLogger struct {
	logger *slog.Logger
}

func (l *badgerLogger) Errorf(format string, args ...interface{}) {
	l.logger.Error(fmt.Sprintf(format, args...))
}

func (l *badgerLogger) Warningf(format string, args ...interface{}) {
	l.logger.Warn(fmt.Sprintf(format, args...))
}

func (l *badgerLogger) Infof(format string, args ...interface{}) {
	l.logger.Info(fmt.Sprintf(format, args...))
}

func (l *badgerLogger) Debugf(format string, args ...interface{}) {
	l.logger.Debug(fmt.Sprintf(format, args...))
}
