// internal/assignment/sweeper/sweeper.go
package sweeper

import (
	"context"
	"sync"
	"time"

	"assignment-service/internal/common/logger"
	"assignment-service/internal/common/metrics"
	"assignment-service/internal/storage"
)

// Sweeper ages out past-deadline pending candidates on a fixed
// interval, independent of request traffic. Expiry reuses the same
// transition-only-from-pending guard as accept and reject, so running
// concurrently with either side, or with a second sweeper, cannot
// double-transition a row.
type Sweeper struct {
	store    storage.Store
	interval time.Duration
	pageSize int
	logger   logger.Logger
	now      func() time.Time

	stopOnce sync.Once
	stop     chan struct{}
	wg       sync.WaitGroup
}

func New(store storage.Store, interval time.Duration, pageSize int, log logger.Logger) *Sweeper {
	if pageSize <= 0 {
		pageSize = 100
	}
	return &Sweeper{
		store:    store,
		interval: interval,
		pageSize: pageSize,
		logger:   log.WithFields(map[string]interface{}{"component": "expiration-sweeper"}),
		now:      time.Now,
		stop:     make(chan struct{}),
	}
}

// Start launches the background loop. The context bounds each
// individual sweep, not the loop itself; use Stop for shutdown.
func (s *Sweeper) Start(ctx context.Context) {
	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		ticker := time.NewTicker(s.interval)
		defer ticker.Stop()
		for {
			select {
			case <-s.stop:
				return
			case <-ctx.Done():
				return
			case <-ticker.C:
				if _, err := s.SweepOnce(ctx); err != nil {
					s.logger.Error("sweep failed", map[string]interface{}{
						"error": err.Error(),
					})
				}
			}
		}
	}()
}

// Stop terminates the loop and waits for an in-flight sweep to finish.
func (s *Sweeper) Stop() {
	s.stopOnce.Do(func() {
		close(s.stop)
	})
	s.wg.Wait()
}

// SweepOnce expires every eligible candidate it can see right now and
// returns how many rows actually transitioned. Per-row failures are
// logged and skipped; a row that lost its pending status since the
// listing (accepted, or expired by a concurrent sweep) counts as
// nothing to do, not as an error.
func (s *Sweeper) SweepOnce(ctx context.Context) (int, error) {
	start := s.now()
	now := start.UTC()

	rows, err := s.store.ListExpirableCandidates(ctx, now, s.pageSize)
	if err != nil {
		return 0, err
	}

	var expired int
	for _, cand := range rows {
		ok, err := s.store.ExpireCandidate(ctx, cand.ID, now)
		if err != nil {
			s.logger.Warn("candidate expiry failed", map[string]interface{}{
				"candidate_id": cand.ID,
				"batch_id":     cand.BatchID,
				"error":        err.Error(),
			})
			continue
		}
		if ok {
			expired++
		}
	}

	metrics.SweepExpired.Add(float64(expired))
	metrics.SweepDuration.Observe(time.Since(start).Seconds())

	if expired > 0 {
		s.logger.Info("sweep completed", map[string]interface{}{
			"listed":  len(rows),
			"expired": expired,
		})
	}
	return expired, nil
}
