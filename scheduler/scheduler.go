package scheduler

import (
	"sync"
	"time"

	"go.uber.org/zap"
)

// TaskFn is the function signature for scheduled tasks.
type TaskFn func()

// Scheduler manages named periodic tasks.
type Scheduler struct {
	mu      sync.Mutex
	tickers map[string]*tickerEntry
	logger  *zap.Logger
}

type tickerEntry struct {
	ticker *time.Ticker
	stopCh chan struct{}
}

// New creates a new Scheduler.
func New(logger *zap.Logger) *Scheduler {
	return &Scheduler{
		tickers: make(map[string]*tickerEntry),
		logger:  logger,
	}
}

// AddTicker registers a task to run on a fixed interval.
// If a task with the same name exists, it is replaced. Non-positive
// intervals are rejected; time.NewTicker panics on them.
func (s *Scheduler) AddTicker(name string, interval time.Duration, fn TaskFn) {
	if interval <= 0 {
		s.logger.Warn("scheduled task skipped: non-positive interval",
			zap.String("task", name), zap.Duration("interval", interval))
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if old, ok := s.tickers[name]; ok {
		old.ticker.Stop()
		close(old.stopCh)
		delete(s.tickers, name)
	}

	entry := &tickerEntry{
		ticker: time.NewTicker(interval),
		stopCh: make(chan struct{}),
	}
	s.tickers[name] = entry

	logger := s.logger
	go func() {
		for {
			select {
			case <-entry.ticker.C:
				func() {
					defer func() {
						if r := recover(); r != nil {
							logger.Error("scheduled task panicked",
								zap.String("task", name), zap.Any("error", r))
						}
					}()
					fn()
				}()
			case <-entry.stopCh:
				return
			}
		}
	}()
}

// RemoveTicker stops and removes the named task. No-op if unknown.
func (s *Scheduler) RemoveTicker(name string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if entry, ok := s.tickers[name]; ok {
		entry.ticker.Stop()
		close(entry.stopCh)
		delete(s.tickers, name)
	}
}

// Names returns the registered task names.
func (s *Scheduler) Names() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	names := make([]string, 0, len(s.tickers))
	for n := range s.tickers {
		names = append(names, n)
	}
	return names
}

// Stop halts every task.
func (s *Scheduler) Stop() {
	s.mu.Lock()
	defer s.mu.Unlock()
	for name, entry := range s.tickers {
		entry.ticker.Stop()
		close(entry.stopCh)
		delete(s.tickers, name)
	}
}
