package message

import (
	"sync"
	"time"

	"github.com/pion/logging"
)

// DefaultSweepInterval is how often the sweeper scans for expired
// messages.
const DefaultSweepInterval = 50 * time.Millisecond

// Sweeper expires overdue messages in the background: each sweep
// removes messages whose TTL passed and fires their callbacks with an
// empty answer. Removal races with the answer path are settled by
// Queue.Remove possession and the at-most-once callback, so a message
// answered concurrently is never double-completed.
type Sweeper struct {
	queue    *Queue
	interval time.Duration
	closeCh  chan struct{}
	wg       sync.WaitGroup
	log      logging.LeveledLogger

	mu      sync.Mutex
	started bool
	closed  bool
}

// SweeperConfig configures the TTL sweeper.
type SweeperConfig struct {
	// Queue is the message queue to sweep. Required.
	Queue *Queue

	// Interval between sweeps. Defaults to DefaultSweepInterval.
	Interval time.Duration

	// LoggerFactory is the factory for creating loggers.
	// If nil, logging is disabled.
	LoggerFactory logging.LoggerFactory
}

// NewSweeper creates a sweeper over the given queue.
func NewSweeper(config SweeperConfig) *Sweeper {
	s := &Sweeper{
		queue:    config.Queue,
		interval: config.Interval,
		closeCh:  make(chan struct{}),
	}
	if s.interval <= 0 {
		s.interval = DefaultSweepInterval
	}
	if config.LoggerFactory != nil {
		s.log = config.LoggerFactory.NewLogger("ttl-sweeper")
	}
	return s
}

// Start launches the sweep loop.
func (s *Sweeper) Start() error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return ErrSweeperClosed
	}
	if s.started {
		s.mu.Unlock()
		return ErrSweeperStarted
	}
	s.started = true
	s.mu.Unlock()

	s.wg.Add(1)
	go s.loop()
	return nil
}

// Stop terminates the sweep loop and waits for it to exit.
func (s *Sweeper) Stop() error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return ErrSweeperClosed
	}
	s.closed = true
	s.mu.Unlock()

	close(s.closeCh)
	s.wg.Wait()
	return nil
}

func (s *Sweeper) loop() {
	defer s.wg.Done()

	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-s.closeCh:
			return
		case now := <-ticker.C:
			for _, m := range s.queue.Expire(now) {
				if s.log != nil {
					s.log.Debugf("message %d for %s expired after %v", m.Number(), m.Target(), m.TTL())
				}
				m.FireCallback()
			}
		}
	}
}
