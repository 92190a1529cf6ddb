package sessions

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/tcpolan/pump/internal/telemetry/metrics"

	log "github.com/sirupsen/logrus"
)

type lifecycleRepo interface {
	GetActive(ctx context.Context) (*Session, error)
	Start(ctx context.Context, programID string) (*Session, error)
	Finish(ctx context.Context, sessionID string) error
	Cancel(ctx context.Context, sessionID string) error
}

// Controller is the single owner of the active-session handle. All
// lifecycle transitions (start / finish / cancel / refresh) are
// serialized through it, which makes the check-then-act on "is a
// workout already running" a single logical unit. The store-level
// unique index on is_active backs the same invariant against anything
// bypassing the controller.
type Controller struct {
	repo           lifecycleRepo
	metricsManager *metrics.Manager
	now            func() time.Time
	tickInterval   time.Duration

	mu          sync.Mutex
	active      *Session
	elapsed     int
	stopTick    chan struct{}
	subscribers map[int]chan int
	nextSubID   int
}

func NewController(repo lifecycleRepo, metricsManager *metrics.Manager) *Controller {
	return &Controller{
		repo:           repo,
		metricsManager: metricsManager,
		now:            time.Now,
		tickInterval:   time.Second,
		subscribers:    make(map[int]chan int),
	}
}

// Active returns the current session handle, or nil when idle.
func (c *Controller) Active() *Session {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.active == nil {
		return nil
	}
	sessionCopy := *c.active
	return &sessionCopy
}

// ElapsedSeconds is the display clock: floor(now - startTime), zero when idle.
func (c *Controller) ElapsedSeconds() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.elapsed
}

// Subscribe registers an elapsed-seconds observer. The returned cancel
// func must be called when the observer goes away.
func (c *Controller) Subscribe() (<-chan int, func()) {
	c.mu.Lock()
	defer c.mu.Unlock()

	id := c.nextSubID
	c.nextSubID++
	ch := make(chan int, 1)
	c.subscribers[id] = ch

	return ch, func() {
		c.mu.Lock()
		defer c.mu.Unlock()
		if sub, ok := c.subscribers[id]; ok {
			delete(c.subscribers, id)
			close(sub)
		}
	}
}

// StartWorkout transitions Idle -> Running. A second start while
// Running is rejected before any write.
func (c *Controller) StartWorkout(ctx context.Context, programID string) (*Session, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.active != nil {
		return nil, ErrActiveSessionExists
	}

	session, err := c.repo.Start(ctx, programID)
	if err != nil {
		return nil, fmt.Errorf("start session: %w", err)
	}

	c.active = session
	c.elapsed = 0
	c.startTickerLocked()

	if c.metricsManager != nil {
		c.metricsManager.CounterSessionsStarted.Inc()
		c.metricsManager.GaugeActiveSession.Set(1)
	}

	log.Debugf("workout session %s started for program %s", session.ID, programID)
	return session, nil
}

// FinishWorkout transitions Running -> Idle, keeping the session rows
// as history. Finishing while idle is a no-op.
func (c *Controller) FinishWorkout(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.active == nil {
		return nil
	}

	if err := c.repo.Finish(ctx, c.active.ID); err != nil && !errors.Is(err, ErrSessionNotFound) {
		return fmt.Errorf("finish session: %w", err)
	}

	log.Debugf("workout session %s finished", c.active.ID)
	c.resetToIdleLocked()

	if c.metricsManager != nil {
		c.metricsManager.CounterSessionsFinished.Inc()
	}
	return nil
}

// CancelWorkout transitions Running -> Idle and deletes the session and
// all its recorded sets. Cancelling while idle is a no-op.
func (c *Controller) CancelWorkout(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.active == nil {
		return nil
	}

	if err := c.repo.Cancel(ctx, c.active.ID); err != nil && !errors.Is(err, ErrSessionNotFound) {
		return fmt.Errorf("cancel session: %w", err)
	}

	log.Debugf("workout session %s cancelled", c.active.ID)
	c.resetToIdleLocked()

	if c.metricsManager != nil {
		c.metricsManager.CounterSessionsCancelled.Inc()
	}
	return nil
}

// Refresh re-derives the controller state from the store. The store is
// the source of truth for "is a workout in progress", which is what
// makes resume-after-restart work: elapsed time is recomputed from the
// persisted start time, never from a cached value.
func (c *Controller) Refresh(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	session, err := c.repo.GetActive(ctx)
	if errors.Is(err, ErrNoActiveSession) {
		c.resetToIdleLocked()
		return nil
	}
	if err != nil {
		return fmt.Errorf("get active session: %w", err)
	}

	c.active = session
	c.elapsed = elapsedSeconds(session.StartTime, c.now())
	if c.stopTick == nil {
		c.startTickerLocked()
	}

	if c.metricsManager != nil {
		c.metricsManager.GaugeActiveSession.Set(1)
	}
	return nil
}

// Close stops the ticker. Called on every exit path of the owning server.
func (c *Controller) Close() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.stopTickerLocked()
}

func (c *Controller) resetToIdleLocked() {
	c.stopTickerLocked()
	c.active = nil
	c.elapsed = 0
	c.broadcastLocked(0)
	if c.metricsManager != nil {
		c.metricsManager.GaugeActiveSession.Set(0)
	}
}

func (c *Controller) startTickerLocked() {
	stop := make(chan struct{})
	c.stopTick = stop

	go func() {
		ticker := time.NewTicker(c.tickInterval)
		defer ticker.Stop()
		for {
			select {
			case <-stop:
				return
			case <-ticker.C:
				c.tick()
			}
		}
	}()
}

func (c *Controller) stopTickerLocked() {
	if c.stopTick != nil {
		close(c.stopTick)
		c.stopTick = nil
	}
}

func (c *Controller) tick() {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.active == nil {
		return
	}

	c.elapsed = elapsedSeconds(c.active.StartTime, c.now())
	c.broadcastLocked(c.elapsed)
}

// broadcastLocked pushes the latest elapsed value to all subscribers,
// replacing a stale unread value instead of blocking the ticker.
func (c *Controller) broadcastLocked(elapsed int) {
	for _, ch := range c.subscribers {
		select {
		case ch <- elapsed:
		default:
			select {
			case <-ch:
			default:
			}
			select {
			case ch <- elapsed:
			default:
			}
		}
	}
}
