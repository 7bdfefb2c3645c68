package upload

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/labstack/gommon/log"
	"github.com/whenitworks/backend/internal/intake"
	"github.com/whenitworks/backend/internal/models"
)

// subscriberBuffer bounds how far a subscriber may fall behind before
// transitions are dropped for it.
const subscriberBuffer = 32

// Observer is notified of every transition, in order, while the controller
// holds its lock. Implementations must not block or call back into the
// controller.
type Observer interface {
	ObserveTransition(prev, next State)
}

// ObserverFunc adapts a function to Observer.
type ObserverFunc func(prev, next State)

func (f ObserverFunc) ObserveTransition(prev, next State) { f(prev, next) }

// Controller owns the upload slot of one page. Validation runs synchronously
// in Select; the read runs in the background and reports back through Apply.
// A new selection cancels the read of the attempt it supersedes.
type Controller struct {
	policy    intake.Policy
	observers []Observer

	mu     sync.Mutex
	state  State
	cancel context.CancelFunc
	subs   map[chan State]struct{}
}

// NewController creates a controller in the idle state.
func NewController(policy intake.Policy, observers ...Observer) *Controller {
	return &Controller{
		policy:    policy,
		observers: observers,
		state:     State{Phase: PhaseIdle},
		subs:      make(map[chan State]struct{}),
	}
}

// Policy returns the validation policy in use.
func (c *Controller) Policy() intake.Policy {
	return c.policy
}

// State returns the current snapshot.
func (c *Controller) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// Select handles one file-selection event and returns the state reached once
// validation finished: failed, or reading. A nil file is a no-op.
func (c *Controller) Select(ctx context.Context, f intake.File) State {
	st, _ := c.start(ctx, f)
	return st
}

// ErrSuperseded is returned by SelectAndWait when a newer selection or a
// Clear took over the slot before the read finished.
var ErrSuperseded = errors.New("upload superseded by a newer selection")

// SelectAndWait is Select followed by waiting for the read to finish. The
// returned state is the one this selection reached, never a later attempt's.
// If ctx ends first the read is aborted and reported as a read failure.
func (c *Controller) SelectAndWait(ctx context.Context, f intake.File) (State, error) {
	st, done := c.start(ctx, f)
	if done == nil {
		return st, nil
	}
	final, ok := <-done
	if !ok {
		return st, ErrSuperseded
	}
	return final, nil
}

// Clear aborts any in-flight read and resets the slot to idle.
func (c *Controller) Clear() State {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.cancel != nil {
		c.cancel()
		c.cancel = nil
	}
	c.applyLocked(Cleared{})
	return c.state
}

// Subscribe returns a channel receiving every subsequent state. The returned
// func unsubscribes and closes the channel.
func (c *Controller) Subscribe() (<-chan State, func()) {
	ch := make(chan State, subscriberBuffer)

	c.mu.Lock()
	c.subs[ch] = struct{}{}
	c.mu.Unlock()

	var once sync.Once
	return ch, func() {
		once.Do(func() {
			c.mu.Lock()
			delete(c.subs, ch)
			c.mu.Unlock()
			close(ch)
		})
	}
}

// start validates f and launches the read. done receives the state the read
// produced, or is closed empty when the attempt was superseded; it is nil
// when no read was started.
func (c *Controller) start(ctx context.Context, f intake.File) (State, <-chan State) {
	if f == nil {
		return c.State(), nil
	}

	attemptID := uuid.New().String()
	info := models.FileInfo{
		Name:       f.Name(),
		Size:       f.Size(),
		SizeLabel:  intake.FormatFileSize(f.Size()),
		SelectedAt: time.Now(),
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	if c.cancel != nil {
		log.Debugf("[Upload %s] Superseding in-flight read of %s", short(c.state.AttemptID), c.fileName())
		c.cancel()
		c.cancel = nil
	}

	c.applyLocked(Selected{AttemptID: attemptID, File: info})
	log.Infof("[Upload %s] Validating %s (%s)", short(attemptID), info.Name, info.SizeLabel)

	if err := c.policy.Validate(f); err != nil {
		c.applyLocked(Rejected{AttemptID: attemptID, Err: err})
		log.Infof("[Upload %s] Rejected: %s", short(attemptID), err)
		return c.state, nil
	}

	c.applyLocked(Accepted{AttemptID: attemptID, At: time.Now()})

	readCtx, cancel := context.WithCancel(ctx)
	c.cancel = cancel
	done := make(chan State, 1)
	go c.awaitRead(readCtx, cancel, attemptID, f, done)

	return c.state, done
}

func (c *Controller) awaitRead(ctx context.Context, cancel context.CancelFunc, attemptID string, f intake.File, done chan<- State) {
	defer close(done)

	res := <-intake.ReadAsText(ctx, f)
	cancel()

	c.mu.Lock()
	defer c.mu.Unlock()

	if c.state.AttemptID != attemptID {
		log.Debugf("[Upload %s] Discarding result of superseded read", short(attemptID))
		return
	}
	c.cancel = nil

	if res.Err != nil {
		log.Errorf("[Upload %s] Read failed: %v", short(attemptID), errorCause(res.Err))
		c.applyLocked(ReadFailed{AttemptID: attemptID, Err: res.Err, At: time.Now()})
		done <- c.state
		return
	}

	c.applyLocked(Loaded{AttemptID: attemptID, Text: res.Text, At: time.Now()})
	log.Infof("[Upload %s] Displayed %s (%d chars)", short(attemptID), f.Name(), len(res.Text))
	done <- c.state
}

// applyLocked runs e through Apply and fans out the transition.
func (c *Controller) applyLocked(e Event) {
	prev := c.state
	next := prev.Apply(e)
	if next == prev {
		return
	}
	c.state = next

	for _, o := range c.observers {
		o.ObserveTransition(prev, next)
	}
	for ch := range c.subs {
		select {
		case ch <- next:
		default:
			log.Warnf("[Upload %s] Subscriber is behind, dropping %s transition", short(next.AttemptID), next.Phase)
		}
	}
}

func (c *Controller) fileName() string {
	if c.state.File == nil {
		return ""
	}
	return c.state.File.Name
}

func errorCause(err error) error {
	var rerr *intake.ReadError
	if errors.As(err, &rerr) && rerr.Err != nil {
		return rerr.Err
	}
	return err
}

func short(id string) string {
	if len(id) > 8 {
		return id[:8]
	}
	return id
}
