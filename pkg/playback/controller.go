// Package playback drives playback of a synthesized line on the client side.
//
// A [Controller] moves through Empty, Loading, Ready, Playing, Paused and
// Ended, with Error reachable while loading or playing. Real sources are
// fetched over HTTP and timed on the wall clock. Sources with the
// fallback:// scheme have no audio; they become Ready at once and play on a
// local timer for a fixed simulated duration.
//
// Only one timer runs per controller. Loading a new source or closing the
// controller stops the active one first; results of a superseded load are
// dropped. Status changes are queued in the order they happen and delivered
// to the change callback one at a time, so a stopped timer never reports
// after the command that stopped it.
package playback

import (
	"context"
	"errors"
	"strings"
	"sync"
	"time"
)

// Defaults.
const (
	DefaultTick              = 100 * time.Millisecond
	DefaultSimulatedDuration = 3 * time.Second
	DefaultLoadTimeout       = 10 * time.Second
)

// SimulatedScheme prefixes sources that are played without audio.
const SimulatedScheme = "fallback://"

// ErrClosed is returned by commands on a closed controller.
var ErrClosed = errors.New("playback: controller closed")

// IsSimulated reports whether src is a sentinel with no real audio.
func IsSimulated(src string) bool {
	return strings.HasPrefix(src, SimulatedScheme)
}

// Option configures a [Controller].
type Option func(*Controller)

// WithFetcher replaces the HTTP fetcher used for real sources.
func WithFetcher(f Fetcher) Option {
	return func(c *Controller) {
		if f != nil {
			c.fetcher = f
		}
	}
}

// WithTick sets the progress interval. Simulated playback advances by one
// tick per tick. Default: 100ms.
func WithTick(d time.Duration) Option {
	return func(c *Controller) {
		if d > 0 {
			c.tick = d
		}
	}
}

// WithSimulatedDuration sets how long a sentinel source plays. Default: 3s.
func WithSimulatedDuration(d time.Duration) Option {
	return func(c *Controller) {
		if d > 0 {
			c.simDuration = d
		}
	}
}

// WithLoadTimeout bounds loading a real source. Default: 10s.
func WithLoadTimeout(d time.Duration) Option {
	return func(c *Controller) {
		if d > 0 {
			c.loadTimeout = d
		}
	}
}

// WithAutoPlay starts playing as soon as a source is Ready.
func WithAutoPlay(on bool) Option {
	return func(c *Controller) { c.autoPlay = on }
}

// WithOnChange registers a callback for every status change, including
// progress ticks. Calls are serialised and arrive in the order the changes
// happened. The callback runs without the controller's lock held, possibly
// from a background goroutine; it may call controller methods but should not
// block.
func WithOnChange(fn func(Status)) Option {
	return func(c *Controller) { c.onChange = fn }
}

// Controller is a playback state machine. All methods are safe for
// concurrent use.
type Controller struct {
	fetcher     Fetcher
	tick        time.Duration
	simDuration time.Duration
	loadTimeout time.Duration
	autoPlay    bool
	onChange    func(Status)
	now         func() time.Time

	mu         sync.Mutex
	st         Status
	gen        uint64
	cancelLoad context.CancelFunc
	stopTimer  chan struct{}
	playStart  time.Time
	offset     time.Duration
	closed     bool
	changed    chan struct{}
	pending    []Status

	// deliver is held while pending events are handed to onChange.
	deliver sync.Mutex
}

// New returns an Empty controller.
func New(opts ...Option) *Controller {
	c := &Controller{
		fetcher:     HTTPFetcher{},
		tick:        DefaultTick,
		simDuration: DefaultSimulatedDuration,
		loadTimeout: DefaultLoadTimeout,
		now:         time.Now,
		changed:     make(chan struct{}),
	}
	for _, o := range opts {
		o(c)
	}
	return c
}

// Status returns a snapshot.
func (c *Controller) Status() Status {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.st
}

// Load replaces the current source with src and starts loading it.
func (c *Controller) Load(src string) error {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return ErrClosed
	}
	c.resetLocked()
	c.setLocked(Status{State: StateEmpty})
	c.setLocked(Status{State: StateLoading, Source: src, Simulated: IsSimulated(src)})

	switch {
	case IsSimulated(src):
		st := c.st
		st.State = StateReady
		st.Duration = c.simDuration
		c.setLocked(st)
		if c.autoPlay {
			c.playLocked()
		}
	case src == "":
		c.failLocked(CodeUnsupported, errors.New("playback: empty source"))
	default:
		ctx, cancel := context.WithTimeout(context.Background(), c.loadTimeout)
		c.cancelLoad = cancel
		go c.load(ctx, c.gen, src)
	}
	c.mu.Unlock()

	c.flush()
	return nil
}

func (c *Controller) load(ctx context.Context, gen uint64, src string) {
	d, err := c.fetcher.Fetch(ctx, src)

	c.mu.Lock()
	if gen != c.gen {
		c.mu.Unlock()
		return
	}
	c.cancelLoad()
	c.cancelLoad = nil
	if err != nil {
		c.failLocked(classify(ctx, err), err)
	} else {
		st := c.st
		st.State = StateReady
		st.Duration = d
		c.setLocked(st)
		if c.autoPlay {
			c.playLocked()
		}
	}
	c.mu.Unlock()

	c.flush()
}

// Play starts or resumes playback. From Ended it restarts at zero.
func (c *Controller) Play() error {
	c.mu.Lock()
	switch {
	case c.closed:
		c.mu.Unlock()
		return ErrClosed
	case c.st.State == StateEnded:
		c.st.Position = 0
	case c.st.State != StateReady && c.st.State != StatePaused:
		c.mu.Unlock()
		return ErrInvalidState
	}
	c.playLocked()
	c.mu.Unlock()

	c.flush()
	return nil
}

// Pause stops the clock at the current position.
func (c *Controller) Pause() error {
	c.mu.Lock()
	if c.st.State != StatePlaying {
		c.mu.Unlock()
		return ErrInvalidState
	}
	st := c.st
	st.Position = c.positionLocked()
	st.State = StatePaused
	c.stopTimerLocked()
	c.setLocked(st)
	c.mu.Unlock()

	c.flush()
	return nil
}

// Seek moves to pos, clamped into [0, duration]. It is valid only while
// Playing or Paused and does nothing for simulated sources.
func (c *Controller) Seek(pos time.Duration) error {
	c.mu.Lock()
	if c.st.State != StatePlaying && c.st.State != StatePaused {
		c.mu.Unlock()
		return ErrInvalidState
	}
	if c.st.Simulated {
		c.mu.Unlock()
		return nil
	}
	st := c.st
	st.Position = max(0, min(pos, st.Duration))
	c.offset = st.Position
	c.playStart = c.now()
	c.setLocked(st)
	c.mu.Unlock()

	c.flush()
	return nil
}

// Fail ends the current attempt with Error. Media drivers call it when a
// source breaks while loading or playing; it is not valid in other states.
func (c *Controller) Fail(code ErrorCode, err error) error {
	c.mu.Lock()
	switch {
	case c.closed:
		c.mu.Unlock()
		return ErrClosed
	case c.st.State == StateLoading:
		if c.cancelLoad != nil {
			c.cancelLoad()
			c.cancelLoad = nil
		}
		c.gen++
	case c.st.State == StatePlaying:
		c.st.Position = c.positionLocked()
	default:
		c.mu.Unlock()
		return ErrInvalidState
	}
	c.failLocked(code, err)
	c.mu.Unlock()

	c.flush()
	return nil
}

// Wait blocks until the current attempt reaches Ended or Error, or ctx is
// done.
func (c *Controller) Wait(ctx context.Context) (Status, error) {
	for {
		c.mu.Lock()
		st, ch := c.st, c.changed
		c.mu.Unlock()
		if st.State.Terminal() {
			return st, nil
		}
		if c.isClosed() {
			return st, ErrClosed
		}
		select {
		case <-ch:
		case <-ctx.Done():
			return st, ctx.Err()
		}
	}
}

// Close stops any load or timer. The controller cannot be reused.
func (c *Controller) Close() {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return
	}
	c.resetLocked()
	c.closed = true
	c.setLocked(Status{State: StateEmpty})
	c.mu.Unlock()

	c.flush()
}

func (c *Controller) isClosed() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.closed
}

// playLocked enters Playing and starts the timer.
func (c *Controller) playLocked() {
	c.stopTimerLocked()
	st := c.st
	st.State = StatePlaying
	c.offset = st.Position
	c.playStart = c.now()
	stop := make(chan struct{})
	c.stopTimer = stop
	go c.run(stop)
	c.setLocked(st)
}

// run ticks until stop is closed or playback ends.
func (c *Controller) run(stop chan struct{}) {
	t := time.NewTicker(c.tick)
	defer t.Stop()
	for {
		select {
		case <-stop:
			return
		case <-t.C:
			more := c.advance(stop)
			c.flush()
			if !more {
				return
			}
		}
	}
}

// advance moves the clock one tick. Ticks of a timer that has been stopped
// are dropped here, under the lock that stopped it.
func (c *Controller) advance(stop chan struct{}) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.stopTimer != stop || c.st.State != StatePlaying {
		return false
	}
	st := c.st
	if st.Simulated {
		st.Position += c.tick
	} else {
		st.Position = c.positionLocked()
	}
	more := true
	if st.Position >= st.Duration {
		st.Position = st.Duration
		st.State = StateEnded
		c.stopTimerLocked()
		more = false
	}
	c.setLocked(st)
	return more
}

// positionLocked is the wall-clock position of a real source.
func (c *Controller) positionLocked() time.Duration {
	if c.st.State != StatePlaying || c.st.Simulated {
		return c.st.Position
	}
	return min(c.offset+c.now().Sub(c.playStart), c.st.Duration)
}

func (c *Controller) failLocked(code ErrorCode, err error) {
	c.stopTimerLocked()
	st := c.st
	st.State = StateError
	st.Code = code
	st.Err = err
	c.setLocked(st)
}

// resetLocked stops the timer, abandons any load and bumps the generation so
// late load results are ignored.
func (c *Controller) resetLocked() {
	c.stopTimerLocked()
	if c.cancelLoad != nil {
		c.cancelLoad()
		c.cancelLoad = nil
	}
	c.gen++
	c.offset = 0
}

func (c *Controller) stopTimerLocked() {
	if c.stopTimer != nil {
		close(c.stopTimer)
		c.stopTimer = nil
	}
}

// setLocked stores st, wakes waiters and queues st for the change callback.
func (c *Controller) setLocked(st Status) {
	c.st = st
	close(c.changed)
	c.changed = make(chan struct{})
	if c.onChange != nil {
		c.pending = append(c.pending, st)
	}
}

// flush delivers queued events in order. If another goroutine is already
// delivering, it picks up this caller's events before it lets go, so flush
// never waits on a running callback.
func (c *Controller) flush() {
	if c.onChange == nil {
		return
	}
	for {
		if !c.deliver.TryLock() {
			return
		}
		for {
			c.mu.Lock()
			if len(c.pending) == 0 {
				c.mu.Unlock()
				break
			}
			ev := c.pending[0]
			c.pending = c.pending[1:]
			c.mu.Unlock()
			c.onChange(ev)
		}
		c.deliver.Unlock()

		c.mu.Lock()
		more := len(c.pending) > 0
		c.mu.Unlock()
		if !more {
			return
		}
	}
}
