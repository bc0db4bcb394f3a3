package loginlimit

import (
	"hash/maphash"
	"sync"
	"sync/atomic"
	"time"

	"github.com/jellydator/ttlcache/v3"
	"github.com/rs/zerolog/log"
)

const (
	DefaultAttemptLimit = 5
	DefaultWindow       = 1 * time.Hour

	lockStripes = 64
)

// Settings configures an AttemptTracker. Zero values fall back to the defaults.
type Settings struct {
	Limit  int
	Window time.Duration

	// MaxTracked caps how many usernames are held at once. When the cap is hit the least recently used entry is
	// dropped, which resets that username's count. 0 means no cap.
	MaxTracked uint64

	Now func() time.Time
}

type attempts struct {
	count   int
	written time.Time
}

// AttemptTracker counts failed logins per username. A username's count is discarded once the window has passed
// since the last failure was recorded against it, or as soon as a successful login is recorded.
//
// All methods are safe for concurrent use. Operations on the same username are serialized; operations on
// different usernames only contend when they hash to the same lock stripe.
type AttemptTracker struct {
	locks [lockStripes]sync.Mutex
	seed  maphash.Seed

	limit  atomic.Int64
	window atomic.Int64

	now   func() time.Time
	cache *ttlcache.Cache[string, attempts]

	reaperLock sync.Mutex
	stopReaper chan struct{}
	reaperDone chan struct{}
	reaping    atomic.Bool
}

func NewAttemptTracker(s Settings) *AttemptTracker {
	if s.Limit <= 0 {
		s.Limit = DefaultAttemptLimit
	}

	if s.Window <= 0 {
		s.Window = DefaultWindow
	}

	if s.Now == nil {
		s.Now = time.Now
	}

	t := &AttemptTracker{
		seed: maphash.MakeSeed(),
		now:  s.Now,
	}
	t.limit.Store(int64(s.Limit))
	t.window.Store(int64(s.Window))

	// entries never expire inside the cache; t.now and the current window decide, see expired
	opts := []ttlcache.Option[string, attempts]{
		ttlcache.WithTTL[string, attempts](ttlcache.NoTTL),
		ttlcache.WithLoader[string, attempts](ttlcache.LoaderFunc[string, attempts](t.loadEmpty)),
	}
	if s.MaxTracked > 0 {
		opts = append(opts, ttlcache.WithCapacity[string, attempts](s.MaxTracked))
	}

	t.cache = ttlcache.New[string, attempts](opts...)

	return t
}

// loadEmpty fills in a zero count for a username we have never seen (or whose entry has aged out). The zero entry is
// stored, so even a lookup leaves something behind; it ages out after the window like any other entry.
func (t *AttemptTracker) loadEmpty(c *ttlcache.Cache[string, attempts], username string) *ttlcache.Item[string, attempts] {
	return c.Set(username, attempts{written: t.now()}, ttlcache.NoTTL)
}

func (t *AttemptTracker) lockFor(username string) *sync.Mutex {
	return &t.locks[maphash.String(t.seed, username)%lockStripes]
}

func (t *AttemptTracker) expired(a attempts) bool {
	return !t.now().Before(a.written.Add(t.Window()))
}

// current returns the live entry for username. Callers must hold the stripe lock for username.
func (t *AttemptTracker) current(username string) attempts {
	a := t.cache.Get(username).Value()

	if t.expired(a) {
		a = attempts{written: t.now()}
		t.cache.Set(username, a, ttlcache.NoTTL)
	}

	return a
}

// RegisterFailure adds one failed attempt to username's count, restarts its window and returns the new count.
func (t *AttemptTracker) RegisterFailure(username string) int {
	l := t.lockFor(username)
	l.Lock()
	defer l.Unlock()

	a := t.current(username)
	a.count++
	a.written = t.now()
	t.cache.Set(username, a, ttlcache.NoTTL)

	limit := t.Limit()
	if a.count == limit {
		log.Warn().Str("username", username).Int("failure_count", a.count).Dur("window", t.Window()).Msg("username reached login attempt limit")
	} else {
		log.Debug().Str("username", username).Int("failure_count", a.count).Int("limit", limit).Msg("recorded login failure")
	}

	return a.count
}

// RegisterSuccess clears username's count. It is a no-op if there is nothing to clear.
func (t *AttemptTracker) RegisterSuccess(username string) {
	l := t.lockFor(username)
	l.Lock()
	defer l.Unlock()

	t.cache.Delete(username)
	log.Debug().Str("username", username).Msg("cleared login failures")
}

// Failures returns the number of failed attempts currently counted against username.
func (t *AttemptTracker) Failures(username string) int {
	l := t.lockFor(username)
	l.Lock()
	defer l.Unlock()

	return t.current(username).count
}

// HasAttemptsRemaining reports whether username is still under the attempt limit. A false result means logins for
// username should be refused until the window passes or the count is cleared.
func (t *AttemptTracker) HasAttemptsRemaining(username string) bool {
	return t.Failures(username) < t.Limit()
}

func (t *AttemptTracker) AttemptsRemaining(username string) int {
	return max(0, t.Limit()-t.Failures(username))
}

func (t *AttemptTracker) Limit() int {
	return int(t.limit.Load())
}

func (t *AttemptTracker) Window() time.Duration {
	return time.Duration(t.window.Load())
}

// Reconfigure swaps the limit and window of a running tracker. Existing counts are kept and judged against the new
// values from here on. Non-positive values leave the current setting alone.
func (t *AttemptTracker) Reconfigure(limit int, window time.Duration) {
	if limit > 0 {
		t.limit.Store(int64(limit))
	}

	if window > 0 {
		t.window.Store(int64(window))
	}

	log.Info().Int("limit", t.Limit()).Dur("window", t.Window()).Msg("reconfigured login attempt tracker")
}

// sweep drops every entry whose window has passed and returns how many it dropped.
func (t *AttemptTracker) sweep() int {
	var stale []string
	t.cache.Range(func(item *ttlcache.Item[string, attempts]) bool {
		if t.expired(item.Value()) {
			stale = append(stale, item.Key())
		}
		return true
	})

	removed := 0
	for _, username := range stale {
		l := t.lockFor(username)
		l.Lock()

		// recheck under the lock, the entry may have been written since Range saw it
		item := t.cache.Get(username, ttlcache.WithLoader[string, attempts](nil))
		if item != nil && t.expired(item.Value()) {
			t.cache.Delete(username)
			removed++
		}

		l.Unlock()
	}

	if removed > 0 {
		log.Debug().Int("removed", removed).Int("remaining", t.cache.Len()).Msg("swept expired login attempts")
	}

	return removed
}

func (t *AttemptTracker) sweepInterval() time.Duration {
	return max(t.Window()/2, time.Second)
}

func (t *AttemptTracker) reap(stop <-chan struct{}, done chan<- struct{}) {
	defer close(done)

	timer := time.NewTimer(t.sweepInterval())
	defer timer.Stop()

	for {
		select {
		case <-stop:
			return
		case <-timer.C:
			t.sweep()
			timer.Reset(t.sweepInterval())
		}
	}
}

// Start launches a goroutine that periodically sweeps aged out entries from memory. Without it entries are only
// dropped when they are next touched. Calling Start on a tracker that is already sweeping does nothing.
func (t *AttemptTracker) Start() {
	t.reaperLock.Lock()
	defer t.reaperLock.Unlock()

	if t.stopReaper != nil {
		return
	}

	t.stopReaper = make(chan struct{})
	t.reaperDone = make(chan struct{})
	t.reaping.Store(true)

	log.Debug().Dur("interval", t.sweepInterval()).Msg("starting login attempt reaper")
	go t.reap(t.stopReaper, t.reaperDone)
}

// Stop halts the sweeping goroutine and waits for it to exit.
func (t *AttemptTracker) Stop() {
	t.reaperLock.Lock()
	defer t.reaperLock.Unlock()

	if t.stopReaper == nil {
		return
	}

	close(t.stopReaper)
	<-t.reaperDone

	t.stopReaper = nil
	t.reaperDone = nil
	t.reaping.Store(false)

	log.Debug().Msg("stopped login attempt reaper")
}
