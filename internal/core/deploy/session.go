package deploy

import (
	"time"

	"wording-sync/internal/host"
	"wording-sync/internal/wording"
)

// Defaults for page settling.
const (
	DefaultSettleDelay  = 500 * time.Millisecond
	DefaultReadyTimeout = 5 * time.Second
)

// Clock abstracts time for deterministic tests.
type Clock interface {
	Now() time.Time
	Sleep(d time.Duration)
}

type realClock struct{}

func (realClock) Now() time.Time        { return time.Now() }
func (realClock) Sleep(d time.Duration) { time.Sleep(d) }

// Session holds the wording data of one operator flow and drives the host.
// It is created at flow start and discarded on reset; nothing is global.
// A Session is not safe for concurrent use: the host has a single active page.
type Session struct {
	host         host.Host
	data         *wording.Data
	settleDelay  time.Duration
	readyTimeout time.Duration
	clock        Clock
}

// Option configures a Session.
type Option func(*Session)

// WithSettleDelay sets the fixed wait after a page switch.
func WithSettleDelay(d time.Duration) Option {
	return func(s *Session) {
		if d >= 0 {
			s.settleDelay = d
		}
	}
}

// WithReadyTimeout bounds the wait on hosts implementing host.ReadyWaiter.
func WithReadyTimeout(d time.Duration) Option {
	return func(s *Session) {
		if d > 0 {
			s.readyTimeout = d
		}
	}
}

// WithClock replaces the wall clock, mainly for tests.
func WithClock(c Clock) Option {
	return func(s *Session) {
		if c != nil {
			s.clock = c
		}
	}
}

// NewSession creates a session bound to h.
func NewSession(h host.Host, opts ...Option) *Session {
	s := &Session{
		host:         h,
		settleDelay:  DefaultSettleDelay,
		readyTimeout: DefaultReadyTimeout,
		clock:        realClock{},
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Load replaces the wording data wholesale.
func (s *Session) Load(d wording.Data) {
	c := d.Clone()
	s.data = &c
}

// Loaded reports whether wording data is present.
func (s *Session) Loaded() bool { return s.data != nil }

// Data returns a copy of the loaded data.
func (s *Session) Data() (wording.Data, bool) {
	if s.data == nil {
		return wording.Data{}, false
	}
	return s.data.Clone(), true
}

// Reset drops the loaded data.
func (s *Session) Reset() { s.data = nil }

// Host returns the bound host.
func (s *Session) Host() host.Host { return s.host }
