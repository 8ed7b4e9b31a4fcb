// Package notice holds the single transient message banner shared by the
// client flows. A newer message replaces the current one and an older
// auto-clear timer never removes a newer message.
package notice

import (
	"sync"
	"time"
)

type Level string

const (
	Info    Level = "info"
	Success Level = "success"
	Warning Level = "warning"
	Error   Level = "error"
)

const (
	ErrorTTL   = 1500 * time.Millisecond
	DefaultTTL = 3 * time.Second
)

type Message struct {
	Level Level
	Text  string
}

type Store struct {
	mu      sync.Mutex
	current *Message
	gen     uint64
	timer   *time.Timer
	subs    []func(*Message)
}

func New() *Store {
	return &Store{}
}

// Show replaces the banner. ttl <= 0 picks ErrorTTL for errors and DefaultTTL otherwise.
// Methods are safe on a nil Store, which discards messages.
func (s *Store) Show(level Level, text string, ttl time.Duration) {
	if s == nil {
		return
	}
	if ttl <= 0 {
		ttl = DefaultTTL
		if level == Error {
			ttl = ErrorTTL
		}
	}

	s.mu.Lock()
	s.gen++
	gen := s.gen
	msg := &Message{Level: level, Text: text}
	s.current = msg
	if s.timer != nil {
		s.timer.Stop()
	}
	s.timer = time.AfterFunc(ttl, func() { s.expire(gen) })
	subs := append([]func(*Message){}, s.subs...)
	s.mu.Unlock()

	for _, fn := range subs {
		fn(msg)
	}
}

func (s *Store) Error(text string) {
	s.Show(Error, text, 0)
}

func (s *Store) Success(text string) {
	s.Show(Success, text, 0)
}

// Current returns the visible message, if any.
func (s *Store) Current() (Message, bool) {
	if s == nil {
		return Message{}, false
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.current == nil {
		return Message{}, false
	}
	return *s.current, true
}

func (s *Store) Clear() {
	if s == nil {
		return
	}
	s.mu.Lock()
	s.gen++
	if s.timer != nil {
		s.timer.Stop()
		s.timer = nil
	}
	s.current = nil
	subs := append([]func(*Message){}, s.subs...)
	s.mu.Unlock()

	for _, fn := range subs {
		fn(nil)
	}
}

// Subscribe registers fn for every change; fn receives nil when the banner clears.
func (s *Store) Subscribe(fn func(*Message)) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.subs = append(s.subs, fn)
}

func (s *Store) expire(gen uint64) {
	s.mu.Lock()
	if gen != s.gen {
		s.mu.Unlock()
		return
	}
	s.current = nil
	s.timer = nil
	subs := append([]func(*Message){}, s.subs...)
	s.mu.Unlock()

	for _, fn := range subs {
		fn(nil)
	}
}
