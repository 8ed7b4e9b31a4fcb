package notice

import (
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestShow_AutoClears(t *testing.T) {
	s := New()
	s.Show(Info, "Saved", 20*time.Millisecond)

	msg, ok := s.Current()
	require.True(t, ok)
	assert.Equal(t, Message{Level: Info, Text: "Saved"}, msg)

	require.Eventually(t, func() bool {
		_, ok := s.Current()
		return !ok
	}, time.Second, 5*time.Millisecond)
}

func TestShow_OlderTimerNeverClearsNewerMessage(t *testing.T) {
	s := New()
	s.Show(Error, "first", 20*time.Millisecond)
	s.Show(Success, "second", 200*time.Millisecond)

	time.Sleep(60 * time.Millisecond)
	msg, ok := s.Current()
	require.True(t, ok)
	assert.Equal(t, "second", msg.Text)
}

func TestShow_DefaultTTLs(t *testing.T) {
	s := New()
	s.Error("boom")
	time.Sleep(ErrorTTL / 2)
	_, ok := s.Current()
	assert.True(t, ok)

	require.Eventually(t, func() bool {
		_, ok := s.Current()
		return !ok
	}, 2*ErrorTTL, 20*time.Millisecond)
}

func TestSubscribeAndClear(t *testing.T) {
	s := New()
	var mu sync.Mutex
	var seen []string
	s.Subscribe(func(m *Message) {
		mu.Lock()
		defer mu.Unlock()
		if m == nil {
			seen = append(seen, "<cleared>")
			return
		}
		seen = append(seen, m.Text)
	})

	s.Success("Published")
	s.Clear()

	mu.Lock()
	defer mu.Unlock()
	assert.Equal(t, []string{"Published", "<cleared>"}, seen)
}

func TestNilStoreDiscards(t *testing.T) {
	var s *Store
	s.Error("ignored")
	s.Clear()
	_, ok := s.Current()
	assert.False(t, ok)
}
