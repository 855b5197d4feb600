package session

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewManager(t *testing.T) {
	manager := NewManager(time.Minute)
	require.NotNil(t, manager)
	assert.Equal(t, 0, manager.Count())
	assert.Equal(t, time.Minute, manager.OfflineTimeout())
}

func TestManagerGetCreatesOnFirstUse(t *testing.T) {
	manager := NewManager(time.Minute)

	s := manager.Get("P1")
	require.NotNil(t, s)
	assert.Equal(t, "P1", s.PN)
	assert.WithinDuration(t, time.Now(), s.FirstSeen, time.Second)
	assert.Equal(t, 1, manager.Count())

	// Same device yields the same session.
	assert.Same(t, s, manager.Get("P1"))
	assert.Equal(t, 1, manager.Count())
}

func TestManagerLookup(t *testing.T) {
	manager := NewManager(time.Minute)

	_, exists := manager.Lookup("P1")
	assert.False(t, exists)

	created := manager.Get("P1")
	found, exists := manager.Lookup("P1")
	require.True(t, exists)
	assert.Same(t, created, found)
}

func TestSessionStateTransitions(t *testing.T) {
	s := NewSession("P1")
	assert.Equal(t, PollStateUnknown, s.State(time.Minute))

	s.Touch()
	assert.Equal(t, PollStateOnline, s.State(time.Minute))

	// Short of the threshold a session stays online.
	s.Fail(errors.New("timeout"))
	s.Fail(errors.New("timeout"))
	assert.Equal(t, PollStateOnline, s.State(time.Minute))

	s.Fail(errors.New("timeout"))
	assert.Equal(t, PollStateDegraded, s.State(time.Minute))

	s.Touch()
	assert.Equal(t, PollStateOnline, s.State(time.Minute))
	assert.Equal(t, int64(0), s.ConsecutiveFailures)
}

func TestSessionOfflineAfterTimeout(t *testing.T) {
	s := NewSession("P1")
	s.Touch()
	s.LastSuccess = time.Now().Add(-2 * time.Minute)

	assert.Equal(t, PollStateOffline, s.State(time.Minute))
}

func TestSessionNeverSucceededButFailingIsOffline(t *testing.T) {
	s := NewSession("P1")
	s.Fail(errors.New("no route"))
	assert.Equal(t, PollStateOffline, s.State(time.Minute))
}

func TestSessionStats(t *testing.T) {
	s := NewSession("P1")
	s.Touch()
	s.Fail(errors.New("boom"))

	stats := s.Stats(time.Minute)
	assert.Equal(t, "P1", stats.PN)
	assert.Equal(t, "online", stats.State)
	assert.Equal(t, int64(1), stats.PollsSucceeded)
	assert.Equal(t, int64(1), stats.PollsFailed)
	assert.Equal(t, int64(1), stats.ConsecutiveFailures)
	assert.Equal(t, "boom", stats.LastError)
}

func TestManagerAll(t *testing.T) {
	manager := NewManager(time.Minute)
	manager.Get("P1").Touch()
	manager.Get("P2").Fail(errors.New("down"))

	all := manager.All()
	require.Len(t, all, 2)

	byPN := make(map[string]Stats, len(all))
	for _, st := range all {
		byPN[st.PN] = st
	}
	assert.Equal(t, "online", byPN["P1"].State)
	assert.Equal(t, "offline", byPN["P2"].State)
}

func TestPollStateString(t *testing.T) {
	assert.Equal(t, "unknown", PollStateUnknown.String())
	assert.Equal(t, "online", PollStateOnline.String())
	assert.Equal(t, "degraded", PollStateDegraded.String())
	assert.Equal(t, "offline", PollStateOffline.String())
}
