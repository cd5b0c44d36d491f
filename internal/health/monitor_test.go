package health

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type flag struct{ down atomic.Bool }

func (f *flag) HealthPing(ctx context.Context) error {
	if f.down.Load() {
		return errors.New("unreachable")
	}
	return ctx.Err()
}

func TestMonitor_StartsUnhealthy(t *testing.T) {
	m := NewMonitor(zerolog.Nop(), time.Second).Add("store", PingCheck(&flag{}))
	assert.False(t, m.IsHealthy())
	assert.Empty(t, m.Components())
}

func TestMonitor_Transitions(t *testing.T) {
	st, bus := &flag{}, &flag{}
	m := NewMonitor(zerolog.Nop(), time.Second).
		Add("store", PingCheck(st)).
		Add("events", PingCheck(bus))
	ctx := context.Background()

	m.Check(ctx)
	require.True(t, m.IsHealthy())
	comps := m.Components()
	require.Len(t, comps, 2)
	assert.True(t, comps["store"].Healthy)
	assert.False(t, comps["store"].CheckedAt.IsZero())

	bus.down.Store(true)
	m.Check(ctx)
	assert.False(t, m.IsHealthy())
	comps = m.Components()
	assert.True(t, comps["store"].Healthy)
	assert.False(t, comps["events"].Healthy)
	assert.Equal(t, "unreachable", comps["events"].Error)

	bus.down.Store(false)
	m.Check(ctx)
	assert.True(t, m.IsHealthy())
	assert.Empty(t, m.Components()["events"].Error)
}

func TestMonitor_CheckTimeout(t *testing.T) {
	slow := func(ctx context.Context) error {
		<-ctx.Done()
		return ctx.Err()
	}
	m := NewMonitor(zerolog.Nop(), 20*time.Millisecond).Add("slow", slow)

	m.Check(context.Background())
	assert.False(t, m.IsHealthy())
	assert.Contains(t, m.Components()["slow"].Error, "deadline exceeded")
}

func TestMonitor_NoComponentsIsHealthy(t *testing.T) {
	m := NewMonitor(zerolog.Nop(), 0)
	m.Check(context.Background())
	assert.True(t, m.IsHealthy())
}

func TestMonitor_StartStopsOnCancel(t *testing.T) {
	m := NewMonitor(zerolog.Nop(), time.Second).Add("store", PingCheck(&flag{}))
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		m.Start(ctx, 10*time.Millisecond)
		close(done)
	}()

	require.Eventually(t, m.IsHealthy, time.Second, 5*time.Millisecond)
	cancel()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatalf("Start did not return after cancel")
	}
}
