package debounce

import (
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type firing struct {
	at  time.Duration
	arg string
}

func recorder(clock *FakeClock) (*[]firing, func(string)) {
	var mu sync.Mutex
	fired := &[]firing{}
	return fired, func(arg string) {
		mu.Lock()
		defer mu.Unlock()
		*fired = append(*fired, firing{at: clock.Now(), arg: arg})
	}
}

func TestDebouncer_CoalescesBurstIntoTrailingCall(t *testing.T) {
	clock := NewFakeClock()
	fired, fn := recorder(clock)
	d := New(1000*time.Millisecond, fn, WithClock(clock))

	d.Call("t0")
	clock.Advance(200 * time.Millisecond)
	d.Call("t200")
	clock.Advance(200 * time.Millisecond)
	d.Call("t400")

	clock.Advance(999 * time.Millisecond)
	require.Empty(t, *fired, "nothing fires before the quiet period ends")

	clock.Advance(1 * time.Millisecond)
	require.Len(t, *fired, 1)
	assert.Equal(t, 1400*time.Millisecond, (*fired)[0].at)
	assert.Equal(t, "t400", (*fired)[0].arg)

	clock.Advance(5 * time.Second)
	assert.Len(t, *fired, 1, "no further calls")
}

func TestDebouncer_SeparatedCallsFireIndependently(t *testing.T) {
	clock := NewFakeClock()
	fired, fn := recorder(clock)
	d := New(time.Second, fn, WithClock(clock))

	d.Call("first")
	clock.Advance(time.Second)
	d.Call("second")
	clock.Advance(time.Second)

	require.Len(t, *fired, 2)
	assert.Equal(t, "first", (*fired)[0].arg)
	assert.Equal(t, time.Second, (*fired)[0].at)
	assert.Equal(t, "second", (*fired)[1].arg)
	assert.Equal(t, 2*time.Second, (*fired)[1].at)
}

func TestDebouncer_NoLeadingCall(t *testing.T) {
	clock := NewFakeClock()
	fired, fn := recorder(clock)
	d := New(time.Second, fn, WithClock(clock))

	d.Call("x")
	assert.Empty(t, *fired)
	assert.True(t, d.Pending())
}

func TestDebouncer_Flush(t *testing.T) {
	clock := NewFakeClock()
	fired, fn := recorder(clock)
	d := New(time.Second, fn, WithClock(clock))

	assert.False(t, d.Flush(), "nothing to flush")

	d.Call("a")
	d.Call("b")
	assert.True(t, d.Flush())
	require.Len(t, *fired, 1)
	assert.Equal(t, "b", (*fired)[0].arg)
	assert.Equal(t, time.Duration(0), (*fired)[0].at)

	clock.Advance(2 * time.Second)
	assert.Len(t, *fired, 1, "flushed call must not fire again")
	assert.False(t, d.Pending())
}

func TestDebouncer_Stop(t *testing.T) {
	clock := NewFakeClock()
	fired, fn := recorder(clock)
	d := New(time.Second, fn, WithClock(clock))

	d.Call("a")
	assert.True(t, d.Stop())
	clock.Advance(2 * time.Second)
	assert.Empty(t, *fired)
	assert.False(t, d.Stop())
}

func TestDebouncer_RealClock(t *testing.T) {
	done := make(chan string, 4)
	d := New(20*time.Millisecond, func(s string) { done <- s })

	d.Call("a")
	d.Call("b")
	d.Call("c")

	select {
	case got := <-done:
		assert.Equal(t, "c", got)
	case <-time.After(2 * time.Second):
		t.Fatal("debounced call never fired")
	}

	select {
	case extra := <-done:
		t.Fatalf("unexpected extra call %q", extra)
	case <-time.After(100 * time.Millisecond):
	}
}
