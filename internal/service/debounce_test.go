package service

import (
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

type collector[T any] struct {
	mu  sync.Mutex
	got []T
}

func (c *collector[T]) add(v T) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.got = append(c.got, v)
}

func (c *collector[T]) values() []T {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]T(nil), c.got...)
}

func TestDebouncer_EmitsOnlySettledValue(t *testing.T) {
	var c collector[string]
	d := NewDebouncer(100*time.Millisecond, c.add)
	defer d.Stop()

	for _, v := range []string{"p", "ph", "pho", "phone"} {
		d.Push(v)
		time.Sleep(5 * time.Millisecond)
	}
	require.True(t, d.Pending())

	require.Eventually(t, func() bool { return len(c.values()) == 1 }, time.Second, 5*time.Millisecond)
	require.Equal(t, []string{"phone"}, c.values())
	require.False(t, d.Pending())

	// тишина после срабатывания: новых вызовов нет
	time.Sleep(150 * time.Millisecond)
	require.Len(t, c.values(), 1)
}

func TestDebouncer_FlushCancelStop(t *testing.T) {
	var c collector[int]
	d := NewDebouncer(time.Hour, c.add)

	d.Push(1)
	d.Flush()
	require.Equal(t, []int{1}, c.values())

	d.Flush()
	require.Len(t, c.values(), 1)

	d.Push(2)
	d.Cancel()
	d.Flush()
	require.Len(t, c.values(), 1)

	d.Stop()
	d.Push(3)
	d.Flush()
	require.Len(t, c.values(), 1)
	require.False(t, d.Pending())
}

func TestDebouncer_ZeroDelayIsSynchronous(t *testing.T) {
	var c collector[string]
	d := NewDebouncer(0, c.add)
	d.Push("a")
	d.Push("b")
	require.Equal(t, []string{"a", "b"}, c.values())
}
