package clock

import (
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var epoch = time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)

func TestVirtualClock_AdvanceAndSince(t *testing.T) {
	vc := NewVirtualClock(epoch)
	start := vc.Now()

	vc.Advance(time.Hour)
	vc.Advance(30 * time.Minute)

	assert.Equal(t, epoch.Add(90*time.Minute), vc.Now())
	assert.Equal(t, 90*time.Minute, vc.Since(start))
}

func TestVirtualClock_NegativeAdvancePanics(t *testing.T) {
	vc := NewVirtualClock(epoch)
	assert.Panics(t, func() { vc.Advance(-time.Second) })
}

func TestVirtualClock_SetPastPanics(t *testing.T) {
	vc := NewVirtualClock(epoch)
	assert.Panics(t, func() { vc.Set(epoch.Add(-time.Hour)) })
}

func TestVirtualClock_AfterFiresOnAdvance(t *testing.T) {
	vc := NewVirtualClock(epoch)
	ch := vc.After(time.Second)
	require.Equal(t, 1, vc.Pending())

	select {
	case <-ch:
		t.Fatal("After fired before the clock moved")
	default:
	}

	vc.Advance(time.Second)

	select {
	case got := <-ch:
		assert.Equal(t, epoch.Add(time.Second), got)
	default:
		t.Fatal("After did not fire once the deadline was reached")
	}
	assert.Equal(t, 0, vc.Pending())
}

func TestVirtualClock_AfterZeroFiresImmediately(t *testing.T) {
	vc := NewVirtualClock(epoch)
	select {
	case <-vc.After(0):
	default:
		t.Fatal("After(0) should fire immediately")
	}
	assert.Equal(t, 0, vc.Pending())
}

func TestVirtualClock_SetFiresDueWaitersOnly(t *testing.T) {
	vc := NewVirtualClock(epoch)
	early := vc.After(time.Second)
	late := vc.After(time.Hour)

	vc.Set(epoch.Add(time.Minute))

	select {
	case <-early:
	default:
		t.Error("early waiter should have fired")
	}
	select {
	case <-late:
		t.Error("late waiter should not have fired")
	default:
	}
	assert.Equal(t, 1, vc.Pending())
}

func TestVirtualClock_ConcurrentAccess(t *testing.T) {
	vc := NewVirtualClock(epoch)

	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_ = vc.Now()
			_ = vc.After(time.Millisecond)
		}()
	}
	wg.Add(1)
	go func() {
		defer wg.Done()
		for i := 0; i < 100; i++ {
			vc.Advance(time.Millisecond)
		}
	}()
	wg.Wait()

	assert.Equal(t, epoch.Add(100*time.Millisecond), vc.Now())
}

func TestClocksImplementClock(t *testing.T) {
	var _ Clock = NewRealClock()
	var _ Clock = NewVirtualClock(epoch)
	assert.IsType(t, &RealClock{}, OrReal(nil))
}
