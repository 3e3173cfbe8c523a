package clock

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

var epoch = time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)

func TestFakeAfterFiresOnAdvance(t *testing.T) {
	c := Fake(epoch)
	ch := c.After(10 * time.Second)

	c.Advance(5 * time.Second)
	select {
	case <-ch:
		t.Fatal("waiter fired before its deadline")
	default:
	}
	assert.Equal(t, 1, c.PendingCount())

	c.Advance(5 * time.Second)
	select {
	case fired := <-ch:
		assert.Equal(t, epoch.Add(10*time.Second), fired)
	default:
		t.Fatal("waiter did not fire at its deadline")
	}
	assert.Equal(t, 0, c.PendingCount())
}

func TestFakeAfterNonPositiveFiresImmediately(t *testing.T) {
	c := Fake(epoch)
	select {
	case <-c.After(0):
	default:
		t.Fatal("After(0) should fire immediately")
	}
}

func TestFakeWaitForTimers(t *testing.T) {
	c := Fake(epoch)
	done := make(chan struct{})
	go func() {
		<-c.After(time.Minute)
		close(done)
	}()

	c.WaitForTimers(1)
	c.Advance(time.Minute)
	<-done
}

func TestMonotonicMillis(t *testing.T) {
	c := Fake(epoch)
	m := NewMonotonic(c)
	assert.Equal(t, int64(0), m.Millis())

	c.Advance(1500 * time.Millisecond)
	assert.Equal(t, int64(1500), m.Millis())
	assert.Equal(t, epoch, m.Start())

	// Going backwards never yields a negative timestamp
	c.Set(epoch.Add(-time.Second))
	assert.Equal(t, int64(0), m.Millis())
}
