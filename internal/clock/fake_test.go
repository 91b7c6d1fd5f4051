package clock

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var epoch = time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)

func TestFake_After(t *testing.T) {
	f := NewFake(epoch)
	ch := f.After(5 * time.Second)

	f.Advance(4 * time.Second)
	select {
	case <-ch:
		t.Fatal("fired early")
	default:
	}

	f.Advance(time.Second)
	select {
	case got := <-ch:
		assert.Equal(t, epoch.Add(5*time.Second), got)
	default:
		t.Fatal("did not fire")
	}
	assert.Equal(t, 0, f.Pending())
}

func TestFake_AfterNonPositive(t *testing.T) {
	f := NewFake(epoch)
	select {
	case got := <-f.After(0):
		assert.Equal(t, epoch, got)
	default:
		t.Fatal("zero duration should fire immediately")
	}
}

func TestFake_Ticker(t *testing.T) {
	f := NewFake(epoch)
	ticker := f.NewTicker(time.Second)

	for i := 1; i <= 3; i++ {
		f.Advance(time.Second)
		got := <-ticker.C
		assert.Equal(t, epoch.Add(time.Duration(i)*time.Second), got)
	}

	ticker.Stop()
	f.Advance(time.Second)
	select {
	case <-ticker.C:
		t.Fatal("stopped ticker fired")
	default:
	}
}

func TestFake_WaitForTimers(t *testing.T) {
	f := NewFake(epoch)
	done := make(chan struct{})

	go func() {
		<-f.After(time.Minute)
		close(done)
	}()

	f.WaitForTimers(1)
	f.Advance(time.Minute)

	select {
	case <-done:
	case <-time.After(time.Second):
		require.Fail(t, "waiter never released")
	}
}
