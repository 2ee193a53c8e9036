package ring

import (
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestThreadedConsumerProcessesOnNotify(t *testing.T) {
	r, l := newTestRing(t, 16)
	r.mode = Threaded

	processed := make(chan struct{}, 1)
	r.Start(func() {
		for r.Available() > 0 {
			r.Skip(r.Available())
			r.PublishHead()
		}
		select {
		case processed <- struct{}{}:
		default:
		}
	})
	defer r.Stop()

	copy(l.Shared[64:64+8], []byte{1, 2, 3, 4, 5, 6, 7, 8})
	pushTail(l, 8)
	r.Notify()

	select {
	case <-processed:
	case <-time.After(2 * time.Second):
		t.Fatal("consumer did not process after Notify")
	}
}

func TestThreadedConsumerStopIsIdempotent(t *testing.T) {
	r, _ := newTestRing(t, 16)
	r.mode = Threaded
	r.Start(func() {})
	r.Stop()
	require.NotPanics(t, func() { r.Stop() })
}

func TestPolledModeNotifySetsEdgeFlag(t *testing.T) {
	r, _ := newTestRing(t, 16)
	require.False(t, r.ConsumeNotification())
	r.Notify()
	require.True(t, r.ConsumeNotification())
	require.False(t, r.ConsumeNotification())
}

func TestPolledModeStartIsNoOp(t *testing.T) {
	r, _ := newTestRing(t, 16)
	var calls int32
	r.Start(func() { atomic.AddInt32(&calls, 1) })
	time.Sleep(50 * time.Millisecond)
	require.Zero(t, atomic.LoadInt32(&calls))
}
