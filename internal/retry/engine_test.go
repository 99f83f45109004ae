package retry

import (
	"bytes"
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	apperr "github.com/reika/escpos-bridge/internal/errors"
	"github.com/reika/escpos-bridge/internal/escpos"
	"github.com/reika/escpos-bridge/internal/status"
	"github.com/reika/escpos-bridge/internal/usbtransport"
)

func TestClassifyEventPartialWriteIsUsbError(t *testing.T) {
	err := apperr.Printer(&usbtransport.PartialWriteError{Written: 0, Requested: 10}, "short write")
	assert.Equal(t, status.EventUsbError, classifyEvent(err))
}

func TestClassifyEventOtherFailureIsPrintFail(t *testing.T) {
	err := apperr.Printer(fmt.Errorf("timeout"), "usb write timed out")
	assert.Equal(t, status.EventPrintFail, classifyEvent(err))
}

// fakeTransport records every byte written and can be scripted to return a
// short write, an error, or success on a given call.
type fakeTransport struct {
	mu       sync.Mutex
	written  bytes.Buffer
	scripted []func([]byte) (int, error)
	calls    int
	closed   bool
}

func (f *fakeTransport) Write(ctx context.Context, data []byte) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	var n int
	var err error
	if f.calls < len(f.scripted) {
		n, err = f.scripted[f.calls](data)
	} else {
		n, err = len(data), nil
	}
	f.calls++

	if err == nil && n == len(data) {
		f.written.Write(data)
		return nil
	}
	if err != nil {
		return err
	}
	return &usbtransport.PartialWriteError{Written: n, Requested: len(data)}
}

func (f *fakeTransport) Close() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.closed = true
	return nil
}

func newTestEngine(t *testing.T, scripted ...func([]byte) (int, error)) (*Engine, *fakeTransport, *status.Broadcaster, *status.EventQueue) {
	t.Helper()
	initial := &fakeTransport{scripted: scripted}
	st := status.NewBroadcaster()
	events := status.NewEventQueue(16)

	open := func() (Transport, error) {
		return &fakeTransport{}, nil
	}

	e := NewEngine(initial, open, time.Millisecond, st, events)
	return e, initial, st, events
}

func TestExecuteSucceedsOnFirstTry(t *testing.T) {
	e, transport, _, _ := newTestEngine(t)

	commands := []escpos.Command{{Type: escpos.Writeln, Text: "Hi"}}
	require.NoError(t, e.Execute(context.Background(), commands))

	written := transport.written.Bytes()
	assert.True(t, bytes.Contains(written, []byte("Hi")))
}

// TestZeroByteWriteNeverCountsAsSuccess exercises the central invariant: a
// transport reporting success with zero bytes written is always treated
// as a failure, and the engine reconnects and retries rather than
// returning.
func TestZeroByteWriteNeverCountsAsSuccess(t *testing.T) {
	first := true
	initial := &fakeTransport{scripted: []func([]byte) (int, error){
		func(data []byte) (int, error) {
			if first {
				first = false
				return 0, nil
			}
			return len(data), nil
		},
	}}
	st := status.NewBroadcaster()
	events := status.NewEventQueue(16)
	st.Publish(true)

	// A small delay in reconnect's open gives the subscriber goroutine a
	// scheduling window to observe the offline value before it is
	// overwritten by the subsequent online publish (the broadcaster's
	// subscription channel is last-value, not a queue).
	open := func() (Transport, error) {
		time.Sleep(2 * time.Millisecond)
		return &fakeTransport{}, nil
	}
	e := NewEngine(initial, open, time.Millisecond, st, events)

	var mu sync.Mutex
	var transitions []bool
	ch, cancel := st.Subscribe()
	defer cancel()
	done := make(chan struct{})
	go func() {
		for {
			select {
			case v := <-ch:
				mu.Lock()
				transitions = append(transitions, v)
				mu.Unlock()
			case <-done:
				return
			}
		}
	}()

	err := e.Execute(context.Background(), []escpos.Command{{Type: escpos.Writeln, Text: "X"}})
	require.NoError(t, err)
	time.Sleep(5 * time.Millisecond)
	close(done)

	mu.Lock()
	defer mu.Unlock()
	require.GreaterOrEqual(t, len(transitions), 1)
	assert.False(t, transitions[0])
	assert.True(t, st.Snapshot())
}

// TestPartialWriteRetries verifies a short (non-zero, non-full) write is
// also classified as a failure, not a degraded success, and reported as a
// UsbError event.
func TestPartialWriteRetries(t *testing.T) {
	attempts := 0
	e, _, _, events := newTestEngine(t, func(data []byte) (int, error) {
		attempts++
		if attempts == 1 {
			return len(data) - 1, nil
		}
		return len(data), nil
	})

	require.NoError(t, e.Execute(context.Background(), []escpos.Command{{Type: escpos.Writeln, Text: "partial"}}))
	assert.GreaterOrEqual(t, attempts, 2)

	ev, ok := events.Pop()
	require.True(t, ok)
	assert.Equal(t, status.EventUsbError, ev.Kind)
}

// TestSequentialJobsOrderedOnTransport verifies two sequential Execute
// calls produce a transport byte stream that is the exact concatenation
// of their command output, in order.
func TestSequentialJobsOrderedOnTransport(t *testing.T) {
	e, transport, _, _ := newTestEngine(t)

	require.NoError(t, e.Execute(context.Background(), []escpos.Command{{Type: escpos.Writeln, Text: "first"}}))
	firstLen := transport.written.Len()

	require.NoError(t, e.Execute(context.Background(), []escpos.Command{{Type: escpos.Writeln, Text: "second"}}))

	all := transport.written.Bytes()
	assert.True(t, bytes.Contains(all[:firstLen], []byte("first")))
	assert.True(t, bytes.Contains(all[firstLen:], []byte("second")))
	assert.False(t, bytes.Contains(all[:firstLen], []byte("second")))
}

// TestJobIDsUniqueWithinRun generates many ids in a tight loop and checks
// for collisions.
func TestJobIDsUniqueWithinRun(t *testing.T) {
	seen := make(map[string]struct{})
	for i := 0; i < 5000; i++ {
		id := generatePrintID()
		if _, ok := seen[id]; ok {
			// timestamp component can repeat across calls in the same
			// millisecond; the counter must still make every id unique.
			t.Fatalf("duplicate job id %q at iteration %d", id, i)
		}
		seen[id] = struct{}{}
	}
}

// TestCheckConnectionDoesNotRetry verifies the diagnostic probe fails
// fast, without looping or reconnecting, when the transport is broken.
func TestCheckConnectionDoesNotRetry(t *testing.T) {
	e, _, st, _ := newTestEngine(t, func(data []byte) (int, error) {
		return 0, nil
	})

	online := e.CheckConnection(context.Background())
	assert.False(t, online)
	assert.False(t, st.Snapshot())
}
