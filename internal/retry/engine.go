// Package retry wraps a USB transport with the reconnect-and-retry loop
// that keeps print failures from ever reaching an HTTP caller: a failed
// write tears down and reopens the device, then retries the same job
// against the fresh connection, forever.
package retry

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/reika/escpos-bridge/internal/escpos"
	apperr "github.com/reika/escpos-bridge/internal/errors"
	"github.com/reika/escpos-bridge/internal/logger"
	"github.com/reika/escpos-bridge/internal/reprint"
	"github.com/reika/escpos-bridge/internal/status"
	"github.com/reika/escpos-bridge/internal/usbtransport"
	"go.uber.org/zap"
)

var printCounter atomic.Uint32

// generatePrintID returns an 8 hex character job identifier: the low 16
// bits of the current millisecond timestamp followed by the low 16 bits
// of a process-wide counter. Within one run, ids cannot collide until the
// counter's low 16 bits wrap after 65536 jobs; across a restart they can,
// which is acceptable for log correlation.
func generatePrintID() string {
	counter := printCounter.Add(1)
	timestamp := uint32(time.Now().UnixMilli())
	return fmt.Sprintf("%04x%04x", timestamp&0xffff, counter&0xffff)
}

// Transport is the subset of usbtransport.Transport the engine depends on.
// Tests substitute a fake that never touches real hardware; usbtransport.Transport
// satisfies this interface as-is.
type Transport interface {
	Write(ctx context.Context, data []byte) error
	Close() error
}

// OpenFunc opens a fresh transport, mirroring usbtransport.Open's signature
// so tests can substitute a fake without touching real USB hardware.
type OpenFunc func() (Transport, error)

// Engine owns the one live Transport a process holds, and routes every
// print job through it. Concurrent jobs are not serialized against each
// other. Jobs never see a printer error: Execute, ExecuteReprint and
// ExecuteTest retry a failing job indefinitely, reopening the device
// between attempts.
type Engine struct {
	mu        sync.Mutex
	transport Transport

	open           OpenFunc
	openRetryDelay time.Duration

	encoder *escpos.Encoder
	status  *status.Broadcaster
	events  *status.EventQueue
}

// NewEngine returns an Engine seeded with an already-open transport. open
// is used to reopen the device whenever the current transport fails, and
// openRetryDelay is the pause between failed reopen attempts (the bridge
// uses a flat interval here rather than exponential backoff, since a
// printer that is merely off does not warrant a growing wait).
func NewEngine(initial Transport, open OpenFunc, openRetryDelay time.Duration, st *status.Broadcaster, events *status.EventQueue) *Engine {
	if openRetryDelay <= 0 {
		openRetryDelay = 5 * time.Second
	}
	return &Engine{
		transport:      initial,
		open:           open,
		openRetryDelay: openRetryDelay,
		encoder:        escpos.NewEncoder(),
		status:         st,
		events:         events,
	}
}

// initializeDeviceWithConfig retries open in a loop, sleeping
// openRetryDelay between attempts, until it succeeds or ctx is canceled.
func (e *Engine) initializeDeviceWithConfig(ctx context.Context) (Transport, error) {
	attempt := 0
	for {
		attempt++
		logger.Info("usb init attempt", zap.Int("attempt", attempt))

		t, err := e.open()
		if err == nil {
			logger.Info("usb device opened", zap.Int("attempt", attempt))
			return t, nil
		}

		logger.Warn("usb init attempt failed, retrying",
			zap.Int("attempt", attempt), zap.Duration("retry_in", e.openRetryDelay), zap.Error(err))

		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(e.openRetryDelay):
		}
	}
}

func (e *Engine) current() Transport {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.transport
}

// reconnect publishes offline, blocks until a replacement device opens,
// swaps it in, then publishes online. The old transport is closed on a
// best-effort basis; a device that vanished mid-job likely has nothing
// left to release.
func (e *Engine) reconnect(ctx context.Context) error {
	start := time.Now()
	if e.status != nil {
		e.status.Publish(false)
	}
	logger.Info("reconnect: starting usb reconnection")

	fresh, err := e.initializeDeviceWithConfig(ctx)
	if err != nil {
		return err
	}

	e.mu.Lock()
	stale := e.transport
	e.transport = fresh
	e.mu.Unlock()

	if stale != nil {
		_ = stale.Close()
	}

	if e.status != nil {
		e.status.Publish(true)
	}
	logger.Info("reconnect: usb reconnected", zap.Duration("elapsed", time.Since(start)))
	return nil
}

func (e *Engine) reportFailure(jobID string, attempt int, err error) {
	if e.events != nil {
		e.events.Push(status.SensorEvent{
			Kind:   classifyEvent(err),
			Detail: fmt.Sprintf("job_id=%s attempt=%d error=%v", jobID, attempt, err),
		})
	}
}

// classifyEvent distinguishes the USB transport's own "distinctive
// error-class tag" for partial/zero-byte writes from every other
// command failure: a short write is a UsbError, anything else (timeout,
// transfer error, device-not-found) is a plain PrintFail.
func classifyEvent(err error) status.EventKind {
	var pw *usbtransport.PartialWriteError
	if errors.As(err, &pw) {
		return status.EventUsbError
	}
	return status.EventPrintFail
}

// withRetry runs f against the current transport, retrying against a
// freshly reconnected transport on every failure until it succeeds or ctx
// is canceled. An InvalidInput error (a command that cannot be encoded) is
// returned at once, without reconnecting or reporting a sensor event;
// commands sent before it in that attempt have already reached the printer.
func withRetry[T any](ctx context.Context, e *Engine, f func(t Transport, jobID string) (T, error)) (T, error) {
	var zero T
	start := time.Now()
	jobID := generatePrintID()
	attempt := 0

	logger.Info("print job starting", zap.String("job_id", jobID))

	for {
		attempt++
		opStart := time.Now()

		result, err := f(e.current(), jobID)
		if err == nil {
			logger.LogPrintSummary(jobID, attempt, time.Since(start))
			return result, nil
		}

		if apperr.Is(err, apperr.KindInvalidInput) {
			return zero, err
		}

		logger.Error("print job attempt failed",
			zap.String("job_id", jobID), zap.Int("attempt", attempt),
			zap.Duration("attempt_elapsed", time.Since(opStart)), zap.Error(err))
		e.reportFailure(jobID, attempt, err)

		logger.Info("reconnecting before retry", zap.String("job_id", jobID))
		if rerr := e.reconnect(ctx); rerr != nil {
			return zero, rerr
		}

		select {
		case <-ctx.Done():
			return zero, ctx.Err()
		default:
		}
	}
}

// Execute sends an Init preamble, the given commands in order, and a
// PrintCut postamble, retrying the whole job on any failure.
func (e *Engine) Execute(ctx context.Context, commands []escpos.Command) error {
	_, err := withRetry(ctx, e, func(t Transport, jobID string) (struct{}, error) {
		return struct{}{}, e.executeCommands(ctx, t, commands, jobID, true)
	})
	return err
}

// ExecuteReprint injects reprint markers into commands and sends the
// resulting stream as-is (it already carries its own Init/PrintCut), not
// logged as a new transaction on the printer's own journal.
func (e *Engine) ExecuteReprint(ctx context.Context, commands []escpos.Command) error {
	marked := reprint.InjectMarkers(commands, time.Now())
	_, err := withRetry(ctx, e, func(t Transport, jobID string) (struct{}, error) {
		return struct{}{}, e.executeCommands(ctx, t, marked, jobID, false)
	})
	return err
}

// ExecuteTest runs the built-in diagnostic page, the caller-supplied test
// line, or both, as one retried job.
func (e *Engine) ExecuteTest(ctx context.Context, testPage bool, testLine string) error {
	_, err := withRetry(ctx, e, func(t Transport, jobID string) (struct{}, error) {
		if testPage {
			if err := e.executeCommands(ctx, t, testPageCommands(), jobID, true); err != nil {
				return struct{}{}, err
			}
		}
		if testLine != "" {
			lineCommands := []escpos.Command{
				{Type: escpos.Writeln, Text: testLine},
				{Type: escpos.PrintCut},
			}
			if err := e.executeCommands(ctx, t, lineCommands, jobID, true); err != nil {
				return struct{}{}, err
			}
		}
		return struct{}{}, nil
	})
	return err
}

func testPageCommands() []escpos.Command {
	return []escpos.Command{
		{Type: escpos.Smoothing, Bool: true},
		{Type: escpos.Bold, Bool: true},
		{Type: escpos.Underline, Underline: escpos.UnderlineSingle},
		{Type: escpos.Writeln, Text: "Bold underline"},
		{Type: escpos.Justify, Justify: escpos.JustifyCenter},
		{Type: escpos.Reverse, Bool: true},
		{Type: escpos.Bold, Bool: false},
		{Type: escpos.Writeln, Text: "Hello world - Reverse"},
		{Type: escpos.Feed, Bool: true},
		{Type: escpos.Justify, Justify: escpos.JustifyRight},
		{Type: escpos.Reverse, Bool: false},
		{Type: escpos.Underline, Underline: escpos.UnderlineNone},
		{Type: escpos.Size, WidthHeight: [2]uint8{2, 3}},
		{Type: escpos.Writeln, Text: "Hello world - Normal"},
		{Type: escpos.PrintCut},
	}
}

// executeCommands writes commands to t, optionally wrapped in an
// Init preamble and PrintCut postamble (withPreamble is false for
// reprint jobs, whose command stream already supplies both), stopping at
// the first command that fails to encode or write.
func (e *Engine) executeCommands(ctx context.Context, t Transport, commands []escpos.Command, jobID string, withPreamble bool) error {
	start := time.Now()

	if withPreamble {
		if err := e.send(ctx, t, escpos.Command{Type: escpos.Init}); err != nil {
			return err
		}
	}

	for idx, cmd := range commands {
		cmdStart := time.Now()
		if err := e.send(ctx, t, cmd); err != nil {
			logger.LogPrintFailure(jobID, idx, len(commands), string(cmd.Type), time.Since(cmdStart), err)
			return err
		}
		logger.Debug("command sent",
			zap.String("job_id", jobID), zap.Int("index", idx), zap.Int("total", len(commands)),
			zap.String("type", string(cmd.Type)), zap.Duration("elapsed", time.Since(cmdStart)))
	}

	if withPreamble {
		if err := e.send(ctx, t, escpos.Command{Type: escpos.PrintCut}); err != nil {
			return err
		}
	}

	logger.Debug("job commands complete", zap.String("job_id", jobID),
		zap.Int("commands", len(commands)), zap.Duration("elapsed", time.Since(start)))
	return nil
}

func (e *Engine) send(ctx context.Context, t Transport, cmd escpos.Command) error {
	data, err := e.encoder.Encode(cmd)
	if err != nil {
		return apperr.InvalidInput("cannot encode command %q: %v", cmd.Type, err)
	}
	return t.Write(ctx, data)
}

// CheckConnection sends a bare Init to the current transport without
// retrying or reconnecting on failure, so health probes never disrupt an
// in-flight print job's retry bookkeeping. It updates the shared status
// broadcaster as a side effect.
func (e *Engine) CheckConnection(ctx context.Context) bool {
	t := e.current()
	if t == nil {
		if e.status != nil {
			e.status.Publish(false)
		}
		return false
	}

	err := e.send(ctx, t, escpos.Command{Type: escpos.Init})
	online := err == nil
	if e.status != nil {
		e.status.Publish(online)
	}
	return online
}

// Close releases the currently held transport.
func (e *Engine) Close() error {
	e.mu.Lock()
	t := e.transport
	e.transport = nil
	e.mu.Unlock()
	if t == nil {
		return nil
	}
	return t.Close()
}
