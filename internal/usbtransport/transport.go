// Package usbtransport opens a USB bulk endpoint to a thermal printer and
// writes raw ESC/POS bytes to it, treating any short write as a hard
// failure rather than a warning: a USB bulk endpoint that accepts fewer
// bytes than requested is the clearest signal that the device has gone
// away, typically after a power cycle while this process still holds a
// stale handle.
package usbtransport

import (
	"context"
	"fmt"
	"sync"
	"time"

	apperr "github.com/reika/escpos-bridge/internal/errors"
	"github.com/reika/escpos-bridge/internal/logger"
	"github.com/google/gousb"
	"go.uber.org/zap"
)

const maxClaimAttempts = 5

// PartialWriteError tags a bulk write that returned fewer bytes than
// requested, including the zero-write anomaly a power-cycled printer
// leaves behind. It is the "distinctive error-class tag" the status
// broadcaster uses to classify this failure as a UsbError rather than a
// generic print failure.
type PartialWriteError struct {
	Written, Requested int
	Endpoint           uint8
}

func (e *PartialWriteError) Error() string {
	return fmt.Sprintf("usb partial write: wrote %d/%d bytes to endpoint 0x%02x", e.Written, e.Requested, e.Endpoint)
}

// Config identifies the target device and, optionally, a manual endpoint
// and interface. When Endpoint is zero, the transport auto-discovers the
// first bulk-OUT endpoint on the device's active configuration and uses
// that endpoint's interface; Interface is then ignored.
type Config struct {
	VendorID     gousb.ID
	ProductID    gousb.ID
	Endpoint     uint8
	Interface    uint8
	ClaimRetries int
	ClaimBackoff time.Duration
	WriteTimeout time.Duration
}

// Transport owns one open USB device handle and its claimed interface.
// The retry coordinator does not serialize print jobs, so Write holds a
// per-transport lock and concurrent Write calls run one after another.
type Transport struct {
	mu       sync.Mutex
	ctx      *gousb.Context
	dev      *gousb.Device
	cfg      *gousb.Config
	intf     *gousb.Interface
	out      *gousb.OutEndpoint
	outAddr  gousb.EndpointAddress
	writeTimeout time.Duration
}

// Open enumerates USB devices for the configured vendor/product pair,
// claims its bulk-OUT interface (retrying up to cfg.ClaimRetries times to
// ride out a slow-to-release OS driver), and clears any stale halt
// condition left over from a prior session.
func Open(cfg Config) (*Transport, error) {
	logger.Info("opening usb device",
		zap.Uint16("vendor_id", uint16(cfg.VendorID)),
		zap.Uint16("product_id", uint16(cfg.ProductID)))

	ctx := gousb.NewContext()

	dev, err := ctx.OpenDeviceWithVIDPID(cfg.VendorID, cfg.ProductID)
	if err != nil || dev == nil {
		ctx.Close()
		return nil, apperr.Printer(err, "usb device not found: vid=0x%04x pid=0x%04x", cfg.VendorID, cfg.ProductID)
	}

	if err := dev.SetAutoDetach(true); err != nil {
		logger.Debug("usb set_auto_detach returned error (non-fatal)", zap.Error(err))
	}

	gcfg, err := dev.Config(1)
	if err != nil {
		dev.Close()
		ctx.Close()
		return nil, apperr.Printer(err, "failed to select usb configuration")
	}

	ifaceNum, outAddr := cfg.Interface, gousb.EndpointAddress(cfg.Endpoint)
	if outAddr == 0 {
		ifaceNum, outAddr, err = discoverBulkOut(gcfg)
		if err != nil {
			gcfg.Close()
			dev.Close()
			ctx.Close()
			return nil, apperr.Printer(err, "no bulk-out endpoint found")
		}
	}

	intf, err := claimInterface(gcfg, int(ifaceNum), cfg.ClaimRetries, cfg.ClaimBackoff)
	if err != nil {
		gcfg.Close()
		dev.Close()
		ctx.Close()
		return nil, apperr.Printer(err, "failed to claim usb interface %d", ifaceNum)
	}

	out, err := intf.OutEndpoint(int(outAddr))
	if err != nil {
		intf.Close()
		gcfg.Close()
		dev.Close()
		ctx.Close()
		return nil, apperr.Printer(err, "failed to open out endpoint 0x%02x", outAddr)
	}

	// Clearing a stale halt/stall condition from a prior session is
	// best-effort: a printer that never stalled will reject the request,
	// and that is not a reason to abort opening the device.
	if err := dev.ClearHalt(outAddr); err != nil {
		logger.Debug("usb clear_halt returned error (non-fatal)",
			zap.String("endpoint", fmt.Sprintf("0x%02x", uint8(outAddr))), zap.Error(err))
	}

	writeTimeout := cfg.WriteTimeout
	if writeTimeout <= 0 {
		writeTimeout = 5 * time.Second
	}

	logger.Info("usb device opened",
		zap.Uint16("vendor_id", uint16(cfg.VendorID)),
		zap.Uint16("product_id", uint16(cfg.ProductID)),
		zap.Uint8("interface", ifaceNum),
		zap.String("out_endpoint", fmt.Sprintf("0x%02x", uint8(outAddr))))

	return &Transport{
		ctx: ctx, dev: dev, cfg: gcfg, intf: intf, out: out,
		outAddr: outAddr, writeTimeout: writeTimeout,
	}, nil
}

func claimInterface(cfg *gousb.Config, ifaceNum int, retries int, backoff time.Duration) (*gousb.Interface, error) {
	if retries <= 0 {
		retries = maxClaimAttempts
	}
	if backoff <= 0 {
		backoff = 100 * time.Millisecond
	}

	var lastErr error
	for attempt := 0; attempt <= retries; attempt++ {
		intf, err := cfg.Interface(ifaceNum, 0)
		if err == nil {
			return intf, nil
		}
		lastErr = err
		logger.Debug("claim_interface attempt failed, retrying",
			zap.Int("attempt", attempt+1), zap.Int("max", retries+1), zap.Error(err))
		time.Sleep(backoff)
	}
	return nil, lastErr
}

// discoverBulkOut walks the active configuration's interfaces looking for
// the first bulk-OUT endpoint, mirroring how a manually-configured
// endpoint would have been chosen.
func discoverBulkOut(cfg *gousb.Config) (iface uint8, addr gousb.EndpointAddress, err error) {
	desc := cfg.Desc
	for _, ifaceDesc := range desc.Interfaces {
		for _, alt := range ifaceDesc.AltSettings {
			for _, ep := range alt.Endpoints {
				if ep.TransferType == gousb.TransferTypeBulk && ep.Direction == gousb.EndpointDirectionOut {
					return uint8(ifaceDesc.Number), ep.Address, nil
				}
			}
		}
	}
	return 0, 0, fmt.Errorf("no bulk-out endpoint in active configuration")
}

// Write sends data to the printer's bulk-OUT endpoint. Any write that
// returns fewer bytes than requested, or that does not complete within
// the configured timeout, is reported as a Printer error: both indicate
// the connection is no longer trustworthy and the caller should reconnect.
func (t *Transport) Write(ctx context.Context, data []byte) error {
	t.mu.Lock()
	defer t.mu.Unlock()

	start := time.Now()

	type result struct {
		n   int
		err error
	}
	done := make(chan result, 1)

	go func() {
		n, err := t.out.Write(data)
		done <- result{n, err}
	}()

	select {
	case <-ctx.Done():
		logger.LogUsbWrite(0, len(data), time.Since(start), ctx.Err())
		return apperr.Printer(ctx.Err(), "usb write canceled")

	case <-time.After(t.writeTimeout):
		logger.LogUsbWrite(0, len(data), time.Since(start), fmt.Errorf("timeout"))
		return apperr.Printer(nil, "usb write timed out after %s", t.writeTimeout)

	case r := <-done:
		logger.LogUsbWrite(r.n, len(data), time.Since(start), r.err)
		if r.err != nil {
			return apperr.Printer(r.err, "usb bulk write failed")
		}
		if r.n != len(data) {
			pw := &PartialWriteError{Written: r.n, Requested: len(data), Endpoint: uint8(t.outAddr)}
			return apperr.Printer(pw, "usb partial write: wrote %d/%d bytes to endpoint 0x%02x",
				r.n, len(data), uint8(t.outAddr))
		}
		return nil
	}
}

// Close releases the claimed interface, configuration, device handle, and
// USB context in reverse acquisition order. Safe to call once.
func (t *Transport) Close() error {
	if t.intf != nil {
		t.intf.Close()
	}
	if t.cfg != nil {
		t.cfg.Close()
	}
	var err error
	if t.dev != nil {
		err = t.dev.Close()
	}
	if t.ctx != nil {
		t.ctx.Close()
	}
	return err
}
