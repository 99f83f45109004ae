// Package sensor forwards printer health to an external collector over
// HTTPS. It is purely observational: nothing in the print pipeline waits
// on it, and a collector outage never affects retry behavior.
package sensor

import (
	"bytes"
	"context"
	"crypto/tls"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/reika/escpos-bridge/internal/logger"
	"github.com/reika/escpos-bridge/internal/status"
)

// Value is the wire value sent to the collector's /api/sensors/report endpoint.
type Value string

const (
	ValueOnline    Value = "ONLINE"
	ValueOffline   Value = "OFFLINE"
	ValueUsbError  Value = "USB_ERROR"
	ValuePrintFail Value = "PRINT_FAIL"
)

// Config configures the outbound reporter. An empty ReportKey disables
// the reporter: Run returns immediately without starting a goroutine.
type Config struct {
	ReportKey       string
	ServerURL       string
	HeartbeatPeriod time.Duration
	RequestTimeout  time.Duration
	EventQueueDepth int
}

// Reporter posts connectivity heartbeats and fire-and-forget error events
// to the deployment's sensor collector. The collector's TLS certificate is
// self-signed by convention, so verification is disabled on the client.
type Reporter struct {
	cfg    Config
	client *http.Client
}

// New returns a Reporter for cfg. Call Run to start the background loop.
func New(cfg Config) *Reporter {
	if cfg.HeartbeatPeriod <= 0 {
		cfg.HeartbeatPeriod = 60 * time.Second
	}
	if cfg.RequestTimeout <= 0 {
		cfg.RequestTimeout = 10 * time.Second
	}
	return &Reporter{
		cfg: cfg,
		client: &http.Client{
			Timeout: cfg.RequestTimeout,
			Transport: &http.Transport{
				TLSClientConfig: &tls.Config{InsecureSkipVerify: true},
			},
		},
	}
}

// Run drives the reporter until ctx is canceled: it sends a heartbeat
// reflecting the broadcaster's current state every HeartbeatPeriod, sends
// an immediate report on every connectivity transition, and drains the
// event queue as entries arrive. It never returns an error — failed
// requests are logged and dropped, matching the collector's fire-and-forget
// contract.
func (r *Reporter) Run(ctx context.Context, st *status.Broadcaster, events *status.EventQueue) {
	if r.cfg.ReportKey == "" || r.cfg.ServerURL == "" {
		logger.Info("sensor reporter disabled: no report key or server url configured")
		return
	}

	online, cancel := st.Subscribe()
	defer cancel()

	ticker := time.NewTicker(r.cfg.HeartbeatPeriod)
	defer ticker.Stop()

	r.reportConnectivity(ctx, st.Snapshot())

	for {
		select {
		case <-ctx.Done():
			return

		case isOnline := <-online:
			r.reportConnectivity(ctx, isOnline)

		case <-ticker.C:
			r.reportConnectivity(ctx, st.Snapshot())

		case <-events.Ready():
			for {
				ev, ok := events.Pop()
				if !ok {
					break
				}
				r.reportEvent(ctx, ev)
			}
		}
	}
}

func (r *Reporter) reportConnectivity(ctx context.Context, online bool) {
	value := ValueOffline
	if online {
		value = ValueOnline
	}
	r.send(ctx, value)
}

func (r *Reporter) reportEvent(ctx context.Context, ev status.SensorEvent) {
	value := ValuePrintFail
	if ev.Kind == status.EventUsbError {
		value = ValueUsbError
	}
	r.send(ctx, value)
}

type reportBody struct {
	Value Value `json:"value"`
}

func (r *Reporter) send(ctx context.Context, value Value) {
	payload, err := json.Marshal(reportBody{Value: value})
	if err != nil {
		logger.LogSensorReport(string(value), 0, err)
		return
	}

	url := fmt.Sprintf("%s/api/sensors/report", r.cfg.ServerURL)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(payload))
	if err != nil {
		logger.LogSensorReport(string(value), 0, err)
		return
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-Sensor-Key", r.cfg.ReportKey)

	resp, err := r.client.Do(req)
	if err != nil {
		logger.LogSensorReport(string(value), 0, err)
		return
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		logger.LogSensorReport(string(value), resp.StatusCode, fmt.Errorf("unexpected status"))
		return
	}
	logger.LogSensorReport(string(value), resp.StatusCode, nil)
}
