package main

import (
	"context"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/google/gousb"
	"go.uber.org/zap"

	"github.com/reika/escpos-bridge/internal/api"
	"github.com/reika/escpos-bridge/internal/config"
	apperr "github.com/reika/escpos-bridge/internal/errors"
	"github.com/reika/escpos-bridge/internal/logger"
	"github.com/reika/escpos-bridge/internal/retry"
	"github.com/reika/escpos-bridge/internal/sensor"
	"github.com/reika/escpos-bridge/internal/status"
	"github.com/reika/escpos-bridge/internal/usbtransport"
	bridgews "github.com/reika/escpos-bridge/internal/websocket"
)

var (
	// Version is the bridge release tag, overridden via -ldflags at build time.
	Version   = "dev"
	BuildTime = "unknown"
	GitCommit = "unknown"
)

// Server owns every long-lived component of the bridge process: the USB
// retry engine, the HTTP listener, the sensor reporter, and the GUI
// status feed. Start wires them together; Shutdown tears them down in
// reverse order.
type Server struct {
	cfg *config.Config

	httpServer *http.Server
	engine     *retry.Engine
	hub        *bridgews.Hub
	status     *status.Broadcaster
	events     *status.EventQueue

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

func main() {
	var (
		configPath  = flag.String("config", "", "path to config.yaml")
		showVersion = flag.Bool("version", false, "print version and exit")
	)
	flag.Parse()

	if *showVersion {
		fmt.Printf("escpos-bridge %s (built %s, commit %s)\n", Version, BuildTime, GitCommit)
		os.Exit(0)
	}

	if err := config.Init(*configPath); err != nil {
		fmt.Printf("failed to load configuration: %v\n", err)
		os.Exit(1)
	}
	cfg := config.Get()

	if err := logger.Init(&cfg.Log); err != nil {
		fmt.Printf("failed to initialize logger: %v\n", err)
		os.Exit(1)
	}
	defer logger.Cleanup()

	logger.Info("escpos-bridge starting",
		zap.String("version", Version),
		zap.Uint16("vendor_id", cfg.Printer.VendorID),
		zap.Uint16("product_id", cfg.Printer.ProductID))

	server := NewServer(cfg)
	if err := server.Start(); err != nil {
		logger.Fatal("bridge failed to start", zap.Error(err))
	}

	server.WaitForShutdownSignal()

	if err := server.Shutdown(); err != nil {
		logger.Error("bridge did not shut down cleanly", zap.Error(err))
		os.Exit(1)
	}
	logger.Info("escpos-bridge stopped")
}

// NewServer constructs a Server bound to cfg; no component is opened or
// listening until Start runs.
func NewServer(cfg *config.Config) *Server {
	ctx, cancel := context.WithCancel(context.Background())
	return &Server{
		cfg:    cfg,
		status: status.NewBroadcaster(),
		events: status.NewEventQueue(eventQueueDepth(cfg)),
		ctx:    ctx,
		cancel: cancel,
	}
}

func eventQueueDepth(cfg *config.Config) int {
	if cfg.Sensor.EventQueueDepth > 0 {
		return cfg.Sensor.EventQueueDepth
	}
	return 64
}

// transportConfig maps the printer section of cfg to usbtransport.Config.
func transportConfig(cfg config.PrinterConfig) usbtransport.Config {
	return usbtransport.Config{
		VendorID:     gousb.ID(cfg.VendorID),
		ProductID:    gousb.ID(cfg.ProductID),
		Endpoint:     cfg.Endpoint,
		Interface:    cfg.Interface,
		ClaimRetries: cfg.ClaimAttempts,
		ClaimBackoff: cfg.ClaimBackoff,
		WriteTimeout: cfg.WriteTimeout,
	}
}

// Start opens the USB device (retrying indefinitely if the printer is not
// yet plugged in), then brings up the retry engine, the sensor reporter,
// the GUI websocket hub, and the HTTP listener.
func (s *Server) Start() error {
	tcfg := transportConfig(s.cfg.Printer)

	openFunc := func() (retry.Transport, error) {
		return usbtransport.Open(tcfg)
	}

	initial, err := openInitialDevice(s.ctx, openFunc, s.cfg.Printer.OpenRetry)
	if err != nil {
		return apperr.Internal(err, "startup canceled before usb device became available")
	}

	s.engine = retry.NewEngine(initial, openFunc, s.cfg.Printer.OpenRetry, s.status, s.events)
	s.status.Publish(true)

	s.hub = bridgews.NewHub(logger.GetLogger())
	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		s.hub.Run()
	}()
	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		s.hub.Watch(s.ctx, s.status, s.events)
	}()

	reporter := sensor.New(sensor.Config{
		ReportKey:       s.cfg.Sensor.ReportKey,
		ServerURL:       s.cfg.Sensor.ServerURL,
		HeartbeatPeriod: s.cfg.Sensor.HeartbeatPeriod,
		RequestTimeout:  s.cfg.Sensor.RequestTimeout,
	})
	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		reporter.Run(s.ctx, s.status, s.events)
	}()

	handlers := api.NewHandlers(s.engine)
	router := api.NewRouter(handlers, s.hub, s.status)

	addr := fmt.Sprintf("%s:%d", s.cfg.Server.Host, s.cfg.Server.Port)
	s.httpServer = &http.Server{
		Addr:         addr,
		Handler:      router.Engine(),
		ReadTimeout:  s.cfg.Server.ReadTimeout,
		WriteTimeout: s.cfg.Server.WriteTimeout,
	}

	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		logger.Info("http listener starting", zap.String("addr", addr))
		if err := s.httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error("http listener stopped unexpectedly", zap.Error(err))
		}
	}()

	config.Watch(func(newCfg *config.Config) {
		s.cfg = newCfg
		logger.SetLevel(newCfg.Log.Level)
	})

	return nil
}

// openInitialDevice retries usbtransport.Open at interval until it
// succeeds or ctx is canceled, so a bridge started before the printer is
// plugged in still comes up once the cable is connected.
func openInitialDevice(ctx context.Context, open retry.OpenFunc, interval time.Duration) (retry.Transport, error) {
	if interval <= 0 {
		interval = 5 * time.Second
	}
	attempt := 0
	for {
		attempt++
		t, err := open()
		if err == nil {
			return t, nil
		}
		logger.Warn("initial usb open failed, retrying",
			zap.Int("attempt", attempt), zap.Duration("retry_in", interval), zap.Error(err))

		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(interval):
		}
	}
}

// WaitForShutdownSignal blocks until SIGINT, SIGTERM, or SIGQUIT arrives.
func (s *Server) WaitForShutdownSignal() {
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM, syscall.SIGQUIT)
	sig := <-sigCh
	logger.Info("shutdown signal received", zap.String("signal", sig.String()))
}

// Shutdown stops the HTTP listener, cancels every background goroutine,
// waits for them to exit (bounded by the configured shutdown timeout),
// and releases the USB transport.
func (s *Server) Shutdown() error {
	shutdownCtx, cancel := context.WithTimeout(context.Background(), s.cfg.Server.ShutdownTimeout)
	defer cancel()

	if s.httpServer != nil {
		if err := s.httpServer.Shutdown(shutdownCtx); err != nil {
			logger.Warn("http graceful shutdown failed", zap.Error(err))
		}
	}

	s.cancel()

	done := make(chan struct{})
	go func() {
		s.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
	case <-shutdownCtx.Done():
		logger.Warn("shutdown timed out waiting for background goroutines")
	}

	if s.engine != nil {
		if err := s.engine.Close(); err != nil {
			logger.Warn("usb transport close failed", zap.Error(err))
		}
	}

	return nil
}
