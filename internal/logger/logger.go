// Package logger wires zap to console and rotating-file (lumberjack) sinks
// and adds a handful of structured helpers for the print pipeline.
package logger

import (
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/reika/escpos-bridge/internal/config"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"gopkg.in/natefinch/lumberjack.v2"
)

var (
	logger *zap.Logger
	sugar  *zap.SugaredLogger
	once   sync.Once
	mu     sync.RWMutex
)

// Init configures the global logger from cfg. Safe to call once; later
// calls are no-ops unless made through SetLevel, which reinitializes.
func Init(cfg *config.LogConfig) error {
	var err error
	once.Do(func() {
		err = build(cfg)
	})
	return err
}

func build(cfg *config.LogConfig) error {
	level := parseLevel(cfg.Level)

	encoderConfig := zapcore.EncoderConfig{
		TimeKey:        "time",
		LevelKey:       "level",
		NameKey:        "logger",
		CallerKey:      "caller",
		FunctionKey:    zapcore.OmitKey,
		MessageKey:     "msg",
		StacktraceKey:  "stacktrace",
		LineEnding:     zapcore.DefaultLineEnding,
		EncodeLevel:    zapcore.LowercaseLevelEncoder,
		EncodeTime:     zapcore.ISO8601TimeEncoder,
		EncodeDuration: zapcore.SecondsDurationEncoder,
		EncodeCaller:   zapcore.ShortCallerEncoder,
	}

	var encoder zapcore.Encoder
	if cfg.Format == "json" {
		encoder = zapcore.NewJSONEncoder(encoderConfig)
	} else {
		encoderConfig.EncodeLevel = zapcore.CapitalColorLevelEncoder
		encoder = zapcore.NewConsoleEncoder(encoderConfig)
	}

	var cores []zapcore.Core

	if cfg.Output == "stdout" || cfg.Output == "both" {
		cores = append(cores, zapcore.NewCore(encoder, zapcore.AddSync(os.Stdout), level))
	}

	if cfg.Output == "file" || cfg.Output == "both" {
		logDir := cfg.File.Path
		if err := os.MkdirAll(logDir, 0755); err != nil {
			return err
		}

		fileWriter := &lumberjack.Logger{
			Filename:   filepath.Join(logDir, cfg.File.Filename),
			MaxSize:    cfg.File.MaxSize,
			MaxAge:     cfg.File.MaxAge,
			MaxBackups: cfg.File.MaxBackups,
			Compress:   cfg.File.Compress,
		}
		cores = append(cores, zapcore.NewCore(encoder, zapcore.AddSync(fileWriter), level))

		errorWriter := &lumberjack.Logger{
			Filename:   filepath.Join(logDir, "error.log"),
			MaxSize:    cfg.File.MaxSize,
			MaxAge:     cfg.File.MaxAge,
			MaxBackups: cfg.File.MaxBackups,
			Compress:   cfg.File.Compress,
		}
		cores = append(cores, zapcore.NewCore(encoder, zapcore.AddSync(errorWriter), zapcore.ErrorLevel))
	}

	core := zapcore.NewTee(cores...)

	mu.Lock()
	logger = zap.New(core, zap.AddCaller(), zap.AddCallerSkip(1), zap.AddStacktrace(zapcore.ErrorLevel))
	sugar = logger.Sugar()
	mu.Unlock()

	return nil
}

func parseLevel(levelStr string) zapcore.Level {
	switch levelStr {
	case "debug":
		return zapcore.DebugLevel
	case "warn":
		return zapcore.WarnLevel
	case "error":
		return zapcore.ErrorLevel
	case "fatal":
		return zapcore.FatalLevel
	default:
		return zapcore.InfoLevel
	}
}

// GetLogger returns the global logger, falling back to a production
// default if Init was never called (e.g. in tests).
func GetLogger() *zap.Logger {
	mu.RLock()
	defer mu.RUnlock()
	if logger == nil {
		defaultLogger, _ := zap.NewProduction()
		return defaultLogger
	}
	return logger
}

// GetSugar returns the global sugared logger.
func GetSugar() *zap.SugaredLogger {
	mu.RLock()
	defer mu.RUnlock()
	if sugar == nil {
		return GetLogger().Sugar()
	}
	return sugar
}

// Sync flushes any buffered log entries.
func Sync() error {
	mu.RLock()
	defer mu.RUnlock()
	if logger != nil {
		return logger.Sync()
	}
	return nil
}

func Debug(msg string, fields ...zap.Field) { GetLogger().Debug(msg, fields...) }
func Info(msg string, fields ...zap.Field)  { GetLogger().Info(msg, fields...) }
func Warn(msg string, fields ...zap.Field)  { GetLogger().Warn(msg, fields...) }
func Error(msg string, fields ...zap.Field) { GetLogger().Error(msg, fields...) }
func Fatal(msg string, fields ...zap.Field) { GetLogger().Fatal(msg, fields...) }

func Debugf(template string, args ...interface{}) { GetSugar().Debugf(template, args...) }
func Infof(template string, args ...interface{})  { GetSugar().Infof(template, args...) }
func Warnf(template string, args ...interface{})  { GetSugar().Warnf(template, args...) }
func Errorf(template string, args ...interface{}) { GetSugar().Errorf(template, args...) }

// With returns a child logger carrying the given fields.
func With(fields ...zap.Field) *zap.Logger {
	return GetLogger().With(fields...)
}

// LogRequest records one HTTP request/response cycle.
func LogRequest(method, path string, statusCode int, latency time.Duration, clientIP string) {
	GetLogger().Info("request",
		zap.String("method", method),
		zap.String("path", path),
		zap.Int("status", statusCode),
		zap.Duration("latency", latency),
		zap.String("client_ip", clientIP),
	)
}

// LogPanic records a recovered panic and its stack trace.
func LogPanic(recovered interface{}, stack []byte) {
	GetLogger().Error("panic recovered",
		zap.Any("panic", recovered),
		zap.ByteString("stack", stack),
	)
}

// LogPrintSummary emits the structured [PRINT_SUMMARY] line for a
// successfully completed job.
func LogPrintSummary(jobID string, attempts int, elapsed time.Duration) {
	GetLogger().Info("[PRINT_SUMMARY]",
		zap.String("job_id", jobID),
		zap.Int("attempts", attempts),
		zap.Duration("elapsed", elapsed),
	)
}

// LogPrintFailure emits the structured [PRINT_FAILURE] line for a command
// that failed to reach the printer (the caller still retries the whole job
// indefinitely; this marks one observed attempt).
func LogPrintFailure(jobID string, cmdIndex, total int, variant string, elapsed time.Duration, err error) {
	GetLogger().Error("[PRINT_FAILURE]",
		zap.String("job_id", jobID),
		zap.Int("index", cmdIndex),
		zap.Int("total", total),
		zap.String("type", variant),
		zap.Duration("elapsed", elapsed),
		zap.Error(err),
	)
}

// LogUsbWrite records one bulk-OUT transfer outcome.
func LogUsbWrite(bytesWritten, bytesRequested int, elapsed time.Duration, err error) {
	fields := []zap.Field{
		zap.Int("bytes_written", bytesWritten),
		zap.Int("bytes_requested", bytesRequested),
		zap.Duration("elapsed", elapsed),
	}
	if err != nil {
		GetLogger().Error("usb_write_failed", append(fields, zap.Error(err))...)
	} else {
		GetLogger().Debug("usb_write", fields...)
	}
}

// LogSensorReport records the outcome of one health report to the sensor collector.
func LogSensorReport(value string, statusCode int, err error) {
	fields := []zap.Field{zap.String("value", value), zap.Int("status", statusCode)}
	if err != nil {
		GetLogger().Warn("sensor_report_failed", append(fields, zap.Error(err))...)
	} else {
		GetLogger().Debug("sensor_report", fields...)
	}
}

// SetLevel reinitializes the logger at a new level, used by config.Watch.
func SetLevel(levelStr string) {
	cfg := config.Get()
	if cfg == nil {
		return
	}
	cfg.Log.Level = levelStr
	_ = build(&cfg.Log)
}

// Cleanup flushes the logger; call during graceful shutdown.
func Cleanup() {
	if err := Sync(); err != nil {
		fmt.Printf("logger: sync failed: %v\n", err)
	}
}
