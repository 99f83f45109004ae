// Package config loads bridge configuration from file and environment via viper.
package config

import (
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/spf13/viper"
)

// Config is the root configuration tree for the bridge process.
type Config struct {
	Server  ServerConfig  `mapstructure:"server"`
	Printer PrinterConfig `mapstructure:"printer"`
	Sensor  SensorConfig  `mapstructure:"sensor"`
	Log     LogConfig     `mapstructure:"log"`
}

// ServerConfig controls the localhost HTTP listener.
type ServerConfig struct {
	Host            string        `mapstructure:"host"`
	Port            int           `mapstructure:"port"`
	ReadTimeout     time.Duration `mapstructure:"read_timeout"`
	WriteTimeout    time.Duration `mapstructure:"write_timeout"`
	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout"`
}

// PrinterConfig identifies the USB device and its bulk endpoints.
//
// Endpoint and Interface are optional: when zero, the transport
// auto-discovers the first bulk-OUT endpoint on the active configuration.
type PrinterConfig struct {
	VendorID      uint16        `mapstructure:"vendor_id"`
	ProductID     uint16        `mapstructure:"product_id"`
	Endpoint      uint8         `mapstructure:"endpoint"`
	Interface     uint8         `mapstructure:"interface"`
	OpenRetry     time.Duration `mapstructure:"open_retry_interval"`
	ClaimAttempts int           `mapstructure:"claim_attempts"`
	ClaimBackoff  time.Duration `mapstructure:"claim_backoff"`
	WriteTimeout  time.Duration `mapstructure:"write_timeout"`
}

// SensorConfig configures the outbound health-reporting HTTP client.
// ReportKey empty disables the reporter entirely.
type SensorConfig struct {
	ReportKey        string        `mapstructure:"report_key"`
	ServerURL        string        `mapstructure:"server_url"`
	HeartbeatPeriod  time.Duration `mapstructure:"heartbeat_period"`
	RequestTimeout   time.Duration `mapstructure:"request_timeout"`
	EventQueueDepth  int           `mapstructure:"event_queue_depth"`
}

// LogConfig configures zap + lumberjack output.
type LogConfig struct {
	Level  string        `mapstructure:"level"`
	Format string        `mapstructure:"format"`
	Output string        `mapstructure:"output"`
	File   LogFileConfig `mapstructure:"file"`
}

// LogFileConfig configures the rotating log file sink.
type LogFileConfig struct {
	Path       string `mapstructure:"path"`
	Filename   string `mapstructure:"filename"`
	MaxSize    int    `mapstructure:"max_size"`
	MaxAge     int    `mapstructure:"max_age"`
	MaxBackups int    `mapstructure:"max_backups"`
	Compress   bool   `mapstructure:"compress"`
}

var (
	cfg  *Config
	once sync.Once
	mu   sync.RWMutex
	v    *viper.Viper
)

// Init loads configuration once. configPath overrides the default search
// path (./config/config.yaml, ./config.yaml). Environment variables
// prefixed BRIDGE_ (with "." replaced by "_") override file values.
//
// Printer settings are read once here and never reloaded: the USB device
// identity is fixed for the process lifetime. Watch only reacts to
// non-printer sections.
func Init(configPath string) error {
	var err error
	once.Do(func() {
		v = viper.New()

		if configPath != "" {
			v.SetConfigFile(configPath)
		} else {
			v.SetConfigName("config")
			v.SetConfigType("yaml")
			v.AddConfigPath("./config")
			v.AddConfigPath(".")
		}

		v.SetEnvPrefix("BRIDGE")
		v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
		v.AutomaticEnv()

		setDefaults(v)

		if err = v.ReadInConfig(); err != nil {
			if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
				return
			}
			err = nil
		}

		cfg = &Config{}
		err = v.Unmarshal(cfg)
	})

	return err
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("server.host", "127.0.0.1")
	v.SetDefault("server.port", 55000)
	v.SetDefault("server.read_timeout", "10s")
	v.SetDefault("server.write_timeout", "10s")
	v.SetDefault("server.shutdown_timeout", "5s")

	v.SetDefault("printer.open_retry_interval", "5s")
	v.SetDefault("printer.claim_attempts", 5)
	v.SetDefault("printer.claim_backoff", "100ms")
	v.SetDefault("printer.write_timeout", "5s")

	v.SetDefault("sensor.heartbeat_period", "60s")
	v.SetDefault("sensor.request_timeout", "10s")
	v.SetDefault("sensor.event_queue_depth", 64)

	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "json")
	v.SetDefault("log.output", "both")
	v.SetDefault("log.file.path", "./logs")
	v.SetDefault("log.file.filename", "bridge.log")
	v.SetDefault("log.file.max_size", 100)
	v.SetDefault("log.file.max_age", 30)
	v.SetDefault("log.file.max_backups", 7)
	v.SetDefault("log.file.compress", true)
}

// Get returns the current configuration snapshot.
func Get() *Config {
	mu.RLock()
	defer mu.RUnlock()
	return cfg
}

// Watch reloads Log and Sensor sections when the config file changes and
// invokes callback with the new snapshot. Printer and Server settings are
// intentionally excluded: the device identity and listener address are
// fixed once the process has started.
func Watch(callback func(*Config)) {
	v.WatchConfig()
	v.OnConfigChange(func(e fsnotify.Event) {
		mu.Lock()
		defer mu.Unlock()

		reloaded := &Config{}
		if err := v.Unmarshal(reloaded); err != nil {
			fmt.Printf("config: reload failed: %v\n", err)
			return
		}

		cfg.Log = reloaded.Log
		cfg.Sensor = reloaded.Sensor

		if callback != nil {
			callback(cfg)
		}
	})
}

// GetString returns a raw string configuration value.
func GetString(key string) string { return v.GetString(key) }

// GetInt returns a raw integer configuration value.
func GetInt(key string) int { return v.GetInt(key) }

// GetBool returns a raw boolean configuration value.
func GetBool(key string) bool { return v.GetBool(key) }

// GetDuration returns a raw duration configuration value.
func GetDuration(key string) time.Duration { return v.GetDuration(key) }
