package config

import (
	"errors"
	"fmt"
	"log/slog"
	"math"
	"net/url"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/spf13/cast"
	"github.com/spf13/viper"

	"hotmic/internal/hotkey"
)

// ErrInvalid marks configuration that prevents startup.
var ErrInvalid = errors.New("invalid configuration")

const (
	DefaultPath = "config.json"
	EnvPrefix   = "HOTMIC"

	BackendMalgo  = "malgo"
	BackendFFMPEG = "ffmpeg"
)

var requiredKeys = []string{
	"endpoint",
	"hotkey",
	"autopaste",
	"samplerate",
	"channels",
	"block_samples",
	"connect_timeout",
	"stop_flush_wait",
}

var optionalDefaults = map[string]any{
	"input_device":        "",
	"audio_backend":       BackendMalgo,
	"ffmpeg_command":      "ffmpeg",
	"ffmpeg_input_format": "pulse",
	"final_timeout":       30.0,
	"close_timeout":       5.0,
	"notify":              false,
	"log_level":           "info",
	"metrics_addr":        "",
}

// Config is loaded once at startup and never mutated afterwards.
type Config struct {
	Path string

	Endpoint       string
	Hotkey         string
	Autopaste      bool
	SampleRate     int
	Channels       int
	BlockSamples   int
	InputDevice    string
	ConnectTimeout time.Duration
	StopFlushWait  time.Duration

	AudioBackend      string
	FFMPEGCommand     string
	FFMPEGInputFormat string
	FinalTimeout      time.Duration
	CloseTimeout      time.Duration
	Notify            bool
	LogLevel          string
	MetricsAddr       string
}

// fileConfig mirrors config.json. Durations are fractional seconds.
type fileConfig struct {
	Endpoint          string  `mapstructure:"endpoint"`
	Hotkey            string  `mapstructure:"hotkey"`
	Autopaste         bool    `mapstructure:"autopaste"`
	SampleRate        int     `mapstructure:"samplerate"`
	Channels          int     `mapstructure:"channels"`
	BlockSamples      int     `mapstructure:"block_samples"`
	InputDevice       any     `mapstructure:"input_device"`
	ConnectTimeout    float64 `mapstructure:"connect_timeout"`
	StopFlushWait     float64 `mapstructure:"stop_flush_wait"`
	AudioBackend      string  `mapstructure:"audio_backend"`
	FFMPEGCommand     string  `mapstructure:"ffmpeg_command"`
	FFMPEGInputFormat string  `mapstructure:"ffmpeg_input_format"`
	FinalTimeout      float64 `mapstructure:"final_timeout"`
	CloseTimeout      float64 `mapstructure:"close_timeout"`
	Notify            bool    `mapstructure:"notify"`
	LogLevel          string  `mapstructure:"log_level"`
	MetricsAddr       string  `mapstructure:"metrics_addr"`
}

// ResolvePath picks the config file: explicit path, then HOTMIC_CONFIG, then
// ./config.json.
func ResolvePath(path string) string {
	if p := strings.TrimSpace(path); p != "" {
		return p
	}
	if p := strings.TrimSpace(os.Getenv(EnvPrefix + "_CONFIG")); p != "" {
		return p
	}
	return DefaultPath
}

// Load reads a JSON config file with HOTMIC_* environment overrides. Every
// required key must be present and well typed.
func Load(path string) (Config, error) {
	path = ResolvePath(path)

	v := viper.New()
	v.SetConfigFile(path)
	v.SetConfigType("json")
	v.SetEnvPrefix(EnvPrefix)
	v.AutomaticEnv()

	for _, key := range requiredKeys {
		_ = v.BindEnv(key)
	}
	for key, value := range optionalDefaults {
		_ = v.BindEnv(key)
		v.SetDefault(key, value)
	}

	if _, err := os.Stat(path); err != nil {
		return Config{}, fmt.Errorf("%w: config file not found at %s", ErrInvalid, path)
	}
	if err := v.ReadInConfig(); err != nil {
		return Config{}, fmt.Errorf("%w: failed to read %s: %v", ErrInvalid, path, err)
	}

	if err := checkRequired(v); err != nil {
		return Config{}, err
	}
	if err := checkTypes(v); err != nil {
		return Config{}, err
	}

	var raw fileConfig
	if err := v.Unmarshal(&raw); err != nil {
		return Config{}, fmt.Errorf("%w: %v", ErrInvalid, err)
	}

	cfg := Config{
		Path:              path,
		Endpoint:          strings.TrimSpace(raw.Endpoint),
		Hotkey:            strings.TrimSpace(raw.Hotkey),
		Autopaste:         raw.Autopaste,
		SampleRate:        raw.SampleRate,
		Channels:          raw.Channels,
		BlockSamples:      raw.BlockSamples,
		InputDevice:       inputDevice(raw.InputDevice),
		ConnectTimeout:    seconds(raw.ConnectTimeout),
		StopFlushWait:     seconds(raw.StopFlushWait),
		AudioBackend:      strings.ToLower(strings.TrimSpace(raw.AudioBackend)),
		FFMPEGCommand:     strings.TrimSpace(raw.FFMPEGCommand),
		FFMPEGInputFormat: strings.TrimSpace(raw.FFMPEGInputFormat),
		FinalTimeout:      seconds(raw.FinalTimeout),
		CloseTimeout:      seconds(raw.CloseTimeout),
		Notify:            raw.Notify,
		LogLevel:          strings.ToLower(strings.TrimSpace(raw.LogLevel)),
		MetricsAddr:       strings.TrimSpace(raw.MetricsAddr),
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func checkRequired(v *viper.Viper) error {
	var missing []string
	for _, key := range requiredKeys {
		if !v.IsSet(key) {
			missing = append(missing, key)
		}
	}
	if len(missing) > 0 {
		return fmt.Errorf("%w: missing required config keys: %s", ErrInvalid, strings.Join(missing, ", "))
	}
	return nil
}

// checkTypes rejects values the lenient decoder would silently coerce, such
// as "yes" for a number.
func checkTypes(v *viper.Viper) error {
	var problems []string
	for _, key := range []string{"samplerate", "channels", "block_samples"} {
		if !isWholeNumber(v.Get(key)) {
			problems = append(problems, fmt.Sprintf("%s must be an integer", key))
		}
	}
	for _, key := range []string{"connect_timeout", "stop_flush_wait", "final_timeout", "close_timeout"} {
		if _, err := cast.ToFloat64E(v.Get(key)); err != nil {
			problems = append(problems, fmt.Sprintf("%s must be a number of seconds", key))
		}
	}
	for _, key := range []string{"autopaste", "notify"} {
		if _, err := cast.ToBoolE(v.Get(key)); err != nil {
			problems = append(problems, fmt.Sprintf("%s must be a boolean", key))
		}
	}
	for _, key := range []string{"endpoint", "hotkey"} {
		if _, ok := v.Get(key).(string); !ok {
			problems = append(problems, fmt.Sprintf("%s must be a string", key))
		}
	}
	if len(problems) > 0 {
		return fmt.Errorf("%w: %s", ErrInvalid, strings.Join(problems, "; "))
	}
	return nil
}

// isWholeNumber accepts integers, and JSON numbers or env strings without a
// fractional part. The decoder would otherwise truncate 16000.7 silently.
func isWholeNumber(value any) bool {
	if _, err := cast.ToIntE(value); err != nil {
		return false
	}
	f, err := cast.ToFloat64E(value)
	if err != nil {
		return false
	}
	return !math.IsInf(f, 0) && f == math.Trunc(f)
}

// Validate checks ranges and cross-field constraints.
func (c Config) Validate() error {
	var problems []string

	if err := validateEndpoint(c.Endpoint); err != nil {
		problems = append(problems, err.Error())
	}
	if _, err := hotkey.Parse(c.Hotkey); err != nil {
		problems = append(problems, err.Error())
	}
	if c.SampleRate <= 0 {
		problems = append(problems, "samplerate must be positive")
	}
	if c.Channels <= 0 {
		problems = append(problems, "channels must be positive")
	}
	if c.BlockSamples <= 0 {
		problems = append(problems, "block_samples must be positive")
	}
	if c.ConnectTimeout <= 0 {
		problems = append(problems, "connect_timeout must be positive")
	}
	if c.StopFlushWait < 0 {
		problems = append(problems, "stop_flush_wait must not be negative")
	}
	if c.FinalTimeout <= 0 {
		problems = append(problems, "final_timeout must be positive")
	}
	if c.CloseTimeout <= 0 {
		problems = append(problems, "close_timeout must be positive")
	}
	switch c.AudioBackend {
	case BackendMalgo, BackendFFMPEG:
	default:
		problems = append(problems, fmt.Sprintf("audio_backend must be %q or %q", BackendMalgo, BackendFFMPEG))
	}
	if _, err := parseLevel(c.LogLevel); err != nil {
		problems = append(problems, err.Error())
	}

	if len(problems) > 0 {
		return fmt.Errorf("%w: %s", ErrInvalid, strings.Join(problems, "; "))
	}
	return nil
}

// SlogLevel maps log_level onto slog. Validate has already rejected unknown levels.
func (c Config) SlogLevel() slog.Level {
	level, err := parseLevel(c.LogLevel)
	if err != nil {
		return slog.LevelInfo
	}
	return level
}

// Field is one line of the effective configuration.
type Field struct {
	Key   string
	Value string
}

// Fields lists the effective configuration in file order.
func (c Config) Fields() []Field {
	device := c.InputDevice
	if device == "" {
		device = "(default)"
	}
	metricsAddr := c.MetricsAddr
	if metricsAddr == "" {
		metricsAddr = "(disabled)"
	}
	return []Field{
		{"config", c.Path},
		{"endpoint", c.Endpoint},
		{"hotkey", c.Hotkey},
		{"autopaste", strconv.FormatBool(c.Autopaste)},
		{"samplerate", strconv.Itoa(c.SampleRate)},
		{"channels", strconv.Itoa(c.Channels)},
		{"block_samples", strconv.Itoa(c.BlockSamples)},
		{"input_device", device},
		{"connect_timeout", c.ConnectTimeout.String()},
		{"stop_flush_wait", c.StopFlushWait.String()},
		{"audio_backend", c.AudioBackend},
		{"final_timeout", c.FinalTimeout.String()},
		{"close_timeout", c.CloseTimeout.String()},
		{"notify", strconv.FormatBool(c.Notify)},
		{"log_level", c.LogLevel},
		{"metrics_addr", metricsAddr},
	}
}

func validateEndpoint(endpoint string) error {
	if endpoint == "" {
		return errors.New("endpoint is required")
	}
	parsed, err := url.Parse(endpoint)
	if err != nil {
		return fmt.Errorf("endpoint is not a valid URL: %v", err)
	}
	switch parsed.Scheme {
	case "ws", "wss", "http", "https":
	default:
		return fmt.Errorf("endpoint scheme %q is not supported", parsed.Scheme)
	}
	if parsed.Host == "" {
		return errors.New("endpoint has no host")
	}
	return nil
}

func parseLevel(value string) (slog.Level, error) {
	switch value {
	case "debug":
		return slog.LevelDebug, nil
	case "info", "":
		return slog.LevelInfo, nil
	case "warn", "warning":
		return slog.LevelWarn, nil
	case "error":
		return slog.LevelError, nil
	default:
		return slog.LevelInfo, fmt.Errorf("log_level %q is not one of debug, info, warn, error", value)
	}
}

// inputDevice accepts a device index (JSON number), a name or null.
func inputDevice(value any) string {
	switch v := value.(type) {
	case nil:
		return ""
	case float64:
		return strconv.FormatFloat(v, 'f', -1, 64)
	default:
		return strings.TrimSpace(cast.ToString(v))
	}
}

func seconds(value float64) time.Duration {
	return time.Duration(value * float64(time.Second))
}
