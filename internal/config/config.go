package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/pflag"
)

// Input modes.
const (
	InputCommand = "command"
	InputStdin   = "stdin"
	InputFile    = "file"
)

// ErrHelp is returned by Load when --help was requested.
var ErrHelp = pflag.ErrHelp

// Config holds all configuration for the application.
type Config struct {
	Port string
	Env  string

	// Decoder input
	InputMode      string
	InputFile      string
	DecoderCommand string // overrides the rtl_fm | multimon-ng pipeline
	Frequency      string
	Gain           int
	PPMCorrection  int

	// History and broadcast
	MessagesLimit int
	PostDelay     time.Duration
	ScanInterval  time.Duration

	// Catalog files, by default the classic names inside DataDir
	DataDir       string
	CapcodesFile  string
	IgnoreFile    string
	FilterFile    string
	PoliceFile    string
	FireFile      string
	AmbulanceFile string
	TestFile      string

	// Display
	Display      bool
	DisplayLines int
	DisplayWidth int

	// Optional sinks
	WebhookURL   string
	RedisURL     string
	RedisChannel string
	DatabaseURL  string
	SQLitePath   string

	// StaticDir holds the web page served on /.
	StaticDir string

	LogFile string
}

// Load reads configuration from environment variables, then applies
// command-line overrides from args (without the program name).
// In development, it loads from .env file if present.
func Load(args []string) (*Config, error) {
	// Load .env file if it exists (for development)
	_ = godotenv.Load()

	var errs []error
	intEnv := func(key string, def int) int {
		v, err := getEnvInt(key, def)
		if err != nil {
			errs = append(errs, err)
		}
		return v
	}
	durationEnv := func(key string, def time.Duration) time.Duration {
		v, err := getEnvDuration(key, def)
		if err != nil {
			errs = append(errs, err)
		}
		return v
	}

	dataDir := getEnv("DATA_DIR", defaultDataDir())
	inData := func(name string) string { return filepath.Join(dataDir, name) }

	cfg := &Config{
		Port:           getEnv("PORT", "8000"),
		Env:            getEnv("ENV", "development"),
		InputMode:      getEnv("INPUT_MODE", InputCommand),
		InputFile:      os.Getenv("INPUT_FILE"),
		DecoderCommand: os.Getenv("DECODER_COMMAND"),
		Frequency:      getEnv("FREQUENCY", "169.65M"),
		Gain:           intEnv("GAIN", 20),
		PPMCorrection:  intEnv("PPM_CORRECTION", 0),
		MessagesLimit:  intEnv("MESSAGES_LIMIT", 5000),
		PostDelay:      durationEnv("POST_DELAY", 15*time.Second),
		ScanInterval:   durationEnv("SCAN_INTERVAL", time.Second),
		DataDir:        dataDir,
		CapcodesFile:   getEnv("CAPCODES_FILE", inData("capcodes.txt")),
		IgnoreFile:     getEnv("IGNORE_FILE", inData("capcodes_ignore.txt")),
		FilterFile:     os.Getenv("FILTER_FILE"),
		PoliceFile:     getEnv("POLICE_FILE", inData("cc_police.txt")),
		FireFile:       getEnv("FIRE_FILE", inData("cc_fire.txt")),
		AmbulanceFile:  getEnv("AMBULANCE_FILE", inData("cc_ambu.txt")),
		TestFile:       os.Getenv("TEST_FILE"),
		Display:        getEnv("DISPLAY", "false") == "true",
		DisplayLines:   intEnv("DISPLAY_LINES", 11),
		DisplayWidth:   intEnv("DISPLAY_WIDTH", 37),
		WebhookURL:     os.Getenv("WEBHOOK_URL"),
		RedisURL:       os.Getenv("REDIS_URL"),
		RedisChannel:   getEnv("REDIS_CHANNEL", "p2000:messages"),
		DatabaseURL:    os.Getenv("DATABASE_URL"),
		SQLitePath:     os.Getenv("SQLITE_PATH"),
		StaticDir:      getEnv("STATIC_DIR", filepath.Join(dataDir, "web", "static")),
		LogFile:        os.Getenv("LOG_FILE"),
	}
	if err := errors.Join(errs...); err != nil {
		return nil, err
	}

	flagSet := pflag.NewFlagSet("p2000", pflag.ContinueOnError)
	flagSet.StringVar(&cfg.Port, "port", cfg.Port, "HTTP listen port")
	flagSet.BoolVar(&cfg.Display, "lcd", cfg.Display, "show the terminal display")
	flagSet.StringVar(&cfg.FilterFile, "filter", cfg.FilterFile, "capcode glob filter file")
	flagSet.StringVar(&cfg.CapcodesFile, "capcodes", cfg.CapcodesFile, "capcode dictionary file")
	flagSet.StringVar(&cfg.IgnoreFile, "ignore", cfg.IgnoreFile, "ignored capcodes file")
	flagSet.StringVar(&cfg.InputMode, "input", cfg.InputMode, "decoder input: command, stdin or file")
	flagSet.StringVar(&cfg.InputFile, "input-file", cfg.InputFile, "replay file for --input=file")
	flagSet.StringVar(&cfg.DecoderCommand, "decoder", cfg.DecoderCommand, "decoder shell pipeline (default rtl_fm | multimon-ng)")
	flagSet.StringVar(&cfg.Frequency, "frequency", cfg.Frequency, "receiver frequency")
	flagSet.IntVar(&cfg.Gain, "gain", cfg.Gain, "tuner gain")
	flagSet.IntVar(&cfg.PPMCorrection, "ppm", cfg.PPMCorrection, "frequency correction in ppm")
	flagSet.StringVar(&cfg.StaticDir, "static", cfg.StaticDir, "directory with the web page")
	flagSet.StringVar(&cfg.LogFile, "log-file", cfg.LogFile, "write logs to this file")

	if err := flagSet.Parse(args); err != nil {
		return nil, err
	}
	if extra := flagSet.Args(); len(extra) > 0 {
		return nil, fmt.Errorf("unexpected argument: %s", extra[0])
	}

	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) validate() error {
	switch c.InputMode {
	case InputCommand, InputStdin:
	case InputFile:
		if c.InputFile == "" {
			return errors.New("INPUT_FILE is required with INPUT_MODE=file")
		}
	default:
		return fmt.Errorf("unknown input mode %q", c.InputMode)
	}
	if c.MessagesLimit <= 0 {
		return errors.New("MESSAGES_LIMIT must be positive")
	}
	if c.PostDelay <= 0 || c.ScanInterval <= 0 {
		return errors.New("POST_DELAY and SCAN_INTERVAL must be positive")
	}
	return nil
}

// defaultDataDir is the executable's directory when the capcode
// dictionary sits next to it, otherwise the working directory.
func defaultDataDir() string {
	exe, err := os.Executable()
	if err != nil {
		return "."
	}
	dir := filepath.Dir(exe)
	if _, err := os.Stat(filepath.Join(dir, "capcodes.txt")); err == nil {
		return dir
	}
	return "."
}

// IsDevelopment returns true if running in development mode.
func (c *Config) IsDevelopment() bool {
	return c.Env == "development"
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) (int, error) {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue, nil
	}
	n, err := strconv.Atoi(value)
	if err != nil {
		return defaultValue, fmt.Errorf("%s: %w", key, err)
	}
	return n, nil
}

func getEnvDuration(key string, defaultValue time.Duration) (time.Duration, error) {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue, nil
	}
	d, err := time.ParseDuration(value)
	if err != nil {
		return defaultValue, fmt.Errorf("%s: %w", key, err)
	}
	return d, nil
}
