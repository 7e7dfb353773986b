// Package config holds runtime settings for dddw.
package config

import (
	"math"
	"os"
	"strconv"
	"strings"

	"github.com/pkg/errors"
	"github.com/rs/zerolog"
	"gopkg.in/yaml.v3"

	"dddw/imaging"
)

// Progress display modes
const (
	ProgressBar  = "bar"
	ProgressTUI  = "tui"
	ProgressLog  = "log"
	ProgressNone = "none"
)

// MaxChunkSize bounds the copy buffer, which is allocated in one piece.
const MaxChunkSize = 1 << 30

// Config is the resolved runtime configuration.
type Config struct {
	LogLevel zerolog.Level
	// FullTimestamps logs with nanosecond timestamps (fullinfo, fulldebug).
	FullTimestamps bool
	ChunkSize      int
	Progress       string
}

// fileConfig is the YAML layout; sizes are strings so "1m" works.
type fileConfig struct {
	LogLevel  string `yaml:"log_level"`
	ChunkSize string `yaml:"chunk_size"`
	Progress  string `yaml:"progress"`
}

// Default returns the built-in configuration.
func Default() Config {
	return Config{
		LogLevel:  zerolog.InfoLevel,
		ChunkSize: imaging.DefaultChunkSize,
		Progress:  ProgressBar,
	}
}

// FromEnv applies DDDW_LOG, DDDW_CHUNK_SIZE and DDDW_PROGRESS on top of c.
// Unparseable values are ignored.
func FromEnv(c Config) Config {
	if v := os.Getenv("DDDW_LOG"); v != "" {
		if l, full, err := ParseLevel(v); err == nil {
			c.LogLevel, c.FullTimestamps = l, full
		}
	}
	if v := os.Getenv("DDDW_CHUNK_SIZE"); v != "" {
		if n, err := ParseChunkSize(v); err == nil {
			c.ChunkSize = n
		}
	}
	if v := os.Getenv("DDDW_PROGRESS"); v != "" {
		c.Progress = strings.ToLower(strings.TrimSpace(v))
	}
	return c
}

// Load reads a YAML file and applies the keys it sets on top of c.
func Load(path string, c Config) (Config, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return c, errors.Wrap(err, "read config")
	}
	var fc fileConfig
	if err := yaml.Unmarshal(b, &fc); err != nil {
		return c, errors.Wrapf(err, "parse config %s", path)
	}
	if fc.LogLevel != "" {
		l, full, err := ParseLevel(fc.LogLevel)
		if err != nil {
			return c, errors.Wrapf(err, "log_level in %s", path)
		}
		c.LogLevel, c.FullTimestamps = l, full
	}
	if fc.ChunkSize != "" {
		n, err := ParseChunkSize(fc.ChunkSize)
		if err != nil {
			return c, errors.Wrapf(err, "chunk_size in %s", path)
		}
		c.ChunkSize = n
	}
	if fc.Progress != "" {
		c.Progress = strings.ToLower(fc.Progress)
	}
	return c, nil
}

// ParseLevel parses a zerolog level name. fullinfo and fulldebug are info
// and debug with nanosecond timestamps, reported by full.
func ParseLevel(s string) (level zerolog.Level, full bool, err error) {
	switch v := strings.ToLower(strings.TrimSpace(s)); v {
	case "fullinfo":
		return zerolog.InfoLevel, true, nil
	case "fulldebug":
		return zerolog.DebugLevel, true, nil
	case "":
		return zerolog.NoLevel, false, errors.New("empty log level")
	default:
		level, err = zerolog.ParseLevel(v)
		return level, false, err
	}
}

// Validate checks that the chunk size suits raw device reads and that the
// progress mode is known.
func (c Config) Validate() error {
	if c.ChunkSize <= 0 || c.ChunkSize%512 != 0 {
		return errors.Errorf("chunk size %d must be a positive multiple of 512", c.ChunkSize)
	}
	if c.ChunkSize > MaxChunkSize {
		return errors.Errorf("chunk size %d exceeds %d", c.ChunkSize, MaxChunkSize)
	}
	switch c.Progress {
	case ProgressBar, ProgressTUI, ProgressLog, ProgressNone:
	default:
		return errors.Errorf("unknown progress mode %q", c.Progress)
	}
	return nil
}

// ParseSize parses a decimal byte count with an optional b, k, m or g
// suffix, e.g. "512", "64k" or "1.5m".
func ParseSize(s string) (int64, error) {
	ss := strings.TrimSpace(strings.ToLower(s))
	if ss == "" {
		return 0, errors.New("empty size")
	}
	mult := int64(1)
	switch {
	case strings.HasSuffix(ss, "k"):
		mult = 1024
		ss = strings.TrimSuffix(ss, "k")
	case strings.HasSuffix(ss, "m"):
		mult = 1024 * 1024
		ss = strings.TrimSuffix(ss, "m")
	case strings.HasSuffix(ss, "g"):
		mult = 1024 * 1024 * 1024
		ss = strings.TrimSuffix(ss, "g")
	case strings.HasSuffix(ss, "b"):
		ss = strings.TrimSuffix(ss, "b")
	}
	if !isDecimal(ss) {
		return 0, errors.Errorf("parse size %q: not a decimal number", s)
	}
	v, err := strconv.ParseFloat(ss, 64)
	if err != nil {
		return 0, errors.Wrapf(err, "parse size %q", s)
	}
	b := v * float64(mult)
	if b >= math.MaxInt64 {
		return 0, errors.Errorf("size %q too large", s)
	}
	return int64(b), nil
}

// ParseChunkSize is ParseSize limited to MaxChunkSize, so the result fits an
// int on every platform.
func ParseChunkSize(s string) (int, error) {
	n, err := ParseSize(s)
	if err != nil {
		return 0, err
	}
	if n > MaxChunkSize {
		return 0, errors.Errorf("chunk size %q exceeds %d", s, MaxChunkSize)
	}
	return int(n), nil
}

// isDecimal accepts digits with at most one decimal point.
func isDecimal(s string) bool {
	digits, dots := 0, 0
	for _, r := range s {
		switch {
		case r >= '0' && r <= '9':
			digits++
		case r == '.':
			dots++
		default:
			return false
		}
	}
	return digits > 0 && dots <= 1
}
