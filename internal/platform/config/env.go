package config

import (
	"bufio"
	"errors"
	"fmt"
	"maps"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

const defaultEnvFile = ".env"

// Option customises how Load and EnvironmentValues read the environment.
type Option func(*loaderOptions)

type loaderOptions struct {
	envFile               string
	envMap                map[string]string
	useSystemEnv          bool
	secret                SecretResolver
	requiredSecrets       []string
	panicOnMissingSecrets bool
}

func newLoaderOptions(opts []Option) loaderOptions {
	o := loaderOptions{envFile: defaultEnvFile, useSystemEnv: true}
	for _, opt := range opts {
		if opt != nil {
			opt(&o)
		}
	}
	return o
}

// WithEnvFile reads dotenv overrides from path. An empty path disables the file.
func WithEnvFile(path string) Option {
	return func(o *loaderOptions) { o.envFile = path }
}

// WithEnvMap layers values over both the dotenv file and the process environment.
func WithEnvMap(values map[string]string) Option {
	return func(o *loaderOptions) { o.envMap = values }
}

// WithoutSystemEnv ignores the process environment.
func WithoutSystemEnv() Option {
	return func(o *loaderOptions) { o.useSystemEnv = false }
}

// source resolves keys with precedence explicit map > process env > dotenv and remembers every
// key whose value failed to parse.
type source struct {
	overrides map[string]string
	system    bool
	dotenv    map[string]string
	invalid   []string
}

func newSource(o loaderOptions) (*source, error) {
	dotenv, err := readDotEnv(o.envFile)
	if err != nil {
		return nil, err
	}
	return &source{overrides: o.envMap, system: o.useSystemEnv, dotenv: dotenv}, nil
}

func (s *source) lookup(key string) (string, bool) {
	if v, ok := s.overrides[key]; ok {
		return strings.TrimSpace(v), true
	}
	if s.system {
		if v, ok := os.LookupEnv(key); ok {
			return strings.TrimSpace(v), true
		}
	}
	v, ok := s.dotenv[key]
	return v, ok
}

// raw returns the value for key, or "" with false when unset or blank.
func (s *source) raw(key string) (string, bool) {
	v, ok := s.lookup(key)
	return v, ok && v != ""
}

func (s *source) str(key, fallback string) string {
	if v, ok := s.raw(key); ok {
		return v
	}
	return fallback
}

func (s *source) duration(key string, fallback time.Duration) time.Duration {
	return parseOr(s, key, fallback, time.ParseDuration)
}

func (s *source) integer(key string, fallback int) int {
	return parseOr(s, key, fallback, strconv.Atoi)
}

func (s *source) float(key string, fallback float64) float64 {
	return parseOr(s, key, fallback, func(v string) (float64, error) { return strconv.ParseFloat(v, 64) })
}

func (s *source) amount(key string) decimal.Decimal {
	return parseOr(s, key, decimal.Zero, decimal.NewFromString)
}

func (s *source) list(key string) []string {
	out := []string{}
	v, _ := s.raw(key)
	for _, part := range strings.Split(v, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}

func parseOr[T any](s *source, key string, fallback T, parse func(string) (T, error)) T {
	v, ok := s.raw(key)
	if !ok {
		return fallback
	}
	parsed, err := parse(v)
	if err != nil {
		s.invalid = append(s.invalid, key)
		return fallback
	}
	return parsed
}

// EnvironmentValues returns the merged environment Load would see, for wiring components such as
// the secret resolver before configuration is loaded.
func EnvironmentValues(opts ...Option) (map[string]string, error) {
	o := newLoaderOptions(opts)
	dotenv, err := readDotEnv(o.envFile)
	if err != nil {
		return nil, err
	}
	values := make(map[string]string, len(dotenv))
	maps.Copy(values, dotenv)
	if o.useSystemEnv {
		for _, entry := range os.Environ() {
			if key, value, ok := strings.Cut(entry, "="); ok && strings.TrimSpace(key) != "" {
				values[strings.TrimSpace(key)] = value
			}
		}
	}
	maps.Copy(values, o.envMap)
	return values, nil
}

// readDotEnv parses KEY=VALUE lines, tolerating "export" prefixes, comments and quoted values.
// A missing file is not an error.
func readDotEnv(path string) (map[string]string, error) {
	if path == "" {
		return nil, nil
	}
	file, err := os.Open(path)
	if errors.Is(err, os.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("config: open %s: %w", path, err)
	}
	defer file.Close()

	values := make(map[string]string)
	scanner := bufio.NewScanner(file)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		line = strings.TrimSpace(strings.TrimPrefix(line, "export "))
		key, value, ok := strings.Cut(line, "=")
		if key = strings.TrimSpace(key); !ok || key == "" {
			continue
		}
		values[key] = strings.Trim(strings.TrimSpace(value), `"'`)
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("config: read %s: %w", path, err)
	}
	return values, nil
}
