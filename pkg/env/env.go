package env

import (
	"context"
	"os"
	"strings"
)

// Get returns the value of the given environment variable or a fallback.
func Get(key, fallback string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}
	return fallback
}

// Source is a named provider of configuration values. Keys are logical,
// lowercase snake_case names such as "client_id"; each source maps them to
// its own storage convention.
type Source interface {
	Name() string
	Lookup(ctx context.Context, key string) (string, bool)
}

// Chain consults sources in order and returns the first non-empty value.
type Chain []Source

// Lookup returns the trimmed value, the name of the source that supplied it,
// and whether any source had it.
func (c Chain) Lookup(ctx context.Context, key string) (string, string, bool) {
	for _, src := range c {
		if src == nil {
			continue
		}
		val, ok := src.Lookup(ctx, key)
		val = strings.TrimSpace(val)
		if ok && val != "" {
			return val, src.Name(), true
		}
	}
	return "", "", false
}

// Prefixed reads process environment variables named Prefix+UPPER(key).
type Prefixed struct {
	Prefix string
}

func (p Prefixed) Name() string {
	return "env:" + p.Prefix
}

func (p Prefixed) Lookup(_ context.Context, key string) (string, bool) {
	return os.LookupEnv(p.Prefix + strings.ToUpper(key))
}

// Static serves values from a fixed map.
type Static struct {
	Label  string
	Values map[string]string
}

func (s Static) Name() string {
	if s.Label == "" {
		return "static"
	}
	return s.Label
}

func (s Static) Lookup(_ context.Context, key string) (string, bool) {
	val, ok := s.Values[key]
	return val, ok
}
