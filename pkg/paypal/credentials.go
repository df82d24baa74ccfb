package paypal

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"strings"
	"time"

	"github.com/hashicorp/golang-lru/v2/expirable"

	"github.com/angelmondragon/skillbridge-billing/pkg/enums"
	"github.com/angelmondragon/skillbridge-billing/pkg/env"
	pkgerrors "github.com/angelmondragon/skillbridge-billing/pkg/errors"
)

const (
	SandboxAPIBase = "https://api-m.sandbox.paypal.com"
	LiveAPIBase    = "https://api-m.paypal.com"

	keyClientID     = "client_id"
	keyClientSecret = "client_secret"
	keyEnvironment  = "environment"
	keyAPIBase      = "api_base"

	credentialsCacheKey = "paypal"
)

// Credentials are the processor secrets plus the environment they belong to.
type Credentials struct {
	ClientID     string
	ClientSecret string
	Environment  enums.Environment
	APIBase      string
	// Sources records which named source supplied each key.
	Sources map[string]string
}

// Validate fails with a precondition error when a secret is missing. The
// details never contain the secret itself.
func (c Credentials) Validate() error {
	if c.ClientID != "" && c.ClientSecret != "" {
		return nil
	}
	return pkgerrors.New(pkgerrors.CodeConfiguration, "paypal credentials are not configured").
		WithDetails(c.Diagnostics())
}

// Diagnostics returns a masked view suitable for logs and error details.
func (c Credentials) Diagnostics() map[string]any {
	return map[string]any{
		"clientId":     mask(c.ClientID),
		"hasClientId":  c.ClientID != "",
		"hasSecret":    c.ClientSecret != "",
		"environment":  c.Environment.String(),
		"apiBase":      c.APIBase,
		"sources":      c.Sources,
		"secretSource": c.Sources[keyClientSecret],
	}
}

// Account identifies the processor account the credentials act for. Rotating
// the secret keeps the account; switching client or API base changes it.
func (c Credentials) Account() string {
	return strings.Join([]string{c.Environment.String(), c.APIBase, c.ClientID}, "|")
}

// cacheKey identifies a credential set without exposing the secret.
func (c Credentials) cacheKey() string {
	sum := sha256.Sum256([]byte(c.ClientSecret))
	return strings.Join([]string{c.Environment.String(), c.APIBase, c.ClientID, hex.EncodeToString(sum[:8])}, "|")
}

func mask(value string) string {
	switch {
	case value == "":
		return ""
	case len(value) <= 8:
		return "****"
	default:
		return value[:4] + "..." + value[len(value)-4:]
	}
}

// CredentialProvider resolves credentials for a single operation.
type CredentialProvider interface {
	Resolve(ctx context.Context) Credentials
}

// Resolver walks an ordered source chain on every call. An optional short
// TTL cache fronts the chain when ttl > 0.
type Resolver struct {
	sources env.Chain
	cache   *expirable.LRU[string, Credentials]
}

// DefaultSources returns the canonical lookup order: PAYPAL_* env vars, the
// SKILLBRIDGE_PAYPAL_* env vars, then the legacy store when present.
func DefaultSources(legacy env.Source) env.Chain {
	chain := env.Chain{
		env.Prefixed{Prefix: "PAYPAL_"},
		env.Prefixed{Prefix: "SKILLBRIDGE_PAYPAL_"},
	}
	if legacy != nil {
		chain = append(chain, legacy)
	}
	return chain
}

func NewResolver(sources env.Chain, ttl time.Duration) *Resolver {
	r := &Resolver{sources: sources}
	if ttl > 0 {
		r.cache = expirable.NewLRU[string, Credentials](1, nil, ttl)
	}
	return r
}

// Resolve has no side effects besides populating the optional cache.
func (r *Resolver) Resolve(ctx context.Context) Credentials {
	if r.cache != nil {
		if cached, ok := r.cache.Get(credentialsCacheKey); ok {
			return cached
		}
	}

	creds := Credentials{Sources: map[string]string{}}
	lookup := func(key string) string {
		val, src, ok := r.sources.Lookup(ctx, key)
		if !ok {
			return ""
		}
		creds.Sources[key] = src
		return val
	}

	creds.ClientID = lookup(keyClientID)
	creds.ClientSecret = lookup(keyClientSecret)
	creds.Environment = enums.ParseEnvironment(lookup(keyEnvironment))
	creds.APIBase = strings.TrimRight(lookup(keyAPIBase), "/")
	if creds.APIBase == "" {
		creds.APIBase = SandboxAPIBase
		if creds.Environment.IsLive() {
			creds.APIBase = LiveAPIBase
		}
	}

	// Incomplete results are not cached so a secret injected later is seen immediately.
	if r.cache != nil && creds.Validate() == nil {
		r.cache.Add(credentialsCacheKey, creds)
	}
	return creds
}
