package paypal

import (
	"errors"
	"net/http"

	"github.com/angelmondragon/skillbridge-billing/pkg/config"
	"github.com/angelmondragon/skillbridge-billing/pkg/env"
	"github.com/angelmondragon/skillbridge-billing/pkg/logger"
)

// Stack is the processor integration assembled from configuration.
type Stack struct {
	Resolver *Resolver
	Tokens   *TokenProvider
	Client   *Client
}

// NewStack wires the credential chain, token provider, and REST client. The
// legacy source may be nil.
func NewStack(cfg config.PayPalConfig, legacy env.Source, logg *logger.Logger) (*Stack, error) {
	if logg == nil {
		return nil, errLoggerRequired
	}
	if cfg.HTTPTimeout <= 0 {
		return nil, errors.New("paypal http timeout must be positive")
	}
	httpClient := &http.Client{Timeout: cfg.HTTPTimeout}

	resolver := NewResolver(DefaultSources(legacy), cfg.CredentialsTTL)
	tokens := NewTokenProvider(resolver, httpClient)
	client, err := NewClient(tokens, httpClient, logg)
	if err != nil {
		return nil, err
	}
	return &Stack{Resolver: resolver, Tokens: tokens, Client: client}, nil
}
