package paypal

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/hashicorp/golang-lru/v2/expirable"
	"golang.org/x/oauth2"
	"golang.org/x/oauth2/clientcredentials"

	pkgerrors "github.com/angelmondragon/skillbridge-billing/pkg/errors"
)

const (
	tokenPath     = "/v1/oauth2/token"
	tokenCacheTTL = 8 * time.Hour
	tokenCacheMax = 8
)

// Session is an authenticated context for one processor operation.
type Session struct {
	Credentials Credentials
	AccessToken string
}

// SessionProvider yields validated credentials plus a bearer token.
type SessionProvider interface {
	Session(ctx context.Context) (Session, error)
}

// TokenProvider exchanges resolved credentials for OAuth2 bearer tokens.
// Tokens are cached per credential set and reused while still valid.
type TokenProvider struct {
	credentials CredentialProvider
	httpClient  *http.Client
	tokens      *expirable.LRU[string, *oauth2.Token]
}

func NewTokenProvider(credentials CredentialProvider, httpClient *http.Client) *TokenProvider {
	if httpClient == nil {
		httpClient = http.DefaultClient
	}
	return &TokenProvider{
		credentials: credentials,
		httpClient:  httpClient,
		tokens:      expirable.NewLRU[string, *oauth2.Token](tokenCacheMax, nil, tokenCacheTTL),
	}
}

// Session resolves and validates credentials before any network call.
func (p *TokenProvider) Session(ctx context.Context) (Session, error) {
	creds := p.credentials.Resolve(ctx)
	if err := creds.Validate(); err != nil {
		return Session{}, err
	}

	key := creds.cacheKey()
	if tok, ok := p.tokens.Get(key); ok && tok.Valid() {
		return Session{Credentials: creds, AccessToken: tok.AccessToken}, nil
	}

	cfg := clientcredentials.Config{
		ClientID:     creds.ClientID,
		ClientSecret: creds.ClientSecret,
		TokenURL:     creds.APIBase + tokenPath,
		AuthStyle:    oauth2.AuthStyleInHeader,
	}
	tok, err := cfg.Token(context.WithValue(ctx, oauth2.HTTPClient, p.httpClient))
	if err != nil {
		return Session{}, mapTokenError(err)
	}
	p.tokens.Add(key, tok)
	return Session{Credentials: creds, AccessToken: tok.AccessToken}, nil
}

func mapTokenError(err error) error {
	var retrieveErr *oauth2.RetrieveError
	if errors.As(err, &retrieveErr) && retrieveErr.Response != nil {
		code := pkgerrors.CodeDependency
		// Rejected client credentials are a configuration problem, not a caller one.
		if retrieveErr.Response.StatusCode == http.StatusUnauthorized {
			code = pkgerrors.CodeConfiguration
		}
		procErr := &ProcessorError{
			StatusCode:       retrieveErr.Response.StatusCode,
			Name:             retrieveErr.ErrorCode,
			ErrorDescription: retrieveErr.ErrorDescription,
		}
		return pkgerrors.Wrap(code, procErr, "paypal access token request failed").WithDetails(procErr.detailsMap())
	}
	return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "paypal access token request failed")
}
