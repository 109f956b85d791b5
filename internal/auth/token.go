// Package auth supplies credentials for the assistant connection.
package auth

import (
	"context"
	"errors"
	"fmt"
	"sync"
)

// ErrCredential marks credential acquisition failures. These are not
// connectivity failures: the reconnect policy must not consume a retry
// attempt for them.
var ErrCredential = errors.New("credential error")

// TokenProvider supplies a fresh auth credential on demand.
type TokenProvider interface {
	// Token returns a credential for the assistant endpoint. With
	// forceRefresh set, any cached credential is discarded first.
	Token(ctx context.Context, forceRefresh bool) (string, error)
}

// StaticProvider returns a fixed token, typically loaded from the
// environment. An empty token is a credential error.
type StaticProvider struct {
	mu    sync.Mutex
	token string
}

// NewStaticProvider creates a provider around a fixed token.
func NewStaticProvider(token string) *StaticProvider {
	return &StaticProvider{token: token}
}

// Token implements TokenProvider.
func (p *StaticProvider) Token(_ context.Context, _ bool) (string, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.token == "" {
		return "", fmt.Errorf("%w: no token configured", ErrCredential)
	}
	return p.token, nil
}

// SetToken replaces the stored token, e.g. after reauthentication.
func (p *StaticProvider) SetToken(token string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.token = token
}
