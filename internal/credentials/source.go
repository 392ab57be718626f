// Package credentials keeps the broker token current without restarting.
package credentials

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"spreadboard/pkg/dhan"

	"go.uber.org/zap"
)

var ErrEmptyCredentials = errors.New("empty broker credentials")

// Loader fetches the latest credentials from wherever they are kept.
type Loader interface {
	Load(ctx context.Context) (dhan.Credentials, error)
}

// LoaderFunc adapts a function to Loader.
type LoaderFunc func(ctx context.Context) (dhan.Credentials, error)

func (f LoaderFunc) Load(ctx context.Context) (dhan.Credentials, error) { return f(ctx) }

// Source is a dhan.CredentialSource whose value can be swapped at runtime.
type Source struct {
	mu     sync.RWMutex
	creds  dhan.Credentials
	loader Loader
	logger *zap.Logger
}

// NewSource loads the initial credentials; it fails if they are empty.
func NewSource(ctx context.Context, loader Loader, logger *zap.Logger) (*Source, error) {
	s := &Source{loader: loader, logger: logger}
	if err := s.Refresh(ctx); err != nil {
		return nil, err
	}
	return s, nil
}

func (s *Source) Credentials() dhan.Credentials {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.creds
}

// Set replaces the credentials directly (used by the config watcher).
func (s *Source) Set(creds dhan.Credentials) error {
	if creds.AccessToken == "" || creds.ClientID == "" {
		return ErrEmptyCredentials
	}
	s.mu.Lock()
	changed := s.creds != creds
	s.creds = creds
	s.mu.Unlock()
	if changed {
		s.logger.Info("broker credentials updated", zap.String("client_id", creds.ClientID))
	}
	return nil
}

// Refresh pulls from the loader. On failure the previous credentials stay in use.
func (s *Source) Refresh(ctx context.Context) error {
	creds, err := s.loader.Load(ctx)
	if err != nil {
		return fmt.Errorf("load credentials: %w", err)
	}
	return s.Set(creds)
}
