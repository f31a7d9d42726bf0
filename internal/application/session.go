package application

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	"github.com/noisemap/noisemap/internal/domain/model"
	"github.com/noisemap/noisemap/internal/domain/port/driven"
)

// SessionGate tracks the authenticated identity and the one-time
// initialization of the encryption subsystem. All workflows consult
// Ready() before doing anything.
type SessionGate struct {
	encryptor driven.Encryptor
	notifier  *Notifier
	logger    *slog.Logger

	mu            sync.Mutex
	authenticated bool
	identity      string
	initialized   bool
	initializing  bool
}

// NewSessionGate creates a SessionGate. Nothing is initialized until the
// first Connect.
func NewSessionGate(encryptor driven.Encryptor, notifier *Notifier, logger *slog.Logger) *SessionGate {
	return &SessionGate{
		encryptor: encryptor,
		notifier:  notifier,
		logger:    logger,
	}
}

// Connect marks the session authenticated for the given identity and
// triggers encryption initialization if it has not completed. Calling
// Connect again while already authenticated is the explicit true->true edge
// that retries a previously failed initialization; it is a no-op when
// initialization already succeeded or is in flight.
//
// Authentication always takes effect. A non-nil error reports that the
// initialization attempt failed; the gate stays authenticated but not ready,
// and a later Connect may retry.
func (g *SessionGate) Connect(ctx context.Context, identity string) error {
	g.mu.Lock()
	g.authenticated = true
	g.identity = identity

	if g.initialized || g.initializing {
		g.mu.Unlock()
		return nil
	}
	g.initializing = true
	g.mu.Unlock()

	g.logger.Info("initializing encryption subsystem", "identity", identity)
	err := g.encryptor.Init(ctx)

	g.mu.Lock()
	g.initializing = false
	if err == nil {
		g.initialized = true
	}
	g.mu.Unlock()

	if err != nil {
		g.logger.Error("encryption initialization failed", "error", err)
		g.notifier.Set(model.NotifyError, "Encryption system initialization failed")
		return fmt.Errorf("initialize encryption: %w", err)
	}

	g.logger.Info("encryption subsystem initialized")
	return nil
}

// Disconnect clears the authenticated identity. Initialization state is
// kept: key material is identity-independent and survives reconnects.
func (g *SessionGate) Disconnect() {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.authenticated = false
	g.identity = ""
}

// Ready reports whether workflows may run: an identity is authenticated and
// the encryption subsystem completed initialization.
func (g *SessionGate) Ready() bool {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.authenticated && g.initialized
}

// Authenticated reports whether an identity is connected.
func (g *SessionGate) Authenticated() bool {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.authenticated
}

// Identity returns the authenticated identity, or "" when disconnected.
func (g *SessionGate) Identity() string {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.identity
}

// Initialized reports whether encryption initialization has completed.
func (g *SessionGate) Initialized() bool {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.initialized
}

// Initializing reports whether an initialization attempt is in flight.
func (g *SessionGate) Initializing() bool {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.initializing
}
