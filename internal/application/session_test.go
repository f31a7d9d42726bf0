package application_test

import (
	"context"
	"errors"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noisemap/noisemap/internal/application"
	"github.com/noisemap/noisemap/internal/domain/model"
)

func TestSessionGateConnectInitializesOnce(t *testing.T) {
	enc := &mockEncryptor{}
	gate := application.NewSessionGate(enc, newTestNotifier(), slog.Default())

	require.NoError(t, gate.Connect(context.Background(), "0xreporter"))
	require.NoError(t, gate.Connect(context.Background(), "0xreporter"))

	assert.Equal(t, 1, enc.initCount())
	assert.True(t, gate.Ready())
	assert.Equal(t, "0xreporter", gate.Identity())
}

func TestSessionGateInitFailureLeavesNotReadyAndNotifies(t *testing.T) {
	enc := &mockEncryptor{initErr: errors.New("relayer unreachable")}
	notifier := newTestNotifier()
	gate := application.NewSessionGate(enc, notifier, slog.Default())

	err := gate.Connect(context.Background(), "0xreporter")

	require.Error(t, err)
	assert.True(t, gate.Authenticated())
	assert.False(t, gate.Initialized())
	assert.False(t, gate.Ready())
	assert.Equal(t, model.NotifyError, notifier.Current().Kind)
}

func TestSessionGateReconnectRetriesFailedInit(t *testing.T) {
	enc := &mockEncryptor{initErr: errors.New("relayer unreachable")}
	gate := application.NewSessionGate(enc, newTestNotifier(), slog.Default())

	require.Error(t, gate.Connect(context.Background(), "0xreporter"))

	// The authenticated state did not change, but the repeated Connect is
	// the explicit true->true edge that retries initialization.
	enc.setInitErr(nil)
	require.NoError(t, gate.Connect(context.Background(), "0xreporter"))

	assert.Equal(t, 2, enc.initCount())
	assert.True(t, gate.Ready())
}

func TestSessionGateDisconnectKeepsInitialization(t *testing.T) {
	enc := &mockEncryptor{}
	gate := application.NewSessionGate(enc, newTestNotifier(), slog.Default())
	require.NoError(t, gate.Connect(context.Background(), "0xreporter"))

	gate.Disconnect()

	assert.False(t, gate.Authenticated())
	assert.False(t, gate.Ready())
	assert.True(t, gate.Initialized())

	// Reconnecting does not re-run initialization.
	require.NoError(t, gate.Connect(context.Background(), "0xother"))
	assert.Equal(t, 1, enc.initCount())
	assert.True(t, gate.Ready())
	assert.Equal(t, "0xother", gate.Identity())
}
