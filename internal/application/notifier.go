// Package application contains use-case orchestration services.
package application

import (
	"sync"
	"time"

	"github.com/noisemap/noisemap/internal/domain/model"
)

// Default auto-clear delays for terminal notifications.
const (
	DefaultSuccessClearDelay = 2 * time.Second
	DefaultErrorClearDelay   = 3 * time.Second
)

// Notifier is the single-slot status channel shared by all workflows.
// Set is last-write-wins. Terminal notifications (success, error) schedule
// their own auto-clear; every Set cancels the previously scheduled clear so
// a stale timer can never wipe a newer notification.
type Notifier struct {
	mu           sync.Mutex
	current      model.Notification
	clearTimer   *time.Timer
	subscribers  []func(model.Notification)
	successDelay time.Duration
	errorDelay   time.Duration
}

// NewNotifier creates a Notifier with the given auto-clear delays for
// success and error notifications. Pending notifications never auto-clear;
// they are overwritten by the workflow's terminal Set.
func NewNotifier(successDelay, errorDelay time.Duration) *Notifier {
	return &Notifier{
		successDelay: successDelay,
		errorDelay:   errorDelay,
	}
}

// Subscribe registers a callback invoked on every notification change,
// including auto-clears. Callbacks run synchronously under the notifier's
// lock and must not call back into the Notifier.
func (n *Notifier) Subscribe(fn func(model.Notification)) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.subscribers = append(n.subscribers, fn)
}

// Current returns the notification currently occupying the slot.
func (n *Notifier) Current() model.Notification {
	n.mu.Lock()
	defer n.mu.Unlock()
	return n.current
}

// Set overwrites the slot with a visible notification. Success and error
// notifications are cleared automatically after the configured delay.
func (n *Notifier) Set(kind model.NotificationKind, message string) {
	n.mu.Lock()
	defer n.mu.Unlock()

	if n.clearTimer != nil {
		n.clearTimer.Stop()
		n.clearTimer = nil
	}

	n.current = model.Notification{Visible: true, Kind: kind, Message: message}
	n.notifyLocked()

	switch kind {
	case model.NotifySuccess:
		n.scheduleClearLocked(n.successDelay)
	case model.NotifyError:
		n.scheduleClearLocked(n.errorDelay)
	}
}

// Clear resets the slot to the hidden idle state and cancels any pending
// auto-clear.
func (n *Notifier) Clear() {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.clearLocked()
}

func (n *Notifier) scheduleClearLocked(delay time.Duration) {
	var timer *time.Timer
	timer = time.AfterFunc(delay, func() {
		n.mu.Lock()
		defer n.mu.Unlock()
		// A Set that raced this callback already stopped or replaced the
		// timer; only the still-current timer may clear.
		if n.clearTimer != timer {
			return
		}
		n.clearLocked()
	})
	n.clearTimer = timer
}

func (n *Notifier) clearLocked() {
	if n.clearTimer != nil {
		n.clearTimer.Stop()
		n.clearTimer = nil
	}
	n.current = model.Notification{}
	n.notifyLocked()
}

func (n *Notifier) notifyLocked() {
	for _, fn := range n.subscribers {
		fn(n.current)
	}
}
