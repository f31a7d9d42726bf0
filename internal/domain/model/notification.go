package model

// NotificationKind classifies a status notification.
type NotificationKind string

const (
	NotifyPending NotificationKind = "pending"
	NotifySuccess NotificationKind = "success"
	NotifyError   NotificationKind = "error"
)

// Notification is the single-slot status channel shared by all workflows.
// Last write wins; the zero value is the hidden/idle state.
type Notification struct {
	Visible bool
	Kind    NotificationKind
	Message string
}
