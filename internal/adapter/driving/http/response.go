package httphandler

import (
	"encoding/json"
	"net/http"
	"strings"
	"time"

	"github.com/noisemap/noisemap/internal/application"
	"github.com/noisemap/noisemap/internal/domain/model"
)

// writeJSON marshals v to JSON and writes it to the response with the given
// status code. If marshaling fails, a 500 error is written instead.
func writeJSON(w http.ResponseWriter, status int, v any) {
	data, err := json.Marshal(v)
	if err != nil {
		w.Header().Set("Content-Type", "application/json; charset=utf-8")
		w.WriteHeader(http.StatusInternalServerError)
		_, _ = w.Write([]byte(`{"error":"internal server error"}`))
		return
	}

	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	_, _ = w.Write(data)
}

// writeError writes a JSON error response with the given status code and message.
func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, errorResponse{Error: message})
}

// errorResponse is the standard error response body.
type errorResponse struct {
	Error string `json:"error"`
}

// RecordResponse is the JSON representation of a noise measurement record.
// The confidential decibel value appears only once it is observable, tagged
// with where it came from.
type RecordResponse struct {
	ID          string `json:"id"`
	Label       string `json:"label"`
	LabelHTML   string `json:"label_html"`
	AreaCode    int    `json:"area_code"`
	PublicTag   int    `json:"public_tag"`
	SubmittedAt int64  `json:"submitted_at"`
	Submitter   string `json:"submitter"`

	ClearState string `json:"clear_state"`
	ClearValue *int64 `json:"clear_value,omitempty"`
	Verified   bool   `json:"verified"`
}

// StatsResponse is the JSON representation of the aggregate dashboard stats.
type StatsResponse struct {
	TotalReports    int     `json:"total_reports"`
	VerifiedReports int     `json:"verified_reports"`
	RecentActivity  int     `json:"recent_activity"`
	AverageDecibel  float64 `json:"average_decibel"`
	MaxDecibel      int64   `json:"max_decibel"`
}

// SessionResponse is the JSON representation of the session gate state. Token
// is populated only by the connect endpoint.
type SessionResponse struct {
	Authenticated bool   `json:"authenticated"`
	Identity      string `json:"identity,omitempty"`
	Initialized   bool   `json:"initialized"`
	Initializing  bool   `json:"initializing"`
	Ready         bool   `json:"ready"`
	Token         string `json:"token,omitempty"`
}

// ConnectRequest is the JSON body for the connect endpoint.
type ConnectRequest struct {
	Identity string `json:"identity"`
}

// SubmitRequest is the JSON body for the submit endpoint. Decibel and area
// code arrive as strings, matching the submission form contract: validation
// of the raw text happens inside the workflow.
type SubmitRequest struct {
	Label    string `json:"label"`
	Decibel  string `json:"decibel"`
	AreaCode string `json:"area_code"`
}

// SubmitResponse is the JSON representation of an accepted submission.
type SubmitResponse struct {
	ID string `json:"id"`
}

// DecryptResponse is the JSON representation of a decryption outcome.
// ValueKnown is false when the record was verified by another party mid-flow;
// the authoritative value arrives with the next records listing.
type DecryptResponse struct {
	Value      *int64 `json:"value,omitempty"`
	ValueKnown bool   `json:"value_known"`
	FromLedger bool   `json:"from_ledger"`
}

// StatusResponse is the JSON representation of the client workflow status.
type StatusResponse struct {
	SubmitPhase  string               `json:"submit_phase"`
	DecryptPhase string               `json:"decrypt_phase"`
	Refreshing   bool                 `json:"refreshing"`
	Notification NotificationResponse `json:"notification"`
}

// NotificationResponse is the JSON representation of the transient
// user-facing notification.
type NotificationResponse struct {
	Visible bool   `json:"visible"`
	Kind    string `json:"kind,omitempty"`
	Message string `json:"message,omitempty"`
}

// AvailabilityResponse is the JSON representation of the ledger availability
// probe.
type AvailabilityResponse struct {
	Available bool `json:"available"`
}

// HealthResponse is the JSON representation of the health check endpoint.
type HealthResponse struct {
	Status string `json:"status"`
	Time   string `json:"time"`
}

// toRecordResponse converts a domain Record to its JSON response representation.
func toRecordResponse(record model.Record) RecordResponse {
	resp := RecordResponse{
		ID:          record.ID,
		Label:       record.Label,
		LabelHTML:   strings.TrimSpace(RenderLabel(record.Label)),
		AreaCode:    record.AreaCode,
		PublicTag:   record.PublicTag,
		SubmittedAt: record.SubmittedAt,
		Submitter:   record.Submitter,
		ClearState:  string(record.Clear.State()),
		Verified:    record.Clear.IsVerified(),
	}

	if value, known := record.Clear.Value(); known {
		resp.ClearValue = &value
	}

	return resp
}

// toStatsResponse converts domain Stats to its JSON response representation.
func toStatsResponse(stats model.Stats) StatsResponse {
	return StatsResponse{
		TotalReports:    stats.TotalReports,
		VerifiedReports: stats.VerifiedReports,
		RecentActivity:  stats.RecentActivity,
		AverageDecibel:  stats.AverageDecibel,
		MaxDecibel:      stats.MaxDecibel,
	}
}

// toDecryptResponse converts an application DecryptResult to its JSON
// response representation.
func toDecryptResponse(result application.DecryptResult) DecryptResponse {
	resp := DecryptResponse{
		ValueKnown: result.ValueKnown,
		FromLedger: result.FromLedger,
	}
	if result.ValueKnown {
		value := result.Value
		resp.Value = &value
	}
	return resp
}

// toNotificationResponse converts a domain Notification to its JSON
// response representation.
func toNotificationResponse(n model.Notification) NotificationResponse {
	resp := NotificationResponse{Visible: n.Visible}
	if n.Visible {
		resp.Kind = string(n.Kind)
		resp.Message = n.Message
	}
	return resp
}

// healthNow returns the current UTC time formatted for the health endpoint.
func healthNow() string {
	return time.Now().UTC().Format(time.RFC3339)
}
