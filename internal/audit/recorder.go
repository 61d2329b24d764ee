package audit

import (
	"context"
	"net/http"
	"time"

	"github.com/oklog/ulid/v2"
	"github.com/rs/zerolog"
)

// EventType names a security-relevant lifecycle event. The attempt/success/
// failure/limited suffix is part of the name so the trail can be filtered
// without joining on outcome.
type EventType string

const (
	EventSignupAttempt        EventType = "signup_attempt"
	EventSignupSuccess        EventType = "signup_success"
	EventSignupFailure        EventType = "signup_failure"
	EventVerificationAttempt  EventType = "verification_attempt"
	EventVerificationSuccess  EventType = "verification_success"
	EventVerificationFailure  EventType = "verification_failure"
	EventResendAttempt        EventType = "resend_attempt"
	EventResendSuccess        EventType = "resend_success"
	EventResendLimited        EventType = "resend_limited"
	EventLoginAttempt         EventType = "login_attempt"
	EventLoginSuccess         EventType = "login_success"
	EventLoginFailure         EventType = "login_failure"
	EventResetRequestAttempt  EventType = "reset_request_attempt"
	EventResetRequestSuccess  EventType = "reset_request_success"
	EventResetRequestLimited  EventType = "reset_request_limited"
	EventResetConfirmAttempt  EventType = "reset_confirm_attempt"
	EventResetConfirmSuccess  EventType = "reset_confirm_success"
	EventResetConfirmFailure  EventType = "reset_confirm_failure"
	EventInviteCreateAttempt  EventType = "invite_create_attempt"
	EventInviteCreateSuccess  EventType = "invite_create"
	EventInviteCreateFailure  EventType = "invite_create_failure"
	EventInviteCreateLimited  EventType = "invite_create_limited"
	EventInviteAcceptAttempt  EventType = "invite_accept_attempt"
	EventInviteAcceptSuccess  EventType = "invite_accept"
	EventInviteAcceptFailure  EventType = "invite_accept_failure"
	EventLogout               EventType = "logout"
)

// Outcome is the coarse status of an audited event.
type Outcome string

const (
	OutcomeAttempt Outcome = "attempt"
	OutcomeSuccess Outcome = "success"
	OutcomeFailure Outcome = "failure"
)

// Entry is one append-only audit record. Entries are never updated or
// deleted by the engine.
type Entry struct {
	ID         string
	Type       EventType
	Outcome    Outcome
	Reason     string
	SubjectID  string
	Email      string
	OrgID      string
	RequestID  string
	IP         string
	UserAgent  string
	OccurredAt time.Time
}

// RequestMeta carries the transport context attached to every entry.
type RequestMeta struct {
	RequestID string
	IP        string
	UserAgent string
}

// MetaFromRequest extracts audit metadata from an HTTP request. The
// X-Forwarded-For chain wins over RemoteAddr when a proxy is in front.
func MetaFromRequest(r *http.Request) RequestMeta {
	if r == nil {
		return RequestMeta{}
	}
	ip := r.Header.Get("X-Forwarded-For")
	if ip == "" {
		ip = r.Header.Get("X-Real-IP")
	}
	if ip == "" {
		ip = r.RemoteAddr
	}
	return RequestMeta{
		RequestID: r.Header.Get("X-Request-ID"),
		IP:        ip,
		UserAgent: r.Header.Get("User-Agent"),
	}
}

// Store persists audit entries. The postgres implementation appends to the
// auth_events table.
type Store interface {
	Insert(ctx context.Context, entry Entry) error
}

// Recorder writes audit entries on a best-effort basis. Record never
// returns an error: an audit-trail gap is preferable to failing a
// user-facing lifecycle operation. Dropped entries are logged to the
// operational log only.
type Recorder struct {
	store  Store
	logger zerolog.Logger
}

func NewRecorder(store Store, logger zerolog.Logger) *Recorder {
	return &Recorder{
		store:  store,
		logger: logger.With().Str("component", "audit").Logger(),
	}
}

// Record appends one entry, filling in id and timestamp when absent.
func (r *Recorder) Record(ctx context.Context, entry Entry) {
	if entry.OccurredAt.IsZero() {
		entry.OccurredAt = time.Now().UTC()
	}
	if entry.ID == "" {
		entry.ID = ulid.Make().String()
	}

	if err := r.store.Insert(ctx, entry); err != nil {
		r.logger.Warn().
			Err(err).
			Str("event_type", string(entry.Type)).
			Str("outcome", string(entry.Outcome)).
			Msg("audit entry dropped")
	}
}
