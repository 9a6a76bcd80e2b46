// Package audit provides security audit logging for SIEM consumption.
// Events are logged as structured JSON under the "security_audit" logger.
package audit

import (
	"context"
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/ekaya-inc/ekaya-sqlgen/pkg/logging"
)

// SecurityEventType categorizes security-relevant events for filtering and alerting.
type SecurityEventType string

const (
	// EventSQLInjectionAttempt is logged when libinjection flags user-supplied context.
	EventSQLInjectionAttempt SecurityEventType = "sql_injection_attempt"
	// EventUnsafeGeneratedSQL is logged when the model returns SQL that is not a
	// single read-only statement.
	EventUnsafeGeneratedSQL SecurityEventType = "unsafe_generated_sql"
)

// SecurityEvent represents an auditable security event.
type SecurityEvent struct {
	Timestamp      time.Time         `json:"timestamp"`
	EventType      SecurityEventType `json:"event_type"`
	RequestID      string            `json:"request_id,omitempty"`
	ConversationID *uuid.UUID        `json:"conversation_id,omitempty"`
	ClientIP       string            `json:"client_ip,omitempty"`
	Details        any               `json:"details"`
	Severity       string            `json:"severity"` // info, warning, critical
}

// SQLInjectionDetails contains specifics of a detected SQL injection attempt.
type SQLInjectionDetails struct {
	Field       string `json:"field"`
	Fragment    string `json:"fragment"`
	Fingerprint string `json:"fingerprint"` // libinjection fingerprint for pattern analysis
}

// UnsafeSQLDetails describes generated SQL that failed read-only validation.
type UnsafeSQLDetails struct {
	SQL    string `json:"sql"`
	Reason string `json:"reason"`
	Model  string `json:"model,omitempty"`
}

type requestInfoKey struct{}

// RequestInfo identifies the HTTP request an event belongs to.
type RequestInfo struct {
	RequestID string
	ClientIP  string
}

// WithRequestInfo attaches request identity to ctx for later audit events.
func WithRequestInfo(ctx context.Context, info RequestInfo) context.Context {
	return context.WithValue(ctx, requestInfoKey{}, info)
}

// RequestInfoFromContext returns the request identity, or the zero value
// outside an HTTP request.
func RequestInfoFromContext(ctx context.Context) RequestInfo {
	info, _ := ctx.Value(requestInfoKey{}).(RequestInfo)
	return info
}

// SecurityAuditor logs security events for SIEM consumption.
type SecurityAuditor struct {
	logger *zap.Logger
}

// NewSecurityAuditor creates a new security auditor with a dedicated logger namespace.
func NewSecurityAuditor(logger *zap.Logger) *SecurityAuditor {
	return &SecurityAuditor{logger: logger.Named("security_audit")}
}

// LogInjectionAttempt records user context that libinjection classified as SQL
// injection. Logged at ERROR level with "critical" severity. Detection never
// blocks the request.
func (a *SecurityAuditor) LogInjectionAttempt(ctx context.Context, conversationID *uuid.UUID, details SQLInjectionDetails) {
	details.Fragment = logging.TruncateForLog(details.Fragment)
	event := a.newEvent(ctx, EventSQLInjectionAttempt, conversationID, details, "critical")

	a.logger.Error("SQL injection attempt detected",
		append(eventFields(event),
			zap.String("field", details.Field),
			zap.String("fingerprint", details.Fingerprint),
		)...,
	)
}

// LogUnsafeGeneratedSQL records model output that is not a single read-only
// statement. Logged at WARN level; the SQL is still returned to the caller,
// who is responsible for executing it under read-only credentials.
func (a *SecurityAuditor) LogUnsafeGeneratedSQL(ctx context.Context, conversationID *uuid.UUID, details UnsafeSQLDetails) {
	details.SQL = logging.TruncateForLog(details.SQL)
	event := a.newEvent(ctx, EventUnsafeGeneratedSQL, conversationID, details, "warning")

	a.logger.Warn("Generated SQL failed read-only validation",
		append(eventFields(event),
			zap.String("reason", details.Reason),
			zap.String("model", details.Model),
		)...,
	)
}

func (a *SecurityAuditor) newEvent(ctx context.Context, eventType SecurityEventType, conversationID *uuid.UUID, details any, severity string) SecurityEvent {
	info := RequestInfoFromContext(ctx)
	return SecurityEvent{
		Timestamp:      time.Now().UTC(),
		EventType:      eventType,
		RequestID:      info.RequestID,
		ConversationID: conversationID,
		ClientIP:       info.ClientIP,
		Details:        details,
		Severity:       severity,
	}
}

func eventFields(event SecurityEvent) []zap.Field {
	// Ignoring error as marshaling known types should never fail
	eventJSON, _ := json.Marshal(event)

	conversation := ""
	if event.ConversationID != nil {
		conversation = event.ConversationID.String()
	}
	return []zap.Field{
		zap.String("event_json", string(eventJSON)),
		zap.String("request_id", event.RequestID),
		zap.String("conversation_id", conversation),
		zap.String("client_ip", event.ClientIP),
		zap.String("severity", event.Severity),
	}
}
