package types

import (
	"strings"
)

// Lifetime defines when a metric value is reset
type Lifetime string

const (
	// LifetimePing values are cleared every time the ping they belong to is collected
	LifetimePing Lifetime = "ping"
	// LifetimeUser values persist until upload is disabled or the store is wiped
	LifetimeUser Lifetime = "user"
	// LifetimeApplication values persist until the application clears them
	LifetimeApplication Lifetime = "application"
)

// Lifetimes lists every lifetime in the order snapshots are assembled
var Lifetimes = []Lifetime{LifetimeUser, LifetimePing, LifetimeApplication}

// MetricType is the storage and payload key of a metric kind
type MetricType string

const (
	MetricTypeBoolean        MetricType = "boolean"
	MetricTypeCounter        MetricType = "counter"
	MetricTypeDatetime       MetricType = "datetime"
	MetricTypeEvent          MetricType = "event"
	MetricTypeLabeledBoolean MetricType = "labeled_boolean"
	MetricTypeLabeledCounter MetricType = "labeled_counter"
	MetricTypeLabeledString  MetricType = "labeled_string"
	MetricTypeQuantity       MetricType = "quantity"
	MetricTypeString         MetricType = "string"
	MetricTypeTimespan       MetricType = "timespan"
	MetricTypeURL            MetricType = "url"
	MetricTypeUUID           MetricType = "uuid"
)

// IsLabeled reports whether values of this type are stored per label
func (t MetricType) IsLabeled() bool {
	return strings.HasPrefix(string(t), "labeled_")
}

// CommonMetricData holds the metadata shared by every metric
type CommonMetricData struct {
	Name        string
	Category    string
	SendInPings []string
	Lifetime    Lifetime
	Disabled    bool
	// DynamicLabel is set on submetrics of a labeled metric
	DynamicLabel string
}

// BaseIdentifier returns "category.name", or just the name for uncategorized metrics
func (m CommonMetricData) BaseIdentifier() string {
	if m.Category == "" {
		return m.Name
	}
	return m.Category + "." + m.Name
}

// Identifier returns the storage identifier, including the label for submetrics
func (m CommonMetricData) Identifier() string {
	if m.DynamicLabel != "" {
		return CombineIdentifierAndLabel(m.BaseIdentifier(), m.DynamicLabel)
	}
	return m.BaseIdentifier()
}

// EffectiveLifetime falls back to ping lifetime when none is set
func (m CommonMetricData) EffectiveLifetime() Lifetime {
	if m.Lifetime == "" {
		return LifetimePing
	}
	return m.Lifetime
}

// LabelSeparator joins a labeled metric identifier with its label
const LabelSeparator = "/"

// CombineIdentifierAndLabel builds the storage identifier of a labeled submetric
func CombineIdentifierAndLabel(identifier, label string) string {
	return identifier + LabelSeparator + label
}

// SplitIdentifierAndLabel is the inverse of CombineIdentifierAndLabel
func SplitIdentifierAndLabel(identifier string) (string, string, bool) {
	idx := strings.Index(identifier, LabelSeparator)
	if idx < 0 {
		return identifier, "", false
	}
	return identifier[:idx], identifier[idx+1:], true
}

// ErrorType classifies recording errors that are counted instead of returned
type ErrorType string

const (
	ErrorTypeInvalidValue    ErrorType = "invalid_value"
	ErrorTypeInvalidLabel    ErrorType = "invalid_label"
	ErrorTypeInvalidState    ErrorType = "invalid_state"
	ErrorTypeInvalidOverflow ErrorType = "invalid_overflow"
	ErrorTypeInvalidType     ErrorType = "invalid_type"
)

// ErrorTypes lists every error type
var ErrorTypes = []ErrorType{
	ErrorTypeInvalidValue,
	ErrorTypeInvalidLabel,
	ErrorTypeInvalidState,
	ErrorTypeInvalidOverflow,
	ErrorTypeInvalidType,
}

// PingRecord is a fully assembled ping waiting in the pending pings store
type PingRecord struct {
	CollectionDate string            `json:"collectionDate"`
	Path           string            `json:"path"`
	Payload        map[string]any    `json:"payload"`
	Headers        map[string]string `json:"headers,omitempty"`
}

// QueuedPing is a ping owned by the upload manager
type QueuedPing struct {
	Identifier string
	PingRecord
	Retries int
}

// DeletionRequestPingName is the ping that must survive every queue or store wipe
const DeletionRequestPingName = "deletion-request"

// IsDeletionRequest reports whether the record is a deletion-request ping
func (p PingRecord) IsDeletionRequest() bool {
	return strings.Contains(p.Path, "/"+DeletionRequestPingName+"/")
}

// UploadResultKind classifies the outcome of a single upload attempt
type UploadResultKind string

const (
	UploadResultSuccess              UploadResultKind = "success"
	UploadResultRecoverableFailure   UploadResultKind = "recoverable_failure"
	UploadResultUnrecoverableFailure UploadResultKind = "unrecoverable_failure"
)

// UploadResult is what a transport reports back for one request.
// Status is zero when no HTTP status was received.
type UploadResult struct {
	Status int
	Result UploadResultKind
}
