package events

import "github.com/shopspring/decimal"

// TransactionCreated is the payload of transaction.created, produced
// upstream by the ledger service and never by this core.
type TransactionCreated struct {
	TransactionID           string          `json:"transaction_id"`
	Amount                  decimal.Decimal `json:"amount"`
	Currency                string          `json:"currency"`
	OriginAccount           string          `json:"origin_account"`
	DestinationAccount      string          `json:"destination_account"`
	DestinationJurisdiction string          `json:"destination_jurisdiction"`
	InitiatedAt             string          `json:"initiated_at"`
	VelocityIndicator       float64         `json:"velocity_indicator,omitempty"`
}

func (TransactionCreated) EventType() Topic { return TopicTransactionCreated }

// Citation identifies a regulatory-corpus chunk a decision was grounded on.
type Citation struct {
	DocumentID string `json:"document_id"`
	Ordinal    int    `json:"ordinal"`
	Regulator  string `json:"regulator,omitempty"`
}

// RiskFlagged is the payload of risk.flagged, emitted by the risk handler.
type RiskFlagged struct {
	TransactionID    string     `json:"transaction_id"`
	Score            float64    `json:"score"`
	Indicators       []string   `json:"indicators"`
	JustificationText string    `json:"justification_text"`
	Citations        []Citation `json:"citations"`
}

func (RiskFlagged) EventType() Topic { return TopicRiskFlagged }

// ComplianceActionKind is one of the four values the compliance handler may
// select. block supersedes monitor/hold/report: it is never combined with
// the others for the same risk.flagged event.
type ComplianceActionKind string

const (
	ActionMonitor ComplianceActionKind = "monitor"
	ActionHold    ComplianceActionKind = "hold"
	ActionBlock   ComplianceActionKind = "block"
	ActionReport  ComplianceActionKind = "report"
)

// ComplianceAction is the payload of compliance.action. One event is
// published per chosen action.
type ComplianceAction struct {
	TransactionID string               `json:"transaction_id"`
	Action        ComplianceActionKind `json:"action"`
	RationaleText string               `json:"rationale_text"`
	Citations     []Citation           `json:"citations"`
}

func (ComplianceAction) EventType() Topic { return TopicComplianceAction }

// OpsAction is the payload of ops.action, describing an operational intent
// the resilience handler derived from a compliance action. The core
// publishes the intent; it never executes it against a banking system.
type OpsAction struct {
	TransactionID string            `json:"transaction_id"`
	Intent        string            `json:"intent"`
	Parameters    map[string]string `json:"parameters,omitempty"`
}

func (OpsAction) EventType() Topic { return TopicOpsAction }

// OpsAlertChannel distinguishes the two producers of ops.alert.
type OpsAlertChannel string

const (
	AlertChannelSentiment OpsAlertChannel = "sentiment"
	AlertChannelNarrative OpsAlertChannel = "narrative"
)

// OpsAlert is the payload of ops.alert. Fields populated depend on Channel:
// the sentiment handler fills SentimentScore/Excerpt/SuggestedAction; the
// knowledge handler fills SummaryText/Citations.
type OpsAlert struct {
	Channel         OpsAlertChannel `json:"channel"`
	CorrelationID   string          `json:"correlation_id,omitempty"`
	SentimentScore  float64         `json:"sentiment_score,omitempty"`
	Excerpt         string          `json:"excerpt,omitempty"`
	SuggestedAction string          `json:"suggested_action,omitempty"`
	SummaryText     string          `json:"summary_text,omitempty"`
	Citations       []Citation      `json:"citations,omitempty"`
}

func (OpsAlert) EventType() Topic { return TopicOpsAlert }

// CustomerMessage is the payload of customer.message.
type CustomerMessage struct {
	Body string `json:"body"`
}

func (CustomerMessage) EventType() Topic { return TopicCustomerMessage }

// LogLine is the payload of log.line.
type LogLine struct {
	SourceComponent string `json:"source_component"`
	Body            string `json:"body"`
}

func (LogLine) EventType() Topic { return TopicLogLine }

// UserQuery is the payload of user.query.
type UserQuery struct {
	QueryID string `json:"query_id"`
	Text    string `json:"text"`
}

func (UserQuery) EventType() Topic { return TopicUserQuery }

// UserResponse is the payload of user.response.
type UserResponse struct {
	QueryID    string     `json:"query_id"`
	AnswerText string     `json:"answer_text"`
	Citations  []Citation `json:"citations"`
}

func (UserResponse) EventType() Topic { return TopicUserResponse }

// PIIFinding identifies one redacted span within a scanned log line.
type PIIFinding struct {
	Kind  string `json:"kind"`
	Start int    `json:"start"`
	End   int    `json:"end"`
}

// PrivacyViolation is the payload of privacy.violation.
type PrivacyViolation struct {
	SourceComponent string       `json:"source_component"`
	Findings        []PIIFinding `json:"findings"`
	SanitizedLine   string       `json:"sanitized_line"`
}

func (PrivacyViolation) EventType() Topic { return TopicPrivacyViolation }
