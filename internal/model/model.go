// Package model holds the domain types shared across Shannon's core
// components: permission levels, the bus event payloads, conversation
// and memory records, webhook events, and plan/step records.
package model

import "time"

// PermissionLevel is a totally ordered trust level. Comparisons use the
// underlying integer order: PUBLIC < TRUSTED < OPERATOR < ADMIN.
type PermissionLevel int

const (
	PermissionPublic PermissionLevel = iota
	PermissionTrusted
	PermissionOperator
	PermissionAdmin
)

// String renders the permission level for logs and command replies.
func (p PermissionLevel) String() string {
	switch p {
	case PermissionPublic:
		return "public"
	case PermissionTrusted:
		return "trusted"
	case PermissionOperator:
		return "operator"
	case PermissionAdmin:
		return "admin"
	default:
		return "unknown"
	}
}

// ParsePermissionLevel parses a level name, defaulting to PUBLIC on an
// unrecognized string (callers that need strict parsing check ok).
func ParsePermissionLevel(s string) (PermissionLevel, bool) {
	switch s {
	case "public":
		return PermissionPublic, true
	case "trusted":
		return PermissionTrusted, true
	case "operator":
		return PermissionOperator, true
	case "admin":
		return PermissionAdmin, true
	default:
		return PermissionPublic, false
	}
}

// Attachment describes a file reference carried on an inbound message.
type Attachment struct {
	URL         string `json:"url"`
	ContentType string `json:"content_type,omitempty"`
}

// IncomingMessage is constructed by a transport on receipt of a chat
// message. Its lifetime is a single pipeline invocation.
type IncomingMessage struct {
	Platform    string       `json:"platform"`
	Channel     string       `json:"channel"`
	UserID      string       `json:"user_id"`
	Content     string       `json:"content"`
	Timestamp   time.Time    `json:"timestamp"`
	Attachments []Attachment `json:"attachments,omitempty"`
}

// OutgoingMessage is constructed by the pipeline for delivery by a
// transport.
type OutgoingMessage struct {
	Platform string `json:"platform"`
	Channel  string `json:"channel"`
	Content  string `json:"content"`
	ReplyTo  string `json:"reply_to,omitempty"`
}

// Role identifies the speaker of a context message.
type Role string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
	RoleSystem    Role = "system"
)

// ContextMessage is one row of the persisted per-(platform,channel) log.
// Timestamp is a Unix epoch second, matching the INTEGER column
// contextstore stores it in.
type ContextMessage struct {
	ID            int64  `json:"id"`
	Platform      string `json:"platform"`
	Channel       string `json:"channel"`
	Role          Role   `json:"role"`
	Content       string `json:"content"`
	Timestamp     int64  `json:"timestamp"`
	TokenEstimate int    `json:"token_estimate"`
}

// MemoryEntry is one row of the persistent key/value memory store.
type MemoryEntry struct {
	Key       string    `json:"key"`
	Value     string    `json:"value"`
	Category  string    `json:"category"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
	Source    string    `json:"source,omitempty"`
}

// WebhookEvent is the normalized form of an inbound webhook POST.
type WebhookEvent struct {
	Source        string         `json:"source"`
	EventType     string         `json:"event_type"`
	Summary       string         `json:"summary"`
	Payload       map[string]any `json:"payload"`
	ChannelTarget string         `json:"channel_target"`
}

// StepStatus is the lifecycle state of a single plan step.
type StepStatus string

const (
	StepPending StepStatus = "pending"
	StepRunning StepStatus = "running"
	StepDone    StepStatus = "done"
	StepFailed  StepStatus = "failed"
	StepSkipped StepStatus = "skipped"
)

// PlanStep is one step of a Plan.
type PlanStep struct {
	ID          int            `json:"id"`
	Description string         `json:"description"`
	Tool        string         `json:"tool,omitempty"`
	Parameters  map[string]any `json:"parameters,omitempty"`
	Status      StepStatus     `json:"status"`
	Result      string         `json:"result,omitempty"`
	Error       string         `json:"error,omitempty"`
}

// PlanStatus is the lifecycle state of a Plan.
type PlanStatus string

const (
	PlanPlanning  PlanStatus = "planning"
	PlanExecuting PlanStatus = "executing"
	PlanCompleted PlanStatus = "completed"
	PlanFailed    PlanStatus = "failed"
)

// Plan is an LLM-decomposed goal with its steps.
type Plan struct {
	ID        string     `json:"id"`
	Goal      string     `json:"goal"`
	Steps     []PlanStep `json:"steps"`
	Status    PlanStatus `json:"status"`
	Channel   string     `json:"channel"` // "platform:channel"
	CreatedAt time.Time  `json:"created_at"`
	UpdatedAt time.Time  `json:"updated_at"`
}

// ToolCall is a single tool invocation requested by an LLM.
type ToolCall struct {
	ID        string         `json:"id"`
	Name      string         `json:"name"`
	Arguments map[string]any `json:"arguments"`
}

// ToolResult is the outcome of executing a ToolCall.
type ToolResult struct {
	ToolCallID string `json:"tool_call_id,omitempty"`
	Success    bool   `json:"success"`
	Output     string `json:"output,omitempty"`
	Error      string `json:"error,omitempty"`
}
