// Package reply defines the answer returned for every processed message.
package reply

import "github.com/sweetpotato0/wanderai/router"

// Module names the component family that produced a reply.
type Module string

const (
	ModuleTask          Module = "modules"
	ModuleRAGOnly       Module = "rag_only"
	ModuleClarification Module = "clarification"
	ModuleNone          Module = "none"
)

// Status is the grounding verdict of a reply.
type Status string

const (
	StatusGrounded       Status = "grounded"
	StatusPartial        Status = "partial"
	StatusFailed         Status = "failed"
	StatusRejectedBudget Status = "rejected_budget"
)

// Type classifies the reply content.
type Type string

const (
	TypeSuggestion    Type = "suggestion"
	TypeItinerary     Type = "itinerary"
	TypeGeneralChat   Type = "general_chat"
	TypeClarification Type = "clarification_needed"
	TypeNoAnswer      Type = "no_answer"
	TypeOutOfScope    Type = "out_of_scope"
	TypeError         Type = "error"
)

// Reply is the outcome of one message.
type Reply struct {
	Response         string      `json:"response"`
	HasAnswer        bool        `json:"has_answer"`
	Sources          []string    `json:"sources"`
	ModuleUsed       Module      `json:"module_used"`
	Confidence       float64     `json:"confidence"`
	ValidationStatus Status      `json:"validation_status"`
	Path             router.Path `json:"path"`
	Type             Type        `json:"type"`
	Data             any         `json:"data,omitempty"`
	SessionID        string      `json:"session_id"`
}

// Texts shared by the orchestrator and the middleware.
const (
	GenericErrorText = "Sorry, something went wrong while handling your message. Please try again."
	RateLimitedText  = "You're sending messages a little too quickly. Please slow down and try again in a moment."
	InvalidInputText = "I couldn't read that message. Please send a travel question in plain text."
)

// Error returns the generic error reply.
func Error(text string) *Reply {
	return &Reply{
		Response:         text,
		Sources:          []string{},
		ModuleUsed:       ModuleNone,
		ValidationStatus: StatusFailed,
		Path:             router.PathFallback,
		Type:             TypeError,
	}
}
