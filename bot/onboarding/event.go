package onboarding

import (
	"github.com/m3rciful/airdropbot/bot/store"
)

// EventKind classifies inbound user events.
type EventKind int

const (
	// FirstContact is a /start, optionally carrying a referrer id as payload.
	FirstContact EventKind = iota + 1
	// TaskClaim asserts the membership tasks are done.
	TaskClaim
	// TextSubmit carries free text typed by the user.
	TextSubmit
)

func (k EventKind) String() string {
	switch k {
	case FirstContact:
		return "first_contact"
	case TaskClaim:
		return "task_claim"
	case TextSubmit:
		return "text_submit"
	}
	return "unknown"
}

// Event is a single inbound interaction.
type Event struct {
	UserID  string
	Kind    EventKind
	Payload string
}

// Directive tells the transport which message to render.
type Directive string

const (
	DirectiveNone                  Directive = ""
	DirectiveShowTaskPrompt        Directive = "show_task_prompt"
	DirectiveShowStats             Directive = "show_stats"
	DirectiveTasksNotVerified      Directive = "tasks_not_verified"
	DirectiveAskSocialHandle       Directive = "ask_social_handle"
	DirectiveRejectDuplicateHandle Directive = "reject_duplicate_handle"
	DirectiveAskWallet             Directive = "ask_wallet"
	DirectiveRejectDuplicateWallet Directive = "reject_duplicate_wallet"
	DirectiveSignupComplete        Directive = "signup_complete"
	DirectiveInvalidInput          Directive = "invalid_input"
	DirectiveRetryLater            Directive = "retry_later"
)

// Result is the outcome of handling one event. Record is the user's record
// after the transition, or nil when the user is unknown.
type Result struct {
	Directive Directive
	Record    *store.UserRecord
}

func result(d Directive, rec *store.UserRecord) Result {
	return Result{Directive: d, Record: rec}
}
