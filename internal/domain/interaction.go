package domain

// RegistrationSubmitted is delivered by the chat platform adapter when a member submits
// the registration form.
type RegistrationSubmitted struct {
	InteractionID string `json:"interaction_id"`
	UserID        string `json:"user_id"`
	GuildID       string `json:"guild_id"`
	IsAdmin       bool   `json:"is_admin"`
	OrderID       string `json:"order_id"`
	Name          string `json:"name"`
}

// ReplyOutcome names the result rendered back to the requester.
type ReplyOutcome string

const (
	ReplyRegistered        ReplyOutcome = "registered"
	ReplyAlreadyRegistered ReplyOutcome = "already_registered"
	ReplyNotFound          ReplyOutcome = "not_found"
	ReplyNoRoleMapping     ReplyOutcome = "no_role_mapping"
	ReplyInvalid           ReplyOutcome = "invalid"
	ReplyRateLimited       ReplyOutcome = "rate_limited"
	ReplyError             ReplyOutcome = "error"
)

// Reply is what the adapter shows to the member who submitted the form.
type Reply struct {
	Outcome   ReplyOutcome `json:"outcome"`
	Message   string       `json:"message"`
	Ephemeral bool         `json:"ephemeral"`
}

// GuardResult is the outcome of a guard evaluation.
type GuardResult struct {
	Allowed bool   `json:"allowed"`
	Reason  string `json:"reason,omitempty"`
	Guard   string `json:"guard,omitempty"` // which guard blocked
}
