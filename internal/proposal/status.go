package proposal

import (
	"errors"

	"github.com/brasmat/proposal-api/internal/domain"
)

// ClientState is the status of a proposal as the client sees it
type ClientState string

const (
	ClientStatePending  ClientState = "pending"
	ClientStateAccepted ClientState = "accepted"
	ClientStateRejected ClientState = "rejected"
	// ClientStateHidden is used for expired proposals, which clients cannot open
	ClientStateHidden ClientState = "hidden"
)

// Action is a client decision on a proposal
type Action string

const (
	ActionAccept Action = "accept"
	ActionReject Action = "reject"
)

var (
	// ErrTerminalState is returned when a decision is attempted on an already decided proposal
	ErrTerminalState = errors.New("proposal already decided")
	// ErrUnknownAction is returned for actions other than accept and reject
	ErrUnknownAction = errors.New("unknown proposal action")
)

// ClientStateOf maps the persisted status to the client-visible state
func ClientStateOf(status domain.ProposalStatus) ClientState {
	switch status {
	case domain.ProposalStatusDraft, domain.ProposalStatusSent, domain.ProposalStatusViewed:
		return ClientStatePending
	case domain.ProposalStatusAccepted:
		return ClientStateAccepted
	case domain.ProposalStatusRejected:
		return ClientStateRejected
	case domain.ProposalStatusExpired:
		return ClientStateHidden
	}
	return ClientStateHidden
}

// Transition applies a client action. Only pending proposals can be decided and both
// outcomes are terminal: a second decision fails with ErrTerminalState.
func Transition(current ClientState, action Action) (ClientState, error) {
	if current != ClientStatePending {
		return current, ErrTerminalState
	}
	switch action {
	case ActionAccept:
		return ClientStateAccepted, nil
	case ActionReject:
		return ClientStateRejected, nil
	}
	return current, ErrUnknownAction
}

// PersistedStatus is the stored status for a decided client state
func PersistedStatus(state ClientState) domain.ProposalStatus {
	switch state {
	case ClientStateAccepted:
		return domain.ProposalStatusAccepted
	case ClientStateRejected:
		return domain.ProposalStatusRejected
	case ClientStateHidden:
		return domain.ProposalStatusExpired
	}
	return domain.ProposalStatusSent
}

// InteractionType is the log entry type recorded for an action
func (a Action) InteractionType() domain.InteractionType {
	if a == ActionAccept {
		return domain.InteractionAccept
	}
	return domain.InteractionReject
}

// Description is the Portuguese interaction log text for an action
func (a Action) Description() string {
	if a == ActionAccept {
		return "Proposta aceita pelo cliente"
	}
	return "Proposta recusada pelo cliente"
}
