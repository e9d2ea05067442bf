// Package followup queues WhatsApp follow-up messages for proposals on asynq.
package followup

import (
	"encoding/json"
	"fmt"

	"github.com/google/uuid"
	"github.com/hibiken/asynq"
)

// TaskWhatsAppFollowUp sends one follow-up message about a proposal
const TaskWhatsAppFollowUp = "followup:whatsapp"

// Reason tells the worker why the follow-up was queued
type Reason string

const (
	ReasonManual       Reason = "manual"
	ReasonExpiringSoon Reason = "expiring_soon"
)

// Payload is the task body. An empty Message means the default template is used.
type Payload struct {
	ProposalID  uuid.UUID  `json:"proposalId"`
	Message     string     `json:"message,omitempty"`
	Reason      Reason     `json:"reason"`
	RequestedBy *uuid.UUID `json:"requestedBy,omitempty"`
}

// NewTask encodes the payload
func NewTask(payload Payload) (*asynq.Task, error) {
	if payload.ProposalID == uuid.Nil {
		return nil, fmt.Errorf("follow-up payload has no proposal id")
	}
	data, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(TaskWhatsAppFollowUp, data), nil
}

// ParsePayload decodes the task body
func ParsePayload(task *asynq.Task) (Payload, error) {
	var payload Payload
	if err := json.Unmarshal(task.Payload(), &payload); err != nil {
		return Payload{}, err
	}
	if payload.ProposalID == uuid.Nil {
		return Payload{}, fmt.Errorf("follow-up payload has no proposal id")
	}
	return payload, nil
}
