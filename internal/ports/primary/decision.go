package primary

import (
	"context"

	"github.com/example/reeve/internal/core/decision"
)

// DecisionService defines the primary port for the decision workflow.
type DecisionService interface {
	// CreateDecision raises (or idempotently re-raises) a packet.
	CreateDecision(ctx context.Context, req CreateDecisionRequest) (*CreateDecisionResponse, error)

	// GetDecision loads a packet by id.
	GetDecision(ctx context.Context, id string) (decision.Packet, error)

	// ListDecisions lists packets, optionally filtered by status.
	ListDecisions(ctx context.Context, status string) ([]decision.Packet, error)

	// AnswerDecision answers every open question of a packet from raw
	// input and records a decision_answered event in the ledger.
	AnswerDecision(ctx context.Context, id, rawAnswer string) (decision.Packet, error)
}

// QuestionInput is the producer-supplied form of one question.
type QuestionInput struct {
	Question           string
	ExpectedAnswerType string
	Constraints        string
	Blocks             []string
}

// CreateDecisionRequest carries everything needed to raise a packet.
type CreateDecisionRequest struct {
	Scope                   string
	Trigger                 string
	BlockingState           string
	Summary                 string
	WhyAutomationFailed     string
	WhatIsKnown             []string
	Questions               []QuestionInput
	AssumptionsIfUnanswered string
}

// CreateDecisionResponse reports the created (or pre-existing) packet.
type CreateDecisionResponse struct {
	Packet  decision.Packet
	Existed bool // an identical packet was already on disk
}
