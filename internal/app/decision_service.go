package app

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/example/reeve/internal/core/decision"
	"github.com/example/reeve/internal/core/event"
	"github.com/example/reeve/internal/ports/primary"
	"github.com/example/reeve/internal/ports/secondary"
)

// DecisionServiceImpl implements the DecisionService interface.
type DecisionServiceImpl struct {
	decisions secondary.DecisionRepository
	ledger    secondary.EventLedger
	now       func() time.Time
}

// NewDecisionService creates a new DecisionService with injected dependencies.
func NewDecisionService(
	decisions secondary.DecisionRepository,
	ledger secondary.EventLedger,
) *DecisionServiceImpl {
	return &DecisionServiceImpl{
		decisions: decisions,
		ledger:    ledger,
		now:       time.Now,
	}
}

var _ primary.DecisionService = (*DecisionServiceImpl)(nil)

// CreateDecision raises a packet. Because the packet id is derived from its
// content, re-raising the same blocking condition finds the existing packet
// instead of minting a duplicate.
func (s *DecisionServiceImpl) CreateDecision(ctx context.Context, req primary.CreateDecisionRequest) (*primary.CreateDecisionResponse, error) {
	specs := make([]decision.QuestionSpec, 0, len(req.Questions))
	for _, q := range req.Questions {
		specs = append(specs, decision.QuestionSpec{
			Question:           q.Question,
			ExpectedAnswerType: decision.AnswerType(q.ExpectedAnswerType),
			Constraints:        q.Constraints,
			Blocks:             q.Blocks,
		})
	}

	p, err := decision.Build(decision.BuildRequest{
		Scope:         req.Scope,
		Trigger:       req.Trigger,
		BlockingState: req.BlockingState,
		Context: decision.Context{
			Summary:             req.Summary,
			WhyAutomationFailed: req.WhyAutomationFailed,
			WhatIsKnown:         req.WhatIsKnown,
		},
		Questions:               specs,
		AssumptionsIfUnanswered: req.AssumptionsIfUnanswered,
		Now:                     s.now(),
	})
	if err != nil {
		return nil, err
	}

	existing, err := s.decisions.Get(ctx, p.ID)
	switch {
	case err == nil:
		return &primary.CreateDecisionResponse{Packet: existing, Existed: true}, nil
	case !errors.Is(err, decision.ErrNotFound):
		return nil, err
	}

	if err := s.decisions.Save(ctx, p); err != nil {
		return nil, err
	}
	return &primary.CreateDecisionResponse{Packet: p}, nil
}

// GetDecision loads a packet by id.
func (s *DecisionServiceImpl) GetDecision(ctx context.Context, id string) (decision.Packet, error) {
	return s.decisions.Get(ctx, id)
}

// ListDecisions lists packets, optionally filtered by status.
func (s *DecisionServiceImpl) ListDecisions(ctx context.Context, status string) ([]decision.Packet, error) {
	return s.decisions.List(ctx, status)
}

// AnswerDecision applies raw answers to an open packet, persists the
// answered packet, and records a decision_answered ledger event so the
// next coordinator run sees that the blocker is gone.
func (s *DecisionServiceImpl) AnswerDecision(ctx context.Context, id, rawAnswer string) (decision.Packet, error) {
	p, err := s.decisions.Get(ctx, id)
	if err != nil {
		return decision.Packet{}, err
	}

	now := s.now()
	answered, err := decision.Apply(p, rawAnswer, now)
	if err != nil {
		return decision.Packet{}, err
	}

	if err := s.decisions.Save(ctx, answered); err != nil {
		return decision.Packet{}, err
	}

	e, err := event.New(event.Params{
		Type:      event.TypeDecisionAnswered,
		Scope:     answered.Scope,
		WorkID:    "DECISION-" + answered.ID,
		Paths:     []string{"decisions/DECISION-" + answered.ID + ".json"},
		Summary:   fmt.Sprintf("decision %s answered", answered.ID),
		Timestamp: now,
	})
	if err != nil {
		return decision.Packet{}, err
	}
	if _, err := s.ledger.Append(ctx, e); err != nil {
		return decision.Packet{}, fmt.Errorf("answer saved but ledger append failed: %w", err)
	}

	return answered, nil
}
