// Package decision contains the pure business logic for decision packets:
// structured, human-answerable questions that block pipeline stages until
// answered. No I/O lives here - persistence is an adapter concern.
package decision

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/gowebpki/jcs"
)

// Packet lifecycle states.
const (
	StatusOpen     = "open"
	StatusAnswered = "answered"
)

// AnswerType describes how a raw answer string must be parsed.
type AnswerType string

const (
	AnswerBoolean   AnswerType = "boolean"
	AnswerChoice    AnswerType = "choice"
	AnswerReference AnswerType = "reference"
	AnswerString    AnswerType = "string"
)

// Sentinel errors for the decision domain.
var (
	ErrNotFound      = errors.New("decision not found")
	ErrNotOpen       = errors.New("decision not open")
	ErrMissingAnswer = errors.New("missing answer")
	ErrInvalidAnswer = errors.New("invalid answer format")
	ErrInvalid       = errors.New("invalid decision packet")
)

// Question is one answerable item inside a packet. Its ID is derived from
// the packet identity fields plus the question text, so re-asking the same
// question never mints a new identity.
type Question struct {
	ID                 string     `json:"id"`
	Question           string     `json:"question"`
	ExpectedAnswerType AnswerType `json:"expected_answer_type"`
	Constraints        string     `json:"constraints,omitempty"`
	Blocks             []string   `json:"blocks,omitempty"`
	Answer             *string    `json:"answer,omitempty"`
	AnsweredAt         *time.Time `json:"answered_at,omitempty"`
}

// Context explains to the human answerer why automation stopped.
type Context struct {
	Summary             string   `json:"summary"`
	WhyAutomationFailed string   `json:"why_automation_failed"`
	WhatIsKnown         []string `json:"what_is_known,omitempty"`
}

// Packet is a blocking question record. Created by a producer when blocked,
// mutated exactly once by the answer operation, never deleted (audit trail).
type Packet struct {
	ID                      string     `json:"decision_id"`
	Scope                   string     `json:"scope"`
	Trigger                 string     `json:"trigger"`
	BlockingState           string     `json:"blocking_state"`
	Context                 Context    `json:"context"`
	Questions               []Question `json:"questions"`
	AssumptionsIfUnanswered string     `json:"assumptions_if_unanswered,omitempty"`
	Status                  string     `json:"status"`
	CreatedAt               time.Time  `json:"created_at"`
	UpdatedAt               time.Time  `json:"updated_at"`
}

// QuestionSpec is the producer-supplied form of one question.
type QuestionSpec struct {
	Question           string
	ExpectedAnswerType AnswerType
	Constraints        string
	Blocks             []string
}

// BuildRequest carries everything needed to raise a new packet.
type BuildRequest struct {
	Scope                   string
	Trigger                 string
	BlockingState           string
	Context                 Context
	Questions               []QuestionSpec
	AssumptionsIfUnanswered string
	Now                     time.Time
}

// Build constructs an open packet with content-derived identities. Raising
// the identical questions from the identical blocking condition yields the
// same decision_id, so producers can re-raise without creating duplicates.
func Build(req BuildRequest) (Packet, error) {
	if req.Scope == "" || req.Trigger == "" || req.BlockingState == "" {
		return Packet{}, fmt.Errorf("%w: scope, trigger and blocking_state are required", ErrInvalid)
	}
	if len(req.Questions) == 0 {
		return Packet{}, fmt.Errorf("%w: at least one question is required", ErrInvalid)
	}

	texts := make([]string, 0, len(req.Questions))
	for _, q := range req.Questions {
		if strings.TrimSpace(q.Question) == "" {
			return Packet{}, fmt.Errorf("%w: question text is required", ErrInvalid)
		}
		if !validAnswerType(q.ExpectedAnswerType) {
			return Packet{}, fmt.Errorf("%w: unknown answer type %q", ErrInvalid, q.ExpectedAnswerType)
		}
		if q.ExpectedAnswerType == AnswerChoice && len(choices(q.Constraints)) < 2 {
			return Packet{}, fmt.Errorf("%w: choice questions need |-delimited constraints", ErrInvalid)
		}
		texts = append(texts, q.Question)
	}

	id, err := deriveID(req.Scope, req.Trigger, req.BlockingState, texts)
	if err != nil {
		return Packet{}, err
	}

	questions := make([]Question, 0, len(req.Questions))
	for _, spec := range req.Questions {
		qid, err := deriveID(req.Scope, req.Trigger, req.BlockingState, []string{spec.Question})
		if err != nil {
			return Packet{}, err
		}
		questions = append(questions, Question{
			ID:                 qid,
			Question:           spec.Question,
			ExpectedAnswerType: spec.ExpectedAnswerType,
			Constraints:        spec.Constraints,
			Blocks:             spec.Blocks,
		})
	}

	now := req.Now.UTC()
	return Packet{
		ID:                      id,
		Scope:                   req.Scope,
		Trigger:                 req.Trigger,
		BlockingState:           req.BlockingState,
		Context:                 req.Context,
		Questions:               questions,
		AssumptionsIfUnanswered: req.AssumptionsIfUnanswered,
		Status:                  StatusOpen,
		CreatedAt:               now,
		UpdatedAt:               now,
	}, nil
}

// identity is the normalized content that determines a decision id.
type identity struct {
	Scope         string   `json:"scope"`
	Trigger       string   `json:"trigger"`
	BlockingState string   `json:"blocking_state"`
	Questions     []string `json:"questions"`
}

func deriveID(scope, trigger, blockingState string, questionTexts []string) (string, error) {
	normalized := make([]string, 0, len(questionTexts))
	for _, q := range questionTexts {
		normalized = append(normalized, normalize(q))
	}
	sort.Strings(normalized)

	raw, err := json.Marshal(identity{
		Scope:         normalize(scope),
		Trigger:       normalize(trigger),
		BlockingState: normalize(blockingState),
		Questions:     normalized,
	})
	if err != nil {
		return "", fmt.Errorf("failed to marshal decision identity: %w", err)
	}

	canonical, err := jcs.Transform(raw)
	if err != nil {
		return "", fmt.Errorf("failed to canonicalize decision identity: %w", err)
	}

	sum := sha256.Sum256(canonical)
	return hex.EncodeToString(sum[:])[:12], nil
}

// normalize collapses whitespace and case so cosmetic rephrasing of the
// same question does not mint a new identity.
func normalize(s string) string {
	return strings.Join(strings.Fields(strings.ToLower(s)), " ")
}

func validAnswerType(t AnswerType) bool {
	switch t {
	case AnswerBoolean, AnswerChoice, AnswerReference, AnswerString:
		return true
	}
	return false
}

func choices(constraints string) []string {
	parts := strings.Split(constraints, "|")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if trimmed := strings.TrimSpace(p); trimmed != "" {
			out = append(out, trimmed)
		}
	}
	return out
}
