package decision

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"
)

// GuardResult represents the outcome of a guard evaluation.
type GuardResult struct {
	Allowed bool
	Reason  string
}

// Error converts the guard result to an error if not allowed.
func (r GuardResult) Error() error {
	if r.Allowed {
		return nil
	}
	return fmt.Errorf("%s", r.Reason)
}

// CanAnswer evaluates whether a packet can be answered.
// Rule: status must be "open" - packets are answered exactly once.
func CanAnswer(p Packet) GuardResult {
	if p.Status != StatusOpen {
		return GuardResult{
			Allowed: false,
			Reason:  fmt.Sprintf("can only answer open decisions (current status: %s)", p.Status),
		}
	}
	return GuardResult{Allowed: true}
}

// ParseAnswer validates a raw answer string against the question's expected
// answer type and returns the normalized stored form.
func ParseAnswer(q Question, raw string) (string, error) {
	trimmed := strings.TrimSpace(raw)
	if trimmed == "" {
		return "", fmt.Errorf("%w: question %s: empty answer", ErrInvalidAnswer, q.ID)
	}

	switch q.ExpectedAnswerType {
	case AnswerBoolean:
		switch strings.ToLower(trimmed) {
		case "yes", "true":
			return "yes", nil
		case "no", "false":
			return "no", nil
		}
		return "", fmt.Errorf("%w: question %s: want yes/no/true/false, got %q", ErrInvalidAnswer, q.ID, raw)

	case AnswerChoice:
		for _, c := range choices(q.Constraints) {
			if strings.EqualFold(c, trimmed) {
				return c, nil
			}
		}
		return "", fmt.Errorf("%w: question %s: %q is not one of %s", ErrInvalidAnswer, q.ID, raw, q.Constraints)

	case AnswerReference:
		if !strings.Contains(trimmed, ":") {
			return "", fmt.Errorf("%w: question %s: reference answers need a kind:value form, got %q", ErrInvalidAnswer, q.ID, raw)
		}
		return trimmed, nil

	case AnswerString:
		return trimmed, nil
	}

	return "", fmt.Errorf("%w: question %s: unknown answer type %q", ErrInvalidAnswer, q.ID, q.ExpectedAnswerType)
}

// Apply answers every question of an open packet from raw user input and
// transitions it to answered. For a single-question packet the raw input is
// the answer itself (or a JSON object keyed by question id); multi-question
// packets require the JSON object form. All questions must be answered or
// the call fails with ErrMissingAnswer - there is no partial transition.
func Apply(p Packet, raw string, now time.Time) (Packet, error) {
	if guard := CanAnswer(p); !guard.Allowed {
		return Packet{}, fmt.Errorf("%w: %s", ErrNotOpen, guard.Reason)
	}
	if len(p.Questions) == 0 {
		return Packet{}, fmt.Errorf("%w: packet has no questions", ErrInvalid)
	}

	byQuestion, err := splitAnswers(p, raw)
	if err != nil {
		return Packet{}, err
	}

	answered := p
	answered.Questions = make([]Question, len(p.Questions))
	copy(answered.Questions, p.Questions)

	ts := now.UTC()
	for i := range answered.Questions {
		q := &answered.Questions[i]
		rawAnswer, ok := byQuestion[q.ID]
		if !ok {
			return Packet{}, fmt.Errorf("%w: question %s has no answer", ErrMissingAnswer, q.ID)
		}
		parsed, err := ParseAnswer(*q, rawAnswer)
		if err != nil {
			return Packet{}, err
		}
		q.Answer = &parsed
		answeredAt := ts
		q.AnsweredAt = &answeredAt
	}

	answered.Status = StatusAnswered
	answered.UpdatedAt = ts
	return answered, nil
}

// splitAnswers maps raw input onto question ids. Multi-question packets
// require a JSON object keyed by question id.
func splitAnswers(p Packet, raw string) (map[string]string, error) {
	trimmed := strings.TrimSpace(raw)

	if strings.HasPrefix(trimmed, "{") {
		var obj map[string]string
		if err := json.Unmarshal([]byte(trimmed), &obj); err != nil {
			return nil, fmt.Errorf("%w: answer object is not valid JSON: %v", ErrInvalidAnswer, err)
		}
		for id := range obj {
			if !hasQuestion(p, id) {
				return nil, fmt.Errorf("%w: unknown question id %s", ErrInvalidAnswer, id)
			}
		}
		return obj, nil
	}

	if len(p.Questions) > 1 {
		return nil, fmt.Errorf("%w: packet has %d questions, provide a JSON object keyed by question id", ErrInvalidAnswer, len(p.Questions))
	}

	return map[string]string{p.Questions[0].ID: raw}, nil
}

func hasQuestion(p Packet, id string) bool {
	for _, q := range p.Questions {
		if q.ID == id {
			return true
		}
	}
	return false
}
