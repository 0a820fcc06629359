package decision

import (
	"encoding/json"
	"fmt"
	"strings"
	"sync"

	"github.com/santhosh-tekuri/jsonschema/v5"
)

// packetSchema is the authoritative shape of a persisted decision packet.
// Loaded records and records about to be persisted are both checked against
// it - a schema failure is fatal, never silently repaired.
const packetSchema = `{
  "$schema": "https://json-schema.org/draft/2020-12/schema",
  "type": "object",
  "required": ["decision_id", "scope", "trigger", "blocking_state", "context", "questions", "status", "created_at", "updated_at"],
  "properties": {
    "decision_id": {"type": "string", "pattern": "^[0-9a-f]{12}$"},
    "scope": {"type": "string", "minLength": 1},
    "trigger": {"type": "string", "minLength": 1},
    "blocking_state": {"type": "string", "minLength": 1},
    "context": {
      "type": "object",
      "required": ["summary", "why_automation_failed"],
      "properties": {
        "summary": {"type": "string"},
        "why_automation_failed": {"type": "string"},
        "what_is_known": {"type": "array", "items": {"type": "string"}}
      }
    },
    "questions": {
      "type": "array",
      "minItems": 1,
      "items": {
        "type": "object",
        "required": ["id", "question", "expected_answer_type"],
        "properties": {
          "id": {"type": "string", "pattern": "^[0-9a-f]{12}$"},
          "question": {"type": "string", "minLength": 1},
          "expected_answer_type": {"enum": ["boolean", "choice", "reference", "string"]},
          "constraints": {"type": "string"},
          "blocks": {"type": "array", "items": {"type": "string"}},
          "answer": {"type": "string"},
          "answered_at": {"type": "string"}
        }
      }
    },
    "assumptions_if_unanswered": {"type": "string"},
    "status": {"enum": ["open", "answered"]},
    "created_at": {"type": "string"},
    "updated_at": {"type": "string"}
  }
}`

var (
	compileOnce    sync.Once
	compiledSchema *jsonschema.Schema
	compileErr     error
)

func schema() (*jsonschema.Schema, error) {
	compileOnce.Do(func() {
		c := jsonschema.NewCompiler()
		if err := c.AddResource("packet.schema.json", strings.NewReader(packetSchema)); err != nil {
			compileErr = fmt.Errorf("failed to add packet schema: %w", err)
			return
		}
		compiledSchema, compileErr = c.Compile("packet.schema.json")
	})
	return compiledSchema, compileErr
}

// ValidateSchema checks a packet against the persisted-record schema and
// the answered-state invariant: an answered packet carries an answer and
// answered_at on every question.
func ValidateSchema(p Packet) error {
	sch, err := schema()
	if err != nil {
		return err
	}

	raw, err := json.Marshal(p)
	if err != nil {
		return fmt.Errorf("failed to marshal packet: %w", err)
	}
	var doc any
	if err := json.Unmarshal(raw, &doc); err != nil {
		return fmt.Errorf("failed to decode packet: %w", err)
	}

	if err := sch.Validate(doc); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalid, err)
	}

	if p.Status == StatusAnswered {
		for _, q := range p.Questions {
			if q.Answer == nil || q.AnsweredAt == nil {
				return fmt.Errorf("%w: answered packet has unanswered question %s", ErrInvalid, q.ID)
			}
		}
	}

	return nil
}
