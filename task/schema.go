package task

import (
	"fmt"
	"strings"

	"github.com/xeipuuv/gojsonschema"

	"github.com/sweetpotato0/wanderai/errors"
)

const intentSchemaJSON = `{
  "type": "object",
  "required": ["group_size", "original_query"],
  "properties": {
    "budget": {"type": ["integer", "null"], "minimum": 0},
    "group_size": {"type": "integer", "minimum": 1},
    "duration_days": {"type": ["integer", "null"], "minimum": 1},
    "start_date": {"type": ["string", "null"]},
    "destination": {"type": ["string", "null"]},
    "interests": {"type": "array", "items": {"type": "string"}},
    "avoid_list": {"type": "array", "items": {"type": "string"}},
    "crowd_preference": {"type": ["string", "null"]},
    "accommodation_needed": {"type": "boolean"},
    "transport_mode": {"type": ["string", "null"]},
    "special_requirements": {"type": "array", "items": {"type": "string"}},
    "original_query": {"type": "string"}
  }
}`

const suggestionsSchemaJSON = `{
  "type": "object",
  "required": ["destinations"],
  "properties": {
    "destinations": {
      "type": "array",
      "items": {
        "type": "object",
        "required": ["name"],
        "properties": {
          "name": {"type": "string", "minLength": 1},
          "category": {"type": "string"},
          "match_score": {"type": "integer", "minimum": 0, "maximum": 100},
          "reasoning": {"type": "string"},
          "estimated_cost": {"type": "string"},
          "distance": {"type": "string"},
          "highlights": {"type": "array", "items": {"type": "string"}},
          "best_for": {"type": "array", "items": {"type": "string"}}
        }
      }
    },
    "summary": {"type": "string"},
    "tips": {"type": "array", "items": {"type": "string"}}
  }
}`

const itinerarySchemaJSON = `{
  "type": "object",
  "required": ["destination", "duration", "days"],
  "properties": {
    "destination": {"type": "string", "minLength": 1},
    "duration": {"type": "integer", "minimum": 1},
    "days": {
      "type": "array",
      "items": {
        "type": "object",
        "properties": {
          "day": {"type": "integer", "minimum": 1},
          "title": {"type": "string"},
          "schedule": {
            "type": "array",
            "items": {
              "type": "object",
              "properties": {
                "time": {"type": "string"},
                "activity": {"type": "string"},
                "location": {"type": "string"},
                "duration": {"type": "string"},
                "cost": {"type": ["string", "null"]},
                "tips": {"type": ["string", "null"]}
              }
            }
          },
          "meals": {"type": "object", "additionalProperties": {"type": "string"}},
          "total_cost": {"type": "string"},
          "notes": {"type": ["string", "null"]}
        }
      }
    },
    "total_estimated_cost": {"type": "string"},
    "packing_list": {"type": "array", "items": {"type": "string"}},
    "important_notes": {"type": "array", "items": {"type": "string"}},
    "emergency_contacts": {"type": "object", "additionalProperties": {"type": "string"}}
  }
}`

// Schema validates repaired module output.
type Schema struct {
	name   string
	schema *gojsonschema.Schema
}

// MustSchema compiles a JSON schema and panics on an invalid definition.
func MustSchema(name, definition string) *Schema {
	s, err := gojsonschema.NewSchema(gojsonschema.NewStringLoader(definition))
	if err != nil {
		panic(fmt.Sprintf("task: compile %s schema: %v", name, err))
	}
	return &Schema{name: name, schema: s}
}

// Built-in schemas for the structured modules.
var (
	IntentSchema      = MustSchema("travel_intent", intentSchemaJSON)
	SuggestionsSchema = MustSchema("destination_suggestions", suggestionsSchemaJSON)
	ItinerarySchema   = MustSchema("itinerary", itinerarySchemaJSON)
)

// Validate checks doc against the schema. Violations are reported as one
// error wrapping errors.ErrSchema.
func (s *Schema) Validate(doc any) error {
	res, err := s.schema.Validate(gojsonschema.NewGoLoader(doc))
	if err != nil {
		return fmt.Errorf("%w: %s: %v", errors.ErrSchema, s.name, err)
	}
	if res.Valid() {
		return nil
	}
	msgs := make([]string, len(res.Errors()))
	for i, desc := range res.Errors() {
		msgs[i] = desc.String()
	}
	return fmt.Errorf("%w: %s: %s", errors.ErrSchema, s.name, strings.Join(msgs, "; "))
}
