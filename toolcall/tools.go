// Package toolcall maps model function calls onto game scoring events.
// The set of tools is closed: each game mode declares a subset of it and
// the dispatcher validates arguments against the tool's JSON schema before
// anything is scored.
package toolcall

import (
	"encoding/json"
	"fmt"

	"github.com/xeipuuv/gojsonschema"

	"github.com/glosings0n/Vut-Elimu/live"
)

// Kind identifies a tool in the closed set.
type Kind int

// Tool kinds.
const (
	ReportResult Kind = iota
	EvaluateAttempt
)

// Tool names on the wire.
const (
	ReportResultName    = "report_result"
	EvaluateAttemptName = "evaluate_attempt"
)

// Acknowledgement texts.
const (
	AckScoreRecorded      = "Score recorded"
	AckEvaluationReceived = "Evaluation received."
	AckReceived           = "received"
)

// Feedback classifies an evaluate_attempt result.
type Feedback string

// Feedback types.
const (
	FeedbackPronunciation Feedback = "PRONUNCIATION"
	FeedbackSuccess       Feedback = "SUCCESS"
	FeedbackGeneral       Feedback = "GENERAL"
)

const reportResultSchema = `{
	"type": "object",
	"properties": {
		"isCorrect": {"type": "boolean"},
		"userAnswer": {"type": "string"}
	},
	"required": ["isCorrect"]
}`

const evaluateAttemptSchema = `{
	"type": "object",
	"properties": {
		"isCorrect": {"type": "boolean"},
		"feedbackType": {"type": "string", "enum": ["PRONUNCIATION", "SUCCESS", "GENERAL"]},
		"specificTip": {"type": "string"}
	},
	"required": ["isCorrect", "feedbackType", "specificTip"]
}`

type toolSpec struct {
	name        string
	description string
	schemaJSON  string
	ack         string
	schema      *gojsonschema.Schema
}

var specs = map[Kind]*toolSpec{
	ReportResult: {
		name:        ReportResultName,
		description: "Call this when the user answers a question correctly or incorrectly.",
		schemaJSON:  reportResultSchema,
		ack:         AckScoreRecorded,
	},
	EvaluateAttempt: {
		name:        EvaluateAttemptName,
		description: "Evaluate the student's speaking or reading attempt.",
		schemaJSON:  evaluateAttemptSchema,
		ack:         AckEvaluationReceived,
	},
}

func init() {
	for _, s := range specs {
		schema, err := gojsonschema.NewSchema(gojsonschema.NewStringLoader(s.schemaJSON))
		if err != nil {
			panic(fmt.Sprintf("invalid schema for tool %s: %v", s.name, err))
		}
		s.schema = schema
	}
}

// String returns the wire name of the tool.
func (k Kind) String() string {
	if s, ok := specs[k]; ok {
		return s.name
	}
	return fmt.Sprintf("Kind(%d)", int(k))
}

// Lookup resolves a wire name to a Kind.
func Lookup(name string) (Kind, bool) {
	for k, s := range specs {
		if s.name == name {
			return k, true
		}
	}
	return 0, false
}

// Declarations renders the function declarations for the given kinds in
// the order given.
func Declarations(kinds ...Kind) []live.FunctionDeclaration {
	decls := make([]live.FunctionDeclaration, 0, len(kinds))
	for _, k := range kinds {
		s, ok := specs[k]
		if !ok {
			continue
		}
		var params map[string]interface{}
		_ = json.Unmarshal([]byte(s.schemaJSON), &params)
		decls = append(decls, live.FunctionDeclaration{
			Name:        s.name,
			Description: s.description,
			Parameters:  params,
		})
	}
	return decls
}
