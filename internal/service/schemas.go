package service

import (
	"github.com/santhosh-tekuri/jsonschema/v5"
)

// Model replies are validated against these schemas before anything is
// persisted. Scores are nullable on purpose: an absent or null sub-score is
// stored as null, never invented.
const codingEvaluationSchema = `{
	"type": "object",
	"required": ["ai_feedback"],
	"properties": {
		"correctness_score": {"type": ["number", "null"], "minimum": 0, "maximum": 100},
		"efficiency_score": {"type": ["number", "null"], "minimum": 0, "maximum": 100},
		"style_score": {"type": ["number", "null"], "minimum": 0, "maximum": 100},
		"readability_score": {"type": ["number", "null"], "minimum": 0, "maximum": 100},
		"plagiarism_score": {"type": ["number", "null"], "minimum": 0, "maximum": 100},
		"ai_feedback": {"type": "string", "minLength": 1}
	}
}`

const interviewEvaluationSchema = `{
	"type": "object",
	"required": ["ai_feedback"],
	"properties": {
		"relevance_score": {"type": ["number", "null"], "minimum": 0, "maximum": 100},
		"clarity_score": {"type": ["number", "null"], "minimum": 0, "maximum": 100},
		"confidence_score": {"type": ["number", "null"], "minimum": 0, "maximum": 100},
		"sentiment_score": {"type": ["number", "null"], "minimum": -1, "maximum": 1},
		"keyword_matches": {"type": ["array", "null"], "items": {"type": "string"}},
		"ai_feedback": {"type": "string", "minLength": 1}
	}
}`

const sessionSummarySchema = `{
	"type": "object",
	"required": ["overall_score", "final_evaluation_summary"],
	"properties": {
		"overall_score": {"type": "number", "minimum": 0, "maximum": 100},
		"final_evaluation_summary": {"type": "string", "minLength": 1}
	}
}`

var (
	codingSchema    = jsonschema.MustCompileString("coding_evaluation.json", codingEvaluationSchema)
	interviewSchema = jsonschema.MustCompileString("interview_evaluation.json", interviewEvaluationSchema)
	summarySchema   = jsonschema.MustCompileString("session_summary.json", sessionSummarySchema)
)
