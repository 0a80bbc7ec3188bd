package service

import (
	"fmt"
	"strings"

	"github.com/hireloop/assess-api/internal/models"
)

func buildCodingPrompt(item models.SessionItem, submission models.Submission, executionSummary string) string {
	var b strings.Builder
	b.WriteString("You are a strict technical interviewer reviewing a coding challenge submission.\n\n")
	fmt.Fprintf(&b, "Challenge: %s\n%s\n\n", item.Title, item.Statement)
	fmt.Fprintf(&b, "Language: %s\n\nCandidate code:\n%s\n\n", submission.Language, submission.Code)
	if executionSummary != "" {
		fmt.Fprintf(&b, "Sandbox execution summary: %s\n\n", executionSummary)
	}
	b.WriteString("Score the submission and reply with a JSON object containing: ")
	b.WriteString(`"correctness_score", "efficiency_score", "style_score", "readability_score", "plagiarism_score" (each 0-100 or null if not assessable) and "ai_feedback" (a short paragraph for the hiring team). `)
	b.WriteString("Reply with the JSON object only.")
	return b.String()
}

func buildInterviewPrompt(item models.SessionItem, transcript string) string {
	var b strings.Builder
	b.WriteString("You are an experienced interviewer assessing a candidate's spoken answer.\n\n")
	fmt.Fprintf(&b, "Question: %s\n%s\n\n", item.Title, item.Statement)
	if len(item.IdealAnswerPoints) > 0 {
		fmt.Fprintf(&b, "Key points an ideal answer covers: %s\n\n", string(item.IdealAnswerPoints))
	}
	fmt.Fprintf(&b, "Transcribed answer:\n%s\n\n", transcript)
	b.WriteString("Score the answer and reply with a JSON object containing: ")
	b.WriteString(`"relevance_score", "clarity_score", "confidence_score" (each 0-100 or null), "sentiment_score" (-1 to 1 or null), "keyword_matches" (array of key points the answer covered) and "ai_feedback" (a short paragraph for the hiring team). `)
	b.WriteString("Reply with the JSON object only.")
	return b.String()
}

type summaryItemInput struct {
	Title      string
	Feedback   string
	ScoreLines []string
}

func buildSummaryPrompt(session models.AssessmentSession, items []summaryItemInput) string {
	var b strings.Builder
	b.WriteString("You are preparing a final hiring recommendation from an assessment session.\n\n")
	fmt.Fprintf(&b, "Session type: %s\n\n", session.Kind)
	for i, item := range items {
		fmt.Fprintf(&b, "Item %d: %s\n", i+1, item.Title)
		for _, line := range item.ScoreLines {
			fmt.Fprintf(&b, "  %s\n", line)
		}
		if item.Feedback != "" {
			fmt.Fprintf(&b, "  Feedback: %s\n", item.Feedback)
		}
		b.WriteString("\n")
	}
	fmt.Fprintf(&b, "Proctoring signals: %d window focus changes, %d paste events, %d copy events.\n\n",
		session.FocusChanges, session.PasteCount, session.CopyCount)
	b.WriteString("Reply with a JSON object containing: ")
	b.WriteString(`"overall_score" (0-100) and "final_evaluation_summary" (three to five sentences for the hiring team, mentioning any proctoring concerns). `)
	b.WriteString("Reply with the JSON object only.")
	return b.String()
}
