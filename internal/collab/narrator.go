package collab

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/JonMunkholm/manifestcheck/internal/report"
)

const narrativeSystem = `You review customs manifest compliance reports.
Write a short plain-language summary (at most four sentences) for the shipper.
Do not invent numbers; use only the figures given.
Reply with a JSON object: {"summary": "..."}`

// Narrator writes report summaries with a Client.
type Narrator struct {
	Client  Client
	Timeout time.Duration
}

// Narrate implements report.Narrator.
func (n *Narrator) Narrate(ctx context.Context, r *report.Report) (string, error) {
	if n.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, n.Timeout)
		defer cancel()
	}

	facts, err := narrativeFacts(r)
	if err != nil {
		return "", err
	}
	text, err := n.Client.Complete(ctx, Prompt{System: narrativeSystem, User: facts})
	if err != nil {
		return "", err
	}
	return ParseNarrative(text)
}

// narrativeFacts is the slice of the report the collaborator sees.
func narrativeFacts(r *report.Report) (string, error) {
	type issue struct {
		Severity string `json:"severity"`
		Code     string `json:"code"`
		Message  string `json:"message"`
	}
	const maxIssues = 20

	issues := make([]issue, 0, min(len(r.Errors), maxIssues))
	for _, is := range r.Errors {
		if len(issues) == maxIssues {
			break
		}
		issues = append(issues, issue{string(is.Severity), is.Code, is.Message})
	}

	b, err := json.Marshal(map[string]any{
		"file":        r.FileName,
		"records":     r.RecordCount,
		"score":       r.Score,
		"issues":      issues,
		"issue_count": len(r.Errors),
		"warnings":    r.Warnings,
		"next_steps":  r.Feedback.NextSteps,
	})
	if err != nil {
		return "", fmt.Errorf("marshal report facts: %w", err)
	}
	return string(b), nil
}
