package webhooks

import (
	"fmt"
	"strconv"
	"strings"
)

// SlackMessage represents a Slack webhook message
type SlackMessage struct {
	Text        string            `json:"text,omitempty"`
	Attachments []SlackAttachment `json:"attachments,omitempty"`
}

// SlackAttachment represents a Slack attachment
type SlackAttachment struct {
	Color  string       `json:"color,omitempty"`
	Title  string       `json:"title,omitempty"`
	Text   string       `json:"text,omitempty"`
	Fields []SlackField `json:"fields,omitempty"`
}

// SlackField represents a field in a Slack attachment
type SlackField struct {
	Title string `json:"title"`
	Value string `json:"value"`
	Short bool   `json:"short"`
}

// maxSlackFindings caps the unfixed findings listed in a message.
const maxSlackFindings = 10

// FormatSlackMessage formats an event as a Slack message
func FormatSlackMessage(event *Event) SlackMessage {
	run := event.Data
	fields := []SlackField{
		{Title: "Run", Value: run.RunID, Short: true},
		{Title: "Workspace", Value: run.Root, Short: true},
		{Title: "Results", Value: strconv.Itoa(run.Results), Short: true},
		{Title: "Fixed", Value: strconv.Itoa(run.Fixed), Short: true},
		{Title: "Unfixed", Value: strconv.Itoa(run.Unfixed), Short: true},
		{Title: "Duration", Value: run.Duration, Short: true},
	}
	if len(run.ModuleErrors) > 0 {
		fields = append(fields, SlackField{Title: "Module errors", Value: strings.Join(run.ModuleErrors, "\n")})
	}
	if run.Error != "" {
		fields = append(fields, SlackField{Title: "Error", Value: run.Error})
	}

	var lines []string
	for i, f := range run.Findings {
		if i == maxSlackFindings {
			lines = append(lines, fmt.Sprintf("... and %d more", len(run.Findings)-maxSlackFindings))
			break
		}
		lines = append(lines, fmt.Sprintf("`%s` %s: %s", f.RuleID, f.Module, f.Message))
	}

	return SlackMessage{
		Attachments: []SlackAttachment{{
			Color:  eventColor(event.Type),
			Title:  eventTitle(event.Type),
			Text:   strings.Join(lines, "\n"),
			Fields: fields,
		}},
	}
}

func eventColor(t EventType) string {
	if t == EventRunFailed {
		return "danger"
	}
	return "good"
}

func eventTitle(t EventType) string {
	if t == EventRunFailed {
		return "modcheck found unfixed dependency issues"
	}
	return "modcheck run succeeded"
}
