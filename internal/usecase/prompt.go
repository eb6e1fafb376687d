package usecase

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"strings"
	"time"

	"intake-agent/internal/domain"
)

// EndOfIntakeMarker is the literal the analyst appends when the interview is done.
const EndOfIntakeMarker = "[END_OF_INTAKE]"

const fallbackQuestion = "Before we wrap up, could you tell me more about who will use this day to day and how you will measure whether it is working?"

// Decision is the outcome of one analyst turn: either the next question to ask
// or a completion draft.
type Decision struct {
	Complete bool
	Text     string
}

// parseDecision is the only place the termination marker is recognised. The
// marker may appear anywhere in the reply; all occurrences are stripped.
func parseDecision(raw string) Decision {
	if strings.Contains(raw, EndOfIntakeMarker) {
		return Decision{
			Complete: true,
			Text:     strings.TrimSpace(strings.ReplaceAll(raw, EndOfIntakeMarker, "")),
		}
	}
	return Decision{Text: strings.TrimSpace(raw)}
}

func analystRequest(conv domain.Conversation) domain.ChatRequest {
	messages := make([]domain.ChatMessage, 0, len(conv)+1)
	messages = append(messages, domain.ChatMessage{Role: domain.RoleSystem, Content: analystPrompt()})
	messages = append(messages, conv...)
	return domain.ChatRequest{Messages: messages}
}

func analystPrompt() string {
	return strings.Join([]string{
		"Role:",
		"You are a senior business analyst running a discovery interview with a prospective client who wants an automation or AI project built.",
		"",
		"Task:",
		"Read the conversation so far and reply with the single next best follow-up question.",
		"",
		"Probe for:",
		"- Target audience: who the users are and how many of them there are",
		"- Integrations: the systems, tools and data sources the project must connect to",
		"- Success metrics: how the client will measure that the project works",
		"- Workflow detail: the current process step by step and where it breaks down",
		"",
		"Interview Rules:",
		analystRules(),
		"",
		"Termination:",
		"When, and only when, the rules above allow it, reply with a short closing sentence followed by " + EndOfIntakeMarker + ".",
	}, "\n")
}

func analystRules() string {
	return strings.Join([]string{
		"1) Never end the interview on your first or second turn.",
		"2) Only end once the conversation contains clear evidence about the users, the integrations and the success metrics.",
		"3) When not ending, ask exactly one open-ended question and nothing else.",
		"4) Do not summarise, propose solutions or quote prices.",
	}, "\n")
}

func managerRequest(conv domain.Conversation, interviewDate string) domain.ChatRequest {
	return domain.ChatRequest{
		Messages: []domain.ChatMessage{
			{Role: domain.RoleSystem, Content: managerPrompt(interviewDate)},
			{Role: domain.RoleUser, Content: "Interview transcript:\n\n" + renderTranscript(conv)},
		},
		Format: &domain.ResponseFormat{Name: "intake_report", Schema: reportSchema},
	}
}

func managerPrompt(interviewDate string) string {
	return strings.Join([]string{
		"Role:",
		"You are a senior project manager turning a finished discovery interview into a project brief.",
		"",
		"Task:",
		"Use only the interview transcript in this request as evidence.",
		"",
		"Output Contract:",
		"Return a single JSON object with exactly these keys:",
		"- projectName (string): a short name for the project",
		"- projectSummary (string): two to four sentences describing the problem and the proposed solution",
		"- keyFeatures (array of strings): the main capabilities the client asked for",
		"- estimatedTimeline (string): a rough delivery estimate, for example \"6-8 weeks\"",
		fmt.Sprintf("- interviewDate (string): exactly %q, copied verbatim", interviewDate),
		"Do not add any other keys or any text outside the JSON object.",
	}, "\n")
}

var reportSchema = json.RawMessage(`{
	"type":"object",
	"additionalProperties":false,
	"properties":{
		"projectName":{"type":"string"},
		"projectSummary":{"type":"string"},
		"keyFeatures":{"type":"array","items":{"type":"string"}},
		"estimatedTimeline":{"type":"string"},
		"interviewDate":{"type":"string"}
	},
	"required":["projectName","projectSummary","keyFeatures","estimatedTimeline","interviewDate"]
}`)

// generatedReport mirrors domain.Report with pointers so that an absent key can
// be told apart from an empty one.
type generatedReport struct {
	ProjectName       *string   `json:"projectName"`
	ProjectSummary    *string   `json:"projectSummary"`
	KeyFeatures       *[]string `json:"keyFeatures"`
	EstimatedTimeline *string   `json:"estimatedTimeline"`
	InterviewDate     *string   `json:"interviewDate"`
}

func parseReport(raw string) (generatedReport, error) {
	var out generatedReport
	dec := json.NewDecoder(bytes.NewBufferString(strings.TrimSpace(raw)))
	dec.DisallowUnknownFields()
	if err := dec.Decode(&out); err != nil {
		return generatedReport{}, fmt.Errorf("usecase: decode report: %w", err)
	}
	if err := dec.Decode(&struct{}{}); !errors.Is(err, io.EOF) {
		if err == nil {
			return generatedReport{}, errors.New("usecase: decode report: multiple JSON values")
		}
		return generatedReport{}, fmt.Errorf("usecase: decode report trailing data: %w", err)
	}
	return out, nil
}

// validateReport checks every required field and returns all violations, never a
// partially filled report.
func validateReport(g generatedReport) (domain.Report, ValidationErrors) {
	var errs ValidationErrors
	text := func(name string, v *string) string {
		switch {
		case v == nil:
			errs = append(errs, name+" is missing")
			return ""
		case strings.TrimSpace(*v) == "":
			errs = append(errs, name+" is empty")
			return ""
		}
		return strings.TrimSpace(*v)
	}

	r := domain.Report{
		ProjectName:       text("projectName", g.ProjectName),
		ProjectSummary:    text("projectSummary", g.ProjectSummary),
		EstimatedTimeline: text("estimatedTimeline", g.EstimatedTimeline),
		InterviewDate:     text("interviewDate", g.InterviewDate),
	}

	switch {
	case g.KeyFeatures == nil:
		errs = append(errs, "keyFeatures is missing")
	case len(*g.KeyFeatures) == 0:
		errs = append(errs, "keyFeatures is empty")
	default:
		for i, f := range *g.KeyFeatures {
			if strings.TrimSpace(f) == "" {
				errs = append(errs, fmt.Sprintf("keyFeatures[%d] is empty", i))
				continue
			}
			r.KeyFeatures = append(r.KeyFeatures, strings.TrimSpace(f))
		}
	}

	if len(errs) > 0 {
		return domain.Report{}, errs
	}
	return r, nil
}

func renderTranscript(conv domain.Conversation) string {
	lines := make([]string, 0, len(conv))
	for _, m := range conv {
		speaker := "Client"
		if m.Role == domain.RoleAssistant {
			speaker = "Analyst"
		}
		lines = append(lines, speaker+": "+strings.TrimSpace(m.Content))
	}
	return strings.Join(lines, "\n")
}

func formatInterviewDate(now time.Time) string {
	return now.UTC().Format(time.RFC3339)
}

func caseEmail(rec domain.CaseRecord) domain.Email {
	var b strings.Builder
	fmt.Fprintf(&b, "Case number: %s\n", rec.CaseNumber)
	fmt.Fprintf(&b, "Interview date: %s\n\n", rec.Report.InterviewDate)
	fmt.Fprintf(&b, "Project: %s\n\n", rec.Report.ProjectName)
	fmt.Fprintf(&b, "Summary:\n%s\n\n", rec.Report.ProjectSummary)
	b.WriteString("Key features:\n")
	for _, f := range rec.Report.KeyFeatures {
		fmt.Fprintf(&b, "- %s\n", f)
	}
	fmt.Fprintf(&b, "\nEstimated timeline: %s\n\n", rec.Report.EstimatedTimeline)
	b.WriteString("Full transcript:\n")
	b.WriteString(renderTranscript(rec.FullTranscript))
	b.WriteString("\n")

	return domain.Email{
		Subject: fmt.Sprintf("New intake %s: %s", rec.CaseNumber, rec.Report.ProjectName),
		Text:    b.String(),
	}
}

func chatRequest(message string, snippets string) domain.ChatRequest {
	system := strings.Join([]string{
		"Role:",
		"You are the website assistant of an automation and AI consultancy.",
		"",
		"Behavior Rules:",
		"1) Answer the visitor's question briefly and in a friendly, professional tone.",
		"2) Prefer the knowledge base entries below when they are relevant.",
		"3) If you do not know, say so and suggest starting a project intake.",
	}, "\n")
	if snippets != "" {
		system += "\n\nKnowledge Base:\n" + snippets
	}
	return domain.ChatRequest{
		Messages: []domain.ChatMessage{
			{Role: domain.RoleSystem, Content: system},
			{Role: domain.RoleUser, Content: message},
		},
	}
}
