package domain

import (
	"errors"
	"time"
)

var (
	ErrCaseExists   = errors.New("case already exists")
	ErrCaseNotFound = errors.New("case not found")
)

// Report is the structured output of a finished intake interview.
type Report struct {
	ProjectName       string   `json:"projectName"`
	ProjectSummary    string   `json:"projectSummary"`
	KeyFeatures       []string `json:"keyFeatures"`
	EstimatedTimeline string   `json:"estimatedTimeline"`
	InterviewDate     string   `json:"interviewDate"`
}

// CaseRecord is the persisted form of a finalized intake. It is created once and
// never updated.
type CaseRecord struct {
	CaseNumber     string
	Report         Report
	Timestamp      time.Time
	FullTranscript Conversation
	// IdempotencyKey is empty unless the caller supplied one.
	IdempotencyKey string
}

// Email is a plain text notification. Recipients are owned by the notifier.
type Email struct {
	Subject string
	Text    string
}
