package usecase

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"intake-agent/internal/domain"
	"intake-agent/internal/logger"
)

var fixedNow = time.Date(2024, 1, 1, 9, 30, 0, 0, time.UTC)

const fixedStamp = "2024-01-01T09:30:00Z"

type fakeLLM struct {
	analystReply string
	analystErr   error
	reportReply  string
	reportErr    error
	block        bool
	requests     []domain.ChatRequest
}

func (f *fakeLLM) Chat(ctx context.Context, req domain.ChatRequest) (string, error) {
	f.requests = append(f.requests, req)
	if f.block {
		<-ctx.Done()
		return "", ctx.Err()
	}
	if req.Format != nil {
		return f.reportReply, f.reportErr
	}
	return f.analystReply, f.analystErr
}

func (f *fakeLLM) calls(persona string) int {
	n := 0
	for _, r := range f.requests {
		if (r.Format != nil) == (persona == "manager") {
			n++
		}
	}
	return n
}

type fakeStore struct {
	mu        sync.Mutex
	records   map[string]domain.CaseRecord
	createErr error
	getErr    error
	creates   int
	ctxErrs   []error
}

func newFakeStore() *fakeStore {
	return &fakeStore{records: map[string]domain.CaseRecord{}}
}

func (f *fakeStore) CreateCase(ctx context.Context, rec domain.CaseRecord) (time.Time, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.creates++
	f.ctxErrs = append(f.ctxErrs, ctx.Err())
	if f.createErr != nil {
		return time.Time{}, f.createErr
	}
	if _, ok := f.records[rec.CaseNumber]; ok {
		return time.Time{}, domain.ErrCaseExists
	}
	rec.Timestamp = fixedNow.Add(time.Second)
	f.records[rec.CaseNumber] = rec
	return rec.Timestamp, nil
}

func (f *fakeStore) GetCase(_ context.Context, caseNumber string) (domain.CaseRecord, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.getErr != nil {
		return domain.CaseRecord{}, f.getErr
	}
	rec, ok := f.records[caseNumber]
	if !ok {
		return domain.CaseRecord{}, domain.ErrCaseNotFound
	}
	return rec, nil
}

type fakeNotifier struct {
	emails []domain.Email
	err    error
}

func (f *fakeNotifier) Notify(_ context.Context, email domain.Email) error {
	f.emails = append(f.emails, email)
	return f.err
}

func validReportJSON() string {
	return `{
		"projectName":"FAQ Bot",
		"projectSummary":"A chatbot answering customer FAQs from the help center.",
		"keyFeatures":["Help center ingestion","Zendesk handoff"],
		"estimatedTimeline":"6-8 weeks",
		"interviewDate":"` + fixedStamp + `"
	}`
}

func firstTurn() domain.Conversation {
	return domain.Conversation{{Role: domain.RoleUser, Content: "I need a bot for customer FAQs"}}
}

func longInterview() domain.Conversation {
	return domain.Conversation{
		{Role: domain.RoleUser, Content: "I need a bot for customer FAQs"},
		{Role: domain.RoleAssistant, Content: "Who will be using the bot?"},
		{Role: domain.RoleUser, Content: "Our retail customers, about 5k a month."},
		{Role: domain.RoleAssistant, Content: "Which systems should it connect to?"},
		{Role: domain.RoleUser, Content: "Zendesk and our help center."},
		{Role: domain.RoleAssistant, Content: "How will you measure success?"},
		{Role: domain.RoleUser, Content: "Fewer tickets, 30% deflection."},
	}
}

func newTestIntake(t *testing.T, llm LLMClient, store CaseStore, n Notifier, cfg IntakeConfig) *IntakeService {
	t.Helper()
	svc, err := NewIntakeService(llm, store, n, logger.Nop(), cfg)
	require.NoError(t, err)
	svc.now = func() time.Time { return fixedNow }
	return svc
}

func expectError(t *testing.T, err error, code ErrorCode, reason string) {
	t.Helper()
	var usecaseErr *Error
	require.ErrorAs(t, err, &usecaseErr)
	require.Equal(t, code, usecaseErr.Code)
	require.Equal(t, reason, usecaseErr.Reason)
}

func stubSuffixes(t *testing.T, suffixes ...string) {
	t.Helper()
	orig := randomSuffix
	i := 0
	randomSuffix = func() (string, error) {
		if i >= len(suffixes) {
			return "", errors.New("no more suffixes")
		}
		s := suffixes[i]
		i++
		return s, nil
	}
	t.Cleanup(func() { randomSuffix = orig })
}
