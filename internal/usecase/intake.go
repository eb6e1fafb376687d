package usecase

import (
	"context"
	"errors"
	"strings"
	"time"

	"intake-agent/internal/domain"
	"intake-agent/internal/logger"
)

const (
	DefaultProviderTimeout = 15 * time.Second
	maxMintAttempts        = 3

	StatusInProgress = "in-progress"
	StatusComplete   = "complete"
)

type LLMClient interface {
	Chat(ctx context.Context, req domain.ChatRequest) (string, error)
}

// CaseStore is the durable report store. CreateCase must fail with
// domain.ErrCaseExists instead of overwriting, and returns the write time.
type CaseStore interface {
	CreateCase(ctx context.Context, rec domain.CaseRecord) (time.Time, error)
	GetCase(ctx context.Context, caseNumber string) (domain.CaseRecord, error)
}

type Notifier interface {
	Notify(ctx context.Context, email domain.Email) error
}

type IntakeConfig struct {
	ProviderTimeout time.Duration
	// MinAnalystTurns is the number of analyst questions that must already be in
	// the transcript before a completion is accepted. Zero leaves the decision to
	// the model alone.
	MinAnalystTurns int
}

type IntakeService struct {
	llm      LLMClient
	store    CaseStore
	notifier Notifier
	log      *logger.Logger
	cfg      IntakeConfig
	now      func() time.Time
}

type IntakeInput struct {
	Conversation   domain.Conversation
	IdempotencyKey string
}

type IntakeOutput struct {
	Status     string
	Reply      string
	CaseNumber string
	Report     *domain.Report
}

// NewIntakeService wires the intake workflow. llm and notifier may be nil when the
// capability is not configured: a nil llm fails each call with CONFIG_ERROR and a
// nil notifier skips notification.
func NewIntakeService(llm LLMClient, store CaseStore, notifier Notifier, log *logger.Logger, cfg IntakeConfig) (*IntakeService, error) {
	if store == nil {
		return nil, errors.New("usecase: case store must not be nil")
	}
	if log == nil {
		return nil, errors.New("usecase: logger must not be nil")
	}
	if cfg.ProviderTimeout <= 0 {
		cfg.ProviderTimeout = DefaultProviderTimeout
	}
	if cfg.MinAnalystTurns < 0 {
		cfg.MinAnalystTurns = 0
	}
	return &IntakeService{
		llm:      llm,
		store:    store,
		notifier: notifier,
		log:      log.With("component", "intake"),
		cfg:      cfg,
		now:      time.Now,
	}, nil
}

// Run processes one /intake turn: decide, and on completion finalize and commit.
func (s *IntakeService) Run(ctx context.Context, in IntakeInput) (IntakeOutput, error) {
	decision, err := s.Decide(ctx, in.Conversation)
	if err != nil {
		return IntakeOutput{}, err
	}
	if !decision.Complete {
		return IntakeOutput{Status: StatusInProgress, Reply: decision.Text}, nil
	}

	report, err := s.Finalize(ctx, in.Conversation, s.now())
	if err != nil {
		return IntakeOutput{}, err
	}

	// The commit must not be abandoned half way because the caller went away.
	rec, err := s.Commit(context.WithoutCancel(ctx), report, in.Conversation, in.IdempotencyKey)
	if err != nil {
		return IntakeOutput{}, err
	}
	return IntakeOutput{
		Status:     StatusComplete,
		CaseNumber: rec.CaseNumber,
		Report:     &rec.Report,
	}, nil
}

// Decide asks the analyst persona for the next question or the completion marker.
func (s *IntakeService) Decide(ctx context.Context, conv domain.Conversation) (Decision, error) {
	if err := validateConversation(conv); err != nil {
		return Decision{}, err
	}
	if s.llm == nil {
		return Decision{}, newError(ErrorConfig, "provider_not_configured", nil)
	}

	callCtx, cancel := context.WithTimeout(ctx, s.cfg.ProviderTimeout)
	defer cancel()
	raw, err := s.llm.Chat(callCtx, analystRequest(conv))
	if err != nil {
		return Decision{}, providerError("analyst", err)
	}

	d := parseDecision(raw)
	if d.Text == "" && !d.Complete {
		return Decision{}, newError(ErrorProvider, "analyst_empty_reply", nil)
	}

	if d.Complete && conv.AssistantTurns() < s.cfg.MinAnalystTurns {
		s.log.Warn("analyst completed before minimum turns; continuing interview",
			"analyst_turns", conv.AssistantTurns(),
			"min_analyst_turns", s.cfg.MinAnalystTurns,
		)
		d.Complete = false
		if d.Text == "" {
			d.Text = fallbackQuestion
		}
	}
	return d, nil
}

// Finalize asks the manager persona for a structured report and validates it.
// now is stamped into interviewDate; the model's echo never replaces it.
func (s *IntakeService) Finalize(ctx context.Context, conv domain.Conversation, now time.Time) (domain.Report, error) {
	if err := validateConversation(conv); err != nil {
		return domain.Report{}, err
	}
	if s.llm == nil {
		return domain.Report{}, newError(ErrorConfig, "provider_not_configured", nil)
	}

	stamp := formatInterviewDate(now)
	callCtx, cancel := context.WithTimeout(ctx, s.cfg.ProviderTimeout)
	defer cancel()
	raw, err := s.llm.Chat(callCtx, managerRequest(conv, stamp))
	if err != nil {
		return domain.Report{}, providerError("manager", err)
	}

	generated, err := parseReport(raw)
	if err != nil {
		return domain.Report{}, newError(ErrorReportGeneration, "malformed_report", err)
	}
	report, verrs := validateReport(generated)
	if len(verrs) > 0 {
		return domain.Report{}, newError(ErrorReportGeneration, "invalid_report", verrs)
	}
	if report.InterviewDate != stamp {
		s.log.Warn("manager did not echo interview date", "want", stamp, "got", report.InterviewDate)
	}
	report.InterviewDate = stamp
	return report, nil
}

// Commit mints a case number, stores the record and notifies. Without an
// idempotency key every call creates a new case. When notification fails the
// returned record is already persisted and is returned alongside the error.
func (s *IntakeService) Commit(ctx context.Context, report domain.Report, conv domain.Conversation, idempotencyKey string) (domain.CaseRecord, error) {
	key := strings.TrimSpace(idempotencyKey)
	rec := domain.CaseRecord{
		Report:         report,
		FullTranscript: conv.Clone(),
		IdempotencyKey: key,
	}

	written := false
	for attempt := 0; attempt < maxMintAttempts && !written; attempt++ {
		number, err := s.mintCaseNumber(key)
		if err != nil {
			return domain.CaseRecord{}, newError(ErrorInternal, "case_number_error", err)
		}
		rec.CaseNumber = number

		ts, err := s.store.CreateCase(ctx, rec)
		switch {
		case err == nil:
			rec.Timestamp = ts
			written = true
		case errors.Is(err, domain.ErrCaseExists) && key != "":
			return s.replay(ctx, number, key)
		case errors.Is(err, domain.ErrCaseExists):
			s.log.Warn("case number collision; minting a new one", "case_number", number, "attempt", attempt+1)
		default:
			return domain.CaseRecord{}, newError(ErrorPersistence, "store_write_error", err)
		}
	}
	if !written {
		return domain.CaseRecord{}, newError(ErrorPersistence, "case_number_collision", nil)
	}
	s.log.Info("case created", "case_number", rec.CaseNumber, "project", rec.Report.ProjectName)
	return s.notify(ctx, rec)
}

// replay resolves a create conflict for a keyed commit: the same key means the
// earlier attempt already wrote the case. The notification is sent again since
// the store does not record whether the earlier send succeeded.
func (s *IntakeService) replay(ctx context.Context, number, key string) (domain.CaseRecord, error) {
	existing, err := s.store.GetCase(ctx, number)
	if err != nil {
		return domain.CaseRecord{}, newError(ErrorPersistence, "store_read_error", err)
	}
	if existing.IdempotencyKey != key {
		return domain.CaseRecord{}, newError(ErrorPersistence, "case_number_collision", nil)
	}
	s.log.Info("idempotent replay of existing case", "case_number", number)
	return s.notify(ctx, existing)
}

// notify sends the case email for a persisted record. On failure the record is
// still returned alongside the error.
func (s *IntakeService) notify(ctx context.Context, rec domain.CaseRecord) (domain.CaseRecord, error) {
	if s.notifier == nil {
		s.log.Warn("notifier not configured; case notification skipped", "case_number", rec.CaseNumber)
		return rec, nil
	}
	if err := s.notifier.Notify(ctx, caseEmail(rec)); err != nil {
		s.log.Error("case notification failed; record is persisted", "case_number", rec.CaseNumber, "err", err)
		return rec, newError(ErrorNotification, "notify_error", err)
	}
	return rec, nil
}

func (s *IntakeService) mintCaseNumber(key string) (string, error) {
	now := s.now()
	if key != "" {
		return formatCaseNumber(now, keyedSuffix(key)), nil
	}
	suffix, err := randomSuffix()
	if err != nil {
		return "", err
	}
	return formatCaseNumber(now, suffix), nil
}

func validateConversation(conv domain.Conversation) error {
	if err := conv.Validate(); err != nil {
		if errors.Is(err, domain.ErrEmptyConversation) {
			return newError(ErrorInvalidInput, "empty_conversation", err)
		}
		return newError(ErrorInvalidInput, "invalid_conversation", err)
	}
	return nil
}
