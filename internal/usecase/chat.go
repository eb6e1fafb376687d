package usecase

import (
	"context"
	"errors"
	"strings"
	"time"

	"intake-agent/internal/knowledge"
	"intake-agent/internal/logger"
)

const defaultMaxMessage = 2000

type ChatService struct {
	llm     LLMClient
	corpus  *knowledge.Corpus
	log     *logger.Logger
	timeout time.Duration
	maxLen  int
}

// NewChatService builds the /chat use case. llm may be nil when no provider is
// configured; corpus may be nil or empty.
func NewChatService(llm LLMClient, corpus *knowledge.Corpus, log *logger.Logger, timeout time.Duration, maxMessageLen int) (*ChatService, error) {
	if log == nil {
		return nil, errors.New("usecase: logger must not be nil")
	}
	if timeout <= 0 {
		timeout = DefaultProviderTimeout
	}
	if maxMessageLen <= 0 {
		maxMessageLen = defaultMaxMessage
	}
	return &ChatService{
		llm:     llm,
		corpus:  corpus,
		log:     log.With("component", "chat"),
		timeout: timeout,
		maxLen:  maxMessageLen,
	}, nil
}

func (s *ChatService) Chat(ctx context.Context, message string) (string, error) {
	message = strings.TrimSpace(message)
	if message == "" {
		return "", newError(ErrorInvalidInput, "empty_message", nil)
	}
	if len(message) > s.maxLen {
		return "", newError(ErrorInvalidInput, "message_too_long", nil)
	}
	if s.llm == nil {
		return "", newError(ErrorConfig, "provider_not_configured", nil)
	}

	snippets := knowledge.TopK(message, s.corpus.Pairs(), knowledge.DefaultTopK)
	s.log.Debug("knowledge snippets selected", "count", len(snippets))

	callCtx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()
	reply, err := s.llm.Chat(callCtx, chatRequest(message, knowledge.FormatSnippets(snippets)))
	if err != nil {
		return "", providerError("chat", err)
	}
	reply = strings.TrimSpace(reply)
	if reply == "" {
		return "", newError(ErrorProvider, "chat_empty_reply", nil)
	}
	return reply, nil
}
