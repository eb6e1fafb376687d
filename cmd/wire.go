package main

import (
	"context"
	"fmt"
	"sync"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	awsdynamodb "github.com/aws/aws-sdk-go-v2/service/dynamodb"
	awsssm "github.com/aws/aws-sdk-go-v2/service/ssm"

	"intake-agent/handler"
	"intake-agent/internal/config"
	"intake-agent/internal/integrations/gemini"
	"intake-agent/internal/integrations/openai"
	"intake-agent/internal/integrations/paramstore"
	"intake-agent/internal/integrations/sendgrid"
	"intake-agent/internal/integrations/smtp"
	"intake-agent/internal/knowledge"
	"intake-agent/internal/logger"
	"intake-agent/internal/repository"
	"intake-agent/internal/usecase"
)

type app struct {
	cfg     *config.Config
	log     *logger.Logger
	handler *handler.Handler
	closers []func() error
}

func (a *app) close() {
	for _, c := range a.closers {
		if err := c(); err != nil {
			a.log.Warn("close failed", "err", err)
		}
	}
	a.log.Sync()
}

// build reads configuration once and constructs every dependency. Missing
// credentials degrade the affected capability instead of failing startup.
func build(ctx context.Context, opts ...handler.Option) (*app, error) {
	cfg := config.Load()
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	log, err := logger.New(cfg.LogMode)
	if err != nil {
		return nil, fmt.Errorf("init logger: %w", err)
	}
	a := &app{cfg: cfg, log: log}

	awsCfg := lazyAWSConfig(ctx)

	if cfg.ParamPrefix != "" {
		awsConf, err := awsCfg()
		if err != nil {
			log.Warn("aws config unavailable, skipping parameter store", "err", err)
		} else {
			params, err := paramstore.New(awsssm.NewFromConfig(awsConf))
			if err != nil {
				return nil, fmt.Errorf("init paramstore: %w", err)
			}
			if err := cfg.ResolveSecrets(ctx, params); err != nil {
				return nil, fmt.Errorf("resolve secrets: %w", err)
			}
		}
	}
	logWarnings(log, cfg.Warnings())

	llm, err := newLLM(ctx, cfg)
	if err != nil {
		log.Warn("completion provider disabled", "provider", cfg.LLMProvider, "err", err)
	}

	var corpus *knowledge.Corpus
	if cfg.KnowledgeBasePath != "" {
		corpus, err = knowledge.Load(cfg.KnowledgeBasePath)
		if err != nil {
			return nil, fmt.Errorf("load knowledge base: %w", err)
		}
		log.Info("knowledge base loaded", "path", cfg.KnowledgeBasePath, "pairs", corpus.Len())
	}

	store, closeStore, err := newStore(ctx, cfg, awsCfg)
	if err != nil {
		return nil, err
	}
	if closeStore != nil {
		a.closers = append(a.closers, closeStore)
	}

	notifier, err := newNotifier(cfg, log)
	if err != nil {
		log.Warn("notifier disabled", "notifier", cfg.Notifier, "err", err)
	}

	intake, err := usecase.NewIntakeService(llm, store, notifier, log, usecase.IntakeConfig{
		ProviderTimeout: cfg.ProviderTimeout,
		MinAnalystTurns: cfg.MinAnalystTurns,
	})
	if err != nil {
		return nil, fmt.Errorf("init intake service: %w", err)
	}
	chat, err := usecase.NewChatService(llm, corpus, log, cfg.ProviderTimeout, cfg.MaxMessageLength)
	if err != nil {
		return nil, fmt.Errorf("init chat service: %w", err)
	}
	verifier := usecase.NewDeveloperVerifier(cfg.DeveloperPassword)

	h, err := handler.NewHandler(intake, chat, verifier, log, opts...)
	if err != nil {
		return nil, fmt.Errorf("init handler: %w", err)
	}
	a.handler = h
	return a, nil
}

// lazyAWSConfig loads the default AWS config at most once, and only when a
// component needs it.
func lazyAWSConfig(ctx context.Context) func() (aws.Config, error) {
	var (
		once sync.Once
		cfg  aws.Config
		err  error
	)
	return func() (aws.Config, error) {
		once.Do(func() {
			cfg, err = awsconfig.LoadDefaultConfig(ctx)
		})
		return cfg, err
	}
}

// newLLM returns a nil interface when the provider has no credentials so the
// use cases report CONFIG_ERROR per request.
func newLLM(ctx context.Context, cfg *config.Config) (usecase.LLMClient, error) {
	switch cfg.LLMProvider {
	case config.ProviderGemini:
		if cfg.GeminiAPIKey == "" {
			return nil, fmt.Errorf("GEMINI_API_KEY is not set")
		}
		c, err := gemini.NewClient(ctx, cfg.GeminiAPIKey, cfg.GeminiModel)
		if err != nil {
			return nil, err
		}
		return c, nil
	default:
		if cfg.OpenAIAPIKey == "" {
			return nil, fmt.Errorf("OPENAI_API_KEY is not set")
		}
		opts := []openai.Option{openai.WithModel(cfg.OpenAIModel)}
		if cfg.OpenAIBaseURL != "" {
			opts = append(opts, openai.WithBaseURL(cfg.OpenAIBaseURL))
		}
		c, err := openai.NewClient(cfg.OpenAIAPIKey, opts...)
		if err != nil {
			return nil, err
		}
		return c, nil
	}
}

func newStore(ctx context.Context, cfg *config.Config, awsCfg func() (aws.Config, error)) (usecase.CaseStore, func() error, error) {
	switch cfg.StoreBackend {
	case config.StoreDynamoDB:
		awsConf, err := awsCfg()
		if err != nil {
			return nil, nil, fmt.Errorf("load aws config: %w", err)
		}
		store, err := repository.New(awsdynamodb.NewFromConfig(awsConf), cfg.CasesTable)
		if err != nil {
			return nil, nil, fmt.Errorf("init dynamodb store: %w", err)
		}
		return store, nil, nil
	case config.StoreFirestore:
		store, err := repository.NewFirestore(ctx, cfg.GCPProject, cfg.FirestoreCollection)
		if err != nil {
			return nil, nil, fmt.Errorf("init firestore store: %w", err)
		}
		return store, store.Close, nil
	default:
		return repository.NewMemory(), nil, nil
	}
}

// newNotifier returns a nil interface when notifications are off or cannot be
// configured; the intake service then skips the notify step.
func newNotifier(cfg *config.Config, log *logger.Logger) (usecase.Notifier, error) {
	switch cfg.Notifier {
	case config.NotifierSMTP:
		n, err := smtp.New(log, smtp.Config{
			Host:     cfg.SMTPHost,
			Port:     cfg.SMTPPort,
			Username: cfg.SMTPUsername,
			Password: cfg.SMTPPassword,
			From:     cfg.SMTPFrom,
			To:       cfg.NotifyTo,
			Insecure: cfg.SMTPInsecure,
		})
		if err != nil {
			return nil, err
		}
		return n, nil
	case config.NotifierSendGrid:
		n, err := sendgrid.New(log, sendgrid.Config{
			APIKey:    cfg.SendGridAPIKey,
			FromEmail: cfg.SMTPFrom,
			To:        cfg.NotifyTo,
		})
		if err != nil {
			return nil, err
		}
		return n, nil
	default:
		return nil, nil
	}
}
