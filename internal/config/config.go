package config

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"
)

const (
	ProviderOpenAI = "openai"
	ProviderGemini = "gemini"

	StoreMemory    = "memory"
	StoreDynamoDB  = "dynamodb"
	StoreFirestore = "firestore"

	NotifierSMTP     = "smtp"
	NotifierSendGrid = "sendgrid"
	NotifierNone     = "none"
)

type Config struct {
	Port        string
	LogMode     string
	CORSOrigins []string

	LLMProvider     string
	OpenAIAPIKey    string
	OpenAIModel     string
	OpenAIBaseURL   string
	GeminiAPIKey    string
	GeminiModel     string
	ProviderTimeout time.Duration

	MinAnalystTurns   int
	MaxMessageLength  int
	KnowledgeBasePath string

	StoreBackend        string
	CasesTable          string
	GCPProject          string
	FirestoreCollection string

	Notifier       string
	SMTPHost       string
	SMTPPort       int
	SMTPUsername   string
	SMTPPassword   string
	SMTPFrom       string
	SMTPInsecure   bool
	SendGridAPIKey string
	NotifyTo       []string

	DeveloperPassword string
	ParamPrefix       string

	warnings []string
}

// Load reads the process environment. Malformed numeric or boolean values fall
// back to their defaults and are reported by Warnings.
func Load() *Config {
	c := &Config{
		Port:    getEnv("PORT", "8080"),
		LogMode: getEnv("LOG_MODE", "prod"),

		CORSOrigins: splitList(getEnv("CORS_ALLOWED_ORIGINS", "")),

		LLMProvider:   strings.ToLower(getEnv("LLM_PROVIDER", ProviderOpenAI)),
		OpenAIAPIKey:  getEnv("OPENAI_API_KEY", ""),
		OpenAIModel:   getEnv("OPENAI_MODEL", ""),
		OpenAIBaseURL: getEnv("OPENAI_BASE_URL", ""),
		GeminiAPIKey:  getEnv("GEMINI_API_KEY", ""),
		GeminiModel:   getEnv("GEMINI_MODEL", ""),

		KnowledgeBasePath: getEnv("KNOWLEDGE_BASE_PATH", ""),

		StoreBackend:        strings.ToLower(getEnv("STORE_BACKEND", StoreMemory)),
		CasesTable:          getEnv("CASES_TABLE", ""),
		GCPProject:          getEnv("GCP_PROJECT", ""),
		FirestoreCollection: getEnv("FIRESTORE_COLLECTION", "cases"),

		SMTPHost:       getEnv("SMTP_HOST", ""),
		SMTPUsername:   getEnv("SMTP_USERNAME", ""),
		SMTPPassword:   getEnv("SMTP_PASSWORD", ""),
		SMTPFrom:       getEnv("SMTP_FROM", ""),
		SendGridAPIKey: getEnv("SENDGRID_API_KEY", ""),
		NotifyTo:       splitList(getEnv("NOTIFY_TO", "")),

		DeveloperPassword: getEnv("DEVELOPER_PASSWORD", ""),
		ParamPrefix:       strings.TrimRight(getEnv("PARAM_PREFIX", ""), "/"),
	}

	c.ProviderTimeout = time.Duration(c.intEnv("PROVIDER_TIMEOUT_SECONDS", 15)) * time.Second
	c.MinAnalystTurns = c.intEnv("MIN_ANALYST_TURNS", 0)
	c.MaxMessageLength = c.intEnv("MAX_MESSAGE_LENGTH", 2000)
	c.SMTPPort = c.intEnv("SMTP_PORT", 587)
	c.SMTPInsecure = c.boolEnv("SMTP_INSECURE", false)

	c.Notifier = strings.ToLower(getEnv("NOTIFIER", ""))
	if c.Notifier == "" {
		switch {
		case c.SMTPHost != "":
			c.Notifier = NotifierSMTP
		case c.SendGridAPIKey != "":
			c.Notifier = NotifierSendGrid
		default:
			c.Notifier = NotifierNone
		}
	}
	return c
}

// Validate rejects settings that cannot describe a runnable process.
func (c *Config) Validate() error {
	var errs []error
	switch c.LLMProvider {
	case ProviderOpenAI, ProviderGemini:
	default:
		errs = append(errs, fmt.Errorf("LLM_PROVIDER must be %q or %q, got %q", ProviderOpenAI, ProviderGemini, c.LLMProvider))
	}
	switch c.StoreBackend {
	case StoreMemory:
	case StoreDynamoDB:
		if c.CasesTable == "" {
			errs = append(errs, errors.New("CASES_TABLE must be set for the dynamodb store"))
		}
	case StoreFirestore:
		if c.GCPProject == "" {
			errs = append(errs, errors.New("GCP_PROJECT must be set for the firestore store"))
		}
	default:
		errs = append(errs, fmt.Errorf("STORE_BACKEND must be memory, dynamodb or firestore, got %q", c.StoreBackend))
	}
	switch c.Notifier {
	case NotifierSMTP, NotifierSendGrid, NotifierNone:
	default:
		errs = append(errs, fmt.Errorf("NOTIFIER must be smtp, sendgrid or none, got %q", c.Notifier))
	}
	if c.ProviderTimeout <= 0 {
		errs = append(errs, errors.New("PROVIDER_TIMEOUT_SECONDS must be positive"))
	}
	if c.MinAnalystTurns < 0 {
		errs = append(errs, errors.New("MIN_ANALYST_TURNS must not be negative"))
	}
	return errors.Join(errs...)
}

// SecretGetter reads one field of a JSON-wrapped secret parameter.
type SecretGetter interface {
	GetJSONField(ctx context.Context, name, field string) (string, error)
}

type secretRef struct {
	name  string
	field string
	dst   *string
}

// ResolveSecrets fills secrets missing from the environment from the parameter
// store under ParamPrefix. Lookups run concurrently; a failed lookup leaves the
// secret empty and is reported by Warnings.
func (c *Config) ResolveSecrets(ctx context.Context, getter SecretGetter) error {
	if c.ParamPrefix == "" || getter == nil {
		return nil
	}

	var refs []secretRef
	want := func(name, field string, dst *string, needed bool) {
		if needed && *dst == "" {
			refs = append(refs, secretRef{name: c.ParamPrefix + "/" + name, field: field, dst: dst})
		}
	}
	want("openai-token", "token", &c.OpenAIAPIKey, c.LLMProvider == ProviderOpenAI)
	want("gemini-token", "token", &c.GeminiAPIKey, c.LLMProvider == ProviderGemini)
	want("smtp-password", "password", &c.SMTPPassword, c.Notifier == NotifierSMTP && c.SMTPUsername != "")
	want("sendgrid-token", "token", &c.SendGridAPIKey, c.Notifier == NotifierSendGrid)
	want("developer-password", "password", &c.DeveloperPassword, true)

	var mu sync.Mutex
	g, gctx := errgroup.WithContext(ctx)
	for _, ref := range refs {
		g.Go(func() error {
			v, err := getter.GetJSONField(gctx, ref.name, ref.field)
			mu.Lock()
			defer mu.Unlock()
			if err != nil {
				if ctxErr := ctx.Err(); ctxErr != nil {
					return ctxErr
				}
				c.warnings = append(c.warnings, fmt.Sprintf("secret %s unavailable: %v", ref.name, err))
				return nil
			}
			*ref.dst = v
			return nil
		})
	}
	return g.Wait()
}

// Warnings lists every capability that is degraded by the current settings.
func (c *Config) Warnings() []string {
	out := append([]string(nil), c.warnings...)

	switch c.LLMProvider {
	case ProviderOpenAI:
		if c.OpenAIAPIKey == "" {
			out = append(out, "OPENAI_API_KEY is not set: /chat and /intake will fail")
		}
	case ProviderGemini:
		if c.GeminiAPIKey == "" {
			out = append(out, "GEMINI_API_KEY is not set: /chat and /intake will fail")
		}
	}
	if c.KnowledgeBasePath == "" {
		out = append(out, "KNOWLEDGE_BASE_PATH is not set: chat answers without a knowledge base")
	}
	if c.StoreBackend == StoreMemory {
		out = append(out, "STORE_BACKEND is memory: cases are lost on restart")
	}
	switch c.Notifier {
	case NotifierNone:
		out = append(out, "NOTIFIER is none: finalized cases are not emailed")
	case NotifierSMTP:
		if c.SMTPHost == "" || c.SMTPFrom == "" || len(c.NotifyTo) == 0 {
			out = append(out, "SMTP_HOST, SMTP_FROM and NOTIFY_TO are required for smtp notifications")
		}
	case NotifierSendGrid:
		if c.SendGridAPIKey == "" || c.SMTPFrom == "" || len(c.NotifyTo) == 0 {
			out = append(out, "SENDGRID_API_KEY, SMTP_FROM and NOTIFY_TO are required for sendgrid notifications")
		}
	}
	if c.DeveloperPassword == "" {
		out = append(out, "DEVELOPER_PASSWORD is not set: /verify-developer always fails")
	}
	return out
}

func getEnv(key, def string) string {
	if v := strings.TrimSpace(os.Getenv(key)); v != "" {
		return v
	}
	return def
}

func (c *Config) intEnv(key string, def int) int {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return def
	}
	i, err := strconv.Atoi(v)
	if err != nil {
		c.warnings = append(c.warnings, fmt.Sprintf("%s=%q is not an integer, using %d", key, v, def))
		return def
	}
	return i
}

func (c *Config) boolEnv(key string, def bool) bool {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return def
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		c.warnings = append(c.warnings, fmt.Sprintf("%s=%q is not a boolean, using %t", key, v, def))
		return def
	}
	return b
}

func splitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if p := strings.TrimSpace(part); p != "" {
			out = append(out, p)
		}
	}
	return out
}
