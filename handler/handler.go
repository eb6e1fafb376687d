package handler

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"net/http"
	"sort"
	"strings"
	"time"

	"github.com/aws/aws-lambda-go/events"
	"github.com/google/uuid"

	"intake-agent/internal/domain"
	"intake-agent/internal/logger"
	"intake-agent/internal/usecase"
)

const (
	correlationHeader = "X-Correlation-Id"
	idempotencyHeader = "Idempotency-Key"
	livenessText      = "intake-agent is running"
)

type Response struct {
	StatusCode int               `json:"statusCode"`
	Headers    map[string]string `json:"headers"`
	Body       string            `json:"body"`
}

type Intaker interface {
	Run(ctx context.Context, in usecase.IntakeInput) (usecase.IntakeOutput, error)
}

type Chatter interface {
	Chat(ctx context.Context, message string) (string, error)
}

type Verifier interface {
	Verify(ctx context.Context, password string) error
}

type chatRequest struct {
	Message string `json:"message"`
}

type chatResponse struct {
	Reply string `json:"reply"`
}

type intakeRequest struct {
	Conversation   domain.Conversation `json:"conversation"`
	IdempotencyKey string              `json:"idempotencyKey,omitempty"`
}

type intakeResponse struct {
	Status     string         `json:"status"`
	Reply      string         `json:"reply,omitempty"`
	CaseNumber string         `json:"caseNumber,omitempty"`
	Report     *domain.Report `json:"report,omitempty"`
}

type verifyRequest struct {
	Password string `json:"password"`
}

type verifyResponse struct {
	Success bool   `json:"success"`
	Message string `json:"message,omitempty"`
}

type errorResponse struct {
	Error string `json:"error"`
	Code  string `json:"code"`
}

type route func(ctx context.Context, log *logger.Logger, event events.APIGatewayProxyRequest) Response

type Option func(*Handler)

// WithCORS adds permissive CORS headers to every response. Used when the Lambda
// is exposed without an API Gateway CORS configuration.
func WithCORS() Option {
	return func(h *Handler) { h.cors = true }
}

// Handler routes API Gateway proxy events to the intake use cases.
type Handler struct {
	intake   Intaker
	chat     Chatter
	verifier Verifier
	log      *logger.Logger
	cors     bool
	routes   map[string]map[string]route
}

func NewHandler(intake Intaker, chat Chatter, verifier Verifier, log *logger.Logger, opts ...Option) (*Handler, error) {
	if intake == nil {
		return nil, errors.New("handler: intake service must not be nil")
	}
	if chat == nil {
		return nil, errors.New("handler: chat service must not be nil")
	}
	if verifier == nil {
		return nil, errors.New("handler: developer verifier must not be nil")
	}
	if log == nil {
		return nil, errors.New("handler: logger must not be nil")
	}
	h := &Handler{intake: intake, chat: chat, verifier: verifier, log: log}
	for _, opt := range opts {
		opt(h)
	}
	h.routes = map[string]map[string]route{
		"/":                 {http.MethodGet: h.handleLiveness},
		"/chat":             {http.MethodPost: h.handleChat},
		"/intake":           {http.MethodPost: h.handleIntake},
		"/verify-developer": {http.MethodPost: h.handleVerify},
	}
	return h, nil
}

// Handle is the Lambda entry point. It never returns an error: every failure is
// rendered as an HTTP response.
func (h *Handler) Handle(ctx context.Context, event events.APIGatewayProxyRequest) (Response, error) {
	start := time.Now()
	correlationID := headerValue(event.Headers, correlationHeader)
	if correlationID == "" {
		correlationID = uuid.NewString()
	}
	path := normalizePath(event.Path)
	method := strings.ToUpper(event.HTTPMethod)
	log := h.log.With("correlation_id", correlationID, "method", method, "path", path)

	resp := h.dispatch(ctx, log, method, path, event)
	if resp.Headers == nil {
		resp.Headers = map[string]string{}
	}
	resp.Headers[correlationHeader] = correlationID
	if h.cors {
		for k, v := range corsHeaders() {
			resp.Headers[k] = v
		}
	}

	log.Info("request completed", "status", resp.StatusCode, "duration_ms", time.Since(start).Milliseconds())
	return resp, nil
}

func (h *Handler) dispatch(ctx context.Context, log *logger.Logger, method, path string, event events.APIGatewayProxyRequest) Response {
	methods, ok := h.routes[path]
	if !ok {
		if method == http.MethodOptions {
			return Response{StatusCode: http.StatusNoContent, Headers: map[string]string{}}
		}
		return jsonResponse(http.StatusNotFound, errorResponse{Error: "not found", Code: "NOT_FOUND"})
	}
	if method == http.MethodOptions {
		return Response{StatusCode: http.StatusNoContent, Headers: map[string]string{"Allow": allowList(methods)}}
	}
	fn, ok := methods[method]
	if !ok {
		resp := jsonResponse(http.StatusMethodNotAllowed, errorResponse{Error: "method not allowed", Code: "METHOD_NOT_ALLOWED"})
		resp.Headers["Allow"] = allowList(methods)
		return resp
	}
	return fn(ctx, log, event)
}

func (h *Handler) handleLiveness(_ context.Context, _ *logger.Logger, _ events.APIGatewayProxyRequest) Response {
	return Response{
		StatusCode: http.StatusOK,
		Headers:    map[string]string{"content-type": "text/plain; charset=utf-8"},
		Body:       livenessText,
	}
}

func (h *Handler) handleChat(ctx context.Context, log *logger.Logger, event events.APIGatewayProxyRequest) Response {
	var req chatRequest
	if err := decodeBody(event, &req); err != nil {
		return h.errorResponse(log, &usecase.Error{Code: usecase.ErrorInvalidInput, Reason: "invalid_body", Err: err})
	}
	reply, err := h.chat.Chat(ctx, req.Message)
	if err != nil {
		return h.errorResponse(log, err)
	}
	return jsonResponse(http.StatusOK, chatResponse{Reply: reply})
}

func (h *Handler) handleIntake(ctx context.Context, log *logger.Logger, event events.APIGatewayProxyRequest) Response {
	var req intakeRequest
	if err := decodeBody(event, &req); err != nil {
		return h.errorResponse(log, &usecase.Error{Code: usecase.ErrorInvalidInput, Reason: "invalid_body", Err: err})
	}
	key := strings.TrimSpace(req.IdempotencyKey)
	if key == "" {
		key = headerValue(event.Headers, idempotencyHeader)
	}

	out, err := h.intake.Run(ctx, usecase.IntakeInput{Conversation: req.Conversation, IdempotencyKey: key})
	if err != nil {
		return h.errorResponse(log, err)
	}
	if out.Status == usecase.StatusComplete {
		log.Info("intake completed", "case_number", out.CaseNumber)
	}
	return jsonResponse(http.StatusOK, intakeResponse{
		Status:     out.Status,
		Reply:      out.Reply,
		CaseNumber: out.CaseNumber,
		Report:     out.Report,
	})
}

func (h *Handler) handleVerify(ctx context.Context, log *logger.Logger, event events.APIGatewayProxyRequest) Response {
	var req verifyRequest
	if err := decodeBody(event, &req); err != nil {
		return h.errorResponse(log, &usecase.Error{Code: usecase.ErrorInvalidInput, Reason: "invalid_body", Err: err})
	}
	err := h.verifier.Verify(ctx, req.Password)
	if err == nil {
		return jsonResponse(http.StatusOK, verifyResponse{Success: true})
	}
	if usecase.CodeOf(err) == usecase.ErrorUnauthorized {
		log.Warn("developer verification rejected")
		return jsonResponse(http.StatusUnauthorized, verifyResponse{Success: false, Message: "incorrect password"})
	}
	return h.errorResponse(log, err)
}

func (h *Handler) errorResponse(log *logger.Logger, err error) Response {
	code := usecase.CodeOf(err)
	reason := ""
	var ue *usecase.Error
	if errors.As(err, &ue) {
		reason = ue.Reason
	}

	status := statusFor(code)
	if status >= http.StatusInternalServerError {
		log.Error("request failed", "code", code, "reason", reason, "err", err)
	} else {
		log.Warn("request rejected", "code", code, "reason", reason)
	}

	msg := messageFor(code)
	if code == usecase.ErrorInvalidInput && reason != "" {
		msg += ": " + reason
	}
	return jsonResponse(status, errorResponse{Error: msg, Code: string(code)})
}

func statusFor(code usecase.ErrorCode) int {
	switch code {
	case usecase.ErrorInvalidInput:
		return http.StatusBadRequest
	case usecase.ErrorUnauthorized:
		return http.StatusUnauthorized
	default:
		return http.StatusInternalServerError
	}
}

func messageFor(code usecase.ErrorCode) string {
	switch code {
	case usecase.ErrorInvalidInput:
		return "invalid request"
	case usecase.ErrorUnauthorized:
		return "unauthorized"
	case usecase.ErrorConfig:
		return "service is not configured"
	case usecase.ErrorProvider:
		return "language model request failed"
	case usecase.ErrorReportGeneration:
		return "report generation failed"
	case usecase.ErrorPersistence:
		return "could not save the case"
	case usecase.ErrorNotification:
		return "case saved but notification failed"
	default:
		return "internal error"
	}
}

func decodeBody(event events.APIGatewayProxyRequest, dst any) error {
	body := event.Body
	if event.IsBase64Encoded {
		raw, err := base64.StdEncoding.DecodeString(body)
		if err != nil {
			return err
		}
		body = string(raw)
	}
	if strings.TrimSpace(body) == "" {
		return errors.New("empty body")
	}
	return json.Unmarshal([]byte(body), dst)
}

func jsonResponse(status int, v any) Response {
	body, err := json.Marshal(v)
	if err != nil {
		status = http.StatusInternalServerError
		body = []byte(`{"error":"internal error","code":"INTERNAL_ERROR"}`)
	}
	return Response{
		StatusCode: status,
		Headers:    map[string]string{"content-type": "application/json"},
		Body:       string(body),
	}
}

// headerValue looks a header up case-insensitively.
func headerValue(headers map[string]string, name string) string {
	if v, ok := headers[name]; ok {
		return strings.TrimSpace(v)
	}
	for k, v := range headers {
		if strings.EqualFold(k, name) {
			return strings.TrimSpace(v)
		}
	}
	return ""
}

func normalizePath(p string) string {
	p = strings.TrimSpace(p)
	if p == "" {
		return "/"
	}
	if !strings.HasPrefix(p, "/") {
		p = "/" + p
	}
	if p = strings.TrimRight(p, "/"); p == "" {
		return "/"
	}
	return p
}

func allowList(methods map[string]route) string {
	out := make([]string, 0, len(methods)+1)
	for m := range methods {
		out = append(out, m)
	}
	out = append(out, http.MethodOptions)
	sort.Strings(out)
	return strings.Join(out, ", ")
}

func corsHeaders() map[string]string {
	return map[string]string{
		"Access-Control-Allow-Origin":   "*",
		"Access-Control-Allow-Methods":  "GET, POST, OPTIONS",
		"Access-Control-Allow-Headers":  "Content-Type, X-Correlation-Id, Idempotency-Key",
		"Access-Control-Expose-Headers": correlationHeader,
	}
}
