package handler

import (
	"errors"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/aws/aws-lambda-go/events"
	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
)

const maxBodyBytes = 1 << 20

// NewRouter exposes Handler through gin for the long-running server mode. An
// empty allowedOrigins list allows any origin.
func NewRouter(h *Handler, allowedOrigins []string) *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery())

	cfg := cors.Config{
		AllowMethods:  []string{http.MethodGet, http.MethodPost, http.MethodOptions},
		AllowHeaders:  []string{"Content-Type", correlationHeader, idempotencyHeader},
		ExposeHeaders: []string{correlationHeader},
		MaxAge:        12 * time.Hour,
	}
	if len(allowedOrigins) == 0 {
		cfg.AllowAllOrigins = true
	} else {
		cfg.AllowOrigins = allowedOrigins
	}
	r.Use(cors.New(cfg))

	r.NoRoute(h.serveGin)
	return r
}

// NewHTTPServer wraps NewRouter in an *http.Server listening on addr.
func NewHTTPServer(h *Handler, addr string, allowedOrigins []string) *http.Server {
	return &http.Server{
		Addr:              addr,
		Handler:           NewRouter(h, allowedOrigins),
		ReadHeaderTimeout: 10 * time.Second,
	}
}

func (h *Handler) serveGin(c *gin.Context) {
	body, err := io.ReadAll(http.MaxBytesReader(c.Writer, c.Request.Body, maxBodyBytes))
	var tooLarge *http.MaxBytesError
	if errors.As(err, &tooLarge) {
		c.AbortWithStatusJSON(http.StatusRequestEntityTooLarge, errorResponse{Error: "invalid request: body_too_large", Code: "INVALID_INPUT"})
		return
	}
	if err != nil {
		c.AbortWithStatusJSON(http.StatusBadRequest, errorResponse{Error: "invalid request: unreadable_body", Code: "INVALID_INPUT"})
		return
	}

	headers := make(map[string]string, len(c.Request.Header))
	for k, v := range c.Request.Header {
		headers[k] = strings.Join(v, ",")
	}

	resp, _ := h.Handle(c.Request.Context(), events.APIGatewayProxyRequest{
		HTTPMethod: c.Request.Method,
		Path:       c.Request.URL.Path,
		Headers:    headers,
		Body:       string(body),
	})

	contentType := ""
	for k, v := range resp.Headers {
		if strings.EqualFold(k, "content-type") {
			contentType = v
			continue
		}
		c.Header(k, v)
	}
	if resp.Body == "" {
		c.Status(resp.StatusCode)
		return
	}
	c.Data(resp.StatusCode, contentType, []byte(resp.Body))
}
