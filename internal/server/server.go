package server

import (
	"context"
	"crypto/subtle"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/infinitepi-io/chatrix/internal/config"
	"github.com/infinitepi-io/chatrix/internal/models"
	"github.com/infinitepi-io/chatrix/internal/observability"
	"github.com/infinitepi-io/chatrix/internal/relay"
	"github.com/infinitepi-io/chatrix/internal/router"
	"github.com/infinitepi-io/chatrix/internal/secrets"
	"github.com/infinitepi-io/chatrix/internal/translator"
)

const (
	maxBodyBytes        = 1 << 20 // 1 MiB
	shutdownGracePeriod = 10 * time.Second
	readTimeout         = 30 * time.Second
	writeTimeout        = 5 * time.Minute
	idleTimeout         = 120 * time.Second

	dialectMessages = "messages"
	dialectChat     = "chat_completions"

	// statusClientClosed is recorded when the client went away mid-request.
	statusClientClosed = 499
)

type Server struct {
	cfg     config.Config
	router  *router.Router
	app     *echo.Echo
	address string
	now     func() time.Time
}

// New constructs an HTTP server wired with routing and middleware.
func New(cfg config.Config, rt *router.Router, credential secrets.Source) (*Server, error) {
	if rt == nil {
		return nil, errors.New("router must not be nil")
	}
	if credential == nil {
		return nil, errors.New("credential source must not be nil")
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	e := echo.New()
	e.HideBanner = true
	e.HidePort = true
	e.HTTPErrorHandler = errorHandler

	e.Pre(middleware.RemoveTrailingSlash())
	e.Use(middleware.Recover())
	e.Use(middleware.RequestIDWithConfig(middleware.RequestIDConfig{
		Generator: uuid.NewString,
	}))
	e.Use(middleware.RequestLoggerWithConfig(middleware.RequestLoggerConfig{
		LogLatency:   true,
		LogMethod:    true,
		LogURI:       true,
		LogStatus:    true,
		LogRemoteIP:  true,
		LogRequestID: true,
		LogValuesFunc: func(c echo.Context, v middleware.RequestLoggerValues) error {
			slog.Info("request",
				"request_id", v.RequestID,
				"method", v.Method,
				"uri", v.URI,
				"status", v.Status,
				"client_ip", v.RemoteIP,
				"duration_ms", v.Latency.Milliseconds(),
				"error", v.Error,
			)
			return nil
		},
	}))
	e.Use(middleware.SecureWithConfig(middleware.SecureConfig{
		XSSProtection:         "1; mode=block",
		ContentTypeNosniff:    "nosniff",
		XFrameOptions:         "DENY",
		HSTSMaxAge:            31536000,
		ContentSecurityPolicy: "default-src 'none'; frame-ancestors 'none'; form-action 'none'",
	}))
	e.Use(apiKeyAuth(credential))

	srv := &Server{
		cfg:     cfg,
		router:  rt,
		app:     e,
		address: fmt.Sprintf(":%d", cfg.Server.Port),
		now:     time.Now,
	}

	srv.registerRoutes()

	return srv, nil
}

// Handler exposes the server's HTTP handler.
func (s *Server) Handler() http.Handler {
	return s.app
}

// Run starts the HTTP server and blocks until the context is cancelled.
func (s *Server) Run(ctx context.Context) error {
	printStartupBanner(s.cfg.Server.Port)
	slog.Info("starting server", "addr", s.address)

	httpServer := &http.Server{
		Addr:         s.address,
		Handler:      s.app,
		ReadTimeout:  readTimeout,
		WriteTimeout: writeTimeout,
		IdleTimeout:  idleTimeout,
	}

	errCh := make(chan error, 1)
	go func() {
		if err := s.app.StartServer(httpServer); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownGracePeriod)
		defer cancel()
		if err := s.app.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("graceful shutdown failed: %w", err)
		}
		slog.Info("server shutdown complete")
		return nil
	case err := <-errCh:
		return err
	}
}

func (s *Server) registerRoutes() {
	s.app.GET("/health", s.handleHealth)
	s.app.GET("/metrics", echo.WrapHandler(promhttp.Handler()))
	s.app.GET("/v1/models", s.handleModels)
	s.app.POST("/v1/chat/completions", s.handleChatCompletions)
	s.app.POST(messagesPath, s.handleClaudeMessages)
}

// apiKeyAuth accepts "Authorization: Bearer <key>" or "x-api-key: <key>".
func apiKeyAuth(credential secrets.Source) echo.MiddlewareFunc {
	return middleware.KeyAuthWithConfig(middleware.KeyAuthConfig{
		KeyLookup: "header:" + echo.HeaderAuthorization + ":Bearer ,header:x-api-key",
		Skipper: func(c echo.Context) bool {
			switch c.Request().URL.Path {
			case "/health", "/metrics":
				return true
			}
			return false
		},
		Validator: func(key string, c echo.Context) (bool, error) {
			want, err := credential.Credential(c.Request().Context())
			if err != nil {
				return false, err
			}
			return subtle.ConstantTimeCompare([]byte(key), []byte(want)) == 1, nil
		},
		ErrorHandler: func(err error, c echo.Context) error {
			if errors.Is(err, secrets.ErrUnavailable) {
				slog.Error("api key validation unavailable", "request_id", requestID(c), "err", err)
				return errInternal
			}
			slog.Warn("invalid or missing api key",
				"request_id", requestID(c),
				"client_ip", c.RealIP(),
				"has_auth", c.Request().Header.Get(echo.HeaderAuthorization) != "",
			)
			return errUnauthorized
		},
	})
}

func (s *Server) handleHealth(c echo.Context) error {
	return c.JSON(http.StatusOK, map[string]string{
		"status":    "ok",
		"timestamp": s.now().UTC().Format(time.RFC3339Nano),
	})
}

type modelEntry struct {
	ID        string `json:"id"`
	Object    string `json:"object"`
	OwnedBy   string `json:"owned_by"`
	BackendID string `json:"backend_id"`
	Family    string `json:"family"`
}

func (s *Server) handleModels(c echo.Context) error {
	list := s.router.Models()
	data := make([]modelEntry, 0, len(list))
	for _, m := range list {
		data = append(data, modelEntry{
			ID:        m.ID,
			Object:    "model",
			OwnedBy:   "bedrock",
			BackendID: m.BackendID,
			Family:    m.Family,
		})
	}
	return c.JSON(http.StatusOK, map[string]any{"object": "list", "data": data})
}

func (s *Server) handleChatCompletions(c echo.Context) error {
	var req translator.ChatCompletionRequest
	if err := decodeRequestBody(c, &req); err != nil {
		return err
	}
	if err := req.Validate(); err != nil {
		return err
	}

	unified := req.ToUnified()
	unified.RequestID = requestID(c)
	created := s.now().Unix()

	enc := translator.ChatStream{
		ID:      translator.ChatCompletionID(unified.RequestID),
		Created: created,
		Model:   unified.Model,
	}
	return s.relayChat(c, dialectChat, unified, enc, func(resp *models.UnifiedChatResponse) any {
		return translator.FromUnifiedChat(created, resp)
	})
}

func (s *Server) handleClaudeMessages(c echo.Context) error {
	var req translator.ClaudeMessageRequest
	if err := decodeRequestBody(c, &req); err != nil {
		return err
	}
	if err := req.Validate(); err != nil {
		return err
	}

	unified := req.ToUnified()
	unified.RequestID = requestID(c)

	return s.relayChat(c, dialectMessages, unified, translator.ClaudeStream{}, func(resp *models.UnifiedChatResponse) any {
		return translator.FromUnifiedClaude(resp)
	})
}

// relayChat runs the request through the router and writes either one JSON
// body or a frame per delta followed by a terminal frame and [DONE].
func (s *Server) relayChat(c echo.Context, dialect string, req models.UnifiedChatRequest, enc translator.StreamEncoder, body func(*models.UnifiedChatResponse) any) error {
	start := time.Now()
	ctx := c.Request().Context()
	modelLabel := s.router.Resolve(req.Model).Name
	logger := slog.With("request_id", req.RequestID, "model", req.Model, "dialect", dialect, "stream", req.Stream)
	logger.Info("chat request received", "client_ip", c.RealIP())

	status := http.StatusOK
	defer func() {
		observability.RequestsTotal.WithLabelValues(dialect, modelLabel, observability.StatusClass(status)).Inc()
		observability.RequestDuration.WithLabelValues(dialect, modelLabel).Observe(time.Since(start).Seconds())
	}()

	var (
		sink relay.Sink
		sse  *sseWriter
	)
	if req.Stream {
		w, err := newSSEWriter(c)
		if err != nil {
			status = http.StatusInternalServerError
			return err
		}
		sse = w
		sink = deltaSink{enc: enc, w: sse}

		observability.StreamingConnections.Inc()
		defer observability.StreamingConnections.Dec()
	}

	resp, err := s.router.Chat(ctx, req, sink)
	if err != nil {
		elapsed := time.Since(start).Milliseconds()
		switch {
		case errors.Is(err, relay.ErrClientGone):
			status = statusClientClosed
			logger.Info("client disconnected", "err", err, "duration_ms", elapsed)
			return nil
		case sse != nil && sse.started:
			// Frames already flushed cannot be retracted; the stream just ends.
			status = http.StatusInternalServerError
			logger.Error("stream truncated by backend failure", "err", err, "duration_ms", elapsed, "frames_written", sse.frames)
			return nil
		default:
			status = http.StatusInternalServerError
			logger.Error("chat request failed", "err", err, "duration_ms", elapsed)
			return errInternal
		}
	}

	if sse == nil {
		logger.Info("chat request completed", "duration_ms", time.Since(start).Milliseconds())
		return c.JSON(http.StatusOK, body(resp))
	}

	frame, err := enc.Terminal(resp)
	if err == nil {
		err = sse.writeFrame(frame)
	}
	if err == nil {
		err = sse.done()
	}
	if err != nil {
		status = statusClientClosed
		logger.Info("client disconnected before stream end", "err", err)
		return nil
	}

	logger.Info("chat stream completed",
		"frames_written", sse.frames,
		"duration_ms", time.Since(start).Milliseconds(),
	)
	return nil
}

func decodeRequestBody[T any](c echo.Context, target *T) error {
	req := c.Request()
	defer req.Body.Close()

	req.Body = http.MaxBytesReader(c.Response(), req.Body, maxBodyBytes)

	decoder := json.NewDecoder(req.Body)
	if err := decoder.Decode(target); err != nil {
		var inputErr *translator.RequestError
		if errors.As(err, &inputErr) {
			return err
		}
		if errors.Is(err, io.EOF) {
			return requestError{
				Status:  http.StatusBadRequest,
				Message: "request body is required",
				Type:    errTypeInvalidRequest,
			}
		}
		return requestError{
			Status:  http.StatusBadRequest,
			Message: fmt.Sprintf("invalid JSON payload: %v", err),
			Type:    errTypeInvalidRequest,
		}
	}

	if err := decoder.Decode(&struct{}{}); err != io.EOF {
		return requestError{
			Status:  http.StatusBadRequest,
			Message: "request body must contain a single JSON object",
			Type:    errTypeInvalidRequest,
		}
	}
	return nil
}

func requestID(c echo.Context) string {
	if id := c.Response().Header().Get(echo.HeaderXRequestID); id != "" {
		return id
	}
	return c.Request().Header.Get(echo.HeaderXRequestID)
}

func printStartupBanner(port int) {
	host := "127.0.0.1"
	fmt.Println()
	fmt.Println("chatrix ready")
	fmt.Printf("Listening on http://%s:%d\n", host, port)
	fmt.Println("Endpoints:")
	fmt.Println("  GET  /health")
	fmt.Println("  GET  /metrics")
	fmt.Println("  GET  /v1/models")
	fmt.Println("  POST /v1/chat/completions")
	fmt.Println("  POST /v1/messages")
	fmt.Printf("Anthropic-style example:\n  curl http://%s:%d/v1/messages -H 'Authorization: Bearer $CHATRIX_API_KEY' -H 'Content-Type: application/json' -d '{\"model\":\"claude-3-5-haiku\",\"messages\":[{\"role\":\"user\",\"content\":\"hello\"}]}'\n", host, port)
	fmt.Printf("Claude Code example:\n  ANTHROPIC_BASE_URL=http://%s:%d ANTHROPIC_AUTH_TOKEN=$CHATRIX_API_KEY claude\n\n", host, port)
}
