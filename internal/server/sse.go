package server

import (
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/infinitepi-io/chatrix/internal/translator"
)

var doneFrame = []byte("data: [DONE]\n\n")

// sseWriter writes data-only SSE frames. Headers go out with the first
// frame so a failure before any output can still become a JSON error.
type sseWriter struct {
	c       echo.Context
	flusher http.Flusher
	started bool
	frames  int
}

func newSSEWriter(c echo.Context) (*sseWriter, error) {
	flusher, ok := c.Response().Writer.(http.Flusher)
	if !ok {
		slog.Error("http writer does not support flushing")
		return nil, errInternal
	}
	return &sseWriter{c: c, flusher: flusher}, nil
}

func (w *sseWriter) start() {
	header := w.c.Response().Header()
	header.Set(echo.HeaderContentType, "text/event-stream")
	header.Set("Cache-Control", "no-cache")
	header.Set("Connection", "keep-alive")
	header.Set("X-Accel-Buffering", "no")

	// Streams outlive the server's write timeout.
	_ = http.NewResponseController(w.c.Response().Writer).SetWriteDeadline(time.Time{})

	w.c.Response().WriteHeader(http.StatusOK)
	w.started = true
}

func (w *sseWriter) writeFrame(payload []byte) error {
	if !w.started {
		w.start()
	}
	if _, err := fmt.Fprintf(w.c.Response(), "data: %s\n\n", payload); err != nil {
		return fmt.Errorf("write SSE frame: %w", err)
	}
	w.flusher.Flush()
	w.frames++
	return nil
}

func (w *sseWriter) done() error {
	if !w.started {
		w.start()
	}
	if _, err := w.c.Response().Write(doneFrame); err != nil {
		return fmt.Errorf("write SSE sentinel: %w", err)
	}
	w.flusher.Flush()
	return nil
}

// deltaSink encodes each relayed delta as a dialect frame.
type deltaSink struct {
	enc translator.StreamEncoder
	w   *sseWriter
}

func (s deltaSink) WriteDelta(text string) error {
	frame, err := s.enc.Delta(text)
	if err != nil {
		return err
	}
	return s.w.writeFrame(frame)
}
