package provider

import (
	"context"
	"errors"
)

// ErrBackend marks failures raised by the inference backend itself
// (connection, credentials, throttling, stream faults).
var ErrBackend = errors.New("backend invocation failed")

// ErrUnknownModel indicates a lookup for a logical name that is not registered.
var ErrUnknownModel = errors.New("unknown model")

// ErrDuplicateModel indicates an attempt to register the same model twice.
var ErrDuplicateModel = errors.New("model already registered")

// Backend invokes a backend model with a native payload and returns its
// response as a stream of raw events.
type Backend interface {
	InvokeStream(ctx context.Context, backendID string, payload []byte) (EventStream, error)
}

// EventStream is a finite, non-restartable sequence of raw backend events.
// Recv returns io.EOF once the backend has finished. Each returned slice is
// one JSON object as sent by the backend; a nil slice with a nil error is a
// frame the backend sent without a payload.
type EventStream interface {
	Recv() ([]byte, error)
	Close() error
}
