// Package bedrock invokes models hosted on AWS Bedrock and exposes their
// streaming responses as raw event payloads.
package bedrock

import (
	"context"
	"errors"
	"fmt"
	"io"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/bedrockruntime"
	"github.com/aws/aws-sdk-go-v2/service/bedrockruntime/types"

	"github.com/infinitepi-io/chatrix/internal/provider"
)

const contentTypeJSON = "application/json"

// StreamAPI is the subset of the Bedrock runtime client used here.
type StreamAPI interface {
	InvokeModelWithResponseStream(ctx context.Context, params *bedrockruntime.InvokeModelWithResponseStreamInput, optFns ...func(*bedrockruntime.Options)) (*bedrockruntime.InvokeModelWithResponseStreamOutput, error)
}

// streamReader matches the SDK's event stream reader.
type streamReader interface {
	Events() <-chan types.ResponseStream
	Close() error
	Err() error
}

// Client implements provider.Backend on top of Bedrock.
type Client struct {
	open func(ctx context.Context, in *bedrockruntime.InvokeModelWithResponseStreamInput) (streamReader, error)
}

// New constructs a Bedrock backend.
func New(api StreamAPI) (*Client, error) {
	if api == nil {
		return nil, errors.New("bedrock runtime client must not be nil")
	}

	return &Client{
		open: func(ctx context.Context, in *bedrockruntime.InvokeModelWithResponseStreamInput) (streamReader, error) {
			out, err := api.InvokeModelWithResponseStream(ctx, in)
			if err != nil {
				return nil, err
			}
			stream := out.GetStream()
			if stream == nil {
				return nil, errors.New("response carried no event stream")
			}
			return stream, nil
		},
	}, nil
}

var _ provider.Backend = (*Client)(nil)

// InvokeStream starts a streaming invocation of backendID.
func (c *Client) InvokeStream(ctx context.Context, backendID string, payload []byte) (provider.EventStream, error) {
	reader, err := c.open(ctx, &bedrockruntime.InvokeModelWithResponseStreamInput{
		ModelId:     aws.String(backendID),
		Body:        payload,
		ContentType: aws.String(contentTypeJSON),
		Accept:      aws.String(contentTypeJSON),
	})
	if err != nil {
		return nil, fmt.Errorf("%w: invoke %s: %w", provider.ErrBackend, backendID, err)
	}

	return &eventStream{ctx: ctx, reader: reader}, nil
}

type eventStream struct {
	ctx    context.Context
	reader streamReader
}

// Recv returns the bytes of the next chunk. Non-chunk members are returned
// as nil payloads so the caller still sees one event per frame.
func (s *eventStream) Recv() ([]byte, error) {
	select {
	case <-s.ctx.Done():
		return nil, s.ctx.Err()
	case ev, ok := <-s.reader.Events():
		if !ok {
			if err := s.reader.Err(); err != nil {
				return nil, fmt.Errorf("%w: event stream: %w", provider.ErrBackend, err)
			}
			return nil, io.EOF
		}

		switch v := ev.(type) {
		case *types.ResponseStreamMemberChunk:
			return v.Value.Bytes, nil
		default:
			return nil, nil
		}
	}
}

func (s *eventStream) Close() error {
	return s.reader.Close()
}
