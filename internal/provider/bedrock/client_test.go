package bedrock

import (
	"context"
	"errors"
	"io"
	"testing"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/bedrockruntime"
	"github.com/aws/aws-sdk-go-v2/service/bedrockruntime/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/infinitepi-io/chatrix/internal/provider"
)

type fakeReader struct {
	events chan types.ResponseStream
	err    error
	closed bool
}

func newFakeReader(err error, events ...types.ResponseStream) *fakeReader {
	ch := make(chan types.ResponseStream, len(events))
	for _, ev := range events {
		ch <- ev
	}
	close(ch)
	return &fakeReader{events: ch, err: err}
}

func (r *fakeReader) Events() <-chan types.ResponseStream { return r.events }
func (r *fakeReader) Err() error                          { return r.err }
func (r *fakeReader) Close() error {
	r.closed = true
	return nil
}

func chunk(s string) types.ResponseStream {
	return &types.ResponseStreamMemberChunk{Value: types.PayloadPart{Bytes: []byte(s)}}
}

func clientWith(reader streamReader, openErr error, seen *bedrockruntime.InvokeModelWithResponseStreamInput) *Client {
	return &Client{
		open: func(ctx context.Context, in *bedrockruntime.InvokeModelWithResponseStreamInput) (streamReader, error) {
			if seen != nil {
				*seen = *in
			}
			if openErr != nil {
				return nil, openErr
			}
			return reader, nil
		},
	}
}

func TestInvokeStreamYieldsChunks(t *testing.T) {
	reader := newFakeReader(nil, chunk(`{"a":1}`), chunk(`{"b":2}`))
	var in bedrockruntime.InvokeModelWithResponseStreamInput
	c := clientWith(reader, nil, &in)

	stream, err := c.InvokeStream(context.Background(), "us.deepseek.r1-v1:0", []byte(`{"prompt":"hi"}`))
	require.NoError(t, err)

	assert.Equal(t, "us.deepseek.r1-v1:0", aws.ToString(in.ModelId))
	assert.Equal(t, `{"prompt":"hi"}`, string(in.Body))
	assert.Equal(t, "application/json", aws.ToString(in.ContentType))

	first, err := stream.Recv()
	require.NoError(t, err)
	assert.JSONEq(t, `{"a":1}`, string(first))

	second, err := stream.Recv()
	require.NoError(t, err)
	assert.JSONEq(t, `{"b":2}`, string(second))

	_, err = stream.Recv()
	assert.ErrorIs(t, err, io.EOF)

	require.NoError(t, stream.Close())
	assert.True(t, reader.closed)
}

func TestRecvSkipsUnknownMembers(t *testing.T) {
	reader := newFakeReader(nil, &types.UnknownUnionMember{Tag: "other"}, chunk(`{}`))
	stream, err := clientWith(reader, nil, nil).InvokeStream(context.Background(), "m", nil)
	require.NoError(t, err)

	payload, err := stream.Recv()
	require.NoError(t, err)
	assert.Nil(t, payload)

	payload, err = stream.Recv()
	require.NoError(t, err)
	assert.Equal(t, "{}", string(payload))
}

func TestRecvSurfacesStreamError(t *testing.T) {
	reader := newFakeReader(errors.New("throttled"), chunk(`{}`))
	stream, err := clientWith(reader, nil, nil).InvokeStream(context.Background(), "m", nil)
	require.NoError(t, err)

	_, err = stream.Recv()
	require.NoError(t, err)

	_, err = stream.Recv()
	require.Error(t, err)
	assert.ErrorIs(t, err, provider.ErrBackend)
	assert.NotErrorIs(t, err, io.EOF)
}

func TestInvokeStreamWrapsOpenError(t *testing.T) {
	_, err := clientWith(nil, errors.New("access denied"), nil).InvokeStream(context.Background(), "m", nil)
	require.Error(t, err)
	assert.ErrorIs(t, err, provider.ErrBackend)
	assert.Contains(t, err.Error(), "access denied")
}

func TestRecvStopsOnCancel(t *testing.T) {
	reader := &fakeReader{events: make(chan types.ResponseStream)}
	ctx, cancel := context.WithCancel(context.Background())
	stream, err := clientWith(reader, nil, nil).InvokeStream(ctx, "m", nil)
	require.NoError(t, err)

	cancel()
	_, err = stream.Recv()
	assert.ErrorIs(t, err, context.Canceled)
}

func TestNewRejectsNilClient(t *testing.T) {
	_, err := New(nil)
	assert.Error(t, err)
}
