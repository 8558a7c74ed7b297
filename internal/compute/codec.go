package compute

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"sync"

	"github.com/vmihailenco/msgpack/v5"

	"github.com/san-kum/gravsim/internal/barneshut"
)

// Encode writes one msgpack message.
func Encode(w io.Writer, v any) error {
	return msgpack.NewEncoder(w).Encode(v)
}

// Decode reads one msgpack message.
func Decode(r io.Reader, v any) error {
	return msgpack.NewDecoder(r).Decode(v)
}

// Serve answers a stream of msgpack requests on r with responses on w until
// r reaches EOF or ctx is cancelled. Evaluation errors are reported in
// Response.Error and do not end the stream.
func Serve(ctx context.Context, r io.Reader, w io.Writer, b Backend) error {
	dec := msgpack.NewDecoder(bufio.NewReader(r))
	bw := bufio.NewWriter(w)
	enc := msgpack.NewEncoder(bw)

	for {
		if err := ctx.Err(); err != nil {
			return err
		}

		var req barneshut.Request
		if err := dec.Decode(&req); err != nil {
			if errors.Is(err, io.EOF) {
				return nil
			}
			return fmt.Errorf("decode request: %w", err)
		}

		resp, err := b.Forces(req)
		if err != nil {
			resp = barneshut.Response{Type: barneshut.ResponseType, Error: err.Error()}
		}
		if err := enc.Encode(&resp); err != nil {
			return fmt.Errorf("encode response: %w", err)
		}
		if err := bw.Flush(); err != nil {
			return err
		}
	}
}

// StreamBackend forwards requests to a Serve peer.
type StreamBackend struct {
	mu     sync.Mutex
	enc    *msgpack.Encoder
	dec    *msgpack.Decoder
	closer io.Closer
}

// NewStreamBackend talks to a peer over w and r. closer, if non-nil, is
// closed by Cleanup.
func NewStreamBackend(r io.Reader, w io.Writer, closer io.Closer) *StreamBackend {
	return &StreamBackend{
		enc:    msgpack.NewEncoder(w),
		dec:    msgpack.NewDecoder(bufio.NewReader(r)),
		closer: closer,
	}
}

func (s *StreamBackend) Name() string    { return "stream" }
func (s *StreamBackend) Available() bool { return true }

func (s *StreamBackend) Forces(req barneshut.Request) (barneshut.Response, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.enc.Encode(&req); err != nil {
		return barneshut.Response{}, fmt.Errorf("send request: %w", err)
	}
	var resp barneshut.Response
	if err := s.dec.Decode(&resp); err != nil {
		return barneshut.Response{}, fmt.Errorf("read response: %w", err)
	}
	if resp.Error != "" {
		return resp, errors.New(resp.Error)
	}
	return resp, nil
}

func (s *StreamBackend) Cleanup() {
	if s.closer != nil {
		s.closer.Close()
	}
}
