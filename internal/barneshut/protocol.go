package barneshut

import (
	"errors"
	"fmt"
)

const (
	RequestType  = "bh"
	ResponseType = "accel"
)

var (
	ErrRequestType = errors.New("barneshut: unexpected request type")
	ErrBufferSize  = errors.New("barneshut: mismatched buffer lengths")
)

// Sources is the column-major source set: position and mass per body.
type Sources struct {
	X []float64 `msgpack:"x" json:"x"`
	Y []float64 `msgpack:"y" json:"y"`
	M []float64 `msgpack:"m" json:"m"`
}

func (s Sources) Len() int { return len(s.M) }

// Targets holds the evaluation points.
type Targets struct {
	X []float64 `msgpack:"x" json:"x"`
	Y []float64 `msgpack:"y" json:"y"`
}

func (t Targets) Len() int { return len(t.X) }

// Request is the worker input message.
type Request struct {
	Type    string  `msgpack:"type" json:"type"`
	G       float64 `msgpack:"G" json:"G"`
	Theta   float64 `msgpack:"theta" json:"theta"`
	Sources Sources `msgpack:"sources" json:"sources"`
	Targets Targets `msgpack:"targets" json:"targets"`
	// MinDist is optional; zero disables the floor beyond the zero-separation guard.
	MinDist float64 `msgpack:"minDist,omitempty" json:"minDist,omitempty"`
}

// Response carries one acceleration and potential per target, in target order.
type Response struct {
	Type string    `msgpack:"type" json:"type"`
	AX   []float64 `msgpack:"ax" json:"ax"`
	AY   []float64 `msgpack:"ay" json:"ay"`
	Phi  []float64 `msgpack:"phi" json:"phi"`
	// Error is set by stream peers when the request could not be evaluated.
	Error string `msgpack:"error,omitempty" json:"error,omitempty"`
}

// Validate checks the message type and buffer shapes.
func (r *Request) Validate() error {
	if r.Type != RequestType {
		return fmt.Errorf("%w: %q", ErrRequestType, r.Type)
	}
	s := r.Sources
	if len(s.X) != len(s.M) || len(s.Y) != len(s.M) {
		return fmt.Errorf("%w: sources x=%d y=%d m=%d", ErrBufferSize, len(s.X), len(s.Y), len(s.M))
	}
	if len(r.Targets.X) != len(r.Targets.Y) {
		return fmt.Errorf("%w: targets x=%d y=%d", ErrBufferSize, len(r.Targets.X), len(r.Targets.Y))
	}
	return nil
}

func newResponse(n int) Response {
	return Response{
		Type: ResponseType,
		AX:   make([]float64, n),
		AY:   make([]float64, n),
		Phi:  make([]float64, n),
	}
}
