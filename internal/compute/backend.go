package compute

import (
	"errors"
	"fmt"
	"sort"

	"github.com/san-kum/gravsim/internal/barneshut"
)

var ErrUnknownBackend = errors.New("compute: unknown backend")

type Backend interface {
	Name() string
	Available() bool
	// Forces evaluates the request. Buffers in req are owned by the
	// backend for the duration of the call.
	Forces(req barneshut.Request) (barneshut.Response, error)
	Cleanup()
}

var constructors = map[string]func() Backend{
	"cpu":   func() Backend { return NewCPUBackend() },
	"tree":  func() Backend { return NewTreeBackend() },
	"gonum": func() Backend { return NewGonumBackend() },
}

// ByName returns a fresh in-process backend.
func ByName(name string) (Backend, error) {
	ctor, ok := constructors[name]
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnknownBackend, name)
	}
	return ctor(), nil
}

// Names lists the in-process backends.
func Names() []string {
	names := make([]string, 0, len(constructors))
	for n := range constructors {
		names = append(names, n)
	}
	sort.Strings(names)
	return names
}
