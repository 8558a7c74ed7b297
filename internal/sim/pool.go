package sim

import "sync"

// bufferPool recycles the float buffers handed to the force worker.
type bufferPool struct {
	pool sync.Pool
}

func newBufferPool() *bufferPool {
	return &bufferPool{
		pool: sync.Pool{
			New: func() interface{} {
				s := make([]float64, 0, 256)
				return &s
			},
		},
	}
}

// Get returns a zeroed buffer of length n.
func (p *bufferPool) Get(n int) []float64 {
	s := *(p.pool.Get().(*[]float64))
	if cap(s) < n {
		s = make([]float64, n)
	}
	s = s[:n]
	clear(s)
	return s
}

func (p *bufferPool) Put(bufs ...[]float64) {
	for _, s := range bufs {
		if cap(s) == 0 {
			continue
		}
		s = s[:0]
		p.pool.Put(&s)
	}
}
