// Package compute evaluates gravitational fields for many targets.
//
// Backends answer a barneshut.Request synchronously:
//
//   - cpu: direct pairwise sum fanned out over all cores
//   - tree: Barnes–Hut quadtree, walked in parallel
//   - gonum: gonum's spatial/barneshut plane, acceleration only
//   - stream: a msgpack peer, usually a `gravsim worker` subprocess
//
// A Worker runs a backend on its own goroutine with at most one request in
// flight. The simulation submits without blocking and polls for the
// response on a later tick:
//
//	w := compute.NewWorker(compute.NewTreeBackend())
//	defer w.Close()
//	w.Submit(req)
//	// ... next tick
//	if res, ok := w.Poll(); ok { apply(res.Response) }
package compute
