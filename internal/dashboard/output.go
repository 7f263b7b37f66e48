package dashboard

import (
	"sync"

	"github.com/leapstack-labs/countymap/internal/choropleth"
)

// Snapshot is the state of the output surface after one trigger.
type Snapshot struct {
	// Version increases with every trigger.
	Version uint64
	Render  *choropleth.Render
	Err     error
}

// Output is the single slot holding the latest render. Every trigger clears
// it and replaces it with the new render or the error that stopped it.
type Output struct {
	mu        sync.RWMutex
	snap      Snapshot
	encoded   map[choropleth.Format][]byte
	listeners []func(Snapshot)
}

// NewOutput returns an empty output surface.
func NewOutput() *Output {
	return &Output{encoded: map[choropleth.Format][]byte{}}
}

// Current returns the latest snapshot.
func (o *Output) Current() Snapshot {
	o.mu.RLock()
	defer o.mu.RUnlock()
	return o.snap
}

// OnReplace registers fn to run after every replacement.
func (o *Output) OnReplace(fn func(Snapshot)) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.listeners = append(o.listeners, fn)
}

func (o *Output) replace(r *choropleth.Render, err error) Snapshot {
	o.mu.Lock()
	o.snap = Snapshot{Version: o.snap.Version + 1, Render: r, Err: err}
	o.encoded = map[choropleth.Format][]byte{}
	if r != nil {
		o.encoded[r.Format] = r.Image
	}
	snap := o.snap
	listeners := append([]func(Snapshot){}, o.listeners...)
	o.mu.Unlock()

	for _, fn := range listeners {
		fn(snap)
	}
	return snap
}

// encodedAs returns cached image bytes of the current render.
func (o *Output) encodedAs(version uint64, f choropleth.Format) ([]byte, bool) {
	o.mu.RLock()
	defer o.mu.RUnlock()
	if o.snap.Version != version {
		return nil, false
	}
	b, ok := o.encoded[f]
	return b, ok
}

func (o *Output) cache(version uint64, f choropleth.Format, b []byte) {
	o.mu.Lock()
	defer o.mu.Unlock()
	if o.snap.Version == version {
		o.encoded[f] = b
	}
}
