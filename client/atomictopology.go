package client

import "sync/atomic"

type atomicTopology struct {
	value atomic.Pointer[Topology]
}

func newAtomicTopology(initial *Topology) *atomicTopology {
	t := &atomicTopology{}
	t.value.Store(initial)
	return t
}

func (t *atomicTopology) Load() *Topology {
	return t.value.Load()
}

func (t *atomicTopology) Store(new *Topology) {
	t.value.Store(new)
}

func (t *atomicTopology) CompareAndSwap(old, new *Topology) bool {
	return t.value.CompareAndSwap(old, new)
}

// update runs the load, compute, compare-and-swap cycle until the swap wins.
// Each retry recomputes against the topology current at that moment.  A
// candidate that loses the race is discarded by closing the connections it
// created, which nothing else can reference yet.
func (t *atomicTopology) update(fn func(old *Topology) (*Topology, *topologyDiff, error)) (*Topology, *topologyDiff, error) {
	for {
		old := t.Load()

		new, diff, err := fn(old)
		if err != nil {
			return nil, nil, err
		}

		if t.CompareAndSwap(old, new) {
			return new, diff, nil
		}

		for _, conn := range diff.Created {
			_ = conn.Close()
		}
	}
}
