package helios

import (
	"sync"

	"github.com/pkg/errors"

	"github.com/iaslab-padova/depthcam/gensdk"
)

// The vendor SDK frees devices at the process level, not per handle. The
// registry counts live cameras per SDK system so only the last Close
// actually releases it, and an extra release is reported instead of
// reaching the SDK twice.
type systemRegistry struct {
	mu   sync.Mutex
	refs map[gensdk.System]int
}

var registry = &systemRegistry{refs: map[gensdk.System]int{}}

func (r *systemRegistry) acquire(sys gensdk.System) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.refs[sys]++
}

func (r *systemRegistry) release(sys gensdk.System) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	n, ok := r.refs[sys]
	if !ok || n == 0 {
		return errors.New("device registry already released")
	}
	if n > 1 {
		r.refs[sys] = n - 1
		return nil
	}
	delete(r.refs, sys)
	return sys.Release()
}
