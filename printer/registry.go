package printer

import (
	"fmt"
	"strings"
	"sync"
)

// Registry holds the process-wide set of printer objects, keyed by
// resource path. Generalized from ippsrv.basicIPPServer's
// map[string]Printer, with insertion order preserved since discovery
// and the admin status page both want a stable iteration order here.
type Registry struct {
	mu   sync.RWMutex
	byID map[string]*Printer
	keys []string
}

// NewRegistry creates an empty printer registry.
func NewRegistry() *Registry {
	return &Registry{byID: make(map[string]*Printer)}
}

// Add registers a printer under its resource name. Returns an error
// if the name is already taken.
func (r *Registry) Add(p *Printer) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.byID[p.Name]; ok {
		return fmt.Errorf("printer %q already registered", p.Name)
	}
	r.byID[p.Name] = p
	r.keys = append(r.keys, p.Name)
	return nil
}

// Get looks a printer up by its resource name.
func (r *Registry) Get(name string) (*Printer, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	p, ok := r.byID[name]
	return p, ok
}

// All returns every printer in registration order.
func (r *Registry) All() []*Printer {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]*Printer, 0, len(r.keys))
	for _, k := range r.keys {
		out = append(out, r.byID[k])
	}
	return out
}

// FromURIPath resolves a request URI path (e.g. "/ipp/print/p1" or
// "/ipp/print/p1/42") to the printer whose resource name is a prefix
// of it "Workers look up the target printer by
// parsing the request URI path." basePrefix is the server's IPP path
// prefix (e.g. "/ipp").
func (r *Registry) FromURIPath(basePrefix, path string) (*Printer, bool) {
	path = strings.TrimPrefix(path, basePrefix)
	path = strings.TrimPrefix(path, "/")

	r.mu.RLock()
	defer r.mu.RUnlock()
	var best *Printer
	for _, k := range r.keys {
		if path == k || strings.HasPrefix(path, k+"/") {
			if best == nil || len(k) > len(best.Name) {
				best = r.byID[k]
			}
		}
	}
	if best == nil {
		return nil, false
	}
	return best, true
}
