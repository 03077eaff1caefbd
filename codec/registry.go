package codec

import "sync"

// Registry maps a format tag (the storage-side source format, e.g. "jp2")
// to the Decoder that handles it. Modeled on the teacher's
// core.DefaultRegistry (core/registry.go), generalized from Format/Format
// decoder+encoder pairs to a single decode-side lookup since this server
// has exactly one encode target family (selected by the IIIF URL, not the
// source format).
type Registry struct {
	mu       sync.RWMutex
	decoders map[string]Decoder
}

// NewRegistry creates an empty Registry.
func NewRegistry() *Registry {
	return &Registry{decoders: make(map[string]Decoder)}
}

// Register associates format with d, overwriting any previous entry.
func (r *Registry) Register(format string, d Decoder) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.decoders[format] = d
}

// DecoderFor returns the Decoder registered for format, if any.
func (r *Registry) DecoderFor(format string) (Decoder, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	d, ok := r.decoders[format]
	return d, ok
}
