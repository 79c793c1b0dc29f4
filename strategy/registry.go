package strategy

import (
	"sync"
	"sync/atomic"

	"github.com/riptide/core/rerrors"
)

// snapshot is the registry's read-only, immutable state. Each
// registration replaces the whole snapshot atomically rather than
// mutating it in place, so in-flight readers never observe a partial
// update.
type snapshot struct {
	extractors map[string]Extractor
	chunkers   map[string]Chunker
}

// Registry resolves extractors and chunkers by name. Reads never
// block: a single atomic.Pointer load returns the current snapshot.
// Writes (RegisterExtractor/RegisterChunker) hold a lock only across
// the copy-and-swap, following the teacher's register/lookup pattern.
// There is no unregister or bulk-reload operation; a name is replaced
// by registering it again.
type Registry struct {
	mu   sync.Mutex
	curr atomic.Pointer[snapshot]
}

// NewRegistry returns an empty, ready-to-use Registry.
func NewRegistry() *Registry {
	r := &Registry{}
	r.curr.Store(&snapshot{extractors: map[string]Extractor{}, chunkers: map[string]Chunker{}})
	return r
}

// RegisterExtractor adds or replaces the extractor under name.
func (r *Registry) RegisterExtractor(name string, e Extractor) {
	r.mu.Lock()
	defer r.mu.Unlock()
	old := r.curr.Load()
	next := &snapshot{
		extractors: cloneExtractors(old.extractors),
		chunkers:   old.chunkers,
	}
	next.extractors[name] = e
	r.curr.Store(next)
}

// RegisterChunker adds or replaces the chunker under name.
func (r *Registry) RegisterChunker(name string, c Chunker) {
	r.mu.Lock()
	defer r.mu.Unlock()
	old := r.curr.Load()
	next := &snapshot{
		extractors: old.extractors,
		chunkers:   cloneChunkers(old.chunkers),
	}
	next.chunkers[name] = c
	r.curr.Store(next)
}

// Extractor resolves name to an Extractor. Unknown names fail with a
// descriptive rerrors.KindNotFound error.
func (r *Registry) Extractor(name string) (Extractor, error) {
	e, ok := r.curr.Load().extractors[name]
	if !ok {
		return nil, rerrors.New("strategy.Registry.Extractor", rerrors.KindNotFound, name, nil)
	}
	return e, nil
}

// Chunker resolves name to a Chunker. Unknown names fail with a
// descriptive rerrors.KindNotFound error.
func (r *Registry) Chunker(name string) (Chunker, error) {
	c, ok := r.curr.Load().chunkers[name]
	if !ok {
		return nil, rerrors.New("strategy.Registry.Chunker", rerrors.KindNotFound, name, nil)
	}
	return c, nil
}

// ExtractorNames lists every registered extractor name.
func (r *Registry) ExtractorNames() []string {
	snap := r.curr.Load()
	names := make([]string, 0, len(snap.extractors))
	for n := range snap.extractors {
		names = append(names, n)
	}
	return names
}

// ChunkerNames lists every registered chunker name.
func (r *Registry) ChunkerNames() []string {
	snap := r.curr.Load()
	names := make([]string, 0, len(snap.chunkers))
	for n := range snap.chunkers {
		names = append(names, n)
	}
	return names
}

func cloneExtractors(m map[string]Extractor) map[string]Extractor {
	out := make(map[string]Extractor, len(m)+1)
	for k, v := range m {
		out[k] = v
	}
	return out
}

func cloneChunkers(m map[string]Chunker) map[string]Chunker {
	out := make(map[string]Chunker, len(m)+1)
	for k, v := range m {
		out[k] = v
	}
	return out
}
