package staging

import (
	"sync"

	"github.com/google/uuid"
)

const urlScheme = "blob:showcase/"

// URLRegistry hands out ephemeral preview URLs for staged content.
// Every URL returned by Create must eventually be passed to Revoke.
type URLRegistry interface {
	Create(contentType string, data []byte) string
	Revoke(url string)
}

type blob struct {
	contentType string
	data        []byte
}

// MemRegistry is an in-process URLRegistry. It keeps the previewed bytes until revoked.
type MemRegistry struct {
	mu        sync.RWMutex
	blobs     map[string]blob
	allocated int
	released  int
}

var _ URLRegistry = (*MemRegistry)(nil)

func NewMemRegistry() *MemRegistry {
	return &MemRegistry{blobs: make(map[string]blob)}
}

func (r *MemRegistry) Create(contentType string, data []byte) string {
	url := urlScheme + uuid.NewString()

	r.mu.Lock()
	defer r.mu.Unlock()
	r.blobs[url] = blob{contentType: contentType, data: data}
	r.allocated++
	return url
}

// Revoke releases url. Unknown or already revoked URLs are ignored.
func (r *MemRegistry) Revoke(url string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.blobs[url]; !ok {
		return
	}
	delete(r.blobs, url)
	r.released++
}

// Resolve returns the content behind a live URL.
func (r *MemRegistry) Resolve(url string) (contentType string, data []byte, ok bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	b, ok := r.blobs[url]
	return b.contentType, b.data, ok
}

// Stats returns how many URLs were allocated and released so far.
func (r *MemRegistry) Stats() (allocated, released int) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.allocated, r.released
}

// Live returns the number of URLs not revoked yet.
func (r *MemRegistry) Live() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.blobs)
}
