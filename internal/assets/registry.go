// Package assets maps logical cue identifiers to their audio sources.
package assets

import (
	"crypto/rand"
	"fmt"
	"strings"
	"time"

	"github.com/oklog/ulid/v2"
)

// CueType identifies a logical audio cue.
type CueType string

const (
	CueBell     CueType = "bell"
	CueBeep     CueType = "beep"
	CueWarning  CueType = "warning"
	CueAnnounce CueType = "announce"
)

// AllCues returns every known cue type in a stable order.
func AllCues() []CueType {
	return []CueType{CueBell, CueBeep, CueWarning, CueAnnounce}
}

// EssentialCues returns the minimal set loaded by the last-resort
// initialization path.
func EssentialCues() []CueType {
	return []CueType{CueBell, CueBeep}
}

// Valid reports whether c is a known cue type.
func (c CueType) Valid() bool {
	switch c {
	case CueBell, CueBeep, CueWarning, CueAnnounce:
		return true
	}
	return false
}

// ParseCue converts a user-supplied name to a CueType.
func ParseCue(s string) (CueType, error) {
	c := CueType(strings.ToLower(strings.TrimSpace(s)))
	if !c.Valid() {
		return "", fmt.Errorf("unknown cue type %q", s)
	}
	return c, nil
}

// Descriptor ties one cue to its remote source.
type Descriptor struct {
	Cue CueType
	URI string
}

// Registry resolves cue types to source URIs. The cache-bust token is
// minted once per registry so every engine construction forces
// revalidation of deployed assets.
type Registry struct {
	baseURL string
	ext     string
	token   string
	byCue   map[CueType]*Descriptor
}

// NewRegistry builds the cue table for the given base URL and file
// extension (without the leading dot).
func NewRegistry(baseURL, ext string) *Registry {
	token := newCacheBustToken()
	r := &Registry{
		baseURL: strings.TrimRight(baseURL, "/"),
		ext:     strings.TrimPrefix(ext, "."),
		token:   token,
		byCue:   make(map[CueType]*Descriptor, len(AllCues())),
	}
	for _, cue := range AllCues() {
		r.byCue[cue] = &Descriptor{
			Cue: cue,
			URI: fmt.Sprintf("%s/%s.%s?v=%s", r.baseURL, cue, r.ext, token),
		}
	}
	return r
}

// newCacheBustToken mints a ULID; monotonic-ish and unique per process run.
func newCacheBustToken() string {
	id, err := ulid.New(ulid.Timestamp(time.Now()), rand.Reader)
	if err != nil {
		// rand.Reader failing is effectively unreachable; fall back to
		// a timestamp-only token rather than panicking.
		return fmt.Sprintf("%d", time.Now().UnixNano())
	}
	return id.String()
}

// Token returns the cache-bust token minted for this registry.
func (r *Registry) Token() string { return r.token }

// Extension returns the asset file extension without the leading dot.
func (r *Registry) Extension() string { return r.ext }

// Lookup returns the descriptor for a cue, or nil if unknown.
func (r *Registry) Lookup(cue CueType) *Descriptor {
	return r.byCue[cue]
}

// URI returns the cache-busted source URI for a cue.
func (r *Registry) URI(cue CueType) string {
	if d := r.byCue[cue]; d != nil {
		return d.URI
	}
	return ""
}

// All returns every descriptor in cue order.
func (r *Registry) All() []*Descriptor {
	out := make([]*Descriptor, 0, len(r.byCue))
	for _, cue := range AllCues() {
		out = append(out, r.byCue[cue])
	}
	return out
}
