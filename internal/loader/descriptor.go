// SPDX-License-Identifier: MPL-2.0

package loader

import (
	"fmt"
	"net/url"
	"slices"
	"strings"
)

// Descriptor identifies a remote and the export to resolve from it.
// The zero value is invalid; use NewDescriptor.
type Descriptor struct {
	name        string
	entryURL    string
	exposedPath string
	candidates  []string
}

// NewDescriptor validates and builds a Descriptor. candidates lists extra
// global names the remote may publish its container under, tried after name.
func NewDescriptor(name, entryURL, exposedPath string, candidates ...string) (Descriptor, error) {
	name = strings.TrimSpace(name)
	if name == "" || strings.ContainsAny(name, " \t\n") {
		return Descriptor{}, fmt.Errorf("%w: name %q", ErrInvalidDescriptor, name)
	}
	u, err := url.Parse(entryURL)
	if err != nil || !u.IsAbs() || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return Descriptor{}, fmt.Errorf("%w: %s: entry URL %q must be an absolute http(s) URL", ErrInvalidDescriptor, name, entryURL)
	}
	if strings.TrimSpace(exposedPath) == "" {
		return Descriptor{}, fmt.Errorf("%w: %s: empty exposed path", ErrInvalidDescriptor, name)
	}
	var extra []string
	for _, c := range candidates {
		if c = strings.TrimSpace(c); c != "" {
			extra = append(extra, c)
		}
	}
	return Descriptor{
		name:        name,
		entryURL:    entryURL,
		exposedPath: exposedPath,
		candidates:  extra,
	}, nil
}

// Name returns the host-assigned remote name.
func (d Descriptor) Name() string { return d.name }

// EntryURL returns the absolute URL of the remote entry.
func (d Descriptor) EntryURL() string { return d.entryURL }

// ExposedPath returns the path of the export to resolve.
func (d Descriptor) ExposedPath() string { return d.exposedPath }

// Candidates returns the extra container names declared for the remote.
func (d Descriptor) Candidates() []string { return slices.Clone(d.candidates) }

// IsZero reports whether d was not built by NewDescriptor.
func (d Descriptor) IsZero() bool { return d.name == "" }

func (d Descriptor) String() string {
	return fmt.Sprintf("%s@%s (%s)", d.name, d.entryURL, d.exposedPath)
}

// candidateNames returns the discovery order: the remote's own name, its
// declared candidates, then the loader fallbacks, without duplicates.
func (d Descriptor) candidateNames(fallbacks []string) []string {
	seen := make(map[string]bool)
	var out []string
	for _, group := range [][]string{{d.name}, d.candidates, fallbacks} {
		for _, n := range group {
			if n != "" && !seen[n] {
				seen[n] = true
				out = append(out, n)
			}
		}
	}
	return out
}
