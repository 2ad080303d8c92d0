// SPDX-License-Identifier: MPL-2.0

package fetch

import (
	"sort"
	"sync"
)

const (
	// ElementLoading means the script is being retrieved or executed.
	ElementLoading ElementState = iota
	// ElementLoaded means the script executed successfully.
	ElementLoaded
	// ElementFailed means the script could not be loaded. Failed elements
	// are removed from the document.
	ElementFailed
)

type (
	// ElementState is the lifecycle state of a script element.
	ElementState int

	// Document records the scripts loaded into the runtime, keyed by exact URL.
	Document struct {
		mu       sync.Mutex
		elements map[string]*Element
	}

	// Element is one script in a Document.
	Element struct {
		URL string

		state ElementState
		err   error
		done  chan struct{}
	}
)

func (s ElementState) String() string {
	switch s {
	case ElementLoading:
		return "loading"
	case ElementLoaded:
		return "loaded"
	case ElementFailed:
		return "failed"
	default:
		return "unknown"
	}
}

// NewDocument returns an empty document.
func NewDocument() *Document {
	return &Document{elements: make(map[string]*Element)}
}

// State returns the state of the element for url.
func (d *Document) State(url string) (ElementState, bool) {
	d.mu.Lock()
	defer d.mu.Unlock()
	el, ok := d.elements[url]
	if !ok {
		return 0, false
	}
	return el.state, true
}

// Loaded reports whether url loaded successfully.
func (d *Document) Loaded(url string) bool {
	st, ok := d.State(url)
	return ok && st == ElementLoaded
}

// Scripts returns the URLs of every element present, sorted.
func (d *Document) Scripts() []string {
	d.mu.Lock()
	defer d.mu.Unlock()
	out := make([]string, 0, len(d.elements))
	for u := range d.elements {
		out = append(out, u)
	}
	sort.Strings(out)
	return out
}

// Remove drops the element for url so that a later fetch loads it again.
func (d *Document) Remove(url string) {
	d.mu.Lock()
	defer d.mu.Unlock()
	delete(d.elements, url)
}

func (d *Document) element(url string) *Element {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.elements[url]
}

// insert returns the element for url, creating it in the loading state when
// absent. created reports whether the caller owns the new element.
func (d *Document) insert(url string) (el *Element, created bool) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if el, ok := d.elements[url]; ok {
		return el, false
	}
	el = &Element{URL: url, state: ElementLoading, done: make(chan struct{})}
	d.elements[url] = el
	return el, true
}

// markLoaded records url as loaded without an asynchronous load.
func (d *Document) markLoaded(url string) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if el, ok := d.elements[url]; ok && el.state == ElementLoaded {
		return
	}
	done := make(chan struct{})
	close(done)
	d.elements[url] = &Element{URL: url, state: ElementLoaded, done: done}
}

func (d *Document) complete(el *Element, err error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if err != nil {
		el.state, el.err = ElementFailed, err
		if d.elements[el.URL] == el {
			delete(d.elements, el.URL)
		}
	} else {
		el.state = ElementLoaded
	}
	close(el.done)
}
