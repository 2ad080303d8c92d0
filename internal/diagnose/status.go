// SPDX-License-Identifier: MPL-2.0

package diagnose

import (
	"bytes"
	"context"
	"fmt"
	"net/http"
	"net/url"
	"path"
	"strings"

	"golang.org/x/net/html"
)

// StatusReport summarizes whether a remote application is being served.
type StatusReport struct {
	EntryURL    string
	IndexURL    string
	EntryOK     bool
	EntryStatus int
	IndexOK     bool
	IndexStatus int
	// AppRunning is true when the remote's own index page is served.
	AppRunning bool
	// IndexScripts lists the script sources referenced by the index page.
	IndexScripts []string
	// IndexReferencesEntry is true when one of IndexScripts is the entry.
	IndexReferencesEntry bool
	Suggestions          []string
}

// CheckStatus checks the entry and the index page of the remote at base.
// base may be the remote's root or the entry URL itself.
func (i *Inspector) CheckStatus(ctx context.Context, base string) StatusReport {
	var r StatusReport
	r.EntryURL, r.IndexURL = i.deriveURLs(base)

	if resp, err := i.client.Do(ctx, http.MethodGet, r.EntryURL); err != nil {
		r.Suggestions = append(r.Suggestions, fmt.Sprintf("entry network error: %v", err))
	} else {
		r.EntryStatus = resp.Status
		r.EntryOK = ok(resp.Status)
		if !r.EntryOK {
			r.Suggestions = append(r.Suggestions, fmt.Sprintf("entry is not reachable (HTTP %d)", resp.Status))
		}
	}

	if resp, err := i.client.Do(ctx, http.MethodGet, r.IndexURL); err != nil {
		r.Suggestions = append(r.Suggestions, fmt.Sprintf("index page network error: %v", err))
	} else {
		r.IndexStatus = resp.Status
		r.IndexOK = ok(resp.Status)
		r.AppRunning = r.IndexOK
		if r.IndexOK {
			r.IndexScripts = scriptSources(resp.Body, r.IndexURL)
			for _, s := range r.IndexScripts {
				if s == r.EntryURL {
					r.IndexReferencesEntry = true
				}
			}
		} else {
			r.Suggestions = append(r.Suggestions, fmt.Sprintf("index page is not reachable (HTTP %d)", resp.Status))
		}
	}

	switch {
	case !r.EntryOK && !r.IndexOK:
		r.Suggestions = append(r.Suggestions,
			"the remote application may not be running:",
			"check that its dev server or container is started",
			"check the host and port in the entry URL",
			"check the reverse proxy configuration in front of it",
		)
	case !r.EntryOK:
		r.Suggestions = append(r.Suggestions,
			"the application is served but its entry is not:",
			"check the remote's federation build configuration",
			"check that the last build succeeded",
			"check the public path the entry is emitted under",
		)
	}
	return r
}

func (i *Inspector) deriveURLs(base string) (entry, index string) {
	trimmed := strings.TrimSuffix(base, "/")
	if ext := path.Ext(trimmed); ext == ".lua" || ext == ".js" {
		entry = trimmed
		index = trimmed[:strings.LastIndex(trimmed, "/")+1]
		return entry, index
	}
	return trimmed + "/" + i.entryFile, trimmed + "/"
}

// scriptSources returns the absolute src of every <script> in doc.
func scriptSources(doc []byte, pageURL string) []string {
	page, err := url.Parse(pageURL)
	if err != nil {
		return nil
	}
	root, err := html.Parse(bytes.NewReader(doc))
	if err != nil {
		return nil
	}
	var out []string
	var walk func(n *html.Node)
	walk = func(n *html.Node) {
		if n.Type == html.ElementNode && n.Data == "script" {
			for _, a := range n.Attr {
				if a.Key != "src" || a.Val == "" {
					continue
				}
				if u, err := url.Parse(a.Val); err == nil {
					out = append(out, page.ResolveReference(u).String())
				}
			}
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
	}
	walk(root)
	return out
}

func ok(status int) bool {
	return status >= 200 && status <= 299
}
