// SPDX-License-Identifier: MPL-2.0

package diagnose

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"regexp"
	"strings"

	"github.com/charmbracelet/log"

	"fedhost/internal/fetch"
	"fedhost/internal/logging"
)

const (
	// DefaultEntryFile is appended to base URLs that do not name an entry.
	DefaultEntryFile = "remoteEntry.lua"

	minEntryLength = 100
)

var (
	runtimeMarkers    = []string{"__webpack_require__", "webpackChunk", "load_chunk"}
	federationMarkers = []string{"container", "federation", "init", "shared"}

	containerNamePatterns = []*regexp.Regexp{
		regexp.MustCompile(`(?m)^\s*(?:_G\.)?([A-Za-z_]\w*)\s*=\s*\{`),
		regexp.MustCompile(`_G\[["'](\w+)["']\]\s*=`),
		regexp.MustCompile(`var\s+(\w+)\s*[;=]`),
		regexp.MustCompile(`window\.(\w+)\s*=`),
		regexp.MustCompile(`globalThis\.(\w+)\s*=`),
		regexp.MustCompile(`"(\w+)":\s*\{[^}]*init`),
	}
	exposedPattern = regexp.MustCompile(`["'](\./[^"'\s]+)["']`)
	initPattern    = regexp.MustCompile(`\binit\b`)
	getPattern     = regexp.MustCompile(`\bget\b`)

	ignoredNames = map[string]bool{"__webpack_require__": true}
)

type (
	// Inspector runs diagnostics against remotes over HTTP.
	Inspector struct {
		client    *fetch.Client
		entryFile string
		logger    *log.Logger
	}

	// Option configures an Inspector.
	Option func(*Inspector)

	// EntryReport is the result of inspecting one entry resource.
	EntryReport struct {
		URL                      string
		Status                   int
		Reachable                bool
		ByteLength               int
		LooksLikeModuleContainer bool
		DeclaredExports          []string
		HasInitFunction          bool
		HasGetFunction           bool
		ContainerName            string
		HasRuntimeMarkers        bool
		Issues                   []string
		Warnings                 []string
	}
)

// WithEntryFile sets the entry file name CheckStatus appends to base URLs.
func WithEntryFile(name string) Option {
	return func(i *Inspector) {
		if name != "" {
			i.entryFile = name
		}
	}
}

// WithLogger sets the inspector logger.
func WithLogger(l *log.Logger) Option {
	return func(i *Inspector) {
		i.logger = logging.Component(l, "diagnose")
	}
}

// NewInspector creates an Inspector using client.
func NewInspector(client *fetch.Client, opts ...Option) *Inspector {
	i := &Inspector{client: client, entryFile: DefaultEntryFile, logger: logging.Discard()}
	for _, opt := range opts {
		opt(i)
	}
	return i
}

// InspectEntry fetches url and analyzes its content. Failures are reported
// in the returned report, never as an error.
func (i *Inspector) InspectEntry(ctx context.Context, url string) EntryReport {
	i.logger.Debug("inspecting entry", "url", url)
	resp, err := i.client.Do(ctx, http.MethodGet, url)
	if err != nil {
		report := EntryReport{URL: url}
		var ff *fetch.FetchFailedError
		if errors.As(err, &ff) && ff.Cause != nil {
			report.Issues = append(report.Issues, ff.Cause.Error())
		} else {
			report.Issues = append(report.Issues, err.Error())
		}
		return report
	}
	return Analyze(url, resp.Status, resp.Body)
}

// Analyze applies the entry heuristics to an already fetched response.
func Analyze(url string, status int, body []byte) EntryReport {
	r := EntryReport{URL: url, Status: status}
	if status < 200 || status > 299 {
		r.Issues = append(r.Issues, fmt.Sprintf("HTTP %d: %s", status, http.StatusText(status)))
		return r
	}
	r.Reachable = true

	content := string(body)
	r.ByteLength = len(body)
	if r.ByteLength < minEntryLength {
		r.Issues = append(r.Issues, fmt.Sprintf("content is only %d bytes; this is probably not a remote entry", r.ByteLength))
		return r
	}

	r.HasRuntimeMarkers = containsAny(content, runtimeMarkers)
	if !r.HasRuntimeMarkers {
		r.Warnings = append(r.Warnings, "no runtime markers found")
	}
	federation := containsAny(content, federationMarkers)
	if !federation {
		r.Warnings = append(r.Warnings, "no module federation markers found")
	}

	r.ContainerName = containerName(content)
	hasFunctions := strings.Contains(content, "function") || strings.Contains(content, "=>")
	r.HasInitFunction = hasFunctions && initPattern.MatchString(content)
	r.HasGetFunction = hasFunctions && getPattern.MatchString(content)
	r.DeclaredExports = exposedPaths(content)

	r.LooksLikeModuleContainer = r.HasInitFunction && r.HasGetFunction && (r.ContainerName != "" || federation)

	if r.ContainerName == "" {
		r.Issues = append(r.Issues, "no container name found")
	}
	if !r.HasInitFunction || !r.HasGetFunction {
		r.Issues = append(r.Issues, "container init/get functions not found")
	}
	if len(r.DeclaredExports) == 0 {
		r.Warnings = append(r.Warnings, "no exposed paths found")
	}
	return r
}

func containerName(content string) string {
	for _, re := range containerNamePatterns {
		for _, m := range re.FindAllStringSubmatch(content, -1) {
			name := m[1]
			if len(name) > 2 && !ignoredNames[name] {
				return name
			}
		}
	}
	return ""
}

func exposedPaths(content string) []string {
	seen := make(map[string]bool)
	var out []string
	for _, m := range exposedPattern.FindAllStringSubmatch(content, -1) {
		if !seen[m[1]] {
			seen[m[1]] = true
			out = append(out, m[1])
		}
	}
	return out
}

func containsAny(s string, subs []string) bool {
	for _, sub := range subs {
		if strings.Contains(s, sub) {
			return true
		}
	}
	return false
}
