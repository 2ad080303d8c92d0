// SPDX-License-Identifier: MPL-2.0

package diagnose

import (
	"context"
	"fmt"
	"strings"

	"github.com/charmbracelet/glamour"
)

// Diagnosis combines a status check with an entry analysis.
type Diagnosis struct {
	Status StatusReport
	// Entry is nil when the entry was not reachable.
	Entry *EntryReport
	Fixes []string
}

// Diagnose checks the remote at base and, when its entry is reachable,
// analyzes it and lists likely fixes.
func (i *Inspector) Diagnose(ctx context.Context, base string) Diagnosis {
	d := Diagnosis{Status: i.CheckStatus(ctx, base)}
	if !d.Status.EntryOK {
		return d
	}
	entry := i.InspectEntry(ctx, d.Status.EntryURL)
	d.Entry = &entry

	if entry.ContainerName == "" {
		d.Fixes = append(d.Fixes,
			"check the container name the remote build publishes",
			"make sure the remote assigns its container to a global",
		)
	}
	if len(entry.DeclaredExports) == 0 {
		d.Fixes = append(d.Fixes,
			"check the remote's exposes configuration",
			"make sure at least one module is exposed",
		)
	}
	if !entry.HasInitFunction || !entry.HasGetFunction {
		d.Fixes = append(d.Fixes,
			"the container may not have been generated correctly",
			"check the remote's build tooling version and configuration",
		)
	}
	return d
}

// Markdown renders the diagnosis as Markdown.
func (d Diagnosis) Markdown() string {
	var b strings.Builder
	b.WriteString("# Remote diagnosis\n\n## Status\n\n")
	fmt.Fprintf(&b, "| Check | Result |\n|---|---|\n")
	fmt.Fprintf(&b, "| Entry `%s` | %s |\n", d.Status.EntryURL, mark(d.Status.EntryOK, d.Status.EntryStatus))
	fmt.Fprintf(&b, "| Index `%s` | %s |\n", d.Status.IndexURL, mark(d.Status.IndexOK, d.Status.IndexStatus))
	fmt.Fprintf(&b, "| Index loads entry | %s |\n", yesNo(d.Status.IndexReferencesEntry))
	writeList(&b, "Suggestions", d.Status.Suggestions)

	if d.Entry != nil {
		b.WriteString("\n")
		b.WriteString(d.Entry.markdownBody("##"))
	}
	writeList(&b, "Fixes", d.Fixes)
	return b.String()
}

// Render renders the diagnosis for a terminal using a glamour style
// ("auto", "dark", "light", "notty", ...).
func (d Diagnosis) Render(style string) (string, error) {
	return glamour.Render(d.Markdown(), style)
}

// Markdown renders the entry report as Markdown.
func (r EntryReport) Markdown() string {
	return "# Entry analysis\n\n" + r.markdownBody("")
}

func (r EntryReport) markdownBody(heading string) string {
	var b strings.Builder
	if heading != "" {
		fmt.Fprintf(&b, "%s Entry analysis\n\n", heading)
	}
	fmt.Fprintf(&b, "- URL: `%s`\n", r.URL)
	fmt.Fprintf(&b, "- Reachable: %s\n", mark(r.Reachable, r.Status))
	fmt.Fprintf(&b, "- Size: %d bytes\n", r.ByteLength)
	fmt.Fprintf(&b, "- Runtime markers: %s\n", yesNo(r.HasRuntimeMarkers))
	name := r.ContainerName
	if name == "" {
		name = "not found"
	}
	fmt.Fprintf(&b, "- Container name: %s\n", name)
	fmt.Fprintf(&b, "- init: %s, get: %s\n", yesNo(r.HasInitFunction), yesNo(r.HasGetFunction))
	fmt.Fprintf(&b, "- Looks like a module container: %s\n", yesNo(r.LooksLikeModuleContainer))
	exports := "none"
	if len(r.DeclaredExports) > 0 {
		exports = "`" + strings.Join(r.DeclaredExports, "`, `") + "`"
	}
	fmt.Fprintf(&b, "- Exposed: %s\n", exports)
	writeList(&b, "Issues", r.Issues)
	writeList(&b, "Warnings", r.Warnings)
	return b.String()
}

// Render renders the entry report with a glamour style.
func (r EntryReport) Render(style string) (string, error) {
	return glamour.Render(r.Markdown(), style)
}

func writeList(b *strings.Builder, title string, items []string) {
	if len(items) == 0 {
		return
	}
	fmt.Fprintf(b, "\n### %s\n\n", title)
	for _, it := range items {
		fmt.Fprintf(b, "- %s\n", it)
	}
}

func mark(ok bool, status int) string {
	switch {
	case ok:
		return fmt.Sprintf("ok (%d)", status)
	case status != 0:
		return fmt.Sprintf("failed (%d)", status)
	default:
		return "unreachable"
	}
}

func yesNo(b bool) string {
	if b {
		return "yes"
	}
	return "no"
}
