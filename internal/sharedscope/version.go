// SPDX-License-Identifier: MPL-2.0

package sharedscope

import (
	"errors"
	"fmt"
	"strings"

	"golang.org/x/mod/semver"
)

// ErrInvalidRange is returned for version ranges that cannot be parsed.
var ErrInvalidRange = errors.New("invalid version range")

type (
	comparator struct {
		op      string
		version string
	}

	versionRange []comparator
)

// Satisfies reports whether version matches rng. Supported forms are the
// npm-style subset used by shared library declarations: "", "*", "1.2.3",
// "=1.2.3", "^1.2.3", "~1.2.3", ">=1.2.3", ">1.2.3", "<=1.2.3", "<1.2.3",
// and space-separated conjunctions of those.
func Satisfies(version, rng string) (bool, error) {
	return satisfies(version, rng)
}

func satisfies(version, rng string) (bool, error) {
	if !validVersion(version) {
		return false, fmt.Errorf("%w: version %q", ErrInvalidRange, version)
	}
	r, err := parseRange(rng)
	if err != nil {
		return false, err
	}
	v := canonical(version)
	for _, c := range r {
		if !c.match(v) {
			return false, nil
		}
	}
	return true, nil
}

func parseRange(rng string) (versionRange, error) {
	rng = strings.TrimSpace(rng)
	if rng == "" || rng == "*" || rng == "x" {
		return nil, nil
	}
	var out versionRange
	for _, field := range strings.Fields(rng) {
		op := ""
		for _, prefix := range []string{">=", "<=", ">", "<", "=", "^", "~"} {
			if strings.HasPrefix(field, prefix) {
				op = prefix
				break
			}
		}
		raw := strings.TrimPrefix(field, op)
		if !validVersion(raw) {
			return nil, fmt.Errorf("%w: %q", ErrInvalidRange, rng)
		}
		if op == "" {
			op = "="
		}
		out = append(out, comparator{op: op, version: canonical(raw)})
	}
	return out, nil
}

func (c comparator) match(v string) bool {
	cmp := semver.Compare(v, c.version)
	switch c.op {
	case "=":
		return cmp == 0
	case ">":
		return cmp > 0
	case ">=":
		return cmp >= 0
	case "<":
		return cmp < 0
	case "<=":
		return cmp <= 0
	case "^":
		if cmp < 0 {
			return false
		}
		if semver.Major(c.version) == "v0" {
			return semver.MajorMinor(v) == semver.MajorMinor(c.version)
		}
		return semver.Major(v) == semver.Major(c.version)
	case "~":
		return cmp >= 0 && semver.MajorMinor(v) == semver.MajorMinor(c.version)
	default:
		return false
	}
}

func validVersion(v string) bool {
	return v != "" && semver.IsValid(canonical(v))
}

func canonical(v string) string {
	v = strings.TrimSpace(v)
	if !strings.HasPrefix(v, "v") {
		v = "v" + v
	}
	return semver.Canonical(v)
}

func compareVersions(a, b string) int {
	return semver.Compare(canonical(a), canonical(b))
}
