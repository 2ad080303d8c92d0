// SPDX-License-Identifier: MPL-2.0

// Package diagnose explains why a remote fails to load.
//
// Everything here is advisory: the Inspector fetches a remote's published
// entry and applies string heuristics (runtime markers, container-name and
// exposed-path patterns) to it. The loader never consults these results, and
// the heuristics may be wrong in both directions.
package diagnose
