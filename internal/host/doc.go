// SPDX-License-Identifier: MPL-2.0

// Package host assembles a loader from configuration.
//
// A Host owns one script environment, one document, one HTTP client and the
// loader built on top of them. Remotes are resolved by the names they carry
// in the configuration. SmartLoad retries a remote with the fetch_eval
// strategy when the script_tag attempt could not fetch the entry or find its
// container.
package host
