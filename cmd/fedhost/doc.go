// SPDX-License-Identifier: MPL-2.0

// Package cmd contains the fedhost CLI commands.
//
// Commands receive an *App, which carries the configuration provider, the
// host factory and the output writers, so tests can run the command tree
// against httptest remotes without touching the process environment.
package cmd
