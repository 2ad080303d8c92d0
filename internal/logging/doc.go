// SPDX-License-Identifier: MPL-2.0

// Package logging builds the structured loggers used across fedhost.
//
// Loggers are charmbracelet/log instances. They are created once by the CLI
// (or by a test), tagged with a component prefix, and handed to packages
// through options or through the request context. Packages never reach for
// a global logger; when none is supplied they fall back to a discarding one.
package logging
