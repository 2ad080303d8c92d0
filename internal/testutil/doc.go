// SPDX-License-Identifier: MPL-2.0

// Package testutil provides test helpers: a Remote server that serves Lua
// entries over httptest, and Must* wrappers that fail the test on error.
package testutil
