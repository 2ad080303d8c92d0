// SPDX-License-Identifier: MPL-2.0

// Package sharedscope holds the process-wide registry of libraries shared
// between the host and every remote it loads.
//
// A Scope maps a library name to one or more provided versions. Remotes
// receive the scope when their container is initialized and may both consume
// libraries from it and provide their own. The first provider of a given
// name and version wins; later registrations of the same pair are ignored so
// that instances already handed out are never orphaned.
//
// A Holder owns the single Scope of a process. Ensure creates it lazily and
// returns the same instance on every call; Adopt lets a host install a
// pre-populated scope, but only before anything else has created one.
package sharedscope
