// SPDX-License-Identifier: MPL-2.0

// Package container discovers and tracks the containers that remotes publish.
//
// A remote entry, once executed, publishes a Container under a name chosen by
// its own build. The host never sees that write directly: names are looked up
// through the Globals interface, which the Lua runtime and the Go-side
// Namespace both implement. Registry.Find polls a candidate list until one
// resolves or the discovery timeout elapses.
//
// Containers are owned by the remote. The Registry only records, alongside
// each discovered instance, whether its init has completed, and guarantees
// that init reaches a given container at most once.
package container
