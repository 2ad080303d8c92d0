// SPDX-License-Identifier: MPL-2.0

// Package loader resolves remote descriptors into mountable exports.
//
// Loader.Resolve runs one attempt through a fixed sequence of phases:
// fetch the entry, discover the container it published, initialize the
// container with the process shared scope (once per container), get the
// exposed factory, invoke it, and extract the export. Any failing phase
// aborts the attempt with a *ResolveError naming the phase. The loader never
// falls back to another strategy on its own; callers inspect the error and
// call Resolve again with different options.
//
// A remote name is either loading or loaded, never both. A second Resolve for
// a name that is still loading fails with ErrAlreadyLoading; a Resolve for a
// name that already loaded returns the cached export.
package loader
