// Package docker provides Docker Engine API wrappers for the docker
// runtime of scoped-installer.
//
// This package handles:
//   - Docker client initialization with automatic socket detection
//     (Linux, macOS, Windows)
//   - Labels that mark the one-shot containers scoped-installer creates
//   - Running a single command in a throwaway container and returning its
//     exit status, with its output streamed to the caller
//   - Listing and removing containers left behind by interrupted runs
//
// The package uses github.com/docker/docker/client as the underlying
// Docker SDK, with version negotiation enabled for broad compatibility.
package docker
