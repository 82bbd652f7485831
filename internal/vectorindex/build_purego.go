//go:build purego || !sqlite_vec
// +build purego !sqlite_vec

package vectorindex

// This file is compiled when building without CGO or with the purego tag.
// Cosine similarity is computed in Go over the stored vectors, which is
// fine for a local knowledge base of a few thousand children.
//
// Build command:
//   CGO_ENABLED=0 go build -tags "purego" ./...
//
// Driver used: modernc.org/sqlite

import (
	_ "modernc.org/sqlite"
)

const (
	// DriverName is the SQLite driver to use
	DriverName = "sqlite"

	// VectorExtensionAvailable indicates if vector extension is available
	VectorExtensionAvailable = false

	// BuildMode describes the current build configuration
	BuildMode = "purego"
)
