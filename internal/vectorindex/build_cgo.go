//go:build sqlite_vec
// +build sqlite_vec

package vectorindex

// This file is compiled when building with CGO and the sqlite_vec tag.
// The sqlite-vec extension is compiled in and registered for every new
// connection, and similarity is computed inside SQLite with
// vec_distance_cosine.
//
// Build command:
//   CGO_ENABLED=1 go build -tags "sqlite_vec" ./...
//
// Driver used: github.com/mattn/go-sqlite3

import (
	vec "github.com/asg017/sqlite-vec-go-bindings/cgo"
	_ "github.com/mattn/go-sqlite3"
)

const (
	// DriverName is the SQLite driver to use
	DriverName = "sqlite3"

	// VectorExtensionAvailable indicates if vector extension is available
	VectorExtensionAvailable = true

	// BuildMode describes the current build configuration
	BuildMode = "cgo"
)

func init() {
	vec.Auto()
}
