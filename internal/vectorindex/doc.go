// Package vectorindex stores embeddings and answers nearest-neighbour queries.
//
// Two backends implement Index:
//
//   - PineconeIndex wraps the official go-pinecone client. The control
//     plane lists and creates indexes; the data plane connection is opened
//     against the index host on first use and cached.
//   - SQLiteIndex keeps vectors in a local SQLite file. One SQLiteStore can
//     hold several named indexes (documents and the semantic cache).
//
// Both create the index lazily: the first Ensure, Upsert or Query checks
// whether the named index exists and creates it with the configured
// dimension and cosine metric when it does not.
//
// # Build Modes
//
// The SQLite backend supports two build modes:
//
//	CGO_ENABLED=1 go build -tags "sqlite_vec" ./...   # mattn/go-sqlite3 + sqlite-vec, SQL-side similarity
//	CGO_ENABLED=0 go build -tags "purego" ./...       # modernc.org/sqlite, Go-side similarity
//
// The store checks vec_version() when it opens and ranks in Go whenever the
// extension is not loaded.
//
// # Usage
//
//	store, err := vectorindex.NewSQLiteStore("airac.db")
//	if err != nil {
//	    return err
//	}
//	defer store.Close()
//
//	docs, err := store.Index(vectorindex.Spec{Name: "facility-docs", Dimension: 1024})
//	matches, err := docs.Query(ctx, vectorindex.QueryRequest{
//	    Vector:          queryVector,
//	    TopK:            1,
//	    IncludeMetadata: true,
//	})
package vectorindex
