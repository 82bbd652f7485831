package vectorindex

import (
	"context"
	"database/sql"
	"encoding/binary"
	"encoding/json"
	"fmt"
	"math"
	"sort"
)

// searchVector performs vector similarity search using cosine similarity.
// vectorSQL selects the sqlite-vec path.
func searchVector(ctx context.Context, db *sql.DB, vectorSQL bool, index string, queryVector []float32, limit int) ([]Match, error) {
	if limit <= 0 {
		return []Match{}, nil
	}
	if vectorSQL {
		return searchVectorOptimized(ctx, db, index, queryVector, limit)
	}
	return searchVectorFallback(ctx, db, index, queryVector, limit)
}

// searchVectorOptimized computes similarity inside SQLite with sqlite-vec
func searchVectorOptimized(ctx context.Context, db *sql.DB, index string, queryVector []float32, limit int) ([]Match, error) {
	queryVectorBlob := serializeVector(queryVector)

	// vec_distance_cosine returns distance, converted to similarity here
	query := `
		SELECT id, metadata, 1.0 - vec_distance_cosine(vector, ?) AS similarity
		FROM vectors
		WHERE index_name = ?
		ORDER BY similarity DESC
		LIMIT ?
	`
	rows, err := db.QueryContext(ctx, query, queryVectorBlob, index, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to execute vector search: %w", err)
	}
	defer func() { _ = rows.Close() }()

	matches := make([]Match, 0, limit)
	for rows.Next() {
		var m Match
		var metadata string
		if err := rows.Scan(&m.ID, &metadata, &m.Score); err != nil {
			return nil, fmt.Errorf("failed to scan result: %w", err)
		}
		if m.Metadata, err = decodeMetadata(metadata); err != nil {
			return nil, fmt.Errorf("vector %q: %w", m.ID, err)
		}
		matches = append(matches, m)
	}

	return matches, rows.Err()
}

// searchVectorFallback loads the index and ranks in Go
func searchVectorFallback(ctx context.Context, db *sql.DB, index string, queryVector []float32, limit int) ([]Match, error) {
	rows, err := db.QueryContext(ctx, `SELECT id, vector FROM vectors WHERE index_name = ?`, index)
	if err != nil {
		return nil, fmt.Errorf("failed to query vectors: %w", err)
	}

	candidates, err := computeSimilarityScores(rows, queryVector)
	_ = rows.Close()
	if err != nil {
		return nil, err
	}

	sortCandidates(candidates)
	if len(candidates) > limit {
		candidates = candidates[:limit]
	}

	// Metadata is fetched only for the winners
	matches := make([]Match, 0, len(candidates))
	for _, c := range candidates {
		var metadata string
		err := db.QueryRowContext(ctx,
			`SELECT metadata FROM vectors WHERE index_name = ? AND id = ?`, index, c.id).Scan(&metadata)
		if err != nil {
			return nil, fmt.Errorf("failed to load metadata for %q: %w", c.id, err)
		}
		md, err := decodeMetadata(metadata)
		if err != nil {
			return nil, fmt.Errorf("vector %q: %w", c.id, err)
		}
		matches = append(matches, Match{ID: c.id, Score: c.score, Metadata: md})
	}
	return matches, nil
}

// computeSimilarityScores processes rows and computes cosine similarity
func computeSimilarityScores(rows *sql.Rows, queryVector []float32) ([]candidate, error) {
	candidates := make([]candidate, 0, 256)

	for rows.Next() {
		var id string
		var vectorBlob []byte
		if err := rows.Scan(&id, &vectorBlob); err != nil {
			return nil, err
		}

		vector := deserializeVector(vectorBlob)
		if len(vector) != len(queryVector) {
			continue
		}

		candidates = append(candidates, candidate{id: id, score: cosineSimilarity(queryVector, vector)})
	}

	return candidates, rows.Err()
}

func encodeMetadata(md Metadata) (string, error) {
	if md == nil {
		return "{}", nil
	}
	data, err := json.Marshal(md)
	if err != nil {
		return "", fmt.Errorf("encode metadata: %w", err)
	}
	return string(data), nil
}

func decodeMetadata(s string) (Metadata, error) {
	md := Metadata{}
	if s == "" {
		return md, nil
	}
	if err := json.Unmarshal([]byte(s), &md); err != nil {
		return nil, fmt.Errorf("decode metadata: %w", err)
	}
	return md, nil
}

// serializeVector converts a float32 slice to a byte blob (little-endian)
func serializeVector(vector []float32) []byte {
	blob := make([]byte, len(vector)*4)
	for i, v := range vector {
		binary.LittleEndian.PutUint32(blob[i*4:], math.Float32bits(v))
	}
	return blob
}

// deserializeVector converts a byte blob back to a float32 slice
func deserializeVector(blob []byte) []float32 {
	vector := make([]float32, len(blob)/4)
	for i := range vector {
		bits := binary.LittleEndian.Uint32(blob[i*4:])
		vector[i] = math.Float32frombits(bits)
	}
	return vector
}

// CosineSimilarity computes the cosine similarity between two vectors.
// Zero vectors and length mismatches score 0.
func CosineSimilarity(a, b []float32) float64 {
	return cosineSimilarity(a, b)
}

func cosineSimilarity(a, b []float32) float64 {
	if len(a) != len(b) {
		return 0
	}

	var dotProduct, normA, normB float64
	for i := range a {
		dotProduct += float64(a[i]) * float64(b[i])
		normA += float64(a[i]) * float64(a[i])
		normB += float64(b[i]) * float64(b[i])
	}

	if normA == 0 || normB == 0 {
		return 0
	}

	return dotProduct / (math.Sqrt(normA) * math.Sqrt(normB))
}

// candidate represents a stored vector with its similarity score
type candidate struct {
	id    string
	score float64
}

// sortCandidates sorts by score descending, ties by id for stable output
func sortCandidates(candidates []candidate) {
	sort.Slice(candidates, func(i, j int) bool {
		if candidates[i].score != candidates[j].score {
			return candidates[i].score > candidates[j].score
		}
		return candidates[i].id < candidates[j].id
	})
}

// sortMatches orders matches by descending score
func sortMatches(matches []Match) {
	sort.SliceStable(matches, func(i, j int) bool {
		return matches[i].Score > matches[j].Score
	})
}
