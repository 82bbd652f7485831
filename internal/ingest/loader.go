package ingest

import (
	"bytes"
	_ "embed"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/google/uuid"
	"github.com/xeipuuv/gojsonschema"

	"github.com/airac/airac/pkg/types"
)

//go:embed parents.schema.json
var parentsSchema []byte

// ErrInvalidParents is returned when the parents file fails validation
var ErrInvalidParents = errors.New("invalid parents file")

var parentsSchemaLoader = gojsonschema.NewBytesLoader(parentsSchema)

type rawParent struct {
	ID     string `json:"parent_id"`
	Title  string `json:"title"`
	Source string `json:"source"`
	Text   string `json:"text"`
	Tables []any  `json:"tables"`
}

// LoadParents reads a JSON array of parent documents. Parents without an
// id get a fresh uuid; assigned reports whether any id was generated so
// the caller can persist them.
func LoadParents(path string) (parents []types.ParentDocument, assigned bool, err error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, false, fmt.Errorf("read parents: %w", err)
	}
	return ParseParents(data)
}

// ParseParents validates and decodes a parents document
func ParseParents(data []byte) ([]types.ParentDocument, bool, error) {
	result, err := gojsonschema.Validate(parentsSchemaLoader, gojsonschema.NewBytesLoader(data))
	if err != nil {
		return nil, false, fmt.Errorf("%w: %v", ErrInvalidParents, err)
	}
	if !result.Valid() {
		msgs := make([]string, 0, len(result.Errors()))
		for _, desc := range result.Errors() {
			msgs = append(msgs, fmt.Sprintf("%s: %s", desc.Field(), desc.Description()))
		}
		return nil, false, fmt.Errorf("%w: %s", ErrInvalidParents, strings.Join(msgs, "; "))
	}

	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()
	var raw []rawParent
	if err := dec.Decode(&raw); err != nil {
		return nil, false, fmt.Errorf("%w: %v", ErrInvalidParents, err)
	}

	assigned := false
	parents := make([]types.ParentDocument, 0, len(raw))
	for i, r := range raw {
		tables, err := types.DecodeTables(r.Tables)
		if err != nil {
			return nil, false, fmt.Errorf("%w: parent %d: %v", ErrInvalidParents, i, err)
		}
		if r.ID == "" {
			r.ID = uuid.NewString()
			assigned = true
		}
		parents = append(parents, types.ParentDocument{
			ID:     r.ID,
			Title:  r.Title,
			Source: r.Source,
			Text:   r.Text,
			Tables: tables,
		})
	}
	return parents, assigned, nil
}

// SaveParents writes parents back as indented JSON
func SaveParents(path string, parents []types.ParentDocument) error {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	enc.SetIndent("", "  ")
	if err := enc.Encode(parents); err != nil {
		return err
	}
	return os.WriteFile(path, buf.Bytes(), 0o644)
}
