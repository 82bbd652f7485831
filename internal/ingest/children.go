package ingest

import (
	"fmt"
	"sort"
	"strings"

	"github.com/google/uuid"

	"github.com/airac/airac/pkg/types"
)

// BuildChildren derives the embeddable children of each parent: one text
// chunk per split of the prose and one table chunk per table row. Every
// child text is prefixed with the parent title. Child ids are name-based
// uuids, so re-ingesting an unchanged parent overwrites its children.
func BuildChildren(parents []types.ParentDocument, splitter *Splitter) []types.ChildChunk {
	var children []types.ChildChunk
	for _, p := range parents {
		if p.Text != "" {
			for n, chunk := range splitter.Split(p.Text) {
				text := fmt.Sprintf("%s | %s", p.Title, chunk)
				children = append(children, types.ChildChunk{
					ChildID:      childID(p.ID, types.ChunkText, n, text),
					ParentID:     p.ID,
					ParentSource: p.Source,
					ParentTitle:  p.Title,
					ChunkType:    types.ChunkText,
					Text:         text,
					OriginalData: chunk,
				})
			}
		}
		for n, row := range p.Tables {
			text := fmt.Sprintf("%s | %s", p.Title, RowText(row))
			children = append(children, types.ChildChunk{
				ChildID:      childID(p.ID, types.ChunkTable, n, text),
				ParentID:     p.ID,
				ParentSource: p.Source,
				ParentTitle:  p.Title,
				ChunkType:    types.ChunkTable,
				Text:         text,
				OriginalData: row,
			})
		}
	}
	return children
}

// RowText renders a table row as "key"="value" pairs joined by ';', keys
// in sorted order
func RowText(row types.TableRow) string {
	keys := make([]string, 0, len(row))
	for k := range row {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	parts := make([]string, 0, len(keys))
	for _, k := range keys {
		parts = append(parts, fmt.Sprintf(`"%s"="%s"`, k, row[k]))
	}
	return strings.Join(parts, ";")
}

func childID(parentID string, kind types.ChunkType, n int, text string) string {
	name := fmt.Sprintf("%s/%s/%d/%s", parentID, kind, n, text)
	return uuid.NewSHA1(uuid.NameSpaceOID, []byte(name)).String()
}
