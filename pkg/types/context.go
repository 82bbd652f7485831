package types

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strings"
)

// Metadata keys shared by the cache index and the document index.
const (
	MetaParentText   = "parent_text"
	MetaParentTables = "parent_tables"
)

// TableRow is one row of a parent table, column name to cell value.
type TableRow map[string]string

// ParentContext is the grounding material handed to the generator:
// the parent prose plus its table rows.
type ParentContext struct {
	Text   string
	Tables []TableRow
}

// IsEmpty reports whether there is nothing to ground an answer on.
func (pc ParentContext) IsEmpty() bool {
	return strings.TrimSpace(pc.Text) == "" && len(pc.Tables) == 0
}

// TablesJSON renders the rows as a JSON array. Empty tables render as "[]".
// HTML characters are kept as-is so prompts read naturally.
func (pc ParentContext) TablesJSON() string {
	return EncodeTables(pc.Tables)
}

// Metadata returns the index metadata form of the context, with tables
// stored as a JSON string.
func (pc ParentContext) Metadata() map[string]any {
	return map[string]any{
		MetaParentText:   pc.Text,
		MetaParentTables: pc.TablesJSON(),
	}
}

// EncodeTables renders rows as compact JSON without HTML escaping.
func EncodeTables(rows []TableRow) string {
	if len(rows) == 0 {
		return "[]"
	}
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	if err := enc.Encode(rows); err != nil {
		return "[]"
	}
	return strings.TrimRight(buf.String(), "\n")
}

// ContextFromMetadata decodes index metadata into a ParentContext.
// parent_tables may be a JSON string or an already decoded list.
// Missing keys decode to zero values.
func ContextFromMetadata(md map[string]any) (ParentContext, error) {
	var pc ParentContext
	if md == nil {
		return pc, nil
	}

	if raw, ok := md[MetaParentText]; ok && raw != nil {
		text, ok := raw.(string)
		if !ok {
			return ParentContext{}, fmt.Errorf("%w: %s is %T", ErrMalformedMetadata, MetaParentText, raw)
		}
		pc.Text = text
	}

	if raw, ok := md[MetaParentTables]; ok && raw != nil {
		tables, err := DecodeTables(raw)
		if err != nil {
			return ParentContext{}, err
		}
		pc.Tables = tables
	}

	return pc, nil
}

// DecodeTables accepts the stored forms of parent_tables: a JSON string,
// a []any of objects or a []map[string]any. Non-string cells are stringified.
func DecodeTables(raw any) ([]TableRow, error) {
	switch v := raw.(type) {
	case string:
		if strings.TrimSpace(v) == "" {
			return nil, nil
		}
		dec := json.NewDecoder(strings.NewReader(v))
		dec.UseNumber()
		var rows []any
		if err := dec.Decode(&rows); err != nil {
			return nil, fmt.Errorf("%w: %s: %v", ErrMalformedMetadata, MetaParentTables, err)
		}
		return rowsFromList(rows)
	case []any:
		return rowsFromList(v)
	case []map[string]any:
		rows := make([]TableRow, 0, len(v))
		for _, m := range v {
			rows = append(rows, rowFromMap(m))
		}
		return rows, nil
	case []TableRow:
		return v, nil
	default:
		return nil, fmt.Errorf("%w: %s is %T", ErrMalformedMetadata, MetaParentTables, raw)
	}
}

func rowsFromList(list []any) ([]TableRow, error) {
	rows := make([]TableRow, 0, len(list))
	for i, item := range list {
		m, ok := item.(map[string]any)
		if !ok {
			return nil, fmt.Errorf("%w: %s row %d is %T", ErrMalformedMetadata, MetaParentTables, i, item)
		}
		rows = append(rows, rowFromMap(m))
	}
	return rows, nil
}

func rowFromMap(m map[string]any) TableRow {
	row := make(TableRow, len(m))
	for k, v := range m {
		switch cell := v.(type) {
		case nil:
			row[k] = ""
		case string:
			row[k] = cell
		default:
			row[k] = fmt.Sprint(cell)
		}
	}
	return row
}
