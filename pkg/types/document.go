package types

// ChunkType identifies how a child chunk was derived from its parent
type ChunkType string

const (
	ChunkText  ChunkType = "text_chunk"
	ChunkTable ChunkType = "table_chunk"
)

// ParentDocument is one knowledge base entry: a titled section of prose
// with optional table rows. Children are embedded, parents are returned.
type ParentDocument struct {
	ID     string     `json:"parent_id"`
	Text   string     `json:"text"`
	Tables []TableRow `json:"tables"`
	Source string     `json:"source"`
	Title  string     `json:"title"`
}

// Context returns the grounding material carried by the parent
func (p *ParentDocument) Context() ParentContext {
	return ParentContext{Text: p.Text, Tables: p.Tables}
}

// Validate checks if the parent document is valid
func (p *ParentDocument) Validate() error {
	if p.ID == "" {
		return ErrMissingParentID
	}
	if p.Text == "" && len(p.Tables) == 0 {
		return ErrEmptyParent
	}
	return nil
}

// ChildChunk is the embeddable unit produced from a parent
type ChildChunk struct {
	ChildID      string
	ParentID     string
	ParentSource string
	ParentTitle  string
	ChunkType    ChunkType
	Text         string

	// OriginalData is the raw chunk (text fragment or table row) before
	// the title prefix was applied.
	OriginalData any
}

// Validate checks if the chunk is valid
func (c *ChildChunk) Validate() error {
	if c.ParentID == "" {
		return ErrMissingParentID
	}
	if c.Text == "" {
		return ErrEmptyContent
	}
	switch c.ChunkType {
	case ChunkText, ChunkTable:
	default:
		return ErrInvalidChunk
	}
	return nil
}
