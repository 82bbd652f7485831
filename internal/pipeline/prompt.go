package pipeline

import (
	"strings"
	"text/template"

	"github.com/airac/airac/pkg/types"
)

var promptTemplate = template.Must(template.New("prompt").Parse(`You are a helpful assistant. Use the given **text** and **table rows** to answer questions.

Question : {{.Query}}

(NOTE: TABLES AND ROWS data may and may not exist.)

--- Parent Text ---
{{.Text}}

--- Parent Tables (rows as JSON) ---
{{.Tables}}

Based on both the text and the tables, give a clear and concise response. Only reply with the answer and nothing else.
`))

type promptData struct {
	Query  string
	Text   string
	Tables string
}

// BuildPrompt renders the grounding prompt for a query and its context.
// Missing context renders as an empty text block and an empty table list.
func BuildPrompt(query string, pc types.ParentContext) (string, error) {
	var b strings.Builder
	err := promptTemplate.Execute(&b, promptData{
		Query:  query,
		Text:   pc.Text,
		Tables: pc.TablesJSON(),
	})
	if err != nil {
		return "", err
	}
	return b.String(), nil
}
