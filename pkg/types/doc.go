// Package types provides shared type definitions for the AIRAC question
// answering service.
//
// # Knowledge Base
//
// ParentDocument is a titled section of the knowledge base with prose and
// optional table rows. Ingestion splits each parent into ChildChunk values;
// children are embedded and searched, and the parent they came from is what
// grounds the answer:
//
//	parent := &types.ParentDocument{
//	    ID:    "0b6f...",
//	    Title: "Dining",
//	    Text:  "Breakfast is served in the main hall.",
//	    Tables: []types.TableRow{
//	        {"meal": "breakfast", "time": "7-10 AM"},
//	    },
//	}
//
// # Retrieved Context
//
// ParentContext is the (text, tables) pair attached to index matches. Both
// the cache index and the document index store it under the parent_text and
// parent_tables metadata keys, with tables serialized as a JSON string.
// ContextFromMetadata is the single place that decodes that shape:
//
//	pc, err := types.ContextFromMetadata(match.Metadata)
//	if errors.Is(err, types.ErrMalformedMetadata) {
//	    // treat as no context
//	}
package types
