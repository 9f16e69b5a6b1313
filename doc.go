// Package akgraph provides incremental knowledge graph construction from
// unstructured documents.
//
// Documents are chunked, entities and relationships are extracted with an
// LLM (with pattern-matching fallbacks), resolved against the existing
// graph through multi-level deduplication, and written incrementally. No
// batch recomputation is needed when new documents arrive.
//
// # Basic Usage
//
// Open a client from configuration:
//
//	cfg, err := config.Load()
//	if err != nil {
//		log.Fatal(err)
//	}
//	client, err := akgraph.Open(cfg, nil)
//	if err != nil {
//		log.Fatal(err)
//	}
//	defer client.Close(ctx)
//
// # Processing Documents
//
//	doc := types.Document{
//		ID:      "meeting-notes-1",
//		Title:   "Q3 Planning",
//		Content: "John Smith from Engineering will lead Project Alpha...",
//	}
//	result, err := client.ProcessDocument(ctx, doc)
//
// The result reports entities created and reused, relationships created,
// and any contained chunk-level failures. Re-processing an unchanged
// document is a no-op, and a changed document only adds what is new:
// entities already in the graph are matched by normalized name, fuzzy
// similarity within their type, and a stricter cross-type check, then
// reinforced instead of duplicated.
package akgraph
