// Package memory provides the retrieval collaborator used for context pre-fetch
// and the kb_query tool.
//
// Invariants:
// - Retrieval is stateless per query; chunks are produced fresh and never persisted.
// - Chunk scores are in [0,1] and results are ordered by descending score.
//
// Usage:
//
//	r := memory.NewKeywordRetriever(nil) // sample GPU operations corpus
//	chunks, _ := r.Retrieve(ctx, "ECC errors on GPU1", 3)
//	_ = chunks
package memory
