// Package vector builds and queries the embedding index used by the
// similarity-search tool. The index lives in a Chroma instance, namespaced
// by a content hash of the dataset file so re-running against an unchanged
// file reuses the stored embeddings.
package vector

import (
	"context"
	"crypto/md5"
	"encoding/hex"
	"fmt"
	"os"

	"github.com/tmc/langchaingo/documentloaders"
	"github.com/tmc/langchaingo/embeddings"
	"github.com/tmc/langchaingo/llms/openai"
	"github.com/tmc/langchaingo/textsplitter"
	"github.com/tmc/langchaingo/vectorstores/chroma"
)

// Searcher is the narrow view the similarity-search operation consumes:
// a query plus result count in, ordered passages out.
type Searcher interface {
	Search(ctx context.Context, query string, k int) ([]string, error)
}

// Index wraps a Chroma-backed vector store.
type Index struct {
	store chroma.Store
}

// FileHash fingerprints the dataset file so index namespaces track content.
func FileHash(path string) (string, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return "", fmt.Errorf("vector: read %s: %w", path, err)
	}
	sum := md5.Sum(raw)
	return hex.EncodeToString(sum[:]), nil
}

// BuildIndex loads the CSV dataset, splits it into chunks, embeds them with
// the configured OpenAI model, and stores them in Chroma under a namespace
// derived from the file hash.
func BuildIndex(ctx context.Context, chromaURL, csvPath string) (*Index, error) {
	hash, err := FileHash(csvPath)
	if err != nil {
		return nil, err
	}

	llm, err := openai.New()
	if err != nil {
		return nil, fmt.Errorf("vector: init embedding client: %w", err)
	}
	embedder, err := embeddings.NewEmbedder(llm)
	if err != nil {
		return nil, fmt.Errorf("vector: init embedder: %w", err)
	}

	store, err := chroma.New(
		chroma.WithChromaURL(chromaURL),
		chroma.WithEmbedder(embedder),
		chroma.WithNameSpace("dataset_"+hash),
	)
	if err != nil {
		return nil, fmt.Errorf("vector: connect chroma: %w", err)
	}

	f, err := os.Open(csvPath)
	if err != nil {
		return nil, fmt.Errorf("vector: open %s: %w", csvPath, err)
	}
	defer f.Close()

	splitter := textsplitter.NewRecursiveCharacter(
		textsplitter.WithChunkSize(1000),
		textsplitter.WithChunkOverlap(200),
	)
	docs, err := documentloaders.NewCSV(f).LoadAndSplit(ctx, splitter)
	if err != nil {
		return nil, fmt.Errorf("vector: load documents: %w", err)
	}
	if _, err := store.AddDocuments(ctx, docs); err != nil {
		return nil, fmt.Errorf("vector: add documents: %w", err)
	}

	return &Index{store: store}, nil
}

// Search forwards the query to the underlying store and returns the passage
// texts in ranked order.
func (i *Index) Search(ctx context.Context, query string, k int) ([]string, error) {
	docs, err := i.store.SimilaritySearch(ctx, query, k)
	if err != nil {
		return nil, fmt.Errorf("vector: similarity search: %w", err)
	}
	out := make([]string, 0, len(docs))
	for _, d := range docs {
		out = append(out, d.PageContent)
	}
	return out, nil
}
