package ops

import (
	"context"
	"strings"

	"github.com/oterdem/mcptab/internal/runtime"
	"github.com/oterdem/mcptab/internal/vector"
	"github.com/oterdem/mcptab/pkg/mcperr"
)

// Search forwards semantic queries to the vector-index collaborator and
// joins the ranked passages with newlines. It keeps no state of its own.
type Search struct {
	Index   vector.Searcher
	Limits  runtime.Limits
	Default int
}

// RegisterActions wires the search action into a dispatcher.
func (s *Search) RegisterActions(d *Dispatcher) {
	d.Register("similarity_search", s.SimilaritySearch)
}

// SimilaritySearch runs the query with k clamped to the configured maximum.
func (s *Search) SimilaritySearch(ctx context.Context, params map[string]any) Result {
	if s.Index == nil {
		return ErrorResult(mcperr.NoIndex, "vector index is not initialized; start the server with a Chroma URL configured")
	}
	query, ok := stringParam(params, "query")
	if !ok || query == "" {
		return ErrorResult(mcperr.Validation, "similarity_search requires params.query")
	}

	k := intParam(params, "k", s.Default)
	if k <= 0 {
		k = s.Default
	}
	if k > s.Limits.MaxSearchResults {
		k = s.Limits.MaxSearchResults
	}

	passages, err := s.Index.Search(ctx, query, k)
	if err != nil {
		return Errorf(mcperr.SearchFailed, "similarity search failed: %v", err)
	}
	if len(passages) == 0 {
		return TextResult("No matching passages found.")
	}
	return TextResult(strings.Join(passages, "\n"))
}
