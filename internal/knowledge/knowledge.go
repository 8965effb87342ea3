// Package knowledge declares the boundary to the external knowledge-base
// search service. The vector-store internals live outside this backend.
package knowledge

import "context"

type Searcher interface {
	// Search returns the most relevant knowledge snippets for the query.
	Search(ctx context.Context, query string, limit int) ([]string, error)
}
