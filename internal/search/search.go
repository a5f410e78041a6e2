// Package search maintains a full-text Bleve index over the book metadata
// the reconciler has seen, so works can be found by title or author
// without another relay round trip.
package search

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sync"

	"github.com/blevesearch/bleve/v2"
	"github.com/blevesearch/bleve/v2/analysis/analyzer/keyword"
	"github.com/blevesearch/bleve/v2/analysis/analyzer/simple"
	"github.com/blevesearch/bleve/v2/mapping"

	"github.com/openbookapp/openbook-sync/internal/reconcile"
)

// Index wraps a Bleve index keyed by work id. It implements the
// reconciler's SearchIndexer interface, so reconciled metadata flows in
// without extra wiring.
//
// All public methods are safe for concurrent use.
type Index struct {
	index  bleve.Index
	log    *slog.Logger
	mu     sync.RWMutex
	closed bool
}

// Options configures the search index.
type Options struct {
	// DataPath is the directory holding the on-disk index. Empty means
	// an in-memory index, used by tests and ephemeral sessions.
	DataPath string
	Logger   *slog.Logger
}

// New creates or opens a search index.
func New(opts Options) (*Index, error) {
	log := opts.Logger
	if log == nil {
		log = slog.New(slog.DiscardHandler)
	}

	if opts.DataPath == "" {
		idx, err := bleve.NewMemOnly(buildMapping())
		if err != nil {
			return nil, fmt.Errorf("create in-memory search index: %w", err)
		}
		return &Index{index: idx, log: log}, nil
	}

	indexPath := filepath.Join(opts.DataPath, "search.bleve")
	idx, err := bleve.Open(indexPath)
	if err == nil {
		return &Index{index: idx, log: log}, nil
	}

	log.Info("creating search index", "path", indexPath)
	if removeErr := os.RemoveAll(indexPath); removeErr != nil {
		return nil, fmt.Errorf("remove unusable search index: %w", removeErr)
	}
	idx, err = bleve.New(indexPath, buildMapping())
	if err != nil {
		return nil, fmt.Errorf("create search index: %w", err)
	}
	return &Index{index: idx, log: log}, nil
}

func buildMapping() mapping.IndexMapping {
	indexMapping := bleve.NewIndexMapping()
	indexMapping.DefaultAnalyzer = simple.Name

	docMapping := bleve.NewDocumentMapping()

	workIDMapping := bleve.NewTextFieldMapping()
	workIDMapping.Analyzer = keyword.Name
	workIDMapping.Store = true
	docMapping.AddFieldMappingsAt("work_id", workIDMapping)

	titleMapping := bleve.NewTextFieldMapping()
	titleMapping.Analyzer = simple.Name
	titleMapping.Store = true
	docMapping.AddFieldMappingsAt("title", titleMapping)

	authorMapping := bleve.NewTextFieldMapping()
	authorMapping.Analyzer = simple.Name
	authorMapping.Store = true
	docMapping.AddFieldMappingsAt("author", authorMapping)

	indexMapping.DefaultMapping = docMapping
	return indexMapping
}

// Index upserts one metadata document, keyed by work id so re-reconciled
// metadata replaces the previous version instead of duplicating it.
func (i *Index) Index(doc reconcile.BookDocument) error {
	if doc.WorkID == "" {
		return nil
	}

	i.mu.Lock()
	defer i.mu.Unlock()
	return i.index.Index(doc.WorkID, map[string]any{
		"work_id": doc.WorkID,
		"title":   doc.Title,
		"author":  doc.Author,
	})
}

// Hit is one search result.
type Hit struct {
	WorkID string
	Title  string
	Author string
	Score  float64
}

// Search matches the query against titles and authors, best first.
// A limit of zero or less defaults to 20.
func (i *Index) Search(queryText string, limit int) ([]Hit, error) {
	if limit <= 0 {
		limit = 20
	}

	q := bleve.NewDisjunctionQuery(
		bleve.NewMatchQuery(queryText),
		bleve.NewPrefixQuery(queryText),
	)
	req := bleve.NewSearchRequestOptions(q, limit, 0, false)
	req.Fields = []string{"work_id", "title", "author"}

	i.mu.RLock()
	res, err := i.index.Search(req)
	i.mu.RUnlock()
	if err != nil {
		return nil, fmt.Errorf("search %q: %w", queryText, err)
	}

	hits := make([]Hit, 0, len(res.Hits))
	for _, h := range res.Hits {
		hit := Hit{WorkID: h.ID, Score: h.Score}
		if title, ok := h.Fields["title"].(string); ok {
			hit.Title = title
		}
		if author, ok := h.Fields["author"].(string); ok {
			hit.Author = author
		}
		hits = append(hits, hit)
	}
	return hits, nil
}

// Close releases the underlying index. Safe to call more than once.
func (i *Index) Close() error {
	i.mu.Lock()
	defer i.mu.Unlock()
	if i.closed {
		return nil
	}
	i.closed = true
	return i.index.Close()
}
