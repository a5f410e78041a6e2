package reconcile

// BookDocument is what the reconciler hands to the search index for each
// reconciled book-metadata event.
type BookDocument struct {
	WorkID string `json:"work_id"`
	Title  string `json:"title"`
	Author string `json:"author"`
}

// SearchIndexer receives reconciled metadata. Index errors are logged by
// the caller and never interrupt reconciliation.
type SearchIndexer interface {
	Index(doc BookDocument) error
}

// NoopIndexer discards documents. Used when no search index is configured.
type NoopIndexer struct{}

func (NoopIndexer) Index(BookDocument) error { return nil }
