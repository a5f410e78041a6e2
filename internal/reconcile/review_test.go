package reconcile

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/openbookapp/openbook-sync/internal/nostr"
)

func reviewEvent(t *testing.T, author, workID string, createdAt int64, text, rating string) nostr.Event {
	t.Helper()
	tags := nostr.Tags{{"d", workID}, {"status", "read"}}
	if rating != "" {
		tags = tags.Append("rating", rating)
	}
	ev := nostr.Event{
		PubKey:    author,
		CreatedAt: createdAt,
		Kind:      nostr.KindShelfItem,
		Tags:      tags,
		Content:   text,
	}
	require.NoError(t, ev.Finalize())
	return ev
}

func metadataEvent(t *testing.T, workID string, createdAt int64, content string) nostr.Event {
	t.Helper()
	ev := nostr.Event{
		PubKey:    "librarian",
		CreatedAt: createdAt,
		Kind:      nostr.KindBookMetadata,
		Tags:      nostr.Tags{{"d", workID}},
		Content:   content,
	}
	require.NoError(t, ev.Finalize())
	return ev
}

func TestReviewFolder_LatestPerAuthor(t *testing.T) {
	folder := NewReviewFolder("OL1W", nil)
	folder.Fold(reviewEvent(t, "alice", "OL1W", 100, "first take", "3"))
	folder.Fold(reviewEvent(t, "alice", "OL1W", 200, "revised take", "5"))
	folder.Fold(reviewEvent(t, "bob", "OL1W", 150, "solid", "4"))

	reviews := folder.Reviews()
	require.Len(t, reviews, 2)
	assert.Equal(t, "revised take", reviews[0].Text)
	assert.Equal(t, "solid", reviews[1].Text)
}

func TestReviewFolder_NewerEventClearingReviewRemovesIt(t *testing.T) {
	folder := NewReviewFolder("OL1W", nil)
	folder.Fold(reviewEvent(t, "alice", "OL1W", 100, "loved it", "5"))
	folder.Fold(reviewEvent(t, "alice", "OL1W", 200, "", ""))

	assert.Empty(t, folder.Reviews())
}

func TestReviewFolder_IgnoresOtherWorks(t *testing.T) {
	folder := NewReviewFolder("OL1W", nil)
	folder.Fold(reviewEvent(t, "alice", "OL2W", 100, "wrong shelf", "4"))

	assert.Empty(t, folder.Reviews())
}

func TestReviewFolder_AverageRating(t *testing.T) {
	folder := NewReviewFolder("OL1W", nil)
	folder.Fold(reviewEvent(t, "alice", "OL1W", 100, "good", "4"))
	folder.Fold(reviewEvent(t, "bob", "OL1W", 110, "great", "5"))
	folder.Fold(reviewEvent(t, "carol", "OL1W", 120, "text only, no rating", ""))

	avg, n := folder.AverageRating()
	assert.Equal(t, 2, n)
	assert.InDelta(t, 4.5, avg, 0.001)
}

func TestReviewFolder_MetadataLatestWins(t *testing.T) {
	folder := NewReviewFolder("OL1W", nil)
	folder.FoldMetadata(metadataEvent(t, "OL1W", 200, `{"title":"dune","author":"frank herbert","published_year":"1965"}`))
	folder.FoldMetadata(metadataEvent(t, "OL1W", 100, `{"title":"dune (old)","author":"f. herbert"}`))

	book, ok := folder.Book()
	require.True(t, ok)
	assert.Equal(t, "dune", book.Title)
	assert.Equal(t, "1965", book.PublishedYear)
}

func TestReviewFolder_MalformedMetadataSkipped(t *testing.T) {
	folder := NewReviewFolder("OL1W", nil)
	folder.FoldMetadata(metadataEvent(t, "OL1W", 100, "{broken"))

	_, ok := folder.Book()
	assert.False(t, ok)
}
