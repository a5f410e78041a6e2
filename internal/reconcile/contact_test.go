package reconcile

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/openbookapp/openbook-sync/internal/nostr"
)

func contactList(t *testing.T, author string, createdAt int64, follows ...string) nostr.Event {
	t.Helper()
	var tags nostr.Tags
	for _, f := range follows {
		tags = tags.Append("p", f)
	}
	ev := nostr.Event{
		PubKey:    author,
		CreatedAt: createdAt,
		Kind:      nostr.KindContacts,
		Tags:      tags,
	}
	require.NoError(t, ev.Finalize())
	return ev
}

func TestContactFolder_LatestListWins(t *testing.T) {
	folder := NewContactFolder()
	folder.Fold(contactList(t, "alice", 100, "bob", "carol"))
	folder.Fold(contactList(t, "alice", 200, "bob"))

	assert.Equal(t, []string{"bob"}, folder.Follows("alice"))
	assert.True(t, folder.IsFollowing("alice", "bob"))
	assert.False(t, folder.IsFollowing("alice", "carol"))
}

func TestContactFolder_OlderListDroppedOutOfOrder(t *testing.T) {
	folder := NewContactFolder()
	folder.Fold(contactList(t, "alice", 200, "bob"))
	folder.Fold(contactList(t, "alice", 100, "bob", "carol"))

	assert.Equal(t, []string{"bob"}, folder.Follows("alice"))
}

func TestContactFolder_FollowsDeduplicated(t *testing.T) {
	folder := NewContactFolder()
	folder.Fold(contactList(t, "alice", 100, "bob", "bob", "carol"))

	assert.Equal(t, []string{"bob", "carol"}, folder.Follows("alice"))
}

func TestContactFolder_MissingAuthorYieldsNil(t *testing.T) {
	folder := NewContactFolder()
	assert.Nil(t, folder.Follows("nobody"))
}
