package nostr

// Kind is an event kind discriminator. The set of kinds the application
// understands is closed; anything else is ignored by the reconciler.
type Kind int

const (
	// KindComment is a plain-text discussion reply to a review event.
	KindComment Kind = 1
	// KindContacts is the replaceable follow list, one per author.
	KindContacts Kind = 3
	// KindReaction is a "+" or "-" reaction to another event.
	KindReaction Kind = 7
	// KindGrantDM is the encrypted direct-message kind used to transmit
	// shelf-key grants between users.
	KindGrantDM Kind = 44
	// KindShelfItem is a public shelf item: one book on one user's shelf,
	// parameterized by the catalog work id in the "d" tag.
	KindShelfItem Kind = 30451
	// KindShelfItemPrivate is the encrypted variant of KindShelfItem.
	// Its content is only readable with the author's shelf key.
	KindShelfItemPrivate Kind = 30452
	// KindBookMetadata is denormalized, searchable book metadata,
	// parameterized by the catalog work id.
	KindBookMetadata Kind = 30453
)

// family groups kinds that compete for the same replaceable slot.
// Public and private shelf items share one slot per (author, work id):
// switching a book between public and private must supersede, not fork.
type family string

const (
	familyShelf    family = "shelf"
	familyMetadata family = "metadata"
	familyContacts family = "contacts"
	familyNone     family = ""
)

func kindFamily(k Kind) family {
	switch k {
	case KindShelfItem, KindShelfItemPrivate:
		return familyShelf
	case KindBookMetadata:
		return familyMetadata
	case KindContacts:
		return familyContacts
	case KindComment, KindReaction, KindGrantDM:
		return familyNone
	default:
		return familyNone
	}
}

// Replaceable reports whether events of this kind supersede earlier events
// sharing the same address (author plus "d" tag).
func Replaceable(k Kind) bool {
	return kindFamily(k) != familyNone
}
