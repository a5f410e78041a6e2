package bus

// KeyReceived announces that a shelf key granted by Owner has been stored
// and previously undecryptable items may now be readable.
type KeyReceived struct {
	Owner string
}

// GrantSent announces that our shelf key was sent to Recipient.
type GrantSent struct {
	Recipient string
}

// Topics bundles the application's wired topics. One instance lives for
// the duration of a session.
type Topics struct {
	KeyReceived *Topic[KeyReceived]
	GrantSent   *Topic[GrantSent]
}

// NewTopics creates the standard topic set.
func NewTopics() *Topics {
	return &Topics{
		KeyReceived: NewTopic[KeyReceived](),
		GrantSent:   NewTopic[GrantSent](),
	}
}
