package nostr

import "slices"

// Filter selects events by kind, author, tag values, time lower bound,
// and result count. A zero field matches everything.
type Filter struct {
	Kinds   []Kind
	Authors []string
	// Tags maps a tag name to accepted values, e.g. {"d": {"OL123W"}}.
	Tags  map[string][]string
	Since int64
	Limit int
}

// Matches reports whether the event passes every constraint of the filter.
// Limit is a transport concern and is not evaluated here.
func (f Filter) Matches(e Event) bool {
	if len(f.Kinds) > 0 && !slices.Contains(f.Kinds, e.Kind) {
		return false
	}
	if len(f.Authors) > 0 && !slices.Contains(f.Authors, e.PubKey) {
		return false
	}
	if f.Since > 0 && e.CreatedAt < f.Since {
		return false
	}
	for name, accepted := range f.Tags {
		if len(accepted) == 0 {
			continue
		}
		found := false
		for _, v := range e.Tags.Values(name) {
			if slices.Contains(accepted, v) {
				found = true
				break
			}
		}
		if !found {
			return false
		}
	}
	return true
}
