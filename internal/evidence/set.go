package evidence

import "strings"

// Source identifies which scanner produced an evidence item.
type Source int

const (
	// SourceMention is a post addressed to the account.
	SourceMention Source = iota
	// SourceReply is a reply in one of the account's threads.
	SourceReply
)

// String returns the source label.
func (s Source) String() string {
	if s == SourceReply {
		return "reply"
	}
	return "mention"
}

// Item is one candidate former handle.
type Item struct {
	Handle string
	Source Source
}

// Set is an insertion-ordered collection of items deduplicated by lower-cased handle.
// The zero value is ready to use.
type Set struct {
	items []Item
	index map[string]struct{}
}

// NewSet returns a set holding handles attributed to source.
func NewSet(source Source, handles ...string) Set {
	var s Set
	for _, handle := range handles {
		s.Add(Item{Handle: handle, Source: source})
	}
	return s
}

// Add inserts item unless its handle is already present. It reports whether the set changed.
func (s *Set) Add(item Item) bool {
	key := strings.ToLower(strings.TrimSpace(item.Handle))
	if key == "" {
		return false
	}
	if s.index == nil {
		s.index = make(map[string]struct{})
	}
	if _, ok := s.index[key]; ok {
		return false
	}
	s.index[key] = struct{}{}
	item.Handle = key
	s.items = append(s.items, item)
	return true
}

// Merge returns the union of the given sets; the first occurrence of a handle wins.
func Merge(sets ...Set) Set {
	var out Set
	for _, set := range sets {
		for _, item := range set.items {
			out.Add(item)
		}
	}
	return out
}

// Len returns the number of distinct handles.
func (s Set) Len() int { return len(s.items) }

// Items returns a copy of the items in insertion order.
func (s Set) Items() []Item {
	return append([]Item(nil), s.items...)
}

// Handles returns the distinct handles in insertion order.
func (s Set) Handles() []string {
	out := make([]string, 0, len(s.items))
	for _, item := range s.items {
		out = append(out, item.Handle)
	}
	return out
}
