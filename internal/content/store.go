package content

import (
	"slices"

	"github.com/samber/lo"
)

// Direction records whether the owner sent or received an entry.
type Direction uint8

const (
	Sent Direction = 1 << iota
	Received
)

func (d Direction) String() string {
	switch d {
	case Sent:
		return "sent"
	case Received:
		return "received"
	case Sent | Received:
		return "self"
	default:
		return "unknown"
	}
}

// Entry is one stored message.
type Entry struct {
	Content   Content
	Direction Direction
}

// Store is the per-actor log of all content sent or received. It is indexed
// by grouping id and kind. Entries are only removed by RemoveAll, when a
// failed negotiation's trail is discarded.
type Store struct {
	owner   string
	entries []*Entry
	byID    map[uint64]*Entry
	byGroup map[uint64][]*Entry
}

// NewStore creates an empty store for the named actor.
func NewStore(owner string) *Store {
	return &Store{
		owner:   owner,
		byID:    make(map[uint64]*Entry),
		byGroup: make(map[uint64][]*Entry),
	}
}

// Owner returns the id of the actor owning the store.
func (s *Store) Owner() string { return s.owner }

// Append records c. It returns false if an entry with the same unique id in
// the same direction was already recorded; a message an actor sends to
// itself is stored once with both flags set.
func (s *Store) Append(c Content, dir Direction) bool {
	id := c.Head().ID
	if e, ok := s.byID[id]; ok {
		if e.Direction&dir != 0 {
			return false
		}
		e.Direction |= dir
		return true
	}
	e := &Entry{Content: c, Direction: dir}
	s.entries = append(s.entries, e)
	s.byID[id] = e
	gid := c.Head().GroupingID
	s.byGroup[gid] = append(s.byGroup[gid], e)
	return true
}

// Get looks up content by unique id.
func (s *Store) Get(id uint64) (Content, bool) {
	e, ok := s.byID[id]
	if !ok {
		return nil, false
	}
	return e.Content, true
}

// Contains reports whether any content with the grouping id is stored.
func (s *Store) Contains(groupingID uint64) bool {
	return len(s.byGroup[groupingID]) > 0
}

// ContainsKind reports whether content of kind with the grouping id is stored.
func (s *Store) ContainsKind(groupingID uint64, kind Kind) bool {
	return lo.ContainsBy(s.byGroup[groupingID], func(e *Entry) bool {
		return e.Content.Kind() == kind
	})
}

// Count returns how many messages of kind with the grouping id are stored.
func (s *Store) Count(groupingID uint64, kind Kind) int {
	return lo.CountBy(s.byGroup[groupingID], func(e *Entry) bool {
		return e.Content.Kind() == kind
	})
}

// CountDir is Count restricted to entries stored in direction dir.
func (s *Store) CountDir(groupingID uint64, kind Kind, dir Direction) int {
	return lo.CountBy(s.byGroup[groupingID], func(e *Entry) bool {
		return e.Content.Kind() == kind && e.Direction&dir != 0
	})
}

// List returns the messages of kind with the grouping id in insertion order.
func (s *Store) List(groupingID uint64, kind Kind) []Content {
	return lo.FilterMap(s.byGroup[groupingID], func(e *Entry, _ int) (Content, bool) {
		return e.Content, e.Content.Kind() == kind
	})
}

// Group returns every entry with the grouping id in insertion order.
func (s *Store) Group(groupingID uint64) []Entry {
	return lo.Map(s.byGroup[groupingID], func(e *Entry, _ int) Entry { return *e })
}

// ByKind returns all messages of kind in insertion order.
func (s *Store) ByKind(kind Kind) []Content {
	return lo.FilterMap(s.entries, func(e *Entry, _ int) (Content, bool) {
		return e.Content, e.Content.Kind() == kind
	})
}

// Entries returns all entries in insertion order.
func (s *Store) Entries() []Entry {
	return lo.Map(s.entries, func(e *Entry, _ int) Entry { return *e })
}

// Groups returns the stored grouping ids in ascending order.
func (s *Store) Groups() []uint64 {
	ids := lo.Keys(s.byGroup)
	slices.Sort(ids)
	return ids
}

// Len returns the number of stored entries.
func (s *Store) Len() int { return len(s.entries) }

// RemoveAll discards every entry with the grouping id and returns how many
// were removed.
func (s *Store) RemoveAll(groupingID uint64) int {
	group, ok := s.byGroup[groupingID]
	if !ok {
		return 0
	}
	for _, e := range group {
		delete(s.byID, e.Content.Head().ID)
	}
	delete(s.byGroup, groupingID)
	s.entries = slices.DeleteFunc(s.entries, func(e *Entry) bool {
		return e.Content.Head().GroupingID == groupingID
	})
	return len(group)
}

// ListOf returns the messages of type T with the grouping id in insertion
// order.
func ListOf[T Content](s *Store, groupingID uint64) []T {
	var out []T
	for _, e := range s.byGroup[groupingID] {
		if c, ok := e.Content.(T); ok {
			out = append(out, c)
		}
	}
	return out
}

// Lookup returns the content with the unique id if it has type T.
func Lookup[T Content](s *Store, id uint64) (T, bool) {
	var zero T
	c, ok := s.Get(id)
	if !ok {
		return zero, false
	}
	t, ok := c.(T)
	return t, ok
}
