package domain

import chain "github.com/fd1az/flashblocks-catcher/business/chain/domain"

// DedupSet remembers every block identity seen on the current connection.
// It grows for the lifetime of the process unless Reset.
type DedupSet struct {
	seen map[chain.BlockIdentity]struct{}
}

// NewDedupSet creates an empty set.
func NewDedupSet() *DedupSet {
	return &DedupSet{seen: make(map[chain.BlockIdentity]struct{})}
}

// Add inserts id and reports whether it was new.
func (s *DedupSet) Add(id chain.BlockIdentity) bool {
	if _, ok := s.seen[id]; ok {
		return false
	}
	s.seen[id] = struct{}{}
	return true
}

// Contains reports whether id was seen.
func (s *DedupSet) Contains(id chain.BlockIdentity) bool {
	_, ok := s.seen[id]
	return ok
}

func (s *DedupSet) Len() int {
	return len(s.seen)
}

// Reset forgets everything.
func (s *DedupSet) Reset() {
	clear(s.seen)
}
