package analysis

import (
	"sync"
)

// Store is the ordered table of per-ply records. Reads hand out copies;
// writers mutate in place under the lock.
type Store struct {
	mu      sync.RWMutex
	records []Record
}

func NewStore(records ...Record) *Store {
	s := &Store{}
	s.Reset(records)
	return s
}

func (s *Store) Reset(records []Record) {
	next := make([]Record, len(records))
	for i, r := range records {
		next[i] = r.clone()
	}
	s.mu.Lock()
	s.records = next
	s.mu.Unlock()
}

func (s *Store) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.records)
}

// Get returns a snapshot of record i.
func (s *Store) Get(i int) (Record, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if i < 0 || i >= len(s.records) {
		return Record{}, false
	}
	return s.records[i].clone(), true
}

func (s *Store) Snapshot() []Record {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]Record, len(s.records))
	for i, r := range s.records {
		out[i] = r.clone()
	}
	return out
}

// Truncate keeps records [0, n) and discards the rest.
func (s *Store) Truncate(n int) {
	if n < 0 {
		n = 0
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if n >= len(s.records) {
		return
	}
	for i := n; i < len(s.records); i++ {
		s.records[i] = Record{}
	}
	s.records = s.records[:n]
}

func (s *Store) Append(r Record) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.records = append(s.records, r.clone())
	return len(s.records) - 1
}

// Update runs fn on record i if it exists. It reports false, without calling
// fn, when the index is gone.
func (s *Store) Update(i int, fn func(*Record)) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if i < 0 || i >= len(s.records) {
		return false
	}
	fn(&s.records[i])
	return true
}

// pair: 직전 레코드와 i번 레코드를 한 락 안에서 처리.
func (s *Store) pair(i int, fn func(before Record, after *Record)) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if i <= 0 || i >= len(s.records) {
		return false
	}
	fn(s.records[i-1], &s.records[i])
	return true
}

type passCounts struct {
	plies int
	pass1 int
	pass2 int
}

// ply 0은 수가 아니므로 제외
func (s *Store) counts() passCounts {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var c passCounts
	for i := 1; i < len(s.records); i++ {
		c.plies++
		if s.records[i].Pass1Done {
			c.pass1++
		}
		if s.records[i].Pass2Done {
			c.pass2++
		}
	}
	return c
}

func allPass1Done(records []Record) bool {
	for _, r := range records {
		if !r.Pass1Done {
			return false
		}
	}
	return len(records) > 0
}
