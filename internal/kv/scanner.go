package kv

import (
	"context"
	"fmt"
	"strings"
)

// scanStart is both the first cursor and the "complete" cursor.
const scanStart uint64 = 0

// MatchPattern turns a literal key prefix into a SCAN glob, escaping the
// glob metacharacters that may appear in the prefix itself.
func MatchPattern(prefix string) string {
	var b strings.Builder
	b.Grow(len(prefix) + 1)
	for _, r := range prefix {
		switch r {
		case '*', '?', '[', ']', '\\':
			b.WriteByte('\\')
		}
		b.WriteRune(r)
	}
	b.WriteByte('*')
	return b.String()
}

// Scanner lazily enumerates the keys under a prefix using cursor pagination.
// It is not a snapshot: keys created or deleted while scanning may or may not
// be seen, and the store may return a key more than once.
//
//	sc := kv.NewScanner(store, "onboarded_agent:", 100)
//	for sc.Next(ctx) {
//		key := sc.Key()
//	}
//	if err := sc.Err(); err != nil { ... }
type Scanner struct {
	store  Store
	prefix string
	match  string
	count  int64

	cursor uint64
	page   []string
	pos    int
	done   bool
	key    string
	err    error
	pages  int
}

// NewScanner returns a scanner over prefix. count is a batch-size hint passed
// to the store; non-positive values let the store choose.
func NewScanner(store Store, prefix string, count int64) *Scanner {
	return &Scanner{
		store:  store,
		prefix: prefix,
		match:  MatchPattern(prefix),
		count:  count,
	}
}

// Next advances to the next key, fetching pages as needed. It returns false
// once the cursor has come back to the start value and the last page is
// drained, or when a page request fails (see Err).
func (s *Scanner) Next(ctx context.Context) bool {
	for {
		if s.err != nil {
			return false
		}
		if s.pos < len(s.page) {
			s.key = s.page[s.pos]
			s.pos++
			return true
		}
		if s.done {
			s.key = ""
			return false
		}
		if err := ctx.Err(); err != nil {
			s.err = err
			return false
		}

		keys, next, err := s.store.Scan(ctx, s.cursor, s.match, s.count)
		if err != nil {
			s.err = fmt.Errorf("scan %q at cursor %d: %w", s.match, s.cursor, err)
			return false
		}
		s.pages++
		s.page, s.pos = keys, 0
		s.cursor = next
		if next == scanStart {
			s.done = true
		}
	}
}

// Key returns the current key.
func (s *Scanner) Key() string {
	return s.key
}

// Suffix returns the current key with the scanned prefix removed.
func (s *Scanner) Suffix() string {
	return strings.TrimPrefix(s.key, s.prefix)
}

// Err returns the error that stopped the scan, if any.
func (s *Scanner) Err() error {
	return s.err
}

// Pages reports how many page requests have been issued.
func (s *Scanner) Pages() int {
	return s.pages
}

// Reset rewinds the scanner so the next call to Next starts a fresh pass.
func (s *Scanner) Reset() {
	s.cursor = scanStart
	s.page, s.pos = nil, 0
	s.done = false
	s.key, s.err = "", nil
	s.pages = 0
}

// Each drives a full pass over prefix, calling fn for every key. A page error
// or an error returned by fn stops the pass and is returned.
func Each(ctx context.Context, store Store, prefix string, count int64, fn func(key string) error) error {
	sc := NewScanner(store, prefix, count)
	for sc.Next(ctx) {
		if err := fn(sc.Key()); err != nil {
			return err
		}
	}
	return sc.Err()
}
