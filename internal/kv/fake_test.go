package kv

import (
	"context"
	"errors"
)

// pagedStore serves a scripted sequence of SCAN pages; every other method is unused.
type pagedStore struct {
	Store
	pages   [][]string
	cursors []uint64
	calls   []uint64
	failAt  int
}

var errPage = errors.New("connection reset by peer")

func (p *pagedStore) Scan(_ context.Context, cursor uint64, _ string, _ int64) ([]string, uint64, error) {
	p.calls = append(p.calls, cursor)
	i := len(p.calls) - 1
	if p.failAt > 0 && i+1 == p.failAt {
		return nil, 0, errPage
	}
	return p.pages[i], p.cursors[i], nil
}
