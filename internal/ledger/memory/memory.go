package memory

import (
	"bufio"
	"context"
	"fmt"
	"os"
	"strings"
	"sync"

	"kakeibo/internal/core"
	"kakeibo/internal/ledger"
)

// Store keeps the ledger in memory. When a Persister is attached, the whole
// ledger is loaded once at construction and saved after every mutation.
type Store struct {
	mu        sync.Mutex
	cats      []string
	items     []core.LedgerEntry
	persister ledger.Persister
}

var _ ledger.Store = (*Store)(nil)

func New(cats []string) *Store {
	return &Store{cats: dedupe(cats)}
}

// NewWithPersister loads the ledger from p and keeps it in sync.
func NewWithPersister(ctx context.Context, cats []string, p ledger.Persister) (*Store, error) {
	s := New(cats)
	s.persister = p
	if p == nil {
		return s, nil
	}
	items, err := p.Load(ctx)
	if err != nil {
		return nil, fmt.Errorf("load ledger: %w", err)
	}
	s.items = items
	return s, nil
}

// NewFromFile seeds categories from a file with one name per line. Missing
// or empty files fall back to the default category list.
func NewFromFile(path string) *Store {
	return New(SeedCategories(path))
}

// SeedCategories reads a category seed file, falling back to defaults.
func SeedCategories(path string) []string {
	cats := readLines(path)
	if len(cats) == 0 {
		cats = core.DefaultCategories()
	}
	return cats
}

// Append stores the entry and returns a synthetic row reference.
func (s *Store) Append(ctx context.Context, e core.LedgerEntry) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.items = append(s.items, e)
	if err := s.save(ctx); err != nil {
		s.items = s.items[:len(s.items)-1]
		return "", err
	}
	return fmt.Sprintf("mem:%d", len(s.items)), nil
}

func (s *Store) Delete(ctx context.Context, indices []int) ([]core.LedgerEntry, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	idx, err := ledger.NormalizeIndices(indices, len(s.items))
	if err != nil {
		return nil, err
	}
	prev := s.items
	removed := make([]core.LedgerEntry, 0, len(idx))
	kept := make([]core.LedgerEntry, 0, len(s.items)-len(idx))
	next := 0
	for i, e := range s.items {
		if next < len(idx) && idx[next] == i {
			removed = append(removed, e)
			next++
			continue
		}
		kept = append(kept, e)
	}
	s.items = kept
	if err := s.save(ctx); err != nil {
		s.items = prev
		return nil, err
	}
	return removed, nil
}

func (s *Store) Entries(_ context.Context) ([]core.LedgerEntry, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]core.LedgerEntry(nil), s.items...), nil
}

func (s *Store) EntriesForMonth(_ context.Context, year, month int) ([]core.LedgerEntry, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return core.EntriesForMonth(s.items, year, month), nil
}

// Categories returns the category list.
func (s *Store) Categories(_ context.Context) ([]string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]string(nil), s.cats...), nil
}

func (s *Store) AddCategory(_ context.Context, name string) error {
	name = strings.TrimSpace(name)
	if name == "" {
		return core.ErrEmptyCategory
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, c := range s.cats {
		if c == name {
			return ledger.ErrCategoryExists
		}
	}
	// keep the catch-all category last
	if n := len(s.cats); n > 0 && s.cats[n-1] == core.OtherCategory {
		s.cats = append(s.cats[:n-1], name, core.OtherCategory)
		return nil
	}
	s.cats = append(s.cats, name)
	return nil
}

func (s *Store) RemoveCategory(_ context.Context, name string) error {
	name = strings.TrimSpace(name)
	s.mu.Lock()
	defer s.mu.Unlock()
	for i, c := range s.cats {
		if c == name {
			s.cats = append(s.cats[:i], s.cats[i+1:]...)
			return nil
		}
	}
	return ledger.ErrCategoryMissing
}

// save must be called with mu held.
func (s *Store) save(ctx context.Context) error {
	if s.persister == nil {
		return nil
	}
	if err := s.persister.Save(ctx, s.items); err != nil {
		return fmt.Errorf("save ledger: %w", err)
	}
	return nil
}

func readLines(path string) []string {
	if path == "" {
		return nil
	}
	f, err := os.Open(path)
	if err != nil {
		return nil
	}
	defer f.Close()
	var out []string
	sc := bufio.NewScanner(f)
	for sc.Scan() {
		line := strings.TrimSpace(sc.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		out = append(out, line)
	}
	return dedupe(out)
}

func dedupe(in []string) []string {
	seen := map[string]struct{}{}
	out := make([]string, 0, len(in))
	for _, v := range in {
		v = strings.TrimSpace(v)
		if v == "" {
			continue
		}
		if _, ok := seen[v]; ok {
			continue
		}
		seen[v] = struct{}{}
		out = append(out, v)
	}
	return out
}
