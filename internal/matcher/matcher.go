// Package matcher provides a concurrent, growable fuzzy index. Producers push
// items from any goroutine while a single consumer sets a query and advances
// scoring in bounded steps with Tick.
package matcher

import (
	"cmp"
	"math"
	"slices"
	"strings"
	"sync"
	"sync/atomic"

	"github.com/hbollon/go-edlib"
	"github.com/sahilm/fuzzy"
)

const (
	// DefaultTickBudget is the default number of items scored per Tick.
	DefaultTickBudget = 100_000

	// MaxTickBudget caps Config.TickBudget.
	MaxTickBudget = math.MaxInt32
)

// Config configures a Matcher.
type Config struct {
	// TickBudget bounds the number of items scored by one Tick.
	TickBudget int
}

// DefaultConfig returns the default matcher configuration.
func DefaultConfig() Config {
	return Config{TickBudget: DefaultTickBudget}
}

// Item is a ranked match.
type Item[T any] struct {
	Inner         T
	MatchedString string // The projected text the query ran against
	MatchIndices  []int  // Byte offsets of the matched runes in MatchedString
	Score         int
	Index         uint32 // Insertion order
}

type entry[T any] struct {
	item T
	text string
}

type scored struct {
	index      uint32
	score      int
	similarity float32
	indices    []int
}

// Matcher is a concurrent fuzzy index. Pushes take a short write lock on an
// append-only slice; scoring happens on the caller's goroutine in Tick.
type Matcher[T any] struct {
	cfg Config

	mu     sync.RWMutex
	items  []entry[T]
	sealed bool
	total  atomic.Uint32

	// Query state, owned by the consumer.
	qmu     sync.Mutex
	pattern string
	scanned uint32   // items[:scanned] have been scored against pattern
	pending []uint32 // earlier matches to rescore after a refinement
	matches []scored // sorted best first

	matched    atomic.Uint32
	scannedPos atomic.Uint32
	pendingLen atomic.Int64
}

// New creates an empty matcher.
func New[T any](cfg Config) *Matcher[T] {
	if cfg.TickBudget <= 0 {
		cfg.TickBudget = DefaultTickBudget
	}
	cfg.TickBudget = min(cfg.TickBudget, MaxTickBudget)
	return &Matcher[T]{cfg: cfg}
}

// Injector pushes items into a Matcher. It is safe for concurrent use and
// cheap to copy.
type Injector[T any] struct {
	m *Matcher[T]
}

// Injector returns a handle producers use to push items.
func (m *Matcher[T]) Injector() Injector[T] {
	return Injector[T]{m: m}
}

// Push adds item to the index. project returns the text the query is
// matched against. It reports false when the matcher has been closed and
// the item was dropped.
func (inj Injector[T]) Push(item T, project func(T) string) bool {
	text := project(item)

	m := inj.m
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.sealed {
		return false
	}
	m.items = append(m.items, entry[T]{item: item, text: text})
	m.total.Store(uint32(len(m.items)))
	return true
}

// Close seals the index. Later pushes are dropped, while queries keep
// working on what was ingested.
func (m *Matcher[T]) Close() {
	m.mu.Lock()
	m.sealed = true
	m.mu.Unlock()
}

// Find replaces the active query. Scoring happens on subsequent Ticks.
func (m *Matcher[T]) Find(pattern string) {
	m.qmu.Lock()
	defer m.qmu.Unlock()

	if pattern == m.pattern {
		return
	}

	// Subsequence matching is monotone: an item that misses the old pattern
	// misses any extension of it, so only earlier matches need rescoring.
	if m.pattern != "" && strings.HasPrefix(pattern, m.pattern) {
		for _, s := range m.matches {
			m.pending = append(m.pending, s.index)
		}
	} else {
		m.pending = nil
		m.scanned = 0
	}
	m.pattern = pattern
	m.matches = nil
	m.publish()
}

// Tick scores at most Config.TickBudget items: first the earlier matches
// left by a refinement, then items not yet scanned.
func (m *Matcher[T]) Tick() {
	m.qmu.Lock()
	defer m.qmu.Unlock()

	m.mu.RLock()
	items := m.items
	m.mu.RUnlock()

	budget := m.cfg.TickBudget
	var batch []uint32

	if n := min(budget, len(m.pending)); n > 0 {
		batch = append(batch, m.pending[:n]...)
		m.pending = m.pending[n:]
		if len(m.pending) == 0 {
			m.pending = nil
		}
		budget -= n
	}

	if end := min(int64(len(items)), int64(m.scanned)+int64(budget)); end > int64(m.scanned) {
		for i := m.scanned; int64(i) < end; i++ {
			batch = append(batch, i)
		}
		m.scanned = uint32(end)
	}

	if len(batch) > 0 {
		found := m.score(items, batch)
		slices.SortFunc(found, compareScored)
		m.matches = mergeSorted(m.matches, found)
	}
	m.publish()
}

// score runs the current pattern against the given items.
func (m *Matcher[T]) score(items []entry[T], batch []uint32) []scored {
	if m.pattern == "" {
		found := make([]scored, len(batch))
		for i, idx := range batch {
			found[i] = scored{index: idx}
		}
		return found
	}

	lowered := strings.ToLower(m.pattern)
	matches := fuzzy.FindFrom(m.pattern, batchSource[T]{items: items, batch: batch})
	found := make([]scored, 0, len(matches))
	for _, match := range matches {
		idx := batch[match.Index]
		found = append(found, scored{
			index:      idx,
			score:      match.Score,
			similarity: edlib.JaroWinklerSimilarity(lowered, strings.ToLower(items[idx].text)),
			indices:    match.MatchedIndexes,
		})
	}
	return found
}

// publish refreshes the lock-free counters. Callers hold qmu.
func (m *Matcher[T]) publish() {
	m.matched.Store(uint32(len(m.matches)))
	m.scannedPos.Store(m.scanned)
	m.pendingLen.Store(int64(len(m.pending)))
}

// Results returns up to count ranked items starting at offset.
func (m *Matcher[T]) Results(count, offset uint32) []Item[T] {
	m.qmu.Lock()
	defer m.qmu.Unlock()

	if offset >= uint32(len(m.matches)) || count == 0 {
		return nil
	}
	end := uint32(min(uint64(len(m.matches)), uint64(offset)+uint64(count)))

	m.mu.RLock()
	items := m.items
	m.mu.RUnlock()

	results := make([]Item[T], 0, end-offset)
	for _, s := range m.matches[offset:end] {
		results = append(results, m.item(items, s))
	}
	return results
}

// GetResult returns the item ranked at index.
func (m *Matcher[T]) GetResult(index uint32) (Item[T], bool) {
	m.qmu.Lock()
	defer m.qmu.Unlock()

	if index >= uint32(len(m.matches)) {
		return Item[T]{}, false
	}

	m.mu.RLock()
	items := m.items
	m.mu.RUnlock()

	return m.item(items, m.matches[index]), true
}

func (m *Matcher[T]) item(items []entry[T], s scored) Item[T] {
	e := items[s.index]
	return Item[T]{
		Inner:         e.item,
		MatchedString: e.text,
		MatchIndices:  s.indices,
		Score:         s.score,
		Index:         s.index,
	}
}

// MatchedCount returns the number of items matching the current query so
// far. It never blocks.
func (m *Matcher[T]) MatchedCount() uint32 {
	return m.matched.Load()
}

// TotalCount returns the number of items pushed. It never blocks.
func (m *Matcher[T]) TotalCount() uint32 {
	return m.total.Load()
}

// Running reports whether items are still waiting to be scored against the
// current query. It never blocks.
func (m *Matcher[T]) Running() bool {
	return m.pendingLen.Load() > 0 || m.scannedPos.Load() < m.total.Load()
}

// compareScored orders by score, then similarity to the query (both
// descending), then by insertion order.
func compareScored(a, b scored) int {
	if c := cmp.Compare(b.score, a.score); c != 0 {
		return c
	}
	if c := cmp.Compare(b.similarity, a.similarity); c != 0 {
		return c
	}
	return cmp.Compare(a.index, b.index)
}

// mergeSorted merges two slices sorted by compareScored.
func mergeSorted(a, b []scored) []scored {
	if len(a) == 0 {
		return b
	}
	if len(b) == 0 {
		return a
	}
	out := make([]scored, 0, len(a)+len(b))
	i, j := 0, 0
	for i < len(a) && j < len(b) {
		if compareScored(b[j], a[i]) < 0 {
			out = append(out, b[j])
			j++
		} else {
			out = append(out, a[i])
			i++
		}
	}
	out = append(out, a[i:]...)
	return append(out, b[j:]...)
}

// batchSource exposes a subset of the items to the fuzzy finder.
type batchSource[T any] struct {
	items []entry[T]
	batch []uint32
}

func (s batchSource[T]) String(i int) string { return s.items[s.batch[i]].text }

func (s batchSource[T]) Len() int { return len(s.batch) }
