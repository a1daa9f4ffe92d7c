package matcher

import (
	"fmt"
	"math"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func identity(s string) string { return s }

// drain ticks until every item has been scored.
func drain[T any](t *testing.T, m *Matcher[T]) {
	t.Helper()
	for i := 0; m.Running(); i++ {
		require.Less(t, i, 10_000, "matcher never settled")
		m.Tick()
	}
}

func newWith(values ...string) *Matcher[string] {
	m := New[string](DefaultConfig())
	inj := m.Injector()
	for _, v := range values {
		inj.Push(v, identity)
	}
	return m
}

func texts(items []Item[string]) []string {
	out := make([]string, len(items))
	for i, it := range items {
		out[i] = it.Inner
	}
	return out
}

func TestEmptyPatternMatchesEverything(t *testing.T) {
	m := newWith("alpha", "beta", "gamma")
	assert.True(t, m.Running())

	drain(t, m)
	assert.False(t, m.Running())
	assert.Equal(t, uint32(3), m.TotalCount())
	assert.Equal(t, uint32(3), m.MatchedCount())
	assert.Equal(t, []string{"alpha", "beta", "gamma"}, texts(m.Results(10, 0)))
}

func TestFind(t *testing.T) {
	m := newWith("hello", "world", "help me", "yellow")

	m.Find("hel")
	drain(t, m)

	results := m.Results(10, 0)
	require.Len(t, results, 2)
	assert.ElementsMatch(t, []string{"hello", "help me"}, texts(results))
	for _, r := range results {
		assert.Equal(t, []int{0, 1, 2}, r.MatchIndices)
		assert.Equal(t, r.Inner, r.MatchedString)
	}
}

func TestFindIsCaseInsensitive(t *testing.T) {
	m := newWith("README.md", "main.go")
	m.Find("readme")
	drain(t, m)
	assert.Equal(t, []string{"README.md"}, texts(m.Results(10, 0)))
}

func TestRankingAndTieBreak(t *testing.T) {
	m := newWith("abc", "xaxbxc", "abc")
	m.Find("abc")
	drain(t, m)

	results := m.Results(10, 0)
	require.Len(t, results, 3)
	// Consecutive matches score higher; equal entries keep insertion order
	assert.Equal(t, uint32(0), results[0].Index)
	assert.Equal(t, uint32(2), results[1].Index)
	assert.Equal(t, "xaxbxc", results[2].Inner)
}

func TestResultsPagination(t *testing.T) {
	values := make([]string, 50)
	for i := range values {
		values[i] = fmt.Sprintf("item-%02d", i)
	}
	m := newWith(values...)
	drain(t, m)

	assert.Len(t, m.Results(10, 0), 10)
	assert.Len(t, m.Results(10, 45), 5)
	assert.Empty(t, m.Results(10, 50))
	assert.Empty(t, m.Results(0, 0))

	page := m.Results(5, 10)
	for i, it := range page {
		got, ok := m.GetResult(uint32(10 + i))
		require.True(t, ok)
		assert.Equal(t, it.Inner, got.Inner)
	}

	_, ok := m.GetResult(50)
	assert.False(t, ok)
}

func TestResultsLargeCountAndOffset(t *testing.T) {
	m := newWith("alpha", "beta", "gamma")
	m.Tick()

	assert.Equal(t, []string{"beta", "gamma"}, texts(m.Results(math.MaxUint32, 1)))
	assert.Len(t, m.Results(math.MaxUint32, 0), 3)
	assert.Equal(t, []string{"gamma"}, texts(m.Results(math.MaxUint32-1, 2)))
	assert.Empty(t, m.Results(math.MaxUint32, math.MaxUint32))
}

func TestTickBudgetIsClamped(t *testing.T) {
	for _, budget := range []int64{math.MaxUint32, 1 << 32, math.MaxInt64} {
		t.Run(fmt.Sprint(budget), func(t *testing.T) {
			m := New[string](Config{TickBudget: int(budget)})
			inj := m.Injector()

			inj.Push("first", identity)
			m.Tick()
			inj.Push("second", identity)
			m.Tick()

			assert.Equal(t, uint32(2), m.TotalCount())
			assert.Equal(t, uint32(2), m.MatchedCount())
			assert.False(t, m.Running())
		})
	}
}

func TestTickBudget(t *testing.T) {
	m := New[string](Config{TickBudget: 10})
	inj := m.Injector()
	for i := 0; i < 35; i++ {
		inj.Push(fmt.Sprintf("line %d", i), identity)
	}

	m.Tick()
	assert.Equal(t, uint32(10), m.MatchedCount())
	assert.True(t, m.Running())

	ticks := 1
	for m.Running() {
		m.Tick()
		ticks++
	}
	assert.Equal(t, 4, ticks)
	assert.Equal(t, uint32(35), m.MatchedCount())
}

func TestRefinement(t *testing.T) {
	m := newWith("foo", "foobar", "bar", "fob")

	m.Find("fo")
	drain(t, m)
	assert.Equal(t, uint32(3), m.MatchedCount())

	m.Find("foo")
	assert.True(t, m.Running())
	drain(t, m)
	assert.ElementsMatch(t, []string{"foo", "foobar"}, texts(m.Results(10, 0)))

	// Items pushed after the refinement are still scanned
	m.Injector().Push("food", identity)
	drain(t, m)
	assert.ElementsMatch(t, []string{"foo", "foobar", "food"}, texts(m.Results(10, 0)))

	// Widening the query rescans everything
	m.Find("b")
	drain(t, m)
	assert.ElementsMatch(t, []string{"foobar", "bar", "fob"}, texts(m.Results(10, 0)))
}

func TestRefinementBeforeSettled(t *testing.T) {
	m := New[string](Config{TickBudget: 2})
	for _, v := range []string{"abc", "abd", "xyz", "abcd", "ab"} {
		m.Injector().Push(v, identity)
	}

	m.Find("ab")
	m.Tick()
	m.Find("abc")
	drain(t, m)
	assert.ElementsMatch(t, []string{"abc", "abcd"}, texts(m.Results(10, 0)))
}

func TestCloseDropsPushes(t *testing.T) {
	m := newWith("one")
	inj := m.Injector()

	m.Close()
	assert.False(t, inj.Push("two", identity))
	assert.Equal(t, uint32(1), m.TotalCount())

	drain(t, m)
	first := m.Results(10, 0)
	for i := 0; i < 5; i++ {
		m.Tick()
		assert.Equal(t, first, m.Results(10, 0))
	}
}

func TestConcurrentPushAndQuery(t *testing.T) {
	m := New[string](Config{TickBudget: 100})
	inj := m.Injector()

	var wg sync.WaitGroup
	for p := 0; p < 8; p++ {
		wg.Add(1)
		go func(p int) {
			defer wg.Done()
			for i := 0; i < 500; i++ {
				inj.Push(fmt.Sprintf("producer %d line %d", p, i), identity)
			}
		}(p)
	}

	m.Find("line")
	var last uint32
	for i := 0; i < 200; i++ {
		m.Tick()
		count := m.MatchedCount()
		assert.GreaterOrEqual(t, count, last)
		last = count
		m.Results(20, 0)
	}
	wg.Wait()

	drain(t, m)
	assert.Equal(t, uint32(4000), m.TotalCount())
	assert.Equal(t, uint32(4000), m.MatchedCount())
}

type record struct {
	path string
	line int
}

func TestProjection(t *testing.T) {
	m := New[record](DefaultConfig())
	m.Injector().Push(record{path: "a.txt", line: 3}, func(r record) string { return r.path })
	m.Find("a.txt")
	drain(t, m)

	it, ok := m.GetResult(0)
	require.True(t, ok)
	assert.Equal(t, 3, it.Inner.line)
	assert.Equal(t, "a.txt", it.MatchedString)
}
