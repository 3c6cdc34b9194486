package view

import (
	"context"
	"net/url"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLocationReplaceKeepsHistoryLength(t *testing.T) {
	loc, err := ParseLocation("/queries?mode=rag_retrieval")
	require.NoError(t, err)
	assert.Equal(t, "/queries", loc.Path())
	assert.Equal(t, "rag_retrieval", loc.Query().Get("mode"))

	loc.Replace("/queries", url.Values{"mode": {"direct_injection"}})
	assert.Equal(t, 1, loc.HistoryLen())
	assert.Equal(t, "/queries?mode=direct_injection", loc.String())

	loc.Push("/evaluation", nil)
	assert.Equal(t, 2, loc.HistoryLen())
	assert.Equal(t, "/evaluation", loc.String())

	assert.True(t, loc.Back())
	assert.Equal(t, "/queries?mode=direct_injection", loc.String())
	assert.False(t, loc.Back())
}

func TestParseLocationDefaultsToRoot(t *testing.T) {
	loc, err := ParseLocation("")
	require.NoError(t, err)
	assert.Equal(t, "/", loc.String())

	loc, err = ParseLocation("?q=faq")
	require.NoError(t, err)
	assert.Equal(t, "/", loc.Path())
	assert.Equal(t, "faq", loc.Query().Get("q"))
}

func TestLocationCleansPaths(t *testing.T) {
	loc, err := ParseLocation("/queries/?mode=rag_retrieval")
	require.NoError(t, err)
	assert.Equal(t, "/queries", loc.Path())
	assert.Equal(t, "/queries?mode=rag_retrieval", loc.String())

	loc.Push("knowledge-bases/4/", nil)
	assert.Equal(t, "/knowledge-bases/4", loc.Path())

	for raw, want := range map[string]string{"": "/", "/": "/", "//": "/", " /evaluation ": "/evaluation", "queries": "/queries"} {
		assert.Equal(t, want, CleanPath(raw), raw)
	}
}

func TestPickKeepsListedKeys(t *testing.T) {
	values := url.Values{"mode": {"rag_retrieval"}, "q": {"faq"}, "page": {"2"}}
	assert.Equal(t, url.Values{"mode": {"rag_retrieval"}}, Pick(values, "mode", "sort_by"))
}

func TestLoopRunsDispatchedCallbacksInOrder(t *testing.T) {
	loop := NewLoop()
	var got []int

	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		for i := 0; i < 3; i++ {
			loop.Dispatch(func() { got = append(got, i) })
		}
	}()
	wg.Wait()

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	require.NoError(t, loop.RunUntil(ctx, func() bool { return len(got) == 3 }))
	assert.Equal(t, []int{0, 1, 2}, got)
}

func TestLoopDropsCallbacksAfterClose(t *testing.T) {
	loop := NewLoop()
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	assert.ErrorIs(t, loop.Run(ctx), context.Canceled)

	called := false
	loop.Dispatch(func() { called = true })
	loop.Flush()
	assert.False(t, called)
}
