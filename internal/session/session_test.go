package session_test

import (
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/KaramelBytes/dataloom/internal/analysis"
	"github.com/KaramelBytes/dataloom/internal/chat"
	"github.com/KaramelBytes/dataloom/internal/session"
	"github.com/KaramelBytes/dataloom/internal/table"
)

func numbers() *table.Table {
	return table.MustNew(
		table.NewColumn("v", table.KindInt, []any{int64(1), int64(5), int64(9), int64(12)}),
	)
}

func TestStoreCreateGetDelete(t *testing.T) {
	st := session.NewStore(time.Minute, 0)
	s := st.Create()
	got, err := st.Get(s.ID)
	require.NoError(t, err)
	assert.Same(t, s, got)
	assert.Equal(t, 1, st.Len())

	st.Delete(s.ID)
	_, err = st.Get(s.ID)
	assert.ErrorIs(t, err, session.ErrNotFound)
	_, err = st.Get("not-a-uuid")
	assert.ErrorIs(t, err, session.ErrNotFound)
}

func TestStoreExpires(t *testing.T) {
	st := session.NewStore(20*time.Millisecond, 0)
	var expired atomic.Int32
	unsubscribe := st.OnEvict(func(_ *session.Session, exp bool) {
		if exp {
			expired.Add(1)
		}
	})
	defer unsubscribe()

	s := st.Create()
	time.Sleep(40 * time.Millisecond)
	_, err := st.Get(s.ID)
	assert.ErrorIs(t, err, session.ErrNotFound)
	st.DeleteExpired()
	assert.Eventually(t, func() bool { return expired.Load() == 1 }, time.Second, 5*time.Millisecond)
	assert.Equal(t, 0, st.Len())
}

func TestRequireWithoutData(t *testing.T) {
	s := session.NewStore(0, 0).Create()
	_, err := s.Require()
	assert.ErrorIs(t, err, session.ErrNoData)
}

func TestFilterResultAdopt(t *testing.T) {
	s := session.NewStore(0, 0).Create()
	orig := numbers()
	s.Load("n.csv", orig)

	fs := s.AddFilter(analysis.Filter{Column: "v", Operator: analysis.OpGreaterThan, Value: 4})
	require.Len(t, fs, 1)

	data, _ := s.Data()
	res := analysis.Filter(data, s.Filters())
	s.SetResult(res, session.ResultFiltered)
	assert.Equal(t, 3, s.Info().ResultRows)

	adopted, kind, err := s.Adopt()
	require.NoError(t, err)
	assert.Equal(t, session.ResultFiltered, kind)
	assert.Equal(t, 3, adopted.NumRows())
	assert.Empty(t, s.Filters(), "adopting a filter result clears pending filters")
	assert.Equal(t, 4, orig.NumRows(), "original table untouched")

	_, _, err = s.Adopt()
	assert.ErrorIs(t, err, session.ErrNoResult)

	s.Reset()
	data, name := s.Data()
	assert.Same(t, orig, data)
	assert.Equal(t, "n.csv", name)
}

func TestRemoveFilter(t *testing.T) {
	s := session.NewStore(0, 0).Create()
	s.AddFilter(analysis.Filter{Column: "a", Operator: analysis.OpEquals, Value: "x"})
	s.AddFilter(analysis.Filter{Column: "b", Operator: analysis.OpEquals, Value: "y"})
	fs, err := s.RemoveFilter(0)
	require.NoError(t, err)
	require.Len(t, fs, 1)
	assert.Equal(t, "b", fs[0].Column)
	_, err = s.RemoveFilter(3)
	assert.ErrorIs(t, err, session.ErrBadFilter)
}

func TestReplaceDropsChat(t *testing.T) {
	s := session.NewStore(0, 0).Create()
	s.Load("n.csv", numbers())
	c1, err := s.Conversation(chat.Options{})
	require.NoError(t, err)
	c2, err := s.Conversation(chat.Options{})
	require.NoError(t, err)
	assert.Same(t, c1, c2)

	s.Replace(analysis.Clean(numbers(), analysis.CleaningOptions{RemoveDuplicates: true}))
	assert.Nil(t, s.ExistingConversation())
}

func TestConversationFollowsModel(t *testing.T) {
	s := session.NewStore(0, 0).Create()
	s.Load("n.csv", numbers())
	c1, err := s.Conversation(chat.Options{})
	require.NoError(t, err)
	assert.Equal(t, chat.DefaultModel, c1.Model())

	same, err := s.Conversation(chat.Options{Model: chat.DefaultModel})
	require.NoError(t, err)
	assert.Same(t, c1, same)

	c2, err := s.Conversation(chat.Options{Model: "llama3.1"})
	require.NoError(t, err)
	assert.NotSame(t, c1, c2)
	assert.Equal(t, "llama3.1", c2.Model())
	assert.Same(t, c2, s.ExistingConversation())
}

func TestResetClearsEverything(t *testing.T) {
	s := session.NewStore(0, 0).Create()
	orig := numbers()
	s.Load("n.csv", orig)
	s.AddFilter(analysis.Filter{Column: "v", Operator: analysis.OpGreaterThan, Value: "3"})
	_, err := s.Conversation(chat.Options{})
	require.NoError(t, err)

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(2)
		go func() {
			defer wg.Done()
			s.Reset()
		}()
		go func() {
			defer wg.Done()
			s.AddFilter(analysis.Filter{Column: "v", Operator: analysis.OpEquals, Value: "1"})
		}()
	}
	wg.Wait()

	s.Reset()
	data, _ := s.Data()
	assert.Same(t, orig, data)
	assert.Empty(t, s.Filters())
	assert.Nil(t, s.ExistingConversation())
	assert.Zero(t, s.Info().ResultRows)
}

func TestConcurrentReadersSeeWholeTables(t *testing.T) {
	s := session.NewStore(0, 0).Create()
	s.Load("n.csv", numbers())
	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(2)
		go func() {
			defer wg.Done()
			for j := 0; j < 100; j++ {
				s.Replace(numbers())
			}
		}()
		go func() {
			defer wg.Done()
			for j := 0; j < 100; j++ {
				d, _ := s.Data()
				if d.NumRows() != 4 {
					t.Errorf("torn read: %d rows", d.NumRows())
				}
			}
		}()
	}
	wg.Wait()
}
