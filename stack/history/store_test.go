package history

import (
	"testing"
	"time"

	"github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	log, _ := test.NewNullLogger()
	s, err := Open(StoreOptions{InMemory: true}, log)
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })

	clock := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
	s.now = func() time.Time {
		clock = clock.Add(time.Second)
		return clock
	}
	return s
}

func TestLatestEmpty(t *testing.T) {
	s := newTestStore(t)
	_, err := s.Latest("Todo")
	require.ErrorIs(t, err, ErrNoHistory)

	recs, err := s.List("Todo", 0)
	require.NoError(t, err)
	assert.Empty(t, recs)
}

func TestPutAndList(t *testing.T) {
	s := newTestStore(t)

	first, changed, err := s.Put("Todo", "json", 10, []byte(`{"v":1}`))
	require.NoError(t, err)
	assert.True(t, changed)
	assert.NotEmpty(t, first.ID)
	assert.Equal(t, Fingerprint([]byte(`{"v":1}`)), first.Fingerprint)

	same, changed, err := s.Put("Todo", "json", 10, []byte(`{"v":1}`))
	require.NoError(t, err)
	assert.False(t, changed, "identical documents are recorded once")
	assert.Equal(t, first.ID, same.ID)

	second, changed, err := s.Put("Todo", "json", 11, []byte(`{"v":2}`))
	require.NoError(t, err)
	assert.True(t, changed)

	_, _, err = s.Put("Other", "yaml", 1, []byte("v: 1\n"))
	require.NoError(t, err)

	recs, err := s.List("Todo", 0)
	require.NoError(t, err)
	require.Len(t, recs, 2)
	assert.Equal(t, second.ID, recs[0].ID, "newest first")
	assert.Equal(t, first.ID, recs[1].ID)
	assert.Equal(t, []byte(`{"v":2}`), recs[0].Document)
	assert.Equal(t, 11, recs[0].Resources)

	latest, err := s.Latest("Todo")
	require.NoError(t, err)
	assert.Equal(t, second.ID, latest.ID)

	limited, err := s.List("Todo", 1)
	require.NoError(t, err)
	assert.Len(t, limited, 1)
}

func TestFormatChangeIsRecorded(t *testing.T) {
	s := newTestStore(t)
	_, _, err := s.Put("Todo", "json", 1, []byte("doc"))
	require.NoError(t, err)
	_, changed, err := s.Put("Todo", "yaml", 1, []byte("doc"))
	require.NoError(t, err)
	assert.True(t, changed)
}

func TestIncrementBytes(t *testing.T) {
	assert.Equal(t, []byte("ab"), incrementBytes([]byte("aa")))
	assert.Equal(t, []byte{0x01}, incrementBytes([]byte{0x00, 0xff}))
	assert.Equal(t, []byte{0xff, 0xff}, incrementBytes([]byte{0xff}))
}
