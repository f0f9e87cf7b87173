package jsonstore

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/proberun/probe/internal/store"
)

type fakeRecord struct {
	ID    string `json:"id"`
	Value string `json:"value"`
}

func (f *fakeRecord) RecordID() string { return f.ID }

func TestPutGetRoundTrip(t *testing.T) {
	s, err := New(t.TempDir(), nil)
	require.NoError(t, err)
	defer s.Close()

	ctx := context.Background()
	in := &fakeRecord{ID: "run_1", Value: "hello"}
	require.NoError(t, s.Put(ctx, store.KindRun, in))

	var out fakeRecord
	ok, err := s.Get(ctx, store.KindRun, "run_1", &out)
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, *in, out)
}

func TestGetMissingReturnsNotFound(t *testing.T) {
	s, err := New(t.TempDir(), nil)
	require.NoError(t, err)
	defer s.Close()

	var out fakeRecord
	ok, err := s.Get(context.Background(), store.KindRun, "absent", &out)
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestDeleteThenGetNotFound(t *testing.T) {
	s, err := New(t.TempDir(), nil)
	require.NoError(t, err)
	defer s.Close()

	ctx := context.Background()
	require.NoError(t, s.Put(ctx, store.KindRun, &fakeRecord{ID: "run_1", Value: "x"}))
	require.NoError(t, s.Delete(ctx, store.KindRun, "run_1"))

	var out fakeRecord
	ok, err := s.Get(ctx, store.KindRun, "run_1", &out)
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestListReturnsAllIDs(t *testing.T) {
	s, err := New(t.TempDir(), nil)
	require.NoError(t, err)
	defer s.Close()

	ctx := context.Background()
	require.NoError(t, s.Put(ctx, store.KindPlan, &fakeRecord{ID: "plan_1"}))
	require.NoError(t, s.Put(ctx, store.KindPlan, &fakeRecord{ID: "plan_2"}))

	ids, err := s.List(ctx, store.KindPlan)
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{"plan_1", "plan_2"}, ids)
}
