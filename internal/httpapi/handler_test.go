package httpapi

import (
	"bytes"
	"context"
	"encoding/json"
	"testing"

	"github.com/cloudwego/hertz/pkg/common/ut"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/proberun/probe/internal/artifacts"
	"github.com/proberun/probe/internal/domain"
	"github.com/proberun/probe/internal/store/jsonstore"
)

type fakeLauncher struct {
	launched []string
	err      error
}

func (l *fakeLauncher) Launch(ctx context.Context, run *domain.Run, maxPages int) error {
	if l.err != nil {
		return l.err
	}
	l.launched = append(l.launched, run.RunID)
	run.Status = domain.RunCompleted
	return nil
}

func buildTestRouter(t *testing.T) (*Router, *fakeLauncher) {
	t.Helper()
	st, err := jsonstore.New(t.TempDir(), zap.NewNop())
	require.NoError(t, err)
	am, err := artifacts.NewManager(t.TempDir())
	require.NoError(t, err)

	launcher := &fakeLauncher{}
	handler := NewHandler(st, am, NewProgressStore(), launcher, 50, zap.NewNop())
	return NewRouter(handler), launcher
}

func TestCreateRunRequiresTargetOrPath(t *testing.T) {
	r, _ := buildTestRouter(t)
	s := r.Build(":0")

	body := []byte(`{}`)
	w := ut.PerformRequest(s.Engine, "POST", "/run", &ut.Body{Body: bytes.NewReader(body), Len: len(body)})
	assert.Equal(t, 400, w.Result().StatusCode())
}

func TestCreateRunThenGetRunRoundTrips(t *testing.T) {
	r, launcher := buildTestRouter(t)
	s := r.Build(":0")

	body := []byte(`{"target_url":"https://example.test"}`)
	w := ut.PerformRequest(s.Engine, "POST", "/run", &ut.Body{Body: bytes.NewReader(body), Len: len(body)})
	require.Equal(t, 202, w.Result().StatusCode())

	var created createRunResponse
	require.NoError(t, json.Unmarshal(w.Body(), &created))
	require.NotEmpty(t, created.RunID)
	assert.Contains(t, launcher.launched, created.RunID)

	w = ut.PerformRequest(s.Engine, "GET", "/run/"+created.RunID, nil)
	assert.Equal(t, 200, w.Result().StatusCode())

	var run domain.Run
	require.NoError(t, json.Unmarshal(w.Body(), &run))
	assert.Equal(t, created.RunID, run.RunID)
}

func TestGetRunMissingReturns404(t *testing.T) {
	r, _ := buildTestRouter(t)
	s := r.Build(":0")

	w := ut.PerformRequest(s.Engine, "GET", "/run/does-not-exist", nil)
	assert.Equal(t, 404, w.Result().StatusCode())
}

func TestGetArtifactRejectsUnknownName(t *testing.T) {
	r, _ := buildTestRouter(t)
	s := r.Build(":0")

	w := ut.PerformRequest(s.Engine, "GET", "/run/abc/artifacts/not_a_real_artifact", nil)
	assert.Equal(t, 400, w.Result().StatusCode())
}

func TestListRunsReflectsCreatedRuns(t *testing.T) {
	r, _ := buildTestRouter(t)
	s := r.Build(":0")

	body := []byte(`{"target_url":"https://example.test"}`)
	ut.PerformRequest(s.Engine, "POST", "/run", &ut.Body{Body: bytes.NewReader(body), Len: len(body)})

	w := ut.PerformRequest(s.Engine, "GET", "/runs", nil)
	assert.Equal(t, 200, w.Result().StatusCode())

	var listed map[string][]string
	require.NoError(t, json.Unmarshal(w.Body(), &listed))
	assert.Len(t, listed["run_ids"], 1)
}

func TestDeleteRunRemovesRecord(t *testing.T) {
	r, _ := buildTestRouter(t)
	s := r.Build(":0")

	body := []byte(`{"target_url":"https://example.test"}`)
	w := ut.PerformRequest(s.Engine, "POST", "/run", &ut.Body{Body: bytes.NewReader(body), Len: len(body)})
	var created createRunResponse
	require.NoError(t, json.Unmarshal(w.Body(), &created))

	w = ut.PerformRequest(s.Engine, "DELETE", "/run/"+created.RunID, nil)
	assert.Equal(t, 204, w.Result().StatusCode())

	w = ut.PerformRequest(s.Engine, "GET", "/run/"+created.RunID, nil)
	assert.Equal(t, 404, w.Result().StatusCode())
}

func TestHealthCheck(t *testing.T) {
	r, _ := buildTestRouter(t)
	s := r.Build(":0")

	w := ut.PerformRequest(s.Engine, "GET", "/health", nil)
	assert.Equal(t, 200, w.Result().StatusCode())
}
