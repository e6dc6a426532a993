package analyzer_test

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/redeyefit/fieldvision/internal/analyzer"
	"github.com/redeyefit/fieldvision/internal/models"
	"github.com/redeyefit/fieldvision/internal/storage"
	"github.com/redeyefit/fieldvision/internal/testutil"
)

func curatedFrames(n int) ([]models.CuratedFrame, []string) {
	frames := make([]models.CuratedFrame, n)
	paths := make([]string, n)
	for i := range frames {
		frames[i] = models.CuratedFrame{Index: i * 2, Offset: time.Duration(i*2) * time.Second, Data: []byte{0xff, 0xd8}}
		paths[i] = fmt.Sprintf("/frames/%d.jpg", i)
	}
	return frames, paths
}

type memoryStorage struct {
	mu      sync.Mutex
	results []models.AnalysisResult
	flushed bool
}

func (m *memoryStorage) AddResult(ctx context.Context, result models.AnalysisResult) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.results = append(m.results, result)
	return nil
}

func (m *memoryStorage) Flush() error {
	m.flushed = true
	return nil
}

func TestProcessFramesStoresOneResultPerFrame(t *testing.T) {
	frames, paths := curatedFrames(7)
	store := &memoryStorage{}

	p := analyzer.NewProcessor(analyzer.MockTagger{}, store, 3, testutil.Discard())
	require.NoError(t, p.ProcessFrames(context.Background(), frames, paths))

	assert.True(t, store.flushed)
	require.Len(t, store.results, 7)

	seen := map[int]bool{}
	for _, r := range store.results {
		seen[r.Index] = true
		var tags map[string]string
		require.NoError(t, json.Unmarshal([]byte(r.Content), &tags))
		assert.Equal(t, "mock-trade", tags["trade"])
		assert.Equal(t, r.Frame, tags["file"])
		assert.Equal(t, float64(r.Index), r.Offset)
	}
	for _, f := range frames {
		assert.True(t, seen[f.Index])
	}
}

type failingTagger struct{ failIndex int }

func (f failingTagger) Describe(ctx context.Context, item models.WorkItem) (string, error) {
	if item.Frame.Index == f.failIndex {
		return "", errors.New("model timeout")
	}
	return "ok", nil
}

func TestProcessFramesReportsFailuresAfterDraining(t *testing.T) {
	frames, paths := curatedFrames(5)
	store := &memoryStorage{}

	p := analyzer.NewProcessor(failingTagger{failIndex: 4}, store, 2, testutil.Discard())
	err := p.ProcessFrames(context.Background(), frames, paths)

	require.Error(t, err)
	assert.Contains(t, err.Error(), "model timeout")
	assert.Len(t, store.results, 4)
}

func TestProcessFramesValidatesInput(t *testing.T) {
	frames, paths := curatedFrames(2)
	p := analyzer.NewProcessor(analyzer.MockTagger{}, &memoryStorage{}, 1, testutil.Discard())

	assert.Error(t, p.ProcessFrames(context.Background(), frames, paths[:1]))
	assert.NoError(t, p.ProcessFrames(context.Background(), nil, nil))
}

func TestProcessFramesWithFileStorage(t *testing.T) {
	frames, paths := curatedFrames(3)
	store := storage.NewStorage(t.TempDir(), "site")

	p := analyzer.NewProcessor(analyzer.MockTagger{}, store, 2, testutil.Discard())
	require.NoError(t, p.ProcessFrames(context.Background(), frames, paths))

	results, err := store.LoadResults()
	require.NoError(t, err)
	assert.Len(t, results, 3)
}

func TestOpenAITaggerSendsImage(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.True(t, strings.HasSuffix(r.URL.Path, "/chat/completions"))
		var body map[string]any
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		raw, _ := json.Marshal(body)
		assert.Contains(t, string(raw), "data:image/jpeg;base64,")

		w.Header().Set("Content-Type", "application/json")
		fmt.Fprint(w, `{"id":"1","object":"chat.completion","model":"gpt-4o-mini","choices":[{"index":0,"message":{"role":"assistant","content":"drywall, 60% complete"},"finish_reason":"stop"}]}`)
	}))
	defer srv.Close()

	tagger := analyzer.NewOpenAITagger("test-key", srv.URL+"/v1", "gpt-4o-mini")
	frames, paths := curatedFrames(1)

	content, err := tagger.Describe(context.Background(), models.WorkItem{Frame: frames[0], Path: paths[0]})
	require.NoError(t, err)
	assert.Equal(t, "drywall, 60% complete", content)
}
