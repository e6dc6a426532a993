package curator_test

import (
	"bytes"
	"context"
	"errors"
	"image"
	"image/jpeg"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/redeyefit/fieldvision/internal/curator"
	"github.com/redeyefit/fieldvision/internal/extractor"
	"github.com/redeyefit/fieldvision/internal/models"
	"github.com/redeyefit/fieldvision/internal/testutil"
)

var (
	sceneA = testutil.Split(64, 64, true)
	sceneB = testutil.Split(64, 64, false)
)

// alternating switches between a and b every period.
func alternating(a, b image.Image, period time.Duration) extractor.FrameSource {
	return func(offset time.Duration) (image.Image, error) {
		if (offset/period)%2 == 0 {
			return a, nil
		}
		return b, nil
	}
}

func newCurator(t *testing.T, dec extractor.VideoDecoder, enc curator.ImageEncoder) *curator.Curator {
	t.Helper()
	c, err := curator.New(dec, enc, curator.DefaultOptions(), testutil.Discard())
	require.NoError(t, err)
	return c
}

func curate(t *testing.T, c *curator.Curator, locator string) models.CurationResult {
	t.Helper()
	select {
	case res, ok := <-c.Curate(context.Background(), locator):
		require.True(t, ok, "result channel closed without a result")
		return res
	case <-time.After(30 * time.Second):
		t.Fatal("curation did not complete")
	}
	return models.CurationResult{}
}

func indices(frames []models.CuratedFrame) []int {
	var out []int
	for _, f := range frames {
		out = append(out, f.Index)
	}
	return out
}

func TestCurateIdenticalFramesYieldsOne(t *testing.T) {
	dec := extractor.NewSyntheticDecoder()
	noise := testutil.Noise(64, 64, 7)
	dec.Add("still.mp4", extractor.SyntheticVideo{
		Duration: 5 * time.Second,
		Source:   func(time.Duration) (image.Image, error) { return noise, nil },
	})

	res := curate(t, newCurator(t, dec, curator.JPEGEncoder{}), "still.mp4")

	require.NoError(t, res.Err)
	require.Len(t, res.Frames, 1)
	assert.Equal(t, 0, res.Frames[0].Index)
	assert.NotEmpty(t, res.RunID)
	assert.Equal(t, "still.mp4", res.Locator)
	assert.Zero(t, dec.OpenHandles())
}

func TestCurateAlternatingScenes(t *testing.T) {
	dec := extractor.NewSyntheticDecoder()
	dec.Add("site.mp4", extractor.SyntheticVideo{
		Duration: 30 * time.Second,
		Source:   alternating(sceneA, sceneB, 2*time.Second),
	})

	res := curate(t, newCurator(t, dec, curator.JPEGEncoder{}), "site.mp4")

	require.NoError(t, res.Err)
	require.Len(t, res.Frames, 15)
	for i, f := range res.Frames {
		assert.Equal(t, 2*i, f.Index)
		assert.Equal(t, time.Duration(2*i)*time.Second, f.Offset)
	}
}

func TestCurateCapsAtMaxFrames(t *testing.T) {
	dec := extractor.NewSyntheticDecoder()
	dec.Add("long.mp4", extractor.SyntheticVideo{
		Duration: 50 * time.Second,
		Source:   alternating(sceneA, sceneB, time.Second),
	})

	res := curate(t, newCurator(t, dec, curator.JPEGEncoder{}), "long.mp4")

	require.Len(t, res.Frames, 20)
	want := make([]int, 20)
	for i := range want {
		want[i] = i
	}
	assert.Equal(t, want, indices(res.Frames))
}

func TestCurateAllBlurredFallsBackToUnfiltered(t *testing.T) {
	dec := extractor.NewSyntheticDecoder()
	dec.Add("blurred.mp4", extractor.SyntheticVideo{
		Duration: 10 * time.Second,
		Source:   alternating(testutil.Ramp(64, 64, true), testutil.Ramp(64, 64, false), time.Second),
	})

	res := curate(t, newCurator(t, dec, curator.JPEGEncoder{}), "blurred.mp4")

	require.NoError(t, res.Err)
	assert.Equal(t, []int{0, 1, 2, 3, 4, 5, 6, 7, 8, 9}, indices(res.Frames))
}

func TestCurateDegenerateSources(t *testing.T) {
	dec := extractor.NewSyntheticDecoder()
	dec.Add("empty.mp4", extractor.SyntheticVideo{
		Duration: 0,
		Source:   func(time.Duration) (image.Image, error) { return sceneA, nil },
	})
	dec.Add("blip.mp4", extractor.SyntheticVideo{
		Duration: 300 * time.Millisecond,
		Source:   func(time.Duration) (image.Image, error) { return sceneA, nil },
	})
	dec.Add("broken.mp4", extractor.SyntheticVideo{
		Duration: 4 * time.Second,
		Source:   func(time.Duration) (image.Image, error) { return nil, errors.New("decode error") },
	})
	c := newCurator(t, dec, curator.JPEGEncoder{})

	for _, locator := range []string{"missing.mp4", "empty.mp4", "broken.mp4"} {
		res := curate(t, c, locator)
		assert.NoError(t, res.Err, locator)
		assert.True(t, res.Empty(), locator)
	}

	res := curate(t, c, "blip.mp4")
	assert.NoError(t, res.Err)
	assert.LessOrEqual(t, len(res.Frames), 1)
	assert.Zero(t, dec.OpenHandles())
}

func TestCurateIsDeterministic(t *testing.T) {
	dec := extractor.NewSyntheticDecoder()
	dec.Add("clip.mp4", extractor.SyntheticVideo{
		Duration: 12 * time.Second,
		Source: func(offset time.Duration) (image.Image, error) {
			return testutil.Noise(48, 48, int64(offset/time.Second)%3), nil
		},
	})
	c := newCurator(t, dec, curator.JPEGEncoder{})

	first := curate(t, c, "clip.mp4")
	second := curate(t, c, "clip.mp4")

	require.Equal(t, len(first.Frames), len(second.Frames))
	for i := range first.Frames {
		assert.Equal(t, first.Frames[i].Index, second.Frames[i].Index)
		assert.Equal(t, len(first.Frames[i].Data), len(second.Frames[i].Data))
	}
	assert.NotEqual(t, first.RunID, second.RunID)
}

func TestCurateProducesDecodableJPEG(t *testing.T) {
	dec := extractor.NewSyntheticDecoder()
	dec.Add("one.mp4", extractor.SyntheticVideo{
		Duration: time.Second,
		Source:   func(time.Duration) (image.Image, error) { return sceneA, nil },
	})

	res := curate(t, newCurator(t, dec, curator.JPEGEncoder{}), "one.mp4")

	require.Len(t, res.Frames, 1)
	img, err := jpeg.Decode(bytes.NewReader(res.Frames[0].Data))
	require.NoError(t, err)
	assert.Equal(t, image.Rect(0, 0, 64, 64), img.Bounds())
}

type flakyEncoder struct {
	calls int
	mu    sync.Mutex
}

func (e *flakyEncoder) Encode(img image.Image, quality float64) ([]byte, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.calls++
	if e.calls%2 == 0 {
		return nil, errors.New("encoder out of memory")
	}
	return curator.JPEGEncoder{}.Encode(img, quality)
}

func TestCurateDropsFramesThatFailToEncode(t *testing.T) {
	dec := extractor.NewSyntheticDecoder()
	dec.Add("site.mp4", extractor.SyntheticVideo{
		Duration: 8 * time.Second,
		Source:   alternating(sceneA, sceneB, time.Second),
	})

	res := curate(t, newCurator(t, dec, &flakyEncoder{}), "site.mp4")

	require.NoError(t, res.Err)
	assert.Equal(t, []int{0, 2, 4, 6}, indices(res.Frames))
}

func TestCurateCancelled(t *testing.T) {
	dec := extractor.NewSyntheticDecoder()
	dec.Add("site.mp4", extractor.SyntheticVideo{
		Duration: 8 * time.Second,
		Source:   alternating(sceneA, sceneB, time.Second),
	})
	c := newCurator(t, dec, curator.JPEGEncoder{})

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	res := <-c.Curate(ctx, "site.mp4")
	assert.ErrorIs(t, res.Err, context.Canceled)
	assert.True(t, res.Empty())
}

func TestCurateDeadlineExceeded(t *testing.T) {
	dec := extractor.NewSyntheticDecoder()
	dec.Add("slow.mp4", extractor.SyntheticVideo{
		Duration: 10 * time.Second,
		Source: func(offset time.Duration) (image.Image, error) {
			time.Sleep(20 * time.Millisecond)
			return alternating(sceneA, sceneB, time.Second)(offset)
		},
	})
	c := newCurator(t, dec, curator.JPEGEncoder{})

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Millisecond)
	defer cancel()

	res := <-c.Curate(ctx, "slow.mp4")
	assert.ErrorIs(t, res.Err, context.DeadlineExceeded)
	assert.True(t, res.Empty())
	assert.Zero(t, dec.OpenHandles())
}

func TestCurateDeliversExactlyOnce(t *testing.T) {
	dec := extractor.NewSyntheticDecoder()
	dec.Add("site.mp4", extractor.SyntheticVideo{
		Duration: 3 * time.Second,
		Source:   alternating(sceneA, sceneB, time.Second),
	})

	ch := newCurator(t, dec, curator.JPEGEncoder{}).Curate(context.Background(), "site.mp4")
	_, ok := <-ch
	assert.True(t, ok)
	_, ok = <-ch
	assert.False(t, ok)
}

func TestCurateConcurrentVideos(t *testing.T) {
	dec := extractor.NewSyntheticDecoder()
	for i, period := range []time.Duration{time.Second, 2 * time.Second, 3 * time.Second} {
		dec.Add(string(rune('a'+i))+".mp4", extractor.SyntheticVideo{
			Duration: 12 * time.Second,
			Source:   alternating(sceneA, sceneB, period),
		})
	}
	c := newCurator(t, dec, curator.JPEGEncoder{})

	results := map[string]<-chan models.CurationResult{}
	for _, name := range []string{"a.mp4", "b.mp4", "c.mp4"} {
		results[name] = c.Curate(context.Background(), name)
	}

	assert.Len(t, (<-results["a.mp4"]).Frames, 12)
	assert.Len(t, (<-results["b.mp4"]).Frames, 6)
	assert.Len(t, (<-results["c.mp4"]).Frames, 4)
	assert.Zero(t, dec.OpenHandles())
}

func TestNewRejectsInvalidOptions(t *testing.T) {
	dec := extractor.NewSyntheticDecoder()
	mutations := map[string]func(*curator.Options){
		"interval":   func(o *curator.Options) { o.SampleInterval = 0 },
		"sharpness":  func(o *curator.Options) { o.SharpnessThreshold = -1 },
		"dedup":      func(o *curator.Options) { o.DedupThreshold = 1.5 },
		"max frames": func(o *curator.Options) { o.MaxFrames = 0 },
		"quality":    func(o *curator.Options) { o.EncodeQuality = 0 },
		"workers":    func(o *curator.Options) { o.Workers = -2 },
	}

	for name, mutate := range mutations {
		t.Run(name, func(t *testing.T) {
			opts := curator.DefaultOptions()
			mutate(&opts)
			_, err := curator.New(dec, curator.JPEGEncoder{}, opts, testutil.Discard())
			assert.ErrorIs(t, err, curator.ErrInvalidConfig)
		})
	}

	_, err := curator.New(nil, curator.JPEGEncoder{}, curator.DefaultOptions(), testutil.Discard())
	assert.ErrorIs(t, err, curator.ErrInvalidConfig)
}

func TestSelect(t *testing.T) {
	var frames []models.Frame
	for i := 0; i < 25; i++ {
		frames = append(frames, models.Frame{Index: i})
	}

	assert.Len(t, curator.Select(frames, 20), 20)
	assert.Equal(t, 19, curator.Select(frames, 20)[19].Index)
	assert.Len(t, curator.Select(frames[:3], 20), 3)
	assert.Empty(t, curator.Select(nil, 20))
}

func TestJPEGEncoderQualityAffectsSize(t *testing.T) {
	img := testutil.Noise(64, 64, 3)
	low, err := curator.JPEGEncoder{}.Encode(img, 0.1)
	require.NoError(t, err)
	high, err := curator.JPEGEncoder{}.Encode(img, 1.0)
	require.NoError(t, err)
	assert.Less(t, len(low), len(high))
}
