package worker

import (
	"context"
	"encoding/base64"
	"errors"
	"os"
	"path/filepath"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"fit2tp/internal/fitfile"
	"fit2tp/internal/metrics"
	"fit2tp/internal/upload"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest"
	"go.uber.org/zap/zaptest/observer"
)

type classifierFunc func(ctx context.Context, path string) (bool, error)

func (f classifierFunc) IsWorkout(ctx context.Context, path string) (bool, error) {
	return f(ctx, path)
}

type recordingClient struct {
	mu       sync.Mutex
	payloads []upload.Payload
	outcome  upload.Outcome
}

func (c *recordingClient) Upload(_ context.Context, payload upload.Payload) upload.Outcome {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.payloads = append(c.payloads, payload)
	return c.outcome
}

func writeFile(t *testing.T, name, content string) FileTask {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	return FileTask{Path: path, FileName: name}
}

func TestPoolClassify(t *testing.T) {
	defer goleak.VerifyNone(t)

	pool := NewPool(2, classifierFunc(func(_ context.Context, path string) (bool, error) {
		switch filepath.Base(path) {
		case "bad.fit":
			return false, fitfile.ErrDecode
		case "yes.fit":
			return true, nil
		}
		return false, nil
	}), zaptest.NewLogger(t))
	pool.Start()
	defer pool.Stop()

	ok, err := pool.Classify(context.Background(), "/x/yes.fit")
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = pool.Classify(context.Background(), "/x/no.fit")
	require.NoError(t, err)
	assert.False(t, ok)

	_, err = pool.Classify(context.Background(), "/x/bad.fit")
	assert.ErrorIs(t, err, fitfile.ErrDecode)
}

func TestPoolBoundsDecodeConcurrency(t *testing.T) {
	defer goleak.VerifyNone(t)

	const size = 3
	var inflight, peak atomic.Int32

	pool := NewPool(size, classifierFunc(func(context.Context, string) (bool, error) {
		n := inflight.Add(1)
		for {
			old := peak.Load()
			if n <= old || peak.CompareAndSwap(old, n) {
				break
			}
		}
		time.Sleep(5 * time.Millisecond)
		inflight.Add(-1)
		return true, nil
	}), zap.NewNop())
	pool.Start()

	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := pool.Classify(context.Background(), "f.fit")
			assert.NoError(t, err)
		}()
	}
	wg.Wait()
	pool.Stop()

	assert.LessOrEqual(t, peak.Load(), int32(size))
	assert.Positive(t, peak.Load())
}

func TestPoolRecoversDecoderPanic(t *testing.T) {
	defer goleak.VerifyNone(t)

	pool := NewPool(1, classifierFunc(func(context.Context, string) (bool, error) {
		panic("corrupt message table")
	}), zap.NewNop())
	pool.Start()
	defer pool.Stop()

	_, err := pool.Classify(context.Background(), "boom.fit")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "corrupt message table")

	// The worker survives and keeps serving.
	_, err = pool.Classify(context.Background(), "boom.fit")
	require.Error(t, err)
}

func TestPoolClosed(t *testing.T) {
	pool := NewPool(1, classifierFunc(func(context.Context, string) (bool, error) { return true, nil }), zap.NewNop())
	pool.Start()
	pool.Stop()
	pool.Stop()

	_, err := pool.Classify(context.Background(), "a.fit")
	assert.ErrorIs(t, err, ErrPoolClosed)
}

func TestPoolClassifyCancelled(t *testing.T) {
	defer goleak.VerifyNone(t)

	release := make(chan struct{})
	pool := NewPool(1, classifierFunc(func(context.Context, string) (bool, error) {
		<-release
		return true, nil
	}), zap.NewNop())
	pool.Start()

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() {
		_, err := pool.Classify(ctx, "slow.fit")
		done <- err
	}()

	cancel()
	assert.ErrorIs(t, <-done, context.Canceled)

	close(release)
	pool.Stop()
}

func newProcessor(t *testing.T, classify classifierFunc, client upload.Client) (*TaskProcessor, *metrics.Collector, *observer.ObservedLogs) {
	t.Helper()

	core, logs := observer.New(zapcore.DebugLevel)
	logger := zap.New(core)

	pool := NewPool(2, classify, logger)
	pool.Start()
	t.Cleanup(pool.Stop)

	collector := metrics.New()
	p := NewTaskProcessor(Config{AthleteID: 99, UploadClient: upload.UploadClientTag}, pool, client, collector, logger)
	return p, collector, logs
}

func TestProcessUploadsWorkout(t *testing.T) {
	task := writeFile(t, "ride.fit", "raw\x00fit\xffbytes")
	client := &recordingClient{outcome: upload.Uploaded(200)}
	p, collector, logs := newProcessor(t, func(context.Context, string) (bool, error) { return true, nil }, client)

	out := p.Process(context.Background(), task)
	assert.Equal(t, upload.OutcomeUploaded, out.Kind)

	require.Len(t, client.payloads, 1)
	got := client.payloads[0]
	assert.Equal(t, "ride.fit", got.FileName)
	assert.Equal(t, uint64(99), got.AthleteID)
	raw, err := base64.StdEncoding.DecodeString(got.EncodedContent)
	require.NoError(t, err)
	assert.Equal(t, "raw\x00fit\xffbytes", string(raw))

	s := collector.GetProgressTracker().GetStatus()
	assert.Equal(t, int64(1), s.Processed)
	assert.Equal(t, int64(1), s.Uploaded)
	assert.Equal(t, int64(len("raw\x00fit\xffbytes")), s.BytesSent)
	assert.Equal(t, 1, logs.FilterMessage("Successfully uploaded FIT file").Len())
}

func TestProcessSkipsNonWorkout(t *testing.T) {
	task := writeFile(t, "settings.fit", "x")
	client := &recordingClient{outcome: upload.Uploaded(200)}
	p, collector, _ := newProcessor(t, func(context.Context, string) (bool, error) { return false, nil }, client)

	out := p.Process(context.Background(), task)
	assert.Equal(t, upload.OutcomeSkipped, out.Kind)
	assert.Empty(t, client.payloads)
	assert.Equal(t, int64(1), collector.GetProgressTracker().GetStatus().Skipped)
}

func TestProcessDecodeFailure(t *testing.T) {
	task := writeFile(t, "broken.fit", "x")
	client := &recordingClient{outcome: upload.Uploaded(200)}
	p, collector, logs := newProcessor(t, func(context.Context, string) (bool, error) {
		return false, fitfile.ErrDecode
	}, client)

	out := p.Process(context.Background(), task)
	assert.Equal(t, upload.OutcomeFailed, out.Kind)
	assert.ErrorIs(t, out.Err, fitfile.ErrDecode)
	assert.Empty(t, client.payloads)
	assert.Equal(t, int64(1), collector.GetProgressTracker().GetStatus().Failed)
	assert.Equal(t, 1, logs.FilterMessage("Cannot classify FIT file").Len())
}

func TestProcessReadFailure(t *testing.T) {
	task := FileTask{Path: filepath.Join(t.TempDir(), "vanished.fit"), FileName: "vanished.fit"}
	client := &recordingClient{outcome: upload.Uploaded(200)}
	p, _, logs := newProcessor(t, func(context.Context, string) (bool, error) { return true, nil }, client)

	out := p.Process(context.Background(), task)
	assert.Equal(t, upload.OutcomeFailed, out.Kind)
	assert.ErrorIs(t, out.Err, fitfile.ErrRead)
	assert.Empty(t, client.payloads)
	assert.Equal(t, 1, logs.FilterMessage("Cannot read FIT file").Len())
}

func TestProcessRejectionIsLoggedWithBody(t *testing.T) {
	task := writeFile(t, "dup.fit", "x")
	client := &recordingClient{outcome: upload.Rejected(409, "already uploaded")}
	p, collector, logs := newProcessor(t, func(context.Context, string) (bool, error) { return true, nil }, client)

	out := p.Process(context.Background(), task)
	assert.Equal(t, upload.OutcomeRejected, out.Kind)

	entries := logs.FilterMessage("Failed to upload FIT file").All()
	require.Len(t, entries, 1)
	assert.Equal(t, "already uploaded", entries[0].ContextMap()["response"])
	assert.Equal(t, int64(1), collector.GetProgressTracker().GetStatus().Rejected)
}

func TestProcessCancelledContext(t *testing.T) {
	task := writeFile(t, "late.fit", "x")
	client := &recordingClient{outcome: upload.Uploaded(200)}
	p, collector, _ := newProcessor(t, func(context.Context, string) (bool, error) { return true, nil }, client)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	out := p.Process(ctx, task)
	assert.Equal(t, upload.OutcomeFailed, out.Kind)
	assert.True(t, errors.Is(out.Err, context.Canceled))
	assert.Empty(t, client.payloads)
	assert.Equal(t, int64(1), collector.GetProgressTracker().GetStatus().Processed)
}
