package services

import (
	"bytes"
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/shawn-cake/smooshboost/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeTinyPNG serves the shrink/output protocol. status overrides the
// shrink response when non-zero.
type fakeTinyPNG struct {
	server  *httptest.Server
	shrinks atomic.Int32
	status  atomic.Int32
	output  []byte
	gotPNG  atomic.Bool
}

func newFakeTinyPNG(t *testing.T, output []byte) *fakeTinyPNG {
	f := &fakeTinyPNG{output: output}
	mux := http.NewServeMux()
	mux.HandleFunc("/shrink", func(w http.ResponseWriter, r *http.Request) {
		f.shrinks.Add(1)
		body, _ := io.ReadAll(r.Body)
		f.gotPNG.Store(bytes.HasPrefix(body, pngSignature) && r.Header.Get("Content-Type") == "image/png")
		if s := int(f.status.Load()); s != 0 {
			w.WriteHeader(s)
			w.Write([]byte(`{"error":"TooManyRequests","message":"Your monthly limit has been exceeded"}`))
			return
		}
		w.Header().Set("Location", "https://api.tinify.com/output/abc123")
		w.WriteHeader(http.StatusCreated)
		w.Write([]byte(`{"input":{},"output":{}}`))
	})
	mux.HandleFunc("/output/abc123", func(w http.ResponseWriter, r *http.Request) {
		w.Write(f.output)
	})
	f.server = httptest.NewServer(mux)
	t.Cleanup(f.server.Close)
	return f
}

func newTestRouter(remote RemoteCompressor) *CompressionRouter {
	dec := StdDecoder{}
	return NewCompressionRouter(dec, JpegliEncoder{Quality: 75}, WebPEncoder{Quality: 75}, PNGOptimizer{Decoder: dec}, remote)
}

func TestCompressPNGUsesRemote(t *testing.T) {
	shrunk := encodeTestPNG(t, 4, 4)
	fake := newFakeTinyPNG(t, shrunk)
	router := newTestRouter(NewTinyPNGClient(TinyPNGConfig{BaseURL: fake.server.URL}))

	res, err := router.Compress(context.Background(), NewSession(), encodeTestPNG(t, 64, 64), models.InputPNG, models.OutputPNG)
	require.NoError(t, err)
	assert.Equal(t, models.EngineTinyPNG, res.Engine)
	assert.Equal(t, shrunk, res.Data)
	assert.Equal(t, int64(len(shrunk)), res.Size)
	assert.True(t, fake.gotPNG.Load())
}

func TestCompressQuotaExhaustionIsSticky(t *testing.T) {
	fake := newFakeTinyPNG(t, encodeTestPNG(t, 4, 4))
	fake.status.Store(http.StatusTooManyRequests)
	router := newTestRouter(NewTinyPNGClient(TinyPNGConfig{BaseURL: fake.server.URL}))
	session := NewSession()
	src := encodeTestPNG(t, 64, 64)

	res, err := router.Compress(context.Background(), session, src, models.InputPNG, models.OutputPNG)
	require.NoError(t, err)
	assert.Equal(t, models.EngineOxiPNG, res.Engine)
	assert.Equal(t, "TinyPNG quota exhausted", res.FallbackReason)
	assert.True(t, session.QuotaExhausted())
	assert.Equal(t, int32(1), fake.shrinks.Load())

	// the service recovers, but this session no longer asks it
	fake.status.Store(0)
	for i := 0; i < 3; i++ {
		res, err = router.Compress(context.Background(), session, src, models.InputPNG, models.OutputPNG)
		require.NoError(t, err)
		assert.Equal(t, models.EngineOxiPNG, res.Engine)
		assert.Empty(t, res.FallbackReason)
	}
	assert.Equal(t, int32(1), fake.shrinks.Load())

	// a fresh session does
	res, err = router.Compress(context.Background(), NewSession(), src, models.InputPNG, models.OutputPNG)
	require.NoError(t, err)
	assert.Equal(t, models.EngineTinyPNG, res.Engine)
}

func TestCompressTransientFailureIsOneShot(t *testing.T) {
	fake := newFakeTinyPNG(t, encodeTestPNG(t, 4, 4))
	fake.status.Store(http.StatusInternalServerError)
	router := newTestRouter(NewTinyPNGClient(TinyPNGConfig{BaseURL: fake.server.URL}))
	session := NewSession()
	src := encodeTestPNG(t, 32, 32)

	res, err := router.Compress(context.Background(), session, src, models.InputPNG, models.OutputPNG)
	require.NoError(t, err)
	assert.Equal(t, models.EngineOxiPNG, res.Engine)
	assert.Contains(t, res.FallbackReason, "500")
	assert.False(t, session.QuotaExhausted())

	fake.status.Store(0)
	res, err = router.Compress(context.Background(), session, src, models.InputPNG, models.OutputPNG)
	require.NoError(t, err)
	assert.Equal(t, models.EngineTinyPNG, res.Engine)
	assert.Equal(t, int32(2), fake.shrinks.Load())
}

func TestCompressRejectsNonPNGRemoteOutput(t *testing.T) {
	fake := newFakeTinyPNG(t, []byte("<html>oops</html>"))
	router := newTestRouter(NewTinyPNGClient(TinyPNGConfig{BaseURL: fake.server.URL}))

	res, err := router.Compress(context.Background(), NewSession(), encodeTestPNG(t, 16, 16), models.InputPNG, models.OutputPNG)
	require.NoError(t, err)
	assert.Equal(t, models.EngineOxiPNG, res.Engine)
	assert.True(t, bytes.HasPrefix(res.Data, pngSignature))
}

func TestCompressUnreachableRemoteFallsBack(t *testing.T) {
	fake := newFakeTinyPNG(t, nil)
	url := fake.server.URL
	fake.server.Close()
	router := newTestRouter(NewTinyPNGClient(TinyPNGConfig{BaseURL: url}))
	session := NewSession()

	res, err := router.Compress(context.Background(), session, encodeTestPNG(t, 16, 16), models.InputPNG, models.OutputPNG)
	require.NoError(t, err)
	assert.Equal(t, models.EngineOxiPNG, res.Engine)
	assert.False(t, session.QuotaExhausted())
}

func TestCompressJPEGInputToPNGTranscodesFirst(t *testing.T) {
	fake := newFakeTinyPNG(t, encodeTestPNG(t, 4, 4))
	router := newTestRouter(NewTinyPNGClient(TinyPNGConfig{BaseURL: fake.server.URL}))

	res, err := router.Compress(context.Background(), NewSession(), encodeTestJPEG(t, 16, 16), models.InputJPG, models.OutputPNG)
	require.NoError(t, err)
	assert.Equal(t, models.EngineTinyPNG, res.Engine)
	assert.True(t, fake.gotPNG.Load())
}

func TestCompressWithoutRemote(t *testing.T) {
	router := newTestRouter(nil)
	res, err := router.Compress(context.Background(), NewSession(), encodeTestJPEG(t, 16, 16), models.InputJPG, models.OutputPNG)
	require.NoError(t, err)
	assert.Equal(t, models.EngineOxiPNG, res.Engine)
	assert.True(t, bytes.HasPrefix(res.Data, pngSignature))
}

func TestCompressLocalEncoders(t *testing.T) {
	router := newTestRouter(nil)

	res, err := router.Compress(context.Background(), NewSession(), encodeTestPNG(t, 32, 24), models.InputPNG, models.OutputMozJPG)
	require.NoError(t, err)
	assert.Equal(t, models.EngineMozJPEG, res.Engine)
	assert.True(t, bytes.HasPrefix(res.Data, jpegSignature))

	res, err = router.Compress(context.Background(), NewSession(), encodeTestJPEG(t, 32, 24), models.InputJPG, models.OutputWebP)
	require.NoError(t, err)
	assert.Equal(t, models.EngineWebP, res.Engine)
	assert.True(t, isWebP(res.Data))
}

func TestCompressUnsupported(t *testing.T) {
	router := newTestRouter(nil)
	_, err := router.Compress(context.Background(), NewSession(), encodeTestPNG(t, 4, 4), models.InputPNG, "avif")
	require.ErrorIs(t, err, ErrUnsupportedFormat)
	assert.Equal(t, OutcomeUnsupported, ClassifyCompression(err))
	assert.Equal(t, OutcomeOK, ClassifyCompression(nil))
	assert.Equal(t, OutcomeFailed, ClassifyCompression(errors.New("decode failed")))
}

func TestCompressCancelled(t *testing.T) {
	fake := newFakeTinyPNG(t, encodeTestPNG(t, 4, 4))
	router := newTestRouter(NewTinyPNGClient(TinyPNGConfig{BaseURL: fake.server.URL}))
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := router.Compress(ctx, NewSession(), encodeTestPNG(t, 8, 8), models.InputPNG, models.OutputPNG)
	assert.ErrorIs(t, err, context.Canceled)
}

func TestSessionMarkQuotaExhaustedOnce(t *testing.T) {
	s := NewSession()
	var wg sync.WaitGroup
	var winners atomic.Int32
	for i := 0; i < 16; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if s.MarkQuotaExhausted() {
				winners.Add(1)
			}
		}()
	}
	wg.Wait()
	assert.Equal(t, int32(1), winners.Load())
	assert.True(t, s.QuotaExhausted())
}
