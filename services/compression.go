package services

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"log"
	"sync/atomic"

	"github.com/shawn-cake/smooshboost/models"
)

// Session holds state shared by every compression in one user session.
// The quota flag is monotonic: once set it stays set.
type Session struct {
	quotaExhausted atomic.Bool
}

func NewSession() *Session { return &Session{} }

func (s *Session) QuotaExhausted() bool { return s.quotaExhausted.Load() }

// MarkQuotaExhausted sets the flag and reports whether this call set it.
func (s *Session) MarkQuotaExhausted() bool { return s.quotaExhausted.CompareAndSwap(false, true) }

// CompressionResult is one compressed image and the engine that produced it.
type CompressionResult struct {
	Data   []byte
	Size   int64
	Engine models.CompressionEngine
	// FallbackReason is set when the preferred engine failed.
	FallbackReason string
}

// Outcome enumerates how a compression call ended.
type Outcome int

const (
	OutcomeOK Outcome = iota
	OutcomeUnsupported
	OutcomeFailed
)

func (o Outcome) String() string {
	switch o {
	case OutcomeOK:
		return "ok"
	case OutcomeUnsupported:
		return "unsupported"
	}
	return "failed"
}

// ClassifyCompression maps a Compress error onto an Outcome.
func ClassifyCompression(err error) Outcome {
	switch {
	case err == nil:
		return OutcomeOK
	case errors.Is(err, ErrUnsupportedFormat):
		return OutcomeUnsupported
	}
	return OutcomeFailed
}

// localPNGLevel is the optimisation level used on every PNG fallback path.
const localPNGLevel = 2

// CompressionRouter picks an engine per output format and applies the
// remote-compressor fallback policy.
type CompressionRouter struct {
	decoder   Decoder
	jpeg      Encoder
	webp      Encoder
	optimizer Optimizer
	remote    RemoteCompressor
}

// NewCompressionRouter wires the engines. remote may be nil, in which case
// PNG output always uses the local optimizer.
func NewCompressionRouter(decoder Decoder, jpeg, webp Encoder, optimizer Optimizer, remote RemoteCompressor) *CompressionRouter {
	return &CompressionRouter{decoder: decoder, jpeg: jpeg, webp: webp, optimizer: optimizer, remote: remote}
}

// NewCompressionRouterFromConfig builds the production engines.
func NewCompressionRouterFromConfig(cfg CompressionConfig) *CompressionRouter {
	dec := StdDecoder{}
	var remote RemoteCompressor
	if cfg.TinyPNG.BaseURL != "" {
		remote = NewTinyPNGClient(cfg.TinyPNG)
	}
	return NewCompressionRouter(dec,
		JpegliEncoder{Quality: cfg.JPEGQuality},
		WebPEncoder{Quality: float32(cfg.WebPQuality)},
		PNGOptimizer{Decoder: dec},
		remote)
}

// Compress runs data through the engine for out. Unsupported output formats
// return ErrUnsupportedFormat.
func (r *CompressionRouter) Compress(ctx context.Context, session *Session, data []byte, in models.InputFormat, out models.OutputFormat) (*CompressionResult, error) {
	switch out {
	case models.OutputPNG:
		return r.compressPNG(ctx, session, data, in)
	case models.OutputMozJPG:
		return r.encodeWith(r.jpeg, models.EngineMozJPEG, data)
	case models.OutputWebP:
		return r.encodeWith(r.webp, models.EngineWebP, data)
	}
	return nil, fmt.Errorf("%w: %s -> %s", ErrUnsupportedFormat, in, out)
}

func (r *CompressionRouter) encodeWith(enc Encoder, engine models.CompressionEngine, data []byte) (*CompressionResult, error) {
	img, err := r.decoder.Decode(data)
	if err != nil {
		return nil, err
	}
	encoded, err := enc.Encode(img)
	if err != nil {
		return nil, err
	}
	return newResult(encoded, engine), nil
}

func (r *CompressionRouter) compressPNG(ctx context.Context, session *Session, data []byte, in models.InputFormat) (*CompressionResult, error) {
	pngData := data
	if !bytes.HasPrefix(data, pngSignature) {
		img, err := r.decoder.Decode(data)
		if err != nil {
			return nil, err
		}
		if pngData, err = encodePNG(img, 1); err != nil {
			return nil, err
		}
	}

	if r.remote == nil || session.QuotaExhausted() {
		return r.optimise(pngData, "")
	}

	shrunk, err := r.remote.Shrink(ctx, pngData)
	if err == nil {
		if bytes.HasPrefix(shrunk, pngSignature) {
			return newResult(shrunk, models.EngineTinyPNG), nil
		}
		err = fmt.Errorf("%w: response is not a PNG", ErrRemoteCompressionFailed)
	}
	if ctx.Err() != nil {
		return nil, ctx.Err()
	}

	if errors.Is(err, ErrQuotaExhausted) {
		if session.MarkQuotaExhausted() {
			log.Printf("TinyPNG quota exhausted, using oxipng for the rest of the session")
		}
		return r.optimise(pngData, "TinyPNG quota exhausted")
	}
	log.Printf("TinyPNG failed for %s input, falling back to oxipng: %v", in, err)
	return r.optimise(pngData, err.Error())
}

func (r *CompressionRouter) optimise(pngData []byte, reason string) (*CompressionResult, error) {
	out, err := r.optimizer.Optimise(pngData, localPNGLevel)
	if err != nil {
		return nil, err
	}
	res := newResult(out, models.EngineOxiPNG)
	res.FallbackReason = reason
	return res, nil
}

func newResult(data []byte, engine models.CompressionEngine) *CompressionResult {
	return &CompressionResult{Data: data, Size: int64(len(data)), Engine: engine}
}
