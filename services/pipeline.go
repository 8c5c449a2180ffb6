package services

import (
	"context"
	"log"

	"github.com/shawn-cake/smooshboost/models"
)

// Compressor is the compression stage of the pipeline.
type Compressor interface {
	Compress(ctx context.Context, session *Session, data []byte, in models.InputFormat, out models.OutputFormat) (*CompressionResult, error)
}

// Injector is the metadata stage of the pipeline.
type Injector interface {
	Inject(data []byte, format string, opts models.MetadataOptions) (*InjectionResult, error)
}

// Pipeline runs one image through compression and boosting and records the
// outcome on the item. It never owns a collection of items.
type Pipeline struct {
	compressor Compressor
	injector   Injector
}

func NewPipeline(compressor Compressor, injector Injector) *Pipeline {
	return &Pipeline{compressor: compressor, injector: injector}
}

// CompressItem compresses original to item.OutputFormat. On success the item
// is complete and the compressed bytes are returned; on failure the item is
// marked as errored and the error is returned.
func (p *Pipeline) CompressItem(ctx context.Context, session *Session, item *models.ImageItem, original []byte) ([]byte, error) {
	item.Status = models.StatusCompressing
	item.Error = nil

	res, err := p.compressor.Compress(ctx, session, original, item.InputFormat, item.OutputFormat)
	if err != nil {
		msg := err.Error()
		if ClassifyCompression(err) == OutcomeUnsupported {
			msg = "Unsupported format: " + string(item.InputFormat) + " to " + string(item.OutputFormat)
		}
		item.Status = models.StatusError
		item.Error = &msg
		return nil, err
	}
	if res.FallbackReason != "" {
		log.Printf("Compressed %s with %s (fallback: %s)", item.Name, res.Engine, res.FallbackReason)
	}

	engine := res.Engine
	size := res.Size
	item.Status = models.StatusComplete
	item.Engine = &engine
	item.CompressedSize = &size
	return res.Data, nil
}

// BoostItem injects the item's metadata options into source, which is in
// the injector format named by format. Items with nothing to inject are
// skipped. A failed injection leaves source as the final output.
func (p *Pipeline) BoostItem(item *models.ImageItem, source []byte, format string) ([]byte, error) {
	item.BoostError = nil
	item.Applied = nil
	item.Warnings = nil

	if !item.MetadataOptions.HasMetadataToInject() {
		item.BoostStatus = models.BoostSkipped
		return source, nil
	}

	item.BoostStatus = models.BoostRunning
	res, err := p.injector.Inject(source, format, item.MetadataOptions)
	if err != nil {
		msg := err.Error()
		size := int64(len(source))
		item.BoostStatus = models.BoostFailed
		item.BoostError = &msg
		item.FinalSize = &size
		return source, err
	}

	size := int64(len(res.Data))
	item.BoostStatus = models.BoostDone
	item.FinalSize = &size
	item.Warnings = res.Warnings
	if !res.Applied.IsEmpty() {
		applied := res.Applied
		item.Applied = &applied
	}
	return res.Data, nil
}
