package models

// InputFormat is the canonical tag for an accepted upload.
type InputFormat string

const (
	InputPNG  InputFormat = "png"
	InputJPG  InputFormat = "jpg"
	InputWebP InputFormat = "webp"
)

// OutputFormat is the format an image is compressed to.
type OutputFormat string

const (
	OutputPNG    OutputFormat = "png"
	OutputMozJPG OutputFormat = "mozjpg"
	OutputWebP   OutputFormat = "webp"
)

func (f OutputFormat) Valid() bool {
	switch f {
	case OutputPNG, OutputMozJPG, OutputWebP:
		return true
	}
	return false
}

// CompressionEngine identifies which engine produced a compressed blob.
type CompressionEngine string

const (
	EngineTinyPNG CompressionEngine = "tinypng"
	EngineOxiPNG  CompressionEngine = "oxipng"
	EngineMozJPEG CompressionEngine = "mozjpeg"
	EngineWebP    CompressionEngine = "webp"
)

// FormatMode decides how output formats are picked for new uploads.
type FormatMode string

const (
	FormatModeMatch   FormatMode = "match"
	FormatModeConvert FormatMode = "convert"
)

type FormatOption struct {
	Value       OutputFormat `json:"value"`
	Label       string       `json:"label"`
	Description string       `json:"description"`
}

var FormatOptions = []FormatOption{
	{Value: OutputPNG, Label: "PNG", Description: "Lossy PNG via TinyPNG, lossless fallback"},
	{Value: OutputMozJPG, Label: "JPG", Description: "Optimized JPEG"},
	{Value: OutputWebP, Label: "WebP", Description: "Modern format, smallest files"},
}

// WorkflowMode selects which stages a queue run performs.
type WorkflowMode string

const (
	WorkflowCompressAndBoost WorkflowMode = "compress-and-boost"
	WorkflowCompressOnly     WorkflowMode = "compress-only"
	WorkflowBoostOnly        WorkflowMode = "boost-only"
)

func (m WorkflowMode) Valid() bool {
	switch m {
	case WorkflowCompressAndBoost, WorkflowCompressOnly, WorkflowBoostOnly:
		return true
	}
	return false
}
