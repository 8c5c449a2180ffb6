package services

import (
	"fmt"
	"strings"

	"github.com/dustin/go-humanize"
	"github.com/shawn-cake/smooshboost/models"
)

// FileValidator guards the pipeline against oversized, mistyped or spoofed uploads.
type FileValidator struct {
	AllowedMIMETypes []string
	MaxFileSize      int64
	MaxBatchSize     int
}

// NewFileValidator creates a validator from the configured limits.
func NewFileValidator(limits LimitsConfig) *FileValidator {
	fv := &FileValidator{
		AllowedMIMETypes: []string{"image/png", "image/jpeg", "image/jpg", "image/webp"},
		MaxFileSize:      limits.MaxFileSize,
		MaxBatchSize:     limits.MaxBatchSize,
	}
	if fv.MaxFileSize <= 0 {
		fv.MaxFileSize = 5 * 1024 * 1024
	}
	if fv.MaxBatchSize <= 0 {
		fv.MaxBatchSize = 20
	}
	return fv
}

// UploadFile is one candidate file of a batch.
type UploadFile struct {
	Name     string
	MIMEType string
	Data     []byte
}

// ValidationResult contains the results of file validation
type ValidationResult struct {
	IsValid      bool
	Format       models.InputFormat
	MIMEType     string
	Size         int64
	ErrorMessage string
}

// BatchResult splits a batch into accepted files and per-file errors.
type BatchResult struct {
	Valid  []UploadFile
	Errors []string
}

// ValidateFile checks the declared type, the size and the magic bytes of one file.
func (fv *FileValidator) ValidateFile(f UploadFile) *ValidationResult {
	result := &ValidationResult{
		MIMEType: strings.ToLower(f.MIMEType),
		Size:     int64(len(f.Data)),
	}

	if !fv.isValidMIMEType(result.MIMEType) {
		result.ErrorMessage = invalidFormatMessage(f.Name)
		return result
	}

	if result.Size > fv.MaxFileSize {
		result.ErrorMessage = fmt.Sprintf("%q exceeds the %s size limit.", f.Name, sizeLimitLabel(fv.MaxFileSize))
		return result
	}

	declared, _ := DetectInputFormat(result.MIMEType)
	if !fv.isValidMagicBytes(f.Data, declared) {
		result.ErrorMessage = invalidFormatMessage(f.Name)
		return result
	}

	result.Format = declared
	result.IsValid = true
	return result
}

// ValidateBatch validates every file and enforces the batch limit given how
// many images are already queued. When the batch overflows, the first valid
// files that fit are kept.
func (fv *FileValidator) ValidateBatch(files []UploadFile, existing int) BatchResult {
	var res BatchResult
	for _, f := range files {
		vr := fv.ValidateFile(f)
		if !vr.IsValid {
			res.Errors = append(res.Errors, vr.ErrorMessage)
			continue
		}
		res.Valid = append(res.Valid, f)
	}

	remaining := fv.MaxBatchSize - existing
	if remaining < 0 {
		remaining = 0
	}
	if len(res.Valid) > remaining {
		res.Errors = append(res.Errors,
			fmt.Sprintf("Batch limit exceeded. You can add %d more image(s) (max %d).", remaining, fv.MaxBatchSize))
		res.Valid = res.Valid[:remaining]
	}
	return res
}

// isValidMIMEType checks if the MIME type is allowed
func (fv *FileValidator) isValidMIMEType(mimeType string) bool {
	for _, allowed := range fv.AllowedMIMETypes {
		if strings.EqualFold(mimeType, allowed) {
			return true
		}
	}
	return false
}

// isValidMagicBytes validates that the file signature agrees with the declared format.
func (fv *FileValidator) isValidMagicBytes(data []byte, declared models.InputFormat) bool {
	actual, ok := DetectFormatFromBytes(data)
	return ok && actual == declared
}

func invalidFormatMessage(name string) string {
	return fmt.Sprintf("%q is not a valid image format. Please use PNG, JPG, or WebP.", name)
}

// sizeLimitLabel renders limits like 5 MiB as "5 MB", the way users read them.
func sizeLimitLabel(n int64) string {
	if n%(1024*1024) == 0 {
		return fmt.Sprintf("%d MB", n/(1024*1024))
	}
	return humanize.IBytes(uint64(n))
}
