package services

import (
	"context"
	"fmt"
	"log"
	"sync"

	"github.com/google/uuid"
	"github.com/shawn-cake/smooshboost/models"
)

// QueueSettings are the user's choices that apply to the whole queue.
type QueueSettings struct {
	FormatMode models.FormatMode   `json:"format_mode"`
	ConvertTo  models.OutputFormat `json:"convert_to"`
	Workflow   models.WorkflowMode `json:"workflow"`
}

func DefaultQueueSettings() QueueSettings {
	return QueueSettings{
		FormatMode: models.FormatModeMatch,
		ConvertTo:  models.OutputWebP,
		Workflow:   models.WorkflowCompressAndBoost,
	}
}

// Queue owns the collection of images, their blobs and the session the
// compression router reports quota exhaustion to. Only one run (compression
// or boost) is in flight at a time.
type Queue struct {
	repo      models.ImageRepositoryInterface
	storage   Storage
	pipeline  *Pipeline
	validator *FileValidator
	decoder   Decoder
	thumb     ThumbnailConfig
	session   *Session

	mu       sync.Mutex
	running  bool
	settings QueueSettings

	// edit guards read-modify-write of a single item; adding guards the
	// batch limit across count and create.
	edit   sync.Mutex
	adding sync.Mutex
}

func NewQueue(repo models.ImageRepositoryInterface, storage Storage, pipeline *Pipeline, validator *FileValidator, decoder Decoder, thumb ThumbnailConfig) *Queue {
	return &Queue{
		repo:      repo,
		storage:   storage,
		pipeline:  pipeline,
		validator: validator,
		decoder:   decoder,
		thumb:     thumb,
		session:   NewSession(),
		settings:  DefaultQueueSettings(),
	}
}

func (q *Queue) Session() *Session { return q.session }

func (q *Queue) Settings() QueueSettings {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.settings
}

// SetSettings replaces the queue settings. Output formats of images already
// queued are left alone; they are changed per image with UpdateOutputFormat.
func (q *Queue) SetSettings(s QueueSettings) error {
	if s.FormatMode != models.FormatModeMatch && s.FormatMode != models.FormatModeConvert {
		return fmt.Errorf("%w: unknown format mode %q", ErrValidationFailed, s.FormatMode)
	}
	if s.FormatMode == models.FormatModeConvert && !s.ConvertTo.Valid() {
		return fmt.Errorf("%w: unknown output format %q", ErrValidationFailed, s.ConvertTo)
	}
	if !s.Workflow.Valid() {
		return fmt.Errorf("%w: unknown workflow %q", ErrValidationFailed, s.Workflow)
	}
	q.mu.Lock()
	defer q.mu.Unlock()
	q.settings = s
	return nil
}

func (q *Queue) begin() error {
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.running {
		return ErrQueueBusy
	}
	q.running = true
	return nil
}

func (q *Queue) end() {
	q.mu.Lock()
	q.running = false
	q.mu.Unlock()
}

// Running reports whether a queue run is in flight.
func (q *Queue) Running() bool {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.running
}

// Add validates a batch and queues every accepted file. Rejected files are
// reported as user-facing messages; the rest of the batch is still queued.
func (q *Queue) Add(ctx context.Context, files []UploadFile) ([]*models.ImageItem, []string, error) {
	q.adding.Lock()
	defer q.adding.Unlock()

	existing, err := q.repo.Count()
	if err != nil {
		return nil, nil, err
	}
	batch := q.validator.ValidateBatch(files, existing)
	problems := batch.Errors
	settings := q.Settings()

	var added []*models.ImageItem
	for _, f := range batch.Valid {
		in, ok := DetectFormatFromBytes(f.Data)
		if !ok {
			problems = append(problems, invalidFormatMessage(f.Name))
			continue
		}
		preview, err := BuildPreview(q.decoder, f.Data, q.thumb)
		if err != nil {
			log.Printf("Failed to decode %s: %v", f.Name, err)
			problems = append(problems, fmt.Sprintf("%q could not be read as an image.", f.Name))
			continue
		}

		item := &models.ImageItem{
			ID:           uuid.New(),
			Name:         f.Name,
			OriginalSize: int64(len(f.Data)),
			InputFormat:  in,
			OutputFormat: ChooseOutputFormat(in, settings.FormatMode, settings.ConvertTo),
			Status:       models.StatusQueued,
			BoostStatus:  models.BoostPending,
			Width:        &preview.Width,
			Height:       &preview.Height,
		}
		if preview.Blurhash != "" {
			item.Blurhash = &preview.Blurhash
		}

		item.OriginalKey = fmt.Sprintf("originals/%s%s", item.ID, OutputExtension(MatchingOutputFormat(in)))
		if _, err := SaveBytes(ctx, q.storage, item.OriginalKey, f.Data, f.MIMEType); err != nil {
			return added, problems, fmt.Errorf("failed to store %s: %w", f.Name, err)
		}
		thumbURL, err := SaveBytes(ctx, q.storage, thumbnailKey(item.ID), preview.Thumbnail, "image/jpeg")
		if err != nil {
			log.Printf("Failed to store thumbnail for %s: %v", f.Name, err)
		} else {
			item.ThumbnailURL = &thumbURL
		}

		if err := q.repo.Create(item); err != nil {
			q.deleteBlobs(ctx, item)
			return added, problems, err
		}
		added = append(added, item)
	}
	return added, problems, nil
}

func (q *Queue) Get(id uuid.UUID) (*models.ImageItem, error) {
	return q.repo.GetByID(id)
}

// Summary lists the queue together with its aggregate savings.
func (q *Queue) Summary() (*models.QueueResponse, error) {
	items, err := q.repo.List()
	if err != nil {
		return nil, err
	}
	return &models.QueueResponse{Images: items, Savings: TotalSavings(items), Total: len(items)}, nil
}

// ProcessQueue compresses every queued image, one at a time. A failed image
// is recorded on the item and the run continues. In boost-only mode the run
// goes straight to boosting.
func (q *Queue) ProcessQueue(ctx context.Context) (int, error) {
	if q.Settings().Workflow == models.WorkflowBoostOnly {
		return q.ProcessBoost(ctx)
	}
	if err := q.begin(); err != nil {
		return 0, err
	}
	defer q.end()

	items, err := q.repo.List()
	if err != nil {
		return 0, err
	}
	processed := 0
	for _, queued := range items {
		if err := ctx.Err(); err != nil {
			return processed, err
		}
		item, ok, err := q.claim(queued.ID, func(i *models.ImageItem) bool {
			return i.Status == models.StatusQueued
		}, func(i *models.ImageItem) {
			i.Status = models.StatusCompressing
		})
		if err != nil || !ok {
			continue
		}
		if err := q.compressOne(ctx, item); err != nil {
			log.Printf("Compression failed for %s: %v", item.Name, err)
		}
		processed++
	}
	return processed, nil
}

// RetryCompression runs a failed image through compression again.
func (q *Queue) RetryCompression(ctx context.Context, id uuid.UUID) (*models.ImageItem, error) {
	if err := q.begin(); err != nil {
		return nil, err
	}
	defer q.end()

	item, ok, err := q.claim(id, func(i *models.ImageItem) bool {
		return i.Status == models.StatusError || i.Status == models.StatusQueued
	}, func(i *models.ImageItem) {
		q.resetCompression(ctx, i)
		i.Status = models.StatusCompressing
	})
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, fmt.Errorf("%w: image is %s", ErrValidationFailed, item.Status)
	}
	if err := q.compressOne(ctx, item); err != nil {
		log.Printf("Retry failed for %s: %v", item.Name, err)
	}
	return item, nil
}

// compressOne runs a claimed item through compression.
func (q *Queue) compressOne(ctx context.Context, item *models.ImageItem) error {
	original, err := ReadAll(ctx, q.storage, item.OriginalKey)
	if err != nil {
		msg := "Failed to read the original image"
		item.Status = models.StatusError
		item.Error = &msg
		q.saveItem(item)
		return err
	}

	data, compressErr := q.pipeline.CompressItem(ctx, q.session, item, original)
	if compressErr == nil {
		key := fmt.Sprintf("compressed/%s%s", item.ID, OutputExtension(item.OutputFormat))
		if _, err := SaveBytes(ctx, q.storage, key, data, OutputMIME(item.OutputFormat)); err != nil {
			msg := "Failed to store the compressed image"
			item.Status = models.StatusError
			item.Error = &msg
			compressErr = err
		} else {
			item.CompressedKey = &key
			if q.Settings().Workflow == models.WorkflowCompressOnly {
				item.BoostStatus = models.BoostSkipped
			}
		}
	}
	q.saveItem(item)
	return compressErr
}

// ProcessBoost injects metadata into every image waiting for it. Outside
// boost-only mode an image has to be compressed first.
func (q *Queue) ProcessBoost(ctx context.Context) (int, error) {
	if err := q.begin(); err != nil {
		return 0, err
	}
	defer q.end()

	items, err := q.repo.List()
	if err != nil {
		return 0, err
	}
	boostOnly := q.Settings().Workflow == models.WorkflowBoostOnly
	processed := 0
	for _, pending := range items {
		if err := ctx.Err(); err != nil {
			return processed, err
		}
		item, ok, err := q.claim(pending.ID, func(i *models.ImageItem) bool {
			if i.BoostStatus != models.BoostPending || i.Status == models.StatusCompressing {
				return false
			}
			return boostOnly || i.Status == models.StatusComplete
		}, markBoosting)
		if err != nil || !ok {
			continue
		}
		if err := q.boostOne(ctx, item); err != nil {
			log.Printf("Boost failed for %s: %v", item.Name, err)
		}
		processed++
	}
	return processed, nil
}

// RetryBoost runs a failed boost again.
func (q *Queue) RetryBoost(ctx context.Context, id uuid.UUID) (*models.ImageItem, error) {
	if err := q.begin(); err != nil {
		return nil, err
	}
	defer q.end()

	item, ok, err := q.claim(id, func(i *models.ImageItem) bool {
		return !i.IsProcessing() && (i.BoostStatus == models.BoostFailed || i.BoostStatus == models.BoostPending)
	}, markBoosting)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, fmt.Errorf("%w: boost is %s", ErrValidationFailed, item.BoostStatus)
	}
	if err := q.boostOne(ctx, item); err != nil {
		log.Printf("Boost retry failed for %s: %v", item.Name, err)
	}
	return item, nil
}

// boostOne injects metadata into a claimed item.
func (q *Queue) boostOne(ctx context.Context, item *models.ImageItem) error {
	sourceKey, format := boostSource(item)
	source, err := ReadAll(ctx, q.storage, sourceKey)
	if err != nil {
		msg := "Failed to read the image to boost"
		item.BoostStatus = models.BoostFailed
		item.BoostError = &msg
		q.saveItem(item)
		return err
	}

	q.dropFinal(ctx, item)
	out, boostErr := q.pipeline.BoostItem(item, source, format)
	if item.BoostStatus == models.BoostDone {
		key := fmt.Sprintf("final/%s%s", item.ID, OutputExtension(downloadFormat(item)))
		if _, err := SaveBytes(ctx, q.storage, key, out, OutputMIME(downloadFormat(item))); err != nil {
			msg := "Failed to store the boosted image"
			item.BoostStatus = models.BoostFailed
			item.BoostError = &msg
			boostErr = err
		} else {
			item.FinalKey = &key
		}
	}
	q.saveItem(item)
	return boostErr
}

// SkipBoost marks one image as not needing metadata.
func (q *Queue) SkipBoost(id uuid.UUID) (*models.ImageItem, error) {
	q.edit.Lock()
	defer q.edit.Unlock()

	item, err := q.repo.GetByID(id)
	if err != nil {
		return nil, err
	}
	if item.IsProcessing() {
		return nil, ErrImageBusy
	}
	if item.BoostStatus == models.BoostPending || item.BoostStatus == models.BoostFailed {
		item.BoostStatus = models.BoostSkipped
		item.BoostError = nil
		if err := q.repo.Update(item); err != nil {
			return nil, err
		}
	}
	return item, nil
}

// SkipAllBoost marks every image still waiting for metadata as skipped.
// Images being compressed are left pending.
func (q *Queue) SkipAllBoost() (int, error) {
	q.edit.Lock()
	defer q.edit.Unlock()

	items, err := q.repo.List()
	if err != nil {
		return 0, err
	}
	n := 0
	for _, item := range items {
		if item.BoostStatus != models.BoostPending || item.IsProcessing() {
			continue
		}
		item.BoostStatus = models.BoostSkipped
		if err := q.repo.Update(item); err != nil {
			return n, err
		}
		n++
	}
	return n, nil
}

// UpdateMetadata replaces an image's metadata options. Any earlier boost
// result is discarded and the image waits to be boosted again.
func (q *Queue) UpdateMetadata(ctx context.Context, id uuid.UUID, opts models.MetadataOptions) (*models.ImageItem, error) {
	if geo := opts.GeoTag; geo.Latitude != nil && geo.Longitude != nil && !ValidCoordinates(*geo.Latitude, *geo.Longitude) {
		return nil, fmt.Errorf("%w: coordinates out of range", ErrValidationFailed)
	}
	q.edit.Lock()
	defer q.edit.Unlock()

	item, err := q.repo.GetByID(id)
	if err != nil {
		return nil, err
	}
	if item.IsProcessing() {
		return nil, ErrImageBusy
	}
	item.MetadataOptions = opts
	q.resetBoost(ctx, item)
	if err := q.repo.Update(item); err != nil {
		return nil, err
	}
	return item, nil
}

// UpdateOutputFormat changes an image's output format and sends it back to
// the start of the pipeline.
func (q *Queue) UpdateOutputFormat(ctx context.Context, id uuid.UUID, out models.OutputFormat) (*models.ImageItem, error) {
	if !out.Valid() {
		return nil, fmt.Errorf("%w: %s", ErrUnsupportedFormat, out)
	}
	q.edit.Lock()
	defer q.edit.Unlock()

	item, err := q.repo.GetByID(id)
	if err != nil {
		return nil, err
	}
	if item.IsProcessing() {
		return nil, ErrImageBusy
	}
	if item.OutputFormat == out {
		return item, nil
	}
	item.OutputFormat = out
	q.resetCompression(ctx, item)
	if err := q.repo.Update(item); err != nil {
		return nil, err
	}
	return item, nil
}

// Remove deletes an image and its blobs. Images being compressed or boosted
// cannot be removed.
func (q *Queue) Remove(ctx context.Context, id uuid.UUID) error {
	q.edit.Lock()
	defer q.edit.Unlock()

	item, err := q.repo.GetByID(id)
	if err != nil {
		return err
	}
	if item.IsProcessing() {
		return ErrImageBusy
	}
	if err := q.repo.Delete(id); err != nil {
		return err
	}
	q.deleteBlobs(ctx, item)
	return nil
}

// Clear empties the queue. It is rejected while a run is in flight.
func (q *Queue) Clear(ctx context.Context) error {
	if err := q.begin(); err != nil {
		return err
	}
	defer q.end()

	items, err := q.repo.List()
	if err != nil {
		return err
	}
	if err := q.repo.DeleteAll(); err != nil {
		return err
	}
	for _, item := range items {
		q.deleteBlobs(ctx, item)
	}
	return nil
}

// Download is the bytes a user gets for an image.
type Download struct {
	Data     []byte
	Filename string
	MIMEType string
}

// Download returns the boosted output, or the compressed output when the
// image was not boosted. Images that were neither compressed nor boosted
// yield ErrNotBoosted.
func (q *Queue) Download(ctx context.Context, id uuid.UUID) (*Download, error) {
	item, err := q.repo.GetByID(id)
	if err != nil {
		return nil, err
	}
	if item.IsProcessing() {
		return nil, ErrImageBusy
	}
	key, ok := outputKey(item)
	if !ok {
		return nil, ErrNotBoosted
	}
	data, err := ReadAll(ctx, q.storage, key)
	if err != nil {
		return nil, err
	}
	out := downloadFormat(item)
	return &Download{Data: data, Filename: OutputFilename(item.Name, out), MIMEType: OutputMIME(out)}, nil
}

// Embedded reads back the metadata stored in an image's current output.
func (q *Queue) Embedded(ctx context.Context, id uuid.UUID) (*EmbeddedMetadata, error) {
	item, err := q.repo.GetByID(id)
	if err != nil {
		return nil, err
	}
	key, ok := outputKey(item)
	if !ok {
		key = item.OriginalKey
	}
	data, err := ReadAll(ctx, q.storage, key)
	if err != nil {
		return nil, err
	}
	return InspectMetadata(data)
}

func (q *Queue) resetCompression(ctx context.Context, item *models.ImageItem) {
	if item.CompressedKey != nil {
		q.deleteKey(ctx, *item.CompressedKey)
	}
	item.Status = models.StatusQueued
	item.Engine = nil
	item.CompressedSize = nil
	item.CompressedKey = nil
	item.Error = nil
	q.resetBoost(ctx, item)
}

func (q *Queue) resetBoost(ctx context.Context, item *models.ImageItem) {
	q.dropFinal(ctx, item)
	item.BoostStatus = models.BoostPending
	item.BoostError = nil
	item.Applied = nil
	item.Warnings = ValidateForFormat(q.targetFormat(item), item.MetadataOptions)
}

// targetFormat is the container the next boost of item writes into. Outside
// boost-only mode that is the output format, even before compression.
func (q *Queue) targetFormat(item *models.ImageItem) string {
	if item.CompressedKey == nil && q.Settings().Workflow == models.WorkflowBoostOnly {
		return inputEmbedFormat(item.InputFormat)
	}
	return string(item.OutputFormat)
}

// claim re-reads item id and, when ready still holds for the stored copy,
// applies mark and stores it. Edits made after a run listed the queue are
// seen here. ok is false when the item is no longer ready.
func (q *Queue) claim(id uuid.UUID, ready func(*models.ImageItem) bool, mark func(*models.ImageItem)) (*models.ImageItem, bool, error) {
	q.edit.Lock()
	defer q.edit.Unlock()

	item, err := q.repo.GetByID(id)
	if err != nil {
		return nil, false, err
	}
	if !ready(item) {
		return item, false, nil
	}
	mark(item)
	if err := q.repo.Update(item); err != nil {
		return nil, false, err
	}
	return item, true, nil
}

func markBoosting(item *models.ImageItem) {
	item.BoostStatus = models.BoostRunning
}

func (q *Queue) dropFinal(ctx context.Context, item *models.ImageItem) {
	if item.FinalKey != nil {
		q.deleteKey(ctx, *item.FinalKey)
	}
	item.FinalKey = nil
	item.FinalSize = nil
}

func (q *Queue) deleteBlobs(ctx context.Context, item *models.ImageItem) {
	keys := []string{item.OriginalKey, thumbnailKey(item.ID)}
	if item.CompressedKey != nil {
		keys = append(keys, *item.CompressedKey)
	}
	if item.FinalKey != nil {
		keys = append(keys, *item.FinalKey)
	}
	for _, k := range keys {
		q.deleteKey(ctx, k)
	}
}

func (q *Queue) deleteKey(ctx context.Context, key string) {
	if key == "" {
		return
	}
	if err := q.storage.Delete(ctx, key); err != nil {
		log.Printf("Failed to delete %s: %v", key, err)
	}
}

// saveItem persists item after a pipeline step. The item may have been
// removed meanwhile, which is not an error for the run.
func (q *Queue) saveItem(item *models.ImageItem) {
	if err := q.repo.Update(item); err != nil {
		log.Printf("Failed to save %s: %v", item.ID, err)
	}
}

func thumbnailKey(id uuid.UUID) string {
	return fmt.Sprintf("thumbs/%s.jpg", id)
}

// boostSource picks the blob metadata is injected into and its format key:
// the compressed output when there is one, the original otherwise.
func boostSource(item *models.ImageItem) (string, string) {
	if item.CompressedKey != nil {
		return *item.CompressedKey, string(item.OutputFormat)
	}
	return item.OriginalKey, inputEmbedFormat(item.InputFormat)
}

// downloadFormat is the container of what Download returns.
func downloadFormat(item *models.ImageItem) models.OutputFormat {
	if item.CompressedKey != nil {
		return item.OutputFormat
	}
	return MatchingOutputFormat(item.InputFormat)
}

func outputKey(item *models.ImageItem) (string, bool) {
	switch {
	case item.FinalKey != nil:
		return *item.FinalKey, true
	case item.CompressedKey != nil:
		return *item.CompressedKey, true
	case item.BoostStatus == models.BoostSkipped || item.BoostStatus == models.BoostFailed:
		return item.OriginalKey, true
	}
	return "", false
}
