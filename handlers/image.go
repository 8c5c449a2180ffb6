package handlers

import (
	"errors"
	"io"
	"log"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
	"github.com/shawn-cake/smooshboost/models"
	"github.com/shawn-cake/smooshboost/services"
)

const shortLinkMessage = "Shortened URLs (goo.gl, maps.app.goo.gl) cannot be parsed. Use the full URL from your browser address bar."

type ImageHandler struct {
	queue     *services.Queue
	validator *validator.Validate
}

func NewImageHandler(queue *services.Queue) *ImageHandler {
	return &ImageHandler{queue: queue, validator: validator.New()}
}

// errorStatus maps service errors onto HTTP status codes.
func errorStatus(err error) int {
	switch {
	case errors.Is(err, models.ErrNotFound):
		return fiber.StatusNotFound
	case errors.Is(err, services.ErrImageBusy), errors.Is(err, services.ErrQueueBusy), errors.Is(err, services.ErrNotBoosted):
		return fiber.StatusConflict
	case errors.Is(err, services.ErrValidationFailed), errors.Is(err, services.ErrUnsupportedFormat):
		return fiber.StatusBadRequest
	}
	return fiber.StatusInternalServerError
}

func fail(c *fiber.Ctx, err error) error {
	status := errorStatus(err)
	if status == fiber.StatusInternalServerError {
		log.Printf("%s %s failed: %v", c.Method(), c.Path(), err)
		return c.Status(status).JSON(fiber.Map{"error": "Internal server error"})
	}
	return c.Status(status).JSON(fiber.Map{"error": err.Error()})
}

// ErrorHandler renders errors returned from handlers as JSON.
func ErrorHandler(c *fiber.Ctx, err error) error {
	code := fiber.StatusInternalServerError
	var e *fiber.Error
	if errors.As(err, &e) {
		code = e.Code
	}
	return c.Status(code).JSON(fiber.Map{
		"error": err.Error(),
	})
}

func parseID(c *fiber.Ctx) (uuid.UUID, error) {
	id, err := uuid.Parse(c.Params("id"))
	if err != nil {
		return uuid.Nil, fiber.NewError(fiber.StatusBadRequest, "Invalid image ID")
	}
	return id, nil
}

func (h *ImageHandler) Upload(c *fiber.Ctx) error {
	form, err := c.MultipartForm()
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "No image files provided"})
	}
	headers := form.File["images"]
	if len(headers) == 0 {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "No image files provided"})
	}

	files := make([]services.UploadFile, 0, len(headers))
	for _, fh := range headers {
		src, err := fh.Open()
		if err != nil {
			return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "Failed to open uploaded file"})
		}
		data, err := io.ReadAll(src)
		src.Close()
		if err != nil {
			return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "Failed to read uploaded file"})
		}
		files = append(files, services.UploadFile{Name: fh.Filename, MIMEType: fh.Header.Get("Content-Type"), Data: data})
	}

	added, problems, err := h.queue.Add(c.UserContext(), files)
	if err != nil {
		return fail(c, err)
	}
	if len(added) == 0 {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "No images were added", "errors": problems})
	}
	if problems == nil {
		problems = []string{}
	}
	return c.Status(fiber.StatusCreated).JSON(fiber.Map{"images": added, "errors": problems})
}

func (h *ImageHandler) List(c *fiber.Ctx) error {
	summary, err := h.queue.Summary()
	if err != nil {
		return fail(c, err)
	}
	return c.JSON(summary)
}

func (h *ImageHandler) GetImage(c *fiber.Ctx) error {
	id, err := parseID(c)
	if err != nil {
		return err
	}
	item, err := h.queue.Get(id)
	if err != nil {
		return fail(c, err)
	}
	return c.JSON(item)
}

func (h *ImageHandler) DeleteImage(c *fiber.Ctx) error {
	id, err := parseID(c)
	if err != nil {
		return err
	}
	if err := h.queue.Remove(c.UserContext(), id); err != nil {
		return fail(c, err)
	}
	return c.SendStatus(fiber.StatusNoContent)
}

func (h *ImageHandler) Clear(c *fiber.Ctx) error {
	if err := h.queue.Clear(c.UserContext()); err != nil {
		return fail(c, err)
	}
	return c.SendStatus(fiber.StatusNoContent)
}

func (h *ImageHandler) UpdateMetadata(c *fiber.Ctx) error {
	id, err := parseID(c)
	if err != nil {
		return err
	}
	var opts models.MetadataOptions
	if err := c.BodyParser(&opts); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "Invalid body"})
	}
	if err := h.validator.Struct(opts); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "Invalid metadata", "details": err.Error()})
	}
	item, err := h.queue.UpdateMetadata(c.UserContext(), id, opts)
	if err != nil {
		return fail(c, err)
	}
	return c.JSON(item)
}

func (h *ImageHandler) UpdateFormat(c *fiber.Ctx) error {
	id, err := parseID(c)
	if err != nil {
		return err
	}
	var body struct {
		OutputFormat models.OutputFormat `json:"output_format"`
	}
	if err := c.BodyParser(&body); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "Invalid body"})
	}
	item, err := h.queue.UpdateOutputFormat(c.UserContext(), id, body.OutputFormat)
	if err != nil {
		return fail(c, err)
	}
	return c.JSON(item)
}

func (h *ImageHandler) Retry(c *fiber.Ctx) error {
	id, err := parseID(c)
	if err != nil {
		return err
	}
	item, err := h.queue.RetryCompression(c.UserContext(), id)
	if err != nil {
		return fail(c, err)
	}
	return c.JSON(item)
}

func (h *ImageHandler) RetryBoost(c *fiber.Ctx) error {
	id, err := parseID(c)
	if err != nil {
		return err
	}
	item, err := h.queue.RetryBoost(c.UserContext(), id)
	if err != nil {
		return fail(c, err)
	}
	return c.JSON(item)
}

func (h *ImageHandler) SkipBoost(c *fiber.Ctx) error {
	id, err := parseID(c)
	if err != nil {
		return err
	}
	item, err := h.queue.SkipBoost(id)
	if err != nil {
		return fail(c, err)
	}
	return c.JSON(item)
}

func (h *ImageHandler) Download(c *fiber.Ctx) error {
	id, err := parseID(c)
	if err != nil {
		return err
	}
	dl, err := h.queue.Download(c.UserContext(), id)
	if err != nil {
		return fail(c, err)
	}
	c.Set(fiber.HeaderContentType, dl.MIMEType)
	c.Attachment(dl.Filename)
	return c.Send(dl.Data)
}

func (h *ImageHandler) Embedded(c *fiber.Ctx) error {
	id, err := parseID(c)
	if err != nil {
		return err
	}
	md, err := h.queue.Embedded(c.UserContext(), id)
	if err != nil {
		return fail(c, err)
	}
	return c.JSON(md)
}

func (h *ImageHandler) Compress(c *fiber.Ctx) error {
	n, err := h.queue.ProcessQueue(c.UserContext())
	if err != nil {
		return fail(c, err)
	}
	return h.runResult(c, n)
}

func (h *ImageHandler) Boost(c *fiber.Ctx) error {
	n, err := h.queue.ProcessBoost(c.UserContext())
	if err != nil {
		return fail(c, err)
	}
	return h.runResult(c, n)
}

func (h *ImageHandler) SkipAllBoost(c *fiber.Ctx) error {
	n, err := h.queue.SkipAllBoost()
	if err != nil {
		return fail(c, err)
	}
	return h.runResult(c, n)
}

func (h *ImageHandler) runResult(c *fiber.Ctx, processed int) error {
	summary, err := h.queue.Summary()
	if err != nil {
		return fail(c, err)
	}
	return c.JSON(fiber.Map{"processed": processed, "queue": summary})
}

func (h *ImageHandler) GetSettings(c *fiber.Ctx) error {
	return c.JSON(h.queue.Settings())
}

func (h *ImageHandler) UpdateSettings(c *fiber.Ctx) error {
	s := h.queue.Settings()
	if err := c.BodyParser(&s); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "Invalid body"})
	}
	if err := h.queue.SetSettings(s); err != nil {
		return fail(c, err)
	}
	return c.JSON(h.queue.Settings())
}

func (h *ImageHandler) Session(c *fiber.Ctx) error {
	return c.JSON(fiber.Map{
		"tinypng_quota_exhausted": h.queue.Session().QuotaExhausted(),
		"running":                 h.queue.Running(),
	})
}

func (h *ImageHandler) Formats(c *fiber.Ctx) error {
	return c.JSON(fiber.Map{
		"output_formats": models.FormatOptions,
		"capabilities":   models.MetadataCapabilities,
	})
}

func (h *ImageHandler) ParseGeo(c *fiber.Ctx) error {
	var body struct {
		Text string `json:"text"`
	}
	if err := c.BodyParser(&body); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "Invalid body"})
	}
	text := strings.TrimSpace(body.Text)
	if services.IsShortMapsURL(text) {
		return c.Status(fiber.StatusUnprocessableEntity).JSON(fiber.Map{"error": shortLinkMessage})
	}
	loc := services.ParseGeoLink(text)
	if loc == nil {
		return c.Status(fiber.StatusUnprocessableEntity).JSON(fiber.Map{"error": "No coordinates found"})
	}
	return c.JSON(fiber.Map{
		"latitude":  loc.Latitude,
		"longitude": loc.Longitude,
		"address":   loc.Address,
		"display":   services.FormatCoordinates(loc.Latitude, loc.Longitude),
	})
}
