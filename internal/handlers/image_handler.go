package handlers

import (
	"github.com/gofiber/fiber/v2"

	"pibot/internal/services"
)

// ImageHandler serves generated images by filename. LINE fetches image
// message URLs from its own infrastructure, so this route must be publicly
// reachable.
type ImageHandler struct {
	files *services.FileCacheService
}

// NewImageHandler creates an image handler over the file cache
func NewImageHandler(files *services.FileCacheService) *ImageHandler {
	return &ImageHandler{files: files}
}

// HandleImage is GET /images/:filename
func (h *ImageHandler) HandleImage(c *fiber.Ctx) error {
	filename := c.Params("filename")

	path, ok := h.files.Resolve(filename)
	if !ok {
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{
			"error": "Image not found or expired",
		})
	}

	return c.SendFile(path)
}
