package blob

import (
	"errors"
	"io"
	"log/slog"
	"net/http"

	"github.com/labstack/echo/v4"
)

type Handler struct {
	store  Store
	logger *slog.Logger
}

func NewHandler(store Store, logger *slog.Logger) *Handler {
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	return &Handler{store: store, logger: logger}
}

// Upload stores a multipart "file" under the form's kind and optional order_id.
func (h *Handler) Upload(c echo.Context) error {
	fh, err := c.FormFile("file")
	if err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "file is required"})
	}
	if fh.Size > MaxSize {
		return c.JSON(http.StatusRequestEntityTooLarge, echo.Map{"error": "file too large"})
	}
	f, err := fh.Open()
	if err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "unreadable file"})
	}
	defer f.Close()

	data, err := io.ReadAll(io.LimitReader(f, MaxSize+1))
	if err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "unreadable file"})
	}

	b, err := h.store.Put(c.Request().Context(), data, Kind(c.FormValue("kind")), c.FormValue("order_id"))
	switch {
	case errors.Is(err, ErrTooLarge):
		return c.JSON(http.StatusRequestEntityTooLarge, echo.Map{"error": err.Error()})
	case errors.Is(err, ErrEmpty), errors.Is(err, ErrKindMismatch), errors.Is(err, ErrUnknownKind):
		return c.JSON(http.StatusBadRequest, echo.Map{"error": err.Error()})
	case err != nil:
		h.logger.Error("blob upload failed", "error", err)
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "failed to store file"})
	}
	return c.JSON(http.StatusCreated, b)
}

// Download streams the blob with its detected content type.
func (h *Handler) Download(c echo.Context) error {
	b, err := h.store.Get(c.Request().Context(), c.Param("id"))
	if errors.Is(err, ErrNotFound) {
		return c.JSON(http.StatusNotFound, echo.Map{"error": "blob not found"})
	}
	if err != nil {
		h.logger.Error("blob download failed", "id", c.Param("id"), "error", err)
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "failed to fetch file"})
	}
	return c.Blob(http.StatusOK, b.ContentType, b.Data)
}
