package handler

import (
	"crypto/subtle"

	"github.com/gofiber/fiber/v2"

	"coursesync/internal/apperr"
	"coursesync/internal/model"
	"coursesync/internal/service"
)

// RefreshKeyHeader is accepted as an alternative to the key query parameter.
const RefreshKeyHeader = "X-Refresh-Key"

type failureView struct {
	Path    string      `json:"path"`
	Title   string      `json:"title"`
	Kind    apperr.Kind `json:"kind"`
	Code    string      `json:"code"`
	Message string      `json:"message"`
}

type refreshResponse struct {
	Status    string                 `json:"status"`
	RunID     string                 `json:"run_id"`
	Courses   []model.DocumentRecord `json:"courses"`
	Failures  []failureView          `json:"failures"`
	Pruned    []string               `json:"pruned,omitempty"`
	Inserted  int                    `json:"inserted"`
	Updated   int                    `json:"updated"`
	Unchanged int                    `json:"unchanged"`
}

func failureCode(k apperr.Kind) string {
	switch k {
	case apperr.KindValidation:
		return "INVALID_DOCUMENT"
	case apperr.KindRender:
		return "RENDER_FAILED"
	case apperr.KindFilesystem:
		return "FILE_UNAVAILABLE"
	}
	return "INTERNAL_ERROR"
}

// RefreshCourses runs a full refresh pass when the caller presents the refresh key.
// An empty configured key disables the endpoint.
//
// @Summary Refresh the course catalog
// @Description Walks the source tree, regenerates HTML and PDF artifacts and reconciles the catalog.
// @Tags refresh
// @Produce json
// @Param key query string false "Refresh key (or X-Refresh-Key header)"
// @Success 200 {object} refreshResponse
// @Failure 403 {object} errorPayload
// @Failure 409 {object} errorPayload
// @Failure 500 {object} errorPayload
// @Router /api/courses [get]
func RefreshCourses(svc service.SyncService, key string) fiber.Handler {
	return func(c *fiber.Ctx) error {
		provided := c.Query("key")
		if provided == "" {
			provided = c.Get(RefreshKeyHeader)
		}
		if key == "" || subtle.ConstantTimeCompare([]byte(provided), []byte(key)) != 1 {
			return writeError(c, fiber.StatusForbidden, "INVALID_API_KEY", "Invalid API Key")
		}

		res, err := svc.Refresh(c.UserContext())
		if err != nil {
			return writeServiceError(c, err)
		}

		out := refreshResponse{
			Status:    "success",
			RunID:     res.RunID,
			Courses:   res.Courses,
			Failures:  make([]failureView, 0, len(res.Failures)),
			Pruned:    res.Pruned,
			Inserted:  res.Inserted,
			Updated:   res.Updated,
			Unchanged: res.Unchanged,
		}
		for _, f := range res.Failures {
			out.Failures = append(out.Failures, failureView{
				Path:    f.Path,
				Title:   f.Title,
				Kind:    f.Kind,
				Code:    failureCode(f.Kind),
				Message: f.Message,
			})
		}
		return c.JSON(out)
	}
}
