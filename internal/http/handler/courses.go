package handler

import (
	"strconv"

	"github.com/gofiber/fiber/v2"

	"coursesync/internal/service"
)

// ListCourses returns a page of catalog entries.
//
// @Summary List courses
// @Tags courses
// @Produce json
// @Param limit query int false "Page size" default(10)
// @Param offset query int false "Offset" default(0)
// @Success 200 {object} service.CourseListResult
// @Failure 400 {object} errorPayload
// @Router /courses [get]
func ListCourses(svc service.CourseService) fiber.Handler {
	return func(c *fiber.Ctx) error {
		limit, err := strconv.Atoi(c.Query("limit", "10"))
		if err != nil {
			return writeError(c, fiber.StatusBadRequest, "INVALID_LIMIT", "invalid limit")
		}
		offset, err := strconv.Atoi(c.Query("offset", "0"))
		if err != nil {
			return writeError(c, fiber.StatusBadRequest, "INVALID_OFFSET", "invalid offset")
		}

		res, err := svc.List(c.UserContext(), limit, offset)
		if err != nil {
			return writeServiceError(c, err)
		}
		return c.JSON(res)
	}
}

// GetCourse returns one catalog entry.
//
// @Summary Get a course
// @Tags courses
// @Produce json
// @Param id path int true "Course ID"
// @Success 200 {object} model.Course
// @Failure 400 {object} errorPayload
// @Failure 404 {object} errorPayload
// @Router /courses/{id} [get]
func GetCourse(svc service.CourseService) fiber.Handler {
	return func(c *fiber.Ctx) error {
		id, ok := courseID(c)
		if !ok {
			return writeError(c, fiber.StatusBadRequest, "INVALID_ID", "invalid id format")
		}
		course, err := svc.Get(c.UserContext(), id)
		if err != nil {
			return writeServiceError(c, err)
		}
		return c.JSON(course)
	}
}

// CourseArtifact serves the HTML page or the PDF of a course, streaming it from
// object storage, redirecting to a presigned link, or sending the local file.
//
// @Summary Download a course artifact
// @Tags courses
// @Produce html
// @Produce application/pdf
// @Param id path int true "Course ID"
// @Success 200
// @Success 302
// @Failure 404 {object} errorPayload
// @Router /courses/{id}/html [get]
// @Router /courses/{id}/pdf [get]
func CourseArtifact(svc service.CourseService, kind service.ArtifactKind) fiber.Handler {
	return func(c *fiber.Ctx) error {
		id, ok := courseID(c)
		if !ok {
			return writeError(c, fiber.StatusBadRequest, "INVALID_ID", "invalid id format")
		}
		a, err := svc.Artifact(c.UserContext(), id, kind)
		if err != nil {
			return writeServiceError(c, err)
		}

		switch {
		case a.URL != "":
			return c.Redirect(a.URL, fiber.StatusFound)
		case a.Body != nil:
			c.Set(fiber.HeaderContentType, a.ContentType)
			return c.SendStream(a.Body)
		default:
			c.Set(fiber.HeaderContentType, a.ContentType)
			return c.SendFile(a.Path)
		}
	}
}

func courseID(c *fiber.Ctx) (int64, bool) {
	id, err := strconv.ParseInt(c.Params("id"), 10, 64)
	if err != nil || id <= 0 {
		return 0, false
	}
	return id, true
}
