package handler

import (
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/adaptor"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"coursesync/internal/http/middleware"
	"coursesync/internal/service"
)

// Dependencies are the collaborators the HTTP surface is built from.
type Dependencies struct {
	DB         Pinger
	Sync       service.SyncService
	Courses    service.CourseService
	RefreshKey string

	// Gatherer backs /metrics; nil leaves the endpoint unregistered.
	Gatherer prometheus.Gatherer

	// StaticDir is served under /static (stylesheet and math assets); empty disables it.
	StaticDir string
}

// RegisterRoutes attaches HTTP routes to the provided Fiber app.
func RegisterRoutes(app *fiber.App, d Dependencies) {
	app.Get("/health", HealthCheck(d.DB))
	app.Get("/healthz", LivenessProbe())

	if d.Gatherer != nil {
		app.Get(middleware.MetricsPath, adaptor.HTTPHandler(promhttp.HandlerFor(d.Gatherer, promhttp.HandlerOpts{
			EnableOpenMetrics: true,
		})))
	}
	if d.StaticDir != "" {
		app.Static("/static", d.StaticDir)
	}

	app.Get("/api/courses", RefreshCourses(d.Sync, d.RefreshKey))

	app.Get("/courses", ListCourses(d.Courses))
	app.Get("/courses/:id", GetCourse(d.Courses))
	app.Get("/courses/:id/html", CourseArtifact(d.Courses, service.ArtifactHTML))
	app.Get("/courses/:id/pdf", CourseArtifact(d.Courses, service.ArtifactPDF))
}
