package service

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"coursesync/internal/apperr"
	"coursesync/internal/assets"
	"coursesync/internal/logging"
	"coursesync/internal/model"
	"coursesync/internal/render"
	"coursesync/internal/repository"
	"coursesync/internal/source"
	"coursesync/internal/storage"
)

// ErrRefreshInProgress is returned when a refresh is requested while another one is running.
var ErrRefreshInProgress = errors.New("refresh already in progress")

// DocumentFailure is a document that was skipped during a refresh pass.
type DocumentFailure struct {
	Path    string      `json:"path"`
	Title   string      `json:"title"`
	Kind    apperr.Kind `json:"kind"`
	Message string      `json:"message"`
	Err     error       `json:"-"`
}

// RefreshResult summarizes one refresh pass.
type RefreshResult struct {
	RunID     string                 `json:"run_id"`
	Courses   []model.DocumentRecord `json:"courses"`
	Failures  []DocumentFailure      `json:"failures"`
	Pruned    []string               `json:"pruned,omitempty"`
	Inserted  int                    `json:"inserted"`
	Updated   int                    `json:"updated"`
	Unchanged int                    `json:"unchanged"`
}

func (r *RefreshResult) count(o Outcome) {
	switch o {
	case OutcomeInserted:
		r.Inserted++
	case OutcomeUpdated:
		r.Updated++
	case OutcomeUnchanged:
		r.Unchanged++
	}
}

// SyncOptions configure a refresh pass.
type SyncOptions struct {
	// Root is the directory walked on every refresh.
	Root     string
	Selector source.Selector

	// PublicBaseURL and Collection build the absolute asset prefix of each document.
	PublicBaseURL string
	Collection    string

	// PruneMissing removes catalog entries under Root whose source file is gone.
	PruneMissing bool
}

// SyncService runs refresh passes over the source tree.
type SyncService interface {
	// Refresh walks the tree, converts every document, and reconciles the catalog.
	// Document-scoped failures are reported in the result; walk and catalog
	// failures abort the pass and are returned as the error.
	Refresh(ctx context.Context) (*RefreshResult, error)
}

type syncService struct {
	opts       SyncOptions
	repo       repository.CourseRepository
	reconciler *Reconciler
	markup     render.MarkupRenderer
	printer    render.PrintRenderer
	store      storage.Storage
	metrics    *SyncMetrics
	log        *logging.Logger
	tracer     trace.Tracer

	mu sync.Mutex
}

// NewSyncService constructs a SyncService. store may be nil to disable artifact
// publishing and metrics may be nil to disable instrumentation.
func NewSyncService(
	opts SyncOptions,
	repo repository.CourseRepository,
	markup render.MarkupRenderer,
	printer render.PrintRenderer,
	store storage.Storage,
	metrics *SyncMetrics,
	log *logging.Logger,
) SyncService {
	if log == nil {
		log = logging.New(time.UTC, "sync")
	}
	return &syncService{
		opts:       opts,
		repo:       repo,
		reconciler: NewReconciler(repo),
		markup:     markup,
		printer:    printer,
		store:      store,
		metrics:    metrics,
		log:        log,
		tracer:     otel.Tracer("coursesync/internal/service"),
	}
}

func (s *syncService) Refresh(ctx context.Context) (*RefreshResult, error) {
	if !s.mu.TryLock() {
		s.metrics.refresh("busy", 0)
		return nil, ErrRefreshInProgress
	}
	defer s.mu.Unlock()

	start := time.Now()
	res := &RefreshResult{
		RunID:    uuid.NewString(),
		Courses:  make([]model.DocumentRecord, 0),
		Failures: make([]DocumentFailure, 0),
	}

	ctx, span := s.tracer.Start(ctx, "sync.Refresh", trace.WithAttributes(
		attribute.String("sync.run_id", res.RunID),
		attribute.String("sync.root", s.opts.Root),
	))
	defer span.End()

	s.log.Info("refresh_started", logging.Fields{"run_id": res.RunID, "root": s.opts.Root})

	err := s.run(ctx, res)
	elapsed := time.Since(start)
	span.SetAttributes(
		attribute.Int("sync.inserted", res.Inserted),
		attribute.Int("sync.updated", res.Updated),
		attribute.Int("sync.unchanged", res.Unchanged),
		attribute.Int("sync.failed", len(res.Failures)),
	)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		s.metrics.refresh("error", elapsed.Seconds())
		s.log.Error("refresh_aborted", logging.Fields{"run_id": res.RunID, "error": err, "elapsed_ms": elapsed.Milliseconds()})
		return nil, err
	}

	s.metrics.refresh("ok", elapsed.Seconds())
	s.log.Info("refresh_finished", logging.Fields{
		"run_id":     res.RunID,
		"inserted":   res.Inserted,
		"updated":    res.Updated,
		"unchanged":  res.Unchanged,
		"failed":     len(res.Failures),
		"pruned":     len(res.Pruned),
		"elapsed_ms": elapsed.Milliseconds(),
	})
	return res, nil
}

func (s *syncService) run(ctx context.Context, res *RefreshResult) error {
	paths, err := source.Walk(s.opts.Root)
	if err != nil {
		return err
	}

	sel := s.opts.Selector.Select(paths)
	for _, ferr := range sel.Failures {
		var fsErr *apperr.FilesystemError
		rec := model.DocumentRecord{}
		if errors.As(ferr, &fsErr) {
			rec.SourcePath = fsErr.Path
			rec.Title = source.Title(fsErr.Path)
		}
		s.fail(res, rec, ferr)
	}

	for _, rec := range sel.Records {
		if err := ctx.Err(); err != nil {
			return err
		}
		outcome, err := s.process(ctx, &rec)
		if err != nil {
			if apperr.IsDocumentScoped(err) {
				s.fail(res, rec, err)
				continue
			}
			return err
		}
		res.count(outcome)
		res.Courses = append(res.Courses, rec)
		s.metrics.outcome(outcome)
	}

	if s.opts.PruneMissing {
		pruned, err := s.prune(ctx, paths)
		if err != nil {
			return err
		}
		res.Pruned = pruned
	}
	return nil
}

// process runs one document through normalize, markup, print, publish and reconcile.
// When normalization rewrites the source, rec is re-derived so the catalog fingerprint
// matches the bytes on disk.
func (s *syncService) process(ctx context.Context, rec *model.DocumentRecord) (_ Outcome, err error) {
	ctx, span := s.tracer.Start(ctx, "sync.Document", trace.WithAttributes(
		attribute.String("course.title", rec.Title),
		attribute.String("course.path", rec.SourcePath),
	))
	defer func() {
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
		}
		span.End()
	}()

	loc := assets.Location{
		BaseURL:    s.opts.PublicBaseURL,
		Semester:   rec.Semester,
		Collection: s.opts.Collection,
		Title:      rec.Title,
	}
	changed, err := assets.RewriteFile(rec.SourcePath, loc)
	if err != nil {
		return "", err
	}
	if changed {
		fresh, err := s.opts.Selector.Record(rec.SourcePath)
		if err != nil {
			return "", err
		}
		*rec = fresh
	}

	job := render.Job{
		Title:         rec.Title,
		SourcePath:    rec.SourcePath,
		RenderedPath:  rec.RenderedPath,
		PrintablePath: rec.PrintablePath,
	}
	if err := s.markup.RenderMarkup(ctx, job); err != nil {
		return "", asRenderError(err, rec.Title, render.StageMarkup)
	}
	if err := s.printer.RenderPrint(ctx, job); err != nil {
		return "", asRenderError(err, rec.Title, render.StagePrint)
	}

	s.publish(ctx, *rec)

	outcome, err := s.reconciler.Reconcile(ctx, *rec)
	if err != nil {
		return "", err
	}
	span.SetAttributes(attribute.String("course.outcome", string(outcome)))
	return outcome, nil
}

// asRenderError keeps renderer failures document-scoped even when a renderer
// returns an untyped error.
func asRenderError(err error, title, stage string) error {
	if apperr.KindOf(err) != "" {
		return err
	}
	return &apperr.RenderError{Title: title, Stage: stage, Err: err}
}

func (s *syncService) fail(res *RefreshResult, rec model.DocumentRecord, err error) {
	kind := apperr.KindOf(err)
	res.Failures = append(res.Failures, DocumentFailure{
		Path:    rec.SourcePath,
		Title:   rec.Title,
		Kind:    kind,
		Message: err.Error(),
		Err:     err,
	})
	s.metrics.failure(kind)
	fields := logging.Fields{
		"title": rec.Title,
		"path":  rec.SourcePath,
		"kind":  string(kind),
		"error": err,
	}
	// Authoring mistakes are the writer's to fix; anything else points at the host.
	if apperr.IsBadInput(err) {
		s.log.Warn("document_rejected", fields)
		return
	}
	s.log.Error("document_failed", fields)
}

// publish uploads both artifacts of rec. Upload failures are logged and counted only.
func (s *syncService) publish(ctx context.Context, rec model.DocumentRecord) {
	if s.store == nil {
		return
	}
	for _, p := range []string{rec.RenderedPath, rec.PrintablePath} {
		if err := s.upload(ctx, rec, p); err != nil {
			s.metrics.publishFailed()
			s.log.Warn("publish_failed", logging.Fields{"title": rec.Title, "path": p, "error": err})
		}
	}
}

func (s *syncService) upload(ctx context.Context, rec model.DocumentRecord, p string) error {
	f, err := os.Open(p)
	if err != nil {
		return err
	}
	defer f.Close()

	info, err := f.Stat()
	if err != nil {
		return err
	}
	_, err = s.store.Put(ctx, storage.ArtifactKey(rec.Semester, rec.Title, p), f, storage.PutObjectOptions{
		Size:        info.Size(),
		ContentType: storage.ContentType(p),
		Metadata:    map[string]string{"source-path": rec.SourcePath},
	})
	return err
}

// prune deletes catalog entries under the walked root whose source file was not seen.
// Documents that exist but failed this pass are kept.
func (s *syncService) prune(ctx context.Context, walked []string) ([]string, error) {
	seen := make(map[string]struct{}, len(walked))
	for _, p := range walked {
		if s.opts.Selector.IsSource(p) {
			seen[p] = struct{}{}
		}
	}

	courses, err := s.repo.ListAll(ctx)
	if err != nil {
		return nil, &apperr.CatalogError{Op: "list", Path: s.opts.Root, Err: err}
	}

	root, err := filepath.Abs(s.opts.Root)
	if err != nil {
		return nil, &apperr.FilesystemError{Path: s.opts.Root, Err: err}
	}
	prefix := root + string(filepath.Separator)
	pruned := make([]string, 0)
	for _, c := range courses {
		if !strings.HasPrefix(c.SourcePath, prefix) {
			continue
		}
		if _, ok := seen[c.SourcePath]; ok {
			continue
		}
		if err := s.repo.DeleteByRenderedPath(ctx, c.RenderedPath); err != nil {
			return pruned, &apperr.CatalogError{Op: "delete", Path: c.RenderedPath, Err: err}
		}
		s.unpublish(ctx, c)
		pruned = append(pruned, c.RenderedPath)
		s.log.Info("course_pruned", logging.Fields{"id": c.ID, "title": c.Title, "path": c.SourcePath})
	}
	return pruned, nil
}

func (s *syncService) unpublish(ctx context.Context, c model.Course) {
	if s.store == nil {
		return
	}
	for _, p := range []string{c.RenderedPath, c.PrintablePath} {
		key := storage.ArtifactKey(c.Semester, c.Title, p)
		if err := s.store.Delete(ctx, key); err != nil {
			s.log.Warn("unpublish_failed", logging.Fields{"key": key, "error": err})
		}
	}
}
