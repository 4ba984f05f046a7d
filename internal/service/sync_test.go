package service

import (
	"bytes"
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"testing"
	"time"

	"coursesync/internal/apperr"
	"coursesync/internal/database/migration"
	"coursesync/internal/logging"
	"coursesync/internal/model"
	"coursesync/internal/render"
	renderMocks "coursesync/internal/render/mocks"
	repoMocks "coursesync/internal/repository/mocks"
	"coursesync/internal/repository/sqlite"
	"coursesync/internal/source"
	"coursesync/internal/storage"
	storeMocks "coursesync/internal/storage/mocks"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	_ "modernc.org/sqlite"
)

const baseURL = "https://example.org/courses"

func writeSource(t *testing.T, root, title, content string) string {
	t.Helper()
	p := filepath.Join(root, title, "cours.md")
	require.NoError(t, os.MkdirAll(filepath.Dir(p), 0o755))
	require.NoError(t, os.WriteFile(p, []byte(content), 0o644))
	return p
}

func options(root string, prune bool) SyncOptions {
	return SyncOptions{
		Root:          root,
		Selector:      source.Selector{Ext: ".md", Author: "J. Doe", Semester: "s7"},
		PublicBaseURL: baseURL,
		Collection:    "Cours",
		PruneMissing:  prune,
	}
}

// artifactWriters makes the renderer mocks produce their output files.
func artifactWriters(markup *renderMocks.MockMarkupRenderer, printer *renderMocks.MockPrintRenderer) {
	markup.On("RenderMarkup", mock.Anything, mock.Anything).Run(func(args mock.Arguments) {
		job := args.Get(1).(render.Job)
		_ = os.WriteFile(job.RenderedPath, []byte("<html><head></head><body>"+job.Title+"</body></html>"), 0o644)
	}).Return(nil)
	printer.On("RenderPrint", mock.Anything, mock.Anything).Run(func(args mock.Arguments) {
		job := args.Get(1).(render.Job)
		_ = os.WriteFile(job.PrintablePath, []byte("%PDF-1.4"), 0o644)
	}).Return(nil)
}

func newSQLiteRepo(t *testing.T) *sqlite.CourseSQLite {
	t.Helper()
	db, err := sql.Open("sqlite", ":memory:")
	require.NoError(t, err)
	db.SetMaxOpenConns(1)
	t.Cleanup(func() { db.Close() })
	require.NoError(t, migration.EnsureMigrated(context.Background(), db, migration.SQLite, time.UTC, "memory"))
	return sqlite.NewCourseSQLite(db)
}

func TestSyncService_Refresh_ChangeDetection(t *testing.T) {
	ctx := context.Background()
	root := t.TempDir()
	algo := writeSource(t, root, "Algo", "# Algo\n")
	writeSource(t, root, "Reseaux", "# Reseaux\n")

	repo := newSQLiteRepo(t)
	markup := new(renderMocks.MockMarkupRenderer)
	printer := new(renderMocks.MockPrintRenderer)
	artifactWriters(markup, printer)

	reg := prometheus.NewRegistry()
	metrics, err := NewSyncMetrics(reg)
	require.NoError(t, err)

	svc := NewSyncService(options(root, false), repo, markup, printer, nil, metrics, nil)

	first, err := svc.Refresh(ctx)
	require.NoError(t, err)
	assert.NotEmpty(t, first.RunID)
	assert.Equal(t, 2, first.Inserted)
	assert.Len(t, first.Courses, 2)
	assert.Empty(t, first.Failures)

	all, err := repo.ListAll(ctx)
	require.NoError(t, err)
	require.Len(t, all, 2)
	for _, c := range all {
		assert.Nil(t, c.LastUpdate)
		assert.Equal(t, "s7", c.Semester)
		assert.FileExists(t, c.RenderedPath)
		assert.FileExists(t, c.PrintablePath)
	}

	second, err := svc.Refresh(ctx)
	require.NoError(t, err)
	assert.Equal(t, 0, second.Inserted)
	assert.Equal(t, 2, second.Unchanged)

	require.NoError(t, os.WriteFile(algo, []byte("# Algo\n\nNew chapter.\n"), 0o644))
	third, err := svc.Refresh(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, third.Updated)
	assert.Equal(t, 1, third.Unchanged)

	updated, err := repo.FindByRenderedPath(ctx, filepath.Join(root, "Algo", "cours.html"))
	require.NoError(t, err)
	assert.Equal(t, int64(len("# Algo\n\nNew chapter.\n")), updated.SizeBytes)
	require.NotNil(t, updated.LastUpdate)

	assert.Equal(t, float64(2), testutil.ToFloat64(metrics.documents.WithLabelValues("inserted")))
	assert.Equal(t, float64(1), testutil.ToFloat64(metrics.documents.WithLabelValues("updated")))
	assert.Equal(t, float64(3), testutil.ToFloat64(metrics.refreshes.WithLabelValues("ok")))
}

func TestSyncService_Refresh_RelativeRootKeepsIdentity(t *testing.T) {
	ctx := context.Background()
	base := t.TempDir()
	src := writeSource(t, filepath.Join(base, "md"), "Algo", "# Algo\n")
	wd, err := os.Getwd()
	require.NoError(t, err)
	require.NoError(t, os.Chdir(base))
	t.Cleanup(func() { _ = os.Chdir(wd) })

	repo := newSQLiteRepo(t)
	markup := new(renderMocks.MockMarkupRenderer)
	printer := new(renderMocks.MockPrintRenderer)
	artifactWriters(markup, printer)

	relative, err := NewSyncService(options("md", true), repo, markup, printer, nil, nil, nil).Refresh(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, relative.Inserted)
	require.Len(t, relative.Courses, 1)
	assert.Equal(t, src, relative.Courses[0].SourcePath)

	absolute, err := NewSyncService(options(filepath.Join(base, "md"), true), repo, markup, printer, nil, nil, nil).Refresh(ctx)
	require.NoError(t, err)
	assert.Equal(t, 0, absolute.Inserted)
	assert.Equal(t, 1, absolute.Unchanged)
	assert.Empty(t, absolute.Pruned)

	all, err := repo.ListAll(ctx)
	require.NoError(t, err)
	require.Len(t, all, 1)
	assert.Equal(t, src, all[0].SourcePath)
	assert.Equal(t, filepath.Join(base, "md", "Algo", "cours.html"), all[0].RenderedPath)
}

func TestSyncService_Refresh_IsolatesDocumentFailures(t *testing.T) {
	ctx := context.Background()
	root := t.TempDir()
	writeSource(t, root, "Algo", "# Algo\n")
	writeSource(t, root, "Broken", "![fig](assets/fig.png)\n")
	writeSource(t, root, "Compil", "# Compil\n")

	repo := newSQLiteRepo(t)
	markup := new(renderMocks.MockMarkupRenderer)
	printer := new(renderMocks.MockPrintRenderer)

	compilErr := &apperr.RenderError{Title: "Compil", Stage: render.StageMarkup, Err: errors.New("exit status 64")}
	markup.On("RenderMarkup", mock.Anything, mock.MatchedBy(func(j render.Job) bool { return j.Title == "Compil" })).Return(compilErr)
	artifactWriters(markup, printer)

	var logs bytes.Buffer
	svc := NewSyncService(options(root, false), repo, markup, printer, nil, nil, logging.NewWithWriter(&logs, time.UTC, "sync"))
	res, err := svc.Refresh(ctx)
	require.NoError(t, err)

	require.Len(t, res.Courses, 1)
	assert.Equal(t, "Algo", res.Courses[0].Title)

	levels := map[string]string{}
	for _, line := range strings.Split(strings.TrimSpace(logs.String()), "\n") {
		var entry map[string]any
		require.NoError(t, json.Unmarshal([]byte(line), &entry))
		if title, ok := entry["title"].(string); ok && entry["kind"] != nil {
			levels[title] = entry["level"].(string) + " " + entry["event"].(string)
		}
	}
	assert.Equal(t, "warn document_rejected", levels["Broken"])
	assert.Equal(t, "error document_failed", levels["Compil"])

	require.Len(t, res.Failures, 2)
	byTitle := map[string]DocumentFailure{}
	for _, f := range res.Failures {
		byTitle[f.Title] = f
	}
	assert.Equal(t, apperr.KindValidation, byTitle["Broken"].Kind)
	assert.Contains(t, byTitle["Broken"].Message, "assets/fig.png")
	assert.Equal(t, apperr.KindRender, byTitle["Compil"].Kind)

	markup.AssertNotCalled(t, "RenderMarkup", mock.Anything, mock.MatchedBy(func(j render.Job) bool { return j.Title == "Broken" }))
	printer.AssertNotCalled(t, "RenderPrint", mock.Anything, mock.MatchedBy(func(j render.Job) bool { return j.Title == "Compil" }))

	all, err := repo.ListAll(ctx)
	require.NoError(t, err)
	require.Len(t, all, 1)
	assert.Equal(t, "Algo", all[0].Title)
}

func TestSyncService_Refresh_NormalizesAssets(t *testing.T) {
	ctx := context.Background()
	root := t.TempDir()
	p := writeSource(t, root, "Algo", "![g](./assets/g.png) ![i](./images/i.svg)\n")

	mRepo := new(repoMocks.MockCourseRepository)
	mRepo.On("FindByRenderedPath", mock.Anything, mock.Anything).Return(nil, sql.ErrNoRows)
	mRepo.On("Insert", mock.Anything, mock.Anything).Return(&model.Course{ID: 1}, nil)
	markup := new(renderMocks.MockMarkupRenderer)
	printer := new(renderMocks.MockPrintRenderer)
	artifactWriters(markup, printer)

	svc := NewSyncService(options(root, false), mRepo, markup, printer, nil, nil, nil)
	_, err := svc.Refresh(ctx)
	require.NoError(t, err)

	data, err := os.ReadFile(p)
	require.NoError(t, err)
	assert.Equal(t,
		"![g]("+baseURL+"/s7/Cours/Algo/assets/g.png) ![i]("+baseURL+"/s7/Cours/Algo/images/i.svg)\n",
		string(data))

	_, err = svc.Refresh(ctx)
	require.NoError(t, err)
	again, err := os.ReadFile(p)
	require.NoError(t, err)
	assert.Equal(t, data, again)
}

func TestSyncService_Refresh_FingerprintFollowsRewrite(t *testing.T) {
	ctx := context.Background()
	root := t.TempDir()
	p := writeSource(t, root, "Algo", "# Algo\n\n![g](./assets/g.png)\n")

	repo := newSQLiteRepo(t)
	markup := new(renderMocks.MockMarkupRenderer)
	printer := new(renderMocks.MockPrintRenderer)
	artifactWriters(markup, printer)
	svc := NewSyncService(options(root, false), repo, markup, printer, nil, nil, nil)

	first, err := svc.Refresh(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, first.Inserted)

	info, err := os.Stat(p)
	require.NoError(t, err)
	require.Len(t, first.Courses, 1)
	assert.Equal(t, info.Size(), first.Courses[0].SizeBytes)

	stored, err := repo.FindByRenderedPath(ctx, filepath.Join(root, "Algo", "cours.html"))
	require.NoError(t, err)
	assert.Equal(t, info.Size(), stored.SizeBytes)

	second, err := svc.Refresh(ctx)
	require.NoError(t, err)
	assert.Equal(t, 0, second.Updated)
	assert.Equal(t, 1, second.Unchanged)
}

func TestSyncService_Refresh_CatalogErrorAborts(t *testing.T) {
	ctx := context.Background()
	root := t.TempDir()
	writeSource(t, root, "Algo", "# Algo\n")

	mRepo := new(repoMocks.MockCourseRepository)
	mRepo.On("FindByRenderedPath", mock.Anything, mock.Anything).Return(nil, errors.New("database is locked"))
	markup := new(renderMocks.MockMarkupRenderer)
	printer := new(renderMocks.MockPrintRenderer)
	artifactWriters(markup, printer)

	reg := prometheus.NewRegistry()
	metrics, err := NewSyncMetrics(reg)
	require.NoError(t, err)

	svc := NewSyncService(options(root, false), mRepo, markup, printer, nil, metrics, nil)
	res, err := svc.Refresh(ctx)
	assert.Nil(t, res)
	assert.Equal(t, apperr.KindCatalog, apperr.KindOf(err))
	assert.Equal(t, float64(1), testutil.ToFloat64(metrics.refreshes.WithLabelValues("error")))
}

func TestSyncService_Refresh_MissingRoot(t *testing.T) {
	svc := NewSyncService(options(filepath.Join(t.TempDir(), "nope"), false), new(repoMocks.MockCourseRepository),
		new(renderMocks.MockMarkupRenderer), new(renderMocks.MockPrintRenderer), nil, nil, nil)

	_, err := svc.Refresh(context.Background())
	assert.Equal(t, apperr.KindFilesystem, apperr.KindOf(err))
}

func TestSyncService_Refresh_Publishes(t *testing.T) {
	ctx := context.Background()
	root := t.TempDir()
	writeSource(t, root, "Algo", "# Algo\n")

	mRepo := new(repoMocks.MockCourseRepository)
	mRepo.On("FindByRenderedPath", mock.Anything, mock.Anything).Return(nil, sql.ErrNoRows)
	mRepo.On("Insert", mock.Anything, mock.Anything).Return(&model.Course{ID: 1}, nil)
	markup := new(renderMocks.MockMarkupRenderer)
	printer := new(renderMocks.MockPrintRenderer)
	artifactWriters(markup, printer)

	mStore := new(storeMocks.MockStorage)
	mStore.On("Put", mock.Anything, "s7/Algo/cours.html", mock.Anything, mock.MatchedBy(func(o storage.PutObjectOptions) bool {
		return o.ContentType == "text/html; charset=utf-8" && o.Size > 0
	})).Return(storage.ObjectInfo{Key: "s7/Algo/cours.html"}, nil)
	mStore.On("Put", mock.Anything, "s7/Algo/cours.pdf", mock.Anything, mock.Anything).Return(storage.ObjectInfo{}, errors.New("bucket offline"))

	reg := prometheus.NewRegistry()
	metrics, err := NewSyncMetrics(reg)
	require.NoError(t, err)

	svc := NewSyncService(options(root, false), mRepo, markup, printer, mStore, metrics, nil)
	res, err := svc.Refresh(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, res.Inserted)
	assert.Equal(t, float64(1), testutil.ToFloat64(metrics.publishFailures))
	mStore.AssertExpectations(t)
}

func TestSyncService_Refresh_Prune(t *testing.T) {
	ctx := context.Background()
	root := t.TempDir()
	writeSource(t, root, "Algo", "# Algo\n")
	broken := writeSource(t, root, "Broken", "![x](assets/x.png)\n")

	repo := newSQLiteRepo(t)
	gone := model.Course{
		Title: "Gone", Semester: "s7",
		SourcePath:    filepath.Join(root, "Gone", "cours.md"),
		RenderedPath:  filepath.Join(root, "Gone", "cours.html"),
		PrintablePath: filepath.Join(root, "Gone", "cours.pdf"),
		ModifiedAt:    time.Now().UTC(),
	}
	outside := gone
	outside.SourcePath = "/elsewhere/Gone/cours.md"
	outside.RenderedPath = "/elsewhere/Gone/cours.html"
	outside.PrintablePath = "/elsewhere/Gone/cours.pdf"
	brokenCourse := gone
	brokenCourse.SourcePath = broken
	brokenCourse.RenderedPath = filepath.Join(root, "Broken", "cours.html")
	brokenCourse.PrintablePath = filepath.Join(root, "Broken", "cours.pdf")
	for _, c := range []model.Course{gone, outside, brokenCourse} {
		c := c
		_, err := repo.Insert(ctx, &c)
		require.NoError(t, err)
	}

	markup := new(renderMocks.MockMarkupRenderer)
	printer := new(renderMocks.MockPrintRenderer)
	artifactWriters(markup, printer)
	mStore := new(storeMocks.MockStorage)
	mStore.On("Put", mock.Anything, mock.Anything, mock.Anything, mock.Anything).Return(storage.ObjectInfo{}, nil)
	mStore.On("Delete", mock.Anything, "s7/Gone/cours.html").Return(nil)
	mStore.On("Delete", mock.Anything, "s7/Gone/cours.pdf").Return(nil)

	svc := NewSyncService(options(root, true), repo, markup, printer, mStore, nil, nil)
	res, err := svc.Refresh(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{gone.RenderedPath}, res.Pruned)

	all, err := repo.ListAll(ctx)
	require.NoError(t, err)
	paths := make([]string, 0, len(all))
	for _, c := range all {
		paths = append(paths, c.SourcePath)
	}
	sort.Strings(paths)
	want := []string{outside.SourcePath, broken, filepath.Join(root, "Algo", "cours.md")}
	sort.Strings(want)
	assert.Equal(t, want, paths)
	mStore.AssertExpectations(t)
}

func TestSyncService_Refresh_RejectsOverlap(t *testing.T) {
	ctx := context.Background()
	root := t.TempDir()
	writeSource(t, root, "Algo", "# Algo\n")

	mRepo := new(repoMocks.MockCourseRepository)
	mRepo.On("FindByRenderedPath", mock.Anything, mock.Anything).Return(nil, sql.ErrNoRows)
	mRepo.On("Insert", mock.Anything, mock.Anything).Return(&model.Course{ID: 1}, nil)

	entered := make(chan struct{})
	release := make(chan struct{})
	markup := new(renderMocks.MockMarkupRenderer)
	markup.On("RenderMarkup", mock.Anything, mock.Anything).Run(func(args mock.Arguments) {
		close(entered)
		<-release
	}).Return(nil).Once()
	printer := new(renderMocks.MockPrintRenderer)
	printer.On("RenderPrint", mock.Anything, mock.Anything).Return(nil)

	svc := NewSyncService(options(root, false), mRepo, markup, printer, nil, nil, nil)

	var wg sync.WaitGroup
	wg.Add(1)
	var firstErr error
	go func() {
		defer wg.Done()
		_, firstErr = svc.Refresh(ctx)
	}()

	<-entered
	_, err := svc.Refresh(ctx)
	assert.ErrorIs(t, err, ErrRefreshInProgress)

	close(release)
	wg.Wait()
	assert.NoError(t, firstErr)
}

func TestSyncService_Refresh_Canceled(t *testing.T) {
	root := t.TempDir()
	writeSource(t, root, "Algo", "# Algo\n")

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	svc := NewSyncService(options(root, false), new(repoMocks.MockCourseRepository),
		new(renderMocks.MockMarkupRenderer), new(renderMocks.MockPrintRenderer), nil, nil, nil)
	_, err := svc.Refresh(ctx)
	assert.ErrorIs(t, err, context.Canceled)
}
