package service

import (
	"context"
	"database/sql"
	"errors"

	"coursesync/internal/apperr"
	"coursesync/internal/model"
	"coursesync/internal/repository"
)

// Outcome is what reconciliation did with one document.
type Outcome string

const (
	OutcomeInserted  Outcome = "inserted"
	OutcomeUpdated   Outcome = "updated"
	OutcomeUnchanged Outcome = "unchanged"
)

// Reconciler keeps the catalog in line with freshly observed documents.
// Each call commits on its own; there is no batch transaction.
type Reconciler struct {
	repo repository.CourseRepository
}

// NewReconciler constructs a Reconciler over the given catalog repository.
func NewReconciler(repo repository.CourseRepository) *Reconciler {
	return &Reconciler{repo: repo}
}

// Reconcile inserts rec when its rendered path is unknown, updates size and
// last_update when the stored size differs, and writes nothing otherwise.
// Repository failures are returned as *apperr.CatalogError.
func (r *Reconciler) Reconcile(ctx context.Context, rec model.DocumentRecord) (Outcome, error) {
	existing, err := r.repo.FindByRenderedPath(ctx, rec.RenderedPath)
	switch {
	case errors.Is(err, sql.ErrNoRows):
		if _, err := r.repo.Insert(ctx, model.NewCourse(rec)); err != nil {
			return "", &apperr.CatalogError{Op: "insert", Path: rec.RenderedPath, Err: err}
		}
		return OutcomeInserted, nil
	case err != nil:
		return "", &apperr.CatalogError{Op: "lookup", Path: rec.RenderedPath, Err: err}
	}

	if existing.SizeBytes == rec.SizeBytes {
		return OutcomeUnchanged, nil
	}
	if err := r.repo.UpdateSizeAndTimestamp(ctx, rec.RenderedPath, rec.SizeBytes, rec.ModifiedAt); err != nil {
		return "", &apperr.CatalogError{Op: "update", Path: rec.RenderedPath, Err: err}
	}
	return OutcomeUpdated, nil
}
