package repository

import (
	"context"
	"fmt"

	"github.com/jmoiron/sqlx"

	"github.com/wilsbb/tor-accreditation-api/internal/models"
)

// CurriculumRepository reads the institution's reference curriculum. The
// table is seeded out of band; the workflow engine never writes to it.
type CurriculumRepository struct {
	db *sqlx.DB
}

// NewCurriculumRepository constructs the repository.
func NewCurriculumRepository(db *sqlx.DB) *CurriculumRepository {
	return &CurriculumRepository{db: db}
}

// List returns every curriculum subject ordered by subject code.
func (r *CurriculumRepository) List(ctx context.Context) ([]models.CurriculumSubject, error) {
	const query = `SELECT id, subject_code, units, description FROM curriculum_subjects ORDER BY subject_code ASC`
	var subjects []models.CurriculumSubject
	if err := r.db.SelectContext(ctx, &subjects, query); err != nil {
		return nil, fmt.Errorf("list curriculum subjects: %w", err)
	}
	return subjects, nil
}
