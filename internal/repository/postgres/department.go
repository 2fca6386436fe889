package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/google/uuid"

	"github.com/timelogic/wfm-api/internal/model"
	"github.com/timelogic/wfm-api/internal/repository"
)

type departmentRepository struct {
	BaseRepository
}

func NewDepartmentRepository(base BaseRepository) repository.DepartmentRepository {
	return &departmentRepository{base}
}

func (r *departmentRepository) Get(ctx context.Context, id uuid.UUID) (*model.Department, error) {
	query := `
		SELECT * FROM departments
		WHERE id = $1 AND deleted_at IS NULL
	`

	var dept model.Department
	if err := r.db.GetContext(ctx, &dept, query, id); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to get department: %w", err)
	}

	return &dept, nil
}
