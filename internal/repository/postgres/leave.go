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

type leaveRepository struct {
	BaseRepository
}

func NewLeaveRepository(base BaseRepository) repository.LeaveRepository {
	return &leaveRepository{base}
}

type leaveRow struct {
	model.LeaveApplication
	ReqUsername     string     `db:"u_username"`
	ReqFirstName    *string    `db:"u_first_name"`
	ReqLastName     *string    `db:"u_last_name"`
	ReqDepartmentID *uuid.UUID `db:"u_department_id"`
	ReqRole         model.Role `db:"u_role"`
	ReqEmail        string     `db:"u_email"`
}

func (r *leaveRepository) Get(ctx context.Context, id uuid.UUID) (*model.LeaveApplication, error) {
	query := `
		SELECT l.id, l.user_id, l.leave_type_name, l.start_date, l.end_date,
			   l.status, l.created_at,
			   u.username AS u_username, u.first_name AS u_first_name,
			   u.last_name AS u_last_name, u.department_id AS u_department_id,
			   u.role AS u_role, u.email AS u_email
		FROM leave_applications l
		JOIN users u ON u.id = l.user_id
		WHERE l.id = $1
	`

	var row leaveRow
	if err := r.db.GetContext(ctx, &row, query, id); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to get leave application: %w", err)
	}

	leave := row.LeaveApplication
	leave.User = &model.User{
		Base:         model.Base{ID: leave.UserID},
		Username:     row.ReqUsername,
		FirstName:    row.ReqFirstName,
		LastName:     row.ReqLastName,
		DepartmentID: row.ReqDepartmentID,
		Role:         row.ReqRole,
		Email:        row.ReqEmail,
	}
	return &leave, nil
}
