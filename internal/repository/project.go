package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"github.com/jmoiron/sqlx"

	"github.com/utellme/utellme/internal/model"
)

var ErrProjectNotFound = errors.New("project not found")

type ProjectRepository interface {
	Create(ctx context.Context, project *model.Project) error
	// ByID looks a project up without an owner filter. Callers decide
	// what the owner check means for them.
	ByID(ctx context.Context, projectID string) (*model.Project, error)
	ByUser(ctx context.Context, userID string) ([]*model.Project, error)
	Update(ctx context.Context, userID, projectID string, changes model.ProjectChanges) (int64, error)
	Delete(ctx context.Context, userID, projectID string) (int64, error)
	Stats(ctx context.Context, projectID string) (count int, average *float64, err error)
}

type projectRepository struct {
	db *sqlx.DB
}

func NewProjectRepository(db *sqlx.DB) ProjectRepository {
	return &projectRepository{db: db}
}

func (r *projectRepository) Create(ctx context.Context, project *model.Project) error {
	query := `INSERT INTO projects (id, user_id, name, description, message, primary_color, text_color, background_color, order_by, created_at)
	          VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)`

	_, err := r.db.ExecContext(ctx, query,
		project.ID,
		project.UserID,
		project.Name,
		project.Description,
		project.Message,
		project.PrimaryColor,
		project.TextColor,
		project.BackgroundColor,
		project.OrderBy,
		project.CreatedAt,
	)

	return err
}

func (r *projectRepository) ByID(ctx context.Context, projectID string) (*model.Project, error) {
	project := &model.Project{}
	query := `SELECT * FROM projects WHERE id = $1`

	err := r.db.GetContext(ctx, project, query, projectID)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrProjectNotFound
	}
	if err != nil {
		return nil, err
	}

	return project, nil
}

func (r *projectRepository) ByUser(ctx context.Context, userID string) ([]*model.Project, error) {
	projects := []*model.Project{}
	query := `SELECT * FROM projects WHERE user_id = $1 ORDER BY created_at DESC`

	err := r.db.SelectContext(ctx, &projects, query, userID)
	if err != nil {
		return nil, err
	}

	return projects, nil
}

// Update writes only the columns present in changes. Reset fields become
// NULL. The owner filter is part of the statement, so a project deleted or
// owned by someone else yields 0.
func (r *projectRepository) Update(ctx context.Context, userID, projectID string, changes model.ProjectChanges) (int64, error) {
	var sets []string
	var args []any

	add := func(column string, value any) {
		args = append(args, value)
		sets = append(sets, fmt.Sprintf("%s = $%d", column, len(args)))
	}
	addNullable := func(column string, f model.Field[string]) {
		switch {
		case f.IsSet():
			add(column, f.Value())
		case f.IsReset():
			add(column, nil)
		}
	}

	if changes.Name.IsSet() {
		add("name", changes.Name.Value())
	}
	addNullable("description", changes.Description)
	addNullable("message", changes.Message)
	addNullable("primary_color", changes.PrimaryColor)
	addNullable("text_color", changes.TextColor)
	addNullable("background_color", changes.BackgroundColor)
	if changes.OrderBy.IsSet() {
		add("order_by", changes.OrderBy.Value())
	}

	if len(sets) == 0 {
		var count int64
		err := r.db.GetContext(ctx, &count, `SELECT COUNT(*) FROM projects WHERE id = $1 AND user_id = $2`, projectID, userID)
		return count, err
	}

	query := fmt.Sprintf("UPDATE projects SET %s WHERE id = $%d AND user_id = $%d",
		strings.Join(sets, ", "), len(args)+1, len(args)+2)
	args = append(args, projectID, userID)

	result, err := r.db.ExecContext(ctx, query, args...)
	if err != nil {
		return 0, err
	}

	return result.RowsAffected()
}

func (r *projectRepository) Delete(ctx context.Context, userID, projectID string) (int64, error) {
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	_, err = tx.ExecContext(ctx,
		`DELETE FROM feedback WHERE project_id IN (SELECT id FROM projects WHERE id = $1 AND user_id = $2)`,
		projectID, userID)
	if err != nil {
		return 0, err
	}

	result, err := tx.ExecContext(ctx, `DELETE FROM projects WHERE id = $1 AND user_id = $2`, projectID, userID)
	if err != nil {
		return 0, err
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return 0, err
	}

	return rows, tx.Commit()
}

// Stats computes feedback count and average rating on read. The average is
// nil when the project has no feedback.
func (r *projectRepository) Stats(ctx context.Context, projectID string) (int, *float64, error) {
	var row struct {
		Count   int             `db:"feedback_count"`
		Average sql.NullFloat64 `db:"average_rating"`
	}
	query := `SELECT COUNT(*) AS feedback_count, AVG(CAST(rating AS DOUBLE PRECISION)) AS average_rating
	          FROM feedback WHERE project_id = $1`

	err := r.db.GetContext(ctx, &row, query, projectID)
	if err != nil {
		return 0, nil, err
	}

	if !row.Average.Valid {
		return row.Count, nil, nil
	}
	avg := row.Average.Float64
	return row.Count, &avg, nil
}
