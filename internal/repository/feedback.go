package repository

import (
	"context"
	"database/sql"
	"errors"

	"github.com/jmoiron/sqlx"

	"github.com/utellme/utellme/internal/model"
)

var ErrFeedbackNotFound = errors.New("feedback not found")

const feedbackColumns = `f.id, f.project_id, f.rating, f.title, f.content, f.author, f.created_at`

type FeedbackRepository interface {
	Create(ctx context.Context, feedback *model.Feedback) error
	// ByProject lists a project's feedback if the project belongs to userID.
	ByProject(ctx context.Context, userID, projectID string, orderBy model.OrderBy) ([]*model.Feedback, error)
	ByUser(ctx context.Context, userID string) ([]*model.Feedback, error)
	// RecentByUser returns up to limit newest entries per project owned by userID.
	RecentByUser(ctx context.Context, userID string, limit int) (map[string][]*model.Feedback, error)
	WithOwner(ctx context.Context, feedbackID string) (*model.OwnedFeedback, error)
	Delete(ctx context.Context, feedbackID string) error
}

type feedbackRepository struct {
	db *sqlx.DB
}

func NewFeedbackRepository(db *sqlx.DB) FeedbackRepository {
	return &feedbackRepository{db: db}
}

func (r *feedbackRepository) Create(ctx context.Context, feedback *model.Feedback) error {
	query := `INSERT INTO feedback (id, project_id, rating, title, content, author, created_at)
	          VALUES ($1, $2, $3, $4, $5, $6, $7)`

	_, err := r.db.ExecContext(ctx, query,
		feedback.ID,
		feedback.ProjectID,
		feedback.Rating,
		feedback.Title,
		feedback.Content,
		feedback.Author,
		feedback.CreatedAt,
	)

	return err
}

func (r *feedbackRepository) ByProject(ctx context.Context, userID, projectID string, orderBy model.OrderBy) ([]*model.Feedback, error) {
	feedback := []*model.Feedback{}

	query := `SELECT ` + feedbackColumns + `
	          FROM feedback f JOIN projects p ON p.id = f.project_id
	          WHERE f.project_id = $1 AND p.user_id = $2 ` + orderClause(orderBy)

	err := r.db.SelectContext(ctx, &feedback, query, projectID, userID)
	if err != nil {
		return nil, err
	}

	return feedback, nil
}

func (r *feedbackRepository) ByUser(ctx context.Context, userID string) ([]*model.Feedback, error) {
	feedback := []*model.Feedback{}

	query := `SELECT ` + feedbackColumns + `
	          FROM feedback f JOIN projects p ON p.id = f.project_id
	          WHERE p.user_id = $1 ` + orderClause(model.OrderByCreatedDesc)

	err := r.db.SelectContext(ctx, &feedback, query, userID)
	if err != nil {
		return nil, err
	}

	return feedback, nil
}

func (r *feedbackRepository) RecentByUser(ctx context.Context, userID string, limit int) (map[string][]*model.Feedback, error) {
	var rows []*model.Feedback

	query := `SELECT id, project_id, rating, title, content, author, created_at FROM (
	              SELECT ` + feedbackColumns + `,
	                     ROW_NUMBER() OVER (PARTITION BY f.project_id ORDER BY f.created_at DESC) AS rn
	              FROM feedback f JOIN projects p ON p.id = f.project_id
	              WHERE p.user_id = $1
	          ) ranked
	          WHERE rn <= $2
	          ORDER BY project_id, created_at DESC`

	err := r.db.SelectContext(ctx, &rows, query, userID, limit)
	if err != nil {
		return nil, err
	}

	byProject := make(map[string][]*model.Feedback)
	for _, f := range rows {
		byProject[f.ProjectID] = append(byProject[f.ProjectID], f)
	}

	return byProject, nil
}

func (r *feedbackRepository) WithOwner(ctx context.Context, feedbackID string) (*model.OwnedFeedback, error) {
	feedback := &model.OwnedFeedback{}

	query := `SELECT ` + feedbackColumns + `, p.user_id AS owner_id
	          FROM feedback f JOIN projects p ON p.id = f.project_id
	          WHERE f.id = $1`

	err := r.db.GetContext(ctx, feedback, query, feedbackID)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrFeedbackNotFound
	}
	if err != nil {
		return nil, err
	}

	return feedback, nil
}

func (r *feedbackRepository) Delete(ctx context.Context, feedbackID string) error {
	result, err := r.db.ExecContext(ctx, `DELETE FROM feedback WHERE id = $1`, feedbackID)
	if err != nil {
		return err
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return err
	}

	if rows == 0 {
		return ErrFeedbackNotFound
	}

	return nil
}

func orderClause(orderBy model.OrderBy) string {
	switch orderBy {
	case model.OrderByCreatedAsc:
		return "ORDER BY f.created_at ASC"
	case model.OrderByRatingDesc:
		return "ORDER BY f.rating DESC, f.created_at DESC"
	case model.OrderByRatingAsc:
		return "ORDER BY f.rating ASC, f.created_at DESC"
	default:
		return "ORDER BY f.created_at DESC"
	}
}
