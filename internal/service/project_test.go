package service

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/utellme/utellme/internal/apperr"
	"github.com/utellme/utellme/internal/model"
	"github.com/utellme/utellme/internal/testutil"
)

func TestProjectCreateAndList(t *testing.T) {
	s := newTestServices(t)
	ctx := context.Background()
	user := testutil.CreateUser(t, s.db, "owner@example.com")

	created, err := s.projects.Create(ctx, user.ID, "  Test  ", "")
	require.NoError(t, err)
	assert.Equal(t, "Test", created.Name)
	assert.Nil(t, created.Description)
	assert.Equal(t, model.OrderByCreatedDesc, created.OrderBy)

	projects, err := s.projects.List(ctx, user.ID)
	require.NoError(t, err)
	require.Len(t, projects, 1)
	assert.Equal(t, created.ID, projects[0].ID)
	assert.Equal(t, "Test", projects[0].Name)
	assert.Empty(t, projects[0].Feedbacks)
}

func TestProjectListEmbedsRecentFeedback(t *testing.T) {
	s := newTestServices(t)
	ctx := context.Background()
	user := testutil.CreateUser(t, s.db, "owner@example.com")
	project := testutil.CreateProject(t, s.db, user.ID, "Shop")
	for _, rating := range []int{1, 2, 3, 4, 5} {
		testutil.CreateFeedback(t, s.db, project.ID, rating)
	}

	projects, err := s.projects.List(ctx, user.ID)
	require.NoError(t, err)
	require.Len(t, projects, 1)
	assert.Len(t, projects[0].Feedbacks, recentFeedbackPerProject)
}

func TestProjectCreateValidation(t *testing.T) {
	s := newTestServices(t)
	user := testutil.CreateUser(t, s.db, "owner@example.com")

	_, err := s.projects.Create(context.Background(), user.ID, "   ", "")
	assert.True(t, apperr.Is(err, apperr.CodeBadRequest))

	_, err = s.projects.Create(context.Background(), "", "Test", "")
	assert.True(t, apperr.Is(err, apperr.CodeUnauthorized))
}

func TestProjectEditAndDeleteByNonOwnerAreNoops(t *testing.T) {
	s := newTestServices(t)
	ctx := context.Background()
	owner := testutil.CreateUser(t, s.db, "u1@example.com")
	other := testutil.CreateUser(t, s.db, "u2@example.com")
	project := testutil.CreateProject(t, s.db, owner.ID, "Mine")
	testutil.CreateFeedback(t, s.db, project.ID, 4)

	count, err := s.projects.Edit(ctx, other.ID, project.ID, model.ProjectChanges{Name: model.Set("Stolen")})
	require.NoError(t, err)
	assert.Equal(t, int64(0), count)

	require.NoError(t, s.projects.Delete(ctx, other.ID, project.ID))

	info, err := s.projects.GetInfo(ctx, owner.ID, project.ID)
	require.NoError(t, err)
	assert.Equal(t, "Mine", info.Name)
	assert.Equal(t, 1, info.FeedbackCount)
}

func TestProjectEditMissingProject(t *testing.T) {
	s := newTestServices(t)
	user := testutil.CreateUser(t, s.db, "owner@example.com")

	count, err := s.projects.Edit(context.Background(), user.ID, "missing", model.ProjectChanges{Name: model.Set("x")})
	require.NoError(t, err)
	assert.Equal(t, int64(0), count)
}

func TestProjectEditPartialUpdate(t *testing.T) {
	s := newTestServices(t)
	ctx := context.Background()
	user := testutil.CreateUser(t, s.db, "owner@example.com")
	project := testutil.CreateProject(t, s.db, user.ID, "Shop")

	count, err := s.projects.Edit(ctx, user.ID, project.ID, model.ProjectChanges{
		PrimaryColor: model.Set("#ff0000"),
		Message:      model.Set("Thanks!"),
	})
	require.NoError(t, err)
	assert.Equal(t, int64(1), count)

	info, err := s.projects.GetInfo(ctx, user.ID, project.ID)
	require.NoError(t, err)
	require.NotNil(t, info.PrimaryColor)
	assert.Equal(t, "#ff0000", *info.PrimaryColor)
	assert.Equal(t, "Shop", info.Name)

	_, err = s.projects.Edit(ctx, user.ID, project.ID, model.ProjectChanges{PrimaryColor: model.Reset[string]()})
	require.NoError(t, err)

	info, err = s.projects.GetInfo(ctx, user.ID, project.ID)
	require.NoError(t, err)
	assert.Nil(t, info.PrimaryColor)
	require.NotNil(t, info.Message)
	assert.Equal(t, "Thanks!", *info.Message)

	public, err := s.projects.GetOne(ctx, project.ID)
	require.NoError(t, err)
	assert.Nil(t, public.PrimaryColor)
}

func TestProjectEditBlankNameIsIgnored(t *testing.T) {
	s := newTestServices(t)
	ctx := context.Background()
	user := testutil.CreateUser(t, s.db, "owner@example.com")
	project := testutil.CreateProject(t, s.db, user.ID, "Shop")

	_, err := s.projects.Edit(ctx, user.ID, project.ID, model.ProjectChanges{Name: model.Set("   ")})
	require.NoError(t, err)

	public, err := s.projects.GetOne(ctx, project.ID)
	require.NoError(t, err)
	assert.Equal(t, "Shop", public.Name)
}

func TestProjectEditValidation(t *testing.T) {
	s := newTestServices(t)
	ctx := context.Background()
	user := testutil.CreateUser(t, s.db, "owner@example.com")
	project := testutil.CreateProject(t, s.db, user.ID, "Shop")

	_, err := s.projects.Edit(ctx, user.ID, project.ID, model.ProjectChanges{
		TextColor: model.Set("red"),
		OrderBy:   model.Set(model.OrderBy("newest")),
	})
	require.Error(t, err)
	appErr := apperr.As(err)
	assert.Equal(t, apperr.CodeBadRequest, appErr.Code)
	assert.Contains(t, appErr.Fields, "newTextColor")
	assert.Contains(t, appErr.Fields, "newOrderBy")
}

func TestProjectOrderByRatingDesc(t *testing.T) {
	s := newTestServices(t)
	ctx := context.Background()
	user := testutil.CreateUser(t, s.db, "owner@example.com")
	project := testutil.CreateProject(t, s.db, user.ID, "Shop")
	base := time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)
	var created []*model.Feedback
	for i, rating := range []int{2, 5, 3, 5} {
		created = append(created, testutil.CreateFeedbackAt(t, s.db, project.ID, rating, base.Add(time.Duration(i)*time.Second)))
	}

	_, err := s.projects.Edit(ctx, user.ID, project.ID, model.ProjectChanges{OrderBy: model.Set(model.OrderByRatingDesc)})
	require.NoError(t, err)

	feedback, err := s.feedback.List(ctx, user.ID, project.ID)
	require.NoError(t, err)

	ids := make([]string, 0, len(feedback))
	for _, f := range feedback {
		ids = append(ids, f.ID)
	}
	// Equal ratings list the newest first
	assert.Equal(t, []string{created[3].ID, created[1].ID, created[2].ID, created[0].ID}, ids)
}

func TestProjectGetInfoAverage(t *testing.T) {
	s := newTestServices(t)
	ctx := context.Background()
	user := testutil.CreateUser(t, s.db, "owner@example.com")
	project := testutil.CreateProject(t, s.db, user.ID, "Shop")

	info, err := s.projects.GetInfo(ctx, user.ID, project.ID)
	require.NoError(t, err)
	assert.Equal(t, 0, info.FeedbackCount)
	assert.Nil(t, info.AverageRating)

	testutil.CreateFeedback(t, s.db, project.ID, 4)
	testutil.CreateFeedback(t, s.db, project.ID, 5)

	info, err = s.projects.GetInfo(ctx, user.ID, project.ID)
	require.NoError(t, err)
	assert.Equal(t, 2, info.FeedbackCount)
	require.NotNil(t, info.AverageRating)
	assert.InDelta(t, 4.5, *info.AverageRating, 0.0001)
}

func TestProjectGetInfoForeignProject(t *testing.T) {
	s := newTestServices(t)
	owner := testutil.CreateUser(t, s.db, "u1@example.com")
	other := testutil.CreateUser(t, s.db, "u2@example.com")
	project := testutil.CreateProject(t, s.db, owner.ID, "Mine")

	_, err := s.projects.GetInfo(context.Background(), other.ID, project.ID)
	assert.True(t, apperr.Is(err, apperr.CodeNotFound))
}

func TestProjectGetOne(t *testing.T) {
	s := newTestServices(t)
	ctx := context.Background()
	user := testutil.CreateUser(t, s.db, "owner@example.com")
	project := testutil.CreateProject(t, s.db, user.ID, "Shop")

	public, err := s.projects.GetOne(ctx, project.ID)
	require.NoError(t, err)
	assert.Equal(t, project.ID, public.ID)
	assert.Equal(t, "Shop", public.Name)

	_, err = s.projects.GetOne(ctx, "missing")
	assert.True(t, apperr.Is(err, apperr.CodeNotFound))
}

func TestProjectDeleteRemovesFeedback(t *testing.T) {
	s := newTestServices(t)
	ctx := context.Background()
	user := testutil.CreateUser(t, s.db, "owner@example.com")
	project := testutil.CreateProject(t, s.db, user.ID, "Shop")
	testutil.CreateFeedback(t, s.db, project.ID, 3)
	testutil.CreateFeedback(t, s.db, project.ID, 4)

	require.NoError(t, s.projects.Delete(ctx, user.ID, project.ID))

	assert.Equal(t, 0, countRows(t, s.db, `SELECT COUNT(*) FROM projects WHERE id = $1`, project.ID))
	assert.Equal(t, 0, countRows(t, s.db, `SELECT COUNT(*) FROM feedback WHERE project_id = $1`, project.ID))
}
