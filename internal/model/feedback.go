package model

import (
	"time"
)

const (
	MinRating = 1
	MaxRating = 5
)

type Feedback struct {
	ID        string    `db:"id" json:"id"`
	ProjectID string    `db:"project_id" json:"projectId"`
	Rating    int       `db:"rating" json:"rating"`
	Title     *string   `db:"title" json:"title"`
	Content   string    `db:"content" json:"content"`
	Author    *string   `db:"author" json:"author"`
	CreatedAt time.Time `db:"created_at" json:"createdAt"`
}

// IsAnonymous reports whether the submitter left no name.
func (f *Feedback) IsAnonymous() bool {
	return f.Author == nil || *f.Author == ""
}

// OwnedFeedback is a feedback entry loaded together with its project's owner.
type OwnedFeedback struct {
	Feedback
	OwnerID string `db:"owner_id"`
}
