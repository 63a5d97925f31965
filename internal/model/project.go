package model

import (
	"time"
)

type OrderBy string

const (
	OrderByCreatedDesc OrderBy = "createdDesc"
	OrderByCreatedAsc  OrderBy = "createdAsc"
	OrderByRatingDesc  OrderBy = "ratingDesc"
	OrderByRatingAsc   OrderBy = "ratingAsc"
)

func (o OrderBy) Valid() bool {
	switch o {
	case OrderByCreatedDesc, OrderByCreatedAsc, OrderByRatingDesc, OrderByRatingAsc:
		return true
	}
	return false
}

type Project struct {
	ID              string    `db:"id" json:"id"`
	UserID          string    `db:"user_id" json:"userId"`
	Name            string    `db:"name" json:"name"`
	Description     *string   `db:"description" json:"description"`
	Message         *string   `db:"message" json:"message"`
	PrimaryColor    *string   `db:"primary_color" json:"primaryColor"`
	TextColor       *string   `db:"text_color" json:"textColor"`
	BackgroundColor *string   `db:"background_color" json:"backgroundColor"`
	OrderBy         OrderBy   `db:"order_by" json:"orderBy"`
	CreatedAt       time.Time `db:"created_at" json:"createdAt"`
}

// ProjectWithFeedback is a project listed with its most recent feedback.
type ProjectWithFeedback struct {
	*Project
	Feedbacks []*Feedback `json:"feedbacks"`
}

// PublicProject holds the fields anyone with the share link may see.
type PublicProject struct {
	ID              string  `json:"id"`
	Name            string  `json:"name"`
	Description     *string `json:"description"`
	Message         *string `json:"message"`
	PrimaryColor    *string `json:"primaryColor"`
	TextColor       *string `json:"textColor"`
	BackgroundColor *string `json:"backgroundColor"`
}

func (p *Project) Public() *PublicProject {
	return &PublicProject{
		ID:              p.ID,
		Name:            p.Name,
		Description:     p.Description,
		Message:         p.Message,
		PrimaryColor:    p.PrimaryColor,
		TextColor:       p.TextColor,
		BackgroundColor: p.BackgroundColor,
	}
}

// ProjectInfo is a project with statistics computed on read.
type ProjectInfo struct {
	*Project
	FeedbackCount int      `json:"feedbackCount"`
	AverageRating *float64 `json:"averageRating"`
}

// ProjectChanges describes a partial project update. Name and OrderBy are
// never reset.
type ProjectChanges struct {
	Name            Field[string]
	Description     Field[string]
	Message         Field[string]
	PrimaryColor    Field[string]
	TextColor       Field[string]
	BackgroundColor Field[string]
	OrderBy         Field[OrderBy]
}

func (c ProjectChanges) IsEmpty() bool {
	return c.Name.IsUnchanged() &&
		c.Description.IsUnchanged() &&
		c.Message.IsUnchanged() &&
		c.PrimaryColor.IsUnchanged() &&
		c.TextColor.IsUnchanged() &&
		c.BackgroundColor.IsUnchanged() &&
		c.OrderBy.IsUnchanged()
}
