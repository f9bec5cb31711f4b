package post

import (
	"time"

	"github.com/google/uuid"
)

const (
	maxTitleLength  = 200
	excerptLength   = 150
	recentComments  = 10
	defaultPageSize = 10
	maxPageSize     = 100
	// maxPage keeps Offset and Page*Limit well inside int.
	maxPage         = 1_000_000
)

// Author is the public projection of a post or comment author.
type Author struct {
	ID   uuid.UUID `json:"id"`
	Name string    `json:"name"`
}

// Category labels posts.
type Category struct {
	ID   uuid.UUID `json:"id"`
	Name string    `json:"name"`
}

// Comment is a reader comment shown on the post detail view.
type Comment struct {
	ID        uuid.UUID `json:"id"`
	Content   string    `json:"content"`
	Author    Author    `json:"author"`
	CreatedAt time.Time `json:"createdAt"`
}

// Post is a blog article.
type Post struct {
	ID            uuid.UUID  `json:"id"`
	Title         string     `json:"title"`
	Slug          string     `json:"slug"`
	Content       string     `json:"content"`
	Excerpt       string     `json:"excerpt"`
	Published     bool       `json:"published"`
	PublishedAt   *time.Time `json:"publishedAt"`
	ViewCount     int        `json:"viewCount"`
	CoverImageKey *string    `json:"coverImageKey,omitempty"`
	AuthorID      uuid.UUID  `json:"authorId"`
	Author        Author     `json:"author"`
	Categories    []Category `json:"categories"`
	CommentCount  int        `json:"commentCount"`
	Comments      []Comment  `json:"comments,omitempty"`
	CreatedAt     time.Time  `json:"createdAt"`
	UpdatedAt     time.Time  `json:"updatedAt"`
}

// CreateInput carries the fields of a new post.
type CreateInput struct {
	Title       string
	Content     string
	CategoryIDs []uuid.UUID
	Published   bool
}

// UpdateInput is a partial update; nil fields are left untouched.
// A non-nil CategoryIDs replaces the post's categories.
type UpdateInput struct {
	Title       *string
	Content     *string
	CategoryIDs *[]uuid.UUID
	Published   *bool
}

// NewPost is the row written by the repository on create.
type NewPost struct {
	Title       string
	Slug        string
	Content     string
	Excerpt     string
	AuthorID    uuid.UUID
	Published   bool
	PublishedAt *time.Time
	CategoryIDs []uuid.UUID
}

// Changes is the set of columns written by the repository on update.
type Changes struct {
	Title       *string
	Content     *string
	Excerpt     *string
	Published   *bool
	PublishedAt *time.Time
	CategoryIDs *[]uuid.UUID
}

// ListFilter narrows a post listing. Zero values mean no filter.
type ListFilter struct {
	Page         int
	Limit        int
	Published    *bool
	AuthorID     *uuid.UUID
	AuthorName   string
	CategoryID   *uuid.UUID
	CategoryName string
	Search       string
	MinComments  *int
	MaxComments  *int
	DateFrom     *time.Time
	DateTo       *time.Time
}

// Offset returns the number of rows skipped for the filter's page.
func (f ListFilter) Offset() int {
	return (f.Page - 1) * f.Limit
}

// Pagination describes where a page sits in the full result set.
type Pagination struct {
	Total       int64 `json:"total"`
	TotalPages  int   `json:"totalPages"`
	CurrentPage int   `json:"currentPage"`
	Limit       int   `json:"limit"`
	HasNextPage bool  `json:"hasNextPage"`
	HasPrevPage bool  `json:"hasPrevPage"`
}

// ListResult is one page of posts.
type ListResult struct {
	Posts      []Post
	Pagination Pagination
}
