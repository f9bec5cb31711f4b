package post

import (
	"context"
	"fmt"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/google/uuid"
	"github.com/gosimple/slug"
)

type repository interface {
	SlugExists(ctx context.Context, slug string) (bool, error)
	MissingCategories(ctx context.Context, ids []uuid.UUID) ([]uuid.UUID, error)
	Create(ctx context.Context, post NewPost) (Post, error)
	List(ctx context.Context, filter ListFilter) ([]Post, int64, error)
	GetByID(ctx context.Context, id uuid.UUID) (Post, error)
	GetBySlug(ctx context.Context, slug string) (Post, error)
	RecentComments(ctx context.Context, postID uuid.UUID, limit int) ([]Comment, error)
	IncrementViews(ctx context.Context, id uuid.UUID) error
	Update(ctx context.Context, id uuid.UUID, changes Changes) (Post, error)
	Delete(ctx context.Context, id uuid.UUID) error
	SetCoverImage(ctx context.Context, id uuid.UUID, key *string) error
}

// ObjectRemover deletes stored media objects.
type ObjectRemover interface {
	RemoveObject(ctx context.Context, key string) error
}

// Invalidator drops cached read responses after a write.
type Invalidator interface {
	Clear()
}

// Option customizes a Service.
type Option func(*Service)

// WithObjectRemover removes a post's cover object when the post is deleted.
func WithObjectRemover(remover ObjectRemover) Option {
	return func(s *Service) { s.objects = remover }
}

// WithInvalidator clears cached listings after every write.
func WithInvalidator(invalidator Invalidator) Option {
	return func(s *Service) { s.cache = invalidator }
}

// Service orchestrates post operations.
type Service struct {
	repo    repository
	objects ObjectRemover
	cache   Invalidator
	now     func() time.Time
}

// NewService constructs a post service.
func NewService(repo repository, opts ...Option) *Service {
	s := &Service{repo: repo, now: time.Now}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// CreatePost validates the input, derives the slug and excerpt, and stores
// the post with its category links.
func (s *Service) CreatePost(ctx context.Context, authorID uuid.UUID, input CreateInput) (Post, error) {
	title := strings.TrimSpace(input.Title)
	if err := validateTitle(title); err != nil {
		return Post{}, err
	}
	if strings.TrimSpace(input.Content) == "" {
		return Post{}, fmt.Errorf("%w: content required", ErrInvalidInput)
	}

	postSlug := slug.Make(title)
	if postSlug == "" {
		return Post{}, fmt.Errorf("%w: title must contain letters or digits", ErrInvalidInput)
	}
	exists, err := s.repo.SlugExists(ctx, postSlug)
	if err != nil {
		return Post{}, err
	}
	if exists {
		return Post{}, ErrSlugExists
	}

	categoryIDs := dedupe(input.CategoryIDs)
	if err := s.checkCategories(ctx, categoryIDs); err != nil {
		return Post{}, err
	}

	row := NewPost{
		Title:       title,
		Slug:        postSlug,
		Content:     input.Content,
		Excerpt:     makeExcerpt(input.Content),
		AuthorID:    authorID,
		Published:   input.Published,
		CategoryIDs: categoryIDs,
	}
	if input.Published {
		now := s.now().UTC()
		row.PublishedAt = &now
	}

	created, err := s.repo.Create(ctx, row)
	if err != nil {
		return Post{}, err
	}
	s.invalidate()
	return created, nil
}

// ListPosts returns one page of posts matching filter, newest first.
func (s *Service) ListPosts(ctx context.Context, filter ListFilter) (ListResult, error) {
	if filter.Page < 1 {
		filter.Page = 1
	}
	if filter.Page > maxPage {
		return ListResult{}, fmt.Errorf("%w: page exceeds %d", ErrInvalidInput, maxPage)
	}
	if filter.Limit < 1 {
		filter.Limit = defaultPageSize
	}
	if filter.Limit > maxPageSize {
		filter.Limit = maxPageSize
	}
	if filter.MinComments != nil && filter.MaxComments != nil && *filter.MinComments > *filter.MaxComments {
		return ListResult{}, fmt.Errorf("%w: minComments exceeds maxComments", ErrInvalidInput)
	}

	posts, total, err := s.repo.List(ctx, filter)
	if err != nil {
		return ListResult{}, err
	}
	if posts == nil {
		posts = []Post{}
	}

	totalPages := int((total + int64(filter.Limit) - 1) / int64(filter.Limit))
	return ListResult{
		Posts: posts,
		Pagination: Pagination{
			Total:       total,
			TotalPages:  totalPages,
			CurrentPage: filter.Page,
			Limit:       filter.Limit,
			HasNextPage: int64(filter.Page*filter.Limit) < total,
			HasPrevPage: filter.Page > 1,
		},
	}, nil
}

// GetPost returns a post with its latest comments and counts the view.
func (s *Service) GetPost(ctx context.Context, id uuid.UUID) (Post, error) {
	found, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return Post{}, err
	}
	return s.withDetails(ctx, found)
}

// GetPostBySlug is GetPost addressed by slug.
func (s *Service) GetPostBySlug(ctx context.Context, postSlug string) (Post, error) {
	found, err := s.repo.GetBySlug(ctx, strings.TrimSpace(postSlug))
	if err != nil {
		return Post{}, err
	}
	return s.withDetails(ctx, found)
}

// UpdatePost applies a partial update. Only the author may update a post.
func (s *Service) UpdatePost(ctx context.Context, userID, id uuid.UUID, input UpdateInput) (Post, error) {
	existing, err := s.AuthorizeAuthor(ctx, userID, id)
	if err != nil {
		return Post{}, err
	}

	var changes Changes
	if input.Title != nil {
		title := strings.TrimSpace(*input.Title)
		if err := validateTitle(title); err != nil {
			return Post{}, err
		}
		changes.Title = &title
	}
	if input.Content != nil {
		if strings.TrimSpace(*input.Content) == "" {
			return Post{}, fmt.Errorf("%w: content must not be empty", ErrInvalidInput)
		}
		excerpt := makeExcerpt(*input.Content)
		changes.Content = input.Content
		changes.Excerpt = &excerpt
	}
	if input.Published != nil {
		changes.Published = input.Published
		if *input.Published && existing.PublishedAt == nil {
			now := s.now().UTC()
			changes.PublishedAt = &now
		}
	}
	if input.CategoryIDs != nil {
		ids := dedupe(*input.CategoryIDs)
		if err := s.checkCategories(ctx, ids); err != nil {
			return Post{}, err
		}
		changes.CategoryIDs = &ids
	}

	updated, err := s.repo.Update(ctx, id, changes)
	if err != nil {
		return Post{}, err
	}
	s.invalidate()
	return updated, nil
}

// DeletePost removes a post and its cover object. Only the author may
// delete a post.
func (s *Service) DeletePost(ctx context.Context, userID, id uuid.UUID) error {
	existing, err := s.AuthorizeAuthor(ctx, userID, id)
	if err != nil {
		return err
	}

	if err := s.repo.Delete(ctx, id); err != nil {
		return err
	}
	s.invalidate()

	if existing.CoverImageKey != nil && s.objects != nil {
		if err := s.objects.RemoveObject(ctx, *existing.CoverImageKey); err != nil {
			return fmt.Errorf("remove cover object: %w", err)
		}
	}
	return nil
}

// AuthorizeAuthor loads the post and checks that userID wrote it.
func (s *Service) AuthorizeAuthor(ctx context.Context, userID, id uuid.UUID) (Post, error) {
	existing, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return Post{}, err
	}
	if existing.AuthorID != userID {
		return Post{}, ErrForbidden
	}
	return existing, nil
}

// GetCoverKey returns the object key of the post's cover, if any.
func (s *Service) GetCoverKey(ctx context.Context, id uuid.UUID) (*string, error) {
	existing, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	return existing.CoverImageKey, nil
}

// SetCoverImage records the post's cover object key.
func (s *Service) SetCoverImage(ctx context.Context, id uuid.UUID, key string) error {
	if err := s.repo.SetCoverImage(ctx, id, &key); err != nil {
		return err
	}
	s.invalidate()
	return nil
}

func (s *Service) withDetails(ctx context.Context, found Post) (Post, error) {
	comments, err := s.repo.RecentComments(ctx, found.ID, recentComments)
	if err != nil {
		return Post{}, err
	}
	found.Comments = comments

	if err := s.repo.IncrementViews(ctx, found.ID); err != nil {
		return Post{}, err
	}
	return found, nil
}

func (s *Service) checkCategories(ctx context.Context, ids []uuid.UUID) error {
	if len(ids) == 0 {
		return nil
	}
	missing, err := s.repo.MissingCategories(ctx, ids)
	if err != nil {
		return err
	}
	if len(missing) > 0 {
		parts := make([]string, len(missing))
		for i, id := range missing {
			parts[i] = id.String()
		}
		return fmt.Errorf("%w: %s", ErrCategoriesNotFound, strings.Join(parts, ", "))
	}
	return nil
}

func (s *Service) invalidate() {
	if s.cache != nil {
		s.cache.Clear()
	}
}

func validateTitle(title string) error {
	if title == "" {
		return fmt.Errorf("%w: title required", ErrInvalidInput)
	}
	if utf8.RuneCountInString(title) > maxTitleLength {
		return fmt.Errorf("%w: title exceeds %d characters", ErrInvalidInput, maxTitleLength)
	}
	return nil
}

// makeExcerpt keeps the first excerptLength runes, marking truncation.
func makeExcerpt(content string) string {
	if utf8.RuneCountInString(content) <= excerptLength {
		return content
	}
	runes := []rune(content)
	return string(runes[:excerptLength]) + "..."
}

func dedupe(ids []uuid.UUID) []uuid.UUID {
	if len(ids) == 0 {
		return nil
	}
	seen := make(map[uuid.UUID]struct{}, len(ids))
	out := make([]uuid.UUID, 0, len(ids))
	for _, id := range ids {
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}
		out = append(out, id)
	}
	return out
}
