package post

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

const repositoryTimeout = 5 * time.Second

const postColumns = `
       p.id,
       p.title,
       p.slug,
       p.content,
       p.excerpt,
       p.published,
       p.published_at,
       p.view_count,
       p.cover_image_key,
       p.author_id,
       u.name,
       p.created_at,
       p.updated_at,
       (SELECT COUNT(*) FROM comments c WHERE c.post_id = p.id) AS comment_count`

const postFrom = `
FROM posts p
JOIN users u ON u.id = p.author_id`

// Repository allows access to post persistence.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository constructs a post repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

// SlugExists reports whether a post already uses slug.
func (r *Repository) SlugExists(ctx context.Context, slug string) (bool, error) {
	ctx, cancel := context.WithTimeout(ctx, repositoryTimeout)
	defer cancel()

	var exists bool
	if err := r.pool.QueryRow(ctx, `SELECT EXISTS (SELECT 1 FROM posts WHERE slug = $1);`, slug).Scan(&exists); err != nil {
		return false, fmt.Errorf("check slug: %w", err)
	}
	return exists, nil
}

// MissingCategories returns the ids that have no category row, in input order.
func (r *Repository) MissingCategories(ctx context.Context, ids []uuid.UUID) ([]uuid.UUID, error) {
	ctx, cancel := context.WithTimeout(ctx, repositoryTimeout)
	defer cancel()

	rows, err := r.pool.Query(ctx, `SELECT id FROM categories WHERE id = ANY($1);`, ids)
	if err != nil {
		return nil, fmt.Errorf("lookup categories: %w", err)
	}
	found, err := pgx.CollectRows(rows, pgx.RowTo[uuid.UUID])
	if err != nil {
		return nil, fmt.Errorf("scan categories: %w", err)
	}

	present := make(map[uuid.UUID]struct{}, len(found))
	for _, id := range found {
		present[id] = struct{}{}
	}
	var missing []uuid.UUID
	for _, id := range ids {
		if _, ok := present[id]; !ok {
			missing = append(missing, id)
		}
	}
	return missing, nil
}

// Create inserts the post and its category links in one transaction.
func (r *Repository) Create(ctx context.Context, post NewPost) (Post, error) {
	ctx, cancel := context.WithTimeout(ctx, repositoryTimeout)
	defer cancel()

	postID := uuid.New()
	err := pgx.BeginFunc(ctx, r.pool, func(tx pgx.Tx) error {
		if _, err := tx.Exec(ctx, `
INSERT INTO posts (id, title, slug, content, excerpt, published, published_at, author_id)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8);`,
			postID, post.Title, post.Slug, post.Content, post.Excerpt, post.Published, post.PublishedAt, post.AuthorID,
		); err != nil {
			if isUniqueViolation(err) {
				return ErrSlugExists
			}
			return fmt.Errorf("insert post: %w", err)
		}
		return linkCategories(ctx, tx, postID, post.CategoryIDs)
	})
	if err != nil {
		return Post{}, err
	}

	return r.GetByID(ctx, postID)
}

// List returns the filtered page and the total number of matching posts.
func (r *Repository) List(ctx context.Context, filter ListFilter) ([]Post, int64, error) {
	ctx, cancel := context.WithTimeout(ctx, repositoryTimeout)
	defer cancel()

	where, args := buildWhere(filter)

	var total int64
	if err := r.pool.QueryRow(ctx, `SELECT COUNT(*)`+postFrom+where+`;`, args...).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("count posts: %w", err)
	}

	query := `SELECT` + postColumns + postFrom + where + fmt.Sprintf(`
ORDER BY p.created_at DESC
LIMIT $%d OFFSET $%d;`, len(args)+1, len(args)+2)
	args = append(args, filter.Limit, filter.Offset())

	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, 0, fmt.Errorf("list posts: %w", err)
	}
	posts, err := pgx.CollectRows(rows, scanPost)
	if err != nil {
		return nil, 0, fmt.Errorf("scan posts: %w", err)
	}

	if err := r.attachCategories(ctx, posts); err != nil {
		return nil, 0, err
	}
	return posts, total, nil
}

// GetByID fetches a post with its author, categories and comment count.
func (r *Repository) GetByID(ctx context.Context, id uuid.UUID) (Post, error) {
	return r.getOne(ctx, `p.id = $1`, id)
}

// GetBySlug fetches a post by its unique slug.
func (r *Repository) GetBySlug(ctx context.Context, slug string) (Post, error) {
	return r.getOne(ctx, `p.slug = $1`, slug)
}

// RecentComments returns the newest comments on a post.
func (r *Repository) RecentComments(ctx context.Context, postID uuid.UUID, limit int) ([]Comment, error) {
	ctx, cancel := context.WithTimeout(ctx, repositoryTimeout)
	defer cancel()

	rows, err := r.pool.Query(ctx, `
SELECT c.id, c.content, c.created_at, u.id, u.name
FROM comments c
JOIN users u ON u.id = c.author_id
WHERE c.post_id = $1
ORDER BY c.created_at DESC
LIMIT $2;`, postID, limit)
	if err != nil {
		return nil, fmt.Errorf("list comments: %w", err)
	}

	comments, err := pgx.CollectRows(rows, func(row pgx.CollectableRow) (Comment, error) {
		var comment Comment
		err := row.Scan(&comment.ID, &comment.Content, &comment.CreatedAt, &comment.Author.ID, &comment.Author.Name)
		return comment, err
	})
	if err != nil {
		return nil, fmt.Errorf("scan comments: %w", err)
	}
	return comments, nil
}

// IncrementViews bumps the post's view counter.
func (r *Repository) IncrementViews(ctx context.Context, id uuid.UUID) error {
	ctx, cancel := context.WithTimeout(ctx, repositoryTimeout)
	defer cancel()

	tag, err := r.pool.Exec(ctx, `UPDATE posts SET view_count = view_count + 1 WHERE id = $1;`, id)
	if err != nil {
		return fmt.Errorf("increment views: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrPostNotFound
	}
	return nil
}

// Update writes the changed columns and, when given, replaces the category
// links. Both happen in one transaction.
func (r *Repository) Update(ctx context.Context, id uuid.UUID, changes Changes) (Post, error) {
	ctx, cancel := context.WithTimeout(ctx, repositoryTimeout)
	defer cancel()

	sets := []string{"updated_at = NOW()"}
	args := []any{id}
	set := func(column string, value any) {
		args = append(args, value)
		sets = append(sets, fmt.Sprintf("%s = $%d", column, len(args)))
	}
	if changes.Title != nil {
		set("title", *changes.Title)
	}
	if changes.Content != nil {
		set("content", *changes.Content)
	}
	if changes.Excerpt != nil {
		set("excerpt", *changes.Excerpt)
	}
	if changes.Published != nil {
		set("published", *changes.Published)
	}
	if changes.PublishedAt != nil {
		set("published_at", *changes.PublishedAt)
	}

	err := pgx.BeginFunc(ctx, r.pool, func(tx pgx.Tx) error {
		tag, err := tx.Exec(ctx, `UPDATE posts SET `+strings.Join(sets, ", ")+` WHERE id = $1;`, args...)
		if err != nil {
			return fmt.Errorf("update post: %w", err)
		}
		if tag.RowsAffected() == 0 {
			return ErrPostNotFound
		}

		if changes.CategoryIDs == nil {
			return nil
		}
		if _, err := tx.Exec(ctx, `DELETE FROM post_categories WHERE post_id = $1;`, id); err != nil {
			return fmt.Errorf("clear categories: %w", err)
		}
		return linkCategories(ctx, tx, id, *changes.CategoryIDs)
	})
	if err != nil {
		return Post{}, err
	}

	return r.GetByID(ctx, id)
}

// Delete removes a post; comments and category links cascade.
func (r *Repository) Delete(ctx context.Context, id uuid.UUID) error {
	ctx, cancel := context.WithTimeout(ctx, repositoryTimeout)
	defer cancel()

	tag, err := r.pool.Exec(ctx, `DELETE FROM posts WHERE id = $1;`, id)
	if err != nil {
		return fmt.Errorf("delete post: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrPostNotFound
	}
	return nil
}

// SetCoverImage stores the cover object key; nil clears it.
func (r *Repository) SetCoverImage(ctx context.Context, id uuid.UUID, key *string) error {
	ctx, cancel := context.WithTimeout(ctx, repositoryTimeout)
	defer cancel()

	tag, err := r.pool.Exec(ctx, `UPDATE posts SET cover_image_key = $2, updated_at = NOW() WHERE id = $1;`, id, key)
	if err != nil {
		return fmt.Errorf("set cover image: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrPostNotFound
	}
	return nil
}

func (r *Repository) getOne(ctx context.Context, condition string, arg any) (Post, error) {
	ctx, cancel := context.WithTimeout(ctx, repositoryTimeout)
	defer cancel()

	rows, err := r.pool.Query(ctx, `SELECT`+postColumns+postFrom+`
WHERE `+condition+`;`, arg)
	if err != nil {
		return Post{}, fmt.Errorf("get post: %w", err)
	}
	post, err := pgx.CollectExactlyOneRow(rows, scanPost)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Post{}, ErrPostNotFound
		}
		return Post{}, fmt.Errorf("get post: %w", err)
	}

	posts := []Post{post}
	if err := r.attachCategories(ctx, posts); err != nil {
		return Post{}, err
	}
	return posts[0], nil
}

// attachCategories loads categories for every post in one query.
func (r *Repository) attachCategories(ctx context.Context, posts []Post) error {
	if len(posts) == 0 {
		return nil
	}

	ids := make([]uuid.UUID, len(posts))
	index := make(map[uuid.UUID]int, len(posts))
	for i := range posts {
		ids[i] = posts[i].ID
		index[posts[i].ID] = i
		posts[i].Categories = []Category{}
	}

	rows, err := r.pool.Query(ctx, `
SELECT pc.post_id, c.id, c.name
FROM post_categories pc
JOIN categories c ON c.id = pc.category_id
WHERE pc.post_id = ANY($1)
ORDER BY c.name;`, ids)
	if err != nil {
		return fmt.Errorf("load categories: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var (
			postID   uuid.UUID
			category Category
		)
		if err := rows.Scan(&postID, &category.ID, &category.Name); err != nil {
			return fmt.Errorf("scan category: %w", err)
		}
		i := index[postID]
		posts[i].Categories = append(posts[i].Categories, category)
	}
	if err := rows.Err(); err != nil {
		return fmt.Errorf("iterate categories: %w", err)
	}
	return nil
}

func linkCategories(ctx context.Context, tx pgx.Tx, postID uuid.UUID, categoryIDs []uuid.UUID) error {
	if len(categoryIDs) == 0 {
		return nil
	}
	if _, err := tx.Exec(ctx, `
INSERT INTO post_categories (post_id, category_id)
SELECT $1, unnest($2::uuid[])
ON CONFLICT DO NOTHING;`, postID, categoryIDs); err != nil {
		return fmt.Errorf("link categories: %w", err)
	}
	return nil
}

// buildWhere renders the filter as a WHERE clause with positional args.
func buildWhere(filter ListFilter) (string, []any) {
	var (
		conditions []string
		args       []any
	)
	add := func(format string, value any) {
		args = append(args, value)
		conditions = append(conditions, fmt.Sprintf(format, len(args)))
	}

	if filter.Published != nil {
		add("p.published = $%d", *filter.Published)
	}
	if filter.AuthorID != nil {
		add("p.author_id = $%d", *filter.AuthorID)
	}
	if filter.AuthorName != "" {
		add("u.name ILIKE $%d", containsPattern(filter.AuthorName))
	}
	if filter.CategoryID != nil {
		add("EXISTS (SELECT 1 FROM post_categories pc WHERE pc.post_id = p.id AND pc.category_id = $%d)", *filter.CategoryID)
	}
	if filter.CategoryName != "" {
		add(`EXISTS (SELECT 1 FROM post_categories pc JOIN categories cat ON cat.id = pc.category_id
        WHERE pc.post_id = p.id AND cat.name ILIKE $%d)`, containsPattern(filter.CategoryName))
	}
	if filter.Search != "" {
		args = append(args, containsPattern(filter.Search))
		conditions = append(conditions, fmt.Sprintf("(p.title ILIKE $%d OR p.content ILIKE $%d)", len(args), len(args)))
	}
	if filter.MinComments != nil {
		add("(SELECT COUNT(*) FROM comments c WHERE c.post_id = p.id) >= $%d", *filter.MinComments)
	}
	if filter.MaxComments != nil {
		add("(SELECT COUNT(*) FROM comments c WHERE c.post_id = p.id) <= $%d", *filter.MaxComments)
	}
	if filter.DateFrom != nil {
		add("p.created_at >= $%d", *filter.DateFrom)
	}
	if filter.DateTo != nil {
		add("p.created_at <= $%d", *filter.DateTo)
	}

	if len(conditions) == 0 {
		return "", nil
	}
	return "\nWHERE " + strings.Join(conditions, "\n  AND "), args
}

// containsPattern escapes LIKE metacharacters and wraps s in wildcards.
func containsPattern(s string) string {
	replacer := strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)
	return "%" + replacer.Replace(s) + "%"
}

func scanPost(row pgx.CollectableRow) (Post, error) {
	var post Post
	err := row.Scan(
		&post.ID,
		&post.Title,
		&post.Slug,
		&post.Content,
		&post.Excerpt,
		&post.Published,
		&post.PublishedAt,
		&post.ViewCount,
		&post.CoverImageKey,
		&post.AuthorID,
		&post.Author.Name,
		&post.CreatedAt,
		&post.UpdatedAt,
		&post.CommentCount,
	)
	post.Author.ID = post.AuthorID
	return post, err
}

func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.Code == "23505"
	}
	return false
}
