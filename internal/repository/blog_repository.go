package repository

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"plant-market/internal/domain"

	"github.com/google/uuid"
)

var (
	ErrBlogNotFound  = errors.New("blog not found")
	ErrBlogSlugTaken = errors.New("blog with this slug already exists")
)

const blogColumns = `id, author_id, title, slug, excerpt, content, category, tags, image_url, created_at, updated_at`

// BlogRepository defines the interface for blog and comment data access
type BlogRepository interface {
	Create(ctx context.Context, blog *domain.Blog) error
	FindByID(ctx context.Context, id uuid.UUID) (*domain.Blog, error)
	FindBySlug(ctx context.Context, slug string) (*domain.Blog, error)
	List(ctx context.Context, filter domain.BlogFilter) ([]*domain.Blog, error)
	AddComment(ctx context.Context, comment *domain.Comment) error
	ListComments(ctx context.Context, blogID uuid.UUID) ([]*domain.Comment, error)
}

type blogRepository struct {
	db *sql.DB
}

// NewBlogRepository creates a new instance of BlogRepository
func NewBlogRepository(db *sql.DB) BlogRepository {
	return &blogRepository{db: db}
}

func (r *blogRepository) Create(ctx context.Context, blog *domain.Blog) error {
	tagsJSON, err := json.Marshal(blog.Tags)
	if err != nil {
		return fmt.Errorf("failed to marshal blog tags: %w", err)
	}

	query := `
		INSERT INTO blogs (id, author_id, title, slug, excerpt, content, category, tags, image_url, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
	`

	_, err = r.db.ExecContext(
		ctx,
		query,
		blog.ID,
		blog.AuthorID,
		blog.Title,
		blog.Slug,
		blog.Excerpt,
		blog.Content,
		blog.Category,
		tagsJSON,
		blog.ImageURL,
		blog.CreatedAt,
		blog.UpdatedAt,
	)

	if err != nil {
		if pgErrorCode(err) == pgUniqueViolation {
			return ErrBlogSlugTaken
		}
		return fmt.Errorf("failed to create blog: %w", err)
	}

	return nil
}

func (r *blogRepository) FindByID(ctx context.Context, id uuid.UUID) (*domain.Blog, error) {
	query := `SELECT ` + blogColumns + ` FROM blogs WHERE id = $1`
	return r.findOne(r.db.QueryRowContext(ctx, query, id))
}

func (r *blogRepository) FindBySlug(ctx context.Context, slug string) (*domain.Blog, error) {
	query := `SELECT ` + blogColumns + ` FROM blogs WHERE slug = $1`
	return r.findOne(r.db.QueryRowContext(ctx, query, slug))
}

// List returns blogs matching the filter, newest first
func (r *blogRepository) List(ctx context.Context, filter domain.BlogFilter) ([]*domain.Blog, error) {
	conditions := []string{}
	args := []interface{}{}

	if s := strings.TrimSpace(filter.Search); s != "" {
		args = append(args, "%"+s+"%")
		conditions = append(conditions, fmt.Sprintf("(title ILIKE $%d OR content ILIKE $%d)", len(args), len(args)))
	}
	if filter.Category != "" {
		args = append(args, filter.Category)
		conditions = append(conditions, fmt.Sprintf("category = $%d", len(args)))
	}
	if tag := strings.ToLower(strings.TrimSpace(filter.Tag)); tag != "" {
		tagJSON, err := json.Marshal([]string{tag})
		if err != nil {
			return nil, fmt.Errorf("failed to marshal tag filter: %w", err)
		}
		args = append(args, tagJSON)
		conditions = append(conditions, fmt.Sprintf("tags @> $%d::jsonb", len(args)))
	}

	whereClause := ""
	if len(conditions) > 0 {
		whereClause = "WHERE " + strings.Join(conditions, " AND ")
	}

	query := fmt.Sprintf(`SELECT %s FROM blogs %s ORDER BY created_at DESC`, blogColumns, whereClause)

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list blogs: %w", err)
	}
	defer rows.Close()

	blogs := []*domain.Blog{}
	for rows.Next() {
		blog, err := scanBlog(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan blog: %w", err)
		}
		blogs = append(blogs, blog)
	}

	if err = rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating blogs: %w", err)
	}

	return blogs, nil
}

func (r *blogRepository) AddComment(ctx context.Context, comment *domain.Comment) error {
	query := `
		INSERT INTO comments (id, blog_id, user_id, content, created_at)
		VALUES ($1, $2, $3, $4, $5)
	`

	_, err := r.db.ExecContext(ctx, query, comment.ID, comment.BlogID, comment.UserID, comment.Content, comment.CreatedAt)
	if err != nil {
		if pgErrorCode(err) == pgForeignKeyViolation {
			return ErrBlogNotFound
		}
		return fmt.Errorf("failed to add comment: %w", err)
	}

	return nil
}

// ListComments returns a blog's comments oldest first, with each author's name
func (r *blogRepository) ListComments(ctx context.Context, blogID uuid.UUID) ([]*domain.Comment, error) {
	query := `
		SELECT c.id, c.blog_id, c.user_id, u.name, c.content, c.created_at
		FROM comments c
		JOIN users u ON u.id = c.user_id
		WHERE c.blog_id = $1
		ORDER BY c.created_at ASC
	`

	rows, err := r.db.QueryContext(ctx, query, blogID)
	if err != nil {
		return nil, fmt.Errorf("failed to list comments: %w", err)
	}
	defer rows.Close()

	comments := []*domain.Comment{}
	for rows.Next() {
		c := &domain.Comment{}
		if err := rows.Scan(&c.ID, &c.BlogID, &c.UserID, &c.Username, &c.Content, &c.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan comment: %w", err)
		}
		comments = append(comments, c)
	}

	if err = rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating comments: %w", err)
	}

	return comments, nil
}

func (r *blogRepository) findOne(row *sql.Row) (*domain.Blog, error) {
	blog, err := scanBlog(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrBlogNotFound
		}
		return nil, fmt.Errorf("failed to find blog: %w", err)
	}
	return blog, nil
}

func scanBlog(row rowScanner) (*domain.Blog, error) {
	blog := &domain.Blog{}
	var tagsJSON []byte
	err := row.Scan(
		&blog.ID,
		&blog.AuthorID,
		&blog.Title,
		&blog.Slug,
		&blog.Excerpt,
		&blog.Content,
		&blog.Category,
		&tagsJSON,
		&blog.ImageURL,
		&blog.CreatedAt,
		&blog.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}

	blog.Tags = []string{}
	if len(tagsJSON) > 0 {
		if err := json.Unmarshal(tagsJSON, &blog.Tags); err != nil {
			return nil, fmt.Errorf("failed to unmarshal blog tags: %w", err)
		}
	}
	return blog, nil
}
