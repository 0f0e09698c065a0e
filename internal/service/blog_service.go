package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"plant-market/internal/domain"
	"plant-market/internal/repository"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// BlogService manages blog posts and their comments
type BlogService interface {
	List(ctx context.Context, filter domain.BlogFilter) ([]*domain.Blog, error)
	// Get finds a blog by id or, failing that, by slug
	Get(ctx context.Context, ref string) (*domain.Blog, error)
	Create(ctx context.Context, actor domain.Actor, blog *domain.Blog) (*domain.Blog, error)
	ListComments(ctx context.Context, ref string) ([]*domain.Comment, error)
	AddComment(ctx context.Context, actor domain.Actor, ref string, content string) (*domain.Comment, error)
}

type blogService struct {
	blogRepo repository.BlogRepository
	logger   *zap.Logger
}

// NewBlogService creates a new instance of BlogService
func NewBlogService(blogRepo repository.BlogRepository, logger *zap.Logger) BlogService {
	return &blogService{
		blogRepo: blogRepo,
		logger:   logger,
	}
}

func (s *blogService) List(ctx context.Context, filter domain.BlogFilter) ([]*domain.Blog, error) {
	return s.blogRepo.List(ctx, filter)
}

func (s *blogService) Get(ctx context.Context, ref string) (*domain.Blog, error) {
	var (
		blog *domain.Blog
		err  error
	)
	if id, parseErr := uuid.Parse(ref); parseErr == nil {
		blog, err = s.blogRepo.FindByID(ctx, id)
	} else {
		blog, err = s.blogRepo.FindBySlug(ctx, ref)
	}

	if err != nil {
		if errors.Is(err, repository.ErrBlogNotFound) {
			return nil, &domain.NotFoundError{Resource: "blog", ID: ref}
		}
		return nil, fmt.Errorf("failed to get blog: %w", err)
	}
	return blog, nil
}

// Create publishes a blog. The slug is derived from the title when omitted.
func (s *blogService) Create(ctx context.Context, actor domain.Actor, blog *domain.Blog) (*domain.Blog, error) {
	blog.Title = strings.TrimSpace(blog.Title)
	if blog.Title == "" {
		return nil, &domain.ValidationError{Field: "title", Message: "title is required"}
	}
	if strings.TrimSpace(blog.Content) == "" {
		return nil, &domain.ValidationError{Field: "content", Message: "content is required"}
	}

	if blog.Slug == "" {
		blog.Slug = blog.Title
	}
	blog.Slug = domain.Slugify(blog.Slug)
	if blog.Slug == "" {
		return nil, &domain.ValidationError{Field: "slug", Message: "slug must contain letters or digits"}
	}

	now := time.Now().UTC()
	blog.ID = uuid.New()
	blog.AuthorID = actor.ID
	blog.Tags = domain.NormalizeTags(blog.Tags)
	blog.CreatedAt = now
	blog.UpdatedAt = now

	if err := s.blogRepo.Create(ctx, blog); err != nil {
		if errors.Is(err, repository.ErrBlogSlugTaken) {
			return nil, &domain.ValidationError{Field: "slug", Message: "slug already exists"}
		}
		return nil, err
	}

	s.logger.Info("Blog published",
		zap.String("blog_id", blog.ID.String()),
		zap.String("slug", blog.Slug),
	)

	return blog, nil
}

func (s *blogService) ListComments(ctx context.Context, ref string) ([]*domain.Comment, error) {
	blog, err := s.Get(ctx, ref)
	if err != nil {
		return nil, err
	}
	return s.blogRepo.ListComments(ctx, blog.ID)
}

func (s *blogService) AddComment(ctx context.Context, actor domain.Actor, ref string, content string) (*domain.Comment, error) {
	content = strings.TrimSpace(content)
	if content == "" {
		return nil, &domain.ValidationError{Field: "content", Message: "comment must not be empty"}
	}

	blog, err := s.Get(ctx, ref)
	if err != nil {
		return nil, err
	}

	comment := &domain.Comment{
		ID:        uuid.New(),
		BlogID:    blog.ID,
		UserID:    actor.ID,
		Content:   content,
		CreatedAt: time.Now().UTC(),
	}

	if err := s.blogRepo.AddComment(ctx, comment); err != nil {
		if errors.Is(err, repository.ErrBlogNotFound) {
			return nil, &domain.NotFoundError{Resource: "blog", ID: ref}
		}
		return nil, err
	}

	return comment, nil
}
