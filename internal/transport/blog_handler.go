package transport

import (
	"net/http"
	"strings"

	"plant-market/internal/domain"
	"plant-market/internal/middleware"
	"plant-market/internal/service"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"
)

// CreateBlogRequest is a new blog post
type CreateBlogRequest struct {
	Title    string   `json:"title" validate:"required,max=255"`
	Slug     string   `json:"slug" validate:"max=255"`
	Excerpt  string   `json:"excerpt" validate:"max=500"`
	Content  string   `json:"content" validate:"required"`
	Category string   `json:"category" validate:"max=100"`
	Tags     []string `json:"tags" validate:"max=20,dive,max=50"`
	ImageURL string   `json:"image_url" validate:"omitempty,url"`
}

// CommentRequest is a reader's comment on a blog
type CommentRequest struct {
	Content string `json:"content" validate:"required,max=2000"`
}

// BlogHandler serves blog posts and comments
type BlogHandler struct {
	blogService  service.BlogService
	exposeDetail bool
	logger       *zap.Logger
}

// NewBlogHandler creates a new BlogHandler
func NewBlogHandler(blogService service.BlogService, exposeDetail bool, logger *zap.Logger) *BlogHandler {
	return &BlogHandler{
		blogService:  blogService,
		exposeDetail: exposeDetail,
		logger:       logger,
	}
}

// RegisterRoutes registers all blog routes. {blogRef} is a blog id or slug.
func (h *BlogHandler) RegisterRoutes(r chi.Router, authMiddleware func(http.Handler) http.Handler) {
	r.Route("/api/blogs", func(r chi.Router) {
		r.Get("/", h.List)
		r.Get("/{blogRef}", h.Get)
		r.Get("/{blogRef}/comments", h.ListComments)

		r.Group(func(r chi.Router) {
			r.Use(authMiddleware)

			r.With(middleware.RequireAdmin(h.logger)).Post("/", h.Create)
			r.Post("/{blogRef}/comments", h.AddComment)
		})
	})
}

// List handles blog search by text, category and tag
func (h *BlogHandler) List(w http.ResponseWriter, r *http.Request) {
	query := r.URL.Query()
	blogs, err := h.blogService.List(r.Context(), domain.BlogFilter{
		Search:   strings.TrimSpace(query.Get("search")),
		Category: strings.TrimSpace(query.Get("category")),
		Tag:      strings.TrimSpace(query.Get("tag")),
	})
	if err != nil {
		respondServiceError(w, h.logger, "Failed to list blogs", err, h.exposeDetail)
		return
	}

	middleware.RespondWithJSON(w, http.StatusOK, map[string]interface{}{"blogs": blogs})
}

// Get returns one blog by id or slug
func (h *BlogHandler) Get(w http.ResponseWriter, r *http.Request) {
	blog, err := h.blogService.Get(r.Context(), chi.URLParam(r, "blogRef"))
	if err != nil {
		respondServiceError(w, h.logger, "Failed to get blog", err, h.exposeDetail)
		return
	}

	middleware.RespondWithJSON(w, http.StatusOK, blog)
}

// Create publishes a blog
func (h *BlogHandler) Create(w http.ResponseWriter, r *http.Request) {
	actor, ok := actorFromRequest(w, r, h.logger)
	if !ok {
		return
	}

	var req CreateBlogRequest
	if err := middleware.DecodeAndValidate(r, &req); err != nil {
		middleware.RespondWithDecodeError(w, err)
		return
	}

	blog, err := h.blogService.Create(r.Context(), actor, &domain.Blog{
		Title:    req.Title,
		Slug:     req.Slug,
		Excerpt:  req.Excerpt,
		Content:  req.Content,
		Category: req.Category,
		Tags:     req.Tags,
		ImageURL: req.ImageURL,
	})
	if err != nil {
		respondServiceError(w, h.logger, "Failed to create blog", err, h.exposeDetail)
		return
	}

	middleware.RespondWithJSON(w, http.StatusCreated, blog)
}

// ListComments returns a blog's comments
func (h *BlogHandler) ListComments(w http.ResponseWriter, r *http.Request) {
	comments, err := h.blogService.ListComments(r.Context(), chi.URLParam(r, "blogRef"))
	if err != nil {
		respondServiceError(w, h.logger, "Failed to list comments", err, h.exposeDetail)
		return
	}

	middleware.RespondWithJSON(w, http.StatusOK, map[string]interface{}{"comments": comments})
}

// AddComment posts the caller's comment on a blog
func (h *BlogHandler) AddComment(w http.ResponseWriter, r *http.Request) {
	actor, ok := actorFromRequest(w, r, h.logger)
	if !ok {
		return
	}

	var req CommentRequest
	if err := middleware.DecodeAndValidate(r, &req); err != nil {
		middleware.RespondWithDecodeError(w, err)
		return
	}

	comment, err := h.blogService.AddComment(r.Context(), actor, chi.URLParam(r, "blogRef"), req.Content)
	if err != nil {
		respondServiceError(w, h.logger, "Failed to add comment", err, h.exposeDetail)
		return
	}

	middleware.RespondWithJSON(w, http.StatusCreated, comment)
}
