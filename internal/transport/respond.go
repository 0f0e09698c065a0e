package transport

import (
	"net/http"

	"plant-market/internal/domain"
	"plant-market/internal/middleware"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

// actorFromRequest returns the authenticated caller or answers 401
func actorFromRequest(w http.ResponseWriter, r *http.Request, logger *zap.Logger) (domain.Actor, bool) {
	actor, ok := middleware.GetActor(r.Context())
	if !ok {
		logger.Error("User identity not found in context")
		middleware.RespondWithError(w, http.StatusUnauthorized, "unauthorized")
		return domain.Actor{}, false
	}
	return actor, true
}

// pathID parses a uuid route parameter or answers 400
func pathID(w http.ResponseWriter, r *http.Request, param string) (uuid.UUID, bool) {
	id, err := uuid.Parse(chi.URLParam(r, param))
	if err != nil {
		middleware.RespondWithErrorDetails(w, http.StatusBadRequest, "invalid "+param,
			map[string]interface{}{"field": param})
		return uuid.Nil, false
	}
	return id, true
}

// respondServiceError logs unexpected failures and writes the mapped response
func respondServiceError(w http.ResponseWriter, logger *zap.Logger, msg string, err error, exposeDetail bool) {
	if status := middleware.StatusForError(err); status >= http.StatusInternalServerError {
		logger.Error(msg, zap.Error(err))
	} else {
		logger.Debug(msg, zap.Error(err))
	}
	middleware.RespondWithDomainError(w, err, exposeDetail)
}
