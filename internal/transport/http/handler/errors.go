package handler

import (
	"errors"
	"log"
	"net/http"

	"github.com/gin-gonic/gin"

	"docrag/internal/ai"
	"docrag/internal/app"
	"docrag/internal/transport/http/response"
)

// writeError maps service errors onto the response envelope.
func writeError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, app.ErrInvalidInput):
		response.Error(c, http.StatusBadRequest, response.CodeBadRequest, err.Error())
	case errors.Is(err, app.ErrEmptyDocument):
		response.Error(c, http.StatusBadRequest, response.CodeEmptyDocument, err.Error())
	case errors.Is(err, app.ErrNoTextExtracted), errors.Is(err, app.ErrExtraction):
		response.Error(c, http.StatusBadRequest, response.CodeNoTextExtracted, err.Error())
	case errors.Is(err, app.ErrUnsupportedMediaType):
		response.Error(c, http.StatusBadRequest, response.CodeUnsupportedMediaType, err.Error())
	case errors.Is(err, app.ErrEmptyQuery):
		response.Error(c, http.StatusBadRequest, response.CodeEmptyQuery, err.Error())
	case errors.Is(err, app.ErrLLMConfig):
		response.Error(c, http.StatusBadRequest, response.CodeLLMNotConfigured, err.Error())
	case errors.Is(err, app.ErrJobNotFound):
		response.Error(c, http.StatusNotFound, response.CodeJobNotFound, err.Error())
	case errors.Is(err, app.ErrEmbeddingMalformed):
		response.Error(c, http.StatusBadGateway, response.CodeEmbeddingMalformed, "embedding service returned a malformed response")
	case errors.Is(err, app.ErrEmbeddingUnavailable):
		response.Error(c, http.StatusBadGateway, response.CodeEmbeddingUnavailable, "embedding service unavailable")
	case errors.Is(err, ai.ErrChatUnavailable):
		response.Error(c, http.StatusBadGateway, response.CodeUpstreamUnavailable, "llm service unavailable")
	case errors.Is(err, app.ErrAsyncDisabled):
		response.Error(c, http.StatusServiceUnavailable, response.CodeServiceUnavailable, err.Error())
	case errors.Is(err, app.ErrPersistence):
		log.Printf("request %s %s failed: %v", c.Request.Method, c.FullPath(), err)
		response.Error(c, http.StatusInternalServerError, response.CodePersistence, "document store error")
	default:
		log.Printf("request %s %s failed: %v", c.Request.Method, c.FullPath(), err)
		response.Error(c, http.StatusInternalServerError, response.CodeInternalServer, "internal server error")
	}
}
