package http

import (
	"github.com/gin-gonic/gin"

	"docrag/internal/bootstrap"
	"docrag/internal/pkg/jwtutil"
	"docrag/internal/transport/http/handler"
	"docrag/internal/transport/http/middleware"
)

func NewRouter(app *bootstrap.App) *gin.Engine {
	gin.SetMode(app.Config.App.GinMode)
	router := gin.New()
	router.Use(gin.Logger(), gin.Recovery())
	router.MaxMultipartMemory = app.Config.MaxUploadBytes()

	checks := make(map[string]handler.HealthCheck)
	for name, check := range app.HealthChecks() {
		checks[name] = check
	}
	healthHandler := handler.NewHealthHandler(app.Config.App.Name, app.Config.App.Env, app.StartedAt, checks)
	router.GET("/healthz", healthHandler.Check)

	docHandler := handler.NewDocumentHandler(app.Ingest, app.Retrieval, app.Ask, app.Jobs, app.Config.MaxUploadBytes())
	RegisterRoutes(router, docHandler, app.Config.Auth.JWTSecret)
	return router
}

// RegisterRoutes mounts the document API. jwtSecret may be empty to disable auth.
func RegisterRoutes(router *gin.Engine, docHandler *handler.DocumentHandler, jwtSecret string) {
	api := router.Group("/api")
	api.Use(middleware.AuthJWT(jwtSecret))

	ingest := middleware.RequireScope(jwtutil.ScopeIngest)
	read := middleware.RequireScope(jwtutil.ScopeRead)

	v1 := api.Group("/v1")
	v1.POST("/documents", ingest, docHandler.UploadPDF)
	v1.POST("/documents/text", ingest, docHandler.IngestText)
	v1.GET("/ingest/jobs/:id", ingest, docHandler.JobStatus)
	v1.POST("/search", read, docHandler.Search)
	v1.POST("/ask", read, docHandler.Ask)
	v1.POST("/ask/stream", read, docHandler.AskStream)

	api.POST("/upload-pdf", ingest, docHandler.UploadPDF)
	api.POST("/search-documents", read, docHandler.Search)
}
