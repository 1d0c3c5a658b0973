package handler

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"

	"docrag/internal/app"
	"docrag/internal/model"
	"docrag/internal/pkg/pdfextract"
	"docrag/internal/transport/http/response"
)

type DocumentHandler struct {
	ingest         *app.IngestService
	retrieval      *app.RetrievalService
	ask            *app.AskService
	jobs           *app.JobService
	maxUploadBytes int64
}

type IngestTextRequest struct {
	Filename string `json:"filename" binding:"required"`
	Content  string `json:"content"`
}

type SearchRequest struct {
	Query string `json:"query"`
	Limit int    `json:"limit"`
}

type AskRequest struct {
	Question string `json:"question"`
	Limit    int    `json:"limit"`
}

type ingestResponse struct {
	Message  string `json:"message"`
	Filename string `json:"filename"`
	Chunks   int    `json:"chunks"`
	Total    int    `json:"total"`
	Failed   int    `json:"failed"`
}

func NewDocumentHandler(
	ingest *app.IngestService,
	retrieval *app.RetrievalService,
	ask *app.AskService,
	jobs *app.JobService,
	maxUploadBytes int64,
) *DocumentHandler {
	if maxUploadBytes <= 0 {
		maxUploadBytes = 32 << 20
	}
	return &DocumentHandler{
		ingest:         ingest,
		retrieval:      retrieval,
		ask:            ask,
		jobs:           jobs,
		maxUploadBytes: maxUploadBytes,
	}
}

// UploadPDF accepts a multipart form with "file" (PDF). With async=true the
// extracted text is queued and a job is returned instead of the result.
func (h *DocumentHandler) UploadPDF(c *gin.Context) {
	file, err := c.FormFile("file")
	if err != nil {
		response.Error(c, http.StatusBadRequest, response.CodeBadRequest, "missing file")
		return
	}
	filename, ok := uploadFilename(file.Filename)
	if !ok {
		writeError(c, app.ErrInvalidInput)
		return
	}
	if file.Size > h.maxUploadBytes {
		response.Error(c, http.StatusBadRequest, response.CodeBadRequest, fmt.Sprintf("file too large (max %d MB)", h.maxUploadBytes>>20))
		return
	}

	f, err := file.Open()
	if err != nil {
		response.Error(c, http.StatusInternalServerError, response.CodeInternalServer, "failed to read file")
		return
	}
	defer f.Close()

	data, err := io.ReadAll(io.LimitReader(f, h.maxUploadBytes+1))
	if err != nil {
		response.Error(c, http.StatusInternalServerError, response.CodeInternalServer, "failed to read file")
		return
	}
	if !pdfextract.IsPDF(data) {
		writeError(c, app.ErrUnsupportedMediaType)
		return
	}

	if async, _ := strconv.ParseBool(c.PostForm("async")); async {
		text, err := h.ingest.Extract(bytes.NewReader(data))
		if err != nil {
			writeError(c, err)
			return
		}
		h.submit(c, filename, text)
		return
	}

	result, err := h.ingest.IngestPDF(c.Request.Context(), filename, bytes.NewReader(data))
	if err != nil {
		writeError(c, err)
		return
	}
	response.OK(c, newIngestResponse("PDF processed successfully", result))
}

func (h *DocumentHandler) IngestText(c *gin.Context) {
	var req IngestTextRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, http.StatusBadRequest, response.CodeBadRequest, "invalid request payload")
		return
	}

	if async, _ := strconv.ParseBool(c.Query("async")); async {
		h.submit(c, req.Filename, req.Content)
		return
	}

	result, err := h.ingest.Ingest(c.Request.Context(), req.Filename, req.Content)
	if err != nil {
		writeError(c, err)
		return
	}
	response.OK(c, newIngestResponse("text processed successfully", result))
}

func (h *DocumentHandler) submit(c *gin.Context, filename, text string) {
	state, err := h.jobs.Submit(c.Request.Context(), filename, text)
	if err != nil {
		writeError(c, err)
		return
	}
	response.Accepted(c, state)
}

func (h *DocumentHandler) JobStatus(c *gin.Context) {
	state, err := h.jobs.Status(c.Request.Context(), c.Param("id"))
	if err != nil {
		writeError(c, err)
		return
	}
	response.OK(c, state)
}

func (h *DocumentHandler) Search(c *gin.Context) {
	var req SearchRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, http.StatusBadRequest, response.CodeBadRequest, "invalid request payload")
		return
	}

	results, err := h.retrieval.Retrieve(c.Request.Context(), req.Query, req.Limit)
	if err != nil {
		writeError(c, err)
		return
	}
	response.OK(c, gin.H{"results": results})
}

func (h *DocumentHandler) Ask(c *gin.Context) {
	var req AskRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, http.StatusBadRequest, response.CodeBadRequest, "invalid request payload")
		return
	}

	result, err := h.ask.Ask(c.Request.Context(), req.Question, req.Limit)
	if err != nil {
		writeError(c, err)
		return
	}
	response.OK(c, result)
}

// AskStream answers as server-sent events: one "sources" event, "delta"
// events, then "done" or "error".
func (h *DocumentHandler) AskStream(c *gin.Context) {
	var req AskRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, http.StatusBadRequest, response.CodeBadRequest, "invalid request payload")
		return
	}

	flusher, ok := c.Writer.(http.Flusher)
	if !ok {
		response.Error(c, http.StatusInternalServerError, response.CodeInternalServer, "stream not supported")
		return
	}

	started := false
	begin := func() {
		if started {
			return
		}
		started = true
		c.Header("Content-Type", "text/event-stream")
		c.Header("Cache-Control", "no-cache")
		c.Header("Connection", "keep-alive")
		c.Header("X-Accel-Buffering", "no")
		c.Status(http.StatusOK)
	}
	write := func(frame string) error {
		if _, err := c.Writer.Write([]byte(frame)); err != nil {
			return err
		}
		flusher.Flush()
		return nil
	}

	result, err := h.ask.Stream(c.Request.Context(), req.Question, req.Limit,
		func(sources []model.ChunkMatch) error {
			payload, err := json.Marshal(sources)
			if err != nil {
				return err
			}
			begin()
			return write("event: sources\ndata: " + string(payload) + "\n\n")
		},
		func(delta string) error {
			begin()
			return write("event: delta\ndata: " + sanitizeSSE(delta) + "\n\n")
		},
	)
	if err != nil {
		if !started {
			writeError(c, err)
			return
		}
		_ = write("event: error\ndata: " + sanitizeSSE(err.Error()) + "\n\n")
		return
	}
	begin()
	_ = write("event: done\ndata: " + sanitizeSSE(result.Answer) + "\n\n")
}

func newIngestResponse(message string, result *app.IngestResult) ingestResponse {
	return ingestResponse{
		Message:  message,
		Filename: result.Filename,
		Chunks:   result.Chunks,
		Total:    result.Total,
		Failed:   result.Failed(),
	}
}

// uploadFilename keeps only the base name of a client supplied file name and
// reports false when nothing usable is left.
func uploadFilename(name string) (string, bool) {
	base := filepath.Base(strings.TrimSpace(name))
	switch base {
	case ".", "..", string(filepath.Separator):
		return "", false
	}
	return base, true
}

func sanitizeSSE(input string) string {
	replaced := strings.ReplaceAll(input, "\r\n", "\\n")
	replaced = strings.ReplaceAll(replaced, "\n", "\\n")
	return replaced
}
