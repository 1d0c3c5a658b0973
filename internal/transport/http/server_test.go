package http

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"mime/multipart"
	nethttp "net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/gin-gonic/gin"
	"github.com/glebarez/sqlite"
	redisv9 "github.com/redis/go-redis/v9"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"docrag/internal/ai"
	"docrag/internal/app"
	"docrag/internal/cache"
	"docrag/internal/model"
	"docrag/internal/pkg/jwtutil"
	"docrag/internal/repository"
	"docrag/internal/transport/http/handler"
	"docrag/internal/transport/http/response"
)

type embedFunc func(ctx context.Context, text string) ([]float32, error)

func (f embedFunc) Embed(ctx context.Context, text string) ([]float32, error) { return f(ctx, text) }

func keywordEmbed(_ context.Context, text string) ([]float32, error) {
	lower := strings.ToLower(text)
	vec := []float32{0, 0, 0.1}
	if strings.Contains(lower, "mammal") {
		vec[0] = 1
	}
	if strings.Contains(lower, "sky") {
		vec[1] = 1
	}
	return vec, nil
}

type stubChat struct {
	configured bool
}

func (s stubChat) Configured() bool { return s.configured }

func (s stubChat) Complete(context.Context, []ai.ChatMessage) (string, error) {
	return "Cats and dogs.", nil
}

func (s stubChat) Stream(_ context.Context, _ []ai.ChatMessage, onChunk func(string) error) (string, error) {
	for _, part := range []string{"Cats ", "and dogs."} {
		if err := onChunk(part); err != nil {
			return "", err
		}
	}
	return "Cats and dogs.", nil
}

type queuePublisher struct {
	jobs []model.IngestJob
}

func (p *queuePublisher) Publish(_ context.Context, job model.IngestJob) error {
	p.jobs = append(p.jobs, job)
	return nil
}

type routerOptions struct {
	embed     embedFunc
	chat      stubChat
	async     bool
	jwtSecret string
}

func newTestRouter(t *testing.T, opts routerOptions) (*gin.Engine, *queuePublisher) {
	t.Helper()
	gin.SetMode(gin.TestMode)

	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{Logger: logger.Discard})
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	sqlDB, _ := db.DB()
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { _ = sqlDB.Close() })
	repo := repository.NewChunkRepository(db)
	if err := repo.Migrate(context.Background()); err != nil {
		t.Fatalf("migrate: %v", err)
	}

	embed := opts.embed
	if embed == nil {
		embed = keywordEmbed
	}
	ingest := app.NewIngestService(embed, repo, app.IngestOptions{
		MaxChunkSize: 25,
		Extract: func(io.Reader) (string, error) {
			return "Cats are mammals. Dogs are mammals too. The sky is blue.", nil
		},
	})
	retrieval := app.NewRetrievalService(embed, repo, app.RetrievalOptions{MatchThreshold: 0.7, MatchCount: 5})
	ask := app.NewAskService(retrieval, opts.chat)

	publisher := &queuePublisher{}
	jobs := app.NewJobService(ingest, nil, nil)
	if opts.async {
		mr := miniredis.RunT(t)
		client := redisv9.NewClient(&redisv9.Options{Addr: mr.Addr()})
		t.Cleanup(func() { _ = client.Close() })
		jobs = app.NewJobService(ingest, publisher, cache.NewJobStore(client, time.Hour))
	}

	router := gin.New()
	RegisterRoutes(router, handler.NewDocumentHandler(ingest, retrieval, ask, jobs, 1<<20), opts.jwtSecret)
	return router, publisher
}

type envelope struct {
	Code    int             `json:"code"`
	Message string          `json:"message"`
	Data    json.RawMessage `json:"data"`
}

func doJSON(t *testing.T, router *gin.Engine, method, path string, body any, header ...string) (*httptest.ResponseRecorder, envelope) {
	t.Helper()
	var reader io.Reader
	if body != nil {
		raw, _ := json.Marshal(body)
		reader = bytes.NewReader(raw)
	}
	req := httptest.NewRequest(method, path, reader)
	req.Header.Set("Content-Type", "application/json")
	if len(header) == 2 {
		req.Header.Set(header[0], header[1])
	}
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	var env envelope
	_ = json.Unmarshal(w.Body.Bytes(), &env)
	return w, env
}

func doUpload(t *testing.T, router *gin.Engine, path, filename string, content []byte, fields map[string]string) (*httptest.ResponseRecorder, envelope) {
	t.Helper()
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	for k, v := range fields {
		_ = mw.WriteField(k, v)
	}
	if filename != "" {
		fw, err := mw.CreateFormFile("file", filename)
		if err != nil {
			t.Fatalf("create form file: %v", err)
		}
		_, _ = fw.Write(content)
	}
	_ = mw.Close()

	req := httptest.NewRequest(nethttp.MethodPost, path, &buf)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	var env envelope
	_ = json.Unmarshal(w.Body.Bytes(), &env)
	return w, env
}

func ingestSample(t *testing.T, router *gin.Engine) {
	t.Helper()
	w, env := doJSON(t, router, nethttp.MethodPost, "/api/v1/documents/text", map[string]string{
		"filename": "animals.pdf",
		"content":  "Cats are mammals. Dogs are mammals too. The sky is blue.",
	})
	if w.Code != nethttp.StatusOK {
		t.Fatalf("ingest status = %d: %s", w.Code, w.Body.String())
	}
	var data struct {
		Chunks   int    `json:"chunks"`
		Filename string `json:"filename"`
		Message  string `json:"message"`
	}
	_ = json.Unmarshal(env.Data, &data)
	if data.Chunks != 3 || data.Filename != "animals.pdf" || data.Message == "" {
		t.Fatalf("unexpected ingest body %s", w.Body.String())
	}
}

func TestRouter_IngestTextThenSearch(t *testing.T) {
	router, _ := newTestRouter(t, routerOptions{})
	ingestSample(t, router)

	for _, path := range []string{"/api/v1/search", "/api/search-documents"} {
		w, env := doJSON(t, router, nethttp.MethodPost, path, map[string]any{"query": "Which animals are mammals?", "limit": 5})
		if w.Code != nethttp.StatusOK || env.Code != response.CodeOK {
			t.Fatalf("%s status = %d: %s", path, w.Code, w.Body.String())
		}
		var data struct {
			Results []model.ChunkMatch `json:"results"`
		}
		if err := json.Unmarshal(env.Data, &data); err != nil {
			t.Fatalf("decode results: %v", err)
		}
		if len(data.Results) != 2 || data.Results[0].Content != "Cats are mammals." {
			t.Fatalf("%s unexpected results %+v", path, data.Results)
		}
	}
}

func TestRouter_ErrorMapping(t *testing.T) {
	router, _ := newTestRouter(t, routerOptions{})

	tests := []struct {
		name   string
		path   string
		body   any
		status int
		code   int
	}{
		{"empty query", "/api/v1/search", map[string]string{"query": "  "}, nethttp.StatusBadRequest, response.CodeEmptyQuery},
		{"empty document", "/api/v1/documents/text", map[string]string{"filename": "a.pdf", "content": " "}, nethttp.StatusBadRequest, response.CodeEmptyDocument},
		{"missing filename", "/api/v1/documents/text", map[string]string{"content": "x."}, nethttp.StatusBadRequest, response.CodeBadRequest},
		{"llm not configured", "/api/v1/ask", map[string]string{"question": "mammals?"}, nethttp.StatusBadRequest, response.CodeLLMNotConfigured},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w, env := doJSON(t, router, nethttp.MethodPost, tt.path, tt.body)
			if w.Code != tt.status || env.Code != tt.code {
				t.Fatalf("got %d/%d, want %d/%d: %s", w.Code, env.Code, tt.status, tt.code, w.Body.String())
			}
		})
	}
}

func TestRouter_EmbeddingFailureIsBadGateway(t *testing.T) {
	down := embedFunc(func(context.Context, string) ([]float32, error) {
		return nil, ai.ErrEmbeddingUnavailable
	})
	router, _ := newTestRouter(t, routerOptions{embed: down})

	w, env := doJSON(t, router, nethttp.MethodPost, "/api/v1/search", map[string]string{"query": "mammals"})
	if w.Code != nethttp.StatusBadGateway || env.Code != response.CodeEmbeddingUnavailable {
		t.Fatalf("got %d/%d: %s", w.Code, env.Code, w.Body.String())
	}
}

func TestRouter_UploadPDF(t *testing.T) {
	router, _ := newTestRouter(t, routerOptions{})

	for _, path := range []string{"/api/v1/documents", "/api/upload-pdf"} {
		w, env := doUpload(t, router, path, "animals.pdf", []byte("%PDF-1.4 fake body"), nil)
		if w.Code != nethttp.StatusOK {
			t.Fatalf("%s status = %d: %s", path, w.Code, w.Body.String())
		}
		var data struct {
			Chunks int `json:"chunks"`
			Total  int `json:"total"`
		}
		_ = json.Unmarshal(env.Data, &data)
		if data.Chunks != 3 || data.Total != 3 {
			t.Fatalf("unexpected body %s", w.Body.String())
		}
	}
}

func TestRouter_UploadRejections(t *testing.T) {
	router, _ := newTestRouter(t, routerOptions{})

	w, env := doUpload(t, router, "/api/v1/documents", "notes.txt", []byte("plain text"), nil)
	if w.Code != nethttp.StatusBadRequest || env.Code != response.CodeUnsupportedMediaType {
		t.Fatalf("non-pdf: got %d/%d", w.Code, env.Code)
	}

	w, env = doUpload(t, router, "/api/v1/documents", "", nil, nil)
	if w.Code != nethttp.StatusBadRequest || env.Code != response.CodeBadRequest {
		t.Fatalf("missing file: got %d/%d", w.Code, env.Code)
	}

	w, env = doUpload(t, router, "/api/v1/documents", "   ", []byte("%PDF-1.4 fake body"), nil)
	if w.Code != nethttp.StatusBadRequest || env.Code != response.CodeBadRequest {
		t.Fatalf("blank filename: got %d/%d", w.Code, env.Code)
	}

	big := append([]byte("%PDF-"), bytes.Repeat([]byte("a"), 2<<20)...)
	w, _ = doUpload(t, router, "/api/v1/documents", "big.pdf", big, nil)
	if w.Code != nethttp.StatusBadRequest {
		t.Fatalf("oversized: got %d", w.Code)
	}
}

func TestRouter_AsyncUpload(t *testing.T) {
	router, publisher := newTestRouter(t, routerOptions{async: true})

	w, env := doUpload(t, router, "/api/v1/documents", "animals.pdf", []byte("%PDF-1.7"), map[string]string{"async": "true"})
	if w.Code != nethttp.StatusAccepted {
		t.Fatalf("status = %d: %s", w.Code, w.Body.String())
	}
	var state model.IngestJobState
	if err := json.Unmarshal(env.Data, &state); err != nil {
		t.Fatalf("decode state: %v", err)
	}
	if state.ID == "" || state.Status != model.IngestJobQueued || len(publisher.jobs) != 1 {
		t.Fatalf("unexpected state %+v jobs=%d", state, len(publisher.jobs))
	}

	w, _ = doJSON(t, router, nethttp.MethodGet, "/api/v1/ingest/jobs/"+state.ID, nil)
	if w.Code != nethttp.StatusOK {
		t.Fatalf("job status = %d: %s", w.Code, w.Body.String())
	}

	w, env = doJSON(t, router, nethttp.MethodGet, "/api/v1/ingest/jobs/unknown", nil)
	if w.Code != nethttp.StatusNotFound || env.Code != response.CodeJobNotFound {
		t.Fatalf("unknown job: got %d/%d", w.Code, env.Code)
	}
}

func TestRouter_AsyncDisabled(t *testing.T) {
	router, _ := newTestRouter(t, routerOptions{})
	w, env := doUpload(t, router, "/api/v1/documents", "animals.pdf", []byte("%PDF-1.7"), map[string]string{"async": "true"})
	if w.Code != nethttp.StatusServiceUnavailable || env.Code != response.CodeServiceUnavailable {
		t.Fatalf("got %d/%d", w.Code, env.Code)
	}
}

func TestRouter_Ask(t *testing.T) {
	router, _ := newTestRouter(t, routerOptions{chat: stubChat{configured: true}})
	ingestSample(t, router)

	w, env := doJSON(t, router, nethttp.MethodPost, "/api/v1/ask", map[string]any{"question": "Which animals are mammals?"})
	if w.Code != nethttp.StatusOK {
		t.Fatalf("status = %d: %s", w.Code, w.Body.String())
	}
	var result app.AskResult
	if err := json.Unmarshal(env.Data, &result); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if result.Answer != "Cats and dogs." || len(result.Sources) != 2 {
		t.Fatalf("unexpected result %+v", result)
	}
}

func TestRouter_AskStream(t *testing.T) {
	router, _ := newTestRouter(t, routerOptions{chat: stubChat{configured: true}})
	ingestSample(t, router)

	w, _ := doJSON(t, router, nethttp.MethodPost, "/api/v1/ask/stream", map[string]any{"question": "Which animals are mammals?"})
	if w.Code != nethttp.StatusOK {
		t.Fatalf("status = %d: %s", w.Code, w.Body.String())
	}
	if ct := w.Header().Get("Content-Type"); !strings.HasPrefix(ct, "text/event-stream") {
		t.Fatalf("content type = %q", ct)
	}
	body := w.Body.String()
	sources := strings.Index(body, "event: sources")
	delta := strings.Index(body, "event: delta\ndata: Cats ")
	done := strings.Index(body, "event: done\ndata: Cats and dogs.")
	if sources < 0 || delta < sources || done < delta {
		t.Fatalf("unexpected stream:\n%s", body)
	}
}

func TestRouter_AskStreamErrorBeforeStart(t *testing.T) {
	router, _ := newTestRouter(t, routerOptions{chat: stubChat{configured: true}})
	w, env := doJSON(t, router, nethttp.MethodPost, "/api/v1/ask/stream", map[string]any{"question": " "})
	if w.Code != nethttp.StatusBadRequest || env.Code != response.CodeEmptyQuery {
		t.Fatalf("got %d/%d: %s", w.Code, env.Code, w.Body.String())
	}
}

func TestRouter_JWT(t *testing.T) {
	const secret = "router-secret"
	router, _ := newTestRouter(t, routerOptions{jwtSecret: secret})

	w, _ := doJSON(t, router, nethttp.MethodPost, "/api/v1/search", map[string]string{"query": "mammals"})
	if w.Code != nethttp.StatusUnauthorized {
		t.Fatalf("expected 401 without token, got %d", w.Code)
	}

	token, err := jwtutil.GenerateToken(secret, time.Minute, "tester", "")
	if err != nil {
		t.Fatalf("token: %v", err)
	}
	w, _ = doJSON(t, router, nethttp.MethodPost, "/api/v1/search", map[string]string{"query": "mammals"}, "Authorization", "Bearer "+token)
	if w.Code != nethttp.StatusOK {
		t.Fatalf("expected 200 with token, got %d: %s", w.Code, w.Body.String())
	}
}

func TestRouter_JWTScopes(t *testing.T) {
	const secret = "router-secret"
	router, _ := newTestRouter(t, routerOptions{jwtSecret: secret})

	ingestToken, err := jwtutil.GenerateToken(secret, time.Minute, "uploader", jwtutil.ScopeIngest)
	if err != nil {
		t.Fatalf("token: %v", err)
	}
	readToken, err := jwtutil.GenerateToken(secret, time.Minute, "dashboard", jwtutil.ScopeRead)
	if err != nil {
		t.Fatalf("token: %v", err)
	}
	text := map[string]string{"filename": "animals.pdf", "content": "Cats are mammals."}
	query := map[string]string{"query": "mammals"}

	tests := []struct {
		name   string
		path   string
		body   any
		token  string
		status int
	}{
		{"ingest token ingests", "/api/v1/documents/text", text, ingestToken, nethttp.StatusOK},
		{"ingest token cannot search", "/api/v1/search", query, ingestToken, nethttp.StatusForbidden},
		{"ingest token cannot use alias search", "/api/search-documents", query, ingestToken, nethttp.StatusForbidden},
		{"read token searches", "/api/v1/search", query, readToken, nethttp.StatusOK},
		{"read token cannot ingest", "/api/v1/documents/text", text, readToken, nethttp.StatusForbidden},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w, env := doJSON(t, router, nethttp.MethodPost, tt.path, tt.body, "Authorization", "Bearer "+tt.token)
			if w.Code != tt.status {
				t.Fatalf("status = %d, want %d: %s", w.Code, tt.status, w.Body.String())
			}
			if tt.status == nethttp.StatusForbidden && env.Code != response.CodeForbidden {
				t.Fatalf("code = %d, want %d", env.Code, response.CodeForbidden)
			}
		})
	}
}
