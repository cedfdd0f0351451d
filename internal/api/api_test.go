package api

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"nuestra-historia/internal/database/dbtest"
	"nuestra-historia/internal/memories"
	"nuestra-historia/internal/realtime"
	"nuestra-historia/internal/upload"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func init() {
	gin.SetMode(gin.TestMode)
}

func memoryRouter(store MemoryStore) *gin.Engine {
	h := NewMemoryHandler(store)
	r := gin.New()
	r.GET("/api/memories", h.GetMemories)
	r.POST("/api/memories", h.CreateMemory)
	r.DELETE("/api/memories/:id", h.DeleteMemory)
	return r
}

func newStore(t *testing.T) *memories.Store {
	t.Helper()
	coll := realtime.NewGormCollection(dbtest.Open(t))
	t.Cleanup(func() { coll.Close() })
	now := time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC)
	return memories.NewStore(coll, "memories", memories.WithClock(func() time.Time { return now }))
}

func do(r http.Handler, method, path, body string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func TestMemoryLifecycle(t *testing.T) {
	r := memoryRouter(newStore(t))

	w := do(r, http.MethodGet, "/api/memories", "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `[]`, w.Body.String())

	w = do(r, http.MethodPost, "/api/memories", `{"title":"  Viaje  ","date":"2023-08-10","url":"https://res.example/v.mp4","type":"video"}`)
	require.Equal(t, http.StatusCreated, w.Code)
	var created struct {
		ID string `json:"id"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &created))
	require.NotEmpty(t, created.ID)

	w = do(r, http.MethodPost, "/api/memories", `{"title":"Cena","url":"https://res.example/c.jpg"}`)
	require.Equal(t, http.StatusCreated, w.Code)

	w = do(r, http.MethodGet, "/api/memories", "")
	require.Equal(t, http.StatusOK, w.Code)
	var list []memories.Memory
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &list))
	require.Len(t, list, 2)

	// the undated memory defaults to today and sorts first
	assert.Equal(t, "Cena", list[0].Title)
	assert.Equal(t, "2024-06-01", list[0].Date)
	assert.Equal(t, memories.KindImage, list[0].Kind)
	assert.Equal(t, "Viaje", list[1].Title)
	assert.Equal(t, memories.KindVideo, list[1].Kind)

	w = do(r, http.MethodDelete, "/api/memories/"+created.ID, "")
	assert.Equal(t, http.StatusOK, w.Code)
	w = do(r, http.MethodDelete, "/api/memories/"+created.ID, "")
	assert.Equal(t, http.StatusOK, w.Code)

	w = do(r, http.MethodGet, "/api/memories", "")
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &list))
	require.Len(t, list, 1)
	assert.Equal(t, "Cena", list[0].Title)
}

func TestCreateMemoryRejectsBadInput(t *testing.T) {
	r := memoryRouter(newStore(t))

	tests := []struct {
		name string
		body string
	}{
		{name: "blank title", body: `{"title":"   ","url":"https://res.example/a.jpg"}`},
		{name: "missing url", body: `{"title":"Playa"}`},
		{name: "malformed date", body: `{"title":"Playa","date":"next tuesday","url":"https://res.example/a.jpg"}`},
		{name: "impossible date", body: `{"title":"Playa","date":"2024-02-30","url":"https://res.example/a.jpg"}`},
		{name: "unknown type", body: `{"title":"Playa","url":"https://res.example/a.jpg","type":"audio"}`},
		{name: "not json", body: `title=Playa`},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			w := do(r, http.MethodPost, "/api/memories", tc.body)
			assert.Equal(t, http.StatusBadRequest, w.Code)
		})
	}

	w := do(r, http.MethodGet, "/api/memories", "")
	assert.JSONEq(t, `[]`, w.Body.String())
}

type brokenStore struct{}

func (brokenStore) List(context.Context) ([]memories.Memory, error) {
	return nil, errors.New("disk on fire")
}

func (brokenStore) Create(context.Context, memories.Fields) (string, error) {
	return "", &memories.RemoteWriteError{Op: "create", Err: errors.New("permission denied")}
}

func (brokenStore) Remove(_ context.Context, id string) error {
	return &memories.RemoteWriteError{Op: "remove", ID: id, Err: errors.New("permission denied")}
}

func TestMemoryStoreFailures(t *testing.T) {
	r := memoryRouter(brokenStore{})

	assert.Equal(t, http.StatusInternalServerError, do(r, http.MethodGet, "/api/memories", "").Code)

	w := do(r, http.MethodPost, "/api/memories", `{"title":"Playa","url":"https://res.example/a.jpg"}`)
	assert.Equal(t, http.StatusBadGateway, w.Code)
	assert.Contains(t, w.Body.String(), "permission denied")

	assert.Equal(t, http.StatusBadGateway, do(r, http.MethodDelete, "/api/memories/x", "").Code)
}

func multipartBody(t *testing.T, filename, source string, data []byte) (*bytes.Buffer, string) {
	t.Helper()
	body := &bytes.Buffer{}
	writer := multipart.NewWriter(body)
	part, err := writer.CreateFormFile("file", filename)
	require.NoError(t, err)
	_, err = part.Write(data)
	require.NoError(t, err)
	if source != "" {
		require.NoError(t, writer.WriteField("source", source))
	}
	require.NoError(t, writer.Close())
	return body, writer.FormDataContentType()
}

func TestUploadMedia(t *testing.T) {
	host := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"secure_url":"https://res.example/a.jpg","resource_type":"image","format":"jpg"}`))
	}))
	defer host.Close()

	client := &upload.Client{CloudName: "demo", UploadPreset: "p", BaseURL: host.URL, HTTPClient: host.Client()}
	h := NewUploadHandler(client, upload.Config{AllowedFormats: []string{"jpg"}, MaxFileSizeBytes: 1024, Sources: []string{"local"}})
	r := gin.New()
	r.GET("/api/upload/config", h.GetConfig)
	r.POST("/api/upload", h.UploadMedia)

	w := do(r, http.MethodGet, "/api/upload/config", "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"cloudName":"demo","uploadPreset":"p","sources":["local"],"multiple":false,"maxFileSize":1024,"clientAllowedFormats":["jpg"]}`, w.Body.String())

	body, contentType := multipartBody(t, "a.jpg", "local", []byte("jpeg"))
	req := httptest.NewRequest(http.MethodPost, "/api/upload", body)
	req.Header.Set("Content-Type", contentType)
	w = httptest.NewRecorder()
	r.ServeHTTP(w, req)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "https://res.example/a.jpg")

	body, contentType = multipartBody(t, "a.gif", "local", []byte("gif"))
	req = httptest.NewRequest(http.MethodPost, "/api/upload", body)
	req.Header.Set("Content-Type", contentType)
	w = httptest.NewRecorder()
	r.ServeHTTP(w, req)
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = do(r, http.MethodPost, "/api/upload", "")
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

type fixedCount int

func (n fixedCount) Count() int { return int(n) }

func TestHealth(t *testing.T) {
	db := dbtest.Open(t)
	h := NewHealthHandler(db, fixedCount(3))
	r := gin.New()
	r.GET("/healthz", h.Health)

	w := do(r, http.MethodGet, "/healthz", "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"status":"ok","clients":3}`, w.Body.String())

	sqlDB, err := db.DB()
	require.NoError(t, err)
	require.NoError(t, sqlDB.Close())

	w = do(r, http.MethodGet, "/healthz", "")
	assert.Equal(t, http.StatusServiceUnavailable, w.Code)
}
