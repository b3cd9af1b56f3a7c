package handler

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/flenzi/company-service/internal/domain"
	"github.com/flenzi/company-service/internal/generator"
	"github.com/flenzi/company-service/internal/repository"
	"github.com/flenzi/company-service/internal/service"
	"github.com/flenzi/company-service/pkg/database"
	"github.com/flenzi/company-service/pkg/metrics"
	"github.com/flenzi/company-service/pkg/response"
	"github.com/flenzi/company-service/pkg/uuidv7"
)

type envelope struct {
	Success bool                `json:"success"`
	Data    json.RawMessage     `json:"data"`
	Error   *response.ErrorInfo `json:"error"`
}

type testServer struct {
	router *gin.Engine
}

func newTestServer(t *testing.T, health map[string]Pinger) *testServer {
	t.Helper()
	gin.SetMode(gin.TestMode)

	db, err := database.New(&database.Config{Driver: "sqlite", FilePath: ":memory:", MaxOpenConns: 1, LogLevel: "silent"})
	require.NoError(t, err)
	require.NoError(t, database.AutoMigrate(db, domain.Models()...))
	t.Cleanup(func() { database.Close(db) })

	// One millisecond per id keeps creation order visible in id order.
	var ms atomic.Int64
	ms.Store(time.Now().UnixMilli())
	ids := uuidv7.NewGenerator(uuidv7.WithClock(func() time.Time { return time.UnixMilli(ms.Add(1)) }))
	registry, err := generator.NewRegistry(generator.Config{MaxBatch: 100}, ids)
	require.NoError(t, err)

	m := metrics.New("test")
	router := NewRouter(RouterConfig{
		Logger:   zerolog.New(io.Discard),
		Metrics:  m,
		Products: NewProductHandler(service.NewProductService(repository.NewGormProductRepository(db, ids), nil, 0, nil)),
		Users:    NewUserHandler(service.NewUserService(repository.NewGormUserRepository(db, ids), nil, 0, nil)),
		IDs:      NewIDHandler(registry, m),
		Health:   health,
	})
	return &testServer{router: router}
}

func (s *testServer) do(t *testing.T, method, path string, body interface{}) (int, envelope) {
	t.Helper()
	var reader io.Reader
	if body != nil {
		switch b := body.(type) {
		case string:
			reader = strings.NewReader(b)
		default:
			data, err := json.Marshal(b)
			require.NoError(t, err)
			reader = bytes.NewReader(data)
		}
	}
	req := httptest.NewRequest(method, path, reader)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	w := httptest.NewRecorder()
	s.router.ServeHTTP(w, req)

	var env envelope
	if w.Body.Len() > 0 {
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &env), w.Body.String())
	}
	return w.Code, env
}

func decodeData[T any](t *testing.T, env envelope) T {
	t.Helper()
	var v T
	require.NoError(t, json.Unmarshal(env.Data, &v))
	return v
}

func TestProductLifecycle(t *testing.T) {
	s := newTestServer(t, nil)

	code, env := s.do(t, http.MethodPost, "/api/v1/products", gin.H{"name": "Widget", "price": "12.50", "stock": 2})
	require.Equal(t, http.StatusCreated, code)
	created := decodeData[domain.ProductResponse](t, env)
	assert.True(t, created.Available)
	id, err := uuidv7.Parse(created.ID)
	require.NoError(t, err)
	assert.True(t, uuidv7.IsV7(id))

	code, env = s.do(t, http.MethodGet, "/api/v1/products/"+created.ID, nil)
	require.Equal(t, http.StatusOK, code)
	assert.Equal(t, "Widget", decodeData[domain.ProductResponse](t, env).Name)

	code, env = s.do(t, http.MethodPatch, "/api/v1/products/"+created.ID+"/stock", gin.H{"quantity": -5})
	assert.Equal(t, http.StatusBadRequest, code)
	assert.Equal(t, "insufficient stock for product "+created.ID, env.Error.Message)

	code, env = s.do(t, http.MethodPatch, "/api/v1/products/"+created.ID+"/stock", gin.H{"quantity": -2})
	require.Equal(t, http.StatusOK, code)
	assert.False(t, decodeData[domain.ProductResponse](t, env).Available)

	code, env = s.do(t, http.MethodPut, "/api/v1/products/"+created.ID, gin.H{"description": "blue"})
	require.Equal(t, http.StatusOK, code)
	assert.Equal(t, "blue", decodeData[domain.ProductResponse](t, env).Description)

	code, _ = s.do(t, http.MethodDelete, "/api/v1/products/"+created.ID, nil)
	assert.Equal(t, http.StatusNoContent, code)

	code, env = s.do(t, http.MethodGet, "/api/v1/products/"+created.ID, nil)
	assert.Equal(t, http.StatusNotFound, code)
	assert.Equal(t, "NOT_FOUND", env.Error.Code)
	assert.Equal(t, "/api/v1/products/"+created.ID, env.Error.Path)
}

func TestProductRequestErrors(t *testing.T) {
	s := newTestServer(t, nil)

	code, env := s.do(t, http.MethodGet, "/api/v1/products/not-a-uuid", nil)
	assert.Equal(t, http.StatusBadRequest, code)
	assert.Contains(t, env.Error.Message, "must be a UUID")

	code, env = s.do(t, http.MethodPost, "/api/v1/products", gin.H{"name": "Widget"})
	assert.Equal(t, http.StatusBadRequest, code)
	assert.Equal(t, "price is required", env.Error.Message)

	code, env = s.do(t, http.MethodPost, "/api/v1/products", gin.H{"name": "Widget", "price": "-1"})
	assert.Equal(t, http.StatusBadRequest, code)
	assert.Contains(t, env.Error.Message, "price must not be negative")

	code, _ = s.do(t, http.MethodPost, "/api/v1/products", "{not json")
	assert.Equal(t, http.StatusBadRequest, code)

	code, _ = s.do(t, http.MethodGet, "/api/v1/products/search", nil)
	assert.Equal(t, http.StatusBadRequest, code)

	code, _ = s.do(t, http.MethodGet, "/api/v1/products?max_price=cheap", nil)
	assert.Equal(t, http.StatusBadRequest, code)

	code, _ = s.do(t, http.MethodGet, "/api/v1/products?in_stock=maybe", nil)
	assert.Equal(t, http.StatusBadRequest, code)

	code, _ = s.do(t, http.MethodPatch, "/api/v1/products/"+uuidv7.NewString()+"/stock", gin.H{})
	assert.Equal(t, http.StatusBadRequest, code)
}

func TestProductListings(t *testing.T) {
	s := newTestServer(t, nil)

	for _, p := range []gin.H{
		{"name": "Red Laptop", "price": "999.00", "stock": 1},
		{"name": "Laptop Bag", "price": "40.00"},
		{"name": "Mouse", "price": "15.00", "stock": 3},
	} {
		code, _ := s.do(t, http.MethodPost, "/api/v1/products", p)
		require.Equal(t, http.StatusCreated, code)
	}

	names := func(path string) []string {
		code, env := s.do(t, http.MethodGet, path, nil)
		require.Equal(t, http.StatusOK, code, path)
		var out []string
		for _, p := range decodeData[[]domain.ProductResponse](t, env) {
			out = append(out, p.Name)
		}
		return out
	}

	assert.Equal(t, []string{"Red Laptop", "Laptop Bag", "Mouse"}, names("/api/v1/products"))
	assert.Equal(t, []string{"Red Laptop", "Mouse"}, names("/api/v1/products/available"))
	assert.Equal(t, []string{"Red Laptop", "Mouse"}, names("/api/v1/products?in_stock=true"))
	assert.Equal(t, []string{"Laptop Bag", "Mouse"}, names("/api/v1/products?max_price=40"))
	assert.Equal(t, []string{"Red Laptop", "Laptop Bag"}, names("/api/v1/products/search?name=LAPTOP"))
}

func TestUserEndpoints(t *testing.T) {
	s := newTestServer(t, nil)

	code, env := s.do(t, http.MethodPost, "/api/v1/users", gin.H{"email": "ada@example.com", "name": "Ada"})
	require.Equal(t, http.StatusCreated, code)
	ada := decodeData[domain.UserResponse](t, env)
	assert.True(t, ada.Active)

	code, env = s.do(t, http.MethodPost, "/api/v1/users", gin.H{"email": "ada@example.com", "name": "Again"})
	assert.Equal(t, http.StatusConflict, code)
	assert.Equal(t, "CONFLICT", env.Error.Code)

	code, env = s.do(t, http.MethodPost, "/api/v1/users", gin.H{"email": "nope", "name": "Bad"})
	assert.Equal(t, http.StatusBadRequest, code)
	assert.Equal(t, "email must be a valid email", env.Error.Message)

	code, env = s.do(t, http.MethodGet, "/api/v1/users?email=ada@example.com", nil)
	require.Equal(t, http.StatusOK, code)
	assert.Equal(t, ada.ID, decodeData[domain.UserResponse](t, env).ID)

	code, _ = s.do(t, http.MethodGet, "/api/v1/users?email=bob@example.com", nil)
	assert.Equal(t, http.StatusNotFound, code)

	code, env = s.do(t, http.MethodPut, "/api/v1/users/"+ada.ID, gin.H{"active": false})
	require.Equal(t, http.StatusOK, code)
	assert.False(t, decodeData[domain.UserResponse](t, env).Active)

	code, env = s.do(t, http.MethodGet, "/api/v1/users/active", nil)
	require.Equal(t, http.StatusOK, code)
	assert.Empty(t, decodeData[[]domain.UserResponse](t, env))

	code, env = s.do(t, http.MethodGet, "/api/v1/users", nil)
	require.Equal(t, http.StatusOK, code)
	assert.Len(t, decodeData[[]domain.UserResponse](t, env), 1)

	code, _ = s.do(t, http.MethodDelete, "/api/v1/users/"+ada.ID, nil)
	assert.Equal(t, http.StatusNoContent, code)
	code, _ = s.do(t, http.MethodGet, "/api/v1/users/"+ada.ID, nil)
	assert.Equal(t, http.StatusNotFound, code)
}

func TestIDEndpoints(t *testing.T) {
	s := newTestServer(t, nil)

	code, env := s.do(t, http.MethodGet, "/api/v1/ids/uuidv7?count=3", nil)
	require.Equal(t, http.StatusOK, code)
	gen := decodeData[generateResponse](t, env)
	require.Len(t, gen.IDs, 3)
	assert.Contains(t, s.scrape(t), `test_ids_generated_total{scheme="uuidv7"} 3`)

	code, env = s.do(t, http.MethodGet, "/api/v1/ids/uuidv7/"+gen.IDs[0], nil)
	require.Equal(t, http.StatusOK, code)
	inspect := decodeData[inspectResponse](t, env)
	assert.True(t, inspect.Valid)
	assert.Equal(t, 7, inspect.Result.Version)
	assert.NotNil(t, inspect.Result.Timestamp)

	code, env = s.do(t, http.MethodGet, "/api/v1/ids/ulid/"+gen.IDs[0], nil)
	require.Equal(t, http.StatusOK, code)
	assert.False(t, decodeData[inspectResponse](t, env).Valid)

	code, _ = s.do(t, http.MethodGet, "/api/v1/ids/uuidv7?count=101", nil)
	assert.Equal(t, http.StatusBadRequest, code)
	code, _ = s.do(t, http.MethodGet, "/api/v1/ids/uuidv7?count=x", nil)
	assert.Equal(t, http.StatusBadRequest, code)
	code, _ = s.do(t, http.MethodGet, "/api/v1/ids/snowflake", nil)
	assert.Equal(t, http.StatusNotFound, code)

	code, env = s.do(t, http.MethodGet, "/api/v1/ids", nil)
	require.Equal(t, http.StatusOK, code)
	assert.Contains(t, string(env.Data), "ksuid")
}

func (s *testServer) scrape(t *testing.T) string {
	t.Helper()
	w := httptest.NewRecorder()
	s.router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	require.Equal(t, http.StatusOK, w.Code)
	return w.Body.String()
}

func TestHealthAndNoRoute(t *testing.T) {
	s := newTestServer(t, map[string]Pinger{
		"database": func(context.Context) error { return nil },
	})
	code, env := s.do(t, http.MethodGet, "/health", nil)
	assert.Equal(t, http.StatusOK, code)
	assert.True(t, env.Success)

	s = newTestServer(t, map[string]Pinger{
		"redis": func(context.Context) error { return errors.New("connection refused") },
	})
	code, env = s.do(t, http.MethodGet, "/health", nil)
	assert.Equal(t, http.StatusServiceUnavailable, code)
	assert.Contains(t, string(env.Data), "connection refused")

	code, env = s.do(t, http.MethodGet, "/api/v1/nothing", nil)
	assert.Equal(t, http.StatusNotFound, code)
	assert.Equal(t, "NOT_FOUND", env.Error.Code)
}

func TestOpenAPIDocumentCoversRoutes(t *testing.T) {
	s := newTestServer(t, nil)

	w := httptest.NewRecorder()
	s.router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/openapi.yaml", nil))
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Header().Get("Content-Type"), "application/yaml")

	doc := w.Body.String()
	assert.Contains(t, doc, "\n  /api/v1/products:\n")
	assert.Contains(t, doc, "ErrorInfo:")

	for _, route := range s.router.Routes() {
		var parts []string
		for _, seg := range strings.Split(route.Path, "/") {
			if strings.HasPrefix(seg, ":") {
				seg = "{" + seg[1:] + "}"
			}
			parts = append(parts, seg)
		}
		path := strings.Join(parts, "/")
		assert.Contains(t, doc, "\n  "+path+":\n", "%s %s undocumented", route.Method, route.Path)
	}
}
