package integration

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"os"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	chiMiddleware "github.com/go-chi/chi/v5/middleware"

	"github.com/prendaria/backoffice/internal/auth"
	"github.com/prendaria/backoffice/internal/database"
	"github.com/prendaria/backoffice/internal/handlers"
	middlewareCustom "github.com/prendaria/backoffice/internal/middleware"
	"github.com/prendaria/backoffice/internal/permissions"
	"github.com/prendaria/backoffice/internal/repositories"
	"github.com/prendaria/backoffice/internal/routes"
	"github.com/prendaria/backoffice/internal/security"
	"github.com/prendaria/backoffice/internal/services"
	pkghttp "github.com/prendaria/backoffice/pkg/http"
	pkglogger "github.com/prendaria/backoffice/pkg/logger"
)

// memoryCounterStore is an in-process stand-in for the Redis counter store,
// good enough for single-node integration tests.
type memoryCounterStore struct {
	mu       sync.Mutex
	counters map[string]int64
	expiry   map[string]time.Time
}

func newMemoryCounterStore() *memoryCounterStore {
	return &memoryCounterStore{
		counters: make(map[string]int64),
		expiry:   make(map[string]time.Time),
	}
}

func (s *memoryCounterStore) IncrementTTL(ctx context.Context, key string, ttl time.Duration) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.evict(key)
	s.counters[key]++
	s.expiry[key] = time.Now().Add(ttl)
	return s.counters[key], nil
}

func (s *memoryCounterStore) Count(ctx context.Context, key string) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.evict(key)
	return s.counters[key], nil
}

func (s *memoryCounterStore) Forget(ctx context.Context, key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.counters, key)
	delete(s.expiry, key)
	return nil
}

func (s *memoryCounterStore) evict(key string) {
	if exp, ok := s.expiry[key]; ok && time.Now().After(exp) {
		delete(s.counters, key)
		delete(s.expiry, key)
	}
}

// TestServer wraps httptest.Server with the full service graph over a real
// database.
type TestServer struct {
	Server *httptest.Server
	DB     *database.DB

	UserRepo   *repositories.UserRepository
	RevokeRepo *repositories.TokenRevocationRepository
	Authz      *services.AuthzService
	Guard      *security.Guard

	logger *slog.Logger
}

// NewTestServer wires the production dependency graph against the given
// database, with the IP counter store swapped for an in-memory one.
func NewTestServer(ctx context.Context, db *database.DB) (*TestServer, error) {
	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelWarn}))

	userRepo := repositories.NewUserRepository(db)
	permissionRepo := repositories.NewPermissionRepository(db)
	revokeRepo := repositories.NewTokenRevocationRepository(db)

	catalog := permissions.NewCatalog()
	if err := permissionRepo.SeedCatalog(ctx, catalog); err != nil {
		return nil, fmt.Errorf("failed to seed permission catalog: %w", err)
	}

	tokenManager := auth.NewTokenManager(
		"test-secret-32-characters-long-for-testing",
		15*time.Minute,
		7*24*time.Hour,
	)

	auditLogger := pkglogger.NewAuditLogger(logger)
	attemptTracker := security.NewAttemptTracker(newMemoryCounterStore())
	guard := security.NewGuard(userRepo, attemptTracker, revokeRepo, security.Config{}, logger, auditLogger)

	authzService := services.NewAuthzService(catalog, permissionRepo, logger, auditLogger)
	authService := services.NewAuthService(userRepo, revokeRepo, guard, authzService, tokenManager, logger, auditLogger)
	userService := services.NewUserService(userRepo, authzService, guard, logger, auditLogger)

	ipConfig := &pkghttp.IPConfig{}
	authHandler := handlers.NewAuthHandler(authService, ipConfig)
	userHandler := handlers.NewUserHandler(userService)
	permissionHandler := handlers.NewPermissionHandler(authzService, userService)

	r := chi.NewRouter()
	r.Use(chiMiddleware.RequestID)
	r.Use(chiMiddleware.RealIP)
	r.Use(middlewareCustom.SecurityHeaders(middlewareCustom.SecurityHeadersConfig{Env: "test"}))
	r.Use(chiMiddleware.Recoverer)
	r.Use(chiMiddleware.Timeout(60 * time.Second))

	routes.RegisterRoutes(r, authHandler, userHandler, permissionHandler, tokenManager, revokeRepo, userRepo, authzService)

	server := httptest.NewServer(r)

	return &TestServer{
		Server:     server,
		DB:         db,
		UserRepo:   userRepo,
		RevokeRepo: revokeRepo,
		Authz:      authzService,
		Guard:      guard,
		logger:     logger,
	}, nil
}

// Close shuts down the test server
func (ts *TestServer) Close() {
	if ts.Server != nil {
		ts.Server.Close()
	}
}

// Request makes an HTTP request to the test server
func (ts *TestServer) Request(method, path string, body interface{}, headers map[string]string) (*http.Response, error) {
	url := ts.Server.URL + path

	var bodyReader io.Reader
	if body != nil {
		bodyBytes, err := json.Marshal(body)
		if err != nil {
			return nil, err
		}
		bodyReader = bytes.NewReader(bodyBytes)
	}

	req, err := http.NewRequest(method, url, bodyReader)
	if err != nil {
		return nil, err
	}

	req.Header.Set("Content-Type", "application/json")
	for key, value := range headers {
		req.Header.Set(key, value)
	}

	return http.DefaultClient.Do(req)
}

// RequestWithAuth makes an authenticated HTTP request with an access token
func (ts *TestServer) RequestWithAuth(method, path, accessToken string, body interface{}) (*http.Response, error) {
	headers := map[string]string{
		"Authorization": "Bearer " + accessToken,
	}
	return ts.Request(method, path, body, headers)
}

// Login performs the login call from the given client IP and returns the
// token pair. Distinct IPs keep tests out of each other's transport rate
// limit windows.
func (ts *TestServer) Login(login, password, clientIP string) (accessToken, refreshToken string, resp *http.Response, err error) {
	resp, err = ts.Request(http.MethodPost, "/v1/auth/login", map[string]string{
		"login":    login,
		"password": password,
	}, map[string]string{"X-Forwarded-For": clientIP})
	if err != nil {
		return "", "", nil, err
	}
	if resp.StatusCode != http.StatusOK {
		return "", "", resp, nil
	}
	accessToken, refreshToken, err = ExtractTokensFromResponse(resp)
	return accessToken, refreshToken, resp, err
}

// ParseJSONResponse parses a JSON response body into the target struct
func ParseJSONResponse(resp *http.Response, target interface{}) error {
	defer resp.Body.Close()
	return json.NewDecoder(resp.Body).Decode(target)
}

// ExtractTokensFromResponse extracts the access/refresh pair from an auth response
func ExtractTokensFromResponse(resp *http.Response) (accessToken, refreshToken string, err error) {
	defer resp.Body.Close()

	var authResp map[string]interface{}
	if err := json.NewDecoder(resp.Body).Decode(&authResp); err != nil {
		return "", "", fmt.Errorf("failed to parse response: %w", err)
	}

	if access, ok := authResp["access_token"].(string); ok {
		accessToken = access
	}
	if refresh, ok := authResp["refresh_token"].(string); ok {
		refreshToken = refresh
	}

	return accessToken, refreshToken, nil
}

// GetErrorResponse extracts the error code and message from an error response
func GetErrorResponse(resp *http.Response) (code, message string, err error) {
	defer resp.Body.Close()
	var errResp map[string]interface{}
	if err := json.NewDecoder(resp.Body).Decode(&errResp); err != nil {
		return "", "", err
	}
	if c, ok := errResp["error"].(string); ok {
		code = c
	}
	if msg, ok := errResp["message"].(string); ok {
		message = msg
	}
	return code, message, nil
}
