//go:build e2e

package e2e

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/http/httptest"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/LogiStackDev/access-onboard-flow/internal/api/handlers"
	"github.com/LogiStackDev/access-onboard-flow/internal/identity"
	"github.com/LogiStackDev/access-onboard-flow/internal/repository"
	"github.com/LogiStackDev/access-onboard-flow/internal/server"
	"github.com/LogiStackDev/access-onboard-flow/internal/service"
	"github.com/LogiStackDev/access-onboard-flow/internal/storage"
	"github.com/LogiStackDev/access-onboard-flow/internal/telemetry"
	"github.com/LogiStackDev/access-onboard-flow/internal/testutil"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"
)

const (
	e2eAnonKey  = "e2e-anon-key"
	e2eMaxCodes = 5
)

// cpvDataset is a small slice of the CPV 2008 nomenclature.
const cpvDataset = `CODE,EN,FR,DE,NL
44114000-2,Concrete,Béton,Beton,Beton
44114100-3,Ready-mixed concrete,Béton prêt à l'emploi,Transportbeton,Stortklaar beton
45233120-6,Road construction works,Travaux de construction de routes,Straßenbauarbeiten,Wegenbouwwerkzaamheden
45233140-2,Roadworks,Travaux routiers,Straßenarbeiten,Wegenwerken
30197600-2,Processed paper and paperboard,Papier et carton transformés,Verarbeitetes Papier und Pappe,Verwerkt papier en karton
`

// E2ETestEnv holds all resources needed for E2E tests
type E2ETestEnv struct {
	T            *testing.T
	Ctx          context.Context
	PostgresC    *testutil.PostgresContainer
	RustFSC      *testutil.RustFSContainer
	Pool         *pgxpool.Pool
	S3Client     *storage.S3Client
	Identity     *fakeIdentity
	ServerURL    string
	ServerCloser func()
	BinaryDir    string
	HTTPClient   *http.Client
}

// SetupE2EEnv starts Postgres, RustFS, a fake identity provider and the API
// server wired the same way serve does.
func SetupE2EEnv(t *testing.T) *E2ETestEnv {
	ctx := context.Background()

	pgC := testutil.NewPostgresContainer(ctx, t)
	s3C := testutil.NewRustFSContainer(ctx, t)
	pool := testutil.NewTestPool(ctx, t, pgC)

	s3Client, err := storage.NewS3Client(ctx, storage.S3ClientConfig{
		Endpoint:        s3C.Endpoint(),
		Region:          "us-east-1",
		AccessKeyID:     "rustfsadmin",
		SecretAccessKey: "rustfsadmin",
		Bucket:          "e2e-datasets",
		UsePathStyle:    true,
	})
	if err != nil {
		t.Fatalf("failed to create S3 client: %v", err)
	}
	if err := s3Client.EnsureBucket(ctx); err != nil {
		t.Fatalf("failed to create bucket: %v", err)
	}

	idp := newFakeIdentity()

	port, err := getFreePort()
	if err != nil {
		t.Fatalf("failed to get free port: %v", err)
	}
	serverURL, serverCloser := startServer(t, pool, idp.URL(), port)

	return &E2ETestEnv{
		T:            t,
		Ctx:          ctx,
		PostgresC:    pgC,
		RustFSC:      s3C,
		Pool:         pool,
		S3Client:     s3Client,
		Identity:     idp,
		ServerURL:    serverURL,
		ServerCloser: serverCloser,
		HTTPClient:   &http.Client{Timeout: 30 * time.Second},
	}
}

// Cleanup releases all resources
func (e *E2ETestEnv) Cleanup() {
	if e.ServerCloser != nil {
		e.ServerCloser()
	}
	if e.Identity != nil {
		e.Identity.Close()
	}
	if e.Pool != nil {
		e.Pool.Close()
	}
	if e.RustFSC != nil {
		e.RustFSC.Terminate(e.Ctx)
	}
	if e.PostgresC != nil {
		e.PostgresC.Terminate(e.Ctx)
	}
	if e.BinaryDir != "" {
		os.RemoveAll(e.BinaryDir)
	}
}

// SeedCPVCodes uploads the test dataset to object storage and imports it.
func (e *E2ETestEnv) SeedCPVCodes() {
	const key = "cpv/e2e.csv"
	if err := e.S3Client.PutObject(e.Ctx, key, strings.NewReader(cpvDataset), "text/csv"); err != nil {
		e.T.Fatalf("failed to upload dataset: %v", err)
	}
	importer := service.NewCPVImporter(repository.NewCPVRepository(e.Pool), service.ImporterOptions{})
	if _, err := importer.ImportFromObject(e.Ctx, e.S3Client, key); err != nil {
		e.T.Fatalf("failed to import dataset: %v", err)
	}
}

// BuildBinaries compiles tendersync and tendersyncd into a temp dir.
func (e *E2ETestEnv) BuildBinaries() {
	tmpDir, err := os.MkdirTemp("", "tendersync-e2e-*")
	if err != nil {
		e.T.Fatalf("failed to create temp dir: %v", err)
	}
	e.BinaryDir = tmpDir

	for _, name := range []string{"tendersync", "tendersyncd"} {
		cmd := exec.Command("go", "build", "-o", filepath.Join(tmpDir, name), "./cmd/"+name)
		cmd.Dir = "../.."
		if out, err := cmd.CombinedOutput(); err != nil {
			e.T.Fatalf("failed to build %s: %v\n%s", name, err, out)
		}
	}
}

// RunCLI runs the tendersync client with an isolated config directory.
func (e *E2ETestEnv) RunCLI(token string, args ...string) (string, error) {
	cmd := exec.Command(filepath.Join(e.BinaryDir, "tendersync"), args...)
	home := e.T.TempDir()
	cmd.Dir = home
	cmd.Env = append(os.Environ(),
		"HOME="+home,
		"XDG_CONFIG_HOME="+filepath.Join(home, ".config"),
		"TENDERSYNC_ACCESS_TOKEN="+token,
		"TENDERSYNC_API_URL="+e.ServerURL,
	)
	out, err := cmd.CombinedOutput()
	return string(out), err
}

// RunDaemon runs tendersyncd against the test database.
func (e *E2ETestEnv) RunDaemon(args ...string) (string, error) {
	cmd := exec.Command(filepath.Join(e.BinaryDir, "tendersyncd"), args...)
	cmd.Dir = e.T.TempDir()
	cmd.Env = append(os.Environ(),
		"TENDERSYNC_DATABASE_URL="+e.PostgresC.ConnectionString(),
		"TENDERSYNC_LOG_FORMAT=console",
	)
	out, err := cmd.CombinedOutput()
	return string(out), err
}

type APIResponse struct {
	Status int             `json:"-"`
	Data   json.RawMessage `json:"data"`
	Error  string          `json:"error,omitempty"`
	Code   string          `json:"code,omitempty"`
}

func (e *E2ETestEnv) Get(path, token string) (*APIResponse, error) {
	return e.doRequest(http.MethodGet, path, nil, token)
}

func (e *E2ETestEnv) Post(path string, body interface{}, token string) (*APIResponse, error) {
	return e.doRequest(http.MethodPost, path, body, token)
}

func (e *E2ETestEnv) Put(path string, body interface{}, token string) (*APIResponse, error) {
	return e.doRequest(http.MethodPut, path, body, token)
}

func (e *E2ETestEnv) Delete(path, token string) (*APIResponse, error) {
	return e.doRequest(http.MethodDelete, path, nil, token)
}

// doRequest returns the decoded envelope for every status; transport and
// decoding failures are the only errors.
func (e *E2ETestEnv) doRequest(method, path string, body interface{}, token string) (*APIResponse, error) {
	var reqBody io.Reader
	if body != nil {
		jsonData, err := json.Marshal(body)
		if err != nil {
			return nil, fmt.Errorf("failed to marshal body: %w", err)
		}
		reqBody = bytes.NewReader(jsonData)
	}

	req, err := http.NewRequest(method, e.ServerURL+path, reqBody)
	if err != nil {
		return nil, err
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := e.HTTPClient.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, err
	}

	apiResp := &APIResponse{Status: resp.StatusCode}
	if len(bytes.TrimSpace(respBody)) == 0 {
		return apiResp, nil
	}
	if err := json.Unmarshal(respBody, apiResp); err != nil {
		return nil, fmt.Errorf("HTTP %d: %s", resp.StatusCode, string(respBody))
	}
	apiResp.Status = resp.StatusCode
	return apiResp, nil
}

func startServer(t *testing.T, pool *pgxpool.Pool, identityURL string, port int) (string, func()) {
	logger := zap.NewNop()

	registry := prometheus.NewRegistry()
	metrics, err := telemetry.NewCPVMetrics(registry)
	if err != nil {
		t.Fatalf("failed to register metrics: %v", err)
	}

	cpvRepo := repository.NewCPVRepository(pool)
	profileRepo := repository.NewProfileRepository(pool)
	searchLogRepo := repository.NewSearchLogRepository(pool)
	txRunner := repository.NewTxRunner(pool)

	cpvSvc := service.NewCPVService(cpvRepo, profileRepo, searchLogRepo, txRunner, service.LookupConfig{
		MaxCodes:      e2eMaxCodes,
		SearchTimeout: 5 * time.Second,
		Logger:        logger,
		Metrics:       metrics,
	})
	profileSvc := service.NewProfileService(profileRepo, e2eMaxCodes)
	sessionSvc := service.NewSessionService(identity.NewClient(identityURL, e2eAnonKey), identity.NewNotifier(), time.Minute, logger, metrics)

	router := server.NewRouter(server.RouterConfig{
		SessionValidator: sessionSvc,
		CPVHandler:       handlers.NewCPVHandler(cpvSvc, e2eMaxCodes),
		ProfileHandler:   handlers.NewProfileHandler(profileSvc),
		SessionHandler:   handlers.NewSessionHandler(sessionSvc),
		Metrics:          registry,
		Logger:           logger,
	})

	srv := &http.Server{
		Addr:              fmt.Sprintf(":%d", port),
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			t.Logf("server error: %v", err)
		}
	}()

	serverURL := fmt.Sprintf("http://localhost:%d", port)
	waitForServer(t, serverURL, 10*time.Second)

	return serverURL, func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		srv.Shutdown(ctx)
		sessionSvc.Close()
	}
}

func waitForServer(t *testing.T, url string, timeout time.Duration) {
	deadline := time.Now().Add(timeout)
	for time.Now().Before(deadline) {
		resp, err := http.Get(url + "/health")
		if err == nil {
			resp.Body.Close()
			if resp.StatusCode == http.StatusOK {
				return
			}
		}
		time.Sleep(100 * time.Millisecond)
	}
	t.Fatalf("server did not start within %v", timeout)
}

func getFreePort() (int, error) {
	addr, err := net.ResolveTCPAddr("tcp", "localhost:0")
	if err != nil {
		return 0, err
	}

	l, err := net.ListenTCP("tcp", addr)
	if err != nil {
		return 0, err
	}
	defer l.Close()
	return l.Addr().(*net.TCPAddr).Port, nil
}

type fakeUser struct {
	ID        string    `json:"id"`
	Email     string    `json:"email"`
	CreatedAt time.Time `json:"created_at"`
}

// fakeIdentity answers the identity provider endpoints the server calls.
type fakeIdentity struct {
	srv *httptest.Server

	mu      sync.Mutex
	users   map[string]fakeUser
	lookups int
}

func newFakeIdentity() *fakeIdentity {
	f := &fakeIdentity{users: map[string]fakeUser{}}
	mux := http.NewServeMux()
	mux.HandleFunc("GET /auth/v1/user", f.handleUser)
	mux.HandleFunc("POST /auth/v1/logout", f.handleLogout)
	f.srv = httptest.NewServer(mux)
	return f
}

func (f *fakeIdentity) URL() string { return f.srv.URL }

func (f *fakeIdentity) Close() { f.srv.Close() }

// NewUser registers an account created createdAgo ago and returns its token.
func (f *fakeIdentity) NewUser(email string, createdAgo time.Duration) (token string, user fakeUser) {
	f.mu.Lock()
	defer f.mu.Unlock()
	token = "tok-" + uuid.NewString()
	user = fakeUser{ID: uuid.NewString(), Email: email, CreatedAt: time.Now().Add(-createdAgo).UTC()}
	f.users[token] = user
	return token, user
}

// Lookups is the number of token validations the server asked for.
func (f *fakeIdentity) Lookups() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.lookups
}

func (f *fakeIdentity) handleUser(w http.ResponseWriter, r *http.Request) {
	if r.Header.Get("apikey") != e2eAnonKey {
		http.Error(w, `{"message":"invalid api key"}`, http.StatusUnauthorized)
		return
	}
	token := strings.TrimPrefix(r.Header.Get("Authorization"), "Bearer ")

	f.mu.Lock()
	f.lookups++
	user, ok := f.users[token]
	f.mu.Unlock()

	if !ok {
		w.WriteHeader(http.StatusUnauthorized)
		_ = json.NewEncoder(w).Encode(map[string]string{"msg": "invalid JWT"})
		return
	}
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(user)
}

func (f *fakeIdentity) handleLogout(w http.ResponseWriter, r *http.Request) {
	token := strings.TrimPrefix(r.Header.Get("Authorization"), "Bearer ")
	f.mu.Lock()
	delete(f.users, token)
	f.mu.Unlock()
	w.WriteHeader(http.StatusNoContent)
}
