package test

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/cookiejar"
	"net/http/httptest"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"pinbin/cfg"
	"pinbin/pkg/domain"
	"pinbin/svc/api"
	"pinbin/svc/auth"
	"pinbin/svc/cache"
	"pinbin/svc/db"
	"pinbin/svc/svc"
	"pinbin/svc/util"

	"github.com/joho/godotenv"
)

var envLoadOnce sync.Once

func loadTestEnv() {
	envLoadOnce.Do(func() {
		paths := []string{
			".env.test",
			"../.env.test",
		}
		for _, p := range paths {
			if absPath, err := filepath.Abs(p); err == nil {
				if _, err := os.Stat(absPath); err == nil {
					if godotenv.Load(absPath) == nil {
						break
					}
				}
			}
		}
		util.InitLog("error", false)
	})
}

func createTestConfig() *cfg.Cfg {
	loadTestEnv()
	return &cfg.Cfg{
		Port:               "0",
		Environment:        "test",
		LogLevel:           "error",
		DatabasePath:       ":memory:",
		LRUCacheSize:       1000,
		Argon2Time:         1,
		Argon2Memory:       8 * 1024,
		Argon2Parallelism:  1,
		RecentPastesLimit:  10,
		MaxPasteSize:       1024 * 1024,
		SessionCookieName:  "pinbin_session",
		SessionMaxAge:      time.Hour,
		AllowedOrigins:     []string{"*"},
		ContextTimeout:     30 * time.Second,
		DBMaxOpenConns:     50,
		DBMaxIdleConns:     10,
		DBQueryTimeout:     10 * time.Second,
		WALCheckpointEvery: 5 * time.Minute,
		WALEscalatePages:   1000,
	}
}

type testEnv struct {
	ts    *httptest.Server
	store *db.SQLite
}

func setupTestServer(t *testing.T) (*testEnv, func()) {
	t.Helper()
	c := createTestConfig()

	hasher, err := auth.NewHasher(c.Argon2Time, c.Argon2Memory, c.Argon2Parallelism)
	if err != nil {
		t.Fatal(err)
	}
	dsn := fmt.Sprintf("file:apitest%d?mode=memory&cache=shared", time.Now().UnixNano())
	sqlDB, err := db.NewSQLiteWithConfig(dsn, hasher, c.DBMaxOpenConns, c.DBMaxIdleConns, c.DBQueryTimeout)
	if err != nil {
		t.Fatal(err)
	}
	lru, err := cache.NewLRU(c.LRUCacheSize)
	if err != nil {
		t.Fatal(err)
	}

	pasteSvc := svc.NewPaste(sqlDB, lru, nil, c.RecentPastesLimit)
	userSvc := svc.NewUser(sqlDB, hasher)
	sessions := api.NewSessions([]byte("0123456789abcdef0123456789abcdef"), c.SessionCookieName, c.SessionMaxAge, false)
	server := api.NewServer(c, pasteSvc, userSvc, sessions, sqlDB, nil)
	ts := httptest.NewServer(server)

	cleanup := func() {
		ts.Close()
		sqlDB.Close()
	}
	return &testEnv{ts: ts, store: sqlDB}, cleanup
}

// newClient returns an http client with its own cookie jar, i.e. its own
// login session.
func newClient(t *testing.T) *http.Client {
	t.Helper()
	jar, err := cookiejar.New(nil)
	if err != nil {
		t.Fatal(err)
	}
	return &http.Client{Jar: jar, Timeout: 10 * time.Second}
}

func doJSON(t *testing.T, client *http.Client, method, url string, body interface{}) (*http.Response, []byte) {
	t.Helper()
	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			t.Fatal(err)
		}
		reader = bytes.NewReader(data)
	}
	req, err := http.NewRequest(method, url, reader)
	if err != nil {
		t.Fatal(err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	resp, err := client.Do(req)
	if err != nil {
		t.Fatal(err)
	}
	defer resp.Body.Close()
	data, err := io.ReadAll(resp.Body)
	if err != nil {
		t.Fatal(err)
	}
	return resp, data
}

// register creates an account through the API and leaves the client signed
// in via its session cookie.
func register(t *testing.T, ts *httptest.Server, client *http.Client, username, password string) domain.User {
	t.Helper()
	resp, body := doJSON(t, client, http.MethodPost, ts.URL+"/api/register", map[string]string{
		"username": username,
		"password": password,
	})
	if resp.StatusCode != http.StatusCreated {
		t.Fatalf("register %q: status %d, body %s", username, resp.StatusCode, body)
	}
	var u domain.User
	if err := json.Unmarshal(body, &u); err != nil {
		t.Fatal(err)
	}
	return u
}

// registerAdmin registers through the API and then promotes the account
// directly in the store, the way a seeded admin would exist.
func registerAdmin(t *testing.T, env *testEnv, client *http.Client, username, password string) domain.User {
	t.Helper()
	u := register(t, env.ts, client, username, password)
	isAdmin := true
	if err := env.store.UpdateUser(context.Background(), u.ID, domain.UserUpdate{IsAdmin: &isAdmin}); err != nil {
		t.Fatal(err)
	}
	u.IsAdmin = true
	return u
}

func createPaste(t *testing.T, ts *httptest.Server, client *http.Client, params map[string]interface{}) domain.Paste {
	t.Helper()
	resp, body := doJSON(t, client, http.MethodPost, ts.URL+"/api/pastes", params)
	if resp.StatusCode != http.StatusCreated {
		t.Fatalf("create paste: status %d, body %s", resp.StatusCode, body)
	}
	var p domain.Paste
	if err := json.Unmarshal(body, &p); err != nil {
		t.Fatal(err)
	}
	return p
}
