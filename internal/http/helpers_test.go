package handlers_test

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"strings"
	"sync"
	"testing"

	"github.com/gofiber/fiber/v2"
	"github.com/jmoiron/sqlx"
	"github.com/stretchr/testify/require"

	"storefront/internal/config"
	"storefront/internal/http/handlers"
	applog "storefront/internal/log"
	"storefront/internal/mail"
	"storefront/internal/repos"
)

const seedPassword = "Passw0rd!"

type apiResponse struct {
	Success    bool              `json:"success"`
	Data       json.RawMessage   `json:"data"`
	Message    string            `json:"message"`
	Errors     map[string]string `json:"errors"`
	Pagination *struct {
		Page  int `json:"page"`
		Limit int `json:"limit"`
		Total int `json:"total"`
	} `json:"pagination"`

	raw []byte
}

func (r apiResponse) decode(t *testing.T, dst any) {
	t.Helper()
	require.NoError(t, json.Unmarshal(r.Data, dst), string(r.raw))
}

type testApp struct {
	app    *fiber.App
	db     *sqlx.DB
	outbox *mail.Outbox
	cfg    config.Config
}

// newTestApp builds the full app over a seeded in-memory database.
func newTestApp(t *testing.T, tweak ...func(*config.Config)) *testApp {
	t.Helper()
	cfg := config.Default()
	cfg.MediaDir = t.TempDir()
	for _, f := range tweak {
		f(&cfg)
	}

	ctx := context.Background()
	db, err := repos.OpenDB(cfg.DatabaseURL, 1)
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })
	require.NoError(t, repos.EnsureRoles(ctx, db))
	_, err = repos.Seed(ctx, db)
	require.NoError(t, err)

	outbox := &mail.Outbox{}
	mailer, err := mail.New(outbox)
	require.NoError(t, err)
	deps, err := handlers.NewDeps(db, cfg, handlers.Options{Mail: mailer})
	require.NoError(t, err)

	return &testApp{app: handlers.NewApp(cfg, deps), db: db, outbox: outbox, cfg: cfg}
}

// call sends a JSON request. A string body is sent as-is.
func (a *testApp) call(t *testing.T, method, path string, body any, token string) (*http.Response, apiResponse) {
	t.Helper()
	var r io.Reader
	switch b := body.(type) {
	case nil:
	case string:
		r = strings.NewReader(b)
	default:
		raw, err := json.Marshal(b)
		require.NoError(t, err)
		r = bytes.NewReader(raw)
	}
	req := httptest.NewRequest(method, path, r)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	return a.send(t, req)
}

func (a *testApp) send(t *testing.T, req *http.Request) (*http.Response, apiResponse) {
	t.Helper()
	resp, err := a.app.Test(req, -1)
	require.NoError(t, err)
	raw, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	_ = resp.Body.Close()

	out := apiResponse{raw: raw}
	if len(raw) > 0 && strings.HasPrefix(resp.Header.Get("Content-Type"), "application/json") {
		require.NoError(t, json.Unmarshal(raw, &out), string(raw))
	}
	return resp, out
}

type tokens struct {
	AccessToken  string `json:"accessToken"`
	RefreshToken string `json:"refreshToken"`
}

func (a *testApp) loginPair(t *testing.T, email string) tokens {
	t.Helper()
	resp, out := a.call(t, http.MethodPost, "/api/auth/login",
		map[string]string{"email": email, "password": seedPassword}, "")
	require.Equal(t, http.StatusOK, resp.StatusCode, string(out.raw))
	var data struct {
		Tokens tokens `json:"tokens"`
	}
	out.decode(t, &data)
	require.NotEmpty(t, data.Tokens.AccessToken)
	return data.Tokens
}

func (a *testApp) login(t *testing.T, email string) string {
	t.Helper()
	return a.loginPair(t, email).AccessToken
}

func (a *testApp) productID(t *testing.T, slug string) string {
	t.Helper()
	var id string
	require.NoError(t, a.db.Get(&id, `SELECT id FROM products WHERE slug = ?`, slug))
	return id
}

func cookie(resp *http.Response, name string) *http.Cookie {
	for _, c := range resp.Cookies() {
		if c.Name == name {
			return c
		}
	}
	return nil
}

type syncBuffer struct {
	mu  sync.Mutex
	buf bytes.Buffer
}

func (b *syncBuffer) Write(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.Write(p)
}

type logLine map[string]any

// logs collects structured log lines. Call it before building the app
// under test; the process logger is restored on cleanup.
type logs struct{ buf *syncBuffer }

func captureLogs(t *testing.T) logs {
	t.Helper()
	buf := &syncBuffer{}
	applog.Init(buf, "debug")
	t.Cleanup(func() { applog.Init(os.Stdout, "info") })
	return logs{buf: buf}
}

func (l logs) lines(t *testing.T) []logLine {
	t.Helper()
	l.buf.mu.Lock()
	defer l.buf.mu.Unlock()
	var out []logLine
	sc := bufio.NewScanner(bytes.NewReader(l.buf.buf.Bytes()))
	for sc.Scan() {
		var line logLine
		require.NoError(t, json.Unmarshal(sc.Bytes(), &line), sc.Text())
		out = append(out, line)
	}
	return out
}

// find returns every line with the given action.
func (l logs) find(t *testing.T, action string) []logLine {
	t.Helper()
	var out []logLine
	for _, line := range l.lines(t) {
		if line["action"] == action {
			out = append(out, line)
		}
	}
	return out
}

func (l logs) raw() string {
	l.buf.mu.Lock()
	defer l.buf.mu.Unlock()
	return l.buf.buf.String()
}
