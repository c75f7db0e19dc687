package api_test

import (
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	. "scope/pkg/api"
	"scope/pkg/artifact"
	"scope/pkg/build"
	"scope/pkg/models"
	"scope/pkg/notify"
	"scope/pkg/settings"
	"scope/pkg/terminal"
	"scope/pkg/theme"
	"scope/pkg/workspace"
)

func init() {
	gin.SetMode(gin.TestMode)
}

const tokenArtifact = `{"abi":[{"type":"function","name":"transfer"}],"bytecode":{"object":"0x6080"}}`

type fixture struct {
	root    string
	handler http.Handler
	feed    *notify.Feed
}

func newFixture(t *testing.T, token string) *fixture {
	t.Helper()
	root := t.TempDir()
	path := filepath.Join(root, "out", "Token.sol", "Token.json")
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
	require.NoError(t, os.WriteFile(path, []byte(tokenArtifact), 0o644))

	log := zap.NewNop()
	shells := terminal.NewShellManager(terminal.ShellConfig{Cwd: root, Output: io.Discard}, log)
	feed := notify.NewFeed(log)
	runner := build.NewRunner(shells, notify.NewConsolePresenter(io.Discard, log), build.DefaultConfig(), log)

	s := NewServer(Config{
		Port:          "0",
		Workspace:     workspace.New(root),
		Locator:       artifact.NewLocator(log),
		Builds:        runner,
		Notifications: feed,
		Theme:         theme.NewReader(settings.NewStatic(map[string]any{"workbench.panel.background": "#1e1e1e"}), log),
		BuildCommand:  "true",
		APIToken:      token,
		Logger:        log,
	})
	return &fixture{root: root, handler: s.Handler(), feed: feed}
}

func (f *fixture) do(method, target string, body io.Reader) *httptest.ResponseRecorder {
	w := httptest.NewRecorder()
	req := httptest.NewRequest(method, target, body)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	f.handler.ServeHTTP(w, req)
	return w
}

func decode(t *testing.T, w *httptest.ResponseRecorder, v any) {
	t.Helper()
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), v), w.Body.String())
}

func TestServer_Health(t *testing.T) {
	f := newFixture(t, "")

	w := f.do(http.MethodGet, "/health", nil)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"healthy"`)
}

func TestServer_HealthDegradedWithoutWorkspace(t *testing.T) {
	s := NewServer(Config{Port: "0", Logger: zap.NewNop()})

	w := httptest.NewRecorder()
	s.Handler().ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/health", nil))
	assert.Equal(t, http.StatusServiceUnavailable, w.Code)
}

func TestServer_ListArtifacts(t *testing.T) {
	f := newFixture(t, "")

	w := f.do(http.MethodGet, "/api/v1/artifacts?open=Token.sol&open=README.md", nil)
	require.Equal(t, http.StatusOK, w.Code)

	var resp ArtifactListResponse
	decode(t, w, &resp)
	assert.Equal(t, []string{filepath.Join(f.root, "out", "Token.sol", "Token.json")}, resp.Locations)
	require.Len(t, resp.Artifacts, 1)
	assert.Equal(t, "Token.sol", resp.Artifacts[0].Source)
}

func TestServer_ListArtifactsNoneOpen(t *testing.T) {
	f := newFixture(t, "")

	w := f.do(http.MethodGet, "/api/v1/artifacts", nil)
	require.Equal(t, http.StatusOK, w.Code)

	var resp ArtifactListResponse
	decode(t, w, &resp)
	assert.Empty(t, resp.Locations)
}

func TestServer_ArtifactContent(t *testing.T) {
	f := newFixture(t, "")
	location := filepath.Join(f.root, "out", "Token.sol", "Token.json")

	w := f.do(http.MethodGet, "/api/v1/artifacts/content?location="+url.QueryEscape(location), nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, tokenArtifact, w.Body.String())
}

func TestServer_ArtifactContentErrors(t *testing.T) {
	f := newFixture(t, "")

	tests := []struct {
		name     string
		location string
		code     int
	}{
		{"missing parameter", "", http.StatusBadRequest},
		{"outside workspace", "/etc/passwd", http.StatusForbidden},
		{"escapes workspace", filepath.Join(f.root, "..", "other.json"), http.StatusForbidden},
		{"not found", filepath.Join(f.root, "out", "Gone.sol", "Gone.json"), http.StatusNotFound},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := f.do(http.MethodGet, "/api/v1/artifacts/content?location="+url.QueryEscape(tt.location), nil)
			assert.Equal(t, tt.code, w.Code, w.Body.String())
		})
	}
}

func TestServer_ArtifactContentRejectsSymlinkEscape(t *testing.T) {
	f := newFixture(t, "")
	outside := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(outside, "secret.json"), []byte(`{"key":"x"}`), 0o644))
	require.NoError(t, os.Symlink(outside, filepath.Join(f.root, "leak")))

	location := filepath.Join(f.root, "leak", "secret.json")
	w := f.do(http.MethodGet, "/api/v1/artifacts/content?location="+url.QueryEscape(location), nil)
	assert.Equal(t, http.StatusForbidden, w.Code)
}

func TestServer_ArtifactSummary(t *testing.T) {
	f := newFixture(t, "")
	location := filepath.Join(f.root, "out", "Token.sol", "Token.json")

	w := f.do(http.MethodGet, "/api/v1/artifacts/summary?location="+url.QueryEscape(location), nil)
	require.Equal(t, http.StatusOK, w.Code)

	var summary models.ArtifactSummary
	decode(t, w, &summary)
	assert.Equal(t, "Token", summary.Contract)
	assert.Equal(t, []string{"transfer"}, summary.Functions)
	assert.Equal(t, 2, summary.BytecodeSize)
}

func TestServer_BuildSuccess(t *testing.T) {
	f := newFixture(t, "")

	w := f.do(http.MethodPost, "/api/v1/builds", nil)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	var resp models.BuildResult
	decode(t, w, &resp)
	assert.Equal(t, "true", resp.Command)
	assert.Equal(t, models.BuildSuccess, resp.Outcome)
	require.NotNil(t, resp.Status)
	assert.Equal(t, 0, resp.Status.Code)
}

func TestServer_BuildFailureStillSucceeds(t *testing.T) {
	f := newFixture(t, "")

	w := f.do(http.MethodPost, "/api/v1/builds", strings.NewReader(`{"command":"exit 4"}`))
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	var resp models.BuildResult
	decode(t, w, &resp)
	assert.Equal(t, models.BuildFailed, resp.Outcome)
	require.NotNil(t, resp.Status)
	assert.Equal(t, 4, resp.Status.Code)
}

func TestServer_BuildRejectsDangerousCommand(t *testing.T) {
	f := newFixture(t, "")

	w := f.do(http.MethodPost, "/api/v1/builds", strings.NewReader(`{"command":"rm -rf /"}`))
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestServer_Theme(t *testing.T) {
	f := newFixture(t, "")

	w := f.do(http.MethodGet, "/api/v1/theme", nil)
	require.Equal(t, http.StatusOK, w.Code)

	var resp ThemeResponse
	decode(t, w, &resp)
	assert.Equal(t, "#1e1e1e", resp.PanelBackground)
	assert.Equal(t, theme.ActivityBarBackground, resp.ActivityBar)
}

func TestServer_NotificationsEmpty(t *testing.T) {
	f := newFixture(t, "")

	w := f.do(http.MethodGet, "/api/v1/notifications", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"notifications":[],"count":0}`, w.Body.String())

	w = f.do(http.MethodPost, "/api/v1/notifications/nope/dismiss", nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestServer_DismissNotification(t *testing.T) {
	f := newFixture(t, "")

	shown := make(chan error, 1)
	go func() {
		shown <- f.feed.Show(t.Context(), notify.Notification{ID: "n1", Message: build.AdvisoryMessage})
	}()
	require.Eventually(t, func() bool { return len(f.feed.Active()) == 1 }, 2*time.Second, time.Millisecond)

	w := f.do(http.MethodPost, "/api/v1/notifications/n1/dismiss", nil)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.NoError(t, <-shown)
}

func TestServer_TokenAuth(t *testing.T) {
	f := newFixture(t, "s3cret")

	assert.Equal(t, http.StatusUnauthorized, f.do(http.MethodGet, "/api/v1/theme", nil).Code)
	assert.Equal(t, http.StatusOK, f.do(http.MethodGet, "/health", nil).Code)
}
