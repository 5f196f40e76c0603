package main

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/ventura3351/multiapps/pkg/browser"
	"github.com/ventura3351/multiapps/pkg/bundle"
)

const sampleBundle = `[{"name":"sid","value":"abc","domain":".example.com","path":"/","secure":true,"expirationDate":1893456000.5}]`

type fakeDriver struct {
	opened  []string
	cookies [][]bundle.Cookie
}

func (d *fakeDriver) Open(_ context.Context, target string, cookies []bundle.Cookie) (func(), error) {
	d.opened = append(d.opened, target)
	d.cookies = append(d.cookies, cookies)
	return func() {}, nil
}

func newTestApp(t *testing.T, upstream *httptest.Server, driver browser.Driver) *App {
	t.Helper()
	cfg := &Config{ServerName: "Heroku"}
	services := []bundle.Service{{
		Name:      "demo",
		BundleURL: upstream.URL + "/demo.txt",
		TargetURL: "https://app.example.com/home",
	}}
	app := &App{
		config:  cfg,
		bundles: bundle.NewFetcher(services, upstream.Client()),
	}
	if driver != nil {
		app.browser = browser.NewManager(driver, []string{"example.com"})
	}
	return app
}

func newUpstream(t *testing.T, body string) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/demo.txt" {
			http.NotFound(w, r)
			return
		}
		w.Write([]byte(body))
	}))
	t.Cleanup(srv.Close)
	return srv
}

func do(t *testing.T, h http.Handler, method, path, body string) (*httptest.ResponseRecorder, map[string]any) {
	t.Helper()
	var req *http.Request
	if body != "" {
		req = httptest.NewRequest(method, path, strings.NewReader(body))
	} else {
		req = httptest.NewRequest(method, path, nil)
	}
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	var out map[string]any
	if rec.Header().Get("Content-Type") == "application/json" {
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &out))
	}
	return rec, out
}

func TestStaticEndpoints(t *testing.T) {
	h := newTestApp(t, newUpstream(t, ""), nil).routes()

	rec, out := do(t, h, http.MethodGet, "/", "")
	require.Equal(t, http.StatusOK, rec.Code)
	require.Equal(t, map[string]any{"status": "online", "message": "API MULTIAPPS"}, out)

	_, out = do(t, h, http.MethodGet, "/api/test-connection", "")
	require.Equal(t, map[string]any{"success": true, "message": "✅ Conexão OK!"}, out)

	_, out = do(t, h, http.MethodGet, "/api/status", "")
	require.Equal(t, "online", out["status"])
	require.Equal(t, "Heroku", out["server"])
	require.Equal(t, float64(0), out["active_sessions"])
	require.Equal(t, []any{"demo"}, out["services"])

	rec, _ = do(t, h, http.MethodGet, "/nope", "")
	require.Equal(t, http.StatusNotFound, rec.Code)

	rec, _ = do(t, h, http.MethodGet, "/healthz", "")
	require.Equal(t, "ok", rec.Body.String())
}

func TestLoadCookies_UnknownService(t *testing.T) {
	h := newTestApp(t, newUpstream(t, sampleBundle), nil).routes()

	rec, out := do(t, h, http.MethodGet, "/api/load-cookies/other", "")
	require.Equal(t, http.StatusOK, rec.Code)
	require.Equal(t, map[string]any{"success": false, "error": "Serviço não encontrado"}, out)
}

func TestLoadCookies_TrimsUpstreamBody(t *testing.T) {
	h := newTestApp(t, newUpstream(t, "\n  "+sampleBundle+"\r\n"), nil).routes()

	_, out := do(t, h, http.MethodGet, "/api/load-cookies/demo", "")
	require.Equal(t, true, out["success"])
	require.Equal(t, "demo", out["service"])
	require.Equal(t, sampleBundle, out["cookies"])
}

func TestLoadCookies_UpstreamErrorReturnsMessage(t *testing.T) {
	upstream := newUpstream(t, sampleBundle)
	app := newTestApp(t, upstream, nil)
	upstream.Close()

	_, out := do(t, app.routes(), http.MethodGet, "/api/load-cookies/demo", "")
	require.Equal(t, false, out["success"])
	msg, _ := out["error"].(string)
	require.Contains(t, msg, "demo.txt")
}

func TestOpenBrowser_DisabledReturnsInstructions(t *testing.T) {
	h := newTestApp(t, newUpstream(t, sampleBundle), nil).routes()

	_, out := do(t, h, http.MethodPost, "/api/open-browser", `{"service":"demo"}`)
	require.Equal(t, map[string]any{
		"success": true,
		"message": "Navegador seria aberto aqui",
		"test":    "Funcionando!",
	}, out)
}

func TestOpenBrowser_CountsSessions(t *testing.T) {
	driver := &fakeDriver{}
	h := newTestApp(t, newUpstream(t, sampleBundle), driver).routes()

	// cookies as the string load-cookies returns
	body, err := json.Marshal(map[string]string{"service": "demo", "cookies": sampleBundle})
	require.NoError(t, err)
	_, out := do(t, h, http.MethodPost, "/api/open-browser", string(body))
	require.Equal(t, true, out["success"], out)
	require.NotEmpty(t, out["session_id"])
	require.Equal(t, float64(1), out["active_sessions"])

	// no cookies: the service bundle is fetched
	_, out = do(t, h, http.MethodPost, "/api/open-browser", `{"service":"demo"}`)
	require.Equal(t, true, out["success"], out)

	_, out = do(t, h, http.MethodGet, "/api/status", "")
	require.Equal(t, float64(2), out["active_sessions"])

	require.Equal(t, []string{"https://app.example.com/home", "https://app.example.com/home"}, driver.opened)
	require.Len(t, driver.cookies[1], 1)
	require.Equal(t, "sid", driver.cookies[1][0].Name)
}

func TestOpenBrowser_Failures(t *testing.T) {
	driver := &fakeDriver{}
	app := newTestApp(t, newUpstream(t, sampleBundle), driver)
	h := app.routes()

	cases := map[string]string{
		"unknown service": `{"service":"other"}`,
		"bad json body":   `{`,
		"bad cookies":     `{"service":"demo","cookies":"not json"}`,
		"foreign domain":  `{"service":"demo","cookies":[{"name":"a","value":"b","domain":".evil.test"}]}`,
	}
	for name, body := range cases {
		t.Run(name, func(t *testing.T) {
			_, out := do(t, h, http.MethodPost, "/api/open-browser", body)
			require.Equal(t, false, out["success"])
			require.NotEmpty(t, out["error"])
		})
	}
	require.Empty(t, driver.opened)
	require.Equal(t, 0, app.browser.Count())
}

func TestCORS(t *testing.T) {
	app := newTestApp(t, newUpstream(t, ""), nil)

	req := httptest.NewRequest(http.MethodGet, "/api/status", nil)
	req.Header.Set("Origin", "https://anywhere.test")
	rec := httptest.NewRecorder()
	app.routes().ServeHTTP(rec, req)
	require.Equal(t, "*", rec.Header().Get("Access-Control-Allow-Origin"))

	app.config.CORSOrigins = []string{"https://client.example.com"}
	h := app.routes()

	req = httptest.NewRequest(http.MethodGet, "/api/status", nil)
	req.Header.Set("Origin", "https://client.example.com")
	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	require.Equal(t, "https://client.example.com", rec.Header().Get("Access-Control-Allow-Origin"))
	require.Equal(t, "true", rec.Header().Get("Access-Control-Allow-Credentials"))

	req = httptest.NewRequest(http.MethodGet, "/api/status", nil)
	req.Header.Set("Origin", "https://other.test")
	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	require.Empty(t, rec.Header().Get("Access-Control-Allow-Origin"))
}
