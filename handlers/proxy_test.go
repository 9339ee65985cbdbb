package handlers

import (
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/andesco/sc-proxy/pkg/proxy"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/sirupsen/logrus"
	"github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type roundTripFunc func(*http.Request) (*http.Response, error)

func (f roundTripFunc) RoundTrip(r *http.Request) (*http.Response, error) {
	return f(r)
}

// stubForwarder returns a forwarder whose upstream always answers with the
// given status, content type and body, or fails with err.
func stubForwarder(t *testing.T, status int, contentType, body string, err error) *proxy.Forwarder {
	t.Helper()
	client := &http.Client{Transport: roundTripFunc(func(r *http.Request) (*http.Response, error) {
		if err != nil {
			return nil, err
		}
		h := make(http.Header)
		if contentType != "" {
			h.Set("Content-Type", contentType)
		}
		return &http.Response{
			StatusCode: status,
			Header:     h,
			Body:       io.NopCloser(strings.NewReader(body)),
			Request:    r,
		}, nil
	})}
	logger, _ := test.NewNullLogger()
	f, ferr := proxy.New(proxy.DefaultConfig(), proxy.WithClient(client), proxy.WithLogger(logger))
	require.NoError(t, ferr)
	return f
}

func newApp(f *proxy.Forwarder) *fiber.App {
	logger, _ := test.NewNullLogger()
	app := fiber.New(fiber.Config{DisableStartupMessage: true})
	app.Use(recover.New())
	app.Use(RequestLogger(logger))
	app.All("/*", Proxy(f))
	return app
}

func doRequest(t *testing.T, app *fiber.App, method, target string) (*http.Response, string) {
	t.Helper()
	resp, err := app.Test(httptest.NewRequest(method, target, nil), -1)
	require.NoError(t, err)
	defer resp.Body.Close()
	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	return resp, string(body)
}

func TestProxy_Forwards(t *testing.T) {
	app := newApp(stubForwarder(t, http.StatusOK, "application/json", `{"id":1}`, nil))

	resp, body := doRequest(t, app, http.MethodGet, "/?url=https://api-v2.soundcloud.com/resolve?x=1")

	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, `{"id":1}`, body)
	assert.Equal(t, "*", resp.Header.Get("Access-Control-Allow-Origin"))
	assert.Equal(t, "application/json", resp.Header.Get("Content-Type"))
}

func TestProxy_ForwardsTargetWithSemicolon(t *testing.T) {
	app := newApp(stubForwarder(t, http.StatusOK, "text/plain", "ok", nil))

	resp, body := doRequest(t, app, http.MethodGet, "/?url=https://soundcloud.com/a;b")

	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "ok", body)
}

func TestProxy_InvalidDomain(t *testing.T) {
	app := newApp(stubForwarder(t, http.StatusOK, "", "", nil))

	resp, body := doRequest(t, app, http.MethodGet, "/?url=https://evil.example.com/path")

	assert.Equal(t, http.StatusForbidden, resp.StatusCode)
	assert.Equal(t, "Invalid domain", body)
	assert.Empty(t, resp.Header.Get("Access-Control-Allow-Origin"))
}

func TestProxy_MissingURL(t *testing.T) {
	app := newApp(stubForwarder(t, http.StatusOK, "", "", nil))

	for _, target := range []string{"/", "/some/path", "/?foo=bar"} {
		resp, body := doRequest(t, app, http.MethodGet, target)
		assert.Equal(t, http.StatusBadRequest, resp.StatusCode, target)
		assert.Equal(t, "Missing url parameter", body, target)
	}
}

func TestProxy_UpstreamFailure(t *testing.T) {
	app := newApp(stubForwarder(t, 0, "", "", errors.New("timeout")))

	resp, body := doRequest(t, app, http.MethodGet, "/?url=https://sndcdn.com/track.mp3")

	assert.Equal(t, http.StatusInternalServerError, resp.StatusCode)
	assert.Equal(t, "Proxy error: timeout", body)
	assert.Equal(t, "*", resp.Header.Get("Access-Control-Allow-Origin"))
}

func TestProxy_Preflight(t *testing.T) {
	app := newApp(stubForwarder(t, http.StatusOK, "", "", nil))

	resp, body := doRequest(t, app, http.MethodOptions, "/?url=https://evil.example.com")

	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Empty(t, body)
	assert.Equal(t, "*", resp.Header.Get("Access-Control-Allow-Origin"))
	assert.Equal(t, "GET, POST, OPTIONS", resp.Header.Get("Access-Control-Allow-Methods"))
	assert.Equal(t, "Content-Type", resp.Header.Get("Access-Control-Allow-Headers"))
}

func TestProxy_PostIsForwarded(t *testing.T) {
	app := newApp(stubForwarder(t, http.StatusCreated, "text/plain", "created", nil))

	resp, body := doRequest(t, app, http.MethodPost, "/?url=https%3A%2F%2Fsoundcloud.com%2Fupload")

	assert.Equal(t, http.StatusCreated, resp.StatusCode)
	assert.Equal(t, "created", body)
	assert.Equal(t, "text/plain", resp.Header.Get("Content-Type"))
}

func TestRequestLogger_KeepsCallerRequestID(t *testing.T) {
	logger, hook := test.NewNullLogger()
	app := fiber.New(fiber.Config{DisableStartupMessage: true})
	app.Use(RequestLogger(logger))
	app.Get("/", func(c *fiber.Ctx) error {
		return c.SendString(c.Locals(RequestIDKey).(string))
	})

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("X-Request-ID", "abc-123")
	resp, err := app.Test(req, -1)
	require.NoError(t, err)
	body, _ := io.ReadAll(resp.Body)

	assert.Equal(t, "abc-123", string(body))
	require.NotNil(t, hook.LastEntry())
	assert.Equal(t, "abc-123", hook.LastEntry().Data["request_id"])
	assert.Equal(t, http.StatusOK, hook.LastEntry().Data["status"])
}

func TestRequestLogger_GeneratesRequestID(t *testing.T) {
	logger, hook := test.NewNullLogger()
	app := newAppWithLogger(logger)

	_, err := app.Test(httptest.NewRequest(http.MethodGet, "/", nil), -1)
	require.NoError(t, err)

	require.NotNil(t, hook.LastEntry())
	id, ok := hook.LastEntry().Data["request_id"].(string)
	require.True(t, ok)
	assert.Len(t, id, 36)
}

func newAppWithLogger(logger *logrus.Logger) *fiber.App {
	app := fiber.New(fiber.Config{DisableStartupMessage: true})
	app.Use(RequestLogger(logger))
	app.Get("/", func(c *fiber.Ctx) error { return c.SendStatus(fiber.StatusNoContent) })
	return app
}
