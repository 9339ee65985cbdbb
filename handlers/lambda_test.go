package handlers

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"net/http"
	"testing"

	"github.com/aws/aws-lambda-go/events"
	"github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newLambdaHandler(t *testing.T, status int, contentType, body string) *LambdaHandler {
	logger, _ := test.NewNullLogger()
	return NewLambdaHandler(stubForwarder(t, status, contentType, body, nil), logger)
}

func invoke(t *testing.T, h *LambdaHandler, event interface{}) interface{} {
	t.Helper()
	payload, err := json.Marshal(event)
	require.NoError(t, err)
	resp, err := h.Invoke(context.Background(), payload)
	require.NoError(t, err)
	return resp
}

func TestLambda_FunctionURL(t *testing.T) {
	h := newLambdaHandler(t, http.StatusOK, "application/json", `{"id":1}`)

	event := events.LambdaFunctionURLRequest{
		RawPath:        "/",
		RawQueryString: "url=https%3A%2F%2Fapi-v2.soundcloud.com%2Fresolve%3Fx%3D1",
		RequestContext: events.LambdaFunctionURLRequestContext{
			HTTP: events.LambdaFunctionURLRequestContextHTTPDescription{Method: http.MethodGet},
		},
	}

	resp, ok := invoke(t, h, event).(events.LambdaFunctionURLResponse)
	require.True(t, ok)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, `{"id":1}`, resp.Body)
	assert.False(t, resp.IsBase64Encoded)
	assert.Equal(t, "*", resp.Headers["Access-Control-Allow-Origin"])
	assert.Equal(t, "application/json", resp.Headers["Content-Type"])
}

func TestLambda_FunctionURLPreflight(t *testing.T) {
	h := newLambdaHandler(t, http.StatusOK, "", "")

	event := events.LambdaFunctionURLRequest{
		RequestContext: events.LambdaFunctionURLRequestContext{
			HTTP: events.LambdaFunctionURLRequestContextHTTPDescription{Method: http.MethodOptions},
		},
	}

	resp, ok := invoke(t, h, event).(events.LambdaFunctionURLResponse)
	require.True(t, ok)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Empty(t, resp.Body)
	assert.Equal(t, "GET, POST, OPTIONS", resp.Headers["Access-Control-Allow-Methods"])
}

func TestLambda_APIGateway(t *testing.T) {
	h := newLambdaHandler(t, http.StatusOK, "", "ok")

	tests := []struct {
		name       string
		event      events.APIGatewayProxyRequest
		wantStatus int
		wantBody   string
	}{
		{
			name: "single value query",
			event: events.APIGatewayProxyRequest{
				HTTPMethod:            http.MethodGet,
				Path:                  "/",
				QueryStringParameters: map[string]string{"url": "https://soundcloud.com/artist"},
			},
			wantStatus: http.StatusOK,
			wantBody:   "ok",
		},
		{
			name: "multi value query",
			event: events.APIGatewayProxyRequest{
				HTTPMethod:                      http.MethodGet,
				Path:                            "/",
				MultiValueQueryStringParameters: map[string][]string{"url": {"https://sndcdn.com/a.mp3", "https://evil.com"}},
			},
			wantStatus: http.StatusOK,
			wantBody:   "ok",
		},
		{
			name:       "missing url",
			event:      events.APIGatewayProxyRequest{HTTPMethod: http.MethodGet, Path: "/"},
			wantStatus: http.StatusBadRequest,
			wantBody:   "Missing url parameter",
		},
		{
			name: "invalid domain",
			event: events.APIGatewayProxyRequest{
				HTTPMethod:            http.MethodGet,
				QueryStringParameters: map[string]string{"url": "https://evil.example.com/path"},
			},
			wantStatus: http.StatusForbidden,
			wantBody:   "Invalid domain",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			resp, ok := invoke(t, h, tt.event).(events.APIGatewayProxyResponse)
			require.True(t, ok)
			assert.Equal(t, tt.wantStatus, resp.StatusCode)
			assert.Equal(t, tt.wantBody, resp.Body)
		})
	}
}

func TestLambda_BinaryBody(t *testing.T) {
	raw := string([]byte{0xff, 0xd8, 0xff, 0xe0})
	h := newLambdaHandler(t, http.StatusOK, "image/jpeg", raw)

	event := events.APIGatewayProxyRequest{
		HTTPMethod:            http.MethodGet,
		QueryStringParameters: map[string]string{"url": "https://i1.sndcdn.com/artwork.jpg"},
	}

	resp, ok := invoke(t, h, event).(events.APIGatewayProxyResponse)
	require.True(t, ok)
	assert.True(t, resp.IsBase64Encoded)
	decoded, err := base64.StdEncoding.DecodeString(resp.Body)
	require.NoError(t, err)
	assert.Equal(t, raw, string(decoded))
	assert.Equal(t, "image/jpeg", resp.Headers["Content-Type"])
}

func TestLambda_UnsupportedEvent(t *testing.T) {
	h := newLambdaHandler(t, http.StatusOK, "", "")

	resp, ok := invoke(t, h, map[string]string{"source": "aws.events"}).(events.LambdaFunctionURLResponse)
	require.True(t, ok)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	assert.Equal(t, "Unsupported request type", resp.Body)
}

func TestIsLambda(t *testing.T) {
	t.Setenv("AWS_LAMBDA_FUNCTION_NAME", "")
	assert.False(t, IsLambda())

	t.Setenv("AWS_LAMBDA_FUNCTION_NAME", "sc-proxy")
	assert.True(t, IsLambda())
}

func TestFlattenHeader(t *testing.T) {
	h := http.Header{"Vary": {"Origin", "Accept"}, "Content-Type": {"text/plain"}}
	assert.Equal(t, map[string]string{"Vary": "Origin,Accept", "Content-Type": "text/plain"}, flattenHeader(h))
}
