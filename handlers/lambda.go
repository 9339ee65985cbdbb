package handlers

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"net/http"
	"net/url"
	"os"
	"strings"
	"unicode/utf8"

	"github.com/andesco/sc-proxy/pkg/proxy"

	"github.com/aws/aws-lambda-go/events"
	"github.com/sirupsen/logrus"
)

// IsLambda reports whether the process runs inside AWS Lambda.
func IsLambda() bool {
	return os.Getenv("AWS_LAMBDA_FUNCTION_NAME") != ""
}

// LambdaHandler adapts API Gateway and Function URL events to the forwarder.
type LambdaHandler struct {
	fwd *proxy.Forwarder
	log logrus.FieldLogger
}

func NewLambdaHandler(f *proxy.Forwarder, log logrus.FieldLogger) *LambdaHandler {
	return &LambdaHandler{fwd: f, log: log}
}

// Invoke is the function passed to lambda.Start. The event type is sniffed
// from the payload: API Gateway REST events carry httpMethod, Function URL
// events carry requestContext.http.method.
func (h *LambdaHandler) Invoke(ctx context.Context, payload json.RawMessage) (interface{}, error) {
	var apiGatewayReq events.APIGatewayProxyRequest
	var functionURLReq events.LambdaFunctionURLRequest

	if err := json.Unmarshal(payload, &apiGatewayReq); err == nil && apiGatewayReq.HTTPMethod != "" {
		return h.handleAPIGateway(ctx, apiGatewayReq), nil
	}
	if err := json.Unmarshal(payload, &functionURLReq); err == nil && functionURLReq.RequestContext.HTTP.Method != "" {
		return h.handleFunctionURL(ctx, functionURLReq), nil
	}

	h.log.Warn("unsupported lambda event")
	return events.LambdaFunctionURLResponse{StatusCode: http.StatusBadRequest, Body: "Unsupported request type"}, nil
}

func (h *LambdaHandler) handleAPIGateway(ctx context.Context, event events.APIGatewayProxyRequest) events.APIGatewayProxyResponse {
	query := url.Values(event.MultiValueQueryStringParameters)
	if len(query) == 0 {
		query = make(url.Values, len(event.QueryStringParameters))
		for k, v := range event.QueryStringParameters {
			query.Set(k, v)
		}
	}
	h.log.WithField("request_id", event.RequestContext.RequestID).Tracef("request: %s %s", event.HTTPMethod, event.Path)

	resp := h.fwd.Handle(ctx, proxy.Request{Method: event.HTTPMethod, Query: query})
	body, isBase64 := encodeBody(resp.Body)

	return events.APIGatewayProxyResponse{
		StatusCode:      resp.StatusCode,
		Headers:         flattenHeader(resp.Header),
		Body:            body,
		IsBase64Encoded: isBase64,
	}
}

func (h *LambdaHandler) handleFunctionURL(ctx context.Context, event events.LambdaFunctionURLRequest) events.LambdaFunctionURLResponse {
	method := event.RequestContext.HTTP.Method
	h.log.WithField("request_id", event.RequestContext.RequestID).Tracef("request: %s %s", method, event.RawPath)

	resp := h.fwd.Handle(ctx, proxy.NewRequest(method, event.RawQueryString))
	body, isBase64 := encodeBody(resp.Body)

	return events.LambdaFunctionURLResponse{
		StatusCode:      resp.StatusCode,
		Headers:         flattenHeader(resp.Header),
		Body:            body,
		IsBase64Encoded: isBase64,
	}
}

// flattenHeader converts http.Header to the single-valued map Lambda expects.
func flattenHeader(header http.Header) map[string]string {
	result := make(map[string]string, len(header))
	for key, values := range header {
		result[key] = strings.Join(values, ",")
	}
	return result
}

// encodeBody returns the body as a string, base64 encoding it when it is not
// valid UTF-8 so binary payloads survive the JSON envelope.
func encodeBody(b []byte) (string, bool) {
	if utf8.Valid(b) {
		return string(b), false
	}
	return base64.StdEncoding.EncodeToString(b), true
}
