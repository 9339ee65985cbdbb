package proxy

import "net/http"

const (
	headerAllowOrigin  = "Access-Control-Allow-Origin"
	headerAllowMethods = "Access-Control-Allow-Methods"
	headerAllowHeaders = "Access-Control-Allow-Headers"
	headerContentType  = "Content-Type"
	headerUserAgent    = "User-Agent"

	allowedMethods     = "GET, POST, OPTIONS"
	allowedHeaders     = "Content-Type"
	defaultContentType = "application/json"
	plainTextType      = "text/plain; charset=utf-8"
)

func preflight() Response {
	h := make(http.Header)
	h.Set(headerAllowOrigin, "*")
	h.Set(headerAllowMethods, allowedMethods)
	h.Set(headerAllowHeaders, allowedHeaders)
	return Response{StatusCode: http.StatusOK, Header: h}
}

func withAllowOrigin(h http.Header) http.Header {
	h.Set(headerAllowOrigin, "*")
	return h
}
