//go:build js && wasm

package main

import (
	"context"
	"strings"
	"sync"
	"syscall/js"

	"github.com/andesco/sc-proxy/pkg/proxy"

	"github.com/sirupsen/logrus"
)

var (
	forwarder     *proxy.Forwarder
	forwarderErr  error
	forwarderOnce sync.Once
)

// initForwarder builds the forwarder once per isolate from the worker's
// environment bindings.
func initForwarder(env js.Value) (*proxy.Forwarder, error) {
	forwarderOnce.Do(func() {
		cfg := proxy.DefaultConfig()
		if err := proxy.ApplyEnv(&cfg, func(key string) (string, bool) {
			v := getEnvVar(env, key, "")
			return v, v != ""
		}); err != nil {
			forwarderErr = err
			return
		}
		forwarder, forwarderErr = proxy.New(cfg)
	})
	return forwarder, forwarderErr
}

func proxyHandler(ctx context.Context, request, env js.Value) js.Value {
	f, err := initForwarder(env)
	if err != nil {
		logrus.WithError(err).Error("could not initialise forwarder")
		return createErrorResponse(500, "Could not initialise proxy")
	}

	urlObj := js.Global().Get("URL").New(request.Get("url").String())
	search := strings.TrimPrefix(urlObj.Get("search").String(), "?")

	resp := f.Handle(ctx, proxy.NewRequest(request.Get("method").String(), search))

	headers := js.Global().Get("Object").New()
	for key, values := range resp.Header {
		headers.Set(key, strings.Join(values, ", "))
	}

	responseInit := js.Global().Get("Object").New()
	responseInit.Set("status", resp.StatusCode)
	responseInit.Set("headers", headers)

	// Response rejects a body on null-body statuses such as 204 and 304.
	body := js.Null()
	if len(resp.Body) > 0 {
		body = js.Global().Get("Uint8Array").New(len(resp.Body))
		js.CopyBytesToJS(body, resp.Body)
	}

	return js.Global().Get("Response").New(body, responseInit)
}

// createErrorResponse builds a plain text Response.
func createErrorResponse(status int, message string) js.Value {
	responseInit := js.Global().Get("Object").New()
	responseInit.Set("status", status)

	headers := js.Global().Get("Object").New()
	headers.Set("Content-Type", "text/plain")
	headers.Set("Access-Control-Allow-Origin", "*")
	responseInit.Set("headers", headers)

	return js.Global().Get("Response").New(message, responseInit)
}

func getEnvVar(env js.Value, key, fallback string) string {
	if !env.IsUndefined() && !env.Get(key).IsUndefined() {
		return env.Get(key).String()
	}
	return fallback
}
