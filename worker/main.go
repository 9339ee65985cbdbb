//go:build js && wasm

package main

import (
	"context"
	"fmt"
	"syscall/js"
)

func main() {
	js.Global().Set("goFetch", js.FuncOf(fetchHandler))
	select {}
}

// fetchHandler backs goFetch(request, env) and returns a Promise of a
// Response. env may be omitted, in which case the defaults apply.
func fetchHandler(_ js.Value, args []js.Value) interface{} {
	promise := js.Global().Get("Promise")
	if len(args) == 0 || args[0].IsUndefined() {
		return promise.Call("reject", js.ValueOf("goFetch: missing request"))
	}
	request := args[0]
	env := js.Undefined()
	if len(args) > 1 {
		env = args[1]
	}

	var executor js.Func
	executor = js.FuncOf(func(_ js.Value, settle []js.Value) interface{} {
		defer executor.Release()
		resolve, reject := settle[0], settle[1]

		go func() {
			ctx, cancel := requestContext(request)
			defer cancel()
			defer func() {
				if r := recover(); r != nil {
					reject.Invoke(js.ValueOf(fmt.Sprintf("goFetch: %v", r)))
				}
			}()
			resolve.Invoke(proxyHandler(ctx, request, env))
		}()
		return nil
	})
	return promise.New(executor)
}

// requestContext is cancelled when the request's AbortSignal fires.
func requestContext(request js.Value) (context.Context, context.CancelFunc) {
	ctx, cancel := context.WithCancel(context.Background())
	signal := request.Get("signal")
	if signal.IsUndefined() || signal.IsNull() {
		return ctx, cancel
	}
	if signal.Get("aborted").Truthy() {
		cancel()
		return ctx, cancel
	}

	onAbort := js.FuncOf(func(js.Value, []js.Value) interface{} {
		cancel()
		return nil
	})
	signal.Call("addEventListener", "abort", onAbort)
	return ctx, func() {
		signal.Call("removeEventListener", "abort", onAbort)
		onAbort.Release()
		cancel()
	}
}
