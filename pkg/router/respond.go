package router

import (
	"encoding/json"

	"github.com/valyala/fasthttp"
)

// WriteJSON writes data as a JSON body with the given status.
func WriteJSON(ctx *fasthttp.RequestCtx, status int, data any) error {
	ctx.SetStatusCode(status)
	ctx.SetContentType("application/json")
	return json.NewEncoder(ctx).Encode(data)
}

// WriteJSONError writes {"error": message} with the given status.
func WriteJSONError(ctx *fasthttp.RequestCtx, status int, message string) {
	_ = WriteJSON(ctx, status, map[string]string{"error": message})
}

// Param returns the path parameter captured for name, or "".
func Param(ctx *fasthttp.RequestCtx, name string) string {
	v, _ := ctx.UserValue(name).(string)
	return v
}

// Pattern returns the route pattern matched for ctx, or "" when none was.
// It is set once dispatch reaches a handler, so middleware must read it
// after calling next.
func Pattern(ctx *fasthttp.RequestCtx) string {
	return Param(ctx, PatternKey)
}
