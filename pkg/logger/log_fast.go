package logger

import (
	"context"
	"log/slog"
	"strings"
	"unicode/utf8"

	"github.com/valyala/fasthttp"
)

var sensitive = map[string]struct{}{
	"authorization": {},
	"x-api-key":     {},
	"cookie":        {},
}

// mask keeps the first and last rune of a secret.
func mask(v string) string {
	if v == "" {
		return ""
	}
	if utf8.RuneCountInString(v) <= 2 {
		return "<redacted>"
	}
	first, _ := utf8.DecodeRuneInString(v)
	last, _ := utf8.DecodeLastRuneInString(v)
	return string(first) + "*****" + string(last)
}

// RedactedHeaders renders the request headers as "k=v; k=v" with credentials masked.
func RedactedHeaders(ctx *fasthttp.RequestCtx) string {
	var b strings.Builder
	ctx.Request.Header.VisitAll(func(k, v []byte) {
		if b.Len() > 0 {
			b.WriteString("; ")
		}
		key := string(k)
		val := string(v)
		if _, ok := sensitive[strings.ToLower(key)]; ok {
			val = mask(val)
		}
		b.WriteString(key)
		b.WriteByte('=')
		b.WriteString(val)
	})
	return b.String()
}

// LogRequest writes a debug line per gateway request. Header rendering is
// skipped unless debug output is enabled.
func LogRequest(ctx *fasthttp.RequestCtx) {
	if Log == nil || !Log.Enabled(context.Background(), slog.LevelDebug) {
		return
	}
	Debug("gateway_request",
		"method", string(ctx.Method()),
		"path", string(ctx.Path()),
		"remote", ctx.RemoteAddr().String(),
		"body_bytes", len(ctx.Request.Body()),
		"headers", RedactedHeaders(ctx))
}
