package router

import (
	"encoding/json"
	"reflect"
	"testing"

	"github.com/valyala/fasthttp"
)

func serve(h fasthttp.RequestHandler, method, uri string) *fasthttp.RequestCtx {
	var ctx fasthttp.RequestCtx
	ctx.Request.Header.SetMethod(method)
	ctx.Request.SetRequestURI(uri)
	h(&ctx)
	return &ctx
}

func TestRouterParams(t *testing.T) {
	r := New()
	r.POST("/v1/targets/{name}/ops", func(ctx *fasthttp.RequestCtx) {
		ctx.SetBodyString(Param(ctx, "name"))
		ctx.Response.Header.Set("X-Pattern", Pattern(ctx))
	})
	r.GET("/", func(ctx *fasthttp.RequestCtx) { ctx.SetBodyString("root") })

	ctx := serve(r.Handler(), "POST", "/v1/targets/orders/ops")
	if got := string(ctx.Response.Body()); got != "orders" {
		t.Fatalf("expected param orders, got %q", got)
	}
	if got := string(ctx.Response.Header.Peek("X-Pattern")); got != "/v1/targets/{name}/ops" {
		t.Fatalf("unexpected pattern %q", got)
	}
	if got := string(serve(r.Handler(), "GET", "/").Response.Body()); got != "root" {
		t.Fatalf("expected root handler, got %q", got)
	}
	if code := serve(r.Handler(), "POST", "/v1/targets//ops").Response.StatusCode(); code != fasthttp.StatusNotFound {
		t.Fatalf("empty param should not match, got %d", code)
	}
}

func TestRouterMethodNotAllowed(t *testing.T) {
	r := New()
	noop := func(*fasthttp.RequestCtx) {}
	r.GET("/admin/stats", noop)
	r.POST("/admin/stats", noop)

	ctx := serve(r.Handler(), "DELETE", "/admin/stats")
	if ctx.Response.StatusCode() != fasthttp.StatusMethodNotAllowed {
		t.Fatalf("expected 405, got %d", ctx.Response.StatusCode())
	}
	if allow := string(ctx.Response.Header.Peek("Allow")); allow != "GET, POST" {
		t.Fatalf("unexpected Allow header %q", allow)
	}

	ctx = serve(r.Handler(), "GET", "/missing")
	if ctx.Response.StatusCode() != fasthttp.StatusNotFound {
		t.Fatalf("expected 404, got %d", ctx.Response.StatusCode())
	}
	var body map[string]string
	if err := json.Unmarshal(ctx.Response.Body(), &body); err != nil || body["error"] != "not found" {
		t.Fatalf("unexpected 404 body %q (%v)", ctx.Response.Body(), err)
	}
}

func TestRouterMiddlewareOrder(t *testing.T) {
	var order []string
	mark := func(name string) Middleware {
		return func(next fasthttp.RequestHandler) fasthttp.RequestHandler {
			return func(ctx *fasthttp.RequestCtx) {
				order = append(order, name)
				next(ctx)
			}
		}
	}
	r := New()
	r.Use(mark("outer"), mark("inner"))
	r.GET("/x", func(*fasthttp.RequestCtx) { order = append(order, "handler") })

	serve(r.Handler(), "GET", "/x")
	if want := []string{"outer", "inner", "handler"}; !reflect.DeepEqual(order, want) {
		t.Fatalf("middleware order %v, want %v", order, want)
	}

	order = nil
	serve(r.Handler(), "GET", "/nowhere")
	if want := []string{"outer", "inner"}; !reflect.DeepEqual(order, want) {
		t.Fatalf("unmatched requests should still pass middleware, got %v", order)
	}
}

func TestRoutesListing(t *testing.T) {
	r := New()
	noop := func(*fasthttp.RequestCtx) {}
	r.POST("/admin/flush", noop)
	r.GET("/admin/health", noop)
	want := []string{"GET /admin/health", "POST /admin/flush"}
	if got := r.Routes(); !reflect.DeepEqual(got, want) {
		t.Fatalf("routes %v, want %v", got, want)
	}
}
