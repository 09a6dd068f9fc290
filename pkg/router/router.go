package router

import (
	"sort"
	"strings"

	"github.com/valyala/fasthttp"
)

// PatternKey is the ctx user value holding the matched route pattern.
const PatternKey = "router.pattern"

// Middleware wraps a handler. Middlewares registered with Use run in
// registration order, outermost first.
type Middleware func(fasthttp.RequestHandler) fasthttp.RequestHandler

// Router dispatches fasthttp requests by method and path. Paths may carry
// {name} segments whose values are exposed through ctx.UserValue(name).
type Router struct {
	routes     map[string][]route
	notFound   fasthttp.RequestHandler
	middleware []Middleware
}

type route struct {
	pattern  string
	segments []segment
	handler  fasthttp.RequestHandler
}

type segment struct {
	name    string
	isParam bool
}

func New() *Router {
	return &Router{routes: make(map[string][]route)}
}

// Use appends middleware applied to every request, matched or not.
func (r *Router) Use(mw ...Middleware) {
	r.middleware = append(r.middleware, mw...)
}

// Handler returns the router as a fasthttp handler with its middleware
// chain applied. Call it after all routes and middleware are registered.
func (r *Router) Handler() fasthttp.RequestHandler {
	h := fasthttp.RequestHandler(r.dispatch)
	for i := len(r.middleware) - 1; i >= 0; i-- {
		h = r.middleware[i](h)
	}
	return h
}

func (r *Router) dispatch(ctx *fasthttp.RequestCtx) {
	method := string(ctx.Method())
	path := string(ctx.Path())
	if list, ok := r.routes[method]; ok {
		for _, rt := range list {
			if values, ok := match(path, rt.segments); ok {
				for k, v := range values {
					ctx.SetUserValue(k, v)
				}
				ctx.SetUserValue(PatternKey, rt.pattern)
				rt.handler(ctx)
				return
			}
		}
	}
	if allowed := r.allowed(path); len(allowed) > 0 {
		ctx.Response.Header.Set("Allow", strings.Join(allowed, ", "))
		WriteJSONError(ctx, fasthttp.StatusMethodNotAllowed, "method not allowed")
		return
	}
	if r.notFound != nil {
		r.notFound(ctx)
		return
	}
	WriteJSONError(ctx, fasthttp.StatusNotFound, "not found")
}

// allowed lists the methods registered for path, sorted.
func (r *Router) allowed(path string) []string {
	var methods []string
	for method, list := range r.routes {
		for _, rt := range list {
			if _, ok := match(path, rt.segments); ok {
				methods = append(methods, method)
				break
			}
		}
	}
	sort.Strings(methods)
	return methods
}

func (r *Router) GET(path string, h fasthttp.RequestHandler) {
	r.add(fasthttp.MethodGet, path, h)
}

func (r *Router) POST(path string, h fasthttp.RequestHandler) {
	r.add(fasthttp.MethodPost, path, h)
}

func (r *Router) PUT(path string, h fasthttp.RequestHandler) {
	r.add(fasthttp.MethodPut, path, h)
}

func (r *Router) DELETE(path string, h fasthttp.RequestHandler) {
	r.add(fasthttp.MethodDelete, path, h)
}

// NotFound replaces the default JSON 404 handler.
func (r *Router) NotFound(h fasthttp.RequestHandler) {
	r.notFound = h
}

// Routes lists every registered route as "METHOD /pattern", sorted.
func (r *Router) Routes() []string {
	var out []string
	for method, list := range r.routes {
		for _, rt := range list {
			out = append(out, method+" "+rt.pattern)
		}
	}
	sort.Strings(out)
	return out
}

func (r *Router) add(method, path string, h fasthttp.RequestHandler) {
	r.routes[method] = append(r.routes[method], route{pattern: path, segments: parse(path), handler: h})
}

func parse(path string) []segment {
	path = strings.TrimPrefix(path, "/")
	if path == "" {
		return nil
	}
	parts := strings.Split(path, "/")
	segs := make([]segment, len(parts))
	for i, part := range parts {
		if len(part) > 2 && strings.HasPrefix(part, "{") && strings.HasSuffix(part, "}") {
			segs[i] = segment{name: part[1 : len(part)-1], isParam: true}
		} else {
			segs[i] = segment{name: part}
		}
	}
	return segs
}

func match(path string, segs []segment) (map[string]string, bool) {
	path = strings.TrimPrefix(path, "/")
	var parts []string
	if path != "" {
		parts = strings.Split(path, "/")
	}
	if len(parts) != len(segs) {
		return nil, false
	}
	values := make(map[string]string)
	for i, seg := range segs {
		if seg.isParam {
			if parts[i] == "" {
				return nil, false
			}
			values[seg.name] = parts[i]
			continue
		}
		if seg.name != parts[i] {
			return nil, false
		}
	}
	return values, true
}
