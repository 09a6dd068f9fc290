package auth

import (
	"net"
	"strings"

	"github.com/valyala/fasthttp"

	"autobulk/pkg/logger"
	"autobulk/pkg/router"
)

// RoleKey is the ctx user value holding the caller's Role.
const RoleKey = "autobulk.role"

// Gateway authenticates requests in front of the router. It enforces the
// IP whitelist, resolves the caller role from its API key and rate limits
// per key.
type Gateway struct {
	cfg      SecConfig
	limiters *limiterPool
}

func NewGateway(cfg SecConfig) *Gateway {
	if cfg.Open() {
		logger.Warn("gateway_open", "reason", "no api keys configured")
	}
	return &Gateway{cfg: cfg, limiters: newLimiterPool(cfg.RPS, cfg.Burst)}
}

// Close stops the limiter eviction loop.
func (g *Gateway) Close() {
	g.limiters.close()
}

// Middleware is a router.Middleware.
func (g *Gateway) Middleware(next fasthttp.RequestHandler) fasthttp.RequestHandler {
	return func(ctx *fasthttp.RequestCtx) {
		logger.LogRequest(ctx)
		path := string(ctx.Path())

		if len(g.cfg.IPWhitelist) > 0 {
			ip := clientIPFast(ctx)
			if !ipWhitelisted(ip, g.cfg.IPWhitelist) {
				router.WriteJSONError(ctx, fasthttp.StatusForbidden, "forbidden")
				logger.Warn("request_blocked", "reason", "ip_not_whitelisted", "ip", ip, "path", path)
				return
			}
		}

		// probes stay unauthenticated
		if path == "/admin/health" && ctx.IsGet() {
			ctx.SetUserValue(RoleKey, RoleUnauth)
			next(ctx)
			return
		}

		role, key, hasAPIKey := g.authenticate(ctx)
		logger.Debug("auth_check", "role", role.String(), "has_api_key", hasAPIKey)
		if role == RoleUnauth {
			router.WriteJSONError(ctx, fasthttp.StatusUnauthorized, "unauthorized")
			logger.Warn("request_unauthorized", "path", path, "remote", ctx.RemoteAddr().String())
			return
		}
		if !allowed(role, path) {
			router.WriteJSONError(ctx, fasthttp.StatusForbidden, "forbidden")
			logger.Warn("request_forbidden", "role", role.String(), "path", path)
			return
		}
		if !g.limiters.Allow(key) {
			router.WriteJSONError(ctx, fasthttp.StatusTooManyRequests, "rate limit exceeded")
			logger.Warn("rate_limited", "has_api_key", hasAPIKey, "path", path)
			return
		}

		ctx.SetUserValue(RoleKey, role)
		next(ctx)
	}
}

// authenticate returns the caller role and the rate-limit identifier.
func (g *Gateway) authenticate(ctx *fasthttp.RequestCtx) (Role, string, bool) {
	key := apiKey(ctx)
	if g.cfg.Open() {
		if key == "" {
			return RoleAdmin, clientIPFast(ctx), false
		}
		return RoleAdmin, key, true
	}
	if key == "" {
		return RoleUnauth, clientIPFast(ctx), false
	}
	if _, ok := g.cfg.AdminKeys[key]; ok {
		return RoleAdmin, key, true
	}
	if _, ok := g.cfg.ProducerKeys[key]; ok {
		return RoleProducer, key, true
	}
	return RoleUnauth, key, true
}

// producers may only submit ops; admin may do anything
func allowed(role Role, path string) bool {
	if role == RoleAdmin {
		return true
	}
	return role == RoleProducer && strings.HasPrefix(path, "/v1/")
}

func apiKey(ctx *fasthttp.RequestCtx) string {
	auth := string(ctx.Request.Header.Peek("Authorization"))
	if len(auth) > 7 && strings.EqualFold(auth[:7], "bearer ") {
		if key := strings.TrimSpace(auth[7:]); key != "" {
			return key
		}
	}
	return string(ctx.Request.Header.Peek("X-API-Key"))
}

func clientIPFast(ctx *fasthttp.RequestCtx) string {
	host := ctx.RemoteAddr().String()
	h, _, err := net.SplitHostPort(host)
	if err != nil {
		return host
	}
	return h
}

// CallerRole returns the role the gateway attached to ctx.
func CallerRole(ctx *fasthttp.RequestCtx) Role {
	r, _ := ctx.UserValue(RoleKey).(Role)
	return r
}
