package api

import (
	"context"

	"github.com/cockroachdb/errors"
	"github.com/valyala/fasthttp"

	"autobulk/pkg/aggregator"
	"autobulk/pkg/executor"
	"autobulk/pkg/logger"
	"autobulk/pkg/router"
)

type submitResponse struct {
	Target   string `json:"target"`
	Accepted int    `json:"accepted"`
	Error    string `json:"error,omitempty"`
}

// SubmitOps decodes the request body for the target's kind and submits
// each operation in order. Operations accepted before a failure stay
// queued; the response reports how many got in.
func (s *Server) SubmitOps(ctx *fasthttp.RequestCtx) {
	name := router.Param(ctx, "name")
	t, ok := s.targets[name]
	if !ok {
		router.WriteJSONError(ctx, fasthttp.StatusNotFound, "unknown target")
		return
	}

	ops, err := executor.DecodeBatch(t.Kind, ctx.PostBody())
	if err != nil {
		logger.Debug("intake_decode_failed", "target", name, "error", err)
		router.WriteJSONError(ctx, fasthttp.StatusBadRequest, err.Error())
		return
	}
	if len(ops) == 0 {
		router.WriteJSONError(ctx, fasthttp.StatusBadRequest, "no operations")
		return
	}

	sctx, cancel := context.WithTimeout(context.Background(), s.submitTimeout)
	defer cancel()

	accepted := 0
	for _, op := range ops {
		if err = t.Aggregator.Submit(sctx, op); err != nil {
			break
		}
		accepted++
	}
	acceptedOps.WithLabelValues(name).Add(float64(accepted))

	if err != nil {
		status := fasthttp.StatusServiceUnavailable
		msg := "queue closed"
		if !errors.Is(err, aggregator.ErrQueueClosed) {
			msg = "submit timed out"
		}
		logger.Warn("intake_rejected", "target", name, "accepted", accepted, "total", len(ops), "error", err)
		ctx.Response.Header.Set("Retry-After", "1")
		_ = router.WriteJSON(ctx, status, submitResponse{Target: name, Accepted: accepted, Error: msg})
		return
	}
	_ = router.WriteJSON(ctx, fasthttp.StatusAccepted, submitResponse{Target: name, Accepted: accepted})
}
