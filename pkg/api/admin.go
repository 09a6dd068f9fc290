package api

import (
	"time"

	"github.com/dustin/go-humanize"
	"github.com/valyala/fasthttp"

	"autobulk/pkg/logger"
	"autobulk/pkg/router"
)

func (s *Server) Health(ctx *fasthttp.RequestCtx) {
	_ = router.WriteJSON(ctx, fasthttp.StatusOK, map[string]any{
		"status":  "ok",
		"version": s.version,
		"uptime":  humanize.RelTime(s.started, time.Now(), "", ""),
		"targets": len(s.targets),
	})
}

type totals struct {
	Submitted     uint64 `json:"submitted"`
	Queued        int    `json:"queued"`
	Batches       uint64 `json:"batches"`
	FlushedOps    uint64 `json:"flushed_ops"`
	FailedBatches uint64 `json:"failed_batches"`
	LostOps       uint64 `json:"lost_ops"`
}

// Stats reports every aggregator in the registry plus totals.
func (s *Server) Stats(ctx *fasthttp.RequestCtx) {
	stats := s.registry.Stats()
	var sum totals
	for _, st := range stats {
		sum.Submitted += st.Submitted
		sum.Queued += st.QueueLen
		sum.Batches += st.Batches
		sum.FlushedOps += st.FlushedOps
		sum.FailedBatches += st.FailedBatches
		sum.LostOps += st.LostOps
	}
	_ = router.WriteJSON(ctx, fasthttp.StatusOK, map[string]any{
		"aggregators": stats,
		"totals":      sum,
	})
}

type targetInfo struct {
	Name     string `json:"name"`
	Kind     string `json:"kind"`
	Identity string `json:"identity"`
	State    string `json:"state"`
	Queued   int    `json:"queued"`
}

// Targets lists the configured intake targets.
func (s *Server) Targets(ctx *fasthttp.RequestCtx) {
	out := make([]targetInfo, 0, len(s.targets))
	for _, name := range s.targetNames() {
		t := s.targets[name]
		st := t.Aggregator.Stats()
		out = append(out, targetInfo{
			Name:     name,
			Kind:     t.Kind,
			Identity: t.Aggregator.Target().String(),
			State:    st.State,
			Queued:   st.QueueLen,
		})
	}
	_ = router.WriteJSON(ctx, fasthttp.StatusOK, out)
}

// Flush drains one target (?target=name) or every aggregator now.
func (s *Server) Flush(ctx *fasthttp.RequestCtx) {
	start := time.Now()
	var (
		err     error
		flushed []string
	)
	if name := string(ctx.QueryArgs().Peek("target")); name != "" {
		t, ok := s.targets[name]
		if !ok {
			router.WriteJSONError(ctx, fasthttp.StatusNotFound, "unknown target")
			return
		}
		err = t.Aggregator.Drain()
		flushed = []string{name}
	} else {
		err = s.registry.FlushAll()
		for _, agg := range s.registry.Aggregators() {
			flushed = append(flushed, agg.Target().String())
		}
	}
	if err != nil {
		logger.Error("admin_flush_failed", "error", err)
		router.WriteJSONError(ctx, fasthttp.StatusInternalServerError, err.Error())
		return
	}
	logger.Info("admin_flush", "aggregators", len(flushed), "took", time.Since(start))
	_ = router.WriteJSON(ctx, fasthttp.StatusOK, map[string]any{"flushed": flushed})
}
