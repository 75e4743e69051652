package api

import (
	"net/http"

	"fpg-order-system/dispatch"
	"fpg-order-system/models"

	"github.com/gin-gonic/gin"
)

type queueStatusResponse struct {
	Pending     int64                   `json:"pending"`
	DeadLetters int64                   `json:"deadLetters"`
	Health      string                  `json:"health"`
	Recent      []models.QueueItem      `json:"recent"`
	RecentDead  []models.DeadLetterItem `json:"recentDead"`
}

// orderQueueStatus reports counts and a sample of both lists. Samples carry PDF payloads, so
// the route sits behind the admin secret.
func (s *Server) orderQueueStatus(c *gin.Context) {
	ctx := c.Request.Context()
	stats := s.deps.Queue.Stats(ctx)
	if !stats.Available {
		respondError(c, http.StatusServiceUnavailable, "order queue unavailable", nil)
		return
	}

	resp := queueStatusResponse{
		Pending:     stats.Pending,
		DeadLetters: stats.DeadLetters,
		Health:      stats.Health(),
		Recent:      s.deps.Queue.Peek(ctx, s.cfg.SampleSize),
		RecentDead:  s.deps.Queue.PeekDeadLetters(ctx, s.cfg.SampleSize),
	}
	respondSuccess(c, http.StatusOK, "", resp)
}

func (s *Server) processOrderQueue(c *gin.Context) {
	result := s.deps.Processor.ProcessBatch(c.Request.Context())
	s.logger.Info("Order queue processed on demand",
		"fetched", result.Fetched,
		"delivered", result.Delivered,
		"requeued", result.Requeued,
		"dead_lettered", result.DeadLettered,
		"lost", result.Lost)
	respondSuccess(c, http.StatusOK, "order queue processed", batchView(result))
}

func batchView(r dispatch.BatchResult) gin.H {
	return gin.H{
		"fetched":      r.Fetched,
		"delivered":    r.Delivered,
		"requeued":     r.Requeued,
		"deadLettered": r.DeadLettered,
		"lost":         r.Lost,
		"skipped":      r.Skipped,
		"failures":     r.Failures,
	}
}
