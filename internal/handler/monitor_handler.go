package handler

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/stemsi/examhall-backend/internal/response"
	"github.com/stemsi/examhall-backend/internal/service"
)

const (
	refreshInterval   = 15 * time.Second
	keepAliveInterval = 30 * time.Second
	refreshTimeout    = 5 * time.Second // keeps slow queries from blocking the SSE loop
)

type MonitorHandler struct {
	catalog        service.ExamCatalog
	monitorService *service.MonitorService
	log            zerolog.Logger
}

func NewMonitorHandler(catalog service.ExamCatalog, monitorService *service.MonitorService, log zerolog.Logger) *MonitorHandler {
	return &MonitorHandler{
		catalog:        catalog,
		monitorService: monitorService,
		log:            log.With().Str("component", "monitor_handler").Logger(),
	}
}

// Snapshot godoc
// GET /api/exams/:id/monitor/snapshot
func (h *MonitorHandler) Snapshot(c *gin.Context) {
	examID, ok := paramID(c, "id")
	if !ok {
		return
	}
	snap, err := h.monitorService.GetSnapshot(c.Request.Context(), examID)
	if err != nil {
		fail(c, err)
		return
	}
	response.Success(c, http.StatusOK, snap)
}

// MonitorExamSSE godoc
// GET /api/exams/:id/monitor
// Streams a snapshot followed by live session events as Server-Sent Events.
func (h *MonitorHandler) MonitorExamSSE(c *gin.Context) {
	examID, ok := paramID(c, "id")
	if !ok {
		return
	}

	exam, err := h.catalog.GetExamWithQuestions(c.Request.Context(), examID)
	if err != nil {
		fail(c, err)
		return
	}

	reqCtx := c.Request.Context()

	c.Writer.Header().Set("Content-Type", "text/event-stream")
	c.Writer.Header().Set("Cache-Control", "no-cache")
	c.Writer.Header().Set("Connection", "keep-alive")

	totalQuestions := len(exam.QuestionIDs)
	hasActivity := h.sendSnapshot(c, reqCtx, examID, exam.Title, exam.DurationSeconds, totalQuestions)

	pubsub := h.monitorService.Subscribe(reqCtx, examID)
	defer pubsub.Close()
	ch := pubsub.Channel()

	keepAliveTicker := time.NewTicker(keepAliveInterval)
	defer keepAliveTicker.Stop()
	refreshTicker := time.NewTicker(refreshInterval)
	defer refreshTicker.Stop()

	h.log.Info().Str("exam_id", examID.String()).Msg("Monitor attached")

	pingPayload, _ := json.Marshal(map[string]string{"type": "ping"})

	for {
		select {
		case <-reqCtx.Done():
			h.log.Info().Str("exam_id", examID.String()).Msg("Monitor detached")
			return

		case msg, ok := <-ch:
			if !ok {
				return
			}
			// Relayed events are already JSON.
			_, _ = c.Writer.Write([]byte("data: " + msg.Payload + "\n\n"))
			c.Writer.Flush()
			hasActivity = true

		case <-refreshTicker.C:
			if !hasActivity {
				continue
			}
			h.sendRefresh(c, reqCtx, examID)

		case <-keepAliveTicker.C:
			_, _ = c.Writer.Write([]byte("data: " + string(pingPayload) + "\n\n"))
			c.Writer.Flush()
		}
	}
}

// sendSnapshot writes the first SSE event and reports whether any attempt
// is running.
func (h *MonitorHandler) sendSnapshot(c *gin.Context, ctx context.Context, examID uuid.UUID, title string, duration, totalQuestions int) bool {
	fetchCtx, cancel := context.WithTimeout(ctx, refreshTimeout)
	defer cancel()

	snap, err := h.monitorService.GetSnapshot(fetchCtx, examID)
	if err != nil {
		h.log.Warn().Err(err).Str("exam_id", examID.String()).Msg("Failed to build monitor snapshot")
		snap = &service.Snapshot{ExamID: examID}
	}

	c.SSEvent("message", gin.H{
		"type": "snapshot",
		"data": gin.H{
			"exam": gin.H{
				"id":             examID,
				"title":          title,
				"duration":       duration,
				"totalQuestions": totalQuestions,
			},
			"stats": gin.H{
				"inProgress": len(snap.Active),
				"submitted":  snap.Submitted,
			},
			"sessions": snap.Active,
		},
	})
	c.Writer.Flush()
	return len(snap.Active) > 0
}

// sendRefresh polls the running sessions and sends a compact refresh event.
func (h *MonitorHandler) sendRefresh(c *gin.Context, parentCtx context.Context, examID uuid.UUID) {
	ctx, cancel := context.WithTimeout(parentCtx, refreshTimeout)
	defer cancel()

	snap, err := h.monitorService.GetSnapshot(ctx, examID)
	if err != nil {
		h.log.Warn().Err(err).Msg("Failed to refresh monitor snapshot")
		return
	}

	progress := make([]gin.H, 0, len(snap.Active))
	for _, s := range snap.Active {
		progress = append(progress, gin.H{
			"userId":               s.UserID,
			"currentQuestionIndex": s.CurrentQuestionIndex,
			"answered":             answeredCount(s.SelectedAnswers),
			"remainingTime":        s.RemainingTime,
			"isPaused":             s.IsPaused,
		})
	}

	c.SSEvent("message", gin.H{
		"type":      "refresh",
		"submitted": snap.Submitted,
		"sessions":  progress,
	})
	c.Writer.Flush()
}

func answeredCount(answers [][]string) int {
	n := 0
	for _, a := range answers {
		if len(a) > 0 {
			n++
		}
	}
	return n
}
