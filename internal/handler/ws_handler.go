package handler

import (
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"

	"github.com/stemsi/examhall-backend/internal/middleware"
	"github.com/stemsi/examhall-backend/internal/service"
	"github.com/stemsi/examhall-backend/internal/validator"
	ws "github.com/stemsi/examhall-backend/internal/websocket"
)

// buildUpgrader creates a WebSocket upgrader with origin validation.
// An empty allowedOrigins permits all origins (development mode).
func buildUpgrader(allowedOrigins []string) websocket.Upgrader {
	return websocket.Upgrader{
		ReadBufferSize:  1024,
		WriteBufferSize: 1024,
		CheckOrigin: func(r *http.Request) bool {
			if len(allowedOrigins) == 0 {
				return true
			}
			origin := r.Header.Get("Origin")
			for _, allowed := range allowedOrigins {
				if strings.EqualFold(allowed, origin) {
					return true
				}
			}
			return false
		},
	}
}

// WSHandler streams checkpoints and submissions over a WebSocket.
type WSHandler struct {
	sessions SessionController
	log      zerolog.Logger
	upgrader websocket.Upgrader
}

// NewWSHandler creates a new WSHandler.
func NewWSHandler(sessions SessionController, log zerolog.Logger, allowedOrigins []string) *WSHandler {
	return &WSHandler{
		sessions: sessions,
		log:      log.With().Str("component", "ws_handler").Logger(),
		upgrader: buildUpgrader(allowedOrigins),
	}
}

// SessionStream godoc
// WS /ws/sessions/:exam_id?token=
// Accepts checkpoint, submit and ping actions for the caller's attempt.
func (h *WSHandler) SessionStream(c *gin.Context) {
	claims := middleware.GetClaims(c)
	if claims == nil {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
		return
	}

	examID, err := uuid.Parse(c.Param("exam_id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid exam ID"})
		return
	}

	conn, err := h.upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		h.log.Error().Err(err).Msg("WebSocket upgrade failed")
		return
	}
	defer conn.Close()

	ctx := c.Request.Context()
	userID := claims.UserID
	if _, err := h.sessions.Start(ctx, userID, examID); err != nil {
		status, code := statusFor(err)
		_ = ws.WriteError(conn, string(code), nil)
		h.log.Debug().Int("status", status).Err(err).Msg("Session stream rejected")
		return
	}

	wsLog := h.log.With().
		Str("user_id", userID.String()).
		Str("exam_id", examID.String()).
		Logger()
	wsLog.Info().Msg("Client connected")

	v := validator.New()
	for {
		data, err := ws.ReadMessage(conn)
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				wsLog.Warn().Err(err).Msg("Unexpected close")
			} else {
				wsLog.Debug().Msg("Connection closed")
			}
			return
		}

		var env ws.RequestEnvelope
		if err := json.Unmarshal(data, &env); err != nil {
			_ = ws.WriteError(conn, "invalid message", nil)
			continue
		}

		switch env.Action {
		case ws.ActionPing:
			_ = ws.WriteTyped(conn, ws.PongResponse{Event: ws.EventPong})

		case ws.ActionCheckpoint:
			var req ws.CheckpointRequest
			if err := json.Unmarshal(data, &req); err != nil {
				_ = ws.WriteError(conn, "invalid checkpoint", nil)
				continue
			}
			if err := v.Struct(req); err != nil {
				_ = ws.WriteError(conn, "validation failed", validator.TranslateErrors(err))
				continue
			}
			sess, err := h.sessions.Checkpoint(ctx, service.CheckpointInput{
				UserID:               userID,
				ExamID:               examID,
				RemainingTime:        *req.RemainingTime,
				IsPaused:             req.IsPaused,
				CurrentQuestionIndex: req.CurrentQuestionIndex,
				SelectedAnswers:      req.SelectedAnswers,
				TotalPoints:          req.TotalPoints,
				QuestionPoints:       req.QuestionPoints,
			})
			if err != nil {
				h.writeServiceError(conn, wsLog, err)
				continue
			}
			_ = ws.WriteTyped(conn, ws.CheckpointResponse{Event: ws.EventSuccess, Session: sess})

		case ws.ActionSubmit:
			var req ws.SubmitRequest
			if err := json.Unmarshal(data, &req); err != nil {
				_ = ws.WriteError(conn, "invalid submission", nil)
				continue
			}
			if err := v.Struct(req); err != nil {
				_ = ws.WriteError(conn, "validation failed", validator.TranslateErrors(err))
				continue
			}
			sub, err := h.sessions.Finalize(ctx, service.FinalizeInput{
				UserID:         userID,
				ExamID:         examID,
				Answers:        req.Answers,
				Points:         req.Points,
				QuestionPoints: req.QuestionPoints,
			})
			if err != nil {
				h.writeServiceError(conn, wsLog, err)
				continue
			}
			_ = ws.WriteTyped(conn, ws.GradedResponse{Event: ws.EventGraded, Submission: sub})
			wsLog.Info().Float64("points", sub.Points).Msg("Exam submitted over WebSocket")
			return

		default:
			wsLog.Warn().Str("action", string(env.Action)).Msg("Unknown action")
			_ = ws.WriteError(conn, "unknown action: "+string(env.Action), nil)
		}
	}
}

func (h *WSHandler) writeServiceError(conn *websocket.Conn, log zerolog.Logger, err error) {
	var ve *service.ValidationError
	if errors.As(err, &ve) {
		_ = ws.WriteError(conn, "validation failed", ve.Fields)
		return
	}
	status, code := statusFor(err)
	if status >= http.StatusInternalServerError {
		log.Error().Err(err).Msg("Session operation failed")
	}
	_ = ws.WriteError(conn, string(code), nil)
}
