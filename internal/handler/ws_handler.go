package handler

import (
	"context"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"
	"github.com/talentgate/assessment-backend/internal/config"
	"github.com/talentgate/assessment-backend/internal/exam"
	"github.com/talentgate/assessment-backend/internal/middleware"
	"github.com/talentgate/assessment-backend/internal/model"
	"github.com/talentgate/assessment-backend/internal/service"
	ws "github.com/talentgate/assessment-backend/internal/websocket"
)

// buildUpgrader creates a WebSocket upgrader with origin validation.
// An empty allow-list permits all origins (development mode).
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

// WSHandler streams the attempt lifecycle over a WebSocket: answers,
// navigation, countdown ticks and integrity signals in; saved/warning/
// terminal events out. An inactivity poller runs per connection so a silent
// candidate is warned even when the client sends nothing.
type WSHandler struct {
	cfg      *config.Config
	sessions *service.SessionService
	log      zerolog.Logger
	upgrader websocket.Upgrader
}

// NewWSHandler creates a new WSHandler.
func NewWSHandler(cfg *config.Config, sessions *service.SessionService, log zerolog.Logger) *WSHandler {
	return &WSHandler{
		cfg:      cfg,
		sessions: sessions,
		log:      log.With().Str("component", "ws_handler").Logger(),
		upgrader: buildUpgrader(cfg.AllowedOrigins),
	}
}

// AttemptStream godoc
// WS /ws/v1/candidate/attempts/current/stream
// Upgrades to WebSocket for the duration of the open attempt.
func (h *WSHandler) AttemptStream(c *gin.Context) {
	claims := middleware.GetClaims(c)
	if claims == nil {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
		return
	}
	candidateID := claims.UserID

	// Require an open attempt before upgrading.
	if _, err := h.sessions.State(c.Request.Context(), candidateID); err != nil {
		c.JSON(http.StatusConflict, gin.H{"error": "no open attempt"})
		return
	}

	raw, err := h.upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		h.log.Error().Err(err).Msg("websocket upgrade failed")
		return
	}
	conn := ws.Wrap(raw)
	defer conn.Close()

	wsLog := h.log.With().Int("candidate_id", candidateID).Logger()
	wsLog.Info().Msg("candidate connected")

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go h.pollInactivity(ctx, conn, wsLog, candidateID)

	for {
		var msg ws.RequestPayload
		if err := conn.ReadJSON(&msg); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				wsLog.Warn().Err(err).Msg("unexpected close")
			} else {
				wsLog.Debug().Msg("connection closed")
			}
			break
		}

		switch msg.Action {
		case ws.ActionAnswer:
			h.handleAnswer(ctx, conn, wsLog, candidateID, &msg)
		case ws.ActionNavigate:
			h.handleNavigate(ctx, conn, candidateID, &msg)
		case ws.ActionTick:
			h.handleTick(ctx, conn, candidateID)
		case ws.ActionIntegrity:
			h.handleIntegrity(ctx, conn, wsLog, candidateID, &msg)
		case ws.ActionSubmit:
			h.handleSubmit(ctx, conn, wsLog, candidateID)
		case ws.ActionPing:
			conn.WriteEvent(ws.EventPong, nil)
		default:
			wsLog.Warn().Str("action", string(msg.Action)).Msg("unknown action")
			conn.WriteError("unknown action: " + string(msg.Action))
		}
	}

	h.sessions.Release(candidateID)
}

// pollInactivity drives the quiet-window check for the lifetime of the
// connection. Warnings and disqualification are pushed as events.
func (h *WSHandler) pollInactivity(ctx context.Context, conn *ws.Conn, wsLog zerolog.Logger, candidateID int) {
	ticker := time.NewTicker(h.cfg.Exam.InactivityPoll)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			outcome, err := h.sessions.CheckInactivity(ctx, candidateID)
			if err != nil {
				// Attempt ended or left this instance; stop polling.
				return
			}
			if !outcome.Warned {
				continue
			}
			h.emitOutcome(conn, outcome)
			if outcome.Terminated {
				wsLog.Info().Msg("attempt disqualified by inactivity")
				return
			}
		}
	}
}

func (h *WSHandler) handleAnswer(ctx context.Context, conn *ws.Conn, wsLog zerolog.Logger, candidateID int, msg *ws.RequestPayload) {
	if msg.QID == "" || msg.Option == nil {
		conn.WriteError("q_id and option are required")
		return
	}
	questionID, err := uuid.Parse(msg.QID)
	if err != nil {
		conn.WriteError("invalid q_id format")
		return
	}

	state, err := h.sessions.Answer(ctx, candidateID, questionID, *msg.Option)
	if err != nil {
		wsLog.Debug().Err(err).Str("q_id", msg.QID).Msg("answer rejected")
		conn.WriteError(err.Error())
		return
	}
	conn.WriteEvent(ws.EventSaved, gin.H{
		"question_id": msg.QID,
		"option":      *msg.Option,
		"answered":    len(state.Answers),
	})
}

func (h *WSHandler) handleNavigate(ctx context.Context, conn *ws.Conn, candidateID int, msg *ws.RequestPayload) {
	if msg.Index == nil {
		conn.WriteError("index is required")
		return
	}

	state, err := h.sessions.Navigate(ctx, candidateID, *msg.Index)
	if err != nil {
		conn.WriteError(err.Error())
		return
	}
	conn.WriteEvent(ws.EventState, gin.H{
		"cursor":            state.Cursor,
		"remaining_seconds": state.RemainingSeconds,
	})
}

func (h *WSHandler) handleTick(ctx context.Context, conn *ws.Conn, candidateID int) {
	state, err := h.sessions.Tick(ctx, candidateID)
	if err != nil {
		conn.WriteError(err.Error())
		return
	}

	if state.Status == model.AttemptStatusCompleted {
		conn.WriteEvent(ws.EventCompleted, gin.H{"reason": string(model.ReasonTimeExpired)})
		return
	}
	conn.WriteEvent(ws.EventState, gin.H{
		"status":            state.Status,
		"remaining_seconds": state.RemainingSeconds,
	})
}

func (h *WSHandler) handleIntegrity(ctx context.Context, conn *ws.Conn, wsLog zerolog.Logger, candidateID int, msg *ws.RequestPayload) {
	if msg.Signal == "" {
		conn.WriteError("signal is required")
		return
	}

	outcome, err := h.sessions.Signal(ctx, candidateID, exam.SignalKind(msg.Signal))
	if err != nil {
		wsLog.Debug().Err(err).Str("signal", msg.Signal).Msg("signal rejected")
		conn.WriteError(err.Error())
		return
	}
	h.emitOutcome(conn, outcome)
}

func (h *WSHandler) handleSubmit(ctx context.Context, conn *ws.Conn, wsLog zerolog.Logger, candidateID int) {
	result, err := h.sessions.Submit(ctx, candidateID)
	if err != nil {
		wsLog.Error().Err(err).Msg("submit failed")
		conn.WriteError(err.Error())
		return
	}

	wsLog.Info().
		Int("score", result.Score).
		Int("correct", result.CorrectCount).
		Int("total", result.TotalQuestions).
		Bool("passed", result.Passed).
		Msg("attempt submitted and scored")

	conn.WriteEvent(ws.EventCompleted, result)
}

// emitOutcome pushes the right event for a signal or inactivity outcome.
func (h *WSHandler) emitOutcome(conn *ws.Conn, outcome *service.SignalOutcome) {
	if outcome.Terminated {
		conn.WriteEvent(ws.EventDisqualified, outcome)
		return
	}
	if outcome.Warned {
		conn.WriteEvent(ws.EventWarning, outcome)
		return
	}
	conn.WriteEvent(ws.EventState, outcome)
}
