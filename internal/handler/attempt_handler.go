package handler

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/talentgate/assessment-backend/internal/exam"
	"github.com/talentgate/assessment-backend/internal/middleware"
	"github.com/talentgate/assessment-backend/internal/response"
	"github.com/talentgate/assessment-backend/internal/service"
	"github.com/talentgate/assessment-backend/internal/validator"
)

// AttemptHandler exposes the candidate attempt lifecycle over HTTP. The
// WebSocket stream covers the same operations for connected clients; these
// endpoints are the fallback and the resume path.
type AttemptHandler struct {
	sessions *service.SessionService
}

// NewAttemptHandler creates a new AttemptHandler.
func NewAttemptHandler(sessions *service.SessionService) *AttemptHandler {
	return &AttemptHandler{sessions: sessions}
}

// answerRequest is the payload for recording a selection.
type answerRequest struct {
	QuestionID string `json:"question_id" binding:"required,uuid"`
	Option     *int   `json:"option" binding:"required,min=0,max=3"`
}

// navigateRequest is the payload for moving the cursor.
type navigateRequest struct {
	Index *int `json:"index" binding:"required"`
}

// signalRequest is the payload for reporting an integrity signal.
type signalRequest struct {
	Signal string `json:"signal" binding:"required,oneof=tab-hidden tab-visible forbidden-shortcut context-menu activity"`
}

// Start godoc
// POST /api/v1/candidate/attempts
// Opens a new attempt, or resumes the candidate's open one.
func (h *AttemptHandler) Start(c *gin.Context) {
	claims := middleware.GetClaims(c)

	state, err := h.sessions.Start(c.Request.Context(), claims.UserID)
	if err != nil {
		failAttemptError(c, err)
		return
	}
	response.Success(c, http.StatusCreated, state)
}

// State godoc
// GET /api/v1/candidate/attempts/current
// Returns the current view of the open attempt.
func (h *AttemptHandler) State(c *gin.Context) {
	claims := middleware.GetClaims(c)

	state, err := h.sessions.State(c.Request.Context(), claims.UserID)
	if err != nil {
		failAttemptError(c, err)
		return
	}
	response.Success(c, http.StatusOK, state)
}

// Answer godoc
// POST /api/v1/candidate/attempts/current/answers
// Records (or overwrites) the selection for one question.
func (h *AttemptHandler) Answer(c *gin.Context) {
	claims := middleware.GetClaims(c)

	var req answerRequest
	if fields := validator.Bind(c, &req); fields != nil {
		response.FailWithFields(c, http.StatusBadRequest, response.ErrValidation, fields)
		return
	}
	questionID, err := uuid.Parse(req.QuestionID)
	if err != nil {
		response.Fail(c, http.StatusBadRequest, response.ErrInvalidID)
		return
	}

	state, err := h.sessions.Answer(c.Request.Context(), claims.UserID, questionID, *req.Option)
	if err != nil {
		failAttemptError(c, err)
		return
	}
	response.Success(c, http.StatusOK, state)
}

// Navigate godoc
// POST /api/v1/candidate/attempts/current/navigate
// Moves the cursor; out-of-range targets clamp.
func (h *AttemptHandler) Navigate(c *gin.Context) {
	claims := middleware.GetClaims(c)

	var req navigateRequest
	if fields := validator.Bind(c, &req); fields != nil {
		response.FailWithFields(c, http.StatusBadRequest, response.ErrValidation, fields)
		return
	}

	state, err := h.sessions.Navigate(c.Request.Context(), claims.UserID, *req.Index)
	if err != nil {
		failAttemptError(c, err)
		return
	}
	response.Success(c, http.StatusOK, state)
}

// Tick godoc
// POST /api/v1/candidate/attempts/current/tick
// Evaluates the countdown; an expired attempt completes as TIME_EXPIRED.
func (h *AttemptHandler) Tick(c *gin.Context) {
	claims := middleware.GetClaims(c)

	state, err := h.sessions.Tick(c.Request.Context(), claims.UserID)
	if err != nil {
		failAttemptError(c, err)
		return
	}
	response.Success(c, http.StatusOK, state)
}

// Signal godoc
// POST /api/v1/candidate/attempts/current/signals
// Reports one integrity signal. Reaching the warning threshold disqualifies.
func (h *AttemptHandler) Signal(c *gin.Context) {
	claims := middleware.GetClaims(c)

	var req signalRequest
	if fields := validator.Bind(c, &req); fields != nil {
		response.FailWithFields(c, http.StatusBadRequest, response.ErrValidation, fields)
		return
	}

	outcome, err := h.sessions.Signal(c.Request.Context(), claims.UserID, exam.SignalKind(req.Signal))
	if err != nil {
		failAttemptError(c, err)
		return
	}
	response.Success(c, http.StatusOK, outcome)
}

// Submit godoc
// POST /api/v1/candidate/attempts/current/submit
// Finalizes the attempt and returns the scored result.
func (h *AttemptHandler) Submit(c *gin.Context) {
	claims := middleware.GetClaims(c)

	result, err := h.sessions.Submit(c.Request.Context(), claims.UserID)
	if err != nil {
		failAttemptError(c, err)
		return
	}
	response.Success(c, http.StatusOK, result)
}

// Results godoc
// GET /api/v1/candidate/attempts
// Returns the candidate's terminal attempt history, newest first.
func (h *AttemptHandler) Results(c *gin.Context) {
	claims := middleware.GetClaims(c)

	results, err := h.sessions.Results(c.Request.Context(), claims.UserID)
	if err != nil {
		response.Fail(c, http.StatusInternalServerError, response.ErrInternal)
		return
	}
	response.Success(c, http.StatusOK, gin.H{"attempts": results})
}

// Result godoc
// GET /api/v1/candidate/attempts/:attempt_number
// Returns the scored outcome of one finished attempt.
func (h *AttemptHandler) Result(c *gin.Context) {
	claims := middleware.GetClaims(c)

	attemptNumber, err := strconv.Atoi(c.Param("attempt_number"))
	if err != nil || attemptNumber < 1 {
		response.Fail(c, http.StatusBadRequest, response.ErrInvalidID)
		return
	}

	result, err := h.sessions.Result(c.Request.Context(), claims.UserID, attemptNumber)
	if err != nil {
		failAttemptError(c, err)
		return
	}
	response.Success(c, http.StatusOK, result)
}

// failAttemptError maps attempt lifecycle errors onto response codes.
func failAttemptError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, exam.ErrMaxAttemptsExceeded):
		response.Fail(c, http.StatusForbidden, response.ErrMaxAttempts)
	case errors.Is(err, exam.ErrAttemptAlreadyInProgress):
		response.Fail(c, http.StatusConflict, response.ErrAttemptInProgress)
	case errors.Is(err, exam.ErrAttemptNotFound):
		response.Fail(c, http.StatusNotFound, response.ErrAttemptNotFound)
	case errors.Is(err, exam.ErrAttemptNotActive):
		response.Fail(c, http.StatusConflict, response.ErrAttemptNotActive)
	case errors.Is(err, exam.ErrInvalidOption):
		response.Fail(c, http.StatusBadRequest, response.ErrInvalidOption)
	case errors.Is(err, exam.ErrUnknownQuestion):
		response.Fail(c, http.StatusBadRequest, response.ErrUnknownQuestion)
	case errors.Is(err, exam.ErrDuplicateAttempt):
		response.Fail(c, http.StatusConflict, response.ErrDuplicateAttempt)
	case errors.Is(err, exam.ErrInvalidDistribution):
		response.Fail(c, http.StatusUnprocessableEntity, response.ErrInvalidDistribution)
	default:
		response.Fail(c, http.StatusInternalServerError, response.ErrInternal)
	}
}
