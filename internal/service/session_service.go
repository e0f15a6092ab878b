package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"github.com/talentgate/assessment-backend/internal/config"
	"github.com/talentgate/assessment-backend/internal/exam"
	"github.com/talentgate/assessment-backend/internal/model"
	"github.com/talentgate/assessment-backend/internal/repository"
)

// AnswerJob is the write-behind payload queued for the answer worker.
type AnswerJob struct {
	AttemptID  string `json:"attempt_id"`
	QuestionID string `json:"question_id"`
	Option     int    `json:"option"`
	AnsweredAt int64  `json:"answered_at"`
}

// ResultJob is the write-behind payload queued for the result worker when a
// synchronous finalize fails. It carries everything the conditional ledger
// update needs, so the worker never has to reconstruct session state.
type ResultJob struct {
	AttemptID       string              `json:"attempt_id"`
	Status          model.AttemptStatus `json:"status"`
	FinishedAt      time.Time           `json:"finished_at"`
	DurationSeconds int                 `json:"duration_seconds"`
	Answers         map[string]int      `json:"answers"`
	WarningCount    int                 `json:"warning_count"`
	TabSwitchCount  int                 `json:"tab_switch_count"`
	Score           int                 `json:"score"`
	CorrectCount    int                 `json:"correct_count"`
	TotalQuestions  int                 `json:"total_questions"`
}

// AttemptState is the candidate-facing view of an open or just-finished
// attempt. Question snapshots are stripped of the answer key.
type AttemptState struct {
	AttemptID        uuid.UUID                 `json:"attempt_id"`
	AttemptNumber    int                       `json:"attempt_number"`
	Status           model.AttemptStatus       `json:"status"`
	Questions        []model.CandidateQuestion `json:"questions"`
	Answers          map[string]int            `json:"answers"`
	Cursor           int                       `json:"cursor"`
	RemainingSeconds int                       `json:"remaining_seconds"`
	WarningCount     int                       `json:"warning_count"`
	WarningThreshold int                       `json:"warning_threshold"`
	TabSwitchCount   int                       `json:"tab_switch_count"`
	MaxAttempts      int                       `json:"max_attempts"`
}

// SignalOutcome reports the effect of one integrity signal.
type SignalOutcome struct {
	Warned           bool                `json:"warned"`
	WarningCount     int                 `json:"warning_count"`
	WarningThreshold int                 `json:"warning_threshold"`
	TabSwitchCount   int                 `json:"tab_switch_count"`
	Terminated       bool                `json:"terminated"`
	Status           model.AttemptStatus `json:"status"`
}

// SessionService orchestrates the attempt lifecycle: composition, the live
// in-memory state machine, integrity monitoring, autosave, and durable
// finalization against the ledger.
//
// One live entry exists per open attempt. On a process restart or a request
// landing on a cold instance, the entry is rebuilt from the ledger row plus
// the Redis autosave hash, so candidates resume without losing answers.
type SessionService struct {
	cfg      *config.Config
	attempts *repository.AttemptRepository
	composer *exam.Composer
	scorer   *exam.Scorer
	rdb      *redis.Client
	log      zerolog.Logger

	mu   sync.Mutex
	live map[int]*liveAttempt // keyed by candidate ID; one open attempt each
}

type liveAttempt struct {
	attemptID uuid.UUID
	session   *exam.Session
	monitor   *exam.Monitor
}

// NewSessionService creates a new SessionService.
func NewSessionService(
	cfg *config.Config,
	attempts *repository.AttemptRepository,
	composer *exam.Composer,
	scorer *exam.Scorer,
	rdb *redis.Client,
	log zerolog.Logger,
) *SessionService {
	return &SessionService{
		cfg:      cfg,
		attempts: attempts,
		composer: composer,
		scorer:   scorer,
		rdb:      rdb,
		log:      log.With().Str("component", "session_service").Logger(),
		live:     make(map[int]*liveAttempt),
	}
}

// Start opens a new attempt for the candidate, or resumes the open one if it
// exists. The attempt ceiling is checked against the ledger before any
// composition work happens.
func (s *SessionService) Start(ctx context.Context, candidateID int) (*AttemptState, error) {
	// Resume path: an open attempt always wins over starting a new one.
	if existing, err := s.attempts.GetActiveByCandidate(ctx, candidateID); err == nil {
		live, err := s.adopt(ctx, candidateID, existing)
		if err != nil {
			return nil, err
		}
		// The clock may have run out while the candidate was away.
		s.expireIfDue(ctx, live)
		return s.state(ctx, live), nil
	} else if !errors.Is(err, exam.ErrAttemptNotFound) {
		return nil, fmt.Errorf("check active attempt: %w", err)
	}

	number, err := s.attempts.NextAttemptNumber(ctx, candidateID)
	if err != nil {
		return nil, fmt.Errorf("next attempt number: %w", err)
	}
	if number > s.cfg.Exam.MaxAttempts {
		return nil, exam.ErrMaxAttemptsExceeded
	}

	comp, err := s.composer.Compose(ctx, model.CompositionRequest{
		TotalQuestions: s.cfg.Exam.TotalQuestions,
		EasyPct:        s.cfg.Exam.EasyPct,
		ModeratePct:    s.cfg.Exam.ModeratePct,
		ExpertPct:      s.cfg.Exam.ExpertPct,
	})
	if err != nil {
		return nil, fmt.Errorf("compose attempt: %w", err)
	}
	if len(comp.Shortfall) > 0 {
		s.log.Warn().
			Int("candidate_id", candidateID).
			Interface("shortfall", comp.Shortfall).
			Msg("question bank shortfall; attempt composed with fewer questions")
	}

	attempt := &model.Attempt{
		ID:             uuid.New(),
		CandidateID:    candidateID,
		AttemptNumber:  number,
		Status:         model.AttemptStatusInProgress,
		StartedAt:      time.Now(),
		Questions:      comp.Questions,
		Answers:        make(map[string]int),
		TotalQuestions: len(comp.Questions),
	}

	if err := s.attempts.Create(ctx, attempt); err != nil {
		if errors.Is(err, exam.ErrAttemptAlreadyInProgress) || errors.Is(err, exam.ErrDuplicateAttempt) {
			// Lost the race to another device. Resume whatever won.
			existing, fetchErr := s.attempts.GetActiveByCandidate(ctx, candidateID)
			if fetchErr != nil {
				return nil, fmt.Errorf("concurrent start detected, fetch failed: %w", fetchErr)
			}
			live, adoptErr := s.adopt(ctx, candidateID, existing)
			if adoptErr != nil {
				return nil, adoptErr
			}
			return s.state(ctx, live), nil
		}
		return nil, fmt.Errorf("create attempt: %w", err)
	}

	// Cache the start time and active attempt pointer so state reads and
	// cold-instance resumes skip the ledger.
	_ = s.rdb.Set(ctx, config.CacheKey.AttemptStartKey(attempt.ID.String()), attempt.StartedAt.Unix(), 0).Err()
	_ = s.rdb.Set(ctx, config.CacheKey.CandidateActiveAttemptKey(candidateID), attempt.ID.String(), 0).Err()

	live := s.register(candidateID, attempt)

	s.log.Info().
		Int("candidate_id", candidateID).
		Str("attempt_id", attempt.ID.String()).
		Int("attempt_number", number).
		Int("questions", len(comp.Questions)).
		Msg("attempt started")

	return s.state(ctx, live), nil
}

// Answer records a selection and queues it for write-behind persistence.
func (s *SessionService) Answer(ctx context.Context, candidateID int, questionID uuid.UUID, option int) (*AttemptState, error) {
	live, err := s.resolve(ctx, candidateID)
	if err != nil {
		return nil, err
	}
	if s.expireIfDue(ctx, live) {
		return nil, exam.ErrAttemptNotActive
	}

	if err := live.session.RecordAnswer(questionID, option); err != nil {
		return nil, err
	}
	live.monitor.Observe(exam.SignalActivity, time.Now())

	// Autosave to Redis immediately; flush to Postgres via the worker queue.
	attemptID := live.attemptID.String()
	if err := s.rdb.HSet(ctx, config.CacheKey.AttemptAnswersKey(attemptID), questionID.String(), option).Err(); err != nil {
		s.log.Error().Err(err).Str("attempt_id", attemptID).Msg("autosave answer to redis failed")
	}
	job, _ := json.Marshal(AnswerJob{
		AttemptID:  attemptID,
		QuestionID: questionID.String(),
		Option:     option,
		AnsweredAt: time.Now().Unix(),
	})
	if err := s.rdb.LPush(ctx, config.WorkerKey.PersistAnswersQueue, job).Err(); err != nil {
		s.log.Error().Err(err).Str("attempt_id", attemptID).Msg("enqueue answer job failed")
	}

	return s.state(ctx, live), nil
}

// Navigate moves the candidate's cursor. Out-of-range targets clamp.
func (s *SessionService) Navigate(ctx context.Context, candidateID, toIndex int) (*AttemptState, error) {
	live, err := s.resolve(ctx, candidateID)
	if err != nil {
		return nil, err
	}
	if s.expireIfDue(ctx, live) {
		return nil, exam.ErrAttemptNotActive
	}

	live.session.Navigate(toIndex)
	live.monitor.Observe(exam.SignalActivity, time.Now())
	return s.state(ctx, live), nil
}

// Tick evaluates the countdown. When the attempt expires it is finalized as
// TIME_EXPIRED; repeated ticks after expiry are no-ops.
func (s *SessionService) Tick(ctx context.Context, candidateID int) (*AttemptState, error) {
	live, err := s.resolve(ctx, candidateID)
	if err != nil {
		return nil, err
	}
	s.expireIfDue(ctx, live)
	return s.state(ctx, live), nil
}

// Signal processes one integrity signal. A warning that reaches the
// threshold disqualifies and finalizes the attempt.
func (s *SessionService) Signal(ctx context.Context, candidateID int, kind exam.SignalKind) (*SignalOutcome, error) {
	live, err := s.resolve(ctx, candidateID)
	if err != nil {
		return nil, err
	}
	if s.expireIfDue(ctx, live) {
		return nil, exam.ErrAttemptNotActive
	}

	now := time.Now()
	warn := live.monitor.Observe(kind, now)
	if kind == exam.SignalTabHidden {
		live.session.NoteTabSwitch()
	}

	outcome := &SignalOutcome{
		Warned:           warn,
		WarningCount:     live.session.WarningCount(),
		WarningThreshold: s.cfg.Exam.WarningThreshold,
		TabSwitchCount:   live.monitor.TabSwitchCount(),
		Status:           live.session.Status(),
	}
	if !warn {
		return outcome, nil
	}

	count, terminated, err := live.session.RaiseWarning()
	if err != nil {
		return nil, err
	}
	outcome.WarningCount = count
	outcome.Terminated = terminated
	outcome.Status = live.session.Status()

	s.log.Warn().
		Int("candidate_id", candidateID).
		Str("attempt_id", live.attemptID.String()).
		Str("signal", string(kind)).
		Int("warning_count", count).
		Bool("terminated", terminated).
		Msg("integrity warning raised")

	if terminated {
		s.finalize(ctx, candidateID, live)
	}
	return outcome, nil
}

// CheckInactivity runs one inactivity poll for the candidate's open attempt.
// An elapsed quiet window counts as a warning like any other signal.
func (s *SessionService) CheckInactivity(ctx context.Context, candidateID int) (*SignalOutcome, error) {
	live, err := s.resolve(ctx, candidateID)
	if err != nil {
		return nil, err
	}
	if s.expireIfDue(ctx, live) {
		return nil, exam.ErrAttemptNotActive
	}

	outcome := &SignalOutcome{
		WarningCount:     live.session.WarningCount(),
		WarningThreshold: s.cfg.Exam.WarningThreshold,
		TabSwitchCount:   live.monitor.TabSwitchCount(),
		Status:           live.session.Status(),
	}
	if !live.monitor.PollInactivity(time.Now()) {
		return outcome, nil
	}

	count, terminated, err := live.session.RaiseWarning()
	if err != nil {
		return nil, err
	}
	outcome.Warned = true
	outcome.WarningCount = count
	outcome.Terminated = terminated
	outcome.Status = live.session.Status()

	s.log.Warn().
		Int("candidate_id", candidateID).
		Str("attempt_id", live.attemptID.String()).
		Int("warning_count", count).
		Bool("terminated", terminated).
		Msg("inactivity warning raised")

	if terminated {
		s.finalize(ctx, candidateID, live)
	}
	return outcome, nil
}

// Submit finalizes the attempt as an explicit submission. Submission never
// fails: if the ledger write cannot complete synchronously the result is
// queued for the result worker and the scored outcome is still returned.
func (s *SessionService) Submit(ctx context.Context, candidateID int) (*model.AttemptResult, error) {
	live, err := s.resolve(ctx, candidateID)
	if err != nil {
		return nil, err
	}

	reason := model.ReasonSubmitted
	if s.remaining(ctx, live) <= 0 {
		reason = model.ReasonTimeExpired
	}
	_, attempt := live.session.Complete(reason)
	s.finalize(ctx, candidateID, live)

	result, ok := attempt.Result(s.cfg.Exam.PassingScore)
	if !ok {
		return nil, fmt.Errorf("attempt %s not terminal after complete", attempt.ID)
	}
	return &result, nil
}

// State returns the current view of the candidate's open attempt.
func (s *SessionService) State(ctx context.Context, candidateID int) (*AttemptState, error) {
	live, err := s.resolve(ctx, candidateID)
	if err != nil {
		return nil, err
	}
	s.expireIfDue(ctx, live)
	return s.state(ctx, live), nil
}

// Results returns the candidate's terminal attempt history, newest first.
// Open attempts are excluded.
func (s *SessionService) Results(ctx context.Context, candidateID int) ([]model.AttemptResult, error) {
	attempts, err := s.attempts.ListByCandidate(ctx, candidateID)
	if err != nil {
		return nil, err
	}

	results := make([]model.AttemptResult, 0, len(attempts))
	for i := range attempts {
		if r, ok := attempts[i].Result(s.cfg.Exam.PassingScore); ok {
			results = append(results, r)
		}
	}
	return results, nil
}

// Result returns the scored outcome of one finished attempt by its number.
func (s *SessionService) Result(ctx context.Context, candidateID, attemptNumber int) (*model.AttemptResult, error) {
	attempt, err := s.attempts.Get(ctx, candidateID, attemptNumber)
	if err != nil {
		return nil, err
	}
	result, ok := attempt.Result(s.cfg.Exam.PassingScore)
	if !ok {
		// Still open; no score to report yet.
		return nil, exam.ErrAttemptNotFound
	}
	return &result, nil
}

// Release drops the live entry for a candidate without touching the ledger.
// Used when a WebSocket connection closes; the attempt stays open and is
// re-adopted on the next request.
func (s *SessionService) Release(candidateID int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.live, candidateID)
}

// resolve returns the live entry for the candidate's open attempt, rebuilding
// it from the ledger if this instance has not seen the attempt yet.
func (s *SessionService) resolve(ctx context.Context, candidateID int) (*liveAttempt, error) {
	s.mu.Lock()
	if live, ok := s.live[candidateID]; ok {
		s.mu.Unlock()
		return live, nil
	}
	s.mu.Unlock()

	attempt, err := s.attempts.GetActiveByCandidate(ctx, candidateID)
	if err != nil {
		return nil, err
	}
	return s.adopt(ctx, candidateID, attempt)
}

// adopt rebuilds the live state machine around a ledger attempt, merging any
// autosaved answers from Redis that the ledger row has not absorbed yet.
func (s *SessionService) adopt(ctx context.Context, candidateID int, attempt *model.Attempt) (*liveAttempt, error) {
	saved, err := s.rdb.HGetAll(ctx, config.CacheKey.AttemptAnswersKey(attempt.ID.String())).Result()
	if err != nil && !errors.Is(err, redis.Nil) {
		s.log.Error().Err(err).Str("attempt_id", attempt.ID.String()).Msg("load autosaved answers failed")
	}
	for questionID, raw := range saved {
		option, convErr := strconv.Atoi(raw)
		if convErr != nil {
			continue
		}
		attempt.Answers[questionID] = option
	}

	// Self-heal the active attempt pointer for the next cold read.
	_ = s.rdb.Set(ctx, config.CacheKey.CandidateActiveAttemptKey(candidateID), attempt.ID.String(), 0).Err()

	live := s.register(candidateID, attempt)

	s.log.Info().
		Int("candidate_id", candidateID).
		Str("attempt_id", attempt.ID.String()).
		Int("autosaved_answers", len(saved)).
		Msg("attempt resumed")

	return live, nil
}

func (s *SessionService) register(candidateID int, attempt *model.Attempt) *liveAttempt {
	s.mu.Lock()
	defer s.mu.Unlock()

	if existing, ok := s.live[candidateID]; ok && existing.attemptID == attempt.ID {
		return existing
	}
	live := &liveAttempt{
		attemptID: attempt.ID,
		session:   exam.NewSession(attempt, s.scorer, s.cfg.Exam.WarningThreshold, nil),
		monitor:   exam.NewMonitor(s.cfg.Exam.InactivityWindow, time.Now()),
	}
	s.live[candidateID] = live
	return live
}

// remaining computes the countdown from the cached start time, falling back
// to the in-memory attempt record.
func (s *SessionService) remaining(ctx context.Context, live *liveAttempt) int {
	attempt := live.session.Attempt()
	startedAt := attempt.StartedAt

	if val, err := s.rdb.Get(ctx, config.CacheKey.AttemptStartKey(live.attemptID.String())).Result(); err == nil {
		if unix, parseErr := strconv.ParseInt(val, 10, 64); parseErr == nil {
			startedAt = time.Unix(unix, 0)
		}
	}

	deadline := startedAt.Add(time.Duration(s.cfg.Exam.DurationSeconds) * time.Second)
	remaining := int(time.Until(deadline).Seconds())
	if remaining < 0 {
		remaining = 0
	}
	return remaining
}

// expireIfDue finalizes the attempt as TIME_EXPIRED when the countdown has
// run out. Returns true when this call (or an earlier one) ended the attempt.
func (s *SessionService) expireIfDue(ctx context.Context, live *liveAttempt) bool {
	if live.session.Status().Terminal() {
		return true
	}
	if !live.session.Tick(s.remaining(ctx, live)) {
		return false
	}
	s.finalize(ctx, live.session.Attempt().CandidateID, live)
	return true
}

// finalize persists the terminal attempt to the ledger and cleans up the
// live entry and cache keys. A ledger failure degrades to the result queue;
// the caller already has the scored result, so nothing is lost.
func (s *SessionService) finalize(ctx context.Context, candidateID int, live *liveAttempt) {
	attempt := live.session.Attempt()

	updated, err := s.attempts.Finalize(ctx, &attempt)
	if err != nil {
		s.log.Error().Err(err).
			Str("attempt_id", attempt.ID.String()).
			Msg("synchronous finalize failed, queueing result job")

		job, _ := json.Marshal(ResultJob{
			AttemptID:       attempt.ID.String(),
			Status:          attempt.Status,
			FinishedAt:      *attempt.FinishedAt,
			DurationSeconds: *attempt.DurationSeconds,
			Answers:         attempt.Answers,
			WarningCount:    attempt.WarningCount,
			TabSwitchCount:  attempt.TabSwitchCount,
			Score:           *attempt.Score,
			CorrectCount:    *attempt.CorrectCount,
			TotalQuestions:  attempt.TotalQuestions,
		})
		if qErr := s.rdb.LPush(ctx, config.WorkerKey.PersistResultsQueue, job).Err(); qErr != nil {
			s.log.Error().Err(qErr).
				Str("attempt_id", attempt.ID.String()).
				Msg("enqueue result job failed; attempt will need manual reconciliation")
		}
	} else if !updated {
		// Another writer finalized first; idempotent no-op.
		s.log.Debug().Str("attempt_id", attempt.ID.String()).Msg("attempt already finalized")
	}

	_ = s.rdb.Del(ctx,
		config.CacheKey.AttemptStartKey(attempt.ID.String()),
		config.CacheKey.AttemptAnswersKey(attempt.ID.String()),
		config.CacheKey.CandidateActiveAttemptKey(candidateID),
	).Err()

	s.mu.Lock()
	if current, ok := s.live[candidateID]; ok && current.attemptID == live.attemptID {
		delete(s.live, candidateID)
	}
	s.mu.Unlock()

	s.log.Info().
		Int("candidate_id", candidateID).
		Str("attempt_id", attempt.ID.String()).
		Str("status", string(attempt.Status)).
		Msg("attempt finalized")
}

// state projects the live attempt into its candidate-facing view.
func (s *SessionService) state(ctx context.Context, live *liveAttempt) *AttemptState {
	attempt := live.session.Attempt()

	questions := make([]model.CandidateQuestion, 0, len(attempt.Questions))
	for _, snap := range attempt.Questions {
		questions = append(questions, snap.ForCandidate())
	}

	remaining := 0
	if !attempt.Status.Terminal() {
		remaining = s.remaining(ctx, live)
	}

	return &AttemptState{
		AttemptID:        attempt.ID,
		AttemptNumber:    attempt.AttemptNumber,
		Status:           attempt.Status,
		Questions:        questions,
		Answers:          attempt.Answers,
		Cursor:           live.session.Cursor(),
		RemainingSeconds: remaining,
		WarningCount:     attempt.WarningCount,
		WarningThreshold: s.cfg.Exam.WarningThreshold,
		TabSwitchCount:   attempt.TabSwitchCount,
		MaxAttempts:      s.cfg.Exam.MaxAttempts,
	}
}
