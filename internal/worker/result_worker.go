package worker

import (
	"context"
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"github.com/talentgate/assessment-backend/internal/config"
)

const (
	ResultBatchSize    = 50
	ResultBatchTimeout = 2 * time.Second
	ResultPollTimeout  = 1 * time.Second
)

// ResultWorker consumes persist_results_queue: the fallback path for attempt
// finalization when the synchronous ledger write fails. Updates are
// conditional on the row still being IN_PROGRESS, so a late job can never
// overwrite an already-finalized attempt.
type ResultWorker struct {
	pool *pgxpool.Pool
	rdb  *redis.Client
	log  zerolog.Logger
}

// NewResultWorker creates a new ResultWorker.
func NewResultWorker(pool *pgxpool.Pool, rdb *redis.Client, log zerolog.Logger) *ResultWorker {
	return &ResultWorker{
		pool: pool,
		rdb:  rdb,
		log:  log.With().Str("component", "result_worker").Logger(),
	}
}

type resultPayload struct {
	AttemptID       string         `json:"attempt_id"`
	Status          string         `json:"status"`
	FinishedAt      time.Time      `json:"finished_at"`
	DurationSeconds int            `json:"duration_seconds"`
	Answers         map[string]int `json:"answers"`
	WarningCount    int            `json:"warning_count"`
	TabSwitchCount  int            `json:"tab_switch_count"`
	Score           int            `json:"score"`
	CorrectCount    int            `json:"correct_count"`
	TotalQuestions  int            `json:"total_questions"`
}

// Start begins the batching worker loop. Call in a goroutine.
func (w *ResultWorker) Start(ctx context.Context) {
	w.log.Info().Msg("ResultWorker started")

	batch := make([]*resultPayload, 0, ResultBatchSize)
	lastFlush := time.Now()

	for {
		if len(batch) > 0 &&
			(len(batch) >= ResultBatchSize || time.Since(lastFlush) >= ResultBatchTimeout) {

			w.flushSafe(ctx, batch)
			batch = batch[:0]
			lastFlush = time.Now()
		}

		select {
		case <-ctx.Done():
			w.log.Info().Msg("Shutdown requested. Flushing remaining batch...")
			w.flushSafe(context.Background(), batch)
			return

		default:
			item, err := w.rdb.BLPop(ctx, ResultPollTimeout, config.WorkerKey.PersistResultsQueue).Result()
			if err != nil {
				if err != redis.Nil && ctx.Err() == nil {
					w.log.Error().Err(err).Msg("BLPop error")
				}
				continue
			}

			if len(item) < 2 {
				continue
			}

			var p resultPayload
			if err := json.Unmarshal([]byte(item[1]), &p); err != nil {
				w.log.Error().Err(err).Msg("Invalid JSON payload")
				continue
			}

			batch = append(batch, &p)
		}
	}
}

func (w *ResultWorker) flushSafe(ctx context.Context, batch []*resultPayload) {
	if len(batch) == 0 {
		return
	}

	if err := w.bulkFinalize(ctx, batch); err != nil {
		w.log.Warn().Err(err).Msg("bulk finalize failed, using fallback")

		for _, p := range batch {
			if err := w.persistSingle(ctx, p); err != nil {
				w.log.Error().Err(err).Str("attempt_id", p.AttemptID).Msg("persistSingle failed — requeueing")
				raw, _ := json.Marshal(p)
				w.rdb.RPush(ctx, config.WorkerKey.PersistResultsQueue, raw)
			}
		}
		return
	}

	// After successful finalization → delete autosave buffers in Redis.
	w.bulkClearAutosavedAnswers(ctx, batch)
}

// bulkFinalize updates all batched attempts in one statement via UNNEST.
func (w *ResultWorker) bulkFinalize(ctx context.Context, batch []*resultPayload) error {
	n := len(batch)

	ids := make([]uuid.UUID, 0, n)
	statuses := make([]string, 0, n)
	finishedAts := make([]time.Time, 0, n)
	durations := make([]int, 0, n)
	answers := make([][]byte, 0, n)
	warnings := make([]int, 0, n)
	tabSwitches := make([]int, 0, n)
	scores := make([]int, 0, n)
	corrects := make([]int, 0, n)
	totals := make([]int, 0, n)

	for _, p := range batch {
		id, err := uuid.Parse(p.AttemptID)
		if err != nil {
			return err
		}
		answersJSON, err := json.Marshal(p.Answers)
		if err != nil {
			return err
		}
		ids = append(ids, id)
		statuses = append(statuses, p.Status)
		finishedAts = append(finishedAts, p.FinishedAt)
		durations = append(durations, p.DurationSeconds)
		answers = append(answers, answersJSON)
		warnings = append(warnings, p.WarningCount)
		tabSwitches = append(tabSwitches, p.TabSwitchCount)
		scores = append(scores, p.Score)
		corrects = append(corrects, p.CorrectCount)
		totals = append(totals, p.TotalQuestions)
	}

	query := `
		UPDATE attempts AS a
		SET status = t.status,
		    finished_at = t.finished_at,
		    duration_seconds = t.duration_seconds,
		    answers = t.answers,
		    warning_count = t.warning_count,
		    tab_switch_count = t.tab_switch_count,
		    score = t.score,
		    correct_count = t.correct_count,
		    total_questions = t.total_questions
		FROM (
			SELECT
				u.id,
				u.status,
				u.finished_at,
				u.duration_seconds,
				u.answers,
				u.warning_count,
				u.tab_switch_count,
				u.score,
				u.correct_count,
				u.total_questions
			FROM UNNEST(
				$1::uuid[],
				$2::text[],
				$3::timestamptz[],
				$4::int[],
				$5::jsonb[],
				$6::int[],
				$7::int[],
				$8::int[],
				$9::int[],
				$10::int[]
			) AS u (id, status, finished_at, duration_seconds, answers,
			        warning_count, tab_switch_count, score, correct_count, total_questions)
		) AS t
		WHERE a.id = t.id
		  AND a.status = 'IN_PROGRESS'
	`

	_, err := w.pool.Exec(ctx, query, ids, statuses, finishedAts, durations, answers,
		warnings, tabSwitches, scores, corrects, totals)
	return err
}

func (w *ResultWorker) bulkClearAutosavedAnswers(ctx context.Context, batch []*resultPayload) {
	pipe := w.rdb.Pipeline()

	for _, p := range batch {
		pipe.Del(ctx, config.CacheKey.AttemptAnswersKey(p.AttemptID))
		pipe.Del(ctx, config.CacheKey.AttemptStartKey(p.AttemptID))
	}

	_, _ = pipe.Exec(ctx)
}

// persistSingle is the fallback when the bulk statement fails.
func (w *ResultWorker) persistSingle(ctx context.Context, p *resultPayload) error {
	id, err := uuid.Parse(p.AttemptID)
	if err != nil {
		return err
	}
	answersJSON, err := json.Marshal(p.Answers)
	if err != nil {
		return err
	}

	_, err = w.pool.Exec(ctx,
		`UPDATE attempts
		 SET status = $1, finished_at = $2, duration_seconds = $3, answers = $4,
		     warning_count = $5, tab_switch_count = $6, score = $7, correct_count = $8,
		     total_questions = $9
		 WHERE id = $10 AND status = 'IN_PROGRESS'`,
		p.Status, p.FinishedAt, p.DurationSeconds, answersJSON,
		p.WarningCount, p.TabSwitchCount, p.Score, p.CorrectCount,
		p.TotalQuestions, id,
	)
	return err
}
