package service

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"github.com/stemsi/examhall-backend/internal/config"
	"github.com/stemsi/examhall-backend/internal/events"
	"github.com/stemsi/examhall-backend/internal/model"
)

// MonitorService backs the live exam monitor: a snapshot of running attempts
// plus a Redis pub/sub stream of session events per exam.
type MonitorService struct {
	sessions    SessionStore
	submissions SubmissionLedger
	rdb         *redis.Client
	log         zerolog.Logger
}

// NewMonitorService creates a new MonitorService.
func NewMonitorService(sessions SessionStore, submissions SubmissionLedger, rdb *redis.Client, log zerolog.Logger) *MonitorService {
	return &MonitorService{
		sessions:    sessions,
		submissions: submissions,
		rdb:         rdb,
		log:         log.With().Str("component", "monitor_service").Logger(),
	}
}

// Snapshot is the state of an exam at a point in time.
type Snapshot struct {
	ExamID    uuid.UUID           `json:"examId"`
	Active    []model.ExamSession `json:"active"`
	Submitted int                 `json:"submitted"`
}

// GetSnapshot loads running sessions and the submission count concurrently.
// The count is best-effort.
func (s *MonitorService) GetSnapshot(ctx context.Context, examID uuid.UUID) (*Snapshot, error) {
	var (
		active    []model.ExamSession
		submitted int
		activeErr error
		countErr  error
		wg        sync.WaitGroup
	)

	wg.Add(2)
	go func() {
		defer wg.Done()
		active, activeErr = s.sessions.ListByExam(ctx, examID)
	}()
	go func() {
		defer wg.Done()
		_, submitted, countErr = s.submissions.List(ctx, nil, &examID, 1, 0)
	}()
	wg.Wait()

	if activeErr != nil {
		return nil, fmt.Errorf("list sessions: %w", activeErr)
	}
	if countErr != nil {
		s.log.Warn().Err(countErr).Str("exam_id", examID.String()).Msg("Failed to count submissions")
	}
	if active == nil {
		active = []model.ExamSession{}
	}
	for i := range active {
		normalize(&active[i])
	}

	return &Snapshot{ExamID: examID, Active: active, Submitted: submitted}, nil
}

// Broadcast forwards a session event to the exam's monitor channel.
func (s *MonitorService) Broadcast(ctx context.Context, evt events.SessionEvent) error {
	payload, err := json.Marshal(evt)
	if err != nil {
		return fmt.Errorf("marshal event: %w", err)
	}
	return s.rdb.Publish(ctx, config.CacheKey.ExamMonitorChannel(evt.ExamID.String()), payload).Err()
}

// Subscribe opens a subscription to the exam's monitor channel. The caller
// closes it.
func (s *MonitorService) Subscribe(ctx context.Context, examID uuid.UUID) *redis.PubSub {
	return s.rdb.Subscribe(ctx, config.CacheKey.ExamMonitorChannel(examID.String()))
}
