package service

import (
	"context"
	"encoding/json"
	"sync/atomic"
	"time"

	"github.com/suar-net/suar-playground/internal/model"
	"go.uber.org/zap"
)

const (
	defaultArchiveQueue = 256
	archiveWriteTimeout = 5 * time.Second
)

// RequestArchive persists completed transactions.
type RequestArchive interface {
	Create(ctx context.Context, req *model.ArchivedRequest) error
	Recent(ctx context.Context, limit int) ([]*model.ArchivedRequest, error)
}

// ArchiveService queues completed transactions and writes them in the
// background. A full queue drops the entry; the mock client never waits on
// the database.
type ArchiveService struct {
	repo    RequestArchive
	queue   chan model.RequestLogEntry
	dropped atomic.Int64
	logger  *zap.Logger
}

func NewArchiveService(repo RequestArchive, queueSize int, logger *zap.Logger) *ArchiveService {
	if queueSize <= 0 {
		queueSize = defaultArchiveQueue
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &ArchiveService{repo: repo, queue: make(chan model.RequestLogEntry, queueSize), logger: logger}
}

// Archive enqueues e without blocking.
func (s *ArchiveService) Archive(e model.RequestLogEntry) {
	select {
	case s.queue <- e:
	default:
		n := s.dropped.Add(1)
		s.logger.Warn("archive queue full, dropping entry", zap.String("request_id", e.ID), zap.Int64("dropped_total", n))
	}
}

// Dropped returns how many entries were discarded because the queue was full.
func (s *ArchiveService) Dropped() int64 {
	return s.dropped.Load()
}

// Run drains the queue until ctx is cancelled, then flushes what is left.
func (s *ArchiveService) Run(ctx context.Context) error {
	for {
		select {
		case e := <-s.queue:
			s.write(context.Background(), e)
		case <-ctx.Done():
			for {
				select {
				case e := <-s.queue:
					s.write(context.Background(), e)
				default:
					return nil
				}
			}
		}
	}
}

// Recent returns the newest archived transactions, newest first.
func (s *ArchiveService) Recent(ctx context.Context, limit int) ([]*model.ArchivedRequest, error) {
	if limit <= 0 || limit > 500 {
		limit = 50
	}
	return s.repo.Recent(ctx, limit)
}

func (s *ArchiveService) write(parent context.Context, e model.RequestLogEntry) {
	ctx, cancel := context.WithTimeout(parent, archiveWriteTimeout)
	defer cancel()

	if err := s.repo.Create(ctx, ToArchivedRequest(e)); err != nil {
		s.logger.Error("failed to archive request", zap.String("request_id", e.ID), zap.Error(err))
	}
}

// ToArchivedRequest maps a completed log entry onto its request_history row.
func ToArchivedRequest(e model.RequestLogEntry) *model.ArchivedRequest {
	row := &model.ArchivedRequest{
		ID:             e.ID,
		ExecutedAt:     e.Timestamp,
		RequestMethod:  e.Method,
		RequestURL:     e.FullPath,
		RequestHeaders: mustJSON(e.Headers),
		RequestBody:    bodyText(e.Body),
		ClientIP:       e.IP,
	}
	if e.EndpointID != "" {
		id := e.EndpointID
		row.EndpointID = &id
	}
	if e.Duration != nil {
		row.DurationMs = *e.Duration
	}
	if e.Response != nil {
		row.ResponseStatusCode = e.Response.Status
		row.ResponseHeaders = mustJSON(e.Response.Headers)
		row.ResponseBody = bodyText(e.Response.Body)
	} else {
		row.ResponseHeaders = json.RawMessage("{}")
	}
	return row
}

func bodyText(body any) *string {
	switch b := body.(type) {
	case nil:
		return nil
	case string:
		return &b
	}
	s := string(mustJSON(body))
	return &s
}

func mustJSON(v any) json.RawMessage {
	out, err := json.Marshal(v)
	if err != nil || string(out) == "null" {
		return json.RawMessage("{}")
	}
	return out
}
