package server

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"sync"
	"time"

	"discord-widget/internal/adapters/parser"
	"discord-widget/internal/adapters/transport"
	"discord-widget/internal/domain"
)

// RefreshStatus - этап фонового обновления виджета.
type RefreshStatus string

const (
	RefreshQueued  RefreshStatus = "queued"
	RefreshRunning RefreshStatus = "running"
	RefreshDone    RefreshStatus = "done"
	RefreshFailed  RefreshStatus = "failed"
)

// FailureKind - причина неудачного обновления, понятная клиенту без разбора текста ошибки.
type FailureKind string

const (
	FailureNone            FailureKind = ""
	FailureGuildNotFound   FailureKind = "guild_not_found"
	FailureWidgetDisabled  FailureKind = "widget_disabled"
	FailureInvalidResponse FailureKind = "invalid_response"
	FailureTimeout         FailureKind = "timeout"
	FailureUpstream        FailureKind = "upstream"
)

// classifyFailure сводит ошибку Fetch к FailureKind.
func classifyFailure(err error) FailureKind {
	switch {
	case err == nil:
		return FailureNone
	case errors.Is(err, context.DeadlineExceeded), errors.Is(err, context.Canceled):
		return FailureTimeout
	case transport.IsStatus(err, http.StatusNotFound):
		return FailureGuildNotFound
	case errors.Is(err, parser.ErrAPIResponse):
		return FailureWidgetDisabled
	}

	var perr *parser.ParseError
	if errors.As(err, &perr) {
		return FailureInvalidResponse
	}
	return FailureUpstream
}

// RefreshTask - одно фоновое обновление виджета гильдии.
type RefreshTask struct {
	ID         string
	GuildID    int64
	Status     RefreshStatus
	Snapshot   *domain.Snapshot
	Failure    FailureKind
	Error      string
	QueuedAt   time.Time
	StartedAt  time.Time
	FinishedAt time.Time
	ExpiresAt  time.Time
}

// Duration - время выполнения; ноль, пока задача не завершена.
func (t RefreshTask) Duration() time.Duration {
	if t.StartedAt.IsZero() || t.FinishedAt.IsZero() {
		return 0
	}
	return t.FinishedAt.Sub(t.StartedAt)
}

// RefreshStore хранит задачи обновления до истечения их TTL.
type RefreshStore struct {
	tasks map[string]*RefreshTask
	mutex sync.RWMutex
	now   func() time.Time
}

func NewRefreshStore() *RefreshStore {
	return &RefreshStore{
		tasks: make(map[string]*RefreshTask),
		now:   time.Now,
	}
}

// Enqueue регистрирует обновление гильдии, поставленное в пул.
func (rs *RefreshStore) Enqueue(taskID string, guildID int64, ttl time.Duration) {
	rs.mutex.Lock()
	defer rs.mutex.Unlock()

	now := rs.now()
	rs.tasks[taskID] = &RefreshTask{
		ID:        taskID,
		GuildID:   guildID,
		Status:    RefreshQueued,
		QueuedAt:  now,
		ExpiresAt: now.Add(ttl),
	}
}

// Start отмечает, что воркер взял задачу.
func (rs *RefreshStore) Start(taskID string) error {
	return rs.update(taskID, func(t *RefreshTask) error {
		if t.Status != RefreshQueued {
			return fmt.Errorf("refresh %s is already %s", taskID, t.Status)
		}
		t.Status = RefreshRunning
		t.StartedAt = rs.now()
		return nil
	})
}

// Finish завершает задачу: при err == nil сохраняет снимок, иначе причину ошибки.
func (rs *RefreshStore) Finish(taskID string, snapshot domain.Snapshot, err error) error {
	return rs.update(taskID, func(t *RefreshTask) error {
		switch t.Status {
		case RefreshDone, RefreshFailed:
			return fmt.Errorf("refresh %s is already %s", taskID, t.Status)
		}

		t.FinishedAt = rs.now()
		if t.StartedAt.IsZero() {
			t.StartedAt = t.FinishedAt
		}
		if err != nil {
			t.Status = RefreshFailed
			t.Failure = classifyFailure(err)
			t.Error = err.Error()
			return nil
		}
		t.Status = RefreshDone
		t.Snapshot = &snapshot
		return nil
	})
}

func (rs *RefreshStore) update(taskID string, fn func(*RefreshTask) error) error {
	rs.mutex.Lock()
	defer rs.mutex.Unlock()

	task, exists := rs.tasks[taskID]
	if !exists {
		return fmt.Errorf("refresh %s not found", taskID)
	}
	return fn(task)
}

// Get возвращает копию задачи. Просроченная задача считается отсутствующей.
func (rs *RefreshStore) Get(taskID string) (RefreshTask, bool) {
	rs.mutex.RLock()
	defer rs.mutex.RUnlock()

	task, exists := rs.tasks[taskID]
	if !exists || rs.now().After(task.ExpiresAt) {
		return RefreshTask{}, false
	}
	return *task, true
}

// CleanupExpired удаляет просроченные задачи и возвращает их число.
func (rs *RefreshStore) CleanupExpired() int {
	rs.mutex.Lock()
	defer rs.mutex.Unlock()

	removed := 0
	now := rs.now()
	for taskID, task := range rs.tasks {
		if now.After(task.ExpiresAt) {
			delete(rs.tasks, taskID)
			removed++
		}
	}
	return removed
}

func (rs *RefreshStore) StartCleanupTicker(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	go func() {
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				rs.CleanupExpired()
			}
		}
	}()
}
