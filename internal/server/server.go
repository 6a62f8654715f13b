package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"

	"discord-widget/internal/adapters/parser"
	"discord-widget/internal/pkg/config"
	"discord-widget/internal/ports"
	"discord-widget/internal/registry"
	"discord-widget/internal/widget"

	"github.com/gammazero/workerpool"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-resty/resty/v2"
	"github.com/google/uuid"
)

// Server представляет HTTP-сервер
type Server struct {
	HTTPServer *http.Server
	cfg        *config.Config
	refreshes  *RefreshStore
	registry   *registry.Registry
	voice      ports.VoiceService
	pool       *workerpool.WorkerPool
	session    *resty.Client
	logger     *slog.Logger
	stop       context.CancelFunc
}

// Deps - зависимости сервера, которые создаются в main.
type Deps struct {
	Registry  *registry.Registry
	Refreshes *RefreshStore
	Voice     ports.VoiceService
	// Session заимствуется всеми фоновыми загрузками и сервером не закрывается.
	Session *resty.Client
	Logger  *slog.Logger
}

// New создает экземпляр Server и запускает фоновую очистку задач и виджетов
func New(cfg *config.Config, deps Deps) (*Server, error) {
	if deps.Registry == nil || deps.Refreshes == nil || deps.Voice == nil {
		return nil, errors.New("server: registry, refresh store and voice service are required")
	}
	if deps.Logger == nil {
		deps.Logger = slog.Default()
	}

	s := &Server{
		cfg:       cfg,
		refreshes: deps.Refreshes,
		registry:  deps.Registry,
		voice:     deps.Voice,
		pool:      workerpool.New(cfg.Fetch.PoolSize),
		session:   deps.Session,
		logger:    deps.Logger,
	}

	chiRouter := chi.NewRouter()

	// Промежуточное ПО
	chiRouter.Use(middleware.RequestID)
	chiRouter.Use(middleware.Logger)
	chiRouter.Use(middleware.Recoverer)

	chiRouter.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})

	chiRouter.Route("/api/v1", func(r chi.Router) {
		r.Route("/widgets/{guildID}", func(r chi.Router) {
			r.Get("/", s.handleWidget)
			r.Get("/voice", s.handleVoice)
			r.Post("/refresh", s.handleRefresh)
		})
		r.Get("/tasks/{taskID}", s.handleTaskStatus)
		r.Get("/tasks/{taskID}/result", s.handleTaskResult)
	})

	s.HTTPServer = &http.Server{
		Addr:         cfg.Address(),
		Handler:      chiRouter,
		ReadTimeout:  config.DefaultReadTimeout,
		WriteTimeout: config.DefaultWriteTimeout,
		IdleTimeout:  config.DefaultIdleTimeout,
	}

	ctx, cancel := context.WithCancel(context.Background())
	s.stop = cancel
	s.refreshes.StartCleanupTicker(ctx, config.DefaultCleanupInterval)
	s.registry.StartCleanupTicker(ctx, config.DefaultCleanupInterval, cfg.Fetch.IdleWidgetTTL)

	return s, nil
}

// handleWidget загружает виджет и возвращает свежий снимок
func (s *Server) handleWidget(w http.ResponseWriter, r *http.Request) {
	wg, ok := s.widgetFromRequest(w, r)
	if !ok {
		return
	}

	if err := wg.Fetch(r.Context()); err != nil {
		s.writeFetchError(w, wg.GuildID(), err)
		return
	}

	writeJSON(w, http.StatusOK, wg.Snapshot())
}

// handleVoice загружает виджет и раскладывает участников по голосовым каналам
func (s *Server) handleVoice(w http.ResponseWriter, r *http.Request) {
	wg, ok := s.widgetFromRequest(w, r)
	if !ok {
		return
	}

	if err := wg.Fetch(r.Context()); err != nil {
		s.writeFetchError(w, wg.GuildID(), err)
		return
	}

	writeJSON(w, http.StatusOK, s.voice.Roster(wg.Snapshot()))
}

// handleRefresh ставит загрузку виджета в пул и сразу возвращает ID задачи
func (s *Server) handleRefresh(w http.ResponseWriter, r *http.Request) {
	wg, ok := s.widgetFromRequest(w, r)
	if !ok {
		return
	}

	taskID := uuid.NewString()
	s.refreshes.Enqueue(taskID, wg.GuildID(), s.cfg.Fetch.TaskTTL)

	s.pool.Submit(func() {
		s.runRefresh(taskID, wg)
	})

	writeJSON(w, http.StatusAccepted, map[string]string{"task_id": taskID})
}

func (s *Server) runRefresh(taskID string, wg *widget.Widget) {
	if err := s.refreshes.Start(taskID); err != nil {
		s.logger.Warn("Refresh task dropped", "task_id", taskID, "error", err)
		return
	}

	taskCtx := context.Background()
	if s.cfg.Fetch.TaskTimeout > 0 {
		var cancel context.CancelFunc
		taskCtx, cancel = context.WithTimeout(taskCtx, s.cfg.Fetch.TaskTimeout)
		defer cancel()
	}

	err := <-wg.FetchAsync(taskCtx, s.session)
	if err != nil {
		s.logger.Warn("Widget refresh failed", "task_id", taskID, "guild_id", wg.GuildID(), "failure", classifyFailure(err), "error", err)
	} else {
		s.logger.Info("Widget refreshed", "task_id", taskID, "guild_id", wg.GuildID())
	}

	if ferr := s.refreshes.Finish(taskID, wg.Snapshot(), err); ferr != nil {
		s.logger.Warn("Refresh result dropped", "task_id", taskID, "error", ferr)
	}
}

func (s *Server) handleTaskStatus(w http.ResponseWriter, r *http.Request) {
	task, ok := s.refreshes.Get(chi.URLParam(r, "taskID"))
	if !ok {
		writeError(w, http.StatusNotFound, "Задача не найдена")
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"task_id":       task.ID,
		"guild_id":      strconv.FormatInt(task.GuildID, 10),
		"status":        task.Status,
		"failure":       task.Failure,
		"error_message": task.Error,
		"duration_ms":   task.Duration().Milliseconds(),
	})
}

func (s *Server) handleTaskResult(w http.ResponseWriter, r *http.Request) {
	task, ok := s.refreshes.Get(chi.URLParam(r, "taskID"))
	if !ok {
		writeError(w, http.StatusNotFound, "Задача не найдена")
		return
	}

	if task.Status != RefreshDone || task.Snapshot == nil {
		writeError(w, http.StatusBadRequest, "Задача не завершена")
		return
	}

	writeJSON(w, http.StatusOK, task.Snapshot)
}

func (s *Server) widgetFromRequest(w http.ResponseWriter, r *http.Request) (*widget.Widget, bool) {
	raw := chi.URLParam(r, "guildID")
	guildID, err := strconv.ParseInt(raw, 10, 64)
	if err != nil || guildID < 0 {
		writeError(w, http.StatusBadRequest, fmt.Sprintf("invalid guild id %q", raw))
		return nil, false
	}
	return s.registry.Get(guildID), true
}

// writeFetchError: 404 от Discord пробрасывается, остальные ошибки - 502
func (s *Server) writeFetchError(w http.ResponseWriter, guildID int64, err error) {
	status := http.StatusBadGateway
	if classifyFailure(err) == FailureGuildNotFound {
		status = http.StatusNotFound
	}

	var perr *parser.ParseError
	if errors.As(err, &perr) && errors.Is(err, parser.ErrAPIResponse) {
		s.logger.Info("Discord rejected widget request", "guild_id", guildID, "message", perr.APIMessage, "code", perr.APICode)
	} else {
		s.logger.Warn("Widget fetch failed", "guild_id", guildID, "status", status, "error", err)
	}

	writeError(w, status, err.Error())
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		slog.Error("Не удалось записать ответ", "error", err)
	}
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}

// ListenAndServe запускает HTTP-сервер
func (s *Server) ListenAndServe() error {
	return s.HTTPServer.ListenAndServe()
}

// Shutdown корректно завершает работу HTTP-сервера, дожидаясь фоновых загрузок
func (s *Server) Shutdown(ctx context.Context) error {
	s.logger.Info("Завершение работы HTTP-сервера")
	err := s.HTTPServer.Shutdown(ctx)

	done := make(chan struct{})
	go func() {
		s.pool.StopWait()
		close(done)
	}()

	select {
	case <-done:
	case <-ctx.Done():
		s.logger.Warn("Фоновые загрузки не завершились до таймаута")
	}
	s.stop()

	return err
}
