// Package registry хранит виджеты гильдий, к которым обращался сервер.
package registry

import (
	"context"
	"log/slog"
	"strconv"
	"sync/atomic"
	"time"

	"discord-widget/internal/widget"

	"github.com/puzpuzpuz/xsync"
)

type entry struct {
	widget     *widget.Widget
	lastAccess atomic.Int64
}

func (e *entry) touch(now time.Time) {
	e.lastAccess.Store(now.UnixNano())
}

// Registry выдает один и тот же Widget для одной гильдии.
// Кэширует только виджеты, а не ответы API.
type Registry struct {
	widgets *xsync.MapOf[string, *entry]
	opts    []widget.Option
	logger  *slog.Logger
	now     func() time.Time
}

// New создает реестр; opts применяются к каждому создаваемому виджету.
func New(logger *slog.Logger, opts ...widget.Option) *Registry {
	if logger == nil {
		logger = slog.Default()
	}
	return &Registry{
		widgets: xsync.NewMapOf[*entry](),
		opts:    opts,
		logger:  logger,
		now:     time.Now,
	}
}

func key(guildID int64) string {
	return strconv.FormatInt(guildID, 10)
}

// Get возвращает виджет гильдии, создавая его при первом обращении.
// Отметка обращения ставится под той же блокировкой ключа, что и удаление в CleanupIdle.
func (r *Registry) Get(guildID int64) *widget.Widget {
	now := r.now()
	created := false

	e, _ := r.widgets.Compute(key(guildID), func(old *entry, loaded bool) (*entry, bool) {
		if !loaded {
			old = &entry{widget: widget.New(guildID, r.opts...)}
			created = true
		}
		old.touch(now)
		return old, false
	})

	if created {
		r.logger.Debug("Widget registered", "guild_id", guildID)
	}
	return e.widget
}

// Len возвращает количество виджетов в реестре.
func (r *Registry) Len() int {
	n := 0
	r.widgets.Range(func(string, *entry) bool {
		n++
		return true
	})
	return n
}

// Remove удаляет виджет гильдии. Возвращает false, если его не было.
func (r *Registry) Remove(guildID int64) bool {
	_, ok := r.widgets.LoadAndDelete(key(guildID))
	return ok
}

// CleanupIdle удаляет виджеты, к которым не обращались дольше ttl.
func (r *Registry) CleanupIdle(ttl time.Duration) int {
	deadline := r.now().Add(-ttl).UnixNano()
	var stale []string

	r.widgets.Range(func(k string, e *entry) bool {
		if e.lastAccess.Load() < deadline {
			stale = append(stale, k)
		}
		return true
	})

	removed := 0
	for _, k := range stale {
		// виджет мог быть запрошен после обхода, поэтому проверка повторяется атомарно
		r.widgets.Compute(k, func(old *entry, loaded bool) (*entry, bool) {
			if !loaded {
				return old, true
			}
			if old.lastAccess.Load() < deadline {
				removed++
				return old, true
			}
			return old, false
		})
	}

	if removed > 0 {
		r.logger.Info("Idle widgets removed", "count", removed)
	}
	return removed
}

// StartCleanupTicker запускает периодическую очистку до отмены ctx.
func (r *Registry) StartCleanupTicker(ctx context.Context, interval, ttl time.Duration) {
	ticker := time.NewTicker(interval)
	go func() {
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				r.CleanupIdle(ttl)
			}
		}
	}()
}
