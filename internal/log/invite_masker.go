// Package log содержит обработчики slog, общие для сервера и CLI.
package log

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"regexp"
	"strings"
)

// InviteMaskerHandler - обертка для slog.Handler, которая маскирует коды приглашений в логах
type InviteMaskerHandler struct {
	handler slog.Handler
}

// NewInviteMaskerHandler создает новый обработчик с маскировкой приглашений
func NewInviteMaskerHandler(handler slog.Handler) *InviteMaskerHandler {
	return &InviteMaskerHandler{
		handler: handler,
	}
}

// discord.gg/<code>, discord.com/invite/<code>, discordapp.com/invite/<code>
var inviteRegex = regexp.MustCompile(`\b(discord\.gg/|discord(?:app)?\.com/invite/)[A-Za-z0-9-]+`)

// maskInvites заменяет код приглашения на маску, оставляя хост
func maskInvites(text string) string {
	return inviteRegex.ReplaceAllString(text, "${1}***")
}

// Enabled реализует интерфейс slog.Handler
func (h *InviteMaskerHandler) Enabled(ctx context.Context, level slog.Level) bool {
	return h.handler.Enabled(ctx, level)
}

// Handle реализует интерфейс slog.Handler
func (h *InviteMaskerHandler) Handle(ctx context.Context, record slog.Record) error {
	// исходную запись slog может переиспользовать, поэтому собираем новую
	r := slog.NewRecord(record.Time, record.Level, maskInvites(record.Message), record.PC)

	record.Attrs(func(a slog.Attr) bool {
		r.AddAttrs(maskAttr(a))
		return true
	})

	return h.handler.Handle(ctx, r)
}

// WithAttrs реализует интерфейс slog.Handler
func (h *InviteMaskerHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	maskedAttrs := make([]slog.Attr, len(attrs))
	for i, attr := range attrs {
		maskedAttrs[i] = maskAttr(attr)
	}
	return &InviteMaskerHandler{
		handler: h.handler.WithAttrs(maskedAttrs),
	}
}

// WithGroup реализует интерфейс slog.Handler
func (h *InviteMaskerHandler) WithGroup(name string) slog.Handler {
	return &InviteMaskerHandler{
		handler: h.handler.WithGroup(name),
	}
}

func maskAttr(a slog.Attr) slog.Attr {
	return slog.Attr{Key: a.Key, Value: maskAttributeValue(a.Value)}
}

// maskAttributeValue рекурсивно маскирует значения атрибутов
func maskAttributeValue(value slog.Value) slog.Value {
	value = value.Resolve()

	switch value.Kind() {
	case slog.KindString:
		return slog.StringValue(maskInvites(value.String()))
	case slog.KindAny:
		switch v := value.Any().(type) {
		case error:
			return slog.StringValue(maskInvites(v.Error()))
		case fmt.Stringer:
			return slog.StringValue(maskInvites(v.String()))
		}
		return value
	case slog.KindGroup:
		group := value.Group()
		maskedGroup := make([]slog.Attr, len(group))
		for i, attr := range group {
			maskedGroup[i] = maskAttr(attr)
		}
		return slog.GroupValue(maskedGroup...)
	default:
		return value
	}
}

// NewMaskedLogger создает новый экземпляр slog.Logger с маскировкой приглашений
func NewMaskedLogger(handler slog.Handler) *slog.Logger {
	return slog.New(NewInviteMaskerHandler(handler))
}

// ParseLevel переводит уровень из конфигурации в slog.Level; неизвестный уровень - info.
func ParseLevel(level string) slog.Level {
	switch strings.ToLower(level) {
	case "debug":
		return slog.LevelDebug
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// NewLogger создает логгер в формате "text" или "json" (по умолчанию).
func NewLogger(w io.Writer, level, format string, mask bool) *slog.Logger {
	opts := &slog.HandlerOptions{Level: ParseLevel(level)}

	var handler slog.Handler
	if format == "text" {
		handler = slog.NewTextHandler(w, opts)
	} else {
		handler = slog.NewJSONHandler(w, opts)
	}

	if mask {
		return NewMaskedLogger(handler)
	}
	return slog.New(handler)
}
