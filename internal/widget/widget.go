// Package widget содержит оркестратор, который загружает и хранит снимок виджета гильдии.
package widget

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"regexp"
	"slices"
	"strconv"
	"strings"
	"sync"

	"discord-widget/internal/adapters/parser"
	"discord-widget/internal/adapters/transport"
	"discord-widget/internal/domain"
	"discord-widget/internal/ports"

	"github.com/go-resty/resty/v2"
)

const (
	DefaultAPIBaseURL    = "https://discord.com/api"
	DefaultWidgetPageURL = "https://discord.com/widget"
)

// ErrInvalidURL возвращается FromURL для адреса, не похожего на эндпоинт виджета.
var ErrInvalidURL = errors.New("invalid url")

var endpointPattern = regexp.MustCompile(`^https://[^/\s]+/api/guilds/(\d+)/widget\.json$`)

// Widget представляет виджет одной гильдии и последний успешно загруженный снимок.
type Widget struct {
	guildID       int64
	apiBaseURL    string
	widgetPageURL string
	url           string
	widgetURL     string

	transport ports.Transport
	parser    ports.Parser
	logger    *slog.Logger

	mu        sync.RWMutex
	snapshot  domain.Snapshot
	populated bool
}

// Option настраивает Widget.
type Option func(*Widget)

// WithTransport заменяет HTTP транспорт.
func WithTransport(t ports.Transport) Option {
	return func(w *Widget) {
		w.transport = t
	}
}

// WithParser заменяет парсер ответа.
func WithParser(p ports.Parser) Option {
	return func(w *Widget) {
		w.parser = p
	}
}

// WithLogger задает логгер.
func WithLogger(logger *slog.Logger) Option {
	return func(w *Widget) {
		w.logger = logger
	}
}

// WithAPIBaseURL задает базовый адрес API, например "https://discord.com/api".
func WithAPIBaseURL(baseURL string) Option {
	return func(w *Widget) {
		w.apiBaseURL = strings.TrimRight(baseURL, "/")
	}
}

// WithWidgetPageURL задает адрес страницы виджета для людей.
func WithWidgetPageURL(pageURL string) Option {
	return func(w *Widget) {
		w.widgetPageURL = pageURL
	}
}

// New создает виджет для гильдии. Сетевых запросов не выполняет
// и существование гильдии не проверяет.
func New(guildID int64, opts ...Option) *Widget {
	w := &Widget{
		guildID:       guildID,
		apiBaseURL:    DefaultAPIBaseURL,
		widgetPageURL: DefaultWidgetPageURL,
		logger:        slog.Default(),
	}
	for _, opt := range opts {
		opt(w)
	}

	if w.transport == nil {
		w.transport = transport.New(transport.WithLogger(w.logger))
	}
	if w.parser == nil {
		w.parser = parser.NewWidgetParser()
	}

	w.url = fmt.Sprintf("%s/guilds/%d/widget.json", w.apiBaseURL, guildID)
	w.widgetURL = fmt.Sprintf("%s?id=%d", w.widgetPageURL, guildID)
	return w
}

// FromURL создает виджет по адресу вида https://<host>/api/guilds/<id>/widget.json.
func FromURL(rawURL string, opts ...Option) (*Widget, error) {
	match := endpointPattern.FindStringSubmatch(rawURL)
	if match == nil {
		return nil, fmt.Errorf("%w: %q", ErrInvalidURL, rawURL)
	}

	guildID, err := strconv.ParseInt(match[1], 10, 64)
	if err != nil {
		return nil, fmt.Errorf("%w: %q: %v", ErrInvalidURL, rawURL, err)
	}

	return New(guildID, opts...), nil
}

// Fetch синхронно загружает и разбирает виджет, затем целиком заменяет снимок.
// При ошибке предыдущий снимок остается без изменений.
func (w *Widget) Fetch(ctx context.Context) error {
	raw, err := w.transport.Request(ctx, w.url, nil)
	if err != nil {
		return fmt.Errorf("failed to fetch widget %d: %w", w.guildID, err)
	}
	return w.commit(raw)
}

// FetchAsync делает то же, что Fetch, не блокируя вызывающего.
// session заимствуется для запроса и не закрывается; nil - транспорт решает сам.
// Канал получает ровно одно значение (nil при успехе) и закрывается.
// После отмены ctx снимок не меняется, а в канал приходит ctx.Err().
func (w *Widget) FetchAsync(ctx context.Context, session *resty.Client) <-chan error {
	done := make(chan error, 1)
	results := w.transport.RequestAsync(ctx, w.url, session)

	go func() {
		defer close(done)

		select {
		case <-ctx.Done():
			done <- ctx.Err()
		case res := <-results:
			if res.Err != nil {
				done <- fmt.Errorf("failed to fetch widget %d: %w", w.guildID, res.Err)
				return
			}
			if err := ctx.Err(); err != nil {
				done <- err
				return
			}
			done <- w.commit(res.Data)
		}
	}()

	return done
}

func (w *Widget) commit(raw any) error {
	snapshot, err := w.parser.Parse(raw)
	if err != nil {
		w.logger.Warn("Failed to parse widget json", "guild_id", w.guildID, "error", err)
		return err
	}

	w.mu.Lock()
	w.snapshot = *snapshot
	w.populated = true
	w.mu.Unlock()

	w.logger.Debug("Widget snapshot updated",
		"guild_id", w.guildID,
		"members", len(snapshot.Members),
		"channels", len(snapshot.Channels),
		"presence_count", snapshot.PresenceCount,
	)
	return nil
}

// GuildID возвращает ID гильдии, с которым создан виджет.
func (w *Widget) GuildID() int64 {
	return w.guildID
}

// URL возвращает адрес JSON эндпоинта.
func (w *Widget) URL() string {
	return w.url
}

// WidgetURL возвращает адрес страницы виджета.
func (w *Widget) WidgetURL() string {
	return w.widgetURL
}

func (w *Widget) ID() int64 {
	w.mu.RLock()
	defer w.mu.RUnlock()
	return w.snapshot.ID
}

func (w *Widget) PresenceCount() int {
	w.mu.RLock()
	defer w.mu.RUnlock()
	return w.snapshot.PresenceCount
}

func (w *Widget) Name() string {
	w.mu.RLock()
	defer w.mu.RUnlock()
	return w.snapshot.Name
}

func (w *Widget) InstantInvite() string {
	w.mu.RLock()
	defer w.mu.RUnlock()
	return w.snapshot.InstantInvite
}

// Members возвращает копию списка участников в порядке источника.
func (w *Widget) Members() []domain.Member {
	w.mu.RLock()
	defer w.mu.RUnlock()
	return slices.Clone(w.snapshot.Members)
}

// Channels возвращает копию списка каналов, отсортированного по позиции.
func (w *Widget) Channels() []domain.Channel {
	w.mu.RLock()
	defer w.mu.RUnlock()
	return slices.Clone(w.snapshot.Channels)
}

// Snapshot возвращает согласованную копию всего снимка.
func (w *Widget) Snapshot() domain.Snapshot {
	w.mu.RLock()
	defer w.mu.RUnlock()
	return w.snapshot.Clone()
}

// IsPopulated сообщает, была ли хотя бы одна успешная загрузка.
func (w *Widget) IsPopulated() bool {
	w.mu.RLock()
	defer w.mu.RUnlock()
	return w.populated
}

// Equal сравнивает только ID гильдии, загруженные данные не учитываются.
func (w *Widget) Equal(other *Widget) bool {
	if w == nil || other == nil {
		return w == other
	}
	return w.guildID == other.guildID
}

func (w *Widget) String() string {
	w.mu.RLock()
	defer w.mu.RUnlock()

	if !w.populated {
		return fmt.Sprintf("Uninitialized widget (%d)", w.guildID)
	}
	return fmt.Sprintf("Widget (%d) with %d members online in %s (%s)",
		w.snapshot.ID, w.snapshot.PresenceCount, w.snapshot.Name, w.snapshot.InstantInvite)
}
