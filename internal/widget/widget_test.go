package widget

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"discord-widget/internal/adapters/parser"
	"discord-widget/internal/adapters/transport"
	"discord-widget/internal/domain"
	"discord-widget/internal/ports"

	"github.com/go-resty/resty/v2"
	"github.com/samber/mo"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

const guildID int64 = 209559449533284352

const brotoxWidget = `{
	"id": "209559449533284352",
	"name": "Brotox-Community",
	"instant_invite": "https://discord.com/invite/T8EBPnvp",
	"channels": [
		{"id": "286892988506832897", "name": "AFK", "position": 0}
	],
	"members": [
		{
			"id": "0",
			"username": "Brotox Bot 🐼",
			"discriminator": "0000",
			"avatar": "",
			"status": "online",
			"avatar_url": "https://cdn.discordapp.com/widget-avatars/0.png"
		}
	],
	"presence_count": 1
}`

// fakeDiscord отдает заранее заданный ответ на /api/guilds/{id}/widget.json.
type fakeDiscord struct {
	*httptest.Server
	status atomic.Int32
	body   atomic.Value
	hits   atomic.Int32
}

func newFakeDiscord(t *testing.T, status int, body string) *fakeDiscord {
	t.Helper()
	f := &fakeDiscord{}
	f.set(status, body)
	f.Server = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		f.hits.Add(1)
		if r.URL.Path != "/api/guilds/209559449533284352/widget.json" {
			w.WriteHeader(http.StatusNotFound)
			_, _ = w.Write([]byte(`{"message": "404: Not Found", "code": 0}`))
			return
		}
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(int(f.status.Load()))
		_, _ = w.Write([]byte(f.body.Load().(string)))
	}))
	t.Cleanup(f.Close)
	return f
}

func (f *fakeDiscord) set(status int, body string) {
	f.status.Store(int32(status))
	f.body.Store(body)
}

func (f *fakeDiscord) widget(opts ...Option) *Widget {
	return New(guildID, append([]Option{WithAPIBaseURL(f.URL + "/api")}, opts...)...)
}

func assertUninitialized(t *testing.T, w *Widget) {
	t.Helper()
	assert.False(t, w.IsPopulated())
	assert.Zero(t, w.ID())
	assert.Zero(t, w.PresenceCount())
	assert.Empty(t, w.Name())
	assert.Empty(t, w.InstantInvite())
	assert.Empty(t, w.Members())
	assert.Empty(t, w.Channels())
	assert.True(t, w.Snapshot().IsZero())
}

func TestNew(t *testing.T) {
	t.Run("Вычисляет адреса без сетевых запросов", func(t *testing.T) {
		w := New(guildID)

		assert.Equal(t, guildID, w.GuildID())
		assert.Equal(t, "https://discord.com/api/guilds/209559449533284352/widget.json", w.URL())
		assert.Equal(t, "https://discord.com/widget?id=209559449533284352", w.WidgetURL())
		assertUninitialized(t, w)
		assert.Equal(t, "Uninitialized widget (209559449533284352)", w.String())
	})

	t.Run("Базовые адреса настраиваются", func(t *testing.T) {
		w := New(1, WithAPIBaseURL("http://localhost:8080/api/"), WithWidgetPageURL("http://localhost/widget"))

		assert.Equal(t, "http://localhost:8080/api/guilds/1/widget.json", w.URL())
		assert.Equal(t, "http://localhost/widget?id=1", w.WidgetURL())
	})

	t.Run("Равенство только по ID гильдии", func(t *testing.T) {
		assert.True(t, New(1).Equal(New(1, WithAPIBaseURL("http://other"))))
		assert.False(t, New(1).Equal(New(2)))
		assert.False(t, New(1).Equal(nil))
	})
}

func TestFromURL(t *testing.T) {
	t.Run("Корректный адрес эндпоинта", func(t *testing.T) {
		w, err := FromURL("https://discord.com/api/guilds/209559449533284352/widget.json")
		require.NoError(t, err)

		assert.Equal(t, guildID, w.GuildID())
		assert.Equal(t, "https://discord.com/api/guilds/209559449533284352/widget.json", w.URL())
	})

	t.Run("Другой хост допускается", func(t *testing.T) {
		w, err := FromURL("https://ptb.discord.com/api/guilds/42/widget.json")
		require.NoError(t, err)
		assert.Equal(t, int64(42), w.GuildID())
	})

	invalid := []string{
		"https://discord.com/invite/abc",
		"http://discord.com/api/guilds/1/widget.json",
		"https://discord.com/api/guilds/abc/widget.json",
		"https://discord.com/api/guilds/1/widget.json?x=1",
		"https://discord.com/api/guilds/1/widget",
		"https://discord.com/api/guilds//widget.json",
		"https://discord.com/api/guilds/99999999999999999999999/widget.json",
		"",
	}
	for _, url := range invalid {
		t.Run("Некорректный адрес "+url, func(t *testing.T) {
			w, err := FromURL(url)
			assert.Nil(t, w)
			assert.ErrorIs(t, err, ErrInvalidURL)
		})
	}
}

func TestWidget_Fetch(t *testing.T) {
	t.Run("Сквозная загрузка эталонного виджета", func(t *testing.T) {
		discord := newFakeDiscord(t, http.StatusOK, brotoxWidget)
		w := discord.widget()

		require.NoError(t, w.Fetch(context.Background()))

		assert.True(t, w.IsPopulated())
		assert.Equal(t, guildID, w.ID())
		assert.Equal(t, "Brotox-Community", w.Name())
		assert.Equal(t, "https://discord.com/invite/T8EBPnvp", w.InstantInvite())
		assert.Equal(t, 1, w.PresenceCount())
		assert.Equal(t, []domain.Channel{domain.NewChannel(286892988506832897, "AFK", 0)}, w.Channels())

		expected := domain.NewMember(0, "Brotox Bot 🐼", mo.Some("0000"),
			"https://cdn.discordapp.com/widget-avatars/0.png", "online", "")
		members := w.Members()
		require.Len(t, members, 1)
		assert.True(t, members[0].Equal(expected))
		assert.False(t, members[0].IsInVoice())

		assert.Equal(t,
			"Widget (209559449533284352) with 1 members online in Brotox-Community (https://discord.com/invite/T8EBPnvp)",
			w.String())
	})

	t.Run("404 - ошибка транспорта, снимок не инициализирован", func(t *testing.T) {
		discord := newFakeDiscord(t, http.StatusNotFound, `{"message": "Unknown Guild", "code": 10004}`)
		w := discord.widget()

		err := w.Fetch(context.Background())

		var te *transport.TransportError
		require.True(t, errors.As(err, &te))
		assert.Equal(t, http.StatusNotFound, te.StatusCode)
		assertUninitialized(t, w)
	})

	t.Run("Ответ с message - ошибка разбора, снимок не инициализирован", func(t *testing.T) {
		discord := newFakeDiscord(t, http.StatusOK, `{"message": "Unknown Guild", "code": 10004}`)
		w := discord.widget()

		err := w.Fetch(context.Background())

		require.ErrorIs(t, err, parser.ErrAPIResponse)
		assert.Contains(t, err.Error(), "Unknown Guild")
		assertUninitialized(t, w)
	})

	t.Run("Ошибка не портит ранее загруженный снимок", func(t *testing.T) {
		discord := newFakeDiscord(t, http.StatusOK, brotoxWidget)
		w := discord.widget()
		require.NoError(t, w.Fetch(context.Background()))
		before := w.Snapshot()

		discord.set(http.StatusOK, `{"id": "1", "name": "broken", "instant_invite": "", "presence_count": 0,
			"members": [{"id": "1"}]}`)
		require.ErrorIs(t, w.Fetch(context.Background()), parser.ErrMalformed)
		assert.Equal(t, before, w.Snapshot())

		discord.set(http.StatusInternalServerError, `{}`)
		require.Error(t, w.Fetch(context.Background()))
		assert.Equal(t, before, w.Snapshot())
	})

	t.Run("Успешная загрузка полностью заменяет снимок", func(t *testing.T) {
		discord := newFakeDiscord(t, http.StatusOK, brotoxWidget)
		w := discord.widget()
		require.NoError(t, w.Fetch(context.Background()))

		discord.set(http.StatusOK, `{"id": "209559449533284352", "name": "Renamed", "instant_invite": null, "presence_count": 0}`)
		require.NoError(t, w.Fetch(context.Background()))

		assert.Equal(t, "Renamed", w.Name())
		assert.Empty(t, w.InstantInvite())
		assert.Empty(t, w.Members())
		assert.Empty(t, w.Channels())
	})

	t.Run("Аксессоры возвращают копии", func(t *testing.T) {
		discord := newFakeDiscord(t, http.StatusOK, brotoxWidget)
		w := discord.widget()
		require.NoError(t, w.Fetch(context.Background()))

		members := w.Members()
		members[0].Username = "changed"
		channels := w.Channels()
		channels[0].Name = "changed"

		assert.Equal(t, "Brotox Bot 🐼", w.Members()[0].Username)
		assert.Equal(t, "AFK", w.Channels()[0].Name)
	})

	t.Run("Конкурентные загрузки одного виджета", func(t *testing.T) {
		discord := newFakeDiscord(t, http.StatusOK, brotoxWidget)
		w := discord.widget()

		var wg sync.WaitGroup
		for i := 0; i < 8; i++ {
			wg.Add(1)
			go func() {
				defer wg.Done()
				assert.NoError(t, w.Fetch(context.Background()))
				_ = w.Members()
				_ = w.String()
			}()
		}
		wg.Wait()

		assert.Equal(t, "Brotox-Community", w.Name())
		assert.Equal(t, int32(8), discord.hits.Load())
	})
}

func TestWidget_FetchAsync(t *testing.T) {
	t.Run("Асинхронная загрузка с общей сессией", func(t *testing.T) {
		discord := newFakeDiscord(t, http.StatusOK, brotoxWidget)
		session := resty.New()
		w := discord.widget()

		err := <-w.FetchAsync(context.Background(), session)
		require.NoError(t, err)
		assert.Equal(t, "Brotox-Community", w.Name())

		// Сессия не закрыта транспортом и пригодна для других виджетов
		other := discord.widget()
		require.NoError(t, <-other.FetchAsync(context.Background(), session))
		assert.Equal(t, int32(2), discord.hits.Load())
	})

	t.Run("Без сессии работает так же", func(t *testing.T) {
		discord := newFakeDiscord(t, http.StatusOK, brotoxWidget)
		w := discord.widget()

		require.NoError(t, <-w.FetchAsync(context.Background(), nil))
		assert.Len(t, w.Members(), 1)
	})

	t.Run("Асинхронная загрузка валидирует статус так же, как синхронная", func(t *testing.T) {
		discord := newFakeDiscord(t, http.StatusNotFound, `{}`)
		w := discord.widget()

		err := <-w.FetchAsync(context.Background(), nil)

		assert.True(t, transport.IsStatus(err, http.StatusNotFound))
		assertUninitialized(t, w)
	})

	t.Run("Вызывающий не блокируется на время запроса", func(t *testing.T) {
		release := make(chan struct{})
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			<-release
			_, _ = w.Write([]byte(brotoxWidget))
		}))
		defer srv.Close()

		w := New(guildID, WithAPIBaseURL(srv.URL+"/api"))
		done := w.FetchAsync(context.Background(), nil)

		select {
		case <-done:
			t.Fatal("FetchAsync завершился до ответа сервера")
		case <-time.After(20 * time.Millisecond):
		}

		close(release)
		require.NoError(t, <-done)
		assert.Equal(t, "Brotox-Community", w.Name())
	})

	t.Run("Отмена контекста не меняет снимок", func(t *testing.T) {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			<-r.Context().Done()
		}))
		defer srv.Close()

		w := New(guildID, WithAPIBaseURL(srv.URL+"/api"))
		ctx, cancel := context.WithCancel(context.Background())
		done := w.FetchAsync(ctx, nil)
		cancel()

		assert.ErrorIs(t, <-done, context.Canceled)
		assertUninitialized(t, w)
	})
}

type mockTransport struct {
	mock.Mock
}

func (m *mockTransport) Request(ctx context.Context, url string, session *resty.Client) (any, error) {
	args := m.Called(ctx, url, session)
	return args.Get(0), args.Error(1)
}

func (m *mockTransport) RequestAsync(ctx context.Context, url string, session *resty.Client) <-chan ports.Result {
	out := make(chan ports.Result, 1)
	data, err := m.Request(ctx, url, session)
	out <- ports.Result{Data: data, Err: err}
	close(out)
	return out
}

func TestWidget_WithTransport(t *testing.T) {
	t.Run("Пустые данные от транспорта - ошибка разбора", func(t *testing.T) {
		tr := new(mockTransport)
		tr.On("Request", mock.Anything, "https://discord.com/api/guilds/1/widget.json", (*resty.Client)(nil)).
			Return(nil, nil).Once()

		w := New(1, WithTransport(tr))
		err := w.Fetch(context.Background())

		assert.ErrorIs(t, err, parser.ErrNoData)
		assertUninitialized(t, w)
		tr.AssertExpectations(t)
	})

	t.Run("Сессия передается транспорту как есть", func(t *testing.T) {
		session := resty.New()
		tr := new(mockTransport)
		tr.On("Request", mock.Anything, mock.Anything, session).
			Return(map[string]any{"id": "1", "name": "g", "instant_invite": "", "presence_count": 0}, nil).Once()

		w := New(1, WithTransport(tr))
		require.NoError(t, <-w.FetchAsync(context.Background(), session))
		assert.Equal(t, "g", w.Name())
		tr.AssertExpectations(t)
	})
}
