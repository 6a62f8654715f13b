package transport

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"

	"discord-widget/internal/ports"

	"github.com/go-resty/resty/v2"
)

// TransportError описывает неудачный запрос к эндпоинту виджета:
// статус, отличный от 200, сетевую ошибку или тело, не являющееся JSON.
type TransportError struct {
	URL        string
	StatusCode int
	Msg        string
	Err        error
}

func (e *TransportError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s (%s): %v", e.Msg, e.URL, e.Err)
	}
	return fmt.Sprintf("%s (%s)", e.Msg, e.URL)
}

func (e *TransportError) Unwrap() error {
	return e.Err
}

// IsStatus сообщает, что err - TransportError с указанным HTTP статусом.
func IsStatus(err error, code int) bool {
	var te *TransportError
	return errors.As(err, &te) && te.StatusCode == code
}

// HTTPTransport выполняет запросы к API виджета через resty.
type HTTPTransport struct {
	session   *resty.Client
	userAgent string
	logger    *slog.Logger
}

// Option настраивает HTTPTransport.
type Option func(*HTTPTransport)

// WithSession задает сессию по умолчанию. Транспорт ее только заимствует.
func WithSession(session *resty.Client) Option {
	return func(t *HTTPTransport) {
		t.session = session
	}
}

// WithUserAgent задает заголовок User-Agent для каждого запроса.
func WithUserAgent(userAgent string) Option {
	return func(t *HTTPTransport) {
		t.userAgent = userAgent
	}
}

// WithLogger задает логгер транспорта.
func WithLogger(logger *slog.Logger) Option {
	return func(t *HTTPTransport) {
		t.logger = logger
	}
}

// New создает новый экземпляр HTTPTransport.
func New(opts ...Option) *HTTPTransport {
	t := &HTTPTransport{logger: slog.Default()}
	for _, opt := range opts {
		opt(t)
	}
	return t
}

var _ ports.Transport = (*HTTPTransport)(nil)

// Request выполняет ровно один GET и возвращает разобранное тело ответа.
// Сессия выбирается так: переданная в вызов, затем сессия транспорта,
// иначе создается собственная, и ее соединения закрываются после запроса.
func (t *HTTPTransport) Request(ctx context.Context, url string, session *resty.Client) (any, error) {
	client, release := t.acquire(session)
	defer release()

	req := client.R().SetContext(ctx)
	if t.userAgent != "" {
		req.SetHeader("User-Agent", t.userAgent)
	}

	resp, err := req.Get(url)
	if err != nil {
		t.logger.Error("Error fetching widget", "url", url, "error", err)
		return nil, &TransportError{URL: url, Msg: "network error", Err: err}
	}

	if resp.StatusCode() != http.StatusOK {
		t.logger.Error("HTTP error occurred", "url", url, "status", resp.StatusCode())
		return nil, &TransportError{
			URL:        url,
			StatusCode: resp.StatusCode(),
			Msg:        fmt.Sprintf("HTTP error: %d", resp.StatusCode()),
		}
	}

	data, err := decodeJSON(resp.Body())
	if err != nil {
		return nil, &TransportError{URL: url, StatusCode: resp.StatusCode(), Msg: "invalid json body", Err: err}
	}

	return data, nil
}

// RequestAsync выполняет Request в отдельной горутине.
// Канал получает один результат и закрывается.
func (t *HTTPTransport) RequestAsync(ctx context.Context, url string, session *resty.Client) <-chan ports.Result {
	out := make(chan ports.Result, 1)
	go func() {
		defer close(out)
		data, err := t.Request(ctx, url, session)
		out <- ports.Result{Data: data, Err: err}
	}()
	return out
}

func (t *HTTPTransport) acquire(session *resty.Client) (*resty.Client, func()) {
	if session != nil {
		return session, func() {}
	}
	if t.session != nil {
		return t.session, func() {}
	}

	private := resty.New()
	return private, func() {
		private.GetClient().CloseIdleConnections()
	}
}

// decodeJSON сохраняет числа как json.Number: ID в Discord не помещаются в float64.
func decodeJSON(body []byte) (any, error) {
	dec := json.NewDecoder(bytes.NewReader(body))
	dec.UseNumber()

	var data any
	if err := dec.Decode(&data); err != nil {
		return nil, err
	}
	if err := dec.Decode(&struct{}{}); !errors.Is(err, io.EOF) {
		return nil, errors.New("unexpected data after json value")
	}
	return data, nil
}
