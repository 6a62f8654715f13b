package ports

import (
	"context"
	"discord-widget/internal/domain"

	"github.com/go-resty/resty/v2"
)

// Result - результат асинхронного запроса: разобранный JSON либо ошибка.
type Result struct {
	Data any
	Err  error
}

// Transport выполняет один HTTP GET к эндпоинту виджета.
// Переданная сессия заимствуется и никогда не закрывается транспортом.
type Transport interface {
	// Request блокирует вызывающего до получения ответа.
	Request(ctx context.Context, url string, session *resty.Client) (any, error)
	// RequestAsync возвращает канал, в который придет ровно один Result.
	RequestAsync(ctx context.Context, url string, session *resty.Client) <-chan Result
}

// Parser преобразует сырой JSON виджета в снимок.
type Parser interface {
	Parse(raw any) (*domain.Snapshot, error)
	ParseBytes(data []byte) (*domain.Snapshot, error)
}

// DataSource определяет интерфейс для получения сохраненного JSON виджета.
type DataSource interface {
	// Fetch загружает данные из источника и возвращает их в виде байтового среза.
	Fetch() ([]byte, error)
}

// VoiceService раскладывает участников по голосовым каналам.
type VoiceService interface {
	Roster(snapshot domain.Snapshot) domain.VoiceRoster
}

// Exporter определяет интерфейс для вывода результата.
type Exporter interface {
	// Export выводит снимок виджета.
	Export(snapshot domain.Snapshot) error
}
