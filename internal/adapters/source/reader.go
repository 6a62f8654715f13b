package source

import (
	"fmt"
	"io"

	"discord-widget/internal/ports"
)

// ReaderSource реализует интерфейс DataSource поверх io.Reader (например, stdin).
// Поток читается один раз, повторные вызовы возвращают копию прочитанного.
type ReaderSource struct {
	r    io.Reader
	data []byte
}

// NewReaderSource создает новый экземпляр ReaderSource.
func NewReaderSource(r io.Reader) ports.DataSource {
	return &ReaderSource{r: r}
}

// Fetch возвращает содержимое потока.
func (s *ReaderSource) Fetch() ([]byte, error) {
	if s.data == nil {
		if s.r == nil {
			return nil, fmt.Errorf("reader not set")
		}
		data, err := io.ReadAll(s.r)
		if err != nil {
			return nil, fmt.Errorf("failed to read input: %w", err)
		}
		s.data = data
	}

	// Возвращаем копию данных, чтобы избежать изменений оригинальных данных
	dataCopy := make([]byte, len(s.data))
	copy(dataCopy, s.data)

	return dataCopy, nil
}
