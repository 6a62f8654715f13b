package exporter

import (
	"encoding/json"
	"fmt"
	"io"
	"os"

	"discord-widget/internal/domain"
	"discord-widget/internal/ports"
)

// JSONExporter выводит снимок в JSON; ID остаются строками, как в ответе Discord.
type JSONExporter struct {
	out    io.Writer
	indent bool
}

// NewJSONExporter создает новый экземпляр JSONExporter. nil out означает stdout.
func NewJSONExporter(out io.Writer, indent bool) ports.Exporter {
	if out == nil {
		out = os.Stdout
	}
	return &JSONExporter{out: out, indent: indent}
}

// Export кодирует снимок целиком.
func (e *JSONExporter) Export(snapshot domain.Snapshot) error {
	enc := json.NewEncoder(e.out)
	if e.indent {
		enc.SetIndent("", "  ")
	}
	if err := enc.Encode(snapshot); err != nil {
		return fmt.Errorf("failed to encode widget: %w", err)
	}
	return nil
}
