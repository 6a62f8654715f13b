package main

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"discord-widget/internal/adapters/parser"
	"discord-widget/internal/widget"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const brotoxWidget = `{"id": "209559449533284352", "name": "Brotox-Community",
	"instant_invite": "https://discord.com/invite/T8EBPnvp",
	"channels": [{"id": "286892988506832897", "name": "AFK", "position": 0}],
	"members": [{"id": "0", "username": "Brotox Bot", "discriminator": "0000", "avatar": "",
		"status": "online", "avatar_url": "https://cdn.discordapp.com/widget-avatars/0.png"}],
	"presence_count": 1}`

func missingConfig(t *testing.T) string {
	t.Helper()
	return filepath.Join(t.TempDir(), "config.yml")
}

func runCLI(t *testing.T, stdin string, args ...string) (string, string, error) {
	t.Helper()
	var stdout, stderr bytes.Buffer
	err := run(context.Background(), append([]string{"-c", missingConfig(t)}, args...),
		strings.NewReader(stdin), &stdout, &stderr)
	return stdout.String(), stderr.String(), err
}

func TestParseFlags(t *testing.T) {
	testCases := []struct {
		name    string
		args    []string
		wantErr string
	}{
		{"нет источника", nil, "exactly one of"},
		{"два источника", []string{"-guild", "1", "-file", "x.json"}, "exactly one of"},
		{"отрицательный ID", []string{"-guild", "-5"}, "invalid guild ID"},
		{"неизвестный формат", []string{"-guild", "1", "-format", "xml"}, "unknown format"},
		{"отрицательный таймаут", []string{"-guild", "1", "-timeout", "-1s"}, "timeout"},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := parseFlags(tc.args, &bytes.Buffer{})
			assert.ErrorContains(t, err, tc.wantErr)
		})
	}

	t.Run("корректные флаги", func(t *testing.T) {
		opts, err := parseFlags([]string{"-url", "https://discord.com/api/guilds/1/widget.json", "-async", "-timeout", "3s"}, &bytes.Buffer{})
		require.NoError(t, err)
		assert.True(t, opts.async)
		assert.Equal(t, 3*time.Second, opts.timeout)
		assert.Equal(t, "text", opts.format)
	})
}

func TestRun(t *testing.T) {
	discord := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/api/guilds/209559449533284352/widget.json" {
			w.WriteHeader(http.StatusNotFound)
			return
		}
		_, _ = w.Write([]byte(brotoxWidget))
	}))
	defer discord.Close()
	t.Setenv("DISCORD_API_BASE_URL", discord.URL+"/api")

	t.Run("Загрузка по ID гильдии", func(t *testing.T) {
		out, logs, err := runCLI(t, "", "-guild", "209559449533284352")
		require.NoError(t, err)

		assert.Contains(t, out, "--- Brotox-Community (209559449533284352) ---")
		assert.Contains(t, out, "1. Brotox Bot#0000 [online]")
		assert.Contains(t, logs, "discord.com/invite/***")
		assert.NotContains(t, logs, "T8EBPnvp")
	})

	t.Run("Асинхронная загрузка по адресу в JSON", func(t *testing.T) {
		out, _, err := runCLI(t, "", "-async", "-format", "json",
			"-url", "https://discord.com/api/guilds/209559449533284352/widget.json")
		require.NoError(t, err)

		var raw map[string]any
		require.NoError(t, json.Unmarshal([]byte(out), &raw))
		assert.Equal(t, "209559449533284352", raw["id"])
	})

	t.Run("Некорректный адрес", func(t *testing.T) {
		_, _, err := runCLI(t, "", "-url", "https://discord.com/invite/abc")
		assert.ErrorIs(t, err, widget.ErrInvalidURL)
	})

	t.Run("Неизвестная гильдия", func(t *testing.T) {
		_, _, err := runCLI(t, "", "-guild", "1")
		assert.ErrorContains(t, err, "HTTP error: 404")
	})

	t.Run("Чтение из файла", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "widget.json")
		require.NoError(t, os.WriteFile(path, []byte(brotoxWidget), 0644))

		out, _, err := runCLI(t, "", "-file", path)
		require.NoError(t, err)
		assert.Contains(t, out, "AFK (0)")
	})

	t.Run("Чтение из stdin", func(t *testing.T) {
		out, _, err := runCLI(t, brotoxWidget, "-file", "-", "-format", "json")
		require.NoError(t, err)
		assert.Contains(t, out, `"name": "Brotox-Community"`)
	})

	t.Run("Ошибка API в сохраненном ответе", func(t *testing.T) {
		_, _, err := runCLI(t, `{"message": "Unknown Guild", "code": 10004}`, "-file", "-")
		assert.ErrorIs(t, err, parser.ErrAPIResponse)
	})
}
