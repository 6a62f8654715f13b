package exporter

import (
	"bytes"
	"errors"
	"strings"
	"testing"

	"discord-widget/internal/domain"

	"github.com/samber/mo"
)

func sampleSnapshot() domain.Snapshot {
	alice := domain.NewMember(1, "alice", mo.Some("0001"), "https://cdn.discordapp.com/widget-avatars/1.png", "online", "")
	alice.ChannelID = mo.Some[int64](10)
	alice.SelfMute = mo.Some(true)

	bob := domain.NewMember(2, "bob", mo.None[string](), "https://cdn.discordapp.com/widget-avatars/2.png", "idle", "")
	bob.Game = mo.Some("Factorio")

	ghost := domain.NewMember(3, "ghost", mo.Some("0003"), "", "dnd", "")
	ghost.ChannelID = mo.Some[int64](99)

	return domain.Snapshot{
		ID:            209559449533284352,
		Name:          "Brotox-Community",
		InstantInvite: "https://discord.com/invite/T8EBPnvp",
		PresenceCount: 3,
		Channels:      []domain.Channel{domain.NewChannel(10, "General", 0)},
		Members:       []domain.Member{alice, bob, ghost},
	}
}

type failingWriter struct{}

func (failingWriter) Write([]byte) (int, error) {
	return 0, errors.New("disk full")
}

func TestConsoleExporter(t *testing.T) {
	t.Run("NewConsoleExporter создает корректный экземпляр", func(t *testing.T) {
		exporter := NewConsoleExporter(nil)
		if exporter == nil {
			t.Error("Ожидался экземпляр ConsoleExporter, получен nil")
		}
	})

	t.Run("Export корректно выводит гильдию, участников и каналы", func(t *testing.T) {
		var buf bytes.Buffer
		err := NewConsoleExporter(&buf).Export(sampleSnapshot())
		if err != nil {
			t.Errorf("Неожиданная ошибка: %v", err)
		}

		output := buf.String()
		expectedOutputs := []string{
			"--- Brotox-Community (209559449533284352) ---",
			"Invite: https://discord.com/invite/T8EBPnvp",
			"Online: 3",
			"1. alice#0001 [online]",
			"2. bob [idle], playing Factorio",
			"3. ghost#0003 [dnd]",
			"General (1)",
			"  - alice#0001 (muted)",
			"Unknown channel (1)",
			"  - ghost#0003",
		}

		for _, expected := range expectedOutputs {
			if !strings.Contains(output, expected) {
				t.Errorf("Ожидалось '%s' в выводе, получено:\n%s", expected, output)
			}
		}
	})

	t.Run("Export выводит сообщения для пустого виджета", func(t *testing.T) {
		var buf bytes.Buffer
		err := NewConsoleExporter(&buf).Export(domain.Snapshot{ID: 1, Name: "Empty"})
		if err != nil {
			t.Errorf("Неожиданная ошибка: %v", err)
		}

		output := buf.String()
		for _, expected := range []string{"Invite: none", "No members online.", "No voice channels."} {
			if !strings.Contains(output, expected) {
				t.Errorf("Ожидалось '%s' в выводе", expected)
			}
		}
	})

	t.Run("Export возвращает ошибку записи", func(t *testing.T) {
		err := NewConsoleExporter(failingWriter{}).Export(sampleSnapshot())
		if err == nil {
			t.Error("Ожидалась ошибка, получен nil")
		}
	})
}
