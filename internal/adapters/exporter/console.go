package exporter

import (
	"fmt"
	"io"
	"os"
	"strings"

	"discord-widget/internal/core/services"
	"discord-widget/internal/domain"
	"discord-widget/internal/ports"
)

// ConsoleExporter реализует интерфейс Exporter для вывода снимка в читаемом виде.
type ConsoleExporter struct {
	out   io.Writer
	voice ports.VoiceService
}

// NewConsoleExporter создает новый экземпляр ConsoleExporter. nil out означает stdout.
func NewConsoleExporter(out io.Writer) ports.Exporter {
	if out == nil {
		out = os.Stdout
	}
	return &ConsoleExporter{
		out:   out,
		voice: services.NewVoiceService(),
	}
}

// Export выводит сведения о гильдии, участников и голосовые каналы.
func (e *ConsoleExporter) Export(snapshot domain.Snapshot) error {
	var b strings.Builder

	fmt.Fprintf(&b, "--- %s (%d) ---\n", snapshot.Name, snapshot.ID)
	if snapshot.InstantInvite != "" {
		fmt.Fprintf(&b, "Invite: %s\n", snapshot.InstantInvite)
	} else {
		b.WriteString("Invite: none\n")
	}
	fmt.Fprintf(&b, "Online: %d\n", snapshot.PresenceCount)

	b.WriteString("--- Members ---\n")
	if len(snapshot.Members) == 0 {
		b.WriteString("No members online.\n")
	}
	for i, member := range snapshot.Members {
		fmt.Fprintf(&b, "%d. %s\n", i+1, formatMember(member))
	}

	b.WriteString("--- Voice Channels ---\n")
	roster := e.voice.Roster(snapshot)
	if len(roster.Channels) == 0 {
		b.WriteString("No voice channels.\n")
	}
	for _, ch := range roster.Channels {
		fmt.Fprintf(&b, "%s (%d)\n", ch.Channel.Name, len(ch.Members))
		for _, member := range ch.Members {
			fmt.Fprintf(&b, "  - %s%s\n", member, voiceFlags(member))
		}
	}
	if len(roster.Unassigned) > 0 {
		fmt.Fprintf(&b, "Unknown channel (%d)\n", len(roster.Unassigned))
		for _, member := range roster.Unassigned {
			fmt.Fprintf(&b, "  - %s%s\n", member, voiceFlags(member))
		}
	}

	if _, err := io.WriteString(e.out, b.String()); err != nil {
		return fmt.Errorf("failed to write widget: %w", err)
	}
	return nil
}

func formatMember(m domain.Member) string {
	line := fmt.Sprintf("%s [%s]", m, m.Status)
	if game, ok := m.Game.Get(); ok {
		line += ", playing " + game
	}
	return line
}

func voiceFlags(m domain.Member) string {
	var flags []string
	if m.Deaf.OrElse(false) || m.SelfDeaf.OrElse(false) {
		flags = append(flags, "deafened")
	}
	if m.Mute.OrElse(false) || m.SelfMute.OrElse(false) {
		flags = append(flags, "muted")
	}
	if m.Suppress.OrElse(false) {
		flags = append(flags, "suppressed")
	}
	if len(flags) == 0 {
		return ""
	}
	return " (" + strings.Join(flags, ", ") + ")"
}
