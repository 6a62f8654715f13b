package parser

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"slices"

	"discord-widget/internal/domain"
	"discord-widget/internal/ports"

	"github.com/samber/mo"
)

// WidgetParser реализует интерфейс Parser для JSON виджета Discord.
type WidgetParser struct{}

// NewWidgetParser создает новый экземпляр WidgetParser.
func NewWidgetParser() ports.Parser {
	return &WidgetParser{}
}

// ParseBytes декодирует тело ответа и передает результат в Parse.
func (p *WidgetParser) ParseBytes(data []byte) (*domain.Snapshot, error) {
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()

	var raw any
	if err := dec.Decode(&raw); err != nil {
		if errors.Is(err, io.EOF) {
			return nil, &ParseError{Kind: ErrNoData}
		}
		return nil, &ParseError{Kind: ErrMalformed, Err: fmt.Errorf("failed to unmarshal json: %w", err)}
	}
	if err := dec.Decode(&struct{}{}); !errors.Is(err, io.EOF) {
		return nil, &ParseError{Kind: ErrMalformed, Err: errors.New("unexpected data after json value")}
	}

	return p.Parse(raw)
}

// Parse проверяет структуру JSON и строит снимок виджета.
// Снимок возвращается только целиком: при любой ошибке результат nil.
func (p *WidgetParser) Parse(raw any) (*domain.Snapshot, error) {
	if raw == nil {
		return nil, &ParseError{Kind: ErrNoData}
	}

	obj, ok := asObject(raw)
	if !ok {
		return nil, &ParseError{Kind: ErrNotObject, Err: fmt.Errorf("top level is %T", raw)}
	}

	if message, ok := obj["message"]; ok {
		perr := &ParseError{Kind: ErrAPIResponse}
		if message != nil {
			perr.APIMessage = fmt.Sprint(message)
		}
		if code, err := obj.getInt("code"); err == nil {
			perr.APICode = code
		}
		return nil, perr
	}

	snapshot, err := parseSnapshot(obj)
	if err != nil {
		perr := &ParseError{Kind: ErrMalformed, Err: err}
		var fe *fieldError
		if errors.As(err, &fe) {
			perr.Path = fe.path
			perr.Err = fe.err
		}
		return nil, perr
	}

	return snapshot, nil
}

func parseSnapshot(obj object) (*domain.Snapshot, error) {
	id, err := obj.getInt64("id")
	if err != nil {
		return nil, err
	}
	presenceCount, err := obj.getInt("presence_count")
	if err != nil {
		return nil, err
	}
	name, err := obj.getString("name")
	if err != nil {
		return nil, err
	}
	// У гильдий без настроенного приглашения instant_invite равен null.
	invite, err := obj.getNullableString("instant_invite")
	if err != nil {
		return nil, err
	}

	members, err := parseMembers(obj)
	if err != nil {
		return nil, err
	}
	channels, err := parseChannels(obj)
	if err != nil {
		return nil, err
	}

	return &domain.Snapshot{
		ID:            id,
		PresenceCount: presenceCount,
		Name:          name,
		InstantInvite: invite.OrEmpty(),
		Channels:      channels,
		Members:       members,
	}, nil
}

func parseMembers(obj object) ([]domain.Member, error) {
	items, err := obj.optionalArray("members")
	if err != nil {
		return nil, err
	}

	members := make([]domain.Member, 0, len(items))
	for i, item := range items {
		m, err := parseMember(item)
		if err != nil {
			return nil, atPath(fmt.Sprintf("members[%d]", i), err)
		}
		members = append(members, m)
	}
	return members, nil
}

func parseMember(item any) (domain.Member, error) {
	obj, ok := asObject(item)
	if !ok {
		return domain.Member{}, wrongType("object", item)
	}

	id, err := obj.getInt64("id")
	if err != nil {
		return domain.Member{}, err
	}
	username, err := obj.getString("username")
	if err != nil {
		return domain.Member{}, err
	}
	discriminator, err := obj.getNullableString("discriminator")
	if err != nil {
		return domain.Member{}, err
	}
	avatarURL, err := obj.getString("avatar_url")
	if err != nil {
		return domain.Member{}, err
	}
	status, err := obj.getString("status")
	if err != nil {
		return domain.Member{}, err
	}
	avatar, err := obj.getNullableString("avatar")
	if err != nil {
		return domain.Member{}, err
	}

	m := domain.NewMember(id, username, discriminator, avatarURL, status, avatar.OrEmpty())

	flags := []struct {
		key string
		dst *mo.Option[bool]
	}{
		{"deaf", &m.Deaf},
		{"mute", &m.Mute},
		{"self_deaf", &m.SelfDeaf},
		{"self_mute", &m.SelfMute},
		{"suppress", &m.Suppress},
	}
	for _, f := range flags {
		if *f.dst, err = obj.optionalBool(f.key); err != nil {
			return domain.Member{}, err
		}
	}

	if m.ChannelID, err = obj.optionalInt64("channel_id"); err != nil {
		return domain.Member{}, err
	}

	if m.Game, err = parseGame(obj); err != nil {
		return domain.Member{}, err
	}

	return m, nil
}

func parseGame(obj object) (mo.Option[string], error) {
	value, ok := obj["game"]
	if !ok || value == nil {
		return mo.None[string](), nil
	}

	game, ok := asObject(value)
	if !ok {
		return mo.None[string](), &fieldError{path: "game", err: wrongType("object", value)}
	}
	name, err := game.getString("name")
	if err != nil {
		return mo.None[string](), atPath("game", err)
	}
	return mo.Some(name), nil
}

func parseChannels(obj object) ([]domain.Channel, error) {
	items, err := obj.optionalArray("channels")
	if err != nil {
		return nil, err
	}

	channels := make([]domain.Channel, 0, len(items))
	for i, item := range items {
		c, err := parseChannel(item)
		if err != nil {
			return nil, atPath(fmt.Sprintf("channels[%d]", i), err)
		}
		channels = append(channels, c)
	}

	slices.SortStableFunc(channels, domain.CompareChannels)
	return channels, nil
}

func parseChannel(item any) (domain.Channel, error) {
	obj, ok := asObject(item)
	if !ok {
		return domain.Channel{}, wrongType("object", item)
	}

	id, err := obj.getInt64("id")
	if err != nil {
		return domain.Channel{}, err
	}
	name, err := obj.getString("name")
	if err != nil {
		return domain.Channel{}, err
	}
	position, err := obj.getInt("position")
	if err != nil {
		return domain.Channel{}, err
	}

	return domain.NewChannel(id, name, position), nil
}
