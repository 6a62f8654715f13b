package domain

import (
	"cmp"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"

	"github.com/samber/mo"
)

// ErrNotComparable возвращается при попытке упорядочить Member с объектом другого типа.
var ErrNotComparable = errors.New("values are not comparable")

// Member представляет участника гильдии, который сейчас в сети.
// Необязательные поля имеют три состояния: не задано, false/0, true/значение.
type Member struct {
	ID            int64             `json:"id,string"`
	Username      string            `json:"username"`
	Discriminator mo.Option[string] `json:"discriminator"`
	AvatarURL     string            `json:"avatar_url"`
	Status        string            `json:"status"`
	Avatar        string            `json:"avatar"`

	Game      mo.Option[string] `json:"game"`
	Deaf      mo.Option[bool]   `json:"deaf"`
	Mute      mo.Option[bool]   `json:"mute"`
	SelfDeaf  mo.Option[bool]   `json:"self_deaf"`
	SelfMute  mo.Option[bool]   `json:"self_mute"`
	Suppress  mo.Option[bool]   `json:"suppress"`
	ChannelID mo.Option[int64]  `json:"channel_id"`
}

// NewMember создает участника из обязательных полей. Все необязательные поля не заданы.
func NewMember(id int64, username string, discriminator mo.Option[string], avatarURL, status, avatar string) Member {
	return Member{
		ID:            id,
		Username:      username,
		Discriminator: discriminator,
		AvatarURL:     avatarURL,
		Status:        status,
		Avatar:        avatar,
	}
}

// IsInVoice сообщает, находится ли участник в голосовом канале.
func (m Member) IsInVoice() bool {
	return m.ChannelID.IsPresent()
}

// IsPlaying сообщает, указана ли у участника текущая активность.
func (m Member) IsPlaying() bool {
	return m.Game.IsPresent()
}

// Key возвращает ключ для map. Согласован с Equal.
func (m Member) Key() int64 {
	return m.ID
}

// Equal сравнивает участников только по ID. Для значения другого типа возвращает false.
func (m Member) Equal(other any) bool {
	switch o := other.(type) {
	case Member:
		return m.ID == o.ID
	case *Member:
		return o != nil && m.ID == o.ID
	default:
		return false
	}
}

// Less упорядочивает участников по ID.
func (m Member) Less(other any) (bool, error) {
	switch o := other.(type) {
	case Member:
		return m.ID < o.ID, nil
	case *Member:
		if o != nil {
			return m.ID < o.ID, nil
		}
	}
	return false, fmt.Errorf("%w: '<' between Member and %T", ErrNotComparable, other)
}

// String возвращает "username#discriminator" или просто "username", если дискриминатор не задан.
func (m Member) String() string {
	if discriminator, ok := m.Discriminator.Get(); ok {
		return m.Username + "#" + discriminator
	}
	return m.Username
}

// CompareMembers задает полный порядок по ID для slices.SortFunc.
func CompareMembers(a, b Member) int {
	return cmp.Compare(a.ID, b.ID)
}

type memberFields Member

// memberJSON перекрывает channel_id строкой, как и остальные ID.
type memberJSON struct {
	memberFields
	ChannelID *string `json:"channel_id"`
}

// MarshalJSON пишет channel_id десятичной строкой или null.
func (m Member) MarshalJSON() ([]byte, error) {
	out := memberJSON{memberFields: memberFields(m)}
	if id, ok := m.ChannelID.Get(); ok {
		s := strconv.FormatInt(id, 10)
		out.ChannelID = &s
	}
	return json.Marshal(out)
}

// UnmarshalJSON читает формат, который пишет MarshalJSON.
func (m *Member) UnmarshalJSON(data []byte) error {
	var in memberJSON
	if err := json.Unmarshal(data, &in); err != nil {
		return err
	}

	*m = Member(in.memberFields)
	m.ChannelID = mo.None[int64]()
	if in.ChannelID != nil {
		id, err := strconv.ParseInt(*in.ChannelID, 10, 64)
		if err != nil {
			return fmt.Errorf("invalid channel_id %q: %w", *in.ChannelID, err)
		}
		m.ChannelID = mo.Some(id)
	}
	return nil
}
