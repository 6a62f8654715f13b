package domain

import "slices"

// Snapshot - полный набор разобранных данных виджета.
// Нулевое значение соответствует неинициализированному виджету.
type Snapshot struct {
	ID            int64     `json:"id,string"`
	PresenceCount int       `json:"presence_count"`
	Name          string    `json:"name"`
	InstantInvite string    `json:"instant_invite"`
	Channels      []Channel `json:"channels"`
	Members       []Member  `json:"members"`
}

// IsZero сообщает, что снимок ни разу не заполнялся.
func (s Snapshot) IsZero() bool {
	return s.ID == 0 && s.PresenceCount == 0 && s.Name == "" && s.InstantInvite == "" &&
		len(s.Channels) == 0 && len(s.Members) == 0
}

// Clone возвращает копию снимка с собственными срезами.
func (s Snapshot) Clone() Snapshot {
	s.Channels = slices.Clone(s.Channels)
	s.Members = slices.Clone(s.Members)
	return s
}

// ChannelRoster - голосовой канал вместе с участниками, которые в нем находятся.
type ChannelRoster struct {
	Channel Channel  `json:"channel"`
	Members []Member `json:"members"`
}

// VoiceRoster - раскладка участников по голосовым каналам.
type VoiceRoster struct {
	Channels []ChannelRoster `json:"channels"`
	// Участники, чей channel_id не совпал ни с одним каналом виджета.
	Unassigned []Member `json:"unassigned"`
}
