package services

import (
	"discord-widget/internal/domain"
	"discord-widget/internal/ports"
)

// VoiceServiceImpl реализует интерфейс VoiceService.
type VoiceServiceImpl struct{}

// NewVoiceService создает новый экземпляр VoiceServiceImpl.
func NewVoiceService() ports.VoiceService {
	return &VoiceServiceImpl{}
}

// Roster раскладывает участников по голосовым каналам в порядке каналов снимка.
// Внутри канала участники идут в порядке источника.
func (s *VoiceServiceImpl) Roster(snapshot domain.Snapshot) domain.VoiceRoster {
	roster := domain.VoiceRoster{
		Channels:   make([]domain.ChannelRoster, len(snapshot.Channels)),
		Unassigned: []domain.Member{},
	}

	// Индекс канала в roster по его ID
	index := make(map[int64]int, len(snapshot.Channels))
	for i, channel := range snapshot.Channels {
		roster.Channels[i] = domain.ChannelRoster{Channel: channel, Members: []domain.Member{}}
		if _, exists := index[channel.ID]; !exists {
			index[channel.ID] = i
		}
	}

	for _, member := range snapshot.Members {
		channelID, ok := member.ChannelID.Get()
		if !ok {
			continue
		}

		i, known := index[channelID]
		if !known {
			roster.Unassigned = append(roster.Unassigned, member)
			continue
		}
		roster.Channels[i].Members = append(roster.Channels[i].Members, member)
	}

	return roster
}
