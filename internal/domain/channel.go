package domain

import "cmp"

// Channel представляет голосовой канал, который отдает виджет.
type Channel struct {
	ID       int64  `json:"id,string"`
	Name     string `json:"name"`
	Position int    `json:"position"`
}

// NewChannel создает новый канал.
func NewChannel(id int64, name string, position int) Channel {
	return Channel{ID: id, Name: name, Position: position}
}

// Equal сравнивает каналы по ID.
func (c Channel) Equal(other Channel) bool {
	return c.ID == other.ID
}

// Less сравнивает каналы по позиции, ID не учитывается.
func (c Channel) Less(other Channel) bool {
	return c.Position < other.Position
}

func (c Channel) String() string {
	return c.Name
}

// CompareChannels упорядочивает каналы по возрастанию позиции.
func CompareChannels(a, b Channel) int {
	return cmp.Compare(a.Position, b.Position)
}
