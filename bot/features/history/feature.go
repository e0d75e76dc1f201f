package history

import (
	"jukebox/player"
	"jukebox/service"

	"github.com/bwmarrin/discordgo"
)

// defaultCount is how many entries /history shows without an argument
const defaultCount = 10

type Feature struct {
	historyService service.HistoryService
	registry       *player.Registry
}

func NewFeature(historyService service.HistoryService, registry *player.Registry) *Feature {
	return &Feature{
		historyService: historyService,
		registry:       registry,
	}
}

func (f *Feature) HandleCommand(s *discordgo.Session, i *discordgo.InteractionCreate) {
	f.handleHistory(s, i)
}
