package history

import (
	"fmt"
	"strings"
	"testing"
	"time"

	"jukebox/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBuildHistoryEmbed_Empty(t *testing.T) {
	embed := BuildHistoryEmbed(nil, nil)
	assert.Equal(t, "Nothing has been played here yet.", embed.Description)
	assert.Empty(t, embed.Fields)
}

func TestBuildHistoryEmbed_CurrentSession(t *testing.T) {
	started := time.Unix(1700000000, 0)

	embed := BuildHistoryEmbed(nil, &models.PlayerSession{ID: "sess-1", VoiceChannelID: 42, StartedAt: started})
	require.Len(t, embed.Fields, 1)
	assert.Equal(t, "Current session", embed.Fields[0].Name)
	assert.Equal(t, fmt.Sprintf("In <#42> since <t:%d:R>", started.Unix()), embed.Fields[0].Value)

	ended := started.Add(time.Hour)
	closed := BuildHistoryEmbed(nil, &models.PlayerSession{ID: "sess-0", StartedAt: started, EndedAt: &ended})
	assert.Empty(t, closed.Fields)
}

func TestBuildHistoryEmbed(t *testing.T) {
	ended := time.Unix(1700000000, 0)
	entries := []*models.PlayHistoryEntry{
		{Title: "First", Author: "Band", URI: "https://example.com/1", Outcome: models.OutcomeFinished, EndedAt: ended, RequestedBy: "alice"},
		{Title: "Second", Outcome: models.OutcomeFailed, EndedAt: ended},
		{Title: "Third", Outcome: models.OutcomeStopped, EndedAt: ended},
		{Title: "Fourth", Outcome: models.OutcomeInvalid, EndedAt: ended},
	}

	embed := BuildHistoryEmbed(entries, nil)
	lines := strings.Split(embed.Description, "\n")

	assert.Len(t, lines, 4)
	assert.Equal(t, fmt.Sprintf("✅ [Band - First](https://example.com/1) <t:%d:R> • alice", ended.Unix()), lines[0])
	assert.True(t, strings.HasPrefix(lines[1], "⚠️ Second"))
	assert.True(t, strings.HasPrefix(lines[2], "⏭️ Third"))
	assert.True(t, strings.HasPrefix(lines[3], "❔ Fourth"))
}
