package discord

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/disgoorg/disgo/discord"

	"github.com/osa030/radiobox/internal/app/playback"
	"github.com/osa030/radiobox/internal/domain/track"
	"github.com/osa030/radiobox/internal/infra/history"
)

const (
	colorOK     = 0x00ff00
	colorRemove = 0xff0000

	queuePageSize = 10
)

func byline(t track.Track) string {
	if t.Artist == "" {
		return "**" + t.Title + "**"
	}
	return fmt.Sprintf("**%s**\nby %s", t.Title, t.Artist)
}

func addedEmbed(qt track.QueuedTrack, position int) discord.Embed {
	return discord.NewEmbedBuilder().
		SetTitle("✅ Added to Queue").
		SetDescription(byline(qt.Track)).
		SetColor(colorOK).
		SetThumbnail(qt.Track.Thumbnail).
		AddField("Position in queue", strconv.Itoa(position), true).
		AddField("Duration", track.FormatDuration(qt.Track.Duration), true).
		Build()
}

func nowPlayingEmbed(qt track.QueuedTrack, state playback.State) discord.Embed {
	title := "🎵 Now Playing"
	if state == playback.StatePaused {
		title = "⏸️ Paused"
	}
	return discord.NewEmbedBuilder().
		SetTitle(title).
		SetDescription(byline(qt.Track)).
		SetColor(colorOK).
		SetThumbnail(qt.Track.Thumbnail).
		AddField("Duration", track.FormatDuration(qt.Track.Duration), true).
		AddField("Requested by", qt.RequestedBy(), true).
		Build()
}

// queueEmbed lists the first page of the queue with the overflow count in the footer.
func queueEmbed(current *track.QueuedTrack, queue []track.QueuedTrack, radio bool) discord.Embed {
	b := discord.NewEmbedBuilder().
		SetTitle("🎵 Music Queue").
		SetColor(colorOK)

	var desc []string
	if current != nil {
		desc = append(desc, "▶️ Now: **"+current.Track.Title+"**")
	}
	if radio {
		desc = append(desc, "📻 Radio mode is on")
	}
	if len(queue) == 0 {
		desc = append(desc, "Queue is empty!")
	}
	if len(desc) > 0 {
		b.SetDescription(strings.Join(desc, "\n"))
	}

	for i, qt := range queue {
		if i >= queuePageSize {
			break
		}
		value := "by " + qt.Track.Artist + " | " + track.FormatDuration(qt.Track.Duration)
		if qt.Track.Artist == "" {
			value = track.FormatDuration(qt.Track.Duration)
		}
		if who := qt.RequestedBy(); who != "" {
			value += " | " + who
		}
		b.AddField(fmt.Sprintf("%d. %s", i+1, qt.Track.Title), value, false)
	}
	if len(queue) > queuePageSize {
		b.SetFooterText(fmt.Sprintf("... and %d more songs", len(queue)-queuePageSize))
	}
	return b.Build()
}

func removedEmbed(qt track.QueuedTrack) discord.Embed {
	return discord.NewEmbedBuilder().
		SetTitle("🗑️ Song Removed").
		SetDescription(byline(qt.Track)).
		SetColor(colorRemove).
		Build()
}

func movedEmbed(qt track.QueuedTrack, from, to int) discord.Embed {
	return discord.NewEmbedBuilder().
		SetTitle("🔄 Song Moved").
		SetDescription(fmt.Sprintf("**%s**\nMoved from position %d to %d", qt.Track.Title, from, to)).
		SetColor(colorOK).
		Build()
}

func historyEmbed(entries []history.Entry) discord.Embed {
	b := discord.NewEmbedBuilder().
		SetTitle("🕘 Recently Played").
		SetColor(colorOK)
	if len(entries) == 0 {
		b.SetDescription("Nothing has been played yet.")
		return b.Build()
	}
	for i, e := range entries {
		value := e.PlayedAt().Format("2006-01-02 15:04")
		if e.RequestedBy != "" {
			value += " | " + e.RequestedBy
		}
		b.AddField(fmt.Sprintf("%d. %s", i+1, e.Title), value, false)
	}
	return b.Build()
}

func helpEmbed(prefix string) discord.Embed {
	b := discord.NewEmbedBuilder().
		SetTitle("🎵 Discord Music Bot Commands").
		SetDescription("Here are all the available commands:").
		SetColor(colorOK)
	for _, c := range commands {
		name := prefix + c.name
		if c.usage != "" {
			name += " " + c.usage
		}
		b.AddField(name, c.description, false)
	}
	return b.Build()
}
