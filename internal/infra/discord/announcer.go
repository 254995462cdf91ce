package discord

import (
	"fmt"
	"sync/atomic"
	"time"

	"github.com/disgoorg/snowflake/v2"
	zlog "github.com/rs/zerolog/log"

	"github.com/osa030/radiobox/internal/app/notification"
	"github.com/osa030/radiobox/internal/app/playback"
	"github.com/osa030/radiobox/internal/domain/track"
)

const announceBuffer = 32

type announcement struct {
	channelID snowflake.ID
	reply     reply
}

// Announcer posts playback notifications to the text channel of the last command.
type Announcer struct {
	send    func(channelID snowflake.ID, r reply)
	channel atomic.Uint64
	pending chan announcement
	done    chan struct{}
}

// newAnnouncer starts the posting worker. send is called sequentially.
func newAnnouncer(send func(channelID snowflake.ID, r reply)) *Announcer {
	a := &Announcer{
		send:    send,
		pending: make(chan announcement, announceBuffer),
		done:    make(chan struct{}),
	}
	go a.run()
	return a
}

func (a *Announcer) run() {
	defer close(a.done)
	for an := range a.pending {
		a.send(an.channelID, an.reply)
	}
}

// SetChannel sets the channel announcements go to.
func (a *Announcer) SetChannel(id snowflake.ID) {
	a.channel.Store(uint64(id))
}

// Send implements notification.Stream. It never blocks on Discord.
func (a *Announcer) Send(n *notification.Notification) error {
	ch := snowflake.ID(a.channel.Load())
	if ch == 0 {
		return nil
	}
	r, ok := announce(n)
	if !ok {
		return nil
	}
	select {
	case a.pending <- announcement{channelID: ch, reply: r}:
	default:
		zlog.Warn().Msgf("announcement dropped: type=%s", n.Type)
	}
	return nil
}

// Close stops the worker after queued announcements are sent.
func (a *Announcer) Close() {
	close(a.pending)
	<-a.done
}

// announce maps a notification to a channel message.
func announce(n *notification.Notification) (reply, bool) {
	switch n.Type {
	case notification.TypeTrackLoading:
		if n.Track == nil {
			return reply{}, false
		}
		return text(fmt.Sprintf("⏳ Loading **%s**...", n.Track.Title)), true
	case notification.TypeNowPlaying:
		if n.Track == nil {
			return reply{}, false
		}
		return embedReply(nowPlayingEmbed(fromInfo(*n.Track), playback.StatePlaying), viewControls), true
	case notification.TypeTrackFailed:
		title := "track"
		if n.Track != nil {
			title = "**" + n.Track.Title + "**"
		}
		return text(fmt.Sprintf("Failed to load audio for %s. Skipping.", title)), true
	case notification.TypeRadioExtended:
		return text(fmt.Sprintf("📻 **Radio:** Added %d similar song(s) to the queue.", len(n.Tracks))), true
	case notification.TypeQueueEmpty:
		return text("Queue is empty!"), true
	case notification.TypePlaybackHalted:
		return text("⚠️ Playback stopped after repeated failures."), true
	}
	return reply{}, false
}

func fromInfo(info notification.TrackInfo) track.QueuedTrack {
	return track.QueuedTrack{
		Track: track.Track{
			ID:        info.ID,
			Title:     info.Title,
			Artist:    info.Artist,
			Thumbnail: info.Thumbnail,
			Duration:  time.Duration(info.DurationSec) * time.Second,
			URL:       info.URL,
		},
		Requester: track.Requester{
			Name: info.RequestedBy,
			Type: track.RequesterType(info.RequesterType),
		},
	}
}
