package discord

import (
	"sync"
	"time"

	"github.com/disgoorg/disgo/discord"
	"github.com/disgoorg/snowflake/v2"
)

func viewButtons(kind viewKind, disabled bool) []discord.InteractiveComponent {
	var buttons []discord.ButtonComponent
	switch kind {
	case viewControls:
		buttons = []discord.ButtonComponent{
			discord.NewSecondaryButton("⏸️ Pause", buttonPause),
			discord.NewSecondaryButton("▶️ Resume", buttonResume),
			discord.NewPrimaryButton("⏭️ Skip", buttonSkip),
			discord.NewDangerButton("⏹️ Stop", buttonStop),
		}
	case viewQueue:
		buttons = []discord.ButtonComponent{
			discord.NewSecondaryButton("🔄 Refresh", buttonRefresh),
			discord.NewDangerButton("🗑️ Clear Queue", buttonClear),
		}
	default:
		return nil
	}

	out := make([]discord.InteractiveComponent, len(buttons))
	for i, b := range buttons {
		if disabled {
			b = b.AsDisabled()
		}
		out[i] = b
	}
	return out
}

// viewExpirer disables the buttons of a message once its view times out.
type viewExpirer interface {
	expire(channelID, messageID snowflake.ID, kind viewKind)
}

// views tracks messages carrying live buttons. Expiry only edits the message.
type views struct {
	controlTimeout time.Duration
	queueTimeout   time.Duration
	expirer        viewExpirer

	mu     sync.Mutex
	timers map[snowflake.ID]*time.Timer
}

func newViews(controlTimeout, queueTimeout time.Duration, expirer viewExpirer) *views {
	return &views{
		controlTimeout: controlTimeout,
		queueTimeout:   queueTimeout,
		expirer:        expirer,
		timers:         make(map[snowflake.ID]*time.Timer),
	}
}

func (v *views) timeout(kind viewKind) time.Duration {
	if kind == viewQueue {
		return v.queueTimeout
	}
	return v.controlTimeout
}

// track starts the expiry timer for a sent message.
func (v *views) track(channelID, messageID snowflake.ID, kind viewKind) {
	if kind == viewNone {
		return
	}
	v.mu.Lock()
	defer v.mu.Unlock()

	v.timers[messageID] = time.AfterFunc(v.timeout(kind), func() {
		v.mu.Lock()
		_, live := v.timers[messageID]
		delete(v.timers, messageID)
		v.mu.Unlock()
		if live {
			v.expirer.expire(channelID, messageID, kind)
		}
	})
}

// live reports whether the message's buttons are still accepted.
func (v *views) live(messageID snowflake.ID) bool {
	v.mu.Lock()
	defer v.mu.Unlock()
	_, ok := v.timers[messageID]
	return ok
}

// stopAll cancels pending expiries without editing messages.
func (v *views) stopAll() {
	v.mu.Lock()
	defer v.mu.Unlock()
	for id, t := range v.timers {
		t.Stop()
		delete(v.timers, id)
	}
}
