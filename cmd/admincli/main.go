// Package main provides the admin CLI entry point.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/alecthomas/kingpin/v2"
	"github.com/joho/godotenv"

	"github.com/osa030/radiobox/internal/api/httpapi"
	"github.com/osa030/radiobox/internal/app/notification"
	"github.com/osa030/radiobox/internal/domain/track"
)

var (
	app    = kingpin.New("radiobox-admincli", "radiobox admin client")
	server = app.Flag("server", "Control API address").Default("http://localhost:8080").String()
	token  = app.Flag("token", "Admin token (or set ADMIN_TOKEN env)").Envar("ADMIN_TOKEN").String()

	statusCmd = app.Command("status", "Get playback status")
	queueCmd  = app.Command("queue", "Show the queue")

	requestCmd   = app.Command("request", "Queue a song by search query or link").Alias("add")
	requestQuery = requestCmd.Arg("query", "Search query or link").Required().String()
	requestAs    = requestCmd.Flag("as", "Requester name shown in chat").Default("admin").String()

	playCmd    = app.Command("play", "Start playback from the queue")
	pauseCmd   = app.Command("pause", "Pause playback")
	resumeCmd  = app.Command("resume", "Resume playback")
	skipCmd    = app.Command("skip", "Skip the current track")
	stopCmd    = app.Command("stop", "Stop playback and clear the queue")
	shuffleCmd = app.Command("shuffle", "Shuffle the queue")

	removeCmd      = app.Command("remove", "Remove a queued track").Alias("rm")
	removePosition = removeCmd.Arg("position", "1-based queue position").Required().Int()

	moveCmd  = app.Command("move", "Move a queued track").Alias("mv")
	moveFrom = moveCmd.Arg("from", "Current position").Required().Int()
	moveTo   = moveCmd.Arg("to", "New position").Required().Int()

	clearCmd = app.Command("clear", "Clear the queue, leaving the current track playing")

	radioCmd   = app.Command("radio", "Turn radio mode on or off")
	radioState = radioCmd.Arg("state", "on or off").Required().Enum("on", "off")

	historyCmd   = app.Command("history", "Show recently played tracks")
	historyLimit = historyCmd.Flag("limit", "Number of entries").Default("20").Int()

	listCmd = app.Command("list-listeners", "List all requesters").Alias("list")

	watchCmd = app.Command("watch", "Stream playback notifications")
)

func main() {
	_ = godotenv.Load()

	command := kingpin.MustParse(app.Parse(os.Args[1:]))

	if *token == "" {
		fmt.Println("Error: admin token is required (use --token or ADMIN_TOKEN env)")
		os.Exit(1)
	}

	client := httpapi.NewClient(*server, *token, nil)
	ctx := context.Background()

	var err error
	switch command {
	case statusCmd.FullCommand():
		err = status(ctx, client)
	case queueCmd.FullCommand():
		err = showQueue(ctx, client)
	case requestCmd.FullCommand():
		err = request(ctx, client, *requestQuery, *requestAs)
	case playCmd.FullCommand(), pauseCmd.FullCommand(), resumeCmd.FullCommand(),
		skipCmd.FullCommand(), stopCmd.FullCommand(), shuffleCmd.FullCommand():
		err = control(ctx, client, command)
	case removeCmd.FullCommand():
		err = remove(ctx, client, *removePosition)
	case moveCmd.FullCommand():
		err = move(ctx, client, *moveFrom, *moveTo)
	case clearCmd.FullCommand():
		err = clearQueue(ctx, client)
	case radioCmd.FullCommand():
		err = setRadio(ctx, client, *radioState == "on")
	case historyCmd.FullCommand():
		err = showHistory(ctx, client, *historyLimit)
	case listCmd.FullCommand():
		err = listListeners(ctx, client)
	case watchCmd.FullCommand():
		err = watch(ctx, client)
	}

	if err != nil {
		fmt.Printf("Error: %v\n", err)
		os.Exit(1)
	}
}

func status(ctx context.Context, client *httpapi.Client) error {
	s, err := client.Status(ctx)
	if err != nil {
		return err
	}

	fmt.Println("\n=== CURRENT STATUS ===")
	fmt.Printf("State: %s\n", formatState(s.State))
	fmt.Printf("Queue: %d tracks (%s)\n", s.QueueLength, formatSeconds(s.QueueDurationSec))
	fmt.Printf("Radio: %v\n", s.Radio)
	fmt.Printf("Listeners: %d\n", s.ListenerCount)

	if s.Current != nil {
		fmt.Println("\nCurrently Playing:")
		printTrack(s.Current)
	} else {
		fmt.Println("\nNo track currently playing")
	}
	fmt.Println()
	return nil
}

func showQueue(ctx context.Context, client *httpapi.Client) error {
	q, err := client.Queue(ctx)
	if err != nil {
		return err
	}
	if q.Current != nil {
		fmt.Printf("Now: %s - %s\n", q.Current.Title, q.Current.Artist)
	}
	if len(q.Tracks) == 0 {
		fmt.Println("Queue is empty")
		return nil
	}
	for i, t := range q.Tracks {
		fmt.Printf("  %2d. %s - %s [%s] (%s)\n", i+1, t.Title, t.Artist, formatSeconds(t.DurationSec), t.RequestedBy)
	}
	return nil
}

func request(ctx context.Context, client *httpapi.Client, query, as string) error {
	r, err := client.Request(ctx, query, as)
	if err != nil {
		return err
	}
	if !r.Accepted {
		fmt.Printf("Rejected: %s (%s)\n", r.Message, r.Code)
		return nil
	}
	switch {
	case r.Track != nil:
		fmt.Printf("Queued at position %d: %s - %s\n", r.Position, r.Track.Title, r.Track.Artist)
	case r.Added > 0:
		fmt.Printf("Queued %d tracks (%d skipped)\n", r.Added, r.Rejected)
	default:
		fmt.Println(r.Message)
	}
	return nil
}

func control(ctx context.Context, client *httpapi.Client, command string) error {
	msg, err := client.Command(ctx, command)
	if err != nil {
		return err
	}
	fmt.Println(msg)
	return nil
}

func remove(ctx context.Context, client *httpapi.Client, position int) error {
	r, err := client.Remove(ctx, position)
	if err != nil {
		return err
	}
	fmt.Printf("%s: %s\n", r.Message, r.Track.Title)
	return nil
}

func move(ctx context.Context, client *httpapi.Client, from, to int) error {
	r, err := client.Move(ctx, from, to)
	if err != nil {
		return err
	}
	fmt.Printf("%s: %s (%d -> %d)\n", r.Message, r.Track.Title, from, to)
	return nil
}

func clearQueue(ctx context.Context, client *httpapi.Client) error {
	msg, err := client.Clear(ctx)
	if err != nil {
		return err
	}
	fmt.Println(msg)
	return nil
}

func setRadio(ctx context.Context, client *httpapi.Client, on bool) error {
	s, err := client.SetRadio(ctx, on)
	if err != nil {
		return err
	}
	fmt.Printf("Radio mode: %v\n", s.Radio)
	return nil
}

func showHistory(ctx context.Context, client *httpapi.Client, limit int) error {
	entries, err := client.History(ctx, limit)
	if err != nil {
		return err
	}
	fmt.Printf("Recently played (%d):\n", len(entries))
	for _, e := range entries {
		fmt.Printf("  %s  %s - %s (%s)\n", e.PlayedAt().Format("2006-01-02 15:04"), e.Title, e.Artist, e.RequestedBy)
	}
	return nil
}

func listListeners(ctx context.Context, client *httpapi.Client) error {
	listeners, err := client.Listeners(ctx)
	if err != nil {
		return err
	}

	fmt.Printf("Listeners (%d):\n", len(listeners))
	for _, l := range listeners {
		name := l.DisplayName
		if l.DJ {
			name = "[DJ] " + name
		}
		fmt.Printf("  %s: %s (pending: %d, total: %d, first seen: %s)\n",
			l.ID, name, l.PendingTracks, l.TotalRequests, l.FirstSeenAt)
	}
	return nil
}

func watch(ctx context.Context, client *httpapi.Client) error {
	ctx, stop := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	fmt.Println("Subscribed to notifications. Press Ctrl+C to exit.")
	return client.Watch(ctx, printNotification)
}

func printNotification(n *notification.Notification) {
	fmt.Printf("\n[Sequence: %d] %s ", n.SequenceNo, n.Time.Format("15:04:05"))

	switch n.Type {
	case notification.TypeInitialState:
		fmt.Println("=== INITIAL STATE ===")
	case notification.TypeNowPlaying:
		fmt.Println("=== NOW PLAYING ===")
	case notification.TypeTrackLoading:
		fmt.Println("=== LOADING ===")
	case notification.TypeTrackFailed:
		fmt.Println("=== TRACK FAILED ===")
	case notification.TypeStateChanged:
		fmt.Println("=== STATE CHANGED ===")
	case notification.TypeRadioExtended:
		fmt.Println("=== RADIO EXTENDED ===")
	case notification.TypePlaybackHalted:
		fmt.Println("=== PLAYBACK HALTED ===")
	default:
		fmt.Printf("=== %s ===\n", n.Type)
	}

	if n.State != "" {
		fmt.Printf("  State: %s\n", formatState(n.State))
	}
	fmt.Printf("  Queue: %d tracks\n", n.QueueLength)
	if n.Message != "" {
		fmt.Printf("  Message: %s\n", n.Message)
	}
	if n.Track != nil {
		printTrack(n.Track)
	}
	for i := range n.Tracks {
		fmt.Printf("  + %s - %s\n", n.Tracks[i].Title, n.Tracks[i].Artist)
	}
}

func printTrack(t *notification.TrackInfo) {
	fmt.Printf("  Video ID: %s\n", t.ID)
	fmt.Printf("  Title: %s\n", t.Title)
	fmt.Printf("  Artist: %s\n", t.Artist)
	fmt.Printf("  Duration: %s\n", formatSeconds(t.DurationSec))
	fmt.Printf("  URL: %s\n", t.URL)
	fmt.Printf("  Requested by: %s (%s)\n", t.RequestedBy, t.RequesterType)
}

func formatSeconds(sec int) string {
	return track.FormatDuration(time.Duration(sec) * time.Second)
}

func formatState(state string) string {
	switch state {
	case "idle":
		return "⏹  Idle"
	case "loading":
		return "⏳ Loading"
	case "playing":
		return "▶️  Playing"
	case "paused":
		return "⏸  Paused"
	default:
		return "❓ Unknown"
	}
}
