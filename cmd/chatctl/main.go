// chatctl is a terminal chat client: it negotiates a relay (LAN first,
// cloud fallback), hydrates the channel list and history over HTTP,
// then bridges stdin lines to the realtime connection.
package main

import (
	"bufio"
	"context"
	"errors"
	"flag"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"chatbox/internal/apiclient"
	"chatbox/internal/config"
	"chatbox/internal/models"
	"chatbox/internal/netselect"
	"chatbox/internal/prefs"
	"chatbox/internal/probe"
	"chatbox/internal/realtime"
	"chatbox/internal/store"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"
)

// echoSink feeds surviving inbound messages into the store and prints
// them.
type echoSink struct {
	store *store.Store
}

func (s *echoSink) AddIncoming(msg models.Message) {
	s.store.AddIncoming(msg)
	printMessage(msg)
}

func printMessage(msg models.Message) {
	ts := time.UnixMilli(msg.CreatedAt).Format("15:04:05")
	prefix := ""
	if msg.Priority != models.PriorityNormal && msg.Priority != "" {
		prefix = fmt.Sprintf("[%s] ", msg.Priority)
	}
	fmt.Printf("%s #%s <%s> %s%s\n", ts, msg.ChannelID, msg.SenderName, prefix, msg.Text)
}

func run(ctx context.Context) error {
	serverURL := flag.String("server", "", "Relay base URL (skips negotiation and persists as the LAN override)")
	name := flag.String("name", "", "Display name for sent messages")
	channel := flag.String("channel", "gen", "Channel to join")
	flag.Parse()

	cfg, err := config.Load()
	if err != nil {
		return err
	}

	var overrides netselect.OverrideStore
	prefsStore, err := prefs.Open(cfg.PrefsFile)
	if err != nil {
		log.Printf("prefs unavailable, overrides will not persist: %v", err)
	} else {
		defer func() { _ = prefsStore.Close() }()
		overrides = prefsStore
	}

	prober := probe.New(cfg.ProbeTimeout)
	negotiator := netselect.New(prober, overrides, cfg.LanBaseURL, cfg.CloudBaseURL)

	if *serverURL != "" {
		negotiator.SetUserLanURL(*serverURL)
		negotiator.SetLan(ctx, *serverURL)
	} else {
		negotiator.Init(ctx)
	}

	senderName := *name
	if senderName == "" {
		senderName = cfg.SenderName
	}
	chatStore := store.New(store.Identity{
		ID:   uuid.NewString(),
		Name: senderName,
	})
	chatStore.SetActiveChannel(*channel)

	state := negotiator.State()
	if state.Mode == models.ModeOffline {
		fmt.Println("No relay reachable, offline mode. Seeded channels:")
		for _, c := range chatStore.Channels() {
			fmt.Printf("  #%-12s %s\n", c.ID, c.Name)
		}
		return nil
	}
	fmt.Printf("Connected via %s (%s)\n", state.Mode, state.BaseURL)

	// Hydrate channel list and history before going live.
	api := apiclient.New(nil)
	if channels, err := api.Channels(ctx, state.BaseURL); err != nil {
		log.Printf("channel list fetch failed: %v", err)
	} else if len(channels) > 0 {
		chatStore.SetChannels(channels)
	}
	if history, err := api.ChannelMessages(ctx, state.BaseURL, *channel); err != nil {
		log.Printf("history fetch failed: %v", err)
	} else {
		chatStore.SetChannelMessages(*channel, history)
	}
	for _, msg := range chatStore.Messages(*channel) {
		printMessage(msg)
	}

	rt := realtime.New(&echoSink{store: chatStore})
	defer func() { _ = rt.Close() }()
	if err := rt.Connect(ctx, state.BaseURL); err != nil {
		return fmt.Errorf("realtime connect: %w", err)
	}
	if err := rt.Join(*channel); err != nil {
		return fmt.Errorf("join %s: %w", *channel, err)
	}

	g, gCtx := errgroup.WithContext(ctx)

	g.Go(func() error {
		scanner := bufio.NewScanner(os.Stdin)
		for scanner.Scan() {
			text := scanner.Text()
			if text == "" {
				continue
			}
			msg := chatStore.SendMessage(*channel, text)
			err := rt.Send(models.ClientEvent{
				ChannelID:  msg.ChannelID,
				Text:       msg.Text,
				SenderID:   msg.SenderID,
				SenderName: msg.SenderName,
			})
			if err != nil {
				log.Printf("send failed (kept locally): %v", err)
			}
		}
		return scanner.Err()
	})

	g.Go(func() error {
		<-gCtx.Done()
		return gCtx.Err()
	})

	return g.Wait()
}

func main() {
	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	if err := run(ctx); err != nil && !errors.Is(err, context.Canceled) {
		log.Fatalf("chatctl error: %v", err)
	}
}
