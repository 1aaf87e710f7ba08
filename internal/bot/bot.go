// Package bot wires the gateway together: configuration in, webhook
// server + dispatcher + send client + attachment cache out, with an
// explicit start/stop lifecycle so instances can coexist in tests.
package bot

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"

	"golang.org/x/sync/errgroup"

	"github.com/boomerangbot/boomerang/internal/attach"
	"github.com/boomerangbot/boomerang/internal/config"
	"github.com/boomerangbot/boomerang/internal/dispatch"
	"github.com/boomerangbot/boomerang/internal/events"
	"github.com/boomerangbot/boomerang/internal/messages"
	"github.com/boomerangbot/boomerang/internal/send"
	"github.com/boomerangbot/boomerang/internal/signature"
	"github.com/boomerangbot/boomerang/internal/webhook"
)

// Bot is one gateway instance. Register handlers via On/Bind before
// calling Run.
type Bot struct {
	cfg        *config.Config
	cache      *attach.Cache
	client     *send.Client
	dispatcher *dispatch.Dispatcher
	server     *webhook.Server
}

// New builds a Bot from configuration.
func New(cfg *config.Config) (*Bot, error) {
	cache, err := attach.New(
		attach.Policy(cfg.Attachments.Policy),
		cfg.Attachments.TTL(),
		cfg.Attachments.SweepSchedule,
	)
	if err != nil {
		return nil, err
	}

	client := send.NewClient(send.Config{
		PageToken:   cfg.Platform.PageToken,
		BaseURL:     cfg.Platform.APIBaseURL,
		MaxAttempts: cfg.Send.MaxAttempts,
		BackoffBase: cfg.Send.BackoffBase(),
		BackoffCap:  cfg.Send.BackoffCap(),
		HTTPClient:  &http.Client{Timeout: cfg.Send.Timeout()},
	})

	dispatcher := dispatch.New(client)

	var validator *signature.Validator
	if cfg.Platform.AppSecret != "" {
		validator = signature.New(cfg.Platform.AppSecret)
	} else {
		slog.Warn("bot: no app secret configured, webhook signature validation disabled")
	}

	server := webhook.NewServer(webhook.Config{
		Addr:        fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port),
		VerifyToken: cfg.Platform.VerifyToken,
		Validator:   validator,
		Queue:       dispatcher,
		Attachments: cache,
	})

	return &Bot{
		cfg:        cfg,
		cache:      cache,
		client:     client,
		dispatcher: dispatcher,
		server:     server,
	}, nil
}

// On registers a handler for one Update variant.
func (b *Bot) On(t events.Type, h dispatch.Handler) {
	b.dispatcher.On(t, h)
}

// OnAny registers a handler for every Update variant.
func (b *Bot) OnAny(h dispatch.Handler) {
	b.dispatcher.OnAny(h)
}

// Bind registers the listener methods l implements.
func (b *Bot) Bind(l any) {
	b.dispatcher.Bind(l)
}

// Send delivers a message outside the dispatch flow.
func (b *Bot) Send(ctx context.Context, recipientID string, msg *messages.Message) (send.Result, error) {
	return b.client.Send(ctx, recipientID, msg)
}

// SendAction delivers a sender action outside the dispatch flow.
func (b *Bot) SendAction(ctx context.Context, recipientID string, action send.Action) (send.Result, error) {
	return b.client.SendAction(ctx, recipientID, action)
}

// UploadAttachment registers reusable media with the platform.
func (b *Bot) UploadAttachment(ctx context.Context, kind, url string) (string, error) {
	return b.client.UploadAttachment(ctx, kind, url)
}

// HostAttachment makes a local file fetchable at an ephemeral public
// URL and returns an attachment referencing it, ready to send.
func (b *Bot) HostAttachment(kind, localPath string) (messages.MediaAttachment, error) {
	if b.cfg.Server.BaseURL == "" {
		return messages.MediaAttachment{}, fmt.Errorf("bot: server.base_url must be set to host attachments")
	}
	token, err := b.cache.Host(localPath)
	if err != nil {
		return messages.MediaAttachment{}, err
	}
	return messages.MediaAttachment{
		Kind: kind,
		URL:  b.cfg.Server.BaseURL + attach.URLPath(token),
	}, nil
}

// Run serves until ctx is cancelled, then shuts down: the webhook stops
// accepting deliveries, in-flight conversations get the configured
// grace period, and the eviction sweep halts.
func (b *Bot) Run(ctx context.Context) error {
	b.cache.Start()
	defer b.cache.Stop()

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return b.server.Serve()
	})
	g.Go(func() error {
		<-gctx.Done()
		err := b.server.Stop()
		b.dispatcher.Stop(b.cfg.Server.ShutdownGrace())
		return err
	})

	slog.Info("bot: serving",
		"addr", fmt.Sprintf("%s:%d", b.cfg.Server.Host, b.cfg.Server.Port),
		"signature_validation", b.cfg.Platform.AppSecret != "")
	return g.Wait()
}
