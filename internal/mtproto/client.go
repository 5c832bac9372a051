// Package mtproto runs the Telegram user session that reads archived
// channels and receives live messages. It implements ingest.Archive and
// feeds live updates into a bounded channel.
package mtproto

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"
	"sync"
	"sync/atomic"

	"github.com/gotd/td/session"
	"github.com/gotd/td/telegram"
	"github.com/gotd/td/telegram/auth"
	"github.com/gotd/td/tg"

	"github.com/edgard/jobsift/internal/config"
	"github.com/edgard/jobsift/internal/ingest"
)

// ErrNotConnected is returned by archive reads before the session is
// authorized or after it stopped.
var ErrNotConnected = errors.New("telegram session is not connected")

// Client is an authorized MTProto user session.
type Client struct {
	client   *telegram.Client
	cfg      config.TelegramConfig
	folderID int
	events   chan<- ingest.Event
	log      *slog.Logger

	api   atomic.Pointer[tg.Client]
	ready chan struct{}
	once  sync.Once

	peersMu sync.RWMutex
	peers   map[int64]tg.InputPeerClass

	codeIn  io.Reader
	codeOut io.Writer
}

// New creates a session persisted at <SessionName>.session. Live messages are
// sent to events; the send blocks until the consumer accepts it.
func New(cfg config.TelegramConfig, folderID int, events chan<- ingest.Event, log *slog.Logger) *Client {
	if log == nil {
		log = slog.Default()
	}
	c := &Client{
		cfg:      cfg,
		folderID: folderID,
		events:   events,
		log:      log.With("component", "mtproto"),
		ready:    make(chan struct{}),
		peers:    make(map[int64]tg.InputPeerClass),
		codeIn:   os.Stdin,
		codeOut:  os.Stderr,
	}

	dispatcher := tg.NewUpdateDispatcher()
	dispatcher.OnNewMessage(c.onNewMessage)
	dispatcher.OnNewChannelMessage(c.onNewChannelMessage)

	c.client = telegram.NewClient(cfg.APIID, cfg.APIHash, telegram.Options{
		SessionStorage: &session.FileStorage{Path: sessionPath(cfg.SessionName)},
		UpdateHandler:  dispatcher,
	})
	return c
}

func sessionPath(name string) string {
	if strings.HasSuffix(name, ".session") {
		return name
	}
	return name + ".session"
}

// Ready is closed once the session is authorized.
func (c *Client) Ready() <-chan struct{} {
	return c.ready
}

// Run connects, logs in when the stored session is missing and blocks until
// ctx is done. The gotd client handles reconnects.
func (c *Client) Run(ctx context.Context) error {
	return c.client.Run(ctx, func(ctx context.Context) error {
		if err := c.authorize(ctx); err != nil {
			return err
		}

		c.api.Store(c.client.API())
		defer c.api.Store(nil)
		c.once.Do(func() { close(c.ready) })

		self, err := c.client.Self(ctx)
		if err != nil {
			return fmt.Errorf("get self: %w", err)
		}
		c.log.InfoContext(ctx, "Telegram session authorized", "user_id", self.ID, "username", self.Username)

		<-ctx.Done()
		c.log.InfoContext(ctx, "Telegram session stopping")
		return ctx.Err()
	})
}

func (c *Client) authorize(ctx context.Context) error {
	status, err := c.client.Auth().Status(ctx)
	if err != nil {
		return fmt.Errorf("auth status: %w", err)
	}
	if status.Authorized {
		return nil
	}
	if c.cfg.Phone == "" {
		return errors.New("session is not authorized and telegram.phone is empty")
	}

	c.log.InfoContext(ctx, "Logging in to Telegram", "phone", maskPhone(c.cfg.Phone))
	flow := auth.NewFlow(
		auth.Constant(c.cfg.Phone, c.cfg.Password, auth.CodeAuthenticatorFunc(c.readCode)),
		auth.SendCodeOptions{},
	)
	if err := c.client.Auth().IfNecessary(ctx, flow); err != nil {
		return fmt.Errorf("login: %w", err)
	}
	return nil
}

func (c *Client) readCode(ctx context.Context, _ *tg.AuthSentCode) (string, error) {
	fmt.Fprint(c.codeOut, "Enter the code Telegram sent you: ")
	line, err := bufio.NewReader(c.codeIn).ReadString('\n')
	if err != nil && line == "" {
		return "", fmt.Errorf("read login code: %w", err)
	}
	return strings.TrimSpace(line), nil
}

func maskPhone(phone string) string {
	if len(phone) <= 4 {
		return "****"
	}
	return strings.Repeat("*", len(phone)-4) + phone[len(phone)-4:]
}

func (c *Client) rawAPI() (*tg.Client, error) {
	api := c.api.Load()
	if api == nil {
		return nil, ErrNotConnected
	}
	return api, nil
}

func (c *Client) rememberPeer(id int64, peer tg.InputPeerClass) {
	c.peersMu.Lock()
	c.peers[id] = peer
	c.peersMu.Unlock()
}

func (c *Client) inputPeer(id int64) (tg.InputPeerClass, bool) {
	c.peersMu.RLock()
	defer c.peersMu.RUnlock()
	p, ok := c.peers[id]
	return p, ok
}
