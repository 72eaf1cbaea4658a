// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package chat

import (
	"context"
	"errors"
	"fmt"
	"math/rand/v2"
	"strconv"
	"strings"
	"time"

	"github.com/AleutianAI/termolivre/pkg/logging"
	"github.com/gorilla/websocket"
)

// Defaults for TwitchConfig.
const (
	DefaultIRCURL         = "wss://irc-ws.chat.twitch.tv:443"
	DefaultChannel        = "monstercat"
	DefaultReconnectDelay = 5 * time.Second
)

// errReconnect is returned by a session when the server asks us to
// reconnect.
var errReconnect = errors.New("server requested reconnect")

// ChannelFromURL extracts the channel name from a Twitch channel URL.
//
// # Description
//
// The last non-empty path segment is the channel. A bare name is accepted
// as-is. When nothing usable is found (empty input, or a URL without a
// path such as "https://www.twitch.tv/") DefaultChannel is returned.
//
// # Examples
//
//	ChannelFromURL("https://www.twitch.tv/Gaules")   // "gaules"
//	ChannelFromURL("https://www.twitch.tv/")         // "monstercat"
//	ChannelFromURL("#casimiro")                      // "casimiro"
func ChannelFromURL(raw string) string {
	raw = strings.TrimSpace(raw)
	if i := strings.IndexAny(raw, "?#"); i >= 0 && !strings.HasPrefix(raw, "#") {
		raw = raw[:i]
	}
	hasScheme := strings.Contains(raw, "://")
	if hasScheme {
		_, raw, _ = strings.Cut(raw, "://")
		_, path, found := strings.Cut(raw, "/")
		if !found {
			return DefaultChannel
		}
		raw = path
	}

	segments := strings.Split(raw, "/")
	for i := len(segments) - 1; i >= 0; i-- {
		name := strings.ToLower(strings.TrimPrefix(strings.TrimSpace(segments[i]), "#"))
		if name == "" {
			continue
		}
		if !hasScheme && i == 0 && strings.Contains(name, ".") {
			// "www.twitch.tv" without a scheme is a host, not a channel.
			return DefaultChannel
		}
		return name
	}
	return DefaultChannel
}

// TwitchConfig configures the anonymous chat reader.
type TwitchConfig struct {
	// URL of the IRC-over-WebSocket endpoint. Default: DefaultIRCURL.
	URL string

	// Channel to join, without '#'. Default: DefaultChannel.
	Channel string

	// Nick used to log in. Default: "justinfan" plus a random number,
	// which Twitch accepts without credentials.
	Nick string

	// ReconnectDelay between sessions. Default: 5s.
	ReconnectDelay time.Duration

	// Dialer overrides websocket.DefaultDialer.
	Dialer *websocket.Dialer
}

func (c TwitchConfig) withDefaults() TwitchConfig {
	if c.URL == "" {
		c.URL = DefaultIRCURL
	}
	c.Channel = strings.ToLower(strings.TrimPrefix(c.Channel, "#"))
	if c.Channel == "" {
		c.Channel = DefaultChannel
	}
	if c.Nick == "" {
		c.Nick = "justinfan" + strconv.Itoa(10000+rand.IntN(89999))
	}
	if c.ReconnectDelay <= 0 {
		c.ReconnectDelay = DefaultReconnectDelay
	}
	if c.Dialer == nil {
		c.Dialer = websocket.DefaultDialer
	}
	return c
}

// TwitchReader reads a channel's chat anonymously.
//
// # Thread Safety
//
// Run must be called at most once at a time.
type TwitchReader struct {
	config TwitchConfig
	logger *logging.Logger
}

// NewTwitchReader creates a reader. Nothing is dialed until Run.
func NewTwitchReader(config TwitchConfig, logger *logging.Logger) *TwitchReader {
	config = config.withDefaults()
	return &TwitchReader{
		config: config,
		logger: logging.OrDefault(logger).With("component", "twitch", "channel", config.Channel),
	}
}

// Channel returns the joined channel name.
func (r *TwitchReader) Channel() string { return r.config.Channel }

// Run connects, joins the channel and sends every chat message to out until
// ctx is cancelled, reconnecting after ReconnectDelay on any failure.
//
// # Outputs
//
//   - error: Always ctx.Err() once the context ends.
func (r *TwitchReader) Run(ctx context.Context, out chan<- Message) error {
	for {
		err := r.session(ctx, out)
		if ctx.Err() != nil {
			return ctx.Err()
		}
		r.logger.Warn("chat connection lost, reconnecting",
			"error", err, "delay", r.config.ReconnectDelay.String())

		timer := time.NewTimer(r.config.ReconnectDelay)
		select {
		case <-ctx.Done():
			timer.Stop()
			return ctx.Err()
		case <-timer.C:
		}
	}
}

// session runs one connection until it fails or ctx ends.
func (r *TwitchReader) session(ctx context.Context, out chan<- Message) error {
	conn, _, err := r.config.Dialer.DialContext(ctx, r.config.URL, nil)
	if err != nil {
		return fmt.Errorf("dial %s: %w", r.config.URL, err)
	}
	defer conn.Close()

	stop := context.AfterFunc(ctx, func() { _ = conn.Close() })
	defer stop()

	handshake := []string{
		"CAP REQ :twitch.tv/tags twitch.tv/commands",
		"PASS SCHMOOPIIE",
		"NICK " + r.config.Nick,
		"JOIN #" + r.config.Channel,
	}
	for _, cmd := range handshake {
		if err := conn.WriteMessage(websocket.TextMessage, []byte(cmd+"\r\n")); err != nil {
			return fmt.Errorf("send %q: %w", strings.Fields(cmd)[0], err)
		}
	}
	r.logger.Info("joined chat", "nick", r.config.Nick)

	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			return fmt.Errorf("read: %w", err)
		}
		for _, raw := range strings.Split(string(data), "\n") {
			line, err := ParseLine(raw)
			if err != nil {
				if !errors.Is(err, ErrEmptyLine) {
					r.logger.Debug("skipping malformed IRC line", "line", raw, "error", err)
				}
				continue
			}
			if err := r.handle(ctx, conn, line, out); err != nil {
				return err
			}
		}
	}
}

func (r *TwitchReader) handle(ctx context.Context, conn *websocket.Conn, line Line, out chan<- Message) error {
	switch line.Command {
	case "PING":
		pong := "PONG :" + line.Trailing
		if line.Trailing == "" {
			pong = "PONG :tmi.twitch.tv"
		}
		if err := conn.WriteMessage(websocket.TextMessage, []byte(pong+"\r\n")); err != nil {
			return fmt.Errorf("send PONG: %w", err)
		}
	case "RECONNECT":
		return errReconnect
	case "NOTICE":
		r.logger.Info("chat notice", "text", line.Trailing)
	case "PRIVMSG":
		msg, ok := messageFromLine(line)
		if !ok {
			return nil
		}
		select {
		case out <- msg:
		case <-ctx.Done():
			return ctx.Err()
		}
	}
	return nil
}

// messageFromLine converts a PRIVMSG into a Message.
func messageFromLine(line Line) (Message, bool) {
	if !line.hasTrailingText() {
		return Message{}, false
	}
	sender, _ := line.Tag("display-name")
	if sender == "" {
		sender = line.Nick()
	}
	ts := time.Now()
	if raw, ok := line.Tag("tmi-sent-ts"); ok {
		if ms, err := strconv.ParseInt(raw, 10, 64); err == nil {
			ts = time.UnixMilli(ms)
		}
	}
	return Message{Content: line.Trailing, Sender: sender, Timestamp: ts.UTC()}, true
}

func (l Line) hasTrailingText() bool {
	return len(l.Params) >= 2 && l.Trailing != ""
}
