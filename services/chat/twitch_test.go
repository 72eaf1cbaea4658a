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
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/AleutianAI/termolivre/pkg/logging"
	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestChannelFromURL(t *testing.T) {
	testCases := []struct {
		input    string
		expected string
	}{
		{"https://www.twitch.tv/Gaules", "gaules"},
		{"https://www.twitch.tv/gaules/", "gaules"},
		{"https://www.twitch.tv/gaules?tab=chat", "gaules"},
		{"https://www.twitch.tv/", "monstercat"},
		{"https://www.twitch.tv", "monstercat"},
		{"www.twitch.tv/casimiro", "casimiro"},
		{"www.twitch.tv", "monstercat"},
		{"#casimiro", "casimiro"},
		{"loud_coringa", "loud_coringa"},
		{"", "monstercat"},
		{"   ", "monstercat"},
	}

	for _, tc := range testCases {
		t.Run(tc.input, func(t *testing.T) {
			assert.Equal(t, tc.expected, ChannelFromURL(tc.input))
		})
	}
}

func TestTwitchConfig_Defaults(t *testing.T) {
	cfg := TwitchConfig{Channel: "#Gaules"}.withDefaults()

	assert.Equal(t, DefaultIRCURL, cfg.URL)
	assert.Equal(t, "gaules", cfg.Channel)
	assert.True(t, strings.HasPrefix(cfg.Nick, "justinfan"))
	assert.Equal(t, DefaultReconnectDelay, cfg.ReconnectDelay)
	assert.NotNil(t, cfg.Dialer)
}

func TestMessageFromLine(t *testing.T) {
	line, err := ParseLine("@display-name=Fulano;tmi-sent-ts=1700000000000 :fulano!fulano@x PRIVMSG #c :oi gente")
	require.NoError(t, err)

	msg, ok := messageFromLine(line)
	require.True(t, ok)
	assert.Equal(t, "oi gente", msg.Content)
	assert.Equal(t, "Fulano", msg.Sender)
	assert.Equal(t, time.UnixMilli(1700000000000).UTC(), msg.Timestamp)

	line, err = ParseLine(":beltrano!beltrano@x PRIVMSG #c :sem tags")
	require.NoError(t, err)
	msg, ok = messageFromLine(line)
	require.True(t, ok)
	assert.Equal(t, "beltrano", msg.Sender)
	assert.False(t, msg.Timestamp.IsZero())

	line, err = ParseLine(":x!x@x PRIVMSG #c")
	require.NoError(t, err)
	_, ok = messageFromLine(line)
	assert.False(t, ok)
}

// fakeIRC is a minimal Twitch IRC-over-WebSocket endpoint.
type fakeIRC struct {
	server      *httptest.Server
	received    chan string
	connections atomic.Int32
}

func newFakeIRC(t *testing.T, script func(conn *websocket.Conn, f *fakeIRC)) *fakeIRC {
	t.Helper()
	f := &fakeIRC{received: make(chan string, 64)}
	upgrader := websocket.Upgrader{}
	f.server = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		defer conn.Close()
		f.connections.Add(1)
		script(conn, f)
	}))
	t.Cleanup(f.server.Close)
	return f
}

func (f *fakeIRC) url() string {
	return "ws" + strings.TrimPrefix(f.server.URL, "http")
}

func (f *fakeIRC) read(conn *websocket.Conn) bool {
	_, data, err := conn.ReadMessage()
	if err != nil {
		return false
	}
	f.received <- strings.TrimSpace(string(data))
	return true
}

func TestTwitchReader_Session(t *testing.T) {
	irc := newFakeIRC(t, func(conn *websocket.Conn, f *fakeIRC) {
		for i := 0; i < 4; i++ {
			if !f.read(conn) {
				return
			}
		}
		_ = conn.WriteMessage(websocket.TextMessage, []byte("PING :tmi.twitch.tv\r\n"))
		if !f.read(conn) {
			return
		}
		frame := "@display-name=Ana :ana!ana@ana.tmi.twitch.tv PRIVMSG #gaules :bom dia\r\n" +
			":tmi.twitch.tv NOTICE * :hello\r\n" +
			":beto!beto@beto.tmi.twitch.tv PRIVMSG #gaules :c a s a\r\n"
		_ = conn.WriteMessage(websocket.TextMessage, []byte(frame))
		for f.read(conn) {
		}
	})

	reader := NewTwitchReader(TwitchConfig{URL: irc.url(), Channel: "gaules", Nick: "justinfan4242"}, logging.Discard())
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	out := make(chan Message, 4)
	done := make(chan error, 1)
	go func() { done <- reader.Run(ctx, out) }()

	var got []Message
	for len(got) < 2 {
		select {
		case msg := <-out:
			got = append(got, msg)
		case <-time.After(5 * time.Second):
			t.Fatal("timed out waiting for chat messages")
		}
	}
	assert.Equal(t, "bom dia", got[0].Content)
	assert.Equal(t, "Ana", got[0].Sender)
	assert.Equal(t, "c a s a", got[1].Content)
	assert.Equal(t, "beto", got[1].Sender)

	var sent []string
	for len(sent) < 5 {
		sent = append(sent, <-irc.received)
	}
	assert.Equal(t, []string{
		"CAP REQ :twitch.tv/tags twitch.tv/commands",
		"PASS SCHMOOPIIE",
		"NICK justinfan4242",
		"JOIN #gaules",
		"PONG :tmi.twitch.tv",
	}, sent)

	cancel()
	select {
	case err := <-done:
		assert.True(t, errors.Is(err, context.Canceled))
	case <-time.After(5 * time.Second):
		t.Fatal("reader did not stop after cancel")
	}
}

func TestTwitchReader_Reconnects(t *testing.T) {
	irc := newFakeIRC(t, func(conn *websocket.Conn, f *fakeIRC) {
		// Drop the connection right after the handshake.
		for i := 0; i < 4; i++ {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
		_ = conn.WriteMessage(websocket.TextMessage, []byte(":tmi.twitch.tv RECONNECT\r\n"))
	})

	reader := NewTwitchReader(TwitchConfig{URL: irc.url(), ReconnectDelay: 10 * time.Millisecond}, logging.Discard())
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- reader.Run(ctx, make(chan Message)) }()

	assert.Eventually(t, func() bool { return irc.connections.Load() >= 3 },
		5*time.Second, 10*time.Millisecond)
	cancel()
	assert.ErrorIs(t, <-done, context.Canceled)
}

func TestTwitchReader_DialFailureRetriesUntilCancel(t *testing.T) {
	reader := NewTwitchReader(TwitchConfig{URL: "ws://127.0.0.1:1", ReconnectDelay: 10 * time.Millisecond}, logging.Discard())
	ctx, cancel := context.WithTimeout(context.Background(), 100*time.Millisecond)
	defer cancel()

	err := reader.Run(ctx, make(chan Message))
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}
