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
	"encoding/json"
	"sync"
	"time"

	"github.com/AleutianAI/termolivre/pkg/logging"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"
)

// Defaults for HubConfig.
const (
	DefaultQueueSize    = 64
	DefaultWriteTimeout = 10 * time.Second
	DefaultPingInterval = 30 * time.Second
)

// HubConfig tunes subscriber delivery.
type HubConfig struct {
	// QueueSize is the per-subscriber buffer. A subscriber whose buffer is
	// full when a message arrives is disconnected.
	QueueSize int

	WriteTimeout time.Duration
	PingInterval time.Duration
}

func (c HubConfig) withDefaults() HubConfig {
	if c.QueueSize <= 0 {
		c.QueueSize = DefaultQueueSize
	}
	if c.WriteTimeout <= 0 {
		c.WriteTimeout = DefaultWriteTimeout
	}
	if c.PingInterval <= 0 {
		c.PingInterval = DefaultPingInterval
	}
	return c
}

// Hub fans moderated messages out to websocket subscribers.
//
// # Description
//
// Every subscriber owns a buffered queue drained by its own write loop, so
// Broadcast never blocks on a slow client. When a queue is full the
// subscriber is dropped instead of stalling the chat for everyone.
//
// # Thread Safety
//
// All methods are safe for concurrent use.
type Hub struct {
	config HubConfig
	logger *logging.Logger

	mu   sync.RWMutex
	subs map[string]*subscriber
}

type subscriber struct {
	id   string
	send chan []byte
	done chan struct{}
	once sync.Once
}

func (s *subscriber) close() {
	s.once.Do(func() { close(s.done) })
}

// NewHub creates an empty hub.
func NewHub(config HubConfig, logger *logging.Logger) *Hub {
	return &Hub{
		config: config.withDefaults(),
		logger: logging.OrDefault(logger).With("component", "hub"),
		subs:   make(map[string]*subscriber),
	}
}

// Count returns the number of connected subscribers.
func (h *Hub) Count() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.subs)
}

// Broadcast implements Broadcaster.
func (h *Hub) Broadcast(msg Message) {
	payload, err := json.Marshal(msg)
	if err != nil {
		h.logger.Error("failed to encode chat message", "error", err)
		return
	}

	var slow []*subscriber
	h.mu.RLock()
	for _, sub := range h.subs {
		select {
		case sub.send <- payload:
		default:
			slow = append(slow, sub)
		}
	}
	h.mu.RUnlock()

	for _, sub := range slow {
		h.logger.Warn("dropping slow subscriber", "subscriber", sub.id)
		h.remove(sub)
	}
}

func (h *Hub) add() *subscriber {
	sub := &subscriber{
		id:   uuid.NewString(),
		send: make(chan []byte, h.config.QueueSize),
		done: make(chan struct{}),
	}
	h.mu.Lock()
	h.subs[sub.id] = sub
	h.mu.Unlock()
	return sub
}

func (h *Hub) remove(sub *subscriber) {
	h.mu.Lock()
	delete(h.subs, sub.id)
	h.mu.Unlock()
	sub.close()
}

// Serve registers conn as a subscriber and blocks until the client goes
// away, the subscriber is dropped, or ctx ends. conn is closed on return.
func (h *Hub) Serve(ctx context.Context, conn *websocket.Conn) {
	sub := h.add()
	logger := h.logger.With("subscriber", sub.id)
	logger.Info("websocket subscriber connected", "subscribers", h.Count())
	defer func() {
		h.remove(sub)
		_ = conn.Close()
		logger.Info("websocket subscriber disconnected", "subscribers", h.Count())
	}()

	// Reads only detect disconnects; clients have nothing to say.
	go func() {
		defer sub.close()
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()

	ping := time.NewTicker(h.config.PingInterval)
	defer ping.Stop()

	for {
		select {
		case <-ctx.Done():
			h.writeClose(conn)
			return
		case <-sub.done:
			h.writeClose(conn)
			return
		case payload := <-sub.send:
			_ = conn.SetWriteDeadline(time.Now().Add(h.config.WriteTimeout))
			if err := conn.WriteMessage(websocket.TextMessage, payload); err != nil {
				logger.Debug("websocket write failed", "error", err)
				return
			}
		case <-ping.C:
			_ = conn.SetWriteDeadline(time.Now().Add(h.config.WriteTimeout))
			if err := conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

func (h *Hub) writeClose(conn *websocket.Conn) {
	msg := websocket.FormatCloseMessage(websocket.CloseNormalClosure, "")
	_ = conn.WriteControl(websocket.CloseMessage, msg, time.Now().Add(time.Second))
}

var _ Broadcaster = (*Hub)(nil)
