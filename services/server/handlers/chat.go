// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package handlers

import (
	"context"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/AleutianAI/termolivre/services/chat"
	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
)

// DefaultSender names locally authored messages without a sender.
const DefaultSender = "anonymous"

// Publisher moderates and broadcasts messages. *chat.Relay satisfies it.
type Publisher interface {
	Publish(ctx context.Context, msgs []chat.Message) []chat.Message
}

// Subscriber serves one websocket subscriber until it leaves. *chat.Hub
// satisfies it.
type Subscriber interface {
	Serve(ctx context.Context, conn *websocket.Conn)
}

// SendRequest is the body of POST /v1/chat/send.
type SendRequest struct {
	Content string `json:"content" binding:"required,max=500"`
	Sender  string `json:"sender" binding:"max=25"`
}

// SendResponse reports what subscribers received. Message is omitted when
// the message was dropped.
type SendResponse struct {
	Delivered bool          `json:"delivered"`
	Message   *chat.Message `json:"message,omitempty"`
}

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool {
		return true
	},
	ReadBufferSize:  1024,
	WriteBufferSize: 4096,
}

// HandleChatSocket upgrades to a websocket and subscribes it to the
// moderated chat. The connection lives until the client leaves or the
// request context ends.
func HandleChatSocket(sub Subscriber) gin.HandlerFunc {
	return func(c *gin.Context) {
		conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
		if err != nil {
			slog.Warn("failed to upgrade the websocket", "error", err)
			return
		}
		sub.Serve(c.Request.Context(), conn)
	}
}

// HandleChatSend moderates a locally authored message and broadcasts it
// like any chat line.
func HandleChatSend(pub Publisher) gin.HandlerFunc {
	return func(c *gin.Context) {
		ctx, span := tracer.Start(c.Request.Context(), "HandleChatSend")
		defer span.End()

		var req SendRequest
		if !bindJSON(c, &req) {
			span.SetStatus(codes.Error, "invalid request body")
			return
		}
		sender := strings.TrimSpace(req.Sender)
		if sender == "" {
			sender = DefaultSender
		}
		msg := chat.Message{
			Content:   req.Content,
			Sender:    sender,
			Timestamp: time.Now().UTC(),
		}

		sent := pub.Publish(ctx, []chat.Message{msg})
		resp := SendResponse{Delivered: len(sent) > 0}
		if resp.Delivered {
			resp.Message = &sent[0]
			span.SetAttributes(attribute.Bool("moderation.safe", sent[0].Safe))
		}
		c.JSON(http.StatusOK, resp)
	}
}
