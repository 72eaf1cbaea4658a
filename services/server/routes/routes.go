// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package routes

import (
	"net/http"

	"github.com/AleutianAI/termolivre/services/moderation"
	"github.com/AleutianAI/termolivre/services/server/handlers"
	"github.com/AleutianAI/termolivre/services/server/middleware"
	"github.com/gin-gonic/gin"
)

// Deps are the components the routes dispatch to. Evaluator is required;
// a nil Subscriber, Publisher or Metrics leaves its routes unregistered.
type Deps struct {
	Evaluator  moderation.Evaluator
	Subscriber handlers.Subscriber
	Publisher  handlers.Publisher

	// Metrics serves GET /metrics.
	Metrics http.Handler

	// Channel is reported by GET /v1/channel.
	Channel string

	// APIToken guards POST /v1/chat/send when non-empty.
	APIToken string
}

func SetupRoutes(router *gin.Engine, deps Deps) {
	router.GET("/health", handlers.HealthCheck)
	if deps.Metrics != nil {
		router.GET("/metrics", gin.WrapH(deps.Metrics))
	}
	if deps.Subscriber != nil {
		router.GET("/ws", handlers.HandleChatSocket(deps.Subscriber))
	}

	// API version 1 group
	v1 := router.Group("/v1")
	{
		v1.GET("/channel", handlers.HandleChannel(deps.Channel))
		v1.POST("/moderate", handlers.HandleModerate(deps.Evaluator))
		v1.POST("/moderate/batch", handlers.HandleModerateBatch(deps.Evaluator))
		if deps.Publisher != nil {
			v1.POST("/chat/send", middleware.RequireToken(deps.APIToken), handlers.HandleChatSend(deps.Publisher))
		}
	}
}
