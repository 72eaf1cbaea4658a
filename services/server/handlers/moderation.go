// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package handlers implements the HTTP endpoints of the moderation server.
package handlers

import (
	"log/slog"
	"net/http"

	"github.com/AleutianAI/termolivre/services/moderation"
	"github.com/gin-gonic/gin"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
)

var tracer = otel.Tracer("termolivre/handlers")

// MaxBatchMessages bounds POST /v1/moderate/batch.
const MaxBatchMessages = 200

// maxBodyBytes bounds every JSON request body.
const maxBodyBytes = 1 << 20

// ModerateRequest is the body of POST /v1/moderate. An empty message is
// valid and always safe; a missing one is rejected.
type ModerateRequest struct {
	Message *string `json:"message" binding:"required"`
}

type ModerateResponse struct {
	Safe bool `json:"safe"`
}

// ModerateBatchRequest is the body of POST /v1/moderate/batch.
type ModerateBatchRequest struct {
	Messages []string `json:"messages" binding:"required,min=1,max=200"`
}

type ModerateBatchResponse struct {
	Verdicts []bool `json:"verdicts"`
}

// HealthCheck answers liveness probes.
func HealthCheck(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

// HandleChannel reports the chat channel being relayed.
func HandleChannel(channel string) gin.HandlerFunc {
	return func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"channel": channel})
	}
}

// HandleModerate evaluates one message.
//
// # Description
//
// Classifier failures never surface here: the evaluator fails open, so the
// endpoint answers 200 for every well-formed request.
//
// # Outputs
//
//   - 200 {"safe": bool}
//   - 400 {"error": ...} when the body is not a ModerateRequest
func HandleModerate(evaluator moderation.Evaluator) gin.HandlerFunc {
	return func(c *gin.Context) {
		ctx, span := tracer.Start(c.Request.Context(), "HandleModerate")
		defer span.End()

		var req ModerateRequest
		if !bindJSON(c, &req) {
			span.SetStatus(codes.Error, "invalid request body")
			return
		}
		safe := evaluator.IsMessageSafe(ctx, *req.Message)
		span.SetAttributes(attribute.Bool("moderation.safe", safe))
		c.JSON(http.StatusOK, ModerateResponse{Safe: safe})
	}
}

// HandleModerateBatch evaluates up to MaxBatchMessages messages; verdicts
// are positionally aligned with the request.
func HandleModerateBatch(evaluator moderation.Evaluator) gin.HandlerFunc {
	return func(c *gin.Context) {
		ctx, span := tracer.Start(c.Request.Context(), "HandleModerateBatch")
		defer span.End()

		var req ModerateBatchRequest
		if !bindJSON(c, &req) {
			span.SetStatus(codes.Error, "invalid request body")
			return
		}
		span.SetAttributes(attribute.Int("moderation.batch_size", len(req.Messages)))
		verdicts := evaluator.AreMessagesSafe(ctx, req.Messages)
		c.JSON(http.StatusOK, ModerateBatchResponse{Verdicts: verdicts})
	}
}

// bindJSON decodes the body into dst or answers 400 and returns false.
func bindJSON(c *gin.Context, dst any) bool {
	c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, maxBodyBytes)
	if err := c.ShouldBindJSON(dst); err != nil {
		slog.Debug("rejected request body", "path", c.FullPath(), "error", err)
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body: " + err.Error()})
		return false
	}
	return true
}
