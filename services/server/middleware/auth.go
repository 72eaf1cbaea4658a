// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package middleware provides HTTP middleware for the moderation server.
//
// # Token Guard
//
// RequireToken protects write endpoints with a static bearer token:
//
//	Request
//	   │
//	   ▼
//	RequireToken
//	   │
//	   ├─► Extract token from "Authorization: Bearer <token>"
//	   │
//	   └─► Constant-time compare with the configured token
//	           │
//	           ▼
//	       Handler
//
// An empty configured token disables the guard, so a local deployment needs
// no credentials.
package middleware

import (
	"crypto/subtle"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
)

// =============================================================================
// Token Middleware
// =============================================================================

// RequireToken creates a Gin middleware that rejects requests whose bearer
// token does not equal token. The "Bearer" scheme matches in any case.
//
// # Inputs
//
//   - token: Expected bearer token. Empty disables the check.
//
// # Outputs
//
//   - gin.HandlerFunc: Aborts with 401 {"error":"unauthorized"} on mismatch.
//
// # Examples
//
//	v1.POST("/chat/send", middleware.RequireToken(cfg.APIToken), handler)
//
// # Thread Safety
//
// Thread-safe. The returned middleware can be used concurrently.
func RequireToken(token string) gin.HandlerFunc {
	if token == "" {
		return func(c *gin.Context) { c.Next() }
	}
	want := []byte(token)
	return func(c *gin.Context) {
		scheme, got, _ := strings.Cut(c.GetHeader("Authorization"), " ")
		got = strings.TrimSpace(got)
		if !strings.EqualFold(scheme, "Bearer") || got == "" ||
			subtle.ConstantTimeCompare([]byte(got), want) != 1 {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{
				"error": "unauthorized",
			})
			return
		}
		c.Next()
	}
}
