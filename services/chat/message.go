// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package chat ingests a live Twitch chat, moderates it and fans the
// result out to websocket subscribers.
//
// # Data Flow
//
//	TwitchReader ──► Relay (window, AreMessagesSafe, mask/drop) ──► Hub ──► /ws clients
//
// No message is stored; every stage only holds what is in flight.
package chat

import "time"

// Message is one chat line as broadcast to subscribers.
type Message struct {
	Content   string    `json:"content"`
	Sender    string    `json:"sender"`
	Timestamp time.Time `json:"timestamp"`

	// Safe is set by the Relay. false means Content was replaced.
	Safe bool `json:"safe"`
}

// Broadcaster delivers moderated messages to subscribers.
type Broadcaster interface {
	Broadcast(msg Message)
}
