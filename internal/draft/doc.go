// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package draft holds the message being composed: its text and the images
// attached to it, and decides when and how it is handed to the sender.
package draft
