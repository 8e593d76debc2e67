// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package util provides small string and file helpers shared by talks.
//
//   - TruncateRunes, TruncateWidth: UTF-8 and display-width safe truncation
//   - FirstLine, TrimmedLen: helpers for titles and the input counter
//   - AtomicWriteFile: crash-safe file writes for config and history
package util
