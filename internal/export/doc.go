// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package export writes archived conversations as Markdown or JSON.
//
// # Usage
//
//	exporter, err := export.ForFormat("md", export.DefaultOptions())
//	data, err := exporter.Export(conv)
//	name := export.Filename(conv, exporter)
package export
