// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package cli implements the talks command line.
//
// Running talks without a subcommand opens the full screen chat. The
// subcommands cover a plain line mode for terminals without full screen
// support, the archive of past conversations, the webhook and the config
// file:
//
//	talks                       open the chat
//	talks chat                  line mode chat
//	talks history list          list archived conversations
//	talks history show <id>     print a conversation
//	talks history delete <id>   delete a conversation
//	talks webhook test          send a test message to the webhook
//	talks config show|init|path inspect or create the config file
//
// Persistent flags override the config file and the environment for one
// run.
package cli
