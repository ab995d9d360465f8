// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package util provides utility functions shared across rigchat.
//
// It contains the small helpers the rest of the application leans on
// for string display, numeric formatting, and crash-safe file writes.
//
// # Key Functions
//
// String Utilities:
//   - TruncateRunes: UTF-8 safe truncation with ellipsis
//   - TruncateWidth: display-width truncation (CJK aware)
//
// Type Conversion:
//   - IntToString, Int64ToString, FloatToString
//
// File Operations:
//   - AtomicWriteFile: crash-safe file writing with fsync
package util
