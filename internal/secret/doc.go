// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package secret protects the API key at rest.
//
// Values are encrypted with AES-256-GCM and stored in the config file as
// ENC:base64(nonce|ciphertext|tag). The master key lives in a 0600 file
// under the config directory, or is derived from a password with
// PBKDF2-SHA-256 when the user prefers nothing key-like on disk.
//
// # Usage
//
//	vault, err := secret.Open(configDir)
//	if err != nil { ... }
//	if !vault.Initialized() {
//	    if err := vault.Init(); err != nil { ... }
//	}
//	stored, err := vault.EncryptString(apiKey)
//
// DecryptString passes plaintext values through unchanged, so config
// loading never needs to care whether encryption was ever enabled.
package secret
