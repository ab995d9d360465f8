// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package model

import (
	"encoding/base64"
	"errors"
	"os"
	"path/filepath"
	"strings"

	"github.com/jeranaias/rigchat/internal/api"
)

// =============================================================================
// ATTACHMENT TYPE
// =============================================================================

// AttachmentKind classifies what an attachment carries.
type AttachmentKind string

const (
	AttachmentImage    AttachmentKind = "image"
	AttachmentAudio    AttachmentKind = "audio"
	AttachmentDocument AttachmentKind = "document"
)

// MaxAttachmentSize caps how much file data a single attachment may carry.
// Large payloads blow past context windows long before this limit matters
// for documents; it mostly guards against attaching the wrong file.
const MaxAttachmentSize = 10 * 1024 * 1024 // 10 MB

// ErrAttachmentTooLarge is returned when a file exceeds MaxAttachmentSize.
var ErrAttachmentTooLarge = errors.New("attachment exceeds size limit")

// Attachment is a file included with a user message. Data holds the raw
// bytes and serializes as base64 in conversation JSON.
type Attachment struct {
	Kind AttachmentKind `json:"kind"`
	Name string         `json:"name"`

	// MIME is set for images ("image/png"), Format for audio ("wav").
	MIME   string `json:"mime,omitempty"`
	Format string `json:"format,omitempty"`

	Data []byte `json:"data"`
}

// NewImageAttachment wraps raw image bytes.
func NewImageAttachment(name, mime string, data []byte) Attachment {
	return Attachment{Kind: AttachmentImage, Name: name, MIME: mime, Data: data}
}

// NewAudioAttachment wraps raw audio bytes.
func NewAudioAttachment(name, format string, data []byte) Attachment {
	return Attachment{Kind: AttachmentAudio, Name: name, Format: format, Data: data}
}

// NewDocumentAttachment wraps a text document.
func NewDocumentAttachment(name string, data []byte) Attachment {
	return Attachment{Kind: AttachmentDocument, Name: name, Data: data}
}

// AttachmentFromFile reads a file and classifies it by extension: known
// image and audio extensions get their kind, everything else is treated as
// a text document.
func AttachmentFromFile(path string) (Attachment, error) {
	info, err := os.Stat(path)
	if err != nil {
		return Attachment{}, err
	}
	if info.Size() > MaxAttachmentSize {
		return Attachment{}, ErrAttachmentTooLarge
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return Attachment{}, err
	}

	name := filepath.Base(path)
	switch strings.ToLower(filepath.Ext(path)) {
	case ".png":
		return NewImageAttachment(name, "image/png", data), nil
	case ".jpg", ".jpeg":
		return NewImageAttachment(name, "image/jpeg", data), nil
	case ".gif":
		return NewImageAttachment(name, "image/gif", data), nil
	case ".webp":
		return NewImageAttachment(name, "image/webp", data), nil
	case ".wav":
		return NewAudioAttachment(name, "wav", data), nil
	case ".mp3":
		return NewAudioAttachment(name, "mp3", data), nil
	default:
		return NewDocumentAttachment(name, data), nil
	}
}

// =============================================================================
// WIRE CONVERSION
// =============================================================================

// ToContentPart converts the attachment into the multimodal content part
// the chat-completions format expects. Images become data-URI image_url
// parts, audio becomes input_audio, documents fold into framed text.
func (a Attachment) ToContentPart() api.ContentPart {
	switch a.Kind {
	case AttachmentImage:
		uri := "data:" + a.MIME + ";base64," + base64.StdEncoding.EncodeToString(a.Data)
		return api.ImagePart(uri)
	case AttachmentAudio:
		return api.AudioPart(base64.StdEncoding.EncodeToString(a.Data), a.Format)
	default:
		return api.DocumentPart(a.Name, string(a.Data))
	}
}

// EstimateTokens approximates the attachment's context cost. Text documents
// count like message text; binary payloads use a flat allowance since their
// tokenized size depends on the server.
func (a Attachment) EstimateTokens() int {
	if a.Kind == AttachmentDocument {
		return (len(a.Data) + 3) / 4
	}
	return 256
}
