// Package mattermost models incoming-webhook payloads: a Message with
// optional Attachment cards, validated while it is built and projected to a
// plain mapping or to the JSON document posted to the chat endpoint.
//
// Values are assembled with single-owner builders (NewMessage,
// NewAttachment) and frozen by Build into immutable Message and Attachment
// values that are safe to share between goroutines.
package mattermost

import (
	"encoding/json"
	"strings"

	"mmhook/internal/types"
)

// Wire keys of a message.
const (
	keyUsername    = "username"
	keyChannel     = "channel"
	keyIconURL     = "icon_url"
	keyAttachments = "attachments"
)

// Message is a frozen webhook payload. Build one with NewMessage or FromMap.
// The zero Message is valid and serializes to an empty JSON object.
type Message struct {
	text        string
	username    string
	channel     string
	iconURL     string
	attachments []Attachment
}

func (m Message) Text() string     { return m.text }
func (m Message) Username() string { return m.username }
func (m Message) Channel() string  { return m.channel }
func (m Message) IconURL() string  { return m.iconURL }

// Attachments returns a copy of the attachments in insertion order.
func (m Message) Attachments() []Attachment {
	return cloneAttachments(m.attachments)
}

// ToMap returns the plain mapping projection. Every key is present, with
// zero values for unset fields; each attachment is expanded by its own ToMap.
func (m Message) ToMap() map[string]any {
	attachments := make([]map[string]any, len(m.attachments))
	for i, a := range m.attachments {
		attachments[i] = a.ToMap()
	}
	return map[string]any{
		keyText:        m.text,
		keyUsername:    m.username,
		keyChannel:     m.channel,
		keyIconURL:     m.iconURL,
		keyAttachments: attachments,
	}
}

// JSONMap returns the JSON projection: empty values are dropped and each
// attachment is reduced by its own JSONMap. A message without attachments
// has no "attachments" key.
func (m Message) JSONMap() map[string]any {
	out := compact(map[string]any{
		keyText:     m.text,
		keyUsername: m.username,
		keyChannel:  m.channel,
		keyIconURL:  m.iconURL,
	})
	if len(m.attachments) > 0 {
		attachments := make([]map[string]any, len(m.attachments))
		for i, a := range m.attachments {
			attachments[i] = a.JSONMap()
		}
		out[keyAttachments] = attachments
	}
	return out
}

// MarshalJSON encodes the JSON projection.
func (m Message) MarshalJSON() ([]byte, error) {
	return json.Marshal(m.JSONMap())
}

// UnmarshalJSON decodes a message document and validates it like FromMap.
func (m *Message) UnmarshalJSON(data []byte) error {
	var raw map[string]any
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	decoded, err := FromMap(raw)
	if err != nil {
		return err
	}
	*m = decoded
	return nil
}

// WithDefaults returns a copy of m whose unset username, channel and icon
// URL are filled from the arguments. Empty arguments are ignored.
func (m Message) WithDefaults(username, channel, iconURL string) (Message, error) {
	out := m
	out.attachments = cloneAttachments(m.attachments)
	if out.username == "" {
		out.username = strings.TrimSpace(username)
	}
	if out.channel == "" {
		out.channel = strings.TrimSpace(channel)
	}
	if out.iconURL == "" && iconURL != "" {
		u, err := FilterURI(iconURL, keyIconURL)
		if err != nil {
			return Message{}, err
		}
		out.iconURL = u
	}
	return out, nil
}

// AttachmentSource is something a MessageBuilder can turn into an
// Attachment: an Attachment value, an *AttachmentBuilder, or an
// AttachmentFunc. The set is closed.
type AttachmentSource interface {
	resolve() (Attachment, error)
}

// AttachmentFunc configures a fresh, empty attachment builder.
type AttachmentFunc func(*AttachmentBuilder)

func (f AttachmentFunc) resolve() (Attachment, error) {
	if f == nil {
		return Attachment{}, typeError(keyAttachments, "an Attachment or an attachment builder function", f)
	}
	b := NewAttachment()
	f(b)
	return b.Build()
}

// MessageBuilder assembles a Message with the same sticky-error discipline
// as AttachmentBuilder.
type MessageBuilder struct {
	m   Message
	err error
}

// NewMessage returns an empty message builder.
func NewMessage() *MessageBuilder {
	return &MessageBuilder{}
}

// Err returns the first error recorded by a setter, if any.
func (b *MessageBuilder) Err() error {
	return b.err
}

// Build freezes the current state into a Message.
func (b *MessageBuilder) Build() (Message, error) {
	if b.err != nil {
		return Message{}, b.err
	}
	m := b.m
	m.attachments = cloneAttachments(b.m.attachments)
	return m, nil
}

// Text sets the message body. Text that is empty after trimming is rejected;
// a message that never calls Text is still valid.
func (b *MessageBuilder) Text(text string) *MessageBuilder {
	if b.err != nil {
		return b
	}
	text = strings.TrimSpace(text)
	if text == "" {
		b.err = types.NewFieldError(types.ErrCodeValidationEmptyText, keyText, "text must not be empty")
		return b
	}
	b.m.text = text
	return b
}

// Username overrides the sender display name.
func (b *MessageBuilder) Username(username string) *MessageBuilder {
	if b.err == nil {
		b.m.username = strings.TrimSpace(username)
	}
	return b
}

// Channel overrides the target channel.
func (b *MessageBuilder) Channel(channel string) *MessageBuilder {
	if b.err == nil {
		b.m.channel = strings.TrimSpace(channel)
	}
	return b
}

// IconURL overrides the sender avatar.
func (b *MessageBuilder) IconURL(raw string) *MessageBuilder {
	if b.err != nil {
		return b
	}
	u, err := FilterURI(raw, keyIconURL)
	if err != nil {
		b.err = err
		return b
	}
	b.m.iconURL = u
	return b
}

// AddAttachment appends the attachment produced by src.
func (b *MessageBuilder) AddAttachment(src AttachmentSource) *MessageBuilder {
	if b.err != nil {
		return b
	}
	a, err := resolveSource(src)
	if err != nil {
		b.err = err
		return b
	}
	b.m.attachments = append(b.m.attachments, a)
	return b
}

// AttachFunc appends an attachment configured by fn.
func (b *MessageBuilder) AttachFunc(fn func(*AttachmentBuilder)) *MessageBuilder {
	return b.AddAttachment(AttachmentFunc(fn))
}

// SetAttachments replaces all attachments with the ones produced by srcs.
// If any source fails the previous attachments are kept.
func (b *MessageBuilder) SetAttachments(srcs ...AttachmentSource) *MessageBuilder {
	if b.err != nil {
		return b
	}
	attachments := make([]Attachment, 0, len(srcs))
	for _, src := range srcs {
		a, err := resolveSource(src)
		if err != nil {
			b.err = err
			return b
		}
		attachments = append(attachments, a)
	}
	if len(attachments) == 0 {
		attachments = nil
	}
	b.m.attachments = attachments
	return b
}

func resolveSource(src AttachmentSource) (Attachment, error) {
	if src == nil {
		return Attachment{}, typeError(keyAttachments, "an Attachment or an attachment builder function", src)
	}
	if ab, ok := src.(*AttachmentBuilder); ok && ab == nil {
		return Attachment{}, typeError(keyAttachments, "an Attachment or an attachment builder function", src)
	}
	return src.resolve()
}

func cloneAttachments(attachments []Attachment) []Attachment {
	if len(attachments) == 0 {
		return nil
	}
	out := make([]Attachment, len(attachments))
	copy(out, attachments)
	return out
}
