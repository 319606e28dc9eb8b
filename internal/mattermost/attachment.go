package mattermost

import (
	"encoding/json"
	"strings"
)

// Attachment bar colors.
const (
	ColorSuccess = "#22BC66"
	ColorError   = "#DC4D2F"
	ColorInfo    = "#3869D4"
)

// Wire keys of an attachment.
const (
	keyFallback   = "fallback"
	keyColor      = "color"
	keyPretext    = "pretext"
	keyText       = "text"
	keyAuthorName = "author_name"
	keyAuthorLink = "author_link"
	keyAuthorIcon = "author_icon"
	keyTitle      = "title"
	keyTitleLink  = "title_link"
	keyFields     = "fields"
	keyImageURL   = "image_url"
	keyThumbURL   = "thumb_url"
)

// Field is one row of an attachment's table. It always serializes with all
// three keys.
type Field struct {
	Title string `json:"title"`
	Value string `json:"value"`
	Short bool   `json:"short"`
}

func (f Field) toMap() map[string]any {
	return map[string]any{
		"title": f.Title,
		"value": f.Value,
		"short": f.Short,
	}
}

// Attachment is a frozen message card. Build one with NewAttachment.
// An empty string means the field is unset.
type Attachment struct {
	fallback   string
	color      string
	pretext    string
	text       string
	authorName string
	authorLink string
	authorIcon string
	title      string
	titleLink  string
	fields     []Field
	imageURL   string
	thumbURL   string
}

func (a Attachment) Fallback() string   { return a.fallback }
func (a Attachment) Color() string      { return a.color }
func (a Attachment) Pretext() string    { return a.pretext }
func (a Attachment) Text() string       { return a.text }
func (a Attachment) AuthorName() string { return a.authorName }
func (a Attachment) AuthorLink() string { return a.authorLink }
func (a Attachment) AuthorIcon() string { return a.authorIcon }
func (a Attachment) Title() string      { return a.title }
func (a Attachment) TitleLink() string  { return a.titleLink }
func (a Attachment) ImageURL() string   { return a.imageURL }
func (a Attachment) ThumbURL() string   { return a.thumbURL }

// Fields returns a copy of the attachment's table rows in insertion order.
func (a Attachment) Fields() []Field {
	return cloneFields(a.fields)
}

// ToMap returns the plain mapping projection. Unset fields are absent.
func (a Attachment) ToMap() map[string]any {
	m := make(map[string]any, 12)
	for _, kv := range [...]struct {
		key   string
		value string
	}{
		{keyFallback, a.fallback},
		{keyColor, a.color},
		{keyPretext, a.pretext},
		{keyText, a.text},
		{keyAuthorName, a.authorName},
		{keyAuthorLink, a.authorLink},
		{keyAuthorIcon, a.authorIcon},
		{keyTitle, a.title},
		{keyTitleLink, a.titleLink},
		{keyImageURL, a.imageURL},
		{keyThumbURL, a.thumbURL},
	} {
		if kv.value != "" {
			m[kv.key] = kv.value
		}
	}

	if len(a.fields) > 0 {
		fields := make([]map[string]any, len(a.fields))
		for i, f := range a.fields {
			fields[i] = f.toMap()
		}
		m[keyFields] = fields
	}
	return m
}

// JSONMap returns the JSON projection: ToMap without empty values.
func (a Attachment) JSONMap() map[string]any {
	return compact(a.ToMap())
}

// MarshalJSON encodes the JSON projection.
func (a Attachment) MarshalJSON() ([]byte, error) {
	return json.Marshal(a.JSONMap())
}

// UnmarshalJSON decodes and validates an attachment document.
func (a *Attachment) UnmarshalJSON(data []byte) error {
	var raw map[string]any
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	decoded, err := AttachmentFromMap(raw)
	if err != nil {
		return err
	}
	*a = decoded
	return nil
}

func (a Attachment) resolve() (Attachment, error) {
	return a, nil
}

// AttachmentBuilder assembles an Attachment. It is owned by a single
// goroutine. The first failing setter records an error, leaves its field
// untouched and turns every later setter into a no-op.
type AttachmentBuilder struct {
	a   Attachment
	err error
}

// NewAttachment returns an empty attachment builder.
func NewAttachment() *AttachmentBuilder {
	return &AttachmentBuilder{}
}

// Err returns the first error recorded by a setter, if any.
func (b *AttachmentBuilder) Err() error {
	return b.err
}

// Build freezes the current state into an Attachment. Later changes to the
// builder do not affect the returned value.
func (b *AttachmentBuilder) Build() (Attachment, error) {
	if b.err != nil {
		return Attachment{}, b.err
	}
	a := b.a
	a.fields = cloneFields(b.a.fields)
	return a, nil
}

func (b *AttachmentBuilder) resolve() (Attachment, error) {
	return b.Build()
}

func (b *AttachmentBuilder) setText(dst *string, s string) *AttachmentBuilder {
	if b.err == nil {
		*dst = strings.TrimSpace(s)
	}
	return b
}

func (b *AttachmentBuilder) setURI(dst *string, raw, field string) *AttachmentBuilder {
	if b.err != nil {
		return b
	}
	u, err := FilterURI(raw, field)
	if err != nil {
		b.err = err
		return b
	}
	*dst = u
	return b
}

// Fallback sets the plain-text summary shown by clients without rich rendering.
func (b *AttachmentBuilder) Fallback(s string) *AttachmentBuilder {
	return b.setText(&b.a.fallback, s)
}

// Color sets the left border color. The value is not checked for hex format.
func (b *AttachmentBuilder) Color(hex string) *AttachmentBuilder {
	return b.setText(&b.a.color, hex)
}

// Success colors the attachment green.
func (b *AttachmentBuilder) Success() *AttachmentBuilder {
	return b.Color(ColorSuccess)
}

// Failure colors the attachment red.
func (b *AttachmentBuilder) Failure() *AttachmentBuilder {
	return b.Color(ColorError)
}

// Info colors the attachment blue.
func (b *AttachmentBuilder) Info() *AttachmentBuilder {
	return b.Color(ColorInfo)
}

func (b *AttachmentBuilder) Pretext(s string) *AttachmentBuilder {
	return b.setText(&b.a.pretext, s)
}

func (b *AttachmentBuilder) Text(s string) *AttachmentBuilder {
	return b.setText(&b.a.text, s)
}

func (b *AttachmentBuilder) AuthorName(s string) *AttachmentBuilder {
	return b.setText(&b.a.authorName, s)
}

func (b *AttachmentBuilder) AuthorLink(raw string) *AttachmentBuilder {
	return b.setURI(&b.a.authorLink, raw, keyAuthorLink)
}

func (b *AttachmentBuilder) AuthorIcon(raw string) *AttachmentBuilder {
	return b.setURI(&b.a.authorIcon, raw, keyAuthorIcon)
}

// Title sets the title and its optional link. An empty title or an empty
// link clears any stored link, so a link never outlives its title.
func (b *AttachmentBuilder) Title(title, link string) *AttachmentBuilder {
	if b.err != nil {
		return b
	}
	title = strings.TrimSpace(title)
	if title == "" || link == "" {
		b.a.title = title
		b.a.titleLink = ""
		return b
	}

	u, err := FilterURI(link, keyTitleLink)
	if err != nil {
		b.err = err
		return b
	}
	b.a.title = title
	b.a.titleLink = u
	return b
}

// AddField appends a trimmed table row. Rows are neither deduplicated nor capped.
func (b *AttachmentBuilder) AddField(title, value string, short bool) *AttachmentBuilder {
	if b.err == nil {
		b.a.fields = append(b.a.fields, Field{
			Title: strings.TrimSpace(title),
			Value: strings.TrimSpace(value),
			Short: short,
		})
	}
	return b
}

// SetFields replaces every existing row with fields, in order.
func (b *AttachmentBuilder) SetFields(fields ...Field) *AttachmentBuilder {
	if b.err != nil {
		return b
	}
	b.a.fields = nil
	for _, f := range fields {
		b.AddField(f.Title, f.Value, f.Short)
	}
	return b
}

func (b *AttachmentBuilder) ImageURL(raw string) *AttachmentBuilder {
	return b.setURI(&b.a.imageURL, raw, keyImageURL)
}

func (b *AttachmentBuilder) ThumbURL(raw string) *AttachmentBuilder {
	return b.setURI(&b.a.thumbURL, raw, keyThumbURL)
}

func cloneFields(fields []Field) []Field {
	if len(fields) == 0 {
		return nil
	}
	out := make([]Field, len(fields))
	copy(out, fields)
	return out
}
