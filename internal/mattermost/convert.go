package mattermost

import (
	"fmt"
)

// FromMap rebuilds a Message from a plain mapping such as the one returned
// by ToMap, or a decoded JSON/YAML document. Every value goes through the
// builder, so the result is validated exactly like a hand-built message.
// Unknown keys are ignored; nil values count as absent. An empty "text" is
// treated as unset so that ToMap of a message without text round-trips.
func FromMap(raw map[string]any) (Message, error) {
	b := NewMessage()

	text, err := optionalString(raw, keyText)
	if err != nil {
		return Message{}, err
	}
	if text != "" {
		b.Text(text)
	}

	username, err := optionalString(raw, keyUsername)
	if err != nil {
		return Message{}, err
	}
	b.Username(username)

	channel, err := optionalString(raw, keyChannel)
	if err != nil {
		return Message{}, err
	}
	b.Channel(channel)

	iconURL, err := optionalURI(raw, keyIconURL)
	if err != nil {
		return Message{}, err
	}
	if iconURL != "" {
		b.IconURL(iconURL)
	}

	if v, ok := raw[keyAttachments]; ok && v != nil {
		srcs, err := attachmentSources(v)
		if err != nil {
			return Message{}, err
		}
		b.SetAttachments(srcs...)
	}

	return b.Build()
}

// AttachmentFromMap rebuilds an Attachment from a plain mapping.
func AttachmentFromMap(raw map[string]any) (Attachment, error) {
	b := NewAttachment()

	for _, text := range []struct {
		key string
		set func(string) *AttachmentBuilder
	}{
		{keyFallback, b.Fallback},
		{keyColor, b.Color},
		{keyPretext, b.Pretext},
		{keyText, b.Text},
		{keyAuthorName, b.AuthorName},
	} {
		s, err := optionalString(raw, text.key)
		if err != nil {
			return Attachment{}, err
		}
		text.set(s)
	}

	for _, uri := range []struct {
		key string
		set func(string) *AttachmentBuilder
	}{
		{keyAuthorLink, b.AuthorLink},
		{keyAuthorIcon, b.AuthorIcon},
		{keyImageURL, b.ImageURL},
		{keyThumbURL, b.ThumbURL},
	} {
		u, err := optionalURI(raw, uri.key)
		if err != nil {
			return Attachment{}, err
		}
		if u != "" {
			uri.set(u)
		}
	}

	title, err := optionalString(raw, keyTitle)
	if err != nil {
		return Attachment{}, err
	}
	titleLink, err := optionalURI(raw, keyTitleLink)
	if err != nil {
		return Attachment{}, err
	}
	b.Title(title, titleLink)

	if v, ok := raw[keyFields]; ok && v != nil {
		fields, err := fieldsFrom(v)
		if err != nil {
			return Attachment{}, err
		}
		b.SetFields(fields...)
	}

	return b.Build()
}

func optionalString(raw map[string]any, key string) (string, error) {
	v, ok := raw[key]
	if !ok || v == nil {
		return "", nil
	}
	return FilterString(v, key)
}

func optionalURI(raw map[string]any, key string) (string, error) {
	v, ok := raw[key]
	if !ok || v == nil {
		return "", nil
	}
	if s, isString := v.(string); isString && s == "" {
		return "", nil
	}
	return FilterURI(v, key)
}

func attachmentSources(v any) ([]AttachmentSource, error) {
	switch list := v.(type) {
	case []Attachment:
		srcs := make([]AttachmentSource, len(list))
		for i, a := range list {
			srcs[i] = a
		}
		return srcs, nil
	case []AttachmentSource:
		return list, nil
	case []map[string]any:
		srcs := make([]AttachmentSource, len(list))
		for i, m := range list {
			a, err := AttachmentFromMap(m)
			if err != nil {
				return nil, err
			}
			srcs[i] = a
		}
		return srcs, nil
	case []any:
		srcs := make([]AttachmentSource, len(list))
		for i, item := range list {
			src, err := attachmentSource(item, i)
			if err != nil {
				return nil, err
			}
			srcs[i] = src
		}
		return srcs, nil
	default:
		return nil, typeError(keyAttachments, "a list", v)
	}
}

func attachmentSource(item any, i int) (AttachmentSource, error) {
	switch x := item.(type) {
	case map[string]any:
		return AttachmentFromMap(x)
	case Attachment:
		return x, nil
	case *AttachmentBuilder:
		return x, nil
	case AttachmentFunc:
		return x, nil
	case func(*AttachmentBuilder):
		return AttachmentFunc(x), nil
	default:
		return nil, typeError(fmt.Sprintf("%s[%d]", keyAttachments, i), "an attachment mapping or an attachment builder function", item)
	}
}

func fieldsFrom(v any) ([]Field, error) {
	switch list := v.(type) {
	case []Field:
		return list, nil
	case []map[string]any:
		fields := make([]Field, len(list))
		for i, m := range list {
			f, err := fieldFromMap(m, i)
			if err != nil {
				return nil, err
			}
			fields[i] = f
		}
		return fields, nil
	case []any:
		fields := make([]Field, len(list))
		for i, item := range list {
			f, err := fieldFrom(item, i)
			if err != nil {
				return nil, err
			}
			fields[i] = f
		}
		return fields, nil
	default:
		return nil, typeError(keyFields, "a list", v)
	}
}

func fieldFrom(item any, i int) (Field, error) {
	switch x := item.(type) {
	case Field:
		return x, nil
	case map[string]any:
		return fieldFromMap(x, i)
	case []any:
		return fieldFromList(x, i)
	default:
		return Field{}, typeError(fieldName(i), "a field mapping or a [title, value, short] list", item)
	}
}

// fieldFromMap reads {title, value, short}; short defaults to true.
func fieldFromMap(m map[string]any, i int) (Field, error) {
	name := fieldName(i)
	f := Field{Short: true}

	var err error
	if f.Title, err = optionalString(m, "title"); err != nil {
		return Field{}, typeError(name+".title", "text", m["title"])
	}
	if f.Value, err = optionalString(m, "value"); err != nil {
		return Field{}, typeError(name+".value", "text", m["value"])
	}
	if v, ok := m["short"]; ok && v != nil {
		short, isBool := v.(bool)
		if !isBool {
			return Field{}, typeError(name+".short", "a boolean", v)
		}
		f.Short = short
	}
	return f, nil
}

// fieldFromList reads the positional form [title, value] or [title, value, short].
func fieldFromList(list []any, i int) (Field, error) {
	name := fieldName(i)
	if len(list) < 2 || len(list) > 3 {
		return Field{}, typeError(name, "a [title, value, short] list", list)
	}

	title, err := FilterString(list[0], name+".title")
	if err != nil {
		return Field{}, err
	}
	value, err := FilterString(list[1], name+".value")
	if err != nil {
		return Field{}, err
	}
	f := Field{Title: title, Value: value, Short: true}
	if len(list) == 3 {
		short, ok := list[2].(bool)
		if !ok {
			return Field{}, typeError(name+".short", "a boolean", list[2])
		}
		f.Short = short
	}
	return f, nil
}

func fieldName(i int) string {
	return fmt.Sprintf("%s[%d]", keyFields, i)
}
