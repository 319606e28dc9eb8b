package mattermost

import (
	"encoding/json"
	"fmt"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"mmhook/internal/types"
)

func TestMessage_ZeroValueProjections(t *testing.T) {
	var m Message

	assert.Empty(t, m.JSONMap())
	assert.NotEmpty(t, m.ToMap())
	assert.Equal(t, map[string]any{
		"text":        "",
		"username":    "",
		"channel":     "",
		"icon_url":    "",
		"attachments": []map[string]any{},
	}, m.ToMap())

	data, err := json.Marshal(m)
	require.NoError(t, err)
	assert.JSONEq(t, `{}`, string(data))
}

func TestMessageBuilder_EndToEnd(t *testing.T) {
	m, err := NewMessage().
		Text("This is a *test*.").
		Channel("tests").
		Username("A Tester").
		IconURL("https://example.com/icon.gif").
		AttachFunc(func(a *AttachmentBuilder) {
			a.Success()
		}).
		Build()
	require.NoError(t, err)

	data, err := json.Marshal(m)
	require.NoError(t, err)
	assert.JSONEq(t, `{
		"text": "This is a *test*.",
		"channel": "tests",
		"username": "A Tester",
		"icon_url": "https://example.com/icon.gif",
		"attachments": [{"color": "#22BC66"}]
	}`, string(data))
}

func TestMessageBuilder_TextRequired(t *testing.T) {
	for _, text := range []string{"", "   ", "\n\t"} {
		t.Run(fmt.Sprintf("%q", text), func(t *testing.T) {
			_, err := NewMessage().Text(text).Build()

			var appErr *types.AppError
			require.ErrorAs(t, err, &appErr)
			assert.Equal(t, types.ErrCodeValidationEmptyText, appErr.Code)
			assert.Equal(t, "text", appErr.Details["field"])
		})
	}
}

// Text is required only when set; attachment-only notifications never call Text.
func TestMessageBuilder_AttachmentOnlyWithoutText(t *testing.T) {
	m, err := NewMessage().AttachFunc(func(a *AttachmentBuilder) {
		a.Failure().Text("disk full")
	}).Build()
	require.NoError(t, err)

	assert.Empty(t, m.Text())
	assert.NotContains(t, m.JSONMap(), "text")
	assert.Len(t, m.JSONMap()["attachments"], 1)
}

func TestMessageBuilder_TrimsOverrides(t *testing.T) {
	m, err := NewMessage().
		Text("  hello  ").
		Username(" deploy-bot ").
		Channel(" town-square ").
		Build()
	require.NoError(t, err)

	assert.Equal(t, "hello", m.Text())
	assert.Equal(t, "deploy-bot", m.Username())
	assert.Equal(t, "town-square", m.Channel())
}

func TestMessageBuilder_IconURL(t *testing.T) {
	for _, u := range []string{
		"https://example.com/icon.gif",
		"http://localhost:8065/static/logo.png?v=2#frag",
	} {
		m, err := NewMessage().IconURL(u).Build()
		require.NoError(t, err)
		assert.Equal(t, u, m.IconURL(), "absolute URIs are stored unchanged")
	}

	for _, u := range []string{"//github.com", "relative/path", ""} {
		_, err := NewMessage().IconURL(u).Build()
		assert.True(t, types.HasCode(err, types.ErrCodeValidationInvalidURI), "%q: got %v", u, err)
	}
}

func TestMessageBuilder_Mutability(t *testing.T) {
	b := NewMessage().
		Text("Coucou it's me").
		SetAttachments(Attachment{}, Attachment{})

	m, err := b.Build()
	require.NoError(t, err)
	assert.Equal(t, "Coucou it's me", m.ToMap()["text"])
	assert.Len(t, m.Attachments(), 2)

	b.Text("Overwritten info")
	overwritten, err := b.Build()
	require.NoError(t, err)
	assert.Equal(t, "Overwritten info", overwritten.ToMap()["text"])
	assert.Equal(t, "Coucou it's me", m.Text(), "built messages are frozen")
}

func TestMessageBuilder_AddAttachmentSources(t *testing.T) {
	prebuilt, err := NewAttachment().Text("prebuilt").Build()
	require.NoError(t, err)

	m, err := NewMessage().
		AddAttachment(prebuilt).
		AddAttachment(NewAttachment().Text("from builder")).
		AddAttachment(AttachmentFunc(func(a *AttachmentBuilder) { a.Text("from func") })).
		AttachFunc(func(a *AttachmentBuilder) { a.Text("from AttachFunc") }).
		Build()
	require.NoError(t, err)

	var texts []string
	for _, a := range m.Attachments() {
		texts = append(texts, a.Text())
	}
	assert.Equal(t, []string{"prebuilt", "from builder", "from func", "from AttachFunc"}, texts)
}

func TestMessageBuilder_AddAttachmentRejectsNil(t *testing.T) {
	var nilFunc AttachmentFunc
	var nilBuilder *AttachmentBuilder

	for name, src := range map[string]AttachmentSource{
		"nil interface": nil,
		"nil func":      nilFunc,
		"nil builder":   nilBuilder,
	} {
		t.Run(name, func(t *testing.T) {
			_, err := NewMessage().AddAttachment(src).Build()
			assert.True(t, types.HasCode(err, types.ErrCodeValidationInvalidType), "got %v", err)
		})
	}
}

func TestMessageBuilder_AttachmentErrorsPropagate(t *testing.T) {
	_, err := NewMessage().
		Text("hello").
		AttachFunc(func(a *AttachmentBuilder) { a.AuthorIcon("icons/me.png") }).
		Build()

	var appErr *types.AppError
	require.ErrorAs(t, err, &appErr)
	assert.Equal(t, types.ErrCodeValidationInvalidURI, appErr.Code)
	assert.Equal(t, "author_icon", appErr.Details["field"])
}

func TestMessageBuilder_SetAttachmentsReplaces(t *testing.T) {
	first, _ := NewAttachment().Text("first").Build()
	second, _ := NewAttachment().Text("second").Build()

	m, err := NewMessage().
		AddAttachment(first).
		SetAttachments(second).
		Build()
	require.NoError(t, err)
	require.Len(t, m.Attachments(), 1)
	assert.Equal(t, "second", m.Attachments()[0].Text())

	m, err = NewMessage().AddAttachment(first).SetAttachments().Build()
	require.NoError(t, err)
	assert.Empty(t, m.Attachments())
	assert.NotContains(t, m.JSONMap(), "attachments")
}

func TestMessageBuilder_SetAttachmentsFailureKeepsPrevious(t *testing.T) {
	first, _ := NewAttachment().Text("first").Build()

	b := NewMessage().
		AddAttachment(first).
		SetAttachments(Attachment{}, NewAttachment().ImageURL("nope"))

	require.Error(t, b.Err())
	require.Len(t, b.m.attachments, 1)
	assert.Equal(t, "first", b.m.attachments[0].Text())
}

func TestMessage_WithDefaults(t *testing.T) {
	m, err := NewMessage().Text("hi").Username("explicit").Build()
	require.NoError(t, err)

	filled, err := m.WithDefaults("fallback-user", " alerts ", "https://example.com/bot.png")
	require.NoError(t, err)
	assert.Equal(t, "explicit", filled.Username())
	assert.Equal(t, "alerts", filled.Channel())
	assert.Equal(t, "https://example.com/bot.png", filled.IconURL())
	assert.Empty(t, m.Channel(), "WithDefaults returns a copy")

	_, err = m.WithDefaults("", "", "//bad")
	assert.True(t, types.HasCode(err, types.ErrCodeValidationInvalidURI))
}

func TestMessage_UnmarshalJSON(t *testing.T) {
	var m Message
	err := json.Unmarshal([]byte(`{
		"text": "Release 2.0 is out",
		"channel": "announcements",
		"attachments": [
			{"color": "#22BC66", "title": "Changelog", "title_link": "https://example.com/changelog",
			 "fields": [{"title": "Version", "value": "2.0.0", "short": true}]}
		]
	}`), &m)
	require.NoError(t, err)

	assert.Equal(t, "Release 2.0 is out", m.Text())
	assert.Equal(t, "announcements", m.Channel())
	require.Len(t, m.Attachments(), 1)
	a := m.Attachments()[0]
	assert.Equal(t, "https://example.com/changelog", a.TitleLink())
	assert.Equal(t, []Field{{Title: "Version", Value: "2.0.0", Short: true}}, a.Fields())

	err = json.Unmarshal([]byte(`{"text": "   "}`), &m)
	assert.True(t, types.HasCode(err, types.ErrCodeValidationEmptyText))
}

func TestMessage_ConcurrentReads(t *testing.T) {
	m, err := NewMessage().
		Text("shared").
		AttachFunc(func(a *AttachmentBuilder) { a.Info().AddField("k", "v", true) }).
		Build()
	require.NoError(t, err)

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := json.Marshal(m)
			assert.NoError(t, err)
			_ = m.ToMap()
		}()
	}
	wg.Wait()
}
