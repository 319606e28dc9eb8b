// Command mmpost posts a message to a Mattermost incoming webhook.
//
// The message comes from flags, from a YAML or JSON document (-f) in the
// same shape the relay accepts, or both; flags win over the document.
// Attachment flags (-color, -title, -field, ...) add one attachment after any
// the document declares.
//
// Usage:
//
//	mmpost -text "Deploy finished" -color success -field env=prod
//	mmpost -f alert.yaml -channel ops -dry-run
package main

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"gopkg.in/yaml.v3"

	"mmhook/internal/config"
	"mmhook/internal/mattermost"
	"mmhook/internal/types"
	"mmhook/internal/webhook"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	err := run(ctx, os.Args[1:], os.Stdout, os.Stderr)
	stop()

	if errors.Is(err, flag.ErrHelp) {
		os.Exit(2)
	}
	if err != nil {
		fmt.Fprintf(os.Stderr, "mmpost: %v\n", err)
		os.Exit(1)
	}
}

// fieldList collects repeated -field/-long-field flags.
type fieldList struct {
	fields *[]mattermost.Field
	short  bool
}

func (f fieldList) String() string { return "" }

func (f fieldList) Set(v string) error {
	title, value, ok := strings.Cut(v, "=")
	if !ok {
		return fmt.Errorf("field %q must be title=value", v)
	}
	*f.fields = append(*f.fields, mattermost.Field{Title: title, Value: value, Short: f.short})
	return nil
}

type options struct {
	file    string
	envFile string
	url     string
	dryRun  bool

	text     string
	username string
	channel  string
	iconURL  string

	color          string
	fallback       string
	pretext        string
	attachmentText string
	author         string
	title          string
	titleLink      string
	imageURL       string
	thumbURL       string
	fields         []mattermost.Field
}

// hasAttachment reports whether any attachment flag was given.
func (o *options) hasAttachment() bool {
	return o.color != "" || o.fallback != "" || o.pretext != "" || o.attachmentText != "" ||
		o.author != "" || o.title != "" || o.imageURL != "" || o.thumbURL != "" || len(o.fields) > 0
}

func parseOptions(args []string, output io.Writer) (*options, error) {
	o := &options{}
	fs := flag.NewFlagSet("mmpost", flag.ContinueOnError)
	fs.SetOutput(output)

	fs.StringVar(&o.file, "f", "", "YAML or JSON message document")
	fs.StringVar(&o.envFile, "env-file", "", "dotenv file to load before reading the environment")
	fs.StringVar(&o.url, "url", "", "webhook URL (overrides MATTERMOST_WEBHOOK_URL)")
	fs.BoolVar(&o.dryRun, "dry-run", false, "print the JSON payload instead of sending it")

	fs.StringVar(&o.text, "text", "", "message text (markdown)")
	fs.StringVar(&o.username, "username", "", "override the sender name")
	fs.StringVar(&o.channel, "channel", "", "override the target channel")
	fs.StringVar(&o.iconURL, "icon-url", "", "override the sender avatar (absolute URL)")

	fs.StringVar(&o.color, "color", "", "attachment color: success, error, info or #RRGGBB")
	fs.StringVar(&o.fallback, "fallback", "", "attachment plain-text summary")
	fs.StringVar(&o.pretext, "pretext", "", "text shown above the attachment")
	fs.StringVar(&o.attachmentText, "attachment-text", "", "attachment body (markdown)")
	fs.StringVar(&o.author, "author", "", "attachment author name")
	fs.StringVar(&o.title, "title", "", "attachment title")
	fs.StringVar(&o.titleLink, "title-link", "", "URL the attachment title links to")
	fs.StringVar(&o.imageURL, "image-url", "", "attachment image (absolute URL)")
	fs.StringVar(&o.thumbURL, "thumb-url", "", "attachment thumbnail (absolute URL)")
	fs.Var(fieldList{fields: &o.fields, short: true}, "field", "short attachment field title=value (repeatable)")
	fs.Var(fieldList{fields: &o.fields, short: false}, "long-field", "full-width attachment field title=value (repeatable)")

	if err := fs.Parse(args); err != nil {
		return nil, err
	}
	if fs.NArg() > 0 {
		return nil, fmt.Errorf("unexpected arguments: %s", strings.Join(fs.Args(), " "))
	}
	return o, nil
}

func run(ctx context.Context, args []string, stdout, stderr io.Writer) error {
	opts, err := parseOptions(args, stderr)
	if err != nil {
		return err
	}

	var envFiles []string
	if opts.envFile != "" {
		envFiles = append(envFiles, opts.envFile)
	}
	cfg, err := config.LoadConfig(envFiles...)
	if err != nil {
		return err
	}
	logger := newLogger(stderr, cfg.LogLevel)

	doc := map[string]any{}
	if opts.file != "" {
		if doc, err = loadDocument(opts.file); err != nil {
			return err
		}
	}

	msg, err := composeMessage(opts, doc)
	if err != nil {
		return err
	}
	mm := cfg.Mattermost
	if msg, err = msg.WithDefaults(mm.Username, mm.Channel, mm.IconURL); err != nil {
		return err
	}

	if opts.dryRun {
		enc := json.NewEncoder(stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(msg)
	}

	destination := opts.url
	if destination == "" {
		if destination, err = mm.Destination(); err != nil {
			return err
		}
	}

	client, err := webhook.NewClient(&cfg.Webhook, logger)
	if err != nil {
		return err
	}
	res, err := client.Send(ctx, destination, msg)
	if err != nil {
		return err
	}

	logger.Info("message posted", "request_id", res.RequestID, "status", res.StatusCode, "duration", res.Duration)
	return nil
}

// loadDocument reads a message document. JSON is valid YAML, so a single
// decoder serves both.
func loadDocument(path string) (map[string]any, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading message document: %w", err)
	}

	var doc map[string]any
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, types.NewAppError(types.ErrCodeValidationInvalidJSON,
			fmt.Sprintf("%s is not a valid YAML or JSON document", path), err)
	}
	if doc == nil {
		doc = map[string]any{}
	}
	return doc, nil
}

// composeMessage layers flag values over doc and builds the Message.
func composeMessage(opts *options, doc map[string]any) (mattermost.Message, error) {
	for key, v := range map[string]string{
		"text":     opts.text,
		"username": opts.username,
		"channel":  opts.channel,
		"icon_url": opts.iconURL,
	} {
		if v != "" {
			doc[key] = v
		}
	}

	if opts.hasAttachment() {
		a, err := flagAttachment(opts).Build()
		if err != nil {
			return mattermost.Message{}, err
		}
		switch list := doc["attachments"].(type) {
		case nil:
			doc["attachments"] = []any{a}
		case []any:
			doc["attachments"] = append(list, a)
		default:
			// Left as is; FromMap reports the type error.
		}
	}

	return mattermost.FromMap(doc)
}

func flagAttachment(opts *options) *mattermost.AttachmentBuilder {
	b := mattermost.NewAttachment()

	switch strings.ToLower(opts.color) {
	case "":
	case "success", "good":
		b.Success()
	case "error", "danger":
		b.Failure()
	case "info":
		b.Info()
	default:
		b.Color(opts.color)
	}

	b.Fallback(opts.fallback).
		Pretext(opts.pretext).
		Text(opts.attachmentText).
		AuthorName(opts.author).
		Title(opts.title, opts.titleLink).
		SetFields(opts.fields...)
	if opts.imageURL != "" {
		b.ImageURL(opts.imageURL)
	}
	if opts.thumbURL != "" {
		b.ThumbURL(opts.thumbURL)
	}
	return b
}

// newLogger creates a text slog.Logger on w for the given level.
func newLogger(w io.Writer, level string) *slog.Logger {
	var lvl slog.Level
	switch level {
	case "debug":
		lvl = slog.LevelDebug
	case "warn":
		lvl = slog.LevelWarn
	case "error":
		lvl = slog.LevelError
	default:
		lvl = slog.LevelInfo
	}
	return slog.New(slog.NewTextHandler(w, &slog.HandlerOptions{Level: lvl}))
}
