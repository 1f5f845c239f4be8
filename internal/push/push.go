// Package push delivers the finished strip to a PushPlus-style messaging
// endpoint as an HTML message.
package push

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/extension"

	"github.com/hpungsan/snapstrip/internal/config"
	"github.com/hpungsan/snapstrip/internal/errors"
	"github.com/hpungsan/snapstrip/internal/imaging"
)

// inlineMaxBytes caps the base64 fallback image; the provider rejects
// messages much past 20k characters.
const inlineMaxBytes = 12 * 1024

// Notifier interface so the pipeline can be tested with a fake provider.
type Notifier interface {
	PublishStrip(ctx context.Context, n Notice) error
}

// Notice describes one strip delivery.
type Notice struct {
	Day        string
	PhotoCount int
	StripPath  string
	HostedURL  string // when set, the message embeds this URL instead of inlining bytes
}

// Client posts HTML messages to the provider. One attempt per publish, no
// retry; a failed push is logged by the caller and retried only on the next
// trigger.
type Client struct {
	cfg  config.PushConfig
	md   goldmark.Markdown
	http *http.Client
	log  *slog.Logger
}

func NewClient(cfg config.PushConfig, log *slog.Logger) *Client {
	return &Client{
		cfg:  cfg,
		md:   goldmark.New(goldmark.WithExtensions(extension.GFM)),
		http: &http.Client{Timeout: 30 * time.Second},
		log:  log,
	}
}

type providerRequest struct {
	Token    string `json:"token"`
	Title    string `json:"title"`
	Content  string `json:"content"`
	Template string `json:"template"`
}

type providerResponse struct {
	Code int    `json:"code"`
	Msg  string `json:"msg"`
}

// PublishStrip renders the summary and message body and posts it. The strip
// image is embedded by hosted URL when one exists, otherwise inlined as a
// heavily compressed data URI.
func (c *Client) PublishStrip(ctx context.Context, n Notice) error {
	src := n.HostedURL
	if src == "" {
		data, err := imaging.EncodeFileUnder(n.StripPath, inlineMaxBytes)
		if err != nil {
			return errors.NewPushFailed(fmt.Errorf("inline fallback: %w", err))
		}
		src = imaging.DataURI(data)
		c.log.Info("push: no hosted url, inlining strip", "day", n.Day, "bytes", len(data))
	}

	body, err := c.renderBody(n, src)
	if err != nil {
		return errors.NewPushFailed(err)
	}

	return c.send(ctx, providerRequest{
		Token:    c.cfg.Token,
		Title:    "Daily strip " + n.Day,
		Content:  body,
		Template: "html",
	})
}

// renderBody builds the markdown summary, renders it to HTML, and appends
// the image tag. The provider renders HTML but not markdown.
func (c *Client) renderBody(n Notice, imgSrc string) (string, error) {
	summary := fmt.Sprintf("## Daily strip %s\n\n**%d** top-ranked moments from today's captures.\n",
		n.Day, n.PhotoCount)

	var html bytes.Buffer
	if err := c.md.Convert([]byte(summary), &html); err != nil {
		return "", err
	}
	fmt.Fprintf(&html, `<img src=%q style="max-width:100%%;height:auto;" />`, imgSrc)
	return html.String(), nil
}

func (c *Client) send(ctx context.Context, payload providerRequest) error {
	body, err := json.Marshal(payload)
	if err != nil {
		return errors.NewPushFailed(err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.cfg.Endpoint, bytes.NewReader(body))
	if err != nil {
		return errors.NewPushFailed(err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return errors.NewPushFailed(err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return errors.NewPushFailed(err)
	}

	var parsed providerResponse
	if err := json.Unmarshal(respBody, &parsed); err != nil {
		return errors.NewPushFailed(fmt.Errorf("status %d: bad response: %w", resp.StatusCode, err))
	}
	if parsed.Code != 200 {
		return errors.NewPushFailed(fmt.Errorf("provider code %d: %s", parsed.Code, parsed.Msg))
	}
	return nil
}
