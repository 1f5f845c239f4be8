package vision

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/hpungsan/snapstrip/internal/config"
	"github.com/hpungsan/snapstrip/internal/errors"
	"github.com/hpungsan/snapstrip/internal/hosting"
	"github.com/hpungsan/snapstrip/internal/imaging"
)

// payload caps for inline images, matching what the inference gateway accepts
const (
	detectMaxBytes = 512 * 1024
	styleMaxBytes  = 1024 * 1024
)

// Client calls a ModelScope-style inference API: one model per task, POST
// {base_url}/{model} with a JSON body, bearer token auth. Detection sends the
// frame inline as a base64 data URI; scoring and stylization reference a
// hosted URL, so both need an Uploader. Every call is a single attempt.
type Client struct {
	cfg      config.VisionConfig
	uploader hosting.Uploader
	http     *http.Client
	log      *slog.Logger
}

// NewClient builds the remote adapter. uploader may be nil, in which case
// Score and Stylize report their need for hosting as a failure.
func NewClient(cfg config.VisionConfig, uploader hosting.Uploader, log *slog.Logger) *Client {
	return &Client{
		cfg:      cfg,
		uploader: uploader,
		http:     &http.Client{Timeout: time.Duration(cfg.TimeoutSeconds) * time.Second},
		log:      log,
	}
}

type inferenceRequest struct {
	Input inferenceInput `json:"input"`
}

type inferenceInput struct {
	Image  string `json:"image"`
	Prompt string `json:"prompt,omitempty"`
}

// inferenceOutput covers the response shapes the task models answer with.
type inferenceOutput struct {
	Scores    []float64       `json:"scores"`
	Labels    []string        `json:"labels"`
	Score     *float64        `json:"score"`
	MOS       *float64        `json:"mos"`
	OutputImg string `json:"output_img"`
	Image     string `json:"image"`
}

type inferenceResponse struct {
	Output *inferenceOutput `json:"output"`
	Error  string           `json:"error"`
}

func (c *Client) call(ctx context.Context, model string, in inferenceInput) (*inferenceOutput, error) {
	body, err := json.Marshal(inferenceRequest{Input: in})
	if err != nil {
		return nil, err
	}

	url := strings.TrimRight(c.cfg.BaseURL, "/") + "/" + model
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Authorization", "Bearer "+c.cfg.Token)
	req.Header.Set("Content-Type", "application/json")

	start := time.Now()
	resp, err := c.http.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()
	c.log.Debug("inference call", "model", model, "status", resp.StatusCode, "elapsed", time.Since(start))

	respBody, err := io.ReadAll(io.LimitReader(resp.Body, 16<<20))
	if err != nil {
		return nil, err
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("%s: status %d: %s", model, resp.StatusCode, truncate(respBody, 200))
	}

	var parsed inferenceResponse
	if err := json.Unmarshal(respBody, &parsed); err != nil {
		return nil, fmt.Errorf("%s: bad response: %w", model, err)
	}
	if parsed.Error != "" {
		return nil, fmt.Errorf("%s: %s", model, parsed.Error)
	}
	if parsed.Output == nil {
		return nil, fmt.Errorf("%s: response carried no output", model)
	}
	return parsed.Output, nil
}

// HasPerson runs the detection model on the frame, inlined as a data URI.
// Any detection box counts as a person.
func (c *Client) HasPerson(ctx context.Context, imagePath string) (*Verdict, error) {
	data, err := imaging.EncodeFileUnder(imagePath, detectMaxBytes)
	if err != nil {
		return nil, errors.NewDetectionFailed(err)
	}

	out, err := c.call(ctx, c.cfg.DetectModel, inferenceInput{Image: imaging.DataURI(data)})
	if err != nil {
		return nil, errors.NewDetectionFailed(err)
	}

	if len(out.Scores) == 0 {
		return &Verdict{Person: false, Label: "no_person"}, nil
	}
	best := out.Scores[0]
	for _, s := range out.Scores[1:] {
		if s > best {
			best = s
		}
	}
	label := "person"
	if len(out.Labels) > 0 {
		label = out.Labels[0]
	}
	return &Verdict{Person: true, Label: label, Confidence: best}, nil
}

// Score uploads the frame and runs the quality model against the hosted URL.
// Model output is normalized to 0-100 whatever scale it answers in.
func (c *Client) Score(ctx context.Context, imagePath string) (float64, error) {
	if c.uploader == nil {
		return 0, errors.NewScoringFailed(fmt.Errorf("scoring requires image hosting and none is configured"))
	}

	hostedURL, err := c.uploadFrame(imagePath)
	if err != nil {
		return 0, errors.NewScoringFailed(err)
	}

	out, err := c.call(ctx, c.cfg.ScoreModel, inferenceInput{Image: hostedURL, Prompt: c.cfg.ScorePrompt})
	if err != nil {
		return 0, errors.NewScoringFailed(err)
	}

	var raw float64
	switch {
	case out.Score != nil:
		raw = *out.Score
	case out.MOS != nil:
		raw = *out.MOS
	default:
		return 0, errors.NewScoringFailed(fmt.Errorf("%s: response carried no score", c.cfg.ScoreModel))
	}
	return normalizeScore(raw), nil
}

// Stylize uploads the source frame, runs the style model, and writes the
// returned image to dstPath.
func (c *Client) Stylize(ctx context.Context, srcPath, dstPath string) error {
	if c.uploader == nil {
		return errors.NewStyleFailed(fmt.Errorf("stylization requires image hosting and none is configured"))
	}

	hostedURL, err := c.uploadFrame(srcPath)
	if err != nil {
		return errors.NewStyleFailed(err)
	}

	out, err := c.call(ctx, c.cfg.StyleModel, inferenceInput{Image: hostedURL, Prompt: c.cfg.StylePrompt})
	if err != nil {
		return errors.NewStyleFailed(err)
	}

	encoded := out.OutputImg
	if encoded == "" {
		encoded = out.Image
	}
	if encoded == "" {
		return errors.NewStyleFailed(fmt.Errorf("%s: response carried no image", c.cfg.StyleModel))
	}
	if i := strings.Index(encoded, "base64,"); i >= 0 {
		encoded = encoded[i+len("base64,"):]
	}
	img, err := base64.StdEncoding.DecodeString(encoded)
	if err != nil {
		return errors.NewStyleFailed(fmt.Errorf("%s: undecodable image payload: %w", c.cfg.StyleModel, err))
	}
	if err := os.WriteFile(dstPath, img, 0600); err != nil {
		return errors.NewStyleFailed(err)
	}
	return nil
}

func (c *Client) uploadFrame(imagePath string) (string, error) {
	data, err := imaging.EncodeFileUnder(imagePath, styleMaxBytes)
	if err != nil {
		return "", err
	}
	name := strings.TrimSuffix(filepath.Base(imagePath), filepath.Ext(imagePath))
	return c.uploader.Upload(data, name)
}

// normalizeScore maps a model score onto 0-100. Quality models answer on
// 0-1, 0-5, or 0-100 scales depending on the checkpoint.
func normalizeScore(raw float64) float64 {
	switch {
	case raw <= 1:
		raw *= 100
	case raw <= 5:
		raw *= 20
	}
	if raw < 0 {
		return 0
	}
	if raw > 100 {
		return 100
	}
	return raw
}

func truncate(b []byte, n int) string {
	if len(b) > n {
		b = b[:n]
	}
	return string(b)
}
