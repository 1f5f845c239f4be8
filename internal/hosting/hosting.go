// Package hosting uploads images to a public host so remote vision models
// and push providers can fetch them by URL.
package hosting

import (
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/hpungsan/snapstrip/internal/errors"
)

// Uploader publishes image bytes and returns a public URL for them.
type Uploader interface {
	Upload(data []byte, name string) (string, error)
}

// ImgBB uploads through the imgbb.com API: a form POST of the API key and
// base64 image data, answered with JSON carrying the hosted URL.
type ImgBB struct {
	key      string
	endpoint string
	client   *http.Client
}

// NewImgBB returns an ImgBB uploader, or nil when no key is configured so
// callers can fall through to their degraded paths.
func NewImgBB(key string) *ImgBB {
	if key == "" {
		return nil
	}
	return &ImgBB{
		key:      key,
		endpoint: "https://api.imgbb.com/1/upload",
		client:   &http.Client{Timeout: 60 * time.Second},
	}
}

type imgbbResponse struct {
	Success bool `json:"success"`
	Status  int  `json:"status"`
	Data    struct {
		URL string `json:"url"`
	} `json:"data"`
	Error struct {
		Message string `json:"message"`
	} `json:"error"`
}

func (u *ImgBB) Upload(data []byte, name string) (string, error) {
	form := url.Values{
		"key":   {u.key},
		"image": {base64.StdEncoding.EncodeToString(data)},
	}
	if name != "" {
		form.Set("name", name)
	}

	resp, err := u.client.Post(u.endpoint, "application/x-www-form-urlencoded",
		strings.NewReader(form.Encode()))
	if err != nil {
		return "", errors.NewUploadFailed(err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return "", errors.NewUploadFailed(err)
	}

	var parsed imgbbResponse
	if err := json.Unmarshal(body, &parsed); err != nil {
		return "", errors.NewUploadFailed(fmt.Errorf("status %d: bad response: %w", resp.StatusCode, err))
	}
	if resp.StatusCode != http.StatusOK || !parsed.Success {
		msg := parsed.Error.Message
		if msg == "" {
			msg = http.StatusText(resp.StatusCode)
		}
		return "", errors.NewUploadFailed(fmt.Errorf("status %d: %s", resp.StatusCode, msg))
	}
	if parsed.Data.URL == "" {
		return "", errors.NewUploadFailed(fmt.Errorf("response carried no url"))
	}
	return parsed.Data.URL, nil
}
