// Package poster publishes the rendered digest.
package poster

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"time"

	"go.uber.org/zap"
)

const (
	postClientTimeout   = 30 * time.Second
	maxErrorBodyBytes   = 4 * 1024
	maxImageUploadBytes = 5 * 1024 * 1024
)

var ErrEmptyPost = errors.New("poster: empty post")

// Poster publishes a post with an optional image; imagePath may be empty.
type Poster interface {
	Post(ctx context.Context, text, imagePath string) error
}

// WebhookPoster 把帖子以 JSON POST 到配置的地址（例如转发到 LinkedIn 的中间服务）
type WebhookPoster struct {
	url    string
	token  string
	client *http.Client
	logger *zap.Logger
}

func NewWebhookPoster(url, token string, client *http.Client, logger *zap.Logger) *WebhookPoster {
	if client == nil {
		client = &http.Client{Timeout: postClientTimeout}
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &WebhookPoster{url: url, token: token, client: client, logger: logger}
}

type webhookPayload struct {
	Text      string `json:"text"`
	ImageName string `json:"imageName,omitempty"`
	Image     string `json:"image,omitempty"`
}

func (p *WebhookPoster) Post(ctx context.Context, text, imagePath string) error {
	if text == "" {
		return ErrEmptyPost
	}
	payload := webhookPayload{Text: text}

	// 图片缺失不影响发帖
	if imagePath != "" {
		img, err := readImage(imagePath)
		if err != nil {
			p.logger.Warn("skip post image", zap.String("path", imagePath), zap.Error(err))
		} else {
			payload.ImageName = filepath.Base(imagePath)
			payload.Image = base64.StdEncoding.EncodeToString(img)
		}
	}

	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("encode post: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, p.url, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("build post request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if p.token != "" {
		req.Header.Set("Authorization", "Bearer "+p.token)
	}

	resp, err := p.client.Do(req)
	if err != nil {
		return fmt.Errorf("post digest: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBodyBytes))
		return fmt.Errorf("post digest: status %d: %s", resp.StatusCode, bytes.TrimSpace(msg))
	}
	p.logger.Info("digest posted", zap.Int("status", resp.StatusCode), zap.Int("bytes", len(text)))
	return nil
}

func readImage(path string) ([]byte, error) {
	info, err := os.Stat(path)
	if err != nil {
		return nil, err
	}
	if info.Size() > maxImageUploadBytes {
		return nil, fmt.Errorf("image too large: %d bytes", info.Size())
	}
	return os.ReadFile(path)
}

// LogPoster is the dry-run poster: it only logs the post.
type LogPoster struct {
	logger *zap.Logger
}

func NewLogPoster(logger *zap.Logger) *LogPoster {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &LogPoster{logger: logger}
}

func (p *LogPoster) Post(_ context.Context, text, imagePath string) error {
	if text == "" {
		return ErrEmptyPost
	}
	p.logger.Info("dry run post", zap.String("image", imagePath), zap.String("text", text))
	return nil
}
