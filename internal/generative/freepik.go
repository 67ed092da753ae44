package generative

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
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/joho/godotenv"
	"github.com/sirupsen/logrus"

	"contentizer/internal/config"
)

// ErrGenerationTimeout indicates the polling ceiling was reached before
// the generation task completed. It is distinct from an API failure so
// callers can report "still running" differently from "broken".
var ErrGenerationTimeout = errors.New("generation task timed out")

const (
	imageEndpoint = "/ai/text-to-image/flux-pro-v1-1"
	videoEndpoint = "/ai/image-to-video/kling-v2-5-pro"

	statusCompleted  = "COMPLETED"
	statusFailed     = "FAILED"
	defaultCfgScale  = 0.5
	defaultVideoSecs = 5
)

// Client calls the Freepik generative-content API: text-to-image and
// image-to-video. Each call submits a task and polls its status until
// completion, then downloads the generated asset into the requested
// directory.
type Client struct {
	apiKey       string
	baseURL      string
	pollInterval time.Duration
	timeout      time.Duration
	httpClient   *http.Client
	logger       *logrus.Logger
}

// NewClient creates a generative client from config. The API key may come
// from the config file or from FREEPIK_API_KEY in the environment (.env
// is loaded if present).
func NewClient(cfg *config.GenerativeConfig, logger *logrus.Logger) (*Client, error) {
	if !cfg.Enabled {
		return nil, nil
	}

	// Load .env file if it exists (for the API key)
	if _, err := os.Stat(".env"); err == nil {
		if err := godotenv.Load(".env"); err != nil {
			logger.WithError(err).Warn("Could not load .env file")
		}
	}

	apiKey := cfg.APIKey
	if apiKey == "" {
		apiKey = os.Getenv("FREEPIK_API_KEY")
	}
	if apiKey == "" {
		return nil, fmt.Errorf("freepik API key not found. Set FREEPIK_API_KEY in .env file or config")
	}

	return &Client{
		apiKey:       apiKey,
		baseURL:      strings.TrimSuffix(cfg.BaseURL, "/"),
		pollInterval: time.Duration(cfg.PollIntervalSeconds) * time.Second,
		timeout:      time.Duration(cfg.TimeoutSeconds) * time.Second,
		httpClient:   &http.Client{Timeout: 60 * time.Second},
		logger:       logger,
	}, nil
}

// taskResponse is the envelope every task submit/status call returns.
type taskResponse struct {
	Data struct {
		TaskID    string   `json:"task_id"`
		Status    string   `json:"status"`
		Generated []string `json:"generated"`
	} `json:"data"`
	Message string `json:"message"`
}

// GenerateImage submits a text-to-image task and returns the local path
// of the downloaded image inside destDir.
func (c *Client) GenerateImage(ctx context.Context, destDir, prompt, aspectRatio string) (string, error) {
	if aspectRatio == "" {
		aspectRatio = "widescreen_16_9"
	}

	payload := map[string]interface{}{
		"prompt":            prompt,
		"prompt_upsampling": true,
		"aspect_ratio":      aspectRatio,
		"safety_tolerance":  2,
		"output_format":     "jpeg",
	}

	assetURL, err := c.runTask(ctx, imageEndpoint, payload)
	if err != nil {
		return "", err
	}

	dest := filepath.Join(destDir, fmt.Sprintf("generated_image_%s.jpg", uuid.New().String()))
	if err := c.downloadAsset(ctx, assetURL, dest); err != nil {
		return "", err
	}

	c.logger.WithField("path", dest).Info("Generated image downloaded")
	return dest, nil
}

// GenerateVideo submits an image-to-video task seeded with the image at
// imagePath and returns the local path of the downloaded video inside
// destDir. duration is in seconds (the API accepts 5 or 10).
func (c *Client) GenerateVideo(ctx context.Context, destDir, imagePath, prompt, negativePrompt string, duration int) (string, error) {
	if duration == 0 {
		duration = defaultVideoSecs
	}

	image := imagePath
	if !strings.HasPrefix(image, "http://") && !strings.HasPrefix(image, "https://") {
		// Local image: inline it as a base64 data URL.
		data, err := os.ReadFile(imagePath)
		if err != nil {
			return "", fmt.Errorf("reading source image: %w", err)
		}
		image = "data:image/jpeg;base64," + base64.StdEncoding.EncodeToString(data)
	}

	payload := map[string]interface{}{
		"image":           image,
		"prompt":          prompt,
		"negative_prompt": negativePrompt,
		"duration":        strconv.Itoa(duration),
		"cfg_scale":       defaultCfgScale,
	}

	assetURL, err := c.runTask(ctx, videoEndpoint, payload)
	if err != nil {
		return "", err
	}

	dest := filepath.Join(destDir, fmt.Sprintf("generated_video_%s.mp4", uuid.New().String()))
	if err := c.downloadAsset(ctx, assetURL, dest); err != nil {
		return "", err
	}

	c.logger.WithField("path", dest).Info("Generated video downloaded")
	return dest, nil
}

// runTask submits a generation task and polls its status until it
// completes, fails, or the polling ceiling is reached. Returns the URL of
// the first generated asset.
func (c *Client) runTask(ctx context.Context, endpoint string, payload map[string]interface{}) (string, error) {
	submitted, err := c.postJSON(ctx, c.baseURL+endpoint, payload)
	if err != nil {
		return "", err
	}

	taskID := submitted.Data.TaskID
	status := submitted.Data.Status
	generated := submitted.Data.Generated
	deadline := time.Now().Add(c.timeout)

	for status != statusCompleted {
		if status == statusFailed {
			return "", fmt.Errorf("generation task %s failed", taskID)
		}
		if time.Now().After(deadline) {
			return "", fmt.Errorf("%w: task %s still %s after %s", ErrGenerationTimeout, taskID, status, c.timeout)
		}

		c.logger.WithFields(logrus.Fields{
			"task_id": taskID,
			"status":  status,
		}).Debug("Waiting for generation task to complete")

		select {
		case <-ctx.Done():
			return "", ctx.Err()
		case <-time.After(c.pollInterval):
		}

		polled, err := c.getJSON(ctx, c.baseURL+endpoint+"/"+taskID)
		if err != nil {
			// Transient status-poll failures are retried until the ceiling.
			c.logger.WithError(err).WithField("task_id", taskID).Warn("Task status check failed")
			continue
		}
		status = polled.Data.Status
		generated = polled.Data.Generated
	}

	if len(generated) == 0 {
		return "", fmt.Errorf("generation task %s completed without assets", taskID)
	}
	return generated[0], nil
}

// postJSON submits a task payload and decodes the task envelope.
func (c *Client) postJSON(ctx context.Context, url string, payload map[string]interface{}) (*taskResponse, error) {
	body, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	req.Header.Set("x-freepik-api-key", c.apiKey)
	req.Header.Set("Content-Type", "application/json")

	return c.doTaskRequest(req)
}

// getJSON fetches a task status and decodes the task envelope.
func (c *Client) getJSON(ctx context.Context, url string) (*taskResponse, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("x-freepik-api-key", c.apiKey)

	return c.doTaskRequest(req)
}

func (c *Client) doTaskRequest(req *http.Request) (*taskResponse, error) {
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	var task taskResponse
	if err := json.NewDecoder(resp.Body).Decode(&task); err != nil {
		return nil, fmt.Errorf("unparseable API response: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("API returned status %d: %s", resp.StatusCode, task.Message)
	}
	return &task, nil
}

// downloadAsset fetches a generated asset URL into dest.
func (c *Client) downloadAsset(ctx context.Context, assetURL, dest string) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, assetURL, nil)
	if err != nil {
		return err
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("downloading generated asset: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("could not download generated asset: status %d", resp.StatusCode)
	}

	if err := os.MkdirAll(filepath.Dir(dest), 0755); err != nil {
		return err
	}

	file, err := os.Create(dest)
	if err != nil {
		return err
	}
	defer file.Close()

	if _, err := io.Copy(file, resp.Body); err != nil {
		os.Remove(dest) // Clean up on error
		return err
	}
	return nil
}
