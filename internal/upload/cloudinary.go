package upload

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"strings"

	"nuestra-historia/internal/config"
)

// Client performs unsigned Cloudinary uploads with an upload preset.
type Client struct {
	CloudName    string
	UploadPreset string
	BaseURL      string
	HTTPClient   *http.Client
}

func NewClient(cfg *config.Config) *Client {
	return &Client{
		CloudName:    cfg.CloudinaryCloudName,
		UploadPreset: cfg.CloudinaryUploadPreset,
		BaseURL:      cfg.CloudinaryBaseURL,
		HTTPClient:   &http.Client{},
	}
}

// WidgetConfig returns the widget limits configured for the deployment.
func WidgetConfig(cfg *config.Config) Config {
	return Config{
		AllowedFormats:   cfg.UploadAllowedFormats,
		MaxFileSizeBytes: cfg.UploadMaxFileSize,
		Sources:          cfg.UploadSources,
	}
}

// WidgetSettings is the configuration document for the browser upload widget.
type WidgetSettings struct {
	CloudName            string   `json:"cloudName"`
	UploadPreset         string   `json:"uploadPreset"`
	Sources              []string `json:"sources"`
	Multiple             bool     `json:"multiple"`
	MaxFileSize          int64    `json:"maxFileSize"`
	ClientAllowedFormats []string `json:"clientAllowedFormats"`
}

// Settings returns the browser widget configuration matching cfg.
func (c *Client) Settings(cfg Config) WidgetSettings {
	return WidgetSettings{
		CloudName:            c.CloudName,
		UploadPreset:         c.UploadPreset,
		Sources:              cfg.Sources,
		Multiple:             false,
		MaxFileSize:          cfg.MaxFileSizeBytes,
		ClientAllowedFormats: cfg.AllowedFormats,
	}
}

// Open uploads file in the background and yields its result.
func (c *Client) Open(ctx context.Context, cfg Config, file File) <-chan Result {
	results := make(chan Result, 1)
	go func() {
		results <- c.upload(ctx, cfg, file)
	}()
	return results
}

type uploadResponse struct {
	SecureURL    string `json:"secure_url"`
	ResourceType string `json:"resource_type"`
	Format       string `json:"format"`
}

type errorResponse struct {
	Error struct {
		Message string `json:"message"`
	} `json:"error"`
}

func (c *Client) upload(ctx context.Context, cfg Config, file File) Result {
	if c.CloudName == "" || c.UploadPreset == "" {
		return Result{Err: errors.New("cloudinary cloud name and upload preset are required")}
	}
	if err := cfg.Check(file); err != nil {
		return Result{Err: err}
	}

	body := &bytes.Buffer{}
	writer := multipart.NewWriter(body)

	part, err := writer.CreateFormFile("file", file.Name)
	if err != nil {
		return Result{Err: err}
	}
	if _, err := part.Write(file.Data); err != nil {
		return Result{Err: err}
	}
	if err := writer.WriteField("upload_preset", c.UploadPreset); err != nil {
		return Result{Err: err}
	}
	if err := writer.Close(); err != nil {
		return Result{Err: err}
	}

	url := fmt.Sprintf("%s/v1_1/%s/auto/upload", strings.TrimRight(c.BaseURL, "/"), c.CloudName)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, body)
	if err != nil {
		return Result{Err: err}
	}
	req.Header.Set("Content-Type", writer.FormDataContentType())

	client := c.HTTPClient
	if client == nil {
		client = http.DefaultClient
	}
	resp, err := client.Do(req)
	if err != nil {
		return Result{Err: err}
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return Result{Err: err}
	}

	if resp.StatusCode >= 400 {
		var apiErr errorResponse
		if json.Unmarshal(respBody, &apiErr) == nil && apiErr.Error.Message != "" {
			return Result{Err: fmt.Errorf("upload failed: %s - %s", resp.Status, apiErr.Error.Message)}
		}
		return Result{Err: fmt.Errorf("upload failed: %s - %s", resp.Status, string(respBody))}
	}

	var out uploadResponse
	if err := json.Unmarshal(respBody, &out); err != nil {
		return Result{Err: fmt.Errorf("decode upload response: %w", err)}
	}
	if out.SecureURL == "" {
		return Result{Err: errors.New("upload response has no secure_url")}
	}

	return Result{SecureURL: out.SecureURL, ResourceType: out.ResourceType, Format: out.Format}
}
