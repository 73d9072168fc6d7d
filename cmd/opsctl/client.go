package main

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// cliConfig is the optional ~/.opsctl.yaml file.
type cliConfig struct {
	ServerURL string `yaml:"server_url"`
	APIKey    string `yaml:"api_key"`
}

// loadCLIConfig reads ~/.opsctl.yaml if present. A missing file is not an
// error; flags and environment variables can supply everything.
func loadCLIConfig() (cliConfig, error) {
	var cfg cliConfig
	home, err := os.UserHomeDir()
	if err != nil {
		return cfg, nil
	}
	raw, err := os.ReadFile(filepath.Join(home, ".opsctl.yaml"))
	if os.IsNotExist(err) {
		return cfg, nil
	}
	if err != nil {
		return cfg, err
	}
	if err := yaml.Unmarshal(raw, &cfg); err != nil {
		return cfg, fmt.Errorf("parse ~/.opsctl.yaml: %w", err)
	}
	return cfg, nil
}

// apiClient talks to the Ops Assistant server.
type apiClient struct {
	baseURL string
	apiKey  string
	http    *http.Client
}

// newAPIClient resolves server URL and API key from flags, the config file
// and environment, in that order.
func newAPIClient() (*apiClient, error) {
	cfg, err := loadCLIConfig()
	if err != nil {
		return nil, err
	}

	baseURL := firstNonEmpty(flagServerURL, cfg.ServerURL, os.Getenv("OPS_SERVER_URL"), "http://localhost:3000")
	apiKey := firstNonEmpty(flagAPIKey, cfg.APIKey, os.Getenv("OPS_API_KEY"))
	if apiKey == "" {
		return nil, fmt.Errorf("no API key configured; use --api-key, OPS_API_KEY or ~/.opsctl.yaml")
	}

	return &apiClient{
		baseURL: strings.TrimRight(baseURL, "/"),
		apiKey:  apiKey,
		// Streaming turns can legitimately run for minutes; the server
		// bounds them, not the client.
		http: &http.Client{},
	}, nil
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}

func (c *apiClient) newRequest(method, path string, body any) (*http.Request, error) {
	var reader io.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		if err != nil {
			return nil, err
		}
		reader = bytes.NewReader(raw)
	}
	req, err := http.NewRequest(method, c.baseURL+path, reader)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Authorization", "Bearer "+c.apiKey)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	return req, nil
}

// doJSON performs a request and decodes the JSON response into out when the
// status matches wantStatus. Error responses are turned into readable errors.
func (c *apiClient) doJSON(method, path string, body any, wantStatus int, out any) error {
	req, err := c.newRequest(method, path, body)
	if err != nil {
		return err
	}
	resp, err := c.http.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode != wantStatus {
		return apiError(resp)
	}
	if out == nil {
		return nil
	}
	return json.NewDecoder(resp.Body).Decode(out)
}

// apiError extracts the server's error envelope, falling back to the status line.
func apiError(resp *http.Response) error {
	var envelope struct {
		Error struct {
			Message string `json:"message"`
		} `json:"error"`
	}
	raw, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
	if json.Unmarshal(raw, &envelope) == nil && envelope.Error.Message != "" {
		return fmt.Errorf("%s: %s", resp.Status, envelope.Error.Message)
	}
	return fmt.Errorf("unexpected response: %s", resp.Status)
}

type conversationSummary struct {
	ID          string    `json:"id"`
	CreatedAt   time.Time `json:"created_at"`
	LastMessage time.Time `json:"last_message"`
}

type conversationDetail struct {
	conversationSummary
	Messages []struct {
		Role      string    `json:"role"`
		Content   string    `json:"content"`
		Timestamp time.Time `json:"timestamp"`
	} `json:"messages"`
}

type rateLimitStatus struct {
	Limit     int    `json:"limit"`
	Remaining int    `json:"remaining"`
	Reset     string `json:"reset"`
}

func (c *apiClient) createConversation() (conversationSummary, error) {
	var summary conversationSummary
	err := c.doJSON(http.MethodPost, "/conversations", nil, http.StatusCreated, &summary)
	return summary, err
}

func (c *apiClient) listConversations() ([]conversationSummary, error) {
	var summaries []conversationSummary
	err := c.doJSON(http.MethodGet, "/conversations", nil, http.StatusOK, &summaries)
	return summaries, err
}

func (c *apiClient) getConversation(id string) (conversationDetail, error) {
	var detail conversationDetail
	err := c.doJSON(http.MethodGet, "/conversations/"+id, nil, http.StatusOK, &detail)
	return detail, err
}

func (c *apiClient) deleteConversation(id string) error {
	return c.doJSON(http.MethodDelete, "/conversations/"+id, nil, http.StatusNoContent, nil)
}

func (c *apiClient) quota() (rateLimitStatus, error) {
	var status rateLimitStatus
	err := c.doJSON(http.MethodGet, "/rate-limit", nil, http.StatusOK, &status)
	return status, err
}
