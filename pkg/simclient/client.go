// Package simclient is a small typed client for the simulator,
// used by the bundled load-test driver and usable from test harnesses.
package simclient

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"
)

type Config struct {
	BaseURL string
	APIKey  string
}

type Client struct {
	baseURL string
	apiKey  string
	client  *http.Client
}

func New(c *Config) *Client {
	return &Client{
		baseURL: c.BaseURL,
		apiKey:  c.APIKey,
		client:  &http.Client{Timeout: 0},
	}
}

type Usage struct {
	PromptTokens     int `json:"prompt_tokens"`
	CompletionTokens int `json:"completion_tokens"`
	TotalTokens      int `json:"total_tokens"`
}

type chatCompletionResponse struct {
	Usage Usage `json:"usage"`
}

// ChatCompletion sends one chat completion request and reports the
// observed duration together with the usage the simulator reported.
func (c *Client) ChatCompletion(deployment string, prompt string, maxTokens int) (time.Duration, Usage, error) {
	url := fmt.Sprintf("%s/openai/deployments/%s/chat/completions", c.baseURL, deployment)

	requestBody := map[string]interface{}{
		"messages": []map[string]string{
			{"role": "user", "content": prompt},
		},
	}
	if maxTokens > 0 {
		requestBody["max_tokens"] = maxTokens
	}

	jsonData, err := json.Marshal(requestBody)
	if err != nil {
		return 0, Usage{}, fmt.Errorf("failed to marshal request body")
	}

	req, err := http.NewRequest(http.MethodPost, url, bytes.NewBuffer(jsonData))
	if err != nil {
		return 0, Usage{}, fmt.Errorf("invalid request: %w", err)
	}

	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("api-key", c.apiKey)

	startedAt := time.Now()

	response, err := c.client.Do(req)
	if err != nil {
		return 0, Usage{}, fmt.Errorf("request failed: %w", err)
	}

	defer response.Body.Close()

	elapsed := time.Since(startedAt)

	body, err := io.ReadAll(response.Body)
	if err != nil {
		return 0, Usage{}, fmt.Errorf("can't read response body: %w", err)
	}

	if response.StatusCode != http.StatusOK {
		return elapsed, Usage{}, fmt.Errorf("received unsuccessful status from simulator: %s", body)
	}

	var result chatCompletionResponse
	err = json.Unmarshal(body, &result)
	if err != nil {
		return elapsed, Usage{}, fmt.Errorf("invalid body response: %w", err)
	}

	return elapsed, result.Usage, nil
}

// SaveRecordings asks a simulator in record mode to flush recordings.
func (c *Client) SaveRecordings() error {
	req, err := http.NewRequest(http.MethodPost, c.baseURL+"/++/save-recordings", nil)
	if err != nil {
		return fmt.Errorf("invalid request: %w", err)
	}

	req.Header.Set("api-key", c.apiKey)

	response, err := c.client.Do(req)
	if err != nil {
		return fmt.Errorf("request failed: %w", err)
	}

	defer response.Body.Close()

	if response.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(response.Body)
		return fmt.Errorf("received unsuccessful status from simulator: %s", body)
	}

	return nil
}
