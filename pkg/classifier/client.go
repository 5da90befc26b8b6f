package classifier

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"net/http"
	"strconv"
	"time"
)

const requestTimeout = 30 * time.Second

// Result is the normalized classifier output. Confidence and Verdict fall back
// to "unknown" when the classifier is unreachable or returns nothing usable.
type Result struct {
	Confidence      string  `json:"confidence"`
	Reasoning       *string `json:"reasoning"`
	HighlightedText *string `json:"highlighted_text"`
	Suggestion      *string `json:"suggestion"`
	Verdict         string  `json:"verdict"`
}

// Unknown is the sentinel result for a failed or unusable classification.
func Unknown() *Result {
	return &Result{Confidence: "unknown", Verdict: "unknown"}
}

// Client calls the external spam/phishing classification endpoint.
type Client struct {
	endpoint   string
	httpClient *http.Client
}

func NewClient(endpoint string) *Client {
	return &Client{
		endpoint: endpoint,
		httpClient: &http.Client{
			Timeout: requestTimeout,
		},
	}
}

type classifyRequest struct {
	Sender  string `json:"sender"`
	Subject string `json:"subject"`
	Text    string `json:"text"`
}

// Classify scores one message. It never returns an error: any failure (network,
// timeout, non-2xx, malformed body) degrades to the "unknown" sentinel so the
// backfill loops can treat the record as retryable.
func (c *Client) Classify(ctx context.Context, sender, subject, body string) *Result {
	payload, err := json.Marshal(classifyRequest{Sender: sender, Subject: subject, Text: body})
	if err != nil {
		return Unknown()
	}

	req, err := http.NewRequestWithContext(ctx, "POST", c.endpoint, bytes.NewBuffer(payload))
	if err != nil {
		log.Printf("[Classifier] Failed to build request: %v", err)
		return Unknown()
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		log.Printf("[Classifier] Request failed: %v", err)
		return Unknown()
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		log.Printf("[Classifier] Failed to read response: %v", err)
		return Unknown()
	}

	if resp.StatusCode != http.StatusOK {
		log.Printf("[Classifier] Unexpected status %d: %s", resp.StatusCode, string(respBody))
		return Unknown()
	}

	return parseResponse(respBody)
}

// parseResponse normalizes the classifier's inconsistent schema: sometimes a
// structured object, sometimes a bare confidence scalar.
func parseResponse(body []byte) *Result {
	var payload interface{}
	if err := json.Unmarshal(body, &payload); err != nil {
		log.Printf("[Classifier] Malformed response body: %v", err)
		return Unknown()
	}

	switch v := payload.(type) {
	case map[string]interface{}:
		result := Unknown()
		if raw, ok := v["confidence"]; ok {
			result.Confidence = formatConfidence(raw)
		}
		if s, ok := v["reasoning"].(string); ok {
			result.Reasoning = &s
		}
		if s, ok := v["highlighted_text"].(string); ok {
			result.HighlightedText = &s
		}
		if s, ok := v["suggestion"].(string); ok {
			result.Suggestion = &s
		}
		if s, ok := v["final_decision"].(string); ok && s != "" {
			result.Verdict = s
		}
		return result
	case float64, string:
		result := Unknown()
		result.Confidence = formatConfidence(v)
		return result
	default:
		return Unknown()
	}
}

// formatConfidence renders numeric confidence values with exactly two decimal
// places; anything non-numeric passes through unchanged.
func formatConfidence(raw interface{}) string {
	switch v := raw.(type) {
	case float64:
		return strconv.FormatFloat(v, 'f', 2, 64)
	case string:
		if parsed, err := strconv.ParseFloat(v, 64); err == nil {
			return strconv.FormatFloat(parsed, 'f', 2, 64)
		}
		return v
	default:
		return fmt.Sprintf("%v", raw)
	}
}
