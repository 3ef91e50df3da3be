package reasoner

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/sirupsen/logrus"
)

const (
	DefaultEndpoint = "http://127.0.0.1:8001/analyze_combined"
	DefaultTimeout  = 60 * time.Second

	maxResponseBytes = 4 << 20
)

// Client posts consolidated requests to the reasoning service. Analyze
// never fails: transport, status and parse errors all end in an abstain
// result.
type Client struct {
	endpoint string
	http     *http.Client
	logger   *logrus.Logger
}

func NewClient(endpoint string, timeout time.Duration, logger *logrus.Logger) (*Client, error) {
	endpoint = strings.TrimSpace(endpoint)
	if endpoint == "" {
		endpoint = DefaultEndpoint
	}
	if !strings.HasPrefix(endpoint, "http://") && !strings.HasPrefix(endpoint, "https://") {
		return nil, fmt.Errorf("reasoner endpoint %q is not an http url", endpoint)
	}
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	if logger == nil {
		logger = logrus.New()
	}
	return &Client{
		endpoint: endpoint,
		http:     &http.Client{Timeout: timeout},
		logger:   logger,
	}, nil
}

func (c *Client) Analyze(ctx context.Context, req Request) Result {
	start := time.Now()
	res := c.analyze(ctx, req)
	res.Latency = time.Since(start)
	if res.Abstained {
		c.logger.WithFields(logrus.Fields{
			"field":     "Reasoner",
			"entity_id": req.EntityID,
			"issues":    len(req.Issues),
		}).WithError(res.Err).Warn("reasoner returned no usable suggestion, storing abstain")
	}
	return res
}

func (c *Client) analyze(ctx context.Context, req Request) Result {
	body, err := json.Marshal(req)
	if err != nil {
		return abstainResult("", err)
	}
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint, bytes.NewReader(body))
	if err != nil {
		return abstainResult("", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Accept", "application/json")

	resp, err := c.http.Do(httpReq)
	if err != nil {
		return abstainResult("", err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		return abstainResult("", err)
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return abstainResult(string(data), fmt.Errorf("reasoner api error %d: %s", resp.StatusCode, strings.TrimSpace(string(data))))
	}
	return DecodeResponse(data)
}

// DecodeResponse interprets a service response body. Three shapes are
// accepted: the {raw_output, parsed_json} envelope, a bare suggestion object
// or list, and free text with JSON embedded in it.
func DecodeResponse(data []byte) Result {
	var top map[string]json.RawMessage
	if json.Unmarshal(data, &top) == nil {
		if parsed, ok := top["parsed_json"]; ok {
			return decodeEnvelope(top, parsed)
		}
	}
	raw := string(data)
	suggestions, err := ParseModelOutput(raw)
	if err != nil {
		return abstainResult(raw, err)
	}
	return newResult(raw, suggestions)
}

func decodeEnvelope(top map[string]json.RawMessage, parsed json.RawMessage) Result {
	var raw string
	if r, ok := top["raw_output"]; ok {
		_ = json.Unmarshal(r, &raw)
	}
	suggestions, err := decodeSuggestions(parsed)
	if err == nil {
		return newResult(raw, suggestions)
	}
	if raw != "" {
		if retry, rerr := ParseModelOutput(raw); rerr == nil {
			return newResult(raw, retry)
		}
	}
	return abstainResult(raw, errors.Join(errors.New("envelope carried no usable parsed_json"), err))
}

// newResult marks a result as abstained when the service itself answered
// with nothing but the abstain record.
func newResult(raw string, suggestions []Suggestion) Result {
	res := Result{Suggestions: suggestions, Raw: raw}
	if len(suggestions) == 1 && suggestions[0].IsAbstain() {
		res.Abstained = true
		res.Err = errors.New("reasoning service abstained")
	}
	return res
}
