package verify

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"
)

const defaultVonageBaseURL = "https://api.nexmo.com"

// VonageClient talks to the Vonage Verify API.
type VonageClient struct {
	apiKey    string
	apiSecret string
	baseURL   string
	httpc     *http.Client
}

// NewVonageClient builds a Verify API client.
func NewVonageClient(apiKey, apiSecret string) *VonageClient {
	return &VonageClient{
		apiKey:    apiKey,
		apiSecret: apiSecret,
		baseURL:   defaultVonageBaseURL,
		httpc:     &http.Client{Timeout: 10 * time.Second},
	}
}

type vonageResponse struct {
	RequestID string `json:"request_id"`
	Status    string `json:"status"`
	ErrorText string `json:"error_text"`
}

// Request starts a verification against the destination number.
func (c *VonageClient) Request(ctx context.Context, destination string, policy Policy) (string, error) {
	form := c.baseForm()
	form.Set("number", destination)
	form.Set("brand", policy.Brand)
	form.Set("sender_id", policy.SenderID)
	form.Set("workflow_id", strconv.Itoa(policy.Workflow))
	form.Set("code_length", strconv.Itoa(policy.CodeLength))
	form.Set("pin_expiry", strconv.Itoa(policy.PinExpiry))
	form.Set("next_event_wait", strconv.Itoa(policy.NextEventWait))
	if policy.Language != "" {
		form.Set("lg", policy.Language)
	}

	resp, err := c.post(ctx, "/verify/json", form)
	if err != nil {
		return "", err
	}
	if resp.Status != StatusSuccess {
		return "", fmt.Errorf("%w: request refused (status %s): %s", ErrProvider, resp.Status, resp.ErrorText)
	}
	return resp.RequestID, nil
}

// Check submits the code the user entered. Non-success provider statuses
// are returned in the result, not as errors; only transport or protocol
// failures produce an error.
func (c *VonageClient) Check(ctx context.Context, requestID, code string) (CheckResult, error) {
	form := c.baseForm()
	form.Set("request_id", requestID)
	form.Set("code", code)

	resp, err := c.post(ctx, "/verify/check/json", form)
	if err != nil {
		return CheckResult{}, err
	}
	return CheckResult{Status: resp.Status, Message: resp.ErrorText}, nil
}

// Cancel aborts an in-flight verification request.
func (c *VonageClient) Cancel(ctx context.Context, requestID string) error {
	form := c.baseForm()
	form.Set("request_id", requestID)
	form.Set("cmd", "cancel")

	resp, err := c.post(ctx, "/verify/control/json", form)
	if err != nil {
		return err
	}
	if resp.Status != StatusSuccess {
		return fmt.Errorf("%w: cancel refused (status %s): %s", ErrProvider, resp.Status, resp.ErrorText)
	}
	return nil
}

func (c *VonageClient) baseForm() url.Values {
	form := url.Values{}
	form.Set("api_key", c.apiKey)
	form.Set("api_secret", c.apiSecret)
	return form
}

func (c *VonageClient) post(ctx context.Context, path string, form url.Values) (vonageResponse, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, strings.NewReader(form.Encode()))
	if err != nil {
		return vonageResponse{}, fmt.Errorf("%w: %v", ErrProvider, err)
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	httpResp, err := c.httpc.Do(req)
	if err != nil {
		return vonageResponse{}, fmt.Errorf("%w: %v", ErrProvider, err)
	}
	defer httpResp.Body.Close()

	if httpResp.StatusCode != http.StatusOK {
		return vonageResponse{}, fmt.Errorf("%w: unexpected http status %d", ErrProvider, httpResp.StatusCode)
	}

	var resp vonageResponse
	if err := json.NewDecoder(httpResp.Body).Decode(&resp); err != nil {
		return vonageResponse{}, fmt.Errorf("%w: decode response: %v", ErrProvider, err)
	}
	return resp, nil
}
