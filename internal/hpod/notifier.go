package hpod

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/GoSim-25-26J-441/hpo-core/pkg/logger"
	"github.com/GoSim-25-26J-441/hpo-core/pkg/utils"
)

// NotificationPayload represents the JSON payload sent to the callback URL
type NotificationPayload struct {
	StudyID         string   `json:"study_id"`
	Status          string   `json:"status"`
	Trials          int      `json:"trials"`
	BestTrialID     *int     `json:"best_trial_id,omitempty"`
	BestValue       *float64 `json:"best_value,omitempty"`
	StopReason      string   `json:"stop_reason,omitempty"`
	Error           string   `json:"error,omitempty"`
	CreatedAtUnixMs int64    `json:"created_at_unix_ms"`
	EndedAtUnixMs   int64    `json:"ended_at_unix_ms,omitempty"`
	Timestamp       int64    `json:"timestamp"` // When notification was sent
}

var (
	ErrInvalidURL       = errors.New("invalid callback URL")
	ErrMetadataEndpoint = errors.New("callback URL targets a cloud metadata endpoint")
	ErrInternalHost     = errors.New("callback URL targets an internal address")
)

// Notifier posts study completion to a callback URL
type Notifier struct {
	httpClient    *http.Client
	maxRetries    int
	backoff       utils.BackoffStrategy
	defaultSecret string
}

// NewNotifier creates a notifier. defaultSecret is sent in X-HPO-Callback-Secret
// for studies submitted without their own secret.
func NewNotifier(backoff utils.BackoffStrategy, maxRetries int, defaultSecret string) *Notifier {
	if backoff == nil {
		backoff = utils.NewExponentialBackoff(time.Second, 30*time.Second, 2.0, true)
	}
	return &Notifier{
		httpClient: &http.Client{
			Timeout: 10 * time.Second,
		},
		maxRetries:    maxRetries,
		backoff:       backoff,
		defaultSecret: defaultSecret,
	}
}

// Notify sends a notification to the callback URL asynchronously
func (n *Notifier) Notify(callbackURL, callbackSecret string, rec StudyRecord) {
	if callbackURL == "" {
		return
	}
	if err := validateCallbackURL(callbackURL); err != nil {
		logger.Warn("refusing callback URL", "study_id", rec.ID, "callback_url", callbackURL, "error", err)
		return
	}
	if callbackSecret == "" {
		callbackSecret = n.defaultSecret
	}

	// Replace {study_id} template in callback URL if present
	finalURL := strings.ReplaceAll(callbackURL, "{study_id}", url.PathEscape(rec.ID))

	go n.send(context.Background(), finalURL, callbackSecret, buildPayload(rec))
}

// validateCallbackURL rejects URLs that would let a caller reach internal
// services. Hostnames are not resolved; "localhost" is allowed for development.
func validateCallbackURL(raw string) error {
	u, err := url.Parse(raw)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidURL, err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return fmt.Errorf("%w: scheme must be http or https, got %q", ErrInvalidURL, u.Scheme)
	}
	host := u.Hostname()
	if host == "" {
		return fmt.Errorf("%w: missing hostname", ErrInvalidURL)
	}
	if host == "metadata.google.internal" || host == "169.254.169.254" {
		return fmt.Errorf("%w: %s", ErrMetadataEndpoint, host)
	}
	if ip := net.ParseIP(host); ip != nil && isPrivateIP(ip) {
		return fmt.Errorf("%w: %s", ErrInternalHost, host)
	}
	return nil
}

// isPrivateIP reports loopback, private, link-local and unspecified addresses
func isPrivateIP(ip net.IP) bool {
	return ip.IsLoopback() || ip.IsPrivate() || ip.IsLinkLocalUnicast() ||
		ip.IsLinkLocalMulticast() || ip.IsUnspecified()
}

func buildPayload(rec StudyRecord) NotificationPayload {
	payload := NotificationPayload{
		StudyID:         rec.ID,
		Status:          rec.Status.String(),
		StopReason:      rec.StopReason,
		Error:           rec.Error,
		CreatedAtUnixMs: utils.UnixMs(rec.CreatedAt),
		EndedAtUnixMs:   utils.UnixMs(rec.EndedAt),
		Timestamp:       time.Now().UTC().UnixMilli(),
	}
	if rec.Study != nil {
		payload.Trials = rec.Study.Storage().NumTrials()
		if best, ok := rec.Study.BestTrial(); ok {
			id, value := best.ID, best.Value
			payload.BestTrialID = &id
			payload.BestValue = &value
		}
	}
	return payload
}

// send performs the HTTP POST with retry
func (n *Notifier) send(ctx context.Context, callbackURL, secret string, payload NotificationPayload) {
	payloadJSON, err := json.Marshal(payload)
	if err != nil {
		logger.Error("failed to marshal notification payload",
			"callback_url", callbackURL,
			"study_id", payload.StudyID,
			"error", err)
		return
	}

	err = utils.Retry(ctx, n.maxRetries, n.backoff, func(attempt int) error {
		return n.post(ctx, callbackURL, secret, payloadJSON, payload, attempt)
	})
	if err != nil {
		logger.Error("failed to send notification after retries",
			"callback_url", callbackURL,
			"study_id", payload.StudyID,
			"status", payload.Status,
			"max_retries", n.maxRetries,
			"last_error", err)
	}
}

func (n *Notifier) post(ctx context.Context, callbackURL, secret string, body []byte, payload NotificationPayload, attempt int) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, callbackURL, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("User-Agent", "hpo-core/1.0")
	if secret != "" {
		req.Header.Set("X-HPO-Callback-Secret", secret)
	}

	resp, err := n.httpClient.Do(req)
	if err != nil {
		logger.Warn("notification attempt failed",
			"callback_url", callbackURL,
			"study_id", payload.StudyID,
			"attempt", attempt+1,
			"error", err)
		return fmt.Errorf("HTTP request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 200 && resp.StatusCode < 300 {
		logger.Info("notification sent successfully",
			"study_id", payload.StudyID,
			"status", payload.Status,
			"status_code", resp.StatusCode)
		return nil
	}

	bodyBytes, _ := io.ReadAll(io.LimitReader(resp.Body, 201))
	responseBody := string(bodyBytes)
	if len(responseBody) > 200 {
		responseBody = responseBody[:200] + "..."
	}
	logger.Warn("notification returned non-2xx status",
		"callback_url", callbackURL,
		"study_id", payload.StudyID,
		"status_code", resp.StatusCode,
		"response_body", responseBody,
		"attempt", attempt+1)
	return fmt.Errorf("unexpected status code: %d", resp.StatusCode)
}
