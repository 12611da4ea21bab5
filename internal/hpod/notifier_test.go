package hpod

import (
	"encoding/json"
	"errors"
	"net"
	"net/http"
	"net/http/httptest"
	"net/url"
	"testing"
	"time"

	"github.com/GoSim-25-26J-441/hpo-core/pkg/utils"
)

func TestValidateCallbackURL(t *testing.T) {
	tests := []struct {
		name    string
		url     string
		errType error
	}{
		{"valid external URL", "https://example.com/callback", nil},
		{"valid localhost for development", "http://localhost:8000/callback", nil},
		{"URL with study_id template", "http://localhost:8000/callback/{study_id}", nil},
		{"invalid scheme", "ftp://example.com/callback", ErrInvalidURL},
		{"missing hostname", "http:///callback", ErrInvalidURL},
		{"metadata endpoint - IP", "http://169.254.169.254/metadata", ErrMetadataEndpoint},
		{"metadata endpoint - hostname", "http://metadata.google.internal/metadata", ErrMetadataEndpoint},
		{"wildcard address", "http://0.0.0.0:8000/callback", ErrInternalHost},
		{"direct loopback IP", "http://127.0.0.1:8000/callback", ErrInternalHost},
		{"private IP", "http://192.168.1.10/callback", ErrInternalHost},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := validateCallbackURL(tt.url)
			if tt.errType == nil {
				if err != nil {
					t.Errorf("validateCallbackURL() unexpected error = %v", err)
				}
				return
			}
			if !errors.Is(err, tt.errType) {
				t.Errorf("validateCallbackURL() error = %v, want %v", err, tt.errType)
			}
		})
	}
}

func TestIsPrivateIP(t *testing.T) {
	tests := []struct {
		ip   string
		want bool
	}{
		{"8.8.8.8", false},
		{"10.0.0.1", true},
		{"172.16.0.1", true},
		{"192.168.1.1", true},
		{"169.254.0.1", true},
		{"127.0.0.1", true},
		{"::1", true},
		{"fc00::1", true},
	}

	for _, tt := range tests {
		ip := net.ParseIP(tt.ip)
		if ip == nil {
			t.Fatalf("failed to parse IP: %s", tt.ip)
		}
		if got := isPrivateIP(ip); got != tt.want {
			t.Errorf("isPrivateIP(%s) = %v, want %v", tt.ip, got, tt.want)
		}
	}
}

type received struct {
	path    string
	secret  string
	payload NotificationPayload
}

// callbackServer returns a localhost URL (httptest listens on 127.0.0.1, which
// validateCallbackURL rejects) and a channel of received notifications
func callbackServer(t *testing.T, status int) (string, <-chan received) {
	t.Helper()
	ch := make(chan received, 8)
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var payload NotificationPayload
		if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
			t.Errorf("failed to decode payload: %v", err)
		}
		ch <- received{path: r.URL.Path, secret: r.Header.Get("X-HPO-Callback-Secret"), payload: payload}
		w.WriteHeader(status)
	}))
	t.Cleanup(server.Close)

	serverURL, _ := url.Parse(server.URL)
	return "http://localhost:" + serverURL.Port(), ch
}

func waitReceived(t *testing.T, ch <-chan received) received {
	t.Helper()
	select {
	case r := <-ch:
		return r
	case <-time.After(5 * time.Second):
		t.Fatalf("timed out waiting for notification")
		return received{}
	}
}

func TestNotifierNotifySuccess(t *testing.T) {
	base, ch := callbackServer(t, http.StatusOK)
	notifier := NewNotifier(utils.NewConstantBackoff(time.Millisecond), 0, "default-secret")

	rec := StudyRecord{
		ID:        "study-123",
		Status:    StatusCompleted,
		CreatedAt: time.Now(),
		EndedAt:   time.Now(),
	}
	notifier.Notify(base+"/callback/{study_id}", "", rec)

	r := waitReceived(t, ch)
	if r.path != "/callback/study-123" {
		t.Errorf("expected templated path, got %s", r.path)
	}
	if r.secret != "default-secret" {
		t.Errorf("expected default secret, got %q", r.secret)
	}
	if r.payload.StudyID != "study-123" || r.payload.Status != "COMPLETED" {
		t.Errorf("unexpected payload: %+v", r.payload)
	}
	if r.payload.BestValue != nil {
		t.Errorf("expected no best value without a study, got %v", *r.payload.BestValue)
	}
}

func TestNotifierNotifyPerStudySecret(t *testing.T) {
	base, ch := callbackServer(t, http.StatusOK)
	notifier := NewNotifier(utils.NewConstantBackoff(time.Millisecond), 0, "default-secret")

	notifier.Notify(base+"/cb", "my-secret-123", StudyRecord{ID: "s", Status: StatusFailed})
	if r := waitReceived(t, ch); r.secret != "my-secret-123" {
		t.Errorf("expected secret 'my-secret-123', got %q", r.secret)
	}
}

func TestNotifierRetriesNon2xx(t *testing.T) {
	base, ch := callbackServer(t, http.StatusServiceUnavailable)
	notifier := NewNotifier(utils.NewConstantBackoff(time.Millisecond), 2, "")

	notifier.Notify(base+"/cb", "", StudyRecord{ID: "s", Status: StatusCompleted})
	for i := 0; i < 3; i++ {
		waitReceived(t, ch)
	}
	select {
	case <-ch:
		t.Fatalf("expected exactly 3 attempts")
	case <-time.After(100 * time.Millisecond):
	}
}

func TestNotifierSkipsEmptyAndInvalidURL(t *testing.T) {
	notifier := NewNotifier(nil, 0, "")
	// Neither call may panic or send a request
	notifier.Notify("", "", StudyRecord{ID: "s"})
	notifier.Notify("http://127.0.0.1:8000/callback", "", StudyRecord{ID: "s"})
}

func TestExecutorNotifiesOnCompletion(t *testing.T) {
	base, ch := callbackServer(t, http.StatusOK)
	store := NewStudyStore()
	executor := NewStudyExecutor(store, NewNotifier(utils.NewConstantBackoff(time.Millisecond), 0, ""))

	_, err := executor.Submit(SubmitRequest{
		StudyID:        "notify-me",
		ConfigYAML:     quadraticYAML,
		CallbackURL:    base + "/done/{study_id}",
		CallbackSecret: "s3cret",
	})
	if err != nil {
		t.Fatalf("Submit error: %v", err)
	}

	r := waitReceived(t, ch)
	executor.Wait()
	if r.path != "/done/notify-me" || r.secret != "s3cret" {
		t.Errorf("unexpected request path %q secret %q", r.path, r.secret)
	}
	if r.payload.Status != "COMPLETED" || r.payload.Trials != 50 {
		t.Errorf("unexpected payload: %+v", r.payload)
	}
	if r.payload.BestValue == nil || r.payload.BestTrialID == nil {
		t.Errorf("expected best trial in payload")
	}
}
