package notify

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"

	"go.uber.org/multierr"
	"golang.org/x/oauth2"
	"golang.org/x/oauth2/google"
)

const (
	fcmScope    = "https://www.googleapis.com/auth/firebase.messaging"
	fcmEndpoint = "https://fcm.googleapis.com"
)

// FCM sends through the Firebase Cloud Messaging HTTP v1 API, one request
// per token.
type FCM struct {
	client   *http.Client
	endpoint string
	project  string
}

// NewFCM authenticates with application default credentials.
func NewFCM(ctx context.Context, projectID string) (*FCM, error) {
	creds, err := google.FindDefaultCredentials(ctx, fcmScope)
	if err != nil {
		return nil, fmt.Errorf("fcm credentials: %w", err)
	}
	if projectID == "" {
		projectID = creds.ProjectID
	}
	return NewFCMWithClient(oauth2.NewClient(ctx, creds.TokenSource), fcmEndpoint, projectID), nil
}

// NewFCMWithClient uses an already authorized client against endpoint.
func NewFCMWithClient(client *http.Client, endpoint, projectID string) *FCM {
	return &FCM{client: client, endpoint: endpoint, project: projectID}
}

type fcmMessage struct {
	Message struct {
		Token        string            `json:"token"`
		Notification fcmNotification   `json:"notification"`
		Data         map[string]string `json:"data,omitempty"`
	} `json:"message"`
}

type fcmNotification struct {
	Title string `json:"title"`
	Body  string `json:"body"`
}

// Send posts one message per token and returns the combined failures.
func (f *FCM) Send(ctx context.Context, tokens []string, n Notification) error {
	url := fmt.Sprintf("%s/v1/projects/%s/messages:send", f.endpoint, f.project)
	var errs error
	for _, token := range tokens {
		var msg fcmMessage
		msg.Message.Token = token
		msg.Message.Notification = fcmNotification{Title: n.Title, Body: n.Body}
		msg.Message.Data = n.Data
		if err := f.post(ctx, url, msg); err != nil {
			errs = multierr.Append(errs, err)
		}
	}
	return errs
}

func (f *FCM) post(ctx context.Context, url string, msg fcmMessage) error {
	body, err := json.Marshal(msg)
	if err != nil {
		return err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	resp, err := f.client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode/100 != 2 {
		detail, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return fmt.Errorf("fcm: %s: %s", resp.Status, bytes.TrimSpace(detail))
	}
	_, _ = io.Copy(io.Discard, resp.Body)
	return nil
}
