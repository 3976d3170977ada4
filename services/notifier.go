// services/notifier.go
package services

import (
	"bytes"
	"encoding/json"
	"log"
	"net/http"
	"os"
	"time"
)

// NotifierClient delivers user notifications to the external notification
// service. Delivery is best-effort: a failed or slow notification must never
// unwind a settlement, so Notify logs and swallows every error.
type NotifierClient struct {
	BaseURL string
	Token   string
	Client  *http.Client
}

// NewNotifierClientFromEnv returns nil when NOTIFY_SERVICE_URL is unset;
// a nil client is safe to call and simply drops events.
func NewNotifierClientFromEnv() *NotifierClient {
	baseURL := os.Getenv("NOTIFY_SERVICE_URL")
	if baseURL == "" {
		log.Println("⚠️  NOTIFY_SERVICE_URL not set — notifications disabled")
		return nil
	}
	return &NotifierClient{
		BaseURL: baseURL,
		Token:   os.Getenv("ARENA_SERVICE_TOKEN"),
		Client: &http.Client{
			Timeout: 10 * time.Second,
		},
	}
}

// Notify posts one event to the notification service. Never returns an error
// into the caller.
func (c *NotifierClient) Notify(userID, event string, vars map[string]string) {
	if c == nil {
		return
	}

	payload := map[string]interface{}{
		"user_id":   userID,
		"event":     event,
		"variables": vars,
	}
	jsonData, _ := json.Marshal(payload)

	req, err := http.NewRequest("POST", c.BaseURL+"/api/v1/notifications", bytes.NewBuffer(jsonData))
	if err != nil {
		log.Printf("❌ [NOTIFY] failed to build request for %s/%s: %v", userID, event, err)
		return
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-Service-Token", c.Token)

	resp, err := c.Client.Do(req)
	if err != nil {
		log.Printf("❌ [NOTIFY] %s/%s: %v", userID, event, err)
		return
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		log.Printf("❌ [NOTIFY] %s/%s: notification service returned %d", userID, event, resp.StatusCode)
	}
}
