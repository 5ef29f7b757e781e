package notify

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"
)

const (
	defaultFCMURL      = "https://fcm.googleapis.com/fcm/send"
	defaultFCMTopicURL = "https://iid.googleapis.com/iid/v1"
	defaultExpoURL     = "https://exp.host/--/api/v2/push/send"
)

// Pusher talks to the FCM legacy HTTP API and the Expo push service.
// Base URLs are fields so tests can point them at a local server.
type Pusher struct {
	FCMServerKey string
	FCMURL       string
	FCMTopicURL  string
	ExpoURL      string
	Client       *http.Client
}

func NewPusher(fcmServerKey string) *Pusher {
	return &Pusher{
		FCMServerKey: fcmServerKey,
		FCMURL:       defaultFCMURL,
		FCMTopicURL:  defaultFCMTopicURL,
		ExpoURL:      defaultExpoURL,
		Client:       &http.Client{Timeout: 10 * time.Second},
	}
}

func (p *Pusher) Configured() bool { return p.FCMServerKey != "" }

// fcmMessage mirrors the legacy FCM downstream message shape. Exactly
// one of To (token) or the /topics/ prefix form is set.
type fcmMessage struct {
	To           string                 `json:"to"`
	Notification map[string]string      `json:"notification"`
	Data         map[string]interface{} `json:"data,omitempty"`
}

// SendFCM delivers a notification to a single device token.
func (p *Pusher) SendFCM(ctx context.Context, token, title, body string, data map[string]interface{}) (json.RawMessage, error) {
	return p.postFCM(ctx, fcmMessage{
		To:           token,
		Notification: map[string]string{"title": title, "body": body},
		Data:         data,
	})
}

// SendFCMTopic delivers a notification to every device subscribed to a
// topic.
func (p *Pusher) SendFCMTopic(ctx context.Context, topic, title, body string, data map[string]interface{}) (json.RawMessage, error) {
	return p.postFCM(ctx, fcmMessage{
		To:           "/topics/" + topic,
		Notification: map[string]string{"title": title, "body": body},
		Data:         data,
	})
}

func (p *Pusher) postFCM(ctx context.Context, msg fcmMessage) (json.RawMessage, error) {
	payload, err := json.Marshal(msg)
	if err != nil {
		return nil, err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, p.FCMURL, bytes.NewReader(payload))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "key="+p.FCMServerKey)

	resp, err := p.Client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, err
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("fcm: status %d: %s", resp.StatusCode, raw)
	}
	return json.RawMessage(raw), nil
}

// Subscribe adds a device token to an FCM topic via the instance-id API.
func (p *Pusher) Subscribe(ctx context.Context, token, topic string) error {
	url := fmt.Sprintf("%s/%s/rel/topics/%s", p.FCMTopicURL, token, topic)
	return p.topicRequest(ctx, http.MethodPost, url)
}

// Unsubscribe removes a device token from an FCM topic.
func (p *Pusher) Unsubscribe(ctx context.Context, token, topic string) error {
	url := fmt.Sprintf("%s/%s/rel/topics/%s", p.FCMTopicURL, token, topic)
	return p.topicRequest(ctx, http.MethodDelete, url)
}

func (p *Pusher) topicRequest(ctx context.Context, method, url string) error {
	req, err := http.NewRequestWithContext(ctx, method, url, nil)
	if err != nil {
		return err
	}
	req.Header.Set("Authorization", "key="+p.FCMServerKey)

	resp, err := p.Client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		raw, _ := io.ReadAll(resp.Body)
		return fmt.Errorf("fcm topics: status %d: %s", resp.StatusCode, raw)
	}
	return nil
}

// expoMessage is the Expo push API payload.
type expoMessage struct {
	To    string                 `json:"to"`
	Sound string                 `json:"sound"`
	Title string                 `json:"title"`
	Body  string                 `json:"body"`
	Data  map[string]interface{} `json:"data"`
}

// SendExpo delivers a notification through Expo's push service. No
// server key is needed; the token itself authorizes delivery.
func (p *Pusher) SendExpo(ctx context.Context, token, title, body string, data map[string]interface{}) (json.RawMessage, error) {
	if data == nil {
		data = map[string]interface{}{}
	}
	payload, err := json.Marshal(expoMessage{
		To:    token,
		Sound: "default",
		Title: title,
		Body:  body,
		Data:  data,
	})
	if err != nil {
		return nil, err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, p.ExpoURL, bytes.NewReader(payload))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Accept", "application/json")
	req.Header.Set("Accept-Encoding", "gzip, deflate")
	req.Header.Set("Content-Type", "application/json")

	resp, err := p.Client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, err
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("expo: status %d: %s", resp.StatusCode, raw)
	}
	return json.RawMessage(raw), nil
}
