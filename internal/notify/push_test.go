package notify

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testPusher(srv *httptest.Server) *Pusher {
	p := NewPusher("test-key")
	p.FCMURL = srv.URL
	p.FCMTopicURL = srv.URL
	p.ExpoURL = srv.URL
	p.Client = srv.Client()
	return p
}

func TestSendFCMPostsLegacyPayload(t *testing.T) {
	var got fcmMessage
	var auth string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		auth = r.Header.Get("Authorization")
		require.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		w.Write([]byte(`{"success":1}`))
	}))
	defer srv.Close()

	p := testPusher(srv)
	raw, err := p.SendFCM(context.Background(), "device-token", "Hi", "There", map[string]interface{}{"k": "v"})
	require.NoError(t, err)

	assert.Equal(t, "key=test-key", auth)
	assert.Equal(t, "device-token", got.To)
	assert.Equal(t, "Hi", got.Notification["title"])
	assert.Equal(t, "There", got.Notification["body"])
	assert.Equal(t, "v", got.Data["k"])
	assert.JSONEq(t, `{"success":1}`, string(raw))
}

func TestSendFCMTopicPrefixesTopic(t *testing.T) {
	var got fcmMessage
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		w.Write([]byte(`{}`))
	}))
	defer srv.Close()

	_, err := testPusher(srv).SendFCMTopic(context.Background(), "alerts", "t", "b", nil)
	require.NoError(t, err)
	assert.Equal(t, "/topics/alerts", got.To)
}

func TestSendFCMSurfacesUpstreamError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "unauthorized", http.StatusUnauthorized)
	}))
	defer srv.Close()

	_, err := testPusher(srv).SendFCM(context.Background(), "tok", "t", "b", nil)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "status 401")
}

func TestSubscribeHitsInstanceIDPath(t *testing.T) {
	var method, path string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		method, path = r.Method, r.URL.Path
	}))
	defer srv.Close()

	p := testPusher(srv)
	require.NoError(t, p.Subscribe(context.Background(), "tok", "alerts"))
	assert.Equal(t, http.MethodPost, method)
	assert.Equal(t, "/tok/rel/topics/alerts", path)

	require.NoError(t, p.Unsubscribe(context.Background(), "tok", "alerts"))
	assert.Equal(t, http.MethodDelete, method)
}

func TestSendExpoPayloadShape(t *testing.T) {
	var got expoMessage
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "application/json", r.Header.Get("Content-Type"))
		require.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		w.Write([]byte(`{"data":{"status":"ok"}}`))
	}))
	defer srv.Close()

	_, err := testPusher(srv).SendExpo(context.Background(), "ExponentPushToken[abc]", "Hi", "There", nil)
	require.NoError(t, err)

	assert.Equal(t, "ExponentPushToken[abc]", got.To)
	assert.Equal(t, "default", got.Sound)
	assert.Equal(t, "Hi", got.Title)
	// nil data is sent as an empty object, not null.
	assert.NotNil(t, got.Data)
}

func TestPusherConfigured(t *testing.T) {
	assert.True(t, NewPusher("key").Configured())
	assert.False(t, NewPusher("").Configured())
}
