package apiclient

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
)

type staticToken string

func (s staticToken) Token() string { return string(s) }

func TestChannels(t *testing.T) {
	var gotAuth string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/channels" {
			http.NotFound(w, r)
			return
		}
		gotAuth = r.Header.Get("Authorization")
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"channels":[{"id":"gen","name":"General","kind":"subject"},{"id":"sci101","name":"SCI 101","kind":"subject"}]}`))
	}))
	defer srv.Close()

	c := New(staticToken("tok-123"))
	channels, err := c.Channels(context.Background(), srv.URL+"/")
	if err != nil {
		t.Fatalf("Channels failed: %v", err)
	}
	if len(channels) != 2 || channels[0].ID != "gen" || channels[1].ID != "sci101" {
		t.Errorf("unexpected channels: %+v", channels)
	}
	if gotAuth != "Bearer tok-123" {
		t.Errorf("expected bearer token header, got %q", gotAuth)
	}
}

func TestChannelMessages(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/channels/gen/messages" {
			http.NotFound(w, r)
			return
		}
		if r.Header.Get("Authorization") != "" {
			t.Error("anonymous client must not send Authorization")
		}
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"messages":[{"id":"m1","channelId":"gen","senderId":"u1","senderName":"System","text":"hi","createdAt":1700000000000,"priority":"normal"}]}`))
	}))
	defer srv.Close()

	c := New(nil)
	msgs, err := c.ChannelMessages(context.Background(), srv.URL, "gen")
	if err != nil {
		t.Fatalf("ChannelMessages failed: %v", err)
	}
	if len(msgs) != 1 || msgs[0].ID != "m1" {
		t.Errorf("unexpected messages: %+v", msgs)
	}
}

func TestGet_BadStatus(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "nope", http.StatusServiceUnavailable)
	}))
	defer srv.Close()

	c := New(nil)
	if _, err := c.Channels(context.Background(), srv.URL); err == nil {
		t.Error("expected error for 503")
	}
}
