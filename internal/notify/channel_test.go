package notify

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/kozaktomas/lookout/internal/config"
	"github.com/sony/gobreaker"
)

func TestNtfyChannel_Send(t *testing.T) {
	var gotTitle, gotBody, gotMethod string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotMethod = r.Method
		gotTitle = r.Header.Get("Title")
		b, _ := io.ReadAll(r.Body)
		gotBody = string(b)
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	ch := NewNtfyChannel(srv.URL, time.Second)
	err := ch.Send(context.Background(), Message{Title: "Shoda nalezena – Jiří", Body: "Jiří was sighted"})
	if err != nil {
		t.Fatalf("Send() error = %v", err)
	}
	if gotMethod != http.MethodPost {
		t.Errorf("method = %s", gotMethod)
	}
	if gotTitle != "Shoda nalezena ? Jiri" {
		t.Errorf("Title header = %q", gotTitle)
	}
	if gotBody != "Jiří was sighted" {
		t.Errorf("body = %q", gotBody)
	}
}

func TestNtfyChannel_ErrorStatus(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "topic not found", http.StatusNotFound)
	}))
	defer srv.Close()

	err := NewNtfyChannel(srv.URL, time.Second).Send(context.Background(), Message{Body: "x"})
	var se *statusError
	if !errors.As(err, &se) || se.status != http.StatusNotFound {
		t.Fatalf("expected statusError 404, got %v", err)
	}
	if !se.permanent() {
		t.Error("404 should be permanent")
	}
}

func TestSMSWebhookChannel_Send(t *testing.T) {
	var payload smsPayload
	var auth string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		auth = r.Header.Get("Authorization")
		if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
			t.Errorf("decode payload: %v", err)
		}
		w.WriteHeader(http.StatusAccepted)
	}))
	defer srv.Close()

	ch := NewSMSWebhookChannel(srv.URL, "secret", time.Second)
	err := ch.Send(context.Background(), Message{
		Phone: " +420700000000 ",
		Title: "Possible Face Match Found",
		Body:  "A photo resembles Jiří Dvořák (97% similarity).",
	})
	if err != nil {
		t.Fatalf("Send() error = %v", err)
	}
	if auth != "Bearer secret" {
		t.Errorf("Authorization = %q", auth)
	}
	if payload.To != "+420700000000" {
		t.Errorf("to = %q", payload.To)
	}
	want := "Possible Face Match Found: A photo resembles Jiri Dvorak (97% similarity)."
	if payload.Body != want {
		t.Errorf("body = %q, want %q", payload.Body, want)
	}
}

func TestSMSWebhookChannel_SkipsWithoutPhone(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
	}))
	defer srv.Close()

	if err := NewSMSWebhookChannel(srv.URL, "", time.Second).Send(context.Background(), Message{Body: "x"}); err != nil {
		t.Fatal(err)
	}
	if calls.Load() != 0 {
		t.Error("expected no request without a phone number")
	}
}

func TestMultiChannel_JoinsErrors(t *testing.T) {
	ok := &recordingChannel{}
	failing := &recordingChannel{err: errChannelDown}

	err := MultiChannel{failing, ok}.Send(context.Background(), Message{Body: "x"})
	if !errors.Is(err, errChannelDown) {
		t.Errorf("expected joined error, got %v", err)
	}
	if len(ok.sent()) != 1 {
		t.Error("a failing channel must not stop the others")
	}
}

// flakyChannel fails the first n sends.
type flakyChannel struct {
	failures int32
	calls    atomic.Int32
	err      error
}

func (f *flakyChannel) Send(context.Context, Message) error {
	if f.calls.Add(1) <= f.failures {
		return f.err
	}
	return nil
}

func TestResilientChannel_RetriesTransientErrors(t *testing.T) {
	next := &flakyChannel{failures: 2, err: errChannelDown}
	ch := NewResilientChannel("test", next, 0, WithInitialBackoff(time.Millisecond), WithMaxElapsedTime(time.Second))

	if err := ch.Send(context.Background(), Message{Body: "x"}); err != nil {
		t.Fatalf("Send() error = %v", err)
	}
	if next.calls.Load() != 3 {
		t.Errorf("calls = %d, want 3", next.calls.Load())
	}
}

func TestResilientChannel_PermanentErrorNotRetried(t *testing.T) {
	next := &flakyChannel{failures: 100, err: &statusError{sink: "sms", status: http.StatusUnauthorized}}
	ch := NewResilientChannel("test", next, 0, WithInitialBackoff(time.Millisecond), WithMaxElapsedTime(time.Second))

	err := ch.Send(context.Background(), Message{Body: "x"})
	if err == nil {
		t.Fatal("expected error")
	}
	if next.calls.Load() != 1 {
		t.Errorf("calls = %d, want 1", next.calls.Load())
	}
}

func TestResilientChannel_BreakerOpens(t *testing.T) {
	next := &flakyChannel{failures: 1000, err: errChannelDown}
	ch := NewResilientChannel("test", next, 0, WithInitialBackoff(time.Millisecond), WithMaxElapsedTime(200*time.Millisecond))

	err := ch.Send(context.Background(), Message{Body: "x"})
	if !errors.Is(err, gobreaker.ErrOpenState) {
		t.Fatalf("expected open breaker, got %v", err)
	}
	if ch.State() != gobreaker.StateOpen {
		t.Errorf("state = %v, want open", ch.State())
	}
	if next.calls.Load() != 5 {
		t.Errorf("calls = %d, want 5 before the breaker trips", next.calls.Load())
	}
}

func TestNewChannelFromConfig(t *testing.T) {
	if _, ok := NewChannelFromConfig(config.ChannelConfig{}).(NoopChannel); !ok {
		t.Error("expected NoopChannel without configuration")
	}
	if _, ok := NewChannelFromConfig(config.ChannelConfig{NtfyURL: "http://ntfy/topic"}).(*ResilientChannel); !ok {
		t.Error("expected a single resilient channel")
	}
	multi, ok := NewChannelFromConfig(config.ChannelConfig{NtfyURL: "http://ntfy/topic", SMSWebhookURL: "http://sms"}).(MultiChannel)
	if !ok || len(multi) != 2 {
		t.Error("expected two channels")
	}
}
