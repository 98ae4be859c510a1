package metrics

import (
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/kozaktomas/lookout/internal/facematch"
	"github.com/prometheus/client_golang/prometheus/testutil"
)

func TestMetrics_Counters(t *testing.T) {
	m := New()

	m.RecordSkip(facematch.SkipUnreadable)
	m.RecordSkip(facematch.SkipUnreadable)
	m.RecordSkip(facematch.SkipNoPhoto)
	m.RecordMatches(3)
	m.RecordNotification(ResultCreated)
	m.RecordNotification(ResultDuplicate)
	m.RecordChannelSend(nil)
	m.RecordChannelSend(errors.New("down"))
	m.ObserveRun("report", 120*time.Millisecond)

	if got := testutil.ToFloat64(m.skipped.WithLabelValues("unreadable")); got != 2 {
		t.Errorf("unreadable skips = %v, want 2", got)
	}
	if got := testutil.ToFloat64(m.skipped.WithLabelValues("no_photo")); got != 1 {
		t.Errorf("no_photo skips = %v, want 1", got)
	}
	if got := testutil.ToFloat64(m.matches); got != 3 {
		t.Errorf("matches = %v, want 3", got)
	}
	if got := testutil.ToFloat64(m.notifications.WithLabelValues(ResultDuplicate)); got != 1 {
		t.Errorf("duplicate notifications = %v, want 1", got)
	}
	if got := testutil.ToFloat64(m.channelSends.WithLabelValues(SendFailed)); got != 1 {
		t.Errorf("failed sends = %v, want 1", got)
	}
}

func TestMetrics_ImplementsSkipRecorder(t *testing.T) {
	var _ facematch.SkipRecorder = New()
}

func TestMetrics_Handler(t *testing.T) {
	m := New()
	m.RecordSkip(facematch.SkipTimeout)

	srv := httptest.NewServer(m.Handler())
	defer srv.Close()

	resp, err := http.Get(srv.URL)
	if err != nil {
		t.Fatal(err)
	}
	defer resp.Body.Close()

	body, _ := io.ReadAll(resp.Body)
	if !strings.Contains(string(body), `lookout_candidates_skipped_total{reason="timeout"} 1`) {
		t.Errorf("exposition missing skip counter:\n%s", body)
	}
}
