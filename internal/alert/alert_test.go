package alert

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/i474232898/weather-risk/internal/observability"
)

type recordingNotifier struct {
	sent []string
	fail map[string]bool
}

func (r *recordingNotifier) Notify(_ context.Context, to, _ string) error {
	if r.fail[to] {
		return errors.New("unreachable")
	}
	r.sent = append(r.sent, to)
	return nil
}

func TestDispatch_Threshold(t *testing.T) {
	n := &recordingNotifier{}
	d := NewDispatcher(n, []string{"+911111111111"}, 70, nil, observability.NewMetricsForTesting())

	assert.Equal(t, 0, d.Dispatch(context.Background(), Event{City: "Pune", Label: "Low Risk", RiskScore: 69.99}))
	assert.Empty(t, n.sent)

	assert.Equal(t, 1, d.Dispatch(context.Background(), Event{City: "Pune", Label: "Flood Risk", RiskScore: 70}))
	assert.Equal(t, []string{"+911111111111"}, n.sent)
}

func TestDispatch_FailuresAreAbsorbed(t *testing.T) {
	n := &recordingNotifier{fail: map[string]bool{"+912222222222": true}}
	d := NewDispatcher(n, []string{"+911111111111", "+912222222222", "+913333333333"}, 50, nil, nil)

	sent := d.Dispatch(context.Background(), Event{City: "Chennai", Label: "Cyclone Risk", RiskScore: 91})
	assert.Equal(t, 2, sent)
	assert.Equal(t, []string{"+911111111111", "+913333333333"}, n.sent)
}

func TestDispatch_NilDispatcher(t *testing.T) {
	var d *Dispatcher
	assert.Equal(t, 0, d.Dispatch(context.Background(), Event{RiskScore: 100}))
}

func TestEventMessage(t *testing.T) {
	msg := Event{City: "Puri", Label: "Cyclone Risk", RiskScore: 88.24}.Message()
	assert.Contains(t, msg, "Puri")
	assert.Contains(t, msg, "Cyclone Risk")
	assert.Contains(t, msg, "88.2")
}

func TestTwilioNotifier(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/Accounts/AC123/Messages.json", r.URL.Path)
		user, pass, ok := r.BasicAuth()
		assert.True(t, ok)
		assert.Equal(t, "AC123", user)
		assert.Equal(t, "token", pass)

		require.NoError(t, r.ParseForm())
		assert.Equal(t, "+911111111111", r.PostForm.Get("To"))
		assert.Equal(t, "+15005550006", r.PostForm.Get("From"))
		assert.Equal(t, "hello", r.PostForm.Get("Body"))

		w.WriteHeader(http.StatusCreated)
		_, _ = w.Write([]byte(`{"sid":"SM1"}`))
	}))
	defer srv.Close()

	n := NewTwilioNotifier("AC123", "token", "+15005550006", time.Second)
	n.baseURL = srv.URL

	require.NoError(t, n.Notify(context.Background(), "+911111111111", "hello"))
}

func TestTwilioNotifier_Errors(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
		_, _ = w.Write([]byte(`{"code":21211,"message":"Invalid 'To' Phone Number"}`))
	}))
	defer srv.Close()

	n := NewTwilioNotifier("AC123", "token", "+15005550006", time.Second)
	n.baseURL = srv.URL
	err := n.Notify(context.Background(), "bogus", "hello")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "400")

	err = NewTwilioNotifier("", "", "", time.Second).Notify(context.Background(), "+91", "hello")
	assert.ErrorIs(t, err, errNotConfigured)
}
