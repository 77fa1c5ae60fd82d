package notify

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/ses"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/utafrali/storefront/pkg/httpclient"
	"github.com/utafrali/storefront/pkg/logger"
)

func sampleAlert() Alert {
	return Alert{
		ReviewID:    1790023437891526656,
		ProductID:   "prod-1",
		ReportCount: 3,
		LastReason:  "spam",
		Excerpt:     "Buy followers at...",
	}
}

func TestAlert_Text(t *testing.T) {
	a := sampleAlert()
	assert.Equal(t, "Review 1790023437891526656 on product prod-1 reported 3 times", a.Subject())
	assert.Contains(t, a.Text(), "Latest reason: spam")
	assert.Contains(t, a.Text(), "/api/v1/admin/reviews/1790023437891526656/moderate")
}

func TestExcerpt(t *testing.T) {
	assert.Equal(t, "short", Excerpt("short", 10))
	assert.Equal(t, "çok g…", Excerpt("çok güzel", 5))
}

func TestLogSender(t *testing.T) {
	var buf bytes.Buffer
	s := NewLogSender(logger.NewWithWriter("review-service", "info", &buf))

	require.NoError(t, s.Send(context.Background(), sampleAlert()))
	assert.Equal(t, "log", s.Name())
	assert.Contains(t, buf.String(), "review report threshold reached")
	assert.Contains(t, buf.String(), `"report_count":3`)
}

type fakeSES struct {
	input *ses.SendEmailInput
	err   error
}

func (f *fakeSES) SendEmail(_ context.Context, in *ses.SendEmailInput, _ ...func(*ses.Options)) (*ses.SendEmailOutput, error) {
	f.input = in
	if f.err != nil {
		return nil, f.err
	}
	return &ses.SendEmailOutput{MessageId: aws.String("msg-1")}, nil
}

func TestSESSender(t *testing.T) {
	client := &fakeSES{}
	s := newSESSender(client, SESConfig{From: "reviews@shop.test", To: []string{"mod@shop.test"}}, logger.Discard())

	require.NoError(t, s.Send(context.Background(), sampleAlert()))
	assert.Equal(t, "email", s.Name())
	require.NotNil(t, client.input)
	assert.Equal(t, "reviews@shop.test", aws.ToString(client.input.Source))
	assert.Equal(t, []string{"mod@shop.test"}, client.input.Destination.ToAddresses)
	assert.Equal(t, sampleAlert().Subject(), aws.ToString(client.input.Message.Subject.Data))

	client.err = errors.New("throttled")
	assert.ErrorContains(t, s.Send(context.Background(), sampleAlert()), "throttled")
}

func newWebhookClient() *httpclient.CircuitBreakerClient {
	cfg := httpclient.DefaultConfig()
	cfg.MaxRetries = 0
	cfg.Timeout = 2 * time.Second
	return httpclient.NewCircuitBreakerClient(httpclient.New(cfg), httpclient.DefaultCircuitBreakerConfig("test-webhook"), logger.Discard())
}

func TestWebhookSender(t *testing.T) {
	var got webhookBody
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "application/json", r.Header.Get("Content-Type"))
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		w.WriteHeader(http.StatusNoContent)
	}))
	defer srv.Close()

	s := NewWebhookSender(newWebhookClient(), srv.URL, logger.Discard())
	require.NoError(t, s.Send(context.Background(), sampleAlert()))

	assert.Equal(t, "webhook", s.Name())
	assert.Equal(t, "review.report_threshold_reached", got.Event)
	assert.Equal(t, sampleAlert(), got.Alert)
}

func TestWebhookSender_Rejected(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		http.Error(w, "bad token", http.StatusForbidden)
	}))
	defer srv.Close()

	s := NewWebhookSender(newWebhookClient(), srv.URL, logger.Discard())
	err := s.Send(context.Background(), sampleAlert())
	assert.ErrorContains(t, err, "returned 403")
}

func TestWebhookSender_ServerError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer srv.Close()

	s := NewWebhookSender(newWebhookClient(), srv.URL, logger.Discard())
	assert.Error(t, s.Send(context.Background(), sampleAlert()))
}
