package metrics

import (
	"io"
	"net/http/httptest"
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMetrics_Counters(t *testing.T) {
	m := New()
	m.ConnectionRequest("send", "ok")
	m.ConnectionRequest("send", "ok")
	m.MessageSent()
	m.CodecFallback("decrypt")
	m.SubscriptionOpened()
	m.SubscriptionOpened()
	m.SubscriptionClosed()

	assert.Equal(t, 2.0, testutil.ToFloat64(m.connectionRequests.WithLabelValues("send", "ok")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.messagesSent))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.codecFallbacks.WithLabelValues("decrypt")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.activeSubscriptions))
}

func TestMetrics_NilIsNoop(t *testing.T) {
	var m *Metrics
	assert.NotPanics(t, func() {
		m.ConnectionRequest("send", "ok")
		m.MessageSent()
		m.CodecFallback("encrypt")
		m.SubscriptionOpened()
		m.SubscriptionClosed()
	})
}

func TestMetrics_Handler(t *testing.T) {
	m := New()
	m.MessageSent()

	rec := httptest.NewRecorder()
	m.Handler().ServeHTTP(rec, httptest.NewRequest("GET", "/metrics", nil))

	body, err := io.ReadAll(rec.Body)
	require.NoError(t, err)
	assert.Contains(t, string(body), "educonnect_chat_messages_sent_total 1")
}
