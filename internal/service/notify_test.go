package service

import (
	"context"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"

	"FactoryTrust/internal/interfaces"
	"FactoryTrust/internal/notify"

	logtest "github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func ptrFloat(v float64) *float64 { return &v }

func TestShouldNotify(t *testing.T) {
	cases := []struct {
		name     string
		prev     *float64
		total    float64
		minDelta float64
		want     bool
	}{
		{"first score", nil, 50, 5, true},
		{"below threshold", ptrFloat(60), 62.5, 5, false},
		{"exactly threshold", ptrFloat(60.1), 65.1, 5, true},
		{"drop above threshold", ptrFloat(70), 60, 5, true},
		{"zero threshold unchanged", ptrFloat(55.5), 55.5, 0, false},
		{"zero threshold changed", ptrFloat(55.5), 55.6, 0, true},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			evt := interfaces.ScoreChangedEvent{FactoryID: 1, PreviousTotal: tc.prev, TotalScore: tc.total}
			assert.Equal(t, tc.want, shouldNotify(evt, tc.minDelta))
		})
	}
}

func TestWebhookNotifier(t *testing.T) {
	var hits atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	logger, _ := logtest.NewNullLogger()
	n := NewWebhookNotifier(notify.NewClient(notify.Config{WebhookURL: srv.URL}, logger), 2, logger)
	ctx := context.Background()

	require.NoError(t, n.NotifyScoreChanged(ctx, interfaces.ScoreChangedEvent{FactoryID: 1, TotalScore: 50}))
	require.NoError(t, n.NotifyScoreChanged(ctx, interfaces.ScoreChangedEvent{FactoryID: 1, PreviousTotal: ptrFloat(50), TotalScore: 51}))
	require.NoError(t, n.NotifyScoreChanged(ctx, interfaces.ScoreChangedEvent{FactoryID: 1, PreviousTotal: ptrFloat(50), TotalScore: 54}))
	assert.Equal(t, int32(2), hits.Load())

	assert.NoError(t, NoopNotifier{}.NotifyScoreChanged(ctx, interfaces.ScoreChangedEvent{}))
}
