package webhook

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bft-labs/asdustat/internal/report"
	"github.com/bft-labs/asdustat/pkg/log"
)

func sampleReport() *report.Report {
	return &report.Report{
		SessionID:  "s-1",
		Timestamp:  time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC),
		IntervalMS: 1000,
		Categories: []report.CategoryLine{
			{Type: 11, Label: "M_ME_NB_1(11)", Occurrences: 4, ActivePoints: 2},
		},
		TotalActivePoints: 2,
		TotalOccurrences:  4,
	}
}

func TestSink_PostsEncodedReport(t *testing.T) {
	var (
		gotAuth    string
		gotType    string
		gotSession string
		gotBody    []byte
	)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		gotAuth = r.Header.Get("Authorization")
		gotType = r.Header.Get("Content-Type")
		gotSession = r.Header.Get("X-Asdustat-Session-Id")
		gotBody, _ = io.ReadAll(r.Body)
		w.WriteHeader(http.StatusAccepted)
	}))
	defer srv.Close()

	s, err := New(Config{URL: srv.URL, AuthKey: "secret", Format: report.FormatMsgpack}, srv.Client(), log.NewNoopLogger())
	require.NoError(t, err)
	assert.Equal(t, "webhook", s.Name())

	require.NoError(t, s.Publish(context.Background(), sampleReport()))
	assert.Equal(t, "Bearer secret", gotAuth)
	assert.Equal(t, "application/msgpack", gotType)
	assert.Equal(t, "s-1", gotSession)

	decoded, err := report.Decode(report.FormatMsgpack, gotBody)
	require.NoError(t, err)
	assert.Equal(t, uint64(4), decoded.TotalOccurrences)
	assert.Equal(t, "M_ME_NB_1(11)", decoded.Categories[0].Label)
	assert.NoError(t, s.Close())
}

func TestSink_Non2xxIsError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "overloaded", http.StatusServiceUnavailable)
	}))
	defer srv.Close()

	s, err := New(Config{URL: srv.URL}, srv.Client(), log.NewNoopLogger())
	require.NoError(t, err)

	err = s.Publish(context.Background(), sampleReport())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "503")
	assert.Contains(t, err.Error(), "overloaded")
}

func TestSink_CanceledContext(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	defer srv.Close()

	s, err := New(Config{URL: srv.URL}, nil, log.NewNoopLogger())
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	assert.Error(t, s.Publish(ctx, sampleReport()))
}

func TestNew_RequiresURL(t *testing.T) {
	_, err := New(Config{}, nil, log.NewNoopLogger())
	assert.Error(t, err)
}
