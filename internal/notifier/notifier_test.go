package notifier

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/italolelis/batchdl/internal/transfer"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDiscordNotifier(t *testing.T) {
	var got map[string]string

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "application/json", r.Header.Get("Content-Type"))
		require.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		w.WriteHeader(http.StatusNoContent)
	}))
	defer server.Close()

	n := &DiscordNotifier{WebhookURL: server.URL, Client: server.Client()}
	require.NoError(t, n.Notify(context.Background(), "hello"))
	assert.Equal(t, "hello", got["content"])
}

func TestDiscordNotifierErrors(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTooManyRequests)
	}))
	defer server.Close()

	err := (&DiscordNotifier{WebhookURL: server.URL}).Notify(context.Background(), "x")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "429")

	err = (&DiscordNotifier{}).Notify(context.Background(), "x")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "webhook URL is not set")
}

func TestBatchResultMessage(t *testing.T) {
	terr := &transfer.TransferError{Source: "http://x/a", StatusCode: 404, Reason: "unexpected HTTP status 404"}

	tests := []struct {
		name   string
		result BatchResult
		want   string
	}{
		{
			name:   "success",
			result: BatchResult{BatchID: "b1", Files: 3, Bytes: 2_000_000, Duration: 1500 * time.Millisecond},
			want:   "✅ Batch b1 finished: 3 files, 2.0 MB in 2s",
		},
		{
			name:   "transfer failure",
			result: BatchResult{BatchID: "b2", Err: &transfer.BatchError{Total: 4, Completed: 1, Err: terr}},
			want:   fmt.Sprintf("❌ Batch b2 failed after 1/4 files: %v", terr),
		},
		{
			name:   "interrupted",
			result: BatchResult{BatchID: "b3", Err: fmt.Errorf("batch interrupted: %w", context.Canceled)},
			want:   "⚠️ Batch b3 stopped: batch interrupted: context canceled",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, tt.result.Message())
		})
	}
}

type recordingNotifier struct {
	messages []string
	err      error
}

func (r *recordingNotifier) Notify(_ context.Context, content string) error {
	r.messages = append(r.messages, content)

	return r.err
}

func TestNotifyBatch(t *testing.T) {
	NotifyBatch(context.Background(), nil, BatchResult{})

	n := &recordingNotifier{err: errors.New("offline")}
	NotifyBatch(context.Background(), n, BatchResult{BatchID: "b", Files: 1})

	require.Len(t, n.messages, 1)
	assert.Contains(t, n.messages[0], "Batch b finished")
}
