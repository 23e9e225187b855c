package nats

import (
	"context"
	"encoding/json"
	"os"
	"testing"
	"time"

	"github.com/nats-io/nats.go"
	"github.com/nats-io/nats.go/jetstream"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ahrdadan/ytflow/internal/runner"
)

func TestSubject(t *testing.T) {
	assert.Equal(t, "ytflow.runs.run_1a2b3c4d", Subject("run_1a2b3c4d"))
}

func TestStreamConfig(t *testing.T) {
	cfg := streamConfig(time.Hour)
	assert.Equal(t, StreamName, cfg.Name)
	assert.Equal(t, []string{"ytflow.runs.>"}, cfg.Subjects)
	assert.Equal(t, jetstream.LimitsPolicy, cfg.Retention)
	assert.Equal(t, time.Hour, cfg.MaxAge)
}

func TestConnectUnreachable(t *testing.T) {
	_, err := Connect(context.Background(), PublisherConfig{URL: "nats://127.0.0.1:1"})
	assert.Error(t, err)
}

func TestPublishAfterClose(t *testing.T) {
	p := &Publisher{}
	assert.NoError(t, p.Close())
	assert.Error(t, p.Publish(context.Background(), runner.Event{RunID: "run_1"}))
}

// natsURL returns a live server from YTFLOW_TEST_NATS_URL or skips the test.
func natsURL(t *testing.T) string {
	url := os.Getenv("YTFLOW_TEST_NATS_URL")
	if url == "" || testing.Short() {
		t.Skip("YTFLOW_TEST_NATS_URL not set")
	}
	return url
}

func TestPublishCore(t *testing.T) {
	url := natsURL(t)

	sub, err := nats.Connect(url)
	require.NoError(t, err)
	defer sub.Close()

	msgs := make(chan *nats.Msg, 4)
	s, err := sub.ChanSubscribe(SubjectPrefix+".>", msgs)
	require.NoError(t, err)
	defer s.Unsubscribe()
	require.NoError(t, sub.Flush())

	p, err := Connect(context.Background(), PublisherConfig{URL: url})
	require.NoError(t, err)
	defer p.Close()

	require.NoError(t, p.Publish(context.Background(), runner.Event{RunID: "run_core", Status: runner.StatusPassed, Done: true}))

	select {
	case msg := <-msgs:
		assert.Equal(t, "ytflow.runs.run_core", msg.Subject)
		var event runner.Event
		require.NoError(t, json.Unmarshal(msg.Data, &event))
		assert.True(t, event.Done)
	case <-time.After(5 * time.Second):
		t.Fatal("event not received")
	}
}

func TestPublishJetStream(t *testing.T) {
	url := natsURL(t)
	ctx := context.Background()

	p, err := Connect(ctx, PublisherConfig{URL: url, JetStream: true, MaxAge: time.Minute})
	require.NoError(t, err)
	defer p.Close()

	require.NoError(t, p.Publish(ctx, runner.Event{RunID: "run_js", Status: runner.StatusRunning}))

	info, err := p.stream.Info(ctx)
	require.NoError(t, err)
	assert.NotZero(t, info.State.Msgs)
}
