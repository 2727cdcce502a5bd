package nats

import (
	"context"
	"encoding/json"
	"errors"
	"testing"

	"github.com/nats-io/nats.go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dreschagin/dbops-agent/internal/application/dto"
	"github.com/dreschagin/dbops-agent/internal/application/port"
	"github.com/dreschagin/dbops-agent/pkg/logger"
)

type published struct {
	subject string
	data    []byte
}

type fakeJetStream struct {
	messages []published
	err      error
}

func (f *fakeJetStream) PublishAsync(subj string, data []byte, _ ...nats.PubOpt) (nats.PubAckFuture, error) {
	if f.err != nil {
		return nil, f.err
	}
	f.messages = append(f.messages, published{subject: subj, data: data})
	return nil, nil
}

func newTestPublisher(js asyncPublisher, prefix string) *NATSPublisher {
	return &NATSPublisher{js: js, prefix: normalizePrefix(prefix), logger: logger.New("error")}
}

func TestPublishEventPrefixesSubject(t *testing.T) {
	js := &fakeJetStream{}
	p := newTestPublisher(js, "prod.db01.")

	event := &dto.TaskEventDTO{TaskID: "daily_backup", Outcome: "success"}
	require.NoError(t, p.PublishEvent(context.Background(), port.SubjectTaskCompleted, event))

	require.Len(t, js.messages, 1)
	assert.Equal(t, "prod.db01.task.completed", js.messages[0].subject)

	var decoded dto.TaskEventDTO
	require.NoError(t, json.Unmarshal(js.messages[0].data, &decoded))
	assert.Equal(t, "daily_backup", decoded.TaskID)
}

func TestPublishEventDefaultPrefix(t *testing.T) {
	js := &fakeJetStream{}
	p := newTestPublisher(js, "  ")

	require.NoError(t, p.PublishEvent(context.Background(), port.SubjectAlertCreated, map[string]string{"id": "a"}))
	assert.Equal(t, "dbops.alert.created", js.messages[0].subject)
}

func TestPublishEventErrors(t *testing.T) {
	p := newTestPublisher(&fakeJetStream{err: errors.New("no responders")}, "dbops")
	err := p.PublishEvent(context.Background(), port.SubjectTaskFailed, struct{}{})
	assert.ErrorContains(t, err, "no responders")

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	js := &fakeJetStream{}
	p = newTestPublisher(js, "dbops")
	assert.ErrorIs(t, p.PublishEvent(ctx, port.SubjectTaskFailed, struct{}{}), context.Canceled)
	assert.Empty(t, js.messages)

	assert.Error(t, p.PublishEvent(context.Background(), port.SubjectTaskFailed, make(chan int)))
}

func TestCloseWithoutConnection(t *testing.T) {
	p := newTestPublisher(&fakeJetStream{}, "dbops")
	assert.NoError(t, p.Close())
}
