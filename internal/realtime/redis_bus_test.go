package realtime

import (
	"encoding/json"
	"errors"
	"testing"

	"github.com/go-redis/redismock/v8"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func TestRedisBus_PublishWrapsEnvelope(t *testing.T) {
	client, mock := redismock.NewClientMock()
	defer client.Close()

	bus := NewRedisBus(client, zap.NewNop())

	payload := map[string]any{"id": float64(3)}
	expected, err := json.Marshal(Envelope{
		Channel: ProjectChannel(1),
		Event:   EventTaskUpdated,
		Payload: payload,
	})
	require.NoError(t, err)

	mock.ExpectPublish("devtrack:"+ProjectChannel(1), expected).SetVal(1)

	require.NoError(t, bus.Publish(ProjectChannel(1), EventTaskUpdated, payload))
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestRedisBus_PublishErrorPropagates(t *testing.T) {
	client, mock := redismock.NewClientMock()
	defer client.Close()

	bus := NewRedisBus(client, zap.NewNop())

	expected, err := json.Marshal(Envelope{
		Channel: UserChannel(9),
		Event:   EventNotification,
		Payload: "ping",
	})
	require.NoError(t, err)

	mock.ExpectPublish("devtrack:"+UserChannel(9), expected).SetErr(errors.New("redis down"))

	require.Error(t, bus.Publish(UserChannel(9), EventNotification, "ping"))
	require.NoError(t, mock.ExpectationsWereMet())
}
