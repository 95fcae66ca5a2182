package duckling

import (
	"context"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestClient(t *testing.T, handler http.HandlerFunc) *Client {
	t.Helper()
	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)

	client, err := NewClient(Config{Endpoint: server.URL}, slog.Default())
	require.NoError(t, err)

	return client
}

func TestClient_ParseMixedEntities(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		require.NoError(t, r.ParseForm())
		assert.Equal(t, "en_US", r.PostFormValue("locale"))
		assert.Equal(t, "yesterday I spent 500 euro and 42", r.PostFormValue("text"))

		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`[
			{"dim": "time", "latent": false, "value": {"type": "value", "value": "2026-08-28T00:00:00.000+02:00", "grain": "day"}},
			{"dim": "amount-of-money", "latent": false, "value": {"value": 500, "unit": "EUR"}},
			{"dim": "number", "latent": false, "value": {"value": 42}}
		]`))
	})

	entities, err := client.Parse(context.Background(), "yesterday I spent 500 euro and 42")
	require.NoError(t, err)
	require.Len(t, entities, 3)

	assert.Equal(t, DimTime, entities[0].Dim)
	assert.False(t, entities[0].Latent)
	assert.Equal(t, "day", entities[0].Value.Grain)
	assert.Equal(t, 28, entities[0].Value.Instant.Day())

	assert.Equal(t, DimMoney, entities[1].Dim)
	assert.Equal(t, "500", entities[1].Value.Number.String())
	assert.Equal(t, "EUR", entities[1].Value.Unit)

	assert.Equal(t, DimNum, entities[2].Dim)
	assert.Equal(t, "42", entities[2].Value.Number.String())
	assert.Empty(t, entities[2].Value.Unit)
}

func TestClient_ParseTimeInterval(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte(`[
			{"dim": "time", "latent": false, "value": {
				"type": "interval",
				"from": {"value": "2026-08-29T10:00:00.000+00:00", "grain": "hour"},
				"to": {"value": "2026-08-29T14:00:00.000+00:00", "grain": "hour"}
			}}
		]`))
	})

	entities, err := client.Parse(context.Background(), "this morning")
	require.NoError(t, err)
	require.Len(t, entities, 1)

	value := entities[0].Value
	assert.True(t, value.Interval())
	assert.Equal(t, "hour", value.Grain)
	assert.Equal(t, 4*time.Hour, value.To.Sub(value.From))
}

func TestClient_ParseOpenIntervalKeepsKnownEndpoint(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte(`[
			{"dim": "time", "latent": false, "value": {
				"type": "interval",
				"from": {"value": "2026-08-28T00:00:00.000+00:00", "grain": "day"}
			}}
		]`))
	})

	entities, err := client.Parse(context.Background(), "since yesterday")
	require.NoError(t, err)
	require.Len(t, entities, 1)

	value := entities[0].Value
	assert.False(t, value.Interval())
	assert.Equal(t, "day", value.Grain)
	assert.Equal(t, 28, value.Instant.Day())
}

func TestClient_ParseKeepsLatentFlag(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte(`[
			{"dim": "time", "latent": true, "value": {"type": "value", "value": "2026-05-01T00:00:00.000+00:00", "grain": "day"}}
		]`))
	})

	entities, err := client.Parse(context.Background(), "500")
	require.NoError(t, err)
	require.Len(t, entities, 1)
	assert.True(t, entities[0].Latent)
}

func TestClient_ParseSkipsUnknownDimensions(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte(`[
			{"dim": "phone-number", "latent": false, "value": {"value": "555-1234"}},
			{"dim": "number", "latent": false, "value": {"value": 7}}
		]`))
	})

	entities, err := client.Parse(context.Background(), "call 555-1234 about the 7")
	require.NoError(t, err)
	require.Len(t, entities, 1)
	assert.Equal(t, DimNum, entities[0].Dim)
}

func TestClient_ParseRetriesServerErrors(t *testing.T) {
	var calls int
	client := newTestClient(t, func(w http.ResponseWriter, _ *http.Request) {
		calls++
		if calls < 2 {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		_, _ = w.Write([]byte(`[]`))
	})
	client.retryOpts.InitialDelay = time.Millisecond

	entities, err := client.Parse(context.Background(), "text")
	require.NoError(t, err)
	assert.Empty(t, entities)
	assert.Equal(t, 2, calls)
}

func TestParseInstant(t *testing.T) {
	tests := []struct {
		name    string
		input   string
		wantDay int
		wantErr bool
	}{
		{
			name:    "millisecond precision with offset",
			input:   "2026-08-29T12:30:00.000-05:00",
			wantDay: 29,
		},
		{
			name:    "plain RFC3339",
			input:   "2026-08-29T12:30:00Z",
			wantDay: 29,
		},
		{
			name:    "garbage",
			input:   "tomorrow-ish",
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := parseInstant(tt.input)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.wantDay, got.Day())
		})
	}
}

func TestNewClient_RequiresEndpoint(t *testing.T) {
	_, err := NewClient(Config{}, slog.Default())
	assert.Error(t, err)
}
