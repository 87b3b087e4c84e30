package homeassistant

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const statesJSON = `[
  {"entity_id": "sensor.temp", "state": "20.0", "attributes": {"friendly_name": "Temperature", "unit_of_measurement": "°C"},
   "last_changed": "2023-12-27T15:28:26.287133+00:00", "last_updated": "2023-12-27T15:28:26.287133+00:00",
   "context": {"id": "01HJ", "parent_id": null, "user_id": null}},
  {"entity_id": "light.kitchen", "state": "on", "attributes": {"friendly_name": "Kitchen"}}
]`

func testLogger() *logrus.Logger {
	logger := logrus.New()
	logger.SetLevel(logrus.DebugLevel)
	return logger
}

func newTestClient(t *testing.T, handler http.Handler, mutate ...func(*ClientConfig)) *Client {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)

	cfg := ClientConfig{
		BaseURL:        srv.URL,
		Token:          "test-token",
		RequestTimeout: 2 * time.Second,
		RetryDelay:     10 * time.Millisecond,
		MaxRetryDelay:  20 * time.Millisecond,
	}
	for _, m := range mutate {
		m(&cfg)
	}

	client, err := NewClient(cfg, testLogger())
	require.NoError(t, err)
	return client
}

func TestValidateBaseURL(t *testing.T) {
	tests := []struct {
		name    string
		raw     string
		want    string
		wantErr bool
	}{
		{name: "http with port", raw: "http://homeassistant.local:8123", want: "http://homeassistant.local:8123"},
		{name: "trailing slash trimmed", raw: "https://10.0.0.2:8123/", want: "https://10.0.0.2:8123"},
		{name: "empty", raw: "", wantErr: true},
		{name: "missing scheme", raw: "homeassistant.local:8123", wantErr: true},
		{name: "missing port", raw: "http://homeassistant.local", wantErr: true},
		{name: "ftp scheme", raw: "ftp://homeassistant.local:21", wantErr: true},
		{name: "query string", raw: "http://ha:8123/?x=1", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ValidateBaseURL(tt.raw)
			if tt.wantErr {
				require.Error(t, err)
				assert.True(t, IsInvalidAddress(err))
				assert.False(t, IsConnectionError(err))
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestNewClientRequiresToken(t *testing.T) {
	_, err := NewClient(ClientConfig{BaseURL: "http://localhost:8123"}, testLogger())
	assert.ErrorIs(t, err, ErrMissingToken)

	_, err = NewClient(ClientConfig{BaseURL: "localhost", Token: "x"}, testLogger())
	assert.ErrorIs(t, err, ErrInvalidURL)
}

func TestGetStatesSendsBearerToken(t *testing.T) {
	var gotAuth, gotPath string
	client := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotAuth = r.Header.Get("Authorization")
		gotPath = r.URL.Path
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(statesJSON))
	}))

	states, err := client.GetStates(context.Background())
	require.NoError(t, err)

	assert.Equal(t, "Bearer test-token", gotAuth)
	assert.Equal(t, "/api/states", gotPath)
	require.Len(t, states, 2)
	assert.Equal(t, "sensor.temp", states[0].EntityID)
	assert.Equal(t, "20.0", states[0].State)
	assert.Equal(t, "Temperature", states[0].FriendlyName())
	assert.Equal(t, "°C", states[0].Unit())
	assert.Equal(t, "sensor", states[0].Domain())
	assert.Equal(t, "Kitchen", states[1].FriendlyName())
}

func TestGetState(t *testing.T) {
	client := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/states/sensor.temp", r.URL.Path)
		_, _ = w.Write([]byte(`{"entity_id": "sensor.temp", "state": "21.5", "attributes": {}}`))
	}))

	state, err := client.GetState(context.Background(), "sensor.temp")
	require.NoError(t, err)
	assert.Equal(t, "21.5", state.State)
	assert.Equal(t, "sensor.temp", state.FriendlyName())
}

func TestGetStateStatusCodes(t *testing.T) {
	tests := []struct {
		name   string
		status int
		is     error
	}{
		{name: "unauthorized", status: http.StatusUnauthorized, is: ErrUnauthorized},
		{name: "not found", status: http.StatusNotFound, is: ErrEntityNotFound},
		{name: "server error", status: http.StatusInternalServerError},
		{name: "bad request", status: http.StatusBadRequest},
		{name: "redirect is not success", status: http.StatusNotModified},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			client := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(tt.status)
			}))

			_, err := client.GetState(context.Background(), "sensor.temp")
			require.Error(t, err)
			assert.Equal(t, tt.status, StatusCode(err))
			if tt.is != nil {
				assert.ErrorIs(t, err, tt.is)
			}
		})
	}
}

func TestDoRequestRetriesServerErrors(t *testing.T) {
	var calls atomic.Int32
	client := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if calls.Add(1) < 3 {
			w.WriteHeader(http.StatusBadGateway)
			return
		}
		_, _ = w.Write([]byte(`[]`))
	}), func(cfg *ClientConfig) {
		cfg.MaxRetries = 2
	})

	states, err := client.GetStates(context.Background())
	require.NoError(t, err)
	assert.Empty(t, states)
	assert.Equal(t, int32(3), calls.Load())
}

func TestDoRequestWithoutRetriesMakesOneCall(t *testing.T) {
	var calls atomic.Int32
	client := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusInternalServerError)
	}))

	_, err := client.GetStates(context.Background())
	require.Error(t, err)
	assert.Equal(t, http.StatusInternalServerError, StatusCode(err))
	assert.Equal(t, int32(1), calls.Load())
}

func TestDoRequestTimeout(t *testing.T) {
	release := make(chan struct{})
	client := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-release:
		case <-r.Context().Done():
		}
	}), func(cfg *ClientConfig) {
		cfg.RequestTimeout = 50 * time.Millisecond
	})
	defer close(release)

	started := time.Now()
	_, err := client.GetState(context.Background(), "sensor.slow")
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrTimeout)
	assert.True(t, IsConnectionError(err))
	assert.Equal(t, 0, StatusCode(err))
	assert.Less(t, time.Since(started), time.Second)
}

func TestConnectionRefused(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	addr := srv.URL
	srv.Close()

	client, err := NewClient(ClientConfig{BaseURL: addr, Token: "t", RequestTimeout: time.Second}, testLogger())
	require.NoError(t, err)

	_, err = client.GetStates(context.Background())
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrConnectionFailed)
	assert.True(t, IsConnectionError(err))
}

func TestInvalidJSON(t *testing.T) {
	client := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{not json`))
	}))

	_, err := client.GetStates(context.Background())
	assert.ErrorIs(t, err, ErrInvalidResponse)
}

type recordedRequest struct {
	path   string
	status int
}

type fakeRecorder struct {
	records []recordedRequest
}

func (f *fakeRecorder) LogRequest(method, endpoint string, statusCode int, latency time.Duration, fields logrus.Fields) {
	f.records = append(f.records, recordedRequest{path: endpoint, status: statusCode})
}

func TestRequestRecorder(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"version": "2024.1.0", "location_name": "Home"}`))
	}))
	defer srv.Close()

	rec := &fakeRecorder{}
	client, err := NewClient(ClientConfig{BaseURL: srv.URL, Token: "t"}, testLogger(), WithRequestRecorder(rec))
	require.NoError(t, err)

	require.NoError(t, client.HealthCheck(context.Background()))
	require.Len(t, rec.records, 1)
	assert.Equal(t, recordedRequest{path: "/api/config", status: http.StatusOK}, rec.records[0])
}

func TestErrorHelpers(t *testing.T) {
	assert.True(t, IsAuthError(ErrUnauthorized))
	assert.False(t, IsConnectionError(ErrUnauthorized))
	assert.True(t, IsConnectionError(ErrConnectionFailed))
	assert.False(t, IsConnectionError(errors.New("plain")))
	assert.Equal(t, 0, StatusCode(errors.New("plain")))

	detailed := withDetails(ErrTimeout, map[string]interface{}{"url": "x"})
	assert.ErrorIs(t, detailed, ErrTimeout)
	assert.NotErrorIs(t, detailed, ErrConnectionFailed)
	assert.Contains(t, detailed.Error(), "details")
}

func TestSplitEntityID(t *testing.T) {
	domain, object, ok := SplitEntityID("sensor.living_room.temp")
	assert.True(t, ok)
	assert.Equal(t, "sensor", domain)
	assert.Equal(t, "living_room.temp", object)

	_, _, ok = SplitEntityID("nodot")
	assert.False(t, ok)
}
