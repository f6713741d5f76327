package server

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/believeinme/background-check-service/internal/backgroundcheck"
	"github.com/believeinme/background-check-service/internal/checkr"
	"github.com/believeinme/background-check-service/internal/config"
	"github.com/believeinme/background-check-service/internal/logger"
)

// MockWorkflow is a mock implementation of the Workflow interface
type MockWorkflow struct {
	mock.Mock
}

func (m *MockWorkflow) HandleOutboundMessage(ctx context.Context, body []byte) error {
	args := m.Called(ctx, body)
	return args.Error(0)
}

func (m *MockWorkflow) HandleProviderEvent(ctx context.Context, event checkr.Event) (backgroundcheck.Outcome, error) {
	args := m.Called(ctx, event)
	return args.Get(0).(backgroundcheck.Outcome), args.Error(1)
}

func newTestServer(t *testing.T, workflow Workflow) *Server {
	return NewServer(config.ServerConfig{Port: 8080}, workflow, logger.NewTestLogger(t))
}

func TestServer_Health(t *testing.T) {
	s := newTestServer(t, new(MockWorkflow))

	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	w := httptest.NewRecorder()
	s.Handler().ServeHTTP(w, req)

	assert.Equal(t, http.StatusOK, w.Code)
	var body map[string]string
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	assert.Equal(t, "healthy", body["status"])
	assert.NotEmpty(t, body["time"])
}

func TestServer_Metrics(t *testing.T) {
	s := newTestServer(t, new(MockWorkflow))

	w := httptest.NewRecorder()
	s.Handler().ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/metrics", nil))

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "go_goroutines")
}

func TestServer_OutboundMessage(t *testing.T) {
	tests := []struct {
		name       string
		err        error
		wantStatus int
		wantAck    bool
	}{
		{name: "handled", wantStatus: http.StatusOK, wantAck: true},
		{name: "failure", err: errors.New("crm unavailable"), wantStatus: http.StatusInternalServerError},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			workflow := new(MockWorkflow)
			workflow.On("HandleOutboundMessage", mock.Anything, []byte("<soapenv:Envelope/>")).Return(tt.err)
			s := newTestServer(t, workflow)

			req := httptest.NewRequest(http.MethodPost, "/background-check", strings.NewReader("<soapenv:Envelope/>"))
			req.Header.Set("Content-Type", "text/xml; charset=utf-8")
			w := httptest.NewRecorder()
			s.Handler().ServeHTTP(w, req)

			assert.Equal(t, tt.wantStatus, w.Code)
			if tt.wantAck {
				assert.Equal(t, "application/xml", w.Header().Get("Content-Type"))
				assert.Equal(t, backgroundcheck.Acknowledgement, w.Body.String())
			} else {
				assert.NotContains(t, w.Body.String(), "<Ack>")
			}
			workflow.AssertExpectations(t)
		})
	}
}

func TestServer_OutboundMessage_OutlastsWriteTimeout(t *testing.T) {
	slow := func(mock.Arguments) { time.Sleep(300 * time.Millisecond) }
	workflow := new(MockWorkflow)
	workflow.On("HandleOutboundMessage", mock.Anything, mock.Anything).Run(slow).Return(nil)
	workflow.On("HandleProviderEvent", mock.Anything, mock.Anything).Run(slow).Return(backgroundcheck.OutcomeProcessed, nil)

	ts := httptest.NewUnstartedServer(newTestServer(t, workflow).Handler())
	ts.Config.WriteTimeout = 100 * time.Millisecond
	ts.Start()
	defer ts.Close()

	resp, err := ts.Client().Post(ts.URL+"/background-check", "text/xml; charset=utf-8", strings.NewReader("<soapenv:Envelope/>"))
	require.NoError(t, err)
	body, err := io.ReadAll(resp.Body)
	resp.Body.Close()
	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, backgroundcheck.Acknowledgement, string(body))

	// webhooks keep the server write timeout
	resp, err = ts.Client().Post(ts.URL+"/checkr", "application/json", strings.NewReader(`{"type":"report.completed"}`))
	if err == nil {
		_, err = io.ReadAll(resp.Body)
		resp.Body.Close()
	}
	assert.Error(t, err)
}

func TestServer_OutboundMessage_MethodNotAllowed(t *testing.T) {
	s := newTestServer(t, new(MockWorkflow))

	w := httptest.NewRecorder()
	s.Handler().ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/background-check", nil))

	assert.Equal(t, http.StatusMethodNotAllowed, w.Code)
}

func TestServer_ProviderWebhook(t *testing.T) {
	tests := []struct {
		name       string
		outcome    backgroundcheck.Outcome
		err        error
		wantStatus int
	}{
		{name: "processed", outcome: backgroundcheck.OutcomeProcessed, wantStatus: http.StatusOK},
		{name: "ignored", outcome: backgroundcheck.OutcomeIgnored, wantStatus: http.StatusOK},
		{name: "duplicate", outcome: backgroundcheck.OutcomeDuplicate, wantStatus: http.StatusOK},
		{name: "failed", outcome: backgroundcheck.OutcomeFailed, wantStatus: http.StatusBadRequest},
		{name: "error", err: errors.New("store down"), wantStatus: http.StatusInternalServerError},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			workflow := new(MockWorkflow)
			workflow.On("HandleProviderEvent", mock.Anything, mock.MatchedBy(func(e checkr.Event) bool {
				return e.Type == checkr.EventReportCompleted && e.Data.Object.ID == "R1"
			})).Return(tt.outcome, tt.err)
			s := newTestServer(t, workflow)

			body := `{"id":"evt1","object":"event","type":"report.completed","data":{"object":{"id":"R1","object":"report","status":"clear"}}}`
			req := httptest.NewRequest(http.MethodPost, "/checkr", strings.NewReader(body))
			req.Header.Set("Content-Type", "application/json")
			w := httptest.NewRecorder()
			s.Handler().ServeHTTP(w, req)

			assert.Equal(t, tt.wantStatus, w.Code)
			workflow.AssertExpectations(t)
		})
	}
}

func TestServer_ProviderWebhook_InvalidBody(t *testing.T) {
	workflow := new(MockWorkflow)
	s := newTestServer(t, workflow)

	w := httptest.NewRecorder()
	s.Handler().ServeHTTP(w, httptest.NewRequest(http.MethodPost, "/checkr", strings.NewReader("not json")))

	assert.Equal(t, http.StatusBadRequest, w.Code)
	workflow.AssertNotCalled(t, "HandleProviderEvent", mock.Anything, mock.Anything)
}

func TestServer_RecoversPanics(t *testing.T) {
	workflow := new(MockWorkflow)
	workflow.On("HandleProviderEvent", mock.Anything, mock.Anything).Run(func(mock.Arguments) {
		panic("boom")
	}).Return(backgroundcheck.OutcomeProcessed, nil)
	s := newTestServer(t, workflow)

	w := httptest.NewRecorder()
	s.Handler().ServeHTTP(w, httptest.NewRequest(http.MethodPost, "/checkr", strings.NewReader(`{"type":"report.completed"}`)))

	assert.Equal(t, http.StatusInternalServerError, w.Code)
}
