package status

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/rs/zerolog"

	"github.com/norasector/rtlbridge/pkg/bridge"
)

type fixedProvider bridge.Status

func (p fixedProvider) Status() bridge.Status {
	return bridge.Status(p)
}

func TestHandler(t *testing.T) {
	provider := fixedProvider{
		Device:   "sim",
		Listen:   "127.0.0.1:1234",
		Sessions: 3,
		Client: &bridge.ClientStatus{
			Remote:        "127.0.0.1:50000",
			State:         "streaming",
			SampleRateSet: true,
			Streaming:     true,
			StreamStarts:  1,
			SampleRate:    2048000,
		},
	}
	srv := NewServer(0, provider, zerolog.Nop())

	tests := []struct {
		name       string
		path       string
		wantStatus int
		check      func(t *testing.T, body []byte)
	}{
		{
			name:       "status",
			path:       "/status",
			wantStatus: http.StatusOK,
			check: func(t *testing.T, body []byte) {
				var got bridge.Status
				if err := json.Unmarshal(body, &got); err != nil {
					t.Fatal(err)
				}
				if got.Device != "sim" || got.Sessions != 3 || got.Client == nil || got.Client.SampleRate != 2048000 {
					t.Errorf("status = %+v", got)
				}
				if got.LastClient != nil {
					t.Errorf("last client = %+v, want nil", got.LastClient)
				}
			},
		},
		{
			name:       "healthz",
			path:       "/healthz",
			wantStatus: http.StatusOK,
		},
		{
			name:       "unknown",
			path:       "/view/all",
			wantStatus: http.StatusNotFound,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := httptest.NewRecorder()
			srv.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, tt.path, nil))

			if rec.Code != tt.wantStatus {
				t.Fatalf("GET %s = %d, want %d", tt.path, rec.Code, tt.wantStatus)
			}
			if tt.check != nil {
				tt.check(t, rec.Body.Bytes())
			}
		})
	}
}
