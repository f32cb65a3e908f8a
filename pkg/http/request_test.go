package http

import (
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	apperrors "labbroker/pkg/errors"
	"labbroker/pkg/model"
)

func TestRequester(t *testing.T) {
	tests := []struct {
		name     string
		headers  map[string]string
		want     model.Requester
		wantCode string
	}{
		{
			name:    "full identity",
			headers: map[string]string{HeaderUser: " alice ", HeaderUserEmail: "p.alice@uni.edu", HeaderUserRole: "Faculty"},
			want:    model.Requester{Username: "alice", Email: "p.alice@uni.edu", Role: model.RoleFaculty},
		},
		{
			name:    "role defaults to student",
			headers: map[string]string{HeaderUser: "sam"},
			want:    model.Requester{Username: "sam", Role: model.RoleStudent},
		},
		{
			name:     "missing user",
			headers:  map[string]string{HeaderUserRole: "faculty"},
			wantCode: apperrors.CodeUnauthorized,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := httptest.NewRequest(http.MethodGet, "/", nil)
			for k, v := range tt.headers {
				r.Header.Set(k, v)
			}
			got, err := Requester(r)
			if tt.wantCode != "" {
				var appErr *apperrors.AppError
				require.True(t, errors.As(err, &appErr))
				assert.Equal(t, tt.wantCode, appErr.Code)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestDecodeJSON(t *testing.T) {
	type body struct {
		Name string `json:"name"`
	}

	tests := []struct {
		name    string
		input   string
		want    string
		wantErr bool
	}{
		{name: "valid", input: `{"name":"AI Lab"}`, want: "AI Lab"},
		{name: "unknown field", input: `{"name":"AI Lab","x":1}`, wantErr: true},
		{name: "trailing data", input: `{"name":"a"}{"name":"b"}`, wantErr: true},
		{name: "malformed", input: `{"name":`, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := httptest.NewRequest(http.MethodPost, "/", strings.NewReader(tt.input))
			var b body
			err := DecodeJSON(r, &b)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, b.Name)
		})
	}
}

func TestTimeRange(t *testing.T) {
	r := httptest.NewRequest(http.MethodGet, "/?from=2025-03-10T00:00:00Z&to=2025-03-11T00:00:00Z", nil)
	from, to, err := TimeRange(r)
	require.NoError(t, err)
	assert.Equal(t, time.Date(2025, 3, 10, 0, 0, 0, 0, time.UTC), from.UTC())
	assert.Equal(t, 24*time.Hour, to.Sub(from))

	from, to, err = TimeRange(httptest.NewRequest(http.MethodGet, "/", nil))
	require.NoError(t, err)
	assert.True(t, from.IsZero())
	assert.True(t, to.IsZero())

	_, _, err = TimeRange(httptest.NewRequest(http.MethodGet, "/?from=yesterday", nil))
	assert.Error(t, err)
}
