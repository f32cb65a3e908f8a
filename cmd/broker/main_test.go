package main

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"
	"time"

	"labbroker/pkg/client"
	"labbroker/pkg/config"
	apperrors "labbroker/pkg/errors"
	"labbroker/pkg/logger"
	"labbroker/pkg/model"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testCatalog = `
resources:
  - name: AI Lab
    capacity: 30
    equipment: [gpu, projector]
    operating_start: "08:00"
    operating_end: "22:00"
  - name: Chem Lab
    capacity: 20
    equipment: [fume hood]
`

func testConfig(t *testing.T) *config.Config {
	t.Helper()
	path := filepath.Join(t.TempDir(), "catalog.yaml")
	require.NoError(t, os.WriteFile(path, []byte(testCatalog), 0o600))

	return &config.Config{
		Port:                   "8080",
		StoreBackend:           config.BackendMemory,
		ReputationBackend:      config.BackendMemory,
		LockBackend:            config.BackendLocal,
		NegotiationThreshold:   8,
		DefaultReputation:      10,
		DefaultPriority:        3,
		PriorityTiers:          map[string]int{"P": 1, "B": 2},
		DispatchMaxConcurrency: 4,
		DispatchTimeout:        time.Second,
		RateLimitRequests:      1000,
		RateLimitWindow:        time.Minute,
		IdempotencyBackend:     config.BackendMemory,
		IdempotencyTTL:         time.Hour,
		RequestTimeout:         5 * time.Second,
		MaxRequestSize:         1 << 20,
		ReadTimeout:            5 * time.Second,
		WriteTimeout:           5 * time.Second,
		IdleTimeout:            5 * time.Second,
		ShutdownTimeout:        time.Second,
		CatalogFile:            path,
		Log:                    logger.Discard(),
		Client:                 client.NewClient(),
	}
}

func startBroker(t *testing.T) string {
	t.Helper()
	application := build(testConfig(t))
	srv := httptest.NewServer(application.Handler())
	t.Cleanup(func() {
		srv.Close()
		application.Shutdown(context.Background())
	})
	return srv.URL
}

func slot(start, end string) model.StructuredRequest {
	return model.StructuredRequest{Date: "2026-03-02", StartTime: start, EndTime: end, StudentCount: 10}
}

func statusOf(results []model.AvailabilityResult, lab string) model.AvailabilityStatus {
	for _, r := range results {
		if r.ResourceName == lab {
			return r.Status
		}
	}
	return ""
}

func apiCode(err error) string {
	var apiErr *client.APIError
	if errors.As(err, &apiErr) {
		return apiErr.Code
	}
	return ""
}

func TestBroker_EndToEnd(t *testing.T) {
	url := startBroker(t)
	ctx := context.Background()

	alice := client.NewBrokerClient(url, client.Identity{Username: "alice", Email: "p.alice@uni.edu", Role: "faculty"})
	bob := client.NewBrokerClient(url, client.Identity{Username: "bob", Email: "bob@uni.edu", Role: "staff"})
	carol := client.NewBrokerClient(url, client.Identity{Username: "carol", Role: "student"})

	require.NoError(t, alice.HTTP().WaitForHealthy(ctx, time.Second))

	resources, err := alice.Resources(ctx)
	require.NoError(t, err)
	require.Len(t, resources, 2, "catalog is seeded into the memory store")

	req := model.BookingRequest{StructuredRequest: slot("10:00", "11:00"), FlexibilityMinutes: 15}
	req.LabName = "AI Lab"
	booking, err := alice.Book(ctx, req, "alice-ai-1")
	require.NoError(t, err)
	assert.Equal(t, "alice", booking.Owner)
	assert.Equal(t, 1, booking.Priority)

	replayed, err := alice.Book(ctx, req, "alice-ai-1")
	require.NoError(t, err)
	assert.Equal(t, booking.ID, replayed.ID, "retry with the same key replays the first booking")

	_, err = carol.Book(ctx, req, "")
	assert.Equal(t, apperrors.CodePermissionDenied, apiCode(err))

	results, err := bob.Availability(ctx, slot("10:00", "11:00"))
	require.NoError(t, err)
	assert.Equal(t, model.StatusConflictRigid, statusOf(results, "AI Lab"))
	assert.Equal(t, model.StatusAvailable, statusOf(results, "Chem Lab"))

	results, err = bob.Query(ctx, `book {"date":"2026-03-02","start_time":"10:00","end_time":"11:00","student_count":25}`)
	require.NoError(t, err)
	assert.Equal(t, model.StatusConflictCapacity, statusOf(results, "Chem Lab"))

	shift := model.ShiftRequest{StructuredRequest: slot("09:15", "10:15"), Justification: "thesis defense rehearsal"}
	shift.LabName = "AI Lab"
	outcome, err := bob.Negotiate(ctx, shift)
	require.NoError(t, err)
	require.NotNil(t, outcome.Decision)
	assert.Equal(t, model.DecisionAccept, outcome.Decision.Kind)
	require.NotNil(t, outcome.Shifted)
	assert.Equal(t, time.Date(2026, 3, 2, 10, 15, 0, 0, time.UTC), outcome.Shifted.Start.UTC())
	assert.Equal(t, model.StatusAvailable, statusOf(outcome.Results, "AI Lab"))

	schedule, err := bob.Schedule(ctx, time.Date(2026, 3, 2, 0, 0, 0, 0, time.UTC), time.Date(2026, 3, 3, 0, 0, 0, 0, time.UTC))
	require.NoError(t, err)
	require.Len(t, schedule["AI Lab"], 1)
	assert.Equal(t, time.Date(2026, 3, 2, 11, 15, 0, 0, time.UTC), schedule["AI Lab"][0].End.UTC())
	assert.Empty(t, schedule["Chem Lab"])

	_, err = bob.UpdateStudentCount(ctx, booking.ID, 12)
	assert.Equal(t, apperrors.CodePermissionDenied, apiCode(err))

	updated, err := alice.UpdateStudentCount(ctx, booking.ID, 12)
	require.NoError(t, err)
	assert.Equal(t, 12, updated.StudentCount)

	require.NoError(t, alice.Cancel(ctx, booking.ID))
	results, err = bob.Availability(ctx, slot("10:00", "11:00"))
	require.NoError(t, err)
	assert.Equal(t, model.StatusAvailable, statusOf(results, "AI Lab"))
}

func TestBroker_ResourceAdministration(t *testing.T) {
	url := startBroker(t)
	ctx := context.Background()

	admin := client.NewBrokerClient(url, client.Identity{Username: "root", Role: "super_admin"})
	staff := client.NewBrokerClient(url, client.Identity{Username: "bob", Role: "staff"})

	_, err := staff.CreateResource(ctx, model.Resource{Name: "Robotics Lab", Capacity: 12})
	assert.Equal(t, apperrors.CodePermissionDenied, apiCode(err))

	created, err := admin.CreateResource(ctx, model.Resource{Name: "Robotics Lab", Capacity: 12})
	require.NoError(t, err)
	require.NotEmpty(t, created.ID)

	_, err = admin.CreateResource(ctx, model.Resource{Name: "robotics lab", Capacity: 5})
	assert.Equal(t, apperrors.CodeConflict, apiCode(err))

	require.NoError(t, admin.DeleteResource(ctx, created.ID))
	resources, err := staff.Resources(ctx)
	require.NoError(t, err)
	assert.Len(t, resources, 2)
}

func TestBroker_RequiresIdentity(t *testing.T) {
	url := startBroker(t)
	anonymous := client.NewBrokerClient(url, client.Identity{})

	_, err := anonymous.Availability(context.Background(), slot("10:00", "11:00"))
	var apiErr *client.APIError
	require.ErrorAs(t, err, &apiErr)
	assert.Equal(t, http.StatusUnauthorized, apiErr.StatusCode)
}
