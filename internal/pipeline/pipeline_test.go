package pipeline_test

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"sync"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/couchcryptid/station-telemetry-ingest/internal/domain"
	"github.com/couchcryptid/station-telemetry-ingest/internal/observability"
	"github.com/couchcryptid/station-telemetry-ingest/internal/pipeline"
)

var t0 = time.Date(2024, 6, 7, 10, 0, 0, 0, time.UTC)

func newTestMetrics() *observability.Metrics {
	return observability.NewMetricsForTesting()
}

func ptr[T any](v T) *T { return &v }

// --- mock device directory ---

type mockDirectory struct {
	mu       sync.Mutex
	owner    *string
	err      error
	calls    int
	deviceID string
}

func (m *mockDirectory) GetDevice(_ context.Context, deviceID string) (domain.DeviceOwnership, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.calls++
	m.deviceID = deviceID
	if m.err != nil {
		return domain.DeviceOwnership{}, m.err
	}
	return domain.DeviceOwnership{DeviceID: deviceID, Owner: m.owner}, nil
}

// --- mock telemetry store ---

type mockStore struct {
	mu      sync.Mutex
	records []domain.TelemetryRecord
	err     error
}

func (m *mockStore) CreateTelemetry(_ context.Context, rec domain.TelemetryRecord) (domain.TelemetryRecord, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.err != nil {
		return domain.TelemetryRecord{}, m.err
	}
	m.records = append(m.records, rec)
	return rec, nil
}

// --- mock publisher ---

type mockPublisher struct {
	mu      sync.Mutex
	records []domain.TelemetryRecord
	runIDs  []string
	err     error
}

func (m *mockPublisher) Publish(_ context.Context, rec domain.TelemetryRecord, runID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.err != nil {
		return m.err
	}
	m.records = append(m.records, rec)
	m.runIDs = append(m.runIDs, runID)
	return nil
}

// --- mock fetcher for fault injection ---

type stubFetcher struct {
	observations []domain.Observation
	err          error
	panic        bool
}

func (s *stubFetcher) Fetch(context.Context, string) ([]domain.Observation, error) {
	if s.panic {
		panic("fetcher exploded")
	}
	return s.observations, s.err
}

// --- helpers ---

var testSettings = pipeline.Settings{
	DefaultStationID: "99280",
	Station:          domain.StationInfo{DeviceType: "SMHI_Station", Name: "Svenska Högarna"},
}

func fullSource() *mockSource {
	return &mockSource{results: map[string]sourceResult{
		"1":  sample(t0, "14.2"),
		"3":  sample(t0, "180"),
		"4":  sample(t0, "5.1"),
		"21": sample(t0, "7.3"),
		"6":  sample(t0, "20"),
	}}
}

func newPipeline(f pipeline.ObservationFetcher, dir *mockDirectory, store *mockStore, pub domain.TelemetryPublisher) *pipeline.Pipeline {
	return pipeline.New(f, dir, store, pub, testSettings, discardLogger(), newTestMetrics())
}

func bodyJSON(t *testing.T, out domain.Outcome) map[string]any {
	t.Helper()
	_, data := out.MarshalBody()
	var m map[string]any
	require.NoError(t, json.Unmarshal(data, &m))
	return m
}

// --- tests ---

func TestRun_RoundTrip(t *testing.T) {
	dir := &mockDirectory{owner: ptr("user-42")}
	store := &mockStore{}
	pub := &mockPublisher{}
	p := newPipeline(newFetcher(fullSource(), time.Second), dir, store, pub)

	out := p.Run(context.Background(), "99280")

	require.Equal(t, http.StatusOK, out.StatusCode)
	assert.Equal(t, domain.OutcomeSuccess, out.Label)

	want := domain.TelemetryRecord{
		DeviceID:      "99280",
		Owner:         "user-42",
		Timestamp:     ptr(t0),
		Temperature:   ptr(14.2),
		WindDirection: ptr(180.0),
		WindSpeed:     ptr(5.1),
		WindGustMax:   ptr(7.3),
		Visibility:    ptr(20.0),
	}
	require.Len(t, store.records, 1)
	if diff := cmp.Diff(want, store.records[0]); diff != "" {
		t.Errorf("committed record mismatch (-want +got):\n%s", diff)
	}
	if diff := cmp.Diff(want, out.Body); diff != "" {
		t.Errorf("outcome body mismatch (-want +got):\n%s", diff)
	}

	require.Len(t, pub.records, 1)
	assert.NotEmpty(t, pub.runIDs[0])
	assert.Equal(t, "99280", dir.deviceID)
}

func TestRun_DefaultStation(t *testing.T) {
	src := fullSource()
	dir := &mockDirectory{owner: ptr("user-42")}
	store := &mockStore{}
	p := newPipeline(newFetcher(src, time.Second), dir, store, nil)

	out := p.Run(context.Background(), "")

	require.Equal(t, http.StatusOK, out.StatusCode)
	assert.Equal(t, "99280", dir.deviceID)
	assert.Contains(t, src.calls, "1@99280")
	require.Len(t, store.records, 1)
	assert.Equal(t, "99280", store.records[0].DeviceID)
}

func TestRun_NoOwnerIsNotFound(t *testing.T) {
	for name, owner := range map[string]*string{"nil owner": nil, "empty owner": ptr("")} {
		t.Run(name, func(t *testing.T) {
			dir := &mockDirectory{owner: owner}
			store := &mockStore{}
			p := newPipeline(newFetcher(fullSource(), time.Second), dir, store, nil)

			out := p.Run(context.Background(), "99280")

			assert.Equal(t, http.StatusNotFound, out.StatusCode)
			assert.Equal(t, domain.OutcomeDeviceNotFound, out.Label)
			assert.Empty(t, store.records)
			assert.Equal(t, 1, dir.calls)

			body := bodyJSON(t, out)
			errs, ok := body["errors"].([]any)
			require.True(t, ok)
			require.Len(t, errs, 1)
			assert.Equal(t, "Device 99280 not found or has no owner", errs[0].(map[string]any)["message"])
		})
	}
}

func TestRun_PartialFetchStillCommits(t *testing.T) {
	src := &mockSource{results: map[string]sourceResult{
		"1":  {err: errors.New("connection refused")},
		"3":  sample(t0.Add(-10*time.Minute), "180"),
		"4":  sample(t0, "5.1"),
		"21": {ok: false},
		"6":  sample(t0, "garbage"),
	}}
	dir := &mockDirectory{owner: ptr("user-42")}
	store := &mockStore{}
	p := newPipeline(newFetcher(src, time.Second), dir, store, nil)

	out := p.Run(context.Background(), "99280")

	require.Equal(t, http.StatusOK, out.StatusCode)
	require.Len(t, store.records, 1)
	rec := store.records[0]
	assert.Nil(t, rec.Temperature)
	assert.Nil(t, rec.WindGustMax)
	assert.Nil(t, rec.Visibility)
	require.NotNil(t, rec.WindDirection)
	assert.InDelta(t, 180.0, *rec.WindDirection, 1e-9)
	require.NotNil(t, rec.Timestamp)
	assert.Equal(t, t0.Add(-10*time.Minute), *rec.Timestamp)
}

func TestRun_AllFetchesFailedStillCommits(t *testing.T) {
	src := &mockSource{results: map[string]sourceResult{}}
	dir := &mockDirectory{owner: ptr("user-42")}
	store := &mockStore{}
	p := newPipeline(newFetcher(src, time.Second), dir, store, nil)

	out := p.Run(context.Background(), "99280")

	require.Equal(t, http.StatusOK, out.StatusCode)
	require.Len(t, store.records, 1)
	assert.Nil(t, store.records[0].Timestamp)
	assert.Nil(t, store.records[0].Temperature)
}

func TestRun_TimestampFromFirstParameterInFixedOrder(t *testing.T) {
	tTemp := t0
	tWind := t0.Add(-30 * time.Minute)
	// Temperature finishes last but still supplies the timestamp.
	src := &mockSource{results: map[string]sourceResult{
		"1":  {sample: domain.Sample{Date: tTemp, Value: "14.2"}, ok: true, delay: 60 * time.Millisecond},
		"3":  sample(tWind, "180"),
		"4":  sample(tWind, "5.1"),
		"21": sample(tWind, "7.3"),
		"6":  sample(tWind, "20"),
	}}
	dir := &mockDirectory{owner: ptr("user-42")}
	store := &mockStore{}
	p := newPipeline(newFetcher(src, time.Second), dir, store, nil)

	out := p.Run(context.Background(), "99280")

	require.Equal(t, http.StatusOK, out.StatusCode)
	require.Len(t, store.records, 1)
	require.NotNil(t, store.records[0].Timestamp)
	assert.Equal(t, tTemp, *store.records[0].Timestamp)
}

func TestRun_DirectoryValidationError(t *testing.T) {
	raw := []json.RawMessage{
		json.RawMessage(`{"message":"Variable 'device_id' has an invalid value","errorType":"ValidationError"}`),
		json.RawMessage(`{"message":"second problem"}`),
	}
	dir := &mockDirectory{err: &domain.ValidationError{Op: "get_device", Errors: raw}}
	store := &mockStore{}
	p := newPipeline(newFetcher(fullSource(), time.Second), dir, store, nil)

	out := p.Run(context.Background(), "99280")

	assert.Equal(t, http.StatusBadRequest, out.StatusCode)
	assert.Equal(t, domain.OutcomeValidationError, out.Label)
	assert.Empty(t, store.records)

	_, data := out.MarshalBody()
	assert.JSONEq(t, `{"errors":[
		{"message":"Variable 'device_id' has an invalid value","errorType":"ValidationError"},
		{"message":"second problem"}
	]}`, string(data))
}

func TestRun_StoreValidationError(t *testing.T) {
	dir := &mockDirectory{owner: ptr("user-42")}
	store := &mockStore{err: &domain.ValidationError{
		Op:     "create_telemetry",
		Errors: []json.RawMessage{json.RawMessage(`{"message":"owner mismatch"}`)},
	}}
	pub := &mockPublisher{}
	p := newPipeline(newFetcher(fullSource(), time.Second), dir, store, pub)

	out := p.Run(context.Background(), "99280")

	assert.Equal(t, http.StatusBadRequest, out.StatusCode)
	assert.Empty(t, pub.records)
}

func TestRun_NonFiniteValueStillCommits(t *testing.T) {
	src := fullSource()
	src.results["6"] = sample(t0, "NaN")
	dir := &mockDirectory{owner: ptr("user-42")}
	store := &mockStore{}
	p := newPipeline(newFetcher(src, time.Second), dir, store, nil)

	out := p.Run(context.Background(), "99280")
	out, _ = out.MarshalBody()

	require.Equal(t, http.StatusOK, out.StatusCode)
	require.Len(t, store.records, 1)
	assert.Nil(t, store.records[0].Visibility)
	require.NotNil(t, store.records[0].Temperature)
	assert.InDelta(t, 14.2, *store.records[0].Temperature, 1e-9)
}

func TestRun_StoreTransportErrorIsFailure(t *testing.T) {
	for name, storeErr := range map[string]error{
		"transport": errors.New("connection reset"),
		"no record": errors.New("create telemetry: backend returned no record"),
	} {
		t.Run(name, func(t *testing.T) {
			dir := &mockDirectory{owner: ptr("user-42")}
			store := &mockStore{err: storeErr}
			pub := &mockPublisher{}
			p := newPipeline(newFetcher(fullSource(), time.Second), dir, store, pub)

			out := p.Run(context.Background(), "99280")

			assert.Equal(t, http.StatusInternalServerError, out.StatusCode)
			assert.Equal(t, domain.OutcomeUnexpectedFailure, out.Label)
			assert.Empty(t, pub.records)

			body := bodyJSON(t, out)
			errs := body["errors"].([]any)
			require.Len(t, errs, 1)
			assert.Contains(t, errs[0].(map[string]any)["error"], storeErr.Error())
			assert.Error(t, p.CheckReadiness(context.Background()))
		})
	}
}

func TestRun_DirectoryTransportErrorIsFailure(t *testing.T) {
	dir := &mockDirectory{err: errors.New("dial tcp: connection refused")}
	store := &mockStore{}
	p := newPipeline(newFetcher(fullSource(), time.Second), dir, store, nil)

	out := p.Run(context.Background(), "99280")

	assert.Equal(t, http.StatusInternalServerError, out.StatusCode)
	assert.Equal(t, domain.OutcomeUnexpectedFailure, out.Label)
	assert.Empty(t, store.records)
}

func TestRun_AggregationFaultIsFailure(t *testing.T) {
	f := &stubFetcher{observations: []domain.Observation{
		{Key: domain.ParameterKey("humidity"), Value: ptr(55.0), Timestamp: ptr(t0)},
	}}
	dir := &mockDirectory{owner: ptr("user-42")}
	store := &mockStore{}
	p := newPipeline(f, dir, store, nil)

	out := p.Run(context.Background(), "99280")

	require.Equal(t, http.StatusInternalServerError, out.StatusCode)
	assert.Empty(t, store.records)
	assert.Zero(t, dir.calls)

	body := bodyJSON(t, out)
	errs, ok := body["errors"].([]any)
	require.True(t, ok)
	require.Len(t, errs, 1)
	entry := errs[0].(map[string]any)
	assert.InDelta(t, 500.0, entry["status"], 0)
	assert.Contains(t, entry["error"], "humidity")
}

func TestRun_PanicIsFailure(t *testing.T) {
	dir := &mockDirectory{owner: ptr("user-42")}
	store := &mockStore{}
	p := newPipeline(&stubFetcher{panic: true}, dir, store, nil)

	out := p.Run(context.Background(), "99280")

	require.Equal(t, http.StatusInternalServerError, out.StatusCode)
	assert.Empty(t, store.records)
	body := bodyJSON(t, out)
	errs := body["errors"].([]any)
	require.Len(t, errs, 1)
	assert.Contains(t, errs[0].(map[string]any)["error"], "fetcher exploded")
}

func TestRun_RequestBuildErrorIsFailure(t *testing.T) {
	src := &mockSource{results: map[string]sourceResult{
		"1": {err: domain.ErrRequestBuild},
	}}
	dir := &mockDirectory{owner: ptr("user-42")}
	store := &mockStore{}
	p := newPipeline(newFetcher(src, time.Second), dir, store, nil)

	out := p.Run(context.Background(), "99280")

	assert.Equal(t, http.StatusInternalServerError, out.StatusCode)
	assert.Zero(t, dir.calls)
	assert.Empty(t, store.records)
}

func TestRun_PublishFailureDoesNotChangeOutcome(t *testing.T) {
	dir := &mockDirectory{owner: ptr("user-42")}
	store := &mockStore{}
	pub := &mockPublisher{err: errors.New("broker unavailable")}
	p := newPipeline(newFetcher(fullSource(), time.Second), dir, store, pub)

	out := p.Run(context.Background(), "99280")

	assert.Equal(t, http.StatusOK, out.StatusCode)
	assert.Len(t, store.records, 1)
}

func TestRun_ConcurrentRunsAreIndependent(t *testing.T) {
	dir := &mockDirectory{owner: ptr("user-42")}
	store := &mockStore{}
	p := newPipeline(newFetcher(fullSource(), time.Second), dir, store, nil)

	var wg sync.WaitGroup
	for range 8 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			out := p.Run(context.Background(), "99280")
			assert.Equal(t, http.StatusOK, out.StatusCode)
		}()
	}
	wg.Wait()

	assert.Len(t, store.records, 8)
	assert.Equal(t, 8, dir.calls)
}

func TestCheckReadiness(t *testing.T) {
	dir := &mockDirectory{owner: ptr("user-42")}
	store := &mockStore{}
	f := &stubFetcher{panic: true}
	p := newPipeline(f, dir, store, nil)

	require.NoError(t, p.CheckReadiness(context.Background()))

	p.Run(context.Background(), "99280")
	require.Error(t, p.CheckReadiness(context.Background()))

	f.panic = false
	f.observations = []domain.Observation{}
	out := p.Run(context.Background(), "99280")
	require.Equal(t, http.StatusOK, out.StatusCode)
	assert.NoError(t, p.CheckReadiness(context.Background()))
}
