package healthlog

import (
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strconv"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wolfman30/baymax-health/pkg/logging"
)

func newTestHandler() *Handler {
	logger := logging.NewWithWriter("error", io.Discard)
	return NewHandler(NewService(NewInMemoryRepository(), logger), logger)
}

func doRequest(t *testing.T, fn http.HandlerFunc, method, target, body string) (int, map[string]any) {
	t.Helper()
	var reader io.Reader
	if body != "" {
		reader = strings.NewReader(body)
	}
	rec := httptest.NewRecorder()
	fn(rec, httptest.NewRequest(method, target, reader))
	var out map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &out))
	return rec.Code, out
}

func TestUpsertValidation(t *testing.T) {
	h := newTestHandler()
	tests := []struct {
		name string
		body string
		code int
		msg  string
	}{
		{"missing date", `{"tookMedication":true,"sleepHours":7.5}`, http.StatusBadRequest, "date is required"},
		{"bad date", `{"date":"2025/12/02","tookMedication":true}`, http.StatusBadRequest, "Invalid date format"},
		{"bad body", `{"date":`, http.StatusBadRequest, "Invalid request body"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			code, out := doRequest(t, h.Upsert, http.MethodPost, "/api/logs", tt.body)
			assert.Equal(t, tt.code, code)
			assert.Equal(t, tt.msg, out["error"])
		})
	}
}

func TestGetValidation(t *testing.T) {
	h := newTestHandler()

	code, out := doRequest(t, h.Get, http.MethodGet, "/api/logs/one", "")
	assert.Equal(t, http.StatusBadRequest, code)
	assert.Equal(t, "date query param is required", out["error"])

	code, out = doRequest(t, h.Get, http.MethodGet, "/api/logs/one?date=12/02/2030", "")
	assert.Equal(t, http.StatusBadRequest, code)
	assert.Equal(t, "Invalid date format", out["error"])

	code, out = doRequest(t, h.Get, http.MethodGet, "/api/logs/one?date=1970-01-01", "")
	assert.Equal(t, http.StatusOK, code)
	assert.Empty(t, out)
}

func TestUpsertThenGet(t *testing.T) {
	h := newTestHandler()
	payload := `{"date":"2030-01-03","tookMedication":true,"sleepHours":6.5,"vital_bpm":78,"mood":3,"symptom":"nausea","note":"Nausea after lunch"}`

	code, out := doRequest(t, h.Upsert, http.MethodPost, "/api/logs", payload)
	require.Equal(t, http.StatusOK, code)
	assert.Equal(t, true, out["ok"])

	code, out = doRequest(t, h.Get, http.MethodGet, "/api/logs/one?date=2030-01-03", "")
	require.Equal(t, http.StatusOK, code)
	assert.Equal(t, "2030-01-03", out["date"])
	assert.Equal(t, true, out["tookMedication"])
	assert.Equal(t, 6.5, out["sleepHours"])
	assert.Equal(t, float64(78), out["vital_bpm"])
	assert.Equal(t, float64(3), out["mood"])
	assert.Equal(t, "nausea", out["symptom"])
	assert.Equal(t, "Nausea after lunch", out["note"])
	_, leaked := out["user_hash"]
	assert.False(t, leaked)

	// the entry is scoped to the hashed user id
	code, out = doRequest(t, h.Get, http.MethodGet, "/api/logs/one?date=2030-01-03&user_id=someone", "")
	require.Equal(t, http.StatusOK, code)
	assert.Empty(t, out)
}

func TestRangeValidation(t *testing.T) {
	h := newTestHandler()

	code, out := doRequest(t, h.Range, http.MethodGet, "/api/health-logs?start=2025-11-10&end=2025-11-01", "")
	assert.Equal(t, http.StatusBadRequest, code)
	assert.Equal(t, "Start date must not be after end date.", out["error"])

	code, out = doRequest(t, h.Range, http.MethodGet, "/api/health-logs?start=2000-01-01&end=2000-01-31", "")
	assert.Equal(t, http.StatusNotFound, code)
	assert.Equal(t, "No health logs found between the selected date range.", out["error"])

	code, out = doRequest(t, h.Range, http.MethodGet, "/api/health-logs?start=Nov-01", "")
	assert.Equal(t, http.StatusBadRequest, code)
	assert.Equal(t, "Invalid date format", out["error"])
}

func TestRangeReturnsUserLogsOldestFirst(t *testing.T) {
	h := newTestHandler()
	seed := func(user, date string, mood int) {
		t.Helper()
		body := `{"user_id":"` + user + `","date":"` + date + `","mood":` + strconv.Itoa(mood) + `,"sleepHours":7}`
		code, _ := doRequest(t, h.Upsert, http.MethodPost, "/api/logs", body)
		require.Equal(t, http.StatusOK, code)
	}
	seed("user-a", "2025-11-10", 3)
	seed("user-a", "2025-11-01", 4)
	seed("user-a", "2025-11-05", 2)
	seed("user-b", "2025-11-02", 5)
	seed("user-a", "2025-11-15", 1)

	rec := httptest.NewRecorder()
	h.Range(rec, httptest.NewRequest(http.MethodGet, "/api/health-logs?start=2025-11-01&end=2025-11-10&user_id=user-a", nil))
	require.Equal(t, http.StatusOK, rec.Code)

	var items []map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &items))
	require.Len(t, items, 3)
	assert.Equal(t, "2025-11-01", items[0]["date"])
	assert.Equal(t, "2025-11-05", items[1]["date"])
	assert.Equal(t, "2025-11-10", items[2]["date"])
	assert.Equal(t, float64(4), items[0]["mood"])
	assert.Equal(t, float64(7), items[0]["sleepHours"])

	// start only is open-ended
	rec = httptest.NewRecorder()
	h.Range(rec, httptest.NewRequest(http.MethodGet, "/api/health-logs?start=2025-11-11&user_id=user-a", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &items))
	require.Len(t, items, 1)
	assert.Equal(t, "2025-11-15", items[0]["date"])
}
