package gamma

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strconv"
	"sync/atomic"
	"testing"
	"time"
)

func testClient(serverURL string) *Client {
	return NewClient(serverURL,
		WithRequestDelay(0),
		WithTimeout(5*time.Second),
	)
}

func TestGetMarketByID(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if got := r.URL.Query().Get("id"); got != "996577" {
			t.Errorf("id query = %q, want 996577", got)
		}
		fmt.Fprint(w, `[{
			"id": "996577",
			"question": "Bitcoin Up or Down - Dec 26?",
			"outcomes": "[\"Up\", \"Down\"]",
			"clobTokenIds": "[\"111\", \"222\"]",
			"volume": "1234.5",
			"closed": false,
			"createdAt": "2025-12-25T12:00:00Z"
		}]`)
	}))
	defer server.Close()

	m, err := testClient(server.URL).GetMarketByID(context.Background(), "996577")
	if err != nil {
		t.Fatalf("GetMarketByID() error = %v", err)
	}
	if m == nil {
		t.Fatal("expected market, got nil")
	}

	if m.Question != "Bitcoin Up or Down - Dec 26?" {
		t.Errorf("Question = %q", m.Question)
	}
	if len(m.Outcomes) != 2 || m.Outcomes[0] != "Up" || m.Outcomes[1] != "Down" {
		t.Errorf("Outcomes = %v, want [Up Down]", m.Outcomes)
	}
	if len(m.TokenIDs) != 2 || m.TokenIDs[0] != "111" {
		t.Errorf("TokenIDs = %v", m.TokenIDs)
	}
	if float64(m.Volume) != 1234.5 {
		t.Errorf("Volume = %v, want 1234.5", m.Volume)
	}

	mm, ok := m.ToModel()
	if !ok {
		t.Fatal("ToModel() reported non-binary market")
	}
	if mm.TokenUp != "111" || mm.TokenDown != "222" {
		t.Errorf("model tokens = %s/%s", mm.TokenUp, mm.TokenDown)
	}
	if mm.CreatedAt == nil {
		t.Error("CreatedAt not parsed")
	}
}

func TestGetMarketByID_NotFound(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `[]`)
	}))
	defer server.Close()

	m, err := testClient(server.URL).GetMarketByID(context.Background(), "missing")
	if err != nil {
		t.Fatalf("GetMarketByID() error = %v", err)
	}
	if m != nil {
		t.Errorf("expected nil for unknown market, got %+v", m)
	}
}

func TestGetAllMarkets_Pagination(t *testing.T) {
	const pageSize = 3
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		offset, _ := strconv.Atoi(r.URL.Query().Get("offset"))
		// Two full pages then a short one.
		count := pageSize
		if offset >= 2*pageSize {
			count = 1
		}
		var page []map[string]any
		for i := 0; i < count; i++ {
			page = append(page, map[string]any{
				"id":       fmt.Sprintf("m-%d", offset+i),
				"question": "q",
			})
		}
		json.NewEncoder(w).Encode(page)
	}))
	defer server.Close()

	client := NewClient(server.URL, WithRequestDelay(0), WithPageSize(pageSize))

	all, err := client.GetAllMarkets(context.Background(), nil, 0)
	if err != nil {
		t.Fatalf("GetAllMarkets() error = %v", err)
	}
	if len(all) != 2*pageSize+1 {
		t.Errorf("fetched %d markets, want %d", len(all), 2*pageSize+1)
	}
	if all[0].ID != "m-0" || all[len(all)-1].ID != "m-6" {
		t.Errorf("unexpected page order: first %s last %s", all[0].ID, all[len(all)-1].ID)
	}
}

func TestDoWithRetry_RateLimited(t *testing.T) {
	var calls atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if calls.Add(1) == 1 {
			w.WriteHeader(http.StatusTooManyRequests)
			return
		}
		fmt.Fprint(w, `[]`)
	}))
	defer server.Close()

	client := testClient(server.URL)
	// Shrink the schedule so the test is fast.
	old := backoffSchedule
	backoffSchedule = []time.Duration{time.Millisecond}
	defer func() { backoffSchedule = old }()

	if _, err := client.GetMarkets(context.Background(), GetMarketsOptions{}); err != nil {
		t.Fatalf("expected retry to succeed, got %v", err)
	}
	if got := calls.Load(); got != 2 {
		t.Errorf("server calls = %d, want 2", got)
	}
}

func TestDoWithRetry_NonRetryable(t *testing.T) {
	var calls atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusNotFound)
	}))
	defer server.Close()

	_, err := testClient(server.URL).GetMarkets(context.Background(), GetMarketsOptions{})
	if err == nil {
		t.Fatal("expected error")
	}
	apiErr, ok := err.(*APIError)
	if !ok {
		t.Fatalf("error type = %T, want *APIError", err)
	}
	if apiErr.StatusCode != http.StatusNotFound {
		t.Errorf("StatusCode = %d, want 404", apiErr.StatusCode)
	}
	if got := calls.Load(); got != 1 {
		t.Errorf("server calls = %d, want 1 (no retry on 404)", got)
	}
}

func TestStringList_Shapes(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want int
	}{
		{"encoded array", `"[\"Up\", \"Down\"]"`, 2},
		{"plain array", `["Up", "Down"]`, 2},
		{"null", `null`, 0},
		{"empty string", `""`, 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var s StringList
			if err := json.Unmarshal([]byte(tt.in), &s); err != nil {
				t.Fatalf("unmarshal: %v", err)
			}
			if len(s) != tt.want {
				t.Errorf("len = %d, want %d", len(s), tt.want)
			}
		})
	}
}
