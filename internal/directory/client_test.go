package directory

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"net/url"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"go.uber.org/zap"

	"github.com/i474232898/city-forecast/internal/remote"
)

const sampleRecords = `{
  "nhits": 140000,
  "records": [
    {
      "recordid": "a1",
      "fields": {
        "name": "Paris",
        "cou_name_en": "France",
        "country_code": "FR",
        "timezone": "Europe/Paris",
        "population": 2138551,
        "coordinates": [48.85341, 2.3488]
      }
    },
    {
      "recordid": "b2",
      "fields": {
        "name": "Paris",
        "cou_name_en": "United States",
        "country_code": "US",
        "timezone": "America/Chicago",
        "coordinates": [33.66094, -95.55551]
      }
    }
  ]
}`

func newTestClient(t *testing.T, handler http.HandlerFunc) (*Client, func() url.Values) {
	t.Helper()

	var (
		mu   sync.Mutex
		last url.Values
	)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		mu.Lock()
		last = r.URL.Query()
		mu.Unlock()
		handler(w, r)
	}))
	t.Cleanup(srv.Close)

	req := remote.NewRequester(remote.Config{
		Name:   "directory",
		Client: &http.Client{Timeout: 2 * time.Second},
	}, zap.NewNop())

	return NewClient(req, srv.URL, "", zap.NewNop()), func() url.Values {
		mu.Lock()
		defer mu.Unlock()
		return last
	}
}

func TestFetchPageSendsPagingParameters(t *testing.T) {
	client, lastQuery := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(sampleRecords))
	})

	cities, err := client.FetchPage(context.Background(), 50, 25)
	if err != nil {
		t.Fatalf("FetchPage: %v", err)
	}

	q := lastQuery()
	if q.Get("dataset") != DefaultDataset || q.Get("rows") != "25" || q.Get("start") != "50" || q.Has("q") {
		t.Fatalf("unexpected query: %v", q)
	}

	if len(cities) != 2 {
		t.Fatalf("got %d cities, want 2", len(cities))
	}
	want := City{
		ID:          "a1",
		Name:        "Paris",
		Country:     "France",
		CountryCode: "FR",
		Timezone:    "Europe/Paris",
		Population:  2138551,
		Coordinates: Coordinates{Lat: 48.85341, Lon: 2.3488},
	}
	if cities[0] != want {
		t.Fatalf("first city = %+v, want %+v", cities[0], want)
	}
	if cities[1].Country != "United States" || cities[1].Coordinates.Lon != -95.55551 {
		t.Fatalf("server order not preserved: %+v", cities[1])
	}
}

func TestFetchMatchingSendsSearchParameters(t *testing.T) {
	client, lastQuery := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(sampleRecords))
	})

	if _, err := client.FetchMatching(context.Background(), "paris", 1000); err != nil {
		t.Fatalf("FetchMatching: %v", err)
	}

	q := lastQuery()
	if q.Get("rows") != "1000" || q.Get("q") != "paris" || q.Has("start") {
		t.Fatalf("unexpected query: %v", q)
	}
}

func TestFetchEmptyResultIsNotAnError(t *testing.T) {
	client, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"nhits": 0, "records": []}`))
	})

	cities, err := client.FetchMatching(context.Background(), "nowhere", 10)
	if err != nil {
		t.Fatalf("FetchMatching: %v", err)
	}
	if len(cities) != 0 {
		t.Fatalf("got %d cities, want 0", len(cities))
	}
}

func TestFetchFailures(t *testing.T) {
	tests := []struct {
		name    string
		status  int
		body    string
		wantErr error
	}{
		{
			name:    "upstream error",
			status:  http.StatusServiceUnavailable,
			body:    `{}`,
			wantErr: remote.ErrNetwork,
		},
		{
			name:    "not json",
			status:  http.StatusOK,
			body:    `<html>maintenance</html>`,
			wantErr: remote.ErrDecode,
		},
		{
			name:    "empty object",
			status:  http.StatusOK,
			body:    `{}`,
			wantErr: remote.ErrDecode,
		},
		{
			name:    "null body",
			status:  http.StatusOK,
			body:    `null`,
			wantErr: remote.ErrDecode,
		},
		{
			name:    "unexpected shape",
			status:  http.StatusOK,
			body:    `{"unexpected":1}`,
			wantErr: remote.ErrDecode,
		},
		{
			name:    "bad coordinates",
			status:  http.StatusOK,
			body:    `{"records":[{"fields":{"name":"Nowhere","coordinates":[1.5]}}]}`,
			wantErr: remote.ErrDecode,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			client, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(tt.status)
				_, _ = w.Write([]byte(tt.body))
			})

			_, err := client.FetchPage(context.Background(), 0, 10)
			if !errors.Is(err, tt.wantErr) {
				t.Fatalf("error = %v, want %v", err, tt.wantErr)
			}
		})
	}
}

func TestFetchRejectsInvalidArguments(t *testing.T) {
	var calls atomic.Int32
	client, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		_, _ = w.Write([]byte(sampleRecords))
	})
	ctx := context.Background()

	if _, err := client.FetchPage(ctx, -1, 10); err == nil {
		t.Fatal("expected error for negative offset")
	}
	if _, err := client.FetchPage(ctx, 0, 0); err == nil {
		t.Fatal("expected error for zero limit")
	}
	if _, err := client.FetchMatching(ctx, "", 10); err == nil {
		t.Fatal("expected error for empty term")
	}
	if n := calls.Load(); n != 0 {
		t.Fatalf("invalid arguments reached the server %d times", n)
	}
}
