package agol

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"net/url"
	"sort"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/GrainArc/MopedMap/methods"
	"github.com/paulmach/orb"
	"github.com/paulmach/orb/geojson"
)

func featureJSON(ids ...int) string {
	parts := make([]string, 0, len(ids))
	for _, id := range ids {
		x := float64(id) / 1000
		parts = append(parts, fmt.Sprintf(
			`{"type":"Feature","geometry":{"type":"LineString","coordinates":[[%g,%g],[%g,%g]]},"properties":{"CTN_SEGMENT_ID":%d,"FULL_STREET_NAME":"Street %d"}}`,
			x, x, x, x+0.5, id, id))
	}
	return `{"type":"FeatureCollection","features":[` + strings.Join(parts, ",") + `]}`
}

func collectionIDs(fc *geojson.FeatureCollection) []string {
	var out []string
	for _, f := range fc.Features {
		id, _ := methods.FeatureID(f, "CTN_SEGMENT_ID")
		out = append(out, id)
	}
	sort.Strings(out)
	return out
}

func linesFetcher(client Querier, opts FetcherOptions) *Fetcher {
	opts.Name = methods.LayerLines
	opts.ServiceName = "CTN"
	opts.FeatureIDProp = "CTN_SEGMENT_ID"
	return NewFetcher(client, opts)
}

var (
	boundsA = orb.Bound{Min: orb.Point{0, 0}, Max: orb.Point{1, 1}}
	boundsB = orb.Bound{Min: orb.Point{1, 1}, Max: orb.Point{2, 2}}
)

func TestQueryURLParams(t *testing.T) {
	var got url.Values
	var path string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		got = r.URL.Query()
		path = r.URL.Path
		fmt.Fprint(w, featureJSON(1))
	}))
	defer srv.Close()

	c := NewClient(srv.URL+"/", time.Second, nil)
	fc, err := c.Query(context.Background(), QueryRequest{ServiceName: "CTN", LayerID: 2, Bounds: boundsA})
	if err != nil {
		t.Fatalf("Query() error: %v", err)
	}
	if len(fc.Features) != 1 {
		t.Errorf("Expected 1 feature, got %d", len(fc.Features))
	}
	if path != "/CTN/FeatureServer/2/query" {
		t.Errorf("Unexpected path %s", path)
	}

	want := map[string]string{
		"where":             "1=1",
		"outFields":         "*",
		"geometryPrecision": "6",
		"f":                 "pgeojson",
		"returnGeometry":    "true",
		"inSR":              "4326",
		"geometryType":      "esriGeometryEnvelope",
		"spatialRel":        "esriSpatialRelEnvelopeIntersects",
		"geometry":          "0,0,1,1",
	}
	for k, v := range want {
		if got.Get(k) != v {
			t.Errorf("Param %s = %q, want %q", k, got.Get(k), v)
		}
	}
}

func TestQueryCache(t *testing.T) {
	var hits int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&hits, 1)
		fmt.Fprint(w, featureJSON(1, 2))
	}))
	defer srv.Close()

	c := NewClient(srv.URL, time.Second, NewQueryCache(10, time.Minute))
	for i := 0; i < 3; i++ {
		if _, err := c.Query(context.Background(), QueryRequest{ServiceName: "CTN", Bounds: boundsA}); err != nil {
			t.Fatalf("Query() error: %v", err)
		}
	}
	if n := atomic.LoadInt32(&hits); n != 1 {
		t.Errorf("Expected 1 upstream request, got %d", n)
	}
}

func TestQueryErrors(t *testing.T) {
	tests := []struct {
		name   string
		status int
		body   string
	}{
		{"status", http.StatusInternalServerError, "boom"},
		{"service error", http.StatusOK, `{"error":{"code":400,"message":"Invalid query"}}`},
		{"bad json", http.StatusOK, `{"type":`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(tt.status)
				fmt.Fprint(w, tt.body)
			}))
			defer srv.Close()

			cache := NewQueryCache(10, time.Minute)
			c := NewClient(srv.URL, time.Second, cache)
			if _, err := c.Query(context.Background(), QueryRequest{ServiceName: "CTN", Bounds: boundsA}); err == nil {
				t.Error("Expected error")
			}
			if cache.Size() != 0 {
				t.Error("Failed responses must not be cached")
			}
		})
	}
}

func TestFetcherAccumulates(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Query().Get("geometry") {
		case "0,0,1,1":
			fmt.Fprint(w, featureJSON(101, 102))
		default:
			fmt.Fprint(w, featureJSON(102, 103))
		}
	}))
	defer srv.Close()

	f := linesFetcher(NewClient(srv.URL, time.Second, nil), FetcherOptions{})

	f.Update(context.Background(), boundsA, true)
	f.Wait()
	f.Update(context.Background(), boundsB, true)
	f.Wait()

	got := collectionIDs(f.Collection())
	want := []string{"101", "102", "103"}
	if strings.Join(got, ",") != strings.Join(want, ",") {
		t.Errorf("Expected %v, got %v", want, got)
	}
	if _, ok := f.Lookup("103"); !ok {
		t.Error("Expected Lookup to find 103")
	}
	if _, ok := f.Lookup("999"); ok {
		t.Error("Lookup found a feature that was never fetched")
	}
}

func TestFetcherAbortsPreviousRequest(t *testing.T) {
	release := make(chan struct{})
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Query().Get("geometry") == "0,0,1,1" {
			select {
			case <-release:
			case <-r.Context().Done():
				return
			}
			fmt.Fprint(w, featureJSON(1, 2))
			return
		}
		fmt.Fprint(w, featureJSON(3))
	}))
	defer srv.Close()
	defer close(release)

	f := linesFetcher(NewClient(srv.URL, 5*time.Second, nil), FetcherOptions{})
	f.Update(context.Background(), boundsA, true)
	f.Update(context.Background(), boundsB, true)
	f.Wait()

	if got := collectionIDs(f.Collection()); strings.Join(got, ",") != "3" {
		t.Errorf("Expected only the latest response, got %v", got)
	}
}

// slowQuerier 忽略取消，模拟取消后响应仍然到达
type slowQuerier struct {
	mu    sync.Mutex
	gates map[string]chan struct{}
	data  map[string]*geojson.FeatureCollection
}

func (q *slowQuerier) Query(ctx context.Context, req QueryRequest) (*geojson.FeatureCollection, error) {
	key := methods.FormatBounds(req.Bounds)
	q.mu.Lock()
	gate := q.gates[key]
	q.mu.Unlock()
	if gate != nil {
		<-gate
	}
	return q.data[key], nil
}

func mustCollection(t *testing.T, body string) *geojson.FeatureCollection {
	t.Helper()
	fc, err := geojson.UnmarshalFeatureCollection([]byte(body))
	if err != nil {
		t.Fatal(err)
	}
	return fc
}

func TestFetcherDiscardsStaleResponse(t *testing.T) {
	gateA := make(chan struct{})
	q := &slowQuerier{
		gates: map[string]chan struct{}{"0,0,1,1": gateA},
		data: map[string]*geojson.FeatureCollection{
			"0,0,1,1": mustCollection(t, featureJSON(1, 2)),
			"1,1,2,2": mustCollection(t, featureJSON(3)),
		},
	}
	var updates int32
	f := linesFetcher(q, FetcherOptions{OnUpdate: func(*geojson.FeatureCollection) { atomic.AddInt32(&updates, 1) }})

	f.Update(context.Background(), boundsA, true)
	f.Update(context.Background(), boundsB, true)
	// B 完成后再放行 A
	deadline := time.Now().Add(2 * time.Second)
	for atomic.LoadInt32(&updates) == 0 && time.Now().Before(deadline) {
		time.Sleep(5 * time.Millisecond)
	}
	close(gateA)
	f.Wait()

	if got := collectionIDs(f.Collection()); strings.Join(got, ",") != "3" {
		t.Errorf("Stale response was committed: %v", got)
	}
	if n := atomic.LoadInt32(&updates); n != 1 {
		t.Errorf("Expected 1 update, got %d", n)
	}
}

func TestFetcherVisibilityGate(t *testing.T) {
	var hits int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&hits, 1)
		fmt.Fprint(w, featureJSON(1))
	}))
	defer srv.Close()

	f := linesFetcher(NewClient(srv.URL, time.Second, nil), FetcherOptions{})
	f.Update(context.Background(), boundsA, false)
	f.Update(context.Background(), boundsB, false)
	f.Wait()

	if n := atomic.LoadInt32(&hits); n != 0 {
		t.Errorf("Hidden fetcher issued %d requests", n)
	}
}

func TestFetcherSwallowsErrors(t *testing.T) {
	fail := int32(0)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if atomic.LoadInt32(&fail) == 1 {
			w.WriteHeader(http.StatusBadGateway)
			return
		}
		fmt.Fprint(w, featureJSON(1))
	}))
	defer srv.Close()

	var mu sync.Mutex
	var states []bool
	f := linesFetcher(NewClient(srv.URL, time.Second, nil), FetcherOptions{
		SetIsFetching: func(v bool) {
			mu.Lock()
			states = append(states, v)
			mu.Unlock()
		},
	})

	f.Update(context.Background(), boundsA, true)
	f.Wait()
	atomic.StoreInt32(&fail, 1)
	f.Update(context.Background(), boundsB, true)
	f.Wait()

	if got := collectionIDs(f.Collection()); strings.Join(got, ",") != "1" {
		t.Errorf("Failed fetch changed state: %v", got)
	}
	mu.Lock()
	defer mu.Unlock()
	if len(states) != 4 || states[len(states)-1] {
		t.Errorf("Expected loading flag to be cleared after failure, got %v", states)
	}
}

func TestFetcherEviction(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Query().Get("geometry") == "0,0,1,1" {
			fmt.Fprint(w, featureJSON(100))
			return
		}
		fmt.Fprint(w, featureJSON(1500))
	}))
	defer srv.Close()

	f := linesFetcher(NewClient(srv.URL, time.Second, nil), FetcherOptions{EvictionMargin: 0.1})
	f.Update(context.Background(), boundsA, true)
	f.Wait()
	f.Update(context.Background(), boundsB, true)
	f.Wait()

	// 100 的几何在 x=0.1，超出 B 外扩 0.1 的范围
	if got := collectionIDs(f.Collection()); strings.Join(got, ",") != "1500" {
		t.Errorf("Expected eviction to keep only 1500, got %v", got)
	}
}

func TestQueryCacheEviction(t *testing.T) {
	c := NewQueryCache(2, time.Minute)
	now := time.Unix(0, 0)
	c.now = func() time.Time { return now }

	c.Set("a", []byte("1"))
	now = now.Add(time.Second)
	c.Set("b", []byte("2"))
	now = now.Add(time.Second)
	c.Set("c", []byte("3"))

	if _, ok := c.Get("a"); ok {
		t.Error("Expected oldest entry to be evicted")
	}
	if c.Size() != 2 {
		t.Errorf("Expected size 2, got %d", c.Size())
	}

	now = now.Add(2 * time.Minute)
	if _, ok := c.Get("c"); ok {
		t.Error("Expected expired entry to miss")
	}
	c.Cleanup()
	if c.Size() != 0 {
		t.Errorf("Expected cleanup to remove expired entries, got %d", c.Size())
	}
}

func TestUseFastJSON(t *testing.T) {
	UseFastJSON()
	t.Cleanup(func() {
		geojson.CustomJSONMarshaler = nil
		geojson.CustomJSONUnmarshaler = nil
	})

	fc, err := decodeFeatureCollection([]byte(featureJSON(7, 8)))
	if err != nil {
		t.Fatalf("decode error: %v", err)
	}
	if got := collectionIDs(fc); len(got) != 2 || got[0] != "7" {
		t.Errorf("Unexpected ids %v", got)
	}
	data, err := fc.MarshalJSON()
	if err != nil {
		t.Fatalf("MarshalJSON() error: %v", err)
	}
	if !strings.Contains(string(data), `"CTN_SEGMENT_ID":8`) {
		t.Errorf("Unexpected encoding %s", data)
	}
}
