package source

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"
)

// scriptedFetcher serves canned bodies per location and records the order of
// calls.
type scriptedFetcher struct {
	mu     sync.Mutex
	bodies map[string]string
	calls  []string
}

func (f *scriptedFetcher) Fetch(ctx context.Context, loc string) ([]byte, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, loc)
	body, ok := f.bodies[loc]
	if !ok {
		return nil, fmt.Errorf("status 404")
	}
	return []byte(body), nil
}

func validBody(name string) string {
	return fmt.Sprintf(`{"type":"FeatureCollection","features":[{"type":"Feature","geometry":{"type":"Point","coordinates":[1,2]},"properties":{"Name":%q}}]}`, name)
}

// failures cycles through every way a candidate can fail.
var failures = []string{
	"", // missing: fetch error
	"<!doctype html><html><title>404</title></html>",
	"{broken",
	`{"type":"Feature","geometry":null,"properties":{}}`,
}

func TestResolveAttemptCounts(t *testing.T) {
	const n = 5
	for k := 0; k < n; k++ {
		t.Run(fmt.Sprintf("fail_%d", k), func(t *testing.T) {
			f := &scriptedFetcher{bodies: map[string]string{}}
			var candidates []string
			for i := 0; i < n; i++ {
				loc := fmt.Sprintf("c%d", i)
				candidates = append(candidates, loc)
				switch {
				case i < k:
					if body := failures[i%len(failures)]; body != "" {
						f.bodies[loc] = body
					}
				default:
					f.bodies[loc] = validBody(loc)
				}
			}

			fc, err := NewResolver(f, zerolog.Nop()).Resolve(context.Background(), "walkways", candidates)
			if err != nil {
				t.Fatalf("resolve: %v", err)
			}
			if len(f.calls) != k+1 {
				t.Fatalf("attempts=%d, want %d (%v)", len(f.calls), k+1, f.calls)
			}
			for i, c := range f.calls {
				if c != candidates[i] {
					t.Fatalf("call %d=%s, want %s", i, c, candidates[i])
				}
			}
			if got := fc.Features[0].Properties["Name"]; got != candidates[k] {
				t.Fatalf("data from %v, want %s", got, candidates[k])
			}
		})
	}
}

func TestResolveAllFail(t *testing.T) {
	f := &scriptedFetcher{bodies: map[string]string{
		"b": failures[1],
		"c": failures[2],
		"d": failures[3],
	}}
	candidates := []string{"a", "b", "c", "d"}

	_, err := NewResolver(f, zerolog.Nop()).Resolve(context.Background(), "rides", candidates)
	if !errors.Is(err, ErrSourceUnavailable) {
		t.Fatalf("err=%v, want ErrSourceUnavailable", err)
	}
	var su *SourceUnavailableError
	if !errors.As(err, &su) {
		t.Fatalf("err=%T, want *SourceUnavailableError", err)
	}
	if su.Key != "rides" || su.Attempts != 4 {
		t.Fatalf("key=%s attempts=%d, want rides/4", su.Key, su.Attempts)
	}
	if len(f.calls) != 4 {
		t.Fatalf("calls=%d, want 4", len(f.calls))
	}
	if !errors.Is(err, ErrMalformedCollection) {
		t.Fatalf("err=%v should wrap the last candidate's failure", err)
	}
}

func TestResolveNoCandidates(t *testing.T) {
	_, err := NewResolver(&scriptedFetcher{}, zerolog.Nop()).Resolve(context.Background(), "empty", nil)
	var su *SourceUnavailableError
	if !errors.As(err, &su) || su.Attempts != 0 {
		t.Fatalf("err=%v, want SourceUnavailable with 0 attempts", err)
	}
}

func TestResolveRecoversFetcherPanic(t *testing.T) {
	f := FetcherFunc(func(ctx context.Context, loc string) ([]byte, error) {
		if loc == "bad" {
			panic("boom")
		}
		return []byte(validBody("ok")), nil
	})
	fc, err := NewResolver(f, zerolog.Nop()).Resolve(context.Background(), "poi", []string{"bad", "good"})
	if err != nil {
		t.Fatalf("resolve: %v", err)
	}
	if fc.Features[0].Properties["Name"] != "ok" {
		t.Fatal("expected the second candidate's data")
	}
}

func TestResolveAll(t *testing.T) {
	f := &scriptedFetcher{bodies: map[string]string{
		"walkways-mirror": validBody("walk"),
		"poi-primary":     validBody("poi"),
	}}
	specs := []Spec{
		{Key: "walkways", Candidates: []string{"walkways-primary", "walkways-mirror"}},
		{Key: "rides", Candidates: []string{"rides-primary"}},
		{Key: "poi", Candidates: []string{"poi-primary", "poi-mirror"}},
	}

	results := NewResolver(f, zerolog.Nop()).ResolveAll(context.Background(), specs, 2)
	if len(results) != 3 {
		t.Fatalf("results=%d, want 3", len(results))
	}

	walk := results[0]
	if walk.Key != "walkways" || walk.Err != nil || walk.Attempts != 2 || walk.Location != "walkways-mirror" {
		t.Fatalf("walkways=%+v", walk)
	}
	rides := results[1]
	if rides.Key != "rides" || !errors.Is(rides.Err, ErrSourceUnavailable) || rides.Collection != nil {
		t.Fatalf("rides=%+v", rides)
	}
	poi := results[2]
	if poi.Err != nil || poi.Attempts != 1 {
		t.Fatalf("poi=%+v", poi)
	}
}

func TestHTTPFetcher(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/walkways.geojson":
			w.Header().Set("Content-Type", "application/geo+json")
			fmt.Fprint(w, validBody("walk"))
		case "/release.geojson":
			// GitHub style landing page served with 200
			fmt.Fprint(w, "<!doctype html><html><head><title>Release page</title></head></html>")
		default:
			http.NotFound(w, r)
		}
	}))
	defer srv.Close()

	fetcher := NewHTTPFetcher(5*time.Second, 0)
	r := NewResolver(fetcher, zerolog.Nop())

	fc, err := r.Resolve(context.Background(), "walkways", []string{
		srv.URL + "/missing.geojson",
		srv.URL + "/release.geojson",
		srv.URL + "/walkways.geojson",
	})
	if err != nil {
		t.Fatalf("resolve: %v", err)
	}
	if fc.Features[0].Properties["Name"] != "walk" {
		t.Fatalf("properties=%v", fc.Features[0].Properties)
	}

	if _, err := fetcher.Fetch(context.Background(), srv.URL+"/missing.geojson"); err == nil {
		t.Fatal("expected an error for a 404")
	}
}

func TestMultiFetcherFiles(t *testing.T) {
	dir := t.TempDir()
	if err := os.WriteFile(filepath.Join(dir, "nodes.geojson"), []byte(validBody("node")), 0644); err != nil {
		t.Fatal(err)
	}

	m := MultiFetcher{File: FileFetcher{Dir: dir}}
	data, err := m.Fetch(context.Background(), "nodes.geojson")
	if err != nil {
		t.Fatalf("fetch: %v", err)
	}
	if _, err := Decode(data); err != nil {
		t.Fatalf("decode: %v", err)
	}

	if _, err := m.Fetch(context.Background(), "file://"+filepath.Join(dir, "nodes.geojson")); err != nil {
		t.Fatalf("file url: %v", err)
	}
	if _, err := m.Fetch(context.Background(), "https://example.com/x.geojson"); err == nil {
		t.Fatal("expected an error without an http fetcher")
	}
}
