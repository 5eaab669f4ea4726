package rpc

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"
)

func fastRetry() RetryConfig {
	return RetryConfig{MaxAttempts: 3, InitialWait: time.Millisecond, MaxWait: 5 * time.Millisecond, Multiplier: 2}
}

func TestRCClient_List(t *testing.T) {
	var got ListRequest
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost || r.URL.Path != "/operations/list" {
			t.Errorf("unexpected request %s %s", r.Method, r.URL.Path)
		}
		if ct := r.Header.Get("Content-Type"); ct != "application/json" {
			t.Errorf("expected JSON content type, got %q", ct)
		}
		user, pass, ok := r.BasicAuth()
		if !ok || user != "admin" || pass != "secret" {
			t.Errorf("expected basic auth admin/secret, got %q/%q (%v)", user, pass, ok)
		}
		if err := json.NewDecoder(r.Body).Decode(&got); err != nil {
			t.Errorf("decode body: %v", err)
		}
		w.Write([]byte(`{"list":[
			{"Path":"photos/a.jpg","Name":"a.jpg","Size":12,"MimeType":"image/jpeg","ModTime":"2024-01-02T03:04:05Z","IsDir":false},
			{"Path":"photos/sub","Name":"sub","Size":-1,"IsDir":true}
		]}`))
	}))
	defer srv.Close()

	c := NewRCClient(RCConfig{BaseURL: srv.URL + "/", User: "admin", Pass: "secret", Retry: fastRetry()})
	resp, err := c.List(context.Background(), ListRequest{Fs: FsName("s3"), Remote: "photos"})
	if err != nil {
		t.Fatalf("List: %v", err)
	}

	if got.Fs != "s3:" || got.Remote != "photos" {
		t.Errorf("unexpected request body %+v", got)
	}
	if len(resp.List) != 2 {
		t.Fatalf("expected 2 items, got %d", len(resp.List))
	}
	if resp.List[0].Name != "a.jpg" || resp.List[0].Size != 12 || resp.List[0].MimeType != "image/jpeg" {
		t.Errorf("unexpected first item %+v", resp.List[0])
	}
	if !resp.List[1].IsDir || resp.List[1].Path != "photos/sub" {
		t.Errorf("unexpected second item %+v", resp.List[1])
	}
}

func TestRCClient_RetriesServerErrors(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if calls.Add(1) < 3 {
			w.WriteHeader(http.StatusBadGateway)
			w.Write([]byte(`{"error":"upstream hiccup"}`))
			return
		}
		w.Write([]byte(`{"list":[]}`))
	}))
	defer srv.Close()

	c := NewRCClient(RCConfig{BaseURL: srv.URL, Retry: fastRetry()})
	if _, err := c.List(context.Background(), ListRequest{Fs: "r:"}); err != nil {
		t.Fatalf("expected success after retries, got %v", err)
	}
	if calls.Load() != 3 {
		t.Errorf("expected 3 calls, got %d", calls.Load())
	}
}

func TestRCClient_ErrorSurfaced(t *testing.T) {
	testCases := []struct {
		name      string
		status    int
		body      string
		wantMsg   string
		wantCalls int32
	}{
		{"client error", http.StatusBadRequest, `{"error":"didn't find section in config file"}`, "didn't find section in config file", 1},
		{"not found is final", http.StatusInternalServerError, `{"error":"directory not found"}`, "directory not found", 1},
		{"exhausted retries", http.StatusServiceUnavailable, `busy`, "busy", 3},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			var calls atomic.Int32
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				calls.Add(1)
				w.WriteHeader(tc.status)
				w.Write([]byte(tc.body))
			}))
			defer srv.Close()

			c := NewRCClient(RCConfig{BaseURL: srv.URL, Retry: fastRetry()})
			_, err := c.List(context.Background(), ListRequest{Fs: "r:", Remote: "x"})

			var se *ServiceError
			if !errors.As(err, &se) {
				t.Fatalf("expected ServiceError, got %v", err)
			}
			if se.Status != tc.status || se.Message != tc.wantMsg {
				t.Errorf("expected (%d, %q), got (%d, %q)", tc.status, tc.wantMsg, se.Status, se.Message)
			}
			if calls.Load() != tc.wantCalls {
				t.Errorf("expected %d calls, got %d", tc.wantCalls, calls.Load())
			}
		})
	}
}

func TestRCClient_ContextCancelled(t *testing.T) {
	release := make(chan struct{})
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-release:
		case <-r.Context().Done():
		}
	}))
	defer srv.Close()
	defer close(release)

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	c := NewRCClient(RCConfig{BaseURL: srv.URL, Retry: fastRetry()})
	if _, err := c.List(ctx, ListRequest{Fs: "r:"}); !errors.Is(err, context.DeadlineExceeded) {
		t.Errorf("expected deadline exceeded, got %v", err)
	}
}

func TestRCClient_ListRemotes(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/config/listremotes" {
			t.Errorf("unexpected path %s", r.URL.Path)
		}
		w.Write([]byte(`{"remotes":["gdrive","s3"]}`))
	}))
	defer srv.Close()

	remotes, err := NewRCClient(RCConfig{BaseURL: srv.URL}).ListRemotes(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	if len(remotes) != 2 || remotes[0] != "gdrive" || remotes[1] != "s3" {
		t.Errorf("unexpected remotes %v", remotes)
	}
}

type fixedService struct {
	name string
}

func (f fixedService) List(ctx context.Context, req ListRequest) (*ListResponse, error) {
	return &ListResponse{List: []ListItem{{Name: f.name}}}, nil
}

func TestRouter(t *testing.T) {
	r := &Router{
		Default:  fixedService{name: "default"},
		Services: map[string]ListService{"s3": fixedService{name: "direct"}},
	}

	testCases := []struct {
		fs   string
		want string
	}{
		{"s3:", "direct"},
		{"gdrive:", "default"},
	}
	for _, tc := range testCases {
		resp, err := r.List(context.Background(), ListRequest{Fs: tc.fs})
		if err != nil {
			t.Fatalf("%s: %v", tc.fs, err)
		}
		if resp.List[0].Name != tc.want {
			t.Errorf("%s: expected %s, got %s", tc.fs, tc.want, resp.List[0].Name)
		}
	}

	empty := &Router{}
	_, err := empty.List(context.Background(), ListRequest{Fs: "x:"})
	var se *ServiceError
	if !errors.As(err, &se) || se.Status != http.StatusNotFound {
		t.Errorf("expected 404 ServiceError, got %v", err)
	}
}

func TestFsName(t *testing.T) {
	if FsName("s3") != "s3:" || FsName("s3:") != "s3:" {
		t.Error("FsName should append exactly one colon")
	}
}
