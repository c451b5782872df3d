package httpclient

import (
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"
)

func TestNew_SendsDefaultHeadersAndTimeout(t *testing.T) {
	var gotAgent, gotCustom string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotAgent = r.Header.Get("User-Agent")
		gotCustom = r.Header.Get("X-Override")
		io.WriteString(w, `{"jsonrpc":"2.0","id":1,"result":"0x1"}`)
	}))
	defer srv.Close()

	client, err := New(
		WithProviderName("standard-rpc"),
		WithRequestTimeout(2*time.Second),
		WithHeaders(map[string]string{"User-Agent": "flashblocks-catcher", "X-Override": "default"}),
	)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	if client.Timeout != 2*time.Second {
		t.Errorf("Timeout = %s", client.Timeout)
	}

	req, _ := http.NewRequest(http.MethodPost, srv.URL, nil)
	req.Header.Set("X-Override", "caller")
	resp, err := client.Do(req)
	if err != nil {
		t.Fatalf("Do: %v", err)
	}
	resp.Body.Close()

	if gotAgent != "flashblocks-catcher" {
		t.Errorf("User-Agent = %q", gotAgent)
	}
	if gotCustom != "caller" {
		t.Errorf("caller header was overwritten: %q", gotCustom)
	}
}

func TestNew_NoTimeoutByDefault(t *testing.T) {
	client, err := New()
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	if client.Timeout != 0 {
		t.Errorf("Timeout = %s, want 0 for websocket dialers", client.Timeout)
	}
}
