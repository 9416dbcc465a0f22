package security

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"
)

// タイムアウト設定が反映されることをテストする。
func TestNewOutboundClient_Timeout(t *testing.T) {
	timeout := 5 * time.Second
	client := NewOutboundClient(timeout)
	if client == nil {
		t.Fatal("NewOutboundClient() returned nil")
	}
	if client.Timeout != timeout {
		t.Errorf("expected timeout %v, got %v", timeout, client.Timeout)
	}
}

// safeurlのTransportが設定されていることをテストする。
func TestNewOutboundClient_HasTransport(t *testing.T) {
	client := NewOutboundClient(5 * time.Second)

	if client.Transport == nil {
		t.Fatal("expected custom Transport to be set, got nil")
	}
	if client.Transport == http.DefaultTransport {
		t.Fatal("expected custom Transport, got http.DefaultTransport")
	}
}

// httptestサーバーは127.0.0.1で起動されるため、リクエストがブロックされることをテストする。
func TestNewOutboundClient_BlocksLoopback(t *testing.T) {
	ts := httptest.NewTLSServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))
	defer ts.Close()

	client := NewOutboundClient(5 * time.Second)

	if _, err := client.Get(ts.URL); err == nil {
		t.Fatal("expected error for loopback address request, got nil")
	}
}

func TestValidateEndpoint(t *testing.T) {
	tests := []struct {
		name    string
		url     string
		wantErr bool
	}{
		{"Googleトークンエンドポイント", "https://oauth2.googleapis.com/token", false},
		{"公開IP", "https://8.8.8.8/userinfo", false},
		{"空文字", "", true},
		{"http", "http://oauth2.googleapis.com/token", true},
		{"ホストなし", "https:///token", true},
		{"プライベートIP", "https://10.0.0.1/token", true},
		{"ループバック", "https://127.0.0.1/token", true},
		{"メタデータIP", "https://169.254.169.254/latest", true},
		{"IPv6ループバック", "https://[::1]/token", true},
		{"localhost", "https://LOCALHOST/token", true},
		{"パース不能", "https://exa mple.com/%zz", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidateEndpoint(tt.url)
			if (err != nil) != tt.wantErr {
				t.Errorf("ValidateEndpoint(%q) error = %v, wantErr %v", tt.url, err, tt.wantErr)
			}
		})
	}
}
