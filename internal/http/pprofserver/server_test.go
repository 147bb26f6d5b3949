package pprofserver

import (
	"net/http"
	"net/http/httptest"
	"testing"
)

func pprofRequest(remoteAddr, user, pass string) *http.Request {
	req := httptest.NewRequest(http.MethodGet, "http://example/debug/pprof/", nil)
	req.RemoteAddr = remoteAddr
	if user != "" || pass != "" {
		req.SetBasicAuth(user, pass)
	}
	return req
}

func TestHandler_AccessGuard(t *testing.T) {
	cases := []struct {
		name       string
		cfg        Config
		remoteAddr string
		user, pass string
		wantCode   int
	}{
		{
			name:       "loopback needs no auth",
			remoteAddr: "127.0.0.1:12345",
			wantCode:   http.StatusOK,
		},
		{
			name:       "ipv6 loopback needs no auth",
			remoteAddr: "[::1]:12345",
			wantCode:   http.StatusOK,
		},
		{
			name:       "remote without configured creds is shut off",
			remoteAddr: "8.8.8.8:54444",
			wantCode:   http.StatusUnauthorized,
		},
		{
			name:       "remote without auth header",
			cfg:        Config{User: "u", Pass: "p"},
			remoteAddr: "8.8.8.8:54444",
			wantCode:   http.StatusUnauthorized,
		},
		{
			name:       "remote with wrong password",
			cfg:        Config{User: "u", Pass: "p"},
			remoteAddr: "8.8.8.8:54444",
			user:       "u", pass: "WRONG",
			wantCode: http.StatusUnauthorized,
		},
		{
			name:       "remote with correct creds",
			cfg:        Config{User: "u", Pass: "p"},
			remoteAddr: "8.8.8.8:54444",
			user:       "u", pass: "p",
			wantCode: http.StatusOK,
		},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			h := Handler(tc.cfg)
			rr := httptest.NewRecorder()
			h.ServeHTTP(rr, pprofRequest(tc.remoteAddr, tc.user, tc.pass))

			if rr.Code != tc.wantCode {
				t.Fatalf("expected %d, got %d", tc.wantCode, rr.Code)
			}
			if tc.wantCode == http.StatusUnauthorized && rr.Header().Get("WWW-Authenticate") == "" {
				t.Fatalf("expected WWW-Authenticate header to be set")
			}
		})
	}
}

func TestIsLoopback(t *testing.T) {
	cases := []struct {
		in   string
		want bool
	}{
		{"127.0.0.1:123", true},
		{"127.0.0.1", true},
		{" 127.0.0.1 ", true},
		{"[::1]:123", true},
		{"8.8.8.8:1", false},
		{"not-an-ip:1", false},
	}
	for _, tc := range cases {
		if got := isLoopback(tc.in); got != tc.want {
			t.Fatalf("isLoopback(%q)=%v, want %v", tc.in, got, tc.want)
		}
	}
}

func TestSecureEq(t *testing.T) {
	if secureEq("a", "ab") {
		t.Fatal("expected false for different lengths")
	}
	if !secureEq("abc", "abc") {
		t.Fatal("expected true for equal strings")
	}
	if secureEq("abc", "abd") {
		t.Fatal("expected false for different strings")
	}
}
