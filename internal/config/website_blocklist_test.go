package config

import (
	"reflect"
	"testing"
)

func TestNormalizeWebsiteBlacklist(t *testing.T) {
	input := []string{" Example.com ", "http://Example.com/path", "sub.example.com", "https://sub.example.com", ""}
	want := []string{"example.com", "sub.example.com"}

	got := NormalizeWebsiteBlacklist(input)
	if !reflect.DeepEqual(got, want) {
		t.Fatalf("NormalizeWebsiteBlacklist(%v) = %v, want %v", input, got, want)
	}
}

func TestWebsiteBlocklistIsBlocked(t *testing.T) {
	blocklist := NewWebsiteBlocklist([]string{"example.com"})

	cases := []struct {
		url      string
		blocked  bool
		testName string
	}{
		{"http://example.com", true, "exact host"},
		{"https://api.example.com/resource", true, "subdomain"},
		{"https://example.net", false, "different domain"},
		{"https://notexample.com", false, "suffix without dot"},
		{"", false, "empty"},
	}

	for _, tc := range cases {
		if got := blocklist.IsBlocked(tc.url); got != tc.blocked {
			t.Errorf("%s: IsBlocked(%q) = %v, want %v", tc.testName, tc.url, got, tc.blocked)
		}
	}
}

func TestNilWebsiteBlocklistBlocksNothing(t *testing.T) {
	var blocklist *WebsiteBlocklist
	if blocklist.IsBlocked("https://example.com") {
		t.Fatal("nil blocklist reported a blocked host")
	}
}

func TestFilterBlocked(t *testing.T) {
	blocklist := NewWebsiteBlocklist([]string{"httpbin.org"})
	got := blocklist.FilterBlocked([]string{"http://ip-api.com/json/", "http://httpbin.org/ip", "https://api.ipify.org"})
	want := []string{"http://ip-api.com/json/", "https://api.ipify.org"}

	if !reflect.DeepEqual(got, want) {
		t.Fatalf("FilterBlocked returned %v, want %v", got, want)
	}
}
