package match

import (
	"net/url"
	"testing"

	"github.com/dgnsrekt/gql_sniffer/internal/types"
)

func testOrigin(t *testing.T) *url.URL {
	t.Helper()
	u, err := url.Parse("https://x.com")
	if err != nil {
		t.Fatalf("url.Parse() error = %v", err)
	}
	return u
}

func ptr[T any](v T) *T { return &v }

func TestIsMatch(t *testing.T) {
	rule := &Rule{Predicates: DefaultPredicates(), Origin: testOrigin(t)}

	tests := []struct {
		name string
		url  string
		want bool
	}{
		{"absolute_graphql", "https://x.com/i/api/graphql/ABC123/UserMedia?variables=%7B%7D", true},
		{"relative_graphql", "/api/graphql/ABC123/UserTweets", true},
		{"bare_graphql_path", "/api/graphql", true},
		{"other_api", "/i/api/2/notifications/all.json", false},
		{"static_asset", "https://abs.twimg.com/responsive-web/client-web/main.js", false},
		{"graphql_only_in_query", "/search?q=/api/graphql", false},
		{"malformed", "http://[::1", false},
		{"empty", "", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := rule.IsMatch(tt.url); got != tt.want {
				t.Fatalf("IsMatch(%q) = %v; want %v", tt.url, got, tt.want)
			}
		})
	}
}

func TestIsMatchFirstPredicateWins(t *testing.T) {
	prefix, err := NewPredicate(KindPrefix, "/graphql")
	if err != nil {
		t.Fatalf("NewPredicate() error = %v", err)
	}
	re, err := NewPredicate(KindRegexp, `^/v\d+/gql$`)
	if err != nil {
		t.Fatalf("NewPredicate() error = %v", err)
	}
	rule := &Rule{Predicates: []Predicate{prefix, re}, Origin: testOrigin(t)}

	if !rule.IsMatch("/graphql?query=1") {
		t.Fatalf("IsMatch(prefix) = false; want true")
	}
	if !rule.IsMatch("/v2/gql") {
		t.Fatalf("IsMatch(regexp) = false; want true")
	}
	if rule.IsMatch("/api/graphql") {
		t.Fatalf("IsMatch(/api/graphql) = true; want false with custom predicates")
	}
}

func TestNewPredicateRejectsInvalid(t *testing.T) {
	if _, err := NewPredicate(KindRegexp, "("); err == nil {
		t.Fatalf("NewPredicate(bad regexp) = nil; want error")
	}
	if _, err := NewPredicate("glob", "*"); err == nil {
		t.Fatalf("NewPredicate(unknown kind) = nil; want error")
	}
	if _, err := NewPredicate(KindSubstring, ""); err == nil {
		t.Fatalf("NewPredicate(empty pattern) = nil; want error")
	}
}

func TestParseURL(t *testing.T) {
	info := ParseURL("/i/api/graphql/h/Op?a=1&a=2&b=x", testOrigin(t))
	if got, want := info.Href, "https://x.com/i/api/graphql/h/Op?a=1&a=2&b=x"; got != want {
		t.Fatalf("Href = %q; want %q", got, want)
	}
	if got, want := info.Pathname, "/i/api/graphql/h/Op"; got != want {
		t.Fatalf("Pathname = %q; want %q", got, want)
	}
	if got, want := info.Query["a"], "2"; got != want {
		t.Fatalf("Query[a] = %q; want %q", got, want)
	}

	bad := ParseURL("http://[::1", nil)
	if bad.Href != "http://[::1" || bad.Pathname != "" || len(bad.Query) != 0 {
		t.Fatalf("ParseURL(malformed) = %+v; want raw href with empty path and query", bad)
	}
}

func TestExtractOperation(t *testing.T) {
	origin := testOrigin(t)

	tests := []struct {
		name string
		url  string
		body types.Body
		want string
	}{
		{
			name: "path_segment_after_marker",
			url:  "https://x.com/api/graphql/ABC123/UserMedia",
			body: types.EmptyBody(),
			want: "UserMedia",
		},
		{
			name: "path_wins_over_body",
			url:  "/i/api/graphql/ABC123/UserMedia",
			body: types.ParseBody(`{"operationName":"Other"}`, "application/json"),
			want: "UserMedia",
		},
		{
			name: "variables_query_param",
			url:  "/api/graphql?variables=" + url.QueryEscape(`{"operationName":"FromVars"}`),
			body: types.EmptyBody(),
			want: "FromVars",
		},
		{
			name: "operation_name_query_param",
			url:  "/api/graphql?operationName=FromQuery",
			body: types.EmptyBody(),
			want: "FromQuery",
		},
		{
			name: "json_body",
			url:  "/api/graphql",
			body: types.ParseBody(`{"operationName":"Foo"}`, ""),
			want: "Foo",
		},
		{
			name: "nested_variables_in_body",
			url:  "/api/graphql",
			body: types.ParseBody(`{"variables":{"operationName":"Nested"}}`, "application/json"),
			want: "Nested",
		},
		{
			name: "marker_without_enough_segments",
			url:  "/api/graphql/ABC123",
			body: types.RawBody("query { me }"),
			want: types.UnknownOperation,
		},
		{
			name: "nothing_recognizable",
			url:  "/api/graphql",
			body: types.ParseBody(`{"query":"{ me }"}`, "application/json"),
			want: types.UnknownOperation,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			info := ParseURL(tt.url, origin)
			if got := ExtractOperation(info, tt.body, nil); got != tt.want {
				t.Fatalf("ExtractOperation(%q) = %q; want %q", tt.url, got, tt.want)
			}
		})
	}
}

func TestShouldKeep(t *testing.T) {
	base := Rule{Predicates: DefaultPredicates(), Origin: testOrigin(t)}
	matching := "/i/api/graphql/ABC123/UserMedia"

	t.Run("only_operation_filters_others", func(t *testing.T) {
		rule := base
		rule.OnlyOperation = ptr("UserMedia")
		if rule.ShouldKeep(matching, "Other", ptr(200)) {
			t.Fatalf("ShouldKeep(Other) = true; want false")
		}
		if !rule.ShouldKeep(matching, "UserMedia", ptr(200)) {
			t.Fatalf("ShouldKeep(UserMedia) = false; want true")
		}
	})

	t.Run("nil_only_operation_keeps_all", func(t *testing.T) {
		if !base.ShouldKeep(matching, "Anything", ptr(200)) {
			t.Fatalf("ShouldKeep() = false; want true")
		}
	})

	t.Run("error_status_dropped_when_enabled", func(t *testing.T) {
		rule := base
		rule.DropErrorStatus = true
		if rule.ShouldKeep(matching, "UserMedia", ptr(429)) {
			t.Fatalf("ShouldKeep(429) = true; want false")
		}
		if !rule.ShouldKeep(matching, "UserMedia", ptr(399)) {
			t.Fatalf("ShouldKeep(399) = false; want true")
		}
		if !rule.ShouldKeep(matching, "UserMedia", nil) {
			t.Fatalf("ShouldKeep(nil status) = false; want true")
		}
	})

	t.Run("error_status_kept_when_disabled", func(t *testing.T) {
		if !base.ShouldKeep(matching, "UserMedia", ptr(500)) {
			t.Fatalf("ShouldKeep(500) = false; want true")
		}
	})

	t.Run("non_matching_url", func(t *testing.T) {
		if base.ShouldKeep("/api/v1/users", "UserMedia", ptr(200)) {
			t.Fatalf("ShouldKeep(non graphql) = true; want false")
		}
	})
}
