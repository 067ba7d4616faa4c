// Package match decides which exchanges are GraphQL traffic of interest
// and derives the operation name a call belongs to.
package match

import (
	"encoding/json"
	"fmt"
	"net/url"
	"regexp"
	"strings"

	"github.com/dgnsrekt/gql_sniffer/internal/types"
)

// PredicateKind selects how a Predicate tests a pathname.
type PredicateKind string

const (
	KindSubstring PredicateKind = "substring"
	KindRegexp    PredicateKind = "regexp"
	KindPrefix    PredicateKind = "prefix"
)

// Predicate is one pathname test. Predicates in a Rule are evaluated in
// order and the first one that matches decides.
type Predicate struct {
	Kind    PredicateKind
	Pattern string
	re      *regexp.Regexp
}

// NewPredicate validates and compiles a predicate.
func NewPredicate(kind PredicateKind, pattern string) (Predicate, error) {
	if pattern == "" {
		return Predicate{}, fmt.Errorf("%s predicate: empty pattern", kind)
	}
	p := Predicate{Kind: kind, Pattern: pattern}
	switch kind {
	case KindSubstring, KindPrefix:
	case KindRegexp:
		re, err := regexp.Compile(pattern)
		if err != nil {
			return Predicate{}, fmt.Errorf("regexp predicate %q: %w", pattern, err)
		}
		p.re = re
	default:
		return Predicate{}, fmt.Errorf("unknown predicate kind %q", kind)
	}
	return p, nil
}

// Test reports whether pathname satisfies the predicate.
func (p Predicate) Test(pathname string) bool {
	switch p.Kind {
	case KindSubstring:
		return strings.Contains(pathname, p.Pattern)
	case KindPrefix:
		return strings.HasPrefix(pathname, p.Pattern)
	case KindRegexp:
		return p.re != nil && p.re.MatchString(pathname)
	}
	return false
}

// DefaultPredicates covers both /api/graphql/<hash>/<Op> and
// /i/api/graphql/<hash>/<Op> endpoints.
func DefaultPredicates() []Predicate {
	return []Predicate{
		{Kind: KindSubstring, Pattern: "/api/graphql"},
		{Kind: KindRegexp, Pattern: `/(i/api|api)/graphql/`, re: regexp.MustCompile(`/(i/api|api)/graphql/`)},
	}
}

// Rule is the keep/drop policy. It is built once from configuration and
// never mutated afterwards.
type Rule struct {
	Predicates      []Predicate
	OnlyOperation   *string
	DropErrorStatus bool
	Origin          *url.URL
}

// IsMatch reports whether rawURL's path satisfies any predicate. URLs that
// cannot be resolved never match.
func (r *Rule) IsMatch(rawURL string) bool {
	u, err := resolve(rawURL, r.Origin)
	if err != nil {
		return false
	}
	for _, p := range r.Predicates {
		if p.Test(u.Path) {
			return true
		}
	}
	return false
}

// ShouldKeep combines the path match, the operation filter and the status
// exclusion. A nil status means no response was seen.
func (r *Rule) ShouldKeep(rawURL, operation string, status *int) bool {
	if !r.IsMatch(rawURL) {
		return false
	}
	if r.OnlyOperation != nil && operation != *r.OnlyOperation {
		return false
	}
	if r.DropErrorStatus && status != nil && *status >= 400 {
		return false
	}
	return true
}

// URLInfo is the parsed form of a request URL.
type URLInfo struct {
	Href     string
	Pathname string
	Query    map[string]string
}

// ParseURL resolves rawURL against origin. On failure the raw string is
// kept as Href with an empty path and query.
func ParseURL(rawURL string, origin *url.URL) URLInfo {
	u, err := resolve(rawURL, origin)
	if err != nil {
		return URLInfo{Href: rawURL, Query: map[string]string{}}
	}
	query := make(map[string]string)
	for k, v := range u.Query() {
		if len(v) > 0 {
			query[k] = v[len(v)-1]
		}
	}
	return URLInfo{Href: u.String(), Pathname: u.Path, Query: query}
}

const markerSegment = "graphql"

// ExtractOperation derives the operation name. Sources are tried in order
// and the first hit wins:
//  1. the segment two after "graphql" in the path
//  2. operationName inside the JSON "variables" query parameter, then the
//     plain operationName query parameter
//  3. operationName in the request body, then variables.operationName
//  4. types.UnknownOperation
//
// Request headers are accepted for call-site symmetry with the capture
// path but carry no operation hint on the sites this targets.
func ExtractOperation(info URLInfo, body types.Body, _ map[string]string) string {
	parts := splitPath(info.Pathname)
	for i, seg := range parts {
		if seg == markerSegment && i+2 < len(parts) {
			return parts[i+2]
		}
	}

	if raw, ok := info.Query["variables"]; ok {
		var vars map[string]any
		if err := json.Unmarshal([]byte(raw), &vars); err == nil {
			if op, ok := vars["operationName"].(string); ok && op != "" {
				return op
			}
		}
	}
	if op := info.Query["operationName"]; op != "" {
		return op
	}

	if v, ok := body.Lookup("operationName"); ok {
		if op, ok := v.(string); ok && op != "" {
			return op
		}
	}
	if v, ok := body.Lookup("variables", "operationName"); ok {
		if op, ok := v.(string); ok && op != "" {
			return op
		}
	}

	return types.UnknownOperation
}

func splitPath(p string) []string {
	var parts []string
	for _, seg := range strings.Split(p, "/") {
		if seg != "" {
			parts = append(parts, seg)
		}
	}
	return parts
}

func resolve(rawURL string, origin *url.URL) (*url.URL, error) {
	ref, err := url.Parse(strings.TrimSpace(rawURL))
	if err != nil {
		return nil, err
	}
	if ref.IsAbs() {
		return ref, nil
	}
	if origin == nil {
		if ref.Path == "" {
			return nil, fmt.Errorf("relative url %q without origin", rawURL)
		}
		return ref, nil
	}
	return origin.ResolveReference(ref), nil
}
