package routing

import (
	"bytes"

	"github.com/relaygw/relay/core/constant"
)

// Route binds a path pattern to exactly one upstream. Supported pattern
// forms, in descending specificity:
//
//	/api/users   exact path
//	/api/*       prefix on a segment boundary, longer prefixes win
//	/            root catch-all, matches anything
//
// Equal specificity is broken by declaration order. A wildcard route
// with strip enabled forwards the captured remainder instead of the
// original path.
type Route struct {
	pattern       []byte
	patternString RoutePatternString

	// literal prefix segments of a wildcard pattern, without the
	// leading empty segment
	prefix   [][]byte
	wildcard bool
	root     bool
	strip    bool

	upstream *Upstream

	rank int
}

func newRoute(pattern []byte, upstream *Upstream, strip bool) (*Route, error) {
	if len(pattern) == 0 || pattern[0] != '/' {
		return nil, ErrInvalidPattern
	}
	r := &Route{
		pattern:       pattern,
		patternString: RoutePatternString(pattern),
		strip:         strip,
		upstream:      upstream,
	}
	if bytes.Equal(pattern, constant.UriSlash) {
		r.root = true
		return r, nil
	}
	segments := bytes.Split(pattern, constant.UriSlash)
	last := segments[len(segments)-1]
	if bytes.Equal(last, constant.AnyMatchIdentifier) {
		r.wildcard = true
		for _, seg := range segments[1 : len(segments)-1] {
			if len(seg) == 0 || bytes.Contains(seg, constant.AnyMatchIdentifier) {
				return nil, ErrInvalidPattern
			}
			r.prefix = append(r.prefix, seg)
		}
		if len(r.prefix) == 0 {
			// "/*" is the root catch-all spelled differently
			r.root = true
			r.wildcard = false
			return r, nil
		}
		r.rank = len(r.prefix)
		return r, nil
	}
	for _, seg := range segments[1:] {
		if bytes.Contains(seg, constant.AnyMatchIdentifier) {
			return nil, ErrInvalidPattern
		}
	}
	// exact patterns always outrank wildcard ones
	r.rank = 1<<16 + len(segments)
	return r, nil
}

func (r *Route) specificity() int {
	return r.rank
}

func (r *Route) Pattern() []byte     { return r.pattern }
func (r *Route) Upstream() *Upstream { return r.upstream }

// match reports whether the path hits this route and returns the path to
// forward upstream.
func (r *Route) match(path []byte, segments [][]byte) (bool, []byte) {
	if r.root {
		return true, path
	}
	if !r.wildcard {
		if bytes.Equal(r.pattern, path) {
			return true, path
		}
		return false, nil
	}
	// leading empty segment of the split path is skipped
	rest := segments[1:]
	if len(rest) < len(r.prefix) {
		return false, nil
	}
	for i, seg := range r.prefix {
		if !bytes.Equal(seg, rest[i]) {
			return false, nil
		}
	}
	if !r.strip {
		return true, path
	}
	remainder := bytes.Join(rest[len(r.prefix):], constant.UriSlash)
	if len(remainder) == 0 {
		return true, constant.UriSlash
	}
	return true, append([]byte("/"), remainder...)
}

// AddRoute installs a pattern bound to a registered upstream name.
func (r *Table) AddRoute(pattern []byte, upstreamName []byte, strip bool) error {
	u, err := r.GetUpstreamByName(upstreamName)
	if err != nil {
		return err
	}
	if _, exists := r.routeTable.Load(RoutePatternString(pattern)); exists {
		logger.Warnf("route already exists: %s", pattern)
		return ErrDuplicateRoute
	}
	route, err := newRoute(pattern, u, strip)
	if err != nil {
		return err
	}
	r.routeTable.Store(route.patternString, route)
	return nil
}

// Match resolves a path to the most specific matching route. The second
// return value is the path to forward upstream after any rewrite.
func (r *Table) Match(path []byte) (*Route, []byte, error) {
	var matched *Route
	var rewritten []byte

	segments := bytes.Split(path, constant.UriSlash)
	r.routeTable.RangeOrdered(func(route *Route) bool {
		if ok, forward := route.match(path, segments); ok {
			matched = route
			rewritten = forward
			return true
		}
		return false
	})
	if matched == nil {
		return nil, nil, ErrNoRoute
	}
	return matched, rewritten, nil
}
