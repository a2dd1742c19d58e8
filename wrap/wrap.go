// Package wrap decorates emitters, data providers and key-value stores so that
// every asynchronous call they make is registered with an async.Async under
// the wrapper's group.
//
// Groups compose with ":": a wrapper with group "user" makes a call with group
// "load" register as "user:load". Calls without a group register under the
// wrapper's group.
package wrap

import (
	"strings"

	async "github.com/Swind/go-async"
	"github.com/Swind/go-async/registry"
)

// Options configure a wrapper.
type Options struct {
	// Group prefixes the group of every task registered through the wrapper.
	Group string
	// Label and Join apply to calls that set neither.
	Label string
	Join  async.JoinMode
}

// JoinGroup concatenates group path segments with ":", skipping empty ones.
func JoinGroup(parts ...string) string {
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if p != "" {
			out = append(out, p)
		}
	}
	return strings.Join(out, ":")
}

// merge returns the registration options of one call.
func (o Options) merge(call async.Options) async.Options {
	call.Group = JoinGroup(o.Group, call.Group)
	if call.Label == "" {
		call.Label = o.Label
	}
	if call.Join == async.JoinNone {
		call.Join = o.Join
	}
	return call
}

// Filter returns f restricted to the tasks of the wrapper. When f has no
// group, it matches the wrapper's group and every group below it. An Exact
// group is a call group and is prefixed like the calls were. Any other
// matcher sees the full group but only within the wrapper's groups.
func (o Options) Filter(f async.Filter) async.Filter {
	if o.Group == "" {
		return f
	}
	switch m := f.Group.(type) {
	case nil:
		f.Group = Subgroups(o.Group)
	case async.Exact:
		f.Group = async.Exact(JoinGroup(o.Group, string(m)))
	default:
		f.Group = within{scope: Subgroups(o.Group), m: m}
	}
	return f
}

// within matches groups matched by both scope and m.
type within struct {
	scope Subgroups
	m     registry.Matcher
}

func (w within) MatchString(group string) bool {
	return w.scope.MatchString(group) && w.m.MatchString(group)
}

// Subgroups matches group and every group nested below it.
type Subgroups string

// MatchString reports whether group is s or starts with s followed by ":".
func (s Subgroups) MatchString(group string) bool {
	return group == string(s) || strings.HasPrefix(group, string(s)+":")
}
