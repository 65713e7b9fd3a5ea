package learnings

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/reelforge/reelforge/pkg/faults"
)

// Namespace is a parsed hierarchical path. The grammar is closed:
//
//	/platform[/rest...]
//	/org/{org}[/rest...]
//	/org/{org}/actor/{actor}[/rest...]
//	/org/{org}/actor/{actor}/sessions/{session}[/rest...]
type Namespace struct {
	Raw       string
	Level     Level
	OrgID     string
	ActorID   string
	SessionID string
	// Rest holds the trailing segments after the scope prefix, e.g.
	// ["providers", "luma"] or ["globals"].
	Rest []string
}

var segmentRe = regexp.MustCompile(`^[a-zA-Z0-9_.-]+$`)

// ParseNamespace validates a namespace path against the grammar. Malformed
// paths return an INPUT_INVALID fault.
func ParseNamespace(path string) (Namespace, error) {
	ns := Namespace{Raw: path}
	if !strings.HasPrefix(path, "/") {
		return ns, faults.New(faults.InputInvalid, fmt.Sprintf("namespace %q must start with /", path))
	}
	segs := strings.Split(strings.Trim(path, "/"), "/")
	if len(segs) == 0 || segs[0] == "" {
		return ns, faults.New(faults.InputInvalid, "empty namespace")
	}
	for _, s := range segs {
		if !segmentRe.MatchString(s) {
			return ns, faults.New(faults.InputInvalid, fmt.Sprintf("namespace %q has invalid segment %q", path, s))
		}
	}

	switch segs[0] {
	case "platform":
		ns.Level = LevelPlatform
		ns.Rest = segs[1:]
		return ns, nil
	case "org":
		if len(segs) < 2 {
			return ns, faults.New(faults.InputInvalid, fmt.Sprintf("namespace %q missing org id", path))
		}
		ns.OrgID = segs[1]
		ns.Level = LevelOrg
		rest := segs[2:]
		if len(rest) > 0 && rest[0] == "actor" {
			if len(rest) < 2 {
				return ns, faults.New(faults.InputInvalid, fmt.Sprintf("namespace %q missing actor id", path))
			}
			ns.ActorID = rest[1]
			ns.Level = LevelUser
			rest = rest[2:]
			if len(rest) > 0 && rest[0] == "sessions" {
				if len(rest) < 2 {
					return ns, faults.New(faults.InputInvalid, fmt.Sprintf("namespace %q missing session id", path))
				}
				ns.SessionID = rest[1]
				ns.Level = LevelSession
				rest = rest[2:]
			}
		}
		ns.Rest = rest
		return ns, nil
	default:
		return ns, faults.New(faults.InputInvalid, fmt.Sprintf("namespace %q must start with /platform or /org", path))
	}
}

// String rebuilds the canonical path. Parse then String is the identity for
// valid input.
func (n Namespace) String() string {
	var b strings.Builder
	switch n.Level {
	case LevelPlatform:
		b.WriteString("/platform")
	case LevelOrg:
		b.WriteString("/org/" + n.OrgID)
	case LevelUser:
		b.WriteString("/org/" + n.OrgID + "/actor/" + n.ActorID)
	case LevelSession:
		b.WriteString("/org/" + n.OrgID + "/actor/" + n.ActorID + "/sessions/" + n.SessionID)
	}
	for _, s := range n.Rest {
		b.WriteString("/" + s)
	}
	return b.String()
}

// Parent returns the namespace one level up, carrying Rest along. Session
// paths collapse onto the actor, actor paths onto the org, org paths onto the
// platform. Promotion targets are computed this way.
func (n Namespace) Parent() (Namespace, bool) {
	up := n
	switch n.Level {
	case LevelSession:
		up.Level = LevelUser
		up.SessionID = ""
	case LevelUser:
		up.Level = LevelOrg
		up.ActorID = ""
	case LevelOrg:
		up.Level = LevelPlatform
		up.OrgID = ""
	default:
		return Namespace{}, false
	}
	up.Raw = up.String()
	return up, true
}

var placeholderRe = regexp.MustCompile(`\{([a-zA-Z_]+)\}`)

// BuildNamespace expands a pattern such as "/org/{org_id}/providers/{provider}"
// against the given values. Any unresolved placeholder is an INPUT_INVALID
// fault; the result is never written with literal braces.
func BuildNamespace(pattern string, values map[string]string) (string, error) {
	var missing []string
	out := placeholderRe.ReplaceAllStringFunc(pattern, func(m string) string {
		key := m[1 : len(m)-1]
		if v, ok := values[key]; ok && v != "" {
			return v
		}
		missing = append(missing, key)
		return m
	})
	if len(missing) > 0 {
		return "", faults.New(faults.InputInvalid,
			fmt.Sprintf("namespace pattern %q has unresolved placeholders: %s", pattern, strings.Join(missing, ", ")))
	}
	if _, err := ParseNamespace(out); err != nil {
		return "", err
	}
	return out, nil
}
