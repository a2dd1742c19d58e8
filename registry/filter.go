package registry

// Matcher matches a group string. *regexp.Regexp satisfies it, and so does Exact.
type Matcher interface {
	MatchString(group string) bool
}

// Exact matches a group by string equality.
type Exact string

// MatchString reports whether group equals e.
func (e Exact) MatchString(group string) bool {
	return string(e) == group
}

// Filter selects tasks within a namespace. Every set field must match (AND).
// The zero Filter selects every task in the namespace.
type Filter struct {
	// ID selects a single task. Zero means unset.
	ID ID
	// Group is matched against the stored group string. Tasks without a
	// group never match a group filter. Nil means unset.
	Group Matcher
	// Label selects tasks by exact label. Empty means unset.
	Label string
}

// ByID selects the task with the given id.
func ByID(id ID) Filter {
	return Filter{ID: id}
}

// ByGroup selects tasks whose group matches m.
func ByGroup(m Matcher) Filter {
	return Filter{Group: m}
}

// ByLabel selects tasks with the given label.
func ByLabel(label string) Filter {
	return Filter{Label: label}
}

// IsZero reports whether f selects every task.
func (f Filter) IsZero() bool {
	return f.ID == 0 && f.Group == nil && f.Label == ""
}

func (f Filter) matches(t *Task) bool {
	if f.ID != 0 && t.id != f.ID {
		return false
	}
	if f.Group != nil && (t.group == "" || !f.Group.MatchString(t.group)) {
		return false
	}
	if f.Label != "" && t.label != f.Label {
		return false
	}
	return true
}

// Flag is a state change applied by Mark.
type Flag int

const (
	Mute Flag = iota
	Unmute
	Suspend
	Unsuspend
)

func (f Flag) String() string {
	switch f {
	case Mute:
		return "muted"
	case Unmute:
		return "!muted"
	case Suspend:
		return "paused"
	case Unsuspend:
		return "!paused"
	default:
		return "flag(?)"
	}
}
