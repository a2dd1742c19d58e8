package async

import (
	"github.com/Swind/go-async/core"
	"github.com/Swind/go-async/registry"
)

// Re-export commonly used types from the registry package for convenience.
// This allows users to import only the async package for most use cases.

// ID identifies a registered task
type ID = registry.ID

// Filter selects tasks within a namespace
type Filter = registry.Filter

// Namespace is the kind of primitive a task wraps
type Namespace = registry.Namespace

// Exact matches a group by string equality
type Exact = registry.Exact

// JoinMode controls single-flight merging
type JoinMode = registry.JoinMode

// ClearReason says why a task left the registry
type ClearReason = registry.ClearReason

// Task is a live registration
type Task = registry.Task

// IdleDeadline is handed to idle callbacks
type IdleDeadline = core.IdleDeadline

// Namespace constants
const (
	Timeout        = registry.Timeout
	Interval       = registry.Interval
	Immediate      = registry.Immediate
	IdleCallback   = registry.IdleCallback
	AnimationFrame = registry.AnimationFrame
	EventListener  = registry.EventListener
	Promise        = registry.Promise
	Proxy          = registry.Proxy
	Worker         = registry.Worker
)

// Join modes
const (
	JoinNone    = registry.JoinNone
	JoinMerge   = registry.JoinMerge
	JoinReplace = registry.JoinReplace
)

// Clear reasons
const (
	ReasonCancelled = registry.ReasonCancelled
	ReasonReplaced  = registry.ReasonReplaced
	ReasonCompleted = registry.ReasonCompleted
)

// Filter constructors
var (
	ByID    = registry.ByID
	ByGroup = registry.ByGroup
	ByLabel = registry.ByLabel
)

// All selects every task of a namespace.
var All = Filter{}
