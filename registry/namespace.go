package registry

import "fmt"

// Namespace is the kind of underlying primitive a task wraps.
type Namespace int

const (
	Timeout Namespace = iota
	Interval
	Immediate
	IdleCallback
	AnimationFrame
	EventListener
	Promise
	Proxy
	Worker

	numNamespaces
)

// Namespaces lists every namespace in declaration order.
var Namespaces = []Namespace{
	Timeout,
	Interval,
	Immediate,
	IdleCallback,
	AnimationFrame,
	EventListener,
	Promise,
	Proxy,
	Worker,
}

func (n Namespace) String() string {
	switch n {
	case Timeout:
		return "timeout"
	case Interval:
		return "interval"
	case Immediate:
		return "immediate"
	case IdleCallback:
		return "idleCallback"
	case AnimationFrame:
		return "animationFrame"
	case EventListener:
		return "eventListener"
	case Promise:
		return "promise"
	case Proxy:
		return "proxy"
	case Worker:
		return "worker"
	default:
		return fmt.Sprintf("namespace(%d)", int(n))
	}
}

// Valid reports whether n is one of the declared namespaces.
func (n Namespace) Valid() bool {
	return n >= Timeout && n < numNamespaces
}
