package async

import (
	"fmt"
	"runtime/debug"
	"sync"

	"github.com/Swind/go-async/core"
	"github.com/Swind/go-async/registry"
)

// HandlerError describes a handler that returned an error or panicked. It is
// never returned to the caller that registered the handler; it goes to the
// error sink.
type HandlerError struct {
	ID        ID
	Namespace Namespace
	Group     string
	Label     string
	Err       error
	Panic     any
	Stack     []byte
}

func (e *HandlerError) Error() string {
	if e.Panic != nil {
		return fmt.Sprintf("%s handler %d panicked: %v", e.Namespace, e.ID, e.Panic)
	}
	return fmt.Sprintf("%s handler %d failed: %v", e.Namespace, e.ID, e.Err)
}

func (e *HandlerError) Unwrap() error {
	if e.Err != nil {
		return e.Err
	}
	if err, ok := e.Panic.(error); ok {
		return err
	}
	return nil
}

// ErrorSink receives handler failures.
type ErrorSink func(err *HandlerError)

var globalSink struct {
	sync.RWMutex
	sink ErrorSink
}

// SetErrorSink replaces the process-wide error sink and returns the previous
// one. A nil sink restores the default, which logs through core.DefaultLogger.
func SetErrorSink(sink ErrorSink) ErrorSink {
	globalSink.Lock()
	defer globalSink.Unlock()
	prev := globalSink.sink
	globalSink.sink = sink
	return prev
}

func processSink() ErrorSink {
	globalSink.RLock()
	defer globalSink.RUnlock()
	if globalSink.sink != nil {
		return globalSink.sink
	}
	return defaultSink
}

var defaultLogger core.Logger = core.NewDefaultLogger()

func defaultSink(err *HandlerError) {
	defaultLogger.Error("async handler failed",
		core.F("id", uint64(err.ID)),
		core.F("namespace", err.Namespace.String()),
		core.F("group", err.Group),
		core.F("error", err.Error()),
	)
}

// invoke runs a handler of t and funnels its error or panic to the sink.
func (a *Async) invoke(t *registry.Task, fn func() error) {
	var herr *HandlerError
	func() {
		defer func() {
			if p := recover(); p != nil {
				herr = a.handlerError(t)
				herr.Panic = p
				herr.Stack = debug.Stack()
			}
		}()
		if err := fn(); err != nil {
			herr = a.handlerError(t)
			herr.Err = err
		}
	}()
	if herr != nil {
		a.report(herr)
	}
}

func (a *Async) handlerError(t *registry.Task) *HandlerError {
	return &HandlerError{
		ID:        t.ID(),
		Namespace: t.Namespace(),
		Group:     t.Group(),
		Label:     t.Label(),
	}
}

func (a *Async) report(herr *HandlerError) {
	a.metrics.RecordHandlerFailure(herr.Namespace.String())

	sink := a.sink
	if sink == nil {
		sink = processSink()
	}
	defer func() {
		if p := recover(); p != nil {
			a.logger.Error("error sink panicked",
				core.F("panic", p),
				core.F("error", herr.Error()),
			)
		}
	}()
	sink(herr)
}
