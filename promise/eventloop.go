package promise

import (
	"github.com/joeycumines/go-eventloop"
)

// FromEventloop returns a promise that settles like p, such as the result of
// eventloop.Loop.Promisify. A rejection reason that is not an error is
// wrapped in an *eventloop.ErrorWrapper.
func FromEventloop(p eventloop.Promise) *Promise {
	out := newPending()
	go func() {
		r := <-p.ToChannel()
		if p.State() != eventloop.Rejected {
			out.resolve(r)
			return
		}
		if err, ok := r.(error); ok {
			out.reject(err)
			return
		}
		out.reject(&eventloop.ErrorWrapper{Value: r})
	}()
	return out
}
