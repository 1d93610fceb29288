package queue

import (
	"context"
	"fmt"
	"reflect"

	"github.com/flowmesh/agentcore/event"
)

// selectFirst blocks until the first of cases' channels yields a value or
// ctx ends, using reflect.Select for a fan-in over an arbitrary number of
// channels (the queue count is configuration-driven, not a compile-time
// constant, so a hand-written select statement can't enumerate it).
func selectFirst(ctx context.Context, cases []selectCase) (event.Event, Kind, error) {
	selCases := make([]reflect.SelectCase, 0, len(cases)+1)
	for _, c := range cases {
		selCases = append(selCases, reflect.SelectCase{
			Dir:  reflect.SelectRecv,
			Chan: reflect.ValueOf(c.ch),
		})
	}
	selCases = append(selCases, reflect.SelectCase{
		Dir:  reflect.SelectRecv,
		Chan: reflect.ValueOf(ctx.Done()),
	})

	chosen, recv, _ := reflect.Select(selCases)
	if chosen == len(cases) {
		return event.Event{}, "", ctx.Err()
	}
	evt, ok := recv.Interface().(event.Event)
	if !ok {
		return event.Event{}, "", fmt.Errorf("queue: unexpected value on %s", cases[chosen].kind)
	}
	return evt, cases[chosen].kind, nil
}
