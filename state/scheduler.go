package state

import (
	"fmt"
	"time"
)

// Dispatch queues the function to run on the main goroutine without
// waiting for it to complete. A dispatch racing shutdown is dropped.
func (e *Env) Dispatch(fun func(*State) error) {
	defer func() {
		if r := recover(); r != nil {
			e.Cancel(fmt.Errorf("panic: %v", r))
		}
	}()
	select {
	case e.DispatchChannel <- fun:
	case <-e.Context.Done():
	}
}

// DispatchWait queues the function to run on the main goroutine and
// waits for its result. The error belongs to the caller; it does not
// abort the main loop.
func (e *Env) DispatchWait(fun func(*State) (any, error)) (any, error) {
	ret := make(chan Pair[any, error], 1)
	e.Dispatch(func(s *State) error {
		res, err := fun(s)
		ret <- Pair[any, error]{res, err}
		return nil
	})
	select {
	case res := <-ret:
		return res.V1, res.V2
	case <-e.Context.Done():
		return nil, e.Context.Err()
	}
}

// ScheduleTask runs the function on the main goroutine after delay.
func (e *Env) ScheduleTask(fun func(*State) error, delay time.Duration) {
	time.AfterFunc(delay, func() {
		e.Dispatch(fun)
	})
}

func (e *Env) repeatedTask(fun func(*State) error, period time.Duration) {
	t := time.NewTicker(period)
	defer t.Stop()
	e.Dispatch(fun)
	for {
		select {
		case <-e.Context.Done():
			return
		case <-t.C:
			e.Dispatch(fun)
		}
	}
}

// RepeatTask dispatches the function immediately and then once per
// period until the context is cancelled. The ticker keeps its own
// phase; one-shot dispatches of the same function do not reset it.
func (e *Env) RepeatTask(fun func(*State) error, period time.Duration) {
	go e.repeatedTask(fun, period)
}
