package cmd

import (
	"strings"
	"sync"
	"testing"
	"time"

	"go.uber.org/zap/zaptest"
)

func TestStopInOrderWaitsForEachStage(t *testing.T) {
	var (
		mu    sync.Mutex
		order []string
	)
	record := func(name string) {
		mu.Lock()
		order = append(order, name)
		mu.Unlock()
	}

	botDone := make(chan struct{})
	schedDone := make(chan struct{})
	// The scheduler takes a while to drain; the api must not be cancelled
	// before it reports done.
	sched := stage{name: "scheduler", done: schedDone, cancel: func() {
		record("scheduler")
		go func() {
			time.Sleep(20 * time.Millisecond)
			record("scheduler stopped")
			close(schedDone)
		}()
	}}
	api := stage{name: "api", cancel: func() { record("api") }}

	finished := make(chan struct{})
	go func() {
		stopInOrder(zaptest.NewLogger(t), botDone, sched, api)
		close(finished)
	}()

	select {
	case <-finished:
		t.Fatal("stages stopped before the bot finished")
	case <-time.After(20 * time.Millisecond):
	}
	mu.Lock()
	if len(order) != 0 {
		t.Errorf("cancelled %v before the bot finished", order)
	}
	mu.Unlock()

	record("bot stopped")
	close(botDone)
	select {
	case <-finished:
	case <-time.After(time.Second):
		t.Fatal("stopInOrder did not return")
	}

	want := "bot stopped,scheduler,scheduler stopped,api"
	if got := strings.Join(order, ","); got != want {
		t.Errorf("order = %s, want %s", got, want)
	}
}
