package console

import (
	"os"
	"os/signal"
	"sync"
	"syscall"

	"quiz-attempt-service/internal/attempt"
)

// SignalInterceptor turns SIGINT into a back navigation and SIGTERM into an
// unload while the guard is armed. onLeave runs for every exit the guard
// lets through.
type SignalInterceptor struct {
	onLeave func()

	mu      sync.Mutex
	handler func(attempt.ExitKind) attempt.Decision
	signals chan os.Signal
	stop    chan struct{}
}

func NewSignalInterceptor(onLeave func()) *SignalInterceptor {
	return &SignalInterceptor{onLeave: onLeave}
}

func (i *SignalInterceptor) OnAttemptedExit(handler func(attempt.ExitKind) attempt.Decision) {
	i.mu.Lock()
	i.handler = handler
	i.mu.Unlock()
}

func (i *SignalInterceptor) Arm() {
	i.mu.Lock()
	defer i.mu.Unlock()
	if i.signals != nil {
		return
	}
	i.signals = make(chan os.Signal, 1)
	i.stop = make(chan struct{})
	signal.Notify(i.signals, syscall.SIGINT, syscall.SIGTERM)
	go i.loop(i.signals, i.stop)
}

// Disarm restores default signal handling.
func (i *SignalInterceptor) Disarm() {
	i.mu.Lock()
	defer i.mu.Unlock()
	if i.signals == nil {
		return
	}
	signal.Stop(i.signals)
	close(i.stop)
	i.signals = nil
	i.stop = nil
}

func (i *SignalInterceptor) loop(signals <-chan os.Signal, stop <-chan struct{}) {
	for {
		select {
		case sig := <-signals:
			i.handle(sig)
		case <-stop:
			return
		}
	}
}

func (i *SignalInterceptor) handle(sig os.Signal) attempt.Decision {
	kind := attempt.ExitBack
	if sig == syscall.SIGTERM {
		kind = attempt.ExitUnload
	}

	i.mu.Lock()
	handler := i.handler
	i.mu.Unlock()

	decision := attempt.DecisionAllow
	if handler != nil {
		decision = handler(kind)
	}
	// A terminal has no native prompt, so confirm leaves like allow.
	if decision != attempt.DecisionBlock && i.onLeave != nil {
		i.onLeave()
	}
	return decision
}
