package attempt

import "sync"

// ExitKind distinguishes how the user tried to leave the session.
type ExitKind string

const (
	// ExitUnload is a tab close, reload or process termination.
	ExitUnload ExitKind = "unload"
	// ExitBack is a back/history navigation inside the host.
	ExitBack ExitKind = "back"
)

// Decision tells the host what to do with an attempted exit.
type Decision string

const (
	// DecisionAllow lets the navigation proceed.
	DecisionAllow Decision = "allow"
	// DecisionConfirm asks the host to show its native confirmation prompt.
	DecisionConfirm Decision = "confirm"
	// DecisionBlock cancels the navigation; the in-app dialog is now open.
	DecisionBlock Decision = "block"
)

// Choice is the user's answer to the in-app exit dialog.
type Choice string

const (
	ChoiceContinue Choice = "continue"
	ChoiceLeave    Choice = "leave"
)

// NavigationInterceptor is the host capability behind the guard: browser
// events, OS signal handlers, or nothing at all in headless contexts.
type NavigationInterceptor interface {
	Arm()
	Disarm()
	OnAttemptedExit(handler func(kind ExitKind) Decision)
}

// NoopInterceptor never sees exit attempts.
type NoopInterceptor struct{}

func (NoopInterceptor) Arm()                                    {}
func (NoopInterceptor) Disarm()                                 {}
func (NoopInterceptor) OnAttemptedExit(func(ExitKind) Decision) {}

// Guard decides what happens when the user tries to leave an in-progress
// session. It never touches persisted state: leaving keeps the session
// resumable.
type Guard struct {
	interceptor NavigationInterceptor

	mu       sync.Mutex
	armed    bool
	dialog   bool
	onDialog func()
}

func NewGuard(interceptor NavigationInterceptor) *Guard {
	if interceptor == nil {
		interceptor = NoopInterceptor{}
	}
	g := &Guard{interceptor: interceptor}
	interceptor.OnAttemptedExit(g.HandleExit)
	return g
}

// OnDialog registers a callback fired whenever the in-app dialog opens or closes.
func (g *Guard) OnDialog(fn func()) {
	g.mu.Lock()
	g.onDialog = fn
	g.mu.Unlock()
}

func (g *Guard) Arm() {
	g.mu.Lock()
	g.armed = true
	g.mu.Unlock()
	g.interceptor.Arm()
}

// Disarm stops intercepting; any open dialog is dismissed.
func (g *Guard) Disarm() {
	g.mu.Lock()
	g.armed = false
	changed := g.dialog
	g.dialog = false
	notify := g.onDialog
	g.mu.Unlock()
	g.interceptor.Disarm()
	if changed && notify != nil {
		notify()
	}
}

func (g *Guard) Armed() bool {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.armed
}

// DialogOpen reports whether the continue/leave dialog is showing.
func (g *Guard) DialogOpen() bool {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.dialog
}

// HandleExit is invoked by the interceptor for every exit attempt.
func (g *Guard) HandleExit(kind ExitKind) Decision {
	g.mu.Lock()
	if !g.armed {
		g.mu.Unlock()
		return DecisionAllow
	}
	if kind == ExitUnload {
		g.mu.Unlock()
		return DecisionConfirm
	}
	opened := !g.dialog
	g.dialog = true
	notify := g.onDialog
	g.mu.Unlock()
	if opened && notify != nil {
		notify()
	}
	return DecisionBlock
}

// Resolve closes the in-app dialog. Continue keeps the user in the session;
// leave lets the pending navigation proceed with state left intact.
func (g *Guard) Resolve(choice Choice) Decision {
	g.mu.Lock()
	wasOpen := g.dialog
	g.dialog = false
	armed := g.armed
	notify := g.onDialog
	g.mu.Unlock()
	if wasOpen && notify != nil {
		notify()
	}
	if !armed || choice == ChoiceLeave {
		return DecisionAllow
	}
	return DecisionBlock
}
