package console

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"

	"quiz-attempt-service/internal/attempt"
)

const helpText = `commands:
  n              next question
  p              previous question
  j <num>        jump to question number
  s <letter|id>  select an option
  r              mark or unmark for review
  submit         submit (opens the review screen when allowed)
  confirm        confirm from the review screen
  cancel         back from the review screen to the questions
  retry          resend a failed submission
  back           leave the quiz (progress is saved)
  help           show this help
`

var errUnknownCommand = errors.New("unknown command, type help")

// Runner drives one attempt from a line-oriented terminal.
type Runner struct {
	session *attempt.Session
	out     io.Writer
}

func NewRunner(session *attempt.Session, out io.Writer) *Runner {
	return &Runner{session: session, out: out}
}

// Run reads commands from in until the attempt is submitted, the user leaves,
// the input ends or ctx is cancelled. Only cancellation returns an error.
func (r *Runner) Run(ctx context.Context, in io.Reader) error {
	views, cancel := r.session.Subscribe()
	defer cancel()

	done := make(chan struct{})
	defer close(done)
	lines := make(chan string)
	go func() {
		defer close(lines)
		scanner := bufio.NewScanner(in)
		for scanner.Scan() {
			select {
			case lines <- strings.TrimSpace(scanner.Text()):
			case <-done:
				return
			}
		}
	}()

	last := r.session.View()
	r.render(last)
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case view, ok := <-views:
			if !ok {
				if r.session.Status() == attempt.StatusSubmitted {
					r.printf("Quiz submitted.\n")
				}
				return nil
			}
			r.notify(last, view)
			last = view
			if view.Status == attempt.StatusSubmitted {
				return nil
			}
		case line, ok := <-lines:
			if !ok {
				r.printf("Input closed. Progress saved.\n")
				return nil
			}
			if line == "" {
				continue
			}
			finished, err := r.exec(ctx, line)
			if err != nil {
				r.printf("error: %v\n", err)
			}
			if finished {
				return nil
			}
			if line != "help" {
				last = r.session.View()
				r.render(last)
			}
		}
	}
}

// exec applies one command and reports whether the run is over.
func (r *Runner) exec(ctx context.Context, line string) (bool, error) {
	cmd, arg, _ := strings.Cut(line, " ")
	arg = strings.TrimSpace(arg)

	if r.session.View().ExitDialog {
		switch cmd {
		case "c", "continue":
			r.session.ResolveExit(attempt.ChoiceContinue)
			return false, nil
		case "l", "leave":
			r.session.ResolveExit(attempt.ChoiceLeave)
			r.printf("Progress saved. Run take again to resume.\n")
			return true, nil
		}
	}

	var err error
	switch cmd {
	case "n":
		err = r.session.Next()
	case "p":
		err = r.session.Previous()
	case "j":
		n, convErr := strconv.Atoi(arg)
		if convErr != nil {
			return false, fmt.Errorf("jump needs a question number")
		}
		err = r.session.JumpTo(n - 1)
	case "s":
		optionID, ok := r.resolveOption(arg)
		if !ok {
			return false, fmt.Errorf("no option %q on this question", arg)
		}
		err = r.session.SelectOption(ctx, optionID)
	case "r":
		err = r.session.ToggleReview(ctx)
	case "submit":
		err = r.session.RequestSubmit(ctx)
	case "confirm":
		err = r.session.ConfirmSubmit(ctx)
	case "cancel":
		err = r.session.CancelReview()
	case "retry":
		err = r.session.Retry(ctx)
	case "back":
		switch r.session.AttemptExit(attempt.ExitBack) {
		case attempt.DecisionBlock:
			r.printf("Leave the quiz? Your progress is saved. [c]ontinue / [l]eave\n")
		default:
			return true, nil
		}
	case "help":
		r.printf("%s", helpText)
	default:
		return false, errUnknownCommand
	}
	if err != nil {
		return false, err
	}
	if r.session.Status() == attempt.StatusSubmitted {
		r.printf("Quiz submitted.\n")
		return true, nil
	}
	return false, nil
}

// resolveOption accepts an option letter or an option id.
func (r *Runner) resolveOption(arg string) (string, bool) {
	q := r.session.View().Question
	if q == nil || arg == "" {
		return "", false
	}
	for _, opt := range q.Options {
		if strings.EqualFold(opt.Label, arg) || opt.ID == arg {
			return opt.ID, true
		}
	}
	return "", false
}

// notify prints changes pushed by the engine between commands.
func (r *Runner) notify(prev, cur attempt.View) {
	if cur.Status != prev.Status {
		switch cur.Status {
		case attempt.StatusReviewing:
			r.printf("Review: %d answered, %d marked, %d unanswered. Type confirm or cancel.\n",
				cur.Counts.Answered, cur.Counts.Marked, cur.Counts.Unanswered)
		case attempt.StatusSubmitting:
			r.printf("Submitting...\n")
		case attempt.StatusSubmitted:
			r.printf("Quiz submitted.\n")
		}
	}
	if cur.SubmitError != "" && cur.SubmitError != prev.SubmitError {
		r.printf("Submission failed: %s. Type retry.\n", cur.SubmitError)
	}
	if cur.LowTime && !prev.LowTime && cur.Status == attempt.StatusInProgress {
		r.printf("Less than five minutes left (%s).\n", cur.TimeRemaining)
	}
	if cur.ExitDialog && !prev.ExitDialog {
		r.printf("Leave the quiz? Your progress is saved. [c]ontinue / [l]eave\n")
	}
}

func (r *Runner) render(v attempt.View) {
	var b strings.Builder
	fmt.Fprintf(&b, "\n%s  [%s]  time left %s\n", v.Title, v.Status, v.TimeRemaining)
	if q := v.Question; q != nil {
		marked := ""
		if q.MarkedForReview {
			marked = " (marked for review)"
		}
		fmt.Fprintf(&b, "Question %d of %d%s  marks %g", v.CurrentIndex+1, v.TotalQuestions, marked, q.Marks)
		if q.NegativeMarks > 0 {
			fmt.Fprintf(&b, " / -%g", q.NegativeMarks)
		}
		fmt.Fprintf(&b, "\n%s\n", q.Prompt)
		for _, opt := range q.Options {
			sel := " "
			if opt.Selected {
				sel = "x"
			}
			fmt.Fprintf(&b, "  [%s] %s) %s\n", sel, opt.Label, opt.Text)
		}
	}
	fmt.Fprintf(&b, "answered %d  marked %d  unanswered %d\n", v.Counts.Answered, v.Counts.Marked, v.Counts.Unanswered)
	for _, p := range v.Palette {
		cell := strconv.Itoa(p.Index + 1)
		if p.Answered {
			cell += "*"
		}
		if p.Marked {
			cell += "?"
		}
		if p.Current {
			cell = "<" + cell + ">"
		}
		fmt.Fprintf(&b, "%s ", cell)
	}
	b.WriteString("\n> ")
	r.printf("%s", b.String())
}

func (r *Runner) printf(format string, args ...any) {
	fmt.Fprintf(r.out, format, args...)
}
