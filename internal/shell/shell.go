// Package shell is a line-oriented front end for the task store.
//
// Input is read on its own goroutine and every store call runs on
// the dispatcher. Results come back through a dispatch.Loop and are
// rendered by the goroutine running Shell.Run, which is the only one
// that writes to the output.
package shell

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/rs/zerolog"

	"github.com/adanyl0v/tasktracker/internal/dispatch"
	"github.com/adanyl0v/tasktracker/internal/export"
	"github.com/adanyl0v/tasktracker/internal/models"
	"github.com/adanyl0v/tasktracker/internal/services"
)

type Shell struct {
	logger     zerolog.Logger
	tasks      services.TaskService
	dispatcher *dispatch.Dispatcher
	exporter   *export.Exporter
	validate   *validator.Validate
	loop       *dispatch.Loop
	in         io.Reader
	out        io.Writer

	lines <-chan string
	// Only touched by the Run goroutine.
	pending  int
	awaiting bool
}

func New(
	logger zerolog.Logger,
	tasks services.TaskService,
	dispatcher *dispatch.Dispatcher,
	in io.Reader,
	out io.Writer,
) *Shell {
	return &Shell{
		logger:     logger,
		tasks:      tasks,
		dispatcher: dispatcher,
		exporter:   export.NewExporter("Tasks"),
		validate:   validator.New(validator.WithRequiredStructEnabled()),
		loop:       dispatch.NewLoop(),
		in:         in,
		out:        out,
	}
}

// Run serves commands until quit, end of input or ctx is done.
// Before returning it waits for outstanding store calls and
// renders their results.
func (s *Shell) Run(ctx context.Context) error {
	lines := make(chan string)
	stop := make(chan struct{})
	defer close(stop)
	go s.readLines(lines, stop)
	s.lines = lines

	s.println("Task tracker. Type \"help\" for commands.")
	s.refresh()

	for {
		var in <-chan string
		if !s.awaiting {
			in = lines
		}

		select {
		case <-ctx.Done():
			s.logger.Info().Msg("shell interrupted")
			return ctx.Err()
		case <-s.loop.Wake():
			s.loop.Drain()
		case line, ok := <-in:
			if !ok || s.handle(ctx, line) {
				return s.finish(ctx)
			}
		}
	}
}

func (s *Shell) finish(ctx context.Context) error {
	for s.pending > 0 {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-s.loop.Wake():
			s.loop.Drain()
		}
	}
	s.println("Bye.")
	return nil
}

// readLines feeds lines until the input ends. A blocked read
// can't be interrupted, so the goroutine outlives Run until the
// next line or EOF arrives.
func (s *Shell) readLines(lines chan<- string, stop <-chan struct{}) {
	defer close(lines)

	scanner := bufio.NewScanner(s.in)
	for scanner.Scan() {
		select {
		case lines <- scanner.Text():
		case <-stop:
			return
		}
	}
	if err := scanner.Err(); err != nil {
		s.logger.Error().
			Err(err).
			Msg("failed to read input")
	}
}

// readLine reads a form answer on the Run goroutine. It returns
// false if the input ended or ctx is done.
func (s *Shell) readLine(ctx context.Context, label string) (string, bool) {
	fmt.Fprintf(s.out, "%s: ", label)
	select {
	case <-ctx.Done():
		return "", false
	case line, ok := <-s.lines:
		if !ok {
			s.println("")
		}
		return strings.TrimSpace(line), ok
	}
}

// run dispatches fn and calls onOK with its result on the Run
// goroutine. Failures are reported instead.
func run[T any](s *Shell, name string, fn func(ctx context.Context) (T, error), onOK func(T)) {
	s.pending++
	dispatch.SubmitTo(s.dispatcher, s.loop, name, fn, func(v T, err error) {
		s.pending--
		if err != nil {
			s.reportError(name, err)
			return
		}
		onOK(v)
	})
}

func (s *Shell) refresh() {
	run(s, "list tasks", s.tasks.ListTasks, func(tasks []models.Task) {
		s.render("Tasks", tasks)
	})
}

func (s *Shell) render(header string, tasks []models.Task) {
	if len(tasks) == 0 {
		s.printf("%s: none\n", header)
		return
	}
	s.printf("%s (%d):\n", header, len(tasks))
	for _, task := range tasks {
		s.printf("  %s\n", task)
	}
}

func (s *Shell) reportError(op string, err error) {
	if errors.Is(err, services.ErrStorageUnavailable) {
		s.logger.Error().
			Err(err).
			Str("op", op).
			Msg("storage failure")
	}
	s.printf("error: %s: %v\n", op, err)
}

func (s *Shell) validationError(err error) string {
	var errs validator.ValidationErrors
	if !errors.As(err, &errs) {
		return err.Error()
	}

	msgs := make([]string, 0, len(errs))
	for _, fe := range errs {
		field := strings.ToLower(fe.Field())
		switch fe.Tag() {
		case "required":
			msgs = append(msgs, field+" is required")
		case "max":
			msgs = append(msgs, fmt.Sprintf("%s must be at most %s characters", field, fe.Param()))
		default:
			msgs = append(msgs, fmt.Sprintf("%s is invalid (%s)", field, fe.Tag()))
		}
	}
	return strings.Join(msgs, ", ")
}

func (s *Shell) println(msg string) {
	fmt.Fprintln(s.out, msg)
}

func (s *Shell) printf(format string, args ...any) {
	fmt.Fprintf(s.out, format, args...)
}
