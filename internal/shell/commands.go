package shell

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"

	"golang.org/x/sync/errgroup"

	"github.com/adanyl0v/tasktracker/internal/dispatch"
	"github.com/adanyl0v/tasktracker/internal/export"
	"github.com/adanyl0v/tasktracker/internal/models"
	"github.com/adanyl0v/tasktracker/internal/services"
)

const helpText = `Commands:
  list                      show all tasks
  search <query>            show tasks whose title or description contains query
  add                       create a task
  edit <id>                 change title, description and category
  status <id> <label>       set the status label
  done <id>                 mark a task as Done
  delete <id>               delete a task
  export <format> <path>    write tasks as json, csv, pdf or all
  help                      show this text
  quit                      exit`

// handle runs one command line and reports whether the shell
// should stop.
func (s *Shell) handle(ctx context.Context, line string) bool {
	cmd, args, _ := strings.Cut(strings.TrimSpace(line), " ")
	args = strings.TrimSpace(args)

	switch strings.ToLower(cmd) {
	case "":
	case "quit", "exit":
		return true
	case "help":
		s.println(helpText)
	case "list":
		s.refresh()
	case "search":
		s.search(args)
	case "add":
		s.add(ctx)
	case "edit":
		if id, ok := s.parseID(args); ok {
			s.edit(ctx, id)
		}
	case "status":
		rawID, label, _ := strings.Cut(args, " ")
		label = strings.TrimSpace(label)
		if label == "" {
			s.println("usage: status <id> <label>")
			return false
		}
		if id, ok := s.parseID(rawID); ok {
			s.setStatus(id, label)
		}
	case "done":
		if id, ok := s.parseID(args); ok {
			s.setStatus(id, models.StatusDone)
		}
	case "delete":
		if id, ok := s.parseID(args); ok {
			s.deleteTask(ctx, id)
		}
	case "export":
		format, path, _ := strings.Cut(args, " ")
		path = strings.TrimSpace(path)
		if format == "" || path == "" {
			s.println("usage: export <json|csv|pdf|all> <path>")
			return false
		}
		s.exportTasks(strings.ToLower(format), path)
	default:
		s.printf("unknown command %q, type \"help\"\n", cmd)
	}
	return false
}

func (s *Shell) parseID(raw string) (int64, bool) {
	id, err := strconv.ParseInt(strings.TrimSpace(raw), 10, 64)
	if err != nil || id <= 0 {
		s.printf("invalid task id %q\n", raw)
		return 0, false
	}
	return id, true
}

// search treats a blank query as list.
func (s *Shell) search(query string) {
	if strings.TrimSpace(query) == "" {
		s.refresh()
		return
	}

	run(s, "search tasks",
		func(ctx context.Context) ([]models.Task, error) {
			return s.tasks.SearchTasks(ctx, query)
		},
		func(tasks []models.Task) {
			s.render(fmt.Sprintf("Tasks matching %q", query), tasks)
		},
	)
}

func (s *Shell) add(ctx context.Context) {
	title, ok := s.readLine(ctx, "Title")
	if !ok {
		return
	}
	description, ok := s.readLine(ctx, "Description")
	if !ok {
		return
	}
	category, ok := s.readLine(ctx, "Category")
	if !ok {
		return
	}

	task := models.NewTask(title, description, category)
	if err := s.validate.Struct(task); err != nil {
		s.printf("task not created: %s\n", s.validationError(err))
		return
	}

	run(s, "create task",
		func(ctx context.Context) (int64, error) {
			return s.tasks.CreateTask(ctx, task)
		},
		func(id int64) {
			s.printf("created task %d\n", id)
			s.refresh()
		},
	)
}

// edit fetches the task first. Input is held until the fetch
// completes so that form answers aren't read as commands.
func (s *Shell) edit(ctx context.Context, id int64) {
	s.pending++
	s.awaiting = true
	dispatch.SubmitTo(s.dispatcher, s.loop, "get task",
		func(ctx context.Context) (models.Task, error) {
			return s.tasks.GetTask(ctx, id)
		},
		func(task models.Task, err error) {
			s.pending--
			s.awaiting = false
			switch {
			case errors.Is(err, services.ErrTaskNotFound):
				s.printf("task %d not found\n", id)
			case err != nil:
				s.reportError("get task", err)
			default:
				s.editForm(ctx, task)
			}
		},
	)
}

func (s *Shell) editForm(ctx context.Context, task models.Task) {
	fields := []struct {
		label string
		value *string
	}{
		{label: "Title", value: &task.Title},
		{label: "Description", value: &task.Description},
		{label: "Category", value: &task.Category},
	}
	for _, f := range fields {
		answer, ok := s.readLine(ctx, fmt.Sprintf("%s [%s]", f.label, *f.value))
		if !ok {
			return
		}
		if answer != "" {
			*f.value = answer
		}
	}

	if err := s.validate.Struct(task); err != nil {
		s.printf("task not updated: %s\n", s.validationError(err))
		return
	}

	run(s, "update task",
		func(ctx context.Context) (struct{}, error) {
			return struct{}{}, s.tasks.UpdateTask(ctx, task)
		},
		func(struct{}) {
			s.printf("updated task %d\n", task.ID)
			s.refresh()
		},
	)
}

// setStatus reads and rewrites the task in a single job, since
// updates replace every editable field.
func (s *Shell) setStatus(id int64, status string) {
	if err := s.validate.Var(status, "max=64"); err != nil {
		s.println("status not changed: status must be at most 64 characters")
		return
	}

	run(s, "set task status",
		func(ctx context.Context) (bool, error) {
			task, err := s.tasks.GetTask(ctx, id)
			if errors.Is(err, services.ErrTaskNotFound) {
				return false, nil
			}
			if err != nil {
				return false, err
			}
			task.Status = status
			return true, s.tasks.UpdateTask(ctx, task)
		},
		func(found bool) {
			if !found {
				s.printf("task %d not found\n", id)
				return
			}
			s.printf("task %d is now %s\n", id, status)
			s.refresh()
		},
	)
}

func (s *Shell) deleteTask(ctx context.Context, id int64) {
	answer, ok := s.readLine(ctx, fmt.Sprintf("Delete task %d? [y/N]", id))
	if !ok {
		return
	}
	if a := strings.ToLower(answer); a != "y" && a != "yes" {
		s.println("delete cancelled")
		return
	}

	run(s, "delete task",
		func(ctx context.Context) (struct{}, error) {
			return struct{}{}, s.tasks.DeleteTask(ctx, id)
		},
		func(struct{}) {
			s.printf("deleted task %d\n", id)
			s.refresh()
		},
	)
}

// exportTasks writes the current task list. With format "all" the path
// is used as a base name and every format is written in parallel.
func (s *Shell) exportTasks(format, path string) {
	targets := map[string]string{format: path}
	if format == "all" {
		targets = map[string]string{
			export.FormatJSON: path + ".json",
			export.FormatCSV:  path + ".csv",
			export.FormatPDF:  path + ".pdf",
		}
	}

	run(s, "export tasks",
		func(ctx context.Context) (int, error) {
			tasks, err := s.tasks.ListTasks(ctx)
			if err != nil {
				return 0, err
			}

			g := new(errgroup.Group)
			for f, p := range targets {
				g.Go(func() error {
					data, err := s.exporter.Export(tasks, f)
					if err != nil {
						return err
					}
					if err := os.WriteFile(p, data, 0o644); err != nil {
						return fmt.Errorf("failed to write %s: %w", p, err)
					}
					return nil
				})
			}
			if err := g.Wait(); err != nil {
				return 0, err
			}
			return len(tasks), nil
		},
		func(n int) {
			s.printf("exported %d tasks as %s to %s\n", n, format, path)
		},
	)
}
