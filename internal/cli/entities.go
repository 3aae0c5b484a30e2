package cli

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/Joseda-hg/lazytracker/internal/model"
	"github.com/Joseda-hg/lazytracker/internal/tracker"
)

func NewListCommand(rootOpts *RootOptions) *cobra.Command {
	var epicID int64

	cmd := &cobra.Command{
		Use:   "list [tasks|epics|subtasks]",
		Short: "List entities, all kinds by default",
		Long: `List entities in the order they were added.

Example:
  lazytracker list
  lazytracker list subtasks --epic 3`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			s, err := openSession(cmd, rootOpts)
			if err != nil {
				return err
			}
			values, err := listEntities(s.manager, args, epicID)
			if err == nil {
				err = writeEntities(cmd.OutOrStdout(), rootOpts.Format, values)
			}
			return s.finish(err)
		},
	}

	cmd.Flags().Int64Var(&epicID, "epic", 0, "only the subtasks of this epic")
	return cmd
}

func listEntities(manager *tracker.Manager, args []string, epicID int64) ([]model.Entity, error) {
	if epicID != 0 {
		subtasks, ok := manager.EpicSubtasks(epicID)
		if !ok {
			return nil, fmt.Errorf("%w: %d", tracker.ErrEpicNotFound, epicID)
		}
		return entities(subtasks), nil
	}
	if len(args) == 0 {
		values := entities(manager.Tasks())
		values = append(values, entities(manager.Epics())...)
		return append(values, entities(manager.Subtasks())...), nil
	}

	kind, err := model.ParseKind(args[0])
	if err != nil {
		return nil, err
	}
	switch kind {
	case model.KindTask:
		return entities(manager.Tasks()), nil
	case model.KindEpic:
		return entities(manager.Epics()), nil
	default:
		return entities(manager.Subtasks()), nil
	}
}

func NewShowCommand(rootOpts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "show <id>",
		Short: "Show one entity and record it in the history",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseID(args[0])
			if err != nil {
				return err
			}
			s, err := openSession(cmd, rootOpts)
			if err != nil {
				return err
			}
			entity, ok := s.manager.Lookup(id)
			if !ok {
				return s.finish(fmt.Errorf("no entity with id %d", id))
			}
			return s.finish(writeEntity(cmd.OutOrStdout(), rootOpts.Format, entity))
		},
	}
}

func NewHistoryCommand(rootOpts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "history",
		Short: "List recently viewed entities, oldest first",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			s, err := openSession(cmd, rootOpts)
			if err != nil {
				return err
			}
			return s.finish(writeEntities(cmd.OutOrStdout(), rootOpts.Format, s.manager.History()))
		},
	}
}

// entityFlags are the optional fields shared by add and update.
type entityFlags struct {
	name        string
	description string
	status      string
	duration    int64
	start       string
	epic        int64
}

func (f *entityFlags) register(cmd *cobra.Command) {
	cmd.Flags().StringVar(&f.description, "description", "", "free text description")
	cmd.Flags().StringVar(&f.status, "status", "", "NEW, IN_PROGRESS or DONE")
	cmd.Flags().Int64Var(&f.duration, "duration", 0, "planned duration in minutes")
	cmd.Flags().StringVar(&f.start, "start", "", `start time, "YYYY-MM-DD HH:MM" or RFC 3339; empty clears it`)
	cmd.Flags().Int64Var(&f.epic, "epic", 0, "epic id of a subtask")
}

// apply copies the flags that were set onto task after checking they fit
// kind.
func (f *entityFlags) apply(cmd *cobra.Command, kind model.Kind, task *model.Task) error {
	changed := cmd.Flags().Changed
	if kind == model.KindEpic {
		for _, name := range []string{"status", "duration", "start", "epic"} {
			if changed(name) {
				return fmt.Errorf("--%s does not apply to epics, their status and schedule follow the subtasks", name)
			}
		}
	}
	if kind == model.KindTask && changed("epic") {
		return fmt.Errorf("--epic only applies to subtasks")
	}

	if changed("name") {
		task.Name = strings.TrimSpace(f.name)
		if task.Name == "" {
			return fmt.Errorf("name must not be empty")
		}
	}
	if changed("description") {
		task.Description = f.description
	}
	if changed("status") {
		status, err := model.ParseStatus(f.status)
		if err != nil {
			return err
		}
		task.Status = status
	}
	if changed("duration") {
		if f.duration < 0 {
			return fmt.Errorf("duration must not be negative")
		}
		task.Duration = time.Duration(f.duration) * time.Minute
	}
	if changed("start") {
		start, err := parseStart(f.start)
		if err != nil {
			return err
		}
		task.StartTime = start
	}
	return nil
}

func NewAddCommand(rootOpts *RootOptions) *cobra.Command {
	flags := &entityFlags{}

	cmd := &cobra.Command{
		Use:   "add <task|epic|subtask> <name>",
		Short: "Add a task, epic or subtask",
		Long: `Add an entity and print it with its new id.

Example:
  lazytracker add task "Renew passport" --duration 30 --start "2024-05-02 09:00"
  lazytracker add epic "Move house"
  lazytracker add subtask "Pack books" --epic 2 --status in_progress`,
		Args: cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			kind, err := model.ParseKind(args[0])
			if err != nil {
				return err
			}
			task := model.Task{Name: strings.TrimSpace(args[1])}
			if task.Name == "" {
				return fmt.Errorf("name must not be empty")
			}
			if err := flags.apply(cmd, kind, &task); err != nil {
				return err
			}
			if kind == model.KindSubtask && !cmd.Flags().Changed("epic") {
				return fmt.Errorf("--epic is required for subtasks")
			}

			s, err := openSession(cmd, rootOpts)
			if err != nil {
				return err
			}
			id, err := addEntity(s.manager, kind, task, flags.epic)
			if err != nil {
				return s.finish(err)
			}
			entity, _ := s.manager.Peek(id)
			return s.finish(writeEntity(cmd.OutOrStdout(), rootOpts.Format, entity))
		},
	}

	flags.register(cmd)
	return cmd
}

func addEntity(manager *tracker.Manager, kind model.Kind, task model.Task, epicID int64) (int64, error) {
	switch kind {
	case model.KindTask:
		return manager.AddTask(task), nil
	case model.KindEpic:
		return manager.AddEpic(model.Epic{Task: task}), nil
	default:
		return manager.AddSubtask(model.Subtask{Task: task, EpicID: epicID})
	}
}

func NewUpdateCommand(rootOpts *RootOptions) *cobra.Command {
	flags := &entityFlags{}

	cmd := &cobra.Command{
		Use:   "update <id>",
		Short: "Change the fields given as flags",
		Long: `Change an entity. Fields without a flag keep their value.

Example:
  lazytracker update 4 --status done
  lazytracker update 5 --epic 2 --start ""`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseID(args[0])
			if err != nil {
				return err
			}
			s, err := openSession(cmd, rootOpts)
			if err != nil {
				return err
			}
			return s.finish(updateEntity(cmd, s.manager, flags, id, rootOpts.Format))
		},
	}

	cmd.Flags().StringVar(&flags.name, "name", "", "new name")
	flags.register(cmd)
	return cmd
}

func updateEntity(cmd *cobra.Command, manager *tracker.Manager, flags *entityFlags, id int64, format string) error {
	entity, ok := manager.Peek(id)
	if !ok {
		return fmt.Errorf("no entity with id %d", id)
	}
	task := entity.Common()
	if err := flags.apply(cmd, entity.Kind(), &task); err != nil {
		return err
	}

	switch value := entity.(type) {
	case model.Task:
		ok = manager.UpdateTask(task)
	case model.Epic:
		ok = manager.UpdateEpic(model.Epic{Task: task})
	case model.Subtask:
		epicID := value.EpicID
		if cmd.Flags().Changed("epic") {
			epicID = flags.epic
		}
		var err error
		if ok, err = manager.UpdateSubtask(model.Subtask{Task: task, EpicID: epicID}); err != nil {
			return err
		}
	}
	if !ok {
		return fmt.Errorf("no entity with id %d", id)
	}

	updated, _ := manager.Peek(id)
	return writeEntity(cmd.OutOrStdout(), format, updated)
}

func NewDeleteCommand(rootOpts *RootOptions) *cobra.Command {
	var all bool

	cmd := &cobra.Command{
		Use:   "delete <id> | delete --all <tasks|epics|subtasks>",
		Short: "Delete one entity or every entity of a kind",
		Long: `Delete an entity by id. Deleting an epic also deletes its subtasks.

Example:
  lazytracker delete 7
  lazytracker delete --all subtasks`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			var kind model.Kind
			var id int64
			var err error
			if all {
				kind, err = model.ParseKind(args[0])
			} else {
				id, err = parseID(args[0])
			}
			if err != nil {
				return err
			}

			s, err := openSession(cmd, rootOpts)
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			if all {
				deleteAll(s.manager, kind)
				fmt.Fprintf(out, "deleted all %ss\n", strings.ToLower(string(kind)))
				return s.finish(nil)
			}
			if !deleteEntity(s.manager, id) {
				return s.finish(fmt.Errorf("no entity with id %d", id))
			}
			fmt.Fprintf(out, "deleted #%d\n", id)
			return s.finish(nil)
		},
	}

	cmd.Flags().BoolVar(&all, "all", false, "delete every entity of the given kind")
	return cmd
}

func deleteEntity(manager *tracker.Manager, id int64) bool {
	entity, ok := manager.Peek(id)
	if !ok {
		return false
	}
	switch entity.Kind() {
	case model.KindTask:
		return manager.DeleteTask(id)
	case model.KindEpic:
		return manager.DeleteEpic(id)
	default:
		return manager.DeleteSubtask(id)
	}
}

func deleteAll(manager *tracker.Manager, kind model.Kind) {
	switch kind {
	case model.KindTask:
		manager.DeleteAllTasks()
	case model.KindEpic:
		manager.DeleteAllEpics()
	default:
		manager.DeleteAllSubtasks()
	}
}

func entities[T model.Entity](values []T) []model.Entity {
	result := make([]model.Entity, 0, len(values))
	for _, value := range values {
		result = append(result, value)
	}
	return result
}

func parseID(value string) (int64, error) {
	id, err := strconv.ParseInt(strings.TrimPrefix(value, "#"), 10, 64)
	if err != nil || id <= 0 {
		return 0, fmt.Errorf("invalid id %q", value)
	}
	return id, nil
}

func parseStart(value string) (*time.Time, error) {
	trimmed := strings.TrimSpace(value)
	if trimmed == "" {
		return nil, nil
	}
	for _, layout := range []string{timeLayout, time.RFC3339} {
		if parsed, err := time.Parse(layout, trimmed); err == nil {
			return &parsed, nil
		}
	}
	return nil, fmt.Errorf("invalid start time %q", value)
}
