package services

import (
	"context"
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/ScottJutras/chief-ai-backend/internal/models"
	"github.com/ScottJutras/chief-ai-backend/internal/storage"
)

// TaskExecutor manages the to-do list. Like jobs, task commands
// complete in one message and own no pending kinds.
type TaskExecutor struct {
	store storage.Store
}

// NewTaskExecutor creates the task executor.
func NewTaskExecutor(store storage.Store) *TaskExecutor {
	return &TaskExecutor{store: store}
}

var (
	addTaskRe  = regexp.MustCompile(`(?i)\b(?:add|new)\s+task\s*:?\s*(.+)$|\btask:\s*(.+)$`)
	doneTaskRe = regexp.MustCompile(`(?i)\bdone\s+task\s*#?\s*([0-9]+)\b`)
	listTaskRe = regexp.MustCompile(`(?i)\b(?:list|show)\s+tasks\b|\btodo\b|^tasks$`)
)

func (e *TaskExecutor) Family() string  { return IntentTask }
func (e *TaskExecutor) Kinds() []string { return nil }

func (e *TaskExecutor) Execute(ctx context.Context, user *models.UserProfile, msg *InboundMessage, intent Intent) (*ExecResult, error) {
	switch {
	case doneTaskRe.MatchString(msg.Text):
		n, _ := strconv.Atoi(doneTaskRe.FindStringSubmatch(msg.Text)[1])
		return e.completeTask(user, n)
	case addTaskRe.MatchString(msg.Text):
		m := addTaskRe.FindStringSubmatch(msg.Text)
		desc := m[1]
		if desc == "" {
			desc = m[2]
		}
		return e.addTask(user, strings.TrimSpace(desc))
	case listTaskRe.MatchString(msg.Text):
		return e.listTasks(user)
	}
	return &ExecResult{Reply: textReply("📋 Task commands: \"add task <what>\", \"list tasks\", \"done task 2\".")}, nil
}

func (e *TaskExecutor) addTask(user *models.UserProfile, desc string) (*ExecResult, error) {
	if desc == "" {
		return &ExecResult{Reply: textReply("🧐 What's the task? Say \"add task <what>\".")}, nil
	}

	jobNumber := 0
	if active, err := e.store.GetJobsByStatus(user.TenantID, user.Phone, models.JobStatusActive); err != nil {
		return nil, err
	} else if len(active) > 0 {
		jobNumber = active[0].Number
	}

	number, err := e.store.NextTaskNumber(user.TenantID, user.Phone)
	if err != nil {
		return nil, err
	}
	task := &models.Task{
		TenantID:    user.TenantID,
		UserID:      user.Phone,
		Number:      number,
		JobNumber:   jobNumber,
		Description: desc,
	}
	if err := e.store.CreateTask(task); err != nil {
		return nil, err
	}

	text := fmt.Sprintf("📋 Task #%d added: %s", number, desc)
	if jobNumber > 0 {
		text += fmt.Sprintf(" (job #%d)", jobNumber)
	}
	return &ExecResult{Reply: &Reply{Text: text}, SideEffect: true}, nil
}

func (e *TaskExecutor) completeTask(user *models.UserProfile, number int) (*ExecResult, error) {
	task, err := e.store.GetTask(user.TenantID, user.Phone, number)
	if err == storage.ErrNotFound {
		return &ExecResult{Reply: textReply("🧐 There's no task #%d. Say \"list tasks\" to see them.", number)}, nil
	}
	if err != nil {
		return nil, err
	}
	if task.Done {
		return &ExecResult{Reply: textReply("✅ Task #%d was already done.", number)}, nil
	}
	now := time.Now()
	task.Done = true
	task.CompletedAt = &now
	if err := e.store.UpdateTask(task); err != nil {
		return nil, err
	}
	return &ExecResult{
		Reply:      textReply("✅ Task #%d done: %s", number, task.Description),
		SideEffect: true,
	}, nil
}

func (e *TaskExecutor) listTasks(user *models.UserProfile) (*ExecResult, error) {
	tasks, err := e.store.GetOpenTasks(user.TenantID, user.Phone)
	if err != nil {
		return nil, err
	}
	if len(tasks) == 0 {
		return &ExecResult{Reply: textReply("📋 Nothing on the list. Say \"add task <what>\" to add one.")}, nil
	}
	var b strings.Builder
	b.WriteString("📋 *Open tasks*\n")
	for _, t := range tasks {
		fmt.Fprintf(&b, "• #%d %s", t.Number, t.Description)
		if t.JobNumber > 0 {
			fmt.Fprintf(&b, " (job #%d)", t.JobNumber)
		}
		b.WriteString("\n")
	}
	return &ExecResult{Reply: &Reply{Text: b.String()}}, nil
}

func (e *TaskExecutor) Confirm(ctx context.Context, user *models.UserProfile, msg *InboundMessage, pending *models.PendingAction) (*ExecResult, error) {
	return e.Prompt(pending)
}

func (e *TaskExecutor) Edit(ctx context.Context, user *models.UserProfile, msg *InboundMessage, pending *models.PendingAction, replacement string) (*ExecResult, error) {
	return e.Prompt(pending)
}

func (e *TaskExecutor) Continue(ctx context.Context, user *models.UserProfile, msg *InboundMessage, pending *models.PendingAction, intent Intent) (*ExecResult, error) {
	return e.Execute(ctx, user, msg, intent)
}

func (e *TaskExecutor) Prompt(pending *models.PendingAction) (*ExecResult, error) {
	return &ExecResult{Reply: textReply("📋 Task commands: \"add task <what>\", \"list tasks\", \"done task 2\".")}, nil
}
