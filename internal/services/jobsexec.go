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

// JobExecutor manages jobs. It owns no pending kinds; job commands
// complete in one message.
type JobExecutor struct {
	store storage.Store
}

// NewJobExecutor creates the job executor.
func NewJobExecutor(store storage.Store) *JobExecutor {
	return &JobExecutor{store: store}
}

var (
	startJobRe  = regexp.MustCompile(`(?i)\b(?:start|begin|open|new)\s+(?:a\s+)?job\s*:?\s*(.*)$`)
	finishJobRe = regexp.MustCompile(`(?i)\b(?:finish|complete|close)\s+(?:the\s+)?job\s*#?\s*([0-9]*)`)
	pauseJobRe  = regexp.MustCompile(`(?i)\bpause\s+(?:the\s+)?job\b`)
	resumeJobRe = regexp.MustCompile(`(?i)\bresume\s+(?:the\s+)?job\s*#?\s*([0-9]*)`)
	listJobsRe  = regexp.MustCompile(`(?i)\b(?:list|show|what)\b.*\bjobs\b|^jobs$`)
)

func (e *JobExecutor) Family() string { return IntentJob }
func (e *JobExecutor) Kinds() []string { return nil }

func (e *JobExecutor) Execute(ctx context.Context, user *models.UserProfile, msg *InboundMessage, intent Intent) (*ExecResult, error) {
	text := msg.Text
	switch {
	case startJobRe.MatchString(text):
		name := strings.TrimSpace(startJobRe.FindStringSubmatch(text)[1])
		return e.startJob(user, name)
	case finishJobRe.MatchString(text):
		num := finishJobRe.FindStringSubmatch(text)[1]
		return e.finishJob(user, num)
	case pauseJobRe.MatchString(text):
		return e.pauseJob(user)
	case resumeJobRe.MatchString(text):
		num := resumeJobRe.FindStringSubmatch(text)[1]
		return e.resumeJob(user, num)
	case listJobsRe.MatchString(text):
		return e.listJobs(user)
	}
	return &ExecResult{Reply: textReply("🏗️ Job commands: \"start job <name>\", \"finish job\", \"pause job\", \"resume job 2\", \"list jobs\".")}, nil
}

func (e *JobExecutor) startJob(user *models.UserProfile, name string) (*ExecResult, error) {
	if name == "" {
		return &ExecResult{Reply: textReply("🧐 What's the job called? Say \"start job <name>\".")}, nil
	}

	// One active job at a time: starting pauses the current one.
	active, err := e.store.GetJobsByStatus(user.TenantID, user.Phone, models.JobStatusActive)
	if err != nil {
		return nil, err
	}
	for _, j := range active {
		j.Status = models.JobStatusPaused
		if err := e.store.UpdateJob(j); err != nil {
			return nil, err
		}
	}

	number, err := e.store.NextJobNumber(user.TenantID, user.Phone)
	if err != nil {
		return nil, err
	}
	now := time.Now()
	job := &models.Job{
		TenantID:  user.TenantID,
		UserID:    user.Phone,
		Number:    number,
		Name:      name,
		Status:    models.JobStatusActive,
		StartedAt: &now,
	}
	if err := e.store.CreateJob(job); err != nil {
		return nil, err
	}

	text := fmt.Sprintf("🏗️ Job #%d *%s* started — expenses and hours land here now.", number, name)
	if len(active) == 1 {
		text += fmt.Sprintf("\n(Paused job #%d %s.)", active[0].Number, active[0].Name)
	}
	return &ExecResult{Reply: &Reply{Text: text}, SideEffect: true}, nil
}

func (e *JobExecutor) finishJob(user *models.UserProfile, num string) (*ExecResult, error) {
	job, res, err := e.targetJob(user, num, models.JobStatusActive)
	if job == nil {
		return res, err
	}
	now := time.Now()
	job.Status = models.JobStatusFinished
	job.FinishedAt = &now
	if err := e.store.UpdateJob(job); err != nil {
		return nil, err
	}
	return &ExecResult{
		Reply:      textReply("🎉 Job #%d *%s* finished. Nice work.", job.Number, job.Name),
		SideEffect: true,
	}, nil
}

func (e *JobExecutor) pauseJob(user *models.UserProfile) (*ExecResult, error) {
	active, err := e.store.GetJobsByStatus(user.TenantID, user.Phone, models.JobStatusActive)
	if err != nil {
		return nil, err
	}
	if len(active) == 0 {
		return &ExecResult{Reply: textReply("🧐 No active job to pause.")}, nil
	}
	job := active[0]
	job.Status = models.JobStatusPaused
	if err := e.store.UpdateJob(job); err != nil {
		return nil, err
	}
	return &ExecResult{
		Reply:      textReply("⏸️ Job #%d *%s* paused. Say \"resume job %d\" to pick it back up.", job.Number, job.Name, job.Number),
		SideEffect: true,
	}, nil
}

func (e *JobExecutor) resumeJob(user *models.UserProfile, num string) (*ExecResult, error) {
	job, res, err := e.targetJob(user, num, models.JobStatusPaused)
	if job == nil {
		return res, err
	}
	active, err := e.store.GetJobsByStatus(user.TenantID, user.Phone, models.JobStatusActive)
	if err != nil {
		return nil, err
	}
	for _, j := range active {
		j.Status = models.JobStatusPaused
		if err := e.store.UpdateJob(j); err != nil {
			return nil, err
		}
	}
	job.Status = models.JobStatusActive
	if err := e.store.UpdateJob(job); err != nil {
		return nil, err
	}
	return &ExecResult{
		Reply:      textReply("▶️ Back on job #%d *%s*.", job.Number, job.Name),
		SideEffect: true,
	}, nil
}

// targetJob resolves "finish job 3" style commands: explicit number
// first, otherwise the single job in wantStatus.
func (e *JobExecutor) targetJob(user *models.UserProfile, num, wantStatus string) (*models.Job, *ExecResult, error) {
	if num != "" {
		n, _ := strconv.Atoi(num)
		job, err := e.store.GetJob(user.TenantID, user.Phone, n)
		if err == storage.ErrNotFound {
			return nil, &ExecResult{Reply: textReply("🧐 There's no job #%d. Say \"list jobs\" to see them.", n)}, nil
		}
		if err != nil {
			return nil, nil, err
		}
		return job, nil, nil
	}

	jobs, err := e.store.GetJobsByStatus(user.TenantID, user.Phone, wantStatus)
	if err != nil {
		return nil, nil, err
	}
	switch len(jobs) {
	case 0:
		return nil, &ExecResult{Reply: textReply("🧐 No %s job found. Say \"list jobs\" to see what's on file.", wantStatus)}, nil
	case 1:
		return jobs[0], nil, nil
	default:
		var b strings.Builder
		fmt.Fprintf(&b, "🧐 Which one? You have %d %s jobs:\n", len(jobs), wantStatus)
		for _, j := range jobs {
			fmt.Fprintf(&b, "• job #%d — %s\n", j.Number, j.Name)
		}
		b.WriteString("\nAdd the number, e.g. \"finish job 2\".")
		return nil, &ExecResult{Reply: &Reply{Text: b.String()}}, nil
	}
}

func (e *JobExecutor) listJobs(user *models.UserProfile) (*ExecResult, error) {
	jobs, err := e.store.GetJobs(user.TenantID, user.Phone)
	if err != nil {
		return nil, err
	}
	if len(jobs) == 0 {
		return &ExecResult{Reply: textReply("🏗️ No jobs yet. Say \"start job <name>\" to open one.")}, nil
	}
	var b strings.Builder
	b.WriteString("🏗️ *Your jobs*\n")
	for _, j := range jobs {
		marker := ""
		switch j.Status {
		case models.JobStatusActive:
			marker = " ← active"
		case models.JobStatusFinished:
			marker = " (done)"
		case models.JobStatusPaused:
			marker = " (paused)"
		}
		fmt.Fprintf(&b, "• job #%d — %s%s\n", j.Number, j.Name, marker)
	}
	return &ExecResult{Reply: &Reply{Text: b.String()}}, nil
}

// No pending kinds, so the lifecycle methods only re-point the user at
// the one-shot commands.

func (e *JobExecutor) Confirm(ctx context.Context, user *models.UserProfile, msg *InboundMessage, pending *models.PendingAction) (*ExecResult, error) {
	return e.Prompt(pending)
}

func (e *JobExecutor) Edit(ctx context.Context, user *models.UserProfile, msg *InboundMessage, pending *models.PendingAction, replacement string) (*ExecResult, error) {
	return e.Prompt(pending)
}

func (e *JobExecutor) Continue(ctx context.Context, user *models.UserProfile, msg *InboundMessage, pending *models.PendingAction, intent Intent) (*ExecResult, error) {
	return e.Execute(ctx, user, msg, intent)
}

func (e *JobExecutor) Prompt(pending *models.PendingAction) (*ExecResult, error) {
	return &ExecResult{Reply: textReply("🏗️ Job commands: \"start job <name>\", \"finish job\", \"list jobs\".")}, nil
}
