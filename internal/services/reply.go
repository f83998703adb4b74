package services

import (
	"fmt"
	"strings"

	"github.com/ScottJutras/chief-ai-backend/internal/models"
)

// Reply is what the engine emits: plain text plus optional quick-reply
// options. Transport markup (buttons, lists) is rendered externally.
type Reply struct {
	Text         string   `json:"text"`
	QuickReplies []string `json:"quick_replies,omitempty"`
}

// Render flattens the reply into one WhatsApp body.
func (r *Reply) Render() string {
	if len(r.QuickReplies) == 0 {
		return r.Text
	}
	return r.Text + "\n\n" + strings.Join(r.QuickReplies, " | ")
}

func textReply(format string, args ...interface{}) *Reply {
	return &Reply{Text: fmt.Sprintf(format, args...)}
}

var confirmQuickReplies = []string{"yes", "edit", "cancel", "skip"}

// Canned engine replies. Kept in one place so tests can assert against
// them and copy edits stay out of the control flow.

func replyBusy() *Reply {
	return &Reply{Text: "⏳ Still processing your last message — give me a second."}
}

func replyWorkingOnIt() *Reply {
	return &Reply{Text: "⏳ Working on that one — hang tight."}
}

func replySlow() *Reply {
	return &Reply{Text: "⏳ That's taking longer than expected. I'll finish up — check back in a moment."}
}

func replyApology(traceID string) *Reply {
	return &Reply{Text: fmt.Sprintf("❌ Sorry, something went wrong on my end. Please try again. (ref %s)", traceID)}
}

func replyTryAgain() *Reply {
	return &Reply{Text: "⚠️ I couldn't reach the books just now. Nothing was changed — please try that again."}
}

func replyCancelled(n int64) *Reply {
	if n == 0 {
		return &Reply{Text: "Nothing pending to cancel. What's next?"}
	}
	return &Reply{Text: "🗑️ Cancelled. Nothing pending now."}
}

func replyParked(kind string) *Reply {
	return &Reply{
		Text:         fmt.Sprintf("⏸️ Skipped %s for now — say *resume* when you want to pick it back up.", describeKind(kind)),
		QuickReplies: []string{"resume"},
	}
}

func replyNothingToResume() *Reply {
	return &Reply{Text: "Nothing parked or pending to resume."}
}

func replyNudge(kind string) *Reply {
	return &Reply{
		Text:         fmt.Sprintf("📌 You still have %s waiting. Confirm it, change it, or clear it before we move on.", describeKind(kind)),
		QuickReplies: confirmQuickReplies,
	}
}

func replyCapabilitySummary() *Reply {
	return &Reply{Text: `🤖 I didn't catch that. Here's what I can do:

💸 *Expenses* — "spent $45 on screws at Home Depot"
💰 *Revenue* — "received $500 from John for the deck"
🕐 *Time clock* — "clock in", "clock out at 5pm"
🏗️ *Jobs* — "start job Smith Roof", "finish job", "list jobs"
📋 *Tasks* — "add task order shingles", "list tasks"
↪️ *Fix-ups* — "move last expense to job 2"

Reply *cancel* any time to clear what's pending.`}
}

// describeKind names a pending kind in user language.
func describeKind(kind string) string {
	switch kind {
	case models.PendingConfirmExpense:
		return "an expense to confirm"
	case models.PendingConfirmRevenue:
		return "a payment to confirm"
	case models.PendingPickJobForExpense, models.PendingPickJobForRevenue:
		return "a job to pick"
	case models.PendingMoveLastLog:
		return "a move to confirm"
	case models.PendingNeedClockOutTime:
		return "a clock-out time to fill in"
	default:
		return "something"
	}
}
