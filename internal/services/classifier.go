package services

import (
	"context"
	"log"
	"regexp"

	"github.com/ScottJutras/chief-ai-backend/internal/utils"
)

// ControlToken is one of the closed set of exact-match reply strings
// that drive state transitions. Matched only by trimmed, lowercased
// equality, never fuzzy, because they trigger financially significant
// side effects.
type ControlToken string

const (
	TokenYes       ControlToken = "yes"
	TokenEdit      ControlToken = "edit"
	TokenCancel    ControlToken = "cancel"
	TokenResume    ControlToken = "resume"
	TokenSkip      ControlToken = "skip"
	TokenChangeJob ControlToken = "change_job"
)

// ParseControlToken matches text against the closed token set.
// "show" is accepted as an alias of resume; "yeah", "ok", "sure" are
// deliberately not tokens.
func ParseControlToken(text string) (ControlToken, bool) {
	switch utils.NormalizeToken(text) {
	case "yes":
		return TokenYes, true
	case "edit":
		return TokenEdit, true
	case "cancel":
		return TokenCancel, true
	case "resume", "show":
		return TokenResume, true
	case "skip":
		return TokenSkip, true
	case "change_job", "change job":
		return TokenChangeJob, true
	}
	return "", false
}

// IsGlobalAbort reports whether text is one of the hard controls that
// clear every pending action before any other logic runs.
func IsGlobalAbort(text string) bool {
	switch utils.NormalizeToken(text) {
	case "cancel", "stop", "no":
		return true
	}
	return false
}

// Intent families
const (
	IntentControl   = "control"
	IntentExpense   = "expense"
	IntentRevenue   = "revenue"
	IntentTimeclock = "timeclock"
	IntentJob       = "job"
	IntentTask      = "task"
	IntentMoveLog   = "move_log"
	IntentNone      = "none"
)

// Cascade stages, recorded on the intent for observability and tests.
const (
	StageControlToken = 2
	StageDomainCues   = 3
	StageFuzzyCatalog = 4
	StageFallback     = 5
)

// Intent is the tagged result of classification.
type Intent struct {
	Family     string
	Token      ControlToken // set when Family == IntentControl
	Stage      int
	Confidence float64
	Args       map[string]string
}

// Classifier runs the ordered, short-circuiting cascade. The global
// abort check (stage 1) runs in the engine before anything else.
type Classifier struct {
	catalog  *SynonymCatalog
	fallback FallbackClassifier // may be nil
}

// NewClassifier builds the cascade. fallback may be nil, in which case
// stage 5 is skipped.
func NewClassifier(fallback FallbackClassifier) *Classifier {
	return &Classifier{
		catalog:  DefaultSynonymCatalog(),
		fallback: fallback,
	}
}

// Deterministic domain cues. Each family needs a positive lexical cue
// before it may claim the message.
var (
	moneyCueRe = regexp.MustCompile(`(?i)\$\s*[0-9]|[0-9]+(?:\.[0-9]{2})?\s*(?:dollars|bucks)\b|[0-9]+(?:\.[0-9]{2})?\$`)

	strongExpenseVerbRe = regexp.MustCompile(`(?i)\b(spent|bought|paid|purchased)\b`)
	expenseCueRe        = regexp.MustCompile(`(?i)\b(spent|bought|paid|purchased|picked up|expense)\b`)

	revenueCueRe        = regexp.MustCompile(`(?i)\b(received|revenue|got paid|deposit|deposited|cheque|check|e-transfer|invoice paid|payment from)\b`)
	revenueInstrumentRe = regexp.MustCompile(`(?i)\breceived\b.*\b(cheque|check|deposit|e-transfer)\b|\b(cheque|check|deposit|e-transfer)\b.*\breceived\b`)

	timeclockCueRe = regexp.MustCompile(`(?i)\b(clock(?:ed)?\s+(?:in|out)|punch(?:ed)?\s+(?:in|out)|start(?:ed)?\s+my\s+(?:day|shift)|end(?:ed)?\s+my\s+(?:day|shift))\b`)

	jobCueRe = regexp.MustCompile(`(?i)\b(start|begin|open|new|finish|complete|close|pause|resume|list|show)\b.{0,20}\bjobs?\b|\bjobs\b`)

	taskCueRe = regexp.MustCompile(`(?i)\b(add|new)\s+task\b|\btask:\s*\S|\b(list|show)\s+tasks\b|\bdone\s+task\b|\btodo\b`)

	moveLogCueRe = regexp.MustCompile(`(?i)\bmove\b.{0,30}\b(last|that|it)\b|\bmove\s+(?:last|that|it)\b`)
)

// Classify runs stages 2–5. hasPending gates the strict control-token
// stage: without a live pending action a bare "yes" means nothing.
func (c *Classifier) Classify(ctx context.Context, text string, hasPending bool) Intent {
	// Stage 2: strict control-token match.
	if hasPending {
		if token, ok := ParseControlToken(text); ok {
			return Intent{Family: IntentControl, Token: token, Stage: StageControlToken, Confidence: 1}
		}
	}

	// Stage 3: deterministic domain cues.
	if intent, ok := classifyByCues(text); ok {
		return intent
	}

	// Stage 4: fuzzy catalog match.
	if family, score, ok := c.catalog.Match(text); ok {
		return Intent{Family: family, Stage: StageFuzzyCatalog, Confidence: score}
	}

	// Stage 5: statistical fallback, decline is a valid no-match.
	if c.fallback != nil {
		call, err := c.fallback.Classify(ctx, text, ClosedToolSet)
		if err != nil {
			// Timeouts and transport errors degrade to no opinion.
			log.Printf("⚠️ fallback classifier unavailable: %v", err)
		} else if call != nil {
			if family, ok := toolToFamily[call.Tool]; ok {
				return Intent{Family: family, Stage: StageFallback, Confidence: 0.95, Args: call.Args}
			}
		}
	}

	return Intent{Family: IntentNone}
}

// classifyByCues implements stage 3 including the expense/revenue
// tie-break: a strong expense verb wins unless an explicit
// "received + cheque/deposit" pattern is present.
func classifyByCues(text string) (Intent, bool) {
	if moveLogCueRe.MatchString(text) {
		return Intent{Family: IntentMoveLog, Stage: StageDomainCues, Confidence: 1}, true
	}
	if timeclockCueRe.MatchString(text) {
		return Intent{Family: IntentTimeclock, Stage: StageDomainCues, Confidence: 1}, true
	}

	hasMoney := moneyCueRe.MatchString(text)
	expense := hasMoney && expenseCueRe.MatchString(text)
	revenue := hasMoney && revenueCueRe.MatchString(text)

	switch {
	case expense && revenue:
		if revenueInstrumentRe.MatchString(text) {
			return Intent{Family: IntentRevenue, Stage: StageDomainCues, Confidence: 1}, true
		}
		if strongExpenseVerbRe.MatchString(text) {
			return Intent{Family: IntentExpense, Stage: StageDomainCues, Confidence: 1}, true
		}
		return Intent{Family: IntentRevenue, Stage: StageDomainCues, Confidence: 1}, true
	case expense:
		return Intent{Family: IntentExpense, Stage: StageDomainCues, Confidence: 1}, true
	case revenue:
		return Intent{Family: IntentRevenue, Stage: StageDomainCues, Confidence: 1}, true
	}

	if taskCueRe.MatchString(text) {
		return Intent{Family: IntentTask, Stage: StageDomainCues, Confidence: 1}, true
	}
	if jobCueRe.MatchString(text) {
		return Intent{Family: IntentJob, Stage: StageDomainCues, Confidence: 1}, true
	}

	return Intent{}, false
}
