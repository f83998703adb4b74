package services

import (
	"context"
	"fmt"
	"log"
	"regexp"
	"strconv"
	"strings"

	"github.com/ScottJutras/chief-ai-backend/internal/utils"
)

// InboundEnvelope is the transport shape the webhook hands over.
// Signature verification happened before this point.
type InboundEnvelope struct {
	From              string
	TenantID          string
	Body              string
	ButtonPayload     string
	ButtonText        string
	ListReplyID       string
	ListReplyTitle    string
	MediaURL          string
	MediaContentType  string
	ProviderMessageID string
	ReplyToID         string // SID of the quoted message, if the user replied to one
}

// MediaRef points at an attachment on the provider's CDN.
type MediaRef struct {
	URL         string
	ContentType string
}

// ListSelection is a parsed interactive-list reply. A row id of the
// form "job_12" carries the business key (job number 12) and is
// durable; a bare number or "row_N" id is the position in the rendered
// list and must be resolved against the payload that rendered it.
type ListSelection struct {
	Raw         string
	Title       string
	IsIndex     bool
	RowIndex    int    // valid when IsIndex
	BusinessKey string // kind of key, e.g. "job"
	KeyValue    int    // valid when BusinessKey != ""
}

// InboundMessage is the canonical form the engine routes on; discarded
// after the reply is emitted.
type InboundMessage struct {
	Text              string
	ProviderMessageID string
	ReplyToID         string
	UserID            string
	TenantID          string
	Media             []MediaRef
	List              *ListSelection
}

// Transcriber converts voice notes to text. Nil text means the
// collaborator had no opinion.
type Transcriber interface {
	Transcribe(ctx context.Context, url, mimeType string) (string, error)
}

// OCRReader extracts text from receipt images.
type OCRReader interface {
	OCR(ctx context.Context, url string) (string, error)
}

// Normalizer converts heterogeneous payloads into one canonical text
// string plus ids.
type Normalizer struct {
	transcriber Transcriber
	ocr         OCRReader
}

// NewNormalizer creates a normalizer. Collaborators may be nil; media
// then degrades to an empty text with the refs preserved.
func NewNormalizer(transcriber Transcriber, ocr OCRReader) *Normalizer {
	return &Normalizer{transcriber: transcriber, ocr: ocr}
}

var (
	jobRowRe   = regexp.MustCompile(`^job_([0-9]+)$`)
	indexRowRe = regexp.MustCompile(`^(?:row_)?([0-9]+)$`)
)

// Normalize builds the canonical InboundMessage from an envelope.
func (n *Normalizer) Normalize(ctx context.Context, env *InboundEnvelope) (*InboundMessage, error) {
	msg := &InboundMessage{
		ProviderMessageID: env.ProviderMessageID,
		ReplyToID:         env.ReplyToID,
		UserID:            strings.TrimPrefix(env.From, "whatsapp:"),
		TenantID:          env.TenantID,
	}

	switch {
	case env.ListReplyID != "":
		msg.List = parseListReply(env.ListReplyID, env.ListReplyTitle)
		msg.Text = utils.CleanText(env.ListReplyTitle)
		if msg.Text == "" {
			msg.Text = utils.CleanText(env.ListReplyID)
		}

	case env.ButtonPayload != "":
		// Payload wins over label; both map to plain text.
		msg.Text = utils.CleanText(env.ButtonPayload)

	case env.ButtonText != "":
		msg.Text = utils.CleanText(env.ButtonText)

	case env.MediaURL != "":
		msg.Media = append(msg.Media, MediaRef{URL: env.MediaURL, ContentType: env.MediaContentType})
		text, err := n.mediaToText(ctx, env.MediaURL, env.MediaContentType)
		if err != nil {
			// Collaborator failure degrades to no opinion, never a
			// hard failure.
			log.Printf("⚠️ media extraction failed (%s): %v", env.MediaContentType, err)
		}
		msg.Text = PostCorrect(utils.CleanText(text))
		if msg.Text == "" && env.Body != "" {
			msg.Text = utils.CleanText(env.Body)
		}

	default:
		msg.Text = utils.CleanText(env.Body)
	}

	if msg.ProviderMessageID == "" {
		return nil, fmt.Errorf("envelope missing provider message id")
	}
	return msg, nil
}

func (n *Normalizer) mediaToText(ctx context.Context, url, mimeType string) (string, error) {
	switch {
	case strings.HasPrefix(mimeType, "audio/") && n.transcriber != nil:
		return n.transcriber.Transcribe(ctx, url, mimeType)
	case strings.HasPrefix(mimeType, "image/") && n.ocr != nil:
		return n.ocr.OCR(ctx, url)
	}
	return "", nil
}

// parseListReply classifies a list row id. An index taken for a job
// number books money against the wrong job, so the business-key form
// is matched first and strictly.
func parseListReply(id, title string) *ListSelection {
	sel := &ListSelection{Raw: id, Title: title}
	if m := jobRowRe.FindStringSubmatch(id); m != nil {
		sel.BusinessKey = "job"
		sel.KeyValue, _ = strconv.Atoi(m[1])
		return sel
	}
	if m := indexRowRe.FindStringSubmatch(id); m != nil {
		sel.IsIndex = true
		sel.RowIndex, _ = strconv.Atoi(m[1])
		return sel
	}
	return sel
}

// postCorrections is the domain vocabulary pass applied to transcribed
// and OCR'd text before it is treated as ordinary input.
var postCorrections = []struct {
	re   *regexp.Regexp
	repl string
}{
	{regexp.MustCompile(`(?i)\bhome depo\b`), "home depot"},
	{regexp.MustCompile(`(?i)\brecieved\b`), "received"},
	{regexp.MustCompile(`(?i)\bcheck\s+number\b`), "cheque"},
	{regexp.MustCompile(`\$\s+([0-9])`), "$$$1"},
	{regexp.MustCompile(`\b([0-9]+(?:\.[0-9]{2})?)\s*\$`), "$$$1"},
	{regexp.MustCompile(`(?i)\b([0-9]+)\s+dollars?\s+and\s+([0-9]{1,2})\s+cents?\b`), "$$$1.$2"},
}

// PostCorrect runs the deterministic vocabulary/money pass.
func PostCorrect(text string) string {
	for _, c := range postCorrections {
		text = c.re.ReplaceAllString(text, c.repl)
	}
	return text
}
