package services

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestNormalizePlainBody(t *testing.T) {
	n := NewNormalizer(nil, nil)
	msg, err := n.Normalize(context.Background(), &InboundEnvelope{
		From:              "whatsapp:+15551234567",
		TenantID:          "default",
		Body:              "  spent $45   at Rona ",
		ProviderMessageID: "SM1",
	})
	require.NoError(t, err)
	require.Equal(t, "spent $45 at Rona", msg.Text)
	require.Equal(t, "+15551234567", msg.UserID)
	require.Equal(t, "SM1", msg.ProviderMessageID)
	require.Nil(t, msg.List)
}

func TestNormalizeMissingProviderID(t *testing.T) {
	n := NewNormalizer(nil, nil)
	_, err := n.Normalize(context.Background(), &InboundEnvelope{
		From: "whatsapp:+15551234567",
		Body: "hello",
	})
	require.Error(t, err)
}

func TestNormalizeButtonPayloadWinsOverBody(t *testing.T) {
	n := NewNormalizer(nil, nil)
	msg, err := n.Normalize(context.Background(), &InboundEnvelope{
		From:              "whatsapp:+15551234567",
		Body:              "Yes",
		ButtonPayload:     "yes",
		ButtonText:        "Yes ✅",
		ProviderMessageID: "SM2",
	})
	require.NoError(t, err)
	require.Equal(t, "yes", msg.Text)
}

func TestNormalizeButtonTextFallback(t *testing.T) {
	n := NewNormalizer(nil, nil)
	msg, err := n.Normalize(context.Background(), &InboundEnvelope{
		From:              "whatsapp:+15551234567",
		ButtonText:        "edit",
		ProviderMessageID: "SM3",
	})
	require.NoError(t, err)
	require.Equal(t, "edit", msg.Text)
}

func TestNormalizeListReplyBusinessKey(t *testing.T) {
	n := NewNormalizer(nil, nil)
	msg, err := n.Normalize(context.Background(), &InboundEnvelope{
		From:              "whatsapp:+15551234567",
		ListReplyID:       "job_12",
		ListReplyTitle:    "Smith Roof",
		ProviderMessageID: "SM4",
	})
	require.NoError(t, err)
	require.NotNil(t, msg.List)
	require.Equal(t, "job", msg.List.BusinessKey)
	require.Equal(t, 12, msg.List.KeyValue)
	require.False(t, msg.List.IsIndex)
	require.Equal(t, "Smith Roof", msg.Text)
}

func TestNormalizeListReplyRowIndex(t *testing.T) {
	n := NewNormalizer(nil, nil)

	for _, id := range []string{"2", "row_2"} {
		msg, err := n.Normalize(context.Background(), &InboundEnvelope{
			From:              "whatsapp:+15551234567",
			ListReplyID:       id,
			ProviderMessageID: "SM5-" + id,
		})
		require.NoError(t, err)
		require.NotNil(t, msg.List)
		require.True(t, msg.List.IsIndex, id)
		require.Equal(t, 2, msg.List.RowIndex, id)
		require.Empty(t, msg.List.BusinessKey, id)
	}
}

func TestNormalizeListReplyOpaqueID(t *testing.T) {
	n := NewNormalizer(nil, nil)
	msg, err := n.Normalize(context.Background(), &InboundEnvelope{
		From:              "whatsapp:+15551234567",
		ListReplyID:       "something_else",
		ProviderMessageID: "SM6",
	})
	require.NoError(t, err)
	require.NotNil(t, msg.List)
	require.False(t, msg.List.IsIndex)
	require.Empty(t, msg.List.BusinessKey)
	require.Equal(t, "something_else", msg.List.Raw)
}

func TestNormalizeReplyToIDCarriedThrough(t *testing.T) {
	n := NewNormalizer(nil, nil)
	msg, err := n.Normalize(context.Background(), &InboundEnvelope{
		From:              "whatsapp:+15551234567",
		Body:              "looks right",
		ProviderMessageID: "SM7",
		ReplyToID:         "SM-quoted",
	})
	require.NoError(t, err)
	require.Equal(t, "SM-quoted", msg.ReplyToID)
}

type staticTranscriber struct{ text string }

func (s *staticTranscriber) Transcribe(ctx context.Context, url, mimeType string) (string, error) {
	return s.text, nil
}

func TestNormalizeVoiceNoteWithPostCorrection(t *testing.T) {
	n := NewNormalizer(&staticTranscriber{text: "spent 45 dollars and 20 cents at home depo"}, nil)
	msg, err := n.Normalize(context.Background(), &InboundEnvelope{
		From:              "whatsapp:+15551234567",
		MediaURL:          "https://media.example/voice.ogg",
		MediaContentType:  "audio/ogg",
		ProviderMessageID: "SM8",
	})
	require.NoError(t, err)
	require.Contains(t, msg.Text, "$45.20")
	require.Contains(t, msg.Text, "home depot")
	require.Len(t, msg.Media, 1)
}

func TestPostCorrect(t *testing.T) {
	require.Equal(t, "received $500", PostCorrect("recieved $ 500"))
	require.Equal(t, "$54 at home depot", PostCorrect("54$ at home depo"))
}
