package service

import (
	"fmt"
	"strings"

	"github.com/aibutler/butler-api/internal/core/domain"
	"github.com/aibutler/butler-api/internal/core/ports"
)

type fewShotExample struct {
	business string
	question string
	answer   string
}

var fewShotExamples = []fewShotExample{
	{
		business: "La Española Bakery",
		question: "What are your opening hours?",
		answer:   "We are open Monday to Saturday from 8:00 to 14:00.",
	},
	{
		business: "La Española Bakery",
		question: "Do you accept returns?",
		answer:   "We accept returns within 30 days with the purchase receipt.",
	},
}

func systemPrompt(business string) string {
	return fmt.Sprintf("You are a friendly and professional assistant specialised in %s. Answer clearly and briefly.", business)
}

func questionPrompt(business, question string) string {
	return fmt.Sprintf("Business: %s\nQuestion: %s\nAnswer:", business, question)
}

// buildPrompt assembles the chat messages for one question. With passages the
// model is grounded on the retrieved FAQ text, otherwise it is steered by the
// fixed few-shot examples.
func buildPrompt(business, question string, passages []domain.Passage) []ports.ChatMessage {
	msgs := []ports.ChatMessage{{Role: ports.ChatRoleSystem, Content: systemPrompt(business)}}

	if len(passages) > 0 {
		var b strings.Builder
		b.WriteString("Use the following FAQ passages to answer. If they do not cover the question, say you do not know.\n")
		for i, p := range passages {
			fmt.Fprintf(&b, "\n[%d] %s", i+1, strings.TrimSpace(p.Content))
		}
		msgs = append(msgs, ports.ChatMessage{Role: ports.ChatRoleSystem, Content: b.String()})
	} else {
		for _, ex := range fewShotExamples {
			msgs = append(msgs,
				ports.ChatMessage{Role: ports.ChatRoleUser, Content: fmt.Sprintf("Business: %s\nQuestion: %s", ex.business, ex.question)},
				ports.ChatMessage{Role: ports.ChatRoleAssistant, Content: ex.answer},
			)
		}
	}

	return append(msgs, ports.ChatMessage{Role: ports.ChatRoleUser, Content: questionPrompt(business, question)})
}
