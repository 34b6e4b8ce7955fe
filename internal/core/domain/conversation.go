package domain

import "time"

// Field limits for a stored conversation.
const (
	MaxBusinessLen = 80
	MinQuestionLen = 5
	MaxQuestionLen = 400
	MaxAnswerLen   = 1000
)

// Conversation is one persisted question/answer exchange.
// UserID is nil when the question was asked anonymously.
type Conversation struct {
	ID        int64     `json:"id"`
	Business  string    `json:"business"`
	Question  string    `json:"question"`
	Answer    string    `json:"answer"`
	CreatedAt time.Time `json:"created_at"`
	UserID    *int64    `json:"user_id"`
}

// OwnedBy reports whether the conversation belongs to userID.
func (c *Conversation) OwnedBy(userID int64) bool {
	return c.UserID != nil && *c.UserID == userID
}

// Passage is a FAQ fragment returned by the retriever together with its similarity score.
type Passage struct {
	Content string  `json:"content"`
	Source  string  `json:"source,omitempty"`
	Score   float64 `json:"score"`
}

// ClipAnswer trims an answer to MaxAnswerLen runes.
func ClipAnswer(s string) string {
	r := []rune(s)
	if len(r) <= MaxAnswerLen {
		return s
	}
	return string(r[:MaxAnswerLen])
}
