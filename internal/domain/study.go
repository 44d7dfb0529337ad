package domain

import (
	"encoding/json"
	"time"
)

// Difficulty levels accepted from generated material.
const (
	DifficultyEasy   = "easy"
	DifficultyMedium = "medium"
	DifficultyHard   = "hard"
)

// Flashcard is a generated question/answer pair.
type Flashcard struct {
	Question   string `json:"question"`
	Answer     string `json:"answer"`
	Difficulty string `json:"difficulty"`
}

// QuizQuestion is a generated multiple choice question.
type QuizQuestion struct {
	Question      string   `json:"question"`
	Options       []string `json:"options"`
	CorrectAnswer string   `json:"correct_answer"`
	Explanation   string   `json:"explanation"`
	Difficulty    string   `json:"difficulty"`
}

// Generation is a persisted artifact produced by a generator for a document.
type Generation struct {
	ID         string          `json:"id"          db:"id"`
	DocumentID string          `json:"document_id" db:"document_id"`
	Kind       string          `json:"kind"        db:"kind"` // flashcards, quiz, summary
	Payload    json.RawMessage `json:"payload"     db:"payload"`
	CreatedAt  time.Time       `json:"created_at"  db:"created_at"`
}
