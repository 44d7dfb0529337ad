package generate

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/arturoeanton/go-study-assistant/internal/domain"
	"github.com/arturoeanton/go-study-assistant/internal/port"
)

// DefaultFlashcards is the number of cards requested when none is given.
const DefaultFlashcards = 10

// FlashcardGenerator turns document text into question/answer cards.
type FlashcardGenerator struct {
	ai port.AIProvider
}

// NewFlashcardGenerator creates a flashcard generator backed by ai.
func NewFlashcardGenerator(ai port.AIProvider) *FlashcardGenerator {
	return &FlashcardGenerator{ai: ai}
}

// Name returns "flashcards".
func (g *FlashcardGenerator) Name() string { return "flashcards" }

// Description returns the text listed by the generators endpoint.
func (g *FlashcardGenerator) Description() string { return "Question and answer flashcards" }

// Generate asks the model for question, answer and difficulty triples and
// parses them into flashcards. Malformed blocks are skipped.
func (g *FlashcardGenerator) Generate(ctx context.Context, req port.GenerationRequest) (*port.GenerationResult, error) {
	count := countOrDefault(req.Count, DefaultFlashcards)

	systemPrompt := `You are a teacher writing study flashcards. Follow the output format exactly and do not add any other text.`
	userPrompt := fmt.Sprintf(`Generate exactly %d educational flashcards from the following text.
STRICT Format each flashcard as:
Q: [clear, specific question]
A: [concise, accurate answer]
D: [Difficulty level: easy, medium, or hard]

Separate each flashcard with "---"

Text:
%s`, count, Truncate(req.Text, flashcardTextLimit))

	response, err := g.ai.Chat(ctx, systemPrompt, userPrompt, nil)
	if err != nil {
		return nil, fmt.Errorf("flashcard generation: %w", err)
	}

	cards := ParseFlashcards(response, count)
	payload, err := json.Marshal(cards)
	if err != nil {
		return nil, fmt.Errorf("encode flashcards: %w", err)
	}
	return &port.GenerationResult{Kind: g.Name(), Payload: payload, Items: len(cards)}, nil
}

// ParseFlashcards reads Q:/A:/D: blocks separated by "---". Cards missing a
// question or an answer are dropped; at most limit cards are returned.
func ParseFlashcards(response string, limit int) []domain.Flashcard {
	cards := []domain.Flashcard{}
	for _, block := range blocks(response) {
		card := domain.Flashcard{Difficulty: domain.DifficultyMedium}
		for _, line := range strings.Split(block, "\n") {
			line = strings.TrimSpace(line)
			if v, ok := field(line, "Q:"); ok {
				card.Question = v
			} else if v, ok := field(line, "A:"); ok {
				card.Answer = v
			} else if v, ok := field(line, "D:"); ok {
				if d, ok := parseDifficulty(v); ok {
					card.Difficulty = d
				}
			}
		}
		if card.Question == "" || card.Answer == "" {
			continue
		}
		cards = append(cards, card)
		if len(cards) == limit {
			break
		}
	}
	return cards
}
