package generate

import (
	"context"
	"encoding/json"
	"fmt"
	"regexp"
	"strings"

	"github.com/arturoeanton/go-study-assistant/internal/domain"
	"github.com/arturoeanton/go-study-assistant/internal/port"
)

// DefaultQuizQuestions is the number of questions requested when none is given.
const DefaultQuizQuestions = 5

const quizOptions = 4

var optionPrefix = regexp.MustCompile(`^O\d+:`)

// QuizGenerator turns document text into multiple choice questions.
type QuizGenerator struct {
	ai port.AIProvider
}

// NewQuizGenerator creates a quiz generator backed by ai.
func NewQuizGenerator(ai port.AIProvider) *QuizGenerator {
	return &QuizGenerator{ai: ai}
}

// Name returns "quiz".
func (g *QuizGenerator) Name() string { return "quiz" }

// Description returns the text listed by the generators endpoint.
func (g *QuizGenerator) Description() string { return "Multiple choice quiz with explanations" }

// Generate asks the model for multiple choice questions and parses them.
// Questions without four options and a correct answer are skipped.
func (g *QuizGenerator) Generate(ctx context.Context, req port.GenerationRequest) (*port.GenerationResult, error) {
	count := countOrDefault(req.Count, DefaultQuizQuestions)

	systemPrompt := `You are a teacher writing a multiple choice quiz. Follow the output format exactly and do not add any other text.`
	userPrompt := fmt.Sprintf(`Generate exactly %d multiple choice questions from the following text.
STRICT Format each question as:
Q: [Question]
O1: [Option 1]
O2: [Option 2]
O3: [Option 3]
O4: [Option 4]
C: [Correct option - exactly as written above]
E: [Brief explanation]
D: [Difficulty: easy, medium, or hard]

Separate questions with "---"

Text:
%s`, count, Truncate(req.Text, quizTextLimit))

	response, err := g.ai.Chat(ctx, systemPrompt, userPrompt, nil)
	if err != nil {
		return nil, fmt.Errorf("quiz generation: %w", err)
	}

	questions := ParseQuiz(response, count)
	payload, err := json.Marshal(questions)
	if err != nil {
		return nil, fmt.Errorf("encode quiz: %w", err)
	}
	return &port.GenerationResult{Kind: g.Name(), Payload: payload, Items: len(questions)}, nil
}

// ParseQuiz reads Q:/O<n>:/C:/E:/D: blocks separated by "---". Only questions
// with exactly four options and a correct answer are kept.
func ParseQuiz(response string, limit int) []domain.QuizQuestion {
	questions := []domain.QuizQuestion{}
	for _, block := range blocks(response) {
		q := domain.QuizQuestion{Options: []string{}, Difficulty: domain.DifficultyMedium}
		for _, line := range strings.Split(block, "\n") {
			line = strings.TrimSpace(line)
			if v, ok := field(line, "Q:"); ok {
				q.Question = v
			} else if loc := optionPrefix.FindStringIndex(line); loc != nil {
				q.Options = append(q.Options, strings.TrimSpace(line[loc[1]:]))
			} else if v, ok := field(line, "C:"); ok {
				q.CorrectAnswer = v
			} else if v, ok := field(line, "E:"); ok {
				q.Explanation = v
			} else if v, ok := field(line, "D:"); ok {
				if d, ok := parseDifficulty(v); ok {
					q.Difficulty = d
				}
			}
		}
		if q.Question == "" || len(q.Options) != quizOptions || q.CorrectAnswer == "" {
			continue
		}
		questions = append(questions, q)
		if len(questions) == limit {
			break
		}
	}
	return questions
}
