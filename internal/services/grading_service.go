package services

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"slices"
	"strconv"
	"strings"

	"github.com/SAP-F-2025/quiz-portal/internal/models"
)

// BlankSeparator separates the blanks of a fill-in answer.
const BlankSeparator = "|"

var errAnswerShape = errors.New("answer has the wrong shape for this question type")

// IsEmptyAnswer reports whether nothing was answered: absent, null, "" or [].
func IsEmptyAnswer(raw json.RawMessage) bool {
	trimmed := bytes.TrimSpace(raw)
	switch string(trimmed) {
	case "", "null", `""`, "[]":
		return true
	}
	return false
}

// DecodeOptionIDs accepts a single id or an array of ids, as strings or numbers.
func DecodeOptionIDs(raw json.RawMessage) ([]uint, error) {
	if IsEmptyAnswer(raw) {
		return nil, nil
	}

	var list []json.RawMessage
	if err := json.Unmarshal(raw, &list); err != nil {
		list = []json.RawMessage{raw}
	}

	ids := make([]uint, 0, len(list))
	for _, item := range list {
		id, err := decodeOptionID(item)
		if err != nil {
			return nil, err
		}
		if !slices.Contains(ids, id) {
			ids = append(ids, id)
		}
	}
	slices.Sort(ids)
	return ids, nil
}

func decodeOptionID(raw json.RawMessage) (uint, error) {
	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		id, err := strconv.ParseUint(strings.TrimSpace(s), 10, 64)
		if err != nil {
			return 0, fmt.Errorf("invalid option id %q: %w", s, errAnswerShape)
		}
		return uint(id), nil
	}
	var n uint
	if err := json.Unmarshal(raw, &n); err != nil {
		return 0, errAnswerShape
	}
	return n, nil
}

func DecodeText(raw json.RawMessage) (string, error) {
	if IsEmptyAnswer(raw) {
		return "", nil
	}
	var s string
	if err := json.Unmarshal(raw, &s); err != nil {
		return "", errAnswerShape
	}
	return s, nil
}

// ValidateAnswer checks the answer shape and that chosen options belong to the question.
func ValidateAnswer(q *models.Question, raw json.RawMessage) error {
	if IsEmptyAnswer(raw) {
		return nil
	}

	switch q.Type {
	case models.MultipleChoice, models.TrueFalse, models.MultipleAnswer:
		ids, err := DecodeOptionIDs(raw)
		if err != nil {
			return err
		}
		if q.Type != models.MultipleAnswer && len(ids) > 1 {
			return errors.New("only one option may be chosen")
		}
		for _, id := range ids {
			if !slices.ContainsFunc(q.Options, func(o models.Option) bool { return o.ID == id }) {
				return fmt.Errorf("option %d does not belong to question %d", id, q.ID)
			}
		}
		return nil
	case models.FillIn, models.Text:
		_, err := DecodeText(raw)
		return err
	default:
		return fmt.Errorf("unsupported question type %q", q.Type)
	}
}

// GradeAnswer scores one answer. Text answers return nil, blank or not, until
// marked by hand.
func GradeAnswer(q *models.Question, marks float64, raw json.RawMessage) *float64 {
	if q.Type.RequiresManualMarking() {
		return nil
	}
	zero := 0.0
	if IsEmptyAnswer(raw) {
		return &zero
	}

	var correct bool
	switch q.Type {
	case models.MultipleChoice, models.TrueFalse:
		ids, err := DecodeOptionIDs(raw)
		if err != nil || len(ids) != 1 {
			return &zero
		}
		correct = slices.Contains(q.CorrectOptionIDs(), ids[0])
	case models.MultipleAnswer:
		ids, err := DecodeOptionIDs(raw)
		if err != nil {
			return &zero
		}
		correct = slices.Equal(ids, q.CorrectOptionIDs())
	case models.FillIn:
		text, err := DecodeText(raw)
		if err != nil {
			return &zero
		}
		correct = matchBlanks(q.Blanks(), text)
	case models.Text:
		return nil
	}

	if correct {
		return &marks
	}
	return &zero
}

func matchBlanks(blanks [][]string, text string) bool {
	if len(blanks) == 0 {
		return false
	}
	parts := []string{text}
	if len(blanks) > 1 {
		parts = strings.Split(text, BlankSeparator)
	}
	if len(parts) != len(blanks) {
		return false
	}

	for i, part := range parts {
		given := strings.TrimSpace(part)
		if !slices.ContainsFunc(blanks[i], func(accepted string) bool {
			return strings.EqualFold(strings.TrimSpace(accepted), given)
		}) {
			return false
		}
	}
	return true
}

// CorrectAnswerOf encodes the expected answer in the same shape a taker submits.
// Text questions have none.
func CorrectAnswerOf(q *models.Question) json.RawMessage {
	var value any
	switch q.Type {
	case models.MultipleChoice, models.TrueFalse:
		ids := q.CorrectOptionIDs()
		if len(ids) == 0 {
			return nil
		}
		value = strconv.FormatUint(uint64(ids[0]), 10)
	case models.MultipleAnswer:
		ids := q.CorrectOptionIDs()
		strs := make([]string, len(ids))
		for i, id := range ids {
			strs[i] = strconv.FormatUint(uint64(id), 10)
		}
		value = strs
	case models.FillIn:
		blanks := q.Blanks()
		first := make([]string, len(blanks))
		for i, accepted := range blanks {
			first[i] = accepted[0]
		}
		value = strings.Join(first, BlankSeparator)
	default:
		return nil
	}

	data, err := json.Marshal(value)
	if err != nil {
		return nil
	}
	return data
}

// optionViews strips correctness from options.
func optionViews(options []models.Option) []models.OptionView {
	views := make([]models.OptionView, 0, len(options))
	for _, o := range options {
		views = append(views, models.OptionView{ID: o.ID, Answer: o.Answer, BlankOrder: o.BlankOrder})
	}
	return views
}
