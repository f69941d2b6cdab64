package board

import (
	"errors"
	"fmt"
)

const (
	// CategoriesPerRound is the number of categories on each of the two
	// standard boards. A full generation request carries 11 category names:
	// five per round plus one for the final clue.
	CategoriesPerRound = 5
	CluesPerCategory   = 5
	TotalCategories    = CategoriesPerRound*2 + 1
)

type Clue struct {
	Value    int    `json:"value"`
	Question string `json:"question"`
	Answer   string `json:"answer"`
}

type Category struct {
	Title string `json:"title"`
	Clues []Clue `json:"clues"`
}

type FinalClue struct {
	Category string `json:"category"`
	Question string `json:"question"`
	Answer   string `json:"answer"`
}

// Data is a fully generated game board: two standard rounds plus the final
// clue. Once installed on a session it is never regenerated; only per-clue
// cleared tracking changes afterwards.
type Data struct {
	FirstRound  []Category `json:"firstRound"`
	SecondRound []Category `json:"secondRound"`
	Final       FinalClue  `json:"finalJeopardy"`
}

// RoundValues returns the clue values for the given round number (1 or 2).
// Second-round clues are worth double.
func RoundValues(round int) [CluesPerCategory]int {
	values := [CluesPerCategory]int{200, 400, 600, 800, 1000}
	if round == 2 {
		for i := range values {
			values[i] *= 2
		}
	}
	return values
}

func (d *Data) Validate() error {
	if err := validateRound(d.FirstRound, 1); err != nil {
		return fmt.Errorf("first round: %w", err)
	}
	if err := validateRound(d.SecondRound, 2); err != nil {
		return fmt.Errorf("second round: %w", err)
	}
	if d.Final.Question == "" || d.Final.Answer == "" {
		return errors.New("final clue is incomplete")
	}
	return nil
}

func validateRound(categories []Category, round int) error {
	if len(categories) != CategoriesPerRound {
		return fmt.Errorf("expected %d categories, got %d", CategoriesPerRound, len(categories))
	}
	for _, cat := range categories {
		if cat.Title == "" {
			return errors.New("category with empty title")
		}
		if len(cat.Clues) != CluesPerCategory {
			return fmt.Errorf("category %q: expected %d clues, got %d", cat.Title, CluesPerCategory, len(cat.Clues))
		}
		for i, clue := range cat.Clues {
			if clue.Question == "" || clue.Answer == "" {
				return fmt.Errorf("category %q clue %d is incomplete", cat.Title, i)
			}
		}
	}
	return nil
}
