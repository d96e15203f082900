// Package puzzle loads the Lichess puzzle database, whose lines seed the
// positions the trainer explores.
package puzzle

import (
	"errors"
	"fmt"
	"math/rand"
	"strings"
)

// Column indexes of a corpus row.
const (
	FieldID = iota
	FieldFEN
	FieldMoves
	FieldRating
	FieldRatingDeviation
	FieldPopularity
	FieldNbPlays
	FieldThemes
	FieldGameURL
	FieldOpeningFamily
	FieldOpeningVariation

	NumFields
)

// FieldNames are the column headers of the corpus, in order.
var FieldNames = [NumFields]string{
	"PuzzleId", "FEN", "Moves", "Rating", "RatingDeviation", "Popularity",
	"NbPlays", "Themes", "GameUrl", "OpeningFamily", "OpeningVariation",
}

// ErrNoPuzzles is returned when no puzzle carries the requested themes.
var ErrNoPuzzles = errors.New("puzzle: no puzzle matches the requested themes")

// Puzzle is one corpus row. Moves is a space-separated list of UCI moves
// played from FEN; Themes is a space-separated tag list.
type Puzzle struct {
	ID               string
	FEN              string
	Moves            string
	Rating           string
	RatingDeviation  string
	Popularity       string
	NbPlays          string
	Themes           string
	GameURL          string
	OpeningFamily    string
	OpeningVariation string
}

func (p *Puzzle) field(i int) *string {
	switch i {
	case FieldID:
		return &p.ID
	case FieldFEN:
		return &p.FEN
	case FieldMoves:
		return &p.Moves
	case FieldRating:
		return &p.Rating
	case FieldRatingDeviation:
		return &p.RatingDeviation
	case FieldPopularity:
		return &p.Popularity
	case FieldNbPlays:
		return &p.NbPlays
	case FieldThemes:
		return &p.Themes
	case FieldGameURL:
		return &p.GameURL
	case FieldOpeningFamily:
		return &p.OpeningFamily
	case FieldOpeningVariation:
		return &p.OpeningVariation
	}
	panic(fmt.Sprintf("puzzle: field index %d out of range", i))
}

// Field returns column i.
func (p *Puzzle) Field(i int) string {
	return *p.field(i)
}

// SetField sets column i.
func (p *Puzzle) SetField(i int, v string) {
	*p.field(i) = v
}

// HasTheme reports whether tag is one of the puzzle's themes.
func (p *Puzzle) HasTheme(tag string) bool {
	for _, t := range strings.Fields(p.Themes) {
		if t == tag {
			return true
		}
	}
	return false
}

// HasThemes reports whether the puzzle carries every tag.
func (p *Puzzle) HasThemes(tags ...string) bool {
	for _, tag := range tags {
		if !p.HasTheme(tag) {
			return false
		}
	}
	return true
}

// Corpus is an in-memory puzzle collection.
type Corpus struct {
	Puzzles []Puzzle

	// filtered caches Pick's candidate indexes per theme set
	filtered map[string][]int
}

// Len returns the number of puzzles.
func (c *Corpus) Len() int {
	return len(c.Puzzles)
}

// Filter returns a corpus of the puzzles carrying every tag.
func (c *Corpus) Filter(tags ...string) *Corpus {
	out := &Corpus{}
	for _, i := range c.matching(tags) {
		out.Puzzles = append(out.Puzzles, c.Puzzles[i])
	}
	return out
}

func (c *Corpus) matching(tags []string) []int {
	key := strings.Join(tags, " ")
	if idx, ok := c.filtered[key]; ok {
		return idx
	}
	idx := []int{}
	for i := range c.Puzzles {
		if c.Puzzles[i].HasThemes(tags...) {
			idx = append(idx, i)
		}
	}
	if c.filtered == nil {
		c.filtered = make(map[string][]int)
	}
	c.filtered[key] = idx
	return idx
}

// Pick draws uniformly among the puzzles carrying every tag.
func (c *Corpus) Pick(rng *rand.Rand, tags ...string) (*Puzzle, error) {
	idx := c.matching(tags)
	if len(idx) == 0 {
		return nil, fmt.Errorf("%w: %q", ErrNoPuzzles, tags)
	}
	return &c.Puzzles[idx[rng.Intn(len(idx))]], nil
}
