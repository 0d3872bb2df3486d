package itembank

import (
	"fmt"
	"strings"

	"alpharia-assessment/internal/domain"
	"github.com/go-playground/validator/v10"
)

// Kind is the stimulus type of an item.
type Kind string

const (
	KindLetter   Kind = "letter"
	KindSentence Kind = "sentence"
	KindWord     Kind = "word"
	KindPassage  Kind = "passage"
)

// DefaultBankID names the built-in bank that is always available.
const DefaultBankID = "default"

// Item is an immutable stimulus.
type Item struct {
	ID   string `json:"id" validate:"required"`
	Kind Kind   `json:"kind" validate:"required,oneof=letter sentence word passage"`
	Text string `json:"text" validate:"required"`
	Tier string `json:"tier,omitempty"`
}

// Section is one category of items presented together.
type Section struct {
	Key   string `json:"key" validate:"required"`
	Title string `json:"title" validate:"required"`
	Kind  Kind   `json:"kind" validate:"required,oneof=letter sentence word passage"`
	Items []Item `json:"items" validate:"dive"`
}

// Bank is the ordered list of sections that make up one test.
type Bank struct {
	ID       string    `json:"id" validate:"required"`
	Title    string    `json:"title"`
	Sections []Section `json:"sections" validate:"required,min=1,dive"`
}

var validate = validator.New()

// Validate checks the bank before any session is built from it.
func (b Bank) Validate() error {
	keys := make(map[string]struct{}, len(b.Sections))
	for _, s := range b.Sections {
		if len(s.Items) == 0 {
			return fmt.Errorf("section %q: %w", s.Key, domain.ErrEmptyCategory)
		}
		if _, dup := keys[s.Key]; dup {
			return fmt.Errorf("section key %q: %w", s.Key, domain.ErrDuplicateItem)
		}
		keys[s.Key] = struct{}{}

		seen := make(map[string]struct{}, len(s.Items))
		for _, it := range s.Items {
			if _, dup := seen[it.ID]; dup {
				return fmt.Errorf("section %q item %q: %w", s.Key, it.ID, domain.ErrDuplicateItem)
			}
			seen[it.ID] = struct{}{}
		}
	}
	if err := validate.Struct(b); err != nil {
		return fmt.Errorf("invalid bank %q: %w", b.ID, err)
	}
	return nil
}

// Section returns the section with the given key.
func (b Bank) Section(key string) (Section, bool) {
	for _, s := range b.Sections {
		if s.Key == key {
			return s, true
		}
	}
	return Section{}, false
}

// TotalItems is the sum of every section's item count.
func (b Bank) TotalItems() int {
	total := 0
	for _, s := range b.Sections {
		total += len(s.Items)
	}
	return total
}

// Lookup returns the item with the given id.
func (s Section) Lookup(id string) (Item, bool) {
	for _, it := range s.Items {
		if it.ID == id {
			return it, true
		}
	}
	return Item{}, false
}

// IDs lists item identifiers in catalog order.
func (s Section) IDs() []string {
	ids := make([]string, len(s.Items))
	for i, it := range s.Items {
		ids[i] = it.ID
	}
	return ids
}

// Expected is the text a spoken response is compared against.
// Paragraph breaks and runs of whitespace collapse to single spaces.
func (it Item) Expected() string {
	return strings.Join(strings.Fields(it.Text), " ")
}

const displayLimit = 60

// Display is the short label used in report tables.
func (it Item) Display() string {
	if it.Kind != KindPassage {
		return it.Text
	}
	flat := it.Expected()
	runes := []rune(flat)
	if len(runes) <= displayLimit {
		return flat
	}
	return strings.TrimSpace(string(runes[:displayLimit])) + "..."
}
