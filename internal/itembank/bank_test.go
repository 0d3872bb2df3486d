package itembank

import (
	"errors"
	"strings"
	"testing"

	"alpharia-assessment/internal/domain"
)

func TestDefaultBankShape(t *testing.T) {
	bank := Default()
	if err := bank.Validate(); err != nil {
		t.Fatalf("default bank invalid: %v", err)
	}
	if len(bank.Sections) != 17 {
		t.Fatalf("expected 17 sections, got %d", len(bank.Sections))
	}
	wantOrder := []string{"uppercase", "lowercase", "sentences", "words-preprimer"}
	for i, key := range wantOrder {
		if bank.Sections[i].Key != key {
			t.Fatalf("section %d: expected %s, got %s", i, key, bank.Sections[i].Key)
		}
	}
	if bank.Sections[16].Key != "passages-grade5" {
		t.Fatalf("expected last section passages-grade5, got %s", bank.Sections[16].Key)
	}

	upper, _ := bank.Section("uppercase")
	lower, _ := bank.Section("lowercase")
	sent, _ := bank.Section("sentences")
	if len(upper.Items) != 26 || len(lower.Items) != 26 || len(sent.Items) != 5 {
		t.Fatalf("unexpected letter/sentence sizes: %d %d %d", len(upper.Items), len(lower.Items), len(sent.Items))
	}
	if bank.TotalItems() != 26+26+5+7*10+7 {
		t.Fatalf("unexpected total items %d", bank.TotalItems())
	}
}

func TestValidateRejectsEmptySection(t *testing.T) {
	bank := Bank{ID: "b", Sections: []Section{{Key: "empty", Title: "Empty", Kind: KindWord}}}
	if err := bank.Validate(); !errors.Is(err, domain.ErrEmptyCategory) {
		t.Fatalf("expected ErrEmptyCategory, got %v", err)
	}
}

func TestValidateRejectsDuplicateItems(t *testing.T) {
	bank := Bank{ID: "b", Sections: []Section{{
		Key: "w", Title: "Words", Kind: KindWord,
		Items: []Item{{ID: "cat", Kind: KindWord, Text: "cat"}, {ID: "cat", Kind: KindWord, Text: "cat"}},
	}}}
	if err := bank.Validate(); !errors.Is(err, domain.ErrDuplicateItem) {
		t.Fatalf("expected ErrDuplicateItem, got %v", err)
	}
}

func TestValidateRejectsUnknownKind(t *testing.T) {
	bank := Bank{ID: "b", Sections: []Section{{
		Key: "w", Title: "Words", Kind: "picture",
		Items: []Item{{ID: "cat", Kind: KindWord, Text: "cat"}},
	}}}
	if err := bank.Validate(); err == nil {
		t.Fatalf("expected validation error for unknown kind")
	}
}

func TestPassageDisplayAndExpected(t *testing.T) {
	bank := Default()
	sec, ok := bank.Section("passages-grade5")
	if !ok {
		t.Fatalf("missing passage section")
	}
	item := sec.Items[0]
	if strings.Contains(item.Expected(), "\n") {
		t.Fatalf("expected text should be flattened: %q", item.Expected())
	}
	if !strings.HasSuffix(item.Display(), "...") {
		t.Fatalf("long passage display should be truncated: %q", item.Display())
	}

	word := Item{ID: "cat", Kind: KindWord, Text: "cat"}
	if word.Display() != "cat" {
		t.Fatalf("word display changed: %q", word.Display())
	}
}
