package app

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"alpharia-assessment/internal/domain"
	"alpharia-assessment/internal/itembank"
)

// BankLoader fetches an item bank from a backing store.
type BankLoader interface {
	LoadBank(ctx context.Context, id string) (itembank.Bank, error)
}

// DocumentBankLoader reads custom banks from the "banks" collection.
// The default bank is always the built-in catalog.
type DocumentBankLoader struct {
	docs DocumentRepository
}

func NewDocumentBankLoader(docs DocumentRepository) *DocumentBankLoader {
	return &DocumentBankLoader{docs: docs}
}

func (l *DocumentBankLoader) LoadBank(ctx context.Context, id string) (itembank.Bank, error) {
	if id == "" || id == itembank.DefaultBankID {
		return itembank.Default(), nil
	}
	if l.docs == nil {
		return itembank.Bank{}, fmt.Errorf("%w: %q", domain.ErrBankNotFound, id)
	}
	doc, err := l.docs.GetDocument(ctx, CollectionBanks, id)
	if errors.Is(err, domain.ErrDocumentNotFound) {
		return itembank.Bank{}, fmt.Errorf("%w: %q", domain.ErrBankNotFound, id)
	}
	if err != nil {
		return itembank.Bank{}, err
	}
	var bank itembank.Bank
	if err := json.Unmarshal(doc.Data, &bank); err != nil {
		return itembank.Bank{}, fmt.Errorf("decode bank %s: %w", id, err)
	}
	if err := bank.Validate(); err != nil {
		return itembank.Bank{}, err
	}
	return bank, nil
}
