package game

import (
	"strings"
	"testing"
)

func TestPickWordExcludesUsedCaseInsensitive(t *testing.T) {
	wb := WordBank{
		"food": {"Avocado", "salsa", "hummus"},
	}

	used := map[string]struct{}{
		"avocado": {},
		"salsa":   {},
	}

	for i := 0; i < 20; i++ {
		word, err := wb.PickWord("food", used)
		if err != nil {
			t.Fatalf("pick: %v", err)
		}

		if word != "hummus" {
			t.Fatalf("used words must be excluded, got %q", word)
		}
	}
}

func TestPickWordExhausted(t *testing.T) {
	wb := WordBank{
		"food": {"avocado"},
	}

	used := map[string]struct{}{"avocado": {}}

	if _, err := wb.PickWord("food", used); err != ErrNoUnusedWords {
		t.Fatalf("want ErrNoUnusedWords, got %v", err)
	}
}

func TestPickWordUnknownCategory(t *testing.T) {
	wb := DefaultWordBank()

	if _, err := wb.PickWord("nope", nil); err != ErrUnknownCategory {
		t.Fatalf("want ErrUnknownCategory, got %v", err)
	}
}

func TestRandomCategoryComesFromBank(t *testing.T) {
	wb := DefaultWordBank()

	for i := 0; i < 20; i++ {
		category := wb.RandomCategory()
		if !wb.Contains(category) {
			t.Fatalf("random category %q not in bank", category)
		}
	}
}

func TestDefaultWordBankShape(t *testing.T) {
	wb := DefaultWordBank()

	if len(wb.Categories()) == 0 {
		t.Fatalf("default word bank is empty")
	}

	for _, category := range wb.Categories() {
		words := wb[category]
		if len(words) == 0 {
			t.Fatalf("category %q has no words", category)
		}

		seen := make(map[string]struct{}, len(words))
		for _, w := range words {
			key := strings.ToLower(w)
			if _, dup := seen[key]; dup {
				t.Fatalf("category %q has duplicate word %q", category, w)
			}
			seen[key] = struct{}{}
		}
	}
}
