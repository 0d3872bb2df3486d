package itembank

import "fmt"

// Tier is a graded difficulty level shared by word lists and passages.
type Tier struct {
	Key   string
	Label string
}

// Tiers in presentation order.
var Tiers = []Tier{
	{Key: "preprimer", Label: "Pre-Primer"},
	{Key: "primer", Label: "Primer"},
	{Key: "grade1", Label: "Grade 1"},
	{Key: "grade2", Label: "Grade 2"},
	{Key: "grade3", Label: "Grade 3"},
	{Key: "grade4", Label: "Grade 4"},
	{Key: "grade5", Label: "Grade 5"},
}

var sentences = []string{
	"The cat sat on the mat.",
	"I can see a big red ball.",
	"We like to play in the park.",
	"The dog ran to the little boy.",
	"She has a green hat and a blue bag.",
}

var wordLists = map[string][]string{
	"preprimer": {"a", "and", "away", "big", "blue", "can", "come", "down", "find", "for"},
	"primer":    {"all", "am", "are", "at", "ate", "be", "black", "brown", "but", "came"},
	"grade1":    {"after", "again", "an", "any", "as", "ask", "by", "could", "every", "fly"},
	"grade2":    {"always", "around", "because", "been", "before", "best", "both", "buy", "call", "cold"},
	"grade3":    {"about", "better", "bring", "carry", "clean", "cut", "done", "draw", "drink", "eight"},
	"grade4":    {"answer", "believe", "certain", "during", "enough", "finally", "heard", "island", "machine", "several"},
	"grade5":    {"although", "ancient", "apparent", "audience", "commercial", "descend", "environment", "especially", "necessary", "solution"},
}

var passages = map[string][]string{
	"preprimer": {
		"I see a cat.\n\nThe cat is big. The cat can run.",
	},
	"primer": {
		"Sam has a red ball. He likes to play with it.\n\nThe ball went up. Sam ran to get it.",
	},
	"grade1": {
		"Ana went to the park with her dad. They sat on a bench and had lunch.\n\nA small bird came to eat the crumbs. Ana gave it a piece of bread.",
	},
	"grade2": {
		"Every morning Ben feeds his fish before school. The fish swim to the top when they see him.\n\nOne day Ben forgot. When he came home the fish were waiting by the glass.",
	},
	"grade3": {
		"The class planted seeds in paper cups near the window. Each student watered a cup and wrote down how tall the plant grew.\n\nAfter two weeks the beans were the tallest. The students decided that beans need lots of light.",
	},
	"grade4": {
		"Long before bridges were built, people crossed the river on a wooden ferry. The ferry was pulled along a thick rope by a strong team of horses.\n\nWhen the first bridge opened, the ferry was no longer needed. Today the old rope hangs in the town museum.",
	},
	"grade5": {
		"Scientists who study weather collect information from balloons, satellites, and ground stations. They combine these measurements to predict storms several days ahead.\n\nAccurate forecasts give communities time to prepare. Farmers can protect crops and families can stay safe when severe weather approaches.",
	},
}

// Default returns the built-in seventeen section bank.
func Default() Bank {
	sections := make([]Section, 0, 3+2*len(Tiers))
	sections = append(sections,
		letterSection("uppercase", "Uppercase Letters", 'A'),
		letterSection("lowercase", "Lowercase Letters", 'a'),
		sentenceSection(),
	)
	for _, t := range Tiers {
		sections = append(sections, wordSection(t))
	}
	for _, t := range Tiers {
		sections = append(sections, passageSection(t))
	}
	return Bank{ID: DefaultBankID, Title: "Alpharia Literacy Assessment", Sections: sections}
}

func letterSection(key, title string, first rune) Section {
	items := make([]Item, 0, 26)
	for r := first; r < first+26; r++ {
		items = append(items, Item{ID: string(r), Kind: KindLetter, Text: string(r)})
	}
	return Section{Key: key, Title: title, Kind: KindLetter, Items: items}
}

func sentenceSection() Section {
	items := make([]Item, len(sentences))
	for i, s := range sentences {
		items[i] = Item{ID: fmt.Sprintf("sentence-%d", i+1), Kind: KindSentence, Text: s}
	}
	return Section{Key: "sentences", Title: "Sentences", Kind: KindSentence, Items: items}
}

func wordSection(t Tier) Section {
	words := wordLists[t.Key]
	items := make([]Item, len(words))
	for i, w := range words {
		items[i] = Item{ID: w, Kind: KindWord, Text: w, Tier: t.Key}
	}
	return Section{Key: "words-" + t.Key, Title: "Word List: " + t.Label, Kind: KindWord, Items: items}
}

func passageSection(t Tier) Section {
	texts := passages[t.Key]
	items := make([]Item, len(texts))
	for i, p := range texts {
		items[i] = Item{ID: fmt.Sprintf("passage-%s-%d", t.Key, i+1), Kind: KindPassage, Text: p, Tier: t.Key}
	}
	return Section{Key: "passages-" + t.Key, Title: "Passage: " + t.Label, Kind: KindPassage, Items: items}
}
