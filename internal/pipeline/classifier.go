package pipeline

import "strings"

// Verdict is the outcome of a yes/no classification reply.
type Verdict struct {
	Accepted bool
	Reason   string
}

// Classifier turns a model reply into a verdict. Implementations only look at
// the reply text; the model call itself happens in the stage.
type Classifier interface {
	Classify(reply string) Verdict
}

type ClassifierFunc func(reply string) Verdict

func (f ClassifierFunc) Classify(reply string) Verdict {
	return f(reply)
}

const affirmative = "yes"

// ContainsYes accepts any reply containing "yes", case-insensitively. A
// rejection carries the trimmed reply as its reason. It also accepts a
// rejection reason that happens to contain the word.
var ContainsYes ClassifierFunc = func(reply string) Verdict {
	if strings.Contains(strings.ToLower(reply), affirmative) {
		return Verdict{Accepted: true}
	}
	return Verdict{Reason: strings.TrimSpace(reply)}
}

// StartsWithYes accepts replies whose trimmed, lowercased text begins with "yes".
var StartsWithYes ClassifierFunc = func(reply string) Verdict {
	trimmed := strings.TrimSpace(reply)
	if strings.HasPrefix(strings.ToLower(trimmed), affirmative) {
		return Verdict{Accepted: true}
	}
	return Verdict{Reason: trimmed}
}
