package mood

import (
	"strings"
	"unicode"
)

// Label is the mood currency between classification and actuation.
type Label string

const (
	Focused  Label = "focused"
	Happy    Label = "happy"
	Sad      Label = "sad"
	Stressed Label = "stressed"
	Neutral  Label = "neutral"
)

// None marks "nothing applied yet" in the loop state. It is not a mood.
const None Label = ""

// Labels lists the closed set in table order.
var Labels = []Label{Happy, Sad, Stressed, Neutral, Focused}

// classifierLabels are the answers the model is asked to give.
var classifierLabels = map[Label]bool{
	Focused:  true,
	Happy:    true,
	Sad:      true,
	Stressed: true,
}

type keywordRule struct {
	keywords []string
	label    Label
}

// Checked in order; the first rule with any keyword contained in the
// response wins. Nothing matching degrades to Stressed.
var fallbackRules = []keywordRule{
	{keywords: []string{"focus"}, label: Focused},
	{keywords: []string{"smile", "happy", "joy"}, label: Happy},
	{keywords: []string{"tear", "cry", "upset", "sad"}, label: Sad},
}

const fallbackLabel = Stressed

func (l Label) String() string {
	if l == None {
		return "none"
	}
	return string(l)
}

// Valid reports whether l is a member of the closed set.
func (l Label) Valid() bool {
	switch l {
	case Focused, Happy, Sad, Stressed, Neutral:
		return true
	}
	return false
}

// ParseResponse turns free model text into a label. A single recognised
// first word is taken as is, otherwise the keyword table decides. It never
// fails: unrecognised text degrades to a fixed label.
func ParseResponse(content string) Label {
	content = strings.ToLower(strings.TrimSpace(content))

	fields := strings.Fields(content)
	if len(fields) > 0 {
		first := Label(strings.TrimFunc(fields[0], func(r rune) bool {
			return !unicode.IsLetter(r)
		}))
		if classifierLabels[first] {
			return first
		}
	}

	for _, rule := range fallbackRules {
		for _, kw := range rule.keywords {
			if strings.Contains(content, kw) {
				return rule.label
			}
		}
	}

	return fallbackLabel
}
