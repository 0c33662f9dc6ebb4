package imagegen

import (
	"sort"
	"strings"
)

const styleSuffix = "Warm, hopeful documentary photography style, natural light, " +
	"no text, no logos, respectful depiction of people."

// categoryPrompts maps content categories to base prompts.
var categoryPrompts = map[string]string{
	"health":     "Community health workers running a free check-up day in a neighborhood clinic.",
	"awareness":  "A volunteer giving a health awareness talk to a small attentive audience.",
	"children":   "Children in a bright pediatric waiting room playing while waiting for a check-up.",
	"elderly":    "A nurse helping an elderly person during a home visit.",
	"nutrition":  "A colorful table of fresh vegetables and fruit at a nutrition workshop.",
	"volunteers": "A diverse group of volunteers packing medical supply boxes.",
	"events":     "An open-air charity health fair with booths and families walking around.",
	"donation":   "A blood donation drive with donors resting comfortably after donating.",
}

// Categories returns the known category names, sorted.
func Categories() []string {
	names := make([]string, 0, len(categoryPrompts))
	for name := range categoryPrompts {
		names = append(names, name)
	}

	sort.Strings(names)

	return names
}

// BuildPrompt returns the custom prompt, or the category prompt with the
// house style appended.
func BuildPrompt(req Request) (string, error) {
	if p := strings.TrimSpace(req.Prompt); p != "" {
		return p, nil
	}

	base, ok := categoryPrompts[strings.ToLower(strings.TrimSpace(req.Category))]
	if !ok {
		return "", ErrEmptyRequest
	}

	return base + " " + styleSuffix, nil
}
