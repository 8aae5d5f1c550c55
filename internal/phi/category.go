package phi

import "slices"

// Category tags a kind of sensitive content found by the redactor.
type Category string

const (
	CategoryName    Category = "NAME"
	CategorySSN     Category = "SSN"
	CategoryPhone   Category = "PHONE"
	CategoryEmail   Category = "EMAIL"
	CategoryDOB     Category = "DOB"
	CategoryAddress Category = "ADDRESS"
)

// categoryOrder lists every category in redaction priority order.
var categoryOrder = []Category{
	CategoryName,
	CategorySSN,
	CategoryPhone,
	CategoryEmail,
	CategoryDOB,
	CategoryAddress,
}

// AllCategories returns every category in redaction priority order.
func AllCategories() []Category {
	return slices.Clone(categoryOrder)
}

func (c Category) String() string { return string(c) }

// Finding maps an emitted token back to its category.
type Finding struct {
	Token    string   `json:"token"`
	Category Category `json:"category"`
}

// Result is the output of a redaction pass.
type Result struct {
	RedactedText string    `json:"redacted_text"`
	Findings     []Finding `json:"findings"`
}

// Detected reports whether any category matched.
func (r Result) Detected() bool {
	return len(r.Findings) > 0
}

// Categories returns the distinct categories found, in priority order.
func (r Result) Categories() []Category {
	if len(r.Findings) == 0 {
		return nil
	}
	seen := make(map[Category]bool, len(r.Findings))
	for _, f := range r.Findings {
		seen[f.Category] = true
	}
	out := make([]Category, 0, len(seen))
	for _, c := range categoryOrder {
		if seen[c] {
			out = append(out, c)
		}
	}
	return out
}

// CategoryNames is Categories as plain strings, for storage and logs.
func (r Result) CategoryNames() []string {
	cats := r.Categories()
	if cats == nil {
		return nil
	}
	out := make([]string, len(cats))
	for i, c := range cats {
		out[i] = string(c)
	}
	return out
}
