// Package form models the fields of a rendered Easy Apply step and
// classifies raw field descriptors into a closed set of kinds.
package form

import (
	"regexp"
	"strings"
)

// Kind is the classified type of a form field. Unknown is a valid,
// non-failing outcome: downstream resolution treats it as "skip unless
// required".
type Kind int

const (
	Unknown Kind = iota
	ShortText
	LongText
	NumericText
	SingleChoice
	MultiChoice
	FileUpload
)

// String returns a stable name for logging.
func (k Kind) String() string {
	switch k {
	case ShortText:
		return "short_text"
	case LongText:
		return "long_text"
	case NumericText:
		return "numeric_text"
	case SingleChoice:
		return "single_choice"
	case MultiChoice:
		return "multi_choice"
	case FileUpload:
		return "file_upload"
	default:
		return "unknown"
	}
}

// Descriptor is the raw field description produced by the rendering
// collaborator for one element of the current step. Type carries the
// structural hint (input type attribute or tag name) when the source
// exposes one.
type Descriptor struct {
	Ref      string   `json:"ref"`
	Type     string   `json:"type"`
	Label    string   `json:"label"`
	Required bool     `json:"required"`
	Options  []string `json:"options,omitempty"`
	Value    string   `json:"value,omitempty"`
}

// Field is a classified descriptor. Ref is the opaque handle used to
// write the resolved value back through the rendering collaborator.
type Field struct {
	Ref      string
	Kind     Kind
	Label    string
	Required bool
	Options  []string
	Value    string
}

var whitespaceRE = regexp.MustCompile(`\s+`)

// CleanLabel collapses whitespace and strips the asterisks platforms
// append to required-field labels.
func CleanLabel(s string) string {
	return strings.TrimSpace(whitespaceRE.ReplaceAllString(strings.ReplaceAll(s, "*", ""), " "))
}

// numericLabelHints force NumericText even when the field is rendered as
// a plain text box.
var numericLabelHints = []string{
	"years of experience",
	"how many years",
	"number of years",
	"notice period",
	"expected salary",
	"current salary",
	"expected ctc",
	"current ctc",
}

// Classify maps a raw descriptor to a Field. The structural type wins
// first; the label text refines text inputs afterwards.
func Classify(d Descriptor) Field {
	f := Field{
		Ref:      d.Ref,
		Label:    CleanLabel(d.Label),
		Required: d.Required,
		Options:  d.Options,
		Value:    d.Value,
	}

	switch strings.ToLower(strings.TrimSpace(d.Type)) {
	case "textarea":
		f.Kind = LongText
	case "number", "numeric":
		f.Kind = NumericText
	case "select", "radio", "dropdown":
		f.Kind = SingleChoice
	case "checkbox":
		f.Kind = MultiChoice
	case "file":
		f.Kind = FileUpload
	case "text", "email", "tel", "url":
		f.Kind = ShortText
	default:
		f.Kind = Unknown
	}

	if f.Kind == ShortText {
		label := strings.ToLower(f.Label)
		for _, hint := range numericLabelHints {
			if strings.Contains(label, hint) {
				f.Kind = NumericText
				break
			}
		}
	}
	return f
}
