package form

import "testing"

func TestClassify_StructuralTypes(t *testing.T) {
	cases := []struct {
		name string
		desc Descriptor
		want Kind
	}{
		{"text input", Descriptor{Type: "text", Label: "First name"}, ShortText},
		{"email input", Descriptor{Type: "email", Label: "Email address"}, ShortText},
		{"phone input", Descriptor{Type: "tel", Label: "Mobile phone number"}, ShortText},
		{"textarea", Descriptor{Type: "textarea", Label: "Tell us about yourself"}, LongText},
		{"number input", Descriptor{Type: "number", Label: "How many?"}, NumericText},
		{"select", Descriptor{Type: "select", Label: "Country", Options: []string{"India", "USA"}}, SingleChoice},
		{"radio group", Descriptor{Type: "radio", Label: "Are you willing to relocate?", Options: []string{"Yes", "No"}}, SingleChoice},
		{"checkbox", Descriptor{Type: "checkbox", Label: "I agree to the terms"}, MultiChoice},
		{"file input", Descriptor{Type: "file", Label: "Upload your resume"}, FileUpload},
		{"unrecognized", Descriptor{Type: "color", Label: "Pick one"}, Unknown},
		{"empty type", Descriptor{Label: "Mystery widget"}, Unknown},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got := Classify(tc.desc)
			if got.Kind != tc.want {
				t.Errorf("Classify(%q/%q) = %v, want %v", tc.desc.Type, tc.desc.Label, got.Kind, tc.want)
			}
		})
	}
}

func TestClassify_LabelRefinesTextInputs(t *testing.T) {
	// A text box asking for years of experience is numeric even though
	// the markup says text.
	got := Classify(Descriptor{Type: "text", Label: "Years of experience with Go *"})
	if got.Kind != NumericText {
		t.Fatalf("expected NumericText, got %v", got.Kind)
	}

	// Label refinement never touches non-text structural types.
	got = Classify(Descriptor{Type: "textarea", Label: "Describe your years of experience"})
	if got.Kind != LongText {
		t.Fatalf("expected LongText, got %v", got.Kind)
	}
}

func TestClassify_PreservesDescriptor(t *testing.T) {
	d := Descriptor{
		Ref:      "3",
		Type:     "select",
		Label:    "  Highest   education *level* ",
		Required: true,
		Options:  []string{"Bachelor", "Master"},
		Value:    "Bachelor",
	}
	f := Classify(d)
	if f.Ref != "3" || !f.Required || len(f.Options) != 2 || f.Value != "Bachelor" {
		t.Fatalf("descriptor data lost in classification: %+v", f)
	}
	if f.Label != "Highest education level" {
		t.Fatalf("label not cleaned: %q", f.Label)
	}
}

func TestCleanLabel(t *testing.T) {
	cases := map[string]string{
		"First name *":             "First name",
		"  spaced\t\nout  label  ": "spaced out label",
		"plain":                    "plain",
		"":                         "",
	}
	for in, want := range cases {
		if got := CleanLabel(in); got != want {
			t.Errorf("CleanLabel(%q) = %q, want %q", in, got, want)
		}
	}
}
