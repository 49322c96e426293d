// Package answer resolves classified form fields to concrete values.
//
// Resolution order is the core policy: specificity before generality,
// configured truth before composed text. Eligibility config wins over the
// custom answer tables, the tables win over STAR composition, and
// structural defaults come last. Anything left is Unresolved; the engine
// decides whether that blocks the step.
package answer

import (
	"regexp"
	"sort"
	"strconv"
	"strings"

	"easyapply/internal/config"
	"easyapply/internal/form"
)

// Rule identifies which resolution stage produced a value. Used for
// logging and precedence tests only.
type Rule int

const (
	RuleNone Rule = iota
	RuleEligibility
	RuleTable
	RuleSTAR
	RuleProfile
	RuleDefault
)

func (r Rule) String() string {
	switch r {
	case RuleEligibility:
		return "eligibility"
	case RuleTable:
		return "table"
	case RuleSTAR:
		return "star"
	case RuleProfile:
		return "profile"
	case RuleDefault:
		return "default"
	default:
		return "none"
	}
}

// Resolution is a resolved field value plus the rule that produced it.
type Resolution struct {
	Value string
	Rule  Rule
}

// behavioralHints mark a long-text label as an interview-style question
// answered with a STAR narrative.
var behavioralHints = []string{
	"describe a time",
	"describe a situation",
	"tell us about",
	"tell me about",
	"give an example",
	"share an example",
}

// defaultStarKeywords infer a STAR category from the question label.
// Extended (not replaced) by answers.star_keywords.
var defaultStarKeywords = map[string][]string{
	"conflict":   {"conflict", "disagreement", "dispute", "difficult coworker"},
	"leadership": {"leadership", "leader", "led", "mentored", "managed"},
	"failure":    {"failure", "failed", "mistake", "setback", "wrong"},
	"teamwork":   {"team", "teammate", "collaborate", "collaboration"},
	"challenge":  {"challenge", "challenging", "obstacle", "pressure", "deadline"},
	"success":    {"success", "proud", "achievement", "accomplished"},
}

const genericStarAnswer = "In a previous role I identified a recurring problem, took ownership of " +
	"fixing it, coordinated with the people affected, and delivered a measurable improvement. " +
	"I apply the same structured approach to every task I take on."

const genericPitch = "I am excited about this opportunity. My background and hands-on experience " +
	"align well with the role, and I look forward to contributing to your team."

// consentHints mark checkboxes that are safe to tick by default.
var consentHints = []string{"agree", "consent", "acknowledge", "confirm"}

// tableEntry is one row of an ordered lookup table. Tables are ordered
// longest key first so the most specific configured key wins, and the
// tie-break is lexicographic so resolution is fully deterministic.
type tableEntry[V any] struct {
	key string
	val V
}

// wordMatcher matches when every word of its source key appears as a
// whole word in the question, avoiding substring false positives ("art"
// in "part"). Compiled once at construction.
type wordMatcher []*regexp.Regexp

func compileWords(key string) wordMatcher {
	words := strings.Fields(key)
	m := make(wordMatcher, 0, len(words))
	for _, w := range words {
		m = append(m, regexp.MustCompile(`\b`+regexp.QuoteMeta(w)+`\b`))
	}
	return m
}

func (m wordMatcher) match(q string) bool {
	if len(m) == 0 {
		return false
	}
	for _, re := range m {
		if !re.MatchString(q) {
			return false
		}
	}
	return true
}

// starEntry is one configured behavioral narrative with its key's
// precompiled matcher.
type starEntry struct {
	key     string
	answer  string
	matcher wordMatcher
}

func orderedTable[V any](m map[string]V) []tableEntry[V] {
	out := make([]tableEntry[V], 0, len(m))
	for k, v := range m {
		out = append(out, tableEntry[V]{key: strings.ToLower(k), val: v})
	}
	sort.Slice(out, func(i, j int) bool {
		if len(out[i].key) != len(out[j].key) {
			return len(out[i].key) > len(out[j].key)
		}
		return out[i].key < out[j].key
	})
	return out
}

// Resolver answers screening questions from the applicant profile.
// Construct once per run; safe for reuse across attempts.
type Resolver struct {
	personal    config.PersonalConfig
	background  config.BackgroundConfig
	eligibility config.EligibilityConfig
	documents   config.DocumentsConfig

	yesNo        []tableEntry[string]
	numeric      []tableEntry[int]
	star         []starEntry
	starByKey    map[string]string
	starCats     []string
	starWords    map[string][]wordMatcher
	choicePolicy string
}

// NewResolver prepares the ordered lookup tables from the run config.
func NewResolver(cfg *config.Config) *Resolver {
	r := &Resolver{
		personal:     cfg.Personal,
		background:   cfg.Background,
		eligibility:  cfg.Eligibility,
		documents:    cfg.Documents,
		yesNo:        orderedTable(cfg.Answers.YesNo),
		numeric:      orderedTable(cfg.Answers.Numeric),
		starByKey:    make(map[string]string, len(cfg.Answers.StarAnswers)),
		starWords:    make(map[string][]wordMatcher, len(defaultStarKeywords)),
		choicePolicy: cfg.Answers.ChoiceDefault,
	}
	for _, entry := range orderedTable(cfg.Answers.StarAnswers) {
		r.starByKey[entry.key] = entry.val
		r.star = append(r.star, starEntry{
			key:     entry.key,
			answer:  entry.val,
			matcher: compileWords(entry.key),
		})
	}
	keywords := make(map[string][]string, len(defaultStarKeywords))
	for cat, words := range defaultStarKeywords {
		keywords[cat] = append(keywords[cat], words...)
	}
	for cat, words := range cfg.Answers.StarKeywords {
		cat = strings.ToLower(cat)
		keywords[cat] = append(keywords[cat], words...)
	}
	for cat, words := range keywords {
		for _, w := range words {
			r.starWords[cat] = append(r.starWords[cat], compileWords(w))
		}
		r.starCats = append(r.starCats, cat)
	}
	sort.Strings(r.starCats)
	return r
}

// Resolve returns the value to enter for a field, or ok=false when the
// field is Unresolved. Unresolved is not an error: the engine blocks the
// step only when the field was required.
func (r *Resolver) Resolve(f form.Field) (Resolution, bool) {
	q := strings.ToLower(form.CleanLabel(f.Label))

	switch f.Kind {
	case form.FileUpload:
		return r.resolveUpload(q)
	case form.SingleChoice:
		return r.resolveChoice(q, f.Options)
	case form.MultiChoice:
		if containsAny(q, consentHints) {
			return Resolution{Value: "Yes", Rule: RuleDefault}, true
		}
		// Non-consent checkboxes answer only from the configured table,
		// verbatim: a "No" leaves the box unchecked. No configured match
		// leaves the box untouched rather than ticking it by default.
		if v, ok := lookupSubstring(q, r.yesNo); ok {
			return Resolution{Value: v, Rule: RuleTable}, true
		}
		return Resolution{}, false
	case form.NumericText:
		return r.resolveNumeric(q)
	case form.LongText:
		return r.resolveText(q, true)
	case form.ShortText:
		return r.resolveText(q, false)
	default:
		// Unknown kinds take the skip path rather than failing.
		return Resolution{}, false
	}
}

// resolveText handles free-text inputs. Long text additionally goes
// through STAR composition for behavioral questions.
func (r *Resolver) resolveText(q string, long bool) (Resolution, bool) {
	if v, ok := r.eligibilityAnswer(q); ok {
		return Resolution{Value: v, Rule: RuleEligibility}, true
	}
	if v, ok := lookupSubstring(q, r.yesNo); ok {
		return Resolution{Value: v, Rule: RuleTable}, true
	}
	if v, ok := lookupSubstring(q, r.numeric); ok {
		return Resolution{Value: strconv.Itoa(v), Rule: RuleTable}, true
	}
	if long && containsAny(q, behavioralHints) {
		return Resolution{Value: r.starAnswer(q), Rule: RuleSTAR}, true
	}
	if v, ok := r.profileAnswer(q, long); ok {
		return Resolution{Value: v, Rule: RuleProfile}, true
	}
	return Resolution{}, false
}

// eligibilityAnswer covers the two questions every platform asks. The
// sponsorship check runs first: sponsorship questions frequently also
// contain "authorized".
func (r *Resolver) eligibilityAnswer(q string) (string, bool) {
	if strings.Contains(q, "sponsorship") || strings.Contains(q, "visa") {
		if r.eligibility.RequireSponsorship != "" {
			return r.eligibility.RequireSponsorship, true
		}
	}
	if strings.Contains(q, "authorized") || strings.Contains(q, "authorised") ||
		strings.Contains(q, "eligible to work") || strings.Contains(q, "legally eligible") {
		if r.eligibility.LegallyAuthorized != "" {
			return r.eligibility.LegallyAuthorized, true
		}
	}
	return "", false
}

// starAnswer composes the answer for a behavioral question: configured
// narrative for the inferred category, else the configured generic
// narrative, else a built-in fallback.
func (r *Resolver) starAnswer(q string) string {
	if cat, ok := r.starCategory(q); ok {
		if ans, ok := r.starByKey[cat]; ok {
			return strings.TrimSpace(ans)
		}
	}
	// Free-keyword entries: every word of a configured key present as a
	// whole word in the question selects that narrative.
	for _, entry := range r.star {
		if entry.key == "generic" || entry.key == "cover_letter" {
			continue
		}
		if entry.matcher.match(q) {
			return strings.TrimSpace(entry.answer)
		}
	}
	if ans, ok := r.starByKey["generic"]; ok {
		return strings.TrimSpace(ans)
	}
	return genericStarAnswer
}

func (r *Resolver) starCategory(q string) (string, bool) {
	for _, cat := range r.starCats {
		for _, m := range r.starWords[cat] {
			if m.match(q) {
				return cat, true
			}
		}
	}
	return "", false
}

// profileAnswer fills basic-info fields from the personal and background
// sections.
func (r *Resolver) profileAnswer(q string, long bool) (string, bool) {
	switch {
	case strings.Contains(q, "first name"):
		return nonEmpty(r.personal.FirstName)
	case strings.Contains(q, "last name") || strings.Contains(q, "surname"):
		return nonEmpty(r.personal.LastName)
	case strings.Contains(q, "email"):
		return nonEmpty(r.personal.Email)
	case strings.Contains(q, "phone") || strings.Contains(q, "mobile"):
		return nonEmpty(r.personal.Phone)
	case strings.Contains(q, "city"):
		return nonEmpty(r.personal.City)
	case strings.Contains(q, "country"):
		return nonEmpty(r.personal.Country)
	case strings.Contains(q, "linkedin"):
		return nonEmpty(r.personal.LinkedInProfile)
	case strings.Contains(q, "github"):
		return nonEmpty(r.personal.GitHubURL)
	case strings.Contains(q, "portfolio") || strings.Contains(q, "website"):
		return nonEmpty(r.personal.PortfolioURL)
	case strings.Contains(q, "salary") || strings.Contains(q, "compensation") || strings.Contains(q, "ctc"):
		return nonZero(r.background.ExpectedSalary)
	case strings.Contains(q, "notice"):
		return strconv.Itoa(r.background.NoticePeriodDays), true
	case strings.Contains(q, "experience"):
		return strconv.Itoa(r.background.YearsOfExperience), true
	}
	if long && (strings.Contains(q, "cover letter") || strings.Contains(q, "motivation") ||
		strings.Contains(q, "why do you want")) {
		if ans, ok := r.starByKey["cover_letter"]; ok {
			return strings.TrimSpace(ans), true
		}
		return genericPitch, true
	}
	return "", false
}

// resolveNumeric always yields a plain integer-valued string with no
// locale formatting.
func (r *Resolver) resolveNumeric(q string) (Resolution, bool) {
	if v, ok := r.eligibilityAnswer(q); ok {
		return Resolution{Value: v, Rule: RuleEligibility}, true
	}
	if v, ok := lookupSubstring(q, r.numeric); ok {
		return Resolution{Value: strconv.Itoa(v), Rule: RuleTable}, true
	}
	switch {
	case strings.Contains(q, "experience"):
		return Resolution{Value: strconv.Itoa(r.background.YearsOfExperience), Rule: RuleDefault}, true
	case strings.Contains(q, "notice"):
		return Resolution{Value: strconv.Itoa(r.background.NoticePeriodDays), Rule: RuleDefault}, true
	case strings.Contains(q, "salary") || strings.Contains(q, "compensation") || strings.Contains(q, "ctc"):
		if r.background.ExpectedSalary > 0 {
			return Resolution{Value: strconv.Itoa(r.background.ExpectedSalary), Rule: RuleDefault}, true
		}
	}
	return Resolution{}, false
}

// resolveChoice picks an option for dropdowns and radio groups.
// Configured answers are matched against the rendered options first;
// the configurable default policy is the last resort.
func (r *Resolver) resolveChoice(q string, options []string) (Resolution, bool) {
	if len(options) == 0 {
		return Resolution{}, false
	}
	if want, ok := r.eligibilityAnswer(q); ok {
		if opt, ok := matchOption(options, want); ok {
			return Resolution{Value: opt, Rule: RuleEligibility}, true
		}
	}
	if want, ok := lookupSubstring(q, r.yesNo); ok {
		if opt, ok := matchOption(options, want); ok {
			return Resolution{Value: opt, Rule: RuleTable}, true
		}
	}
	if opt, ok := r.backgroundOption(q, options); ok {
		return Resolution{Value: opt, Rule: RuleProfile}, true
	}
	return Resolution{Value: r.defaultOption(options), Rule: RuleDefault}, true
}

// backgroundOption matches education, experience, country, and currency
// dropdowns against the profile.
func (r *Resolver) backgroundOption(q string, options []string) (string, bool) {
	var want string
	switch {
	case strings.Contains(q, "education") || strings.Contains(q, "degree"):
		want = r.background.HighestEducation
	case strings.Contains(q, "experience"):
		want = strconv.Itoa(r.background.YearsOfExperience)
	case strings.Contains(q, "country"):
		want = r.personal.Country
	case strings.Contains(q, "currency"):
		want = r.background.Currency
	}
	if want == "" {
		return "", false
	}
	return matchOption(options, want)
}

// defaultOption applies the configured fallback policy. "affirmative"
// prefers a yes-like option and avoids starting options that read as
// disqualifying; "first" takes the options as rendered.
func (r *Resolver) defaultOption(options []string) string {
	if r.choicePolicy == "first" {
		return options[0]
	}
	for _, opt := range options {
		if strings.Contains(strings.ToLower(opt), "yes") {
			return opt
		}
	}
	for _, opt := range options {
		lower := strings.ToLower(strings.TrimSpace(opt))
		if !strings.HasPrefix(lower, "no") && !strings.Contains(lower, "decline") {
			return opt
		}
	}
	return options[0]
}

// resolveUpload maps upload fields to the configured documents by label
// keyword: cover letters by name, CV otherwise.
func (r *Resolver) resolveUpload(q string) (Resolution, bool) {
	path := r.documents.CVPath
	if strings.Contains(q, "cover") {
		path = r.documents.CoverLetterPath
	}
	if path == "" {
		return Resolution{}, false
	}
	return Resolution{Value: path, Rule: RuleDefault}, true
}

func lookupSubstring[V any](q string, table []tableEntry[V]) (V, bool) {
	for _, entry := range table {
		if entry.key != "" && strings.Contains(q, entry.key) {
			return entry.val, true
		}
	}
	var zero V
	return zero, false
}

func matchOption(options []string, want string) (string, bool) {
	want = strings.ToLower(strings.TrimSpace(want))
	if want == "" {
		return "", false
	}
	for _, opt := range options {
		if strings.Contains(strings.ToLower(opt), want) {
			return opt, true
		}
	}
	return "", false
}

func nonEmpty(v string) (string, bool) {
	return v, v != ""
}

func nonZero(v int) (string, bool) {
	if v <= 0 {
		return "", false
	}
	return strconv.Itoa(v), true
}

func containsAny(q string, hints []string) bool {
	for _, h := range hints {
		if strings.Contains(q, h) {
			return true
		}
	}
	return false
}
