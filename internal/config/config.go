// Package config loads and validates the YAML configuration that drives a
// run. A Config is loaded once at startup and treated as immutable for the
// run's duration; every component receives it explicitly rather than via
// package-level state.
package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Placeholder credential errors are surfaced before the engine starts so
// that no attempt is ever created against a half-configured run.
var (
	ErrNotFound    = errors.New("config file not found")
	ErrCredentials = errors.New("linkedin credentials are not set")
)

// Config holds all easyapply configuration.
type Config struct {
	LinkedIn    LinkedInConfig    `yaml:"linkedin"`
	Personal    PersonalConfig    `yaml:"personal"`
	Documents   DocumentsConfig   `yaml:"documents"`
	Search      SearchConfig      `yaml:"search"`
	Eligibility EligibilityConfig `yaml:"eligibility"`
	Background  BackgroundConfig  `yaml:"background"`
	Answers     AnswersConfig     `yaml:"answers"`
	Browser     BrowserConfig     `yaml:"browser"`
	Logging     LoggingConfig     `yaml:"logging"`
}

// LinkedInConfig carries the platform credentials. Prefer the
// LINKEDIN_EMAIL / LINKEDIN_PASSWORD environment variables (or a .env
// file) over committing these to the YAML file.
type LinkedInConfig struct {
	Email    string `yaml:"email"`
	Password string `yaml:"password"`
}

// PersonalConfig holds contact details used for basic-info fields.
type PersonalConfig struct {
	FirstName       string `yaml:"first_name"`
	LastName        string `yaml:"last_name"`
	Email           string `yaml:"email"`
	Phone           string `yaml:"phone"`
	City            string `yaml:"city"`
	Country         string `yaml:"country"`
	LinkedInProfile string `yaml:"linkedin_profile"`
	GitHubURL       string `yaml:"github_url"`
	PortfolioURL    string `yaml:"portfolio_url"`
}

// DocumentsConfig points at the files attached to upload fields.
type DocumentsConfig struct {
	CVPath          string `yaml:"cv_path"`
	CoverLetterPath string `yaml:"cover_letter_path"`
}

// SearchConfig controls which postings the job source yields.
type SearchConfig struct {
	JobTitles        []string `yaml:"job_titles"`
	Locations        []string `yaml:"locations"`
	EasyApplyOnly    bool     `yaml:"easy_apply_only"`
	MaxApplications  int      `yaml:"max_applications"`
	DatePosted       string   `yaml:"date_posted"` // past_24_hours, past_week, past_month, any_time
	ExperienceLevels []string `yaml:"experience_levels"`
}

// EligibilityConfig answers the two questions platforms always ask.
// Values are returned verbatim, so keep them in the form the platform
// expects ("Yes"/"No").
type EligibilityConfig struct {
	LegallyAuthorized  string `yaml:"legally_authorized"`
	RequireSponsorship string `yaml:"require_sponsorship"`
}

// BackgroundConfig feeds numeric and dropdown defaults.
type BackgroundConfig struct {
	YearsOfExperience int    `yaml:"years_of_experience"`
	NoticePeriodDays  int    `yaml:"notice_period_days"`
	ExpectedSalary    int    `yaml:"expected_salary"`
	HighestEducation  string `yaml:"highest_education"`
	Currency          string `yaml:"currency"`
}

// AnswersConfig holds the ordered lookup tables for screening questions.
// Keys are matched as case-insensitive substrings of the question label.
type AnswersConfig struct {
	YesNo   map[string]string `yaml:"yes_no"`
	Numeric map[string]int    `yaml:"numeric"`
	// StarAnswers maps a behavioral category (or free keyword) to a
	// configured STAR-method narrative. The reserved key "generic" is
	// used when a behavioral question matches no category.
	StarAnswers map[string]string `yaml:"star_answers"`
	// StarKeywords extends the built-in category inference keywords,
	// e.g. leadership: ["mentored", "led"].
	StarKeywords map[string][]string `yaml:"star_keywords"`
	// ChoiceDefault selects the fallback policy for choice fields with
	// no configured match: "affirmative" (default) picks the least
	// disqualifying option, "first" picks the first option.
	ChoiceDefault string `yaml:"choice_default"`
}

// BrowserConfig controls the rod session.
type BrowserConfig struct {
	Headless            bool   `yaml:"headless"`
	Bin                 string `yaml:"bin"`
	NavigationTimeoutMs int    `yaml:"navigation_timeout_ms"`
	FieldWaitMs         int    `yaml:"field_wait_ms"`
}

// NavigationTimeout returns the bounded wait for page navigation.
func (c BrowserConfig) NavigationTimeout() time.Duration {
	if c.NavigationTimeoutMs <= 0 {
		return 30 * time.Second
	}
	return time.Duration(c.NavigationTimeoutMs) * time.Millisecond
}

// FieldWait returns the bounded wait for a single element before the
// write is treated as failed.
func (c BrowserConfig) FieldWait() time.Duration {
	if c.FieldWaitMs <= 0 {
		return 5 * time.Second
	}
	return time.Duration(c.FieldWaitMs) * time.Millisecond
}

// LoggingConfig controls the run log, the CSV mirror, and the ledger
// database location.
type LoggingConfig struct {
	LogFile string `yaml:"log_file"`
	CSVPath string `yaml:"csv_path"`
	DBPath  string `yaml:"db_path"`
}

// DefaultConfig returns the defaults applied underneath the loaded file.
func DefaultConfig() *Config {
	return &Config{
		Search: SearchConfig{
			EasyApplyOnly:   true,
			MaxApplications: 50,
			DatePosted:      "past_month",
		},
		Eligibility: EligibilityConfig{
			LegallyAuthorized:  "Yes",
			RequireSponsorship: "No",
		},
		Background: BackgroundConfig{
			YearsOfExperience: 2,
		},
		Answers: AnswersConfig{
			ChoiceDefault: "affirmative",
		},
		Logging: LoggingConfig{
			LogFile: "easyapply.log",
			CSVPath: "Applications.csv",
			DBPath:  "applications.db",
		},
	}
}

// Load reads the YAML file at path, applies defaults and environment
// overrides, and returns the run configuration. A missing file is
// reported as ErrNotFound so the CLI can print a setup hint.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("%w: %s", ErrNotFound, path)
		}
		return nil, fmt.Errorf("read config: %w", err)
	}

	cfg := DefaultConfig()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parse config %s: %w", path, err)
	}
	cfg.applyEnvOverrides()
	return cfg, nil
}

// applyEnvOverrides lets credentials live outside the YAML file.
func (c *Config) applyEnvOverrides() {
	if v := os.Getenv("LINKEDIN_EMAIL"); v != "" {
		c.LinkedIn.Email = v
	}
	if v := os.Getenv("LINKEDIN_PASSWORD"); v != "" {
		c.LinkedIn.Password = v
	}
}

// Validate rejects configurations that must not start a run. Placeholder
// credentials (the "your_..." values shipped in the example file) count
// as missing.
func (c *Config) Validate() error {
	email := strings.TrimSpace(c.LinkedIn.Email)
	password := strings.TrimSpace(c.LinkedIn.Password)
	if email == "" || password == "" || strings.HasPrefix(email, "your_") {
		return ErrCredentials
	}
	if len(c.Search.JobTitles) == 0 {
		return errors.New("search.job_titles must list at least one title")
	}
	if c.Search.MaxApplications < 0 {
		return errors.New("search.max_applications must not be negative")
	}
	return nil
}

// Save writes the configuration back to disk.
func (c *Config) Save(path string) error {
	data, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("marshal config: %w", err)
	}
	return os.WriteFile(path, data, 0o644)
}
