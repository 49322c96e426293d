package config

import (
	"errors"
	"path/filepath"
	"testing"
)

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()

	if !cfg.Search.EasyApplyOnly {
		t.Error("easy_apply_only should default to true")
	}
	if cfg.Search.MaxApplications != 50 {
		t.Errorf("max_applications = %d, want 50", cfg.Search.MaxApplications)
	}
	if cfg.Answers.ChoiceDefault != "affirmative" {
		t.Errorf("choice_default = %q, want affirmative", cfg.Answers.ChoiceDefault)
	}
	if cfg.Logging.CSVPath != "Applications.csv" {
		t.Errorf("csv_path = %q, want Applications.csv", cfg.Logging.CSVPath)
	}
}

func TestLoadMissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "nope.yaml"))
	if !errors.Is(err, ErrNotFound) {
		t.Fatalf("err = %v, want ErrNotFound", err)
	}
}

func TestLoadSaveRoundtrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")

	cfg := DefaultConfig()
	cfg.LinkedIn.Email = "ada@example.com"
	cfg.LinkedIn.Password = "hunter2"
	cfg.Search.JobTitles = []string{"SRE", "Platform Engineer"}
	cfg.Search.Locations = []string{"Remote"}
	cfg.Answers.YesNo = map[string]string{"relocate": "Yes"}
	cfg.Answers.Numeric = map[string]int{"years of experience with go": 3}
	if err := cfg.Save(path); err != nil {
		t.Fatalf("Save: %v", err)
	}

	got, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if got.LinkedIn.Email != "ada@example.com" {
		t.Errorf("email = %q", got.LinkedIn.Email)
	}
	if len(got.Search.JobTitles) != 2 || got.Search.JobTitles[0] != "SRE" {
		t.Errorf("job_titles = %v", got.Search.JobTitles)
	}
	if got.Answers.Numeric["years of experience with go"] != 3 {
		t.Errorf("numeric table = %v", got.Answers.Numeric)
	}
	// Defaults must survive underneath a partial file too.
	if got.Answers.ChoiceDefault != "affirmative" {
		t.Errorf("choice_default = %q", got.Answers.ChoiceDefault)
	}
}

func TestLoadEnvOverrides(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	cfg := DefaultConfig()
	cfg.LinkedIn.Email = "file@example.com"
	cfg.LinkedIn.Password = "from-file"
	if err := cfg.Save(path); err != nil {
		t.Fatalf("Save: %v", err)
	}

	t.Setenv("LINKEDIN_EMAIL", "env@example.com")
	t.Setenv("LINKEDIN_PASSWORD", "from-env")

	got, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if got.LinkedIn.Email != "env@example.com" {
		t.Errorf("email = %q, want env override", got.LinkedIn.Email)
	}
	if got.LinkedIn.Password != "from-env" {
		t.Errorf("password = %q, want env override", got.LinkedIn.Password)
	}
}

func TestValidate(t *testing.T) {
	valid := func() *Config {
		cfg := DefaultConfig()
		cfg.LinkedIn.Email = "ada@example.com"
		cfg.LinkedIn.Password = "hunter2"
		cfg.Search.JobTitles = []string{"SRE"}
		return cfg
	}

	if err := valid().Validate(); err != nil {
		t.Fatalf("valid config rejected: %v", err)
	}

	tests := []struct {
		name     string
		mutate   func(*Config)
		wantCred bool
	}{
		{"empty email", func(c *Config) { c.LinkedIn.Email = "" }, true},
		{"empty password", func(c *Config) { c.LinkedIn.Password = " " }, true},
		{"placeholder email", func(c *Config) { c.LinkedIn.Email = "your_email@example.com" }, true},
		{"no job titles", func(c *Config) { c.Search.JobTitles = nil }, false},
		{"negative cap", func(c *Config) { c.Search.MaxApplications = -1 }, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := valid()
			tt.mutate(cfg)
			err := cfg.Validate()
			if err == nil {
				t.Fatal("want error")
			}
			if tt.wantCred != errors.Is(err, ErrCredentials) {
				t.Errorf("errors.Is(err, ErrCredentials) = %v, want %v (err: %v)",
					!tt.wantCred, tt.wantCred, err)
			}
		})
	}
}

func TestBrowserTimeouts(t *testing.T) {
	var b BrowserConfig
	if b.NavigationTimeout().Seconds() != 30 {
		t.Errorf("zero navigation timeout = %v, want 30s", b.NavigationTimeout())
	}
	if b.FieldWait().Seconds() != 5 {
		t.Errorf("zero field wait = %v, want 5s", b.FieldWait())
	}
	b.NavigationTimeoutMs = 1500
	if b.NavigationTimeout().Milliseconds() != 1500 {
		t.Errorf("navigation timeout = %v, want 1.5s", b.NavigationTimeout())
	}
}
