package cli

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"github.com/urfave/cli/v3"
	"gopkg.in/yaml.v3"
)

// DoctorCommand returns the CLI command definition for the 'doctor' subcommand.
// This command runs diagnostic checks to verify flamedeck is properly configured.
func DoctorCommand(version string) *cli.Command {
	return &cli.Command{
		Name:  "doctor",
		Usage: "Diagnose common setup and configuration issues",
		Description: `Run checks to verify flamedeck is properly configured.

This command checks:
  - Binary location and permissions
  - Config file discovery and YAML validity
  - OTLP trace directory accessibility (otlp-file source)

Exit codes:
  0 - All critical checks passed
  1 - One or more issues found`,
		Action: func(ctx context.Context, cmd *cli.Command) error {
			return runDoctor(version)
		},
	}
}

type checkResult struct {
	Name       string
	Status     string // "pass", "warn", "fail"
	Message    string
	Suggestion string
	IsCritical bool
}

type fsUtils interface {
	Executable() (string, error)
	Stat(name string) (os.FileInfo, error)
	ReadFile(name string) ([]byte, error)
	UserHomeDir() (string, error)
	Getwd() (string, error)
}

type realFsUtils struct{}

func (r *realFsUtils) Executable() (string, error)           { return os.Executable() }
func (r *realFsUtils) Stat(name string) (os.FileInfo, error) { return os.Stat(name) }
func (r *realFsUtils) ReadFile(name string) ([]byte, error)  { return os.ReadFile(name) }
func (r *realFsUtils) UserHomeDir() (string, error)          { return os.UserHomeDir() }
func (r *realFsUtils) Getwd() (string, error)                { return os.Getwd() }

func runDoctor(version string) error {
	return runDoctorWithUtils(version, &realFsUtils{})
}

func runDoctorWithUtils(version string, utils fsUtils) error {
	fmt.Printf("🔍 flamedeck doctor v%s\n\n", version)

	checks := []func(utils fsUtils) checkResult{
		checkBinaryLocation,
		checkBinaryExecutable,
		checkConfigFile,
		checkOTLPDir,
	}

	results := make([]checkResult, 0, len(checks))
	for _, check := range checks {
		result := check(utils)
		results = append(results, result)
		printCheckResult(result)
	}

	fmt.Println()
	summary := summarizeResults(results)
	printSummary(summary)

	if summary.FailCount > 0 {
		return fmt.Errorf("found %d issues that need attention", summary.FailCount)
	}

	return nil
}

func printCheckResult(result checkResult) {
	var icon string
	switch result.Status {
	case "pass":
		icon = "✓"
	case "warn":
		icon = "⚠"
	case "fail":
		icon = "✗"
	}

	fmt.Printf("%s %s\n", icon, result.Message)

	if result.Suggestion != "" {
		fmt.Printf("  %s\n", result.Suggestion)
	}
}

type resultSummary struct {
	PassCount int
	WarnCount int
	FailCount int
}

func summarizeResults(results []checkResult) resultSummary {
	var summary resultSummary
	for _, r := range results {
		switch r.Status {
		case "pass":
			summary.PassCount++
		case "warn":
			summary.WarnCount++
		case "fail":
			summary.FailCount++
		}
	}
	return summary
}

func printSummary(summary resultSummary) {
	if summary.FailCount > 0 {
		fmt.Printf("❌ Found %d issue(s) that need attention\n", summary.FailCount)
		if summary.WarnCount > 0 {
			fmt.Printf("⚠️  %d warning(s)\n", summary.WarnCount)
		}
	} else if summary.WarnCount > 0 {
		fmt.Printf("✅ All critical checks passed!\n")
		fmt.Printf("⚠️  %d optional warning(s)\n", summary.WarnCount)
		fmt.Printf("💡 Run 'flamedeck serve --verbose' to start the viewer\n")
	} else {
		fmt.Printf("✅ All checks passed!\n")
		fmt.Printf("💡 Run 'flamedeck serve --verbose' to start the viewer\n")
	}
}

// Check 1: Binary location
func checkBinaryLocation(utils fsUtils) checkResult {
	executable, err := utils.Executable()
	if err != nil {
		return checkResult{
			Name:       "binary_location",
			Status:     "fail",
			Message:    "Could not determine binary location",
			Suggestion: fmt.Sprintf("Error: %v", err),
			IsCritical: true,
		}
	}

	absPath, err := filepath.Abs(executable)
	if err != nil {
		absPath = executable
	}

	return checkResult{
		Name:    "binary_location",
		Status:  "pass",
		Message: fmt.Sprintf("Binary location: %s", absPath),
	}
}

// Check 2: Binary executable
func checkBinaryExecutable(utils fsUtils) checkResult {
	executable, err := utils.Executable()
	if err != nil {
		return checkResult{
			Name:       "binary_executable",
			Status:     "fail",
			Message:    "Could not check if binary is executable",
			IsCritical: true,
		}
	}

	info, err := utils.Stat(executable)
	if err != nil || info == nil {
		return checkResult{
			Name:       "binary_executable",
			Status:     "fail",
			Message:    "Could not stat binary",
			Suggestion: fmt.Sprintf("Error: %v", err),
			IsCritical: true,
		}
	}

	if info.Mode()&0111 == 0 {
		return checkResult{
			Name:       "binary_executable",
			Status:     "fail",
			Message:    "Binary is not executable",
			Suggestion: fmt.Sprintf("Run: chmod +x %s", executable),
			IsCritical: true,
		}
	}

	return checkResult{
		Name:    "binary_executable",
		Status:  "pass",
		Message: "Binary is executable",
	}
}

// Check 3: Config file discovery and YAML validity
func checkConfigFile(utils fsUtils) checkResult {
	configPath := findConfigFile(utils)
	if configPath == "" {
		return checkResult{
			Name:       "config_file",
			Status:     "warn",
			Message:    "No config file found (using built-in defaults)",
			Suggestion: "Create .flamedeck.yaml in your project root to customize settings",
		}
	}

	data, err := utils.ReadFile(configPath)
	if err != nil {
		return checkResult{
			Name:       "config_file",
			Status:     "fail",
			Message:    "Could not read config file",
			Suggestion: fmt.Sprintf("Error reading %s: %v", configPath, err),
			IsCritical: true,
		}
	}

	var config Config
	if err := yaml.Unmarshal(data, &config); err != nil {
		return checkResult{
			Name:       "config_file",
			Status:     "fail",
			Message:    "Config file is not valid YAML",
			Suggestion: fmt.Sprintf("Error parsing %s: %v", configPath, err),
			IsCritical: true,
		}
	}

	if config.Source != "" && config.Source != "demo" && config.Source != "otlp-file" {
		return checkResult{
			Name:       "config_file",
			Status:     "fail",
			Message:    fmt.Sprintf("Config found: %s", configPath),
			Suggestion: fmt.Sprintf("Unknown source %q (expected 'demo' or 'otlp-file')", config.Source),
			IsCritical: true,
		}
	}

	return checkResult{
		Name:    "config_file",
		Status:  "pass",
		Message: fmt.Sprintf("Config found: %s", configPath),
	}
}

// Check 4: OTLP trace directory (only meaningful for the otlp-file source)
func checkOTLPDir(utils fsUtils) checkResult {
	config := effectiveDoctorConfig(utils)

	if config.Source != "otlp-file" {
		return checkResult{
			Name:    "otlp_dir",
			Status:  "pass",
			Message: fmt.Sprintf("Source '%s' needs no trace directory", config.Source),
		}
	}

	if config.OTLPDir == "" {
		return checkResult{
			Name:       "otlp_dir",
			Status:     "fail",
			Message:    "otlp-file source configured without otlp_dir",
			Suggestion: "Set otlp_dir in the config file or pass --otlp-dir",
			IsCritical: true,
		}
	}

	info, err := utils.Stat(config.OTLPDir)
	if err != nil {
		return checkResult{
			Name:       "otlp_dir",
			Status:     "fail",
			Message:    fmt.Sprintf("Cannot access trace directory %s", config.OTLPDir),
			Suggestion: fmt.Sprintf("Error: %v", err),
			IsCritical: true,
		}
	}
	if !info.IsDir() {
		return checkResult{
			Name:       "otlp_dir",
			Status:     "fail",
			Message:    fmt.Sprintf("%s is not a directory", config.OTLPDir),
			IsCritical: true,
		}
	}

	return checkResult{
		Name:    "otlp_dir",
		Status:  "pass",
		Message: fmt.Sprintf("Trace directory accessible: %s", config.OTLPDir),
	}
}

// findConfigFile walks up from the working directory looking for
// .flamedeck.yaml, stopping at the repo root. Empty string means no
// config file exists.
func findConfigFile(utils fsUtils) string {
	dir, err := utils.Getwd()
	if err != nil {
		return ""
	}

	for {
		configPath := filepath.Join(dir, ".flamedeck.yaml")
		if _, err := utils.Stat(configPath); err == nil {
			return configPath
		}
		if _, err := utils.Stat(filepath.Join(dir, ".git")); err == nil {
			break
		}
		parent := filepath.Dir(dir)
		if parent == dir {
			break
		}
		dir = parent
	}

	// Fall back to the global config.
	if home, err := utils.UserHomeDir(); err == nil {
		globalPath := filepath.Join(home, ".config", "flamedeck", "config.yaml")
		if _, err := utils.Stat(globalPath); err == nil {
			return globalPath
		}
	}

	return ""
}

// effectiveDoctorConfig approximates the serve command's config view
// using the fsUtils seam so tests can fake the filesystem.
func effectiveDoctorConfig(utils fsUtils) *Config {
	config := DefaultConfig()

	configPath := findConfigFile(utils)
	if configPath == "" {
		return config
	}

	data, err := utils.ReadFile(configPath)
	if err != nil {
		return config
	}
	var fileCfg Config
	if err := yaml.Unmarshal(data, &fileCfg); err != nil {
		return config
	}
	return MergeConfigs(config, &fileCfg)
}
