// Package cli validates the external command-line tools this backend
// drives. Its single hard requirement is the Claude CLI; everything else
// the system needs ships in-process.
package cli

import (
	"fmt"
	"os"
	"os/exec"
	"strings"
)

// Prerequisite represents a required CLI tool
type Prerequisite struct {
	Name        string // Command name or absolute path
	Required    bool   // Whether the tool is required to run the backend
	Description string // Human-readable description
	InstallURL  string // URL for installation instructions
}

// DefaultPrerequisites returns the CLI tools the chat backend depends on.
// cliPath overrides where the Claude CLI is looked for; empty means PATH.
func DefaultPrerequisites(cliPath string) []Prerequisite {
	name := "claude"
	if cliPath != "" {
		name = cliPath
	}
	return []Prerequisite{
		{
			Name:        name,
			Required:    true,
			Description: "Claude CLI (stream-json chat backend)",
			InstallURL:  "https://claude.ai/code",
		},
	}
}

// CheckResult contains the result of checking a prerequisite
type CheckResult struct {
	Prerequisite Prerequisite
	Found        bool
	Path         string // Path to the executable if found
	Version      string // Version string if available
	Error        error
}

// Check verifies that a CLI tool is available. Names containing a path
// separator are checked directly; bare names go through PATH lookup.
func Check(prereq Prerequisite) CheckResult {
	result := CheckResult{Prerequisite: prereq}

	var path string
	var err error
	if strings.ContainsRune(prereq.Name, os.PathSeparator) {
		path = prereq.Name
		var info os.FileInfo
		info, err = os.Stat(path)
		if err == nil && info.Mode()&0o111 == 0 {
			err = fmt.Errorf("%s is not executable", path)
		}
	} else {
		path, err = exec.LookPath(prereq.Name)
	}
	if err != nil {
		result.Error = fmt.Errorf("%s not found: %w", prereq.Name, err)
		return result
	}

	result.Found = true
	result.Path = path

	if version := getVersion(path); version != "" {
		result.Version = version
	}

	return result
}

// CheckAll verifies all prerequisites and returns results
func CheckAll(prereqs []Prerequisite) []CheckResult {
	results := make([]CheckResult, len(prereqs))
	for i, prereq := range prereqs {
		results[i] = Check(prereq)
	}
	return results
}

// ValidateRequired checks that all required prerequisites are met.
// Returns nil if all required tools are found, otherwise an error
// describing what's missing.
func ValidateRequired(prereqs []Prerequisite) error {
	var missing []string

	for _, prereq := range prereqs {
		if !prereq.Required {
			continue
		}
		result := Check(prereq)
		if !result.Found {
			missing = append(missing, fmt.Sprintf("  - %s (%s)\n    Install: %s",
				prereq.Name, prereq.Description, prereq.InstallURL))
		}
	}

	if len(missing) > 0 {
		return fmt.Errorf("missing required CLI tools:\n%s", strings.Join(missing, "\n"))
	}

	return nil
}

// getVersion attempts to get the version of a CLI tool
func getVersion(path string) string {
	output, err := exec.Command(path, "--version").Output()
	if err != nil {
		return ""
	}

	lines := strings.Split(string(output), "\n")
	if len(lines) == 0 {
		return ""
	}
	version := strings.TrimSpace(lines[0])
	if len(version) > 100 {
		version = version[:100] + "..."
	}
	return version
}

// FormatCheckResults formats check results for display
func FormatCheckResults(results []CheckResult) string {
	var sb strings.Builder

	sb.WriteString("CLI Prerequisites:\n")
	for _, r := range results {
		status := "✓"
		if !r.Found {
			if r.Prerequisite.Required {
				status = "✗"
			} else {
				status = "○"
			}
		}

		sb.WriteString(fmt.Sprintf("  %s %s", status, r.Prerequisite.Name))
		if r.Found && r.Version != "" {
			sb.WriteString(fmt.Sprintf(" (%s)", r.Version))
		} else if !r.Found {
			if r.Prerequisite.Required {
				sb.WriteString(" [REQUIRED]")
			} else {
				sb.WriteString(" [optional]")
			}
		}
		sb.WriteString("\n")
	}

	return sb.String()
}
