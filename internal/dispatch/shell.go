package dispatch

import (
	"regexp"
	"strings"
)

// ShellConfig controls Stage 2 shell validation.
type ShellConfig struct {
	Enabled               bool
	ConfirmationRequired  bool
	Blocklist             map[string]struct{}
	Allowlist             map[string]struct{} // empty/nil disables the strict allowlist
	ReadOnlyAllowlist     map[string]struct{}
}

// DefaultShellConfig mirrors the dispatcher's default blocklist/allowlist.
func DefaultShellConfig() ShellConfig {
	return ShellConfig{
		Enabled:              true,
		ConfirmationRequired: true,
		Blocklist: toSet(
			"nc", "ncat", "netcat", "curl", "wget", "xargs",
			"sudo", "su", "chmod", "chown",
			"rm", "dd", "mkfs", "fdisk", "parted",
			"scp", "sftp", "rsync", "tar",
		),
		Allowlist: toSet(
			"ls", "cat", "echo", "grep", "head", "tail", "wc",
			"find", "pwd", "cd", "mkdir", "touch", "cp", "mv",
			"sort", "uniq", "cut", "awk", "sed", "diff", "less",
			"git", "python", "node", "npm", "make",
		),
		ReadOnlyAllowlist: toSet(
			"ls", "cat", "echo", "grep", "head", "tail", "wc",
			"find", "pwd", "sort", "uniq", "cut", "diff", "less",
		),
	}
}

func toSet(items ...string) map[string]struct{} {
	set := make(map[string]struct{}, len(items))
	for _, item := range items {
		set[item] = struct{}{}
	}
	return set
}

var (
	metacharPattern = regexp.MustCompile("[;&|`$<>]")
	dangerousPatterns = []struct {
		re     *regexp.Regexp
		reason string
	}{
		{regexp.MustCompile(`(?i)\brm\s+-rf\b`), "rm -rf pattern detected"},
		{regexp.MustCompile(`(?i)>\s*/dev/`), "direct device write detected"},
		{regexp.MustCompile(`\$\(.*\)`), "command substitution detected"},
		{regexp.MustCompile("`.*`"), "backtick substitution detected"},
	}
)

// validateShellCommand is Stage 2: syntax and safety validation.
func validateShellCommand(userInput string, cfg ShellConfig) (bool, string) {
	if userInput == "" {
		return false, "Empty command"
	}

	if metacharPattern.MatchString(userInput) {
		return false, "Complex shell syntax detected (pipes, redirects, variables)"
	}

	fields := strings.Fields(userInput)
	if len(fields) == 0 {
		return false, "No command found"
	}
	firstCmd := strings.TrimLeft(fields[0], "./")
	if firstCmd == "" {
		return false, "No command found"
	}

	lower := strings.ToLower(firstCmd)
	if _, blocked := cfg.Blocklist[lower]; blocked {
		return false, "Command '" + firstCmd + "' is blocked for safety"
	}

	if len(cfg.Allowlist) > 0 {
		if _, allowed := cfg.Allowlist[lower]; !allowed {
			return false, "Command '" + firstCmd + "' is not in allowlist"
		}
	}

	for _, dp := range dangerousPatterns {
		if dp.re.MatchString(userInput) {
			return false, dp.reason
		}
	}

	return true, "Safe command"
}

func shellRequiresConfirmation(cfg ShellConfig, command string) bool {
	if !cfg.ConfirmationRequired {
		return false
	}
	_, readOnly := cfg.ReadOnlyAllowlist[strings.ToLower(strings.TrimSpace(command))]
	return !readOnly
}

func buildShellPayload(cfg ShellConfig, userInput, reason string) *ShellPayload {
	fields := strings.SplitN(strings.TrimSpace(userInput), " ", 2)
	firstCmd := fields[0]
	args := ""
	if len(fields) > 1 {
		args = fields[1]
	}
	requiresConfirmation := shellRequiresConfirmation(cfg, firstCmd)
	confirmationReason := ""
	if requiresConfirmation {
		confirmationReason = "Non-read-only shell command requires confirmation"
	}
	return &ShellPayload{
		Command:              firstCmd,
		Args:                 args,
		Raw:                  userInput,
		ValidationReason:     reason,
		AllowlistEnabled:     len(cfg.Allowlist) > 0,
		BlocklistEnabled:     len(cfg.Blocklist) > 0,
		RequiresConfirmation: requiresConfirmation,
		ConfirmationReason:   confirmationReason,
	}
}
