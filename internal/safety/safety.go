// Package safety implements C4: the three-layer command safety checker
// every shell command passes through before THE CORE's runner executes it
// (spec.md §4.4).
package safety

import (
	"regexp"
	"strings"
)

// ResultKind tags the outcome of Check.
type ResultKind string

const (
	ResultSafe       ResultKind = "safe"
	ResultBlocked    ResultKind = "blocked"
	ResultSuspicious ResultKind = "suspicious"
)

// Result is the Kind-tagged outcome of a safety check, carrying the reason
// for Blocked/Suspicious verdicts.
type Result struct {
	Kind   ResultKind
	Reason string
}

func (r Result) String() string {
	if r.Reason == "" {
		return string(r.Kind)
	}
	return string(r.Kind) + ": " + r.Reason
}

// dangerousPattern pairs a regexp with the human-readable reason reported
// when it fires. These fire an immediate Blocked verdict, never a
// Suspicious one.
type dangerousPattern struct {
	re     *regexp.Regexp
	reason string
}

// dangerousPatterns never execute, regardless of working directory.
var dangerousPatterns = []dangerousPattern{
	{regexp.MustCompile(`\brm\s+(-[rf]+\s+)?/`), "rm targeting root or an absolute path"},
	{regexp.MustCompile(`\bdd\s+.*of=/dev/`), "dd writing to a block device"},
	{regexp.MustCompile(`:\(\)\{.*:\|:.*\};:`), "fork bomb"},
	{regexp.MustCompile(`\bmkfs\.`), "filesystem formatting"},
	{regexp.MustCompile(`\bformat\s+[A-Z]:`), "Windows volume format"},
	{regexp.MustCompile(`\bsudo\s+rm\s+-rf`), "privileged recursive delete"},
	{regexp.MustCompile(`\bsudo\s+dd\s+`), "privileged dd"},
	{regexp.MustCompile(`\bsudo\s+mkfs`), "privileged filesystem format"},
	{regexp.MustCompile(`\b(systemctl|service)\s+(stop|disable|mask)`), "service shutdown/disable"},
	{regexp.MustCompile(`\bchmod\s+777\s+/`), "world-writable permission on an absolute path"},
	{regexp.MustCompile(`\bchown\s+.*\s+/`), "ownership change on an absolute path"},
	{regexp.MustCompile(`\bcurl\s+.*\|\s*(sh|bash|zsh)`), "piping a remote download to a shell"},
	{regexp.MustCompile(`\bwget\s+.*\|\s*(sh|bash|zsh)`), "piping a remote download to a shell"},
	{regexp.MustCompile(`\bnc\s+-[le]\s+`), "netcat listener"},
	{regexp.MustCompile(`\bscp\s+.*\s+.*@`), "scp to a remote host"},
	{regexp.MustCompile(`\brsync\s+.*\s+.*@`), "rsync to a remote host"},
	{regexp.MustCompile(`\b(npm\s+publish|cargo\s+publish|yarn\s+publish|pnpm\s+publish|twine\s+upload|docker\s+push|git\s+push\s+.*--force|flyctl\s+deploy|vercel\s+--prod|kubectl\s+apply|terraform\s+apply)\b`), "publish/deploy command"},
	{regexp.MustCompile(`(?i)\bStop-Computer\b`), "PowerShell system shutdown"},
	{regexp.MustCompile(`(?i)\bSet-ExecutionPolicy\s+.*Bypass\b`), "PowerShell execution policy bypass"},
	{regexp.MustCompile(`(?i)\bRemove-Item\s+-Recurse\s+-Force\s+C:\\`), "PowerShell recursive delete of a drive root"},
	{regexp.MustCompile(`\brm\s+(-[rf]+\s+)?(\.\.(/\S*)?)(\s|$)`), "delete targeting a path outside the project"},
}

type suspiciousPattern struct {
	re     *regexp.Regexp
	reason string
}

// suspiciousPatterns are usually fine inside a project but warrant a pause
// for confirmation before running.
var suspiciousPatterns = []suspiciousPattern{
	{regexp.MustCompile(`\brm\s+-rf\s+\*`), "recursive delete with a wildcard"},
	{regexp.MustCompile(`\bfind\s+.*-delete`), "find with a delete action"},
	{regexp.MustCompile(`\bxargs\s+.*rm`), "piping to rm"},
	{regexp.MustCompile(`\bsudo\s+`), "requires privilege escalation"},
	{regexp.MustCompile(`>\s*/dev/(null|zero|random)`), "writing to a system device"},
}

// criticalPaths may never be the target or working directory of a command,
// except through a read-only command.
var criticalPaths = []string{
	"/", "/bin", "/boot", "/dev", "/etc", "/lib", "/lib64", "/proc", "/root",
	"/sbin", "/sys", "/usr", "/var",
	`C:\`, `C:\Windows`, `C:\Program Files`,
}

var readOnlyCommands = []string{
	"cat", "ls", "grep", "find", "head", "tail", "less", "more",
	"file", "stat", "wc", "diff", "cmp", "du", "df",
}

// validBuildTestPrefixes is the allowlist used by IsValidBuildTestCommand.
var validBuildTestPrefixes = []string{
	"cargo ", "npm ", "yarn ", "pnpm ", "python ", "pytest", "pip ",
	"mvn ", "gradle ", "make ", "go ", "rustc ", "tsc ", "node ", "deno ",
	"bun ", "npx ",
}

// Check runs cmd through the three layers of spec.md §4.4: dangerous
// patterns, critical-path targeting, and suspicious-flag detection.
func Check(cmd, workingDir string) Result {
	for _, p := range dangerousPatterns {
		if p.re.MatchString(cmd) {
			return Result{Kind: ResultBlocked, Reason: "dangerous pattern: " + p.reason}
		}
	}

	for _, path := range criticalPaths {
		if strings.Contains(cmd, path) && !isReadOnlyCommand(cmd) {
			return Result{Kind: ResultBlocked, Reason: "targets critical system path " + path}
		}
	}

	for _, path := range criticalPaths {
		if strings.HasPrefix(workingDir, path) && len(workingDir) <= len(path)+5 {
			return Result{Kind: ResultBlocked, Reason: "working directory too close to critical path " + path}
		}
	}

	for _, p := range suspiciousPatterns {
		if p.re.MatchString(cmd) {
			return Result{Kind: ResultSuspicious, Reason: p.reason}
		}
	}

	return Result{Kind: ResultSafe}
}

func isReadOnlyCommand(cmd string) bool {
	trimmed := strings.TrimSpace(cmd)
	for _, safe := range readOnlyCommands {
		if strings.HasPrefix(trimmed, safe) {
			return true
		}
	}
	return false
}

// IsValidBuildTestCommand reports whether cmd (optionally a chain of
// commands joined by && or ||) is entirely built from known build/test
// tooling, used to auto-approve verification commands without a human
// confirmation step.
func IsValidBuildTestCommand(cmd string) bool {
	trimmed := strings.TrimSpace(cmd)

	if strings.Contains(trimmed, "&&") || strings.Contains(trimmed, "||") {
		parts := splitChain(trimmed)
		if len(parts) == 0 {
			return false
		}
		for _, part := range parts {
			if !hasValidPrefix(strings.TrimSpace(part)) {
				return false
			}
		}
		return true
	}

	return hasValidPrefix(trimmed)
}

func hasValidPrefix(cmd string) bool {
	for _, prefix := range validBuildTestPrefixes {
		if strings.HasPrefix(cmd, prefix) {
			return true
		}
	}
	return false
}

func splitChain(cmd string) []string {
	var parts []string
	for _, andPart := range strings.Split(cmd, "&&") {
		parts = append(parts, strings.Split(andPart, "||")...)
	}
	return parts
}
