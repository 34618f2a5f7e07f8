package fake

import (
	"regexp"
	"strings"

	"github.com/bryanwahyu/automaton-insight/internal/domain/severity"
)

// Finding is one heuristic hit in the prompt text.
type Finding struct {
	Title          string         `json:"title"`
	Severity       severity.Level `json:"severity"`
	Summary        string         `json:"summary"`
	Recommendation string         `json:"recommendation"`
}

type detector struct {
	re             *regexp.Regexp
	level          severity.Level
	title          string
	recommendation string
}

// Secret and credential detectors
var detectors = []detector{
	// Private keys
	{regexp.MustCompile(`-----BEGIN (?:RSA |EC |DSA |OPENSSH )?PRIVATE KEY-----`), severity.Critical, "Private key material committed", "Remove private keys from repos and rotate affected keys immediately."},
	// AWS
	{regexp.MustCompile(`AKIA[0-9A-Z]{16}`), severity.Critical, "AWS access key exposed", "Revoke the access key and move to IAM roles or a secret manager."},
	// GitHub
	{regexp.MustCompile(`gh[pousr]_[A-Za-z0-9_]{20,}`), severity.Critical, "GitHub token exposed", "Revoke the token and store replacements in CI/CD secrets."},
	// Slack
	{regexp.MustCompile(`xox[baprs]-[A-Za-z0-9\-]{10,}`), severity.Critical, "Slack token exposed", "Revoke the token in Slack admin and scope minimally."},
	// OpenAI / Stripe style keys
	{regexp.MustCompile(`(?i)\bsk[-_](?:live_|test_)?[a-z0-9\-_]{20,}`), severity.Critical, "Secret API key exposed", "Rotate the key and keep it in environment or a secret manager."},
	// JWT
	{regexp.MustCompile(`[A-Za-z0-9-_]{8,}\.eyJ[A-Za-z0-9-_]{5,}\.[A-Za-z0-9-_]{10,}`), severity.High, "JWT token present", "Invalidate sessions and prefer short-lived tokens from an identity provider."},
	// URL with basic auth
	{regexp.MustCompile(`://[^\s/:@]+:[^\s/@]+@`), severity.High, "Credentials embedded in URL", "Strip credentials from URLs; pass them via configuration."},
	// Generic key hints
	{regexp.MustCompile(`(?i)(api[_-]?key|client[_-]?secret|password|token)\s*[:=]\s*["']?[^\s"']{12,}`), severity.High, "Sensitive credential literal detected", "Do not hardcode secrets. Use environment variables or a secret manager."},
}

// Detect runs the secret detectors and the lower-severity heuristics over text.
// It always returns at least one finding.
func Detect(text string) []Finding {
	lower := strings.ToLower(text)
	out := make([]Finding, 0, 4)
	seen := map[string]bool{}

	for _, d := range detectors {
		match := d.re.FindString(text)
		if match == "" || seen[d.title] {
			continue
		}
		seen[d.title] = true
		out = append(out, Finding{
			Title:          d.title,
			Severity:       d.level,
			Summary:        "Example: " + trim(match, 64),
			Recommendation: d.recommendation,
		})
	}

	// Insecure protocol usage
	if strings.Contains(lower, "http://") && strings.Contains(lower, "api") {
		out = append(out, Finding{
			Title:          "Insecure HTTP reference",
			Severity:       severity.Medium,
			Summary:        "Found potential API calls over HTTP.",
			Recommendation: "Prefer HTTPS for all API and configuration endpoints.",
		})
	}
	if strings.Contains(lower, "use_ssl: false") || strings.Contains(lower, "usessl: false") {
		out = append(out, Finding{
			Title:          "SSL/TLS disabled in config",
			Severity:       severity.High,
			Summary:        "Configuration suggests TLS is disabled.",
			Recommendation: "Enable TLS and verify certificates in all environments.",
		})
	}

	// baseline kalau tidak ada temuan
	if len(out) == 0 {
		out = append(out, Finding{
			Title:          "Enable secret scanning",
			Severity:       severity.Low,
			Summary:        "No explicit secrets detected, but false negatives are possible.",
			Recommendation: "Enable pre-commit hooks and CI/CD secret scanners.",
		})
	}
	return out
}

// Top returns the most severe level among findings.
func Top(findings []Finding) severity.Level {
	var c severity.Counts
	for _, f := range findings {
		c.Add(f.Severity)
	}
	l, _ := c.Max()
	return l
}

func trim(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}
