package middleware

import (
	"fmt"
	"net/http"
	"regexp"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
)

// Input validation and sanitization utilities

var (
	tenantPattern = regexp.MustCompile(`^[a-zA-Z0-9_-]{1,64}$`)
	slotPattern   = regexp.MustCompile(`^[a-zA-Z0-9_.-]{1,128}$`)
)

// MaxPromptBytes bounds the prompt accepted over HTTP.
const MaxPromptBytes = 64 << 10

// ValidateTenantID validates tenant ID format
func ValidateTenantID(tenant string) error {
	if tenant == "" {
		return fmt.Errorf("tenant ID cannot be empty")
	}
	if !tenantPattern.MatchString(tenant) {
		return fmt.Errorf("invalid tenant ID format (alphanumeric, dash, underscore only, max 64 chars)")
	}
	return nil
}

// ValidateSlotName validates a slot (state target) name
func ValidateSlotName(slot string) error {
	if slot == "" {
		return fmt.Errorf("slot name cannot be empty")
	}
	if !slotPattern.MatchString(slot) {
		return fmt.Errorf("invalid slot name format (alphanumeric, dot, dash, underscore only, max 128 chars)")
	}
	return nil
}

// ValidateRunID validates run ID format
func ValidateRunID(id string) error {
	if _, err := uuid.Parse(id); err != nil {
		return fmt.Errorf("invalid run ID format")
	}
	return nil
}

// ValidatePrompt rejects oversized prompts
func ValidatePrompt(prompt string) error {
	if len(prompt) > MaxPromptBytes {
		return fmt.Errorf("prompt exceeds %d bytes", MaxPromptBytes)
	}
	return nil
}

// SanitizeString removes dangerous characters from strings
func SanitizeString(input string) string {
	// Remove null bytes
	input = strings.ReplaceAll(input, "\x00", "")

	// Remove control characters
	var result strings.Builder
	for _, r := range input {
		if r >= 32 || r == '\t' || r == '\n' {
			result.WriteRune(r)
		}
	}
	return strings.TrimSpace(result.String())
}

// ValidateLimit validates pagination limit
func ValidateLimit(limit int) int {
	if limit <= 0 {
		return 20 // default
	}
	if limit > 100 {
		return 100 // max limit
	}
	return limit
}

// TenantParam rejects requests whose {tenant} URL param is malformed.
func TenantParam(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if err := ValidateTenantID(chi.URLParam(r, "tenant")); err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		next.ServeHTTP(w, r)
	})
}
