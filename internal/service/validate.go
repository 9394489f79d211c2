package service

import (
	"fmt"
	"net/mail"
	"regexp"
	"strings"
	"unicode"

	"budstack-service/internal/model"
)

var (
	subdomainPattern = regexp.MustCompile(`^[a-z0-9]([a-z0-9-]*[a-z0-9])?$`)
	slugPattern      = regexp.MustCompile(`^[a-z0-9]+(-[a-z0-9]+)*$`)
	colorPattern     = regexp.MustCompile(`^#([0-9a-fA-F]{3}|[0-9a-fA-F]{6})$`)
	countryPattern   = regexp.MustCompile(`^[A-Z]{2}$`)
)

// ReservedSubdomains can never be claimed by a tenant
var ReservedSubdomains = map[string]bool{
	"www":         true,
	"api":         true,
	"app":         true,
	"admin":       true,
	"super-admin": true,
	"dashboard":   true,
	"mail":        true,
	"static":      true,
	"cdn":         true,
	"assets":      true,
	"budstack":    true,
}

// ValidateSubdomain checks the format rules of a storefront subdomain
func ValidateSubdomain(subdomain string) error {
	switch {
	case len(subdomain) < 3 || len(subdomain) > 63:
		return model.NewValidationError("subdomain", "must be between 3 and 63 characters")
	case !subdomainPattern.MatchString(subdomain):
		return model.NewValidationError("subdomain", "may contain only lowercase letters, digits and inner hyphens")
	case ReservedSubdomains[subdomain]:
		return model.NewValidationError("subdomain", "is reserved")
	}
	return nil
}

func validEmail(email string) bool {
	addr, err := mail.ParseAddress(email)
	return err == nil && addr.Address == email && strings.Contains(email, ".")
}

func requireEmail(field, email string) error {
	if !validEmail(email) {
		return model.NewValidationError(field, "must be a valid email address")
	}
	return nil
}

func requireLength(field, value string, min, max int) error {
	n := len([]rune(strings.TrimSpace(value)))
	switch {
	case n == 0 && min > 0:
		return model.NewValidationError(field, "is required")
	case n < min || n > max:
		return model.NewValidationError(field, fmt.Sprintf("must be between %d and %d characters", min, max))
	}
	return nil
}

func validColor(value string) bool {
	return colorPattern.MatchString(value)
}

// Slugify lowercases name and joins its alphanumeric runs with hyphens
func Slugify(name string) string {
	var b strings.Builder
	pendingHyphen := false
	for _, r := range strings.ToLower(name) {
		if r < unicode.MaxASCII && (unicode.IsLetter(r) || unicode.IsDigit(r)) {
			if pendingHyphen && b.Len() > 0 {
				b.WriteByte('-')
			}
			b.WriteRune(r)
			pendingHyphen = false
			continue
		}
		pendingHyphen = true
	}
	return b.String()
}
