// internal/app/system/inputval/inputval.go
package inputval

import (
	"net/url"
	"regexp"
	"strings"
	"unicode/utf8"

	"github.com/dalemusser/birdbook/internal/app/system/apperr"
)

const (
	MaxHeader      = 100
	MaxBody        = 280
	MaxComment     = 280
	MaxGroupName   = 40
	MinCommonName  = 2
	MaxCommonName  = 100
	MaxDescription = 500
	MaxNamePart    = 50
	MaxLocation    = 100
)

var (
	usernameRE    = regexp.MustCompile(`^[a-zA-Z0-9]{5,20}$`)
	passwordChars = regexp.MustCompile(`^[A-Za-z\d@$!%*?&]{4,12}$`)
	hasLower      = regexp.MustCompile(`[a-z]`)
	hasUpper      = regexp.MustCompile(`[A-Z]`)
	hasDigit      = regexp.MustCompile(`\d`)
	hasSpecial    = regexp.MustCompile(`[@$!%*?&]`)
)

// Username checks 5-20 ASCII letters or digits.
func Username(s string) error {
	if !usernameRE.MatchString(s) {
		return apperr.Invalid("username", "Username must be 5-20 letters or digits")
	}
	return nil
}

// Password checks 4-12 chars with a lowercase, an uppercase, a digit and one of @$!%*?&.
func Password(s string) error {
	if !passwordChars.MatchString(s) ||
		!hasLower.MatchString(s) || !hasUpper.MatchString(s) ||
		!hasDigit.MatchString(s) || !hasSpecial.MatchString(s) {
		return apperr.Invalid("password",
			"Password must be 4-12 characters with an uppercase letter, a lowercase letter, a digit and one of @$!%%*?&")
	}
	return nil
}

// Header allows empty headers up to MaxHeader characters.
func Header(s string) error {
	return maxLen("header", s, MaxHeader)
}

// Body requires non-blank text up to MaxBody characters.
func Body(s string) error {
	return required("text_body", s, MaxBody)
}

// Comment requires non-blank text up to MaxComment characters.
func Comment(s string) error {
	return required("text_body", s, MaxComment)
}

// GroupName requires a non-blank name up to MaxGroupName characters.
func GroupName(s string) error {
	return required("name", s, MaxGroupName)
}

// Description allows empty descriptions up to MaxDescription characters.
func Description(s string) error {
	return maxLen("description", s, MaxDescription)
}

// CommonName requires MinCommonName to MaxCommonName characters.
func CommonName(s string) error {
	n := utf8.RuneCountInString(strings.TrimSpace(s))
	if n < MinCommonName || n > MaxCommonName {
		return apperr.Invalid("common_name", "Common name must be %d-%d characters", MinCommonName, MaxCommonName)
	}
	return nil
}

// NamePart bounds first and last names.
func NamePart(field, s string) error {
	return maxLen(field, s, MaxNamePart)
}

// Location bounds the free-text user location.
func Location(s string) error {
	return maxLen("location", s, MaxLocation)
}

// Coordinates accepts nil or a [lng, lat] pair within range.
func Coordinates(c []float64) error {
	if c == nil {
		return nil
	}
	if len(c) != 2 || c[0] < -180 || c[0] > 180 || c[1] < -90 || c[1] > 90 {
		return apperr.Invalid("location", "Location must be [longitude, latitude]")
	}
	return nil
}

// IsValidHTTPURL reports whether s is an absolute http(s) URL with a host.
func IsValidHTTPURL(s string) bool {
	s = strings.TrimSpace(s)
	if s == "" {
		return false
	}
	u, err := url.Parse(s)
	if err != nil {
		return false
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return false
	}
	return u.Host != ""
}

func required(field, s string, max int) error {
	if strings.TrimSpace(s) == "" {
		return apperr.Invalid(field, "%s must not be blank", field)
	}
	return maxLen(field, s, max)
}

func maxLen(field, s string, max int) error {
	if utf8.RuneCountInString(s) > max {
		return apperr.Invalid(field, "%s must be at most %d characters", field, max)
	}
	return nil
}
