package account

import (
	"fmt"
	"net/url"
	"regexp"
	"strings"
)

// accountIDPattern mirrors the server-side account slug rule.
var accountIDPattern = regexp.MustCompile(`^[a-z0-9_]{3,100}$`)

// uriExcludedChars are characters RFC 3986 forbids in a URI but net/url tolerates.
const uriExcludedChars = " <>\"{}|\\^`"

// ValidateAccountID checks the account slug format.
func ValidateAccountID(accountID string) error {
	if !accountIDPattern.MatchString(accountID) {
		return fmt.Errorf("%w: account id must be 3-100 characters of a-z, 0-9 or _ (got %q)", ErrValidation, accountID)
	}
	return nil
}

// ValidateAuthBaseURL checks that the value is an absolute URL with a scheme and host.
func ValidateAuthBaseURL(rawURL string) error {
	if rawURL == "" {
		return fmt.Errorf("%w: auth base url cannot be empty", ErrValidation)
	}

	parsed, err := url.Parse(rawURL)
	if err != nil {
		return fmt.Errorf("%w: invalid auth base url: %v", ErrValidation, err)
	}

	if parsed.Scheme == "" {
		return fmt.Errorf("%w: auth base url must include a scheme", ErrValidation)
	}

	if parsed.Host == "" {
		return fmt.Errorf("%w: auth base url must include a hostname", ErrValidation)
	}

	return nil
}

// ValidateAPIURL checks that the value parses as a generic URI reference.
// A scheme is not required, and the empty string is a valid reference.
func ValidateAPIURL(rawURL string) error {
	if i := strings.IndexAny(rawURL, uriExcludedChars); i >= 0 {
		return fmt.Errorf("%w: api url contains illegal character %q at index %d", ErrValidation, rawURL[i], i)
	}

	if _, err := url.Parse(rawURL); err != nil {
		return fmt.Errorf("%w: invalid api url: %v", ErrValidation, err)
	}

	return nil
}

// ValidateLogFilter checks that the filter is not blank.
func ValidateLogFilter(logFilter string) error {
	if strings.TrimSpace(logFilter) == "" {
		return fmt.Errorf("%w: log filter cannot be blank", ErrValidation)
	}
	return nil
}

// ValidateFields runs every field rule and returns the first violation.
func ValidateFields(f Fields) error {
	if err := ValidateAccountID(f.AccountID); err != nil {
		return err
	}
	if err := ValidateAuthBaseURL(f.AuthBaseURL); err != nil {
		return err
	}
	if err := ValidateAPIURL(f.APIURL); err != nil {
		return err
	}
	return ValidateLogFilter(f.LogFilter)
}

// IsValid reports whether all four field rules hold.
func IsValid(f Fields) bool {
	return ValidateFields(f) == nil
}
