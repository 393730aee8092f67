package utils

import (
	"regexp"
	"strings"
)

// emailRegex is a simple regex for validating email format.
// It checks for: local-part@domain.tld format.
var emailRegex = regexp.MustCompile(`^[a-zA-Z0-9._%+\-]+@[a-zA-Z0-9.\-]+\.[a-zA-Z]{2,}$`)

// IsValidEmail checks if the given string is a valid email address format.
func IsValidEmail(email string) bool {
	if email == "" {
		return false
	}
	return emailRegex.MatchString(email)
}

// UserIDEmail returns the address of a user id in the form "Name <addr>".
// A bare address is returned as is. ok is false if no valid address is found.
func UserIDEmail(userID string) (string, bool) {
	userID = strings.TrimSpace(userID)
	if open := strings.LastIndex(userID, "<"); open >= 0 && strings.HasSuffix(userID, ">") {
		addr := userID[open+1 : len(userID)-1]
		return addr, IsValidEmail(addr)
	}
	return userID, IsValidEmail(userID)
}
