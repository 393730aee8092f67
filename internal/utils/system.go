package utils

import (
	"os"
	"os/user"
)

// GetUsername returns the current username.
func GetUsername() (string, error) {
	user, err := user.Current()
	if err != nil {
		return "", err
	}
	return user.Username, nil
}

// GetHostname returns the system hostname.
func GetHostname() (string, error) {
	hostname, err := os.Hostname()
	if err != nil {
		return "", err
	}
	return hostname, nil
}

// Actor names who ran a command, as "user@host". Unknown parts are left out.
func Actor() string {
	username, err := GetUsername()
	if err != nil {
		username = ""
	}
	hostname, err := GetHostname()
	if err != nil || hostname == "" {
		if username == "" {
			return "unknown"
		}
		return username
	}
	if username == "" {
		return hostname
	}
	return username + "@" + hostname
}
