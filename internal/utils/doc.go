// Package utils holds small helpers shared by the commands and workflows.
//
// Actor, GetUsername and GetHostname identify who ran a command for the
// audit trail. ReadStdin reads a piped change-set. ReadPassphrase and
// ReadPassphraseFromTTY prompt without echo, the latter when stdin is
// already taken. UserIDEmail and IsValidEmail check the address part of a
// user id. ZeroBytes wipes secret material in place.
package utils
