// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Passgate Contributors

package auth

import "regexp"

// IdentifierKind classifies a login identifier.
type IdentifierKind int

const (
	// IdentifierUsername means the identifier did not parse as an email
	// address and is treated as a username.
	IdentifierUsername IdentifierKind = iota
	// IdentifierEmail means the identifier matched the email grammar.
	IdentifierEmail
)

// String returns the kind's name.
func (k IdentifierKind) String() string {
	if k == IdentifierEmail {
		return "email"
	}
	return "username"
}

// emailRegex is a practical RFC-5322 subset: a dot-atom local part, "@", and
// a domain of at least two dot-separated labels. No quoted local parts, no
// network validation. Case-insensitive.
var emailRegex = regexp.MustCompile(
	"(?i)^[a-z0-9!#$%&'*+/=?^_`{|}~-]+(?:\\.[a-z0-9!#$%&'*+/=?^_`{|}~-]+)*" +
		"@(?:[a-z0-9](?:[a-z0-9-]*[a-z0-9])?\\.)+[a-z0-9](?:[a-z0-9-]*[a-z0-9])?$")

// ClassifyIdentifier reports whether identifier is an email address or a
// username. It is pure, deterministic, and total: any string classifies.
func ClassifyIdentifier(identifier string) IdentifierKind {
	if emailRegex.MatchString(identifier) {
		return IdentifierEmail
	}
	return IdentifierUsername
}
