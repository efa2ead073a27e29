// Package git initializes and commits scaffolded agent projects
package git

import "time"

// Commit represents a Git commit
type Commit struct {
	Hash      string    `json:"hash"`
	Author    string    `json:"author"`
	Email     string    `json:"email"`
	Message   string    `json:"message"`
	Timestamp time.Time `json:"timestamp"`
}

// Signature identifies the author of a scaffold commit
type Signature struct {
	Name  string
	Email string
}

// DefaultSignature is used when git config carries no user identity
var DefaultSignature = Signature{Name: "auditnest", Email: "auditnest@localhost"}
