// Package mail delivers verification codes to users. Production uses SMTP
// over implicit TLS; development logs the code instead of sending it.
package mail

import "context"

// Code purposes, used to pick the message subject.
const (
	PurposeRegister = "register"
	PurposeLogin    = "login"
)

// Sender delivers a verification code to an email address.
type Sender interface {
	SendCode(ctx context.Context, to, code, purpose string) error
}
