package service

import "errors"

// Expected domain failures. These are returned, never panicked, and are
// deliberately coarse at the edges: a caller must not be able to tell
// "user doesn't exist" from "wrong password".
var (
	ErrInvalidCredentials = errors.New("invalid_credentials")
	ErrInvalidRefresh     = errors.New("invalid_refresh_token")
	ErrInvalidChallenge   = errors.New("invalid_challenge_token")
	ErrInvalidSetup       = errors.New("invalid_setup_token")
	ErrInvalidCode        = errors.New("invalid_code")
	ErrInvalidRecovery    = errors.New("invalid_recovery_code")
	ErrNoRecoveryCodes    = errors.New("no_recovery_codes_available")
	ErrTwoFactorEnabled   = errors.New("two_factor_already_enabled")
	ErrTwoFactorDisabled  = errors.New("two_factor_not_enabled")
	ErrUsernameTaken      = errors.New("username_taken")
)
