package exception

import "errors"

// Configuration errors, fatal at startup.
var (
	ErrConfigMissingAccount  = errors.New("config: account address is empty")
	ErrConfigMissingKey      = errors.New("config: private key is empty")
	ErrConfigUnknownStrategy = errors.New("config: unknown strategy")
	ErrConfigNoSymbols       = errors.New("config: no symbols configured")
	ErrConfigParamOutOfRange = errors.New("config: parameter out of range")
)
