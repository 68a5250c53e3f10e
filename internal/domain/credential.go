package domain

import "log/slog"

const redacted = "[redacted]"

// Credential is a bearer token. It formats and logs as a placeholder; use
// Reveal to obtain the value for a request header.
type Credential string

func (c Credential) String() string {
	return redacted
}

func (c Credential) GoString() string {
	return redacted
}

func (c Credential) LogValue() slog.Value {
	return slog.StringValue(redacted)
}

func (c Credential) MarshalText() ([]byte, error) {
	return []byte(redacted), nil
}

func (c Credential) Reveal() string {
	return string(c)
}
