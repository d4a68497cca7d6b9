package ssoconf

// RADIUSConfig holds the connection settings for a RADIUS server
type RADIUSConfig struct {
	Server string
	Port   int
	Secret []byte
}

// ParseRADIUSSecret normalizes a shared secret to bytes. The secret
// is write-only from the configuration surface: DisplayRADIUSSecret
// never returns the stored value.
func ParseRADIUSSecret(value any) ([]byte, error) {
	switch v := value.(type) {
	case nil:
		return nil, nil
	case string:
		return []byte(v), nil
	case []byte:
		return v, nil
	default:
		return nil, fieldErr("", "type_error", "RADIUS secret must be a string").OrNil()
	}
}

// secretPlaceholder stands in for any stored secret in display output
const secretPlaceholder = "$encrypted$"

// DisplayRADIUSSecret returns the placeholder for a set secret and
// the empty string for an unset one, so the real value never leaves
// the server.
func DisplayRADIUSSecret(secret []byte) string {
	if len(secret) == 0 {
		return ""
	}
	return secretPlaceholder
}

// ValidateRADIUS checks a RADIUS configuration. A blank server
// disables the backend, so the remaining fields are only checked
// when one is set.
func ValidateRADIUS(cfg *RADIUSConfig) error {
	var es FieldErrors
	if cfg.Server == "" {
		return nil
	}
	if cfg.Port <= 0 || cfg.Port > 65535 {
		es.Add("port", "invalid_port", "port %d is out of range", cfg.Port)
	}
	if len(cfg.Secret) == 0 {
		es.Add("secret", "required", "a shared secret is required when a server is set")
	}
	return es.OrNil()
}
