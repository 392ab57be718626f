package dhan

// Credentials authenticate chart requests.
type Credentials struct {
	AccessToken string
	ClientID    string
}

// CredentialSource supplies the current credentials on every request,
// so a rotated token takes effect without rebuilding the client.
type CredentialSource interface {
	Credentials() Credentials
}

// StaticCredentials is a CredentialSource that never changes.
type StaticCredentials Credentials

func (s StaticCredentials) Credentials() Credentials { return Credentials(s) }

// Headers builds the request headers for creds.
func Headers(creds Credentials) map[string]string {
	return map[string]string{
		"Content-Type": "application/json",
		"Accept":       "application/json",
		"access-token": creds.AccessToken,
		"client-id":    creds.ClientID,
	}
}

// maskedHeaders returns a copy of h with the access token shortened for display.
func maskedHeaders(h map[string]string) map[string]string {
	out := make(map[string]string, len(h))
	for k, v := range h {
		out[k] = v
	}
	if tok := out["access-token"]; tok != "" {
		if len(tok) > 8 {
			out["access-token"] = tok[:4] + "..." + tok[len(tok)-4:]
		} else {
			out["access-token"] = "****"
		}
	}
	return out
}
