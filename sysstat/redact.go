package sysstat

import "strings"

const redacted = "[REDACTED]"

// flagsWithValue take their secret as the next argument, e.g. "vastai --api-key KEY".
var flagsWithValue = map[string]bool{
	"--api-key":      true,
	"--apikey":       true,
	"--token":        true,
	"--auth-token":   true,
	"--access-token": true,
	"--password":     true,
	"--secret":       true,
	"--dsn":          true,
}

var secretSuffixes = []string{"password", "token", "secret", "_key", "-key", "dsn"}

// RedactArgs joins a command line for display, replacing credentials.
// Process command lines end up in Sentry events, and the provider CLI takes
// its API key as a flag.
func RedactArgs(args []string) string {
	out := make([]string, 0, len(args))
	for i := 0; i < len(args); i++ {
		arg := args[i]

		if key, _, ok := strings.Cut(arg, "="); ok && isSecretKey(strings.TrimLeft(key, "-")) {
			out = append(out, key+"="+redacted)
			continue
		}

		out = append(out, arg)
		if flagsWithValue[strings.ToLower(arg)] && i+1 < len(args) {
			out = append(out, redacted)
			i++
		}
	}
	return strings.Join(out, " ")
}

func isSecretKey(key string) bool {
	k := strings.ToLower(key)
	switch k {
	case "key", "token", "secret", "password", "auth":
		return true
	}
	for _, suffix := range secretSuffixes {
		if strings.HasSuffix(k, suffix) {
			return true
		}
	}
	return false
}
