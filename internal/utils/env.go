package utils

import (
	"os"
	"strings"
)

// SafeEnv returns the trimmed value of key, or fallback when it is unset or
// blank.
func SafeEnv(key, fallback string) string {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return fallback
	}
	return v
}

// BuildInfo identifies the running binary. The container image sets both
// variables at build time.
type BuildInfo struct {
	Commit    string `json:"commit"`
	BuildTime string `json:"build_time"`
}

func BuildInfoFromEnv() BuildInfo {
	return BuildInfo{
		Commit:    SafeEnv("FORMPULSE_COMMIT", "dev"),
		BuildTime: SafeEnv("FORMPULSE_BUILD_TIME", ""),
	}
}
