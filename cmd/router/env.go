package main

import "os"

// getEnvOrDefault returns the environment value for key, or fallback
// when it is unset or empty.
func getEnvOrDefault(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}
