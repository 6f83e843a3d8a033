package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

// envPrefix namespaces every variable Load reads.
const envPrefix = "BEEPWATCH_"

// env reads prefixed variables. Values that fail to parse fall back to the
// default and are remembered in rejected so Load can report them.
type env struct {
	lookup   func(string) (string, bool)
	rejected []string
}

func newEnv() *env {
	return &env{lookup: os.LookupEnv}
}

// value returns the trimmed variable; empty counts as unset.
func (e *env) value(key string) (string, bool) {
	v, _ := e.lookup(envPrefix + key)
	v = strings.TrimSpace(v)
	return v, v != ""
}

func (e *env) reject(key, value string) {
	e.rejected = append(e.rejected, fmt.Sprintf("%s%s=%q", envPrefix, key, value))
}

func (e *env) String(key, fallback string) string {
	if v, ok := e.value(key); ok {
		return v
	}
	return fallback
}

func (e *env) Int(key string, fallback int) int {
	v, ok := e.value(key)
	if !ok {
		return fallback
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		e.reject(key, v)
		return fallback
	}
	return n
}

// Duration accepts Go duration strings such as "500ms" or "5m".
func (e *env) Duration(key string, fallback time.Duration) time.Duration {
	v, ok := e.value(key)
	if !ok {
		return fallback
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		e.reject(key, v)
		return fallback
	}
	return d
}

// Bool accepts strconv.ParseBool forms plus yes/no and on/off.
func (e *env) Bool(key string, fallback bool) bool {
	v, ok := e.value(key)
	if !ok {
		return fallback
	}
	switch strings.ToLower(v) {
	case "yes", "on":
		return true
	case "no", "off":
		return false
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		e.reject(key, v)
		return fallback
	}
	return b
}

// List splits a comma-separated variable, dropping empty items.
func (e *env) List(key string) []string {
	v, _ := e.value(key)
	return splitList(v)
}

func splitList(value string) []string {
	var out []string
	for _, item := range strings.Split(value, ",") {
		if item = strings.TrimSpace(item); item != "" {
			out = append(out, item)
		}
	}
	return out
}
