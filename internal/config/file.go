package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"sort"
	"strconv"
	"strings"
)

// settableKeys are the keys accepted by Set and Unset.
var settableKeys = map[string]bool{
	"provider":      true,
	"provider_file": true,
	"base_url":      true,
	"app_key":       true,
	"app_secret":    true,
	"callback":      true,
	"timeout":       true,
	"format":        true,
	"default_app":   true,
	"stats":         true,
	"verbose":       true,
}

// SettableKeys returns the sorted list of keys accepted by Set.
func SettableKeys() []string {
	keys := make([]string, 0, len(settableKeys))
	for k := range settableKeys {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// IsAuthorityKey reports whether key may only be set in system or global config.
func IsAuthorityKey(key string) bool {
	return authorityKeys[key]
}

// GlobalConfigPath returns the path of the user's config file.
func GlobalConfigPath() string {
	return globalConfigPath()
}

// LocalConfigPath returns the config file path for the working directory.
func LocalConfigPath() string {
	return filepath.Join(".weibo", "config.json")
}

// Set validates value for key and writes it to the config file at path,
// creating the file if needed. It returns the stored value.
func Set(path, key, value string) (any, error) {
	if !settableKeys[key] {
		return nil, fmt.Errorf("invalid config key %q (valid keys: %s)", key, strings.Join(SettableKeys(), ", "))
	}

	var stored any = value
	switch key {
	case "stats":
		b, ok := parseEnvBool(value)
		if !ok {
			return nil, fmt.Errorf("%s must be true/false (or 1/0)", key)
		}
		stored = b
	case "verbose":
		level, err := strconv.Atoi(value)
		if err != nil || level < 0 || level > 2 {
			return nil, fmt.Errorf("verbose must be 0, 1, or 2")
		}
		stored = level
	case "timeout":
		if _, ok := parseTimeout(value); !ok {
			return nil, fmt.Errorf("timeout must be a positive duration such as 15s")
		}
	case "format":
		switch value {
		case "auto", "json", "styled", "quiet":
		default:
			return nil, fmt.Errorf("format must be auto, json, styled, or quiet")
		}
	}

	data, err := readRaw(path)
	if err != nil {
		return nil, err
	}

	if key == "default_app" {
		if apps, _ := data["apps"].(map[string]any); len(apps) > 0 {
			if _, ok := apps[value]; !ok {
				return nil, fmt.Errorf("app %q not found", value)
			}
		}
	}

	data[key] = stored
	if err := writeRaw(path, data); err != nil {
		return nil, err
	}
	return stored, nil
}

// Unset removes key from the config file at path. A missing file or key is
// not an error.
func Unset(path, key string) error {
	if !settableKeys[key] {
		return fmt.Errorf("invalid config key %q (valid keys: %s)", key, strings.Join(SettableKeys(), ", "))
	}
	data, err := readRaw(path)
	if err != nil {
		return err
	}
	if _, ok := data[key]; !ok {
		return nil
	}
	delete(data, key)
	return writeRaw(path, data)
}

func readRaw(path string) (map[string]any, error) {
	data := make(map[string]any)
	b, err := os.ReadFile(path) //nolint:gosec // G304: Path is from trusted config location
	if os.IsNotExist(err) {
		return data, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read config: %w", err)
	}
	if err := json.Unmarshal(b, &data); err != nil {
		return nil, fmt.Errorf("malformed config at %s: %w", path, err)
	}
	return data, nil
}

func writeRaw(path string, data map[string]any) error {
	if err := os.MkdirAll(filepath.Dir(path), 0700); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}
	b, err := json.MarshalIndent(data, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}
	if err := atomicWriteFile(path, append(b, '\n')); err != nil {
		return fmt.Errorf("failed to write config: %w", err)
	}
	return nil
}

// atomicWriteFile writes data to a file atomically using temp+rename.
// Files are always created with 0600 permissions (owner read/write only).
func atomicWriteFile(path string, data []byte) error {
	dir := filepath.Dir(path)
	tmpFile, err := os.CreateTemp(dir, filepath.Base(path)+".tmp-*")
	if err != nil {
		return err
	}
	tmpPath := tmpFile.Name()

	if _, err := tmpFile.Write(data); err != nil {
		tmpFile.Close()
		os.Remove(tmpPath)
		return err
	}
	if err := tmpFile.Chmod(0600); err != nil {
		tmpFile.Close()
		os.Remove(tmpPath)
		return err
	}
	if err := tmpFile.Close(); err != nil {
		os.Remove(tmpPath)
		return err
	}

	// Windows: rename fails when the destination exists.
	err = os.Rename(tmpPath, path)
	if err != nil && runtime.GOOS == "windows" {
		_ = os.Remove(path)
		return os.Rename(tmpPath, path)
	}
	return err
}
