package config

import (
	"bufio"
	"fmt"
	"os"
	"strings"
)

// LoadCredentialsFile reads "apikey,orgid" pairs, one per line.
// Blank lines and lines starting with # are ignored.
func LoadCredentialsFile(path string) ([]Credential, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open credentials: %w", err)
	}
	defer f.Close()

	var creds []Credential
	scanner := bufio.NewScanner(f)
	lineNo := 0
	for scanner.Scan() {
		lineNo++
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}

		key, org, ok := strings.Cut(line, ",")
		key, org = strings.TrimSpace(key), strings.TrimSpace(org)
		if !ok || key == "" || org == "" {
			return nil, fmt.Errorf("%s:%d: expected \"apikey,orgid\"", path, lineNo)
		}
		creds = append(creds, Credential{APIKey: key, OrgID: org})
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("read credentials: %w", err)
	}
	if len(creds) == 0 {
		return nil, fmt.Errorf("%s: no credentials found", path)
	}

	return creds, nil
}
