// Unless explicitly stated otherwise all files in this repository are licensed
// under the Apache License Version 2.0.
// This product includes software developed at Datadog (https://www.datadoghq.com/).
// Copyright 2016-present Datadog, Inc.

package log

import (
	"bufio"
	"bytes"
	"fmt"
	"io"
	"regexp"
	"strings"
)

// Replacer structure to store regex matching and replacement functions
type Replacer struct {
	Regex *regexp.Regexp
	Hints []string // If any of these hints do not exist in the line, then we know the regex wont match either
	Repl  []byte
}

var commentRegex = regexp.MustCompile(`^\s*#.*$`)
var blankRegex = regexp.MustCompile(`^\s*$`)
var singleLineReplacers []Replacer

func init() {
	// URI Generic Syntax
	// https://tools.ietf.org/html/rfc3986
	uriPasswordReplacer := Replacer{
		Regex: regexp.MustCompile(`([A-Za-z][A-Za-z0-9+-.]+\:\/\/|\b)([^\:]+)\:([^\s]+)\@`),
		Repl:  []byte(`$1$2:********@`),
	}
	passwordReplacer := Replacer{
		Regex: matchYAMLKeyPart(`(pass(word)?|pwd)`),
		Hints: []string{"pass", "pwd"},
		Repl:  []byte(`$1 ********`),
	}
	tokenReplacer := Replacer{
		Regex: matchYAMLKeyEnding(`token`),
		Hints: []string{"token"},
		Repl:  []byte(`$1 ********`),
	}
	singleLineReplacers = []Replacer{uriPasswordReplacer, passwordReplacer, tokenReplacer}
}

func matchYAMLKeyPart(part string) *regexp.Regexp {
	return regexp.MustCompile(fmt.Sprintf(`(\s*(\w|_)*%s(\w|_)*\s*:).+`, part))
}

func matchYAMLKeyEnding(ending string) *regexp.Regexp {
	return regexp.MustCompile(fmt.Sprintf(`(^\s*(\w|_)*%s\s*:).+`, ending))
}

// CredentialsCleanerBytes scrubs credentials from a slice of bytes
func CredentialsCleanerBytes(file []byte) ([]byte, error) {
	r := bytes.NewReader(file)
	return credentialsCleaner(r)
}

func credentialsCleaner(file io.Reader) ([]byte, error) {
	var cleanedFile []byte

	scanner := bufio.NewScanner(file)

	first := true
	for scanner.Scan() {
		b := scanner.Bytes()
		if !commentRegex.Match(b) && !blankRegex.Match(b) && string(b) != "" {
			b = scrubCredentials(b, singleLineReplacers)
			if !first {
				cleanedFile = append(cleanedFile, byte('\n'))
			}

			cleanedFile = append(cleanedFile, b...)
			first = false
		}
	}

	if err := scanner.Err(); err != nil {
		return nil, err
	}

	return cleanedFile, nil
}

// scrubCredentials obfuscates sensitive information based on Replacer Regex
func scrubCredentials(data []byte, replacers []Replacer) []byte {
	for _, repl := range replacers {
		containsHint := false
		for _, hint := range repl.Hints {
			if strings.Contains(string(data), hint) {
				containsHint = true
				break
			}
		}
		if len(repl.Hints) == 0 || containsHint {
			data = repl.Regex.ReplaceAll(data, repl.Repl)
		}
	}
	return data
}

// SanitizeURL sanitizes credentials from a message containing a URL, and returns
// a string that can be logged safely.
func SanitizeURL(message string) string {
	return string(scrubCredentials([]byte(message), singleLineReplacers))
}
