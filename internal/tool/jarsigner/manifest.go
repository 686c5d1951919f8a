package jarsigner

import (
	"bufio"
	"bytes"
	"fmt"
	"sort"
	"strings"
)

const (
	crlf             = "\r\n"
	defaultMainAttrs = "Manifest-Version: 1.0" + crlf + "Created-By: webstart-packager" + crlf
	maxLineLength    = 72
)

// mainSection returns the main attributes of an existing manifest, or
// defaults when the jar has none. Per-entry sections are dropped because
// they are rebuilt from the current entry digests.
func mainSection(manifest []byte) string {
	if len(manifest) == 0 {
		return defaultMainAttrs
	}

	text := strings.ReplaceAll(string(manifest), crlf, "\n")
	main, _, _ := strings.Cut(text, "\n\n")
	main = strings.TrimRight(main, "\n")

	if main == "" {
		return defaultMainAttrs
	}

	return strings.ReplaceAll(main, "\n", crlf) + crlf
}

// buildManifest renders the main section followed by one sorted digest
// section per entry.
func buildManifest(main string, digests map[string]string, attribute string) []byte {
	names := make([]string, 0, len(digests))
	for name := range digests {
		names = append(names, name)
	}

	sort.Strings(names)

	var buf bytes.Buffer

	buf.WriteString(main)
	buf.WriteString(crlf)

	for _, name := range names {
		writeAttribute(&buf, "Name", name)
		writeAttribute(&buf, attribute, digests[name])
		buf.WriteString(crlf)
	}

	return buf.Bytes()
}

// writeAttribute writes "key: value" wrapped at 72 bytes with continuation
// lines starting with a single space.
func writeAttribute(buf *bytes.Buffer, key, value string) {
	line := key + ": " + value

	for len(line) > maxLineLength {
		buf.WriteString(line[:maxLineLength])
		buf.WriteString(crlf)
		line = " " + line[maxLineLength:]
	}

	buf.WriteString(line)
	buf.WriteString(crlf)
}

// parseDigests reads the per-entry sections of a manifest back into a map.
func parseDigests(manifest []byte, attribute string) (map[string]string, error) {
	digests := make(map[string]string)

	var (
		scanner = bufio.NewScanner(bytes.NewReader(manifest))
		lines   []string
	)

	for scanner.Scan() {
		line := strings.TrimSuffix(scanner.Text(), "\r")
		if strings.HasPrefix(line, " ") && len(lines) > 0 {
			lines[len(lines)-1] += line[1:]
			continue
		}

		lines = append(lines, line)
	}

	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("scan manifest: %w", err)
	}

	var name string

	for _, line := range lines {
		key, value, ok := strings.Cut(line, ": ")
		if !ok {
			name = ""
			continue
		}

		switch key {
		case "Name":
			name = value
		case attribute:
			if name != "" {
				digests[name] = value
			}
		}
	}

	return digests, nil
}
