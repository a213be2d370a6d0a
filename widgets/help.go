package widgets

import (
	"fmt"
	"strings"
	"unicode/utf8"
)

// RenderKeyHelp lays out sections as a titled list, keys padded to the
// widest one so descriptions line up across sections
func RenderKeyHelp(sections []KeySection) string {
	width := 0
	for _, sec := range sections {
		for _, k := range sec.Keys {
			width = max(width, utf8.RuneCountInString(k.Key))
		}
	}

	var lines []string
	for i, sec := range sections {
		if i > 0 {
			lines = append(lines, "")
		}
		if sec.Title != "" {
			lines = append(lines, sec.Title)
		}
		for _, k := range sec.Keys {
			pad := width - utf8.RuneCountInString(k.Key)
			lines = append(lines, fmt.Sprintf("  %s%s  %s", k.Key, strings.Repeat(" ", pad), k.Desc))
		}
	}
	return strings.Join(lines, "\n")
}

// RenderKeyLine packs bindings onto one line: "space:play  s:stop"
func RenderKeyLine(keys []KeyBinding) string {
	parts := make([]string, len(keys))
	for i, k := range keys {
		parts[i] = k.Key + ":" + k.Desc
	}
	return strings.Join(parts, "  ")
}

// KeySection groups related key bindings
type KeySection struct {
	Title string
	Keys  []KeyBinding
}

// KeyBinding is a single key and its description
type KeyBinding struct {
	Key  string
	Desc string
}
