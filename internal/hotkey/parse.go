package hotkey

import (
	"errors"
	"fmt"
	"strings"
	"unicode/utf8"
)

var ErrInvalidCombo = errors.New("invalid hotkey")

var modifierAliases = map[string]string{
	"ctrl":    "ctrl",
	"control": "ctrl",
	"alt":     "alt",
	"option":  "alt",
	"opt":     "alt",
	"shift":   "shift",
	"cmd":     "cmd",
	"command": "cmd",
	"super":   "cmd",
	"meta":    "cmd",
	"win":     "cmd",
}

var namedKeys = map[string]string{
	"space":     "space",
	"enter":     "enter",
	"return":    "enter",
	"tab":       "tab",
	"esc":       "esc",
	"escape":    "esc",
	"backspace": "backspace",
	"delete":    "delete",
	"home":      "home",
	"end":       "end",
	"pageup":    "pageup",
	"pagedown":  "pagedown",
	"up":        "up",
	"down":      "down",
	"left":      "left",
	"right":     "right",
}

// Parse turns a hotkey such as "<cmd>+<alt>+r" or "ctrl+shift+space" into the
// key list gohook registers: the main key first, then modifiers in a stable
// order. Exactly one non-modifier key is required.
func Parse(spec string) ([]string, error) {
	spec = strings.TrimSpace(spec)
	if spec == "" {
		return nil, fmt.Errorf("%w: empty", ErrInvalidCombo)
	}

	var key string
	mods := map[string]bool{}
	for _, part := range strings.Split(spec, "+") {
		token := normalizeToken(part)
		if token == "" {
			return nil, fmt.Errorf("%w: empty key in %q", ErrInvalidCombo, spec)
		}
		if mod, ok := modifierAliases[token]; ok {
			if mods[mod] {
				return nil, fmt.Errorf("%w: duplicate modifier %q in %q", ErrInvalidCombo, mod, spec)
			}
			mods[mod] = true
			continue
		}
		resolved, err := resolveKey(token)
		if err != nil {
			return nil, fmt.Errorf("%w: %v in %q", ErrInvalidCombo, err, spec)
		}
		if key != "" {
			return nil, fmt.Errorf("%w: more than one key in %q", ErrInvalidCombo, spec)
		}
		key = resolved
	}
	if key == "" {
		return nil, fmt.Errorf("%w: no key besides modifiers in %q", ErrInvalidCombo, spec)
	}

	combo := []string{key}
	for _, mod := range []string{"ctrl", "alt", "shift", "cmd"} {
		if mods[mod] {
			combo = append(combo, mod)
		}
	}
	return combo, nil
}

// normalizeToken lowercases, strips the <key> angle brackets and folds
// left/right variants (ctrl_l, cmd_r) into the generic modifier.
func normalizeToken(part string) string {
	token := strings.ToLower(strings.TrimSpace(part))
	token = strings.TrimSuffix(strings.TrimPrefix(token, "<"), ">")
	for _, suffix := range []string{"_l", "_r"} {
		if base := strings.TrimSuffix(token, suffix); base != token {
			if _, ok := modifierAliases[base]; ok {
				return base
			}
		}
	}
	return token
}

func resolveKey(token string) (string, error) {
	if named, ok := namedKeys[token]; ok {
		return named, nil
	}
	if len(token) >= 2 && len(token) <= 3 && token[0] == 'f' {
		n := 0
		for _, r := range token[1:] {
			if r < '0' || r > '9' {
				n = -1
				break
			}
			n = n*10 + int(r-'0')
		}
		if n >= 1 && n <= 12 {
			return token, nil
		}
	}
	if utf8.RuneCountInString(token) == 1 {
		return token, nil
	}
	return "", fmt.Errorf("unknown key %q", token)
}

// Format renders a parsed combo back in "mod+mod+key" form for display.
func Format(combo []string) string {
	if len(combo) == 0 {
		return ""
	}
	parts := append([]string(nil), combo[1:]...)
	parts = append(parts, combo[0])
	return strings.Join(parts, "+")
}
