package hotkey

import (
	"context"
	"errors"
	"reflect"
	"testing"
	"time"
)

func TestParse(t *testing.T) {
	t.Parallel()

	cases := map[string][]string{
		"<cmd>+<alt>+r":       {"r", "alt", "cmd"},
		"cmd+alt+r":           {"r", "alt", "cmd"},
		"Control+Shift+Space": {"space", "ctrl", "shift"},
		"<ctrl_l>+<option>+k": {"k", "ctrl", "alt"},
		"super+f9":            {"f9", "cmd"},
		" win + enter ":       {"enter", "cmd"},
		"x":                   {"x"},
	}
	for spec, want := range cases {
		got, err := Parse(spec)
		if err != nil {
			t.Fatalf("Parse(%q) failed: %v", spec, err)
		}
		if !reflect.DeepEqual(got, want) {
			t.Fatalf("Parse(%q) = %v, want %v", spec, got, want)
		}
	}
}

func TestParseRejectsInvalid(t *testing.T) {
	t.Parallel()

	for _, spec := range []string{"", "cmd+alt", "cmd++r", "a+b", "ctrl+control+r", "cmd+f13", "cmd+hyper"} {
		if _, err := Parse(spec); !errors.Is(err, ErrInvalidCombo) {
			t.Fatalf("Parse(%q): expected ErrInvalidCombo, got %v", spec, err)
		}
	}
}

func TestFormat(t *testing.T) {
	t.Parallel()

	if got := Format([]string{"r", "alt", "cmd"}); got != "alt+cmd+r" {
		t.Fatalf("unexpected format: %q", got)
	}
	if got := Format(nil); got != "" {
		t.Fatalf("expected empty format, got %q", got)
	}
}

func TestDebouncerFoldsAutoRepeat(t *testing.T) {
	t.Parallel()

	now := time.Unix(0, 0)
	d := newDebouncer(300*time.Millisecond, func() time.Time { return now })

	if !d.allow() {
		t.Fatalf("first press must be allowed")
	}
	now = now.Add(50 * time.Millisecond)
	if d.allow() {
		t.Fatalf("auto-repeat inside the window must be dropped")
	}
	now = now.Add(250 * time.Millisecond)
	if d.allow() {
		t.Fatalf("window restarts on every event, including dropped ones")
	}
	now = now.Add(300 * time.Millisecond)
	if !d.allow() {
		t.Fatalf("press after a quiet window must be allowed")
	}
}

func TestDebouncerHeldKeyTogglesOnce(t *testing.T) {
	t.Parallel()

	start := time.Unix(0, 0)
	now := start
	d := newDebouncer(defaultDebounce, func() time.Time { return now })

	// One press held for a second: the OS repeats from 500ms every 33ms.
	admitted := 0
	if d.allow() {
		admitted++
	}
	for offset := 500 * time.Millisecond; offset <= time.Second; offset += 33 * time.Millisecond {
		now = start.Add(offset)
		if d.allow() {
			t.Fatalf("repeat at %s admitted as a new press", offset)
		}
	}
	if admitted != 1 {
		t.Fatalf("expected one toggle from a held press, got %d", admitted)
	}

	// The next deliberate press after release toggles again.
	now = now.Add(defaultDebounce)
	if !d.allow() {
		t.Fatalf("press after release must be allowed")
	}
}

func TestListenValidatesArguments(t *testing.T) {
	t.Parallel()

	l := NewGohookListener(0, nil)
	if err := l.Listen(context.Background(), nil, func() {}); err == nil {
		t.Fatalf("expected error for empty combo")
	}
	if err := l.Listen(context.Background(), []string{"r"}, nil); err == nil {
		t.Fatalf("expected error for nil handler")
	}
}
