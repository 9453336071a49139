package audio

import "testing"

func TestBlockerRegroupsIntoFixedBlocks(t *testing.T) {
	t.Parallel()

	var blocks []string
	b := newBlocker(4, func(block []byte) { blocks = append(blocks, string(block)) })

	b.write([]byte("ab"))
	b.write([]byte("cdefghij"))
	b.write([]byte("k"))

	if len(blocks) != 2 || blocks[0] != "abcd" || blocks[1] != "efgh" {
		t.Fatalf("unexpected blocks: %q", blocks)
	}
	if string(b.pending) != "ijk" {
		t.Fatalf("unexpected pending bytes: %q", b.pending)
	}
}

func TestBlockerEmitsCopies(t *testing.T) {
	t.Parallel()

	var first []byte
	b := newBlocker(2, func(block []byte) {
		if first == nil {
			first = block
		}
	})

	src := []byte("ab")
	b.write(src)
	src[0] = 'z'
	b.write([]byte("cd"))

	if string(first) != "ab" {
		t.Fatalf("emitted block aliases caller buffer: %q", first)
	}
}
