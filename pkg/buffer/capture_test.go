package buffer

import (
	"bytes"
	"io"
	"strings"
	"testing"
)

func TestCaptureRetainsWrites(t *testing.T) {
	c := NewCapture(64)
	for _, chunk := range []string{"data: hel", "lo\n", "data: [DONE]\n"} {
		n, err := c.Write([]byte(chunk))
		if err != nil {
			t.Fatal(err)
		}
		if n != len(chunk) {
			t.Fatalf("Write = %d, want %d", n, len(chunk))
		}
	}
	want := "data: hello\ndata: [DONE]\n"
	if got := string(c.Bytes()); got != want {
		t.Fatalf("Bytes = %q, want %q", got, want)
	}
	if c.Truncated() {
		t.Fatal("no truncation expected under the cap")
	}
}

func TestCaptureTruncatesAtCap(t *testing.T) {
	c := NewCapture(10)
	if _, err := c.Write([]byte("0123456789abcdef")); err != nil {
		t.Fatal(err)
	}
	if got := string(c.Bytes()); got != "0123456789" {
		t.Fatalf("Bytes = %q, want first 10 bytes", got)
	}
	if c.Len() != 10 {
		t.Fatalf("Len = %d, want 10", c.Len())
	}
	if !c.Truncated() {
		t.Fatal("expected Truncated after overflow")
	}

	// Writes once full are fully dropped but still reported accepted,
	// so an io.Copy through the capture never stalls.
	n, err := c.Write([]byte("more"))
	if err != nil || n != 4 {
		t.Fatalf("Write past cap = %d, %v", n, err)
	}
	if c.Len() != 10 {
		t.Fatalf("Len grew past cap: %d", c.Len())
	}
}

func TestCaptureBytesIsACopy(t *testing.T) {
	c := NewCapture(16)
	c.Write([]byte("abc"))
	snap := c.Bytes()
	snap[0] = 'X'
	if got := string(c.Bytes()); got != "abc" {
		t.Fatalf("internal buffer mutated through snapshot: %q", got)
	}
}

func TestCaptureAsWriterTarget(t *testing.T) {
	c := NewCapture(1 << 10)
	src := strings.NewReader("streamed response body")
	if _, err := io.Copy(c, src); err != nil {
		t.Fatal(err)
	}
	if !bytes.Equal(c.Bytes(), []byte("streamed response body")) {
		t.Fatalf("Bytes = %q", c.Bytes())
	}
}

func TestCaptureZeroCap(t *testing.T) {
	c := NewCapture(0)
	c.Write([]byte("anything"))
	if c.Len() != 0 {
		t.Fatalf("Len = %d, want 0", c.Len())
	}
	if !c.Truncated() {
		t.Fatal("expected Truncated for zero-cap capture")
	}
}
