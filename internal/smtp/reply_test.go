package smtp

import (
	"bufio"
	"bytes"
	"testing"
)

func TestWriteLine(t *testing.T) {
	var buf bytes.Buffer
	writer := bufio.NewWriter(&buf)

	if err := writeLine(writer, "250 Ok"); err != nil {
		t.Fatalf("Failed to write line: %v", err)
	}

	if buf.String() != "250 Ok\r\n" {
		t.Errorf("Expected '250 Ok\\r\\n', got '%s'", buf.String())
	}
}
