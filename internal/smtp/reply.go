package smtp

import (
	"bufio"
	"log/slog"
)

func writeLine(w *bufio.Writer, line string) error {
	if _, err := w.WriteString(line + "\r\n"); err != nil {
		return err
	}
	if err := w.Flush(); err != nil {
		return err
	}

	slog.Debug("S: " + line)
	return nil
}
