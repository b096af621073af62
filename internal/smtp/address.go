package smtp

import (
	"strings"

	"github.com/OliverSchlueter/smtpevent/internal/mail"
)

// ExtractAddress returns the address following keyword (e.g. "FROM:") in
// argument. The keyword is matched case-insensitively. Enclosing angle
// brackets are removed, except for the null address which is returned as "<>".
func ExtractAddress(keyword, argument string) (string, bool) {
	if argument == "" || len(argument) < len(keyword) {
		return "", false
	}
	if !strings.EqualFold(argument[:len(keyword)], keyword) {
		return "", false
	}

	address := strings.TrimSpace(argument[len(keyword):])
	if address != mail.NullAddress && strings.HasPrefix(address, "<") && strings.HasSuffix(address, ">") {
		address = address[1 : len(address)-1]
	}
	if address == "" {
		return "", false
	}

	return address, true
}
