package smtp

const (
	StatusServiceReady = "220 %s %s server ready"    // server hostname, product and version
	StatusConnClosed   = "221 %s closing connection" // server hostname
	StatusOK           = "250 Ok"
	StatusGreeting     = "250 %s Hello %s" // server hostname, peer address

	StatusStartMailInput = "354 End data with <CR><LF>.<CR><LF>"

	StatusInternalConfusion = "451 Internal confusion"

	StatusBadSyntax      = "500 Error: bad syntax"
	StatusHeloSyntax     = "501 Syntax: HELO hostname"
	StatusNoopSyntax     = "501 Syntax: NOOP"
	StatusMailSyntax     = "501 Syntax: MAIL FROM:<address>"
	StatusRcptSyntax     = "501 Syntax: RCPT TO: <address>"
	StatusRsetSyntax     = "501 Syntax: RSET"
	StatusDataSyntax     = "501 Syntax: DATA"
	StatusNotImplemented = "502 Error: command \"%s\" not implemented" // command verb
	StatusDuplicateHelo  = "503 Duplicate HELO/EHLO"
	StatusNestedMail     = "503 Error: nested MAIL command"
	StatusNeedMail       = "503 Error: need MAIL command"
	StatusNeedRcpt       = "503 Error: need RCPT command"
)
