package smtp

import "fmt"

func (s *Session) handleHelo(arg string) error {
	if arg == "" {
		return s.reply(StatusHeloSyntax)
	}
	if s.greeted != "" {
		return s.reply(StatusDuplicateHelo)
	}

	s.greeted = arg
	return s.reply(fmt.Sprintf(StatusGreeting, s.hostname, s.peer))
}

func (s *Session) handleNoop(arg string) error {
	if arg != "" {
		return s.reply(StatusNoopSyntax)
	}
	return s.reply(StatusOK)
}

// handleQuit ignores any argument. The transport is closed by the caller once
// Closed reports true.
func (s *Session) handleQuit() error {
	s.closed = true
	return s.reply(fmt.Sprintf(StatusConnClosed, s.hostname))
}

func (s *Session) handleMail(arg string) error {
	if s.sender != "" {
		return s.reply(StatusNestedMail)
	}

	address, ok := ExtractAddress("FROM:", arg)
	if !ok {
		return s.reply(StatusMailSyntax)
	}

	s.sender = address
	s.logger.Debug("Sender accepted", "sender", address)
	return s.reply(StatusOK)
}

func (s *Session) handleRcpt(arg string) error {
	if s.sender == "" {
		return s.reply(StatusNeedMail)
	}

	address, ok := ExtractAddress("TO:", arg)
	if !ok {
		return s.reply(StatusRcptSyntax)
	}

	s.recipients = append(s.recipients, address)
	s.logger.Debug("Recipient accepted", "recipient", address, "recipients", len(s.recipients))
	return s.reply(StatusOK)
}

func (s *Session) handleRset(arg string) error {
	if arg != "" {
		return s.reply(StatusRsetSyntax)
	}

	s.resetTransaction()
	return s.reply(StatusOK)
}

func (s *Session) handleData(arg string) error {
	if len(s.recipients) == 0 {
		return s.reply(StatusNeedRcpt)
	}
	if arg != "" {
		return s.reply(StatusDataSyntax)
	}

	s.phase = PhaseData
	return s.reply(StatusStartMailInput)
}
