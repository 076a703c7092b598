package provider

import "strings"

const (
	openSentinel  = "<think>"
	closeSentinel = "</think>"
)

// tagState is the position of the scanner relative to the sentinel pair.
type tagState int

const (
	// stateOutside: emitting visible text.
	stateOutside tagState = iota
	// stateMaybeOpen: accumulating a potential open sentinel.
	stateMaybeOpen
	// stateInside: emitting thinking text.
	stateInside
	// stateMaybeClose: accumulating a potential close sentinel.
	stateMaybeClose
)

// ThinkScanner classifies a character stream into visible text and thinking
// text bracketed by the literal <think>/</think> sentinel pair. Input may
// arrive in arbitrary chunks: the state and the partial-sentinel accumulator
// survive across Feed calls, so a sentinel split at any chunk boundary is
// still recognized, and a false start that diverges from the sentinel is
// replayed losslessly into its surrounding segment.
//
// One scanner serves exactly one provider turn. Every streaming backend
// adapter routes its content deltas through a scanner, so models that
// inline their reasoning produce the same event split as models with a
// dedicated reasoning channel.
type ThinkScanner struct {
	state tagState
	acc   []byte
}

// NewThinkScanner returns a scanner at the start of a turn, outside any
// thinking segment.
func NewThinkScanner() *ThinkScanner {
	return &ThinkScanner{}
}

// Feed processes one chunk and returns the batched events it produced, in
// input order: at most one text_delta and one thinking event per chunk,
// ordered by whichever segment type appeared first in the chunk. Sentinels
// are ASCII, so byte-wise matching never splits a multi-byte character.
func (s *ThinkScanner) Feed(chunk string) []Event {
	var visible, thinking strings.Builder
	thinkingFirst := false

	noteOrder := func(isThinking bool) {
		if visible.Len() == 0 && thinking.Len() == 0 {
			thinkingFirst = isThinking
		}
	}

	for i := 0; i < len(chunk); i++ {
		c := chunk[i]

	reprocess:
		switch s.state {
		case stateOutside:
			if c == '<' {
				s.state = stateMaybeOpen
				s.acc = append(s.acc[:0], c)
			} else {
				noteOrder(false)
				visible.WriteByte(c)
			}

		case stateMaybeOpen:
			s.acc = append(s.acc, c)
			cand := string(s.acc)
			switch {
			case cand == openSentinel:
				s.state = stateInside
				s.acc = s.acc[:0]
			case strings.HasPrefix(openSentinel, cand):
				// Still a plausible open sentinel.
			default:
				// Dead start: everything before the current character is
				// visible text; the character itself re-runs from Outside so
				// an immediate second '<' can begin a fresh match.
				noteOrder(false)
				visible.Write(s.acc[:len(s.acc)-1])
				s.acc = s.acc[:0]
				s.state = stateOutside
				goto reprocess
			}

		case stateInside:
			if c == '<' {
				s.state = stateMaybeClose
				s.acc = append(s.acc[:0], c)
			} else {
				noteOrder(true)
				thinking.WriteByte(c)
			}

		case stateMaybeClose:
			s.acc = append(s.acc, c)
			cand := string(s.acc)
			switch {
			case cand == closeSentinel:
				s.state = stateOutside
				s.acc = s.acc[:0]
			case strings.HasPrefix(closeSentinel, cand):
				// Still a plausible close sentinel.
			default:
				noteOrder(true)
				thinking.Write(s.acc[:len(s.acc)-1])
				s.acc = s.acc[:0]
				s.state = stateInside
				goto reprocess
			}
		}
	}

	return s.batch(visible.String(), thinking.String(), thinkingFirst)
}

// Flush returns the event for any pending partial sentinel at end of
// stream. A half-open tag belongs to the segment that surrounds it: a
// pending open-sentinel prefix is visible text, a pending close-sentinel
// prefix is thinking text.
func (s *ThinkScanner) Flush() []Event {
	if len(s.acc) == 0 {
		return nil
	}
	pending := string(s.acc)
	s.acc = s.acc[:0]

	switch s.state {
	case stateMaybeOpen:
		s.state = stateOutside
		return []Event{{Type: EventTextDelta, Content: pending}}
	case stateMaybeClose:
		s.state = stateInside
		return []Event{{Type: EventThinking, Content: pending}}
	default:
		return nil
	}
}

func (s *ThinkScanner) batch(visible, thinking string, thinkingFirst bool) []Event {
	var events []Event
	if thinkingFirst {
		if thinking != "" {
			events = append(events, Event{Type: EventThinking, Content: thinking})
		}
		if visible != "" {
			events = append(events, Event{Type: EventTextDelta, Content: visible})
		}
		return events
	}
	if visible != "" {
		events = append(events, Event{Type: EventTextDelta, Content: visible})
	}
	if thinking != "" {
		events = append(events, Event{Type: EventThinking, Content: thinking})
	}
	return events
}
