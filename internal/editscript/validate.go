package editscript

import "fmt"

// validate checks the Script invariants against source and target and returns an error on the first violation.
func (s Script) validate(source, target string) error {
	for i, op := range s {
		switch op.Kind {
		case KindRetain, KindInsert, KindDelete:
		default:
			return fmt.Errorf("op[%d]: unknown kind %d", i, op.Kind)
		}
		if op.Text == "" {
			return fmt.Errorf("op[%d]: empty text", i)
		}
		if i > 0 && s[i-1].Kind == op.Kind {
			return fmt.Errorf("op[%d]: not coalesced with previous %s", i, op.Kind)
		}
	}
	if got := s.Source(); got != source {
		return fmt.Errorf("script does not reconstruct source: %q != %q", got, source)
	}
	if got := s.Target(); got != target {
		return fmt.Errorf("script does not reconstruct target: %q != %q", got, target)
	}
	return nil
}
