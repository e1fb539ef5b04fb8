package trace

import (
	"fmt"
	"strings"
)

// EventString returns a one line description of ev.
func EventString(ev Event) string {
	switch ev := ev.(type) {
	case *ReplaceInlinedFrame:
		return "ReplaceInlinedFrame " + ev.FileHash
	case *OpenFrame:
		return fmt.Sprintf("OpenFrame %s for %s", ev.ID, ev.Name)
	case *CloseFrame:
		return fmt.Sprintf("CloseFrame %s", ev.ID)
	case *Instruction:
		s := fmt.Sprintf("Instruction %s at PC %d, source line %d", ev.Class, ev.PC, ev.SrcLoc.Line)
		if ev.BcodeLoc != nil {
			s += fmt.Sprintf(", bytecode line %d", ev.BcodeLoc.Line)
		}
		return s
	case *Effect:
		if ev.Type == EffectExecutionError {
			return "Effect ExecutionError " + ev.Message
		}
		return fmt.Sprintf("Effect Write at %s: %s", ev.Loc, ev.Value)
	case *ExternalSummary:
		entries := make([]string, len(ev.Summary))
		for i, e := range ev.Summary {
			entries[i] = e.String()
		}
		return fmt.Sprintf("ExternalSummary %s [%s]", ev.Name, strings.Join(entries, "; "))
	case *External:
		if ev.Type == ExtEventStart {
			return fmt.Sprintf("ExternalEvent %s %s: %s", ev.Type, ev.Name, ev.Description)
		}
		return "ExternalEvent " + ev.Type.String()
	}
	return fmt.Sprintf("%T", ev)
}

// EventStrings returns the descriptions of all events in t.
func (t *Trace) EventStrings() []string {
	out := make([]string, len(t.Events))
	for i, ev := range t.Events {
		out[i] = EventString(ev)
	}
	return out
}
