package trace

import (
	"encoding/json"

	"github.com/pkg/errors"
)

// external converts an event that originated outside the VM.
func (r *reader) external(ext *jsonExternal) error {
	switch {
	case ext.Marker != "":
		switch ext.Marker {
		case "MoveCallStart":
			r.emit(&External{Type: MoveCallStart})
		case "MoveCallEnd":
			r.emit(&External{Type: MoveCallEnd})
		default:
			r.log.Debugf("ignoring external marker %q", ext.Marker)
		}
		return nil
	case ext.Summary != nil:
		return r.externalSummary(ext.Summary)
	case ext.Event != nil:
		return r.externalEvent(ext.Event)
	}
	return errors.Wrap(ErrMalformedTrace, "empty External record")
}

func (r *reader) externalSummary(s *jsonSummary) error {
	entries := make([]SummaryEntry, 0, len(s.Events))
	for i, raw := range s.Events {
		var tagged struct {
			MoveCall      *jsonMoveCall `json:"MoveCall"`
			ExternalEvent *string       `json:"ExternalEvent"`
		}
		if err := json.Unmarshal(raw, &tagged); err != nil {
			return errors.Wrapf(ErrUnexpectedSummary, "entry %d of %s: %s", i, s.Name, raw)
		}
		switch {
		case tagged.MoveCall != nil:
			c := tagged.MoveCall
			if c.Pkg == nil || c.Module == nil || c.Function == nil {
				return errors.Wrapf(ErrUnexpectedSummary, "incomplete call in entry %d of %s: %s", i, s.Name, raw)
			}
			entries = append(entries, SummaryEntry{Call: &MoveCall{Pkg: *c.Pkg, Module: *c.Module, Function: *c.Function}})
		case tagged.ExternalEvent != nil && *tagged.ExternalEvent != "":
			entries = append(entries, SummaryEntry{Text: *tagged.ExternalEvent})
		default:
			return errors.Wrapf(ErrUnexpectedSummary, "entry %d of %s: %s", i, s.Name, raw)
		}
	}
	r.emit(&ExternalSummary{
		ID:      extSummaryID,
		Name:    s.Name,
		Summary: entries,
	})
	return nil
}

func (r *reader) externalEvent(e *jsonExtEvent) error {
	ev := &External{
		Type:         ExtEventStart,
		ID:           extEventID,
		Description:  e.Description,
		Name:         e.Name,
		LocalsTypes:  []string{},
		LocalsNames:  []string{},
		LocalsValues: []Value{},
	}
	for i := range e.Values {
		switch v := &e.Values[i]; {
		case v.Single != nil:
			val, err := r.res.value(&v.Single.Info.Value)
			if err != nil {
				return errors.WithMessagef(err, "value %s of external event %s", v.Single.Name, e.Name)
			}
			t := &v.Single.Info.Type
			ev.LocalsTypes = append(ev.LocalsTypes, r.res.typeString(&t.Type, t.RefType))
			ev.LocalsNames = append(ev.LocalsNames, v.Single.Name)
			ev.LocalsValues = append(ev.LocalsValues, val)
		case v.Vector != nil:
			vec := make(Vector, len(v.Vector.Value))
			for j := range v.Vector.Value {
				elem, err := r.res.value(&v.Vector.Value[j])
				if err != nil {
					return errors.WithMessagef(err, "element %d of %s in external event %s", j, v.Vector.Name, e.Name)
				}
				vec[j] = elem
			}
			t := &v.Vector.Type
			ev.LocalsTypes = append(ev.LocalsTypes, "vector<"+r.res.typeString(&t.Type, t.RefType)+">")
			ev.LocalsNames = append(ev.LocalsNames, v.Vector.Name)
			ev.LocalsValues = append(ev.LocalsValues, vec)
		}
	}
	r.emit(ev)
	// The end marker gives a stepper a place to leave the event's frame.
	r.emit(&External{Type: ExtEventEnd})
	return nil
}
