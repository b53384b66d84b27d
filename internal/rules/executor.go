package rules

import (
	"strconv"
	"strings"

	"github.com/sirupsen/logrus"

	"ticket-intake-go/internal/model"
)

// Draft accumulates ticket fields while a rule's actions run. Empty fields
// are filled with defaults when the draft is committed.
type Draft struct {
	Title       string
	Description string
	Priority    model.Priority
	Category    string
	Tags        []string
	Technicians []string

	// NoTicket is set by create_ticket:false and ignore. A draft with
	// NoTicket never produces a ticket.
	NoTicket bool
	// Ignored is set only by the ignore action.
	Ignored bool
}

// AddTag appends tag unless the draft already carries it.
func (d *Draft) AddTag(tag string) {
	d.Tags = appendUnique(d.Tags, tag)
}

// Apply runs actions in order against a fresh draft. An ignore action stops
// processing. An action whose value cannot be applied returns an
// *InvalidActionValueError and no draft.
func Apply(actions []model.Action, msg *model.InboundMessage) (*Draft, error) {
	d := &Draft{}
	for _, action := range actions {
		stop, err := d.apply(action)
		if err != nil {
			return nil, err
		}
		if stop {
			logrus.WithField("message_id", msg.ID).Debug("Ignore action reached, skipping remaining actions")
			break
		}
	}
	return d, nil
}

func (d *Draft) apply(action model.Action) (bool, error) {
	value := strings.TrimSpace(action.Value)

	switch action.Type {
	case model.ActionCreateTicket:
		if value == "" {
			return false, nil
		}
		create, err := strconv.ParseBool(value)
		if err != nil {
			return false, &InvalidActionValueError{Type: action.Type, Value: action.Value, Reason: "expected true or false"}
		}
		if !create {
			d.NoTicket = true
		}
	case model.ActionAssignCategory:
		d.Category = action.Value
	case model.ActionSetPriority:
		p, err := model.ParsePriority(value)
		if err != nil {
			return false, &InvalidActionValueError{Type: action.Type, Value: action.Value, Reason: "expected low, medium, high or critical"}
		}
		d.Priority = p
	case model.ActionAssignTechnician:
		if value == "" {
			return false, &InvalidActionValueError{Type: action.Type, Value: action.Value, Reason: "technician id is empty"}
		}
		d.Technicians = appendUnique(d.Technicians, value)
	case model.ActionAddTag:
		if value == "" {
			return false, &InvalidActionValueError{Type: action.Type, Value: action.Value, Reason: "tag is empty"}
		}
		d.AddTag(value)
	case model.ActionIgnore:
		d.NoTicket = true
		d.Ignored = true
		return true, nil
	default:
		return false, &InvalidActionValueError{Type: action.Type, Value: action.Value, Reason: "unknown action type"}
	}
	return false, nil
}

func appendUnique(list []string, v string) []string {
	for _, existing := range list {
		if existing == v {
			return list
		}
	}
	return append(list, v)
}
