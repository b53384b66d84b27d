package rules

import (
	"fmt"
	"sort"
	"strings"

	"ticket-intake-go/internal/model"
)

// Validate checks the structure of a rule before it is stored. Action values
// are checked when the rule runs.
func Validate(rule *model.ProcessingRule) error {
	if strings.TrimSpace(rule.Name) == "" {
		return fmt.Errorf("%w: name is required", ErrInvalidRule)
	}
	if len(rule.Conditions) == 0 {
		return fmt.Errorf("%w: at least one condition is required", ErrInvalidRule)
	}
	if len(rule.Actions) == 0 {
		return fmt.Errorf("%w: at least one action is required", ErrInvalidRule)
	}

	for i, c := range rule.Conditions {
		switch c.Field {
		case model.FieldSender, model.FieldRecipient, model.FieldSubject, model.FieldBody, model.FieldHasAttachments:
		default:
			return fmt.Errorf("%w: condition %d: unknown field %q", ErrInvalidRule, i, c.Field)
		}
		switch c.Operator {
		case model.OpContains, model.OpEquals, model.OpStartsWith, model.OpEndsWith, model.OpRegex:
		default:
			return fmt.Errorf("%w: condition %d: unknown operator %q", ErrInvalidRule, i, c.Operator)
		}
	}

	for i, a := range rule.Actions {
		switch a.Type {
		case model.ActionCreateTicket, model.ActionAssignCategory, model.ActionSetPriority,
			model.ActionAssignTechnician, model.ActionAddTag, model.ActionIgnore:
		default:
			return fmt.Errorf("%w: action %d: unknown type %q", ErrInvalidRule, i, a.Type)
		}
	}
	return nil
}

// ActiveSorted returns a copy of the active rules ordered by ascending
// priority. Rules with equal priority keep their input order. The result
// shares no slices with the input.
func ActiveSorted(in []model.ProcessingRule) []model.ProcessingRule {
	out := make([]model.ProcessingRule, 0, len(in))
	for _, r := range in {
		if !r.Active {
			continue
		}
		r.Conditions = append([]model.Condition(nil), r.Conditions...)
		r.Actions = append([]model.Action(nil), r.Actions...)
		out = append(out, r)
	}
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].Priority < out[j].Priority
	})
	return out
}
