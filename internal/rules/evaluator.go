// Package rules evaluates processing rules against inbound messages and
// turns the actions of a matching rule into a ticket draft.
package rules

import (
	"regexp"
	"strconv"
	"strings"
	"sync"

	"github.com/sirupsen/logrus"
	"golang.org/x/text/cases"

	"ticket-intake-go/internal/model"
)

// Evaluator tests conditions against messages. Compiled regular expressions
// are cached, so an Evaluator should be shared. It is safe for concurrent use.
type Evaluator struct {
	mu       sync.RWMutex
	patterns map[string]*regexp.Regexp
	invalid  map[string]error
}

// NewEvaluator creates a new condition evaluator
func NewEvaluator() *Evaluator {
	return &Evaluator{
		patterns: make(map[string]*regexp.Regexp),
		invalid:  make(map[string]error),
	}
}

// Matches reports whether every condition of rule holds for msg.
// A rule without conditions never matches.
func (e *Evaluator) Matches(rule *model.ProcessingRule, msg *model.InboundMessage) bool {
	if len(rule.Conditions) == 0 {
		return false
	}
	for _, cond := range rule.Conditions {
		if !e.Evaluate(cond, msg) {
			return false
		}
	}
	return true
}

// Evaluate tests a single condition. Unknown fields or operators and invalid
// regular expressions evaluate to false.
func (e *Evaluator) Evaluate(cond model.Condition, msg *model.InboundMessage) bool {
	subject, ok := FieldValue(cond.Field, msg)
	if !ok {
		return false
	}

	if cond.Operator == model.OpRegex {
		re, err := e.compile(cond.Value, cond.CaseSensitive)
		if err != nil {
			return false
		}
		return re.MatchString(subject)
	}

	value := cond.Value
	if !cond.CaseSensitive {
		fold := cases.Fold()
		subject = fold.String(subject)
		value = fold.String(value)
	}

	switch cond.Operator {
	case model.OpContains:
		return strings.Contains(subject, value)
	case model.OpEquals:
		return subject == value
	case model.OpStartsWith:
		return strings.HasPrefix(subject, value)
	case model.OpEndsWith:
		return strings.HasSuffix(subject, value)
	default:
		return false
	}
}

// FieldValue extracts the string a condition on field compares against.
func FieldValue(field model.ConditionField, msg *model.InboundMessage) (string, bool) {
	switch field {
	case model.FieldSender:
		return msg.From, true
	case model.FieldRecipient:
		return strings.Join(msg.Recipients(), ", "), true
	case model.FieldSubject:
		return msg.Subject, true
	case model.FieldBody:
		return msg.Body, true
	case model.FieldHasAttachments:
		return strconv.FormatBool(msg.HasAttachments()), true
	default:
		return "", false
	}
}

func (e *Evaluator) compile(pattern string, caseSensitive bool) (*regexp.Regexp, error) {
	key := pattern
	if !caseSensitive {
		key = "(?i)" + pattern
	}

	e.mu.RLock()
	re, ok := e.patterns[key]
	err := e.invalid[key]
	e.mu.RUnlock()
	if ok {
		return re, nil
	}
	if err != nil {
		return nil, err
	}

	re, err = regexp.Compile(key)

	e.mu.Lock()
	defer e.mu.Unlock()
	if err != nil {
		if _, seen := e.invalid[key]; !seen {
			logrus.WithFields(logrus.Fields{
				"pattern": pattern,
				"error":   err.Error(),
			}).Warn("Invalid regex in processing rule condition, condition evaluates false")
		}
		e.invalid[key] = err
		return nil, err
	}
	e.patterns[key] = re
	return re, nil
}
