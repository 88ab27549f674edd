package createcampaign

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"stream-monetization-workers/internal/models"
)

// AudienceCount counts registrations matching at least one segment. With no
// segments every registration is in the audience.
func AudienceCount(regs []models.Registration, segments []models.AudienceSegment) int {
	if len(segments) == 0 {
		return len(regs)
	}
	count := 0
	for i := range regs {
		for _, seg := range segments {
			if MatchesSegment(&regs[i], seg) {
				count++
				break
			}
		}
	}
	return count
}

// MatchesSegment is true when the registration satisfies every condition.
func MatchesSegment(reg *models.Registration, seg models.AudienceSegment) bool {
	for _, cond := range seg.Conditions {
		if !matchCondition(reg, cond) {
			return false
		}
	}
	return true
}

func matchCondition(reg *models.Registration, cond models.SegmentCondition) bool {
	actual, ok := fieldValue(reg, cond.Field)
	if !ok {
		return false
	}

	switch cond.Operator {
	case models.OpEquals:
		return equalValues(actual, cond.Value)
	case models.OpContains:
		return containsValue(actual, cond.Value)
	case models.OpGreaterThan:
		c, ok := compareValues(actual, cond.Value)
		return ok && c > 0
	case models.OpLessThan:
		c, ok := compareValues(actual, cond.Value)
		return ok && c < 0
	case models.OpIn:
		list, ok := cond.Value.([]interface{})
		if !ok {
			return false
		}
		for _, candidate := range list {
			if equalValues(actual, candidate) {
				return true
			}
		}
		return false
	}
	return false
}

// fieldValue resolves a segment field against the registration. Unknown
// names fall through to custom fields.
func fieldValue(reg *models.Registration, field string) (interface{}, bool) {
	switch field {
	case "email":
		return reg.Email, true
	case "first_name":
		return reg.FirstName, true
	case "last_name":
		return reg.LastName, true
	case "phone":
		return reg.Phone, true
	case "company":
		return reg.Company, true
	case "source":
		return reg.Source, true
	case "attended":
		return reg.Attended, true
	case "converted":
		return reg.Converted, true
	case "conversion_value":
		return float64(reg.ConversionValue), true
	case "registered_at":
		return reg.RegisteredAt, true
	}
	name := strings.TrimPrefix(field, "custom_fields.")
	v, ok := reg.CustomFields[name]
	return v, ok
}

func equalValues(actual, expected interface{}) bool {
	if a, ok := toFloat(actual); ok {
		if e, ok := toFloat(expected); ok {
			return a == e
		}
	}
	if a, ok := actual.(bool); ok {
		e, ok := toBool(expected)
		return ok && a == e
	}
	return strings.EqualFold(toString(actual), toString(expected))
}

func containsValue(actual, expected interface{}) bool {
	if list, ok := actual.([]interface{}); ok {
		for _, item := range list {
			if equalValues(item, expected) {
				return true
			}
		}
		return false
	}
	return strings.Contains(strings.ToLower(toString(actual)), strings.ToLower(toString(expected)))
}

// compareValues orders numbers and timestamps. ok is false when the values
// are not comparable.
func compareValues(actual, expected interface{}) (int, bool) {
	if t, isTime := actual.(time.Time); isTime {
		e, err := time.Parse(time.RFC3339, toString(expected))
		if err != nil {
			return 0, false
		}
		return t.Compare(e), true
	}

	a, ok := toFloat(actual)
	if !ok {
		return 0, false
	}
	e, ok := toFloat(expected)
	if !ok {
		return 0, false
	}
	switch {
	case a > e:
		return 1, true
	case a < e:
		return -1, true
	}
	return 0, true
}

func toFloat(v interface{}) (float64, bool) {
	switch n := v.(type) {
	case float64:
		return n, true
	case float32:
		return float64(n), true
	case int:
		return float64(n), true
	case int64:
		return float64(n), true
	case string:
		f, err := strconv.ParseFloat(strings.TrimSpace(n), 64)
		return f, err == nil
	}
	return 0, false
}

func toBool(v interface{}) (bool, bool) {
	switch b := v.(type) {
	case bool:
		return b, true
	case string:
		parsed, err := strconv.ParseBool(b)
		return parsed, err == nil
	}
	return false, false
}

func toString(v interface{}) string {
	switch s := v.(type) {
	case string:
		return s
	case nil:
		return ""
	case time.Time:
		return s.Format(time.RFC3339)
	}
	return fmt.Sprint(v)
}

// conditionHolds evaluates a schedule entry condition. known is false for
// conditions outside the supported set, which are treated as passing.
func conditionHolds(cond models.ScheduleCondition, reg *models.Registration) (holds bool, known bool) {
	switch cond {
	case "":
		return true, true
	case models.ConditionAttended:
		return reg.Attended, true
	case models.ConditionNotAttended:
		return !reg.Attended, true
	case models.ConditionConverted:
		return reg.Converted, true
	case models.ConditionNotConverted:
		return !reg.Converted, true
	}
	return true, false
}
