package ingest

import (
	"errors"
	"fmt"
	"reflect"
	"strings"
	"sync"

	"github.com/go-playground/validator/v10"

	"github.com/huangsam/skysched/internal/contract"
	"github.com/huangsam/skysched/schema"
)

var (
	validate     *validator.Validate
	validateOnce sync.Once
)

// getValidator returns the shared validator. Field names are reported with their JSON names.
func getValidator() *validator.Validate {
	validateOnce.Do(func() {
		validate = validator.New(validator.WithRequiredStructEnabled())
		validate.RegisterTagNameFunc(func(fld reflect.StructField) string {
			name, _, _ := strings.Cut(fld.Tag.Get("json"), ",")
			if name == "-" {
				return ""
			}
			return name
		})
	})
	return validate
}

// violations collects broken rules for one payload.
type violations struct {
	list []contract.Violation
}

func (v *violations) add(block, field, format string, args ...any) {
	v.list = append(v.list, contract.Violation{Block: block, Field: field, Message: fmt.Sprintf(format, args...)})
}

func (v *violations) err() error {
	if len(v.list) == 0 {
		return nil
	}
	return &contract.ValidationError{Violations: v.list}
}

// checkStruct runs the struct tags of a raw block and records every failure.
func (v *violations) checkStruct(block string, raw *rawBlock) {
	err := getValidator().Struct(raw)
	if err == nil {
		return
	}
	var fieldErrs validator.ValidationErrors
	if !errors.As(err, &fieldErrs) {
		v.add(block, "block", "%v", err)
		return
	}
	for _, fe := range fieldErrs {
		v.add(block, fieldPath(fe.Namespace()), "%s", tagMessage(fe))
	}
}

// fieldPath drops the root struct name from a validator namespace.
func fieldPath(ns string) string {
	if _, rest, ok := strings.Cut(ns, "."); ok {
		return rest
	}
	return ns
}

func tagMessage(fe validator.FieldError) string {
	switch fe.Tag() {
	case "required":
		return "is required"
	case "gte":
		return fmt.Sprintf("must be >= %s, got %v", fe.Param(), derefValue(fe.Value()))
	case "lte":
		return fmt.Sprintf("must be <= %s, got %v", fe.Param(), derefValue(fe.Value()))
	case "lt":
		return fmt.Sprintf("must be < %s, got %v", fe.Param(), derefValue(fe.Value()))
	default:
		return fmt.Sprintf("failed %q check", fe.Tag())
	}
}

func derefValue(v any) any {
	if p, ok := v.(*float64); ok && p != nil {
		return *p
	}
	return v
}

// checkPeriod records a violation when a present period does not have start < stop.
func (v *violations) checkPeriod(block, field string, p schema.Period) {
	if !p.Valid() {
		v.add(block, field, "start %v must be before stop %v", p.Start, p.Stop)
	}
}

// checkBlock applies the cross-field rules the struct tags cannot express.
func (v *violations) checkBlock(b *schema.SchedulingBlock) {
	id := b.OriginalID
	if b.MinObservationSec > b.RequestedDurationSec {
		v.add(id, "minObservationTimeInSec", "%v exceeds requestedDurationSec %v", b.MinObservationSec, b.RequestedDurationSec)
	}
	if alt := b.Constraint.Altitude; alt != nil && alt.MinDeg > alt.MaxDeg {
		v.add(id, "elevationConstraint_", "min %v exceeds max %v", alt.MinDeg, alt.MaxDeg)
	}
	if az := b.Constraint.Azimuth; az != nil && az.MinDeg > az.MaxDeg {
		v.add(id, "azimuthConstraint_", "min %v exceeds max %v", az.MinDeg, az.MaxDeg)
	}
	if w := b.Constraint.TimeWindow; w != nil {
		v.checkPeriod(id, "timeConstraint_.fixedTime", *w)
	}
	if b.ScheduledPeriod != nil {
		v.checkPeriod(id, "scheduled_period", *b.ScheduledPeriod)
	}
	for i, p := range b.VisibilityPeriods {
		v.checkPeriod(id, fmt.Sprintf("possiblePeriods[%d]", i), p)
	}
}
