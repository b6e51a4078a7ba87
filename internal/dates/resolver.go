package dates

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/gridhq/tablecache/pkg/logger"
)

const dateLayout = "2006-01-02"

var (
	bareDateRe    = regexp.MustCompile(`^\d{4}-\d{2}-\d{2}$`)
	fixedOffsetRe = regexp.MustCompile(`^[+-]\d{4}$`)
)

// Descriptor is the structured form a filter value may take for date
// comparisons: a fixed override, a literal date, or a dynamic mode keyword.
type Descriptor struct {
	DateModeValue string `json:"date_mode_value,omitempty"`
	Date          string `json:"date,omitempty"`
	DateMode      string `json:"date_mode,omitempty"`
}

// Resolver turns relative date keywords into calendar dates and converts
// date-only values to UTC instants in a configured timezone.
type Resolver struct {
	loc *time.Location
	now func() time.Time
}

// Option customises a Resolver.
type Option func(*Resolver)

// WithNow overrides the clock, primarily for testing.
func WithNow(now func() time.Time) Option {
	return func(r *Resolver) {
		if now != nil {
			r.now = now
		}
	}
}

// NewResolver builds a Resolver for the configured timezone setting.
// Recognised settings: empty (host zone), "utc"/":utc", a fixed offset
// such as "+0530", or an IANA zone name. Unparseable settings fall back
// to the host zone.
func NewResolver(timezone string, opts ...Option) *Resolver {
	r := &Resolver{
		loc: resolveLocation(timezone),
		now: time.Now,
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

func resolveLocation(setting string) *time.Location {
	setting = strings.TrimSpace(setting)
	switch {
	case setting == "":
		return time.Local
	case strings.EqualFold(setting, "utc"), strings.EqualFold(setting, ":utc"):
		return time.UTC
	case fixedOffsetRe.MatchString(setting):
		sign := 1
		if setting[0] == '-' {
			sign = -1
		}
		hours, _ := strconv.Atoi(setting[1:3])
		minutes, _ := strconv.Atoi(setting[3:5])
		return time.FixedZone(setting, sign*(hours*3600+minutes*60))
	default:
		loc, err := time.LoadLocation(setting)
		if err != nil {
			logger.WithModule("dates").Warn("unparseable timezone setting, using host zone",
				zap.String("timezone", setting), zap.Error(err))
			return time.Local
		}
		return loc
	}
}

// Location exposes the effective timezone.
func (r *Resolver) Location() *time.Location {
	return r.loc
}

// Resolve maps a relative date keyword to a calendar date string.
// Matching is case-insensitive; unknown keywords pass through unchanged
// and an empty keyword resolves to empty.
func (r *Resolver) Resolve(keyword string) string {
	if keyword == "" {
		return ""
	}

	today := r.now().In(r.loc)
	var d time.Time
	switch strings.ToLower(keyword) {
	case "today":
		d = today
	case "yesterday":
		d = today.AddDate(0, 0, -1)
	case "tomorrow":
		d = today.AddDate(0, 0, 1)
	case "one_week_ago":
		d = today.AddDate(0, 0, -7)
	case "one_week_from_now":
		d = today.AddDate(0, 0, 7)
	case "one_month_ago":
		d = today.AddDate(0, -1, 0)
	case "one_month_from_now":
		d = today.AddDate(0, 1, 0)
	case "start_of_week":
		// Week starts on Sunday.
		d = today.AddDate(0, 0, -int(today.Weekday()))
	case "end_of_week":
		d = today.AddDate(0, 0, 6-int(today.Weekday()))
	case "start_of_month":
		d = time.Date(today.Year(), today.Month(), 1, 0, 0, 0, 0, r.loc)
	case "end_of_month":
		d = time.Date(today.Year(), today.Month(), 1, 0, 0, 0, 0, r.loc).AddDate(0, 1, -1)
	default:
		return keyword
	}
	return d.Format(dateLayout)
}

// ExtractDateValue reduces a raw value plus optional descriptor to one
// date string. A fixed override always wins over the dynamic mode.
func (r *Resolver) ExtractDateValue(raw string, desc *Descriptor) string {
	if desc == nil {
		return raw
	}
	switch {
	case desc.DateModeValue != "":
		return desc.DateModeValue
	case desc.Date != "":
		return desc.Date
	default:
		return r.Resolve(desc.DateMode)
	}
}

// ConvertToUTCForFilter interprets a bare calendar date as local midnight
// in the configured zone and returns the equivalent UTC instant. The
// offset is computed for that specific date so DST transitions resolve
// correctly. Values already carrying a time component are returned
// unchanged.
func (r *Resolver) ConvertToUTCForFilter(value string) string {
	if !IsBareDate(value) {
		return value
	}
	t, err := time.ParseInLocation(dateLayout, value, r.loc)
	if err != nil {
		return value
	}
	return t.UTC().Format(time.RFC3339)
}

// IsBareDate reports whether the value is a date without a time component.
func IsBareDate(value string) bool {
	return bareDateRe.MatchString(value)
}

// DayRange expands a bare date into the inclusive UTC bounds of that
// calendar day. The mirrored store persists date-only cells at UTC
// midnight, so an equality match must span the whole UTC day. ok is
// false when the value is not a bare date, signalling that literal
// equality should be used instead.
func DayRange(value string) (min, max string, ok bool) {
	if !IsBareDate(value) {
		return "", "", false
	}
	return fmt.Sprintf("%sT00:00:00Z", value), fmt.Sprintf("%sT23:59:59Z", value), true
}
