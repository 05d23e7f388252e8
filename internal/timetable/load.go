package timetable

import "strings"

// DefaultOverloadMinutesPerUnit converts one overload unit to teaching minutes.
const DefaultOverloadMinutesPerUnit = 60

// LoadProfile gathers the inputs that decide an instructor's load limits.
// Nil fields are unset in the source records.
type LoadProfile struct {
	EmploymentType          string
	NormalLoadHours         *float64
	RankNormalLoadHours     *float64
	DesignationReleaseHours *float64
	OverloadUnits           *int
	AttainmentOverloadUnits *int
}

// LoadPolicy holds fallbacks used when records leave limits unset.
type LoadPolicy struct {
	MinutesPerUnit       int
	DefaultNormalHours   map[string]float64
	DefaultOverloadUnits map[string]int
	FallbackNormalHours  float64
	FallbackOverloadUnit int
}

// DefaultLoadPolicy mirrors the registrar defaults for full and part time staff.
func DefaultLoadPolicy() LoadPolicy {
	return LoadPolicy{
		MinutesPerUnit: DefaultOverloadMinutesPerUnit,
		DefaultNormalHours: map[string]float64{
			"FULL_TIME": 18,
			"PART_TIME": 12,
		},
		DefaultOverloadUnits: map[string]int{
			"FULL_TIME": 6,
			"PART_TIME": 0,
		},
		FallbackNormalHours:  18,
		FallbackOverloadUnit: 0,
	}
}

// Resolve returns (normal-load minutes, overload-cap minutes) for the profile.
func (p LoadPolicy) Resolve(profile LoadProfile) (int, int) {
	perUnit := p.MinutesPerUnit
	if perUnit <= 0 {
		perUnit = DefaultOverloadMinutesPerUnit
	}
	employment := strings.ToUpper(strings.TrimSpace(profile.EmploymentType))

	var normalHours float64
	switch {
	case profile.NormalLoadHours != nil:
		normalHours = *profile.NormalLoadHours
	case profile.RankNormalLoadHours != nil:
		normalHours = *profile.RankNormalLoadHours
		if profile.DesignationReleaseHours != nil {
			normalHours -= *profile.DesignationReleaseHours
		}
	default:
		if hours, ok := p.DefaultNormalHours[employment]; ok {
			normalHours = hours
		} else {
			normalHours = p.FallbackNormalHours
		}
	}
	if normalHours < 0 {
		normalHours = 0
	}

	var units int
	switch {
	case profile.OverloadUnits != nil:
		units = *profile.OverloadUnits
	case profile.AttainmentOverloadUnits != nil:
		units = *profile.AttainmentOverloadUnits
	default:
		if u, ok := p.DefaultOverloadUnits[employment]; ok {
			units = u
		} else {
			units = p.FallbackOverloadUnit
		}
	}
	if units < 0 {
		units = 0
	}
	return int(normalHours * 60), units * perUnit
}

// ResolveLoad resolves a profile with the default policy.
func ResolveLoad(profile LoadProfile) (normalMinutes, capMinutes int) {
	return DefaultLoadPolicy().Resolve(profile)
}
