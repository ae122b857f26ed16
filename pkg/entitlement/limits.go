package entitlement

// Unlimited indicates no limit for a resource (-1 chosen for SQL
// compatibility).
const Unlimited int64 = -1

// FreeLimits bounds what a non-premium user can do.
type FreeLimits struct {
	WorkoutsPerWeek    int64 `json:"workouts_per_week"`
	CustomPrograms     int64 `json:"custom_programs"`
	HistoryDays        int64 `json:"history_days"`
	ActiveGoals        int64 `json:"active_goals"`
	ProgressPhotosPerM int64 `json:"progress_photos_per_month"`
}

// UnlimitedLimits returns limits with every resource unbounded, handed to
// premium users and to installs running with billing disabled.
func UnlimitedLimits() FreeLimits {
	return FreeLimits{
		WorkoutsPerWeek:    Unlimited,
		CustomPrograms:     Unlimited,
		HistoryDays:        Unlimited,
		ActiveGoals:        Unlimited,
		ProgressPhotosPerM: Unlimited,
	}
}

// ConservativeFreeLimits is the hardcoded fallback applied when the stored
// configuration carries no free-tier limits.
func ConservativeFreeLimits() FreeLimits {
	return FreeLimits{
		WorkoutsPerWeek:    3,
		CustomPrograms:     1,
		HistoryDays:        30,
		ActiveGoals:        1,
		ProgressPhotosPerM: 4,
	}
}

// IsZero reports whether no limits were configured at all.
func (l FreeLimits) IsZero() bool {
	return l == FreeLimits{}
}
