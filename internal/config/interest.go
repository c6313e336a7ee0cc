package config

import "os"

// FDInterestPeriodDays is the fixed period length used for the monthly run.
// Every month is treated as exactly 30 days for interest purposes regardless
// of the actual calendar length.
const FDInterestPeriodDays = 30

// DefaultInterestSchedule runs the accrual on the 1st of every month at 03:00.
const DefaultInterestSchedule = "0 3 1 * *"

type InterestConfig struct {
	// Schedule is a cron expression for the automatic monthly run.
	Schedule string
	// SystemActorID is the employee recorded against interest credit
	// transactions. When empty, the engine falls back to the first
	// Admin-role employee, then to any employee.
	SystemActorID string
}

func LoadInterestConfig() *InterestConfig {
	return &InterestConfig{
		Schedule:      getEnv("FD_INTEREST_SCHEDULE", DefaultInterestSchedule),
		SystemActorID: getEnv("FD_INTEREST_SYSTEM_ACTOR", ""),
	}
}

func getEnv(key, defaultVal string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}
	return defaultVal
}
