package constants

// Context keys
const (
	ContextTokenData = "token_data"
)

// Roles carried in the auth token
const (
	RoleOwner = "owner"
	RoleStaff = "staff"
	RoleTutor = "tutor"
)

// Database defaults
const (
	DatabaseMaxOpenConns    = 25
	DatabaseMaxIdleConns    = 5
	DatabaseConnMaxLifetime = 30 // minutes
	DatabaseSSLMode         = "disable"
)

// Scheduling limits
const (
	// MaxSeriesOccurrences caps how many occurrences a single recurrence
	// definition may expand into.
	MaxSeriesOccurrences = 366

	MinSessionDurationMinutes = 15
	MaxSessionDurationMinutes = 480
)

// Redis key prefixes
const (
	RedisKeyConflictList = "tutorbase:conflicts:"
)

// Asynq task types
const (
	TaskTypeSessionReminder = "reminder:session"
)
