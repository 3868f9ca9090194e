package auth

// Known OAuth scopes used by the workout sync service.
const (
	ScopeWorkoutsWrite = "workouts:write"
	ScopeWorkoutsRead  = "workouts:read"
)
