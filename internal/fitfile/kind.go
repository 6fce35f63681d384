package fitfile

// RecordKind is the semantic category of a decoded FIT message.
type RecordKind uint8

const (
	KindOther RecordKind = iota
	KindWorkout
	KindSession
	KindActivity
	KindWorkoutSession
)

// workoutKinds is the fixed set of kinds that mark a file as a completed workout.
var workoutKinds = [...]bool{
	KindWorkout:        true,
	KindSession:        true,
	KindActivity:       true,
	KindWorkoutSession: true,
}

// IsWorkoutLike reports whether k belongs to the workout kind set.
func (k RecordKind) IsWorkoutLike() bool {
	return int(k) < len(workoutKinds) && workoutKinds[k]
}

func (k RecordKind) String() string {
	switch k {
	case KindWorkout:
		return "workout"
	case KindSession:
		return "session"
	case KindActivity:
		return "activity"
	case KindWorkoutSession:
		return "workout_session"
	default:
		return "other"
	}
}
