package events

// Route describes where an event type is published.
type Route struct {
	Topic         string
	SchemaSubject string
}

// Topics carrying wellness events.
const (
	TopicMeals        = "meal_events"
	TopicWorkouts     = "workout_events"
	TopicBookings     = "booking_events"
	TopicWallet       = "wallet_events"
	TopicBody         = "body_events"
	TopicAchievements = "achievement_events"
)

var routes = map[string]Route{
	TypeMealLogged:                {Topic: TopicMeals},
	TypeWorkoutCompleted:          {Topic: TopicWorkouts},
	TypeBookingCreated:            {Topic: TopicBookings},
	TypeBookingStateChanged:       {Topic: TopicBookings},
	TypeWalletTransactionRecorded: {Topic: TopicWallet},
	TypeBodyStatsRecorded:         {Topic: TopicBody},
	TypeAchievementUnlocked:       {Topic: TopicAchievements},
}

// RouteFor returns the route of eventType. Subjects follow the topic-record naming
// strategy so several event types can share a topic.
func RouteFor(eventType string) (Route, bool) {
	r, ok := routes[eventType]
	if !ok {
		return Route{}, false
	}
	r.SchemaSubject = r.Topic + "-" + eventType
	return r, true
}

// Types lists every routed event type.
func Types() []string {
	return []string{
		TypeMealLogged,
		TypeWorkoutCompleted,
		TypeBookingCreated,
		TypeBookingStateChanged,
		TypeWalletTransactionRecorded,
		TypeBodyStatsRecorded,
		TypeAchievementUnlocked,
	}
}
