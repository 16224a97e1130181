package outbox

import "example.com/wellness/pkg/events"

var schemaCatalog = map[string]string{
	events.TypeMealLogged:                mealLoggedSchema,
	events.TypeWorkoutCompleted:          workoutCompletedSchema,
	events.TypeBookingCreated:            bookingCreatedSchema,
	events.TypeBookingStateChanged:       bookingStateChangedSchema,
	events.TypeWalletTransactionRecorded: walletTransactionRecordedSchema,
	events.TypeBodyStatsRecorded:         bodyStatsRecordedSchema,
	events.TypeAchievementUnlocked:       achievementUnlockedSchema,
}

const mealLoggedSchema = `{
  "type": "object",
  "title": "MealLogged",
  "properties": {
    "meal_id": {"type": "string"},
    "user_id": {"type": "string"},
    "meal_type": {"type": "string", "enum": ["breakfast", "lunch", "dinner", "snack"]},
    "calories": {"type": "number", "minimum": 0},
    "protein_g": {"type": "number", "minimum": 0},
    "carbs_g": {"type": "number", "minimum": 0},
    "fat_g": {"type": "number", "minimum": 0},
    "source": {"type": "string", "enum": ["manual", "ai", "fallback"]},
    "eaten_at": {"type": "string", "format": "date-time"}
  },
  "required": ["meal_id", "user_id", "meal_type", "calories", "protein_g", "carbs_g", "fat_g", "source", "eaten_at"],
  "additionalProperties": false
}`

const workoutCompletedSchema = `{
  "type": "object",
  "title": "WorkoutCompleted",
  "properties": {
    "workout_id": {"type": "string"},
    "user_id": {"type": "string"},
    "name": {"type": "string"},
    "sets_completed": {"type": "integer", "minimum": 0},
    "duration_min": {"type": "integer", "minimum": 0},
    "calories_burned": {"type": "number", "minimum": 0},
    "completed_at": {"type": "string", "format": "date-time"}
  },
  "required": ["workout_id", "user_id", "name", "sets_completed", "duration_min", "calories_burned", "completed_at"],
  "additionalProperties": false
}`

const bookingCreatedSchema = `{
  "type": "object",
  "title": "BookingCreated",
  "properties": {
    "booking_id": {"type": "string"},
    "user_id": {"type": "string"},
    "trainer_id": {"type": "string"},
    "gym_id": {"type": "string"},
    "starts_at": {"type": "string", "format": "date-time"},
    "duration_min": {"type": "integer"},
    "price": {"type": "string"}
  },
  "required": ["booking_id", "user_id", "trainer_id", "gym_id", "starts_at", "duration_min", "price"],
  "additionalProperties": false
}`

const bookingStateChangedSchema = `{
  "type": "object",
  "title": "BookingStateChanged",
  "properties": {
    "booking_id": {"type": "string"},
    "user_id": {"type": "string"},
    "trainer_id": {"type": "string"},
    "state": {"type": "string", "enum": ["cancelled", "completed"]},
    "occurred_at": {"type": "string", "format": "date-time"},
    "reason": {"type": "string"}
  },
  "required": ["booking_id", "user_id", "trainer_id", "state", "occurred_at"],
  "additionalProperties": false
}`

const walletTransactionRecordedSchema = `{
  "type": "object",
  "title": "WalletTransactionRecorded",
  "properties": {
    "transaction_id": {"type": "string"},
    "user_id": {"type": "string"},
    "kind": {"type": "string", "enum": ["topup", "payment", "refund"]},
    "amount": {"type": "string"},
    "balance_after": {"type": "string"},
    "reference": {"type": "string"},
    "occurred_at": {"type": "string", "format": "date-time"}
  },
  "required": ["transaction_id", "user_id", "kind", "amount", "balance_after", "occurred_at"],
  "additionalProperties": false
}`

const bodyStatsRecordedSchema = `{
  "type": "object",
  "title": "BodyStatsRecorded",
  "properties": {
    "stats_id": {"type": "string"},
    "user_id": {"type": "string"},
    "weight_kg": {"type": "number", "exclusiveMinimum": 0},
    "height_cm": {"type": "number", "exclusiveMinimum": 0},
    "bmi": {"type": "number"},
    "recorded_at": {"type": "string", "format": "date-time"}
  },
  "required": ["stats_id", "user_id", "weight_kg", "height_cm", "bmi", "recorded_at"],
  "additionalProperties": false
}`

const achievementUnlockedSchema = `{
  "type": "object",
  "title": "AchievementUnlocked",
  "properties": {
    "user_id": {"type": "string"},
    "code": {"type": "string"},
    "title": {"type": "string"},
    "unlocked_at": {"type": "string", "format": "date-time"}
  },
  "required": ["user_id", "code", "title", "unlocked_at"],
  "additionalProperties": false
}`
