package model

import "time"

// DailyActivity is one day of Fitbit activity totals.
type DailyActivity struct {
	Date             string  `json:"date"`
	Steps            int     `json:"steps"`
	CaloriesOut      int     `json:"calories_out"`
	ActivityCalories int     `json:"activity_calories"`
	DistanceKm       float64 `json:"distance_km"`
	Floors           int     `json:"floors"`
	ActiveMinutes    int     `json:"active_minutes"`
	SedentaryMinutes int     `json:"sedentary_minutes"`
	RestingHeartRate int     `json:"resting_heart_rate,omitempty"`
	StepGoal         int     `json:"step_goal,omitempty"`
	CalorieGoal      int     `json:"calorie_goal,omitempty"`
}

// SleepSummary is one night of sleep as reported by Fitbit.
type SleepSummary struct {
	Date          string    `json:"date"`
	MinutesAsleep int       `json:"minutes_asleep"`
	MinutesInBed  int       `json:"minutes_in_bed"`
	Efficiency    int       `json:"efficiency,omitempty"`
	Start         time.Time `json:"start,omitempty"`
	End           time.Time `json:"end,omitempty"`
	Deep          int       `json:"deep_minutes,omitempty"`
	Light         int       `json:"light_minutes,omitempty"`
	REM           int       `json:"rem_minutes,omitempty"`
	Wake          int       `json:"wake_minutes,omitempty"`
}

// Athlete is the Strava profile of the connected user.
type Athlete struct {
	ID        int64  `json:"id"`
	Username  string `json:"username,omitempty"`
	FirstName string `json:"first_name"`
	LastName  string `json:"last_name"`
	City      string `json:"city,omitempty"`
	Country   string `json:"country,omitempty"`
}

// Activity is a single training session imported from a provider.
type Activity struct {
	ID             int64     `json:"id"`
	Provider       Provider  `json:"provider"`
	Name           string    `json:"name"`
	Type           string    `json:"type"`
	StartedAt      time.Time `json:"started_at"`
	MovingSeconds  int       `json:"moving_seconds"`
	ElapsedSeconds int       `json:"elapsed_seconds"`
	DistanceMeters float64   `json:"distance_meters"`
	ElevationGain  float64   `json:"elevation_gain"`
	AverageHR      float64   `json:"average_heartrate,omitempty"`
	Calories       float64   `json:"calories,omitempty"`
}

// Totals aggregates activities over a period.
type Totals struct {
	Count          int     `json:"count"`
	DistanceMeters float64 `json:"distance_meters"`
	MovingSeconds  int     `json:"moving_seconds"`
	ElevationGain  float64 `json:"elevation_gain"`
}

// AthleteStats holds Strava recent/year-to-date/all-time totals.
type AthleteStats struct {
	RecentRun  Totals `json:"recent_run"`
	RecentRide Totals `json:"recent_ride"`
	YTDRun     Totals `json:"ytd_run"`
	YTDRide    Totals `json:"ytd_ride"`
	AllRun     Totals `json:"all_run"`
	AllRide    Totals `json:"all_ride"`
}
