package fitness

import (
	"context"
	"time"

	"fitdash/internal/model"
	"fitdash/internal/tokens"
)

type FitbitClient struct {
	caller Caller
}

func NewFitbitClient(c Caller) *FitbitClient {
	return &FitbitClient{caller: c}
}

type fitbitActivityResponse struct {
	Goals struct {
		CaloriesOut int `json:"caloriesOut"`
		Steps       int `json:"steps"`
	} `json:"goals"`
	Summary struct {
		ActivityCalories int `json:"activityCalories"`
		CaloriesOut      int `json:"caloriesOut"`
		Distances        []struct {
			Activity string  `json:"activity"`
			Distance float64 `json:"distance"`
		} `json:"distances"`
		Floors              int `json:"floors"`
		FairlyActiveMinutes int `json:"fairlyActiveMinutes"`
		VeryActiveMinutes   int `json:"veryActiveMinutes"`
		SedentaryMinutes    int `json:"sedentaryMinutes"`
		Steps               int `json:"steps"`
		RestingHeartRate    int `json:"restingHeartRate"`
	} `json:"summary"`
}

// DailyActivity returns the activity summary for the given calendar day.
func (c *FitbitClient) DailyActivity(ctx context.Context, userID string, date time.Time) (*model.DailyActivity, error) {
	var raw fitbitActivityResponse
	spec := tokens.RequestSpec{Path: dayPath("/1/user/-/activities/date/%s.json", date)}
	if err := call(ctx, c.caller, model.ProviderFitbit, userID, spec, &raw); err != nil {
		return nil, err
	}

	s := raw.Summary
	out := &model.DailyActivity{
		Date:             date.Format(DateLayout),
		Steps:            s.Steps,
		CaloriesOut:      s.CaloriesOut,
		ActivityCalories: s.ActivityCalories,
		Floors:           s.Floors,
		ActiveMinutes:    s.FairlyActiveMinutes + s.VeryActiveMinutes,
		SedentaryMinutes: s.SedentaryMinutes,
		RestingHeartRate: s.RestingHeartRate,
		StepGoal:         raw.Goals.Steps,
		CalorieGoal:      raw.Goals.CaloriesOut,
	}
	for _, d := range s.Distances {
		if d.Activity == "total" {
			out.DistanceKm = d.Distance
			break
		}
	}
	return out, nil
}

type fitbitStage struct {
	Minutes int `json:"minutes"`
}

type fitbitSleepResponse struct {
	Sleep []struct {
		DateOfSleep string `json:"dateOfSleep"`
		Efficiency  int    `json:"efficiency"`
		StartTime   string `json:"startTime"`
		EndTime     string `json:"endTime"`
		IsMainSleep bool   `json:"isMainSleep"`
	} `json:"sleep"`
	Summary struct {
		TotalMinutesAsleep int `json:"totalMinutesAsleep"`
		TotalTimeInBed     int `json:"totalTimeInBed"`
		Stages             *struct {
			Deep  int `json:"deep"`
			Light int `json:"light"`
			REM   int `json:"rem"`
			Wake  int `json:"wake"`
		} `json:"stages"`
	} `json:"summary"`
}

// fitbitTimeLayout is Fitbit's zone-less local timestamp.
const fitbitTimeLayout = "2006-01-02T15:04:05.000"

// Sleep returns the sleep totals for the night ending on date. Start, end and
// efficiency come from the main sleep when Fitbit marks one.
func (c *FitbitClient) Sleep(ctx context.Context, userID string, date time.Time) (*model.SleepSummary, error) {
	var raw fitbitSleepResponse
	spec := tokens.RequestSpec{Path: dayPath("/1.2/user/-/sleep/date/%s.json", date)}
	if err := call(ctx, c.caller, model.ProviderFitbit, userID, spec, &raw); err != nil {
		return nil, err
	}

	out := &model.SleepSummary{
		Date:          date.Format(DateLayout),
		MinutesAsleep: raw.Summary.TotalMinutesAsleep,
		MinutesInBed:  raw.Summary.TotalTimeInBed,
	}
	if st := raw.Summary.Stages; st != nil {
		out.Deep, out.Light, out.REM, out.Wake = st.Deep, st.Light, st.REM, st.Wake
	}

	for _, s := range raw.Sleep {
		if !s.IsMainSleep {
			continue
		}
		out.Efficiency = s.Efficiency
		out.Start, _ = time.Parse(fitbitTimeLayout, s.StartTime)
		out.End, _ = time.Parse(fitbitTimeLayout, s.EndTime)
		break
	}
	return out, nil
}
