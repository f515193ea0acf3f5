package fitness

import (
	"context"
	"net/url"
	"strconv"
	"time"

	"fitdash/internal/model"
	"fitdash/internal/tokens"
)

const (
	DefaultPerPage = 30
	MaxPerPage     = 200
)

type StravaClient struct {
	caller AccountCaller
}

func NewStravaClient(c AccountCaller) *StravaClient {
	return &StravaClient{caller: c}
}

type stravaAthlete struct {
	ID        int64  `json:"id"`
	Username  string `json:"username"`
	FirstName string `json:"firstname"`
	LastName  string `json:"lastname"`
	City      string `json:"city"`
	Country   string `json:"country"`
}

func (c *StravaClient) Athlete(ctx context.Context, userID string) (*model.Athlete, error) {
	var raw stravaAthlete
	if err := call(ctx, c.caller, model.ProviderStrava, userID, tokens.RequestSpec{Path: "/athlete"}, &raw); err != nil {
		return nil, err
	}
	return &model.Athlete{
		ID:        raw.ID,
		Username:  raw.Username,
		FirstName: raw.FirstName,
		LastName:  raw.LastName,
		City:      raw.City,
		Country:   raw.Country,
	}, nil
}

// ActivityQuery pages through the athlete's activities. Zero values are
// omitted; PerPage is clamped to what Strava accepts.
type ActivityQuery struct {
	Page    int
	PerPage int
	After   time.Time
	Before  time.Time
}

func (q ActivityQuery) values() url.Values {
	v := url.Values{}
	page := q.Page
	if page < 1 {
		page = 1
	}
	perPage := q.PerPage
	switch {
	case perPage < 1:
		perPage = DefaultPerPage
	case perPage > MaxPerPage:
		perPage = MaxPerPage
	}
	v.Set("page", strconv.Itoa(page))
	v.Set("per_page", strconv.Itoa(perPage))
	if !q.After.IsZero() {
		v.Set("after", strconv.FormatInt(q.After.Unix(), 10))
	}
	if !q.Before.IsZero() {
		v.Set("before", strconv.FormatInt(q.Before.Unix(), 10))
	}
	return v
}

type stravaActivity struct {
	ID                 int64     `json:"id"`
	Name               string    `json:"name"`
	Type               string    `json:"type"`
	SportType          string    `json:"sport_type"`
	StartDate          time.Time `json:"start_date"`
	MovingTime         int       `json:"moving_time"`
	ElapsedTime        int       `json:"elapsed_time"`
	Distance           float64   `json:"distance"`
	TotalElevationGain float64   `json:"total_elevation_gain"`
	AverageHeartrate   float64   `json:"average_heartrate"`
	Calories           float64   `json:"calories"`
}

// Activities lists the athlete's activities, newest first.
func (c *StravaClient) Activities(ctx context.Context, userID string, q ActivityQuery) ([]model.Activity, error) {
	var raw []stravaActivity
	spec := tokens.RequestSpec{Path: "/athlete/activities", Query: q.values()}
	if err := call(ctx, c.caller, model.ProviderStrava, userID, spec, &raw); err != nil {
		return nil, err
	}

	out := make([]model.Activity, 0, len(raw))
	for _, a := range raw {
		kind := a.SportType
		if kind == "" {
			kind = a.Type
		}
		out = append(out, model.Activity{
			ID:             a.ID,
			Provider:       model.ProviderStrava,
			Name:           a.Name,
			Type:           kind,
			StartedAt:      a.StartDate,
			MovingSeconds:  a.MovingTime,
			ElapsedSeconds: a.ElapsedTime,
			DistanceMeters: a.Distance,
			ElevationGain:  a.TotalElevationGain,
			AverageHR:      a.AverageHeartrate,
			Calories:       a.Calories,
		})
	}
	return out, nil
}

type stravaTotals struct {
	Count         int     `json:"count"`
	Distance      float64 `json:"distance"`
	MovingTime    int     `json:"moving_time"`
	ElevationGain float64 `json:"elevation_gain"`
}

func (t stravaTotals) totals() model.Totals {
	return model.Totals{
		Count:          t.Count,
		DistanceMeters: t.Distance,
		MovingSeconds:  t.MovingTime,
		ElevationGain:  t.ElevationGain,
	}
}

type stravaStats struct {
	RecentRun  stravaTotals `json:"recent_run_totals"`
	RecentRide stravaTotals `json:"recent_ride_totals"`
	YTDRun     stravaTotals `json:"ytd_run_totals"`
	YTDRide    stravaTotals `json:"ytd_ride_totals"`
	AllRun     stravaTotals `json:"all_run_totals"`
	AllRide    stravaTotals `json:"all_ride_totals"`
}

// Stats returns recent, year-to-date and all-time totals. The athlete id
// stored at connect time is used; older records without one look it up.
func (c *StravaClient) Stats(ctx context.Context, userID string) (*model.AthleteStats, error) {
	athleteID, err := c.caller.ProviderUserID(ctx, userID)
	if err != nil {
		return nil, err
	}
	if athleteID == "" {
		a, err := c.Athlete(ctx, userID)
		if err != nil {
			return nil, err
		}
		athleteID = strconv.FormatInt(a.ID, 10)
	}

	var raw stravaStats
	spec := tokens.RequestSpec{Path: "/athletes/" + url.PathEscape(athleteID) + "/stats"}
	if err := call(ctx, c.caller, model.ProviderStrava, userID, spec, &raw); err != nil {
		return nil, err
	}
	return &model.AthleteStats{
		RecentRun:  raw.RecentRun.totals(),
		RecentRide: raw.RecentRide.totals(),
		YTDRun:     raw.YTDRun.totals(),
		YTDRide:    raw.YTDRide.totals(),
		AllRun:     raw.AllRun.totals(),
		AllRide:    raw.AllRide.totals(),
	}, nil
}
