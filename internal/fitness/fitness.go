// Package fitness reads dashboard data from Fitbit and Strava. Every call goes
// through a token manager, which keeps the access token valid and retries
// once on a rejected token.
package fitness

import (
	"context"
	"fmt"
	"time"

	"fitdash/internal/model"
	"fitdash/internal/tokens"
)

// DateLayout is the yyyy-MM-dd format both providers use for calendar days.
const DateLayout = "2006-01-02"

// Caller performs an authenticated provider request for a user.
// *tokens.Manager satisfies it.
type Caller interface {
	CallAuthenticated(ctx context.Context, userID string, spec tokens.RequestSpec) (*tokens.Response, error)
}

// AccountCaller is a Caller that also knows the provider-side account id.
type AccountCaller interface {
	Caller
	ProviderUserID(ctx context.Context, userID string) (string, error)
}

func call(ctx context.Context, c Caller, p model.Provider, userID string, spec tokens.RequestSpec, out any) error {
	resp, err := c.CallAuthenticated(ctx, userID, spec)
	if err != nil {
		return err
	}
	if err := resp.Decode(out); err != nil {
		return &tokens.Error{Kind: tokens.ErrProviderRequest, Provider: p, Status: resp.StatusCode, Err: err}
	}
	return nil
}

func dayPath(format string, date time.Time) string {
	return fmt.Sprintf(format, date.Format(DateLayout))
}
