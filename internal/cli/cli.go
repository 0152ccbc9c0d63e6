package cli

import (
	"context"
	"fmt"
	"io"
	"time"

	"fittrainer/pro/internal/app"
	"fittrainer/pro/internal/domain"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// Context is handed to every command's Run method.
type Context struct {
	Ctx context.Context
	App *app.App
	Out io.Writer
	// Now is the wall clock used when --as-of is omitted.
	Now func() time.Time
}

// asOf parses an optional YYYY-MM-DD flag, defaulting to today in the server's default timezone.
func (c *Context) asOf(flag string) (time.Time, error) {
	if flag == "" || flag == "today" {
		now := time.Now
		if c.Now != nil {
			now = c.Now
		}
		return domain.Today(now(), c.App.Location), nil
	}
	d, err := domain.ParseDate(flag)
	if err != nil {
		return time.Time{}, fmt.Errorf("invalid --as-of, use YYYY-MM-DD or 'today': %w", err)
	}
	return d, nil
}

// clientAsOf is asOf with 'today' taken from the client's own calendar.
func (c *Context) clientAsOf(flag string, clientID primitive.ObjectID) (time.Time, error) {
	if flag != "" && flag != "today" {
		return c.asOf(flag)
	}
	user, err := c.App.Repos.Users.GetByID(c.Ctx, clientID)
	if err != nil {
		return time.Time{}, fmt.Errorf("load client: %w", err)
	}
	loc, err := domain.LoadLocation(user.Timezone, c.App.Location)
	if err != nil {
		return time.Time{}, err
	}
	now := time.Now
	if c.Now != nil {
		now = c.Now
	}
	return domain.Today(now(), loc), nil
}

func parseID(name, hex string) (primitive.ObjectID, error) {
	id, err := primitive.ObjectIDFromHex(hex)
	if err != nil {
		return primitive.NilObjectID, fmt.Errorf("invalid %s %q: %w", name, hex, err)
	}
	return id, nil
}

func formatDate(t *time.Time) string {
	if t == nil {
		return "-"
	}
	return t.Format(domain.DateLayout)
}
