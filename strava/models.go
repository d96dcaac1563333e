package strava

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strconv"
	"time"
)

// Athlete is the subset of the athlete record used by the token liveness check.
type Athlete struct {
	ID        int64  `json:"id"`
	Username  string `json:"username"`
	FirstName string `json:"firstname"`
	LastName  string `json:"lastname"`
}

// Activity is a summary activity as returned by the activity listing.
// Raw keeps the complete remote payload.
type Activity struct {
	ID        int64
	GearID    string    // empty when no gear is assigned
	UpdatedAt time.Time // zero when the payload carries no updated_at
	Raw       json.RawMessage
}

type activityFields struct {
	ID        int64     `json:"id"`
	GearID    *string   `json:"gear_id"`
	UpdatedAt Timestamp `json:"updated_at"`
}

func (a *Activity) UnmarshalJSON(data []byte) error {
	var f activityFields
	if err := json.Unmarshal(data, &f); err != nil {
		return err
	}
	a.ID = f.ID
	a.GearID = ""
	if f.GearID != nil {
		a.GearID = *f.GearID
	}
	a.UpdatedAt = f.UpdatedAt.Time
	a.Raw = append(json.RawMessage(nil), data...)
	return nil
}

func (a Activity) MarshalJSON() ([]byte, error) {
	if len(a.Raw) > 0 {
		return a.Raw, nil
	}
	f := activityFields{ID: a.ID, UpdatedAt: Timestamp{a.UpdatedAt}}
	if a.GearID != "" {
		f.GearID = &a.GearID
	}
	return json.Marshal(f)
}

// Gear is a detailed gear record. Distance is in meters.
// FrameType is only present for bikes, which is how shoes are told apart.
type Gear struct {
	ID            string
	Name          string
	Distance      float64
	BrandName     string
	ModelName     string
	FrameType     *int
	Retired       bool
	ResourceState int
	Raw           json.RawMessage
}

type gearFields struct {
	ID            string  `json:"id"`
	Name          string  `json:"name"`
	Distance      float64 `json:"distance"`
	BrandName     string  `json:"brand_name,omitempty"`
	ModelName     string  `json:"model_name,omitempty"`
	FrameType     *int    `json:"frame_type,omitempty"`
	Retired       bool    `json:"retired"`
	ResourceState int     `json:"resource_state,omitempty"`
}

func (g *Gear) UnmarshalJSON(data []byte) error {
	var f gearFields
	if err := json.Unmarshal(data, &f); err != nil {
		return err
	}
	*g = Gear{
		ID:            f.ID,
		Name:          f.Name,
		Distance:      f.Distance,
		BrandName:     f.BrandName,
		ModelName:     f.ModelName,
		FrameType:     f.FrameType,
		Retired:       f.Retired,
		ResourceState: f.ResourceState,
		Raw:           append(json.RawMessage(nil), data...),
	}
	return nil
}

func (g Gear) MarshalJSON() ([]byte, error) {
	if len(g.Raw) > 0 {
		return g.Raw, nil
	}
	return json.Marshal(gearFields{
		ID:            g.ID,
		Name:          g.Name,
		Distance:      g.Distance,
		BrandName:     g.BrandName,
		ModelName:     g.ModelName,
		FrameType:     g.FrameType,
		Retired:       g.Retired,
		ResourceState: g.ResourceState,
	})
}

// IsBike reports whether the gear is non-shoe equipment.
func (g Gear) IsBike() bool {
	return g.FrameType != nil
}

// Timestamp decodes either an RFC3339 string or unix seconds.
type Timestamp struct {
	time.Time
}

func (t *Timestamp) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if len(data) == 0 || bytes.Equal(data, []byte("null")) {
		t.Time = time.Time{}
		return nil
	}
	if data[0] == '"' {
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		if s == "" {
			t.Time = time.Time{}
			return nil
		}
		parsed, err := time.Parse(time.RFC3339, s)
		if err != nil {
			return fmt.Errorf("invalid timestamp %q: %w", s, err)
		}
		t.Time = parsed.UTC()
		return nil
	}
	secs, err := strconv.ParseFloat(string(data), 64)
	if err != nil {
		return fmt.Errorf("invalid timestamp %s: %w", data, err)
	}
	whole := int64(secs)
	t.Time = time.Unix(whole, int64((secs-float64(whole))*1e9)).UTC()
	return nil
}

func (t Timestamp) MarshalJSON() ([]byte, error) {
	if t.IsZero() {
		return []byte("null"), nil
	}
	return json.Marshal(t.UTC().Format(time.RFC3339))
}
