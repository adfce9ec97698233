// Package catalog resolves how long a booking takes, either from an explicit minute
// count or from the services the client picked.
package catalog

import (
	"context"
	"fmt"
	"strings"

	"github.com/google/uuid"

	"github.com/md-rashed-zaman/salonslots/services/booking-service/internal/model"
)

// MaxDurationMinutes bounds a single booking to one civil day.
const MaxDurationMinutes = 24 * 60

// Spec is either a minute count or a list of service ids. ServiceIDs win when both are
// set.
type Spec struct {
	Minutes    int
	ServiceIDs []string
}

func (s Spec) UsesServices() bool {
	return len(s.ServiceIDs) > 0
}

// Validate rejects service ids that are not uuids before they reach storage, where
// they would fail as a driver error rather than as bad input.
func (s Spec) Validate() error {
	for _, id := range s.ServiceIDs {
		if id = strings.TrimSpace(id); id == "" {
			continue
		}
		if _, err := uuid.Parse(id); err != nil {
			return fmt.Errorf("%w: service id %q must be a uuid", model.ErrValidation, id)
		}
	}
	return nil
}

type ServiceReader interface {
	GetServices(ctx context.Context, ids []string) ([]model.Service, error)
}

type Resolution struct {
	Minutes int
	// ServiceID is the first bookable service, recorded on the appointment.
	ServiceID string
	// Missing lists requested ids that do not exist at all.
	Missing []string
	// Unbookable lists ids that exist but are inactive or archived.
	Unbookable []string
}

// Valid reports whether there is something to schedule.
func (r Resolution) Valid() bool {
	return r.Minutes > 0 && r.Minutes <= MaxDurationMinutes
}

// Resolve sums the durations of bookable services, or passes Minutes through. It only
// fails on storage errors; an unusable result is signalled by Valid() == false.
func Resolve(ctx context.Context, reader ServiceReader, spec Spec) (Resolution, error) {
	if !spec.UsesServices() {
		return Resolution{Minutes: spec.Minutes}, nil
	}

	ids := normalizeIDs(spec.ServiceIDs)
	services, err := reader.GetServices(ctx, ids)
	if err != nil {
		return Resolution{}, err
	}
	byID := make(map[string]model.Service, len(services))
	for _, s := range services {
		byID[s.ID] = s
	}

	var res Resolution
	for _, id := range ids {
		s, ok := byID[id]
		if !ok {
			res.Missing = append(res.Missing, id)
			continue
		}
		if !s.Bookable() {
			res.Unbookable = append(res.Unbookable, id)
			continue
		}
		if res.ServiceID == "" {
			res.ServiceID = s.ID
		}
		res.Minutes += s.DurationMins
	}
	return res, nil
}

// normalizeIDs trims and de-duplicates while keeping request order.
func normalizeIDs(in []string) []string {
	seen := make(map[string]struct{}, len(in))
	out := make([]string, 0, len(in))
	for _, id := range in {
		id = strings.TrimSpace(id)
		if id == "" {
			continue
		}
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}
		out = append(out, id)
	}
	return out
}
