// Package readiness computes the publish checklist for an event. Evaluation is
// pure: it persists nothing and is safe to call speculatively for UI feedback.
package readiness

import (
	"math"
	"time"

	"github.com/google/uuid"

	"github.com/eventloom/publish-governance/internal/models"
)

// Checklist item identifiers, in display order.
const (
	CheckBasicInfo     = "basic-info"
	CheckDates         = "dates"
	CheckWorkspace     = "workspace"
	CheckVisibility    = "visibility"
	CheckDateUpcoming  = "date-upcoming"
	CheckLandingPage   = "landing-page"
	CheckTicketing     = "ticketing"
	CheckSEO           = "seo"
	CheckAccessibility = "accessibility"
	CheckPromoCodes    = "promo-codes"
)

// Input carries everything one evaluation reads. Now may be zero, in which
// case the current UTC time is used for the date-in-past advisory.
type Input struct {
	Event           models.Event
	Config          models.WorkspacePublishConfig
	TicketTierCount int
	PromoCodes      []models.PromoCode
	Now             time.Time
}

// Evaluate produces the ordered checklist for the given input.
//
// Per-item policy: a satisfied condition is pass; an unsatisfied required
// condition is fail; an unsatisfied optional condition is warning. The overall
// verdict blocks publishing only on required failures.
func Evaluate(in Input) models.ChecklistResult {
	now := in.Now
	if now.IsZero() {
		now = time.Now().UTC()
	}
	ev := in.Event
	req := in.Config.Requirements

	items := make([]models.ChecklistItem, 0, 10)

	// Basic checks, fixed order, first four always required.
	items = append(items,
		item(CheckBasicInfo, "Name and description are set", models.CategoryBasic, true,
			ev.Name != "" && ev.Description != ""),
		item(CheckDates, "Start and end dates are set", models.CategoryBasic, true,
			ev.StartDate != nil && ev.EndDate != nil),
		item(CheckWorkspace, "Event belongs to a root workspace", models.CategoryBasic, true,
			ev.WorkspaceID != uuid.Nil),
		item(CheckVisibility, "Visibility is configured", models.CategoryBasic, true,
			ev.Visibility != ""),
		// Advisory only: a past date never blocks publishing. A missing date is
		// already covered by the dates check, so it does not warn here too.
		item(CheckDateUpcoming, "Event date is not in the past", models.CategoryBasic, false,
			ev.StartDate == nil || !ev.StartDate.Before(now)),
	)

	// Event-space checks; required flags come from the workspace configuration.
	items = append(items,
		item(CheckLandingPage, "Landing page has content", models.CategoryEventSpace, req.LandingPage,
			ev.LandingPage != nil && len(ev.LandingPage.Blocks) > 0),
		item(CheckTicketing, "Ticketing or registration is configured", models.CategoryEventSpace, req.Ticketing,
			ticketingReady(ev.Branding.Ticketing, in.TicketTierCount)),
		item(CheckSEO, "SEO metadata is set", models.CategoryEventSpace, req.SEO,
			ev.Branding.SEO.MetaTitle != "" && ev.Branding.SEO.MetaDescription != ""),
		item(CheckAccessibility, "Accessibility statement is provided", models.CategoryEventSpace, req.Accessibility,
			ev.Branding.Accessibility.Statement != ""),
	)

	// Informational promo-code check, present only when promo codes exist.
	if len(in.PromoCodes) > 0 {
		items = append(items,
			item(CheckPromoCodes, "At least one promo code is active", models.CategoryEventSpace, false,
				anyActive(in.PromoCodes)))
	}

	return models.ChecklistResult{
		Items:                items,
		CanPublish:           canPublish(items),
		CompletionPercentage: completion(items),
	}
}

func item(id, label string, cat models.ChecklistCategory, required, ok bool) models.ChecklistItem {
	status := models.CheckPass
	if !ok {
		if required {
			status = models.CheckFail
		} else {
			status = models.CheckWarning
		}
	}
	return models.ChecklistItem{
		ID:       id,
		Label:    label,
		Category: cat,
		Required: required,
		Status:   status,
	}
}

func ticketingReady(cfg models.TicketingConfig, tierCount int) bool {
	if cfg.Mode == "external" {
		return cfg.ExternalURL != ""
	}
	return tierCount > 0
}

func anyActive(codes []models.PromoCode) bool {
	for _, c := range codes {
		if c.Active {
			return true
		}
	}
	return false
}

func canPublish(items []models.ChecklistItem) bool {
	for _, it := range items {
		if it.Required && it.Status == models.CheckFail {
			return false
		}
	}
	return true
}

func completion(items []models.ChecklistItem) int {
	if len(items) == 0 {
		return 0
	}
	passed := 0
	for _, it := range items {
		if it.Status == models.CheckPass {
			passed++
		}
	}
	return int(math.Round(100 * float64(passed) / float64(len(items))))
}
