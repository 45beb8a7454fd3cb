package readiness_test

import (
	"math"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/eventloom/publish-governance/internal/models"
	"github.com/eventloom/publish-governance/internal/readiness"
)

func readyEvent() models.Event {
	start := time.Now().UTC().Add(48 * time.Hour)
	end := start.Add(4 * time.Hour)
	return models.Event{
		ID:          uuid.New(),
		WorkspaceID: uuid.New(),
		Name:        "Launch Night",
		Description: "Annual product launch",
		StartDate:   &start,
		EndDate:     &end,
		Visibility:  "public",
		Branding: models.BrandingConfig{
			SEO:           models.SEOConfig{MetaTitle: "Launch", MetaDescription: "Come see the launch"},
			Accessibility: models.AccessibilityConfig{Statement: "Step-free access"},
		},
		LandingPage: &models.LandingPageDoc{Blocks: []models.LandingBlock{{Type: "hero", Content: "Welcome"}}},
		Status:      models.EventStatusDraft,
	}
}

func defaultInput() readiness.Input {
	ev := readyEvent()
	return readiness.Input{
		Event:           ev,
		Config:          models.DefaultPublishConfig(ev.WorkspaceID),
		TicketTierCount: 2,
	}
}

func itemByID(t *testing.T, res models.ChecklistResult, id string) models.ChecklistItem {
	t.Helper()
	for _, it := range res.Items {
		if it.ID == id {
			return it
		}
	}
	t.Fatalf("checklist item %q not found", id)
	return models.ChecklistItem{}
}

func TestEvaluateAllReady(t *testing.T) {
	res := readiness.Evaluate(defaultInput())

	assert.True(t, res.CanPublish)
	assert.Equal(t, 100, res.CompletionPercentage)
	for _, it := range res.Items {
		assert.Equal(t, models.CheckPass, it.Status, "item %s", it.ID)
	}
}

func TestEvaluateMissingDatesFails(t *testing.T) {
	in := defaultInput()
	in.Event.StartDate = nil
	in.Event.EndDate = nil

	res := readiness.Evaluate(in)

	dates := itemByID(t, res, readiness.CheckDates)
	assert.Equal(t, models.CheckFail, dates.Status)
	assert.True(t, dates.Required)
	assert.False(t, res.CanPublish)
}

func TestEvaluateLandingPageRequiredVsOptional(t *testing.T) {
	in := defaultInput()
	in.Event.LandingPage = nil
	in.Config.Requirements.LandingPage = true

	res := readiness.Evaluate(in)
	assert.Equal(t, models.CheckFail, itemByID(t, res, readiness.CheckLandingPage).Status)
	assert.False(t, res.CanPublish)

	// Same input with the toggle off downgrades the failure to a warning.
	in.Config.Requirements.LandingPage = false
	res = readiness.Evaluate(in)
	assert.Equal(t, models.CheckWarning, itemByID(t, res, readiness.CheckLandingPage).Status)
	assert.True(t, res.CanPublish)
}

func TestEvaluatePastDateIsAdvisoryOnly(t *testing.T) {
	in := defaultInput()
	past := time.Now().UTC().Add(-24 * time.Hour)
	end := past.Add(2 * time.Hour)
	in.Event.StartDate = &past
	in.Event.EndDate = &end

	res := readiness.Evaluate(in)

	upcoming := itemByID(t, res, readiness.CheckDateUpcoming)
	assert.Equal(t, models.CheckWarning, upcoming.Status)
	assert.False(t, upcoming.Required)
	assert.True(t, res.CanPublish, "advisory check must not block publishing")
}

func TestEvaluateTicketing(t *testing.T) {
	in := defaultInput()
	in.TicketTierCount = 0

	res := readiness.Evaluate(in)
	assert.Equal(t, models.CheckFail, itemByID(t, res, readiness.CheckTicketing).Status)

	// External registration counts as configured without tiers.
	in.Event.Branding.Ticketing = models.TicketingConfig{Mode: "external", ExternalURL: "https://tickets.example.com"}
	res = readiness.Evaluate(in)
	assert.Equal(t, models.CheckPass, itemByID(t, res, readiness.CheckTicketing).Status)
}

func TestEvaluatePromoCodeCheckPresence(t *testing.T) {
	in := defaultInput()

	res := readiness.Evaluate(in)
	for _, it := range res.Items {
		require.NotEqual(t, readiness.CheckPromoCodes, it.ID, "promo-code check should be absent without promo codes")
	}

	in.PromoCodes = []models.PromoCode{{ID: uuid.New(), Code: "EARLY", Active: false}}
	res = readiness.Evaluate(in)
	promo := itemByID(t, res, readiness.CheckPromoCodes)
	assert.Equal(t, models.CheckWarning, promo.Status)
	assert.False(t, promo.Required)

	in.PromoCodes[0].Active = true
	res = readiness.Evaluate(in)
	assert.Equal(t, models.CheckPass, itemByID(t, res, readiness.CheckPromoCodes).Status)
}

func TestEvaluateOrderingIsStable(t *testing.T) {
	in := defaultInput()
	in.PromoCodes = []models.PromoCode{{ID: uuid.New(), Code: "VIP", Active: true}}

	res := readiness.Evaluate(in)

	var ids []string
	for _, it := range res.Items {
		ids = append(ids, it.ID)
	}
	assert.Equal(t, []string{
		readiness.CheckBasicInfo,
		readiness.CheckDates,
		readiness.CheckWorkspace,
		readiness.CheckVisibility,
		readiness.CheckDateUpcoming,
		readiness.CheckLandingPage,
		readiness.CheckTicketing,
		readiness.CheckSEO,
		readiness.CheckAccessibility,
		readiness.CheckPromoCodes,
	}, ids)
}

// Invariants that must hold for every computed result: a non-required item is
// never fail, canPublish tracks required failures exactly, and the completion
// percentage is the rounded pass ratio.
func TestEvaluateInvariants(t *testing.T) {
	inputs := []readiness.Input{defaultInput()}

	broken := defaultInput()
	broken.Event = models.Event{ID: uuid.New(), Status: models.EventStatusDraft}
	broken.TicketTierCount = 0
	inputs = append(inputs, broken)

	partial := defaultInput()
	partial.Event.Branding.SEO = models.SEOConfig{}
	partial.Event.Branding.Accessibility = models.AccessibilityConfig{}
	partial.Config.Requirements.SEO = true
	partial.PromoCodes = []models.PromoCode{{ID: uuid.New(), Code: "X", Active: false}}
	inputs = append(inputs, partial)

	for _, in := range inputs {
		res := readiness.Evaluate(in)

		requiredFail := false
		passed := 0
		for _, it := range res.Items {
			if it.Status == models.CheckFail {
				assert.True(t, it.Required, "item %s failed but is not required", it.ID)
			}
			if it.Required && it.Status == models.CheckFail {
				requiredFail = true
			}
			if it.Status == models.CheckPass {
				passed++
			}
		}
		assert.Equal(t, !requiredFail, res.CanPublish)

		want := int(math.Round(100 * float64(passed) / float64(len(res.Items))))
		assert.Equal(t, want, res.CompletionPercentage)
	}
}
