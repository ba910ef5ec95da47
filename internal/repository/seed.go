package repository

import "github.com/rakapradipta/blood-donor-registration/internal/model"

// DefaultEvents returns the donation slots for the current KCI campaign.
// IDs are stable slugs so repeated seeding is idempotent.
func DefaultEvents() []model.Event {
	return []model.Event{
		{ID: "stasiun-juanda-2026-03-30", Location: "Stasiun Juanda", Date: "2026-03-30", MaxQuota: 5},
		{ID: "gto-stasiun-depok-2026-03-30", Location: "GTO Stasiun Depok", Date: "2026-03-30", MaxQuota: 5},
		{ID: "stasiun-juanda-2026-03-31", Location: "Stasiun Juanda", Date: "2026-03-31", MaxQuota: 5},
		{ID: "stasiun-bni-city-2026-03-31", Location: "Stasiun BNI City", Date: "2026-03-31", MaxQuota: 5},
	}
}
