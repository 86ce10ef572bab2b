package services

import (
	"context"
	"fmt"
	"log"
	"sync"
	"time"

	"pibot/internal/models"
)

// Deny reasons returned by TryConsume
const (
	DenyNoPlan       = "no_plan"
	DenyLimitReached = "limit_reached"
)

// ConsumeResult is the outcome of a quota check. Denials are decisions, not
// errors; the dispatcher turns them into guiding prompts.
type ConsumeResult struct {
	Allowed   bool
	Reason    string // set when Allowed is false
	Remaining int    // free-plan only; consumptions left today after this one
}

// UsageGate enforces the per-user daily usage quota. Check-and-increment is
// atomic per user: a striped per-user mutex is held across the whole
// TryConsume so two near-simultaneous events from one user can never both
// pass at the last remaining consumption. Cross-user calls do not contend.
type UsageGate struct {
	store      PlanStore
	dailyLimit int

	locks sync.Map // userID -> *sync.Mutex

	// now is injectable for date-boundary tests
	now func() time.Time
	loc *time.Location
}

// NewUsageGate creates a usage gate over the given plan store. The day
// boundary follows Asia/Bangkok, matching the bot's audience; UTC is the
// fallback when tzdata is unavailable.
func NewUsageGate(store PlanStore, dailyLimit int) *UsageGate {
	loc, err := time.LoadLocation("Asia/Bangkok")
	if err != nil {
		log.Printf("⚠️  [GATE] Asia/Bangkok tz unavailable, using UTC: %v", err)
		loc = time.UTC
	}
	return &UsageGate{
		store:      store,
		dailyLimit: dailyLimit,
		now:        time.Now,
		loc:        loc,
	}
}

// SetClock overrides the gate's time source (tests only)
func (g *UsageGate) SetClock(now func() time.Time) {
	g.now = now
}

func (g *UsageGate) today() string {
	return g.now().In(g.loc).Format("2006-01-02")
}

func (g *UsageGate) userLock(userID string) *sync.Mutex {
	actual, _ := g.locks.LoadOrStore(userID, &sync.Mutex{})
	return actual.(*sync.Mutex)
}

// Ensure idempotently creates an unset plan record for the user
func (g *UsageGate) Ensure(ctx context.Context, userID string) error {
	mu := g.userLock(userID)
	mu.Lock()
	defer mu.Unlock()

	rec, err := g.store.Get(ctx, userID)
	if err != nil {
		return err
	}
	if rec != nil {
		return nil
	}

	return g.store.Put(ctx, userID, &models.PlanRecord{
		Plan:       models.PlanUnset,
		UsageDate:  g.today(),
		UsageCount: 0,
		UpdatedAt:  g.now(),
	})
}

// SetPlan selects a plan for the user. Switching plans always grants a fresh
// quota window: the usage date snaps to today and the counter resets.
func (g *UsageGate) SetPlan(ctx context.Context, userID, plan string) error {
	if !models.ValidPlan(plan) {
		return fmt.Errorf("invalid plan %q", plan)
	}

	mu := g.userLock(userID)
	mu.Lock()
	defer mu.Unlock()

	rec := &models.PlanRecord{
		Plan:       plan,
		UsageDate:  g.today(),
		UsageCount: 0,
		UpdatedAt:  g.now(),
	}
	if err := g.store.Put(ctx, userID, rec); err != nil {
		return err
	}

	log.Printf("✅ [GATE] User %s selected plan %q", userID, plan)
	return nil
}

// Plan returns the user's current plan, or PlanUnset when no record exists
func (g *UsageGate) Plan(ctx context.Context, userID string) (string, error) {
	rec, err := g.store.Get(ctx, userID)
	if err != nil {
		return models.PlanUnset, err
	}
	if rec == nil {
		return models.PlanUnset, nil
	}
	return rec.Plan, nil
}

// TryConsume checks and consumes one unit of today's quota.
//   - no record / unset plan: denied with DenyNoPlan
//   - premium: allowed, counter untouched
//   - free: the usage date is reconciled first (a stale date resets the
//     counter), then the counter is checked against the daily limit and
//     incremented on success
//
// Store read errors deny with DenyNoPlan rather than failing open: consuming
// quota we cannot account for would break the at-most-limit invariant.
func (g *UsageGate) TryConsume(ctx context.Context, userID string) (ConsumeResult, error) {
	mu := g.userLock(userID)
	mu.Lock()
	defer mu.Unlock()

	rec, err := g.store.Get(ctx, userID)
	if err != nil {
		return ConsumeResult{Allowed: false, Reason: DenyNoPlan}, err
	}
	if !rec.HasPlan() {
		return ConsumeResult{Allowed: false, Reason: DenyNoPlan}, nil
	}

	if rec.IsPremium() {
		return ConsumeResult{Allowed: true}, nil
	}

	today := g.today()
	if rec.UsageDate != today {
		rec.UsageDate = today
		rec.UsageCount = 0
	}

	if rec.UsageCount >= g.dailyLimit {
		log.Printf("🚫 [GATE] User %s hit daily limit (%d/%d)", userID, rec.UsageCount, g.dailyLimit)
		return ConsumeResult{Allowed: false, Reason: DenyLimitReached}, nil
	}

	rec.UsageCount++
	rec.UpdatedAt = g.now()
	if err := g.store.Put(ctx, userID, rec); err != nil {
		return ConsumeResult{Allowed: false, Reason: DenyNoPlan}, err
	}

	return ConsumeResult{Allowed: true, Remaining: g.dailyLimit - rec.UsageCount}, nil
}
