package service

import (
	"fmt"
	"time"

	"github.com/isectech/ops-simulator/config"
	"github.com/isectech/ops-simulator/domain/entity"
)

// TimelineBuilder derives the ordered lifecycle event sequence for a case. Each
// stage duration is an independent log-normal draw and each stage's start is
// the previous stage's derived timestamp, giving a dependent chain with
// branching for cancellation, escalation, customer wait, and reopening.
type TimelineBuilder struct {
	cfg config.StageTimesConfig
	tz  string
}

// NewTimelineBuilder creates a builder for the given stage-duration parameters.
// The tz label is stamped on every emitted event.
func NewTimelineBuilder(cfg config.StageTimesConfig, tz string) *TimelineBuilder {
	return &TimelineBuilder{cfg: cfg, tz: tz}
}

// BuildCaseEvents produces the full event sequence for one case. For a
// non-cancelled case the mandatory stage timestamps are monotonically
// non-decreasing in workflow order, and every event's ingestion timestamp is
// offset forward from its event timestamp by a stage-specific logging jitter.
// A cancelled case terminates at CANCELLED with no further stages.
func (b *TimelineBuilder) BuildCaseEvents(rng *Stream, c entity.CaseRecord) []entity.EventRecord {
	events := make([]entity.EventRecord, 0, 8)

	intakeTS := c.IntakeTS
	events = append(events, b.event(c.CaseID, "001", entity.StatusIntake, intakeTS, rng.IntBetween(0, 15)))

	triageTS := intakeTS.Add(b.minutes(rng.LogNormalMinutes(b.tierMedian(b.cfg.TriageMedianByTier, c.Tier), b.cfg.TriageSigma)))
	events = append(events, b.event(c.CaseID, "002", entity.StatusTriage, triageTS, rng.IntBetween(0, 20)))

	// Early cancellation terminates the lifecycle.
	if rng.Bernoulli(b.cfg.CancelRate) {
		cancelTS := triageTS.Add(b.minutes(rng.LogNormalMinutes(b.cfg.CancelMedianMin, b.cfg.CancelSigma)))
		events = append(events, b.event(c.CaseID, "003", entity.StatusCancelled, cancelTS, rng.IntBetween(0, 30)))
		return events
	}

	assignTS := triageTS.Add(b.minutes(rng.LogNormalMinutes(b.cfg.AssignMedianMin, b.cfg.AssignSigma)))
	events = append(events, b.event(c.CaseID, "003", entity.StatusAssignment, assignTS, rng.IntBetween(0, 30)))

	// Escalation is a side event shortly after assignment; it does not move the
	// main timeline.
	if rng.Bernoulli(b.cfg.EscalationRate) {
		escTS := assignTS.Add(time.Duration(rng.IntBetween(30, 240)) * time.Minute)
		events = append(events, b.event(c.CaseID, "004e", entity.StatusEscalated, escTS, rng.IntBetween(0, 45)))
	}

	invMilestoneTS := assignTS.Add(time.Duration(rng.IntBetween(5, 35)) * time.Minute)
	events = append(events, b.event(c.CaseID, "004", entity.StatusInvestigation, invMilestoneTS, 5+rng.IntBetween(0, 20)))

	invMinutes := rng.LogNormalMinutes(b.tierMedian(b.cfg.ResolveMedianByTier, c.Tier), b.cfg.ResolveSigma)

	// Customer wait splits the investigation: the configured fraction elapses,
	// the wait interval is inserted, then the remainder elapses after wait end.
	var invEndTS time.Time
	if rng.Bernoulli(b.cfg.CustomerWaitRate) {
		waitMinutes := rng.LogNormalMinutes(b.cfg.CustomerWaitMedianMin, b.cfg.CustomerWaitSigma)
		cwStartTS := laterOf(assignTS.Add(b.minutes(invMinutes*b.cfg.WaitSplitRatio)), invMilestoneTS)
		events = append(events, b.event(c.CaseID, "005", entity.StatusCustomerWait, cwStartTS, rng.IntBetween(0, 60)))
		invEndTS = cwStartTS.Add(b.minutes(waitMinutes)).Add(b.minutes(invMinutes * (1.0 - b.cfg.WaitSplitRatio)))
	} else {
		invEndTS = laterOf(assignTS.Add(b.minutes(invMinutes)), invMilestoneTS)
	}

	reviewTS := invEndTS.Add(b.minutes(rng.LogNormalMinutes(b.cfg.ReviewMedianMin, b.cfg.ReviewSigma)))
	events = append(events, b.event(c.CaseID, "006", entity.StatusReviewQA, reviewTS, rng.IntBetween(0, 45)))

	resolvedTS := reviewTS.Add(b.minutes(rng.LogNormalMinutes(b.cfg.CloseMedianMin, b.cfg.CloseSigma)))
	events = append(events, b.event(c.CaseID, "007", entity.StatusResolved, resolvedTS, rng.IntBetween(0, 120)))

	// Tier-dependent reopening trails resolution without a second lifecycle.
	if rng.Bernoulli(b.cfg.ReopenRateByTier[c.Tier]) {
		delayDays := rng.IntBetween(b.cfg.ReopenDelayDaysMin, b.cfg.ReopenDelayDaysMax+1)
		reopenTS := resolvedTS.AddDate(0, 0, delayDays).Add(time.Duration(rng.IntBetween(30, 600)) * time.Minute)
		events = append(events, b.event(c.CaseID, "008", entity.StatusReopened, reopenTS, rng.IntBetween(0, 180)))
	}

	return events
}

// event assembles one record with its ingestion timestamp pushed forward by the
// drawn logging latency in minutes.
func (b *TimelineBuilder) event(caseID, seq, status string, ts time.Time, ingestDelayMin int) entity.EventRecord {
	eventTS := ts
	return entity.EventRecord{
		EventID:     fmt.Sprintf("%s_%s", caseID, seq),
		CaseID:      caseID,
		Status:      status,
		EventTS:     &eventTS,
		IngestionTS: ts.Add(time.Duration(ingestDelayMin) * time.Minute),
		EventTZ:     b.tz,
	}
}

func (b *TimelineBuilder) tierMedian(table map[string]float64, tier string) float64 {
	if m, ok := table[tier]; ok {
		return m
	}
	// Unknown tiers fall back to the heaviest configured median so durations
	// stay positive rather than collapsing to zero.
	max := 0.0
	for _, m := range table {
		if m > max {
			max = m
		}
	}
	return max
}

func (b *TimelineBuilder) minutes(m float64) time.Duration {
	return time.Duration(m * float64(time.Minute))
}

func laterOf(a, b time.Time) time.Time {
	if b.After(a) {
		return b
	}
	return a
}
