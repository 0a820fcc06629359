package orchestrate

// Decide derives the single next action from an evidence snapshot.
// Priority order:
//  1. open decision packets block everything (oldest first, ties by id)
//  2. repos without an index artifact
//  3. indexed repos without a scan artifact
//  4. minimum-knowledge kickoff not sufficient, or required facts unmet
//  5. missing/failing committee output, or integration-chair gaps
//  6. ready
//
// The staleness signal is computed independently and never changes the
// primary stage.
func Decide(s Snapshot) Outcome {
	stale := StaleSignal(s)

	if d, ok := oldestOpenDecision(s.OpenDecisions); ok {
		return Outcome{
			Stage:  StageDecisionNeeded,
			Action: Action{Type: ActionQuestion, DecisionID: d.ID},
			Stale:  stale,
		}
	}

	if repos := reposWhere(s, func(r RepoEvidence) bool { return !r.HasIndex }); len(repos) > 0 {
		return Outcome{
			Stage:  StageNeedsIndex,
			Action: Action{Type: ActionIndex, TargetRepos: repos},
			Stale:  stale,
		}
	}

	if repos := reposWhere(s, func(r RepoEvidence) bool { return !r.HasScan }); len(repos) > 0 {
		return Outcome{
			Stage:  StageNeedsScan,
			Action: Action{Type: ActionScan, TargetRepos: repos},
			Stale:  stale,
		}
	}

	if !s.KickoffSufficient || !s.FactsSatisfied {
		return Outcome{
			Stage:  StageNeedsKickoff,
			Action: Action{Type: ActionKickoff},
			Stale:  stale,
		}
	}

	if repos := reposWhere(s, committeeMissingOrFailing); len(repos) > 0 {
		return Outcome{
			Stage:  StageNeedsCommittee,
			Action: Action{Type: ActionCommittee, TargetRepos: repos},
			Stale:  stale,
		}
	}

	if s.IntegrationStatus != CommitteePass {
		return Outcome{
			Stage:  StageNeedsCommittee,
			Action: Action{Type: ActionCommittee, Scope: ScopeSystem},
			Stale:  stale,
		}
	}

	return Outcome{
		Stage:  StageReady,
		Action: Action{Type: ActionReady},
		Stale:  stale,
	}
}

// StaleSignal reports whether any repo's scan artifact predates the newest
// ledger event touching that repo. Evidence that is older than the facts it
// summarizes needs refreshing, whatever the primary stage says.
func StaleSignal(s Snapshot) bool {
	for _, r := range s.Repos {
		if !r.HasScan || r.LastChangeAt.IsZero() {
			continue
		}
		if r.LastChangeAt.After(r.ScanUpdatedAt) {
			return true
		}
	}
	return false
}

// oldestOpenDecision picks the packet to surface: oldest OpenedAt first,
// ties broken by lexicographically smallest id.
func oldestOpenDecision(open []OpenDecision) (OpenDecision, bool) {
	if len(open) == 0 {
		return OpenDecision{}, false
	}
	best := open[0]
	for _, d := range open[1:] {
		if d.OpenedAt.Before(best.OpenedAt) ||
			(d.OpenedAt.Equal(best.OpenedAt) && d.ID < best.ID) {
			best = d
		}
	}
	return best, true
}

func reposWhere(s Snapshot, pred func(RepoEvidence) bool) []string {
	var out []string
	for _, r := range s.Repos {
		if pred(r) {
			out = append(out, r.RepoID)
		}
	}
	return out
}

func committeeMissingOrFailing(r RepoEvidence) bool {
	return r.CommitteeStatus != CommitteePass
}
