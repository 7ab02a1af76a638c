package verify

import (
	"time"

	"github.com/sirupsen/logrus"
)

// NewSolverFunc constructs a fresh SolverFacade for one StateSpace
// iteration. Embedders wiring a real SMT backend supply their own; RefSolver
// is the package default.
type NewSolverFunc func() SolverFacade

// DefaultNewSolver returns the reference bounded-domain backend.
func DefaultNewSolver() SolverFacade { return NewRefSolver() }

// RunPostcondition is the Call Driver (spec.md §4.8): it repeatedly takes a
// fresh path through cond's postIndex'th postcondition's persistent
// SearchTree, running attemptCall once per iteration, until the tree is
// exhausted, a refutation is found (short-circuiting further search per
// §4.1), or opts' per-condition deadline elapses.
func RunPostcondition(cond *Conditions, postIndex int, opts Options, newSolver NewSolverFunc, log *logrus.Entry) CallTreeAnalysis {
	if newSolver == nil {
		newSolver = DefaultNewSolver
	}
	if log == nil {
		log = logrus.NewEntry(logrus.StandardLogger())
	}

	tree := NewSearchTree()
	agg := NewMessageAggregator()
	deadline := time.Now().Add(opts.PerConditionTimeout)

	deepestPrecIdx := -1
	var deepestPrecCond *Condition

	var final NodeStatus
	exhausted := false
	patches := patchManagerFor(opts)

	for {
		if !deadline.IsZero() && time.Now().After(deadline) {
			log.WithField("postcondition", cond.Post[postIndex].ExprText).Debug("verify: per-condition deadline elapsed")
			break
		}
		iterOpts := opts
		iterOpts.Deadline = time.Now().Add(opts.PerPathTimeout)
		if opts.PerPathTimeout <= 0 || iterOpts.Deadline.After(deadline) {
			iterOpts.Deadline = deadline
		}

		ss := tree.FreshPath(newSolver(), iterOpts)
		var analysis CallAnalysis
		var precDepth int
		var skip bool
		var err error
		patchErr := patches.Apply(func() error {
			analysis, precDepth, skip, err = attemptCall(ss, cond, postIndex)
			return nil
		})
		if opts.Stats != nil {
			opts.Stats.Iterations++
		}
		if patchErr != nil {
			log.WithError(patchErr).Warn("verify: patch manager scope failed")
			break
		}
		if err != nil {
			log.WithError(err).Warn("verify: internal signal propagated out of attemptCall")
			break
		}
		if skip {
			// Ignore-attempt: this iteration carries no information about the
			// function under test. Still bubble so the same tree position is
			// not revisited forever, but record no message.
			status, done := ss.Bubble(CallAnalysis{Status: KindCannotConfirm})
			final, exhausted = status, done
			if exhausted || status == StatusRefuted {
				break
			}
			continue
		}
		if precDepth > deepestPrecIdx && analysis.Status == KindPreconditionUnsatisfiable {
			deepestPrecIdx = precDepth
			deepestPrecCond = analysis.FailedPre
		}
		agg.AddAll(analysis.Messages)

		status, done := ss.Bubble(analysis)
		final, exhausted = status, done
		if opts.Stats != nil && analysis.Status == KindConfirmed {
			opts.Stats.ConfirmedPaths++
		}
		if exhausted || status == StatusRefuted {
			break
		}
	}

	result := CallTreeAnalysis{ConfirmedPaths: tree.CountConfirmed(), Messages: agg.Messages()}
	post := cond.Post[postIndex]
	notConfirmed := AnalysisMessage{
		Kind:     KindCannotConfirm,
		Text:     "postcondition not confirmed over all explored paths",
		Pos:      post.Pos,
		CondText: post.ExprText,
	}
	switch {
	case final == StatusRefuted:
		result.Status = KindPostconditionFail
	case exhausted && final == StatusConfirmed:
		result.Status = KindConfirmed
		if opts.ReportAll {
			result.Messages = append(result.Messages, AnalysisMessage{
				Kind:     KindConfirmed,
				Text:     "postcondition confirmed over all explored paths",
				Pos:      post.Pos,
				CondText: post.ExprText,
			})
		}
	case exhausted && final != StatusVacuous:
		result.Status = KindCannotConfirm
		result.Messages = append(result.Messages, notConfirmed)
	default:
		// Either the tree is exhausted and every reachable leaf was Vacuous
		// (no path ever escaped its preconditions), or the deadline elapsed
		// before the tree finished — either way the precondition message, if
		// any was recorded, is the most useful thing to report.
		result.Status = KindCannotConfirm
		if deepestPrecCond != nil {
			result.Messages = append(result.Messages, AnalysisMessage{
				Kind: KindPreconditionUnsatisfiable,
				Text: "no argument instantiation satisfied the preconditions through " + deepestPrecCond.ExprText,
				Pos:  deepestPrecCond.Pos,
			})
		} else {
			result.Messages = append(result.Messages, notConfirmed)
		}
	}
	return result
}

// RunConditions runs every postcondition in cond independently, one after
// another on the calling goroutine (each postcondition owns its own
// SearchTree), aggregating every message across all of them.
func RunConditions(cond *Conditions, opts Options, newSolver NewSolverFunc, log *logrus.Entry) CallTreeAnalysis {
	agg := NewMessageAggregator()
	overall := KindConfirmed
	confirmed := 0
	for i := range cond.Post {
		r := RunPostcondition(cond, i, opts, newSolver, log)
		agg.AddAll(r.Messages)
		confirmed += r.ConfirmedPaths
		if r.Status.severity() > overall.severity() {
			overall = r.Status
		}
	}
	return CallTreeAnalysis{Status: overall, ConfirmedPaths: confirmed, Messages: agg.Messages()}
}
