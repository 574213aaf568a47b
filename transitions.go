package authflow

// The transition table is a pure mapping from (current step, event) to the
// next step, derived from a workflow's ordered step list. Events absent from
// the table are illegal for that step; the engine records them as rejected
// transitions and leaves the context unchanged.
//
// Derivation rules, per step index i:
//
//   - executable steps (a backend operation is bound): SubmitData and Retry
//     keep the workflow on the step while the executor runs; StepSucceeded
//     advances; StepFailed stays for the retry budget to decide.
//   - data-collection steps: SubmitData and Next advance directly.
//   - Skip advances only when the step definition is skippable.
//   - Previous is present for every step after the first.
//   - the step after the last is the universal Completed state.
//
// Cancel and Reset are universal and handled by the engine outside the table.

type transitionTable map[StepID]map[TransitionEvent]StepID

func buildTransitionTable(t WorkflowType, steps []StepDefinition) transitionTable {
	table := make(transitionTable, len(steps)+1)

	if len(steps) == 0 {
		return table
	}
	table[StepInitializing] = map[TransitionEvent]StepID{
		EventInitialize: steps[0].ID,
	}

	for i, def := range steps {
		next := StepCompleted
		if i+1 < len(steps) {
			next = steps[i+1].ID
		}

		entry := make(map[TransitionEvent]StepID, 6)
		if stepOperation(t, def.ID) != opNone {
			entry[EventSubmitData] = def.ID
			entry[EventRetry] = def.ID
			entry[EventStepSucceeded] = next
			entry[EventStepFailed] = def.ID
		} else {
			entry[EventSubmitData] = next
			entry[EventNext] = next
		}
		if def.Skippable {
			entry[EventSkip] = next
		}
		if i > 0 {
			entry[EventPrevious] = steps[i-1].ID
		}

		table[def.ID] = entry
	}

	return table
}

// nextStep resolves (current, event) against the table. The second return is
// false when the event is illegal for the step.
func (t transitionTable) nextStep(current StepID, event TransitionEvent) (StepID, bool) {
	entry, ok := t[current]
	if !ok {
		return current, false
	}
	next, ok := entry[event]
	if !ok {
		return current, false
	}
	return next, ok
}
