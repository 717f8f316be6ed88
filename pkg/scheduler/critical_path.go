package scheduler

// CriticalPath returns the longest chain of dependency edges by step count,
// computed with longest-path dynamic programming over the plan's levels.
// Ties keep the first chain discovered. Diagnostic only; scheduling never
// consults it.
func (s *Scheduler) CriticalPath() []string {
	chainLen := make(map[string]int, s.plan.TotalSteps)
	predecessor := make(map[string]string, s.plan.TotalSteps)

	// levels guarantee every dependency is processed before its dependents
	for _, level := range s.plan.Levels {
		for _, stepID := range level {
			chainLen[stepID] = 1

			for _, depID := range s.plan.DependenciesOf(stepID) {
				if chainLen[depID]+1 > chainLen[stepID] {
					chainLen[stepID] = chainLen[depID] + 1
					predecessor[stepID] = depID
				}
			}
		}
	}

	end := ""
	longest := 0

	for _, stepID := range s.plan.StepIDs() {
		if chainLen[stepID] > longest {
			longest = chainLen[stepID]
			end = stepID
		}
	}

	if end == "" {
		return nil
	}

	path := make([]string, 0, longest)
	for current := end; current != ""; current = predecessor[current] {
		path = append(path, current)
	}

	// reverse into dependency order
	for i, j := 0, len(path)-1; i < j; i, j = i+1, j-1 {
		path[i], path[j] = path[j], path[i]
	}

	return path
}
