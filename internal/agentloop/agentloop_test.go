package agentloop

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/randalmurphal/orc/internal/config"
	"github.com/randalmurphal/orc/internal/issue"
	"github.com/randalmurphal/orc/internal/orcstate"
)

func TestShouldPlan_EveryNIterations(t *testing.T) {
	l := &Loop{opts: Options{Cfg: config.Config{PlannerEvery: 3}}}

	var results []bool
	for i := 1; i <= 6; i++ {
		l.iteration = i
		results = append(results, l.shouldPlan())
	}

	assert.Equal(t, []bool{true, false, false, true, false, false}, results)
}

func TestShouldPlan_FalseWhenNoPlannerSet(t *testing.T) {
	l := &Loop{opts: Options{NoPlanner: true, Cfg: config.Config{PlannerEvery: 1}}}
	l.iteration = 1

	assert.False(t, l.shouldPlan())
}

func TestShouldPlan_ZeroPlannerEveryDefaultsToEveryIteration(t *testing.T) {
	l := &Loop{opts: Options{Cfg: config.Config{PlannerEvery: 0}}}

	l.iteration = 1
	assert.True(t, l.shouldPlan())
	l.iteration = 2
	assert.True(t, l.shouldPlan())
}

func TestReadyIssues_ExcludesUnresolvedDependenciesAndSortsByID(t *testing.T) {
	st := orcstate.New("/tmp/state.json", 2)

	ready := issue.New("b-issue", "t")
	ready.Manifest = &issue.Manifest{Primary: []string{"**"}}

	alsoReady := issue.New("a-issue", "t")
	alsoReady.Manifest = &issue.Manifest{Primary: []string{"**"}}

	blocked := issue.New("c-issue", "t")
	blocked.Manifest = &issue.Manifest{Primary: []string{"**"}}
	blocked.DependsOn = []string{"unresolved-dep"}

	noManifest := issue.New("d-issue", "t")

	st.Issues["b-issue"] = ready
	st.Issues["a-issue"] = alsoReady
	st.Issues["c-issue"] = blocked
	st.Issues["d-issue"] = noManifest

	l := &Loop{state: st}

	ids := make([]string, 0)
	for _, iss := range l.readyIssues() {
		ids = append(ids, iss.ID)
	}

	assert.Equal(t, []string{"a-issue", "b-issue"}, ids)
}

func TestReadyIssues_DependencySatisfiedOnceCompleted(t *testing.T) {
	st := orcstate.New("/tmp/state.json", 1)

	dep := issue.New("dep", "t")
	dep.Status = issue.StatusCompleted
	st.Issues["dep"] = dep

	dependent := issue.New("dependent", "t")
	dependent.Manifest = &issue.Manifest{Primary: []string{"**"}}
	dependent.DependsOn = []string{"dep"}
	st.Issues["dependent"] = dependent

	l := &Loop{state: st}

	ready := l.readyIssues()
	assert.Len(t, ready, 1)
	assert.Equal(t, "dependent", ready[0].ID)
}
