package batch

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/randalmurphal/orc/internal/issue"
)

func withManifest(id string, primary ...string) *issue.Issue {
	iss := issue.New(id, id)
	iss.Manifest = &issue.Manifest{Primary: primary}
	return iss
}

func TestBuild_GroupsDisjointIssuesIntoOneBatch(t *testing.T) {
	ready := []*issue.Issue{
		withManifest("i1", "internal/a/**"),
		withManifest("i2", "internal/b/**"),
		withManifest("i3", "internal/c/**"),
	}

	batches := Build(ready, 4)

	assert.Len(t, batches, 1)
	assert.ElementsMatch(t, []string{"i1", "i2", "i3"}, batches[0].IssueIDs)
}

func TestBuild_SplitsConflictingIssuesAcrossBatches(t *testing.T) {
	ready := []*issue.Issue{
		withManifest("i1", "internal/a/foo.go"),
		withManifest("i2", "internal/a/foo.go"),
	}

	batches := Build(ready, 4)

	if assert.Len(t, batches, 2) {
		assert.Equal(t, []string{"i1"}, batches[0].IssueIDs)
		assert.Equal(t, []string{"i2"}, batches[1].IssueIDs)
	}
}

func TestBuild_ConflictFreeBatchCanExceedMaxWorkers(t *testing.T) {
	ready := []*issue.Issue{
		withManifest("i1", "a"),
		withManifest("i2", "b"),
		withManifest("i3", "c"),
	}

	batches := Build(ready, 2)

	if assert.Len(t, batches, 1) {
		assert.ElementsMatch(t, []string{"i1", "i2", "i3"}, batches[0].IssueIDs)
	}
}

func TestBuild_SkipsIssuesWithoutManifest(t *testing.T) {
	noManifest := issue.New("i1", "t")
	ready := []*issue.Issue{noManifest}

	batches := Build(ready, 4)

	assert.Empty(t, batches)
}

func TestBuild_EmptyInputProducesNoBatches(t *testing.T) {
	assert.Empty(t, Build(nil, 4))
}

func TestBuild_AssignsSequentialLetteredIDs(t *testing.T) {
	ready := []*issue.Issue{
		withManifest("i1", "a"),
		withManifest("i2", "a"),
		withManifest("i3", "a"),
	}

	batches := Build(ready, 1)

	require := assert.New(t)
	require.Len(batches, 3)
	require.Equal("batch-a", batches[0].ID)
	require.Equal("batch-b", batches[1].ID)
	require.Equal("batch-c", batches[2].ID)
}
