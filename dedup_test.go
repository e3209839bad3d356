package kbmirror

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/agentstation/kbmirror/pkg/documents"
	"github.com/agentstation/kbmirror/pkg/errors"
	"github.com/agentstation/kbmirror/pkg/logging"
	"github.com/agentstation/kbmirror/pkg/ragflow"
)

func TestReportGroupsByContent(t *testing.T) {
	remote := newFakeRemote()
	remote.add("kb", "1", "A", 0.2)
	remote.add("kb", "2", "A", 0.9)
	remote.add("kb", "3", "B", 1)
	remote.add("kb", "4", "A", 0.5)
	remote.add("other", "5", "A", 1)
	c := newTestClient(t, remote)

	report, err := c.Report(t.Context(), "kb")
	require.NoError(t, err)
	assert.Equal(t, 4, report.TotalDocuments)
	require.Len(t, report.Groups, 1)
	assert.Equal(t, sha("A"), report.Groups[0].Hash)
	assert.Equal(t, []string{"2", "4", "1"}, report.Groups[0].DocIDs(), "members ranked by progress")
	assert.Equal(t, 2, report.Redundant())
	require.NotNil(t, report.Sync)
	assert.Equal(t, 4, report.Sync.Added)

	text := report.Text()
	assert.Contains(t, text, sha("A"))
	assert.Contains(t, text, "90.0%")
	assert.Contains(t, text, "complete")

	md, err := report.Markdown()
	require.NoError(t, err)
	assert.Contains(t, md, "# Duplicate report")
	assert.Contains(t, strings.ToLower(md), "progress")
}

func TestReportWithoutDuplicates(t *testing.T) {
	remote := newFakeRemote()
	remote.add("kb", "1", "A", 0)
	remote.add("kb", "2", "B", 0)
	c := newTestClient(t, remote)

	report, err := c.Report(t.Context(), "kb")
	require.NoError(t, err)
	assert.Empty(t, report.Groups)
	assert.Contains(t, report.Text(), "No duplicate documents found.")

	md, err := report.Markdown()
	require.NoError(t, err)
	assert.Contains(t, md, "No duplicate documents found.")
}

func TestPlanDeletionsKeepsFirstSeenOrder(t *testing.T) {
	remote := newFakeRemote()
	remote.add("kb", "1", "A", 0.9)
	remote.add("kb", "2", "A", 0.1)
	remote.add("kb", "3", "B", 0)
	remote.add("kb", "4", "B", 0)
	remote.add("kb", "5", "B", 0)
	c := newTestClient(t, remote)

	plans, err := c.PlanDeletions(t.Context(), "kb")
	require.NoError(t, err)
	assert.Equal(t, []DeletionPlan{
		{Hash: sha("B"), DocIDs: []string{"3", "4", "5"}},
		{Hash: sha("A"), DocIDs: []string{"1", "2"}},
	}, plans)
	assert.Empty(t, remote.deletes, "planning never deletes")
}

func TestCleanKeepsMostProcessedCopy(t *testing.T) {
	remote := newFakeRemote()
	remote.add("kb", "low", "A", 0.4)
	remote.add("kb", "first", "A", 0.9)
	remote.add("kb", "second", "A", 0.9)
	c := newTestClient(t, remote)

	var removed []string
	c.OnDocumentRemoved(func(r documents.Record) { removed = append(removed, r.DocID) })

	result, err := c.Clean(t.Context(), "kb")
	require.NoError(t, err)
	assert.Equal(t, 1, result.TotalGroups)
	assert.Equal(t, 2, result.TotalDeleted)
	assert.Empty(t, result.FailedDeletions)

	require.Len(t, result.Groups, 1)
	group := result.Groups[0]
	assert.Equal(t, "first", group.Kept.DocID)
	assert.True(t, group.TieBreak)
	require.Len(t, group.Removals, 2)
	assert.Equal(t, "second", group.Removals[0].ID)
	assert.Equal(t, "low", group.Removals[1].ID)
	assert.Equal(t, RemovalDeleted, group.Removals[0].Outcome)

	assert.ElementsMatch(t, []string{"low", "second"}, remote.deletes)
	assert.ElementsMatch(t, []string{"low", "second"}, removed)

	docs, err := c.Documents(t.Context(), "kb")
	require.NoError(t, err)
	require.Len(t, docs, 1)
	assert.Equal(t, "first", docs[0].DocID)
	assert.Contains(t, result.Text(), "(tie, first seen)")
}

func TestCleanPartialFailure(t *testing.T) {
	remote := newFakeRemote()
	remote.add("kb", "a1", "A", 1)
	remote.add("kb", "a2", "A", 0.5)
	remote.add("kb", "a3", "A", 0.1)
	remote.add("kb", "b1", "B", 1)
	remote.add("kb", "b2", "B", 0)
	remote.deleteErr["a2"] = errors.NewApplicationError(ragflow.PathRemove, 102, "document locked")
	c := newTestClient(t, remote)

	result, err := c.Clean(t.Context(), "kb")
	require.NoError(t, err)
	assert.Equal(t, 2, result.TotalGroups)
	assert.Equal(t, 2, result.TotalDeleted)
	assert.Equal(t, []string{"a2"}, result.FailedDeletions)
	assert.ElementsMatch(t, []string{"a2", "a3", "b2"}, remote.deletes)

	docs, err := c.Documents(t.Context(), "kb")
	require.NoError(t, err)
	ids := make([]string, len(docs))
	for i, d := range docs {
		ids[i] = d.DocID
	}
	assert.Equal(t, []string{"a1", "a2", "b1"}, ids, "the failed deletion keeps its mirror record")

	assert.Contains(t, result.Text(), "document locked")
	md, err := result.Markdown()
	require.NoError(t, err)
	assert.Contains(t, md, "[!WARNING]")
}

func TestCleanDryRun(t *testing.T) {
	remote := newFakeRemote()
	remote.add("kb", "a1", "A", 1)
	remote.add("kb", "a2", "A", 0.5)
	c := newTestClient(t, remote)

	result, err := c.Clean(t.Context(), "kb", WithDryRun(true))
	require.NoError(t, err)
	assert.True(t, result.DryRun)
	assert.Zero(t, result.TotalDeleted)
	require.Len(t, result.Groups, 1)
	assert.Equal(t, RemovalPlanned, result.Groups[0].Removals[0].Outcome)
	assert.Empty(t, remote.deletes)

	n, err := c.Count(t.Context(), "kb")
	require.NoError(t, err)
	assert.Equal(t, 2, n)
}

func TestCleanStopsOnAuthenticationFailure(t *testing.T) {
	remote := newFakeRemote()
	remote.add("kb", "a1", "A", 1)
	remote.add("kb", "a2", "A", 0.5)
	remote.add("kb", "a3", "A", 0.1)
	remote.deleteErr["a2"] = authError()
	c := newTestClient(t, remote)

	result, err := c.Clean(t.Context(), "kb")
	require.Error(t, err)
	assert.True(t, errors.IsFatal(err))
	require.NotNil(t, result)
	assert.Equal(t, []string{"a2"}, remote.deletes)
}

func TestDeleteSingleDocument(t *testing.T) {
	remote := newFakeRemote()
	remote.add("kb", "a", "A", 1)
	remote.add("kb", "b", "B", 1)
	c := newTestClient(t, remote)
	logs := logging.CaptureLoggingForTest(t)

	_, err := c.Sync(t.Context(), "kb")
	require.NoError(t, err)

	require.NoError(t, c.Delete(t.Context(), "a"))
	n, err := c.Count(t.Context(), "kb")
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	entry := logs.Find("Document deleted")
	require.NotNil(t, entry)
	assert.Equal(t, "a", entry["doc_id"])

	remote.deleteErr["b"] = errors.NewAPIError(ragflow.PathRemove, 500, "boom")
	require.Error(t, c.Delete(t.Context(), "b"))
	n, err = c.Count(t.Context(), "kb")
	require.NoError(t, err)
	assert.Equal(t, 1, n, "a failed remote delete keeps the record")

	assert.True(t, errors.IsValidationError(c.Delete(t.Context(), "")))
}
