package cli

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/needha-erp/erpdesk/internal/erp"
	"github.com/needha-erp/erpdesk/internal/loss"
	"github.com/needha-erp/erpdesk/internal/util"
)

const settingBatch = "SETTING/01/05/2024/12"

// settingBackend serves the pouches a setting batch returned.
func settingBackend(t *testing.T) *fakeBackend {
	t.Helper()
	b := newFakeBackend(t)
	b.lists["/api/polishing"] = polishingRecords()
	b.pouches["/api/setting/"+settingBatch+"/pouches"] = []map[string]any{
		{"Id": "P1", "Name": "Pouch 1", "Issued_Weight_Setting__c": 10.2, "Received_Weight_Setting__c": 10.0},
		{"Id": "P2", "Name": "Pouch 2", "Issued_Weight_Setting__c": 10.0, "Received_Weight_Setting__c": 9.9},
	}
	return b
}

func TestIssueCommand_CreatesBatch(t *testing.T) {
	b := settingBackend(t)

	out, err := runCLI(t, b, t.TempDir(), "issue", "polishing", settingBatch,
		"--weight", "P1=9.8", "--weight", "P2=9.7", "--date", "2024-05-04")
	require.NoError(t, err)
	assert.Contains(t, out, "Polishing POLISH/01/05/2024/12")
	assert.Contains(t, out, "Total:    19.5000g")

	posts := b.Posts()
	require.Len(t, posts, 1)
	assert.Equal(t, "/api/polishing/create", posts[0].Path)
	body := posts[0].Body
	assert.Equal(t, "POLISH/01/05/2024/12", body["polishingId"])
	assert.Equal(t, "2024-05-04", body["issuedDate"])
	assert.Equal(t, 19.5, body["totalWeight"])
	assert.Equal(t, "Pending", body["status"])
	assert.Equal(t, []any{
		map[string]any{"pouchId": "P1", "polishingWeight": 9.8},
		map[string]any{"pouchId": "P2", "polishingWeight": 9.7},
	}, body["pouches"])
}

func TestIssueCommand_DryRunSendsNothing(t *testing.T) {
	b := settingBackend(t)

	out, err := runCLI(t, b, t.TempDir(), "issue", "polishing", settingBatch, "-w", "P1=9.8", "-w", "P2=9.7", "--dry-run")
	require.NoError(t, err)
	assert.Contains(t, out, "Dry run")
	assert.Empty(t, b.Posts())
}

func TestIssueCommand_EveryPouchNeedsAWeight(t *testing.T) {
	b := settingBackend(t)

	_, err := runCLI(t, b, t.TempDir(), "issue", "polishing", settingBatch, "-w", "P1=9.8")
	assert.ErrorIs(t, err, util.ErrMissingPouchWeight)

	_, err = runCLI(t, b, t.TempDir(), "issue", "polishing", settingBatch, "-w", "P1=9.8", "-w", "P2=0")
	assert.ErrorIs(t, err, util.ErrMissingPouchWeight)

	_, err = runCLI(t, b, t.TempDir(), "issue", "polishing", settingBatch, "-w", "P1=9.8", "-w", "P9=1")
	assert.ErrorIs(t, err, loss.ErrUnknownPouch)

	assert.Empty(t, b.Posts())
}

func TestIssueCommand_NoPouches(t *testing.T) {
	b := settingBackend(t)

	_, err := runCLI(t, b, t.TempDir(), "issue", "polishing", "SETTING/09/09/2024/1", "-w", "P1=1")
	var deskErr *util.DeskError
	require.ErrorAs(t, err, &deskErr)
	assert.Contains(t, deskErr.Title, "No pouches")
	assert.Empty(t, b.Posts())
}

func TestIssueCommand_StageWithoutPouchTransfer(t *testing.T) {
	for _, stage := range []string{"casting", "filing", "grinding"} {
		_, err := runCLI(t, nil, t.TempDir(), "issue", stage, "CAST/01/05/2024/3", "-w", "P1=1")
		assert.ErrorIs(t, err, loss.ErrNoPouchTransfer, stage)
	}

	_, err := runCLI(t, nil, t.TempDir(), "issue", "plating", "X/1")
	assert.ErrorIs(t, err, loss.ErrUnknownStage)
}

func TestIssueCommand_InvalidSourceBatch(t *testing.T) {
	b := settingBackend(t)

	_, err := runCLI(t, b, t.TempDir(), "issue", "polishing", "01/05/2024", "-w", "P1=1")
	assert.ErrorIs(t, err, erp.ErrInvalidBatch)
	assert.Empty(t, b.Posts())
}

func TestIssueCommand_Rejected(t *testing.T) {
	b := settingBackend(t)
	b.reject = "pouch already issued"

	_, err := runCLI(t, b, t.TempDir(), "issue", "polishing", settingBatch, "-w", "P1=9.8", "-w", "P2=9.7")
	assert.ErrorIs(t, err, util.ErrMutationRejected)
	assert.ErrorIs(t, err, erp.ErrRejected)
}
