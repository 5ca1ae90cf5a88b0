package domain

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStringValue(t *testing.T) {
	s := "x"
	assert.Equal(t, "x", StringValue(&s))
	assert.Equal(t, "", StringValue(nil))
}

func TestMode_Valid(t *testing.T) {
	assert.True(t, ModeDirect.Valid())
	assert.True(t, ModeEvent.Valid())
	assert.False(t, Mode("batch").Valid())
}

func TestSyncReport_FailedIDsAndLastTask(t *testing.T) {
	r := &SyncReport{
		Failed:   []DeliveryFailure{{ID: "b", Batch: 0}, {ID: "d", Batch: 1}},
		TaskUIDs: []int64{4, 9},
	}
	assert.Equal(t, []string{"b", "d"}, r.FailedIDs())
	require.NotNil(t, r.LastTaskUID())
	assert.Equal(t, int64(9), *r.LastTaskUID())

	empty := &SyncReport{}
	assert.Empty(t, empty.FailedIDs())
	assert.Nil(t, empty.LastTaskUID())
}
