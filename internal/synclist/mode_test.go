package synclist

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSyncModeMirrorInvolutive(t *testing.T) {
	modes := []SyncMode{
		SyncModeMergeLocalRemote,
		SyncModeMergeRemoteLocal,
		SyncModeOverwriteLocalRemote,
		SyncModeOverwriteRemoteLocal,
		SyncModeOverwriteLocalRemoteFull,
		SyncModeOverwriteRemoteLocalFull,
	}

	for _, m := range modes {
		t.Run(string(m), func(t *testing.T) {
			// mirror(mirror(m)) == m для всех режимов кроме cancel
			assert.Equal(t, m, m.Mirror().Mirror())
			assert.NotEqual(t, m, m.Mirror(), "зеркало должно менять точку зрения")
		})
	}

	// cancel зеркален сам себе
	assert.Equal(t, SyncModeCancel, SyncModeCancel.Mirror())
}

func TestSyncModeMirrorPairs(t *testing.T) {
	assert.Equal(t, SyncModeMergeRemoteLocal, SyncModeMergeLocalRemote.Mirror())
	assert.Equal(t, SyncModeOverwriteRemoteLocal, SyncModeOverwriteLocalRemote.Mirror())
	assert.Equal(t, SyncModeOverwriteRemoteLocalFull, SyncModeOverwriteLocalRemoteFull.Mirror())
}

func TestParseSyncMode(t *testing.T) {
	m, err := ParseSyncMode("overwrite_local_remote_full")
	require.NoError(t, err)
	assert.Equal(t, SyncModeOverwriteLocalRemoteFull, m)

	// Пустое предпочтение - дефолтный режим
	m, err = ParseSyncMode("")
	require.NoError(t, err)
	assert.Equal(t, SyncModeMergeRemoteLocal, m)

	_, err = ParseSyncMode("merge_everything")
	require.Error(t, err)
}

func TestSyncModeValid(t *testing.T) {
	assert.True(t, SyncModeCancel.Valid())
	assert.True(t, SyncModeMergeLocalRemote.Valid())
	assert.False(t, SyncMode("bogus").Valid())
}
