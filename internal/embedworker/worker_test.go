package embedworker

import (
	"bufio"
	"bytes"
	"encoding/json"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cortexlabs/cortex-core/internal/embedder"
	"github.com/cortexlabs/cortex-core/internal/embedpool"
)

func runLines(t *testing.T, lines ...string) []embedpool.WorkerMessage {
	t.Helper()
	in := strings.NewReader(strings.Join(lines, "\n") + "\n")
	var out bytes.Buffer

	err := Run(in, &out, "w1", embedder.NewMock(4))
	require.NoError(t, err)

	var msgs []embedpool.WorkerMessage
	scanner := bufio.NewScanner(&out)
	for scanner.Scan() {
		var m embedpool.WorkerMessage
		require.NoError(t, json.Unmarshal(scanner.Bytes(), &m))
		msgs = append(msgs, m)
	}
	return msgs
}

func marshal(t *testing.T, msgType string, data any) string {
	t.Helper()
	raw, err := json.Marshal(data)
	require.NoError(t, err)
	msg := embedpool.ParentMessage{Type: msgType, Data: raw}
	line, err := json.Marshal(msg)
	require.NoError(t, err)
	return string(line)
}

func TestRun_InitRepliesInitComplete(t *testing.T) {
	initLine := marshal(t, embedpool.MsgInit, embedpool.InitData{ProcessID: "p1"})
	shutdown, err := json.Marshal(embedpool.ParentMessage{Type: embedpool.MsgShutdown})
	require.NoError(t, err)

	msgs := runLines(t, initLine, string(shutdown))
	require.Len(t, msgs, 1)
	assert.Equal(t, embedpool.MsgInitComplete, msgs[0].Type)
	assert.True(t, msgs[0].Success)
}

func TestRun_EmbedBatchReturnsOneEmbeddingPerText(t *testing.T) {
	batchLine := marshal(t, embedpool.MsgEmbedBatch, embedpool.EmbedBatchData{Texts: []string{"a", "b", "c"}})
	shutdown, err := json.Marshal(embedpool.ParentMessage{Type: embedpool.MsgShutdown})
	require.NoError(t, err)

	msgs := runLines(t, batchLine, string(shutdown))
	require.Len(t, msgs, 1)
	assert.Equal(t, embedpool.MsgEmbedComplete, msgs[0].Type)
	assert.True(t, msgs[0].Success)
	assert.Len(t, msgs[0].Embeddings, 3)
	assert.GreaterOrEqual(t, msgs[0].Stats.DurationMs, int64(0))
}

func TestRun_UnknownMessageTypeReportsError(t *testing.T) {
	unknown, err := json.Marshal(embedpool.ParentMessage{Type: "bogus"})
	require.NoError(t, err)
	shutdown, err := json.Marshal(embedpool.ParentMessage{Type: embedpool.MsgShutdown})
	require.NoError(t, err)

	msgs := runLines(t, string(unknown), string(shutdown))
	require.Len(t, msgs, 1)
	assert.Equal(t, embedpool.MsgError, msgs[0].Type)
	assert.False(t, msgs[0].Success)
}

func TestRun_ShutdownStopsTheLoop(t *testing.T) {
	shutdown, err := json.Marshal(embedpool.ParentMessage{Type: embedpool.MsgShutdown})
	require.NoError(t, err)

	msgs := runLines(t, string(shutdown))
	assert.Empty(t, msgs)
}
