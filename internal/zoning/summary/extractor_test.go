package summary

import (
	"encoding/json"
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zapcore"

	"brand-zoning/internal/common/logger"
	"brand-zoning/internal/common/metrics"
)

const validBlock = "```json\n" + `{
  "brand": "Acme",
  "zone": "3",
  "zone_name": "Endorsed Brand",
  "subzone": "B",
  "confidence": 82,
  "drivers": ["Shared customers"],
  "conflicts": [],
  "risks": ["Channel overlap"],
  "next_steps": ["Confirm budget split"]
}` + "\n```"

func TestExtract_FoundAfterReport(t *testing.T) {
	raw := "# Zone Report\n\nLots of prose here.\n\n" + validBlock + "\n"

	got := Extract(raw)

	require.Equal(t, StatusFound, got.Status)
	assert.Equal(t, "Acme", got.Summary.Brand())
	assert.Equal(t, "3", got.Summary.Zone())
	conf, ok := got.Summary.Confidence()
	require.True(t, ok)
	assert.Equal(t, 82, conf)
	assert.Equal(t, json.Number("82"), got.Summary["confidence"])
}

func TestExtract_MissingBlock(t *testing.T) {
	got := Extract("# Report without machine block\n```\n{\"zone\":\"1\"}\n```")

	assert.Equal(t, StatusMissing, got.Status)
	assert.NotNil(t, got.Summary)
	assert.True(t, got.Summary.IsEmpty())
}

func TestExtract_MalformedBlock(t *testing.T) {
	got := Extract("report\n```json\n{\"zone\": \"1\",}\n```")

	assert.Equal(t, StatusMalformed, got.Status)
	assert.Error(t, got.Err)
	assert.NotNil(t, got.Summary)
	assert.True(t, got.Summary.IsEmpty())
}

func TestExtract_TrailingContentInsideFenceIsMalformed(t *testing.T) {
	got := Extract("```json\n{\"zone\":\"1\"} }\n```")

	assert.Equal(t, StatusMalformed, got.Status)
}

func TestExtract_HandlesWhitespaceAroundFence(t *testing.T) {
	got := Extract("```json   \n\n\t{\"zone\":\"5\",\"nested\":{\"a\":1}}\n\n   ```")

	require.Equal(t, StatusFound, got.Status)
	assert.Equal(t, "5", got.Summary.Zone())
	assert.Equal(t, map[string]interface{}{"a": json.Number("1")}, got.Summary["nested"])
}

func TestExtract_UsesFirstBlockOnly(t *testing.T) {
	raw := "```json\n{\"zone\":\"1\"}\n```\nlater\n```json\n{\"zone\":\"4\"}\n```"

	got := Extract(raw)

	require.Equal(t, StatusFound, got.Status)
	assert.Equal(t, "1", got.Summary.Zone())
}

func TestExtract_FirstBlockMalformedDoesNotFallThrough(t *testing.T) {
	raw := "```json\n{broken}\n```\n```json\n{\"zone\":\"4\"}\n```"

	got := Extract(raw)

	assert.Equal(t, StatusMalformed, got.Status)
	assert.True(t, got.Summary.IsEmpty())
}

func TestExtract_IsDeterministic(t *testing.T) {
	raw := "text " + validBlock
	first := Extract(raw)
	for i := 0; i < 5; i++ {
		assert.Equal(t, first, Extract(raw))
	}
}

func TestExtract_NeverPanicsOnOddInput(t *testing.T) {
	inputs := []string{"", "```json", "```json\n```", "```json\n{\n```", "\x00\xff```json{}```", "```json {} ```"}
	for _, in := range inputs {
		assert.NotPanics(t, func() { _ = Extract(in) }, in)
	}
	assert.Equal(t, StatusFound, Extract("```json {} ```").Status)
}

func TestExtractor_LogsContractViolations(t *testing.T) {
	log, logs := logger.NewObserved(zapcore.DebugLevel)
	e := NewExtractor(log)
	before := testutil.ToFloat64(metrics.SummarySchemaViolations)

	got := e.Extract("```json\n{\"zone\":\"2\",\"confidence\":140}\n```", "req-1")

	require.Equal(t, StatusFound, got.Status)
	assert.Equal(t, "2", got.Summary.Zone())
	assert.Equal(t, before+1, testutil.ToFloat64(metrics.SummarySchemaViolations))
	entries := logs.FilterMessage("Summary does not match response contract").All()
	require.Len(t, entries, 1)
	assert.Equal(t, "req-1", entries[0].ContextMap()["requestId"])
}

func TestExtractor_ValidSummaryIsQuiet(t *testing.T) {
	log, logs := logger.NewObserved(zapcore.DebugLevel)
	e := NewExtractor(log)
	before := testutil.ToFloat64(metrics.SummaryExtractions.WithLabelValues(string(StatusFound)))

	got := e.Extract(validBlock, "req-2")

	require.Equal(t, StatusFound, got.Status)
	assert.Equal(t, 0, logs.FilterLevelExact(zapcore.WarnLevel).Len())
	assert.Equal(t, before+1, testutil.ToFloat64(metrics.SummaryExtractions.WithLabelValues(string(StatusFound))))
}

func TestExtractor_MalformedWarns(t *testing.T) {
	log, logs := logger.NewObserved(zapcore.DebugLevel)
	e := NewExtractor(log)

	got := e.Extract("```json\n{nope}\n```", "req-3")

	assert.Equal(t, StatusMalformed, got.Status)
	assert.Equal(t, 1, logs.FilterMessage("Failed to parse JSON summary").Len())
}
