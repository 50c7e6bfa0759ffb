package hint

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const sampleConfig = `{
  "Nodes": [
    {
      "Name": "CPUBigClusterMaxFreq",
      "Path": "/tmp/powerhintd-test/cpu_big_max",
      "Values": ["9999999", "1836000", "1352000"],
      "ResetOnInit": true
    },
    {
      "Name": "CPULittleClusterMinFreq",
      "Path": "/tmp/powerhintd-test/cpu_little_min",
      "Values": ["1171200", "595200"],
      "DefaultIndex": 1
    }
  ],
  "Actions": [
    {"PowerHint": "INTERACTION", "Node": "CPULittleClusterMinFreq", "Duration": 0, "Value": "1171200"},
    {"PowerHint": "LAUNCH", "Node": "CPUBigClusterMaxFreq", "Duration": 2500, "Value": "9999999"},
    {"PowerHint": "LAUNCH", "Node": "CPULittleClusterMinFreq", "Duration": 2500, "Value": "1171200"}
  ]
}`

func TestParseConfig(t *testing.T) {
	cfg, err := ParseConfig([]byte(sampleConfig))
	require.NoError(t, err)

	require.Len(t, cfg.Nodes, 2)
	big := cfg.Nodes[0]
	assert.Equal(t, "CPUBigClusterMaxFreq", big.Name)
	assert.True(t, big.ResetOnInit)
	assert.Nil(t, big.DefaultIndex)
	assert.Equal(t, 2, big.defaultIndex()) // last value when unset

	little := cfg.Nodes[1]
	require.NotNil(t, little.DefaultIndex)
	assert.Equal(t, 1, little.defaultIndex())

	require.Len(t, cfg.Actions, 3)
	assert.Equal(t, int64(2500), cfg.Actions[1].Duration)
}

func TestParseConfigRejectsInvalid(t *testing.T) {
	cases := []struct {
		name string
		data string
	}{
		{"not json", `{"Nodes": [`},
		{"missing nodes", `{"Actions": [{"PowerHint": "X", "Node": "n", "Duration": 0, "Value": "1"}]}`},
		{"empty nodes", `{"Nodes": [], "Actions": [{"PowerHint": "X", "Node": "n", "Duration": 0, "Value": "1"}]}`},
		{"empty actions", `{"Nodes": [{"Name": "n", "Path": "/p", "Values": ["1"]}], "Actions": []}`},
		{"node without values", `{"Nodes": [{"Name": "n", "Path": "/p", "Values": []}],
			"Actions": [{"PowerHint": "X", "Node": "n", "Duration": 0, "Value": "1"}]}`},
		{"unknown field", `{"Nodes": [{"Name": "n", "Path": "/p", "Values": ["1"], "Bogus": true}],
			"Actions": [{"PowerHint": "X", "Node": "n", "Duration": 0, "Value": "1"}]}`},
		{"negative duration", `{"Nodes": [{"Name": "n", "Path": "/p", "Values": ["1"]}],
			"Actions": [{"PowerHint": "X", "Node": "n", "Duration": -1, "Value": "1"}]}`},
		{"duplicate node name", `{"Nodes": [
			{"Name": "n", "Path": "/p1", "Values": ["1"]},
			{"Name": "n", "Path": "/p2", "Values": ["1"]}],
			"Actions": [{"PowerHint": "X", "Node": "n", "Duration": 0, "Value": "1"}]}`},
		{"duplicate node path", `{"Nodes": [
			{"Name": "a", "Path": "/p", "Values": ["1"]},
			{"Name": "b", "Path": "/p", "Values": ["1"]}],
			"Actions": [{"PowerHint": "X", "Node": "a", "Duration": 0, "Value": "1"}]}`},
		{"default index out of range", `{"Nodes": [{"Name": "n", "Path": "/p", "Values": ["1", "2"], "DefaultIndex": 2}],
			"Actions": [{"PowerHint": "X", "Node": "n", "Duration": 0, "Value": "1"}]}`},
		{"action on unknown node", `{"Nodes": [{"Name": "n", "Path": "/p", "Values": ["1"]}],
			"Actions": [{"PowerHint": "X", "Node": "other", "Duration": 0, "Value": "1"}]}`},
		{"action value not on node", `{"Nodes": [{"Name": "n", "Path": "/p", "Values": ["1"]}],
			"Actions": [{"PowerHint": "X", "Node": "n", "Duration": 0, "Value": "7"}]}`},
		{"duplicate hint node pair", `{"Nodes": [{"Name": "n", "Path": "/p", "Values": ["1", "2"]}],
			"Actions": [
				{"PowerHint": "X", "Node": "n", "Duration": 0, "Value": "1"},
				{"PowerHint": "X", "Node": "n", "Duration": 100, "Value": "2"}]}`},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := ParseConfig([]byte(tc.data))
			assert.Error(t, err)
		})
	}
}

func TestLoadConfig(t *testing.T) {
	path := filepath.Join(t.TempDir(), "powerhint.json")
	require.NoError(t, os.WriteFile(path, []byte(sampleConfig), 0o644))

	cfg, err := LoadConfig(path)
	require.NoError(t, err)
	assert.Len(t, cfg.Nodes, 2)
}

func TestLoadConfigMissingFile(t *testing.T) {
	_, err := LoadConfig(filepath.Join(t.TempDir(), "absent.json"))
	assert.Error(t, err)
}
