package cli

import (
	"testing"

	"github.com/spf13/cobra"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestTree() *cobra.Command {
	root := &cobra.Command{Use: "tendersync", Short: "root"}
	AddHelpJSONFlag(root)

	cpv := &cobra.Command{Use: "cpv", Short: "CPV codes"}
	codes := &cobra.Command{Use: "codes", Short: "Selection", Aliases: []string{"c"}}
	add := &cobra.Command{Use: "add <code>", Short: "Add a code", Run: func(*cobra.Command, []string) {}}
	add.Flags().String("search-id", "", "Search the code was picked from")
	add.Flags().StringP("output", "o", "text", "Output format")
	_ = add.MarkFlagRequired("search-id")

	hidden := &cobra.Command{Use: "debug", Hidden: true, Run: func(*cobra.Command, []string) {}}

	codes.AddCommand(add)
	cpv.AddCommand(codes, hidden)
	root.AddCommand(cpv)
	return root
}

func TestGenerateSchema(t *testing.T) {
	schema := GenerateSchema(newTestTree())

	assert.Equal(t, "tendersync", schema.Name)
	require.Len(t, schema.Subcommands, 1)

	cpv := schema.Subcommands[0]
	assert.Equal(t, "cpv", cpv.Name)
	require.Len(t, cpv.Subcommands, 1, "hidden commands are skipped")

	add := cpv.Subcommands[0].Subcommands[0]
	assert.Equal(t, "add", add.Name)
	assert.Equal(t, "add <code>", add.Use)
	require.Len(t, add.Flags, 2)

	byName := map[string]FlagSchema{}
	for _, f := range add.Flags {
		byName[f.Name] = f
	}
	assert.True(t, byName["search-id"].Required)
	assert.False(t, byName["output"].Required)
	assert.Equal(t, "o", byName["output"].Shorthand)
	assert.Equal(t, "text", byName["output"].Default)
	assert.Equal(t, "string", byName["output"].Type)
}

func TestFindTargetCommand(t *testing.T) {
	root := newTestTree()

	tests := []struct {
		name string
		args []string
		want string
	}{
		{"root", nil, "tendersync"},
		{"nested", []string{"cpv", "codes", "add"}, "add"},
		{"alias", []string{"cpv", "c"}, "codes"},
		{"unknown stops at parent", []string{"cpv", "nope"}, "cpv"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, findTargetCommand(root, tt.args).Name())
		})
	}
}
