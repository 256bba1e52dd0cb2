// Copyright 2026 ETH Zurich
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//	http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package command_test

import (
	"bytes"
	"io"
	"os"
	"path/filepath"
	"testing"

	"github.com/spf13/cobra"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/scionproto/hfsc/private/app/command"
	"github.com/scionproto/hfsc/private/config"
)

type sampler struct{}

func (sampler) Sample(dst io.Writer, _ config.Path, _ config.CtxMap) {
	config.WriteString(dst, "key = 1\n")
}

func newRoot() *cobra.Command {
	root := &cobra.Command{Use: "app"}
	root.AddCommand(
		command.NewCompletion(root),
		command.NewSample(root, sampler{}),
		command.NewGendocs(root),
	)
	return root
}

func execute(t *testing.T, args ...string) string {
	t.Helper()
	root := newRoot()
	var out bytes.Buffer
	root.SetOut(&out)
	root.SetArgs(args)
	require.NoError(t, root.Execute())
	return out.String()
}

func TestSample(t *testing.T) {
	assert.Equal(t, "key = 1\n", execute(t, "sample"))

	file := filepath.Join(t.TempDir(), "sample.toml")
	execute(t, "sample", file)
	raw, err := os.ReadFile(file)
	require.NoError(t, err)
	assert.Equal(t, "key = 1\n", string(raw))
}

func TestCompletion(t *testing.T) {
	for _, shell := range []string{"bash", "zsh", "fish"} {
		t.Run(shell, func(t *testing.T) {
			assert.Contains(t, execute(t, "completion", "--shell", shell), "app")
		})
	}
	root := newRoot()
	root.SetOut(io.Discard)
	root.SetErr(io.Discard)
	root.SetArgs([]string{"completion", "--shell", "tcsh"})
	assert.Error(t, root.Execute())
}

func TestGendocs(t *testing.T) {
	dir := t.TempDir()
	execute(t, "gendocs", dir)
	for _, name := range []string{"app.md", "app_sample.md", "app_completion.md"} {
		_, err := os.Stat(filepath.Join(dir, name))
		assert.NoError(t, err, name)
	}
}
