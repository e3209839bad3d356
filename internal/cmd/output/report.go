package output

import (
	"os"
	"path/filepath"
	"strings"

	"github.com/agentstation/kbmirror/pkg/constants"
	"github.com/agentstation/kbmirror/pkg/errors"
)

// WriteReport writes the report of result to path. A .md path gets the
// Markdown rendering when result has one; anything else gets plain text.
func WriteReport(path string, result Texter) error {
	content := result.Text()
	if strings.EqualFold(filepath.Ext(path), ".md") {
		if md, ok := result.(Markdowner); ok {
			var err error
			if content, err = md.Markdown(); err != nil {
				return errors.WrapResource("render", "report", path, err)
			}
		}
	}

	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, constants.DirPermissions); err != nil {
			return errors.WrapIO("mkdir", dir, err)
		}
	}
	if err := os.WriteFile(path, []byte(content), constants.FilePermissions); err != nil {
		return errors.WrapIO("write", path, err)
	}
	return nil
}
